package input

import (
	"errors"

	"github.com/rs/zerolog"

	"tank-battle/internal/game"
)

// ErrRateLimited is returned when a slot sends commands faster than allowed
var ErrRateLimited = errors.New("rate limited")

// IntentSink receives player intents and game control. *game.Engine satisfies it.
type IntentSink interface {
	SetMove(slot int, dir game.Direction, moving bool) error
	Rotate(slot int, dir game.Direction) error
	Shoot(slot int) error
	Pause()
	Resume()
	NewGame(seed int64) error
}

// Handler applies parsed commands to the game
type Handler struct {
	sink        IntentSink
	rateLimiter *RateLimiter
	log         zerolog.Logger
}

// NewHandler creates a new command handler
func NewHandler(sink IntentSink, limits RateLimitConfig, logger zerolog.Logger) *Handler {
	return &Handler{
		sink:        sink,
		rateLimiter: NewRateLimiter(limits),
		log:         logger.With().Str("component", "input").Logger(),
	}
}

// ProcessCommand handles a single command
func (h *Handler) ProcessCommand(cmd Command) error {
	if !h.rateLimiter.Allow(cmd.Slot) {
		h.log.Debug().Int("slot", cmd.Slot).Str("cmd", cmd.Type.String()).Msg("rate limited")
		return ErrRateLimited
	}

	var err error
	switch cmd.Type {
	case CmdMove:
		err = h.sink.SetMove(cmd.Slot, cmd.Dir, true)
	case CmdStop:
		err = h.sink.SetMove(cmd.Slot, cmd.Dir, false)
	case CmdRotate:
		err = h.sink.Rotate(cmd.Slot, cmd.Dir)
	case CmdShoot:
		err = h.sink.Shoot(cmd.Slot)
	case CmdPause:
		h.sink.Pause()
	case CmdResume:
		h.sink.Resume()
	case CmdRestart:
		err = h.sink.NewGame(cmd.Seed)
		if err == nil {
			h.log.Info().Int("slot", cmd.Slot).Int64("seed", cmd.Seed).Msg("game restarted")
		}
	default:
		err = ErrUnknownCommand
	}

	if err != nil {
		h.log.Debug().Err(err).Int("slot", cmd.Slot).Str("cmd", cmd.Type.String()).Msg("command rejected")
	}
	return err
}

// ProcessText parses and applies a text command
func (h *Handler) ProcessText(slot int, text string) error {
	cmd, err := Parse(slot, text)
	if err != nil {
		return err
	}
	return h.ProcessCommand(cmd)
}
