package input

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"tank-battle/internal/game"
)

var (
	ErrUnknownCommand   = errors.New("unknown command")
	ErrMissingDirection = errors.New("command needs a direction")
	ErrInvalidSlot      = errors.New("slot out of range")
)

// CommandType for routing
type CommandType int

const (
	CmdMove CommandType = iota
	CmdStop
	CmdRotate
	CmdShoot
	CmdPause
	CmdResume
	CmdRestart
	CmdUnknown
)

func (c CommandType) String() string {
	switch c {
	case CmdMove:
		return "move"
	case CmdStop:
		return "stop"
	case CmdRotate:
		return "rotate"
	case CmdShoot:
		return "shoot"
	case CmdPause:
		return "pause"
	case CmdResume:
		return "resume"
	case CmdRestart:
		return "restart"
	default:
		return "unknown"
	}
}

// IsControl reports whether the command affects the whole game rather than one slot
func (c CommandType) IsControl() bool {
	return c == CmdPause || c == CmdResume || c == CmdRestart
}

// SupportedCommands maps command words to types
var SupportedCommands = map[string]CommandType{
	"move": CmdMove,
	"go":   CmdMove,

	"stop": CmdStop,

	"rotate": CmdRotate,
	"turn":   CmdRotate,
	"face":   CmdRotate,

	"shoot": CmdShoot,
	"fire":  CmdShoot,

	"pause":  CmdPause,
	"resume": CmdResume,

	"restart": CmdRestart,
	"new":     CmdRestart,
}

// GetCommandType returns the command type for a word (case-insensitive)
func GetCommandType(word string) CommandType {
	if t, ok := SupportedCommands[strings.ToLower(word)]; ok {
		return t
	}
	return CmdUnknown
}

// Command is a parsed control command for one player slot
type Command struct {
	Type       CommandType
	Slot       int
	Dir        game.Direction // move and rotate
	Seed       int64          // restart; 0 picks a fresh seed
	Raw        string
	ReceivedAt time.Time
}

// CheckSlot rejects player commands for slots outside 1..players.
// Control commands are not tied to a slot.
func (c Command) CheckSlot(players int) error {
	if c.Type.IsControl() {
		return nil
	}
	if c.Slot < 1 || c.Slot > players {
		return fmt.Errorf("%w: %d", ErrInvalidSlot, c.Slot)
	}
	return nil
}

// Parse turns a text command such as "move up", "rotate left", "shoot" or "restart 42" into a
// Command for slot. A leading '!' is accepted. "move stop" is the same as "stop".
func Parse(slot int, text string) (Command, error) {
	fields := strings.Fields(strings.TrimPrefix(strings.TrimSpace(text), "!"))
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("%w: empty", ErrUnknownCommand)
	}

	cmd := Command{Type: GetCommandType(fields[0]), Slot: slot, Raw: text}
	args := fields[1:]

	switch cmd.Type {
	case CmdUnknown:
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, fields[0])

	case CmdMove, CmdRotate:
		if len(args) == 0 {
			return Command{}, fmt.Errorf("%w: %s", ErrMissingDirection, cmd.Type)
		}
		if cmd.Type == CmdMove && strings.EqualFold(args[0], "stop") {
			cmd.Type = CmdStop
			return cmd, nil
		}
		dir, err := game.ParseDirection(args[0])
		if err != nil {
			return Command{}, err
		}
		cmd.Dir = dir

	case CmdRestart:
		if len(args) > 0 {
			seed, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return Command{}, fmt.Errorf("restart seed %q: %w", args[0], err)
			}
			cmd.Seed = seed
		}
	}
	return cmd, nil
}
