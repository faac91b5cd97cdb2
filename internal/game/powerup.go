package game

import "fmt"

// PowerUpType is the pickup kind dropped by flagged enemies
type PowerUpType uint8

const (
	PowerUpStar PowerUpType = iota
	PowerUpGrenade
	PowerUpHelmet
	PowerUpShovel
	PowerUpTank
	PowerUpClock
	powerUpTypeCount
)

func (t PowerUpType) String() string {
	switch t {
	case PowerUpStar:
		return "star"
	case PowerUpGrenade:
		return "grenade"
	case PowerUpHelmet:
		return "helmet"
	case PowerUpShovel:
		return "shovel"
	case PowerUpTank:
		return "tank"
	case PowerUpClock:
		return "clock"
	default:
		return "unknown"
	}
}

func (t PowerUpType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *PowerUpType) UnmarshalText(b []byte) error {
	for v := PowerUpStar; v < powerUpTypeCount; v++ {
		if v.String() == string(b) {
			*t = v
			return nil
		}
	}
	return fmt.Errorf("unknown power-up type %q", b)
}

// Effect is what a power-up does to the player who picks it up
type Effect uint8

const (
	EffectUpgrade Effect = iota
	EffectDestroyAll
	EffectShield
	EffectFortify
	EffectExtraLife
	EffectFreeze
)

func (e Effect) String() string {
	switch e {
	case EffectUpgrade:
		return "upgrade"
	case EffectDestroyAll:
		return "destroy_all"
	case EffectShield:
		return "shield"
	case EffectFortify:
		return "fortify"
	case EffectExtraLife:
		return "extra_life"
	case EffectFreeze:
		return "freeze"
	default:
		return "unknown"
	}
}

// Effect maps the type to its effect
func (t PowerUpType) Effect() Effect {
	return Effect(t)
}

// PowerUp is a pickup lying on the playfield until collected or expired
type PowerUp struct {
	ID    uint32
	Type  PowerUpType
	Box   Rect
	timer int

	removed bool
}

// NewPowerUp creates a tile-sized power-up with its top-left corner at origin
func NewPowerUp(cfg Config, id uint32, t PowerUpType, origin Point) *PowerUp {
	return &PowerUp{
		ID:    id,
		Type:  t,
		Box:   Rect{X: origin.X, Y: origin.Y, W: cfg.TileSize, H: cfg.TileSize},
		timer: cfg.PowerUpDuration,
	}
}

// Remaining returns the ticks left before the power-up expires
func (p *PowerUp) Remaining() int { return p.timer }

func (p *PowerUp) Removed() bool { return p.removed }

// Update counts down the expiry; returns false once expired
func (p *PowerUp) Update() bool {
	if p.removed {
		return false
	}
	p.timer--
	if p.timer <= 0 {
		p.removed = true
		return false
	}
	return true
}
