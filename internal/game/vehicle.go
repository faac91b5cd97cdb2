package game

import "fmt"

// VehicleID is a stable handle into the vehicle registry; 0 is never assigned
type VehicleID uint32

// Role distinguishes player-controlled from AI-controlled vehicles
type Role uint8

const (
	RolePlayer Role = iota
	RoleEnemy
)

func (r Role) String() string {
	if r == RolePlayer {
		return "player"
	}
	return "enemy"
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	switch string(b) {
	case "player":
		*r = RolePlayer
	case "enemy":
		*r = RoleEnemy
	default:
		return fmt.Errorf("unknown role %q", b)
	}
	return nil
}

// Vehicle is a tank. Players and enemies share the type and differ by Role;
// lives and the spawn anchor are only meaningful for players, Kind and the AI state only for enemies.
type Vehicle struct {
	ID     VehicleID
	Role   Role
	Kind   EnemyKind // enemies only
	Slot   int       // player slot, 1-based; 0 for enemies
	Box    Rect
	Facing Direction

	Speed           int
	ProjectileSpeed int
	Health          int
	MaxHealth       int
	Level           int

	// Player-only
	Lives  int
	Anchor Point // pixel center of the spawn tile

	// Enemy-only
	CarriesPowerUp bool
	ai             aiState

	shieldTimer int
	frozenTimer int
	cooldown    int
	cooldownMax int
	shot        ProjectileID // outstanding projectile, 0 when none
	levelSpeeds []int        // projectile speed per upgrade level; nil for enemies
	removed     bool
}

// NewPlayerVehicle creates a player tank at its anchor tile, shielded for the spawn window
func NewPlayerVehicle(cfg Config, id VehicleID, slot int, lives int) *Vehicle {
	start := cfg.PlayerStarts[(slot-1)%len(cfg.PlayerStarts)]
	anchor := cfg.TileCenter(start.X, start.Y)
	size := cfg.VehicleSize()
	v := &Vehicle{
		ID:              id,
		Role:            RolePlayer,
		Slot:            slot,
		Box:             RectAround(anchor, size, size),
		Facing:          Up,
		Speed:           cfg.PlayerSpeed,
		ProjectileSpeed: cfg.ProjectileSpeedFor(1),
		Health:          cfg.PlayerHealth,
		MaxHealth:       cfg.PlayerHealth,
		Level:           1,
		Lives:           lives,
		Anchor:          anchor,
		cooldownMax:     cfg.PlayerCooldown,
		levelSpeeds:     cfg.PlayerProjectileSpeeds,
	}
	v.ActivateShield(cfg.SpawnShield)
	return v
}

// NewEnemyVehicle creates an enemy tank of the given kind centered at center
func NewEnemyVehicle(cfg Config, id VehicleID, kind EnemyKind, center Point, carriesPowerUp bool) *Vehicle {
	preset := cfg.EnemyPresets[kind]
	size := cfg.VehicleSize()
	return &Vehicle{
		ID:              id,
		Role:            RoleEnemy,
		Kind:            kind,
		Box:             RectAround(center, size, size),
		Facing:          Down,
		Speed:           preset.Speed,
		ProjectileSpeed: preset.ProjectileSpeed,
		Health:          preset.Health,
		MaxHealth:       preset.Health,
		Level:           1,
		CarriesPowerUp:  carriesPowerUp,
		ai:              aiState{heading: Down},
		cooldownMax:     cfg.EnemyCooldown,
	}
}

func (v *Vehicle) String() string {
	if v.Role == RolePlayer {
		return fmt.Sprintf("p%d", v.Slot)
	}
	return fmt.Sprintf("e%d", v.ID)
}

func (v *Vehicle) Shielded() bool { return v.shieldTimer > 0 }
func (v *Vehicle) Frozen() bool   { return v.frozenTimer > 0 }
func (v *Vehicle) CanShoot() bool { return v.cooldown == 0 }
func (v *Vehicle) Removed() bool  { return v.removed }

// ShieldRemaining returns the ticks left on the shield
func (v *Vehicle) ShieldRemaining() int { return v.shieldTimer }

// FrozenRemaining returns the ticks left on the freeze
func (v *Vehicle) FrozenRemaining() int { return v.frozenTimer }

// OutstandingShot returns the vehicle's in-flight projectile handle, 0 if none
func (v *Vehicle) OutstandingShot() ProjectileID { return v.shot }

// AttemptMove translates the box by (dx, dy) as one combined step.
// The move is rejected when frozen, when leaving the playfield, when the candidate box overlaps a
// blocking tile in the 3x3 neighborhood of its center, or when it overlaps another live vehicle.
func (v *Vehicle) AttemptMove(dx, dy int, grid *TileGrid, others []*Vehicle) bool {
	if v.Frozen() {
		return false
	}
	if dx == 0 && dy == 0 {
		return true
	}

	candidate := v.Box.Translate(dx, dy)
	if !candidate.Within(grid.PixelWidth(), grid.PixelHeight()) {
		return false
	}
	if grid.BlocksBox(candidate) {
		return false
	}
	for _, o := range others {
		if o == v || o.removed {
			continue
		}
		if candidate.Overlaps(o.Box) {
			return false
		}
	}

	v.Box = candidate
	return true
}

// Rotate changes facing; it is never blocked
func (v *Vehicle) Rotate(d Direction) {
	v.Facing = d
}

// Muzzle returns the midpoint of the box edge the vehicle faces
func (v *Vehicle) Muzzle() Point {
	c := v.Box.Center()
	switch v.Facing {
	case Up:
		return Point{X: c.X, Y: v.Box.Y}
	case Down:
		return Point{X: c.X, Y: v.Box.Bottom()}
	case Left:
		return Point{X: v.Box.X, Y: c.Y}
	default:
		return Point{X: v.Box.Right(), Y: c.Y}
	}
}

// ShotPower is the power level carried by this vehicle's projectiles
func (v *Vehicle) ShotPower() int {
	if v.Role == RoleEnemy {
		return 1
	}
	return v.Level
}

// Shoot fires a projectile from the facing edge.
// Fails with an outstanding live shot, during cooldown, or while frozen.
func (v *Vehicle) Shoot(reg *ProjectileRegistry) bool {
	if v.Frozen() || !v.CanShoot() {
		return false
	}
	if v.shot != 0 && reg.Live(v.shot) {
		return false
	}

	p := reg.Fire(v.ID, v.Role, v.Facing, v.Muzzle(), v.ProjectileSpeed, v.ShotPower())
	v.shot = p.ID
	v.cooldown = v.cooldownMax
	return true
}

// Hit applies damage and reports whether the vehicle is destroyed.
// A shield absorbs the hit entirely.
func (v *Vehicle) Hit(damage int) bool {
	if v.Shielded() {
		return false
	}
	assertInvariant(v.Health > 0, "hit on a vehicle with no health left")
	v.Health -= damage
	return v.Health <= 0
}

// Update advances the vehicle's local timers and releases a finished shot
func (v *Vehicle) Update(reg *ProjectileRegistry) {
	if v.cooldown > 0 {
		v.cooldown--
	}
	if v.shot != 0 && !reg.Live(v.shot) {
		v.shot = 0
	}
	if v.shieldTimer > 0 {
		v.shieldTimer--
	}
	if v.frozenTimer > 0 {
		v.frozenTimer--
	}
}

// Upgrade raises the level by one, capped at MaxUpgradeLevel, and applies the level's projectile speed
func (v *Vehicle) Upgrade() {
	if v.Level < MaxUpgradeLevel {
		v.Level++
	}
	if n := len(v.levelSpeeds); n > 0 {
		idx := v.Level - 1
		if idx >= n {
			idx = n - 1
		}
		v.ProjectileSpeed = v.levelSpeeds[idx]
	}
}

// ActivateShield overwrites the shield countdown
func (v *Vehicle) ActivateShield(duration int) {
	v.shieldTimer = max(duration, 0)
}

// Freeze overwrites the freeze countdown
func (v *Vehicle) Freeze(duration int) {
	v.frozenTimer = max(duration, 0)
}

// LoseLife consumes one player life. With lives left the vehicle respawns at its anchor at base
// level with a shield; otherwise it is marked for removal. Returns true if it respawned.
func (v *Vehicle) LoseLife(cfg Config) bool {
	assertInvariant(v.Role == RolePlayer, "LoseLife on a non-player vehicle")
	v.Lives--
	if v.Lives <= 0 {
		v.Lives = 0
		v.removed = true
		return false
	}

	size := cfg.VehicleSize()
	v.Box = RectAround(v.Anchor, size, size)
	v.Facing = Up
	v.Level = 1
	v.Health = v.MaxHealth
	v.ProjectileSpeed = cfg.ProjectileSpeedFor(1)
	v.frozenTimer = 0
	v.cooldown = 0
	v.ActivateShield(cfg.RespawnShield)
	return true
}

// markRemoved flags the vehicle for compaction at the end of the tick
func (v *Vehicle) markRemoved() {
	v.removed = true
}
