package game

import (
	"errors"
	"fmt"
)

// EnemyKind is the AI sub-type of an enemy vehicle
type EnemyKind uint8

const (
	KindBasic EnemyKind = iota
	KindFast
	KindPower
	KindHeavy
	kindCount
)

// EnemyKinds lists every enemy kind in preset order
var EnemyKinds = [kindCount]EnemyKind{KindBasic, KindFast, KindPower, KindHeavy}

func (k EnemyKind) String() string {
	switch k {
	case KindBasic:
		return "basic"
	case KindFast:
		return "fast"
	case KindPower:
		return "power"
	case KindHeavy:
		return "heavy"
	default:
		return "unknown"
	}
}

func (k EnemyKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// VehiclePreset holds the fixed stats of an enemy kind
type VehiclePreset struct {
	Speed           int `json:"speed" mapstructure:"speed"`
	ProjectileSpeed int `json:"projectile_speed" mapstructure:"projectile_speed"`
	Health          int `json:"health" mapstructure:"health"`
}

// TileRegion is an inclusive-exclusive rectangle of tile coordinates
type TileRegion struct {
	X0 int `json:"x0" mapstructure:"x0"`
	Y0 int `json:"y0" mapstructure:"y0"`
	X1 int `json:"x1" mapstructure:"x1"` // exclusive
	Y1 int `json:"y1" mapstructure:"y1"` // exclusive
}

// Contains reports whether tile (x, y) lies in the region
func (r TileRegion) Contains(x, y int) bool {
	return x >= r.X0 && x < r.X1 && y >= r.Y0 && y < r.Y1
}

// Config is the immutable simulation configuration.
// Every constructor in this package receives it by value; nothing reads process-wide state.
type Config struct {
	GridWidth    int `json:"grid_width" mapstructure:"grid_width"`
	GridHeight   int `json:"grid_height" mapstructure:"grid_height"`
	TileSize     int `json:"tile_size" mapstructure:"tile_size"`
	VehicleInset int `json:"vehicle_inset" mapstructure:"vehicle_inset"`

	ProjectileSize int `json:"projectile_size" mapstructure:"projectile_size"`

	// Player stats
	PlayerSpeed            int     `json:"player_speed" mapstructure:"player_speed"`
	PlayerProjectileSpeeds []int   `json:"player_projectile_speeds" mapstructure:"player_projectile_speeds"` // index = level-1
	PlayerCooldown         int     `json:"player_cooldown" mapstructure:"player_cooldown"`
	PlayerLives            int     `json:"player_lives" mapstructure:"player_lives"`
	PlayerHealth           int     `json:"player_health" mapstructure:"player_health"`
	PlayerStarts           []Point `json:"player_starts" mapstructure:"player_starts"` // tile coordinates, slot order

	// Enemy stats
	EnemyCooldown int                      `json:"enemy_cooldown" mapstructure:"enemy_cooldown"`
	EnemyPresets  [kindCount]VehiclePreset `json:"enemy_presets" mapstructure:"enemy_presets"`
	EnemyWeights  [kindCount]int           `json:"enemy_weights" mapstructure:"enemy_weights"`

	// Durations in ticks
	SpawnShield     int `json:"spawn_shield" mapstructure:"spawn_shield"`
	RespawnShield   int `json:"respawn_shield" mapstructure:"respawn_shield"`
	ShieldDuration  int `json:"shield_duration" mapstructure:"shield_duration"`
	FreezeDuration  int `json:"freeze_duration" mapstructure:"freeze_duration"`
	PowerUpDuration int `json:"powerup_duration" mapstructure:"powerup_duration"`
	FortifyDuration int `json:"fortify_duration" mapstructure:"fortify_duration"`

	PowerUpDropChance float64 `json:"powerup_drop_chance" mapstructure:"powerup_drop_chance"`

	// Spawning
	SpawnInterval        int     `json:"spawn_interval" mapstructure:"spawn_interval"`
	SpawnPoints          []Point `json:"spawn_points" mapstructure:"spawn_points"` // tile coordinates
	SpawnBox             int     `json:"spawn_box" mapstructure:"spawn_box"`       // side of the clearance box in pixels
	MaxConcurrentEnemies int     `json:"max_concurrent_enemies" mapstructure:"max_concurrent_enemies"`
	EnemyQuota           int     `json:"enemy_quota" mapstructure:"enemy_quota"`

	FortifyRegion TileRegion `json:"fortify_region" mapstructure:"fortify_region"`

	// AI tuning
	AIRetargetInterval int     `json:"ai_retarget_interval" mapstructure:"ai_retarget_interval"`
	AIRetargetChance   float64 `json:"ai_retarget_chance" mapstructure:"ai_retarget_chance"`
	AIShootChance      float64 `json:"ai_shoot_chance" mapstructure:"ai_shoot_chance"`
	AIChaseChance      float64 `json:"ai_chase_chance" mapstructure:"ai_chase_chance"`
}

// MaxUpgradeLevel caps Vehicle.Level
const MaxUpgradeLevel = 4

// SteelPiercingPower is the minimum projectile power that consumes Steel
const SteelPiercingPower = 3

// DefaultConfig returns the classic 13x13 arcade tuning
func DefaultConfig() Config {
	return DefaultConfigFor(13, 13)
}

// DefaultConfigFor returns default tuning for a w*h grid, with anchors derived from the size
func DefaultConfigFor(w, h int) Config {
	return Config{
		GridWidth:              w,
		GridHeight:             h,
		TileSize:               40,
		VehicleInset:           4,
		ProjectileSize:         6,
		PlayerSpeed:            2,
		PlayerProjectileSpeeds: []int{8, 10, 11, 12},
		PlayerCooldown:         15,
		PlayerLives:            3,
		PlayerHealth:           1,
		PlayerStarts:           []Point{{X: 4, Y: h - 2}, {X: 8, Y: h - 2}},
		EnemyCooldown:          30,
		EnemyPresets: [kindCount]VehiclePreset{
			KindBasic: {Speed: 1, ProjectileSpeed: 6, Health: 1},
			KindFast:  {Speed: 3, ProjectileSpeed: 6, Health: 1},
			KindPower: {Speed: 1, ProjectileSpeed: 10, Health: 1},
			KindHeavy: {Speed: 1, ProjectileSpeed: 6, Health: 4},
		},
		EnemyWeights:         [kindCount]int{50, 25, 15, 10},
		SpawnShield:          180,
		RespawnShield:        180,
		ShieldDuration:       300,
		FreezeDuration:       300,
		PowerUpDuration:      600,
		FortifyDuration:      600,
		PowerUpDropChance:    0.2,
		SpawnInterval:        120,
		SpawnPoints:          []Point{{X: 0, Y: 0}, {X: w / 2, Y: 0}, {X: w - 1, Y: 0}},
		SpawnBox:             30,
		MaxConcurrentEnemies: 4,
		EnemyQuota:           20,
		FortifyRegion:        TileRegion{X0: w/2 - 2, Y0: h - 2, X1: w/2 + 3, Y1: h},
		AIRetargetInterval:   120,
		AIRetargetChance:     0.005,
		AIShootChance:        0.02,
		AIChaseChance:        0.5,
	}
}

// Width returns the playfield width in pixels
func (c Config) Width() int { return c.GridWidth * c.TileSize }

// Height returns the playfield height in pixels
func (c Config) Height() int { return c.GridHeight * c.TileSize }

// VehicleSize returns the side of a vehicle box in pixels
func (c Config) VehicleSize() int { return c.TileSize - c.VehicleInset }

// TileCenter returns the pixel center of tile (x, y)
func (c Config) TileCenter(x, y int) Point {
	return Point{X: x*c.TileSize + c.TileSize/2, Y: y*c.TileSize + c.TileSize/2}
}

// TileRect returns the pixel box of tile (x, y)
func (c Config) TileRect(x, y int) Rect {
	return Rect{X: x * c.TileSize, Y: y * c.TileSize, W: c.TileSize, H: c.TileSize}
}

// TileAt returns the tile containing pixel p
func (c Config) TileAt(p Point) (int, int) {
	return floorDiv(p.X, c.TileSize), floorDiv(p.Y, c.TileSize)
}

// ProjectileSpeedFor returns the player projectile speed for an upgrade level
func (c Config) ProjectileSpeedFor(level int) int {
	if level < 1 {
		level = 1
	}
	if level > len(c.PlayerProjectileSpeeds) {
		level = len(c.PlayerProjectileSpeeds)
	}
	return c.PlayerProjectileSpeeds[level-1]
}

// Validate checks the configuration for values the simulation cannot run with
func (c Config) Validate() error {
	var errs []error
	positive := func(name string, v int) {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, v))
		}
	}
	positive("grid_width", c.GridWidth)
	positive("grid_height", c.GridHeight)
	positive("tile_size", c.TileSize)
	positive("projectile_size", c.ProjectileSize)
	positive("player_speed", c.PlayerSpeed)
	positive("player_lives", c.PlayerLives)
	positive("player_health", c.PlayerHealth)
	positive("spawn_interval", c.SpawnInterval)
	positive("ai_retarget_interval", c.AIRetargetInterval)

	if c.VehicleInset < 0 || c.VehicleInset >= c.TileSize {
		errs = append(errs, fmt.Errorf("vehicle_inset must be in [0, tile_size), got %d", c.VehicleInset))
	}
	if c.MaxConcurrentEnemies < 0 || c.EnemyQuota < 0 {
		errs = append(errs, errors.New("enemy cap and quota must not be negative"))
	}
	if len(c.PlayerProjectileSpeeds) != MaxUpgradeLevel {
		errs = append(errs, fmt.Errorf("player_projectile_speeds needs %d entries, got %d",
			MaxUpgradeLevel, len(c.PlayerProjectileSpeeds)))
	}
	if len(c.PlayerStarts) == 0 {
		errs = append(errs, errors.New("player_starts must not be empty"))
	}
	if len(c.SpawnPoints) == 0 {
		errs = append(errs, errors.New("spawn_points must not be empty"))
	}

	weightSum := 0
	for i, p := range c.EnemyPresets {
		if p.Speed <= 0 || p.ProjectileSpeed <= 0 || p.Health <= 0 {
			errs = append(errs, fmt.Errorf("enemy preset %s has non-positive stats", EnemyKind(i)))
		}
		if c.EnemyWeights[i] < 0 {
			errs = append(errs, fmt.Errorf("enemy weight %s is negative", EnemyKind(i)))
		}
		weightSum += c.EnemyWeights[i]
	}
	if weightSum == 0 {
		errs = append(errs, errors.New("enemy_weights must not all be zero"))
	}

	for _, pt := range append(append([]Point{}, c.PlayerStarts...), c.SpawnPoints...) {
		if pt.X < 0 || pt.Y < 0 || pt.X >= c.GridWidth || pt.Y >= c.GridHeight {
			errs = append(errs, fmt.Errorf("anchor tile (%d,%d) outside %dx%d grid",
				pt.X, pt.Y, c.GridWidth, c.GridHeight))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation: %w", errors.Join(errs...))
	}
	return nil
}
