package game

import (
	"fmt"
	"sync/atomic"
	"time"
)

// ResourceLimits caps how much state a snapshot carries
type ResourceLimits struct {
	MaxVehicles    int // Per snapshot vehicle limit
	MaxProjectiles int // Per snapshot projectile limit
	MaxPowerUps    int // Per snapshot power-up limit
}

// DefaultLimits covers two players, the enemy cap and every outstanding shot with headroom
var DefaultLimits = ResourceLimits{
	MaxVehicles:    32,
	MaxProjectiles: 64,
	MaxPowerUps:    16,
}

// VehicleSnapshot is an immutable copy of vehicle state for rendering
type VehicleSnapshot struct {
	ID             VehicleID `json:"id"`
	Role           Role      `json:"role"`
	Kind           string    `json:"kind,omitempty"`
	Slot           int       `json:"slot,omitempty"`
	Box            Rect      `json:"box"`
	Facing         Direction `json:"facing"`
	Health         int       `json:"health"`
	MaxHealth      int       `json:"maxHealth"`
	Level          int       `json:"level"`
	Lives          int       `json:"lives,omitempty"`
	Shielded       bool      `json:"shielded"`
	Frozen         bool      `json:"frozen"`
	CarriesPowerUp bool      `json:"carriesPowerUp,omitempty"`
}

// ProjectileSnapshot is an immutable copy of a projectile
type ProjectileSnapshot struct {
	ID    ProjectileID `json:"id"`
	Owner VehicleID    `json:"owner"`
	Box   Rect         `json:"box"`
	Dir   Direction    `json:"dir"`
	Power int          `json:"power"`
}

// PowerUpSnapshot is an immutable copy of a power-up
type PowerUpSnapshot struct {
	ID        uint32      `json:"id"`
	Type      PowerUpType `json:"type"`
	Box       Rect        `json:"box"`
	Remaining int         `json:"remaining"`
}

// PlayerHUD is the per-slot status line
type PlayerHUD struct {
	Slot  int  `json:"slot"`
	Lives int  `json:"lives"`
	Level int  `json:"level"`
	Alive bool `json:"alive"`
}

// HUDSnapshot carries the status data a front end shows next to the playfield
type HUDSnapshot struct {
	Level            int         `json:"level"` // 1-based
	LevelName        string      `json:"levelName"`
	LevelCount       int         `json:"levelCount"`
	EnemiesRemaining int         `json:"enemiesRemaining"` // still to spawn plus alive
	Players          []PlayerHUD `json:"players"`
	Outcome          string      `json:"outcome"`
}

// Snapshot is a complete immutable game state for rendering
// All slices are pre-allocated and capped
type Snapshot struct {
	Sequence   uint64    `json:"sequence"`
	Timestamp  time.Time `json:"timestamp"`
	TickNumber uint64    `json:"tick"`
	RNGSeed    int64     `json:"rngSeed"`
	Paused     bool      `json:"paused"`

	GridWidth  int    `json:"gridWidth"`
	GridHeight int    `json:"gridHeight"`
	TileSize   int    `json:"tileSize"`
	Cells      []Tile `json:"cells"` // row-major

	BaseDestroyed bool `json:"baseDestroyed"`
	Fortified     bool `json:"fortified"`

	Vehicles    []VehicleSnapshot    `json:"vehicles"`
	Projectiles []ProjectileSnapshot `json:"projectiles"`
	PowerUps    []PowerUpSnapshot    `json:"powerUps"`

	HUD HUDSnapshot `json:"hud"`
}

// Cell returns the tile at (x, y) of the captured grid, Empty outside
func (s *Snapshot) Cell(x, y int) Tile {
	if x < 0 || y < 0 || x >= s.GridWidth || y >= s.GridHeight {
		return Empty
	}
	return s.Cells[y*s.GridWidth+x]
}

// Clone returns a deep copy safe to hold after the pool slot is reused
func (s *Snapshot) Clone() *Snapshot {
	c := *s
	c.Cells = append([]Tile(nil), s.Cells...)
	c.Vehicles = append([]VehicleSnapshot(nil), s.Vehicles...)
	c.Projectiles = append([]ProjectileSnapshot(nil), s.Projectiles...)
	c.PowerUps = append([]PowerUpSnapshot(nil), s.PowerUps...)
	c.HUD.Players = append([]PlayerHUD(nil), s.HUD.Players...)
	return &c
}

// MarshalText encodes a tile as its layout code so snapshots read like level files
func (t Tile) MarshalText() ([]byte, error) {
	return []byte{TileCode(t)}, nil
}

// UnmarshalText decodes a layout code
func (t *Tile) UnmarshalText(b []byte) error {
	if len(b) == 1 {
		if v, ok := tileCodes[rune(b[0])]; ok {
			*t = v
			return nil
		}
	}
	return fmt.Errorf("%w: unknown tile code %q", ErrInvalidLevel, b)
}

// SnapshotPool pre-allocates snapshots to avoid GC pressure
// Uses triple buffering for lock-free producer/consumer
type SnapshotPool struct {
	snapshots [3]Snapshot
	limits    ResourceLimits
	writeIdx  uint32 // atomic - producer index
	readIdx   uint32 // atomic - consumer index
	sequence  uint64 // atomic - monotonic sequence
}

// NewSnapshotPool creates a pool with pre-allocated slices
func NewSnapshotPool(limits ResourceLimits, cells int) *SnapshotPool {
	pool := &SnapshotPool{limits: limits}

	for i := 0; i < 3; i++ {
		pool.snapshots[i] = Snapshot{
			Cells:       make([]Tile, 0, cells),
			Vehicles:    make([]VehicleSnapshot, 0, limits.MaxVehicles),
			Projectiles: make([]ProjectileSnapshot, 0, limits.MaxProjectiles),
			PowerUps:    make([]PowerUpSnapshot, 0, limits.MaxPowerUps),
			HUD:         HUDSnapshot{Players: make([]PlayerHUD, 0, 4)},
		}
	}

	return pool
}

// AcquireWrite gets the next write slot (producer only, called from game tick)
// Returns a snapshot with reset slices but preserved capacity
func (p *SnapshotPool) AcquireWrite() *Snapshot {
	idx := atomic.AddUint32(&p.writeIdx, 1) % 3
	snap := &p.snapshots[idx]

	snap.Cells = snap.Cells[:0]
	snap.Vehicles = snap.Vehicles[:0]
	snap.Projectiles = snap.Projectiles[:0]
	snap.PowerUps = snap.PowerUps[:0]
	snap.HUD.Players = snap.HUD.Players[:0]

	snap.Sequence = atomic.AddUint64(&p.sequence, 1)
	snap.Timestamp = time.Now()

	return snap
}

// PublishWrite marks write complete and advances read pointer
// Called after snapshot is fully populated
func (p *SnapshotPool) PublishWrite() {
	atomic.StoreUint32(&p.readIdx, atomic.LoadUint32(&p.writeIdx))
}

// AcquireRead gets the latest complete snapshot
func (p *SnapshotPool) AcquireRead() *Snapshot {
	idx := atomic.LoadUint32(&p.readIdx) % 3
	return &p.snapshots[idx]
}

// GetLimits returns the resource limits
func (p *SnapshotPool) GetLimits() ResourceLimits {
	return p.limits
}
