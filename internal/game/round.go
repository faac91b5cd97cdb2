package game

import "math/rand"

// Verdict is the result of a round termination check
type Verdict uint8

const (
	VerdictContinue Verdict = iota
	VerdictBaseDestroyed
	VerdictNoLives
	VerdictLevelComplete
	VerdictVictory
)

func (v Verdict) String() string {
	switch v {
	case VerdictContinue:
		return "continue"
	case VerdictBaseDestroyed:
		return "base_destroyed"
	case VerdictNoLives:
		return "no_lives"
	case VerdictLevelComplete:
		return "level_complete"
	case VerdictVictory:
		return "victory"
	default:
		return "unknown"
	}
}

// Lost reports whether the verdict ends the game in a loss
func (v Verdict) Lost() bool {
	return v == VerdictBaseDestroyed || v == VerdictNoLives
}

// RoundController owns level progression, enemy spawning and win/loss evaluation
type RoundController struct {
	cfg    Config
	rng    *rand.Rand
	levels []Level

	index      int
	remaining  int // enemies left to spawn this level
	spawnTimer int
}

// NewRoundController starts at the first level
func NewRoundController(cfg Config, levels []Level, rng *rand.Rand) *RoundController {
	r := &RoundController{cfg: cfg, rng: rng, levels: levels}
	r.reset()
	return r
}

func (r *RoundController) reset() {
	r.remaining = r.Level().EnemyQuota
	if r.remaining == 0 {
		r.remaining = r.cfg.EnemyQuota
	}
	r.spawnTimer = 0
}

// Level returns the current level template
func (r *RoundController) Level() Level { return r.levels[r.index] }

// LevelIndex returns the zero-based current level
func (r *RoundController) LevelIndex() int { return r.index }

// LevelCount returns the number of levels in the pack
func (r *RoundController) LevelCount() int { return len(r.levels) }

// Remaining returns the enemies still to spawn this level
func (r *RoundController) Remaining() int { return r.remaining }

// SpawnTimer returns the current spawn accumulator
func (r *RoundController) SpawnTimer() int { return r.spawnTimer }

// Advance moves to the next level; returns false when the pack is exhausted
func (r *RoundController) Advance() bool {
	if r.index+1 >= len(r.levels) {
		return false
	}
	r.index++
	r.reset()
	return true
}

// Spawn runs one tick of spawn scheduling. While below the cap with quota left it accumulates
// the timer; at the interval it tries the spawn points in shuffled order and creates an enemy at
// the first one whose clearance box overlaps no vehicle. Returns nil when nothing spawned.
func (r *RoundController) Spawn(vehicles []*Vehicle, id VehicleID) *Vehicle {
	if countLive(vehicles, RoleEnemy) >= r.cfg.MaxConcurrentEnemies || r.remaining <= 0 {
		return nil
	}
	r.spawnTimer++
	if r.spawnTimer < r.cfg.SpawnInterval {
		return nil
	}
	r.spawnTimer = 0

	for _, i := range r.rng.Perm(len(r.cfg.SpawnPoints)) {
		pt := r.cfg.SpawnPoints[i]
		center := r.cfg.TileCenter(pt.X, pt.Y)
		if !spawnAreaClear(RectAround(center, r.cfg.SpawnBox, r.cfg.SpawnBox), vehicles) {
			continue
		}

		kind := r.chooseKind()
		carries := r.rng.Float64() < r.cfg.PowerUpDropChance
		v := NewEnemyVehicle(r.cfg, id, kind, center, carries)
		v.ai.heading = Directions[r.rng.Intn(len(Directions))]
		v.Facing = v.ai.heading
		r.remaining--
		return v
	}
	return nil
}

// chooseKind draws an enemy kind from the weighted table
func (r *RoundController) chooseKind() EnemyKind {
	total := 0
	for _, w := range r.cfg.EnemyWeights {
		total += w
	}
	if total <= 0 {
		return KindBasic
	}

	n := r.rng.Intn(total)
	upto := 0
	for i, w := range r.cfg.EnemyWeights {
		if upto+w > n {
			return EnemyKind(i)
		}
		upto += w
	}
	return EnemyKind(len(r.cfg.EnemyWeights) - 1)
}

// Evaluate checks termination in order: base destroyed, no player with lives, level cleared.
// A cleared level reports VerdictVictory when it was the last one.
func (r *RoundController) Evaluate(grid *TileGrid, vehicles []*Vehicle) Verdict {
	if grid.BaseDestroyed() {
		return VerdictBaseDestroyed
	}

	alive := false
	for _, v := range vehicles {
		if v.Role == RolePlayer && !v.removed && v.Lives > 0 {
			alive = true
			break
		}
	}
	if !alive {
		return VerdictNoLives
	}

	if countLive(vehicles, RoleEnemy) == 0 && r.remaining == 0 {
		if r.index+1 >= len(r.levels) {
			return VerdictVictory
		}
		return VerdictLevelComplete
	}
	return VerdictContinue
}

func spawnAreaClear(area Rect, vehicles []*Vehicle) bool {
	for _, v := range vehicles {
		if !v.removed && area.Overlaps(v.Box) {
			return false
		}
	}
	return true
}

func countLive(vehicles []*Vehicle, role Role) int {
	n := 0
	for _, v := range vehicles {
		if v.Role == role && !v.removed {
			n++
		}
	}
	return n
}
