package game

import "math/rand"

// aiState is the per-enemy decision state
type aiState struct {
	heading Direction
	timer   int
}

// AIController drives enemy vehicles. All randomness comes from the shared rng.
type AIController struct {
	cfg Config
	rng *rand.Rand
}

// NewAIController creates a controller drawing from rng
func NewAIController(cfg Config, rng *rand.Rand) *AIController {
	return &AIController{cfg: cfg, rng: rng}
}

// Heading returns the enemy's current heading
func (v *Vehicle) Heading() Direction { return v.ai.heading }

// Decide advances the heading timer, re-targets when it fires, and turns the vehicle to its heading.
// Frozen vehicles are skipped.
func (a *AIController) Decide(v *Vehicle, players []*Vehicle) {
	if v.Frozen() {
		return
	}
	v.ai.timer++
	if v.ai.timer >= a.cfg.AIRetargetInterval {
		v.ai.timer = 0
		a.chooseDirection(v, players)
	}
	v.Rotate(v.ai.heading)
}

// Drive moves the vehicle along its heading. A blocked move forces an immediate re-target;
// otherwise a small per-tick chance re-targets anyway. Then it rolls for a shot.
func (a *AIController) Drive(v *Vehicle, grid *TileGrid, vehicles, players []*Vehicle, reg *ProjectileRegistry) {
	if v.Frozen() {
		return
	}
	v.Rotate(v.ai.heading)

	dx, dy := v.ai.heading.Delta()
	if !v.AttemptMove(dx*v.Speed, dy*v.Speed, grid, vehicles) {
		v.ai.timer = 0
		a.chooseDirection(v, players)
	} else if a.rng.Float64() < a.cfg.AIRetargetChance {
		v.ai.timer = 0
		a.chooseDirection(v, players)
	}

	if a.rng.Float64() < a.cfg.AIShootChance {
		v.Shoot(reg)
	}
}

// chooseDirection chases the nearest live player along the dominant axis with AIChaseChance,
// otherwise picks a uniform cardinal direction
func (a *AIController) chooseDirection(v *Vehicle, players []*Vehicle) {
	target := nearestPlayer(v, players)
	if target != nil && a.rng.Float64() < a.cfg.AIChaseChance {
		v.ai.heading = chaseDirection(v.Box.Center(), target.Box.Center())
		return
	}
	v.ai.heading = Directions[a.rng.Intn(len(Directions))]
}

// nearestPlayer returns the closest live player by Euclidean distance, first wins on ties
func nearestPlayer(v *Vehicle, players []*Vehicle) *Vehicle {
	var best *Vehicle
	bestDist := 0
	c := v.Box.Center()
	for _, p := range players {
		if p.removed {
			continue
		}
		pc := p.Box.Center()
		dx, dy := pc.X-c.X, pc.Y-c.Y
		d := dx*dx + dy*dy
		if best == nil || d < bestDist {
			best, bestDist = p, d
		}
	}
	return best
}

// chaseDirection steps along the larger axis of the offset toward target; ties go vertical
func chaseDirection(from, target Point) Direction {
	dx, dy := target.X-from.X, target.Y-from.Y
	if abs(dx) > abs(dy) {
		if dx > 0 {
			return Right
		}
		return Left
	}
	if dy > 0 {
		return Down
	}
	return Up
}
