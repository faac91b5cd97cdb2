package game

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/rs/zerolog"
)

// Input is one tick of intents for a player slot.
// Rotation and shooting are one-shot; movement is a unit axis step scaled by the vehicle speed.
type Input struct {
	Rotate    Direction
	HasRotate bool
	Shoot     bool
	MoveX     int // -1, 0 or 1
	MoveY     int // -1, 0 or 1
}

// SimOptions holds the collaborators of a Simulation
type SimOptions struct {
	Players int // player slots, 1..len(Config.PlayerStarts)
	Logger  zerolog.Logger
	Events  EventSink // nil discards events
}

// Simulation is the deterministic single-threaded game core. One Step advances one tick.
type Simulation struct {
	cfg    Config
	rng    *rand.Rand
	seed   int64 // seed of the current tick
	log    zerolog.Logger
	events EventSink

	grid        *TileGrid
	vehicles    []*Vehicle // registry order: players first, then enemies by spawn
	projectiles *ProjectileRegistry
	powerUps    []*PowerUp

	round   *RoundController
	ai      *AIController
	collide *CollisionResolver

	players       int
	nextVehicleID VehicleID
	nextPowerUpID uint32
	tick          uint64
	verdict       Verdict

	impacts   []Impact
	playerBuf []*Vehicle
}

// NewSimulation validates the configuration and levels and loads the first level.
// rng is the only randomness source; the same seed replays the same game.
func NewSimulation(cfg Config, levels []Level, rng *rand.Rand, opts SimOptions) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, errors.New("simulation needs a random source")
	}
	if len(levels) == 0 {
		return nil, fmt.Errorf("%w: no levels", ErrInvalidLevel)
	}
	for _, lvl := range levels {
		if len(lvl.Tiles) != cfg.GridHeight {
			return nil, fmt.Errorf("%w %q: %d rows for a %d-row grid", ErrInvalidLevel, lvl.Name, len(lvl.Tiles), cfg.GridHeight)
		}
		for y, row := range lvl.Tiles {
			if len(row) != cfg.GridWidth {
				return nil, fmt.Errorf("%w %q: row %d has %d cells for a %d-wide grid",
					ErrInvalidLevel, lvl.Name, y+1, len(row), cfg.GridWidth)
			}
		}
	}
	if opts.Players < 1 || opts.Players > len(cfg.PlayerStarts) {
		return nil, fmt.Errorf("players must be between 1 and %d, got %d", len(cfg.PlayerStarts), opts.Players)
	}

	events := opts.Events
	if events == nil {
		events = nopSink{}
	}

	s := &Simulation{
		cfg:           cfg,
		rng:           rng,
		log:           opts.Logger.With().Str("component", "simulation").Logger(),
		events:        events,
		projectiles:   NewProjectileRegistry(cfg.ProjectileSize, 16),
		round:         NewRoundController(cfg, levels, rng),
		ai:            NewAIController(cfg, rng),
		collide:       NewCollisionResolver(cfg),
		players:       opts.Players,
		nextVehicleID: VehicleID(opts.Players),
	}

	lives := make(map[int]int, opts.Players)
	for slot := 1; slot <= opts.Players; slot++ {
		lives[slot] = cfg.PlayerLives
	}
	s.startLevel(lives)
	return s, nil
}

// startLevel rebuilds terrain and rosters for the round controller's current level.
// Only slots present in lives get a vehicle, keeping their life count.
func (s *Simulation) startLevel(lives map[int]int) {
	lvl := s.round.Level()
	s.grid = NewTileGridFromLevel(s.cfg, lvl)
	s.projectiles.Clear()
	clear(s.powerUps)
	s.powerUps = s.powerUps[:0]
	clear(s.vehicles)
	s.vehicles = s.vehicles[:0]

	for slot := 1; slot <= s.players; slot++ {
		if l, ok := lives[slot]; ok && l > 0 {
			s.vehicles = append(s.vehicles, NewPlayerVehicle(s.cfg, VehicleID(slot), slot, l))
		}
	}

	s.emit(EventTypeLevelStart, "", LevelPayload{
		Level:   s.round.LevelIndex() + 1,
		Name:    lvl.Name,
		Quota:   s.round.Remaining(),
		Players: len(s.vehicles),
	})
	s.log.Debug().
		Int("level", s.round.LevelIndex()+1).
		Str("name", lvl.Name).
		Int("quota", s.round.Remaining()).
		Int("players", len(s.vehicles)).
		Msg("level started")
}

// Step advances the simulation by one tick. The order is fixed: spawn, intents and AI decisions,
// local timers, movement, projectile flight, collision resolution, power-up pickup, compaction,
// termination check. Once the game is over Step does nothing and keeps returning the final verdict.
func (s *Simulation) Step(inputs map[int]Input) Verdict {
	if s.Finished() {
		return s.verdict
	}
	s.tick++

	// Reseed per tick so a replay can start from any logged tick
	s.seed = s.rng.Int63()
	s.rng.Seed(s.seed)
	s.emit(EventTypeTick, "", TickPayload{RNGSeed: s.seed, VehicleCount: len(s.vehicles)})

	s.spawn()

	players := s.livePlayers()
	for _, v := range players {
		in := inputs[v.Slot]
		if in.HasRotate {
			v.Rotate(in.Rotate)
		}
		if in.Shoot {
			s.shoot(v)
		}
	}
	for _, v := range s.vehicles {
		if v.Role == RoleEnemy && !v.removed {
			s.ai.Decide(v, players)
		}
	}

	for _, v := range s.vehicles {
		if !v.removed {
			v.Update(s.projectiles)
		}
	}

	s.moveVehicles(inputs, players)
	s.advanceProjectiles()
	s.resolveCollisions()
	s.pickUpPowerUps()
	s.compact()

	s.verdict = s.evaluate()
	return s.verdict
}

func (s *Simulation) shoot(v *Vehicle) bool {
	if !v.Shoot(s.projectiles) {
		return false
	}
	p := s.projectiles.Items()[len(s.projectiles.Items())-1]
	s.emit(EventTypeShot, v.String(), ShotPayload{
		VehicleID:    v.ID,
		ProjectileID: p.ID,
		Dir:          p.Dir.String(),
		Power:        p.Power,
	})
	return true
}

func (s *Simulation) spawn() {
	v := s.round.Spawn(s.vehicles, s.nextVehicleID+1)
	if v == nil {
		return
	}
	s.nextVehicleID++
	s.vehicles = append(s.vehicles, v)

	c := v.Box.Center()
	s.emit(EventTypeSpawn, v.String(), SpawnPayload{
		VehicleID:      v.ID,
		Kind:           v.Kind.String(),
		X:              c.X,
		Y:              c.Y,
		CarriesPowerUp: v.CarriesPowerUp,
		Remaining:      s.round.Remaining(),
	})
	s.log.Debug().Uint32("id", uint32(v.ID)).Str("kind", v.Kind.String()).
		Int("remaining", s.round.Remaining()).Msg("enemy spawned")
}

func (s *Simulation) moveVehicles(inputs map[int]Input, players []*Vehicle) {
	for _, v := range players {
		in := inputs[v.Slot]
		dx, dy := sign(in.MoveX)*v.Speed, sign(in.MoveY)*v.Speed
		if dx != 0 || dy != 0 {
			v.AttemptMove(dx, dy, s.grid, s.vehicles)
		}
	}

	for _, v := range s.vehicles {
		if v.Role != RoleEnemy || v.removed {
			continue
		}
		before := v.shot
		s.ai.Drive(v, s.grid, s.vehicles, players, s.projectiles)
		if v.shot != before && v.shot != 0 {
			s.emit(EventTypeShot, v.String(), ShotPayload{
				VehicleID:    v.ID,
				ProjectileID: v.shot,
				Dir:          v.Facing.String(),
				Power:        v.ShotPower(),
			})
		}
	}
}

func (s *Simulation) advanceProjectiles() {
	w, h := s.grid.PixelWidth(), s.grid.PixelHeight()
	for _, p := range s.projectiles.Items() {
		p.Update(w, h)
	}
	for _, pu := range s.powerUps {
		pu.Update()
	}

	wasFortified := s.grid.Fortified()
	s.grid.Tick()
	if wasFortified && !s.grid.Fortified() {
		s.emit(EventTypeFortify, "", FortifyPayload{Active: false})
	}
}

func (s *Simulation) resolveCollisions() {
	s.impacts = s.collide.Resolve(s.grid, s.vehicles, s.projectiles, s.impacts[:0])

	for i := range s.impacts {
		im := &s.impacts[i]
		p := im.Projectile
		source := s.sourceOf(p)

		if im.Kind == ImpactTerrain {
			if im.TileDestroyed {
				s.emit(EventTypeTileDestroyed, source, TilePayload{X: im.TileX, Y: im.TileY, Tile: im.Tile.String()})
				if im.Tile == Base {
					s.log.Debug().Int("x", im.TileX).Int("y", im.TileY).Msg("base destroyed")
				}
			}
			continue
		}

		v := im.Target
		s.emit(EventTypeDamage, source, DamagePayload{
			AttackerID: p.Owner,
			VictimID:   v.ID,
			Absorbed:   im.Absorbed,
			VictimHP:   v.Health,
		})
		if !im.Destroyed {
			continue
		}

		switch {
		case v.Role == RoleEnemy:
			s.emit(EventTypeDestroyed, source, DestroyedPayload{
				VehicleID: v.ID, Role: v.Role.String(), KillerID: p.Owner, Cause: "projectile",
			})
			s.log.Debug().Uint32("id", uint32(v.ID)).Str("kind", v.Kind.String()).
				Uint32("killer", uint32(p.Owner)).Msg("enemy destroyed")
			if v.CarriesPowerUp {
				s.dropPowerUp(v)
			}
		case im.Respawned:
			c := v.Box.Center()
			s.emit(EventTypeRespawn, v.String(), RespawnPayload{VehicleID: v.ID, Lives: v.Lives, X: c.X, Y: c.Y})
			s.log.Debug().Int("slot", v.Slot).Int("lives", v.Lives).Msg("player respawned")
		default:
			s.emit(EventTypeDestroyed, source, DestroyedPayload{
				VehicleID: v.ID, Role: v.Role.String(), KillerID: p.Owner, Cause: "projectile",
			})
			s.log.Debug().Int("slot", v.Slot).Msg("player out of lives")
		}
	}
}

func (s *Simulation) dropPowerUp(v *Vehicle) {
	s.nextPowerUpID++
	t := PowerUpType(s.rng.Intn(int(powerUpTypeCount)))
	pu := NewPowerUp(s.cfg, s.nextPowerUpID, t, Point{X: v.Box.X, Y: v.Box.Y})
	s.powerUps = append(s.powerUps, pu)
	s.emit(EventTypePowerUpDrop, v.String(), PowerUpPayload{
		PowerUpID: pu.ID, Type: t.String(), Effect: t.Effect().String(),
	})
}

func (s *Simulation) pickUpPowerUps() {
	for _, v := range s.vehicles {
		if v.Role != RolePlayer || v.removed {
			continue
		}
		for _, pu := range s.powerUps {
			if pu.removed || !v.Box.Overlaps(pu.Box) {
				continue
			}
			pu.removed = true
			s.applyPowerUp(v, pu)
		}
	}
}

// applyPowerUp dispatches the effect of pu for the collecting player v
func (s *Simulation) applyPowerUp(v *Vehicle, pu *PowerUp) {
	effect := pu.Type.Effect()
	s.emit(EventTypePowerUpPickup, v.String(), PowerUpPayload{
		PowerUpID: pu.ID, Type: pu.Type.String(), Effect: effect.String(), VehicleID: v.ID,
	})

	switch effect {
	case EffectUpgrade:
		v.Upgrade()
	case EffectDestroyAll:
		for _, e := range s.vehicles {
			if e.Role != RoleEnemy || e.removed {
				continue
			}
			e.markRemoved()
			s.emit(EventTypeDestroyed, v.String(), DestroyedPayload{
				VehicleID: e.ID, Role: e.Role.String(), KillerID: v.ID, Cause: "grenade",
			})
		}
	case EffectShield:
		v.ActivateShield(s.cfg.ShieldDuration)
	case EffectFortify:
		n := s.grid.Fortify()
		s.emit(EventTypeFortify, v.String(), FortifyPayload{Active: true, Converted: n})
	case EffectExtraLife:
		v.Lives++
	case EffectFreeze:
		for _, e := range s.vehicles {
			if e.Role == RoleEnemy && !e.removed {
				e.Freeze(s.cfg.FreezeDuration)
			}
		}
	}
	s.log.Debug().Int("slot", v.Slot).Str("effect", effect.String()).Msg("power-up collected")
}

func (s *Simulation) compact() {
	s.vehicles = compactRemoved(s.vehicles)
	s.powerUps = compactRemoved(s.powerUps)
	s.projectiles.Compact()

	if DebugAssertions {
		s.checkInvariants()
	}
}

// checkInvariants verifies the single-outstanding-shot rule and vehicle health bookkeeping
func (s *Simulation) checkInvariants() {
	owners := make(map[VehicleID]int, len(s.vehicles))
	for _, p := range s.projectiles.Items() {
		owners[p.Owner]++
		assertInvariant(owners[p.Owner] <= 1, "vehicle %d owns %d live projectiles", p.Owner, owners[p.Owner])
	}
	for _, v := range s.vehicles {
		assertInvariant(v.Health > 0 || v.Shielded(), "live vehicle %s with health %d", v, v.Health)
		assertInvariant(v.Level >= 1 && v.Level <= MaxUpgradeLevel, "vehicle %s at level %d", v, v.Level)
	}
}

func (s *Simulation) evaluate() Verdict {
	verdict := s.round.Evaluate(s.grid, s.vehicles)
	lvl := s.round.Level()
	payload := LevelPayload{Level: s.round.LevelIndex() + 1, Name: lvl.Name, Players: countLive(s.vehicles, RolePlayer)}

	switch verdict {
	case VerdictLevelComplete:
		s.emit(EventTypeLevelComplete, "", payload)
		lives := s.survivingLives()
		s.round.Advance()
		s.startLevel(lives)
	case VerdictVictory:
		s.emit(EventTypeLevelComplete, "", payload)
		s.emit(EventTypeVictory, "", payload)
		s.log.Info().Uint64("tick", s.tick).Int("levels", s.round.LevelCount()).Msg("all levels cleared")
	case VerdictBaseDestroyed, VerdictNoLives:
		payload.Reason = verdict.String()
		s.emit(EventTypeRoundLost, "", payload)
		s.log.Info().Uint64("tick", s.tick).Str("reason", verdict.String()).
			Int("level", payload.Level).Msg("round lost")
	}
	return verdict
}

func (s *Simulation) survivingLives() map[int]int {
	lives := make(map[int]int, s.players)
	for _, v := range s.vehicles {
		if v.Role == RolePlayer && !v.removed && v.Lives > 0 {
			lives[v.Slot] = v.Lives
		}
	}
	return lives
}

func (s *Simulation) livePlayers() []*Vehicle {
	s.playerBuf = s.playerBuf[:0]
	for _, v := range s.vehicles {
		if v.Role == RolePlayer && !v.removed {
			s.playerBuf = append(s.playerBuf, v)
		}
	}
	return s.playerBuf
}

func (s *Simulation) sourceOf(p *Projectile) string {
	if p.OwnerRole == RolePlayer {
		return fmt.Sprintf("p%d", p.Owner)
	}
	return fmt.Sprintf("e%d", p.Owner)
}

func (s *Simulation) emit(t EventType, source string, payload interface{}) {
	s.events.EmitSimple(t, s.tick, source, payload)
}

// Finished reports whether the game reached a loss or victory
func (s *Simulation) Finished() bool {
	return s.verdict.Lost() || s.verdict == VerdictVictory
}

// Verdict returns the result of the latest termination check
func (s *Simulation) Verdict() Verdict { return s.verdict }

// Player returns the live vehicle for slot, or nil
func (s *Simulation) Player(slot int) *Vehicle {
	for _, v := range s.vehicles {
		if v.Role == RolePlayer && v.Slot == slot && !v.removed {
			return v
		}
	}
	return nil
}

// Vehicle returns the live vehicle with id
func (s *Simulation) Vehicle(id VehicleID) (*Vehicle, error) {
	for _, v := range s.vehicles {
		if v.ID == id && !v.removed {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownVehicle, id)
}

func (s *Simulation) Config() Config                   { return s.cfg }
func (s *Simulation) Grid() *TileGrid                  { return s.grid }
func (s *Simulation) Vehicles() []*Vehicle             { return s.vehicles }
func (s *Simulation) Projectiles() *ProjectileRegistry { return s.projectiles }
func (s *Simulation) PowerUps() []*PowerUp             { return s.powerUps }
func (s *Simulation) Round() *RoundController          { return s.round }
func (s *Simulation) Tick() uint64                     { return s.tick }
func (s *Simulation) Seed() int64                      { return s.seed }
func (s *Simulation) PlayerSlots() int                 { return s.players }

// Enemies returns the live enemy count
func (s *Simulation) Enemies() int { return countLive(s.vehicles, RoleEnemy) }

// EnemiesRemaining is what the HUD shows: enemies still to spawn plus those alive
func (s *Simulation) EnemiesRemaining() int {
	return s.round.Remaining() + s.Enemies()
}

// FillSnapshot copies the current state into dst, capping slices at limits
func (s *Simulation) FillSnapshot(dst *Snapshot, limits ResourceLimits) {
	dst.TickNumber = s.tick
	dst.RNGSeed = s.seed
	dst.GridWidth = s.grid.Width()
	dst.GridHeight = s.grid.Height()
	dst.TileSize = s.grid.TileSize()
	dst.Cells = s.grid.CopyCells(dst.Cells)
	dst.BaseDestroyed = s.grid.BaseDestroyed()
	dst.Fortified = s.grid.Fortified()

	for _, v := range s.vehicles {
		if v.removed || len(dst.Vehicles) >= limits.MaxVehicles {
			continue
		}
		vs := VehicleSnapshot{
			ID:             v.ID,
			Role:           v.Role,
			Slot:           v.Slot,
			Box:            v.Box,
			Facing:         v.Facing,
			Health:         v.Health,
			MaxHealth:      v.MaxHealth,
			Level:          v.Level,
			Lives:          v.Lives,
			Shielded:       v.Shielded(),
			Frozen:         v.Frozen(),
			CarriesPowerUp: v.CarriesPowerUp,
		}
		if v.Role == RoleEnemy {
			vs.Kind = v.Kind.String()
		}
		dst.Vehicles = append(dst.Vehicles, vs)
	}

	for _, p := range s.projectiles.Items() {
		if p.dead || len(dst.Projectiles) >= limits.MaxProjectiles {
			continue
		}
		dst.Projectiles = append(dst.Projectiles, ProjectileSnapshot{
			ID: p.ID, Owner: p.Owner, Box: p.Box, Dir: p.Dir, Power: p.Power,
		})
	}

	for _, pu := range s.powerUps {
		if pu.removed || len(dst.PowerUps) >= limits.MaxPowerUps {
			continue
		}
		dst.PowerUps = append(dst.PowerUps, PowerUpSnapshot{
			ID: pu.ID, Type: pu.Type, Box: pu.Box, Remaining: pu.timer,
		})
	}

	lvl := s.round.Level()
	dst.HUD.Level = s.round.LevelIndex() + 1
	dst.HUD.LevelName = lvl.Name
	dst.HUD.LevelCount = s.round.LevelCount()
	dst.HUD.EnemiesRemaining = s.EnemiesRemaining()
	for slot := 1; slot <= s.players; slot++ {
		hud := PlayerHUD{Slot: slot}
		if v := s.Player(slot); v != nil {
			hud.Lives, hud.Level, hud.Alive = v.Lives, v.Level, true
		}
		dst.HUD.Players = append(dst.HUD.Players, hud)
	}
	dst.HUD.Outcome = s.Outcome()
}

// Outcome is the HUD label for the game state
func (s *Simulation) Outcome() string {
	switch {
	case s.verdict == VerdictVictory:
		return "victory"
	case s.verdict.Lost():
		return "lost"
	default:
		return "running"
	}
}

func sign(x int) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}
