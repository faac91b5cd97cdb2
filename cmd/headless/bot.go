package main

import (
	"math/rand"

	"tank-battle/internal/game"
)

// bot wanders and fires. It has its own random source so it never perturbs the simulation's.
type bot struct {
	rng   *rand.Rand
	slots []botSlot
	buf   map[int]game.Input
}

type botSlot struct {
	dir  game.Direction
	hold int
}

func newBot(seed int64, players int) *bot {
	return &bot{
		rng:   rand.New(rand.NewSource(seed ^ 0x5eed)),
		slots: make([]botSlot, players),
		buf:   make(map[int]game.Input, players),
	}
}

// inputs picks this tick's intents for every live player slot
func (b *bot) inputs(sim *game.Simulation) map[int]game.Input {
	clear(b.buf)
	for i := range b.slots {
		slot := i + 1
		if sim.Player(slot) == nil {
			continue
		}
		s := &b.slots[i]
		if s.hold <= 0 {
			s.dir = game.Directions[b.rng.Intn(len(game.Directions))]
			s.hold = 8 + b.rng.Intn(24)
		}
		s.hold--

		dx, dy := s.dir.Delta()
		b.buf[slot] = game.Input{
			Rotate:    s.dir,
			HasRotate: true,
			MoveX:     dx,
			MoveY:     dy,
			Shoot:     b.rng.Intn(4) == 0,
		}
	}
	return b.buf
}
