package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTileGridOutOfBounds(t *testing.T) {
	cfg := DefaultConfigFor(5, 4)
	g := NewTileGrid(cfg)
	g.Set(0, 0, Brick)

	coords := []struct{ x, y int }{
		{-1, 0}, {0, -1}, {5, 0}, {0, 4}, {-100, -100}, {100, 100},
	}
	for _, c := range coords {
		assert.Equal(t, Empty, g.Get(c.x, c.y), "get(%d,%d)", c.x, c.y)

		g.Set(c.x, c.y, Steel)
		assert.False(t, g.Destroy(c.x, c.y, 4), "destroy(%d,%d)", c.x, c.y)
	}

	// Nothing inside the grid changed
	assert.Equal(t, Brick, g.Get(0, 0))
	for y := 0; y < 4; y++ {
		for x := 0; x < 5; x++ {
			if x == 0 && y == 0 {
				continue
			}
			assert.Equal(t, Empty, g.Get(x, y))
		}
	}
	assert.False(t, g.BaseDestroyed())
}

func TestTileGridDestroy(t *testing.T) {
	tests := []struct {
		name      string
		tile      Tile
		power     int
		destroyed bool
		after     Tile
		baseHit   bool
	}{
		{"brick power 1", Brick, 1, true, Empty, false},
		{"brick power 4", Brick, 4, true, Empty, false},
		{"steel power 1", Steel, 1, false, Steel, false},
		{"steel power 2", Steel, 2, false, Steel, false},
		{"steel power 3", Steel, 3, true, Empty, false},
		{"steel power 4", Steel, 4, true, Empty, false},
		{"base", Base, 1, true, Empty, true},
		{"water", Water, 4, false, Water, false},
		{"grass", Grass, 4, false, Grass, false},
		{"ice", Ice, 4, false, Ice, false},
		{"empty", Empty, 4, false, Empty, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewTileGrid(DefaultConfig())
			g.Set(3, 3, tt.tile)

			assert.Equal(t, tt.destroyed, g.Destroy(3, 3, tt.power))
			assert.Equal(t, tt.after, g.Get(3, 3))
			assert.Equal(t, tt.baseHit, g.BaseDestroyed())
		})
	}
}

func TestTileGridFortify(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FortifyDuration = 5
	g := NewTileGrid(cfg)

	// Classic base ring plus a pre-existing steel and an empty gap inside the region
	g.Set(6, 12, Base)
	ring := []Point{{5, 11}, {6, 11}, {7, 11}, {5, 12}, {7, 12}}
	for _, p := range ring {
		g.Set(p.X, p.Y, Brick)
	}
	g.Set(4, 11, Steel)
	g.Set(1, 11, Brick) // outside the region

	converted := g.Fortify()
	assert.Equal(t, len(ring), converted)
	assert.True(t, g.Fortified())
	for _, p := range ring {
		assert.Equal(t, Steel, g.Get(p.X, p.Y), "ring %v", p)
	}
	assert.Equal(t, Base, g.Get(6, 12))
	assert.Equal(t, Empty, g.Get(8, 11))
	assert.Equal(t, Brick, g.Get(1, 11))

	// A piercing shot removes one converted cell meanwhile
	require.True(t, g.Destroy(5, 12, 3))

	for i := 0; i < 4; i++ {
		g.Tick()
		assert.True(t, g.Fortified(), "still fortified after %d ticks", i+1)
		assert.Equal(t, Steel, g.Get(6, 11))
	}

	g.Tick()
	assert.False(t, g.Fortified())
	for _, p := range []Point{{5, 11}, {6, 11}, {7, 11}, {7, 12}} {
		assert.Equal(t, Brick, g.Get(p.X, p.Y), "reverted %v", p)
	}
	assert.Equal(t, Empty, g.Get(5, 12), "destroyed cell stays empty")
	assert.Equal(t, Steel, g.Get(4, 11), "pre-existing steel untouched")
	assert.Equal(t, Empty, g.Get(8, 11), "empty cell untouched")
}

func TestTileGridFortifyRefresh(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FortifyDuration = 3
	g := NewTileGrid(cfg)
	g.Set(6, 11, Brick)

	g.Fortify()
	g.Tick()
	g.Tick()
	g.Fortify() // countdown restarts at 3
	g.Tick()
	g.Tick()
	assert.Equal(t, Steel, g.Get(6, 11))
	g.Tick()
	assert.Equal(t, Brick, g.Get(6, 11))
}

func TestTileGridBlocksBox(t *testing.T) {
	cfg := DefaultConfig()
	g := NewTileGrid(cfg)
	g.Set(5, 5, Brick)
	g.Set(7, 5, Water)

	size := cfg.VehicleSize()
	beside := RectAround(cfg.TileCenter(4, 5), size, size)
	assert.False(t, g.BlocksBox(beside), "a box next to the brick only shares spacing")
	assert.True(t, g.BlocksBox(beside.Translate(3, 0)))
	assert.False(t, g.BlocksBox(RectAround(cfg.TileCenter(7, 5), size, size)), "water does not block vehicles")
}
