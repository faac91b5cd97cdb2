package render

import (
	"bytes"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tank-battle/internal/game"
)

// snapshotOf builds a 4x3 snapshot with one tile of each interesting type
func snapshotOf(tiles ...game.Tile) *game.Snapshot {
	snap := &game.Snapshot{GridWidth: 4, GridHeight: 3, TileSize: 10}
	snap.Cells = make([]game.Tile, 12)
	copy(snap.Cells, tiles)
	return snap
}

func pixel(t *testing.T, r *FrameRenderer, snap *game.Snapshot, x, y int) color.RGBA {
	t.Helper()
	img := r.Render(snap)
	return img.RGBAAt(x, y)
}

func TestRenderSize(t *testing.T) {
	snap := snapshotOf()
	r := NewFrameRenderer(2)
	w, h := r.Size(snap)
	assert.Equal(t, 80, w)
	assert.Equal(t, 60, h)

	img := r.Render(snap)
	assert.Equal(t, 80, img.Bounds().Dx())
	assert.Equal(t, 60, img.Bounds().Dy())

	assert.Equal(t, 1.0, NewFrameRenderer(0).scale)
}

func TestRenderTiles(t *testing.T) {
	r := NewFrameRenderer(1)
	snap := snapshotOf(game.Empty, game.Steel, game.Water, game.Ice)

	assert.Equal(t, colorBackground, pixel(t, r, snap, 5, 5))
	assert.Equal(t, colorSteel, pixel(t, r, snap, 11, 11))
	assert.Equal(t, colorSteelInner, pixel(t, r, snap, 15, 15))
	assert.Equal(t, colorWater, pixel(t, r, snap, 25, 5))
	assert.Equal(t, colorIce, pixel(t, r, snap, 35, 5))
}

func TestRenderGrassCoversVehicle(t *testing.T) {
	r := NewFrameRenderer(1)
	snap := snapshotOf(game.Grass)
	snap.Vehicles = []game.VehicleSnapshot{{
		Role: game.RolePlayer, Slot: 1,
		Box: game.Rect{X: 0, Y: 0, W: 10, H: 10},
	}}

	under := pixel(t, r, snap, 2, 8)
	snap.Cells[0] = game.Empty
	exposed := pixel(t, r, snap, 2, 8)

	assert.NotEqual(t, under, exposed, "grass must be drawn over the vehicle")
	assert.Equal(t, parseHexColor(playerColors[0]), exposed)
}

func TestRenderProjectile(t *testing.T) {
	r := NewFrameRenderer(1)
	snap := snapshotOf()
	snap.Projectiles = []game.ProjectileSnapshot{{Box: game.Rect{X: 20, Y: 20, W: 4, H: 4}}}

	assert.Equal(t, colorProjectile, pixel(t, r, snap, 22, 22))
}

func TestEncodePNG(t *testing.T) {
	r := NewFrameRenderer(1)
	snap := snapshotOf(game.Brick, game.Base)
	snap.Paused = true
	snap.PowerUps = []game.PowerUpSnapshot{{Type: game.PowerUpStar, Box: game.Rect{X: 30, Y: 10, W: 10, H: 10}}}

	var buf bytes.Buffer
	require.NoError(t, r.EncodePNG(&buf, snap))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 40, img.Bounds().Dx())
	assert.Equal(t, 30, img.Bounds().Dy())
}

func TestRenderReusesContextUntilResize(t *testing.T) {
	r := NewFrameRenderer(1)
	r.Render(snapshotOf())
	first := r.dc
	r.Render(snapshotOf())
	assert.Same(t, first, r.dc)

	big := &game.Snapshot{GridWidth: 5, GridHeight: 5, TileSize: 10, Cells: make([]game.Tile, 25)}
	r.Render(big)
	assert.NotSame(t, first, r.dc)
}

func TestParseHexColor(t *testing.T) {
	assert.Equal(t, color.RGBA{0xE8, 0xC4, 0x28, 255}, parseHexColor("#E8C428"))
	assert.Equal(t, color.RGBA{0xab, 0xcd, 0xef, 255}, parseHexColor("#abcdef"))
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, parseHexColor("nope"))
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, parseHexColor("#GG0000"))
}

func TestFrameRendererCachesFaces(t *testing.T) {
	r := NewFrameRenderer(1)
	banner := r.face(bannerFontSize)
	require.NotNil(t, banner, "embedded font parses")
	assert.Same(t, banner, r.face(bannerFontSize))

	small := r.face(7)
	require.NotNil(t, small)
	assert.Less(t, small.Metrics().Height, banner.Metrics().Height)
	assert.Len(t, r.faces, 2)
}

func TestRenderBannerText(t *testing.T) {
	r := NewFrameRenderer(1)
	snap := &game.Snapshot{GridWidth: 13, GridHeight: 13, TileSize: 16, Cells: make([]game.Tile, 13*13)}

	hasText := func() bool {
		img := r.Render(snap)
		h := img.Bounds().Dy()
		for y := h/2 - 16; y < h/2+16; y++ {
			for x := 0; x < img.Bounds().Dx(); x++ {
				c := img.RGBAAt(x, y)
				if c.R >= 250 && c.G >= 250 && c.B >= 250 {
					return true
				}
			}
		}
		return false
	}

	assert.False(t, hasText())
	snap.Paused = true
	assert.True(t, hasText(), "PAUSED drawn in white over the overlay")

	snap.Paused = false
	snap.HUD.Outcome = "victory"
	assert.True(t, hasText())
}
