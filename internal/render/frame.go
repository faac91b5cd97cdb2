// Package render rasterizes game snapshots with gg.
package render

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"strings"
	"sync"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"

	"tank-battle/internal/game"
)

// Palette
var (
	colorBackground = color.RGBA{8, 8, 12, 255}
	colorBrick      = color.RGBA{156, 74, 0, 255}
	colorMortar     = color.RGBA{92, 40, 0, 255}
	colorSteel      = color.RGBA{176, 176, 188, 255}
	colorSteelInner = color.RGBA{236, 236, 244, 255}
	colorWater      = color.RGBA{32, 72, 200, 255}
	colorIce        = color.RGBA{200, 230, 248, 255}
	colorGrass      = color.RGBA{40, 140, 40, 200}
	colorBase       = color.RGBA{232, 196, 40, 255}
	colorBaseDead   = color.RGBA{110, 110, 110, 255}
	colorProjectile = color.RGBA{255, 255, 255, 255}
	colorShield     = color.RGBA{120, 220, 255, 255}
	colorFrozen     = color.RGBA{160, 200, 255, 110}
	colorText       = color.RGBA{255, 255, 255, 255}
	colorOverlay    = color.RGBA{0, 0, 0, 140}
)

// playerColors by slot (1-based)
var playerColors = []string{"#E8C428", "#3CB44B"}

var enemyColors = map[string]string{
	"basic": "#B4B4B4",
	"fast":  "#F58231",
	"power": "#E6194B",
	"heavy": "#911EB4",
}

var powerUpColors = [...]string{
	game.PowerUpStar:    "#FFE119",
	game.PowerUpGrenade: "#E6194B",
	game.PowerUpHelmet:  "#42D4F4",
	game.PowerUpShovel:  "#9A6324",
	game.PowerUpTank:    "#3CB44B",
	game.PowerUpClock:   "#F032E6",
}

// bannerFontSize is the overlay text size in screen pixels
const bannerFontSize = 20

var (
	fontOnce   sync.Once
	parsedBold *opentype.Font
	errFont    error
)

// boldFont parses the embedded Go Bold font once per process
func boldFont() (*opentype.Font, error) {
	fontOnce.Do(func() {
		parsedBold, errFont = opentype.Parse(gobold.TTF)
	})
	return parsedBold, errFont
}

// FrameRenderer draws snapshots. One gg.Context is reused while the playfield size is stable.
type FrameRenderer struct {
	scale float64

	mu    sync.Mutex
	dc    *gg.Context
	faces map[float64]font.Face // by point size; nil entries fall back to gg's built-in face
}

// NewFrameRenderer creates a renderer drawing scale screen pixels per playfield pixel
func NewFrameRenderer(scale float64) *FrameRenderer {
	if scale <= 0 {
		scale = 1
	}
	r := &FrameRenderer{scale: scale, faces: make(map[float64]font.Face)}
	r.face(bannerFontSize)
	return r
}

// face returns the cached face for size, creating it on first use. Callers hold r.mu
// except during construction.
func (r *FrameRenderer) face(size float64) font.Face {
	if f, ok := r.faces[size]; ok {
		return f
	}
	var face font.Face
	if parsed, err := boldFont(); err == nil {
		face, err = opentype.NewFace(parsed, &opentype.FaceOptions{
			Size:    size,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			face = nil
		}
	}
	r.faces[size] = face
	return face
}

func (r *FrameRenderer) useFace(dc *gg.Context, size float64) {
	if f := r.face(size); f != nil {
		dc.SetFontFace(f)
	}
}

// Size returns the output image size for a snapshot
func (r *FrameRenderer) Size(snap *game.Snapshot) (int, int) {
	w := int(math.Round(float64(snap.GridWidth*snap.TileSize) * r.scale))
	h := int(math.Round(float64(snap.GridHeight*snap.TileSize) * r.scale))
	return w, h
}

// Render draws snap and returns a copy of the frame
func (r *FrameRenderer) Render(snap *game.Snapshot) *image.RGBA {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.draw(snap)
	src := r.dc.Image().(*image.RGBA)
	out := image.NewRGBA(src.Rect)
	copy(out.Pix, src.Pix)
	return out
}

// EncodePNG renders snap and writes it to w as PNG
func (r *FrameRenderer) EncodePNG(w io.Writer, snap *game.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.draw(snap)
	return png.Encode(w, r.dc.Image())
}

// draw renders into r.dc; callers hold r.mu
func (r *FrameRenderer) draw(snap *game.Snapshot) {
	w, h := r.Size(snap)
	if r.dc == nil || r.dc.Width() != w || r.dc.Height() != h {
		r.dc = gg.NewContext(w, h)
	}
	dc := r.dc

	dc.Identity()
	dc.SetColor(colorBackground)
	dc.Clear()
	dc.Scale(r.scale, r.scale)

	ts := float64(snap.TileSize)
	drawTiles(dc, snap, ts, func(t game.Tile) bool { return t != game.Grass })
	if len(snap.PowerUps) > 0 {
		r.useFace(dc, math.Max(6, math.Round(ts*0.7)))
		drawPowerUps(dc, snap.PowerUps)
	}
	drawVehicles(dc, snap.Vehicles)
	drawProjectiles(dc, snap.Projectiles)
	// Grass hides whatever drives under it
	drawTiles(dc, snap, ts, func(t game.Tile) bool { return t == game.Grass })

	dc.Identity()
	r.useFace(dc, bannerFontSize)
	drawBanner(dc, snap)
}

func drawTiles(dc *gg.Context, snap *game.Snapshot, ts float64, include func(game.Tile) bool) {
	for y := 0; y < snap.GridHeight; y++ {
		for x := 0; x < snap.GridWidth; x++ {
			t := snap.Cell(x, y)
			if t == game.Empty || !include(t) {
				continue
			}
			drawTile(dc, t, float64(x)*ts, float64(y)*ts, ts, snap.BaseDestroyed)
		}
	}
}

func drawTile(dc *gg.Context, t game.Tile, x, y, ts float64, baseDestroyed bool) {
	switch t {
	case game.Brick:
		dc.SetColor(colorBrick)
		dc.DrawRectangle(x, y, ts, ts)
		dc.Fill()
		// Two courses of offset bricks
		dc.SetColor(colorMortar)
		dc.SetLineWidth(math.Max(1, ts/20))
		half := ts / 2
		dc.DrawLine(x, y+half, x+ts, y+half)
		dc.DrawLine(x+half, y, x+half, y+half)
		dc.DrawLine(x+ts/4, y+half, x+ts/4, y+ts)
		dc.DrawLine(x+3*ts/4, y+half, x+3*ts/4, y+ts)
		dc.Stroke()

	case game.Steel:
		dc.SetColor(colorSteel)
		dc.DrawRectangle(x, y, ts, ts)
		dc.Fill()
		dc.SetColor(colorSteelInner)
		dc.DrawRectangle(x+ts/4, y+ts/4, ts/2, ts/2)
		dc.Fill()

	case game.Water:
		dc.SetColor(colorWater)
		dc.DrawRectangle(x, y, ts, ts)
		dc.Fill()

	case game.Ice:
		dc.SetColor(colorIce)
		dc.DrawRectangle(x, y, ts, ts)
		dc.Fill()

	case game.Grass:
		dc.SetColor(colorGrass)
		dc.DrawRectangle(x, y, ts, ts)
		dc.Fill()

	case game.Base:
		c := colorBase
		if baseDestroyed {
			c = colorBaseDead
		}
		dc.SetColor(c)
		dc.DrawRegularPolygon(5, x+ts/2, y+ts/2, ts*0.45, -math.Pi/2)
		dc.Fill()
		if baseDestroyed {
			dc.SetColor(colorBrick)
			dc.SetLineWidth(math.Max(2, ts/10))
			dc.DrawLine(x+ts*0.2, y+ts*0.2, x+ts*0.8, y+ts*0.8)
			dc.DrawLine(x+ts*0.8, y+ts*0.2, x+ts*0.2, y+ts*0.8)
			dc.Stroke()
		}
	}
}

func drawVehicles(dc *gg.Context, vehicles []game.VehicleSnapshot) {
	for i := range vehicles {
		drawVehicle(dc, &vehicles[i])
	}
}

func drawVehicle(dc *gg.Context, v *game.VehicleSnapshot) {
	x, y := float64(v.Box.X), float64(v.Box.Y)
	w, h := float64(v.Box.W), float64(v.Box.H)
	cx, cy := x+w/2, y+h/2

	dc.SetColor(vehicleColor(v))
	dc.DrawRoundedRectangle(x, y, w, h, w/8)
	dc.Fill()

	// Carriers flash red
	if v.CarriesPowerUp {
		dc.SetColor(color.RGBA{230, 25, 75, 255})
		dc.SetLineWidth(2)
		dc.DrawRoundedRectangle(x+1, y+1, w-2, h-2, w/8)
		dc.Stroke()
	}

	// Damage shows as a darker core on multi-hit tanks
	if v.MaxHealth > 1 && v.Health < v.MaxHealth {
		dc.SetColor(color.RGBA{0, 0, 0, 90})
		dc.DrawCircle(cx, cy, w/4)
		dc.Fill()
	}

	// Turret and barrel toward the facing
	dc.SetColor(color.RGBA{20, 20, 20, 255})
	dc.DrawCircle(cx, cy, w/5)
	dc.Fill()
	dx, dy := v.Facing.Delta()
	dc.SetLineWidth(math.Max(2, w/8))
	dc.DrawLine(cx, cy, cx+float64(dx)*w/2, cy+float64(dy)*h/2)
	dc.Stroke()

	if v.Frozen {
		dc.SetColor(colorFrozen)
		dc.DrawRectangle(x, y, w, h)
		dc.Fill()
	}

	if v.Shielded {
		dc.SetColor(colorShield)
		dc.SetLineWidth(2)
		dc.DrawCircle(cx, cy, math.Max(w, h)*0.65)
		dc.Stroke()
	}
}

func vehicleColor(v *game.VehicleSnapshot) color.Color {
	if v.Role == game.RolePlayer {
		idx := v.Slot - 1
		if idx < 0 || idx >= len(playerColors) {
			idx = 0
		}
		return parseHexColor(playerColors[idx])
	}
	if hex, ok := enemyColors[v.Kind]; ok {
		return parseHexColor(hex)
	}
	return parseHexColor(enemyColors["basic"])
}

func drawProjectiles(dc *gg.Context, projectiles []game.ProjectileSnapshot) {
	dc.SetColor(colorProjectile)
	for _, p := range projectiles {
		dc.DrawRectangle(float64(p.Box.X), float64(p.Box.Y), float64(p.Box.W), float64(p.Box.H))
	}
	dc.Fill()
}

func drawPowerUps(dc *gg.Context, powerUps []game.PowerUpSnapshot) {
	for _, p := range powerUps {
		x, y := float64(p.Box.X), float64(p.Box.Y)
		w, h := float64(p.Box.W), float64(p.Box.H)
		hex := "#FFFFFF"
		if int(p.Type) < len(powerUpColors) {
			hex = powerUpColors[p.Type]
		}
		dc.SetColor(parseHexColor(hex))
		dc.DrawRectangle(x, y, w, h)
		dc.Fill()

		dc.SetColor(colorBackground)
		label := strings.ToUpper(p.Type.String()[:1])
		dc.DrawStringAnchored(label, x+w/2, y+h/2, 0.5, 0.35)
	}
}

// drawBanner overlays PAUSED, GAME OVER or VICTORY in screen space
func drawBanner(dc *gg.Context, snap *game.Snapshot) {
	var text string
	switch {
	case snap.Paused:
		text = "PAUSED"
	case snap.HUD.Outcome == "victory":
		text = "VICTORY"
	case snap.HUD.Outcome == "lost":
		text = "GAME OVER"
	default:
		return
	}

	w, h := float64(dc.Width()), float64(dc.Height())
	dc.SetColor(colorOverlay)
	dc.DrawRectangle(0, h/2-16, w, 32)
	dc.Fill()
	dc.SetColor(colorText)
	dc.DrawStringAnchored(text, w/2, h/2, 0.5, 0.35)
}

// parseHexColor converts "#RRGGBB" to color.RGBA, white on malformed input
func parseHexColor(hex string) color.RGBA {
	c := color.RGBA{255, 255, 255, 255}
	if len(hex) != 7 || hex[0] != '#' {
		return c
	}
	var v [3]uint8
	for i := range v {
		hi, ok1 := hexDigit(hex[1+2*i])
		lo, ok2 := hexDigit(hex[2+2*i])
		if !ok1 || !ok2 {
			return c
		}
		v[i] = hi<<4 | lo
	}
	return color.RGBA{v[0], v[1], v[2], 255}
}

func hexDigit(b byte) (uint8, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, true
	}
	return 0, false
}
