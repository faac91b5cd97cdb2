package game

// Tile is the terrain kind of one grid cell
type Tile uint8

const (
	Empty Tile = iota
	Brick
	Steel
	Water
	Ice
	Grass
	Base
)

func (t Tile) String() string {
	switch t {
	case Empty:
		return "empty"
	case Brick:
		return "brick"
	case Steel:
		return "steel"
	case Water:
		return "water"
	case Ice:
		return "ice"
	case Grass:
		return "grass"
	case Base:
		return "base"
	default:
		return "unknown"
	}
}

// BlocksVehicles reports whether vehicles may not overlap the tile.
// Water only stops projectiles; Ice is drivable.
func (t Tile) BlocksVehicles() bool {
	return t == Brick || t == Steel || t == Base
}

// TileGrid is the mutable terrain of one level, stored row-major
type TileGrid struct {
	width, height int
	tileSize      int
	cells         []Tile

	baseDestroyed bool

	fortifyRegion   TileRegion
	fortifyDuration int
	fortifyTimer    int
	fortified       []int // cell indices converted Brick->Steel by the active fortification
}

// NewTileGrid creates an empty grid with the configured size and fortification region
func NewTileGrid(cfg Config) *TileGrid {
	return &TileGrid{
		width:           cfg.GridWidth,
		height:          cfg.GridHeight,
		tileSize:        cfg.TileSize,
		cells:           make([]Tile, cfg.GridWidth*cfg.GridHeight),
		fortifyRegion:   cfg.FortifyRegion,
		fortifyDuration: cfg.FortifyDuration,
	}
}

// NewTileGridFromLevel creates a grid initialized from a level layout
func NewTileGridFromLevel(cfg Config, lvl Level) *TileGrid {
	g := NewTileGrid(cfg)
	for y, row := range lvl.Tiles {
		for x, t := range row {
			g.Set(x, y, t)
		}
	}
	return g
}

func (g *TileGrid) Width() int  { return g.width }
func (g *TileGrid) Height() int { return g.height }

// PixelWidth returns the playfield width in pixels
func (g *TileGrid) PixelWidth() int { return g.width * g.tileSize }

// PixelHeight returns the playfield height in pixels
func (g *TileGrid) PixelHeight() int { return g.height * g.tileSize }

// TileSize returns the side of one cell in pixels
func (g *TileGrid) TileSize() int { return g.tileSize }

// TileAt returns the cell coordinates containing pixel p
func (g *TileGrid) TileAt(p Point) (int, int) {
	return floorDiv(p.X, g.tileSize), floorDiv(p.Y, g.tileSize)
}

// BlocksBox reports whether any vehicle-blocking cell in the 3x3 neighborhood around the
// box center overlaps the box
func (g *TileGrid) BlocksBox(r Rect) bool {
	cx, cy := g.TileAt(r.Center())
	for y := cy - 1; y <= cy+1; y++ {
		for x := cx - 1; x <= cx+1; x++ {
			if !g.Get(x, y).BlocksVehicles() {
				continue
			}
			cell := Rect{X: x * g.tileSize, Y: y * g.tileSize, W: g.tileSize, H: g.tileSize}
			if r.Overlaps(cell) {
				return true
			}
		}
	}
	return false
}

func (g *TileGrid) inBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < g.width && y < g.height
}

// Get returns the tile at (x, y), or Empty outside the grid
func (g *TileGrid) Get(x, y int) Tile {
	if !g.inBounds(x, y) {
		return Empty
	}
	return g.cells[y*g.width+x]
}

// Set writes a tile; writes outside the grid are ignored
func (g *TileGrid) Set(x, y int, t Tile) {
	if !g.inBounds(x, y) {
		return
	}
	g.cells[y*g.width+x] = t
}

// Destroy removes the tile at (x, y) if a projectile of the given power can break it.
// Brick always breaks, Steel needs SteelPiercingPower, Base breaks and flags the loss.
func (g *TileGrid) Destroy(x, y, power int) bool {
	switch g.Get(x, y) {
	case Brick:
		g.Set(x, y, Empty)
		return true
	case Steel:
		if power < SteelPiercingPower {
			return false
		}
		g.Set(x, y, Empty)
		return true
	case Base:
		g.Set(x, y, Empty)
		g.baseDestroyed = true
		return true
	}
	return false
}

// BaseDestroyed reports whether the base tile has been hit
func (g *TileGrid) BaseDestroyed() bool { return g.baseDestroyed }

// Fortified reports whether a fortification is active
func (g *TileGrid) Fortified() bool { return g.fortifyTimer > 0 }

// FortifyRemaining returns the ticks left on the active fortification
func (g *TileGrid) FortifyRemaining() int { return g.fortifyTimer }

// Fortify converts Brick cells of the fortification region to Steel and (re)starts the countdown.
// Cells converted by an earlier, still-active fortification stay on the revert list.
func (g *TileGrid) Fortify() int {
	converted := 0
	r := g.fortifyRegion
	for y := r.Y0; y < r.Y1; y++ {
		for x := r.X0; x < r.X1; x++ {
			if !g.inBounds(x, y) || g.Get(x, y) != Brick {
				continue
			}
			g.Set(x, y, Steel)
			g.fortified = append(g.fortified, y*g.width+x)
			converted++
		}
	}
	g.fortifyTimer = g.fortifyDuration
	if g.fortifyTimer <= 0 {
		g.revertFortification()
	}
	return converted
}

// Tick advances the fortification countdown and reverts the converted cells at zero
func (g *TileGrid) Tick() {
	if g.fortifyTimer <= 0 {
		return
	}
	g.fortifyTimer--
	if g.fortifyTimer == 0 {
		g.revertFortification()
	}
}

// revertFortification restores converted cells that are still Steel.
// A converted cell destroyed meanwhile by a piercing shot stays Empty.
func (g *TileGrid) revertFortification() {
	for _, idx := range g.fortified {
		if g.cells[idx] == Steel {
			g.cells[idx] = Brick
		}
	}
	g.fortified = g.fortified[:0]
	g.fortifyTimer = 0
}

// CopyCells copies the row-major cells into dst, reusing its capacity
func (g *TileGrid) CopyCells(dst []Tile) []Tile {
	return append(dst[:0], g.cells...)
}
