package game

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrInvalidLevel is returned when a level layout does not fit the grid or uses unknown codes
var ErrInvalidLevel = errors.New("invalid level")

// Level is one parsed level template
type Level struct {
	Name       string
	EnemyQuota int // 0 means Config.EnemyQuota
	Tiles      [][]Tile
}

// LevelPack is the on-disk JSON form of an ordered level list
type LevelPack struct {
	Name   string      `json:"name"`
	Levels []LevelSpec `json:"levels"`
}

// LevelSpec is one level entry of a LevelPack
type LevelSpec struct {
	Name       string   `json:"name"`
	EnemyQuota int      `json:"enemy_quota,omitempty"`
	Layout     []string `json:"layout"`
}

// tileCodes maps layout characters to tiles
var tileCodes = map[rune]Tile{
	'.': Empty,
	'B': Brick,
	'S': Steel,
	'W': Water,
	'I': Ice,
	'G': Grass,
	'E': Base,
}

// TileCode returns the layout character for a tile
func TileCode(t Tile) byte {
	switch t {
	case Brick:
		return 'B'
	case Steel:
		return 'S'
	case Water:
		return 'W'
	case Ice:
		return 'I'
	case Grass:
		return 'G'
	case Base:
		return 'E'
	default:
		return '.'
	}
}

// ParseLevel validates a layout against the grid size and converts it to tiles
func ParseLevel(cfg Config, spec LevelSpec) (Level, error) {
	if len(spec.Layout) != cfg.GridHeight {
		return Level{}, fmt.Errorf("%w %q: layout must have %d rows, got %d",
			ErrInvalidLevel, spec.Name, cfg.GridHeight, len(spec.Layout))
	}
	if spec.EnemyQuota < 0 {
		return Level{}, fmt.Errorf("%w %q: enemy_quota must not be negative", ErrInvalidLevel, spec.Name)
	}

	hasBase := false
	tiles := make([][]Tile, cfg.GridHeight)
	for y, row := range spec.Layout {
		runes := []rune(row)
		if len(runes) != cfg.GridWidth {
			return Level{}, fmt.Errorf("%w %q: row %d must have %d characters, got %d",
				ErrInvalidLevel, spec.Name, y+1, cfg.GridWidth, len(runes))
		}
		tiles[y] = make([]Tile, cfg.GridWidth)
		for x, ch := range runes {
			t, ok := tileCodes[ch]
			if !ok {
				return Level{}, fmt.Errorf("%w %q: invalid character '%c' at row %d, col %d",
					ErrInvalidLevel, spec.Name, ch, y+1, x+1)
			}
			if t == Base {
				hasBase = true
			}
			tiles[y][x] = t
		}
	}
	if !hasBase {
		return Level{}, fmt.Errorf("%w %q: layout must contain at least one base (E) cell", ErrInvalidLevel, spec.Name)
	}

	return Level{Name: spec.Name, EnemyQuota: spec.EnemyQuota, Tiles: tiles}, nil
}

// ParseLevelPack decodes and validates a JSON level pack
func ParseLevelPack(cfg Config, data []byte) ([]Level, error) {
	var pack LevelPack
	if err := json.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("decode level pack: %w", err)
	}
	if len(pack.Levels) == 0 {
		return nil, fmt.Errorf("%w: level pack %q has no levels", ErrInvalidLevel, pack.Name)
	}

	levels := make([]Level, 0, len(pack.Levels))
	for i, spec := range pack.Levels {
		if spec.Name == "" {
			spec.Name = fmt.Sprintf("%d", i+1)
		}
		lvl, err := ParseLevel(cfg, spec)
		if err != nil {
			return nil, err
		}
		levels = append(levels, lvl)
	}
	return levels, nil
}

// LoadLevelPack reads a JSON level pack from disk
func LoadLevelPack(cfg Config, path string) ([]Level, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read level pack: %w", err)
	}
	return ParseLevelPack(cfg, data)
}

// Layout renders the level back into layout rows
func (l Level) Layout() []string {
	rows := make([]string, len(l.Tiles))
	for y, row := range l.Tiles {
		b := make([]byte, len(row))
		for x, t := range row {
			b[x] = TileCode(t)
		}
		rows[y] = string(b)
	}
	return rows
}

// EmptyLevel returns an all-Empty level of the configured size
func EmptyLevel(cfg Config, quota int) Level {
	tiles := make([][]Tile, cfg.GridHeight)
	for y := range tiles {
		tiles[y] = make([]Tile, cfg.GridWidth)
	}
	return Level{Name: "empty", EnemyQuota: quota, Tiles: tiles}
}

var defaultLevelSpecs = []LevelSpec{
	{
		Name: "1",
		Layout: []string{
			".............",
			".B.B.B.B.B.B.",
			".B.B.B.B.B.B.",
			".B.B.BSB.B.B.",
			".B.B.....B.B.",
			".....B.B.....",
			"S.BB.....BB.S",
			".....B.B.....",
			".B.B.BBB.B.B.",
			".B.B.B.B.B.B.",
			".B.B.....B.B.",
			".....BBB.....",
			".....BEB.....",
		},
	},
	{
		Name: "2",
		Layout: []string{
			".............",
			".G.B.S.S.B.G.",
			".G.B.....B.G.",
			".GBB.WWW.BBG.",
			"....B...B....",
			"SS...GGG...SS",
			"..B.IIIII.B..",
			"..B.B...B.B..",
			".WW.B.B.B.WW.",
			"....B...B....",
			".B.B..S..B.B.",
			".....BBB.....",
			".....BEB.....",
		},
	},
	{
		Name: "3",
		Layout: []string{
			".............",
			".SS.B.B.B.SS.",
			".....B.B.....",
			"BB.G.....G.BB",
			"...GSS.SSG...",
			".B.G..B..G.B.",
			".B.WW...WW.B.",
			".B...BBB...B.",
			"...S.....S...",
			".BB.B.I.B.BB.",
			".B..B...B..B.",
			".....BBB.....",
			".....BEB.....",
		},
	},
}

// DefaultLevels returns the built-in 13x13 level pack
func DefaultLevels(cfg Config) ([]Level, error) {
	levels := make([]Level, 0, len(defaultLevelSpecs))
	for _, spec := range defaultLevelSpecs {
		lvl, err := ParseLevel(cfg, spec)
		if err != nil {
			return nil, fmt.Errorf("built-in level: %w", err)
		}
		levels = append(levels, lvl)
	}
	return levels, nil
}
