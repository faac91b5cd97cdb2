package game

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallLayout() []string {
	return []string{
		"S.W..",
		".B.I.",
		"..G..",
		".BEB.",
	}
}

func TestParseLevel(t *testing.T) {
	cfg := DefaultConfigFor(5, 4)

	lvl, err := ParseLevel(cfg, LevelSpec{Name: "small", EnemyQuota: 6, Layout: smallLayout()})
	require.NoError(t, err)

	assert.Equal(t, "small", lvl.Name)
	assert.Equal(t, 6, lvl.EnemyQuota)
	assert.Equal(t, Steel, lvl.Tiles[0][0])
	assert.Equal(t, Water, lvl.Tiles[0][2])
	assert.Equal(t, Brick, lvl.Tiles[1][1])
	assert.Equal(t, Ice, lvl.Tiles[1][3])
	assert.Equal(t, Grass, lvl.Tiles[2][2])
	assert.Equal(t, Base, lvl.Tiles[3][2])
	assert.Equal(t, smallLayout(), lvl.Layout())
}

func TestParseLevelErrors(t *testing.T) {
	cfg := DefaultConfigFor(5, 4)

	tests := []struct {
		name   string
		spec   LevelSpec
		errMsg string
	}{
		{
			name:   "too few rows",
			spec:   LevelSpec{Layout: smallLayout()[:3]},
			errMsg: "must have 4 rows",
		},
		{
			name:   "short row",
			spec:   LevelSpec{Layout: []string{"S.W..", ".B.I", "..G..", ".BEB."}},
			errMsg: "row 2 must have 5 characters",
		},
		{
			name:   "unknown code",
			spec:   LevelSpec{Layout: []string{"S.W..", ".B.X.", "..G..", ".BEB."}},
			errMsg: "invalid character 'X' at row 2, col 4",
		},
		{
			name:   "no base",
			spec:   LevelSpec{Layout: []string{".....", ".....", ".....", "....."}},
			errMsg: "at least one base",
		},
		{
			name:   "negative quota",
			spec:   LevelSpec{EnemyQuota: -1, Layout: smallLayout()},
			errMsg: "enemy_quota",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLevel(cfg, tt.spec)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidLevel)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestDefaultLevels(t *testing.T) {
	cfg := DefaultConfig()
	levels, err := DefaultLevels(cfg)
	require.NoError(t, err)
	require.Len(t, levels, 3)

	for _, lvl := range levels {
		g := NewTileGridFromLevel(cfg, lvl)
		assert.Equal(t, Base, g.Get(6, 12), "level %s base", lvl.Name)
		for _, s := range cfg.PlayerStarts {
			assert.False(t, g.Get(s.X, s.Y).BlocksVehicles(), "level %s player start %v", lvl.Name, s)
		}
		for _, s := range cfg.SpawnPoints {
			assert.Equal(t, Empty, g.Get(s.X, s.Y), "level %s spawn point %v", lvl.Name, s)
		}
	}
}

func TestLoadLevelPack(t *testing.T) {
	cfg := DefaultConfigFor(5, 4)
	dir := t.TempDir()

	pack := `{
  "name": "test",
  "levels": [
    {"name": "first", "enemy_quota": 2, "layout": ["S.W..", ".B.I.", "..G..", ".BEB."]},
    {"layout": [".....", ".....", ".....", "..E.."]}
  ]
}`
	path := filepath.Join(dir, "pack.json")
	require.NoError(t, os.WriteFile(path, []byte(pack), 0o644))

	levels, err := LoadLevelPack(cfg, path)
	require.NoError(t, err)
	require.Len(t, levels, 2)
	assert.Equal(t, "first", levels[0].Name)
	assert.Equal(t, 2, levels[0].EnemyQuota)
	assert.Equal(t, "2", levels[1].Name, "unnamed levels are numbered")
	assert.Equal(t, 0, levels[1].EnemyQuota)

	_, err = LoadLevelPack(cfg, filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	_, err = ParseLevelPack(cfg, []byte(`{"levels": []}`))
	assert.ErrorIs(t, err, ErrInvalidLevel)

	_, err = ParseLevelPack(cfg, []byte(`{"levels": [`))
	assert.Error(t, err)

	_, err = ParseLevelPack(cfg, []byte(strings.Replace(pack, "..E..", ".....", 1)))
	assert.ErrorIs(t, err, ErrInvalidLevel)
}
