package rules

import (
	"math/rand"
	"testing"

	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game/core"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game/mapgen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openLayout(t *testing.T) *mapgen.Layout {
	t.Helper()
	config := mapgen.DefaultMapConfig(10, 20)
	config.Layout = mapgen.LayoutOpen
	l, err := mapgen.NewGenerator(config, rand.New(rand.NewSource(12345))).Generate()
	require.NoError(t, err)
	return l
}

func TestIsCapture(t *testing.T) {
	l := openLayout(t)

	assert.True(t, IsCapture(l, core.TeamA, core.At(4, 1), core.TeamA))
	assert.False(t, IsCapture(l, core.TeamA, core.At(4, 1), core.NoTeam), "not carrying")
	assert.False(t, IsCapture(l, core.TeamA, core.At(4, 1), core.TeamB), "opponent carrying")
	assert.False(t, IsCapture(l, core.TeamA, core.At(3, 1), core.TeamA), "outside home")
	assert.True(t, IsCapture(l, core.TeamB, core.At(5, 17), core.TeamB))
	assert.False(t, IsCapture(l, core.NoTeam, core.At(4, 1), core.NoTeam))
}

func TestLegalActionMask(t *testing.T) {
	l := openLayout(t)
	far := core.At(0, 10)

	t.Run("corner", func(t *testing.T) {
		mask := LegalActionMask(l.Terrain, core.TeamA, core.At(0, 0), far)
		assert.Equal(t, [core.NumActions]bool{false, true, false, true}, mask)
	})

	t.Run("opposite corner", func(t *testing.T) {
		mask := LegalActionMask(l.Terrain, core.TeamA, core.At(9, 19), far)
		assert.Equal(t, [core.NumActions]bool{true, false, true, false}, mask)
	})

	t.Run("enemy home and opponent block", func(t *testing.T) {
		// (5,16) borders team B's home at (5,17); opponent stands above at (4,16)
		mask := LegalActionMask(l.Terrain, core.TeamA, core.At(5, 16), core.At(4, 16))
		assert.Equal(t, [core.NumActions]bool{false, true, true, false}, mask)
	})

	t.Run("obstacle blocks", func(t *testing.T) {
		terrain := l.Terrain.Clone()
		terrain.Set(core.At(5, 4), core.CellObstacle)
		assert.False(t, CanEnter(terrain, core.TeamA, core.At(5, 4), far))
		assert.True(t, CanEnter(terrain, core.TeamA, core.At(5, 3), far))
		assert.True(t, CanEnter(terrain, core.TeamA, core.At(4, 1), far), "own home is open")
	})
}
