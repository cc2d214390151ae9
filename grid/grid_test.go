package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadWriteRoundTrip(t *testing.T) {
	for n := 2; n <= 8; n++ {
		g := New(n)
		winTile := g.WinTile()
		tile := uint(0)
		for r := 0; r < n; r++ {
			for c := 0; c < n; c++ {
				g.WriteTile(r, c, tile)
				require.Equal(t, tile, g.ReadTile(r, c), "n=%d r=%d c=%d", n, r, c)
				tile++
				if tile > winTile {
					tile = 0
				}
			}
		}
	}
}

func TestEqualGridsHashEqual(t *testing.T) {
	a := New(4)
	b := New(4)
	a.WriteTile(1, 1, 3)
	b.WriteTile(1, 1, 3)
	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Hash(), b.Hash())
	assert.Equal(t, a.Key(), b.Key())

	b.WriteTile(0, 0, 1)
	assert.False(t, a.Equal(b))
}

func TestEmptyGridIsZero(t *testing.T) {
	g := New(3)
	assert.True(t, g.IsEmptyGrid())
	assert.Equal(t, 9, g.NumEmptyTiles())
}

func TestFromBytesRejectsWrongLength(t *testing.T) {
	g := New(4)
	_, err := FromBytes(4, g.Bytes()[:len(g.Bytes())-1])
	require.Error(t, err)
}

func TestSwipeScenarioFourInARow(t *testing.T) {
	// Grid [[1,1,2,2]] (one row, modeled as row 0 of an otherwise empty
	// 4x4 board) swiped left
	// yields [[2,3,0,0]], score delta 2^2+2^3=12.
	g := newRow(t, []uint{1, 1, 2, 2})
	delta := g.Swipe(Left)
	assert.Equal(t, []uint{2, 3, 0, 0}, rowOf(g))
	assert.EqualValues(t, 12, delta)
}

func TestSwipeScenarioAllFourEqual(t *testing.T) {
	g := newRow(t, []uint{2, 2, 2, 2})
	delta := g.Swipe(Left)
	assert.Equal(t, []uint{3, 3, 0, 0}, rowOf(g))
	assert.EqualValues(t, 16, delta)
}

func TestSwipeScenarioRightWithGaps(t *testing.T) {
	g := newRow(t, []uint{1, 0, 1, 0})
	delta := g.Swipe(Right)
	assert.Equal(t, []uint{0, 0, 0, 2}, rowOf(g))
	assert.EqualValues(t, 4, delta)
}

func TestFuseAtMostOnce(t *testing.T) {
	// Four equal tiles must fuse pairwise, never cascade into one tile.
	g := newRow(t, []uint{5, 5, 5, 5})
	g.Swipe(Left)
	assert.Equal(t, []uint{6, 6, 0, 0}, rowOf(g))
}

func TestSwipeIdempotentAfterNoFurtherMotion(t *testing.T) {
	g := newRow(t, []uint{1, 1, 2, 2})
	g.Swipe(Left)
	before := g.Clone()
	delta := g.Swipe(Left)
	assert.True(t, g.Equal(before))
	assert.EqualValues(t, 0, delta)
}

func TestHasMovesEmptyGridFalseButNotTerminal(t *testing.T) {
	g := New(2)
	assert.False(t, g.HasMoves())
}

func TestHasMovesFullStuckGrid(t *testing.T) {
	// A full grid with no two equal adjacent tiles and no empties has no
	// moves in any direction.
	g := New(2)
	g.WriteTile(0, 0, 1)
	g.WriteTile(0, 1, 2)
	g.WriteTile(1, 0, 3)
	g.WriteTile(1, 1, 1)
	assert.False(t, g.HasMoves())
}

func TestWinTileQuery(t *testing.T) {
	g := New(2)
	assert.False(t, g.HasTile(g.WinTile()))
	g.WriteTile(0, 0, g.WinTile())
	assert.True(t, g.HasTile(g.WinTile()))
}

// newRow builds a len(vals) x len(vals) Grid with vals written into row 0
// and every other row left empty; used only to exercise
// slideLine through the public Swipe API with a handful of hand-worked
// fusion scenarios.
func newRow(t *testing.T, vals []uint) *Grid {
	t.Helper()
	g := New(len(vals))
	for c, v := range vals {
		g.WriteTile(0, c, v)
	}
	return g
}

func rowOf(g *Grid) []uint {
	out := make([]uint, g.N())
	for c := 0; c < g.N(); c++ {
		out[c] = g.ReadTile(0, c)
	}
	return out
}
