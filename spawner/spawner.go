// Package spawner generates the random tile placements that follow every
// successful swipe, drawing its randomness from lukechampine.com/frand
// instead of math/rand.
package spawner

import (
	"errors"

	"lukechampine.com/frand"

	"github.com/kbrew/tb2048/grid"
)

// ErrBoardFull is returned by Spawn when g has no empty cell left.
var ErrBoardFull = errors.New("spawner: board is full")

// Spawner places a single tile into a random empty cell of a grid after
// every swipe, choosing a displayed-4 tile with probability P4 and a
// displayed-2 tile otherwise.
type Spawner struct {
	P4 float32
}

// New returns a Spawner with the given probability of spawning a
// displayed-4 tile.
func New(p4 float32) *Spawner {
	return &Spawner{P4: p4}
}

// Spawn writes one new tile into a uniformly random empty cell of g and
// reports which cell and exponent were chosen. Returns ErrBoardFull if g
// has no empty cell.
func (s *Spawner) Spawn(g *grid.Grid) (row, col int, tileExp uint, err error) {
	empty := s.NumEmptyTiles(g)
	if empty == 0 {
		return 0, 0, 0, ErrBoardFull
	}

	target := int(frand.Uint64n(uint64(empty)))
	n := g.N()
	seen := 0
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			if !g.IsEmpty(r, c) {
				continue
			}
			if seen == target {
				tileExp = uint(1)
				// draw against a fixed-point threshold rather than a
				// float so the only frand primitive this package needs
				// is Uint64n, matching zobrist/hash.go's usage.
				const scale = uint64(1) << 32
				if frand.Uint64n(scale) < uint64(s.P4*float32(scale)) {
					tileExp = 2
				}
				g.WriteTile(r, c, tileExp)
				return r, c, tileExp, nil
			}
			seen++
		}
	}
	// unreachable: empty counts the same cells this loop walks.
	return 0, 0, 0, ErrBoardFull
}

// NumEmptyTiles is a thin pass-through kept local so callers don't need
// to import grid just to count empties before deciding whether to spawn.
func (s *Spawner) NumEmptyTiles(g *grid.Grid) int {
	return g.NumEmptyTiles()
}

// SpawnInitial places the single starting tile of a fresh game into a
// random empty cell.
func (s *Spawner) SpawnInitial(g *grid.Grid) error {
	_, _, _, err := s.Spawn(g)
	return err
}
