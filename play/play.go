// Package play drives an interactive 2048 game session: board state,
// score tracking, and the swipe-then-spawn turn loop, independent of any
// particular frontend. It corresponds to Model.h's Game<N> wrapper, but
// games here are size-agnostic at the value level (grid.Grid carries its
// own N) rather than templated.
package play

import (
	"fmt"

	"github.com/kbrew/tb2048/grid"
	"github.com/kbrew/tb2048/spawner"
)

// MinSize and MaxSize bound the board sizes the rest of the system
// supports; N=2's state space is small enough to tablebase-solve
// interactively, N=8 is the largest the bit-packing comfortably covers.
const (
	MinSize = 2
	MaxSize = 8
)

// Game holds one 2048 session: the current board, the running score, and
// the spawner used to seed new tiles after every swipe.
type Game struct {
	board   *grid.Grid
	score   uint64
	spawner *spawner.Spawner
}

// IsValidGameSize reports whether n is a supported board size.
func IsValidGameSize(n int) bool {
	return n >= MinSize && n <= MaxSize
}

// GetValidGameSizes returns every supported board size in ascending
// order.
func GetValidGameSizes() []int {
	sizes := make([]int, 0, MaxSize-MinSize+1)
	for n := MinSize; n <= MaxSize; n++ {
		sizes = append(sizes, n)
	}
	return sizes
}

// NewGame starts a fresh game on an n x n board with a single starting
// tile, spawned with probability p4 of a displayed-4.
func NewGame(n int, p4 float32) (*Game, error) {
	if !IsValidGameSize(n) {
		return nil, fmt.Errorf("play: unsupported board size %d (want %d..%d)", n, MinSize, MaxSize)
	}
	g := &Game{
		board:   grid.New(n),
		spawner: spawner.New(p4),
	}
	if err := g.spawner.SpawnInitial(g.board); err != nil {
		return nil, err
	}
	return g, nil
}

// ResetGame reinitializes the session on a fresh board of the same size,
// with one new starting tile.
func (g *Game) ResetGame() error {
	g.board = grid.New(g.board.N())
	g.score = 0
	return g.spawner.SpawnInitial(g.board)
}

// Board returns the live board. Callers must not mutate it directly;
// use Swipe.
func (g *Game) Board() *grid.Grid { return g.board }

// GetScore returns the cumulative score: the sum of every fused tile's
// displayed value across the session.
func (g *Game) GetScore() uint64 { return g.score }

// Swipe applies one swipe in dir. If it changes the board, a new tile is
// spawned and moved is true; otherwise the board and score are
// untouched.
func (g *Game) Swipe(dir grid.Dir) (moved bool, err error) {
	before := g.board.Clone()
	delta := g.board.Swipe(dir)
	if g.board.Equal(before) {
		return false, nil
	}
	g.score += delta

	if g.board.NumEmptyTiles() > 0 {
		if _, _, _, err := g.spawner.Spawn(g.board); err != nil {
			return true, err
		}
	}
	return true, nil
}

// IsGameOver reports whether no swipe would change the board.
func (g *Game) IsGameOver() bool {
	return !g.board.HasMoves()
}

// HasWon reports whether the board already contains the win tile.
func (g *Game) HasWon() bool {
	return g.board.HasTile(g.board.WinTile())
}

// PrintGame renders the current board and score as a human-readable
// multi-line string, for CLI/TUI use.
func (g *Game) PrintGame() string {
	return fmt.Sprintf("score: %d\n%s", g.score, g.board.Display())
}
