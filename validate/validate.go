// Package validate empirically checks a constructed tablebase by playing
// out Monte-Carlo rollouts under the tablebase's own policy (BestMove at
// every step) and comparing the observed win rate against the queried
// score, the way preendgame/peg_generic.go cross-checks its endgame
// heuristic against full-depth search before trusting it, and the way
// squava's RunSimulation rolls a policy forward to estimate its value.
package validate

import (
	"math"

	"github.com/samber/lo"

	"github.com/kbrew/tb2048/grid"
	"github.com/kbrew/tb2048/spawner"
	"github.com/kbrew/tb2048/tablebase"
)

// Result summarizes one rollout validation against a single starting
// state.
type Result struct {
	Start          *grid.Grid
	Trials         int
	Wins           int
	WinRate        float64
	TablebaseScore float32
	Delta          float64 // |WinRate - TablebaseScore|, meaningless if TablebaseScore is tablebase.Unknown
}

// RolloutWinRate plays `trials` independent games forward from start
// using tb.BestMove as the policy (falling back to the first legal move
// when BestMove reports no known-score candidate, so an incompletely
// built tablebase can still be rollout-tested), spawning new tiles with
// sp, and reports the fraction that reach the win tile before getting
// stuck.
func RolloutWinRate(tb *tablebase.Tablebase, start *grid.Grid, sp *spawner.Spawner, trials int) Result {
	wins := 0
	for i := 0; i < trials; i++ {
		if rolloutOnce(tb, start, sp) {
			wins++
		}
	}

	winRate := float64(wins) / float64(trials)
	score := tb.Query(start)
	delta := math.NaN()
	if score != tablebase.Unknown {
		delta = math.Abs(winRate - float64(score))
	}

	return Result{
		Start:          start,
		Trials:         trials,
		Wins:           wins,
		WinRate:        winRate,
		TablebaseScore: score,
		Delta:          delta,
	}
}

func rolloutOnce(tb *tablebase.Tablebase, start *grid.Grid, sp *spawner.Spawner) bool {
	g := start.Clone()
	for {
		if g.HasTile(g.WinTile()) {
			return true
		}
		if !g.HasMoves() {
			return false
		}

		dir, ok := tb.BestMove(g)
		if !ok {
			dir, ok = firstLegalMove(g)
			if !ok {
				return false
			}
		}
		g.Swipe(dir)
		if g.NumEmptyTiles() > 0 {
			if _, _, _, err := sp.Spawn(g); err != nil {
				return false
			}
		}
	}
}

func firstLegalMove(g *grid.Grid) (grid.Dir, bool) {
	for _, d := range grid.Dirs {
		child, _ := g.SwipeCopy(d)
		if !child.Equal(g) {
			return d, true
		}
	}
	return 0, false
}

// RolloutMany runs RolloutWinRate over every state in starts, using
// lo.Map for a one-result-per-input batch shape.
func RolloutMany(tb *tablebase.Tablebase, starts []*grid.Grid, sp *spawner.Spawner, trialsEach int) []Result {
	return lo.Map(starts, func(s *grid.Grid, _ int) Result {
		return RolloutWinRate(tb, s, sp, trialsEach)
	})
}

// MaxDelta returns the largest Delta across results, ignoring any whose
// TablebaseScore was unknown (NaN Delta), or NaN if every result was
// unknown.
func MaxDelta(results []Result) float64 {
	known := lo.Filter(results, func(r Result, _ int) bool { return !math.IsNaN(r.Delta) })
	if len(known) == 0 {
		return math.NaN()
	}
	max := known[0].Delta
	for _, r := range known[1:] {
		if r.Delta > max {
			max = r.Delta
		}
	}
	return max
}
