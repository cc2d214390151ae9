package tablebase

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/kbrew/tb2048/grid"
)

// Tablebase runs the two-phase construction algorithm (forward edge
// generation, then retrograde score propagation) over a Store, and
// answers queries against whatever portion of the graph has been scored.
//
// Construction is strictly single-threaded and cooperative: Init spawns
// exactly one extra goroutine, a progress ticker, via errgroup, rather
// than a worker pool. There is no parallel construction here; two
// workers racing on the same Store would violate its single-writer
// contract.
type Tablebase struct {
	store Store
	n     int
	p4    float32

	nodesTouched uint64
}

// New returns a Tablebase over store for boards of side n, with p4 the
// probability that a spawned tile is a 4 (exponent 2) rather than a 2
// (exponent 1).
func New(store Store, n int, p4 float32) *Tablebase {
	return &Tablebase{store: store, n: n, p4: p4}
}

// terminalScore classifies g as a win, a loss, or non-terminal, per the
// board's win/stuck rules: a win tile present means win (score 1); no
// legal move on a non-empty board means loss (score 0).
func terminalScore(g *grid.Grid) (float32, bool) {
	if g.HasTile(g.WinTile()) {
		return 1.0, true
	}
	if !g.IsEmptyGrid() && !g.HasMoves() {
		return 0.0, true
	}
	return 0, false
}

// Init runs construction to completion with no depth cutoff. Equivalent
// to calling PartialInit repeatedly with no action budget until it
// reports done.
func (tb *Tablebase) Init(ctx context.Context) error {
	_, err := tb.partialInit(ctx, 0, 0)
	return err
}

// PartialInit runs at most maxActions queue-pop operations (edge-phase
// pops plus score-phase pops combined) before returning, so a caller can
// checkpoint between calls. maxDepth caps the edge-generation BFS depth;
// zero means unlimited. It returns true once construction has reached a
// fixed point (both queues drained).
func (tb *Tablebase) PartialInit(ctx context.Context, maxActions, maxDepth int) (bool, error) {
	return tb.partialInit(ctx, maxActions, maxDepth)
}

func (tb *Tablebase) partialInit(ctx context.Context, maxActions, maxDepth int) (bool, error) {
	if err := tb.ensureEdgeQueueSeeded(); err != nil {
		return false, err
	}

	g, ctx := errgroup.WithContext(ctx)
	tickerDone := make(chan struct{})
	g.Go(func() error {
		t := time.NewTicker(5 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				log.Info().Uint64("nodes_touched", tb.nodesTouched).Msg("tablebase construction in progress")
			case <-tickerDone:
				return nil
			case <-ctx.Done():
				return nil
			}
		}
	})

	actions := 0
	var done bool
	var workErr error
loop:
	for {
		select {
		case <-ctx.Done():
			workErr = ctx.Err()
			break loop
		default:
		}

		edgeEmpty, err := tb.store.EdgeQueueEmpty()
		if err != nil {
			workErr = err
			break loop
		}
		if !edgeEmpty {
			if maxActions > 0 && actions >= maxActions {
				break loop
			}
			if err := tb.stepEdgePhase(maxDepth); err != nil {
				workErr = err
				break loop
			}
			actions++
			tb.nodesTouched++
			continue
		}

		seeded, err := tb.store.ScoreQueueInitialized()
		if err != nil {
			workErr = err
			break loop
		}
		if !seeded {
			if err := tb.ensureScoreQueueSeeded(); err != nil {
				workErr = err
				break loop
			}
		}

		scoreEmpty, err := tb.store.ScoreQueueEmpty()
		if err != nil {
			workErr = err
			break loop
		}
		if scoreEmpty {
			done = true
			break loop
		}
		if maxActions > 0 && actions >= maxActions {
			break loop
		}
		if err := tb.stepScorePhase(); err != nil {
			workErr = err
			break loop
		}
		actions++
		tb.nodesTouched++
	}

	close(tickerDone)
	_ = g.Wait()

	if workErr != nil {
		return false, workErr
	}
	if done {
		log.Info().Uint64("nodes_touched", tb.nodesTouched).Msg("tablebase construction complete")
	}
	return done, nil
}

func (tb *Tablebase) ensureEdgeQueueSeeded() error {
	ok, err := tb.store.EdgeQueueInitialized()
	if err != nil || ok {
		return err
	}
	return tb.store.WithStep(func() error {
		root := grid.New(tb.n)
		if err := tb.store.SetNode(root); err != nil {
			return err
		}
		if err := tb.store.PushToEdgeQueue(root, 0); err != nil {
			return err
		}
		return tb.store.SetEdgeQueueInitialized()
	})
}

func (tb *Tablebase) ensureScoreQueueSeeded() error {
	if err := tb.store.CopyNodesToScoreQueue(); err != nil {
		return err
	}
	return tb.store.SetScoreQueueInitialized()
}

// stepEdgePhase pops one (state, depth) pair and materializes both kinds
// of outgoing edges from it unconditionally: a state's spawn edges (it
// as a post-move board, about to be spawned into) and its swipe edges
// (it as a pre-move board, about to be swiped) are both generated from
// the same pop, regardless of how s was first reached. This matters
// because the same grid content can legitimately arise via both a spawn
// and a swipe from different parents elsewhere in the graph, since
// nothing about a grid's bytes records how it got there; gating
// generation on BFS depth parity would leave one of the two roles
// without its own outgoing edges whenever that coincidence occurs,
// stalling the affected score slot forever in phase 2. Spawn generation
// is naturally a no-op on a full board (E=0, nothing to iterate) and
// swipe generation is naturally a no-op on a board no swipe changes
// (e.g. the empty board), so there is no special-casing needed for
// either role lacking edges of the other kind.
func (tb *Tablebase) stepEdgePhase(maxDepth int) error {
	return tb.store.WithStep(func() error {
		s, depth, err := tb.store.PopFromEdgeQueue()
		if err != nil {
			return err
		}

		if _, terminal := terminalScore(s); terminal {
			return nil
		}

		if err := tb.generateSpawnEdges(s, depth, maxDepth); err != nil {
			return err
		}
		return tb.generateSwipeEdges(s, depth, maxDepth)
	})
}

func (tb *Tablebase) generateSwipeEdges(s *grid.Grid, depth, maxDepth int) error {
	seen := make(map[string]bool, 4)
	for _, d := range grid.Dirs {
		child, _ := s.SwipeCopy(d)
		if child.Equal(s) {
			continue
		}
		key := child.Key()
		if seen[key] {
			continue
		}
		seen[key] = true

		if err := tb.linkChild(s, child, SwipeWeight, depth, maxDepth); err != nil {
			return err
		}
	}
	return nil
}

// generateSpawnEdges is a no-op when s has no empty cell (E=0): this is
// not an error condition, just zero iterations of the per-empty-cell
// loop. A genuine post-move board always has at least one
// empty cell (a swipe that changes the board either slides into an
// existing empty or fuses two tiles into one, freeing a cell), so E=0
// only ever arises for a pre-move board that happens to be completely
// full; its (unused) s_inter resolves to the vacuous sum, 0.
func (tb *Tablebase) generateSpawnEdges(s *grid.Grid, depth, maxDepth int) error {
	type cell struct{ r, c int }
	var empties []cell
	for r := 0; r < tb.n; r++ {
		for c := 0; c < tb.n; c++ {
			if s.IsEmpty(r, c) {
				empties = append(empties, cell{r, c})
			}
		}
	}
	if len(empties) == 0 {
		return nil
	}
	e := float32(len(empties))

	for _, cl := range empties {
		for _, tileExp := range [2]uint{1, 2} {
			child := s.Clone()
			child.WriteTile(cl.r, cl.c, tileExp)

			weight := (1 - tb.p4) / e
			if tileExp == 2 {
				weight = tb.p4 / e
			}
			if err := tb.linkChild(s, child, weight, depth, maxDepth); err != nil {
				return err
			}
		}
	}
	return nil
}

// linkChild records parent->child (creating the node if new) and always
// adds the edge; the maxDepth cutoff gates only whether a brand-new
// child gets pushed back onto the edge queue for its own future
// expansion, never whether the edge itself is recorded.
func (tb *Tablebase) linkChild(parent, child *grid.Grid, weight float32, parentDepth, maxDepth int) error {
	known, err := tb.store.HasNode(child)
	if err != nil {
		return err
	}
	if !known {
		if err := tb.store.SetNode(child); err != nil {
			return err
		}
		if maxDepth <= 0 || parentDepth < maxDepth {
			if err := tb.store.PushToEdgeQueue(child, parentDepth+1); err != nil {
				return err
			}
		}
	}
	return tb.store.AddEdge(parent, child, weight)
}

// stepScorePhase pops one state and, if its score is not already fully
// known, applies the terminal rule or the max/expectation recurrence
// over its children. Any node whose score changes requeues its parents
// that are still missing a score, draining the queue to a fixed point
// per the standard retrograde-analysis pattern.
func (tb *Tablebase) stepScorePhase() error {
	return tb.store.WithStep(func() error {
		s, err := tb.store.PopFromScoreQueue()
		if err != nil {
			return err
		}

		final, inter, err := tb.store.GetNodeScores(s)
		if err != nil {
			return err
		}
		if final != Unknown && inter != Unknown {
			return nil
		}

		changed := false
		if term, terminal := terminalScore(s); terminal {
			if final == Unknown {
				if err := tb.store.AddNonInterScore(s, term); err != nil {
					return err
				}
				final, changed = term, true
			}
			if inter == Unknown {
				if err := tb.store.AddInterScore(s, term); err != nil {
					return err
				}
				inter, changed = term, true
			}
		} else {
			hasEdge, err := tb.store.HasEdge(s)
			if err != nil {
				return err
			}
			if !hasEdge {
				log.Warn().Str("state", s.String()).Msg("tablebase: state has no recorded edges and is not terminal; defaulting to 0.5 (depth cutoff?)")
				if final == Unknown {
					if err := tb.store.AddNonInterScore(s, 0.5); err != nil {
						return err
					}
					final, changed = 0.5, true
				}
				if inter == Unknown {
					if err := tb.store.AddInterScore(s, 0.5); err != nil {
						return err
					}
					inter, changed = 0.5, true
				}
			} else {
				edges, err := tb.store.GetEdges(s)
				if err != nil {
					return err
				}
				if final == Unknown {
					v, ok, err := tb.resolveFinal(edges)
					if err != nil {
						return err
					}
					if ok {
						if err := tb.store.AddNonInterScore(s, v); err != nil {
							return err
						}
						final, changed = v, true
					}
				}
				if inter == Unknown {
					v, ok, err := tb.resolveInter(edges)
					if err != nil {
						return err
					}
					if ok {
						if err := tb.store.AddInterScore(s, v); err != nil {
							return err
						}
						inter, changed = v, true
					}
				}
			}
		}

		if !changed {
			return nil
		}
		return tb.requeueParents(s)
	})
}

// resolveFinal computes s_final(s) = max over swipe children of
// s_inter(child), or reports ok=false if any swipe child's s_inter is
// still unknown.
func (tb *Tablebase) resolveFinal(edges []EdgeRef) (float32, bool, error) {
	var best float32
	have := false
	for _, e := range edges {
		if e.Weight != SwipeWeight {
			continue
		}
		_, ci, err := tb.store.GetNodeScores(e.Child)
		if err != nil {
			return 0, false, err
		}
		if ci == Unknown {
			return 0, false, nil
		}
		if !have || ci > best {
			best, have = ci, true
		}
	}
	return best, have, nil
}

// resolveInter computes s_inter(s) = sum over spawn children of
// weight*s_final(child), or reports ok=false if any spawn child's
// s_final is still unknown. With no spawn children the sum is 0.
func (tb *Tablebase) resolveInter(edges []EdgeRef) (float32, bool, error) {
	var sum float32
	for _, e := range edges {
		if e.Weight == SwipeWeight {
			continue
		}
		cf, _, err := tb.store.GetNodeScores(e.Child)
		if err != nil {
			return 0, false, err
		}
		if cf == Unknown {
			return 0, false, nil
		}
		sum += e.Weight * cf
	}
	return sum, true, nil
}

func (tb *Tablebase) requeueParents(s *grid.Grid) error {
	parents, err := tb.store.GetParents(s)
	if err != nil {
		return err
	}
	for _, p := range parents {
		pf, pi, err := tb.store.GetNodeScores(p)
		if err != nil {
			return err
		}
		if pf == Unknown || pi == Unknown {
			if err := tb.store.PushToScoreQueue(p); err != nil {
				return err
			}
		}
	}
	return nil
}

// Query returns s_final(g), the win probability under optimal play from
// a pre-move state g (a board about to be swiped), assuming construction
// has reached g. Returns Unknown if g was never recorded or its score is
// not yet resolved. The empty board has no s_final (it has no swipe
// edges: there's nothing to slide); query its expected value with
// QueryInter instead.
func (tb *Tablebase) Query(g *grid.Grid) float32 {
	final, _, err := tb.store.GetNodeScores(g)
	if err != nil {
		return Unknown
	}
	return final
}

// QueryInter returns s_inter(g), the expected win probability of a
// spawn-role state g: either a post-move board (right after a swipe,
// before the next spawn) or the empty board before the game's first
// spawn.
func (tb *Tablebase) QueryInter(g *grid.Grid) float32 {
	_, inter, err := tb.store.GetNodeScores(g)
	if err != nil {
		return Unknown
	}
	return inter
}

// BestMove returns the direction maximizing s_inter(swipe(g, dir)) among
// directions that change the board, breaking ties in grid.Dirs order
// (left, right, up, down). ok is false if g has no legal move or no
// candidate's score is known.
func (tb *Tablebase) BestMove(g *grid.Grid) (dir grid.Dir, ok bool) {
	var best float32
	found := false
	for _, d := range grid.Dirs {
		child, _ := g.SwipeCopy(d)
		if child.Equal(g) {
			continue
		}
		_, inter, err := tb.store.GetNodeScores(child)
		if err != nil || inter == Unknown {
			continue
		}
		if !found || inter > best {
			best, dir, found = inter, d, true
		}
	}
	return dir, found
}

// RecursiveQuery descends up to maxDepth plies from g, appending every
// (state, score) pair it resolves along the principal line (the
// BestMove child at each step) to out, and returns the extended slice.
// It stops early if a state's score is unknown or the game has ended.
func (tb *Tablebase) RecursiveQuery(g *grid.Grid, depth, maxDepth int, out []ScoredState) []ScoredState {
	if depth >= maxDepth {
		return out
	}
	final := tb.Query(g)
	out = append(out, ScoredState{State: g, Score: final})
	if final == Unknown {
		return out
	}
	if _, terminal := terminalScore(g); terminal {
		return out
	}
	dir, ok := tb.BestMove(g)
	if !ok {
		return out
	}
	child, _ := g.SwipeCopy(dir)
	return tb.RecursiveQuery(child, depth+1, maxDepth, out)
}

// ScoredState pairs a state with its resolved score, the element type of
// RecursiveQuery's principal-line trace.
type ScoredState struct {
	State *grid.Grid
	Score float32
}

// PrincipalLineScores extracts just the scores from a RecursiveQuery
// trace, a small lo.Map projection rather than a hand-written loop.
func PrincipalLineScores(trace []ScoredState) []float32 {
	return lo.Map(trace, func(s ScoredState, _ int) float32 { return s.Score })
}
