package tablebase

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/kbrew/tb2048/grid"
)

// BuildRecursive builds the tablebase with a direct recursive
// depth-first traversal instead of the iterative two-phase algorithm:
// generate-edges and calculate-scores are each one recursive descent
// from the empty board, exactly as the original engine's
// ITablebase::generateEdges/calculateScores pair did it before the
// iterative rewrite. It exists as a cross-check for small N, invoked
// only from the CLI's debug mode — never from the query-serving path,
// since a genuine cycle in the state graph (a spawn sequence that
// revisits an earlier board) makes naive recursion loop forever where
// the iterative fixed-point algorithm merely requeues.
//
// A cycle is detected via the recursion stack and broken with the same
// 0.5/0.5 fallback PartialInit applies to an unresolved leaf, logged at
// warn level rather than silently swallowed.
func (tb *Tablebase) BuildRecursive(ctx context.Context) error {
	root := grid.New(tb.n)
	if err := tb.store.SetNode(root); err != nil {
		return err
	}
	if err := tb.recGenerateEdges(ctx, root, 0); err != nil {
		return err
	}
	_, _, err := tb.recCalculateScores(root, make(map[string]bool))
	return err
}

func (tb *Tablebase) recGenerateEdges(ctx context.Context, s *grid.Grid, depth int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if _, terminal := terminalScore(s); terminal {
		return nil
	}

	if depth%2 != 0 {
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
			isNew, err := tb.linkChildNoQueue(s, child, SwipeWeight)
			if err != nil {
				return err
			}
			if isNew {
				if err := tb.recGenerateEdges(ctx, child, depth+1); err != nil {
					return err
				}
			}
		}
		return nil
	}

	var empties [][2]int
	for r := 0; r < tb.n; r++ {
		for c := 0; c < tb.n; c++ {
			if s.IsEmpty(r, c) {
				empties = append(empties, [2]int{r, c})
			}
		}
	}
	e := float32(len(empties))
	for _, cl := range empties {
		for _, tileExp := range [2]uint{1, 2} {
			child := s.Clone()
			child.WriteTile(cl[0], cl[1], tileExp)
			weight := (1 - tb.p4) / e
			if tileExp == 2 {
				weight = tb.p4 / e
			}
			isNew, err := tb.linkChildNoQueue(s, child, weight)
			if err != nil {
				return err
			}
			if isNew {
				if err := tb.recGenerateEdges(ctx, child, depth+1); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (tb *Tablebase) linkChildNoQueue(parent, child *grid.Grid, weight float32) (isNew bool, err error) {
	known, err := tb.store.HasNode(child)
	if err != nil {
		return false, err
	}
	if !known {
		if err := tb.store.SetNode(child); err != nil {
			return false, err
		}
	}
	if err := tb.store.AddEdge(parent, child, weight); err != nil {
		return false, err
	}
	return !known, nil
}

// recCalculateScores resolves (s_final, s_inter) for s by recursing into
// its children, memoized via the store (a node with both scores already
// known returns immediately) and cycle-guarded via stack (the set of
// states on the current recursion path).
func (tb *Tablebase) recCalculateScores(s *grid.Grid, stack map[string]bool) (float32, float32, error) {
	final, inter, err := tb.store.GetNodeScores(s)
	if err != nil {
		return 0, 0, err
	}
	if final != Unknown && inter != Unknown {
		return final, inter, nil
	}

	key := s.Key()
	if stack[key] {
		log.Warn().Str("state", s.String()).Msg("tablebase: BuildRecursive hit a cycle; defaulting this occurrence to 0.5")
		return 0.5, 0.5, nil
	}

	if term, terminal := terminalScore(s); terminal {
		if final == Unknown {
			if err := tb.store.AddNonInterScore(s, term); err != nil {
				return 0, 0, err
			}
		}
		if inter == Unknown {
			if err := tb.store.AddInterScore(s, term); err != nil {
				return 0, 0, err
			}
		}
		return term, term, nil
	}

	edges, err := tb.store.GetEdges(s)
	if err != nil {
		return 0, 0, err
	}
	if len(edges) == 0 {
		log.Warn().Str("state", s.String()).Msg("tablebase: BuildRecursive found a non-terminal state with no edges; defaulting to 0.5")
		if err := tb.store.AddNonInterScore(s, 0.5); err != nil {
			return 0, 0, err
		}
		if err := tb.store.AddInterScore(s, 0.5); err != nil {
			return 0, 0, err
		}
		return 0.5, 0.5, nil
	}

	stack[key] = true
	defer delete(stack, key)

	if final == Unknown {
		have := false
		var best float32
		for _, e := range edges {
			if e.Weight != SwipeWeight {
				continue
			}
			_, ci, err := tb.recCalculateScores(e.Child, stack)
			if err != nil {
				return 0, 0, err
			}
			if !have || ci > best {
				best, have = ci, true
			}
		}
		if have {
			if err := tb.store.AddNonInterScore(s, best); err != nil {
				return 0, 0, err
			}
			final = best
		}
	}

	if inter == Unknown {
		var sum float32
		any := false
		for _, e := range edges {
			if e.Weight == SwipeWeight {
				continue
			}
			any = true
			cf, _, err := tb.recCalculateScores(e.Child, stack)
			if err != nil {
				return 0, 0, err
			}
			sum += e.Weight * cf
		}
		if any {
			if err := tb.store.AddInterScore(s, sum); err != nil {
				return 0, 0, err
			}
			inter = sum
		}
	}

	return final, inter, nil
}
