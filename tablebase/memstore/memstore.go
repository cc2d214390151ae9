// Package memstore implements tablebase.Store entirely in memory with
// Go maps and slices, a plain map[string]*nodeEntry transposition table keyed
// on full grid bytes rather than a zobrist hash, since the packed grid
// is already its own canonical key.
//
// memstore never persists anything; it exists for fast, disposable
// construction runs (small N, scratch exploration, tests) where the
// durability and resumability of tablebase/sqlstore aren't needed.
package memstore

import (
	"fmt"

	"github.com/kbrew/tb2048/grid"
	"github.com/kbrew/tb2048/tablebase"
)

type nodeEntry struct {
	final, inter float32
}

type edgeKey struct {
	parent, child string
}

type edgeQueueItem struct {
	key   string
	depth int
}

// Store is an in-memory tablebase.Store.
type Store struct {
	n int

	nodes map[string]*nodeEntry
	// edges maps a parent key to its ordered outgoing edges.
	edges map[string][]tablebase.EdgeRef
	// edgeWeights indexes individual edge weights for GetEdgeWeight.
	edgeWeights map[edgeKey]float32
	// parents maps a child key to its recorded parent keys, in insertion
	// order, for GetParents.
	parents map[string][]string

	// insertOrder records node keys in SetNode call order, so
	// CopyNodesToScoreQueue can seed the score queue in reverse.
	insertOrder []string

	edgeQueue  []edgeQueueItem
	scoreQueue []string

	edgeQueueInit  bool
	scoreQueueInit bool
}

// New returns an empty in-memory store for boards of side n.
func New(n int) *Store {
	return &Store{
		n:           n,
		nodes:       make(map[string]*nodeEntry),
		edges:       make(map[string][]tablebase.EdgeRef),
		edgeWeights: make(map[edgeKey]float32),
		parents:     make(map[string][]string),
	}
}

func (s *Store) SetNode(g *grid.Grid) error {
	k := g.Key()
	if _, ok := s.nodes[k]; ok {
		return nil
	}
	s.nodes[k] = &nodeEntry{final: tablebase.Unknown, inter: tablebase.Unknown}
	s.insertOrder = append(s.insertOrder, k)
	return nil
}

func (s *Store) HasNode(g *grid.Grid) (bool, error) {
	_, ok := s.nodes[g.Key()]
	return ok, nil
}

func (s *Store) GetNodeScores(g *grid.Grid) (float32, float32, error) {
	e, ok := s.nodes[g.Key()]
	if !ok {
		return 0, 0, fmt.Errorf("%w: %s", tablebase.ErrNodeNotFound, g.Key())
	}
	return e.final, e.inter, nil
}

func (s *Store) AddEdge(parent, child *grid.Grid, weight float32) error {
	pk, ck := parent.Key(), child.Key()
	ek := edgeKey{pk, ck}
	if _, exists := s.edgeWeights[ek]; exists {
		return nil
	}
	s.edgeWeights[ek] = weight
	s.edges[pk] = append(s.edges[pk], tablebase.EdgeRef{Child: child, Weight: weight})
	s.parents[ck] = append(s.parents[ck], pk)
	return nil
}

func (s *Store) HasEdge(g *grid.Grid) (bool, error) {
	return len(s.edges[g.Key()]) > 0, nil
}

func (s *Store) GetEdges(g *grid.Grid) ([]tablebase.EdgeRef, error) {
	return s.edges[g.Key()], nil
}

func (s *Store) GetEdgeWeight(parent, child *grid.Grid) (float32, error) {
	w, ok := s.edgeWeights[edgeKey{parent.Key(), child.Key()}]
	if !ok {
		return 0, fmt.Errorf("%w: %s -> %s", tablebase.ErrEdgeNotFound, parent.Key(), child.Key())
	}
	return w, nil
}

func (s *Store) GetParents(child *grid.Grid) ([]*grid.Grid, error) {
	keys := s.parents[child.Key()]
	out := make([]*grid.Grid, 0, len(keys))
	for _, k := range keys {
		g, err := grid.FromBytes(s.n, []byte(k))
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

func (s *Store) PushToEdgeQueue(g *grid.Grid, depth int) error {
	s.edgeQueue = append(s.edgeQueue, edgeQueueItem{key: g.Key(), depth: depth})
	return nil
}

func (s *Store) PopFromEdgeQueue() (*grid.Grid, int, error) {
	if len(s.edgeQueue) == 0 {
		return nil, 0, tablebase.ErrQueueEmpty
	}
	item := s.edgeQueue[0]
	s.edgeQueue = s.edgeQueue[1:]
	g, err := grid.FromBytes(s.n, []byte(item.key))
	if err != nil {
		return nil, 0, err
	}
	return g, item.depth, nil
}

func (s *Store) EdgeQueueEmpty() (bool, error) {
	return len(s.edgeQueue) == 0, nil
}

func (s *Store) CopyNodesToScoreQueue() error {
	s.scoreQueue = make([]string, len(s.insertOrder))
	for i, k := range s.insertOrder {
		s.scoreQueue[len(s.insertOrder)-1-i] = k
	}
	return nil
}

func (s *Store) PushToScoreQueue(g *grid.Grid) error {
	s.scoreQueue = append(s.scoreQueue, g.Key())
	return nil
}

func (s *Store) PopFromScoreQueue() (*grid.Grid, error) {
	if len(s.scoreQueue) == 0 {
		return nil, tablebase.ErrQueueEmpty
	}
	k := s.scoreQueue[0]
	s.scoreQueue = s.scoreQueue[1:]
	return grid.FromBytes(s.n, []byte(k))
}

func (s *Store) ScoreQueueEmpty() (bool, error) {
	return len(s.scoreQueue) == 0, nil
}

func (s *Store) AddInterScore(g *grid.Grid, v float32) error {
	e, ok := s.nodes[g.Key()]
	if !ok {
		return fmt.Errorf("%w: %s", tablebase.ErrNodeNotFound, g.Key())
	}
	e.inter = v
	return nil
}

func (s *Store) AddNonInterScore(g *grid.Grid, v float32) error {
	e, ok := s.nodes[g.Key()]
	if !ok {
		return fmt.Errorf("%w: %s", tablebase.ErrNodeNotFound, g.Key())
	}
	e.final = v
	return nil
}

func (s *Store) EdgeQueueInitialized() (bool, error)  { return s.edgeQueueInit, nil }
func (s *Store) SetEdgeQueueInitialized() error        { s.edgeQueueInit = true; return nil }
func (s *Store) ScoreQueueInitialized() (bool, error)  { return s.scoreQueueInit, nil }
func (s *Store) SetScoreQueueInitialized() error       { s.scoreQueueInit = true; return nil }

// WithStep runs fn directly: memstore holds nothing but process memory,
// so there is no partial-commit state for a crash to expose.
func (s *Store) WithStep(fn func() error) error { return fn() }

func (s *Store) Close() error { return nil }

var _ tablebase.Store = (*Store)(nil)
