// Package tablebase implements the tablebase construction engine: the
// two-phase forward-BFS-then-retrograde-propagation algorithm that turns
// the reachable state graph of a 2048 board into a fully scored table,
// plus the query/bestMove/recursiveQuery surface external collaborators
// consume.
//
// The engine is polymorphic over the backing Store: it never
// touches a concrete backend directly, so the in-memory store
// (tablebase/memstore) and the SQL-backed store (tablebase/sqlstore) are
// fully interchangeable, taking the Store as a capability bundle rather
// than coupling to one concrete backend.
package tablebase

import (
	"errors"

	"github.com/kbrew/tb2048/grid"
)

// Unknown is the sentinel score meaning "not yet computed".
// The recurrence never produces a negative score, so exact comparison
// against Unknown is safe.
const Unknown float32 = -1.0

// SwipeWeight is the edge-weight sentinel marking a deterministic swipe
// edge (pre-move -> post-move).
const SwipeWeight float32 = -1.0

var (
	// ErrNodeNotFound is returned by GetNodeScores, AddInterScore and
	// AddNonInterScore when the requested node does not exist; these are
	// total only over existing keys, so a missing key is a logic-invariant violation, not a
	// "sentinel" condition like an unreached query.
	ErrNodeNotFound = errors.New("tablebase: node not found")
	// ErrEdgeNotFound is returned by GetEdgeWeight for a missing edge.
	ErrEdgeNotFound = errors.New("tablebase: edge not found")
	// ErrQueueEmpty is returned by PopFromEdgeQueue/PopFromScoreQueue when
	// popping an empty queue; this is a logic-invariant violation and
	// callers are expected to check *QueueEmpty first.
	ErrQueueEmpty = errors.New("tablebase: pop from empty queue")
)

// EdgeRef names one outgoing edge: the child grid and its weight. Weight
// is SwipeWeight for a deterministic swipe edge, or in [0,1] for a
// stochastic spawn edge.
type EdgeRef struct {
	Child  *grid.Grid
	Weight float32
}

// Store is the abstract graph-store contract. Every method
// is total except GetNodeScores, GetEdgeWeight, AddInterScore and
// AddNonInterScore, which require the key to already exist
// (ErrNodeNotFound / ErrEdgeNotFound otherwise), and the two Pop
// methods, which return ErrQueueEmpty on an empty queue.
//
// A Store is owned by exactly one Tablebase at a time (single-writer
// invariant); implementations need no internal locking beyond what's
// required for their own durability story.
type Store interface {
	// SetNode upserts g with unknown scores. If g is already present,
	// this is a no-op: scores are monotonic (⊥ -> v exactly once) and a
	// node once recorded is never removed.
	SetNode(g *grid.Grid) error
	// HasNode reports whether g has been recorded via SetNode.
	HasNode(g *grid.Grid) (bool, error)
	// GetNodeScores returns (s_final, s_inter) for g, each Unknown until
	// computed. Returns ErrNodeNotFound if g was never set.
	GetNodeScores(g *grid.Grid) (final, inter float32, err error)

	// AddEdge records a unique directed edge parent -> child with the
	// given weight, and its reverse-index counterpart. Idempotent per
	// (parent, child) pair.
	AddEdge(parent, child *grid.Grid, weight float32) error
	// HasEdge reports whether g has at least one outgoing edge.
	HasEdge(g *grid.Grid) (bool, error)
	// GetEdges returns every outgoing edge of g.
	GetEdges(g *grid.Grid) ([]EdgeRef, error)
	// GetEdgeWeight returns the weight of the parent->child edge.
	// Returns ErrEdgeNotFound if no such edge exists.
	GetEdgeWeight(parent, child *grid.Grid) (float32, error)
	// GetParents returns every recorded parent of child via the reverse
	// index.
	GetParents(child *grid.Grid) ([]*grid.Grid, error)

	// PushToEdgeQueue appends (g, depth) to the back of the FIFO edge
	// queue.
	PushToEdgeQueue(g *grid.Grid, depth int) error
	// PopFromEdgeQueue removes and returns the front of the edge queue.
	// Returns ErrQueueEmpty if the queue is empty.
	PopFromEdgeQueue() (*grid.Grid, int, error)
	// EdgeQueueEmpty reports whether the edge queue has no pending work.
	EdgeQueueEmpty() (bool, error)

	// CopyNodesToScoreQueue is the one-shot seeding of the score phase:
	// every recorded node is pushed to the score queue in reverse
	// insertion order, so the empty board (seeded first in phase 1) is
	// popped last.
	CopyNodesToScoreQueue() error
	// PushToScoreQueue appends g to the back of the FIFO score queue.
	PushToScoreQueue(g *grid.Grid) error
	// PopFromScoreQueue removes and returns the front of the score
	// queue. Returns ErrQueueEmpty if the queue is empty.
	PopFromScoreQueue() (*grid.Grid, error)
	// ScoreQueueEmpty reports whether the score queue has no pending
	// work.
	ScoreQueueEmpty() (bool, error)

	// AddInterScore sets s_inter for g (post-move score). Must only be
	// called once per g; callers (the engine) enforce this.
	AddInterScore(g *grid.Grid, v float32) error
	// AddNonInterScore sets s_final for g (pre-move score). Must only be
	// called once per g.
	AddNonInterScore(g *grid.Grid, v float32) error

	// EdgeQueueInitialized / SetEdgeQueueInitialized and
	// ScoreQueueInitialized / SetScoreQueueInitialized persist the two
	// one-shot seeding flags.
	EdgeQueueInitialized() (bool, error)
	SetEdgeQueueInitialized() error
	ScoreQueueInitialized() (bool, error)
	SetScoreQueueInitialized() error

	// Close releases any resources (file handles, connections) held by
	// the store.
	Close() error

	// WithStep runs fn as one phase-scoped unit of work: every write fn
	// makes through this Store becomes visible atomically when fn
	// returns nil, or is discarded entirely if fn returns an error. A
	// durable backend opens this as a single transaction at entry and
	// commits it at exit, so a crash partway through fn never leaves a
	// popped queue entry with only some of its edges recorded. A
	// process-local backend with nothing to lose on crash may run fn
	// directly. Callers wrap exactly one queue pop plus all of the
	// writes it implies in a single WithStep call; nesting WithStep
	// calls is not supported.
	WithStep(fn func() error) error
}
