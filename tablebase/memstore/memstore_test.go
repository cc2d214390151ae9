package memstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbrew/tb2048/grid"
	"github.com/kbrew/tb2048/tablebase"
)

func TestSetNodeIsIdempotent(t *testing.T) {
	s := New(2)
	g := grid.New(2)
	require.NoError(t, s.SetNode(g))
	require.NoError(t, s.AddNonInterScore(g, 0.5))
	require.NoError(t, s.SetNode(g))

	final, _, err := s.GetNodeScores(g)
	require.NoError(t, err)
	assert.EqualValues(t, 0.5, final)
}

func TestGetNodeScoresMissingIsError(t *testing.T) {
	s := New(2)
	_, _, err := s.GetNodeScores(grid.New(2))
	assert.ErrorIs(t, err, tablebase.ErrNodeNotFound)
}

func TestAddEdgeAndGetParents(t *testing.T) {
	s := New(2)
	parent := grid.New(2)
	child := grid.New(2)
	child.WriteTile(0, 0, 1)

	require.NoError(t, s.SetNode(parent))
	require.NoError(t, s.SetNode(child))
	require.NoError(t, s.AddEdge(parent, child, tablebase.SwipeWeight))

	has, err := s.HasEdge(parent)
	require.NoError(t, err)
	assert.True(t, has)

	edges, err := s.GetEdges(parent)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.True(t, edges[0].Child.Equal(child))
	assert.EqualValues(t, tablebase.SwipeWeight, edges[0].Weight)

	w, err := s.GetEdgeWeight(parent, child)
	require.NoError(t, err)
	assert.EqualValues(t, tablebase.SwipeWeight, w)

	parents, err := s.GetParents(child)
	require.NoError(t, err)
	require.Len(t, parents, 1)
	assert.True(t, parents[0].Equal(parent))
}

func TestEdgeQueueFIFO(t *testing.T) {
	s := New(2)
	a := grid.New(2)
	b := grid.New(2)
	b.WriteTile(0, 0, 1)

	require.NoError(t, s.PushToEdgeQueue(a, 0))
	require.NoError(t, s.PushToEdgeQueue(b, 1))

	g, depth, err := s.PopFromEdgeQueue()
	require.NoError(t, err)
	assert.True(t, g.Equal(a))
	assert.Equal(t, 0, depth)

	g, depth, err = s.PopFromEdgeQueue()
	require.NoError(t, err)
	assert.True(t, g.Equal(b))
	assert.Equal(t, 1, depth)

	empty, err := s.EdgeQueueEmpty()
	require.NoError(t, err)
	assert.True(t, empty)

	_, _, err = s.PopFromEdgeQueue()
	assert.ErrorIs(t, err, tablebase.ErrQueueEmpty)
}

func TestCopyNodesToScoreQueueReversesInsertionOrder(t *testing.T) {
	s := New(2)
	a := grid.New(2)
	b := grid.New(2)
	b.WriteTile(0, 0, 1)

	require.NoError(t, s.SetNode(a))
	require.NoError(t, s.SetNode(b))
	require.NoError(t, s.CopyNodesToScoreQueue())

	first, err := s.PopFromScoreQueue()
	require.NoError(t, err)
	assert.True(t, first.Equal(b))

	second, err := s.PopFromScoreQueue()
	require.NoError(t, err)
	assert.True(t, second.Equal(a))
}

func TestInitFlagsDefaultFalse(t *testing.T) {
	s := New(2)
	ok, err := s.EdgeQueueInitialized()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetEdgeQueueInitialized())
	ok, err = s.EdgeQueueInitialized()
	require.NoError(t, err)
	assert.True(t, ok)
}
