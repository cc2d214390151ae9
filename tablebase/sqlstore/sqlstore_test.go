package sqlstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbrew/tb2048/grid"
	"github.com/kbrew/tb2048/tablebase"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.sqlite")
	s, err := Open(path, 2, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSetNodeAndScoreRoundTrip(t *testing.T) {
	s := openTestStore(t)
	g := grid.New(2)

	require.NoError(t, s.SetNode(g))
	final, inter, err := s.GetNodeScores(g)
	require.NoError(t, err)
	assert.EqualValues(t, tablebase.Unknown, final)
	assert.EqualValues(t, tablebase.Unknown, inter)

	require.NoError(t, s.AddInterScore(g, 0.75))
	require.NoError(t, s.AddNonInterScore(g, 0.5))
	final, inter, err = s.GetNodeScores(g)
	require.NoError(t, err)
	assert.EqualValues(t, 0.5, final)
	assert.EqualValues(t, 0.75, inter)
}

func TestSetNodeIdempotent(t *testing.T) {
	s := openTestStore(t)
	g := grid.New(2)
	require.NoError(t, s.SetNode(g))
	require.NoError(t, s.AddNonInterScore(g, 0.9))
	require.NoError(t, s.SetNode(g))

	final, _, err := s.GetNodeScores(g)
	require.NoError(t, err)
	assert.EqualValues(t, 0.9, final)
}

func TestScoringMissingNodeErrors(t *testing.T) {
	s := openTestStore(t)
	g := grid.New(2)
	err := s.AddInterScore(g, 0.5)
	assert.ErrorIs(t, err, tablebase.ErrNodeNotFound)
}

func TestEdgesAndReverseIndex(t *testing.T) {
	s := openTestStore(t)
	parent := grid.New(2)
	child := grid.New(2)
	child.WriteTile(0, 0, 1)

	require.NoError(t, s.SetNode(parent))
	require.NoError(t, s.SetNode(child))
	require.NoError(t, s.AddEdge(parent, child, tablebase.SwipeWeight))
	require.NoError(t, s.AddEdge(parent, child, tablebase.SwipeWeight)) // idempotent

	edges, err := s.GetEdges(parent)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.True(t, edges[0].Child.Equal(child))

	parents, err := s.GetParents(child)
	require.NoError(t, err)
	require.Len(t, parents, 1)
	assert.True(t, parents[0].Equal(parent))
}

func TestEdgeQueueFIFOAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resume.sqlite")
	s, err := Open(path, 2, Options{})
	require.NoError(t, err)

	a := grid.New(2)
	b := grid.New(2)
	b.WriteTile(0, 0, 1)
	require.NoError(t, s.PushToEdgeQueue(a, 0))
	require.NoError(t, s.PushToEdgeQueue(b, 1))
	require.NoError(t, s.Close())

	s2, err := Open(path, 2, Options{})
	require.NoError(t, err)
	defer s2.Close()

	g, depth, err := s2.PopFromEdgeQueue()
	require.NoError(t, err)
	assert.True(t, g.Equal(a))
	assert.Equal(t, 0, depth)
}

func TestCopyNodesToScoreQueueReversesSeqOrder(t *testing.T) {
	s := openTestStore(t)
	a := grid.New(2)
	b := grid.New(2)
	b.WriteTile(0, 0, 1)

	require.NoError(t, s.SetNode(a))
	require.NoError(t, s.SetNode(b))
	require.NoError(t, s.CopyNodesToScoreQueue())

	first, err := s.PopFromScoreQueue()
	require.NoError(t, err)
	assert.True(t, first.Equal(b))
}

func TestWithStepRollsBackOnError(t *testing.T) {
	s := openTestStore(t)
	g := grid.New(2)

	wantErr := assert.AnError
	err := s.WithStep(func() error {
		if err := s.SetNode(g); err != nil {
			return err
		}
		if err := s.PushToEdgeQueue(g, 0); err != nil {
			return err
		}
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)

	known, err := s.HasNode(g)
	require.NoError(t, err)
	assert.False(t, known, "SetNode inside a failed WithStep must not be visible")

	empty, err := s.EdgeQueueEmpty()
	require.NoError(t, err)
	assert.True(t, empty, "PushToEdgeQueue inside a failed WithStep must not be visible")
}

func TestWithStepCommitsOnSuccess(t *testing.T) {
	s := openTestStore(t)
	g := grid.New(2)

	require.NoError(t, s.WithStep(func() error {
		if err := s.SetNode(g); err != nil {
			return err
		}
		return s.PushToEdgeQueue(g, 0)
	}))

	known, err := s.HasNode(g)
	require.NoError(t, err)
	assert.True(t, known)

	popped, depth, err := s.PopFromEdgeQueue()
	require.NoError(t, err)
	assert.True(t, popped.Equal(g))
	assert.Equal(t, 0, depth)
}

func TestInitFlagsPersistAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flags.sqlite")
	s, err := Open(path, 2, Options{})
	require.NoError(t, err)
	require.NoError(t, s.SetEdgeQueueInitialized())
	require.NoError(t, s.Close())

	s2, err := Open(path, 2, Options{})
	require.NoError(t, err)
	defer s2.Close()

	ok, err := s2.EdgeQueueInitialized()
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s2.ScoreQueueInitialized()
	require.NoError(t, err)
	assert.False(t, ok)
}
