package grid

import (
	"testing"

	"github.com/matryer/is"
)

func TestStringDump(t *testing.T) {
	is := is.New(t)
	g := New(2)
	g.WriteTile(0, 1, 3)
	is.Equal(g.String(), "0,3,0,0")
}

func TestCloneIndependence(t *testing.T) {
	is := is.New(t)
	g := New(3)
	g.WriteTile(2, 2, 4)
	cp := g.Clone()
	is.True(cp.Equal(g))
	cp.WriteTile(0, 0, 1)
	is.True(!cp.Equal(g))
}
