package search

import (
	"context"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/l3aro/go-sta/pkg/corner"
	"github.com/l3aro/go-sta/pkg/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// groupFixture returns the max data paths of a register to register design.
func groupFixture(t *testing.T) (*Search, []PathVertex) {
	d := newRegToReg(t, 1, 1)
	s := d.search()
	require.NoError(t, s.FindArrivals(context.Background()))
	var paths []PathVertex
	for _, v := range []graph.VertexID{d.q1, d.a, d.d2} {
		for _, rf := range corner.RiseFalls {
			paths = append(paths, findPath(t, s, v, rf, apMax, false))
		}
	}
	return s, paths
}

func fakeEnd(p PathVertex, slack float32, checkEdge int) *PathEnd {
	return &PathEnd{typ: EndCheck, path: RefOf(p), mm: corner.Max, slack: slack, checkEdge: graph.EdgeID(checkEdge)}
}

func slacksOf(ends PathEndSeq) []float32 {
	out := make([]float32, len(ends))
	for i, e := range ends {
		out[i] = e.Slack()
	}
	return out
}

func TestPathGroup_KeepsWorst(t *testing.T) {
	s, paths := groupFixture(t)
	opts := DefaultPathGroupOptions()
	opts.GroupCount = 3
	opts.EndpointCount = 10
	g := s.NewPathGroup("clk", corner.Max, opts)

	for i, slack := range []float32{5, 1, 9, 3, 7, 2, 8, 0, 6, 4} {
		g.Insert(fakeEnd(paths[i%len(paths)], slack, i))
	}
	assert.Equal(t, []float32{0, 1, 2}, slacksOf(g.PathEnds()))
	assert.Equal(t, 3, g.Len())
	assert.Equal(t, "clk", g.Name())
	assert.Equal(t, corner.Max, g.MinMax())
}

func TestPathGroup_EndpointCount(t *testing.T) {
	s, paths := groupFixture(t)
	opts := DefaultPathGroupOptions()
	opts.GroupCount = 10
	opts.EndpointCount = 1
	g := s.NewPathGroup("clk", corner.Max, opts)

	// Two transitions per vertex; only the worse of each vertex survives.
	for i, p := range paths {
		g.Insert(fakeEnd(p, float32(i), i))
	}
	ends := g.PathEnds()
	require.Len(t, ends, 3)
	assert.Equal(t, []float32{0, 2, 4}, slacksOf(ends))
	seen := map[graph.VertexID]bool{}
	for _, e := range ends {
		assert.False(t, seen[e.Vertex()])
		seen[e.Vertex()] = true
	}
}

func TestPathGroup_SlackRange(t *testing.T) {
	s, paths := groupFixture(t)
	g := s.NewPathGroup("clk", corner.Max, PathGroupOptions{GroupCount: 10, EndpointCount: 10, SlackMin: 0, SlackMax: 5})

	tests := []struct {
		name string
		end  *PathEnd
		kept bool
	}{
		{"below min", fakeEnd(paths[0], -1, 0), false},
		{"at min", fakeEnd(paths[1], 0, 1), true},
		{"at max", fakeEnd(paths[2], 5, 2), true},
		{"above max", fakeEnd(paths[3], 6, 3), false},
		{"unconstrained", &PathEnd{typ: EndUnconstrained, path: RefOf(paths[4]), mm: corner.Max, slack: 100}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kept, g.Insert(tt.end))
		})
	}

	ends := g.PathEnds()
	require.Len(t, ends, 3)
	assert.True(t, ends[2].IsUnconstrained())
}

func TestPathGroup_Threshold(t *testing.T) {
	s, paths := groupFixture(t)
	opts := DefaultPathGroupOptions()
	opts.GroupCount = 2
	opts.EndpointCount = 10
	g := s.NewPathGroup("clk", corner.Max, opts)

	for i := range 5 {
		assert.True(t, g.Insert(fakeEnd(paths[i], float32(i), i)))
	}
	// The fifth insert pruned the group to slacks 0 and 1.
	assert.Equal(t, 2, g.Len())
	assert.False(t, g.Insert(fakeEnd(paths[5], 3, 5)))
	assert.True(t, g.Insert(fakeEnd(paths[5], -1, 6)))
	assert.Equal(t, []float32{-1, 0}, slacksOf(g.PathEnds()))
}

func TestPathGroup_ConcurrentInsert(t *testing.T) {
	s, paths := groupFixture(t)
	opts := DefaultPathGroupOptions()
	opts.GroupCount = 4
	opts.EndpointCount = 100
	g := s.NewPathGroup("clk", corner.Max, opts)

	var eg errgroup.Group
	for w := range 4 {
		eg.Go(func() error {
			for i := range 50 {
				n := w*50 + i
				g.Insert(fakeEnd(paths[n%len(paths)], float32(n%37), n))
			}
			return nil
		})
	}
	require.NoError(t, eg.Wait())
	assert.Equal(t, []float32{0, 0, 0, 0}, slacksOf(g.PathEnds()))
}
