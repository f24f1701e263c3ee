package search

import (
	"context"
	"fmt"
	"testing"

	"github.com/l3aro/go-sta/pkg/corner"
	"github.com/l3aro/go-sta/pkg/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFanin builds two inputs into an output:
//
//	in1 -(5)-> y
//	in1 -(4)-> y   (parallel edge through the same pins)
//	in2 -(3)-> y
func newFanin(t *testing.T, parallel bool) (*Search, graph.VertexID) {
	f := newFixture(t)
	in1 := f.vertex("in1", graph.Input)
	in2 := f.vertex("in2", graph.Input)
	y := f.vertex("y", graph.Output)
	f.edge(in1, y, graph.RoleCombinational, 5, 5, riseRR)
	if parallel {
		f.edge(in1, y, graph.RoleCombinational, 4, 4, riseRR)
	}
	f.edge(in2, y, graph.RoleCombinational, 3, 3, riseRR)
	return f.search(WithUnconstrained(true)), y
}

func arrivalsOf(ends PathEndSeq) []float32 {
	out := make([]float32, len(ends))
	for i, e := range ends {
		out[i] = e.Arrival().Mean
	}
	return out
}

func enumOpts() ReportOptions {
	opts := DefaultReportOptions()
	opts.MinMax = corner.MinMaxAllMax
	opts.GroupCount = 10
	opts.EndpointCount = 10
	return opts
}

func TestPathEnum_MergedFanin(t *testing.T) {
	s, y := newFanin(t, false)
	ends, err := s.FindPathEnds(context.Background(), enumOpts())
	require.NoError(t, err)

	assert.Equal(t, []float32{5, 3}, arrivalsOf(ends))
	for _, e := range ends {
		assert.True(t, e.IsUnconstrained())
		assert.Equal(t, y, e.Vertex())
		assert.Equal(t, UnconstrainedGroupName, e.GroupName())
	}
	assert.False(t, ends[0].Path().IsEnumed())
	require.True(t, ends[1].Path().IsEnumed())
	start, ok := s.Expand(ends[1].Path()).StartPoint()
	require.True(t, ok)
	assert.Equal(t, "in2", start.Name)
}

func TestPathEnum_UniquePins(t *testing.T) {
	tests := []struct {
		name          string
		uniquePins    bool
		endpointCount int
		want          []float32
	}{
		{"all paths", false, 10, []float32{5, 4, 3}},
		{"unique pins", true, 10, []float32{5, 3}},
		{"endpoint count", false, 2, []float32{5, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newFanin(t, true)
			opts := enumOpts()
			opts.UniquePins = tt.uniquePins
			opts.EndpointCount = tt.endpointCount
			ends, err := s.FindPathEnds(context.Background(), opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, arrivalsOf(ends))
		})
	}
}

func TestPathEnum_Release(t *testing.T) {
	s, y := newFanin(t, false)
	require.NoError(t, s.FindArrivals(context.Background()))
	ends := s.PathEndsAt(y, corner.MinMaxAllMax, true)
	require.Len(t, ends, 1)

	pe := s.NewPathEnum(ends, PathEnumOptions{GroupCount: 10, EndpointCount: 10})
	got := pe.All()
	require.NoError(t, pe.Err())
	require.Len(t, got, 2)
	enumed := got[1].Path()
	require.False(t, enumed.IsNull())

	pe.Release()
	assert.True(t, enumed.IsNull())
	_, ok := pe.Next()
	assert.False(t, ok)
}

func TestPathEnum_SlackBounds(t *testing.T) {
	d := newRegToReg(t, 1, 1)
	s := d.search()
	opts := DefaultReportOptions()
	opts.MinMax = corner.MinMaxAllMax
	opts.GroupCount = 10
	opts.EndpointCount = 4
	opts.SlackMax = 4
	ends, err := s.FindPathEnds(context.Background(), opts)
	require.NoError(t, err)
	assert.Empty(t, ends)

	opts.SlackMax = 5
	ends, err = s.FindPathEnds(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, ends, 2)
	for _, e := range ends {
		assert.InDelta(t, 4.5, e.Slack(), 1e-6)
		assert.Equal(t, d.d2, e.Vertex())
	}
}

// newAndToReg builds an AND gate feeding a register:
//
//	r1/Q -(5)-> and/Z -> r3/D
//	r2/Q -(3)-/
func newAndToReg(t *testing.T) (*Search, graph.VertexID) {
	f := newFixture(t)
	clk := f.vertex("clk", graph.Input)
	var qs []graph.VertexID
	for _, name := range []string{"r1", "r2"} {
		ck := f.vertex(name+"/CK", graph.Internal)
		q := f.vertex(name+"/Q", graph.Internal)
		f.edge(clk, ck, graph.RoleWire, 0, 0, unate)
		f.edge(ck, q, graph.RoleRegClkToQ, 0, 0, riseIn)
		qs = append(qs, q)
	}
	ck3 := f.vertex("r3/CK", graph.Internal)
	z := f.vertex("and/Z", graph.Internal)
	d3 := f.vertex("r3/D", graph.Internal)
	f.edge(clk, ck3, graph.RoleWire, 0, 0, unate)
	f.edge(qs[0], z, graph.RoleCombinational, 5, 5, unate)
	f.edge(qs[1], z, graph.RoleCombinational, 3, 3, unate)
	f.edge(z, d3, graph.RoleWire, 0, 0, unate)
	f.edge(ck3, d3, graph.RoleSetup, 0.5, 0.5, riseIn)
	f.clock("clk", 10, clk)
	return f.search(), d3
}

func TestPathEnum_RegisterEndpoint(t *testing.T) {
	s, d3 := newAndToReg(t)
	ends, err := s.FindPathEnds(context.Background(), enumOpts())
	require.NoError(t, err)

	assert.Equal(t, []float32{5, 5, 3, 3}, arrivalsOf(ends))
	wantStart := []string{"r1/Q", "r1/Q", "r2/Q", "r2/Q"}
	wantSlack := []float32{4.5, 4.5, 6.5, 6.5}
	for i, e := range ends {
		assert.Equal(t, d3, e.Vertex())
		assert.False(t, e.IsUnconstrained())
		assert.InDelta(t, wantSlack[i], e.Slack(), 1e-6)
		start, ok := s.Expand(e.Path()).StartPoint()
		require.True(t, ok)
		assert.Equal(t, wantStart[i], start.Name)
	}
}

// newParallelChain builds a register to register path through stages
// pins, each pair of stage pins joined by two edges of delay 1 and 2.
func newParallelChain(t *testing.T, stages int) (*Search, graph.VertexID) {
	f := newFixture(t)
	clk := f.vertex("clk", graph.Input)
	ck1 := f.vertex("r1/CK", graph.Internal)
	ck2 := f.vertex("r2/CK", graph.Internal)
	prev := f.vertex("r1/Q", graph.Internal)
	f.edge(clk, ck1, graph.RoleWire, 0, 0, unate)
	f.edge(clk, ck2, graph.RoleWire, 0, 0, unate)
	f.edge(ck1, prev, graph.RoleRegClkToQ, 0, 0, riseRR)
	for i := 0; i < stages; i++ {
		next := f.vertex(fmt.Sprintf("u%d/Z", i), graph.Internal)
		f.edge(prev, next, graph.RoleCombinational, 1, 1, riseRR)
		f.edge(prev, next, graph.RoleCombinational, 2, 2, riseRR)
		prev = next
	}
	d2 := f.vertex("r2/D", graph.Internal)
	f.edge(prev, d2, graph.RoleWire, 0, 0, riseRR)
	f.edge(ck2, d2, graph.RoleSetup, 0.5, 0.5, riseRR)
	f.clock("clk", 100, clk)
	return f.search(), d2
}

func TestPathEnum_RejectedEndsNotExpanded(t *testing.T) {
	const stages = 14
	// The worst path takes every delay 2 edge.
	worst := 99.5 - 2*float32(stages)

	tests := []struct {
		name       string
		slackMax   float32
		uniquePins bool
		wantSlacks []float32
		maxNodes   int
	}{
		{"all", 1e30, false, []float32{worst, worst + 1, worst + 1, worst + 1, worst + 1}, 4 * stages * stages},
		{"slack max", worst + 0.25, false, []float32{worst}, stages * stages},
		{"unique pins", 1e30, true, []float32{worst}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, d2 := newParallelChain(t, stages)
			require.NoError(t, s.FindArrivals(context.Background()))
			ends := s.PathEndsAt(d2, corner.MinMaxAllMax, false)
			require.Len(t, ends, 1)

			pe := s.NewPathEnum(ends, PathEnumOptions{
				GroupCount:    5,
				EndpointCount: 5,
				UniquePins:    tt.uniquePins,
				SlackMin:      -1e30,
				SlackMax:      tt.slackMax,
			})
			got := pe.All()
			require.NoError(t, pe.Err())
			require.Len(t, got, len(tt.wantSlacks))
			for i, e := range got {
				assert.InDelta(t, tt.wantSlacks[i], e.Slack(), 1e-4)
			}
			assert.LessOrEqual(t, pe.arena.len(), tt.maxNodes)
		})
	}
}

func TestPathEnum_BrokenArrivals(t *testing.T) {
	d := newRegToReg(t, 1, 1)
	s := d.search()
	require.NoError(t, s.FindArrivals(context.Background()))
	ends := s.PathEndsAt(d.d2, corner.MinMaxAllMax, false)
	require.NotEmpty(t, ends)

	// The data paths into d2 all run through a.
	s.vertices[d.a].arrivals = nil

	pe := s.NewPathEnum(ends, PathEnumOptions{GroupCount: 5, EndpointCount: 5, SlackMin: -1e30, SlackMax: 1e30})
	assert.Empty(t, pe.All())
	var ce *CriticalError
	require.ErrorAs(t, pe.Err(), &ce)
	assert.ErrorIs(t, pe.Err(), ErrInternal)
	assert.Equal(t, "path", ce.Op)
}
