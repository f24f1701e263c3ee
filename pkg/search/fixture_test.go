package search

import (
	"io"
	"testing"

	"github.com/l3aro/go-sta/internal/log"
	"github.com/l3aro/go-sta/pkg/corner"
	"github.com/l3aro/go-sta/pkg/delay"
	"github.com/l3aro/go-sta/pkg/graph"
	"github.com/l3aro/go-sta/pkg/sdc"
	"github.com/stretchr/testify/require"
)

// Analysis points of the single default corner.
const (
	apMin corner.PathAPIndex = 0
	apMax corner.PathAPIndex = 1
)

type rfPair struct{ from, to corner.RiseFall }

var (
	unate  = []rfPair{{corner.Rise, corner.Rise}, {corner.Fall, corner.Fall}}
	riseIn = []rfPair{{corner.Rise, corner.Rise}, {corner.Rise, corner.Fall}}
	riseRR = []rfPair{{corner.Rise, corner.Rise}}
)

// fixture builds a small design on one corner.
type fixture struct {
	t       *testing.T
	g       *graph.Graph
	sdc     *sdc.Sdc
	corners *corner.Corners
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	corners, err := corner.NewCorners()
	require.NoError(t, err)
	return &fixture{t: t, g: graph.New(corners.PathAnalysisPtCount()), sdc: sdc.New(), corners: corners}
}

func (f *fixture) vertex(name string, dir graph.Direction) graph.VertexID {
	f.t.Helper()
	v, err := f.g.MakeVertex(name, dir)
	require.NoError(f.t, err)
	return v
}

// edge adds an edge whose arcs have delay minD at the min analysis point and
// maxD at the max one.
func (f *fixture) edge(from, to graph.VertexID, role graph.Role, minD, maxD float32, pairs []rfPair) graph.EdgeID {
	f.t.Helper()
	arcs := make([]graph.Arc, len(pairs))
	for i, p := range pairs {
		arcs[i] = graph.Arc{FromRF: p.from, ToRF: p.to, Delays: []delay.Delay{delay.New(minD), delay.New(maxD)}}
	}
	e, err := f.g.MakeEdge(from, to, role, arcs)
	require.NoError(f.t, err)
	return e
}

func (f *fixture) clock(name string, period float32, pins ...graph.VertexID) *sdc.Clock {
	f.t.Helper()
	clk, err := f.sdc.MakeClock(name, period, [2]float32{0, period / 2}, pins)
	require.NoError(f.t, err)
	return clk
}

func quietLogger() log.Logger {
	return log.New(log.LoggerConfig{Level: log.ErrorLevel, Stdout: io.Discard, Stderr: io.Discard})
}

func (f *fixture) search(opts ...Option) *Search {
	f.t.Helper()
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	s, err := New(f.g, f.sdc, f.corners, opts...)
	require.NoError(f.t, err)
	return s
}

// regToReg is a register to register path:
//
//	clk -> buf -> ck1 -> q1 -> a -> d2
//	          \-> ck2 ------------/ (setup 0.5, hold 0.2)
type regToReg struct {
	*fixture
	clk                       *sdc.Clock
	clkPin, buf, ck1, ck2     graph.VertexID
	q1, a, d2                 graph.VertexID
	comb, setupEdge, holdEdge graph.EdgeID
}

// newRegToReg builds the design with a clock tree wire of delay treeMin at
// the min analysis point and treeMax at the max one.
func newRegToReg(t *testing.T, treeMin, treeMax float32) *regToReg {
	f := newFixture(t)
	d := &regToReg{fixture: f}
	d.clkPin = f.vertex("clk", graph.Input)
	d.buf = f.vertex("buf/Z", graph.Internal)
	d.ck1 = f.vertex("r1/CK", graph.Internal)
	d.ck2 = f.vertex("r2/CK", graph.Internal)
	d.q1 = f.vertex("r1/Q", graph.Internal)
	d.a = f.vertex("u1/Z", graph.Internal)
	d.d2 = f.vertex("r2/D", graph.Internal)

	f.edge(d.clkPin, d.buf, graph.RoleWire, treeMin, treeMax, unate)
	f.edge(d.buf, d.ck1, graph.RoleWire, 0, 0, unate)
	f.edge(d.buf, d.ck2, graph.RoleWire, 0, 0, unate)
	f.edge(d.ck1, d.q1, graph.RoleRegClkToQ, 2, 2, riseIn)
	d.comb = f.edge(d.q1, d.a, graph.RoleCombinational, 3, 3, unate)
	f.edge(d.a, d.d2, graph.RoleWire, 0, 0, unate)
	d.setupEdge = f.edge(d.ck2, d.d2, graph.RoleSetup, 0.5, 0.5, riseIn)
	d.holdEdge = f.edge(d.ck2, d.d2, graph.RoleHold, 0.2, 0.2, riseIn)

	d.clk = f.clock("clk", 10, d.clkPin)
	f.sdc.SetPropagated(d.clk, true)
	return d
}
