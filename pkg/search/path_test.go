package search

import (
	"context"
	"testing"

	"github.com/l3aro/go-sta/pkg/corner"
	"github.com/l3aro/go-sta/pkg/delay"
	"github.com/l3aro/go-sta/pkg/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// findPath returns the path at v with the given transition, analysis point
// and clock flag.
func findPath(t *testing.T, s *Search, v graph.VertexID, rf corner.RiseFall, ap corner.PathAPIndex, isClock bool) PathVertex {
	t.Helper()
	for _, p := range s.Paths(v) {
		tag := p.Tag()
		if tag.RF() == rf && tag.PathAPIndex() == ap && tag.IsClock() == isClock {
			return p
		}
	}
	require.Failf(t, "path not found", "%s %s ap=%d clock=%v", s.Graph().VertexName(v), rf, ap, isClock)
	return nullPathVertex
}

func TestPath_NullSentinels(t *testing.T) {
	assert.True(t, NullPathVertexRep.IsNull())
	assert.Equal(t, "-", NullPathVertexRep.String())
	assert.True(t, nullPathVertex.IsNull())
	assert.False(t, nullPathVertex.Valid())
	assert.Equal(t, NullPathVertexRep, nullPathVertex.Rep())
	assert.Equal(t, "null", nullPathVertex.String())
	assert.Equal(t, graph.EdgeIDNull, nullPathVertex.PrevEdge())
	assert.Equal(t, -1, nullPathVertex.PrevArc())
	assert.True(t, nullPathVertex.PrevPath().IsNull())

	var ptr *PathVertexPtr
	assert.True(t, ptr.IsNull())
	assert.True(t, NewPathVertexPtr(NullPathVertexRep).IsNull())

	assert.True(t, RefOf(nullPathVertex).IsNull())
	assert.True(t, PathRef{}.IsNull())
	assert.True(t, PathEnumed{}.IsNull())
	assert.True(t, NoPrevLink.IsNull())

	rep := PathVertexRep{Vertex: 3, Tag: TagIndexNull}
	assert.True(t, rep.IsNull())
	assert.Equal(t, -1, PathVertexRep{Vertex: 1, Tag: 5}.Cmp(PathVertexRep{Vertex: 2, Tag: 0}))
	assert.Equal(t, 1, PathVertexRep{Vertex: 2, Tag: 5}.Cmp(PathVertexRep{Vertex: 2, Tag: 0}))
	assert.Equal(t, "2:5", PathVertexRep{Vertex: 2, Tag: 5}.String())
}

func TestPath_PrevChain(t *testing.T) {
	d := newRegToReg(t, 1, 1)
	s := d.search()
	require.NoError(t, s.FindArrivals(context.Background()))

	p := findPath(t, s, d.d2, corner.Rise, apMax, false)
	assert.Equal(t, delay.New(6), p.Arrival())

	var names []string
	for n := Path(p); !n.IsNull(); n = n.PrevPath() {
		names = append(names, s.Graph().VertexName(n.Vertex()))
	}
	assert.Equal(t, []string{"r2/D", "u1/Z", "r1/Q", "r1/CK", "buf/Z", "clk"}, names)

	q1 := p.PrevPath().PrevPath()
	assert.Equal(t, d.q1, q1.Vertex())
	assert.Equal(t, delay.New(3), q1.Arrival())
	assert.False(t, q1.Tag().IsClock())
	assert.Equal(t, "clk^", q1.Tag().ClkEdge().String())
}

func TestPathVertexRep_Resolve(t *testing.T) {
	d := newRegToReg(t, 1, 1)
	s := d.search()
	require.NoError(t, s.FindArrivals(context.Background()))

	p := findPath(t, s, d.a, corner.Fall, apMin, false)
	got, ok := p.Rep().Resolve(s)
	require.True(t, ok)
	assert.Equal(t, p.Tag(), got.Tag())
	assert.Equal(t, p.Arrival(), got.Arrival())

	_, ok = PathVertexRep{Vertex: d.a, Tag: TagIndex(s.TagCount() + 10)}.Resolve(s)
	assert.False(t, ok)
	_, ok = s.Path(graph.VertexID(999), p.Tag())
	assert.False(t, ok)
}

func TestPathVertexPtr_Cache(t *testing.T) {
	d := newRegToReg(t, 1, 1)
	s := d.search()
	ctx := context.Background()
	require.NoError(t, s.FindArrivals(ctx))

	p := findPath(t, s, d.a, corner.Rise, apMax, false)
	ptr := NewPathVertexPtr(p.Rep())
	got, ok := ptr.Path(s)
	require.True(t, ok)
	assert.Equal(t, delay.New(6), got.Arrival())

	require.NoError(t, s.Graph().SetArcDelay(d.comb, 0, apMax, delay.New(4)))
	s.ArrivalInvalid(d.a)
	require.NoError(t, s.FindArrivals(ctx))

	got, ok = ptr.Path(s)
	require.True(t, ok)
	assert.Equal(t, delay.New(7), got.Arrival())
}

func TestPathEnumed_Release(t *testing.T) {
	d := newRegToReg(t, 1, 1)
	s := d.search()
	require.NoError(t, s.FindArrivals(context.Background()))
	from := findPath(t, s, d.a, corner.Rise, apMax, false)
	to := findPath(t, s, d.d2, corner.Rise, apMax, false)

	a := newEnumArena(s)
	n := a.alloc(enumNode{
		vertex:     to.Vertex(),
		tag:        to.Tag(),
		arrival:    delay.New(9),
		prevEnumed: -1,
		prevRep:    from.Rep(),
		prevEdge:   to.PrevEdge(),
		prevArc:    to.PrevArc(),
	})
	require.False(t, n.IsNull())
	assert.Equal(t, delay.New(9), n.Arrival())
	assert.Equal(t, d.a, n.PrevPath().Vertex())
	ref := RefOf(n)
	assert.True(t, ref.IsEnumed())
	_, isVertex := ref.PathVertex()
	assert.False(t, isVertex)

	a.reset()
	assert.True(t, n.IsNull())
	assert.True(t, ref.IsNull())
	assert.Equal(t, graph.VertexIDNull, n.Vertex())
	assert.Nil(t, n.Tag())
	assert.True(t, n.PrevPath().IsNull())
	assert.Equal(t, "null", n.String())
}

func TestPathVertex_MissingTag(t *testing.T) {
	d := newRegToReg(t, 1, 1)
	s := d.search()
	require.NoError(t, s.FindArrivals(context.Background()))

	clk := findPath(t, s, d.ck1, corner.Rise, apMax, true)
	stale := PathVertex{search: s, vertex: d.a, tag: clk.Tag(), generation: s.vertices[d.a].generation + 1}
	assert.False(t, stale.Valid())

	var err error
	func() {
		defer recoverCritical(&err)
		stale.Arrival()
	}()
	assert.ErrorIs(t, err, ErrInternal)

	assert.Panics(t, func() { stale.PrevPath() })
}
