package search

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/l3aro/go-sta/pkg/corner"
	"github.com/l3aro/go-sta/pkg/delay"
	"github.com/l3aro/go-sta/pkg/graph"
	"github.com/l3aro/go-sta/pkg/sdc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tagTuple struct {
	edge      *sdc.ClockEdge
	ap        corner.PathAPIndex
	rf        corner.RiseFall
	isClock   bool
	segStart  bool
	insertion float32
	src       graph.VertexID
	crpr      PathVertexRep
}

func randomTuples(r *rand.Rand, edges []*sdc.ClockEdge, n int) []tagTuple {
	tuples := make([]tagTuple, n)
	for i := range tuples {
		tuples[i] = tagTuple{
			edge:      edges[r.IntN(len(edges))],
			ap:        corner.PathAPIndex(r.IntN(2)),
			rf:        corner.RiseFall(r.IntN(2)),
			isClock:   r.IntN(2) == 0,
			segStart:  r.IntN(4) == 0,
			insertion: float32(r.IntN(3)),
			src:       graph.VertexID(r.IntN(3)),
			crpr:      PathVertexRep{Vertex: graph.VertexID(r.IntN(2)), Tag: TagIndex(r.IntN(2))},
		}
	}
	return tuples
}

func (s *Search) tupleTag(t *testing.T, tp tagTuple) *Tag {
	t.Helper()
	args := UnclockedArgs(tp.ap)
	args.ClkEdge = tp.edge
	args.ClkSrc = tp.src
	args.Insertion = delay.New(tp.insertion)
	args.CrprClkPath = tp.crpr
	ci, err := s.FindClkInfo(args)
	require.NoError(t, err)
	tag, err := s.FindTag(tp.rf, tp.ap, ci, tp.isClock, nil, tp.segStart, nil)
	require.NoError(t, err)
	return tag
}

func tagFixture(t *testing.T) (*Search, []*sdc.ClockEdge) {
	f := newFixture(t)
	a := f.vertex("a", graph.Input)
	f.vertex("b", graph.Internal)
	f.vertex("c", graph.Internal)
	clk1 := f.clock("clk1", 10, a)
	clk2 := f.clock("clk2", 4, a)
	edges := []*sdc.ClockEdge{nil, clk1.Edge(corner.Rise), clk1.Edge(corner.Fall), clk2.Edge(corner.Rise)}
	return f.search(), edges
}

func TestTag_Canonical(t *testing.T) {
	s, edges := tagFixture(t)
	r := rand.New(rand.NewPCG(1, 2))

	for _, tp := range randomTuples(r, edges, 200) {
		a := s.tupleTag(t, tp)
		b := s.tupleTag(t, tp)
		assert.Same(t, a, b)
		assert.Equal(t, a.Hash(), b.Hash())
		assert.NotEqual(t, TagIndexNull, a.Index())

		got, ok := s.TagByIndex(a.Index())
		require.True(t, ok)
		assert.Same(t, a, got)
	}
}

func TestTag_CmpTotalOrder(t *testing.T) {
	s, edges := tagFixture(t)
	r := rand.New(rand.NewPCG(3, 4))

	var tags []*Tag
	for _, tp := range randomTuples(r, edges, 300) {
		tags = append(tags, s.tupleTag(t, tp))
	}
	for i := 0; i < 2000; i++ {
		a, b := tags[r.IntN(len(tags))], tags[r.IntN(len(tags))]
		assert.Equal(t, -a.Cmp(b), b.Cmp(a))
		assert.Equal(t, a == b, a.Cmp(b) == 0)
		assert.Equal(t, a == b, a.Equal(b))
	}

	slices.SortFunc(tags, func(a, b *Tag) int { return a.Cmp(b) })
	for i := 1; i < len(tags); i++ {
		assert.LessOrEqual(t, tags[i-1].Cmp(tags[i]), 0)
	}
	for i := 0; i < 500; i++ {
		x, y := r.IntN(len(tags)), r.IntN(len(tags))
		if x > y {
			x, y = y, x
		}
		assert.LessOrEqual(t, tags[x].Cmp(tags[y]), 0)
	}
}

func TestTag_MatchEqual(t *testing.T) {
	s, edges := tagFixture(t)
	base := tagTuple{edge: edges[1], ap: apMax, rf: corner.Rise, src: 0, crpr: PathVertexRep{Vertex: 1, Tag: 0}}

	tests := []struct {
		name      string
		change    func(tp *tagTuple)
		matchNoCR bool
		matchCR   bool
	}{
		{"insertion", func(tp *tagTuple) { tp.insertion = 2 }, true, true},
		{"source pin", func(tp *tagTuple) { tp.src = 2 }, true, true},
		{"crpr pin", func(tp *tagTuple) { tp.crpr.Vertex = 0 }, true, false},
		{"crpr tag only", func(tp *tagTuple) { tp.crpr.Tag = 1 }, true, true},
		{"transition", func(tp *tagTuple) { tp.rf = corner.Fall }, false, false},
		{"edge", func(tp *tagTuple) { tp.edge = edges[2] }, false, false},
		{"analysis point", func(tp *tagTuple) { tp.ap = apMin }, false, false},
		{"clock flag", func(tp *tagTuple) { tp.isClock = true }, false, false},
		{"segment start", func(tp *tagTuple) { tp.segStart = true }, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := base
			tt.change(&other)
			a, b := s.tupleTag(t, base), s.tupleTag(t, other)
			assert.NotSame(t, a, b)
			assert.Equal(t, tt.matchNoCR, a.MatchEqual(b, false))
			assert.Equal(t, tt.matchCR, a.MatchEqual(b, true))
			if tt.matchNoCR {
				assert.Equal(t, a.MatchHash(false), b.MatchHash(false))
			}
			if tt.matchCR {
				assert.Equal(t, a.MatchHash(true), b.MatchHash(true))
			}
		})
	}
}

func TestTag_StringRoundTrip(t *testing.T) {
	s, edges := tagFixture(t)
	r := rand.New(rand.NewPCG(5, 6))

	for _, tp := range randomTuples(r, edges, 100) {
		tag := s.tupleTag(t, tp)
		got, err := s.ParseTagString(tag.String())
		require.NoError(t, err, tag.String())
		assert.Same(t, tag, got, tag.String())
	}

	tests := []struct {
		name string
		str  string
	}{
		{"not key value", "rf"},
		{"missing fields", "rf=^ ap=0"},
		{"bad kind", "rf=^ ap=0 kind=odd clk=- in=- seg=0 st=- src=- prop=0 gsrc=- gsp=0 pulse=- ins=0 lat=0 unc=- crpr=-"},
		{"unknown clock", "rf=^ ap=0 kind=data clk=zz^ in=- seg=0 st=- src=- prop=0 gsrc=- gsp=0 pulse=- ins=0 lat=0 unc=- crpr=-"},
		{"ap range", "rf=^ ap=99 kind=data clk=- in=- seg=0 st=- src=- prop=0 gsrc=- gsp=0 pulse=- ins=0 lat=0 unc=- crpr=-"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.ParseTagString(tt.str)
			assert.Error(t, err)
		})
	}
}

func TestNewTagIndex(t *testing.T) {
	idx, err := NewTagIndex(5)
	require.NoError(t, err)
	assert.Equal(t, TagIndex(5), idx)

	_, err = NewTagIndex(int(TagIndexNull))
	assert.ErrorIs(t, err, corner.ErrIndexRange)
	_, err = NewTagIndex(-1)
	assert.ErrorIs(t, err, corner.ErrIndexRange)
}
