package sdc

import (
	"testing"

	"github.com/l3aro/go-sta/pkg/corner"
	"github.com/l3aro/go-sta/pkg/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pins(vs ...graph.VertexID) *ExceptionPt {
	return NewExceptionPt(vs, nil, corner.RiseFallBothBoth)
}

func TestSdc_MakeClock(t *testing.T) {
	s := New()
	clk, err := s.MakeClock("clk", 10, [2]float32{0, 5}, []graph.VertexID{1})
	require.NoError(t, err)
	assert.Equal(t, 0, clk.Index())
	assert.Equal(t, float32(5), clk.Edge(corner.Fall).Time())
	assert.Equal(t, "clk^", clk.Edge(corner.Rise).String())
	assert.Equal(t, clk.Edge(corner.Fall), clk.Edge(corner.Rise).Opposite())
	assert.Equal(t, []*Clock{clk}, s.ClocksOnPin(1))
	assert.True(t, s.IsClockSrc(1))
	assert.False(t, clk.IsVirtual())
	assert.True(t, clk.IsIdeal())

	tests := []struct {
		name     string
		period   float32
		waveform [2]float32
	}{
		{"zero period", 0, [2]float32{0, 5}},
		{"rise past period", 10, [2]float32{10, 15}},
		{"equal edges", 10, [2]float32{3, 3}},
		{"negative", 10, [2]float32{-1, 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.MakeClock("bad_"+tt.name, tt.period, tt.waveform, nil)
			assert.ErrorIs(t, err, ErrInvalidConstraint)
		})
	}

	_, err = s.MakeClock("clk", 4, [2]float32{0, 2}, nil)
	assert.ErrorIs(t, err, ErrInvalidConstraint)
	_, err = s.ClockByName("nope")
	assert.ErrorIs(t, err, ErrClockNotFound)
}

func TestSdc_GeneratedClock(t *testing.T) {
	s := New()
	master, err := s.MakeClock("clk", 10, [2]float32{0, 5}, []graph.VertexID{1})
	require.NoError(t, err)

	tests := []struct {
		name     string
		args     GeneratedClockArgs
		period   float32
		waveform [2]float32
	}{
		{"divide", GeneratedClockArgs{Name: "div2", SrcPin: 1, Pins: []graph.VertexID{2}, DivideBy: 2}, 20, [2]float32{0, 10}},
		{"multiply", GeneratedClockArgs{Name: "mul2", SrcPin: 1, Pins: []graph.VertexID{3}, MultiplyBy: 2}, 5, [2]float32{0, 2.5}},
		{"invert", GeneratedClockArgs{Name: "inv", SrcPin: 1, Pins: []graph.VertexID{4}, Invert: true}, 10, [2]float32{5, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen, err := s.MakeGeneratedClock(tt.args)
			require.NoError(t, err)
			require.NoError(t, gen.SetMaster(master))
			assert.Equal(t, tt.period, gen.Period())
			assert.Equal(t, tt.waveform, gen.Waveform())
			assert.True(t, gen.IsPropagated())
			assert.Equal(t, master, gen.Master())
		})
	}

	_, err = s.MakeGeneratedClock(GeneratedClockArgs{Name: "nosrc", SrcPin: graph.VertexIDNull, Pins: []graph.VertexID{5}})
	assert.ErrorIs(t, err, ErrInvalidConstraint)
	assert.Error(t, master.SetMaster(master))
}

func TestSdc_InputOutputDelays(t *testing.T) {
	s := New()
	clk, err := s.MakeClock("clk", 10, [2]float32{0, 5}, []graph.VertexID{1})
	require.NoError(t, err)

	in := s.SetInputDelay(2, clk.Edge(corner.Rise), corner.RiseFallBothBoth, corner.MinMaxAllBoth, 1)
	again := s.SetInputDelay(2, clk.Edge(corner.Rise), corner.RiseFallBothRise, corner.MinMaxAllMax, 3)
	assert.Same(t, in, again)
	assert.Equal(t, float32(3), in.Delay(corner.Rise, corner.Max))
	assert.Equal(t, float32(1), in.Delay(corner.Rise, corner.Min))
	assert.Equal(t, float32(1), in.Delay(corner.Fall, corner.Max))
	found, ok := s.FindInputDelay(in.Index())
	require.True(t, ok)
	assert.Same(t, in, found)

	_, err = s.SetOutputDelay(9, nil, corner.RiseFallBothBoth, corner.MinMaxAllBoth, 1)
	assert.ErrorIs(t, err, ErrInvalidConstraint)
	out, err := s.SetOutputDelay(9, clk.Edge(corner.Rise), corner.RiseFallBothBoth, corner.MinMaxAllBoth, 2)
	require.NoError(t, err)
	assert.Equal(t, float32(2), out.Delay(corner.Fall, corner.Min))

	s.SetDataCheck(3, 4, corner.RiseFallBothBoth, corner.RiseFallBothBoth, corner.MinMaxAllMax, 0.5)
	gc := s.SetClockGatingCheck(5, 6, 0.2, 0.1, true)
	assert.Equal(t, corner.Rise, gc.ClockRF(corner.Max))
	assert.Equal(t, corner.Fall, gc.ClockRF(corner.Min))

	assert.Equal(t, []graph.VertexID{4, 5, 9}, s.Endpoints())
}

func TestSdc_MaxTimeBorrow(t *testing.T) {
	s := New()
	clk, err := s.MakeClock("clk", 10, [2]float32{0, 5}, nil)
	require.NoError(t, err)

	_, ok := s.MaxTimeBorrow(clk, 1)
	assert.False(t, ok)

	s.SetMaxTimeBorrowClock(clk, 2)
	s.SetMaxTimeBorrow(1, 1)
	limit, ok := s.MaxTimeBorrow(clk, 3, 1)
	require.True(t, ok)
	assert.Equal(t, float32(1), limit)
	limit, _ = s.MaxTimeBorrow(clk, 3)
	assert.Equal(t, float32(2), limit)
}

func TestSdc_MakeException(t *testing.T) {
	s := New()
	tests := []struct {
		name string
		args ExceptionArgs
	}{
		{"no points", ExceptionArgs{Type: FalsePath}},
		{"empty thru", ExceptionArgs{Type: FalsePath, Thrus: []*ExceptionPt{pins()}}},
		{"negative multiplier", ExceptionArgs{Type: Multicycle, To: pins(1), Multiplier: -1, MinMax: corner.MinMaxAllMax}},
		{"path delay both", ExceptionArgs{Type: PathDelay, To: pins(1), MinMax: corner.MinMaxAllBoth}},
		{"unnamed group", ExceptionArgs{Type: GroupPath, To: pins(1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.MakeException(tt.args)
			assert.ErrorIs(t, err, ErrInvalidConstraint)
		})
	}
	assert.Empty(t, s.Exceptions())
}

func TestException_Priority(t *testing.T) {
	s := New()
	fp, err := s.MakeException(ExceptionArgs{Type: FalsePath, From: pins(1), MinMax: corner.MinMaxAllBoth})
	require.NoError(t, err)
	mcp, err := s.MakeException(ExceptionArgs{Type: Multicycle, From: pins(1), Thrus: []*ExceptionPt{pins(2)}, To: pins(3), Multiplier: 2, MinMax: corner.MinMaxAllBoth})
	require.NoError(t, err)
	gp, err := s.MakeException(ExceptionArgs{Type: GroupPath, To: pins(3), Name: "io"})
	require.NoError(t, err)

	assert.Equal(t, 508, fp.Priority())
	assert.Equal(t, 311, mcp.Priority())
	assert.Equal(t, 101, gp.Priority())
	assert.True(t, fp.Tracked())
	assert.False(t, gp.Tracked())
}

func TestSdc_ExceptionMatching(t *testing.T) {
	s := New()
	clk, err := s.MakeClock("clk", 10, [2]float32{0, 5}, nil)
	require.NoError(t, err)

	mcp, err := s.MakeException(ExceptionArgs{
		Type:       Multicycle,
		From:       pins(1),
		Thrus:      []*ExceptionPt{pins(2)},
		To:         pins(3),
		Multiplier: 2,
		MinMax:     corner.MinMaxAllMax,
	})
	require.NoError(t, err)
	fp, err := s.MakeException(ExceptionArgs{Type: FalsePath, Thrus: []*ExceptionPt{pins(4)}, MinMax: corner.MinMaxAllBoth})
	require.NoError(t, err)
	gp, err := s.MakeException(ExceptionArgs{Type: GroupPath, To: pins(3), Name: "g"})
	require.NoError(t, err)

	states := s.StartStates(1, graph.VertexIDNull, clk, corner.Rise)
	require.Len(t, states, 1)
	assert.Equal(t, mcp, states[0].Exc)
	assert.False(t, states[0].Complete())

	states, changed, dead := s.ThruStates(states, 2, corner.Rise)
	assert.True(t, changed)
	assert.False(t, dead)
	assert.True(t, states[0].Complete())

	_, changed, _ = s.ThruStates(states, 7, corner.Rise)
	assert.False(t, changed)

	set := NewExceptionStateSet(states)
	ends := s.MatchEnd(set, 3, corner.Rise, clk, corner.Max)
	assert.Equal(t, mcp, ends.Constraint)
	assert.Equal(t, gp, ends.Group)
	assert.True(t, ends.Filtered)
	assert.Nil(t, s.MatchEnd(set, 3, corner.Rise, clk, corner.Min).Constraint)
	assert.Equal(t, mcp, s.Multicycle(set, 3, corner.Rise, clk, corner.Max))
	assert.Nil(t, s.Multicycle(set, 8, corner.Rise, clk, corner.Max))

	_, _, dead = s.ThruStates(nil, 4, corner.Fall)
	assert.True(t, dead)
	assert.NotNil(t, fp)
}

func TestSdc_ExceptionTieBreak(t *testing.T) {
	s := New()
	first, err := s.MakeException(ExceptionArgs{Type: Multicycle, To: pins(3), Multiplier: 2, MinMax: corner.MinMaxAllMax})
	require.NoError(t, err)
	second, err := s.MakeException(ExceptionArgs{Type: Multicycle, To: pins(3), Multiplier: 3, MinMax: corner.MinMaxAllMax})
	require.NoError(t, err)
	assert.Equal(t, first.Priority(), second.Priority())

	ends := s.MatchEnd(nil, 3, corner.Rise, nil, corner.Max)
	assert.Equal(t, second, ends.Constraint)
}

func TestSdc_Filter(t *testing.T) {
	s := New()
	f1, err := s.MakeException(ExceptionArgs{Type: Filter, From: pins(1), MinMax: corner.MinMaxAllBoth})
	require.NoError(t, err)
	f2, err := s.MakeException(ExceptionArgs{Type: Filter, From: pins(2), MinMax: corner.MinMaxAllBoth})
	require.NoError(t, err)
	assert.Equal(t, f2, s.Filter())
	assert.Len(t, s.Exceptions(), 1)
	_, ok := s.FindException(f1.ID())
	assert.False(t, ok)

	assert.False(t, s.MatchEnd(nil, 3, corner.Rise, nil, corner.Max).Filtered)
	set := NewExceptionStateSet(s.StartStates(2, graph.VertexIDNull, nil, corner.Rise))
	assert.True(t, set.HasFilter())
	assert.True(t, s.MatchEnd(set, 3, corner.Rise, nil, corner.Max).Filtered)

	s.DeleteFilter()
	assert.Nil(t, s.Filter())
	assert.Empty(t, s.Exceptions())
}

func TestExceptionStateSet(t *testing.T) {
	s := New()
	a, err := s.MakeException(ExceptionArgs{Type: FalsePath, From: pins(1), MinMax: corner.MinMaxAllBoth})
	require.NoError(t, err)
	b, err := s.MakeLoopException(2, 3)
	require.NoError(t, err)

	x := NewExceptionStateSet([]ExceptionState{{Exc: b}, {Exc: a}, {Exc: b}})
	y := NewExceptionStateSet([]ExceptionState{{Exc: a}, {Exc: b}})
	assert.Equal(t, 2, x.Len())
	assert.True(t, x.Equal(y))
	assert.Equal(t, x.Hash(), y.Hash())
	assert.True(t, x.HasLoop())
	assert.Equal(t, "0.0,1.0", x.String())

	assert.Nil(t, NewExceptionStateSet(nil))
	var empty *ExceptionStateSet
	assert.Equal(t, "-", empty.String())
	assert.Equal(t, -1, empty.Cmp(x))
	assert.Equal(t, 1, x.Cmp(empty))
}
