package search

import (
	"github.com/l3aro/go-sta/pkg/corner"
	"github.com/l3aro/go-sta/pkg/delay"
	"github.com/l3aro/go-sta/pkg/graph"
	"github.com/l3aro/go-sta/pkg/sdc"
)

// ClkInfo is the clock context shared by the paths launched or propagated by
// one clock edge. ClkInfos are interned: equal content means the same
// pointer. A ClkInfo must not change once FindClkInfo has returned it.
type ClkInfo struct {
	id uint32

	clkEdge         *sdc.ClockEdge
	clkSrc          graph.VertexID
	isPropagated    bool
	genClkSrc       graph.VertexID
	isGenClkSrcPath bool
	isPulseClk      bool
	pulseClkSense   corner.RiseFall
	insertion       delay.Delay
	latency         float32
	uncertainties   *sdc.ClockUncertainties
	pathAPIndex     corner.PathAPIndex
	crprClkPath     PathVertexRep

	hash uint64
}

// ClkInfoArgs are the fields of a ClkInfo. ClkSrc, GenClkSrc and
// CrprClkPath use the null sentinels when absent.
type ClkInfoArgs struct {
	ClkEdge         *sdc.ClockEdge
	ClkSrc          graph.VertexID
	IsPropagated    bool
	GenClkSrc       graph.VertexID
	IsGenClkSrcPath bool
	IsPulseClk      bool
	PulseClkSense   corner.RiseFall
	Insertion       delay.Delay
	Latency         float32
	Uncertainties   *sdc.ClockUncertainties
	PathAPIndex     corner.PathAPIndex
	CrprClkPath     PathVertexRep
}

// UnclockedArgs returns the arguments of the clock context of unclocked
// paths for an analysis point.
func UnclockedArgs(ap corner.PathAPIndex) ClkInfoArgs {
	return ClkInfoArgs{
		ClkSrc:      graph.VertexIDNull,
		GenClkSrc:   graph.VertexIDNull,
		PathAPIndex: ap,
		CrprClkPath: NullPathVertexRep,
	}
}

func newClkInfo(args ClkInfoArgs) *ClkInfo {
	ci := &ClkInfo{
		clkEdge:         args.ClkEdge,
		clkSrc:          args.ClkSrc,
		isPropagated:    args.IsPropagated,
		genClkSrc:       args.GenClkSrc,
		isGenClkSrcPath: args.IsGenClkSrcPath,
		isPulseClk:      args.IsPulseClk,
		insertion:       args.Insertion,
		latency:         args.Latency,
		pathAPIndex:     args.PathAPIndex,
		crprClkPath:     args.CrprClkPath,
	}
	if args.IsPulseClk {
		ci.pulseClkSense = args.PulseClkSense
	}
	if args.Uncertainties != nil {
		u := *args.Uncertainties
		ci.uncertainties = &u
	}
	ci.hash = ci.contentKey(nil).sum()
	return ci
}

func (c *ClkInfo) contentKey(b keyBuf) keyBuf {
	b = b.i32(int32(sdc.ClockEdgeIndex(c.clkEdge))).
		i32(int32(c.clkSrc)).
		flag(c.isPropagated).
		i32(int32(c.genClkSrc)).
		flag(c.isGenClkSrcPath).
		flag(c.isPulseClk).
		u32(uint32(c.pulseClkSense)).
		f32(c.insertion.Mean).
		f32(c.insertion.Sigma2).
		f32(c.latency).
		flag(c.uncertainties != nil)
	if c.uncertainties != nil {
		b = b.f32(c.uncertainties.Setup).f32(c.uncertainties.Hold)
	}
	return b.u32(uint32(c.pathAPIndex)).
		i32(int32(c.crprClkPath.Vertex)).
		u32(uint32(c.crprClkPath.Tag))
}

// Args returns the fields of the ClkInfo.
func (c *ClkInfo) Args() ClkInfoArgs {
	return ClkInfoArgs{
		ClkEdge:         c.clkEdge,
		ClkSrc:          c.clkSrc,
		IsPropagated:    c.isPropagated,
		GenClkSrc:       c.genClkSrc,
		IsGenClkSrcPath: c.isGenClkSrcPath,
		IsPulseClk:      c.isPulseClk,
		PulseClkSense:   c.pulseClkSense,
		Insertion:       c.insertion,
		Latency:         c.latency,
		Uncertainties:   c.uncertainties,
		PathAPIndex:     c.pathAPIndex,
		CrprClkPath:     c.crprClkPath,
	}
}

// ID returns the interned id of the clock info.
func (c *ClkInfo) ID() uint32 { return c.id }

// ClkEdge returns the clock edge, nil for unclocked paths.
func (c *ClkInfo) ClkEdge() *sdc.ClockEdge { return c.clkEdge }

// ClkSrc returns the clock source pin the path left from.
func (c *ClkInfo) ClkSrc() graph.VertexID { return c.clkSrc }

func (c *ClkInfo) IsPropagated() bool { return c.isPropagated }

// GenClkSrc returns the generated clock source pin, VertexIDNull if the
// clock is not generated.
func (c *ClkInfo) GenClkSrc() graph.VertexID { return c.genClkSrc }

func (c *ClkInfo) IsGenClkSrcPath() bool { return c.isGenClkSrcPath }

// Insertion returns the clock source insertion delay.
func (c *ClkInfo) Insertion() delay.Delay { return c.insertion }

// Latency returns the ideal network latency, zero for propagated clocks.
func (c *ClkInfo) Latency() float32 { return c.latency }

// Uncertainties returns the uncertainties at the clock source pin.
func (c *ClkInfo) Uncertainties() *sdc.ClockUncertainties { return c.uncertainties }

func (c *ClkInfo) PathAPIndex() corner.PathAPIndex { return c.pathAPIndex }

// CrprClkPath returns the clock path that launched a data path, used to
// find the common clock pin of a check.
func (c *ClkInfo) CrprClkPath() PathVertexRep { return c.crprClkPath }

// PulseClkSense returns the sense of a pulse clock and whether the clock is
// a pulse clock.
func (c *ClkInfo) PulseClkSense() (corner.RiseFall, bool) { return c.pulseClkSense, c.isPulseClk }

// Clock returns the clock of the edge, nil for unclocked paths.
func (c *ClkInfo) Clock() *sdc.Clock {
	if c.clkEdge == nil {
		return nil
	}
	return c.clkEdge.Clock()
}

// Hash returns the content hash.
func (c *ClkInfo) Hash() uint64 { return c.hash }

// Equal compares by content. The CRPR clock path is compared by vertex and
// tag index.
func (c *ClkInfo) Equal(o *ClkInfo) bool {
	if c == o {
		return true
	}
	return c.hash == o.hash && c.Cmp(o) == 0
}

// Cmp is a total order over ClkInfo content.
func (c *ClkInfo) Cmp(o *ClkInfo) int {
	if c == o {
		return 0
	}
	if r := cmpInt(sdc.ClockEdgeIndex(c.clkEdge), sdc.ClockEdgeIndex(o.clkEdge)); r != 0 {
		return r
	}
	if r := cmpInt(int(c.pathAPIndex), int(o.pathAPIndex)); r != 0 {
		return r
	}
	if r := cmpInt(int(c.clkSrc), int(o.clkSrc)); r != 0 {
		return r
	}
	if r := cmpBool(c.isPropagated, o.isPropagated); r != 0 {
		return r
	}
	if r := cmpInt(int(c.genClkSrc), int(o.genClkSrc)); r != 0 {
		return r
	}
	if r := cmpBool(c.isGenClkSrcPath, o.isGenClkSrcPath); r != 0 {
		return r
	}
	if r := cmpBool(c.isPulseClk, o.isPulseClk); r != 0 {
		return r
	}
	if r := cmpInt(int(c.pulseClkSense), int(o.pulseClkSense)); r != 0 {
		return r
	}
	if r := cmpFloat(c.insertion.Mean, o.insertion.Mean); r != 0 {
		return r
	}
	if r := cmpFloat(c.insertion.Sigma2, o.insertion.Sigma2); r != 0 {
		return r
	}
	if r := cmpFloat(c.latency, o.latency); r != 0 {
		return r
	}
	if r := cmpUncertainties(c.uncertainties, o.uncertainties); r != 0 {
		return r
	}
	return c.crprClkPath.Cmp(o.crprClkPath)
}

func cmpUncertainties(a, b *sdc.ClockUncertainties) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if r := cmpFloat(a.Setup, b.Setup); r != 0 {
		return r
	}
	return cmpFloat(a.Hold, b.Hold)
}

// FindClkInfo returns the canonical ClkInfo with the given content.
func (s *Search) FindClkInfo(args ClkInfoArgs) (*ClkInfo, error) {
	ci := newClkInfo(args)
	got, _, inserted, err := s.clkInfos.FindOrInsert(ci, func(id uint32) { ci.id = id })
	if err != nil {
		return nil, critical("FindClkInfo", "%v", err)
	}
	if inserted {
		s.metrics.clkInfoCreated()
	}
	return got, nil
}

// ClkInfoCount returns the number of interned clock infos.
func (s *Search) ClkInfoCount() int { return s.clkInfos.Len() }
