package search

import (
	"github.com/l3aro/go-sta/pkg/corner"
	"github.com/l3aro/go-sta/pkg/delay"
	"github.com/l3aro/go-sta/pkg/graph"
	"github.com/l3aro/go-sta/pkg/sdc"
)

// Crpr is the clock reconvergence pessimism credit of a check and the pin
// where the source and target clock paths reconverge.
type Crpr struct {
	Credit delay.Delay
	Pin    graph.VertexID
}

var noCrpr = Crpr{Pin: graph.VertexIDNull}

// CheckCrpr removes the pessimism of a check whose launching and capturing
// clock paths share a common segment that was timed late on one path and
// early on the other.
type CheckCrpr struct {
	search *Search
}

// CrprPossible reports if two clocks can share physical clock tree pins.
func CrprPossible(clk1, clk2 *sdc.Clock) bool {
	if clk1 == nil || clk2 == nil {
		return false
	}
	if clk1.IsVirtual() || clk2.IsVirtual() || !clk1.IsPropagated() || !clk2.IsPropagated() {
		return false
	}
	return clk1 == clk2 || clk1.IsGenerated() || clk2.IsGenerated()
}

// CheckCrpr returns the credit between the clock path that launched src and
// the target clock path tgtClk. The credit is zero, and ok false, when
// either path is unclocked, the clocks cannot reconverge or no common pin
// exists.
func (c *CheckCrpr) CheckCrpr(src, tgtClk Path) (Crpr, bool) {
	s := c.search
	if !s.crprActive() || src.IsNull() || tgtClk.IsNull() {
		return noCrpr, false
	}
	p1, ok1 := c.clkPathOf(src)
	p2, ok2 := c.clkPathOf(tgtClk)
	if !ok1 || !ok2 {
		return noCrpr, false
	}
	if !CrprPossible(p1.Tag().ClkInfo().Clock(), p2.Tag().ClkInfo().Clock()) {
		return noCrpr, false
	}

	c1, c2, ok := c.commonPaths(p1, p2)
	if !ok {
		return noCrpr, false
	}
	if s.opts.CrprMode == CrprSameTransition && c1.Tag().RF() != c2.Tag().RF() {
		return noCrpr, false
	}
	d1, ok1 := c.legDelta(c1)
	d2, ok2 := c.legDelta(c2)
	if !ok1 || !ok2 {
		return noCrpr, false
	}

	credit := delay.New(min(d1, d2))
	if s.model.IsStatistical() {
		credit.Sigma2 = -(c1.Arrival().Sigma2 + c2.Arrival().Sigma2)
	}
	return Crpr{Credit: credit, Pin: c1.Vertex()}, true
}

// clkPathOf returns the clock path behind p: p itself for clock paths, the
// launching clock path recorded in the clock info for data paths.
func (c *CheckCrpr) clkPathOf(p Path) (Path, bool) {
	tag := p.Tag()
	if tag == nil {
		return nullPathVertex, false
	}
	if tag.IsClock() {
		return p, true
	}
	rep := tag.ClkInfo().CrprClkPath()
	if rep.IsNull() {
		return nullPathVertex, false
	}
	pv, ok := rep.Resolve(c.search)
	if !ok {
		return nullPathVertex, false
	}
	return pv, true
}

// commonPaths walks both clock paths back to the first pin they share.
func (c *CheckCrpr) commonPaths(p1, p2 Path) (Path, Path, bool) {
	g := c.search.graph
	for !p1.IsNull() && !p2.IsNull() {
		if p1.Vertex() == p2.Vertex() {
			return p1, p2, true
		}
		l1 := g.Vertex(p1.Vertex()).Level()
		l2 := g.Vertex(p2.Vertex()).Level()
		switch {
		case l1 > l2:
			p1 = c.prevClkPath(p1)
		case l2 > l1:
			p2 = c.prevClkPath(p2)
		default:
			p1 = c.prevClkPath(p1)
			p2 = c.prevClkPath(p2)
		}
	}
	return nullPathVertex, nullPathVertex, false
}

// prevClkPath steps back along a clock path. The root of a generated clock
// continues on the master clock path that defines it.
func (c *CheckCrpr) prevClkPath(p Path) Path {
	if prev := p.PrevPath(); !prev.IsNull() {
		return prev
	}
	ci := p.Tag().ClkInfo()
	clk := ci.Clock()
	if ci.GenClkSrc() == graph.VertexIDNull || clk == nil || !clk.IsGenerated() || ci.IsGenClkSrcPath() {
		return nullPathVertex
	}
	rep, ok := c.search.genclks.srcPath(clk, p.Tag().RF(), p.Tag().PathAPIndex())
	if !ok {
		return nullPathVertex
	}
	src, ok := rep.Resolve(c.search)
	if !ok || (src.Vertex() == p.Vertex() && src.Tag() == p.Tag()) {
		return nullPathVertex
	}
	return src
}

// legDelta returns the difference between the arrival of p and the arrival
// of the same clock edge at the same pin in the opposite analysis mode.
func (c *CheckCrpr) legDelta(p Path) (float32, bool) {
	other, ok := c.oppositePath(p)
	if !ok {
		return 0, false
	}
	d := p.Arrival().Mean - other.Arrival().Mean
	if d < 0 {
		d = -d
	}
	return d, true
}

func (c *CheckCrpr) oppositePath(p Path) (PathVertex, bool) {
	s := c.search
	tag := p.Tag()
	ap := s.analysisPt(tag)
	opp := ap.Corner().PathAnalysisPt(ap.PathMinMax().Opposite()).Index()

	var found *Tag
	for _, t := range s.TagGroup(p.Vertex()).Tags() {
		if !sameClockLeg(t, tag, opp) {
			continue
		}
		if found == nil || (t.states.Equal(tag.states) && !found.states.Equal(tag.states)) {
			found = t
		}
	}
	if found == nil {
		return nullPathVertex, false
	}
	return s.Path(p.Vertex(), found)
}

func sameClockLeg(t, ref *Tag, ap corner.PathAPIndex) bool {
	return t.pathAPIndex == ap &&
		t.rf == ref.rf &&
		t.isClock == ref.isClock &&
		t.clkInfo.clkEdge == ref.clkInfo.clkEdge &&
		t.clkInfo.isGenClkSrcPath == ref.clkInfo.isGenClkSrcPath
}
