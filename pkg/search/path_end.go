package search

import (
	"fmt"

	"github.com/l3aro/go-sta/pkg/corner"
	"github.com/l3aro/go-sta/pkg/delay"
	"github.com/l3aro/go-sta/pkg/graph"
	"github.com/l3aro/go-sta/pkg/sdc"
)

// PathEndType is the constraint that ends a path.
type PathEndType int8

const (
	EndUnconstrained PathEndType = iota
	EndCheck
	EndLatchCheck
	EndOutputDelay
	EndGatedClock
	EndDataCheck
	EndPathDelay
)

var pathEndTypeNames = [...]string{
	EndUnconstrained: "unconstrained",
	EndCheck:         "check",
	EndLatchCheck:    "latch_check",
	EndOutputDelay:   "output_delay",
	EndGatedClock:    "gated_clock",
	EndDataCheck:     "data_check",
	EndPathDelay:     "path_delay",
}

func (t PathEndType) String() string { return pathEndTypeNames[t] }

// PathEnd is a path classified by the constraint at its endpoint, with the
// required time and slack of that constraint.
type PathEnd struct {
	typ  PathEndType
	path PathRef
	mm   corner.MinMax

	// Timing check arc, EdgeIDNull for ends without one.
	checkEdge graph.EdgeID
	checkArc  int
	checkRole graph.Role

	tgtClkPath  PathVertex
	tgtClkEdge  *sdc.ClockEdge
	outputDelay *sdc.OutputDelay
	dataCheck   *sdc.DataCheck
	gatingCheck *sdc.ClockGatingCheck
	multicycle  *sdc.Exception
	pathDelay   *sdc.Exception
	groupExc    *sdc.Exception
	group       string

	margin      float32
	target      float32
	tgtArrival  delay.Delay
	uncertainty float32
	openTarget  float32

	crpr      Crpr
	crprFound bool
	borrow    float32
	required  delay.Delay
	slack     float32
}

func (e *PathEnd) Type() PathEndType { return e.typ }

// Path returns the data path of the end.
func (e *PathEnd) Path() PathRef           { return e.path }
func (e *PathEnd) Vertex() graph.VertexID  { return e.path.Vertex() }
func (e *PathEnd) Tag() *Tag               { return e.path.Tag() }
func (e *PathEnd) MinMax() corner.MinMax   { return e.mm }
func (e *PathEnd) Arrival() delay.Delay    { return e.path.Arrival() }
func (e *PathEnd) Required() delay.Delay   { return e.required }
func (e *PathEnd) Slack() float32          { return e.slack }
func (e *PathEnd) Margin() float32         { return e.margin }
func (e *PathEnd) Uncertainty() float32    { return e.uncertainty }
func (e *PathEnd) Borrow() float32         { return e.borrow }
func (e *PathEnd) CheckRole() graph.Role   { return e.checkRole }
func (e *PathEnd) CheckEdge() graph.EdgeID { return e.checkEdge }
func (e *PathEnd) Multicycle() *sdc.Exception {
	return e.multicycle
}
func (e *PathEnd) PathDelay() *sdc.Exception { return e.pathDelay }

// GroupName returns the name of the path group the end belongs to.
func (e *PathEnd) GroupName() string { return e.group }

// TargetClockEdge returns the capturing clock edge, nil when there is none.
func (e *PathEnd) TargetClockEdge() *sdc.ClockEdge { return e.tgtClkEdge }

// TargetClockPath returns the capturing clock path of checks.
func (e *PathEnd) TargetClockPath() (PathVertex, bool) {
	return e.tgtClkPath, !e.tgtClkPath.IsNull()
}

// SourceClockEdge returns the launching clock edge, nil for unclocked paths.
func (e *PathEnd) SourceClockEdge() *sdc.ClockEdge { return e.Tag().ClkEdge() }

// Crpr returns the pessimism credit applied to the required time.
func (e *PathEnd) Crpr() (Crpr, bool) { return e.crpr, e.crprFound }

// TargetTime returns the capture edge time after cycle accounting.
func (e *PathEnd) TargetTime() float32 { return e.target }

// IsUnconstrained reports if the end has no required time.
func (e *PathEnd) IsUnconstrained() bool { return e.typ == EndUnconstrained }

func (e *PathEnd) String() string {
	return fmt.Sprintf("%s %s %s slack %s", e.typ, e.path, e.mm.CheckName(), formatFloat(e.slack))
}

// withPath returns a copy of e ending with another path to the same
// endpoint. The required time and slack must be evaluated again.
func (e *PathEnd) withPath(p PathRef) *PathEnd {
	c := *e
	c.path = p
	return &c
}

// evalEnd computes the required time and slack of an end from its
// constraint fields and the arrival of its path.
func (s *Search) evalEnd(e *PathEnd) {
	arrival := e.path.Arrival()
	e.crpr, e.crprFound = noCrpr, false
	e.borrow = 0

	switch e.typ {
	case EndUnconstrained:
		e.required = delay.RequiredInit(e.mm)
		e.slack = delay.Infinity
		return

	case EndPathDelay:
		var launch float32
		if edge := e.Tag().ClkEdge(); edge != nil {
			launch = edge.Time()
		}
		req := launch + e.pathDelay.Delay()
		if e.mm == corner.Max {
			req -= e.margin
		} else {
			req += e.margin
		}
		e.required = delay.New(req)

	case EndOutputDelay:
		req := e.tgtArrival.AddFloat(e.target - e.tgtClkEdge.Time())
		if e.mm == corner.Max {
			e.required = req.AddFloat(-e.margin - e.uncertainty)
		} else {
			e.required = req.AddFloat(-e.margin + e.uncertainty)
		}

	case EndLatchCheck:
		s.evalLatchCheck(e, arrival)
		return

	default:
		e.crpr, e.crprFound = s.crpr.CheckCrpr(e.path, e.tgtClkPath)
		req := e.tgtArrival.AddFloat(e.target - e.tgtClkEdge.Time())
		if e.mm == corner.Max {
			req = req.AddFloat(-e.margin - e.uncertainty)
			if e.crprFound {
				req = req.Add(e.crpr.Credit)
			}
		} else {
			req = req.AddFloat(e.margin + e.uncertainty)
			if e.crprFound {
				req = req.Sub(e.crpr.Credit)
			}
		}
		e.required = req
	}
	e.slack = s.slackOf(arrival, e.required, e.mm)
}

// slackOf returns required - arrival for max paths and arrival - required
// for min paths, bounded at the early side for statistical delays.
func (s *Search) slackOf(arrival, required delay.Delay, mm corner.MinMax) float32 {
	if delay.IsInf(required.Mean) {
		return delay.Infinity
	}
	var d delay.Delay
	if mm == corner.Max {
		d = required.Sub(arrival)
	} else {
		d = arrival.Sub(required)
	}
	return s.model.AsFloat(d, corner.Early)
}

// evalLatchCheck times a path into a transparent latch. A path arriving
// before the latch opens needs no borrowing. A later arrival borrows time
// from the next stage up to the borrow limit, which defaults to the width
// of the enable pulse.
func (s *Search) evalLatchCheck(e *PathEnd, arrival delay.Delay) {
	e.crpr, e.crprFound = s.crpr.CheckCrpr(e.path, e.tgtClkPath)
	reqClose := e.tgtArrival.AddFloat(e.target - e.tgtClkEdge.Time() - e.margin - e.uncertainty)
	if e.crprFound {
		reqClose = reqClose.Add(e.crpr.Credit)
	}
	width := e.target - e.openTarget
	reqOpen := reqClose.AddFloat(-width)

	arr := s.model.AsFloat(arrival, corner.Late)
	open := s.model.AsFloat(reqOpen, corner.Early)
	if arr <= open {
		e.required = reqOpen
		e.slack = s.slackOf(arrival, reqOpen, corner.Max)
		return
	}

	limit := width
	if l, ok := s.sdc.MaxTimeBorrow(e.tgtClkEdge.Clock(), e.Vertex(), e.tgtClkPath.Vertex()); ok {
		limit = min(l, width)
	}
	borrow := arr - open
	if borrow <= limit {
		e.borrow = borrow
		e.required = arrival
		e.slack = 0
		return
	}
	e.borrow = limit
	e.required = reqOpen.AddFloat(limit)
	e.slack = s.slackOf(arrival, e.required, corner.Max)
}

// cmpEnds orders ends worst first: constrained ends by slack, then
// unconstrained ends by arrival. Ties fall back to the endpoint, the tag
// and the end type so the order is total.
func (s *Search) cmpEnds(a, b *PathEnd) int {
	au, bu := a.IsUnconstrained(), b.IsUnconstrained()
	switch {
	case !au && bu:
		return -1
	case au && !bu:
		return 1
	case !au:
		if r := cmpFloat(a.slack, b.slack); r != 0 {
			return r
		}
	default:
		aa := s.model.AsFloat(a.Arrival(), a.mm)
		ba := s.model.AsFloat(b.Arrival(), b.mm)
		if a.mm == corner.Max {
			aa, ba = -aa, -ba
		}
		if r := cmpFloat(aa, ba); r != 0 {
			return r
		}
	}
	if r := cmpInt(int(a.Vertex()), int(b.Vertex())); r != 0 {
		return r
	}
	if r := a.Tag().Cmp(b.Tag()); r != 0 {
		return r
	}
	if r := cmpInt(int(a.typ), int(b.typ)); r != 0 {
		return r
	}
	return cmpInt(int(a.checkEdge), int(b.checkEdge))
}

// PathEndSeq is a sequence of path ends, worst first within each group.
type PathEndSeq []*PathEnd
