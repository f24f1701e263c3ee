package search

import (
	"context"
	"math"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/l3aro/go-sta/pkg/corner"
	"github.com/l3aro/go-sta/pkg/delay"
	"github.com/l3aro/go-sta/pkg/graph"
	"github.com/l3aro/go-sta/pkg/sdc"
)

// ReportOptions select the ends FindPathEnds returns.
type ReportOptions struct {
	MinMax corner.MinMaxAll
	// GroupCount is the number of ends per path group.
	GroupCount int
	// EndpointCount is the number of ends per endpoint. Counts above 1
	// enumerate the next worst paths to each endpoint.
	EndpointCount int
	// UniquePins drops enumerated paths through the same pins as a path
	// already returned.
	UniquePins bool
	SlackMin   float32
	SlackMax   float32
	// Unconstrained also reports paths without a required time.
	Unconstrained bool
	// SortBySlack merges the groups into one sequence ordered by slack.
	SortBySlack bool
	// Groups restricts the report to the named groups.
	Groups []string
	// Endpoints restricts the report to these pins.
	Endpoints []graph.VertexID
}

// DefaultReportOptions reports the worst setup and hold end of each group.
func DefaultReportOptions() ReportOptions {
	return ReportOptions{
		MinMax:        corner.MinMaxAllBoth,
		GroupCount:    1,
		EndpointCount: 1,
		SlackMin:      -delay.Infinity,
		SlackMax:      delay.Infinity,
	}
}

// Endpoints returns the pins where paths can end: timing check data pins,
// constrained pins and graph sinks, in id order. Check edges are not
// fanout, so a clock pin that only drives checks is a sink.
func (s *Search) Endpoints() []graph.VertexID {
	seen := make(map[graph.VertexID]bool)
	for i := 0; i < s.graph.VertexCount(); i++ {
		v := graph.VertexID(i)
		if s.hasCheckFanin(v) {
			seen[v] = true
		}
	}
	for _, v := range s.sdc.Endpoints() {
		seen[v] = true
	}
	for _, v := range s.graph.Sinks() {
		seen[v] = true
	}
	pins := make([]graph.VertexID, 0, len(seen))
	for v := range seen {
		pins = append(pins, v)
	}
	slices.Sort(pins)
	return pins
}

func (s *Search) hasCheckFanin(v graph.VertexID) bool {
	for _, eid := range s.graph.Vertex(v).FanIn() {
		if e := s.graph.Edge(eid); e.Role().IsTimingCheck() && !e.IsDisabled() {
			return true
		}
	}
	return false
}

// visitPathEnds calls fn with every end of the data paths at the
// endpoints. fn is called from several goroutines.
func (s *Search) visitPathEnds(ctx context.Context, endpoints []graph.VertexID, sel corner.MinMaxAll,
	unconstrained bool, fn func(*PathEnd)) error {
	return s.forEachParallel(ctx, endpoints, func(_ context.Context, v graph.VertexID) error {
		for _, end := range s.PathEndsAt(v, sel, unconstrained) {
			fn(end)
		}
		return nil
	})
}

// PathEndsAt returns the ends of every data path at v.
func (s *Search) PathEndsAt(v graph.VertexID, sel corner.MinMaxAll, unconstrained bool) []*PathEnd {
	if int(v) >= len(s.vertices) {
		return nil
	}
	var ends []*PathEnd
	for _, p := range s.Paths(v) {
		tag := p.Tag()
		if tag.isClock || tag.clkInfo.isGenClkSrcPath {
			continue
		}
		mm := s.minMax(tag)
		if !sel.Matches(mm) {
			continue
		}
		ends = s.appendPathEnds(ends, p, mm, unconstrained)
	}
	return ends
}

// endBuilder collects the ends of one data path.
type endBuilder struct {
	s         *Search
	path      PathVertex
	mm        corner.MinMax
	tgtAP     corner.PathAPIndex
	ends      []*PathEnd
	pathDelay bool
	found     bool
}

func (s *Search) appendPathEnds(ends []*PathEnd, p PathVertex, mm corner.MinMax, unconstrained bool) []*PathEnd {
	b := &endBuilder{
		s:     s,
		path:  p,
		mm:    mm,
		tgtAP: s.analysisPt(p.Tag()).TgtClkAnalysisPt().Index(),
		ends:  ends,
	}
	b.checks()
	b.outputDelays()
	b.gatingChecks()
	b.dataChecks()
	if !b.found {
		b.fallback(unconstrained)
	}
	return b.ends
}

func (b *endBuilder) newEnd(typ PathEndType) *PathEnd {
	return &PathEnd{
		typ:        typ,
		path:       RefOf(b.path),
		mm:         b.mm,
		checkEdge:  graph.EdgeIDNull,
		checkArc:   -1,
		tgtClkPath: nullPathVertex,
	}
}

// tgtClkPaths returns the capturing clock paths at pin with a transition
// accepted by rf.
func (b *endBuilder) tgtClkPaths(pin graph.VertexID, rf func(corner.RiseFall) bool, clockOnly bool) []PathVertex {
	var paths []PathVertex
	for _, p := range b.s.Paths(pin) {
		t := p.Tag()
		if t.pathAPIndex != b.tgtAP || t.clkInfo.isGenClkSrcPath || t.ClkEdge() == nil || !rf(t.rf) {
			continue
		}
		if clockOnly && !t.isClock {
			continue
		}
		paths = append(paths, p)
	}
	return paths
}

func isRF(want corner.RiseFall) func(corner.RiseFall) bool {
	return func(rf corner.RiseFall) bool { return rf == want }
}

func (b *endBuilder) checks() {
	s, v, tag := b.s, b.path.Vertex(), b.path.Tag()
	for _, eid := range s.graph.Vertex(v).FanIn() {
		e := s.graph.Edge(eid)
		role := e.Role()
		if !role.IsTimingCheck() || e.IsDisabled() || role.CheckMinMax() != b.mm {
			continue
		}
		typ := EndCheck
		if role == graph.RoleLatchSetup {
			typ = EndLatchCheck
		}
		for arcIdx, arc := range e.Arcs() {
			if arc.ToRF != tag.rf {
				continue
			}
			for _, clkPath := range b.tgtClkPaths(e.From(), isRF(arc.FromRF), true) {
				end := b.newEnd(typ)
				end.checkEdge, end.checkArc, end.checkRole = eid, arcIdx, role
				end.tgtClkPath = clkPath
				end.tgtClkEdge = clkPath.Tag().ClkEdge()
				end.tgtArrival = clkPath.Arrival()
				end.margin = s.model.AsFloat(s.graph.ArcDelay(eid, arcIdx, b.tgtAP), b.mm)
				end.uncertainty = clkPath.Tag().clkInfo.uncertainties.Value(b.mm)
				b.add(end, end.tgtClkEdge.Clock())
			}
		}
	}
}

func (b *endBuilder) outputDelays() {
	s, v, tag := b.s, b.path.Vertex(), b.path.Tag()
	tgtMM := s.corners.PathAnalysisPt(b.tgtAP).PathMinMax()
	for _, od := range s.sdc.OutputDelaysOnPin(v) {
		edge := od.ClockEdge()
		if edge == nil || !usableClock(edge.Clock()) {
			continue
		}
		clk := edge.Clock()
		latency := clk.SourceLatency(tgtMM)
		if clk.IsIdeal() {
			latency += clk.NetworkLatency(tgtMM)
		}
		end := b.newEnd(EndOutputDelay)
		end.outputDelay = od
		end.tgtClkEdge = edge
		end.tgtArrival = delay.New(edge.Time() + latency)
		end.margin = od.Delay(tag.rf, b.mm)
		end.uncertainty = clk.Uncertainty().Value(b.mm)
		b.add(end, clk)
	}
}

func (b *endBuilder) gatingChecks() {
	s, v := b.s, b.path.Vertex()
	for _, gc := range s.sdc.GatingChecksOn(v) {
		for _, clkPath := range b.tgtClkPaths(gc.ClockPin(), isRF(gc.ClockRF(b.mm)), true) {
			end := b.newEnd(EndGatedClock)
			end.gatingCheck = gc
			end.tgtClkPath = clkPath
			end.tgtClkEdge = clkPath.Tag().ClkEdge()
			end.tgtArrival = clkPath.Arrival()
			end.margin = gc.Margin(b.mm)
			end.uncertainty = clkPath.Tag().clkInfo.uncertainties.Value(b.mm)
			b.add(end, end.tgtClkEdge.Clock())
		}
	}
}

func (b *endBuilder) dataChecks() {
	s, v, tag := b.s, b.path.Vertex(), b.path.Tag()
	for _, dc := range s.sdc.DataChecksTo(v) {
		margin, ok := dc.Margin(b.mm)
		if !ok || !dc.ToRF().Matches(tag.rf) {
			continue
		}
		for _, tgtPath := range b.tgtClkPaths(dc.From(), dc.FromRF().Matches, false) {
			end := b.newEnd(EndDataCheck)
			end.dataCheck = dc
			end.tgtClkPath = tgtPath
			end.tgtClkEdge = tgtPath.Tag().ClkEdge()
			end.tgtArrival = tgtPath.Arrival()
			end.margin = margin
			end.uncertainty = tgtPath.Tag().clkInfo.uncertainties.Value(b.mm)
			b.add(end, end.tgtClkEdge.Clock())
		}
	}
}

// add applies the end exceptions to a candidate end and keeps it.
func (b *endBuilder) add(end *PathEnd, tgtClk *sdc.Clock) {
	s, v, tag := b.s, b.path.Vertex(), b.path.Tag()
	ee := s.sdc.MatchEnd(tag.states, v, tag.rf, tgtClk, b.mm)
	if !ee.Filtered {
		return
	}
	b.found = true
	if c := ee.Constraint; c != nil {
		switch c.Type() {
		case sdc.FalsePath:
			return
		case sdc.PathDelay:
			if b.pathDelay {
				return
			}
			b.pathDelay = true
			pd := b.newEnd(EndPathDelay)
			pd.pathDelay = c
			if end.typ == EndCheck {
				pd.checkEdge, pd.checkArc, pd.checkRole = end.checkEdge, end.checkArc, end.checkRole
				pd.margin = end.margin
			}
			b.keep(pd, ee.Group)
			return
		case sdc.Multicycle:
			end.multicycle = c
		}
	}
	if tag.ClkEdge() == nil {
		return
	}
	if !s.setTarget(end, tgtClk) {
		return
	}
	b.keep(end, ee.Group)
}

func (b *endBuilder) keep(end *PathEnd, group *sdc.Exception) {
	end.groupExc = group
	b.s.evalEnd(end)
	end.group = b.s.groupName(end)
	b.ends = append(b.ends, end)
}

// fallback ends a path that no check or constraint claimed: a path delay
// exception still applies, otherwise the path is unconstrained.
func (b *endBuilder) fallback(unconstrained bool) {
	s, v, tag := b.s, b.path.Vertex(), b.path.Tag()
	ee := s.sdc.MatchEnd(tag.states, v, tag.rf, nil, b.mm)
	if !ee.Filtered {
		return
	}
	if c := ee.Constraint; c != nil {
		switch c.Type() {
		case sdc.FalsePath:
			return
		case sdc.PathDelay:
			pd := b.newEnd(EndPathDelay)
			pd.pathDelay = c
			b.keep(pd, ee.Group)
			return
		}
	}
	if unconstrained {
		b.keep(b.newEnd(EndUnconstrained), ee.Group)
	}
}

// setTarget sets the capture time of a clocked end from the cycle
// accounting of its source and target edges and any multicycle exception.
func (s *Search) setTarget(end *PathEnd, tgtClk *sdc.Clock) bool {
	tag := end.Tag()
	src, tgt := tag.ClkEdge(), end.tgtClkEdge
	if !usableClock(src.Clock()) || !usableClock(tgt.Clock()) {
		return false
	}
	pt := tgt.Clock().Period()

	setupMult := 1
	if end.mm == corner.Max && end.multicycle != nil {
		setupMult = end.multicycle.Multiplier()
	} else if m := s.sdc.Multicycle(tag.states, end.Vertex(), tag.rf, tgtClk, corner.Max); m != nil {
		setupMult = m.Multiplier()
	}
	holdMult := 0
	if end.mm == corner.Min && end.multicycle != nil {
		holdMult = end.multicycle.Multiplier()
	}

	switch end.typ {
	case EndDataCheck:
		ca := s.cycles.find(src, tgt)
		if end.mm == corner.Max {
			end.target = ca.DataSetupTarget() + float32(max(setupMult, 1)-1)*pt
		} else {
			end.target = ca.DataHoldTarget() + float32(max(setupMult, 1)-1)*pt - float32(holdMult)*pt
		}

	case EndLatchCheck:
		open := tgt.Opposite()
		openTarget := s.cycles.find(src, open).MulticycleSetup(setupMult)
		width := float32(math.Mod(float64(tgt.Time()-open.Time()), float64(pt)))
		if width < 0 {
			width += pt
		}
		end.openTarget = openTarget
		end.target = openTarget + width

	default:
		ca := s.cycles.find(src, tgt)
		if end.mm == corner.Max {
			end.target = ca.MulticycleSetup(setupMult)
		} else {
			end.target = ca.MulticycleHold(setupMult, holdMult)
		}
	}
	return true
}

// groupName returns the path group of an end: a group path exception if
// one matched, else the capturing clock or a fixed group for ends with no
// capturing clock.
func (s *Search) groupName(e *PathEnd) string {
	if e.groupExc != nil {
		return e.groupExc.Name()
	}
	switch e.typ {
	case EndUnconstrained:
		return UnconstrainedGroupName
	case EndPathDelay:
		return PathDelayGroupName
	case EndGatedClock:
		return GatedClockGroupName
	case EndCheck:
		if e.checkRole.IsAsync() {
			return AsyncGroupName
		}
	}
	return e.tgtClkEdge.Clock().Name()
}

type groupKey struct {
	name string
	mm   corner.MinMax
}

// pathGroups holds the groups of one FindPathEnds call.
type pathGroups struct {
	s      *Search
	opts   PathGroupOptions
	filter map[string]bool
	// Rank of the group path exception names in definition order.
	named map[string]int

	mu     sync.Mutex
	groups map[groupKey]*PathGroup
}

func (s *Search) newPathGroups(opts ReportOptions) *pathGroups {
	gs := &pathGroups{
		s: s,
		opts: PathGroupOptions{
			GroupCount:    opts.GroupCount,
			EndpointCount: opts.EndpointCount,
			SlackMin:      opts.SlackMin,
			SlackMax:      opts.SlackMax,
		},
		named:  make(map[string]int),
		groups: make(map[groupKey]*PathGroup),
	}
	if len(opts.Groups) > 0 {
		gs.filter = make(map[string]bool, len(opts.Groups))
		for _, name := range opts.Groups {
			gs.filter[name] = true
		}
	}
	for _, e := range s.sdc.Exceptions() {
		if e.Type() != sdc.GroupPath {
			continue
		}
		if _, ok := gs.named[e.Name()]; !ok {
			gs.named[e.Name()] = len(gs.named)
		}
	}
	return gs
}

func (gs *pathGroups) insert(end *PathEnd) {
	if gs.filter != nil && !gs.filter[end.group] {
		return
	}
	key := groupKey{name: end.group, mm: end.mm}
	gs.mu.Lock()
	g, ok := gs.groups[key]
	if !ok {
		g = gs.s.NewPathGroup(end.group, end.mm, gs.opts)
		gs.groups[key] = g
	}
	gs.mu.Unlock()
	g.Insert(end)
}

// fixedGroupRank orders the groups without a capturing clock after the
// clock groups.
var fixedGroupRank = map[string]int{
	AsyncGroupName:         1,
	GatedClockGroupName:    2,
	PathDelayGroupName:     3,
	UnconstrainedGroupName: 4,
}

// sorted returns the groups in report order: max before min, then group
// path exceptions in definition order, clock groups by name and the fixed
// groups.
func (gs *pathGroups) sorted() []*PathGroup {
	groups := make([]*PathGroup, 0, len(gs.groups))
	for _, g := range gs.groups {
		groups = append(groups, g)
	}
	rank := func(g *PathGroup) (int, int) {
		if r, ok := gs.named[g.name]; ok {
			return 0, r
		}
		if r, ok := fixedGroupRank[g.name]; ok {
			return 2, r
		}
		return 1, 0
	}
	slices.SortFunc(groups, func(a, b *PathGroup) int {
		if a.mm != b.mm {
			return cmpInt(int(b.mm), int(a.mm))
		}
		ac, ar := rank(a)
		bc, br := rank(b)
		if ac != bc {
			return cmpInt(ac, bc)
		}
		if ar != br {
			return cmpInt(ar, br)
		}
		switch {
		case a.name < b.name:
			return -1
		case a.name > b.name:
			return 1
		}
		return 0
	})
	return groups
}

// FindPathEnds finds arrivals if needed and returns the worst ends of
// every path group.
func (s *Search) FindPathEnds(ctx context.Context, opts ReportOptions) (PathEndSeq, error) {
	if err := s.FindArrivals(ctx); err != nil {
		return nil, err
	}
	ctx, span := tracer.Start(ctx, "search.FindPathEnds")
	defer span.End()
	start := time.Now()

	opts.GroupCount = max(opts.GroupCount, 1)
	opts.EndpointCount = max(opts.EndpointCount, 1)
	endpoints := opts.Endpoints
	if len(endpoints) == 0 {
		endpoints = s.Endpoints()
	}
	unconstrained := opts.Unconstrained || s.opts.Unconstrained

	groups := s.newPathGroups(opts)
	if err := s.visitPathEnds(ctx, endpoints, opts.MinMax, unconstrained, groups.insert); err != nil {
		span.RecordError(err)
		return nil, err
	}

	var ends PathEndSeq
	for _, g := range groups.sorted() {
		found := g.PathEnds()
		if opts.EndpointCount > 1 || opts.UniquePins {
			enum := s.NewPathEnum(found, PathEnumOptions{
				GroupCount:    opts.GroupCount,
				EndpointCount: opts.EndpointCount,
				UniquePins:    opts.UniquePins,
				SlackMin:      opts.SlackMin,
				SlackMax:      opts.SlackMax,
			})
			found = enum.All()
			if err := enum.Err(); err != nil {
				span.RecordError(err)
				return nil, err
			}
		}
		ends = append(ends, found...)
	}
	if opts.SortBySlack {
		slices.SortStableFunc(ends, s.cmpEnds)
	}

	span.SetAttributes(
		attribute.Int("endpoints", len(endpoints)),
		attribute.Int("groups", len(groups.groups)),
		attribute.Int("ends", len(ends)),
	)
	s.metrics.flush(ctx, "path_ends", time.Since(start), len(endpoints))
	return ends, nil
}
