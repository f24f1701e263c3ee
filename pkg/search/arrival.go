package search

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/l3aro/go-sta/pkg/corner"
	"github.com/l3aro/go-sta/pkg/delay"
	"github.com/l3aro/go-sta/pkg/graph"
	"github.com/l3aro/go-sta/pkg/sdc"
)

// FindArrivals propagates arrival times forward from the clock sources and
// inputs. After an ArrivalInvalid only the invalid vertices and the
// vertices their changes reach are searched again.
func (s *Search) FindArrivals(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "search.FindArrivals")
	defer span.End()
	start := time.Now()

	s.mu.Lock()
	full := !s.arrivalsFound
	invalid := make([]graph.VertexID, 0, len(s.invalidArrivals))
	for v := range s.invalidArrivals {
		invalid = append(invalid, v)
	}
	clear(s.invalidArrivals)
	s.mu.Unlock()
	if !full && len(invalid) == 0 {
		return nil
	}

	if err := s.levelize(); err != nil {
		return err
	}
	if n := s.graph.VertexCount(); n > len(s.vertices) {
		s.vertices = append(s.vertices, make([]vertexArrivals, n-len(s.vertices))...)
	}

	q := graph.NewLevelQueue(s.graph, true)
	if full {
		s.genclks.clear()
		q.PushAll()
	} else {
		for _, v := range invalid {
			q.Push(v)
		}
	}

	visited, err := s.visitLevels(ctx, q, true, s.visitArrival)
	span.SetAttributes(
		attribute.Bool("full", full),
		attribute.Int("vertices", visited),
		attribute.Int("tags", s.TagCount()),
		attribute.Int("tag_groups", s.TagGroupCount()),
	)
	if err != nil {
		span.RecordError(err)
		s.mu.Lock()
		s.arrivalsFound = false
		s.mu.Unlock()
		return err
	}
	s.metrics.flush(ctx, "arrivals", time.Since(start), visited)

	s.mu.Lock()
	s.arrivalsFound = true
	s.requiredsFound = false
	s.mu.Unlock()
	s.worst.clear()
	return nil
}

// ArrivalsFound reports if arrivals are current.
func (s *Search) ArrivalsFound() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.arrivalsFound && len(s.invalidArrivals) == 0
}

func (s *Search) visitArrival(_ context.Context, v graph.VertexID) (bool, error) {
	bldr := s.bldrs.Get().(*TagGroupBldr)
	defer s.bldrs.Put(bldr)
	bldr.Reset()

	if err := s.seedArrivals(v, bldr); err != nil {
		return false, err
	}
	if err := s.faninArrivals(v, bldr); err != nil {
		return false, err
	}
	if err := s.seedGenClks(v, bldr); err != nil {
		return false, err
	}
	return s.setVertexArrivals(v, bldr)
}

// setVertexArrivals stores the arrivals of the builder on v and reports if
// they changed.
func (s *Search) setVertexArrivals(v graph.VertexID, bldr *TagGroupBldr) (bool, error) {
	va := &s.vertices[v]
	tg, err := bldr.MakeTagGroup()
	if err != nil {
		return false, err
	}
	if tg == nil {
		if va.tagGroup == nil {
			return false, nil
		}
		*va = vertexArrivals{generation: va.generation + 1}
		return true, nil
	}

	arrivals := make([]delay.Delay, tg.Len())
	prevs := make([]PrevLink, tg.Len())
	if err := bldr.CopyArrivals(tg, arrivals, prevs); err != nil {
		return false, err
	}
	if tg == va.tagGroup && equalArrivals(arrivals, va.arrivals) && equalPrevs(prevs, va.prevs) {
		return false, nil
	}
	if tg != va.tagGroup {
		va.generation++
	}
	va.tagGroup = tg
	va.arrivals = arrivals
	va.prevs = prevs
	va.requireds = nil
	return true, nil
}

func equalArrivals(a, b []delay.Delay) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalPrevs(a, b []PrevLink) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// seedArrivals adds the paths that start at v: clock sources, input delays
// and unconstrained inputs.
func (s *Search) seedArrivals(v graph.VertexID, bldr *TagGroupBldr) error {
	clocks := s.sdc.ClocksOnPin(v)
	for _, clk := range clocks {
		if err := s.seedClock(v, clk, bldr); err != nil {
			return err
		}
	}

	inputs := s.sdc.InputDelaysOnPin(v)
	for _, in := range inputs {
		if err := s.seedInputDelay(v, in, bldr); err != nil {
			return err
		}
	}

	if len(clocks) == 0 && len(inputs) == 0 && s.graph.Vertex(v).IsInput() {
		for _, ap := range s.corners.PathAnalysisPts() {
			ci, err := s.FindClkInfo(UnclockedArgs(ap.Index()))
			if err != nil {
				return err
			}
			for _, rf := range corner.RiseFalls {
				states, killed := s.startStates(v, graph.VertexIDNull, nil, rf)
				if killed {
					continue
				}
				tag, err := s.FindTag(rf, ap.Index(), ci, false, nil, false, states)
				if err != nil {
					return err
				}
				bldr.SetMatchArrival(tag, delay.Zero, NoPrevLink)
			}
		}
	}
	return nil
}

func (s *Search) seedClock(v graph.VertexID, clk *sdc.Clock, bldr *TagGroupBldr) error {
	for _, ap := range s.corners.PathAnalysisPts() {
		mm := ap.PathMinMax()
		insertion := clk.SourceLatency(mm)
		var latency float32
		if clk.IsIdeal() {
			latency = clk.NetworkLatency(mm)
		}
		for _, rf := range corner.RiseFalls {
			edge := clk.Edge(rf)
			ci, err := s.FindClkInfo(ClkInfoArgs{
				ClkEdge:       edge,
				ClkSrc:        v,
				IsPropagated:  clk.IsPropagated(),
				GenClkSrc:     graph.VertexIDNull,
				Insertion:     delay.New(insertion),
				Latency:       latency,
				Uncertainties: clk.Uncertainty(),
				PathAPIndex:   ap.Index(),
				CrprClkPath:   NullPathVertexRep,
			})
			if err != nil {
				return err
			}
			tag, err := s.FindTag(rf, ap.Index(), ci, true, nil, false, nil)
			if err != nil {
				return err
			}
			bldr.InsertPath(tag, delay.New(edge.Time()+insertion+latency), NoPrevLink)
		}
	}
	return nil
}

func (s *Search) seedInputDelay(v graph.VertexID, in *sdc.InputDelay, bldr *TagGroupBldr) error {
	edge := in.ClockEdge()
	var clk *sdc.Clock
	if edge != nil {
		clk = edge.Clock()
		if !usableClock(clk) {
			return nil
		}
	}
	segmentStart := !s.graph.Vertex(v).IsInput()

	for _, ap := range s.corners.PathAnalysisPts() {
		mm := ap.PathMinMax()
		args := UnclockedArgs(ap.Index())
		var offset float32
		if clk != nil {
			args.ClkEdge = edge
			args.IsPropagated = clk.IsPropagated()
			args.Insertion = delay.New(clk.SourceLatency(mm))
			if clk.IsIdeal() {
				args.Latency = clk.NetworkLatency(mm)
			}
			args.Uncertainties = clk.Uncertainty()
			offset = edge.Time() + clk.SourceLatency(mm) + args.Latency
		}
		ci, err := s.FindClkInfo(args)
		if err != nil {
			return err
		}
		for _, rf := range corner.RiseFalls {
			states, killed := s.startStates(v, graph.VertexIDNull, clk, rf)
			if killed {
				continue
			}
			tag, err := s.FindTag(rf, ap.Index(), ci, false, in, segmentStart, states)
			if err != nil {
				return err
			}
			bldr.SetMatchArrival(tag, delay.New(offset+in.Delay(rf, mm)), NoPrevLink)
		}
	}
	return nil
}

// startStates returns the exception states of a path starting at pin.
func (s *Search) startStates(pin, clkPin graph.VertexID, clk *sdc.Clock, rf corner.RiseFall) (*sdc.ExceptionStateSet, bool) {
	started := s.sdc.StartStates(pin, clkPin, clk, rf)
	states, _, killed := s.sdc.ThruStates(started, pin, rf)
	if killed {
		return nil, true
	}
	return sdc.NewExceptionStateSet(states), false
}

// faninArrivals propagates the paths of every fanin vertex across the
// edges into v.
func (s *Search) faninArrivals(v graph.VertexID, bldr *TagGroupBldr) error {
	for _, eid := range s.graph.Vertex(v).FanIn() {
		e := s.graph.Edge(eid)
		if !e.Propagates() {
			continue
		}
		from := e.From()
		va := &s.vertices[from]
		if va.tagGroup == nil {
			continue
		}
		for slot, fromTag := range va.tagGroup.tags {
			prev := PrevLink{Path: PathVertexRep{Vertex: from, Tag: fromTag.index}, Edge: eid}
			fromArr := va.arrivals[slot]
			for arc := range e.Arcs() {
				prev.Arc = arc
				err := s.propagateTag(fromTag, fromArr, eid, arc, func(tag *Tag, arrival delay.Delay) {
					bldr.SetMatchArrival(tag, arrival, prev)
				})
				if err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// propagateTag computes the paths a path with fromTag and arrival fromArr
// produces across one arc and passes each to emit. Most arcs produce one
// path; a launch arc into a generated clock pin also produces the
// generated clock source path.
func (s *Search) propagateTag(fromTag *Tag, fromArr delay.Delay, eid graph.EdgeID, arcIdx int,
	emit func(*Tag, delay.Delay)) error {
	e := s.graph.Edge(eid)
	arc := e.Arc(arcIdx)
	if arc.FromRF != fromTag.rf || fromTag.clkInfo.isGenClkSrcPath {
		return nil
	}
	ap := fromTag.pathAPIndex
	d := s.graph.ArcDelay(eid, arcIdx, ap)
	to := e.To()
	toRF := arc.ToRF
	ci := fromTag.clkInfo
	clk := ci.Clock()

	switch role := e.Role(); {
	case role.IsLaunch():
		if !fromTag.isClock {
			return nil
		}
		arrival := fromArr.Add(d)
		if clk != nil && s.genclks.isGenClkPinOf(to, clk) {
			tag, err := s.genClkSrcTag(fromTag, toRF)
			if err != nil {
				return err
			}
			emit(tag, arrival)
		}
		states, killed := s.startStates(to, e.From(), clk, toRF)
		if killed {
			return nil
		}
		args := ci.Args()
		if s.crprActive() {
			args.CrprClkPath = PathVertexRep{Vertex: e.From(), Tag: fromTag.index}
		}
		dataCi, err := s.FindClkInfo(args)
		if err != nil {
			return err
		}
		tag, err := s.FindTag(toRF, ap, dataCi, false, nil, false, states)
		if err != nil {
			return err
		}
		emit(tag, arrival)

	case role == graph.RoleLatchDtoQ:
		if fromTag.isClock {
			return nil
		}
		return s.latchDtoQ(fromTag, fromArr, e, d, toRF, emit)

	case fromTag.isClock:
		arrival := fromArr
		if ci.isPropagated {
			arrival = fromArr.Add(d)
		}
		if clk != nil && s.genclks.isGenClkPinOf(to, clk) {
			tag, err := s.genClkSrcTag(fromTag, toRF)
			if err != nil {
				return err
			}
			emit(tag, fromArr.Add(d))
			return nil
		}
		tag, err := s.FindTag(toRF, ap, ci, true, nil, false, nil)
		if err != nil {
			return err
		}
		emit(tag, arrival)

	default:
		tag, ok, err := s.thruTag(fromTag, to, toRF)
		if err != nil || !ok {
			return err
		}
		emit(tag, fromArr.Add(d))
	}
	return nil
}

// thruTag returns the tag of a data path continuing through pin with
// transition rf, false if an exception kills it there.
func (s *Search) thruTag(fromTag *Tag, pin graph.VertexID, rf corner.RiseFall) (*Tag, bool, error) {
	states, changed, killed := s.sdc.ThruStates(fromTag.states.States(), pin, rf)
	if killed {
		return nil, false, nil
	}
	if !changed && rf == fromTag.rf {
		return fromTag, true, nil
	}
	set := fromTag.states
	if changed {
		set = sdc.NewExceptionStateSet(states)
	}
	tag, err := s.FindTag(rf, fromTag.pathAPIndex, fromTag.clkInfo, false, fromTag.inputDelay, fromTag.isSegmentStart, set)
	if err != nil {
		return nil, false, err
	}
	return tag, true, nil
}

// genClkSrcTag returns the tag of a master clock path reaching the pin of
// one of its generated clocks.
func (s *Search) genClkSrcTag(fromTag *Tag, rf corner.RiseFall) (*Tag, error) {
	args := fromTag.clkInfo.Args()
	args.IsGenClkSrcPath = true
	ci, err := s.FindClkInfo(args)
	if err != nil {
		return nil, err
	}
	return s.FindTag(rf, fromTag.pathAPIndex, ci, true, nil, false, nil)
}

// latchDtoQ passes a late data path through a transparent latch when it
// arrives after the latch opens. The path continues in the frame of the
// enable clock: Q arrives relative to the opening edge by the amount of
// time borrowed.
func (s *Search) latchDtoQ(fromTag *Tag, fromArr delay.Delay, e *graph.Edge, d delay.Delay,
	toRF corner.RiseFall, emit func(*Tag, delay.Delay)) error {
	if s.minMax(fromTag) != corner.Max {
		return nil
	}
	to := e.To()
	srcEdge := fromTag.ClkEdge()
	if srcEdge == nil {
		tag, ok, err := s.thruTag(fromTag, to, toRF)
		if err != nil || !ok {
			return err
		}
		emit(tag, fromArr.Add(d))
		return nil
	}

	for _, open := range s.latchEnablePaths(to, fromTag.pathAPIndex) {
		openEdge := open.tag.ClkEdge()
		if !usableClock(openEdge.Clock()) {
			continue
		}
		shift := s.cycles.find(srcEdge, openEdge).SetupTarget() - openEdge.Time()
		openArrival := open.arrival.AddFloat(shift)
		if s.model.AsFloat(fromArr, corner.Late) <= s.model.AsFloat(openArrival, corner.Late) {
			continue
		}

		states, _, killed := s.sdc.ThruStates(fromTag.states.States(), to, toRF)
		if killed {
			continue
		}
		args := open.tag.clkInfo.Args()
		if s.crprActive() {
			args.CrprClkPath = PathVertexRep{Vertex: open.vertex, Tag: open.tag.index}
		}
		ci, err := s.FindClkInfo(args)
		if err != nil {
			return err
		}
		tag, err := s.FindTag(toRF, fromTag.pathAPIndex, ci, false, nil, false, sdc.NewExceptionStateSet(states))
		if err != nil {
			return err
		}
		emit(tag, fromArr.AddFloat(-shift).Add(d))
	}
	return nil
}

type latchEnable struct {
	vertex  graph.VertexID
	tag     *Tag
	arrival delay.Delay
	edge    graph.EdgeID
	arc     int
}

// latchEnablePaths returns the clock paths that open the latch with output
// q: clock tags at the enable pin with the transition of an EN->Q arc.
func (s *Search) latchEnablePaths(q graph.VertexID, ap corner.PathAPIndex) []latchEnable {
	var opens []latchEnable
	for _, eid := range s.graph.Vertex(q).FanIn() {
		e := s.graph.Edge(eid)
		if e.Role() != graph.RoleLatchEnToQ {
			continue
		}
		en := e.From()
		va := &s.vertices[en]
		if va.tagGroup == nil {
			continue
		}
		for arc := range e.Arcs() {
			openRF := e.Arc(arc).FromRF
			for slot, tag := range va.tagGroup.tags {
				if !tag.isClock || tag.clkInfo.isGenClkSrcPath || tag.pathAPIndex != ap || tag.rf != openRF || tag.ClkEdge() == nil {
					continue
				}
				opens = append(opens, latchEnable{vertex: en, tag: tag, arrival: va.arrivals[slot], edge: eid, arc: arc})
			}
		}
	}
	return opens
}

// seedGenClks starts the generated clocks defined on v. Their insertion is
// the arrival of the master clock source path found at v.
func (s *Search) seedGenClks(v graph.VertexID, bldr *TagGroupBldr) error {
	for _, gen := range s.sdc.GeneratedClocksOnPin(v) {
		master := gen.Master()
		if master == nil {
			continue
		}
		for _, ap := range s.corners.PathAnalysisPts() {
			mm := ap.PathMinMax()
			for _, rf := range corner.RiseFalls {
				src, srcArr, found := s.genClkSrc(bldr, master, srcRF(gen, rf), ap.Index(), mm)
				insertion := delay.Zero
				if found {
					insertion = srcArr.AddFloat(-src.ClkEdge().Time())
					s.genclks.setSrcPath(gen, rf, ap.Index(), PathVertexRep{Vertex: v, Tag: src.index})
				} else {
					s.warnOnce("genclk-src:"+gen.Name(), "generated clock source path not found",
						"clock", gen.Name(), "pin", s.graph.VertexName(v))
				}

				var latency float32
				if gen.IsIdeal() {
					latency = gen.NetworkLatency(mm)
				}
				edge := gen.Edge(rf)
				ci, err := s.FindClkInfo(ClkInfoArgs{
					ClkEdge:       edge,
					ClkSrc:        v,
					IsPropagated:  gen.IsPropagated(),
					GenClkSrc:     gen.SrcPin(),
					Insertion:     insertion,
					Latency:       latency,
					Uncertainties: gen.Uncertainty(),
					PathAPIndex:   ap.Index(),
					CrprClkPath:   NullPathVertexRep,
				})
				if err != nil {
					return err
				}
				tag, err := s.FindTag(rf, ap.Index(), ci, true, nil, false, nil)
				if err != nil {
					return err
				}
				bldr.InsertPath(tag, insertion.AddFloat(edge.Time()+latency), NoPrevLink)
			}
		}
	}
	return nil
}

// genClkSrc returns the worst master clock source path of the builder for
// an analysis point and transition.
func (s *Search) genClkSrc(bldr *TagGroupBldr, master *sdc.Clock, rf corner.RiseFall,
	ap corner.PathAPIndex, mm corner.MinMax) (*Tag, delay.Delay, bool) {
	var best *bldrEntry
	for i := range bldr.entries {
		e := &bldr.entries[i]
		t := e.tag
		if !t.isClock || !t.clkInfo.isGenClkSrcPath || t.pathAPIndex != ap || t.rf != rf || t.clkInfo.Clock() != master {
			continue
		}
		if best == nil || s.model.Worse(e.arrival, best.arrival, mm) ||
			(s.model.Equal(e.arrival, best.arrival, mm) && t.Cmp(best.tag) < 0) {
			best = e
		}
	}
	if best == nil {
		return nil, delay.Zero, false
	}
	return best.tag, best.arrival, true
}
