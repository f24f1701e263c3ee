package search

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/l3aro/go-sta/pkg/corner"
	"github.com/l3aro/go-sta/pkg/delay"
	"github.com/l3aro/go-sta/pkg/graph"
)

// endRequireds holds the tightest required time of each endpoint slot.
type endRequireds struct {
	mu    sync.Mutex
	slots map[graph.VertexID][]delay.Delay
}

// FindRequireds finds arrivals if needed, then the required time of every
// data path: the tightest required time of the ends at its endpoint,
// propagated backward against the arc delays.
func (s *Search) FindRequireds(ctx context.Context) error {
	if err := s.FindArrivals(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	found := s.requiredsFound
	s.mu.Unlock()
	if found {
		return nil
	}

	ctx, span := tracer.Start(ctx, "search.FindRequireds")
	defer span.End()
	start := time.Now()

	ends := &endRequireds{slots: make(map[graph.VertexID][]delay.Delay)}
	err := s.visitPathEnds(ctx, s.Endpoints(), corner.MinMaxAllBoth, false, func(end *PathEnd) {
		s.recordEndRequired(ends, end)
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	q := graph.NewLevelQueue(s.graph, false)
	q.PushAll()
	visited, err := s.visitLevels(ctx, q, false, func(_ context.Context, v graph.VertexID) (bool, error) {
		return false, s.visitRequired(v, ends.slots[v])
	})
	span.SetAttributes(attribute.Int("vertices", visited), attribute.Int("endpoints", len(ends.slots)))
	if err != nil {
		span.RecordError(err)
		return err
	}
	s.metrics.flush(ctx, "requireds", time.Since(start), visited)

	s.mu.Lock()
	s.requiredsFound = true
	s.mu.Unlock()
	return nil
}

// RequiredsFound reports if requireds are current.
func (s *Search) RequiredsFound() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requiredsFound && s.arrivalsFound && len(s.invalidArrivals) == 0
}

func (s *Search) recordEndRequired(ends *endRequireds, end *PathEnd) {
	if end.IsUnconstrained() {
		return
	}
	p, ok := end.path.PathVertex()
	if !ok {
		return
	}
	va := &s.vertices[p.vertex]
	slot, ok := va.tagGroup.Slot(p.tag)
	if !ok {
		return
	}
	req := end.required

	ends.mu.Lock()
	defer ends.mu.Unlock()
	reqs, ok := ends.slots[p.vertex]
	if !ok {
		reqs = s.initRequireds(va.tagGroup)
		ends.slots[p.vertex] = reqs
	}
	reqs[slot] = s.tighter(reqs[slot], req, end.mm)
}

func (s *Search) initRequireds(tg *TagGroup) []delay.Delay {
	reqs := make([]delay.Delay, tg.Len())
	for i, t := range tg.tags {
		reqs[i] = delay.RequiredInit(s.minMax(t))
	}
	return reqs
}

// tighter returns the earlier required time for max paths and the later
// one for min paths.
func (s *Search) tighter(a, b delay.Delay, mm corner.MinMax) delay.Delay {
	if delay.IsInf(a.Mean) {
		return b
	}
	if delay.IsInf(b.Mean) {
		return a
	}
	if s.model.Worse(b, a, mm.Opposite()) {
		return b
	}
	return a
}

// visitRequired sets the requireds of v from its endpoint requireds and
// the requireds of its fanout. Fanout vertices have higher levels and are
// visited first.
func (s *Search) visitRequired(v graph.VertexID, endReqs []delay.Delay) error {
	va := &s.vertices[v]
	if va.tagGroup == nil {
		va.requireds = nil
		return nil
	}
	reqs := endReqs
	if reqs == nil {
		reqs = s.initRequireds(va.tagGroup)
	}

	for slot, tag := range va.tagGroup.tags {
		if tag.isClock {
			continue
		}
		mm := s.minMax(tag)
		fromArr := va.arrivals[slot]
		for _, eid := range s.graph.Vertex(v).FanOut() {
			e := s.graph.Edge(eid)
			if !e.Propagates() {
				continue
			}
			to := &s.vertices[e.To()]
			if to.tagGroup == nil || to.requireds == nil {
				continue
			}
			for arc := range e.Arcs() {
				err := s.propagateTag(tag, fromArr, eid, arc, func(toTag *Tag, toArr delay.Delay) {
					_, toSlot, ok := to.tagGroup.FindMatch(toTag)
					if !ok {
						return
					}
					toReq := to.requireds[toSlot]
					if delay.IsInf(toReq.Mean) {
						return
					}
					d := delay.Delay{Mean: toArr.Mean - fromArr.Mean, Sigma2: toArr.Sigma2 - fromArr.Sigma2}
					req := delay.Delay{Mean: toReq.Mean - d.Mean, Sigma2: toReq.Sigma2 - d.Sigma2}
					reqs[slot] = s.tighter(reqs[slot], req, mm)
				})
				if err != nil {
					return err
				}
			}
		}
	}
	va.requireds = reqs
	return nil
}
