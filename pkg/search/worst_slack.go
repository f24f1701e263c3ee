package search

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/l3aro/go-sta/pkg/corner"
	"github.com/l3aro/go-sta/pkg/delay"
	"github.com/l3aro/go-sta/pkg/graph"
)

// worstSlacks caches the worst slack and total negative slack per min/max
// until arrivals change.
type worstSlacks struct {
	mu     sync.Mutex
	found  [corner.MinMaxCount]bool
	worst  [corner.MinMaxCount]float32
	vertex [corner.MinMaxCount]graph.VertexID
	tns    [corner.MinMaxCount]float32
}

func newWorstSlacks() *worstSlacks { return &worstSlacks{} }

func (w *worstSlacks) clear() {
	w.mu.Lock()
	w.found = [corner.MinMaxCount]bool{}
	w.mu.Unlock()
}

// endpointSlacks accumulates the worst slack of each endpoint.
type endpointSlacks struct {
	mu    sync.Mutex
	worst map[graph.VertexID]float32
}

func (s *Search) findWorstSlack(ctx context.Context, mm corner.MinMax) error {
	s.worst.mu.Lock()
	found := s.worst.found[mm]
	s.worst.mu.Unlock()
	if found {
		return nil
	}

	eps := &endpointSlacks{worst: make(map[graph.VertexID]float32)}
	sel := corner.MinMaxAllMax
	if mm == corner.Min {
		sel = corner.MinMaxAllMin
	}
	err := s.visitPathEnds(ctx, s.Endpoints(), sel, false, func(end *PathEnd) {
		if end.IsUnconstrained() {
			return
		}
		eps.mu.Lock()
		if w, ok := eps.worst[end.Vertex()]; !ok || end.slack < w {
			eps.worst[end.Vertex()] = end.slack
		}
		eps.mu.Unlock()
	})
	if err != nil {
		return err
	}

	// Endpoint order fixes the float32 rounding of the sum.
	worst, vertex, tns := float32(delay.Infinity), graph.VertexIDNull, float32(0)
	for _, v := range slices.Sorted(maps.Keys(eps.worst)) {
		slack := eps.worst[v]
		if slack < worst {
			worst, vertex = slack, v
		}
		if slack < 0 {
			tns += slack
		}
	}

	s.worst.mu.Lock()
	s.worst.found[mm] = true
	s.worst.worst[mm] = worst
	s.worst.vertex[mm] = vertex
	s.worst.tns[mm] = tns
	s.worst.mu.Unlock()
	return nil
}

// WorstSlack returns the worst slack over all endpoints and the endpoint
// where it occurs. Without constrained endpoints the slack is infinite and
// the vertex null.
func (s *Search) WorstSlack(ctx context.Context, mm corner.MinMax) (float32, graph.VertexID, error) {
	if err := s.FindArrivals(ctx); err != nil {
		return 0, graph.VertexIDNull, err
	}
	if err := s.findWorstSlack(ctx, mm); err != nil {
		return 0, graph.VertexIDNull, err
	}
	s.worst.mu.Lock()
	defer s.worst.mu.Unlock()
	return s.worst.worst[mm], s.worst.vertex[mm], nil
}

// TotalNegativeSlack returns the sum of the negative worst slacks of the
// endpoints.
func (s *Search) TotalNegativeSlack(ctx context.Context, mm corner.MinMax) (float32, error) {
	if err := s.FindArrivals(ctx); err != nil {
		return 0, err
	}
	if err := s.findWorstSlack(ctx, mm); err != nil {
		return 0, err
	}
	s.worst.mu.Lock()
	defer s.worst.mu.Unlock()
	return s.worst.tns[mm], nil
}

// VertexSlack returns the worst slack of the data paths through v, false if
// no path through v is constrained. Requireds must have been found.
func (s *Search) VertexSlack(v graph.VertexID, mm corner.MinMax) (float32, bool) {
	if int(v) >= len(s.vertices) {
		return 0, false
	}
	va := &s.vertices[v]
	if va.tagGroup == nil || va.requireds == nil {
		return 0, false
	}
	worst, found := float32(delay.Infinity), false
	for slot, tag := range va.tagGroup.tags {
		if tag.isClock || s.minMax(tag) != mm {
			continue
		}
		req := va.requireds[slot]
		if delay.IsInf(req.Mean) {
			continue
		}
		if slack := s.slackOf(va.arrivals[slot], req, mm); slack < worst {
			worst, found = slack, true
		}
	}
	return worst, found
}
