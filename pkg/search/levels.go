package search

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/l3aro/go-sta/pkg/graph"
)

// vertexVisitor visits one vertex and reports if its timing changed.
type vertexVisitor func(ctx context.Context, v graph.VertexID) (bool, error)

// visitLevels drains q one level at a time. The vertices of a level are
// visited in parallel; a vertex that changed enqueues its fanout (forward)
// or fanin (backward) for a later level. The first error stops the pass
// before the next level is dispatched. A CriticalError raised inside a visit
// is returned like any other error.
func (s *Search) visitLevels(ctx context.Context, q *graph.LevelQueue, forward bool, visit vertexVisitor) (int, error) {
	visited := 0
	for {
		if err := ctx.Err(); err != nil {
			return visited, err
		}
		_, vertices, ok := q.Next()
		if !ok {
			return visited, nil
		}

		changed := make([]bool, len(vertices))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.opts.Threads)
		for i, v := range vertices {
			g.Go(func() (err error) {
				defer recoverCritical(&err)
				changed[i], err = visit(gctx, v)
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return visited, err
		}
		visited += len(vertices)

		for i, v := range vertices {
			if !changed[i] {
				continue
			}
			if forward {
				s.enqueueFanout(q, v)
			} else {
				s.enqueueFanin(q, v)
			}
		}
	}
}

func (s *Search) enqueueFanout(q *graph.LevelQueue, v graph.VertexID) {
	for _, eid := range s.graph.Vertex(v).FanOut() {
		if e := s.graph.Edge(eid); e.Propagates() {
			q.Push(e.To())
		}
	}
}

func (s *Search) enqueueFanin(q *graph.LevelQueue, v graph.VertexID) {
	for _, eid := range s.graph.Vertex(v).FanIn() {
		if e := s.graph.Edge(eid); e.Propagates() {
			q.Push(e.From())
		}
	}
}

// forEachParallel runs fn on every vertex with at most Threads at once.
func (s *Search) forEachParallel(ctx context.Context, vertices []graph.VertexID, fn func(ctx context.Context, v graph.VertexID) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Threads)
	for _, v := range vertices {
		g.Go(func() (err error) {
			defer recoverCritical(&err)
			return fn(gctx, v)
		})
	}
	return g.Wait()
}
