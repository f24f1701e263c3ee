package search

import (
	"slices"
	"sync"

	"github.com/l3aro/go-sta/pkg/corner"
	"github.com/l3aro/go-sta/pkg/delay"
	"github.com/l3aro/go-sta/pkg/graph"
)

// Names of the path groups of ends that are not captured by a clock.
const (
	AsyncGroupName         = "asynchronous"
	GatedClockGroupName    = "gated clock"
	PathDelayGroupName     = "path delay"
	UnconstrainedGroupName = "unconstrained"
)

// PathGroupOptions bound the ends a group keeps.
type PathGroupOptions struct {
	// GroupCount is the number of ends kept, at least 1.
	GroupCount int
	// EndpointCount is the number of ends kept per endpoint, at least 1.
	EndpointCount int
	// Constrained ends with a slack outside [SlackMin, SlackMax] are
	// rejected.
	SlackMin float32
	SlackMax float32
}

// DefaultPathGroupOptions keeps the single worst end of any slack.
func DefaultPathGroupOptions() PathGroupOptions {
	return PathGroupOptions{GroupCount: 1, EndpointCount: 1, SlackMin: -delay.Infinity, SlackMax: delay.Infinity}
}

// PathGroup collects the worst ends of one group. Insert may be called
// from several goroutines.
type PathGroup struct {
	name   string
	mm     corner.MinMax
	opts   PathGroupOptions
	search *Search

	mu   sync.Mutex
	ends []*PathEnd
	// Once the group is full, an end must beat this one to be kept.
	threshold *PathEnd
}

// NewPathGroup creates an empty group.
func (s *Search) NewPathGroup(name string, mm corner.MinMax, opts PathGroupOptions) *PathGroup {
	opts.GroupCount = max(opts.GroupCount, 1)
	opts.EndpointCount = max(opts.EndpointCount, 1)
	return &PathGroup{name: name, mm: mm, opts: opts, search: s}
}

// Name returns the group name.
func (g *PathGroup) Name() string { return g.name }

// MinMax returns the analysis mode of the ends in the group.
func (g *PathGroup) MinMax() corner.MinMax { return g.mm }

// Insert offers an end to the group and reports if it was kept for now.
func (g *PathGroup) Insert(end *PathEnd) bool {
	if !end.IsUnconstrained() && (end.slack < g.opts.SlackMin || end.slack > g.opts.SlackMax) {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.threshold != nil && g.search.cmpEnds(end, g.threshold) >= 0 {
		return false
	}
	g.ends = append(g.ends, end)
	if len(g.ends) > 2*g.opts.GroupCount {
		g.prune()
	}
	return true
}

// prune sorts the ends and drops all but the worst GroupCount, keeping at
// most EndpointCount per endpoint.
func (g *PathGroup) prune() {
	slices.SortFunc(g.ends, g.search.cmpEnds)
	perVertex := make(map[graph.VertexID]int)
	kept := g.ends[:0]
	for _, e := range g.ends {
		if len(kept) == g.opts.GroupCount {
			break
		}
		v := e.Vertex()
		if perVertex[v] >= g.opts.EndpointCount {
			continue
		}
		perVertex[v]++
		kept = append(kept, e)
	}
	clear(g.ends[len(kept):])
	g.ends = kept
	if len(kept) == g.opts.GroupCount {
		g.threshold = kept[len(kept)-1]
	}
}

// PathEnds returns the kept ends, worst first.
func (g *PathGroup) PathEnds() PathEndSeq {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prune()
	return slices.Clone(g.ends)
}

// Len returns the number of ends held, which may exceed GroupCount until
// PathEnds prunes the group.
func (g *PathGroup) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.ends)
}
