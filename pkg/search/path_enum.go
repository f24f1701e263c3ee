package search

import (
	"container/heap"

	"github.com/l3aro/go-sta/pkg/delay"
	"github.com/l3aro/go-sta/pkg/graph"
)

// PathEnumOptions bound an enumeration.
type PathEnumOptions struct {
	// GroupCount is the number of paths returned.
	GroupCount int
	// EndpointCount is the number of paths returned per endpoint.
	EndpointCount int
	// UniquePins skips paths through the same pins as a returned path.
	UniquePins bool
	SlackMin   float32
	SlackMax   float32
}

// PathEnum returns the paths into a set of ends in order of decreasing
// criticality. Each returned path is diverted at every node of its data
// path onto the other fanin paths that merged into the same tag; the
// diversions are queued by slack. A diversion made at a node only diverts
// again at nodes before it, so no path is produced twice.
//
// Enumerated paths live in the arena of the PathEnum and stay valid until
// Release.
type PathEnum struct {
	search *Search
	opts   PathEnumOptions
	arena  *enumArena
	queue  diversionQueue
	seq    int

	count          int
	endpointCounts map[graph.VertexID]int
	seen           map[uint64]bool
	err            error
}

type diversion struct {
	end *PathEnd
	// Index of the first node that may be diverted, counted from the end.
	depth int
	seq   int
}

type diversionQueue struct {
	s     *Search
	items []*diversion
}

func (q diversionQueue) Len() int { return len(q.items) }
func (q diversionQueue) Less(i, j int) bool {
	if c := q.s.cmpEnds(q.items[i].end, q.items[j].end); c != 0 {
		return c < 0
	}
	return q.items[i].seq < q.items[j].seq
}
func (q diversionQueue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }
func (q *diversionQueue) Push(x any)   { q.items = append(q.items, x.(*diversion)) }
func (q *diversionQueue) Pop() any {
	n := len(q.items) - 1
	d := q.items[n]
	q.items[n] = nil
	q.items = q.items[:n]
	return d
}

// NewPathEnum starts an enumeration from ends.
func (s *Search) NewPathEnum(ends []*PathEnd, opts PathEnumOptions) *PathEnum {
	opts.GroupCount = max(opts.GroupCount, 1)
	opts.EndpointCount = max(opts.EndpointCount, 1)
	pe := &PathEnum{
		search:         s,
		opts:           opts,
		arena:          newEnumArena(s),
		queue:          diversionQueue{s: s},
		endpointCounts: make(map[graph.VertexID]int),
		seen:           make(map[uint64]bool),
	}
	for _, end := range ends {
		pe.push(end, 0)
	}
	return pe
}

func (pe *PathEnum) push(end *PathEnd, depth int) {
	heap.Push(&pe.queue, &diversion{end: end, depth: depth, seq: pe.seq})
	pe.seq++
}

// Next returns the next worst path, false when the enumeration is done or
// failed; Err tells them apart.
func (pe *PathEnum) Next() (*PathEnd, bool) {
	defer recoverCritical(&pe.err)
	for pe.count < pe.opts.GroupCount && pe.queue.Len() > 0 && pe.err == nil {
		d := heap.Pop(&pe.queue).(*diversion)
		end := d.end
		v := end.Vertex()
		if pe.endpointCounts[v] >= pe.opts.EndpointCount {
			continue
		}
		constrained := !end.IsUnconstrained()
		// Diversions are never more critical than the path they divert.
		if constrained && end.slack > pe.opts.SlackMax {
			continue
		}
		if constrained && end.slack < pe.opts.SlackMin {
			pe.expand(d)
			continue
		}
		if pe.opts.UniquePins {
			h := pinsHash(end.path)
			if pe.seen[h] {
				continue
			}
			pe.seen[h] = true
		}
		pe.expand(d)
		pe.endpointCounts[v]++
		pe.count++
		return end, true
	}
	return nil, false
}

// All drains the enumeration.
func (pe *PathEnum) All() PathEndSeq {
	var ends PathEndSeq
	for {
		end, ok := pe.Next()
		if !ok {
			return ends
		}
		ends = append(ends, end)
	}
}

// Err returns the first error met while diverting paths.
func (pe *PathEnum) Err() error { return pe.err }

// Release frees the enumerated paths. Ends returned before must not be
// used afterwards.
func (pe *PathEnum) Release() {
	pe.arena.reset()
	pe.queue.items = nil
	clear(pe.endpointCounts)
	clear(pe.seen)
}

// dataNodes returns the nodes of a path from its end back to and
// including the first clock node.
func dataNodes(p Path) []Path {
	var nodes []Path
	for !p.IsNull() {
		nodes = append(nodes, p)
		if p.Tag().isClock {
			break
		}
		p = p.PrevPath()
	}
	return nodes
}

func pinsHash(p Path) uint64 {
	b := make(keyBuf, 0, 64)
	for _, n := range dataNodes(p) {
		b = b.i32(int32(n.Vertex()))
	}
	return b.sum()
}

func (pe *PathEnum) expand(d *diversion) {
	nodes := dataNodes(d.end.path)
	for k := d.depth; k < len(nodes); k++ {
		if nodes[k].Tag().isClock {
			return
		}
		pe.divertAt(d, nodes, k)
	}
}

// divertAt queues every other fanin path that merged into node k.
func (pe *PathEnum) divertAt(d *diversion, nodes []Path, k int) {
	s := pe.search
	node := nodes[k]
	tag := node.Tag()
	prevEdge, prevArc := node.PrevEdge(), node.PrevArc()
	var prevTag *Tag
	prevVertex := graph.VertexIDNull
	if pp := node.PrevPath(); !pp.IsNull() {
		prevTag = pp.Tag()
		prevVertex = pp.Vertex()
	}

	for _, eid := range s.graph.Vertex(node.Vertex()).FanIn() {
		e := s.graph.Edge(eid)
		if !e.Propagates() {
			continue
		}
		// Paths from the same pin go through the same pins.
		if pe.opts.UniquePins && e.From() == prevVertex {
			continue
		}
		for _, from := range s.Paths(e.From()) {
			for arc := range e.Arcs() {
				if eid == prevEdge && arc == prevArc && from.Tag() == prevTag {
					continue
				}
				err := s.propagateTag(from.Tag(), from.Arrival(), eid, arc, func(t *Tag, arrival delay.Delay) {
					if !t.MatchEqual(tag, s.crprActive()) {
						return
					}
					end := pe.divert(d, nodes, k, from, eid, arc, t, arrival)
					pe.push(end, k+1)
				})
				if err != nil && pe.err == nil {
					pe.err = err
				}
			}
		}
	}
}

// divert copies nodes 0..k of a path into the arena with node k reached
// from another fanin path, and returns the end of the new path.
func (pe *PathEnum) divert(d *diversion, nodes []Path, k int, from PathVertex, eid graph.EdgeID, arc int,
	tag *Tag, arrival delay.Delay) *PathEnd {
	old := nodes[k].Arrival()
	delta := delay.Delay{Mean: arrival.Mean - old.Mean, Sigma2: arrival.Sigma2 - old.Sigma2}

	tags := make([]*Tag, k+1)
	tags[k] = tag
	for i := k - 1; i >= 0; i-- {
		tags[i] = pe.retag(tags[i+1], nodes[i+1].Tag(), nodes[i])
	}

	var h PathEnumed
	for i := k; i >= 0; i-- {
		n := nodes[i]
		en := enumNode{
			vertex:   n.Vertex(),
			tag:      tags[i],
			arrival:  n.Arrival().Add(delta),
			required: n.Required(),
		}
		if i == k {
			en.prevEnumed = -1
			en.prevRep = from.Rep()
			en.prevEdge, en.prevArc = eid, arc
		} else {
			en.prevEnumed = h.index
			en.prevRep = NullPathVertexRep
			en.prevEdge, en.prevArc = n.PrevEdge(), n.PrevArc()
		}
		h = pe.arena.alloc(en)
	}

	end := d.end.withPath(RefOf(h))
	pe.search.evalEnd(end)
	return end
}

// retag returns the tag node gets when its predecessor has tag prev
// instead of oldPrev.
func (pe *PathEnum) retag(prev, oldPrev *Tag, node Path) *Tag {
	if prev == oldPrev {
		return node.Tag()
	}
	s := pe.search
	want := node.Tag()
	found := want
	err := s.propagateTag(prev, delay.Zero, node.PrevEdge(), node.PrevArc(), func(t *Tag, _ delay.Delay) {
		if t.MatchEqual(want, s.crprActive()) {
			found = t
		}
	})
	if err != nil && pe.err == nil {
		pe.err = err
	}
	return found
}
