package graph

import "sort"

// LoopBreak records an edge disabled to break a combinational loop.
type LoopBreak struct {
	Edge EdgeID
	From VertexID
	To   VertexID
}

// Levelized reports if levels are current.
func (g *Graph) Levelized() bool { return g.levelized }

// MaxLevel returns the deepest level.
func (g *Graph) MaxLevel() int { return g.maxLevel }

// Loops returns the loop breaking edges found by the last Levelize.
func (g *Graph) Loops() []LoopBreak { return g.loops }

// Levelize assigns every vertex its longest-path depth from the roots.
// Combinational loops are broken by marking the back edge of a depth first
// search as a loop break; such edges never propagate arrivals. The loops
// found are returned in discovery order.
func (g *Graph) Levelize() []LoopBreak {
	for _, e := range g.edges {
		e.loopBreak = false
	}
	g.loops = g.breakLoops()

	indegree := make([]int, len(g.vertices))
	for _, e := range g.edges {
		if e.Propagates() {
			indegree[e.to]++
		}
	}

	queue := make([]VertexID, 0, len(g.vertices))
	for _, v := range g.vertices {
		v.level = 0
		if indegree[v.id] == 0 {
			queue = append(queue, v.id)
		}
	}

	g.maxLevel = 0
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		lu := g.vertices[u].level
		for _, eid := range g.vertices[u].fanout {
			e := g.edges[eid]
			if !e.Propagates() {
				continue
			}
			to := g.vertices[e.to]
			if lu+1 > to.level {
				to.level = lu + 1
				if to.level > g.maxLevel {
					g.maxLevel = to.level
				}
			}
			indegree[e.to]--
			if indegree[e.to] == 0 {
				queue = append(queue, e.to)
			}
		}
	}

	g.levelized = true
	return g.loops
}

const (
	white = iota
	gray
	black
)

type dfsFrame struct {
	v    VertexID
	next int
}

func (g *Graph) breakLoops() []LoopBreak {
	color := make([]int8, len(g.vertices))
	var loops []LoopBreak

	visit := func(root VertexID) {
		stack := []dfsFrame{{v: root}}
		color[root] = gray
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			fanout := g.vertices[top.v].fanout
			if top.next >= len(fanout) {
				color[top.v] = black
				stack = stack[:len(stack)-1]
				continue
			}
			e := g.edges[fanout[top.next]]
			top.next++
			if !e.Propagates() {
				continue
			}
			switch color[e.to] {
			case white:
				color[e.to] = gray
				stack = append(stack, dfsFrame{v: e.to})
			case gray:
				e.loopBreak = true
				loops = append(loops, LoopBreak{Edge: e.id, From: e.from, To: e.to})
			}
		}
	}

	// Roots first so that loops are broken at the edge closing them.
	for _, v := range g.vertices {
		if color[v.id] == white && !g.hasPropagatingFanin(v.id) {
			visit(v.id)
		}
	}
	for _, v := range g.vertices {
		if color[v.id] == white {
			visit(v.id)
		}
	}
	return loops
}

func (g *Graph) hasPropagatingFanin(v VertexID) bool {
	for _, e := range g.vertices[v].fanin {
		if g.edges[e].Propagates() {
			return true
		}
	}
	return false
}

// LevelQueue hands out pending vertices one level at a time, lowest level
// first when forward and highest first when backward.
type LevelQueue struct {
	graph   *Graph
	forward bool
	buckets map[int][]VertexID
	queued  []bool
}

// NewLevelQueue creates an empty queue over a levelized graph.
func NewLevelQueue(g *Graph, forward bool) *LevelQueue {
	return &LevelQueue{
		graph:   g,
		forward: forward,
		buckets: make(map[int][]VertexID),
		queued:  make([]bool, len(g.vertices)),
	}
}

// Push enqueues v unless it is already pending.
func (q *LevelQueue) Push(v VertexID) {
	if q.queued[v] {
		return
	}
	q.queued[v] = true
	level := q.graph.vertices[v].level
	q.buckets[level] = append(q.buckets[level], v)
}

// PushAll enqueues every vertex.
func (q *LevelQueue) PushAll() {
	for _, v := range q.graph.vertices {
		q.Push(v.id)
	}
}

// Empty reports if nothing is pending.
func (q *LevelQueue) Empty() bool { return len(q.buckets) == 0 }

// Next removes and returns the next level of vertices in id order.
func (q *LevelQueue) Next() (int, []VertexID, bool) {
	if len(q.buckets) == 0 {
		return 0, nil, false
	}
	first := true
	level := 0
	for l := range q.buckets {
		if first || (q.forward && l < level) || (!q.forward && l > level) {
			level = l
			first = false
		}
	}
	vs := q.buckets[level]
	delete(q.buckets, level)
	sort.Slice(vs, func(i, j int) bool { return vs[i] < vs[j] })
	for _, v := range vs {
		q.queued[v] = false
	}
	return level, vs, true
}
