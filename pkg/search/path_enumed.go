package search

import (
	"fmt"

	"github.com/l3aro/go-sta/pkg/delay"
	"github.com/l3aro/go-sta/pkg/graph"
)

// enumNode is an enumerated path node. Its predecessor is either another
// node of the same arena or a path of the search arena.
type enumNode struct {
	vertex     graph.VertexID
	tag        *Tag
	arrival    delay.Delay
	required   delay.Delay
	prevEnumed int32
	prevRep    PathVertexRep
	prevEdge   graph.EdgeID
	prevArc    int
}

// enumArena owns the nodes of one enumeration session. Reset drops every
// node at once and invalidates outstanding handles.
type enumArena struct {
	search     *Search
	nodes      []enumNode
	generation uint32
}

func newEnumArena(s *Search) *enumArena { return &enumArena{search: s, generation: 1} }

func (a *enumArena) alloc(n enumNode) PathEnumed {
	a.nodes = append(a.nodes, n)
	return PathEnumed{arena: a, index: int32(len(a.nodes) - 1), generation: a.generation}
}

func (a *enumArena) reset() {
	a.nodes = a.nodes[:0]
	a.generation++
}

func (a *enumArena) len() int { return len(a.nodes) }

// PathEnumed is a handle to an enumerated path node.
type PathEnumed struct {
	arena      *enumArena
	index      int32
	generation uint32
}

func (p PathEnumed) node() *enumNode {
	if p.arena == nil || p.index < 0 || p.generation != p.arena.generation || int(p.index) >= len(p.arena.nodes) {
		return nil
	}
	return &p.arena.nodes[p.index]
}

// IsNull reports if the handle is null or was released.
func (p PathEnumed) IsNull() bool {
	n := p.node()
	return n == nil || n.vertex == graph.VertexIDNull || n.tag == nil
}

// Vertex returns the vertex of the node, VertexIDNull once released.
func (p PathEnumed) Vertex() graph.VertexID {
	if n := p.node(); n != nil {
		return n.vertex
	}
	return graph.VertexIDNull
}

// Tag returns the tag of the node, nil once released.
func (p PathEnumed) Tag() *Tag {
	if n := p.node(); n != nil {
		return n.tag
	}
	return nil
}

// Arrival returns the arrival of the diverted path at the node.
func (p PathEnumed) Arrival() delay.Delay {
	if n := p.node(); n != nil {
		return n.arrival
	}
	return delay.Zero
}

// Required returns the required time copied from the original path.
func (p PathEnumed) Required() delay.Delay {
	if n := p.node(); n != nil {
		return n.required
	}
	return delay.Zero
}

// PrevPath returns the previous node, which is a search arena path at
// the point where the path was diverted.
func (p PathEnumed) PrevPath() Path {
	n := p.node()
	switch {
	case n == nil:
		return nullPathVertex
	case n.prevEnumed >= 0:
		return PathEnumed{arena: p.arena, index: n.prevEnumed, generation: p.generation}
	case !n.prevRep.IsNull():
		pv, _ := n.prevRep.Resolve(p.arena.search)
		return pv
	}
	return nullPathVertex
}

// PrevEdge returns the edge into the node, EdgeIDNull once released.
func (p PathEnumed) PrevEdge() graph.EdgeID {
	if n := p.node(); n != nil {
		return n.prevEdge
	}
	return graph.EdgeIDNull
}

// PrevArc returns the arc index of PrevEdge, -1 once released.
func (p PathEnumed) PrevArc() int {
	if n := p.node(); n != nil {
		return n.prevArc
	}
	return -1
}

func (p PathEnumed) String() string {
	n := p.node()
	if n == nil {
		return "null"
	}
	return fmt.Sprintf("%s %s %s (enum)", p.arena.search.graph.VertexName(n.vertex), n.tag.rf, n.arrival)
}
