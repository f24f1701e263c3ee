package search

import (
	"fmt"

	"github.com/l3aro/go-sta/pkg/delay"
	"github.com/l3aro/go-sta/pkg/graph"
)

// Path is a timing path ending at a tag of a vertex. Paths are values; the
// arrival and required times they report live in the search arena or, for
// enumerated paths, in the enumeration arena.
type Path interface {
	IsNull() bool
	Vertex() graph.VertexID
	Tag() *Tag
	Arrival() delay.Delay
	Required() delay.Delay
	// PrevPath returns the predecessor, a null path at the start.
	PrevPath() Path
	PrevEdge() graph.EdgeID
	// PrevArc returns the arc index of PrevEdge, -1 at the start.
	PrevArc() int
	String() string
}

// PathVertexRep is a path stored as a vertex and tag index. It stays
// meaningful across searches and is resolved on use.
type PathVertexRep struct {
	Vertex graph.VertexID
	Tag    TagIndex
}

// NullPathVertexRep is the rep of no path.
var NullPathVertexRep = PathVertexRep{Vertex: graph.VertexIDNull, Tag: TagIndexNull}

// IsNull reports if the rep is the null sentinel.
func (r PathVertexRep) IsNull() bool { return r.Vertex == graph.VertexIDNull || r.Tag == TagIndexNull }

// Cmp orders reps by vertex then tag index.
func (r PathVertexRep) Cmp(o PathVertexRep) int {
	if c := cmpInt(int(r.Vertex), int(o.Vertex)); c != 0 {
		return c
	}
	return cmpInt(int(r.Tag), int(o.Tag))
}

func (r PathVertexRep) String() string {
	if r.IsNull() {
		return "-"
	}
	return fmt.Sprintf("%d:%d", r.Vertex, r.Tag)
}

// Resolve returns the path the rep refers to in s.
func (r PathVertexRep) Resolve(s *Search) (PathVertex, bool) {
	if r.IsNull() {
		return nullPathVertex, false
	}
	tag, ok := s.TagByIndex(r.Tag)
	if !ok {
		return nullPathVertex, false
	}
	return s.Path(r.Vertex, tag)
}

var nullPathVertex = PathVertex{vertex: graph.VertexIDNull, slot: -1}

// PathVertex is a path in the search arena: a tag at a vertex with the
// cached arrival slot. The slot is valid while the vertex keeps the tag
// group generation it was read under.
type PathVertex struct {
	search     *Search
	vertex     graph.VertexID
	tag        *Tag
	slot       int
	generation uint32
}

// Path returns the path of tag at v.
func (s *Search) Path(v graph.VertexID, tag *Tag) (PathVertex, bool) {
	if v < 0 || int(v) >= len(s.vertices) || tag == nil {
		return nullPathVertex, false
	}
	va := &s.vertices[v]
	slot, ok := va.tagGroup.Slot(tag)
	if !ok {
		return nullPathVertex, false
	}
	return PathVertex{search: s, vertex: v, tag: tag, slot: slot, generation: va.generation}, true
}

// Paths returns the paths of v in slot order.
func (s *Search) Paths(v graph.VertexID) []PathVertex {
	va := &s.vertices[v]
	if va.tagGroup == nil {
		return nil
	}
	paths := make([]PathVertex, va.tagGroup.Len())
	for i, t := range va.tagGroup.tags {
		paths[i] = PathVertex{search: s, vertex: v, tag: t, slot: i, generation: va.generation}
	}
	return paths
}

// IsNull reports if p is the null path.
func (p PathVertex) IsNull() bool {
	return p.search == nil || p.vertex == graph.VertexIDNull || p.tag == nil
}

// Valid reports if the cached slot still belongs to the tag.
func (p PathVertex) Valid() bool {
	return !p.IsNull() && p.search.vertices[p.vertex].generation == p.generation
}

// Vertex returns the vertex of the path.
func (p PathVertex) Vertex() graph.VertexID { return p.vertex }

// Tag returns the tag of the path.
func (p PathVertex) Tag() *Tag { return p.tag }

// Rep returns the rep of the path.
func (p PathVertex) Rep() PathVertexRep {
	if p.IsNull() {
		return NullPathVertexRep
	}
	return PathVertexRep{Vertex: p.vertex, Tag: p.tag.index}
}

func (p PathVertex) resolveSlot() (*vertexArrivals, int, bool) {
	if p.IsNull() {
		return nil, 0, false
	}
	va := &p.search.vertices[p.vertex]
	slot, ok := p.slot, va.generation == p.generation
	if !ok {
		slot, ok = va.tagGroup.Slot(p.tag)
	}
	if !ok || slot >= len(va.arrivals) {
		panic(critical("path", "tag %d missing from the arrivals of %s",
			p.tag.index, p.search.graph.VertexName(p.vertex)))
	}
	return va, slot, true
}

// Arrival returns the arrival time. A path whose tag left the vertex tag
// group is a broken invariant and panics with a CriticalError.
func (p PathVertex) Arrival() delay.Delay {
	va, slot, ok := p.resolveSlot()
	if !ok {
		return delay.Zero
	}
	return va.arrivals[slot]
}

// Required returns the required time, the required time identity when
// requireds have not been found.
func (p PathVertex) Required() delay.Delay {
	va, slot, ok := p.resolveSlot()
	if !ok {
		return delay.Zero
	}
	if va.requireds == nil {
		return delay.RequiredInit(p.search.minMax(p.tag))
	}
	return va.requireds[slot]
}

func (p PathVertex) prevLink() PrevLink {
	va, slot, ok := p.resolveSlot()
	if !ok || va.prevs == nil {
		return NoPrevLink
	}
	return va.prevs[slot]
}

func (p PathVertex) PrevPath() Path {
	prev := p.prevLink()
	if prev.IsNull() {
		return nullPathVertex
	}
	pv, _ := prev.Path.Resolve(p.search)
	return pv
}

func (p PathVertex) PrevEdge() graph.EdgeID { return p.prevLink().Edge }
func (p PathVertex) PrevArc() int           { return p.prevLink().Arc }

func (p PathVertex) String() string {
	if p.IsNull() {
		return "null"
	}
	return fmt.Sprintf("%s %s %s", p.search.graph.VertexName(p.vertex), p.tag.rf, p.Arrival())
}

// PathVertexPtr holds a rep and caches its resolution until the vertex tag
// group changes.
type PathVertexPtr struct {
	rep    PathVertexRep
	cached PathVertex
}

// NewPathVertexPtr returns a pointer to the path of rep.
func NewPathVertexPtr(rep PathVertexRep) *PathVertexPtr { return &PathVertexPtr{rep: rep} }

// IsNull reports if the pointer refers to no path.
func (p *PathVertexPtr) IsNull() bool { return p == nil || p.rep.IsNull() }

// Rep returns the stored rep.
func (p *PathVertexPtr) Rep() PathVertexRep { return p.rep }

// Path resolves the pointer in s.
func (p *PathVertexPtr) Path(s *Search) (PathVertex, bool) {
	if p.IsNull() {
		return nullPathVertex, false
	}
	if p.cached.search == s && p.cached.Valid() {
		return p.cached, true
	}
	pv, ok := p.rep.Resolve(s)
	if ok {
		p.cached = pv
	}
	return pv, ok
}

type pathRefKind int8

const (
	pathRefNone pathRefKind = iota
	pathRefVertex
	pathRefEnumed
)

// PathRef holds either an arena path or an enumerated path.
type PathRef struct {
	kind   pathRefKind
	vertex PathVertex
	enumed PathEnumed
}

// RefOf wraps p. Null paths give the null ref.
func RefOf(p Path) PathRef {
	switch v := p.(type) {
	case PathRef:
		return v
	case PathVertex:
		if !v.IsNull() {
			return PathRef{kind: pathRefVertex, vertex: v}
		}
	case PathEnumed:
		if !v.IsNull() {
			return PathRef{kind: pathRefEnumed, enumed: v}
		}
	}
	return PathRef{}
}

func (r PathRef) path() Path {
	switch r.kind {
	case pathRefVertex:
		return r.vertex
	case pathRefEnumed:
		return r.enumed
	}
	return nullPathVertex
}

// IsEnumed reports if the ref holds an enumerated path.
func (r PathRef) IsEnumed() bool { return r.kind == pathRefEnumed }

func (r PathRef) IsNull() bool           { return r.kind == pathRefNone || r.path().IsNull() }
func (r PathRef) Vertex() graph.VertexID { return r.path().Vertex() }
func (r PathRef) Tag() *Tag              { return r.path().Tag() }
func (r PathRef) Arrival() delay.Delay   { return r.path().Arrival() }
func (r PathRef) Required() delay.Delay  { return r.path().Required() }
func (r PathRef) PrevPath() Path         { return r.path().PrevPath() }
func (r PathRef) PrevEdge() graph.EdgeID { return r.path().PrevEdge() }
func (r PathRef) PrevArc() int           { return r.path().PrevArc() }
func (r PathRef) String() string         { return r.path().String() }

// PathVertex returns the arena path of the ref, false for other kinds.
func (r PathRef) PathVertex() (PathVertex, bool) { return r.vertex, r.kind == pathRefVertex }
