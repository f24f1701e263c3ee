// Package graph is the timing graph: pins are vertices, timing arcs between
// pins are edges. Every edge carries one arc per (from, to) transition pair
// with a fixed delay per path analysis point.
package graph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/l3aro/go-sta/pkg/corner"
	"github.com/l3aro/go-sta/pkg/delay"
)

var (
	// ErrVertexNotFound is returned for unknown vertex names or ids.
	ErrVertexNotFound = errors.New("vertex not found")
	// ErrEdgeNotFound is returned for unknown edge ids.
	ErrEdgeNotFound = errors.New("edge not found")
	// ErrDuplicateVertex is returned when a vertex name is reused.
	ErrDuplicateVertex = errors.New("duplicate vertex")
)

// VertexID identifies a vertex.
type VertexID int32

// VertexIDNull is the absent vertex.
const VertexIDNull VertexID = -1

// EdgeID identifies an edge.
type EdgeID int32

// EdgeIDNull is the absent edge.
const EdgeIDNull EdgeID = -1

// Direction is the port direction of a pin.
type Direction int8

const (
	Internal Direction = iota
	Input
	Output
)

// ParseDirection parses "input", "output" or "internal".
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(s) {
	case "", "internal":
		return Internal, nil
	case "input", "in":
		return Input, nil
	case "output", "out":
		return Output, nil
	default:
		return Internal, fmt.Errorf("invalid direction %q", s)
	}
}

func (d Direction) String() string {
	switch d {
	case Input:
		return "input"
	case Output:
		return "output"
	default:
		return "internal"
	}
}

// Vertex is a pin of the design.
type Vertex struct {
	id     VertexID
	name   string
	dir    Direction
	level  int
	fanin  []EdgeID
	fanout []EdgeID
	// slews[ap][rf]
	slews [][corner.RiseFallCount]float32
}

func (v *Vertex) ID() VertexID         { return v.id }
func (v *Vertex) Name() string         { return v.name }
func (v *Vertex) Direction() Direction { return v.dir }
func (v *Vertex) IsInput() bool        { return v.dir == Input }
func (v *Vertex) IsOutput() bool       { return v.dir == Output }
func (v *Vertex) Level() int           { return v.level }
func (v *Vertex) FanIn() []EdgeID      { return v.fanin }
func (v *Vertex) FanOut() []EdgeID     { return v.fanout }

// Arc is one transition pair of an edge.
type Arc struct {
	FromRF corner.RiseFall
	ToRF   corner.RiseFall
	// Delays is indexed by path analysis point.
	Delays []delay.Delay
}

// Edge is a timing arc set between two pins.
type Edge struct {
	id        EdgeID
	from      VertexID
	to        VertexID
	role      Role
	arcs      []Arc
	loopBreak bool
	disabled  bool
}

func (e *Edge) ID() EdgeID        { return e.id }
func (e *Edge) From() VertexID    { return e.from }
func (e *Edge) To() VertexID      { return e.to }
func (e *Edge) Role() Role        { return e.role }
func (e *Edge) Arcs() []Arc       { return e.arcs }
func (e *Edge) Arc(i int) *Arc    { return &e.arcs[i] }
func (e *Edge) IsLoopBreak() bool { return e.loopBreak }
func (e *Edge) IsDisabled() bool  { return e.disabled }

// Propagates reports if arrivals flow across the edge.
func (e *Edge) Propagates() bool {
	return !e.role.IsTimingCheck() && !e.loopBreak && !e.disabled
}

// Graph is the timing graph.
type Graph struct {
	apCount   int
	vertices  []*Vertex
	edges     []*Edge
	byName    map[string]VertexID
	levelized bool
	maxLevel  int
	loops     []LoopBreak
}

// New creates an empty graph with delays for apCount analysis points.
func New(apCount int) *Graph {
	if apCount < 1 {
		apCount = 1
	}
	return &Graph{
		apCount: apCount,
		byName:  make(map[string]VertexID),
	}
}

// AnalysisPtCount returns the number of delays stored per arc.
func (g *Graph) AnalysisPtCount() int { return g.apCount }

// MakeVertex adds a pin.
func (g *Graph) MakeVertex(name string, dir Direction) (VertexID, error) {
	if _, ok := g.byName[name]; ok {
		return VertexIDNull, fmt.Errorf("%s: %w", name, ErrDuplicateVertex)
	}
	id := VertexID(len(g.vertices))
	g.vertices = append(g.vertices, &Vertex{
		id:    id,
		name:  name,
		dir:   dir,
		slews: make([][corner.RiseFallCount]float32, g.apCount),
	})
	g.byName[name] = id
	g.levelized = false
	return id, nil
}

// FindVertex looks a vertex up by pin name.
func (g *Graph) FindVertex(name string) (VertexID, bool) {
	id, ok := g.byName[name]
	return id, ok
}

// VertexByName is FindVertex returning ErrVertexNotFound.
func (g *Graph) VertexByName(name string) (VertexID, error) {
	id, ok := g.byName[name]
	if !ok {
		return VertexIDNull, fmt.Errorf("%s: %w", name, ErrVertexNotFound)
	}
	return id, nil
}

// Vertex returns the vertex with the given id.
func (g *Graph) Vertex(id VertexID) *Vertex { return g.vertices[id] }

// VertexName returns the pin name of id, "-" for the null vertex.
func (g *Graph) VertexName(id VertexID) string {
	if id == VertexIDNull || int(id) >= len(g.vertices) {
		return "-"
	}
	return g.vertices[id].name
}

// VertexCount returns the number of vertices.
func (g *Graph) VertexCount() int { return len(g.vertices) }

// MakeEdge adds an edge. Every arc must carry one delay per analysis point.
func (g *Graph) MakeEdge(from, to VertexID, role Role, arcs []Arc) (EdgeID, error) {
	if !g.validVertex(from) {
		return EdgeIDNull, fmt.Errorf("edge from %d: %w", from, ErrVertexNotFound)
	}
	if !g.validVertex(to) {
		return EdgeIDNull, fmt.Errorf("edge to %d: %w", to, ErrVertexNotFound)
	}
	if len(arcs) == 0 {
		return EdgeIDNull, fmt.Errorf("edge %s -> %s has no arcs", g.vertices[from].name, g.vertices[to].name)
	}
	for i, arc := range arcs {
		if len(arc.Delays) != g.apCount {
			return EdgeIDNull, fmt.Errorf("edge %s -> %s arc %d has %d delays, want %d",
				g.vertices[from].name, g.vertices[to].name, i, len(arc.Delays), g.apCount)
		}
	}

	id := EdgeID(len(g.edges))
	g.edges = append(g.edges, &Edge{id: id, from: from, to: to, role: role, arcs: arcs})
	g.vertices[from].fanout = append(g.vertices[from].fanout, id)
	g.vertices[to].fanin = append(g.vertices[to].fanin, id)
	g.levelized = false
	return id, nil
}

func (g *Graph) validVertex(id VertexID) bool {
	return id >= 0 && int(id) < len(g.vertices)
}

// Edge returns the edge with the given id.
func (g *Graph) Edge(id EdgeID) *Edge { return g.edges[id] }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// ArcDelay returns the delay of an arc at an analysis point.
func (g *Graph) ArcDelay(e EdgeID, arc int, ap corner.PathAPIndex) delay.Delay {
	return g.edges[e].arcs[arc].Delays[ap]
}

// SetArcDelay changes the delay of an arc at an analysis point.
func (g *Graph) SetArcDelay(e EdgeID, arc int, ap corner.PathAPIndex, d delay.Delay) error {
	if e < 0 || int(e) >= len(g.edges) {
		return fmt.Errorf("edge %d: %w", e, ErrEdgeNotFound)
	}
	edge := g.edges[e]
	if arc < 0 || arc >= len(edge.arcs) {
		return fmt.Errorf("edge %d arc %d: %w", e, arc, corner.ErrIndexRange)
	}
	if int(ap) >= g.apCount {
		return fmt.Errorf("analysis point %d: %w", ap, corner.ErrIndexRange)
	}
	edge.arcs[arc].Delays[ap] = d
	return nil
}

// SetEdgeDisabled disables or enables arrival propagation across an edge.
func (g *Graph) SetEdgeDisabled(e EdgeID, disabled bool) {
	g.edges[e].disabled = disabled
	g.levelized = false
}

// SetSlew sets the slew of a vertex transition at an analysis point.
func (g *Graph) SetSlew(v VertexID, rf corner.RiseFall, ap corner.PathAPIndex, slew float32) {
	g.vertices[v].slews[ap][rf] = slew
}

// Slew returns the slew of a vertex transition at an analysis point.
func (g *Graph) Slew(v VertexID, rf corner.RiseFall, ap corner.PathAPIndex) float32 {
	return g.vertices[v].slews[ap][rf]
}

// FindEdge returns the first edge from -> to with the given role.
func (g *Graph) FindEdge(from, to VertexID, role Role) (EdgeID, bool) {
	for _, e := range g.vertices[from].fanout {
		edge := g.edges[e]
		if edge.to == to && edge.role == role {
			return e, true
		}
	}
	return EdgeIDNull, false
}

// FaninCone returns the vertices that reach v through propagating edges,
// v included.
func (g *Graph) FaninCone(v VertexID) map[VertexID]bool {
	seen := map[VertexID]bool{v: true}
	stack := []VertexID{v}
	for len(stack) > 0 {
		u := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, e := range g.vertices[u].fanin {
			edge := g.edges[e]
			if edge.role.IsTimingCheck() || edge.disabled {
				continue
			}
			if !seen[edge.from] {
				seen[edge.from] = true
				stack = append(stack, edge.from)
			}
		}
	}
	return seen
}

// Sinks returns the vertices without propagating fanout, in id order.
func (g *Graph) Sinks() []VertexID {
	var sinks []VertexID
	for _, v := range g.vertices {
		sink := true
		for _, e := range v.fanout {
			if g.edges[e].Propagates() {
				sink = false
				break
			}
		}
		if sink {
			sinks = append(sinks, v.id)
		}
	}
	return sinks
}
