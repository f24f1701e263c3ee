package search

import (
	"slices"

	"github.com/l3aro/go-sta/pkg/corner"
	"github.com/l3aro/go-sta/pkg/delay"
	"github.com/l3aro/go-sta/pkg/graph"
)

// PathPoint is one pin of an expanded path.
type PathPoint struct {
	Vertex  graph.VertexID
	Name    string
	RF      corner.RiseFall
	Arrival delay.Delay
	// Incr is the arrival change from the previous point.
	Incr    delay.Delay
	Slew    float32
	IsClock bool
	// Edge is the edge into the point, EdgeIDNull at the start.
	Edge graph.EdgeID
	Role graph.Role
}

// PathExpanded is a path from its start to its end.
type PathExpanded struct {
	Points []PathPoint
	// StartIndex is the first point of the data path; earlier points are
	// the launching clock path.
	StartIndex int
}

// Expand returns the points of p from its clock source to p itself.
func (s *Search) Expand(p Path) PathExpanded {
	var nodes []Path
	for n := p; !n.IsNull(); n = n.PrevPath() {
		nodes = append(nodes, n)
	}
	slices.Reverse(nodes)

	exp := PathExpanded{Points: make([]PathPoint, 0, len(nodes))}
	for i, n := range nodes {
		tag := n.Tag()
		pt := PathPoint{
			Vertex:  n.Vertex(),
			Name:    s.graph.VertexName(n.Vertex()),
			RF:      tag.rf,
			Arrival: n.Arrival(),
			Slew:    s.graph.Slew(n.Vertex(), tag.rf, tag.pathAPIndex),
			IsClock: tag.isClock,
			Edge:    n.PrevEdge(),
		}
		if pt.Edge != graph.EdgeIDNull {
			pt.Role = s.graph.Edge(pt.Edge).Role()
		}
		if i > 0 {
			prev := nodes[i-1].Arrival()
			pt.Incr = delay.Delay{Mean: pt.Arrival.Mean - prev.Mean, Sigma2: pt.Arrival.Sigma2 - prev.Sigma2}
		}
		if i > 0 && !tag.isClock && nodes[i-1].Tag().isClock {
			exp.StartIndex = i
		}
		exp.Points = append(exp.Points, pt)
	}
	return exp
}

// StartPoint returns the first data path point.
func (e PathExpanded) StartPoint() (PathPoint, bool) {
	if e.StartIndex >= len(e.Points) {
		return PathPoint{}, false
	}
	return e.Points[e.StartIndex], true
}

// EndPoint returns the last point.
func (e PathExpanded) EndPoint() (PathPoint, bool) {
	if len(e.Points) == 0 {
		return PathPoint{}, false
	}
	return e.Points[len(e.Points)-1], true
}
