package corner

import (
	"fmt"
)

// MaxPathAPCount bounds the number of path analysis points (4 bits).
const MaxPathAPCount = 16

// PathAPIndex identifies a path analysis point.
type PathAPIndex uint8

// NewPathAPIndex validates i as a path analysis point index.
func NewPathAPIndex(i int) (PathAPIndex, error) {
	if i < 0 || i >= MaxPathAPCount {
		return 0, fmt.Errorf("path analysis point index %d: %w", i, ErrIndexRange)
	}
	return PathAPIndex(i), nil
}

// Corner is a named operating condition.
type Corner struct {
	name  string
	index int
	aps   [MinMaxCount]*PathAnalysisPt
}

// Name returns the corner name.
func (c *Corner) Name() string { return c.name }

// Index returns the corner index.
func (c *Corner) Index() int { return c.index }

// PathAnalysisPt returns the analysis point of this corner for mm.
func (c *Corner) PathAnalysisPt(mm MinMax) *PathAnalysisPt { return c.aps[mm] }

// PathAnalysisPt is a (corner, min/max) pair. Arrivals are propagated
// separately for every analysis point.
type PathAnalysisPt struct {
	index    PathAPIndex
	corner   *Corner
	minMax   MinMax
	tgtClkAP *PathAnalysisPt
}

// Index returns the analysis point index.
func (ap *PathAnalysisPt) Index() PathAPIndex { return ap.index }

// Corner returns the corner of the analysis point.
func (ap *PathAnalysisPt) Corner() *Corner { return ap.corner }

// PathMinMax returns the min/max of the data paths.
func (ap *PathAnalysisPt) PathMinMax() MinMax { return ap.minMax }

// TgtClkAnalysisPt returns the analysis point used for the target clock
// paths of checks on data paths of this analysis point: late data is checked
// against early clocks and vice versa.
func (ap *PathAnalysisPt) TgtClkAnalysisPt() *PathAnalysisPt { return ap.tgtClkAP }

func (ap *PathAnalysisPt) String() string {
	return fmt.Sprintf("%s/%s", ap.corner.name, ap.minMax)
}

// Corners is the ordered set of corners and their analysis points.
type Corners struct {
	corners []*Corner
	aps     []*PathAnalysisPt
	byName  map[string]*Corner
}

// NewCorners creates corners with the given names. With no names a single
// "default" corner is created.
func NewCorners(names ...string) (*Corners, error) {
	if len(names) == 0 {
		names = []string{"default"}
	}
	if len(names)*MinMaxCount > MaxPathAPCount {
		return nil, fmt.Errorf("%d corners need %d analysis points: %w",
			len(names), len(names)*MinMaxCount, ErrIndexRange)
	}

	cs := &Corners{byName: make(map[string]*Corner)}
	for i, name := range names {
		if _, dup := cs.byName[name]; dup {
			return nil, fmt.Errorf("duplicate corner %q", name)
		}
		c := &Corner{name: name, index: i}
		for _, mm := range MinMaxes {
			idx, err := NewPathAPIndex(i*MinMaxCount + mm.Index())
			if err != nil {
				return nil, err
			}
			ap := &PathAnalysisPt{index: idx, corner: c, minMax: mm}
			c.aps[mm] = ap
			cs.aps = append(cs.aps, ap)
		}
		c.aps[Min].tgtClkAP = c.aps[Max]
		c.aps[Max].tgtClkAP = c.aps[Min]
		cs.corners = append(cs.corners, c)
		cs.byName[name] = c
	}
	return cs, nil
}

// Count returns the number of corners.
func (cs *Corners) Count() int { return len(cs.corners) }

// Corners returns the corners in index order.
func (cs *Corners) Corners() []*Corner { return cs.corners }

// FindCorner looks a corner up by name.
func (cs *Corners) FindCorner(name string) (*Corner, bool) {
	c, ok := cs.byName[name]
	return c, ok
}

// PathAnalysisPtCount returns the number of analysis points.
func (cs *Corners) PathAnalysisPtCount() int { return len(cs.aps) }

// PathAnalysisPts returns all analysis points in index order.
func (cs *Corners) PathAnalysisPts() []*PathAnalysisPt { return cs.aps }

// PathAnalysisPt returns the analysis point with index idx.
func (cs *Corners) PathAnalysisPt(idx PathAPIndex) *PathAnalysisPt {
	return cs.aps[idx]
}
