package sdc

import (
	"fmt"

	"github.com/l3aro/go-sta/pkg/corner"
	"github.com/l3aro/go-sta/pkg/graph"
)

// ClockUncertainties are the setup and hold uncertainties of a clock.
type ClockUncertainties struct {
	Setup float32
	Hold  float32
}

// Value returns the setup uncertainty for max and the hold uncertainty for min.
func (u *ClockUncertainties) Value(mm corner.MinMax) float32 {
	if u == nil {
		return 0
	}
	if mm == corner.Max {
		return u.Setup
	}
	return u.Hold
}

// Clock is a defined or generated clock.
type Clock struct {
	name       string
	index      int
	period     float32
	waveform   [corner.RiseFallCount]float32
	pins       []graph.VertexID
	propagated bool

	sourceLatency  [corner.MinMaxCount]float32
	networkLatency [corner.MinMaxCount]float32
	uncertainty    *ClockUncertainties

	edges [corner.RiseFallCount]*ClockEdge

	generated  bool
	masterName string
	master     *Clock
	srcPin     graph.VertexID
	divideBy   int
	multiplyBy int
	invert     bool
}

func (c *Clock) Name() string    { return c.name }
func (c *Clock) Index() int      { return c.index }
func (c *Clock) Period() float32 { return c.period }

// Waveform returns the rise and fall edge times within the period.
func (c *Clock) Waveform() [corner.RiseFallCount]float32 { return c.waveform }

// Pins returns the source pins of the clock.
func (c *Clock) Pins() []graph.VertexID { return c.pins }

// IsVirtual reports if the clock has no source pins.
func (c *Clock) IsVirtual() bool { return len(c.pins) == 0 }

// IsPropagated reports if clock network delays come from the graph rather
// than from the ideal network latency.
func (c *Clock) IsPropagated() bool { return c.propagated }

// IsIdeal is the opposite of IsPropagated.
func (c *Clock) IsIdeal() bool { return !c.propagated }

// SourceLatency returns the insertion delay from the clock origin to its
// source pins.
func (c *Clock) SourceLatency(mm corner.MinMax) float32 { return c.sourceLatency[mm] }

// NetworkLatency returns the ideal latency from the source pins to the
// register clock pins.
func (c *Clock) NetworkLatency(mm corner.MinMax) float32 { return c.networkLatency[mm] }

// Uncertainty returns the clock uncertainties, nil when unset.
func (c *Clock) Uncertainty() *ClockUncertainties { return c.uncertainty }

// Edge returns the rise or fall edge of the clock.
func (c *Clock) Edge(rf corner.RiseFall) *ClockEdge { return c.edges[rf] }

// IsGenerated reports if the clock is derived from a master clock.
func (c *Clock) IsGenerated() bool { return c.generated }

// Master returns the resolved master of a generated clock.
func (c *Clock) Master() *Clock { return c.master }

// MasterName returns the master clock named in the definition, if any.
func (c *Clock) MasterName() string { return c.masterName }

// SrcPin returns the master clock pin a generated clock is derived from.
func (c *Clock) SrcPin() graph.VertexID { return c.srcPin }

func (c *Clock) DivideBy() int   { return c.divideBy }
func (c *Clock) MultiplyBy() int { return c.multiplyBy }
func (c *Clock) Invert() bool    { return c.invert }

// SetMaster resolves the master of a generated clock and derives its period
// and waveform from the master.
func (c *Clock) SetMaster(master *Clock) error {
	if !c.generated {
		return fmt.Errorf("clock %s is not generated", c.name)
	}
	if master == c {
		return fmt.Errorf("generated clock %s is its own master", c.name)
	}
	c.master = master

	rise, fall := master.waveform[corner.Rise], master.waveform[corner.Fall]
	switch {
	case c.divideBy > 1:
		c.period = master.period * float32(c.divideBy)
		fall = rise + c.period/2
	case c.multiplyBy > 1:
		c.period = master.period / float32(c.multiplyBy)
		rise = rise / float32(c.multiplyBy)
		fall = rise + c.period/2
	default:
		c.period = master.period
	}
	if c.invert {
		rise, fall = fall, rise
		for rise >= c.period {
			rise -= c.period
		}
	}
	c.waveform = [corner.RiseFallCount]float32{rise, fall}
	return nil
}

// ClockEdge is the rise or fall edge of a clock.
type ClockEdge struct {
	clock *Clock
	rf    corner.RiseFall
}

func (e *ClockEdge) Clock() *Clock        { return e.clock }
func (e *ClockEdge) RF() corner.RiseFall  { return e.rf }
func (e *ClockEdge) Time() float32        { return e.clock.waveform[e.rf] }
func (e *ClockEdge) Index() int           { return e.clock.index*corner.RiseFallCount + int(e.rf) }
func (e *ClockEdge) Opposite() *ClockEdge { return e.clock.edges[e.rf.Opposite()] }
func (e *ClockEdge) String() string       { return e.clock.name + e.rf.ShortName() }

// ClockEdgeIndex returns the edge index of a possibly nil edge, -1 for nil.
func ClockEdgeIndex(e *ClockEdge) int {
	if e == nil {
		return -1
	}
	return e.Index()
}
