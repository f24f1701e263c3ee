// Package sdc stores timing constraints: clocks, generated clocks, clock
// latency and uncertainty, input and output delays, timing exceptions, data
// checks, clock gating checks and latch time borrow limits.
package sdc

import (
	"errors"
	"fmt"
	"sort"

	"github.com/l3aro/go-sta/pkg/corner"
	"github.com/l3aro/go-sta/pkg/graph"
)

var (
	// ErrClockNotFound is returned for unknown clock names.
	ErrClockNotFound = errors.New("clock not found")
	// ErrInvalidConstraint is returned for malformed constraints.
	ErrInvalidConstraint = errors.New("invalid constraint")
)

// InputDelay is an arrival constraint on an input pin relative to a clock
// edge. A nil clock edge makes the arrival unclocked.
type InputDelay struct {
	index   int
	pin     graph.VertexID
	clkEdge *ClockEdge
	delays  [corner.RiseFallCount][corner.MinMaxCount]float32
}

func (d *InputDelay) Index() int            { return d.index }
func (d *InputDelay) Pin() graph.VertexID   { return d.pin }
func (d *InputDelay) ClockEdge() *ClockEdge { return d.clkEdge }

// Delay returns the external arrival for a transition and min/max.
func (d *InputDelay) Delay(rf corner.RiseFall, mm corner.MinMax) float32 {
	return d.delays[rf][mm]
}

// OutputDelay is a required time constraint on an output pin.
type OutputDelay struct {
	pin     graph.VertexID
	clkEdge *ClockEdge
	delays  [corner.RiseFallCount][corner.MinMaxCount]float32
}

func (d *OutputDelay) Pin() graph.VertexID   { return d.pin }
func (d *OutputDelay) ClockEdge() *ClockEdge { return d.clkEdge }

// Delay returns the external delay for a transition and min/max.
func (d *OutputDelay) Delay(rf corner.RiseFall, mm corner.MinMax) float32 {
	return d.delays[rf][mm]
}

// DataCheck constrains the arrival at To relative to the arrival at From.
type DataCheck struct {
	from    graph.VertexID
	to      graph.VertexID
	fromRF  corner.RiseFallBoth
	toRF    corner.RiseFallBoth
	margins [corner.MinMaxCount]float32
	set     [corner.MinMaxCount]bool
}

func (c *DataCheck) From() graph.VertexID        { return c.from }
func (c *DataCheck) To() graph.VertexID          { return c.to }
func (c *DataCheck) FromRF() corner.RiseFallBoth { return c.fromRF }
func (c *DataCheck) ToRF() corner.RiseFallBoth   { return c.toRF }

// Margin returns the setup (max) or hold (min) margin and whether it is set.
func (c *DataCheck) Margin(mm corner.MinMax) (float32, bool) {
	return c.margins[mm], c.set[mm]
}

// ClockGatingCheck checks an enable pin against the clock pin of the same
// gate. Active high gates (and) check setup against the rising clock and
// hold against the falling clock; active low gates (or) the opposite.
type ClockGatingCheck struct {
	enable     graph.VertexID
	clockPin   graph.VertexID
	margins    [corner.MinMaxCount]float32
	activeHigh bool
}

func (c *ClockGatingCheck) Enable() graph.VertexID   { return c.enable }
func (c *ClockGatingCheck) ClockPin() graph.VertexID { return c.clockPin }
func (c *ClockGatingCheck) ActiveHigh() bool         { return c.activeHigh }

// Margin returns the setup (max) or hold (min) margin.
func (c *ClockGatingCheck) Margin(mm corner.MinMax) float32 { return c.margins[mm] }

// ClockRF returns the clock transition checked for the min/max.
func (c *ClockGatingCheck) ClockRF(mm corner.MinMax) corner.RiseFall {
	active := corner.Rise
	if !c.activeHigh {
		active = corner.Fall
	}
	if mm == corner.Max {
		return active
	}
	return active.Opposite()
}

// Sdc holds the constraints of one design.
type Sdc struct {
	clocks        []*Clock
	clockByName   map[string]*Clock
	clocksByPin   map[graph.VertexID][]*Clock
	genClksByPin  map[graph.VertexID][]*Clock
	inputDelays   map[graph.VertexID][]*InputDelay
	outputDelays  map[graph.VertexID][]*OutputDelay
	dataChecks    map[graph.VertexID][]*DataCheck
	gatingChecks  map[graph.VertexID][]*ClockGatingCheck
	maxBorrowPin  map[graph.VertexID]float32
	maxBorrowClk  map[*Clock]float32
	exceptions    []*Exception
	toOnly        []*Exception
	nextInputIdx  int
	nextExcID     int
	filter        *Exception
}

// New creates an empty constraint set.
func New() *Sdc {
	return &Sdc{
		clockByName:  make(map[string]*Clock),
		clocksByPin:  make(map[graph.VertexID][]*Clock),
		genClksByPin: make(map[graph.VertexID][]*Clock),
		inputDelays:  make(map[graph.VertexID][]*InputDelay),
		outputDelays: make(map[graph.VertexID][]*OutputDelay),
		dataChecks:   make(map[graph.VertexID][]*DataCheck),
		gatingChecks: make(map[graph.VertexID][]*ClockGatingCheck),
		maxBorrowPin: make(map[graph.VertexID]float32),
		maxBorrowClk: make(map[*Clock]float32),
	}
}

// MakeClock defines a clock with a period and rise/fall waveform on pins.
// A clock without pins is virtual.
func (s *Sdc) MakeClock(name string, period float32, waveform [corner.RiseFallCount]float32, pins []graph.VertexID) (*Clock, error) {
	if _, dup := s.clockByName[name]; dup {
		return nil, fmt.Errorf("clock %s already defined: %w", name, ErrInvalidConstraint)
	}
	if period <= 0 {
		return nil, fmt.Errorf("clock %s period %g: %w", name, period, ErrInvalidConstraint)
	}
	rise, fall := waveform[corner.Rise], waveform[corner.Fall]
	if rise < 0 || rise >= period || fall < 0 || fall >= period+rise || fall == rise {
		return nil, fmt.Errorf("clock %s waveform {%g %g}: %w", name, rise, fall, ErrInvalidConstraint)
	}

	clk := &Clock{
		name:     name,
		index:    len(s.clocks),
		period:   period,
		waveform: waveform,
		pins:     pins,
		srcPin:   graph.VertexIDNull,
	}
	s.addClock(clk)
	for _, p := range pins {
		s.clocksByPin[p] = append(s.clocksByPin[p], clk)
	}
	return clk, nil
}

func (s *Sdc) addClock(clk *Clock) {
	for _, rf := range corner.RiseFalls {
		clk.edges[rf] = &ClockEdge{clock: clk, rf: rf}
	}
	s.clocks = append(s.clocks, clk)
	s.clockByName[clk.name] = clk
}

// GeneratedClockArgs describes a generated clock.
type GeneratedClockArgs struct {
	Name string
	// SrcPin is the master clock pin the clock is derived from.
	SrcPin graph.VertexID
	Pins   []graph.VertexID
	// MasterName is optional; the master is otherwise inferred from the
	// clocks reaching SrcPin.
	MasterName string
	DivideBy   int
	MultiplyBy int
	Invert     bool
}

// MakeGeneratedClock defines a generated clock. Its period and waveform are
// derived once its master is resolved.
func (s *Sdc) MakeGeneratedClock(args GeneratedClockArgs) (*Clock, error) {
	if _, dup := s.clockByName[args.Name]; dup {
		return nil, fmt.Errorf("clock %s already defined: %w", args.Name, ErrInvalidConstraint)
	}
	if len(args.Pins) == 0 {
		return nil, fmt.Errorf("generated clock %s has no pins: %w", args.Name, ErrInvalidConstraint)
	}
	if args.SrcPin == graph.VertexIDNull {
		return nil, fmt.Errorf("generated clock %s has no source pin: %w", args.Name, ErrInvalidConstraint)
	}
	if args.DivideBy > 1 && args.MultiplyBy > 1 {
		return nil, fmt.Errorf("generated clock %s both divides and multiplies: %w", args.Name, ErrInvalidConstraint)
	}

	clk := &Clock{
		name:       args.Name,
		index:      len(s.clocks),
		pins:       args.Pins,
		generated:  true,
		masterName: args.MasterName,
		srcPin:     args.SrcPin,
		divideBy:   args.DivideBy,
		multiplyBy: args.MultiplyBy,
		invert:     args.Invert,
		propagated: true,
	}
	s.addClock(clk)
	for _, p := range args.Pins {
		s.genClksByPin[p] = append(s.genClksByPin[p], clk)
	}
	return clk, nil
}

// FindClock looks a clock up by name.
func (s *Sdc) FindClock(name string) (*Clock, bool) {
	c, ok := s.clockByName[name]
	return c, ok
}

// ClockByName is FindClock returning ErrClockNotFound.
func (s *Sdc) ClockByName(name string) (*Clock, error) {
	c, ok := s.clockByName[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrClockNotFound)
	}
	return c, nil
}

// Clocks returns all clocks in definition order.
func (s *Sdc) Clocks() []*Clock { return s.clocks }

// ClocksOnPin returns the non-generated clocks defined on a pin.
func (s *Sdc) ClocksOnPin(v graph.VertexID) []*Clock { return s.clocksByPin[v] }

// GeneratedClocksOnPin returns the generated clocks defined on a pin.
func (s *Sdc) GeneratedClocksOnPin(v graph.VertexID) []*Clock { return s.genClksByPin[v] }

// IsClockSrc reports if any clock is defined on the pin.
func (s *Sdc) IsClockSrc(v graph.VertexID) bool {
	return len(s.clocksByPin[v]) > 0 || len(s.genClksByPin[v]) > 0
}

// SetPropagated selects propagated or ideal clock network delays.
func (s *Sdc) SetPropagated(clk *Clock, propagated bool) { clk.propagated = propagated }

// SetSourceLatency sets the clock insertion delay.
func (s *Sdc) SetSourceLatency(clk *Clock, mm corner.MinMaxAll, latency float32) {
	for _, m := range corner.MinMaxes {
		if mm.Matches(m) {
			clk.sourceLatency[m] = latency
		}
	}
}

// SetNetworkLatency sets the ideal clock network latency.
func (s *Sdc) SetNetworkLatency(clk *Clock, mm corner.MinMaxAll, latency float32) {
	for _, m := range corner.MinMaxes {
		if mm.Matches(m) {
			clk.networkLatency[m] = latency
		}
	}
}

// SetUncertainty sets the setup and hold uncertainty of a clock.
func (s *Sdc) SetUncertainty(clk *Clock, setup, hold float32) {
	clk.uncertainty = &ClockUncertainties{Setup: setup, Hold: hold}
}

// SetInputDelay constrains the arrival on an input pin. Repeated calls for
// the same pin and clock edge refine the same input delay.
func (s *Sdc) SetInputDelay(pin graph.VertexID, clkEdge *ClockEdge, rf corner.RiseFallBoth, mm corner.MinMaxAll, d float32) *InputDelay {
	var in *InputDelay
	for _, existing := range s.inputDelays[pin] {
		if existing.clkEdge == clkEdge {
			in = existing
			break
		}
	}
	if in == nil {
		in = &InputDelay{index: s.nextInputIdx, pin: pin, clkEdge: clkEdge}
		s.nextInputIdx++
		s.inputDelays[pin] = append(s.inputDelays[pin], in)
	}
	for _, r := range corner.RiseFalls {
		for _, m := range corner.MinMaxes {
			if rf.Matches(r) && mm.Matches(m) {
				in.delays[r][m] = d
			}
		}
	}
	return in
}

// InputDelaysOnPin returns the input delays of a pin.
func (s *Sdc) InputDelaysOnPin(v graph.VertexID) []*InputDelay { return s.inputDelays[v] }

// FindInputDelay looks an input delay up by index.
func (s *Sdc) FindInputDelay(index int) (*InputDelay, bool) {
	for _, delays := range s.inputDelays {
		for _, d := range delays {
			if d.index == index {
				return d, true
			}
		}
	}
	return nil, false
}

// SetOutputDelay constrains the required time on an output pin.
func (s *Sdc) SetOutputDelay(pin graph.VertexID, clkEdge *ClockEdge, rf corner.RiseFallBoth, mm corner.MinMaxAll, d float32) (*OutputDelay, error) {
	if clkEdge == nil {
		return nil, fmt.Errorf("output delay without clock: %w", ErrInvalidConstraint)
	}
	var out *OutputDelay
	for _, existing := range s.outputDelays[pin] {
		if existing.clkEdge == clkEdge {
			out = existing
			break
		}
	}
	if out == nil {
		out = &OutputDelay{pin: pin, clkEdge: clkEdge}
		s.outputDelays[pin] = append(s.outputDelays[pin], out)
	}
	for _, r := range corner.RiseFalls {
		for _, m := range corner.MinMaxes {
			if rf.Matches(r) && mm.Matches(m) {
				out.delays[r][m] = d
			}
		}
	}
	return out, nil
}

// OutputDelaysOnPin returns the output delays of a pin.
func (s *Sdc) OutputDelaysOnPin(v graph.VertexID) []*OutputDelay { return s.outputDelays[v] }

// SetDataCheck adds a setup (max) or hold (min) data check of to against from.
func (s *Sdc) SetDataCheck(from, to graph.VertexID, fromRF, toRF corner.RiseFallBoth, mm corner.MinMaxAll, margin float32) *DataCheck {
	var dc *DataCheck
	for _, existing := range s.dataChecks[to] {
		if existing.from == from && existing.fromRF == fromRF && existing.toRF == toRF {
			dc = existing
			break
		}
	}
	if dc == nil {
		dc = &DataCheck{from: from, to: to, fromRF: fromRF, toRF: toRF}
		s.dataChecks[to] = append(s.dataChecks[to], dc)
	}
	for _, m := range corner.MinMaxes {
		if mm.Matches(m) {
			dc.margins[m] = margin
			dc.set[m] = true
		}
	}
	return dc
}

// DataChecksTo returns the data checks constraining a pin.
func (s *Sdc) DataChecksTo(v graph.VertexID) []*DataCheck { return s.dataChecks[v] }

// SetClockGatingCheck adds a clock gating check on an enable pin.
func (s *Sdc) SetClockGatingCheck(enable, clockPin graph.VertexID, setup, hold float32, activeHigh bool) *ClockGatingCheck {
	gc := &ClockGatingCheck{
		enable:     enable,
		clockPin:   clockPin,
		margins:    [corner.MinMaxCount]float32{corner.Min: hold, corner.Max: setup},
		activeHigh: activeHigh,
	}
	s.gatingChecks[enable] = append(s.gatingChecks[enable], gc)
	return gc
}

// GatingChecksOn returns the clock gating checks of an enable pin.
func (s *Sdc) GatingChecksOn(v graph.VertexID) []*ClockGatingCheck { return s.gatingChecks[v] }

// SetMaxTimeBorrow limits latch time borrowing on a latch data or enable pin.
func (s *Sdc) SetMaxTimeBorrow(pin graph.VertexID, limit float32) { s.maxBorrowPin[pin] = limit }

// SetMaxTimeBorrowClock limits latch time borrowing for latches of a clock.
func (s *Sdc) SetMaxTimeBorrowClock(clk *Clock, limit float32) { s.maxBorrowClk[clk] = limit }

// MaxTimeBorrow returns the borrow limit of the first of pins that has one,
// else the limit of the clock.
func (s *Sdc) MaxTimeBorrow(clk *Clock, pins ...graph.VertexID) (float32, bool) {
	for _, p := range pins {
		if limit, ok := s.maxBorrowPin[p]; ok {
			return limit, true
		}
	}
	if limit, ok := s.maxBorrowClk[clk]; ok {
		return limit, true
	}
	return 0, false
}

// Endpoints returns the pins constrained by output delays, data checks and
// gating checks, in id order.
func (s *Sdc) Endpoints() []graph.VertexID {
	seen := make(map[graph.VertexID]bool)
	for v := range s.outputDelays {
		seen[v] = true
	}
	for v := range s.dataChecks {
		seen[v] = true
	}
	for v := range s.gatingChecks {
		seen[v] = true
	}
	for _, e := range s.exceptions {
		if e.typ == PathDelay && e.to.HasPins() {
			for v := range e.to.pins {
				seen[v] = true
			}
		}
	}
	pins := make([]graph.VertexID, 0, len(seen))
	for v := range seen {
		pins = append(pins, v)
	}
	sort.Slice(pins, func(i, j int) bool { return pins[i] < pins[j] })
	return pins
}
