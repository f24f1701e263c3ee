package sdc

import (
	"fmt"

	"github.com/l3aro/go-sta/pkg/corner"
	"github.com/l3aro/go-sta/pkg/graph"
)

// MakeException adds a timing exception.
func (s *Sdc) MakeException(args ExceptionArgs) (*Exception, error) {
	if args.From == nil && len(args.Thrus) == 0 && args.To == nil {
		return nil, fmt.Errorf("%s needs -from, -through or -to: %w", args.Type, ErrInvalidConstraint)
	}
	if args.From != nil && args.From.empty() {
		return nil, fmt.Errorf("%s -from matches nothing: %w", args.Type, ErrInvalidConstraint)
	}
	for i, thru := range args.Thrus {
		if thru == nil || len(thru.pins) == 0 {
			return nil, fmt.Errorf("%s -through %d has no pins: %w", args.Type, i, ErrInvalidConstraint)
		}
	}
	if args.To != nil && args.To.empty() {
		return nil, fmt.Errorf("%s -to matches nothing: %w", args.Type, ErrInvalidConstraint)
	}
	switch args.Type {
	case Multicycle:
		if args.Multiplier < 0 || (args.Multiplier == 0 && !args.MinMax.Matches(corner.Min)) {
			return nil, fmt.Errorf("multicycle multiplier %d: %w", args.Multiplier, ErrInvalidConstraint)
		}
	case PathDelay:
		if args.MinMax == corner.MinMaxAllBoth {
			return nil, fmt.Errorf("path delay must be min or max: %w", ErrInvalidConstraint)
		}
	case GroupPath:
		if args.Name == "" {
			return nil, fmt.Errorf("group path needs a name: %w", ErrInvalidConstraint)
		}
	}

	e := &Exception{
		id:         s.nextExcID,
		typ:        args.Type,
		from:       args.From,
		thrus:      args.Thrus,
		to:         args.To,
		minMax:     args.MinMax,
		multiplier: args.Multiplier,
		delay:      args.Delay,
		name:       args.Name,
	}
	s.nextExcID++
	e.computePriority()

	if args.Type == Filter {
		if s.filter != nil {
			s.removeException(s.filter)
		}
		s.filter = e
	}
	s.exceptions = append(s.exceptions, e)
	if !e.Tracked() {
		s.toOnly = append(s.toOnly, e)
	}
	return e, nil
}

// MakeLoopException records the pins of a broken combinational loop.
func (s *Sdc) MakeLoopException(from, to graph.VertexID) (*Exception, error) {
	return s.MakeException(ExceptionArgs{
		Type: Loop,
		Thrus: []*ExceptionPt{
			NewExceptionPt([]graph.VertexID{to}, nil, corner.RiseFallBothBoth),
			NewExceptionPt([]graph.VertexID{from}, nil, corner.RiseFallBothBoth),
		},
	})
}

// Filter returns the active report filter, nil when none.
func (s *Sdc) Filter() *Exception { return s.filter }

// DeleteFilter removes the active report filter.
func (s *Sdc) DeleteFilter() {
	if s.filter != nil {
		s.removeException(s.filter)
		s.filter = nil
	}
}

func (s *Sdc) removeException(e *Exception) {
	s.exceptions = removeExc(s.exceptions, e)
	s.toOnly = removeExc(s.toOnly, e)
}

func removeExc(list []*Exception, e *Exception) []*Exception {
	for i, x := range list {
		if x == e {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// Exceptions returns the exceptions in definition order.
func (s *Sdc) Exceptions() []*Exception { return s.exceptions }

// FindException looks an exception up by id.
func (s *Sdc) FindException(id int) (*Exception, bool) {
	for _, e := range s.exceptions {
		if e.id == id {
			return e, true
		}
	}
	return nil, false
}

// StartStates returns the states of the exceptions whose -from matches a
// path starting at pin (or at the register clock pin clkPin) under clk.
// Callers pass the result through ThruStates at the start pin.
func (s *Sdc) StartStates(pin, clkPin graph.VertexID, clk *Clock, rf corner.RiseFall) []ExceptionState {
	var states []ExceptionState
	for _, e := range s.exceptions {
		if e.from == nil {
			continue
		}
		if !e.from.Matches(pin, clk, rf) && !(clkPin != graph.VertexIDNull && e.from.MatchesPin(clkPin, rf)) {
			continue
		}
		states = append(states, ExceptionState{Exc: e})
	}
	return states
}

// ThruStates advances states across pin and starts the states of
// -through-only exceptions whose first point is pin. It returns the new
// states, whether they differ from the input, and whether the path is dead
// because a false path without -to completed.
func (s *Sdc) ThruStates(states []ExceptionState, pin graph.VertexID, rf corner.RiseFall) ([]ExceptionState, bool, bool) {
	changed := false
	var out []ExceptionState
	for _, st := range states {
		if !st.Complete() && st.Exc.thrus[st.NextThru].MatchesPin(pin, rf) {
			st.NextThru++
			changed = true
		}
		out = append(out, st)
	}

	for _, e := range s.exceptions {
		if e.from != nil || len(e.thrus) == 0 || !e.thrus[0].MatchesPin(pin, rf) {
			continue
		}
		if hasExc(out, e) {
			continue
		}
		out = append(out, ExceptionState{Exc: e, NextThru: 1})
		changed = true
	}

	return out, changed, killed(out)
}

// Killed reports if states contain a completed false path without -to.
func Killed(states []ExceptionState) bool { return killed(states) }

func killed(states []ExceptionState) bool {
	for _, st := range states {
		if st.Exc.typ == FalsePath && st.Exc.to == nil && st.Complete() && st.Exc.minMax == corner.MinMaxAllBoth {
			return true
		}
	}
	return false
}

func hasExc(states []ExceptionState, e *Exception) bool {
	for _, st := range states {
		if st.Exc == e {
			return true
		}
	}
	return false
}

// EndExceptions are the exceptions that apply to a path at its endpoint.
type EndExceptions struct {
	// Constraint is the highest priority false path, path delay or
	// multicycle exception.
	Constraint *Exception
	// Group is the highest priority group path exception.
	Group *Exception
	// Filtered reports if the active filter, if any, matched the path.
	Filtered bool
}

// MatchEnd finds the exceptions applying to a path with states that ends
// at pin with transition rf, captured by tgtClk, for the min/max.
func (s *Sdc) MatchEnd(states *ExceptionStateSet, pin graph.VertexID, rf corner.RiseFall, tgtClk *Clock, mm corner.MinMax) EndExceptions {
	var ends EndExceptions
	ends.Filtered = s.filter == nil

	consider := func(e *Exception) {
		if e.to != nil && !e.to.Matches(pin, tgtClk, rf) {
			return
		}
		switch {
		case e.typ == Filter:
			if e == s.filter {
				ends.Filtered = true
			}
		case e.typ == GroupPath:
			if better(e, ends.Group) {
				ends.Group = e
			}
		case e.typ.IsConstraint():
			if e.minMax.Matches(mm) && better(e, ends.Constraint) {
				ends.Constraint = e
			}
		}
	}

	for _, st := range states.States() {
		if st.Complete() {
			consider(st.Exc)
		}
	}
	for _, e := range s.toOnly {
		consider(e)
	}
	return ends
}

// Multicycle returns the multicycle exception of a path for the min/max,
// ignoring higher priority exceptions.
func (s *Sdc) Multicycle(states *ExceptionStateSet, pin graph.VertexID, rf corner.RiseFall, tgtClk *Clock, mm corner.MinMax) *Exception {
	var best *Exception
	consider := func(e *Exception) {
		if e.typ != Multicycle || !e.minMax.Matches(mm) {
			return
		}
		if e.to != nil && !e.to.Matches(pin, tgtClk, rf) {
			return
		}
		if better(e, best) {
			best = e
		}
	}
	for _, st := range states.States() {
		if st.Complete() {
			consider(st.Exc)
		}
	}
	for _, e := range s.toOnly {
		consider(e)
	}
	return best
}

// better reports if a takes precedence over b. Later definitions win ties.
func better(a, b *Exception) bool {
	if b == nil {
		return true
	}
	if a.priority != b.priority {
		return a.priority > b.priority
	}
	return a.id > b.id
}
