package sdc

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/l3aro/go-sta/pkg/corner"
	"github.com/l3aro/go-sta/pkg/graph"
	"github.com/zeebo/xxh3"
)

// ExceptionType is the kind of a timing exception.
type ExceptionType int8

const (
	FalsePath ExceptionType = iota
	// Loop marks paths that entered a broken combinational loop.
	Loop
	PathDelay
	Multicycle
	// Filter restricts reported paths to a from/through/to query.
	Filter
	GroupPath
)

var exceptionTypeNames = [...]string{
	FalsePath:  "false_path",
	Loop:       "loop",
	PathDelay:  "path_delay",
	Multicycle: "multicycle",
	Filter:     "filter",
	GroupPath:  "group_path",
}

func (t ExceptionType) String() string { return exceptionTypeNames[t] }

// typeRank orders exception types by precedence, highest first.
func (t ExceptionType) typeRank() int {
	switch t {
	case FalsePath, Loop:
		return 5
	case PathDelay:
		return 4
	case Multicycle:
		return 3
	case Filter:
		return 2
	default:
		return 1
	}
}

// IsConstraint reports if the type changes how a path is checked.
func (t ExceptionType) IsConstraint() bool {
	return t == FalsePath || t == PathDelay || t == Multicycle
}

// ExceptionPt is a -from, -through or -to point of an exception.
type ExceptionPt struct {
	pins   map[graph.VertexID]bool
	clocks map[*Clock]bool
	rf     corner.RiseFallBoth
}

// NewExceptionPt creates an exception point. A nil point is "anything".
func NewExceptionPt(pins []graph.VertexID, clocks []*Clock, rf corner.RiseFallBoth) *ExceptionPt {
	pt := &ExceptionPt{
		pins:   make(map[graph.VertexID]bool, len(pins)),
		clocks: make(map[*Clock]bool, len(clocks)),
		rf:     rf,
	}
	for _, p := range pins {
		pt.pins[p] = true
	}
	for _, c := range clocks {
		pt.clocks[c] = true
	}
	return pt
}

// HasPins reports if the point names pins.
func (p *ExceptionPt) HasPins() bool { return p != nil && len(p.pins) > 0 }

// HasClocks reports if the point names clocks.
func (p *ExceptionPt) HasClocks() bool { return p != nil && len(p.clocks) > 0 }

// RF returns the transition filter of the point.
func (p *ExceptionPt) RF() corner.RiseFallBoth { return p.rf }

// Pins returns the pins of the point in id order.
func (p *ExceptionPt) Pins() []graph.VertexID {
	pins := make([]graph.VertexID, 0, len(p.pins))
	for v := range p.pins {
		pins = append(pins, v)
	}
	sort.Slice(pins, func(i, j int) bool { return pins[i] < pins[j] })
	return pins
}

// Clocks returns the clocks of the point by name.
func (p *ExceptionPt) Clocks() []*Clock {
	clocks := make([]*Clock, 0, len(p.clocks))
	for c := range p.clocks {
		clocks = append(clocks, c)
	}
	sort.Slice(clocks, func(i, j int) bool { return clocks[i].name < clocks[j].name })
	return clocks
}

func (p *ExceptionPt) empty() bool { return len(p.pins) == 0 && len(p.clocks) == 0 }

// MatchesPin reports if a transition at v matches the point's pins.
func (p *ExceptionPt) MatchesPin(v graph.VertexID, rf corner.RiseFall) bool {
	return p.pins[v] && p.rf.Matches(rf)
}

// Matches reports if a transition at v, timed by clk, matches the point
// by pin or by clock.
func (p *ExceptionPt) Matches(v graph.VertexID, clk *Clock, rf corner.RiseFall) bool {
	if !p.rf.Matches(rf) {
		return false
	}
	return p.pins[v] || (clk != nil && p.clocks[clk])
}

// Exception is a timing exception.
type Exception struct {
	id         int
	typ        ExceptionType
	from       *ExceptionPt
	thrus      []*ExceptionPt
	to         *ExceptionPt
	minMax     corner.MinMaxAll
	multiplier int
	delay      float32
	name       string
	priority   int
}

func (e *Exception) ID() int                  { return e.id }
func (e *Exception) Type() ExceptionType      { return e.typ }
func (e *Exception) From() *ExceptionPt       { return e.from }
func (e *Exception) Thrus() []*ExceptionPt    { return e.thrus }
func (e *Exception) To() *ExceptionPt         { return e.to }
func (e *Exception) MinMax() corner.MinMaxAll { return e.minMax }
func (e *Exception) Multiplier() int          { return e.multiplier }
func (e *Exception) Delay() float32           { return e.delay }
func (e *Exception) Name() string             { return e.name }
func (e *Exception) Priority() int            { return e.priority }
func (e *Exception) IsFilter() bool           { return e.typ == Filter }
func (e *Exception) IsLoop() bool             { return e.typ == Loop }

// Tracked reports if paths carry a state for the exception. Exceptions with
// only a -to point are matched at endpoints directly.
func (e *Exception) Tracked() bool { return e.from != nil || len(e.thrus) > 0 }

func (e *Exception) String() string {
	var sb strings.Builder
	sb.WriteString(e.typ.String())
	if e.name != "" {
		sb.WriteString(" " + e.name)
	}
	sb.WriteString(" #" + strconv.Itoa(e.id))
	return sb.String()
}

func (e *Exception) computePriority() {
	specificity := 0
	if e.from.HasPins() {
		specificity += 8
	} else if e.from.HasClocks() {
		specificity += 4
	}
	if len(e.thrus) > 0 {
		specificity += 2
	}
	if e.to.HasPins() {
		specificity++
	}
	e.priority = e.typ.typeRank()*100 + specificity
}

// ExceptionArgs describes an exception to add.
type ExceptionArgs struct {
	Type ExceptionType
	From *ExceptionPt
	// Thrus are matched in order.
	Thrus  []*ExceptionPt
	To     *ExceptionPt
	MinMax corner.MinMaxAll
	// Multiplier of a multicycle path.
	Multiplier int
	// Delay of a path delay exception.
	Delay float32
	// Name of a group path.
	Name string
}

// ExceptionState is an exception whose -from matched and whose first
// NextThru -through points have been traversed.
type ExceptionState struct {
	Exc      *Exception
	NextThru int
}

// Complete reports if every -through point has been traversed.
func (s ExceptionState) Complete() bool { return s.NextThru >= len(s.Exc.thrus) }

func stateLess(a, b ExceptionState) bool {
	if a.Exc.id != b.Exc.id {
		return a.Exc.id < b.Exc.id
	}
	return a.NextThru < b.NextThru
}

// ExceptionStateSet is an immutable sorted set of exception states.
type ExceptionStateSet struct {
	states    []ExceptionState
	hash      uint64
	hasLoop   bool
	hasFilter bool
}

// NewExceptionStateSet returns the set of states, nil for none.
func NewExceptionStateSet(states []ExceptionState) *ExceptionStateSet {
	if len(states) == 0 {
		return nil
	}
	sorted := make([]ExceptionState, len(states))
	copy(sorted, states)
	sort.Slice(sorted, func(i, j int) bool { return stateLess(sorted[i], sorted[j]) })

	set := &ExceptionStateSet{states: make([]ExceptionState, 0, len(sorted))}
	var buf []byte
	for i, s := range sorted {
		if i > 0 && s == sorted[i-1] {
			continue
		}
		set.states = append(set.states, s)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(s.Exc.id))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(s.NextThru))
		set.hasLoop = set.hasLoop || s.Exc.typ == Loop
		set.hasFilter = set.hasFilter || s.Exc.typ == Filter
	}
	set.hash = xxh3.Hash(buf)
	return set
}

// States returns the states in sorted order.
func (s *ExceptionStateSet) States() []ExceptionState {
	if s == nil {
		return nil
	}
	return s.states
}

// Len returns the number of states.
func (s *ExceptionStateSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.states)
}

// Hash returns the content hash, zero for the empty set.
func (s *ExceptionStateSet) Hash() uint64 {
	if s == nil {
		return 0
	}
	return s.hash
}

// HasLoop reports if any state belongs to a loop exception.
func (s *ExceptionStateSet) HasLoop() bool { return s != nil && s.hasLoop }

// HasFilter reports if any state belongs to a filter exception.
func (s *ExceptionStateSet) HasFilter() bool { return s != nil && s.hasFilter }

// Equal compares sets by content. Nil is the empty set.
func (s *ExceptionStateSet) Equal(o *ExceptionStateSet) bool {
	return s.Cmp(o) == 0
}

// Cmp orders sets by size, then state by state.
func (s *ExceptionStateSet) Cmp(o *ExceptionStateSet) int {
	if s == o {
		return 0
	}
	a, b := s.States(), o.States()
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	for i := range a {
		if a[i] == b[i] {
			continue
		}
		if stateLess(a[i], b[i]) {
			return -1
		}
		return 1
	}
	return 0
}

// String renders "id.next,id.next" or "-" for the empty set.
func (s *ExceptionStateSet) String() string {
	if s.Len() == 0 {
		return "-"
	}
	parts := make([]string, len(s.states))
	for i, st := range s.states {
		parts[i] = fmt.Sprintf("%d.%d", st.Exc.id, st.NextThru)
	}
	return strings.Join(parts, ",")
}
