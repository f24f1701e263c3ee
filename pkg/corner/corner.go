// Package corner defines transitions, min/max analysis modes, operating
// corners and the path analysis points derived from them.
//
// Every small integer that the search engine packs into its records
// (transition index, analysis point index) is a distinct type here with a
// validating constructor, so out of range values are rejected instead of
// being silently truncated.
package corner

import (
	"errors"
	"fmt"
	"strings"
)

// ErrIndexRange is returned when a small integer index is out of its range.
var ErrIndexRange = errors.New("index out of range")

// RiseFall is a signal transition. It doubles as the transition index.
type RiseFall int8

const (
	Rise RiseFall = iota
	Fall
)

// RiseFallCount is the number of transitions.
const RiseFallCount = 2

// RiseFalls lists both transitions in index order.
var RiseFalls = [RiseFallCount]RiseFall{Rise, Fall}

// NewRfIndex converts a transition index into a transition.
func NewRfIndex(i int) (RiseFall, error) {
	if i < 0 || i >= RiseFallCount {
		return Rise, fmt.Errorf("rise/fall index %d: %w", i, ErrIndexRange)
	}
	return RiseFall(i), nil
}

// ParseRiseFall parses "rise"/"fall" (or "^"/"v").
func ParseRiseFall(s string) (RiseFall, error) {
	switch strings.ToLower(s) {
	case "rise", "r", "^":
		return Rise, nil
	case "fall", "f", "v":
		return Fall, nil
	default:
		return Rise, fmt.Errorf("invalid transition %q", s)
	}
}

// Index returns the transition index.
func (rf RiseFall) Index() int { return int(rf) }

// Opposite returns the other transition.
func (rf RiseFall) Opposite() RiseFall { return 1 - rf }

func (rf RiseFall) String() string {
	if rf == Rise {
		return "rise"
	}
	return "fall"
}

// ShortName returns "^" for rise and "v" for fall.
func (rf RiseFall) ShortName() string {
	if rf == Rise {
		return "^"
	}
	return "v"
}

// RiseFallBoth filters transitions.
type RiseFallBoth int8

const (
	RiseFallBothBoth RiseFallBoth = iota
	RiseFallBothRise
	RiseFallBothFall
)

// ParseRiseFallBoth parses "rise", "fall" or "" / "both".
func ParseRiseFallBoth(s string) (RiseFallBoth, error) {
	switch strings.ToLower(s) {
	case "", "both", "rise_fall":
		return RiseFallBothBoth, nil
	case "rise":
		return RiseFallBothRise, nil
	case "fall":
		return RiseFallBothFall, nil
	default:
		return RiseFallBothBoth, fmt.Errorf("invalid rise/fall filter %q", s)
	}
}

// Matches reports if rf passes the filter.
func (f RiseFallBoth) Matches(rf RiseFall) bool {
	switch f {
	case RiseFallBothRise:
		return rf == Rise
	case RiseFallBothFall:
		return rf == Fall
	default:
		return true
	}
}

func (f RiseFallBoth) String() string {
	switch f {
	case RiseFallBothRise:
		return "rise"
	case RiseFallBothFall:
		return "fall"
	default:
		return "both"
	}
}

// MinMax selects the early (min, hold) or late (max, setup) analysis.
type MinMax int8

const (
	Min MinMax = iota
	Max
)

// MinMaxCount is the number of analysis modes.
const MinMaxCount = 2

// EarlyLate is an alias used where the min/max reads as arrival lateness.
type EarlyLate = MinMax

const (
	Early = Min
	Late  = Max
)

// MinMaxes lists both modes in index order.
var MinMaxes = [MinMaxCount]MinMax{Min, Max}

// ParseMinMax parses "min"/"max" (also "hold"/"setup", "early"/"late").
func ParseMinMax(s string) (MinMax, error) {
	switch strings.ToLower(s) {
	case "min", "hold", "early":
		return Min, nil
	case "max", "setup", "late":
		return Max, nil
	default:
		return Min, fmt.Errorf("invalid min/max %q", s)
	}
}

// Index returns the mode index.
func (mm MinMax) Index() int { return int(mm) }

// Opposite returns the other mode.
func (mm MinMax) Opposite() MinMax { return 1 - mm }

func (mm MinMax) String() string {
	if mm == Min {
		return "min"
	}
	return "max"
}

// CheckName returns "hold" for min and "setup" for max.
func (mm MinMax) CheckName() string {
	if mm == Min {
		return "hold"
	}
	return "setup"
}

// Worse reports if a is strictly worse than b for this mode: later for max,
// earlier for min.
func (mm MinMax) Worse(a, b float32) bool {
	if mm == Max {
		return a > b
	}
	return a < b
}

// MinMaxAll applies a constraint to min, max or both.
type MinMaxAll int8

const (
	MinMaxAllBoth MinMaxAll = iota
	MinMaxAllMin
	MinMaxAllMax
)

// ParseMinMaxAll parses "setup"/"max", "hold"/"min" or "" / "both".
func ParseMinMaxAll(s string) (MinMaxAll, error) {
	switch strings.ToLower(s) {
	case "", "both", "all", "setup_hold":
		return MinMaxAllBoth, nil
	case "min", "hold":
		return MinMaxAllMin, nil
	case "max", "setup":
		return MinMaxAllMax, nil
	default:
		return MinMaxAllBoth, fmt.Errorf("invalid min/max selector %q", s)
	}
}

// Matches reports if mm is selected.
func (a MinMaxAll) Matches(mm MinMax) bool {
	switch a {
	case MinMaxAllMin:
		return mm == Min
	case MinMaxAllMax:
		return mm == Max
	default:
		return true
	}
}

func (a MinMaxAll) String() string {
	switch a {
	case MinMaxAllMin:
		return "min"
	case MinMaxAllMax:
		return "max"
	default:
		return "both"
	}
}
