// Package design loads timing designs from YAML files: the pins and timing
// arcs of a netlist with annotated delays, and the clocks and constraints
// applied to it.
package design

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// File is the YAML form of a design.
type File struct {
	Name string `yaml:"name"`
	// Corners lists the process corners; a single "default" corner is
	// used when empty.
	Corners         []string         `yaml:"corners" validate:"omitempty,unique,dive,required"`
	Pins            []Pin            `yaml:"pins" validate:"required,min=1,unique=Name,dive"`
	Edges           []Edge           `yaml:"edges" validate:"dive"`
	Slews           []Slew           `yaml:"slews" validate:"dive"`
	Clocks          []Clock          `yaml:"clocks" validate:"unique=Name,dive"`
	GeneratedClocks []GeneratedClock `yaml:"generated_clocks" validate:"unique=Name,dive"`
	InputDelays     []PortDelay      `yaml:"input_delays" validate:"dive"`
	OutputDelays    []PortDelay      `yaml:"output_delays" validate:"dive"`
	DataChecks      []DataCheck      `yaml:"data_checks" validate:"dive"`
	GatingChecks    []GatingCheck    `yaml:"clock_gating_checks" validate:"dive"`
	MaxTimeBorrow   []TimeBorrow     `yaml:"max_time_borrow" validate:"dive"`
	Exceptions      []Exception      `yaml:"exceptions" validate:"dive"`
}

// Pin is a graph vertex.
type Pin struct {
	Name string `yaml:"name" validate:"required"`
	Dir  string `yaml:"dir" validate:"omitempty,oneof=input output internal in out"`
}

// Delays are the delays of an arc at each analysis point. Corner entries
// override the min and max values, which override Delay.
type Delays struct {
	Delay   *float32               `yaml:"delay"`
	Min     *float32               `yaml:"min"`
	Max     *float32               `yaml:"max"`
	Sigma   float32                `yaml:"sigma" validate:"gte=0"`
	Corners map[string]MinMaxValue `yaml:"corners"`
}

// Edge is a set of timing arcs between two pins. Without arcs the arcs
// follow Sense, and all of them use the edge delays.
type Edge struct {
	From     string `yaml:"from" validate:"required"`
	To       string `yaml:"to" validate:"required"`
	Role     string `yaml:"role" validate:"required,oneof=wire combinational reg_clk_to_q latch_en_to_q latch_d_to_q setup hold recovery removal latch_setup"`
	Sense    string `yaml:"sense" validate:"omitempty,oneof=positive_unate negative_unate non_unate rise_edge fall_edge"`
	Arcs     []Arc  `yaml:"arcs" validate:"dive"`
	Disabled bool   `yaml:"disabled"`
	Delays   `yaml:",inline"`
}

// Arc is one transition pair of an edge.
type Arc struct {
	From   string `yaml:"from" validate:"required,oneof=rise fall"`
	To     string `yaml:"to" validate:"required,oneof=rise fall"`
	Delays `yaml:",inline"`
}

// Slew annotates the transition time of a pin.
type Slew struct {
	Pin   string      `yaml:"pin" validate:"required"`
	RF    string      `yaml:"rf" validate:"omitempty,oneof=rise fall both"`
	Value MinMaxValue `yaml:"value"`
}

// Clock is a clock defined on source pins, or a virtual clock without pins.
type Clock struct {
	Name           string      `yaml:"name" validate:"required"`
	Period         float32     `yaml:"period" validate:"gt=0"`
	Waveform       []float32   `yaml:"waveform" validate:"omitempty,len=2"`
	Pins           []string    `yaml:"pins"`
	Propagated     bool        `yaml:"propagated"`
	SourceLatency  MinMaxValue `yaml:"source_latency"`
	NetworkLatency MinMaxValue `yaml:"network_latency"`
	Uncertainty    Uncertainty `yaml:"uncertainty"`
	MaxTimeBorrow  *float32    `yaml:"max_time_borrow" validate:"omitempty,gte=0"`
}

// GeneratedClock is a clock derived from the master clock at Source.
type GeneratedClock struct {
	Name        string      `yaml:"name" validate:"required"`
	Source      string      `yaml:"source" validate:"required"`
	Pins        []string    `yaml:"pins" validate:"required,min=1"`
	Master      string      `yaml:"master"`
	DivideBy    int         `yaml:"divide_by" validate:"gte=0,excluded_with=MultiplyBy"`
	MultiplyBy  int         `yaml:"multiply_by" validate:"gte=0"`
	Invert      bool        `yaml:"invert"`
	Ideal       bool        `yaml:"ideal"`
	Uncertainty Uncertainty `yaml:"uncertainty"`
}

// PortDelay is an input or output delay relative to a clock edge.
type PortDelay struct {
	Pin       string  `yaml:"pin" validate:"required"`
	Clock     string  `yaml:"clock"`
	ClockFall bool    `yaml:"clock_fall"`
	RF        string  `yaml:"rf" validate:"omitempty,oneof=rise fall both"`
	MinMax    string  `yaml:"min_max" validate:"omitempty,oneof=min max both setup hold"`
	Delay     float32 `yaml:"delay"`
}

// DataCheck is a setup or hold check between two data pins.
type DataCheck struct {
	From   string  `yaml:"from" validate:"required"`
	To     string  `yaml:"to" validate:"required"`
	FromRF string  `yaml:"from_rf" validate:"omitempty,oneof=rise fall both"`
	ToRF   string  `yaml:"to_rf" validate:"omitempty,oneof=rise fall both"`
	MinMax string  `yaml:"min_max" validate:"omitempty,oneof=min max both setup hold"`
	Margin float32 `yaml:"margin"`
}

// GatingCheck checks an enable signal against the clock it gates.
type GatingCheck struct {
	Enable    string  `yaml:"enable" validate:"required"`
	ClockPin  string  `yaml:"clock_pin" validate:"required"`
	Setup     float32 `yaml:"setup"`
	Hold      float32 `yaml:"hold"`
	ActiveLow bool    `yaml:"active_low"`
}

// TimeBorrow limits latch time borrowing at a pin or for a clock.
type TimeBorrow struct {
	Pin   string  `yaml:"pin" validate:"required_without=Clock"`
	Clock string  `yaml:"clock"`
	Limit float32 `yaml:"limit" validate:"gte=0"`
}

// Exception is a timing exception over from/through/to points.
type Exception struct {
	Type       string  `yaml:"type" validate:"required,oneof=false_path multicycle path_delay group_path"`
	From       *Point  `yaml:"from"`
	Thrus      []Point `yaml:"through" validate:"dive"`
	To         *Point  `yaml:"to"`
	MinMax     string  `yaml:"min_max" validate:"omitempty,oneof=min max both setup hold"`
	Multiplier int     `yaml:"multiplier" validate:"required_if=Type multicycle,gte=0"`
	Delay      float32 `yaml:"delay"`
	Name       string  `yaml:"name" validate:"required_if=Type group_path"`
}

// Point is a set of pins and clocks matched by an exception.
type Point struct {
	Pins   []string `yaml:"pins"`
	Clocks []string `yaml:"clocks"`
	RF     string   `yaml:"rf" validate:"omitempty,oneof=rise fall both"`
}

// MinMaxValue is a value with min and max variants. A YAML scalar sets both.
type MinMaxValue struct {
	Min float32 `yaml:"min"`
	Max float32 `yaml:"max"`
}

func (v *MinMaxValue) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		var f float32
		if err := n.Decode(&f); err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		v.Min, v.Max = f, f
		return nil
	}
	type plain MinMaxValue
	return n.Decode((*plain)(v))
}

// Uncertainty is the clock uncertainty applied to setup and hold checks.
// A YAML scalar sets both.
type Uncertainty struct {
	Setup float32 `yaml:"setup" validate:"gte=0"`
	Hold  float32 `yaml:"hold" validate:"gte=0"`
}

func (u *Uncertainty) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		var f float32
		if err := n.Decode(&f); err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		u.Setup, u.Hold = f, f
		return nil
	}
	type plain Uncertainty
	return n.Decode((*plain)(u))
}

func (u Uncertainty) isZero() bool { return u.Setup == 0 && u.Hold == 0 }
