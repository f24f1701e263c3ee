package design

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/l3aro/go-sta/pkg/corner"
	"github.com/l3aro/go-sta/pkg/delay"
	"github.com/l3aro/go-sta/pkg/graph"
	"github.com/l3aro/go-sta/pkg/sdc"
)

// ErrInvalidDesign is returned for design files that fail to parse,
// validate or resolve.
var ErrInvalidDesign = errors.New("invalid design")

var validate = validator.New()

// Design is a loaded design ready for a search.
type Design struct {
	Name    string
	Graph   *graph.Graph
	Sdc     *sdc.Sdc
	Corners *corner.Corners
}

// Load reads and builds the design file at path.
func Load(path string) (*Design, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read design %s: %w", path, err)
	}
	d, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// Parse decodes, validates and builds a design from YAML.
func Parse(data []byte) (*Design, error) {
	f, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return f.Build()
}

// Decode decodes and validates a design file without building it.
func Decode(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDesign, err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks the field constraints of the file. Pin and clock names
// are resolved by Build.
func (f *File) Validate() error {
	if err := validate.Struct(f); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			v := verrs[0]
			return fmt.Errorf("%w: %s failed %q", ErrInvalidDesign, v.Namespace(), v.Tag())
		}
		return fmt.Errorf("%w: %w", ErrInvalidDesign, err)
	}
	return nil
}

// builder resolves names while a file is turned into a design.
type builder struct {
	f      *File
	d      *Design
	clocks map[string]*sdc.Clock
}

// Build creates the graph, constraints and corners of the file.
func (f *File) Build() (*Design, error) {
	corners, err := corner.NewCorners(f.Corners...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDesign, err)
	}
	b := &builder{
		f: f,
		d: &Design{
			Name:    f.Name,
			Graph:   graph.New(corners.PathAnalysisPtCount()),
			Sdc:     sdc.New(),
			Corners: corners,
		},
		clocks: make(map[string]*sdc.Clock),
	}
	steps := []struct {
		name string
		fn   func() error
	}{
		{"pins", b.pins},
		{"edges", b.edges},
		{"slews", b.slews},
		{"clocks", b.makeClocks},
		{"generated_clocks", b.generatedClocks},
		{"input_delays", b.inputDelays},
		{"output_delays", b.outputDelays},
		{"data_checks", b.dataChecks},
		{"clock_gating_checks", b.gatingChecks},
		{"max_time_borrow", b.timeBorrows},
		{"exceptions", b.exceptions},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidDesign, step.name, err)
		}
	}
	return b.d, nil
}

func (b *builder) pin(name string) (graph.VertexID, error) {
	return b.d.Graph.VertexByName(name)
}

func (b *builder) pinList(names []string) ([]graph.VertexID, error) {
	pins := make([]graph.VertexID, 0, len(names))
	for _, name := range names {
		v, err := b.pin(name)
		if err != nil {
			return nil, err
		}
		pins = append(pins, v)
	}
	return pins, nil
}

func (b *builder) clock(name string) (*sdc.Clock, error) {
	if clk, ok := b.clocks[name]; ok {
		return clk, nil
	}
	return nil, fmt.Errorf("%s: %w", name, sdc.ErrClockNotFound)
}

func (b *builder) pins() error {
	for _, p := range b.f.Pins {
		dir, err := graph.ParseDirection(p.Dir)
		if err != nil {
			return err
		}
		if _, err := b.d.Graph.MakeVertex(p.Name, dir); err != nil {
			return err
		}
	}
	return nil
}

// senseArcs are the transition pairs of each edge sense.
var senseArcs = map[string][][2]corner.RiseFall{
	"positive_unate": {{corner.Rise, corner.Rise}, {corner.Fall, corner.Fall}},
	"negative_unate": {{corner.Rise, corner.Fall}, {corner.Fall, corner.Rise}},
	"non_unate": {
		{corner.Rise, corner.Rise}, {corner.Rise, corner.Fall},
		{corner.Fall, corner.Rise}, {corner.Fall, corner.Fall},
	},
	"rise_edge": {{corner.Rise, corner.Rise}, {corner.Rise, corner.Fall}},
	"fall_edge": {{corner.Fall, corner.Rise}, {corner.Fall, corner.Fall}},
}

func defaultSense(role graph.Role) string {
	if role.IsLaunch() || role.IsTimingCheck() {
		return "rise_edge"
	}
	return "positive_unate"
}

func (b *builder) edges() error {
	g := b.d.Graph
	for i, e := range b.f.Edges {
		from, err := b.pin(e.From)
		if err != nil {
			return fmt.Errorf("edge %d: %w", i, err)
		}
		to, err := b.pin(e.To)
		if err != nil {
			return fmt.Errorf("edge %d: %w", i, err)
		}
		role, err := graph.ParseRole(e.Role)
		if err != nil {
			return fmt.Errorf("edge %d: %w", i, err)
		}

		var arcs []graph.Arc
		if len(e.Arcs) == 0 {
			sense := e.Sense
			if sense == "" {
				sense = defaultSense(role)
			}
			delays, err := b.delays(e.Delays)
			if err != nil {
				return fmt.Errorf("edge %d: %w", i, err)
			}
			for _, pair := range senseArcs[sense] {
				arcs = append(arcs, graph.Arc{FromRF: pair[0], ToRF: pair[1], Delays: slices.Clone(delays)})
			}
		} else {
			for _, a := range e.Arcs {
				fromRF, err := corner.ParseRiseFall(a.From)
				if err != nil {
					return fmt.Errorf("edge %d: %w", i, err)
				}
				toRF, err := corner.ParseRiseFall(a.To)
				if err != nil {
					return fmt.Errorf("edge %d: %w", i, err)
				}
				delays, err := b.delays(a.Delays)
				if err != nil {
					return fmt.Errorf("edge %d: %w", i, err)
				}
				arcs = append(arcs, graph.Arc{FromRF: fromRF, ToRF: toRF, Delays: delays})
			}
		}

		id, err := g.MakeEdge(from, to, role, arcs)
		if err != nil {
			return fmt.Errorf("edge %d: %w", i, err)
		}
		if e.Disabled {
			g.SetEdgeDisabled(id, true)
		}
	}
	return nil
}

// delays returns the delays of one arc indexed by analysis point.
func (b *builder) delays(d Delays) ([]delay.Delay, error) {
	for name := range d.Corners {
		if _, ok := b.d.Corners.FindCorner(name); !ok {
			return nil, fmt.Errorf("unknown corner %q", name)
		}
	}
	aps := b.d.Corners.PathAnalysisPts()
	out := make([]delay.Delay, len(aps))
	for i, ap := range aps {
		var mean float32
		if d.Delay != nil {
			mean = *d.Delay
		}
		mm := ap.PathMinMax()
		switch {
		case mm == corner.Min && d.Min != nil:
			mean = *d.Min
		case mm == corner.Max && d.Max != nil:
			mean = *d.Max
		}
		if c, ok := d.Corners[ap.Corner().Name()]; ok {
			mean = c.Min
			if mm == corner.Max {
				mean = c.Max
			}
		}
		out[i] = delay.NewStat(mean, d.Sigma)
	}
	return out, nil
}

func (b *builder) slews() error {
	for _, s := range b.f.Slews {
		v, err := b.pin(s.Pin)
		if err != nil {
			return err
		}
		rfs, err := corner.ParseRiseFallBoth(s.RF)
		if err != nil {
			return err
		}
		for _, ap := range b.d.Corners.PathAnalysisPts() {
			value := s.Value.Min
			if ap.PathMinMax() == corner.Max {
				value = s.Value.Max
			}
			for _, rf := range corner.RiseFalls {
				if rfs.Matches(rf) {
					b.d.Graph.SetSlew(v, rf, ap.Index(), value)
				}
			}
		}
	}
	return nil
}

func (b *builder) makeClocks() error {
	s := b.d.Sdc
	for _, c := range b.f.Clocks {
		pins, err := b.pinList(c.Pins)
		if err != nil {
			return fmt.Errorf("clock %s: %w", c.Name, err)
		}
		waveform := [corner.RiseFallCount]float32{0, c.Period / 2}
		if len(c.Waveform) == corner.RiseFallCount {
			waveform = [corner.RiseFallCount]float32{c.Waveform[0], c.Waveform[1]}
		}
		clk, err := s.MakeClock(c.Name, c.Period, waveform, pins)
		if err != nil {
			return err
		}
		s.SetPropagated(clk, c.Propagated)
		s.SetSourceLatency(clk, corner.MinMaxAllMin, c.SourceLatency.Min)
		s.SetSourceLatency(clk, corner.MinMaxAllMax, c.SourceLatency.Max)
		s.SetNetworkLatency(clk, corner.MinMaxAllMin, c.NetworkLatency.Min)
		s.SetNetworkLatency(clk, corner.MinMaxAllMax, c.NetworkLatency.Max)
		if !c.Uncertainty.isZero() {
			s.SetUncertainty(clk, c.Uncertainty.Setup, c.Uncertainty.Hold)
		}
		if c.MaxTimeBorrow != nil {
			s.SetMaxTimeBorrowClock(clk, *c.MaxTimeBorrow)
		}
		b.clocks[c.Name] = clk
	}
	return nil
}

func (b *builder) generatedClocks() error {
	s := b.d.Sdc
	for _, c := range b.f.GeneratedClocks {
		src, err := b.pin(c.Source)
		if err != nil {
			return fmt.Errorf("generated clock %s: %w", c.Name, err)
		}
		pins, err := b.pinList(c.Pins)
		if err != nil {
			return fmt.Errorf("generated clock %s: %w", c.Name, err)
		}
		if c.Master != "" {
			if _, ok := b.clocks[c.Master]; !ok {
				return fmt.Errorf("generated clock %s master %s: %w", c.Name, c.Master, sdc.ErrClockNotFound)
			}
		}
		clk, err := s.MakeGeneratedClock(sdc.GeneratedClockArgs{
			Name:       c.Name,
			SrcPin:     src,
			Pins:       pins,
			MasterName: c.Master,
			DivideBy:   c.DivideBy,
			MultiplyBy: c.MultiplyBy,
			Invert:     c.Invert,
		})
		if err != nil {
			return err
		}
		if c.Ideal {
			s.SetPropagated(clk, false)
		}
		if !c.Uncertainty.isZero() {
			s.SetUncertainty(clk, c.Uncertainty.Setup, c.Uncertainty.Hold)
		}
		b.clocks[c.Name] = clk
	}
	return nil
}

// portDelay resolves the fields shared by input and output delays.
func (b *builder) portDelay(p PortDelay) (graph.VertexID, *sdc.ClockEdge, corner.RiseFallBoth, corner.MinMaxAll, error) {
	v, err := b.pin(p.Pin)
	if err != nil {
		return v, nil, 0, 0, err
	}
	var edge *sdc.ClockEdge
	if p.Clock != "" {
		clk, err := b.clock(p.Clock)
		if err != nil {
			return v, nil, 0, 0, err
		}
		edge = clk.Edge(corner.Rise)
		if p.ClockFall {
			edge = clk.Edge(corner.Fall)
		}
	}
	rf, err := corner.ParseRiseFallBoth(p.RF)
	if err != nil {
		return v, nil, 0, 0, err
	}
	mm, err := corner.ParseMinMaxAll(p.MinMax)
	if err != nil {
		return v, nil, 0, 0, err
	}
	return v, edge, rf, mm, nil
}

func (b *builder) inputDelays() error {
	for _, p := range b.f.InputDelays {
		v, edge, rf, mm, err := b.portDelay(p)
		if err != nil {
			return err
		}
		b.d.Sdc.SetInputDelay(v, edge, rf, mm, p.Delay)
	}
	return nil
}

func (b *builder) outputDelays() error {
	for _, p := range b.f.OutputDelays {
		v, edge, rf, mm, err := b.portDelay(p)
		if err != nil {
			return err
		}
		if _, err := b.d.Sdc.SetOutputDelay(v, edge, rf, mm, p.Delay); err != nil {
			return fmt.Errorf("%s: %w", p.Pin, err)
		}
	}
	return nil
}

func (b *builder) dataChecks() error {
	for _, c := range b.f.DataChecks {
		from, err := b.pin(c.From)
		if err != nil {
			return err
		}
		to, err := b.pin(c.To)
		if err != nil {
			return err
		}
		fromRF, err := corner.ParseRiseFallBoth(c.FromRF)
		if err != nil {
			return err
		}
		toRF, err := corner.ParseRiseFallBoth(c.ToRF)
		if err != nil {
			return err
		}
		mm, err := corner.ParseMinMaxAll(c.MinMax)
		if err != nil {
			return err
		}
		b.d.Sdc.SetDataCheck(from, to, fromRF, toRF, mm, c.Margin)
	}
	return nil
}

func (b *builder) gatingChecks() error {
	for _, c := range b.f.GatingChecks {
		enable, err := b.pin(c.Enable)
		if err != nil {
			return err
		}
		clkPin, err := b.pin(c.ClockPin)
		if err != nil {
			return err
		}
		b.d.Sdc.SetClockGatingCheck(enable, clkPin, c.Setup, c.Hold, !c.ActiveLow)
	}
	return nil
}

func (b *builder) timeBorrows() error {
	for _, t := range b.f.MaxTimeBorrow {
		if t.Pin != "" {
			v, err := b.pin(t.Pin)
			if err != nil {
				return err
			}
			b.d.Sdc.SetMaxTimeBorrow(v, t.Limit)
			continue
		}
		clk, err := b.clock(t.Clock)
		if err != nil {
			return err
		}
		b.d.Sdc.SetMaxTimeBorrowClock(clk, t.Limit)
	}
	return nil
}

var exceptionTypes = map[string]sdc.ExceptionType{
	"false_path": sdc.FalsePath,
	"multicycle": sdc.Multicycle,
	"path_delay": sdc.PathDelay,
	"group_path": sdc.GroupPath,
}

func (b *builder) point(p *Point) (*sdc.ExceptionPt, error) {
	if p == nil {
		return nil, nil
	}
	pins, err := b.pinList(p.Pins)
	if err != nil {
		return nil, err
	}
	clocks := make([]*sdc.Clock, 0, len(p.Clocks))
	for _, name := range p.Clocks {
		clk, err := b.clock(name)
		if err != nil {
			return nil, err
		}
		clocks = append(clocks, clk)
	}
	rf, err := corner.ParseRiseFallBoth(p.RF)
	if err != nil {
		return nil, err
	}
	return sdc.NewExceptionPt(pins, clocks, rf), nil
}

func (b *builder) exceptions() error {
	for i, e := range b.f.Exceptions {
		from, err := b.point(e.From)
		if err != nil {
			return fmt.Errorf("exception %d from: %w", i, err)
		}
		to, err := b.point(e.To)
		if err != nil {
			return fmt.Errorf("exception %d to: %w", i, err)
		}
		var thrus []*sdc.ExceptionPt
		for j := range e.Thrus {
			thru, err := b.point(&e.Thrus[j])
			if err != nil {
				return fmt.Errorf("exception %d through %d: %w", i, j, err)
			}
			thrus = append(thrus, thru)
		}
		mm, err := corner.ParseMinMaxAll(e.MinMax)
		if err != nil {
			return fmt.Errorf("exception %d: %w", i, err)
		}
		if _, err := b.d.Sdc.MakeException(sdc.ExceptionArgs{
			Type:       exceptionTypes[e.Type],
			From:       from,
			Thrus:      thrus,
			To:         to,
			MinMax:     mm,
			Multiplier: e.Multiplier,
			Delay:      e.Delay,
			Name:       e.Name,
		}); err != nil {
			return fmt.Errorf("exception %d: %w", i, err)
		}
	}
	return nil
}
