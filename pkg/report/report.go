// Package report turns search results into records that can be written as
// JSON, msgpack or text.
package report

import (
	"context"
	"errors"
	"fmt"

	"github.com/l3aro/go-sta/pkg/corner"
	"github.com/l3aro/go-sta/pkg/delay"
	"github.com/l3aro/go-sta/pkg/graph"
	"github.com/l3aro/go-sta/pkg/search"
)

// ErrUnknownFormat is returned for output formats other than text, json
// and msgpack.
var ErrUnknownFormat = errors.New("unknown report format")

// Format is an output format.
type Format string

const (
	FormatText    Format = "text"
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
)

// ParseFormat parses a format name, defaulting to text.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON, FormatMsgpack:
		return Format(s), nil
	}
	return "", fmt.Errorf("%q: %w", s, ErrUnknownFormat)
}

// Report is the result of one report command.
type Report struct {
	Design  string       `json:"design" msgpack:"design"`
	Paths   []PathRecord `json:"paths,omitempty" msgpack:"paths,omitempty"`
	Summary []Summary    `json:"summary,omitempty" msgpack:"summary,omitempty"`
}

// PathRecord is one path end.
type PathRecord struct {
	Group       string        `json:"group" msgpack:"group"`
	Type        string        `json:"type" msgpack:"type"`
	Check       string        `json:"check" msgpack:"check"`
	Startpoint  string        `json:"startpoint" msgpack:"startpoint"`
	Endpoint    string        `json:"endpoint" msgpack:"endpoint"`
	EndRF       string        `json:"end_rf" msgpack:"end_rf"`
	SourceClock string        `json:"source_clock,omitempty" msgpack:"source_clock,omitempty"`
	TargetClock string        `json:"target_clock,omitempty" msgpack:"target_clock,omitempty"`
	Arrival     float32       `json:"arrival" msgpack:"arrival"`
	Required    float32       `json:"required" msgpack:"required"`
	Slack       float32       `json:"slack" msgpack:"slack"`
	Margin      float32       `json:"margin" msgpack:"margin"`
	Uncertainty float32       `json:"uncertainty" msgpack:"uncertainty"`
	TargetTime  float32       `json:"target_time" msgpack:"target_time"`
	Crpr        float32       `json:"crpr,omitempty" msgpack:"crpr,omitempty"`
	CrprPin     string        `json:"crpr_pin,omitempty" msgpack:"crpr_pin,omitempty"`
	Borrow      float32       `json:"borrow,omitempty" msgpack:"borrow,omitempty"`
	Points      []PointRecord `json:"points,omitempty" msgpack:"points,omitempty"`
}

// Unconstrained reports if the path has no required time.
func (r PathRecord) Unconstrained() bool { return delay.IsInf(r.Slack) }

// PointRecord is one pin of an expanded path.
type PointRecord struct {
	Pin     string  `json:"pin" msgpack:"pin"`
	RF      string  `json:"rf" msgpack:"rf"`
	Incr    float32 `json:"incr" msgpack:"incr"`
	Arrival float32 `json:"arrival" msgpack:"arrival"`
	Slew    float32 `json:"slew,omitempty" msgpack:"slew,omitempty"`
	Clock   bool    `json:"clock,omitempty" msgpack:"clock,omitempty"`
	Role    string  `json:"role,omitempty" msgpack:"role,omitempty"`
}

// Summary is the worst slack and total negative slack of one check type.
type Summary struct {
	Check      string  `json:"check" msgpack:"check"`
	WorstSlack float32 `json:"worst_slack" msgpack:"worst_slack"`
	WorstPin   string  `json:"worst_pin,omitempty" msgpack:"worst_pin,omitempty"`
	TNS        float32 `json:"tns" msgpack:"tns"`
	Endpoints  int     `json:"endpoints" msgpack:"endpoints"`
	Violations int     `json:"violations" msgpack:"violations"`
}

// Builder converts search results to records.
type Builder struct {
	s *search.Search
	// Expand adds the points of every path.
	Expand bool
}

// NewBuilder creates a builder over s.
func NewBuilder(s *search.Search, expand bool) *Builder {
	return &Builder{s: s, Expand: expand}
}

func (b *Builder) asFloat(d delay.Delay, mm corner.MinMax) float32 {
	return b.s.DelayModel().AsFloat(d, mm)
}

// Path converts one path end.
func (b *Builder) Path(end *search.PathEnd) PathRecord {
	g := b.s.Graph()
	mm := end.MinMax()
	exp := b.s.Expand(end.Path())
	r := PathRecord{
		Group:       end.GroupName(),
		Type:        end.Type().String(),
		Check:       mm.CheckName(),
		Endpoint:    g.VertexName(end.Vertex()),
		EndRF:       end.Tag().RF().String(),
		Arrival:     b.asFloat(end.Arrival(), mm),
		Slack:       end.Slack(),
		Margin:      end.Margin(),
		Uncertainty: end.Uncertainty(),
		TargetTime:  end.TargetTime(),
		Borrow:      end.Borrow(),
	}
	if !end.IsUnconstrained() {
		r.Required = b.asFloat(end.Required(), mm.Opposite())
	}
	if start, ok := exp.StartPoint(); ok {
		r.Startpoint = start.Name
	}
	if e := end.SourceClockEdge(); e != nil {
		r.SourceClock = e.String()
	}
	if e := end.TargetClockEdge(); e != nil {
		r.TargetClock = e.String()
	}
	if c, ok := end.Crpr(); ok {
		r.Crpr = c.Credit.Mean
		r.CrprPin = g.VertexName(c.Pin)
	}
	if b.Expand {
		r.Points = b.points(exp, mm)
	}
	return r
}

func (b *Builder) points(exp search.PathExpanded, mm corner.MinMax) []PointRecord {
	points := make([]PointRecord, len(exp.Points))
	for i, p := range exp.Points {
		points[i] = PointRecord{
			Pin:     p.Name,
			RF:      p.RF.String(),
			Incr:    p.Incr.Mean,
			Arrival: b.asFloat(p.Arrival, mm),
			Slew:    p.Slew,
			Clock:   p.IsClock,
		}
		if p.Edge != graph.EdgeIDNull {
			points[i].Role = p.Role.String()
		}
	}
	return points
}

// Paths converts a sequence of path ends.
func (b *Builder) Paths(ends search.PathEndSeq) []PathRecord {
	records := make([]PathRecord, len(ends))
	for i, end := range ends {
		records[i] = b.Path(end)
	}
	return records
}

// Summary computes the slack summary of one check type over the endpoints.
func (b *Builder) Summary(ctx context.Context, mm corner.MinMax) (Summary, error) {
	worst, pin, err := b.s.WorstSlack(ctx, mm)
	if err != nil {
		return Summary{}, err
	}
	tns, err := b.s.TotalNegativeSlack(ctx, mm)
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{Check: mm.CheckName(), WorstSlack: worst, TNS: tns}
	if pin != graph.VertexIDNull {
		sum.WorstPin = b.s.Graph().VertexName(pin)
	}
	sel := corner.MinMaxAllMax
	if mm == corner.Min {
		sel = corner.MinMaxAllMin
	}
	for _, v := range b.s.Endpoints() {
		worst := float32(delay.Infinity)
		for _, end := range b.s.PathEndsAt(v, sel, false) {
			worst = min(worst, end.Slack())
		}
		if delay.IsInf(worst) {
			continue
		}
		sum.Endpoints++
		if worst < 0 {
			sum.Violations++
		}
	}
	return sum, nil
}
