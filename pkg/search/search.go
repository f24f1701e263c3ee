// Package search propagates arrival and required times through a timing
// graph and finds, ranks and enumerates the timing paths ending at
// constrained endpoints.
//
// Paths are never stored as objects. Every vertex holds one TagGroup, the
// interned set of tags reaching it, and arrays of arrivals, requireds and
// predecessors indexed by tag group slot. A path is a (vertex, tag) pair
// resolved against those arrays.
package search

import (
	"fmt"
	"strings"
	"sync"

	"github.com/l3aro/go-sta/internal/log"
	"github.com/l3aro/go-sta/pkg/corner"
	"github.com/l3aro/go-sta/pkg/delay"
	"github.com/l3aro/go-sta/pkg/graph"
	"github.com/l3aro/go-sta/pkg/intern"
	"github.com/l3aro/go-sta/pkg/sdc"
)

// CrprMode selects when clock reconvergence pessimism is removed.
type CrprMode int8

const (
	// CrprSamePin credits the common clock path at the reconvergence pin.
	CrprSamePin CrprMode = iota
	// CrprSameTransition credits it only when both clock paths cross the
	// common pin with the same transition.
	CrprSameTransition
)

// ParseCrprMode parses "same_pin" or "same_transition".
func ParseCrprMode(s string) (CrprMode, error) {
	switch strings.ToLower(s) {
	case "", "same_pin":
		return CrprSamePin, nil
	case "same_transition":
		return CrprSameTransition, nil
	default:
		return CrprSamePin, fmt.Errorf("invalid crpr mode %q", s)
	}
}

func (m CrprMode) String() string {
	if m == CrprSameTransition {
		return "same_transition"
	}
	return "same_pin"
}

// Options configures a Search.
type Options struct {
	// Threads bounds parallel vertex and endpoint visits.
	Threads int
	// Crpr enables clock reconvergence pessimism removal.
	Crpr     bool
	CrprMode CrprMode
	// Pocv enables statistical delays bounded at SigmaFactor sigmas.
	Pocv        bool
	SigmaFactor float32
	// Unconstrained makes unconstrained endpoints produce path ends.
	Unconstrained bool
	Logger        log.Logger
}

// Option sets a search option.
type Option func(*Options)

// WithThreads sets the number of parallel visits.
func WithThreads(n int) Option { return func(o *Options) { o.Threads = n } }

// WithCrpr enables CRPR in the given mode.
func WithCrpr(mode CrprMode) Option {
	return func(o *Options) {
		o.Crpr = true
		o.CrprMode = mode
	}
}

// WithPocv enables statistical delays.
func WithPocv(sigmaFactor float32) Option {
	return func(o *Options) {
		o.Pocv = true
		o.SigmaFactor = sigmaFactor
	}
}

// WithUnconstrained reports unconstrained endpoints.
func WithUnconstrained(enabled bool) Option { return func(o *Options) { o.Unconstrained = enabled } }

// WithLogger sets the logger for configuration warnings.
func WithLogger(l log.Logger) Option { return func(o *Options) { o.Logger = l } }

// vertexArrivals is the arena entry of a vertex. It is written only by the
// task visiting the vertex.
type vertexArrivals struct {
	tagGroup  *TagGroup
	arrivals  []delay.Delay
	requireds []delay.Delay
	prevs     []PrevLink
	// generation changes whenever tagGroup does.
	generation uint32
}

// Search is the timing search state of one design.
type Search struct {
	graph   *graph.Graph
	sdc     *sdc.Sdc
	corners *corner.Corners
	opts    Options
	model   delay.Model
	log     log.Logger

	clkInfos  *intern.Table[*ClkInfo]
	tags      *intern.Table[*Tag]
	tagGroups *intern.Table[*TagGroup]

	vertices []vertexArrivals
	genclks  *genClks
	cycles   *cycleAcctings
	crpr     *CheckCrpr
	worst    *worstSlacks
	metrics  searchMetrics
	bldrs    sync.Pool

	mu              sync.Mutex
	arrivalsFound   bool
	invalidArrivals map[graph.VertexID]bool
	requiredsFound  bool
	warned          map[string]bool
	loopEdges       map[graph.EdgeID]bool
}

// New creates the search of a graph and its constraints. The graph is
// levelized if needed; broken combinational loops are logged and recorded
// as loop exceptions.
func New(g *graph.Graph, constraints *sdc.Sdc, corners *corner.Corners, opts ...Option) (*Search, error) {
	o := Options{Threads: 1, SigmaFactor: 3}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Threads < 1 {
		o.Threads = 1
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	if g.AnalysisPtCount() != corners.PathAnalysisPtCount() {
		return nil, fmt.Errorf("graph has %d analysis points, corners have %d: %w",
			g.AnalysisPtCount(), corners.PathAnalysisPtCount(), corner.ErrIndexRange)
	}

	s := &Search{
		graph:           g,
		sdc:             constraints,
		corners:         corners,
		opts:            o,
		model:           delay.Deterministic(),
		log:             o.Logger,
		clkInfos:        intern.New[*ClkInfo](intern.Options{}),
		tags:            intern.New[*Tag](intern.Options{MaxID: uint32(TagIndexNull)}),
		tagGroups:       intern.New[*TagGroup](intern.Options{}),
		invalidArrivals: make(map[graph.VertexID]bool),
		warned:          make(map[string]bool),
		loopEdges:       make(map[graph.EdgeID]bool),
	}
	if o.Pocv {
		s.model = delay.Statistical(o.SigmaFactor)
	}
	s.genclks = newGenClks(s)
	s.cycles = newCycleAcctings()
	s.crpr = &CheckCrpr{search: s}
	s.worst = newWorstSlacks()
	s.bldrs.New = func() any { return s.NewTagGroupBldr() }

	if err := s.levelize(); err != nil {
		return nil, err
	}
	s.genclks.resolveMasters()
	s.vertices = make([]vertexArrivals, g.VertexCount())
	return s, nil
}

// levelize levelizes the graph if an edit made its levels stale. Every
// broken combinational loop is logged and recorded as a loop exception.
func (s *Search) levelize() error {
	if s.graph.Levelized() {
		return nil
	}
	for _, loop := range s.graph.Levelize() {
		if s.loopEdges[loop.Edge] {
			continue
		}
		s.loopEdges[loop.Edge] = true
		s.log.Warn("combinational loop broken",
			"from", s.graph.VertexName(loop.From), "to", s.graph.VertexName(loop.To))
		if _, err := s.sdc.MakeLoopException(loop.From, loop.To); err != nil {
			return err
		}
	}
	return nil
}

func (s *Search) Graph() *graph.Graph      { return s.graph }
func (s *Search) Sdc() *sdc.Sdc            { return s.sdc }
func (s *Search) Corners() *corner.Corners { return s.corners }
func (s *Search) Options() Options         { return s.opts }
func (s *Search) DelayModel() delay.Model  { return s.model }
func (s *Search) CheckCrpr() *CheckCrpr    { return s.crpr }

func (s *Search) crprActive() bool { return s.opts.Crpr }

func (s *Search) minMax(tag *Tag) corner.MinMax {
	return s.corners.PathAnalysisPt(tag.pathAPIndex).PathMinMax()
}

func (s *Search) analysisPt(tag *Tag) *corner.PathAnalysisPt {
	return s.corners.PathAnalysisPt(tag.pathAPIndex)
}

// warnOnce logs a configuration warning the first time key is seen.
func (s *Search) warnOnce(key, msg string, args ...interface{}) {
	s.mu.Lock()
	seen := s.warned[key]
	s.warned[key] = true
	s.mu.Unlock()
	if !seen {
		s.log.Warn(msg, args...)
	}
}

// TagGroup returns the tag group of v, nil before arrivals are found.
func (s *Search) TagGroup(v graph.VertexID) *TagGroup {
	if int(v) >= len(s.vertices) {
		return nil
	}
	return s.vertices[v].tagGroup
}

// ArrivalsInvalid makes the next FindArrivals search the whole graph.
func (s *Search) ArrivalsInvalid() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.arrivalsFound = false
	s.requiredsFound = false
	clear(s.invalidArrivals)
}

// ArrivalInvalid marks the arrivals of v stale, for example after a delay
// on one of its fanin edges changed.
func (s *Search) ArrivalInvalid(v graph.VertexID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.arrivalsFound {
		s.invalidArrivals[v] = true
	}
	s.requiredsFound = false
}

// RequiredsInvalid makes the next FindRequireds run again.
func (s *Search) RequiredsInvalid() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requiredsFound = false
}

// Clear drops every arrival and every interned tag, clock info and tag
// group.
func (s *Search) Clear() {
	s.mu.Lock()
	s.arrivalsFound = false
	s.requiredsFound = false
	clear(s.invalidArrivals)
	s.mu.Unlock()

	s.vertices = make([]vertexArrivals, s.graph.VertexCount())
	s.genclks.clear()
	s.worst.clear()
	s.tagGroups.Clear()
	s.tags.Clear()
	s.clkInfos.Clear()
}

// DeleteFilterTags removes the tags and tag groups created for a report
// filter once the filter is gone. Their indices are reused by later tags.
// Arrivals must be found again afterwards.
func (s *Search) DeleteFilterTags() error {
	var groups, tags []uint32
	s.tagGroups.Range(func(id uint32, tg *TagGroup) bool {
		if tg.hasFilterTag {
			groups = append(groups, id)
		}
		return true
	})
	s.tags.Range(func(id uint32, t *Tag) bool {
		if t.isFilter {
			tags = append(tags, id)
		}
		return true
	})
	for _, id := range groups {
		if err := s.tagGroups.Remove(id); err != nil {
			return critical("DeleteFilterTags", "%v", err)
		}
	}
	for _, id := range tags {
		if err := s.tags.Remove(id); err != nil {
			return critical("DeleteFilterTags", "%v", err)
		}
	}
	s.vertices = make([]vertexArrivals, s.graph.VertexCount())
	s.genclks.clear()
	s.ArrivalsInvalid()
	return nil
}
