package search

import (
	"sort"
	"sync"

	"github.com/l3aro/go-sta/pkg/corner"
	"github.com/l3aro/go-sta/pkg/graph"
	"github.com/l3aro/go-sta/pkg/sdc"
)

type genClkKey struct {
	clk *sdc.Clock
	rf  corner.RiseFall
	ap  corner.PathAPIndex
}

// genClks resolves generated clock masters and records the source path
// of every generated clock edge found by the arrival search.
type genClks struct {
	search *Search

	mu       sync.Mutex
	srcPaths map[genClkKey]PathVertexRep
}

func newGenClks(s *Search) *genClks {
	return &genClks{search: s, srcPaths: make(map[genClkKey]PathVertexRep)}
}

func (g *genClks) clear() {
	g.mu.Lock()
	clear(g.srcPaths)
	g.mu.Unlock()
}

// resolveMasters sets the master of every generated clock: the named
// master, else the clock reaching the source pin. Masters that are
// themselves generated are resolved first.
func (g *genClks) resolveMasters() {
	s := g.search
	var pending []*sdc.Clock
	for _, clk := range s.sdc.Clocks() {
		if clk.IsGenerated() && clk.Master() == nil {
			pending = append(pending, clk)
		}
	}

	for len(pending) > 0 {
		var next []*sdc.Clock
		progress := false
		for _, clk := range pending {
			master, ok := g.findMaster(clk)
			if !ok {
				continue
			}
			if master.IsGenerated() && master.Master() == nil {
				next = append(next, clk)
				continue
			}
			if err := clk.SetMaster(master); err != nil {
				s.log.Warn("generated clock master rejected", "clock", clk.Name(), "error", err)
				continue
			}
			progress = true
		}
		if !progress {
			for _, clk := range next {
				s.log.Warn("generated clock master is unresolved", "clock", clk.Name())
			}
			return
		}
		pending = next
	}
}

func (g *genClks) findMaster(clk *sdc.Clock) (*sdc.Clock, bool) {
	s := g.search
	if name := clk.MasterName(); name != "" {
		master, ok := s.sdc.FindClock(name)
		if !ok {
			s.log.Warn("generated clock master not found", "clock", clk.Name(), "master", name)
		}
		return master, ok
	}

	cone := s.graph.FaninCone(clk.SrcPin())
	var candidates []*sdc.Clock
	for _, c := range s.sdc.Clocks() {
		if c == clk {
			continue
		}
		for _, pin := range c.Pins() {
			if cone[pin] {
				candidates = append(candidates, c)
				break
			}
		}
	}
	switch len(candidates) {
	case 0:
		s.log.Warn("no master clock reaches generated clock source",
			"clock", clk.Name(), "source", s.graph.VertexName(clk.SrcPin()))
		return nil, false
	case 1:
		return candidates[0], true
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Name() < candidates[j].Name() })
	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.Name()
	}
	s.log.Warn("ambiguous generated clock master",
		"clock", clk.Name(), "candidates", names, "using", candidates[0].Name())
	return candidates[0], true
}

// usableClock reports if clk has a period the search can work with.
func usableClock(clk *sdc.Clock) bool {
	return clk != nil && (!clk.IsGenerated() || clk.Master() != nil)
}

// gensOfMaster returns the generated clocks on pin with master clk.
func (g *genClks) gensOfMaster(pin graph.VertexID, clk *sdc.Clock) []*sdc.Clock {
	var gens []*sdc.Clock
	for _, gen := range g.search.sdc.GeneratedClocksOnPin(pin) {
		if gen.Master() == clk {
			gens = append(gens, gen)
		}
	}
	return gens
}

// isGenClkPinOf reports if pin defines a generated clock of master clk.
func (g *genClks) isGenClkPinOf(pin graph.VertexID, clk *sdc.Clock) bool {
	return len(g.gensOfMaster(pin, clk)) > 0
}

func (g *genClks) setSrcPath(clk *sdc.Clock, rf corner.RiseFall, ap corner.PathAPIndex, rep PathVertexRep) {
	g.mu.Lock()
	g.srcPaths[genClkKey{clk: clk, rf: rf, ap: ap}] = rep
	g.mu.Unlock()
}

func (g *genClks) srcPath(clk *sdc.Clock, rf corner.RiseFall, ap corner.PathAPIndex) (PathVertexRep, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rep, ok := g.srcPaths[genClkKey{clk: clk, rf: rf, ap: ap}]
	return rep, ok
}

// srcRF is the master transition that causes the rf edge of gen.
func srcRF(gen *sdc.Clock, rf corner.RiseFall) corner.RiseFall {
	if gen.Invert() {
		return rf.Opposite()
	}
	return rf
}

// GenClkSrcPath returns the master clock path that defines the rf edge of
// generated clock clk at analysis point ap.
func (s *Search) GenClkSrcPath(clk *sdc.Clock, rf corner.RiseFall, ap corner.PathAPIndex) (PathVertex, bool) {
	rep, ok := s.genclks.srcPath(clk, rf, ap)
	if !ok {
		return nullPathVertex, false
	}
	return rep.Resolve(s)
}
