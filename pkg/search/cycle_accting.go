package search

import (
	"math"
	"sync"

	"github.com/l3aro/go-sta/pkg/sdc"
)

// Launch occurrences examined per clock pair. Clock periods that are not
// commensurable within this many source cycles are treated as if they
// were.
const maxCycleCount = 1000

// periodResolution converts periods to integer units for the LCM search.
const periodResolution = 1000

// CycleAccting is the timing relationship between a launching (source) and
// capturing (target) clock edge. Offsets are capture times relative to the
// launch time of the source edge.
type CycleAccting struct {
	src *sdc.ClockEdge
	tgt *sdc.ClockEdge

	// Default setup/hold relationship.
	setup float32
	hold  float32
	// Data check relationship: setup may capture at the launch time itself.
	dataSetup float32
	dataHold  float32
}

func newCycleAccting(src, tgt *sdc.ClockEdge) *CycleAccting {
	ca := &CycleAccting{src: src, tgt: tgt}

	ps, pt := src.Clock().Period(), tgt.Clock().Period()
	ls0, ct0 := src.Time(), tgt.Time()
	launches := launchCount(ps, pt)

	ca.setup = float32(math.Inf(1))
	ca.hold = float32(math.Inf(-1))
	ca.dataSetup = float32(math.Inf(1))
	ca.dataHold = float32(math.Inf(-1))
	for k := 0; k < launches; k++ {
		ls := ls0 + float32(k)*ps

		// First capture strictly after the launch.
		after := captureAfter(ct0, pt, ls, false)
		if d := after - ls; d < ca.setup {
			ca.setup = d
		}
		// Data launched now must not disturb the previous capture, and
		// data launched next cycle must not disturb this capture.
		prevHold := after - pt - ls
		nextHold := after - (ls + ps)
		if h := max(prevHold, nextHold); h > ca.hold {
			ca.hold = h
		}

		atOrAfter := captureAfter(ct0, pt, ls, true)
		if d := atOrAfter - ls; d < ca.dataSetup {
			ca.dataSetup = d
		}
		atOrBefore := captureAtOrBefore(ct0, pt, ls)
		if d := atOrBefore - ls; d > ca.dataHold {
			ca.dataHold = d
		}
	}
	return ca
}

// launchCount returns the number of source cycles in the common period of
// the two clocks.
func launchCount(ps, pt float32) int {
	a := int64(math.Round(float64(ps) * periodResolution))
	b := int64(math.Round(float64(pt) * periodResolution))
	if a <= 0 || b <= 0 {
		return 1
	}
	l := a / gcd(a, b) * b
	n := l / a
	if n < 1 {
		return 1
	}
	if n > maxCycleCount {
		return maxCycleCount
	}
	return int(n)
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// captureAfter returns the first capture edge after t (at or after t when
// inclusive).
func captureAfter(ct0, pt, t float32, inclusive bool) float32 {
	n := float32(math.Floor(float64((t - ct0) / pt)))
	c := ct0 + n*pt
	for c < t || (!inclusive && c <= t) {
		c += pt
	}
	for c-pt > t || (inclusive && c-pt >= t) {
		c -= pt
	}
	return c
}

// captureAtOrBefore returns the last capture edge at or before t.
func captureAtOrBefore(ct0, pt, t float32) float32 {
	c := captureAfter(ct0, pt, t, false)
	return c - pt
}

func (ca *CycleAccting) Src() *sdc.ClockEdge { return ca.src }
func (ca *CycleAccting) Tgt() *sdc.ClockEdge { return ca.tgt }

// SetupTarget returns the capture time of a setup check for data launched
// at the source edge time.
func (ca *CycleAccting) SetupTarget() float32 { return ca.src.Time() + ca.setup }

// HoldTarget returns the capture time of a hold check.
func (ca *CycleAccting) HoldTarget() float32 { return ca.src.Time() + ca.hold }

// DataSetupTarget returns the capture time of a data check setup.
func (ca *CycleAccting) DataSetupTarget() float32 { return ca.src.Time() + ca.dataSetup }

// DataHoldTarget returns the capture time of a data check hold.
func (ca *CycleAccting) DataHoldTarget() float32 { return ca.src.Time() + ca.dataHold }

// MulticycleSetup returns the setup capture time with a multicycle setup
// multiplier.
func (ca *CycleAccting) MulticycleSetup(multiplier int) float32 {
	if multiplier < 1 {
		multiplier = 1
	}
	return ca.SetupTarget() + float32(multiplier-1)*ca.tgt.Clock().Period()
}

// MulticycleHold returns the hold capture time given the setup multiplier
// in effect and the hold multiplier.
func (ca *CycleAccting) MulticycleHold(setupMultiplier, holdMultiplier int) float32 {
	if setupMultiplier < 1 {
		setupMultiplier = 1
	}
	pt := ca.tgt.Clock().Period()
	return ca.HoldTarget() + float32(setupMultiplier-1)*pt - float32(holdMultiplier)*pt
}

type cycleKey struct{ src, tgt int }

// cycleAcctings caches the relationship of every clock edge pair.
type cycleAcctings struct {
	mu     sync.Mutex
	byPair map[cycleKey]*CycleAccting
}

func newCycleAcctings() *cycleAcctings {
	return &cycleAcctings{byPair: make(map[cycleKey]*CycleAccting)}
}

func (c *cycleAcctings) find(src, tgt *sdc.ClockEdge) *CycleAccting {
	key := cycleKey{src: src.Index(), tgt: tgt.Index()}
	c.mu.Lock()
	defer c.mu.Unlock()
	ca, ok := c.byPair[key]
	if !ok {
		ca = newCycleAccting(src, tgt)
		c.byPair[key] = ca
	}
	return ca
}

func (c *cycleAcctings) clear() {
	c.mu.Lock()
	clear(c.byPair)
	c.mu.Unlock()
}

// CycleAccting returns the relationship between a source and target edge.
func (s *Search) CycleAccting(src, tgt *sdc.ClockEdge) *CycleAccting {
	return s.cycles.find(src, tgt)
}
