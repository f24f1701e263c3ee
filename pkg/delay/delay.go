// Package delay implements the arrival and delay arithmetic of the timer.
//
// A Delay carries a mean and, in statistical (POCV) mode, a variance. In
// deterministic mode the variance is always zero and a Delay behaves like a
// plain float32.
package delay

import (
	"math"
	"strconv"
	"strings"

	"github.com/l3aro/go-sta/pkg/corner"
)

// Infinity is used as the initial value of min/max accumulations.
const Infinity = float32(1e30)

// Delay is a (possibly statistical) delay or arrival time.
type Delay struct {
	Mean   float32 `json:"mean" msgpack:"m"`
	Sigma2 float32 `json:"sigma2,omitempty" msgpack:"s,omitempty"`
}

// Zero is the zero delay.
var Zero = Delay{}

// New returns a deterministic delay.
func New(mean float32) Delay { return Delay{Mean: mean} }

// NewStat returns a statistical delay with the given mean and sigma.
func NewStat(mean, sigma float32) Delay { return Delay{Mean: mean, Sigma2: sigma * sigma} }

// Add returns d + o. Variances of independent delays add.
func (d Delay) Add(o Delay) Delay {
	return Delay{Mean: d.Mean + o.Mean, Sigma2: d.Sigma2 + o.Sigma2}
}

// AddFloat shifts the mean of d by f.
func (d Delay) AddFloat(f float32) Delay {
	return Delay{Mean: d.Mean + f, Sigma2: d.Sigma2}
}

// Sub returns d - o. Variances of independent delays add.
func (d Delay) Sub(o Delay) Delay {
	return Delay{Mean: d.Mean - o.Mean, Sigma2: d.Sigma2 + o.Sigma2}
}

// Sigma returns the standard deviation, zero for non-positive variance.
func (d Delay) Sigma() float32 {
	if d.Sigma2 <= 0 {
		return 0
	}
	return float32(math.Sqrt(float64(d.Sigma2)))
}

// IsZero reports if both mean and variance are zero.
func (d Delay) IsZero() bool { return d.Mean == 0 && d.Sigma2 == 0 }

// String renders "mean" or "mean/sigma2" with round trip precision.
func (d Delay) String() string {
	mean := strconv.FormatFloat(float64(d.Mean), 'g', -1, 32)
	if d.Sigma2 == 0 {
		return mean
	}
	return mean + "/" + strconv.FormatFloat(float64(d.Sigma2), 'g', -1, 32)
}

// Parse parses the String form of a delay.
func Parse(s string) (Delay, error) {
	meanStr, sigmaStr, stat := strings.Cut(s, "/")
	mean, err := strconv.ParseFloat(meanStr, 32)
	if err != nil {
		return Zero, err
	}
	d := Delay{Mean: float32(mean)}
	if stat {
		sigma2, err := strconv.ParseFloat(sigmaStr, 32)
		if err != nil {
			return Zero, err
		}
		d.Sigma2 = float32(sigma2)
	}
	return d, nil
}

// Model converts delays to the scalar values used for comparisons.
type Model struct {
	statistical bool
	sigmaFactor float32
}

// Deterministic returns a model that uses the mean only.
func Deterministic() Model { return Model{} }

// Statistical returns a POCV model that bounds delays at sigmaFactor sigmas.
func Statistical(sigmaFactor float32) Model {
	return Model{statistical: true, sigmaFactor: sigmaFactor}
}

// IsStatistical reports if the model is POCV.
func (m Model) IsStatistical() bool { return m.statistical }

// SigmaFactor returns the number of sigmas used to bound delays.
func (m Model) SigmaFactor() float32 { return m.sigmaFactor }

// AsFloat returns the late (mean + k sigma) or early (mean - k sigma) bound.
func (m Model) AsFloat(d Delay, el corner.EarlyLate) float32 {
	if !m.statistical {
		return d.Mean
	}
	s := m.sigmaFactor * d.Sigma()
	if el == corner.Late {
		return d.Mean + s
	}
	return d.Mean - s
}

// Worse reports if arrival a is strictly worse than b for the min/max.
func (m Model) Worse(a, b Delay, mm corner.MinMax) bool {
	return mm.Worse(m.AsFloat(a, mm), m.AsFloat(b, mm))
}

// Equal reports if a and b compare equal for the min/max.
func (m Model) Equal(a, b Delay, mm corner.MinMax) bool {
	return m.AsFloat(a, mm) == m.AsFloat(b, mm)
}

// InitValue returns the identity of worst-of accumulation for mm.
func InitValue(mm corner.MinMax) float32 {
	if mm == corner.Max {
		return -Infinity
	}
	return Infinity
}

// RequiredInit returns the identity of required time accumulation for mm:
// max paths take the earliest required, min paths the latest.
func RequiredInit(mm corner.MinMax) Delay {
	if mm == corner.Max {
		return Delay{Mean: Infinity}
	}
	return Delay{Mean: -Infinity}
}

// IsInf reports if f is one of the accumulation sentinels.
func IsInf(f float32) bool { return f >= Infinity || f <= -Infinity }
