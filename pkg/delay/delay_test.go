package delay

import (
	"testing"

	"github.com/l3aro/go-sta/pkg/corner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelay_Arithmetic(t *testing.T) {
	a := NewStat(2, 3)
	b := NewStat(1, 4)

	sum := a.Add(b)
	assert.Equal(t, float32(3), sum.Mean)
	assert.Equal(t, float32(25), sum.Sigma2)

	diff := a.Sub(b)
	assert.Equal(t, float32(1), diff.Mean)
	assert.Equal(t, float32(25), diff.Sigma2)

	assert.Equal(t, float32(5), sum.Sigma())
	assert.Equal(t, float32(0), Delay{Mean: 1, Sigma2: -1}.Sigma())
	assert.True(t, Zero.IsZero())
}

func TestModel_AsFloat(t *testing.T) {
	d := NewStat(10, 2)

	tests := []struct {
		name  string
		model Model
		el    corner.EarlyLate
		want  float32
	}{
		{"deterministic late", Deterministic(), corner.Late, 10},
		{"deterministic early", Deterministic(), corner.Early, 10},
		{"statistical late", Statistical(3), corner.Late, 16},
		{"statistical early", Statistical(3), corner.Early, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.model.AsFloat(d, tt.el), 1e-5)
		})
	}
}

func TestModel_Worse(t *testing.T) {
	m := Deterministic()
	assert.True(t, m.Worse(New(5), New(3), corner.Max))
	assert.False(t, m.Worse(New(3), New(5), corner.Max))
	assert.True(t, m.Worse(New(3), New(5), corner.Min))
	assert.False(t, m.Worse(New(3), New(3), corner.Min))
	assert.True(t, m.Equal(New(3), New(3), corner.Max))
}

func TestDelay_ParseString(t *testing.T) {
	for _, d := range []Delay{Zero, New(1.25), NewStat(0.1, 0.3), {Mean: -4, Sigma2: 1e-7}} {
		got, err := Parse(d.String())
		require.NoError(t, err)
		assert.Equal(t, d, got)
	}

	_, err := Parse("abc")
	assert.Error(t, err)
	_, err = Parse("1/x")
	assert.Error(t, err)
}

func TestInitValue(t *testing.T) {
	assert.Equal(t, -Infinity, InitValue(corner.Max))
	assert.Equal(t, Infinity, InitValue(corner.Min))
	assert.True(t, IsInf(RequiredInit(corner.Max).Mean))
	assert.True(t, IsInf(RequiredInit(corner.Min).Mean))
	assert.False(t, IsInf(0))
}
