package corner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRiseFall(t *testing.T) {
	assert.Equal(t, Fall, Rise.Opposite())
	assert.Equal(t, Rise, Fall.Opposite())
	assert.Equal(t, "rise", Rise.String())
	assert.Equal(t, "v", Fall.ShortName())

	rf, err := NewRfIndex(1)
	require.NoError(t, err)
	assert.Equal(t, Fall, rf)

	_, err = NewRfIndex(2)
	assert.ErrorIs(t, err, ErrIndexRange)
	_, err = NewRfIndex(-1)
	assert.ErrorIs(t, err, ErrIndexRange)
}

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    RiseFall
		wantErr bool
	}{
		{"rise", Rise, false},
		{"^", Rise, false},
		{"FALL", Fall, false},
		{"v", Fall, false},
		{"up", Rise, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRiseFall(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	mm, err := ParseMinMax("setup")
	require.NoError(t, err)
	assert.Equal(t, Max, mm)
	mm, err = ParseMinMax("hold")
	require.NoError(t, err)
	assert.Equal(t, Min, mm)

	all, err := ParseMinMaxAll("")
	require.NoError(t, err)
	assert.True(t, all.Matches(Min))
	assert.True(t, all.Matches(Max))
	all, err = ParseMinMaxAll("hold")
	require.NoError(t, err)
	assert.False(t, all.Matches(Max))

	rfb, err := ParseRiseFallBoth("fall")
	require.NoError(t, err)
	assert.True(t, rfb.Matches(Fall))
	assert.False(t, rfb.Matches(Rise))
}

func TestMinMax_Worse(t *testing.T) {
	assert.True(t, Max.Worse(2, 1))
	assert.False(t, Max.Worse(1, 1))
	assert.True(t, Min.Worse(1, 2))
	assert.Equal(t, "setup", Max.CheckName())
	assert.Equal(t, Min, Max.Opposite())
}

func TestNewCorners(t *testing.T) {
	cs, err := NewCorners("fast", "slow")
	require.NoError(t, err)

	assert.Equal(t, 2, cs.Count())
	assert.Equal(t, 4, cs.PathAnalysisPtCount())

	slow, ok := cs.FindCorner("slow")
	require.True(t, ok)
	maxAP := slow.PathAnalysisPt(Max)
	assert.Equal(t, PathAPIndex(3), maxAP.Index())
	assert.Equal(t, Max, maxAP.PathMinMax())
	assert.Same(t, slow.PathAnalysisPt(Min), maxAP.TgtClkAnalysisPt())
	assert.Same(t, maxAP, cs.PathAnalysisPt(3))
	assert.Equal(t, "slow/max", maxAP.String())

	_, ok = cs.FindCorner("typ")
	assert.False(t, ok)
}

func TestNewCorners_Errors(t *testing.T) {
	_, err := NewCorners("a", "a")
	assert.Error(t, err)

	names := make([]string, 9)
	for i := range names {
		names[i] = string(rune('a' + i))
	}
	_, err = NewCorners(names...)
	assert.ErrorIs(t, err, ErrIndexRange)

	cs, err := NewCorners()
	require.NoError(t, err)
	assert.Equal(t, "default", cs.Corners()[0].Name())

	_, err = NewPathAPIndex(16)
	assert.ErrorIs(t, err, ErrIndexRange)
}
