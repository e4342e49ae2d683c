package timeseries

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/icewatch/seaice-stats/internal/nasateam"
)

func TestRollingMean(t *testing.T) {
	out := RollingMean([]float64{1, 2, 3, 4}, 3, 1, nil)
	assert.Equal(t, []float64{1, 1.5, 2, 3}, out)
}

func TestRollingMean_MinValid(t *testing.T) {
	out := RollingMean([]float64{10, math.NaN(), 20}, 3, 2, nil)
	assert.True(t, math.IsNaN(out[0]))
	assert.True(t, math.IsNaN(out[1]))
	assert.Equal(t, 15.0, out[2])
}

func TestRollingMean_Weighted(t *testing.T) {
	out := RollingMean([]float64{10, 20}, 2, 1, []float64{2, 1})
	assert.Equal(t, 10.0, out[0])
	assert.InDelta(t, 40.0/3.0, out[1], 1e-9)
}

func TestSMMRWeights(t *testing.T) {
	s := series(time.Date(1978, time.October, 26, 0, 0, 0, 0, time.UTC), 10, 11, 12)
	s = append(s, series(time.Date(2010, time.March, 1, 0, 0, 0, 0, time.UTC), 13)...)

	weights := SMMRWeights(s, nasateam.DefaultPlatformRanges)
	assert.Equal(t, []float64{2, 1, 2, 1}, weights)
}

func TestExtentsAndAreas(t *testing.T) {
	s := series(march2010, 10, 20)
	assert.Equal(t, []float64{10, 20}, Extents(s))
	assert.Equal(t, []float64{9, 18}, Areas(s))
}
