package timeseries

import (
	"math"

	"github.com/icewatch/seaice-stats/internal/domain"
	"github.com/icewatch/seaice-stats/internal/nasateam"
)

// RollingMean computes a trailing-window weighted mean of values. A window
// with fewer than minValid weighted observations yields NaN for that
// position. weights may be nil for an unweighted mean.
func RollingMean(values []float64, window, minValid int, weights []float64) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		sum, wsum, valid := 0.0, 0.0, 0
		for j := lo; j <= i; j++ {
			if math.IsNaN(values[j]) {
				continue
			}
			w := 1.0
			if weights != nil {
				w = weights[j]
			}
			sum += values[j] * w
			wsum += w
			valid++
		}
		if valid < minValid || wsum == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / wsum
	}
	return out
}

// SMMRWeights returns per-day weights for a series: 2 for SMMR observation
// days, 1 otherwise. The SMMR sensor imaged only every other day, so its
// valid days are double-weighted in window averages to keep the sparse era
// from being underrepresented.
func SMMRWeights(series []domain.StatRecord, ranges []nasateam.PlatformRange) []float64 {
	weights := make([]float64, len(series))
	for i, rec := range series {
		weights[i] = 1
		if nasateam.IsSMMRDay(ranges, rec.Date) {
			weights[i] = 2
		}
	}
	return weights
}

// Extents extracts the total extent column from a series.
func Extents(series []domain.StatRecord) []float64 {
	out := make([]float64, len(series))
	for i, rec := range series {
		out[i] = rec.TotalExtentKm2
	}
	return out
}

// Areas extracts the total area column from a series.
func Areas(series []domain.StatRecord) []float64 {
	out := make([]float64, len(series))
	for i, rec := range series {
		out[i] = rec.TotalAreaKm2
	}
	return out
}
