// Package timeseries manipulates the daily and monthly statistic series:
// bounded gap interpolation, weighted rolling means, climatologies,
// anomalies, and rates of change.
package timeseries

import (
	"math"
	"time"

	"github.com/icewatch/seaice-stats/internal/domain"
	"github.com/icewatch/seaice-stats/internal/nasateam"
)

// Interpolator fills short gaps in a daily series using the two nearest
// valid neighbors on the time axis. Interpolation is strictly temporal;
// nothing is ever filled from spatial neighbors here.
type Interpolator struct {
	// MaxGap is the longest run of consecutive missing days that will be
	// filled. Longer gaps stay NaN.
	MaxGap int
	// AllowCrossPlatform permits filling a gap whose bounding observations
	// come from different platforms. Off by default: mixing two sensors'
	// systematic biases needs an explicit override.
	AllowCrossPlatform bool
	// PlatformRanges is the preferred-platform timeline used for the
	// cross-platform check.
	PlatformRanges []nasateam.PlatformRange
}

// Interpolate returns a copy of the series with short gaps filled. The input
// must be sorted by date and dense (one record per day). Filled days keep
// their original filenames empty and are marked SourceInterpolated so
// observed and filled values stay distinguishable downstream.
func (ip *Interpolator) Interpolate(series []domain.StatRecord) []domain.StatRecord {
	out := make([]domain.StatRecord, len(series))
	copy(out, series)
	if ip.MaxGap <= 0 {
		return out
	}

	i := 0
	for i < len(out) {
		if !math.IsNaN(out[i].TotalExtentKm2) {
			i++
			continue
		}
		gapStart := i
		for i < len(out) && math.IsNaN(out[i].TotalExtentKm2) {
			i++
		}
		gapEnd := i // first valid index after the gap, or len(out)

		if gapEnd-gapStart > ip.MaxGap {
			continue
		}
		if gapStart == 0 || gapEnd == len(out) {
			// Gaps at the series boundary have only one neighbor.
			continue
		}
		left, right := out[gapStart-1], out[gapEnd]
		if !ip.crossPlatformOK(left.Date, right.Date) {
			continue
		}

		span := float64(gapEnd - (gapStart - 1))
		for j := gapStart; j < gapEnd; j++ {
			frac := float64(j-(gapStart-1)) / span
			out[j].TotalExtentKm2 = domain.Round3(lerp(left.TotalExtentKm2, right.TotalExtentKm2, frac))
			out[j].TotalAreaKm2 = domain.Round3(lerp(left.TotalAreaKm2, right.TotalAreaKm2, frac))
			out[j].Regional = interpolateRegional(left, right, out[j].Regional, frac)
			out[j].Source = domain.SourceInterpolated
		}
	}
	return out
}

// crossPlatformOK reports whether a gap bounded by the two dates may be
// filled under the platform-mixing policy.
func (ip *Interpolator) crossPlatformOK(left, right time.Time) bool {
	if ip.AllowCrossPlatform {
		return true
	}
	lp, lok := nasateam.PlatformFor(ip.PlatformRanges, left)
	rp, rok := nasateam.PlatformFor(ip.PlatformRanges, right)
	if !lok || !rok {
		// Dates outside every range use the near-real-time fallback, which
		// is a single product; nothing to mix.
		return true
	}
	return lp == rp
}

func interpolateRegional(left, right domain.StatRecord, current map[string]domain.RegionStats, frac float64) map[string]domain.RegionStats {
	if len(current) == 0 {
		return current
	}
	out := make(map[string]domain.RegionStats, len(current))
	for name, rs := range current {
		ls, lok := left.Regional[name]
		rrs, rok := right.Regional[name]
		if !lok || !rok || rs.Outcome != domain.Unobserved {
			out[name] = rs
			continue
		}
		out[name] = domain.RegionStats{
			ExtentKm2:  domain.Round3(lerp(ls.ExtentKm2, rrs.ExtentKm2, frac)),
			AreaKm2:    domain.Round3(lerp(ls.AreaKm2, rrs.AreaKm2, frac)),
			MissingKm2: rs.MissingKm2,
			Outcome:    domain.Observed,
		}
	}
	return out
}

func lerp(a, b, frac float64) float64 {
	return a + (b-a)*frac
}
