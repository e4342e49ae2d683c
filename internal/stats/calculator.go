// Package stats converts concentration grids into scalar statistics:
// hemisphere-wide and per-region extent, area, and missing metrics for
// single days, and their aggregation into monthly records.
package stats

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/icewatch/seaice-stats/internal/domain"
	"github.com/icewatch/seaice-stats/internal/grid"
	"github.com/icewatch/seaice-stats/internal/mask"
	"github.com/icewatch/seaice-stats/internal/nasateam"
)

// Calculator computes daily statistics from a single concentration grid.
// All thresholds and policies are injected; a Calculator is immutable and
// safe for concurrent use.
type Calculator struct {
	extentThreshold float64
	platformRanges  []nasateam.PlatformRange
	logger          *slog.Logger

	warnOnce sync.Map // region|year-month -> struct{}, de-duplicates mask warnings
}

// NewCalculator creates a calculator with the given extent threshold
// (percent concentration) and platform timeline.
func NewCalculator(extentThreshold float64, ranges []nasateam.PlatformRange, logger *slog.Logger) *Calculator {
	return &Calculator{
		extentThreshold: extentThreshold,
		platformRanges:  ranges,
		logger:          logger,
	}
}

// accum collects the running sums for one scope (total or one region).
type accum struct {
	extentKm2    float64
	areaKm2      float64
	missingKm2   float64
	notImagedKm2 float64
	observed     int // cells with a valid concentration value
	missing      int // ocean cells with the missing flag
	eligible     int // observable ocean cells (observed + missing)
	maskable     int // cells outside the invalid-ice mask
}

// Daily computes the statistics for one grid. cellAreas must match the grid
// shape; invalidIce is the monthly climatology mask; regions are the named
// regional masks for the hemisphere.
func (c *Calculator) Daily(g *grid.ConcentrationGrid, cellAreas []float64, invalidIce *mask.Bitmask, regions []mask.Regional) domain.StatRecord {
	var total accum
	regional := make([]accum, len(regions))

	for i, v := range g.Data {
		area := cellAreas[i]
		invalid := invalidIce.At(i)

		cell := classify(v)
		if cell == cellLand {
			continue
		}
		if !invalid {
			total.maskable++
		}

		c.accumulate(&total, cell, v, area, invalid)
		for ri := range regions {
			if !regions[ri].Include.At(i) {
				continue
			}
			if !invalid {
				regional[ri].maskable++
			}
			c.accumulate(&regional[ri], cell, v, area, invalid)
		}
	}

	rec := domain.StatRecord{
		Date:           g.Date,
		Hemisphere:     g.Hemisphere.ShortName,
		TotalExtentKm2: domain.Round3(total.extent()),
		TotalAreaKm2:   domain.Round3(total.area()),
		Missing:        domain.Round3(total.missingFraction()),
		NotImagedKm2:   domain.Round3(total.notImagedKm2),
		Source:         g.Source,
		Filenames:      g.Filenames,
	}

	if len(regions) > 0 {
		rec.Regional = make(map[string]domain.RegionStats, len(regions))
		for ri, region := range regions {
			rec.Regional[region.Name()] = c.regionStats(&regional[ri], region, g.Date)
		}
	}
	return rec
}

// accumulate adds one cell to the running sums. Invalid-ice cells are
// excluded from every sum; pole hole cells count only toward not-imaged.
func (c *Calculator) accumulate(a *accum, cell cellKind, v, area float64, invalid bool) {
	if invalid {
		return
	}
	switch cell {
	case cellConcentration:
		a.observed++
		a.eligible++
		if v >= c.extentThreshold {
			a.extentKm2 += area
		}
		a.areaKm2 += v / 100 * area
	case cellMissing:
		a.missing++
		a.eligible++
		a.missingKm2 += area
	case cellPole:
		a.notImagedKm2 += area
	}
}

// regionStats finalizes one region's accumulator, applying the
// masked-region zero substitution policy.
func (c *Calculator) regionStats(a *accum, region mask.Regional, date time.Time) domain.RegionStats {
	// A region wholly covered by the invalid-ice mask reports zero rather
	// than NaN, but only on days where data exists at all. During the SMMR
	// era every other day has no observation, and those days must stay NaN.
	if a.maskable == 0 {
		if c.dayWithIce(date) {
			c.warnMaskedRegion(region.Name(), date)
			return domain.RegionStats{Outcome: domain.ObservedMaskedZero}
		}
		return domain.RegionStats{
			ExtentKm2:  math.NaN(),
			AreaKm2:    math.NaN(),
			MissingKm2: math.NaN(),
			Outcome:    domain.Unobserved,
		}
	}

	return domain.RegionStats{
		ExtentKm2:  domain.Round3(a.extent()),
		AreaKm2:    domain.Round3(a.area()),
		MissingKm2: domain.Round3(a.missingKm2),
		Outcome:    domain.Observed,
	}
}

// dayWithIce reports whether observations exist for the date: either an
// SMMR observation day or any day after the SMMR era.
func (c *Calculator) dayWithIce(date time.Time) bool {
	if nasateam.IsSMMRDay(c.platformRanges, date) {
		return true
	}
	end := nasateam.SMMREnd(c.platformRanges)
	return !end.IsZero() && date.After(end)
}

func (c *Calculator) warnMaskedRegion(region string, date time.Time) {
	key := region + "|" + date.Format("2006-01")
	if _, loaded := c.warnOnce.LoadOrStore(key, struct{}{}); loaded {
		return
	}
	c.logger.Warn("region completely covered by invalid ice mask, reporting 0 instead of NaN",
		"region", region, "month", date.Format("2006-01"))
}

// extent returns the extent sum, or NaN when no cell had a valid
// observation (an entirely missing grid is "no data", not zero ice).
func (a *accum) extent() float64 {
	if a.observed == 0 {
		return math.NaN()
	}
	return a.extentKm2
}

func (a *accum) area() float64 {
	if a.observed == 0 {
		return math.NaN()
	}
	return a.areaKm2
}

func (a *accum) missingFraction() float64 {
	if a.eligible == 0 {
		return 1
	}
	return float64(a.missing) / float64(a.eligible)
}

type cellKind int

const (
	cellConcentration cellKind = iota
	cellPole
	cellMissing
	cellLand // land, coast, or lake: never part of statistics
)

func classify(v float64) cellKind {
	switch {
	case v <= 100:
		return cellConcentration
	case v == nasateam.FlagPole:
		return cellPole
	case v == nasateam.FlagMissing:
		return cellMissing
	default:
		return cellLand
	}
}
