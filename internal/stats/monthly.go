package stats

import (
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/icewatch/seaice-stats/internal/domain"
	"github.com/icewatch/seaice-stats/internal/nasateam"
)

// MonthlyBuilder aggregates daily statistics into monthly records. Monthly
// values are averages of the daily statistics, never averages of grids.
type MonthlyBuilder struct {
	minValidDays     int
	badMonths        []nasateam.BadConcentrationMonth
	platformRanges   []nasateam.PlatformRange
	doubleWeightSMMR bool
	logger           *slog.Logger
}

// NewMonthlyBuilder creates a builder. minValidDays is the minimum number of
// days with valid daily extents for a month to produce statistics;
// doubleWeightSMMR doubles SMMR-era days before averaging so the
// every-other-day cadence does not bias months that span the platform
// transition.
func NewMonthlyBuilder(minValidDays int, badMonths []nasateam.BadConcentrationMonth,
	ranges []nasateam.PlatformRange, doubleWeightSMMR bool, logger *slog.Logger) *MonthlyBuilder {
	return &MonthlyBuilder{
		minValidDays:     minValidDays,
		badMonths:        badMonths,
		platformRanges:   ranges,
		doubleWeightSMMR: doubleWeightSMMR,
		logger:           logger,
	}
}

// Build computes one record per complete month covered by the daily series.
// The current, still-incomplete month is excluded. Records are keyed by the
// first day of their month and sorted.
func (b *MonthlyBuilder) Build(daily []domain.StatRecord, hemi nasateam.Hemisphere) []domain.StatRecord {
	currentMonth := domain.MonthStart(domain.Today())

	byMonth := make(map[time.Time][]domain.StatRecord)
	for _, rec := range daily {
		if rec.Hemisphere != hemi.ShortName {
			continue
		}
		if rec.Date.Before(nasateam.BeginningOfSatelliteEraMonthly) {
			continue
		}
		month := domain.MonthStart(rec.Date)
		if !month.Before(currentMonth) {
			continue
		}
		byMonth[month] = append(byMonth[month], rec)
		if b.doubleWeightSMMR && nasateam.IsSMMRDay(b.platformRanges, rec.Date) {
			byMonth[month] = append(byMonth[month], rec)
		}
	}

	months := make([]time.Time, 0, len(byMonth))
	for m := range byMonth {
		months = append(months, m)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })

	out := make([]domain.StatRecord, 0, len(months))
	for _, month := range months {
		out = append(out, b.monthRecord(month, hemi, byMonth[month]))
	}
	return out
}

func (b *MonthlyBuilder) monthRecord(month time.Time, hemi nasateam.Hemisphere, days []domain.StatRecord) domain.StatRecord {
	validDays := 0
	for _, d := range days {
		if !math.IsNaN(d.TotalExtentKm2) {
			validDays++
		}
	}

	regions := regionNames(days)

	if validDays < b.minValidDays {
		b.logger.Warn("insufficient valid days for monthly statistics",
			"hemisphere", hemi.ShortName, "month", month.Format(domain.MonthFormat),
			"valid_days", validDays, "required", b.minValidDays)
		rec := domain.EmptyRecord(month, hemi.ShortName, regions)
		return rec
	}

	rec := domain.StatRecord{
		Date:           month,
		Hemisphere:     hemi.ShortName,
		TotalExtentKm2: meanOf(days, func(r domain.StatRecord) float64 { return r.TotalExtentKm2 }),
		TotalAreaKm2:   meanOf(days, func(r domain.StatRecord) float64 { return r.TotalAreaKm2 }),
		NotImagedKm2:   meanOf(days, func(r domain.StatRecord) float64 { return r.NotImagedKm2 }),
		// A month with enough valid days reports no missing data; gaps
		// inside it are already reflected in the daily series.
		Missing: 0,
		Source:  monthSource(days),
	}
	// Double-weighted SMMR days appear twice in the slice; each input file
	// is still listed once.
	seenFiles := make(map[string]struct{})
	for _, d := range days {
		for _, f := range d.Filenames {
			if _, ok := seenFiles[f]; ok {
				continue
			}
			seenFiles[f] = struct{}{}
			rec.Filenames = append(rec.Filenames, f)
		}
	}

	if len(regions) > 0 {
		rec.Regional = make(map[string]domain.RegionStats, len(regions))
		for _, name := range regions {
			rec.Regional[name] = domain.RegionStats{
				ExtentKm2: meanOf(days, regionStat(name, func(s domain.RegionStats) float64 { return s.ExtentKm2 })),
				AreaKm2:   meanOf(days, regionStat(name, func(s domain.RegionStats) float64 { return s.AreaKm2 })),
				// Monthly missing follows the record-level convention.
				MissingKm2: 0,
				Outcome:    domain.Observed,
			}
		}
	}

	b.applyBadMonth(&rec, hemi)
	return rec
}

// applyBadMonth drops the area statistics for configured bad concentration
// months. Extent is kept; only the concentration average is unusable. The
// pole hole lies entirely within the central arctic region, so that is the
// only regional area affected.
func (b *MonthlyBuilder) applyBadMonth(rec *domain.StatRecord, hemi nasateam.Hemisphere) {
	for _, bad := range b.badMonths {
		if bad.Hemisphere != hemi.ShortName {
			continue
		}
		if rec.Date.Year() != bad.Year || int(rec.Date.Month()) != bad.Month {
			continue
		}
		rec.TotalAreaKm2 = math.NaN()
		for name, rs := range rec.Regional {
			if strings.Contains(name, "centralarctic") {
				rs.AreaKm2 = math.NaN()
				rec.Regional[name] = rs
			}
		}
	}
}

// meanOf averages a statistic over the days where it is defined, rounded to
// datastore precision. All-NaN inputs yield NaN.
func meanOf(days []domain.StatRecord, get func(domain.StatRecord) float64) float64 {
	sum, n := 0.0, 0
	for _, d := range days {
		v := get(d)
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return domain.Round3(sum / float64(n))
}

func regionStat(name string, get func(domain.RegionStats) float64) func(domain.StatRecord) float64 {
	return func(r domain.StatRecord) float64 {
		rs, ok := r.Regional[name]
		if !ok {
			return math.NaN()
		}
		return get(rs)
	}
}

// monthSource reports the product the month's days came from; a month mixing
// final and near-real-time days is labeled near-real-time since it will be
// recomputed when final data arrives.
func monthSource(days []domain.StatRecord) domain.Source {
	source := domain.SourceNone
	for _, d := range days {
		switch d.Source {
		case domain.SourceNRT:
			return domain.SourceNRT
		case domain.SourceFinal:
			source = domain.SourceFinal
		}
	}
	return source
}

func regionNames(days []domain.StatRecord) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, d := range days {
		for name := range d.Regional {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
