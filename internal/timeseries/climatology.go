package timeseries

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/icewatch/seaice-stats/internal/domain"
)

// DefaultQuantiles are the levels published with the climatology table.
var DefaultQuantiles = []float64{0.25, 0.5, 0.75}

// Normals holds the climatological mean and standard deviation for one day
// of year, with the number of reference years that contributed.
type Normals struct {
	Mean  float64
	Std   float64
	Years int
}

// ReferencePeriod bounds the climatology years, inclusive.
type ReferencePeriod struct {
	StartYear int
	EndYear   int
	// MinYears is the minimum number of valid years required for a day of
	// year to have defined normals. Zero means every contributing year
	// counts.
	MinYears int
}

// value indexes a daily series by date for climatology alignment.
func indexByDate(series []domain.StatRecord, get func(domain.StatRecord) float64) map[time.Time]float64 {
	idx := make(map[time.Time]float64, len(series))
	for _, rec := range series {
		idx[domain.Day(rec.Date)] = get(rec)
	}
	return idx
}

// stackByDayOfYear aligns the reference years into 366 day-of-year buckets.
// Each reference year contributes the 366 consecutive days starting on its
// January 1st, so day 366 comes from December 31st in leap years and the
// following January 1st otherwise.
func stackByDayOfYear(series []domain.StatRecord, get func(domain.StatRecord) float64, ref ReferencePeriod) map[int][]float64 {
	idx := indexByDate(series, get)
	buckets := make(map[int][]float64, 366)
	for year := ref.StartYear; year <= ref.EndYear; year++ {
		start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		for i := 0; i < 366; i++ {
			v, ok := idx[start.AddDate(0, 0, i)]
			if !ok || math.IsNaN(v) {
				continue
			}
			buckets[i+1] = append(buckets[i+1], v)
		}
	}
	return buckets
}

// ClimatologyMeans computes the day-of-year mean and sample standard
// deviation of a daily statistic over the reference period. Days of year
// with fewer than ref.MinYears valid values are omitted.
func ClimatologyMeans(series []domain.StatRecord, get func(domain.StatRecord) float64, ref ReferencePeriod) map[int]Normals {
	buckets := stackByDayOfYear(series, get, ref)
	out := make(map[int]Normals, len(buckets))
	for doy, vals := range buckets {
		if len(vals) < ref.MinYears || len(vals) == 0 {
			continue
		}
		mean, std := stat.MeanStdDev(vals, nil)
		if len(vals) == 1 {
			std = math.NaN()
		}
		out[doy] = Normals{Mean: mean, Std: std, Years: len(vals)}
	}
	return out
}

// Quantiles computes day-of-year quantiles of a daily statistic over the
// reference period. The returned table maps day of year to one value per
// requested level.
func Quantiles(series []domain.StatRecord, get func(domain.StatRecord) float64, ref ReferencePeriod, levels []float64) map[int][]float64 {
	buckets := stackByDayOfYear(series, get, ref)
	out := make(map[int][]float64, len(buckets))
	for doy, vals := range buckets {
		if len(vals) < ref.MinYears || len(vals) == 0 {
			continue
		}
		sort.Float64s(vals)
		qs := make([]float64, len(levels))
		for i, level := range levels {
			qs[i] = stat.Quantile(level, stat.LinInterp, vals, nil)
		}
		out[doy] = qs
	}
	return out
}

// Anomalies subtracts the climatological mean for the matching day of year
// from each value in the series. Days whose normals are undefined (too few
// reference years) yield NaN.
func Anomalies(series []domain.StatRecord, get func(domain.StatRecord) float64, normals map[int]Normals) []float64 {
	out := make([]float64, len(series))
	for i, rec := range series {
		v := get(rec)
		n, ok := normals[dayOfYearIndex(rec.Date)]
		if !ok || math.IsNaN(v) {
			out[i] = math.NaN()
			continue
		}
		out[i] = v - n.Mean
	}
	return out
}

// MonthlyClimatologyMeans averages a monthly statistic per calendar month
// over the reference years.
func MonthlyClimatologyMeans(monthly []domain.StatRecord, get func(domain.StatRecord) float64, ref ReferencePeriod) map[time.Month]float64 {
	sums := make(map[time.Month]float64)
	counts := make(map[time.Month]int)
	for _, rec := range monthly {
		year := rec.Date.Year()
		if year < ref.StartYear || year > ref.EndYear {
			continue
		}
		v := get(rec)
		if math.IsNaN(v) {
			continue
		}
		sums[rec.Date.Month()] += v
		counts[rec.Date.Month()]++
	}
	out := make(map[time.Month]float64, len(sums))
	for m, sum := range sums {
		if counts[m] < ref.MinYears {
			continue
		}
		out[m] = sum / float64(counts[m])
	}
	return out
}

// MonthlyAnomalies subtracts each month's climatological mean from the
// monthly series. Months without a defined mean yield NaN.
func MonthlyAnomalies(monthly []domain.StatRecord, get func(domain.StatRecord) float64, means map[time.Month]float64) []float64 {
	out := make([]float64, len(monthly))
	for i, rec := range monthly {
		v := get(rec)
		mean, ok := means[rec.Date.Month()]
		if !ok || math.IsNaN(v) {
			out[i] = math.NaN()
			continue
		}
		out[i] = v - mean
	}
	return out
}

// MonthlyPercentAnomalies expresses monthly anomalies as a percentage of the
// climatological mean: 100 * (value - mean) / mean.
func MonthlyPercentAnomalies(monthly []domain.StatRecord, get func(domain.StatRecord) float64, means map[time.Month]float64) []float64 {
	out := make([]float64, len(monthly))
	for i, rec := range monthly {
		v := get(rec)
		mean, ok := means[rec.Date.Month()]
		if !ok || math.IsNaN(v) || mean == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = 100 * (v - mean) / mean
	}
	return out
}

// dayOfYearIndex matches the stacked climatology alignment: the day's offset
// from its own January 1st, 1-based.
func dayOfYearIndex(date time.Time) int {
	return date.YearDay()
}
