package timeseries

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/icewatch/seaice-stats/internal/domain"
	"github.com/icewatch/seaice-stats/internal/nasateam"
)

// MonthlyRate is the extent change for one complete month.
type MonthlyRate struct {
	Month             time.Time
	ChangeKm2PerMonth float64
	ChangeKm2PerDay   float64
}

// MonthlyRatesOfChange computes month-over-month extent change from a dense
// daily series of one hemisphere. Each month is represented by the 5-day
// rolling mean of extent on its last day; the rate is the first difference
// of those month-end values. Partial months are excluded from the input: the
// first month of the record and the current, still-incomplete month never
// appear in the result, and months missing days inside the series yield NaN.
func MonthlyRatesOfChange(daily []domain.StatRecord, ranges []nasateam.PlatformRange, maxGap int) []MonthlyRate {
	if len(daily) == 0 {
		return nil
	}

	currentMonth := domain.MonthStart(domain.Today())
	ip := &Interpolator{MaxGap: maxGap, PlatformRanges: ranges}
	series := ip.Interpolate(daily)

	extents := Extents(series)
	smoothed := RollingMean(extents, 5, 2, nil)

	type monthEnd struct {
		value    float64
		days     int
		valid    int
		lastDay  int
		complete bool
	}
	byMonth := make(map[time.Time]*monthEnd)
	var months []time.Time
	for i, rec := range series {
		month := domain.MonthStart(rec.Date)
		if !month.Before(currentMonth) {
			continue
		}
		me, ok := byMonth[month]
		if !ok {
			me = &monthEnd{}
			byMonth[month] = me
			months = append(months, month)
		}
		me.days++
		me.lastDay = rec.Date.Day()
		me.value = smoothed[i]
		if !math.IsNaN(extents[i]) {
			me.valid++
		}
	}
	if len(months) == 0 {
		return nil
	}

	for _, month := range months {
		me := byMonth[month]
		// A month is complete when the series covers every one of its days
		// with a value, interpolated or observed.
		me.complete = me.valid == me.lastDay && me.lastDay == daysInMonth(month)
	}

	// The first month of the record starts mid-month and is never complete
	// input for a rate.
	rates := make([]MonthlyRate, 0, len(months)-1)
	for i := 1; i < len(months); i++ {
		month, prev := months[i], months[i-1]
		me, pe := byMonth[month], byMonth[prev]

		change := math.NaN()
		if me.complete && pe.complete && months[i-1].AddDate(0, 1, 0).Equal(month) {
			change = me.value - pe.value
		}
		rates = append(rates, MonthlyRate{
			Month:             month,
			ChangeKm2PerMonth: change,
			ChangeKm2PerDay:   change / float64(daysInMonth(month)),
		})
	}
	return rates
}

// ClimatologyAverageRatesOfChange averages the monthly rates per calendar
// month over the reference period.
func ClimatologyAverageRatesOfChange(rates []MonthlyRate, ref ReferencePeriod) map[time.Month]float64 {
	sums := make(map[time.Month]float64)
	counts := make(map[time.Month]int)
	for _, r := range rates {
		year := r.Month.Year()
		if year < ref.StartYear || year > ref.EndYear || math.IsNaN(r.ChangeKm2PerMonth) {
			continue
		}
		sums[r.Month.Month()] += r.ChangeKm2PerMonth
		counts[r.Month.Month()]++
	}
	out := make(map[time.Month]float64, len(sums))
	for m, sum := range sums {
		out[m] = sum / float64(counts[m])
	}
	return out
}

// TrendPerDecade fits a linear regression to the series and returns the
// slope expressed as change per decade. Clipping bounds are applied to the
// resulting rate, after the regression: clipping the inputs instead would
// distort the fit. Pass NaN bounds to disable clipping. Fewer than two valid
// points yield NaN.
func TrendPerDecade(dates []time.Time, values []float64, clipMin, clipMax float64) float64 {
	var xs, ys []float64
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		xs = append(xs, decimalYear(dates[i]))
		ys = append(ys, v)
	}
	if len(xs) < 2 {
		return math.NaN()
	}
	_, slope := stat.LinearRegression(xs, ys, nil, false)
	rate := slope * 10

	if !math.IsNaN(clipMin) && rate < clipMin {
		rate = clipMin
	}
	if !math.IsNaN(clipMax) && rate > clipMax {
		rate = clipMax
	}
	return rate
}

// Trendline returns the fitted regression value for every input date, NaN
// inputs included. Used by reporting to overlay a trend on a series.
func Trendline(dates []time.Time, values []float64) []float64 {
	var xs, ys []float64
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		xs = append(xs, decimalYear(dates[i]))
		ys = append(ys, v)
	}
	out := make([]float64, len(dates))
	if len(xs) < 2 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	for i, d := range dates {
		out[i] = alpha + beta*decimalYear(d)
	}
	return out
}

func decimalYear(t time.Time) float64 {
	yearStart := time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	yearLen := time.Date(t.Year()+1, time.January, 1, 0, 0, 0, 0, time.UTC).Sub(yearStart)
	return float64(t.Year()) + float64(t.Sub(yearStart))/float64(yearLen)
}

func daysInMonth(month time.Time) int {
	return domain.MonthStart(month).AddDate(0, 1, -1).Day()
}
