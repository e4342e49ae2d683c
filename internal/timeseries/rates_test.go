package timeseries

import (
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icewatch/seaice-stats/internal/domain"
	"github.com/icewatch/seaice-stats/internal/nasateam"
)

func freezeClock(t *testing.T, at time.Time) {
	t.Helper()
	domain.SetClock(clockwork.NewFakeClockAt(at))
	t.Cleanup(func() { domain.SetClock(nil) })
}

// denseSeries builds n consecutive days starting at start with extent equal
// to the day index, a steady 1 km²/day growth.
func denseSeries(start time.Time, n int) []domain.StatRecord {
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = float64(i)
	}
	return series(start, vals...)
}

func TestMonthlyRatesOfChange(t *testing.T) {
	freezeClock(t, time.Date(2010, time.May, 10, 0, 0, 0, 0, time.UTC))

	// Jan 1 through Apr 30, 120 days.
	daily := denseSeries(jan1(2010), 120)
	rates := MonthlyRatesOfChange(daily, nasateam.DefaultPlatformRanges, 1)
	require.Len(t, rates, 3)

	assert.Equal(t, time.February, rates[0].Month.Month())
	assert.Equal(t, 28.0, rates[0].ChangeKm2PerMonth)
	assert.Equal(t, 1.0, rates[0].ChangeKm2PerDay)

	assert.Equal(t, 31.0, rates[1].ChangeKm2PerMonth)
	assert.Equal(t, 30.0, rates[2].ChangeKm2PerMonth)
}

func TestMonthlyRatesOfChange_IncompleteMonthIsNaN(t *testing.T) {
	freezeClock(t, time.Date(2010, time.May, 10, 0, 0, 0, 0, time.UTC))

	daily := denseSeries(jan1(2010), 120)
	daily[73].TotalExtentKm2 = math.NaN() // March 15

	rates := MonthlyRatesOfChange(daily, nasateam.DefaultPlatformRanges, 0)
	require.Len(t, rates, 3)
	assert.Equal(t, 28.0, rates[0].ChangeKm2PerMonth)
	assert.True(t, math.IsNaN(rates[1].ChangeKm2PerMonth), "gap inside March")
	assert.True(t, math.IsNaN(rates[2].ChangeKm2PerMonth), "prior month incomplete")
}

func TestMonthlyRatesOfChange_ExcludesCurrentMonth(t *testing.T) {
	freezeClock(t, time.Date(2010, time.February, 15, 0, 0, 0, 0, time.UTC))

	daily := denseSeries(jan1(2010), 45) // runs into mid-February
	rates := MonthlyRatesOfChange(daily, nasateam.DefaultPlatformRanges, 1)
	assert.Empty(t, rates)
}

func TestMonthlyRatesOfChange_EmptyInput(t *testing.T) {
	assert.Nil(t, MonthlyRatesOfChange(nil, nasateam.DefaultPlatformRanges, 1))
}

func TestClimatologyAverageRatesOfChange(t *testing.T) {
	feb := func(year int) time.Time { return time.Date(year, time.February, 1, 0, 0, 0, 0, time.UTC) }
	rates := []MonthlyRate{
		{Month: feb(2001), ChangeKm2PerMonth: 10},
		{Month: feb(2002), ChangeKm2PerMonth: 20},
		{Month: feb(2011), ChangeKm2PerMonth: 100}, // outside the reference period
		{Month: time.Date(2001, time.March, 1, 0, 0, 0, 0, time.UTC), ChangeKm2PerMonth: math.NaN()},
	}

	avg := ClimatologyAverageRatesOfChange(rates, ReferencePeriod{StartYear: 2001, EndYear: 2010})
	assert.Equal(t, 15.0, avg[time.February])
	assert.NotContains(t, avg, time.March)
}

func TestTrendPerDecade(t *testing.T) {
	var dates []time.Time
	var values []float64
	for year := 2000; year < 2010; year++ {
		dates = append(dates, jan1(year))
		values = append(values, float64(year-2000))
	}

	rate := TrendPerDecade(dates, values, math.NaN(), math.NaN())
	assert.InDelta(t, 10.0, rate, 1e-6)

	// Bounds clip the fitted rate, not the inputs.
	assert.InDelta(t, 5.0, TrendPerDecade(dates, values, math.NaN(), 5), 1e-9)
	assert.InDelta(t, 10.0, TrendPerDecade(dates, values, -100, 100), 1e-6)
}

func TestTrendPerDecade_TooFewPoints(t *testing.T) {
	rate := TrendPerDecade([]time.Time{jan1(2000)}, []float64{1}, math.NaN(), math.NaN())
	assert.True(t, math.IsNaN(rate))
}

func TestTrendline(t *testing.T) {
	dates := []time.Time{jan1(2000), jan1(2001), jan1(2002), jan1(2003)}
	values := []float64{0, 1, math.NaN(), 3}

	fit := Trendline(dates, values)
	require.Len(t, fit, 4)
	assert.InDelta(t, 0.0, fit[0], 1e-6)
	assert.InDelta(t, 2.0, fit[2], 1e-6, "fitted value covers the gap")
	assert.InDelta(t, 3.0, fit[3], 1e-6)
}
