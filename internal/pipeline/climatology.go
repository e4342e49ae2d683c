package pipeline

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/icewatch/seaice-stats/internal/datastore"
	"github.com/icewatch/seaice-stats/internal/domain"
	"github.com/icewatch/seaice-stats/internal/nasateam"
	"github.com/icewatch/seaice-stats/internal/timeseries"
)

// ClimatologyReport is the derived climatology of total extent for one
// hemisphere over the configured reference period. Computed per call from the
// stored series, never persisted.
type ClimatologyReport struct {
	Reference timeseries.ReferencePeriod

	// Normals and Quantiles are keyed by day of year; quantile levels are
	// timeseries.DefaultQuantiles.
	Normals   map[int]timeseries.Normals
	Quantiles map[int][]float64

	// MonthlyMeans holds the reference-period mean of the monthly extents;
	// MonthlyRates the climatological average month-over-month change.
	MonthlyMeans map[time.Month]float64
	MonthlyRates map[time.Month]float64

	// ExtentTrendKm2PerDecade is fitted over the full monthly record, not
	// just the reference period. NaN without a monthly store.
	ExtentTrendKm2PerDecade float64
}

// Climatology derives the reference-period statistics from the daily and
// monthly stores. Short gaps are interpolated before stacking so the
// every-other-day SMMR era contributes to every day of year.
func (e *Engine) Climatology(ctx context.Context, hemi nasateam.Hemisphere) (*ClimatologyReport, error) {
	done := e.startRun("climatology")
	defer done()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	daily, err := e.deps.Store.Read(hemi.ShortName, datastore.Daily)
	if errors.Is(err, datastore.ErrStoreNotFound) {
		return nil, ErrNoData
	} else if err != nil {
		return nil, err
	}
	series := e.deps.Interp.Interpolate(daily)

	extent := func(r domain.StatRecord) float64 { return r.TotalExtentKm2 }
	ref := e.deps.Climatology
	report := &ClimatologyReport{
		Reference:               ref,
		Normals:                 timeseries.ClimatologyMeans(series, extent, ref),
		Quantiles:               timeseries.Quantiles(series, extent, ref, timeseries.DefaultQuantiles),
		ExtentTrendKm2PerDecade: math.NaN(),
	}

	rates := timeseries.MonthlyRatesOfChange(series, e.deps.Interp.PlatformRanges, e.deps.Interp.MaxGap)
	report.MonthlyRates = timeseries.ClimatologyAverageRatesOfChange(rates, ref)

	monthly, err := e.deps.Store.Read(hemi.ShortName, datastore.Monthly)
	if err != nil && !errors.Is(err, datastore.ErrStoreNotFound) {
		return nil, err
	}
	if len(monthly) > 0 {
		report.MonthlyMeans = timeseries.MonthlyClimatologyMeans(monthly, extent, ref)

		dates := make([]time.Time, len(monthly))
		extents := make([]float64, len(monthly))
		for i, rec := range monthly {
			dates[i] = rec.Date
			extents[i] = rec.TotalExtentKm2
		}
		report.ExtentTrendKm2PerDecade = timeseries.TrendPerDecade(dates, extents, math.NaN(), math.NaN())
	}

	e.ready.Store(true)
	return report, nil
}
