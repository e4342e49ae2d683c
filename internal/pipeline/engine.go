// Package pipeline orchestrates the engine's operations: read grids, compute
// statistics, evaluate quality, and persist the series. Per-date failures are
// collected rather than aborting the batch; one bad file must not stop a
// forty-year rebuild.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/icewatch/seaice-stats/internal/datastore"
	"github.com/icewatch/seaice-stats/internal/domain"
	"github.com/icewatch/seaice-stats/internal/grid"
	"github.com/icewatch/seaice-stats/internal/mask"
	"github.com/icewatch/seaice-stats/internal/nasateam"
	"github.com/icewatch/seaice-stats/internal/observability"
	"github.com/icewatch/seaice-stats/internal/qa"
	"github.com/icewatch/seaice-stats/internal/stats"
	"github.com/icewatch/seaice-stats/internal/timeseries"
)

// Store is the slice of the datastore manager the engine needs.
type Store interface {
	Read(hemisphere string, temporality datastore.Temporality) ([]domain.StatRecord, error)
	Write(hemisphere string, temporality datastore.Temporality, records []domain.StatRecord) error
	Merge(hemisphere string, temporality datastore.Temporality, records []domain.StatRecord) error
	Archive(hemisphere string, temporality datastore.Temporality) (string, error)
}

// Publisher emits updated records to downstream consumers. Implementations
// must tolerate being called with an empty slice.
type Publisher interface {
	Publish(ctx context.Context, records []domain.StatRecord) error
}

// AreaSource supplies the per-cell area grid for a hemisphere.
type AreaSource func(hemi nasateam.Hemisphere) ([]float64, error)

// Deps are the engine's collaborators. Grids, Masks, Areas, Store, Calc,
// Monthly, Interp, QA, and Logger are required; Publisher and Metrics are
// optional.
type Deps struct {
	Grids     grid.Accessor
	Masks     mask.Provider
	Areas     AreaSource
	Store     Store
	Calc      *stats.Calculator
	Monthly   *stats.MonthlyBuilder
	Interp    *timeseries.Interpolator
	QA        *qa.Evaluator
	Publisher Publisher
	Logger    *slog.Logger
	Metrics   *observability.Metrics

	// Climatology bounds the reference period for derived statistics.
	Climatology timeseries.ReferencePeriod
}

// Engine runs the statistic operations for both hemispheres. Hemispheres are
// independent; one Engine may serve concurrent per-hemisphere calls.
type Engine struct {
	deps  Deps
	ready atomic.Bool

	mu       sync.Mutex
	hemiData map[string]*hemiContext
}

// hemiContext caches the per-hemisphere static inputs.
type hemiContext struct {
	areas   []float64
	regions []mask.Regional
	names   []string
}

// New creates an Engine. Metrics may be nil in tests. A nil interpolator
// disables gap filling.
func New(deps Deps) *Engine {
	if deps.Metrics == nil {
		deps.Metrics = observability.NewMetricsForTesting()
	}
	if deps.Interp == nil {
		deps.Interp = &timeseries.Interpolator{}
	}
	return &Engine{deps: deps, hemiData: make(map[string]*hemiContext)}
}

// CheckReadiness reports nil once the engine has completed at least one
// operation. Wired to the /readyz endpoint during long rebuild runs.
func (e *Engine) CheckReadiness(_ context.Context) error {
	if !e.ready.Load() {
		return errors.New("engine has not completed an operation yet")
	}
	return nil
}

// InitializeDaily rebuilds the full daily record for a hemisphere from the
// beginning of the satellite era through yesterday. Any existing store file
// is archived with a timestamp suffix before the new series replaces it.
func (e *Engine) InitializeDaily(ctx context.Context, hemi nasateam.Hemisphere) error {
	done := e.startRun("initialize_daily")
	defer done()

	days := domain.EachDay(nasateam.BeginningOfSatelliteEra, domain.Yesterday())
	records, failures, err := e.computeRange(ctx, hemi, days)
	if err != nil {
		return err
	}
	records = e.deps.Interp.Interpolate(records)
	records = e.deps.QA.Evaluate(records)

	backup, err := e.deps.Store.Archive(hemi.ShortName, datastore.Daily)
	if err != nil {
		return err
	}
	if backup != "" {
		e.deps.Logger.Info("archived previous daily store", "hemisphere", hemi.ShortName, "backup", backup)
	}
	if err := e.deps.Store.Write(hemi.ShortName, datastore.Daily, records); err != nil {
		return err
	}
	e.deps.Metrics.DatastoreWrites.WithLabelValues(hemi.ShortName, string(datastore.Daily)).Inc()

	e.deps.Logger.Info("daily store initialized",
		"hemisphere", hemi.ShortName, "days", len(records), "failed", len(failures))
	e.ready.Store(true)
	return partialOrNil(hemi.ShortName, "initialize_daily", failures)
}

// UpdateDaily recomputes the date range, merges it into the daily store, and
// when validate is set re-evaluates quality over the merged series and
// persists the flags. It reports whether any day inside the range is flagged
// after the update.
func (e *Engine) UpdateDaily(ctx context.Context, hemi nasateam.Hemisphere, start, end time.Time, validate bool) (bool, error) {
	done := e.startRun("update_daily")
	defer done()

	days := domain.EachDay(start, end)
	if len(days) == 0 {
		return false, ErrNoData
	}

	records, failures, err := e.computeRange(ctx, hemi, days)
	if err != nil {
		return false, err
	}
	if err := e.deps.Store.Merge(hemi.ShortName, datastore.Daily, records); err != nil {
		return false, err
	}
	e.deps.Metrics.DatastoreWrites.WithLabelValues(hemi.ShortName, string(datastore.Daily)).Inc()

	flagged := false
	if validate {
		flagged, err = e.revalidate(hemi, start, end)
		if err != nil {
			return false, err
		}
	}

	if err := e.publish(ctx, hemi, start, end); err != nil {
		// Publishing is a side channel; a broker outage must not fail the
		// update that was already persisted.
		e.deps.Logger.Error("publish updated records failed", "hemisphere", hemi.ShortName, "error", err)
	}

	e.ready.Store(true)
	return flagged, partialOrNil(hemi.ShortName, "update_daily", failures)
}

// BuildMonthly aggregates the daily store into the monthly store.
func (e *Engine) BuildMonthly(ctx context.Context, hemi nasateam.Hemisphere) error {
	done := e.startRun("build_monthly")
	defer done()

	if err := ctx.Err(); err != nil {
		return err
	}
	daily, err := e.deps.Store.Read(hemi.ShortName, datastore.Daily)
	if errors.Is(err, datastore.ErrStoreNotFound) {
		return ErrNoData
	} else if err != nil {
		return err
	}

	monthly := e.deps.Monthly.Build(daily, hemi)
	if len(monthly) == 0 {
		return ErrNoData
	}
	if err := e.deps.Store.Write(hemi.ShortName, datastore.Monthly, monthly); err != nil {
		return err
	}
	e.deps.Metrics.DatastoreWrites.WithLabelValues(hemi.ShortName, string(datastore.Monthly)).Inc()

	e.deps.Logger.Info("monthly store built", "hemisphere", hemi.ShortName, "months", len(monthly))
	e.ready.Store(true)
	return nil
}

// Validate re-evaluates quality flags over the stored daily series and
// persists them. It returns the dates inside [start, end] flagged after the
// pass.
func (e *Engine) Validate(ctx context.Context, hemi nasateam.Hemisphere, start, end time.Time) ([]time.Time, error) {
	done := e.startRun("validate")
	defer done()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := e.deps.Store.Read(hemi.ShortName, datastore.Daily); errors.Is(err, datastore.ErrStoreNotFound) {
		return nil, ErrNoData
	} else if err != nil {
		return nil, err
	}

	if _, err := e.revalidate(hemi, start, end); err != nil {
		return nil, err
	}

	series, err := e.deps.Store.Read(hemi.ShortName, datastore.Daily)
	if err != nil {
		return nil, err
	}
	var flagged []time.Time
	for _, rec := range series {
		if rec.FailedQA && !rec.Date.Before(start) && !rec.Date.After(end) {
			flagged = append(flagged, rec.Date)
		}
	}
	e.ready.Store(true)
	return flagged, nil
}

// revalidate interpolates short gaps in the full stored series, runs the QA
// evaluator over it, and writes the result back. Both passes recompute from
// current values, so repeated runs are idempotent. Returns whether any date
// in [start, end] is flagged.
func (e *Engine) revalidate(hemi nasateam.Hemisphere, start, end time.Time) (bool, error) {
	series, err := e.deps.Store.Read(hemi.ShortName, datastore.Daily)
	if err != nil {
		return false, err
	}
	evaluated := e.deps.QA.Evaluate(e.deps.Interp.Interpolate(series))

	flagged := false
	newFlags := 0
	for i, rec := range evaluated {
		if rec.FailedQA && !series[i].FailedQA {
			newFlags++
		}
		if rec.FailedQA && !rec.Date.Before(start) && !rec.Date.After(end) {
			flagged = true
		}
	}
	if newFlags > 0 {
		e.deps.Metrics.RecordsFlagged.WithLabelValues(hemi.ShortName).Add(float64(newFlags))
	}

	if err := e.deps.Store.Write(hemi.ShortName, datastore.Daily, evaluated); err != nil {
		return false, err
	}
	return flagged, nil
}

// computeRange calculates one record per day. Days without a grid produce an
// empty (NaN) record; days that fail for other reasons also produce an empty
// record and are collected as failures.
func (e *Engine) computeRange(ctx context.Context, hemi nasateam.Hemisphere, days []time.Time) ([]domain.StatRecord, []DateFailure, error) {
	hc, err := e.hemiContext(hemi)
	if err != nil {
		return nil, nil, err
	}

	records := make([]domain.StatRecord, 0, len(days))
	var failures []DateFailure

	for _, day := range days {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		rec, err := e.computeDay(ctx, hemi, hc, day)
		if err != nil {
			e.deps.Metrics.DatesFailed.WithLabelValues(hemi.ShortName, "compute").Inc()
			failures = append(failures, DateFailure{Date: day, Err: err})
			rec = domain.EmptyRecord(day, hemi.ShortName, hc.names)
		}
		records = append(records, rec)
	}
	return records, failures, nil
}

func (e *Engine) computeDay(ctx context.Context, hemi nasateam.Hemisphere, hc *hemiContext, day time.Time) (domain.StatRecord, error) {
	readStart := time.Now()
	g, err := e.deps.Grids.GridForDate(ctx, hemi, day)
	e.deps.Metrics.GridReadDuration.Observe(time.Since(readStart).Seconds())
	if errors.Is(err, grid.ErrNotFound) {
		e.deps.Metrics.GridsMissing.WithLabelValues(hemi.ShortName).Inc()
		return domain.EmptyRecord(day, hemi.ShortName, hc.names), nil
	} else if err != nil {
		return domain.StatRecord{}, err
	}
	if err := g.Validate(); err != nil {
		return domain.StatRecord{}, err
	}
	e.deps.Metrics.GridsRead.WithLabelValues(hemi.ShortName, string(g.Source)).Inc()

	invalidIce, err := e.deps.Masks.InvalidIce(hemi, day.Month())
	if err != nil {
		return domain.StatRecord{}, err
	}
	return e.deps.Calc.Daily(g, hc.areas, invalidIce, hc.regions), nil
}

// publish sends the stored records inside the range to the configured sink.
func (e *Engine) publish(ctx context.Context, hemi nasateam.Hemisphere, start, end time.Time) error {
	if e.deps.Publisher == nil {
		return nil
	}
	series, err := e.deps.Store.Read(hemi.ShortName, datastore.Daily)
	if err != nil {
		return err
	}
	var updated []domain.StatRecord
	for _, rec := range series {
		if !rec.Date.Before(start) && !rec.Date.After(end) {
			updated = append(updated, rec)
		}
	}
	return e.deps.Publisher.Publish(ctx, updated)
}

// hemiContext loads and caches the static inputs for a hemisphere.
func (e *Engine) hemiContext(hemi nasateam.Hemisphere) (*hemiContext, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if hc, ok := e.hemiData[hemi.ShortName]; ok {
		return hc, nil
	}

	areas, err := e.deps.Areas(hemi)
	if err != nil {
		return nil, err
	}
	regions, err := e.deps.Masks.Regions(hemi)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(regions))
	for _, r := range regions {
		names = append(names, r.Name())
	}

	hc := &hemiContext{areas: areas, regions: regions, names: names}
	e.hemiData[hemi.ShortName] = hc
	return hc, nil
}

// startRun tracks the active-run gauge and operation duration.
func (e *Engine) startRun(operation string) func() {
	start := time.Now()
	e.deps.Metrics.RunActive.Set(1)
	return func() {
		e.deps.Metrics.RunActive.Set(0)
		e.deps.Metrics.RunDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}
