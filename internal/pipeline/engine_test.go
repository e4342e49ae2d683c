package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

var tiny = nasateam.Hemisphere{LongName: "north", ShortName: "N", Rows: 2, Cols: 3}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func freezeClock(t *testing.T, at time.Time) {
	t.Helper()
	domain.SetClock(clockwork.NewFakeClockAt(at))
	t.Cleanup(func() { domain.SetClock(nil) })
}

// memStore is an in-memory Store keeping the manager's merge semantics.
type memStore struct {
	series   map[string][]domain.StatRecord
	archived int
}

func newMemStore() *memStore {
	return &memStore{series: make(map[string][]domain.StatRecord)}
}

func storeKey(hemisphere string, temporality datastore.Temporality) string {
	return hemisphere + "|" + string(temporality)
}

func (s *memStore) Read(hemisphere string, temporality datastore.Temporality) ([]domain.StatRecord, error) {
	records, ok := s.series[storeKey(hemisphere, temporality)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", datastore.ErrStoreNotFound, storeKey(hemisphere, temporality))
	}
	out := make([]domain.StatRecord, len(records))
	copy(out, records)
	return out, nil
}

func (s *memStore) Write(hemisphere string, temporality datastore.Temporality, records []domain.StatRecord) error {
	out := make([]domain.StatRecord, len(records))
	copy(out, records)
	s.series[storeKey(hemisphere, temporality)] = out
	return nil
}

func (s *memStore) Merge(hemisphere string, temporality datastore.Temporality, updates []domain.StatRecord) error {
	existing, err := s.Read(hemisphere, temporality)
	if err != nil && !errors.Is(err, datastore.ErrStoreNotFound) {
		return err
	}
	byDate := make(map[string]int, len(existing))
	for i, rec := range existing {
		byDate[rec.Date.Format(domain.DateFormat)] = i
	}
	for _, rec := range updates {
		if i, ok := byDate[rec.Date.Format(domain.DateFormat)]; ok {
			existing[i] = rec
			continue
		}
		existing = append(existing, rec)
	}
	return s.Write(hemisphere, temporality, existing)
}

func (s *memStore) Archive(hemisphere string, temporality datastore.Temporality) (string, error) {
	if _, ok := s.series[storeKey(hemisphere, temporality)]; !ok {
		return "", nil
	}
	s.archived++
	return storeKey(hemisphere, temporality) + ".bak", nil
}

// stubGrids serves grids from a map keyed by date; absent dates are not
// found, and dates in fail return a hard error.
type stubGrids struct {
	grids map[string]*grid.ConcentrationGrid
	fail  map[string]error
}

func (s *stubGrids) GridForDate(_ context.Context, hemi nasateam.Hemisphere, date time.Time) (*grid.ConcentrationGrid, error) {
	key := date.Format(domain.DateFormat)
	if err, ok := s.fail[key]; ok {
		return nil, err
	}
	g, ok := s.grids[key]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", hemi.ShortName, key, grid.ErrNotFound)
	}
	return g, nil
}

type stubMasks struct{}

func (stubMasks) InvalidIce(hemi nasateam.Hemisphere, _ time.Month) (*mask.Bitmask, error) {
	return mask.NewBitmask(hemi.Rows, hemi.Cols), nil
}

func (stubMasks) Regions(nasateam.Hemisphere) ([]mask.Regional, error) {
	return nil, nil
}

type stubPublisher struct {
	published []domain.StatRecord
	err       error
}

func (p *stubPublisher) Publish(_ context.Context, records []domain.StatRecord) error {
	p.published = append(p.published, records...)
	return p.err
}

// gridOn returns a grid with uniform 80% concentration: extent 600 km² and
// area 480 km² under the uniform 100 km² cell areas.
func gridOn(date time.Time) *grid.ConcentrationGrid {
	return &grid.ConcentrationGrid{
		Hemisphere: tiny,
		Date:       date,
		Platform:   "f17",
		Source:     domain.SourceFinal,
		Filenames:  []string{"nt_" + date.Format("20060102") + "_f17_v1.1_n.bin"},
		Data:       []float64{80, 80, 80, 80, 80, 80},
	}
}

func uniformAreas(hemi nasateam.Hemisphere) ([]float64, error) {
	areas := make([]float64, hemi.CellCount())
	for i := range areas {
		areas[i] = 100
	}
	return areas, nil
}

func engineDeps(store Store, grids grid.Accessor, pub Publisher, evaluator *qa.Evaluator) Deps {
	logger := discardLogger()
	if evaluator == nil {
		evaluator = &qa.Evaluator{EvalDays: 3, DeltaKm2: 1e9, MinSample: 2, Logger: logger}
	}
	return Deps{
		Grids:     grids,
		Masks:     stubMasks{},
		Areas:     uniformAreas,
		Store:     store,
		Calc:      stats.NewCalculator(15, nasateam.DefaultPlatformRanges, logger),
		Monthly:   stats.NewMonthlyBuilder(1, nil, nasateam.DefaultPlatformRanges, false, logger),
		QA:        evaluator,
		Publisher: pub,
		Logger:    logger,
	}
}

func newEngine(store Store, grids grid.Accessor, pub Publisher, evaluator *qa.Evaluator) *Engine {
	return New(engineDeps(store, grids, pub, evaluator))
}

func TestInitializeDaily(t *testing.T) {
	// Yesterday is 1978-10-31: six days from the era start.
	freezeClock(t, time.Date(1978, time.November, 1, 0, 0, 0, 0, time.UTC))

	grids := &stubGrids{grids: map[string]*grid.ConcentrationGrid{
		"1978-10-26": gridOn(time.Date(1978, time.October, 26, 0, 0, 0, 0, time.UTC)),
		"1978-10-28": gridOn(time.Date(1978, time.October, 28, 0, 0, 0, 0, time.UTC)),
	}}
	store := newMemStore()
	eng := newEngine(store, grids, nil, nil)

	require.NoError(t, eng.InitializeDaily(context.Background(), tiny))

	series, err := store.Read("N", datastore.Daily)
	require.NoError(t, err)
	require.Len(t, series, 6, "one record per day, observed or not")

	assert.Equal(t, 600.0, series[0].TotalExtentKm2)
	assert.True(t, math.IsNaN(series[1].TotalExtentKm2), "day without a grid is an explicit no-data record")
	assert.Equal(t, 1.0, series[1].Missing)
	assert.Equal(t, 600.0, series[2].TotalExtentKm2)
	assert.Equal(t, 0, store.archived, "nothing to archive on first run")
}

func TestInitializeDaily_FillsSingleDayGaps(t *testing.T) {
	freezeClock(t, time.Date(1978, time.November, 1, 0, 0, 0, 0, time.UTC))

	// Observations two days apart, matching the every-other-day SMMR cadence.
	grids := &stubGrids{grids: map[string]*grid.ConcentrationGrid{
		"1978-10-28": gridOn(time.Date(1978, time.October, 28, 0, 0, 0, 0, time.UTC)),
		"1978-10-30": gridOn(time.Date(1978, time.October, 30, 0, 0, 0, 0, time.UTC)),
	}}
	store := newMemStore()
	deps := engineDeps(store, grids, nil, nil)
	deps.Interp = &timeseries.Interpolator{MaxGap: 1, PlatformRanges: nasateam.DefaultPlatformRanges}
	eng := New(deps)

	require.NoError(t, eng.InitializeDaily(context.Background(), tiny))

	series, err := store.Read("N", datastore.Daily)
	require.NoError(t, err)
	require.Len(t, series, 6)

	// 1978-10-29 sits between two observations and is filled, not left NaN.
	gap := series[3]
	assert.Equal(t, "1978-10-29", gap.Date.Format(domain.DateFormat))
	assert.Equal(t, 600.0, gap.TotalExtentKm2)
	assert.Equal(t, domain.SourceInterpolated, gap.Source)

	// Days before the first observation have no left anchor and stay empty.
	assert.True(t, math.IsNaN(series[0].TotalExtentKm2))
	assert.True(t, math.IsNaN(series[1].TotalExtentKm2))
	assert.True(t, math.IsNaN(series[5].TotalExtentKm2))
}

func TestInitializeDaily_ObservesGridReadDuration(t *testing.T) {
	freezeClock(t, time.Date(1978, time.November, 1, 0, 0, 0, 0, time.UTC))

	deps := engineDeps(newMemStore(), &stubGrids{grids: map[string]*grid.ConcentrationGrid{
		"1978-10-26": gridOn(time.Date(1978, time.October, 26, 0, 0, 0, 0, time.UTC)),
	}}, nil, nil)
	metrics := observability.NewMetricsForTesting()
	deps.Metrics = metrics
	eng := New(deps)

	require.NoError(t, eng.InitializeDaily(context.Background(), tiny))

	// Every grid lookup is timed, including the days that turn out missing.
	pb := &dto.Metric{}
	require.NoError(t, metrics.GridReadDuration.Write(pb))
	assert.Equal(t, uint64(6), pb.Histogram.GetSampleCount())
}

func TestInitializeDaily_ArchivesExistingStore(t *testing.T) {
	freezeClock(t, time.Date(1978, time.November, 1, 0, 0, 0, 0, time.UTC))

	store := newMemStore()
	require.NoError(t, store.Write("N", datastore.Daily, []domain.StatRecord{
		domain.EmptyRecord(time.Date(1978, time.October, 26, 0, 0, 0, 0, time.UTC), "N", nil),
	}))

	eng := newEngine(store, &stubGrids{}, nil, nil)
	require.NoError(t, eng.InitializeDaily(context.Background(), tiny))
	assert.Equal(t, 1, store.archived)
}

func TestInitializeDaily_CollectsPerDateFailures(t *testing.T) {
	freezeClock(t, time.Date(1978, time.November, 1, 0, 0, 0, 0, time.UTC))

	grids := &stubGrids{fail: map[string]error{
		"1978-10-27": errors.New("truncated file"),
	}}
	store := newMemStore()
	eng := newEngine(store, grids, nil, nil)

	err := eng.InitializeDaily(context.Background(), tiny)
	var partial *PartialError
	require.ErrorAs(t, err, &partial)
	require.Len(t, partial.Failures, 1)
	assert.Equal(t, "1978-10-27", partial.Failures[0].Date.Format(domain.DateFormat))

	// The failed day still has an explicit row in the store.
	series, readErr := store.Read("N", datastore.Daily)
	require.NoError(t, readErr)
	assert.Len(t, series, 6)
	assert.True(t, math.IsNaN(series[1].TotalExtentKm2))
}

func TestInitializeDaily_CancelledContext(t *testing.T) {
	freezeClock(t, time.Date(1978, time.November, 1, 0, 0, 0, 0, time.UTC))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	eng := newEngine(newMemStore(), &stubGrids{}, nil, nil)
	assert.ErrorIs(t, eng.InitializeDaily(ctx, tiny), context.Canceled)
}

func seedDailySeries(t *testing.T, store *memStore, start time.Time, extents ...float64) {
	t.Helper()
	records := make([]domain.StatRecord, len(extents))
	for i, v := range extents {
		date := start.AddDate(0, 0, i)
		records[i] = domain.StatRecord{
			Date:           date,
			Hemisphere:     "N",
			TotalExtentKm2: v,
			TotalAreaKm2:   v * 0.8,
			Source:         domain.SourceFinal,
			Filenames:      []string{"nt_" + date.Format("20060102") + "_f17_v1.1_n.bin"},
		}
	}
	require.NoError(t, store.Write("N", datastore.Daily, records))
}

func TestUpdateDaily_MergesAndPublishes(t *testing.T) {
	freezeClock(t, time.Date(2010, time.March, 20, 0, 0, 0, 0, time.UTC))
	start := time.Date(2010, time.March, 1, 0, 0, 0, 0, time.UTC)

	store := newMemStore()
	seedDailySeries(t, store, start, 600, 600, 600, 600, 600)

	day6 := start.AddDate(0, 0, 5)
	grids := &stubGrids{grids: map[string]*grid.ConcentrationGrid{
		day6.Format(domain.DateFormat): gridOn(day6),
	}}
	pub := &stubPublisher{}
	eng := newEngine(store, grids, pub, nil)

	flagged, err := eng.UpdateDaily(context.Background(), tiny, day6, day6, true)
	require.NoError(t, err)
	assert.False(t, flagged)

	series, err := store.Read("N", datastore.Daily)
	require.NoError(t, err)
	require.Len(t, series, 6)
	assert.Equal(t, 600.0, series[5].TotalExtentKm2)

	// Only the updated range is published.
	require.Len(t, pub.published, 1)
	assert.Equal(t, day6, pub.published[0].Date)
}

func TestUpdateDaily_FlagsAnomalousDay(t *testing.T) {
	freezeClock(t, time.Date(2010, time.March, 20, 0, 0, 0, 0, time.UTC))
	start := time.Date(2010, time.March, 1, 0, 0, 0, 0, time.UTC)

	store := newMemStore()
	seedDailySeries(t, store, start, 10, 10, 10, 10, 10)

	day6 := start.AddDate(0, 0, 5)
	grids := &stubGrids{grids: map[string]*grid.ConcentrationGrid{
		day6.Format(domain.DateFormat): gridOn(day6), // extent 600 against a flat 10 series
	}}
	evaluator := &qa.Evaluator{EvalDays: 3, DeltaKm2: 50, MinSample: 2}
	eng := newEngine(store, grids, nil, evaluator)

	flagged, err := eng.UpdateDaily(context.Background(), tiny, day6, day6, true)
	require.NoError(t, err)
	assert.True(t, flagged)

	series, err := store.Read("N", datastore.Daily)
	require.NoError(t, err)
	assert.True(t, series[5].FailedQA, "flag is persisted with the series")
}

func TestUpdateDaily_PublishFailureDoesNotFailUpdate(t *testing.T) {
	freezeClock(t, time.Date(2010, time.March, 20, 0, 0, 0, 0, time.UTC))
	day1 := time.Date(2010, time.March, 1, 0, 0, 0, 0, time.UTC)

	store := newMemStore()
	grids := &stubGrids{grids: map[string]*grid.ConcentrationGrid{
		day1.Format(domain.DateFormat): gridOn(day1),
	}}
	pub := &stubPublisher{err: errors.New("broker unreachable")}
	eng := newEngine(store, grids, pub, nil)

	_, err := eng.UpdateDaily(context.Background(), tiny, day1, day1, false)
	assert.NoError(t, err)

	_, err = store.Read("N", datastore.Daily)
	assert.NoError(t, err, "update was persisted despite the publish failure")
}

func TestUpdateDaily_EmptyRange(t *testing.T) {
	eng := newEngine(newMemStore(), &stubGrids{}, nil, nil)
	start := time.Date(2010, time.March, 2, 0, 0, 0, 0, time.UTC)
	_, err := eng.UpdateDaily(context.Background(), tiny, start, start.AddDate(0, 0, -1), false)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestBuildMonthly(t *testing.T) {
	freezeClock(t, time.Date(2010, time.May, 1, 0, 0, 0, 0, time.UTC))

	store := newMemStore()
	seedDailySeries(t, store, time.Date(2010, time.March, 1, 0, 0, 0, 0, time.UTC),
		600, 600, 600, 600, 600)

	eng := newEngine(store, &stubGrids{}, nil, nil)
	require.NoError(t, eng.BuildMonthly(context.Background(), tiny))

	monthly, err := store.Read("N", datastore.Monthly)
	require.NoError(t, err)
	require.Len(t, monthly, 1)
	assert.Equal(t, time.March, monthly[0].Date.Month())
	assert.Equal(t, 600.0, monthly[0].TotalExtentKm2)
}

func TestBuildMonthly_MissingDailyStore(t *testing.T) {
	eng := newEngine(newMemStore(), &stubGrids{}, nil, nil)
	assert.ErrorIs(t, eng.BuildMonthly(context.Background(), tiny), ErrNoData)
}

func TestClimatology(t *testing.T) {
	freezeClock(t, time.Date(2010, time.January, 15, 0, 0, 0, 0, time.UTC))

	store := newMemStore()
	jan2005 := time.Date(2005, time.January, 1, 0, 0, 0, 0, time.UTC)
	jan2006 := time.Date(2006, time.January, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Write("N", datastore.Daily, []domain.StatRecord{
		{Date: jan2005, Hemisphere: "N", TotalExtentKm2: 600, TotalAreaKm2: 480, Source: domain.SourceFinal},
		{Date: jan2006, Hemisphere: "N", TotalExtentKm2: 700, TotalAreaKm2: 560, Source: domain.SourceFinal},
	}))
	require.NoError(t, store.Write("N", datastore.Monthly, []domain.StatRecord{
		{Date: jan2005, Hemisphere: "N", TotalExtentKm2: 600},
		{Date: jan2006, Hemisphere: "N", TotalExtentKm2: 700},
	}))

	deps := engineDeps(store, &stubGrids{}, nil, nil)
	deps.Interp = &timeseries.Interpolator{MaxGap: 1, PlatformRanges: nasateam.DefaultPlatformRanges}
	deps.Climatology = timeseries.ReferencePeriod{StartYear: 2005, EndYear: 2006}
	eng := New(deps)

	report, err := eng.Climatology(context.Background(), tiny)
	require.NoError(t, err)

	normals := report.Normals[1]
	assert.Equal(t, 650.0, normals.Mean, "January 1st normal averages both years")
	assert.Equal(t, 2, normals.Years)
	require.Len(t, report.Quantiles[1], 3)

	assert.Equal(t, 650.0, report.MonthlyMeans[time.January])

	// 100 km2/year across the monthly record.
	assert.InDelta(t, 1000.0, report.ExtentTrendKm2PerDecade, 1e-6)
}

func TestClimatology_NoMonthlyStore(t *testing.T) {
	freezeClock(t, time.Date(2010, time.January, 15, 0, 0, 0, 0, time.UTC))

	store := newMemStore()
	jan2005 := time.Date(2005, time.January, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Write("N", datastore.Daily, []domain.StatRecord{
		{Date: jan2005, Hemisphere: "N", TotalExtentKm2: 600, Source: domain.SourceFinal},
	}))

	deps := engineDeps(store, &stubGrids{}, nil, nil)
	deps.Climatology = timeseries.ReferencePeriod{StartYear: 2005, EndYear: 2006}
	eng := New(deps)

	report, err := eng.Climatology(context.Background(), tiny)
	require.NoError(t, err)
	assert.Empty(t, report.MonthlyMeans)
	assert.True(t, math.IsNaN(report.ExtentTrendKm2PerDecade))
}

func TestClimatology_MissingStore(t *testing.T) {
	eng := newEngine(newMemStore(), &stubGrids{}, nil, nil)
	_, err := eng.Climatology(context.Background(), tiny)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestValidate(t *testing.T) {
	freezeClock(t, time.Date(2010, time.March, 20, 0, 0, 0, 0, time.UTC))
	start := time.Date(2010, time.March, 1, 0, 0, 0, 0, time.UTC)

	store := newMemStore()
	seedDailySeries(t, store, start, 10, 10, 10, 10, 600)

	evaluator := &qa.Evaluator{EvalDays: 3, DeltaKm2: 50, MinSample: 2}
	eng := newEngine(store, &stubGrids{}, nil, evaluator)

	flagged, err := eng.Validate(context.Background(), tiny, start, start.AddDate(0, 0, 10))
	require.NoError(t, err)
	require.Len(t, flagged, 1)
	assert.Equal(t, start.AddDate(0, 0, 4), flagged[0])
}

func TestValidate_MissingStore(t *testing.T) {
	eng := newEngine(newMemStore(), &stubGrids{}, nil, nil)
	_, err := eng.Validate(context.Background(), tiny, time.Now(), time.Now())
	assert.ErrorIs(t, err, ErrNoData)
}

func TestCheckReadiness(t *testing.T) {
	freezeClock(t, time.Date(1978, time.November, 1, 0, 0, 0, 0, time.UTC))

	eng := newEngine(newMemStore(), &stubGrids{}, nil, nil)
	assert.Error(t, eng.CheckReadiness(context.Background()))

	require.NoError(t, eng.InitializeDaily(context.Background(), tiny))
	assert.NoError(t, eng.CheckReadiness(context.Background()))
}
