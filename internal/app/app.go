// Package app wires the engine's collaborators from configuration. The
// command entrypoints share this assembly so all of them run the same stack.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	httpadapter "github.com/icewatch/seaice-stats/internal/adapter/http"
	kafkaadapter "github.com/icewatch/seaice-stats/internal/adapter/kafka"
	"github.com/icewatch/seaice-stats/internal/config"
	"github.com/icewatch/seaice-stats/internal/datastore"
	"github.com/icewatch/seaice-stats/internal/grid"
	"github.com/icewatch/seaice-stats/internal/mask"
	"github.com/icewatch/seaice-stats/internal/nasateam"
	"github.com/icewatch/seaice-stats/internal/observability"
	"github.com/icewatch/seaice-stats/internal/pipeline"
	"github.com/icewatch/seaice-stats/internal/qa"
	"github.com/icewatch/seaice-stats/internal/stats"
	"github.com/icewatch/seaice-stats/internal/timeseries"
)

// App is the assembled engine with its infrastructure.
type App struct {
	Cfg       *config.Config
	Logger    *slog.Logger
	Engine    *pipeline.Engine
	Grids     *grid.CachedAccessor
	Files     *grid.FileAccessor
	Server    *httpadapter.Server
	publisher *kafkaadapter.Publisher
}

// New loads configuration and builds the full stack. Configuration errors are
// returned for the caller to report and exit non-zero.
func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	files, err := grid.NewFileAccessor(cfg.FinalDataPaths, cfg.NRTDataPaths, cfg.PlatformRanges, logger)
	if err != nil {
		return nil, fmt.Errorf("scan data paths: %w", err)
	}
	cached := grid.NewCachedAccessor(files, cfg.GridCacheSize)

	masks := mask.NewFileProvider(cfg.MaskDir, cfg.Regions, logger)
	store := datastore.NewManager(cfg.DataDir, logger)
	calc := stats.NewCalculator(cfg.ExtentThreshold, cfg.PlatformRanges, logger)
	monthly := stats.NewMonthlyBuilder(cfg.MinValidDaysForMonth, cfg.BadMonths,
		cfg.PlatformRanges, cfg.WeightBeforeInterpolation, logger)
	evaluator := &qa.Evaluator{
		EvalDays:  cfg.QAEvalDays,
		DeltaKm2:  cfg.QADeltaKm2,
		MinSample: cfg.QAMinSample,
		Logger:    logger,
	}
	interp := &timeseries.Interpolator{
		MaxGap:             cfg.InterpolationMaxGap,
		AllowCrossPlatform: cfg.AllowCrossPlatformInterpolation,
		PlatformRanges:     cfg.PlatformRanges,
	}

	var publisher *kafkaadapter.Publisher
	var enginePublisher pipeline.Publisher
	if cfg.PublishEnabled() {
		publisher = kafkaadapter.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		enginePublisher = publisher
		logger.Info("kafka publishing enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	}

	engine := pipeline.New(pipeline.Deps{
		Grids: cached,
		Masks: masks,
		Areas: func(hemi nasateam.Hemisphere) ([]float64, error) {
			return grid.CellAreas(cfg.CellAreaDir, hemi, logger)
		},
		Store:     store,
		Calc:      calc,
		Monthly:   monthly,
		QA:     evaluator,
		Interp: interp,
		Climatology: timeseries.ReferencePeriod{
			StartYear: cfg.ClimatologyStartYear,
			EndYear:   cfg.ClimatologyEndYear,
		},
		Publisher: enginePublisher,
		Logger:    logger,
		Metrics:   metrics,
	})

	return &App{
		Cfg:       cfg,
		Logger:    logger,
		Engine:    engine,
		Grids:     cached,
		Files:     files,
		Server:    httpadapter.NewServer(cfg.HTTPAddr, engine, logger),
		publisher: publisher,
	}, nil
}

// Close releases held connections.
func (a *App) Close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.Logger.Error("kafka publisher close error", "error", err)
		}
	}
}

// Hemispheres parses the -hemisphere flag value: "N", "S", or "both".
func Hemispheres(value string) ([]nasateam.Hemisphere, error) {
	switch strings.ToUpper(value) {
	case "BOTH":
		return []nasateam.Hemisphere{nasateam.North, nasateam.South}, nil
	default:
		hemi, err := nasateam.ByName(value)
		if err != nil {
			return nil, err
		}
		return []nasateam.Hemisphere{hemi}, nil
	}
}

// EachHemisphere runs f for every hemisphere concurrently. Hemisphere series
// are fully independent; the grid cache is shared read-only.
func EachHemisphere(ctx context.Context, hemis []nasateam.Hemisphere,
	f func(ctx context.Context, hemi nasateam.Hemisphere) error) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, hemi := range hemis {
		g.Go(func() error { return f(ctx, hemi) })
	}
	return g.Wait()
}
