// Command seaice-update recomputes a recent window of daily statistics and
// merges it into the stores, picking up newly delivered near-real-time files
// and final-data replacements. Intended to run daily from cron.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/icewatch/seaice-stats/internal/app"
	"github.com/icewatch/seaice-stats/internal/domain"
	"github.com/icewatch/seaice-stats/internal/nasateam"
	"github.com/icewatch/seaice-stats/internal/pipeline"
)

func main() {
	hemisphereFlag := flag.String("hemisphere", "both", "hemisphere to update: N, S, or both")
	startFlag := flag.String("start", "", "first date to recompute (YYYY-MM-DD); default derives from -days")
	endFlag := flag.String("end", "", "last date to recompute (YYYY-MM-DD); default yesterday")
	daysFlag := flag.Int("days", 5, "window length when -start is not given")
	validateFlag := flag.Bool("validate", true, "re-evaluate quality flags after merging")
	strictFlag := flag.Bool("strict", false, "exit non-zero when any date in the window fails")
	flag.Parse()

	a, err := app.New()
	if err != nil {
		os.Stderr.WriteString("seaice-update: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer a.Close()

	hemis, err := app.Hemispheres(*hemisphereFlag)
	if err != nil {
		a.Logger.Error("bad hemisphere flag", "error", err)
		os.Exit(1)
	}

	start, end, err := dateRange(*startFlag, *endFlag, *daysFlag)
	if err != nil {
		a.Logger.Error("bad date range", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = app.EachHemisphere(ctx, hemis, func(ctx context.Context, hemi nasateam.Hemisphere) error {
		flagged, err := a.Engine.UpdateDaily(ctx, hemi, start, end, *validateFlag)
		var partial *pipeline.PartialError
		if errors.As(err, &partial) {
			a.Logger.Warn("update completed with failed dates",
				"hemisphere", hemi.ShortName, "failed", len(partial.Failures))
		}
		if err := demotePartial(err, *strictFlag); err != nil {
			return err
		}
		if flagged {
			a.Logger.Warn("quality flags raised in updated range", "hemisphere", hemi.ShortName)
		}
		return a.Engine.BuildMonthly(ctx, hemi)
	})
	if err != nil {
		a.Logger.Error("update failed", "error", err)
		os.Exit(1)
	}
}

// demotePartial downgrades a partially-failed window to success unless strict
// mode is on. Missing dates near the end of the window are routine while
// near-real-time files are still in transit; hard failures always propagate.
func demotePartial(err error, strict bool) error {
	var partial *pipeline.PartialError
	if errors.As(err, &partial) && !strict {
		return nil
	}
	return err
}

func dateRange(startStr, endStr string, days int) (time.Time, time.Time, error) {
	end := domain.Yesterday()
	if endStr != "" {
		var err error
		end, err = time.Parse(domain.DateFormat, endStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}

	start := end.AddDate(0, 0, -(days - 1))
	if startStr != "" {
		var err error
		start, err = time.Parse(domain.DateFormat, startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}

	if start.Before(nasateam.BeginningOfSatelliteEra) {
		start = nasateam.BeginningOfSatelliteEra
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, errors.New("end precedes start")
	}
	return domain.Day(start), domain.Day(end), nil
}
