// Command seaice-init rebuilds the daily statistic stores for one or both
// hemispheres over the full satellite record. Existing store files are
// archived with a timestamp suffix first. A rebuild reads four decades of
// grids, so the process exposes /healthz, /readyz, and /metrics while it
// runs.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/icewatch/seaice-stats/internal/app"
	"github.com/icewatch/seaice-stats/internal/nasateam"
	"github.com/icewatch/seaice-stats/internal/pipeline"
)

func main() {
	hemisphereFlag := flag.String("hemisphere", "both", "hemisphere to initialize: N, S, or both")
	flag.Parse()

	a, err := app.New()
	if err != nil {
		// Logger is not built yet when config fails.
		os.Stderr.WriteString("seaice-init: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer a.Close()

	hemis, err := app.Hemispheres(*hemisphereFlag)
	if err != nil {
		a.Logger.Error("bad hemisphere flag", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := a.Server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error("http server error", "error", err)
		}
	}()
	defer a.Server.Shutdown(context.Background()) //nolint:errcheck // exiting anyway

	failed := false
	err = app.EachHemisphere(ctx, hemis, func(ctx context.Context, hemi nasateam.Hemisphere) error {
		err := a.Engine.InitializeDaily(ctx, hemi)
		var partial *pipeline.PartialError
		if errors.As(err, &partial) {
			// The store was written; the failed dates stay as explicit
			// no-data rows and can be recomputed with seaice-update.
			a.Logger.Warn("initialize completed with failed dates",
				"hemisphere", hemi.ShortName, "failed", len(partial.Failures))
			return nil
		}
		return err
	})
	if err != nil {
		a.Logger.Error("initialize failed", "error", err)
		failed = true
	}

	if failed {
		os.Exit(1)
	}
}
