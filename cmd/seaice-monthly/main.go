// Command seaice-monthly rebuilds the monthly statistic stores from the
// daily stores.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/icewatch/seaice-stats/internal/app"
	"github.com/icewatch/seaice-stats/internal/nasateam"
)

func main() {
	hemisphereFlag := flag.String("hemisphere", "both", "hemisphere to build: N, S, or both")
	flag.Parse()

	a, err := app.New()
	if err != nil {
		os.Stderr.WriteString("seaice-monthly: " + err.Error() + "\n")
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

	err = app.EachHemisphere(ctx, hemis, func(ctx context.Context, hemi nasateam.Hemisphere) error {
		return a.Engine.BuildMonthly(ctx, hemi)
	})
	if err != nil {
		a.Logger.Error("monthly build failed", "error", err)
		os.Exit(1)
	}
}
