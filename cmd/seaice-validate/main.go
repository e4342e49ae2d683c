// Command seaice-validate runs the quality evaluation over stored daily
// statistics, persists the flags, and lists the flagged dates. Exit code 0
// means the pass ran; flagged days are reported, not treated as failure.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/icewatch/seaice-stats/internal/app"
	"github.com/icewatch/seaice-stats/internal/domain"
	"github.com/icewatch/seaice-stats/internal/nasateam"
)

func main() {
	hemisphereFlag := flag.String("hemisphere", "both", "hemisphere to validate: N, S, or both")
	startFlag := flag.String("start", "", "first date to report (YYYY-MM-DD); default satellite era start")
	endFlag := flag.String("end", "", "last date to report (YYYY-MM-DD); default yesterday")
	flag.Parse()

	a, err := app.New()
	if err != nil {
		os.Stderr.WriteString("seaice-validate: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer a.Close()

	hemis, err := app.Hemispheres(*hemisphereFlag)
	if err != nil {
		a.Logger.Error("bad hemisphere flag", "error", err)
		os.Exit(1)
	}

	start := nasateam.BeginningOfSatelliteEra
	if *startFlag != "" {
		if start, err = time.Parse(domain.DateFormat, *startFlag); err != nil {
			a.Logger.Error("bad -start", "error", err)
			os.Exit(1)
		}
	}
	end := domain.Yesterday()
	if *endFlag != "" {
		if end, err = time.Parse(domain.DateFormat, *endFlag); err != nil {
			a.Logger.Error("bad -end", "error", err)
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = app.EachHemisphere(ctx, hemis, func(ctx context.Context, hemi nasateam.Hemisphere) error {
		flagged, err := a.Engine.Validate(ctx, hemi, domain.Day(start), domain.Day(end))
		if err != nil {
			return err
		}
		if len(flagged) == 0 {
			a.Logger.Info("no flagged dates", "hemisphere", hemi.ShortName)
			return nil
		}
		for _, date := range flagged {
			fmt.Printf("%s %s failed_qa\n", hemi.ShortName, date.Format(domain.DateFormat))
		}
		a.Logger.Warn("flagged dates found", "hemisphere", hemi.ShortName, "count", len(flagged))
		return nil
	})
	if err != nil {
		a.Logger.Error("validate failed", "error", err)
		os.Exit(1)
	}
}
