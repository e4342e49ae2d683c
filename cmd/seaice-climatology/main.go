// Command seaice-climatology derives reference-period climatology from the
// stored series and prints it as CSV: per-day-of-year normals and quantiles,
// then monthly means, average rates of change, and the extent trend.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/icewatch/seaice-stats/internal/app"
	"github.com/icewatch/seaice-stats/internal/nasateam"
	"github.com/icewatch/seaice-stats/internal/pipeline"
)

func main() {
	hemisphereFlag := flag.String("hemisphere", "both", "hemisphere to report: N, S, or both")
	flag.Parse()

	a, err := app.New()
	if err != nil {
		os.Stderr.WriteString("seaice-climatology: " + err.Error() + "\n")
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

	// Hemispheres run in sequence so their report sections do not interleave
	// on stdout.
	for _, hemi := range hemis {
		report, err := a.Engine.Climatology(ctx, hemi)
		if errors.Is(err, pipeline.ErrNoData) {
			a.Logger.Error("no stored statistics; run seaice-init first", "hemisphere", hemi.ShortName)
			os.Exit(1)
		} else if err != nil {
			a.Logger.Error("climatology failed", "hemisphere", hemi.ShortName, "error", err)
			os.Exit(1)
		}
		printReport(hemi, report)
	}
}

func printReport(hemi nasateam.Hemisphere, report *pipeline.ClimatologyReport) {
	fmt.Printf("# %s climatology %d-%d\n", hemi.LongName, report.Reference.StartYear, report.Reference.EndYear)

	fmt.Println("hemisphere,day_of_year,mean_extent_km2,stddev_km2,years,p25_km2,p50_km2,p75_km2")
	days := make([]int, 0, len(report.Normals))
	for doy := range report.Normals {
		days = append(days, doy)
	}
	sort.Ints(days)
	for _, doy := range days {
		n := report.Normals[doy]
		q := report.Quantiles[doy]
		fmt.Printf("%s,%d,%s,%s,%d,%s,%s,%s\n", hemi.ShortName, doy,
			num(n.Mean), num(n.Std), n.Years, quantile(q, 0), quantile(q, 1), quantile(q, 2))
	}

	fmt.Println("hemisphere,month,mean_extent_km2,avg_change_km2_per_day")
	for m := time.January; m <= time.December; m++ {
		mean, ok := report.MonthlyMeans[m]
		rate, rok := report.MonthlyRates[m]
		if !ok && !rok {
			continue
		}
		if !ok {
			mean = math.NaN()
		}
		if !rok {
			rate = math.NaN()
		}
		fmt.Printf("%s,%02d,%s,%s\n", hemi.ShortName, int(m), num(mean), num(rate))
	}

	fmt.Printf("# extent trend: %s km2/decade\n", num(report.ExtentTrendKm2PerDecade))
}

func quantile(q []float64, i int) string {
	if i >= len(q) {
		return ""
	}
	return num(q[i])
}

// num follows the datastore convention of serializing NaN as empty.
func num(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', 3, 64)
}
