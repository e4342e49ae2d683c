// Package qa flags statistically anomalous days in the extent series by
// comparing each day against a linear regression over a trailing window of
// prior valid days. Flagging only annotates; stored values are never
// altered.
package qa

import (
	"log/slog"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/icewatch/seaice-stats/internal/domain"
)

// Evaluator holds the regression policy for QA flagging.
type Evaluator struct {
	// EvalDays is the number of trailing days fitted before each evaluated
	// day.
	EvalDays int
	// DeltaKm2 is the maximum allowed residual between a day's extent and
	// the value the regression predicts for it.
	DeltaKm2 float64
	// MinSample is the minimum number of valid prior days required to fit;
	// windows with fewer observations skip evaluation for that day.
	MinSample int
	Logger    *slog.Logger
}

// Evaluate returns a copy of the series with failed_qa recomputed for every
// day past the warm-up window. Evaluation interpolates on the fly: once a
// day is flagged, its extent is excluded from the regressions of the days
// after it, so one bad day cannot drag its neighbors' fits.
//
// Re-running Evaluate on an already-flagged series recomputes every flag
// from the current values; flags never accumulate.
func (e *Evaluator) Evaluate(series []domain.StatRecord) []domain.StatRecord {
	out := make([]domain.StatRecord, len(series))
	copy(out, series)

	minSample := e.MinSample
	if minSample < 2 {
		minSample = 2
	}

	// Working copy of extents; flagged days become NaN here so later
	// windows ignore them. The records themselves keep their values.
	extents := make([]float64, len(series))
	for i, rec := range series {
		extents[i] = rec.TotalExtentKm2
	}

	for i := e.EvalDays; i < len(out); i++ {
		if !out[i].HasData() && out[i].Source != domain.SourceInterpolated {
			out[i].FailedQA = false
			continue
		}

		delta, ok := e.fitDelta(out, extents, i, minSample)
		switch {
		case math.IsNaN(extents[i]) || (ok && math.Abs(delta) > e.DeltaKm2):
			out[i].FailedQA = true
			extents[i] = math.NaN()
		case ok:
			out[i].FailedQA = false
		default:
			// Too few prior observations: skip evaluation, leave the
			// existing flag alone.
		}
	}
	return out
}

// fitDelta fits a regression over the window of prior days and returns the
// residual of day i against the fitted prediction. ok is false when the
// window has too few valid observations.
func (e *Evaluator) fitDelta(series []domain.StatRecord, extents []float64, i, minSample int) (float64, bool) {
	lo := i - e.EvalDays
	if lo < 0 {
		lo = 0
	}

	var xs, ys []float64
	for j := lo; j < i; j++ {
		if math.IsNaN(extents[j]) {
			continue
		}
		xs = append(xs, float64(domain.DaysSince(series[lo].Date, series[j].Date)))
		ys = append(ys, extents[j])
	}
	if len(xs) < minSample {
		if e.Logger != nil {
			e.Logger.Debug("skipping qa evaluation, too few prior valid days",
				"date", series[i].Date.Format(domain.DateFormat), "valid", len(xs))
		}
		return math.NaN(), false
	}

	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	x := float64(domain.DaysSince(series[lo].Date, series[i].Date))
	expected := alpha + beta*x
	return extents[i] - expected, true
}
