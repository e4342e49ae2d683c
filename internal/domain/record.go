package domain

import (
	"math"
	"time"
)

// Source identifies the upstream product a day's statistics were derived
// from. Interpolated marks days whose values were filled from temporal
// neighbors rather than observed.
type Source string

const (
	SourceFinal        Source = "nsidc-0051"
	SourceNRT          Source = "nsidc-0081"
	SourceInterpolated Source = "interpolated"
	SourceNone         Source = ""
)

// RegionOutcome distinguishes the three ways a regional statistic can come
// about. Overloading NaN and zero for both "no data" and "masked out" caused
// repeated subtle bugs historically, so the distinction is explicit.
type RegionOutcome int

const (
	// Observed: data exists and the region was at least partly observable.
	Observed RegionOutcome = iota
	// ObservedMaskedZero: data exists but the invalid-ice mask covers the
	// whole region, so zero is reported instead of NaN.
	ObservedMaskedZero
	// Unobserved: no data at all for this day; statistics are NaN.
	Unobserved
)

// RegionStats holds the per-region breakdown for one day.
type RegionStats struct {
	ExtentKm2  float64
	AreaKm2    float64
	MissingKm2 float64
	Outcome    RegionOutcome
}

// StatRecord is one row of the time series: the statistics for a single
// (date, hemisphere) pair. Areal values are km² and may be NaN when no data
// exists for the day.
type StatRecord struct {
	Date           time.Time
	Hemisphere     string
	TotalExtentKm2 float64
	TotalAreaKm2   float64
	// Missing is the fraction of observable ocean cells with no data,
	// in [0, 1]. A day with no grid at all has Missing == 1.
	Missing float64
	// NotImagedKm2 is the pole hole area: never observed by the sensor,
	// excluded from extent and area, tracked separately.
	NotImagedKm2 float64
	Regional     map[string]RegionStats
	Source       Source
	Filenames    []string
	FailedQA     bool
}

// HasData reports whether any source grid contributed to this record.
func (r StatRecord) HasData() bool {
	return len(r.Filenames) > 0
}

// EmptyRecord returns a record for a day with no data: NaN statistics,
// no source, and Unobserved outcomes for the given regions.
func EmptyRecord(date time.Time, hemisphere string, regions []string) StatRecord {
	rec := StatRecord{
		Date:           date,
		Hemisphere:     hemisphere,
		TotalExtentKm2: math.NaN(),
		TotalAreaKm2:   math.NaN(),
		Missing:        1,
		NotImagedKm2:   math.NaN(),
		Source:         SourceNone,
	}
	if len(regions) > 0 {
		rec.Regional = make(map[string]RegionStats, len(regions))
		for _, name := range regions {
			rec.Regional[name] = RegionStats{
				ExtentKm2:  math.NaN(),
				AreaKm2:    math.NaN(),
				MissingKm2: math.NaN(),
				Outcome:    Unobserved,
			}
		}
	}
	return rec
}

// Round3 rounds an areal value to 3 decimal places, the precision used in
// the datastore files. NaN passes through.
func Round3(v float64) float64 {
	if math.IsNaN(v) {
		return v
	}
	return math.Round(v*1000) / 1000
}
