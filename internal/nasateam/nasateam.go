// Package nasateam holds the constants and lookup tables for working with
// NASA Team sea ice concentration data: hemisphere grid definitions, sensor
// flag values, platform preference ranges, and the special cases accumulated
// over the satellite record.
package nasateam

import (
	"fmt"
	"time"
)

// Grid flag values. Concentration grids carry percent values in [0, 100];
// everything above that range is a flag.
const (
	FlagPole    = 251 // pole hole, not imaged by the sensor
	FlagUnused  = 252 // unused / lake cells
	FlagCoast   = 253
	FlagLand    = 254
	FlagMissing = 255
)

// RawScale converts raw uint8 file values (0-250) to percent concentration.
const RawScale = 2.5

// ExtentThreshold is the default minimum percent concentration for a cell to
// count toward extent.
const ExtentThreshold = 15.0

// MinimumDaysForValidMonth is the default minimum number of days with valid
// daily statistics required to compute a monthly statistic.
const MinimumDaysForValidMonth = 20

// DefaultClimatologyYears bound the standard reference period, inclusive.
var DefaultClimatologyYears = [2]int{1981, 2010}

var (
	BeginningOfSatelliteEra        = time.Date(1978, time.October, 26, 0, 0, 0, 0, time.UTC)
	BeginningOfSatelliteEraMonthly = time.Date(1978, time.November, 1, 0, 0, 0, 0, time.UTC)
)

// Hemisphere identifies one of the two polar stereographic grids.
type Hemisphere struct {
	LongName  string
	ShortName string
	Rows      int
	Cols      int
}

var (
	North = Hemisphere{LongName: "north", ShortName: "N", Rows: 448, Cols: 304}
	South = Hemisphere{LongName: "south", ShortName: "S", Rows: 332, Cols: 316}
)

// Hemispheres lists both hemispheres in processing order.
var Hemispheres = []Hemisphere{North, South}

// ByName resolves "N", "S", "north", or "south" to a Hemisphere.
func ByName(name string) (Hemisphere, error) {
	if name == "" {
		return Hemisphere{}, fmt.Errorf("empty hemisphere name")
	}
	switch name[0] {
	case 'N', 'n':
		return North, nil
	case 'S', 's':
		return South, nil
	}
	return Hemisphere{}, fmt.Errorf("unknown hemisphere %q", name)
}

// CellCount returns the number of cells in one grid layer.
func (h Hemisphere) CellCount() int {
	return h.Rows * h.Cols
}

// BadConcentrationMonth marks a month whose monthly concentration statistics
// are unusable even when enough daily data exists.
type BadConcentrationMonth struct {
	Year       int    `yaml:"year"`
	Month      int    `yaml:"month"`
	Hemisphere string `yaml:"hemisphere"`
}

// DefaultBadConcentrationMonths lists months excluded from monthly area
// statistics. 1987-08 in the north has a pole hole size change two thirds of
// the way through the month, so the monthly concentration average mixes two
// different observed regions. Extent is unaffected since the pole hole is
// filled the same regardless of its size; only area (total and the central
// arctic region, which fully contains the pole hole) is dropped.
var DefaultBadConcentrationMonths = []BadConcentrationMonth{
	{Year: 1987, Month: 8, Hemisphere: "N"},
}
