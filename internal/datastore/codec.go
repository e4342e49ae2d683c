package datastore

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jszwec/csvutil"

	"github.com/icewatch/seaice-stats/internal/domain"
)

// areal is a km² or fraction column value. NaN serializes as the empty
// string, matching the long-standing datastore file convention.
type areal float64

func (a areal) MarshalCSV() ([]byte, error) {
	return []byte(formatAreal(float64(a))), nil
}

func (a *areal) UnmarshalCSV(data []byte) error {
	if len(data) == 0 {
		*a = areal(math.NaN())
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*a = areal(v)
	return nil
}

func formatAreal(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// row is the fixed part of a datastore line; regional statistics become
// additional columns appended after these.
type row struct {
	Date          string `csv:"date"`
	ExtentKm2     areal  `csv:"total_extent_km2"`
	AreaKm2       areal  `csv:"total_area_km2"`
	Missing       areal  `csv:"missing"`
	NotImagedKm2  areal  `csv:"not_imaged_km2"`
	SourceDataset string `csv:"source_dataset"`
	Filenames     string `csv:"filenames"`
	FailedQA      bool   `csv:"failed_qa"`
}

const (
	suffixExtent  = "_extent_km2"
	suffixArea    = "_area_km2"
	suffixMissing = "_missing_km2"
)

// coreHeader is derived once from the row struct so encode and decode agree.
var coreHeader = func() []string {
	h, err := csvutil.Header(row{}, "csv")
	if err != nil {
		panic(err)
	}
	return h
}()

// regionColumns returns the sorted regional column names present across the
// records: three columns per region.
func regionColumns(records []domain.StatRecord) []string {
	seen := make(map[string]struct{})
	var regions []string
	for _, rec := range records {
		for name := range rec.Regional {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			regions = append(regions, name)
		}
	}
	sort.Strings(regions)

	cols := make([]string, 0, len(regions)*3)
	for _, region := range regions {
		cols = append(cols, region+suffixExtent, region+suffixArea, region+suffixMissing)
	}
	return cols
}

// encode writes records as CSV. Records must be sorted; the writer emits the
// exact same bytes for the same records, which is what makes update runs
// idempotent at the file level.
func encode(w io.Writer, records []domain.StatRecord, dateFormat string) error {
	regionCols := regionColumns(records)
	cw := csv.NewWriter(w)

	if err := cw.Write(append(append([]string{}, coreHeader...), regionCols...)); err != nil {
		return err
	}

	for _, rec := range records {
		line := []string{
			rec.Date.Format(dateFormat),
			formatAreal(rec.TotalExtentKm2),
			formatAreal(rec.TotalAreaKm2),
			formatAreal(rec.Missing),
			formatAreal(rec.NotImagedKm2),
			string(rec.Source),
			strings.Join(rec.Filenames, ";"),
			strconv.FormatBool(rec.FailedQA),
		}
		for _, col := range regionCols {
			line = append(line, regionValue(rec, col))
		}
		if err := cw.Write(line); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func regionValue(rec domain.StatRecord, col string) string {
	for _, suffix := range []string{suffixExtent, suffixArea, suffixMissing} {
		if !strings.HasSuffix(col, suffix) {
			continue
		}
		rs, ok := rec.Regional[strings.TrimSuffix(col, suffix)]
		if !ok {
			return ""
		}
		switch suffix {
		case suffixExtent:
			return formatAreal(rs.ExtentKm2)
		case suffixArea:
			return formatAreal(rs.AreaKm2)
		default:
			return formatAreal(rs.MissingKm2)
		}
	}
	return ""
}

// decode reads a datastore file. The fixed columns bind to the row struct
// through csvutil; regional columns are recovered from the decoder's unused
// column set.
func decode(r io.Reader, hemisphere, dateFormat string) ([]domain.StatRecord, error) {
	dec, err := csvutil.NewDecoder(csv.NewReader(r))
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("read datastore header: %w", err)
	}
	header := dec.Header()

	var records []domain.StatRecord
	for {
		var line row
		if err := dec.Decode(&line); err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("decode datastore row %d: %w", len(records)+2, err)
		}

		date, err := time.Parse(dateFormat, line.Date)
		if err != nil {
			return nil, fmt.Errorf("datastore row %d: bad date %q: %w", len(records)+2, line.Date, err)
		}

		rec := domain.StatRecord{
			Date:           date,
			Hemisphere:     hemisphere,
			TotalExtentKm2: float64(line.ExtentKm2),
			TotalAreaKm2:   float64(line.AreaKm2),
			Missing:        float64(line.Missing),
			NotImagedKm2:   float64(line.NotImagedKm2),
			Source:         domain.Source(line.SourceDataset),
			FailedQA:       line.FailedQA,
		}
		if line.Filenames != "" {
			rec.Filenames = strings.Split(line.Filenames, ";")
		}

		record := dec.Record()
		for _, i := range dec.Unused() {
			if err := setRegionValue(&rec, header[i], record[i]); err != nil {
				return nil, fmt.Errorf("datastore row %d, column %s: %w", len(records)+2, header[i], err)
			}
		}
		inferRegionOutcomes(&rec)
		records = append(records, rec)
	}
	return records, nil
}

func setRegionValue(rec *domain.StatRecord, col, value string) error {
	for _, suffix := range []string{suffixExtent, suffixArea, suffixMissing} {
		if !strings.HasSuffix(col, suffix) {
			continue
		}
		var a areal
		if err := a.UnmarshalCSV([]byte(value)); err != nil {
			return err
		}
		v := float64(a)

		name := strings.TrimSuffix(col, suffix)
		if rec.Regional == nil {
			rec.Regional = make(map[string]domain.RegionStats)
		}
		rs := rec.Regional[name]
		switch suffix {
		case suffixExtent:
			rs.ExtentKm2 = v
		case suffixArea:
			rs.AreaKm2 = v
		default:
			rs.MissingKm2 = v
		}
		rec.Regional[name] = rs
		return nil
	}
	// Unknown extra columns are tolerated so older files stay readable.
	return nil
}

// inferRegionOutcomes restores the three-valued outcome from serialized
// values: NaN means unobserved, all-zero with data means masked zero.
func inferRegionOutcomes(rec *domain.StatRecord) {
	for name, rs := range rec.Regional {
		switch {
		case math.IsNaN(rs.ExtentKm2) && math.IsNaN(rs.AreaKm2):
			rs.Outcome = domain.Unobserved
		case rs.ExtentKm2 == 0 && rs.AreaKm2 == 0 && rs.MissingKm2 == 0 && rec.HasData():
			rs.Outcome = domain.ObservedMaskedZero
		default:
			rs.Outcome = domain.Observed
		}
		rec.Regional[name] = rs
	}
}
