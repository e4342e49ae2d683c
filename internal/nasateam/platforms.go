package nasateam

import (
	"fmt"
	"regexp"
	"time"
)

// PlatformRange is one date interval during which a platform's data is
// preferred. Ranges are configuration, not runtime state: they are validated
// once at startup and never mutated.
type PlatformRange struct {
	Platform string    `yaml:"platform"`
	Start    time.Time `yaml:"start"`
	End      time.Time `yaml:"end"`
}

// Contains reports whether the date falls inside the range, inclusive.
func (r PlatformRange) Contains(date time.Time) bool {
	return !date.Before(r.Start) && !date.After(r.End)
}

// SMMRPlatform is the Nimbus-7 SMMR sensor, the first platform of the
// satellite record. SMMR imaged only every other day.
const SMMRPlatform = "n07"

// DefaultPlatformRanges is the preferred-platform timeline following the
// V1.1 data convention. Ranges are ordered and disjoint.
var DefaultPlatformRanges = []PlatformRange{
	{Platform: "n07", Start: day(1978, 10, 25), End: day(1987, 8, 20)},
	{Platform: "f08", Start: day(1987, 8, 21), End: day(1991, 12, 18)},
	{Platform: "f11", Start: day(1991, 12, 19), End: day(1995, 9, 29)},
	{Platform: "f13", Start: day(1995, 9, 30), End: day(2007, 12, 31)},
	{Platform: "f17", Start: day(2008, 1, 1), End: day(2018, 12, 31)},
	{Platform: "f18", Start: day(2019, 1, 1), End: day(2250, 1, 1)},
}

// LastDayWithValidFinalData is the cutoff after which only near-real-time
// data exists.
var LastDayWithValidFinalData = day(2018, 12, 31)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// PlatformFor returns the preferred platform for a date, scanning the ranges
// in order. The second return is false when no range covers the date; callers
// fall back to the near-real-time product.
func PlatformFor(ranges []PlatformRange, date time.Time) (string, bool) {
	for _, r := range ranges {
		if r.Contains(date) {
			return r.Platform, true
		}
	}
	return "", false
}

// ValidatePlatformRanges rejects empty, unordered, or overlapping ranges.
func ValidatePlatformRanges(ranges []PlatformRange) error {
	if len(ranges) == 0 {
		return fmt.Errorf("no platform ranges configured")
	}
	for i, r := range ranges {
		if r.Platform == "" {
			return fmt.Errorf("platform range %d has no platform", i)
		}
		if r.End.Before(r.Start) {
			return fmt.Errorf("platform %s: end %s before start %s",
				r.Platform, r.End.Format("2006-01-02"), r.Start.Format("2006-01-02"))
		}
		if i > 0 && !ranges[i-1].End.Before(r.Start) {
			return fmt.Errorf("platform %s overlaps %s", r.Platform, ranges[i-1].Platform)
		}
	}
	return nil
}

// SMMREnd returns the last day of the SMMR range, or the zero time if the
// SMMR platform is not configured.
func SMMREnd(ranges []PlatformRange) time.Time {
	for _, r := range ranges {
		if r.Platform == SMMRPlatform {
			return r.End
		}
	}
	return time.Time{}
}

// IsSMMRDay reports whether the date is one of the every-other-day SMMR
// observation days. The SMMR cadence starts on the second day of the n07
// range and repeats every two days.
func IsSMMRDay(ranges []PlatformRange, date time.Time) bool {
	for _, r := range ranges {
		if r.Platform != SMMRPlatform {
			continue
		}
		if !r.Contains(date) {
			return false
		}
		offset := int(date.Sub(r.Start).Hours() / 24)
		return offset%2 == 1
	}
	return false
}

// DataFilenameMatcher matches NASA Team concentration file names such as
// nt_19871017_n07_v1.1_n.bin and captures date, platform, version, and
// hemisphere.
var DataFilenameMatcher = regexp.MustCompile(
	`(?P<filename>nt_(?P<date>(?P<year>\d{4})(?P<month>\d{2})(?P<day>\d{2})?)_` +
		`(?P<platform>[nf]\d{2})_(?P<version>nrt|v01|v1\.1)_(?P<hemi>[ns])\.bin)`)

// DataFileInfo is the parsed form of a concentration file name.
type DataFileInfo struct {
	Date       time.Time
	Platform   string
	Version    string
	Hemisphere Hemisphere
	Monthly    bool
}

// ParseDataFilename extracts date, platform, and hemisphere from a
// concentration file name. It returns false when the name does not match the
// NASA Team convention.
func ParseDataFilename(name string) (DataFileInfo, bool) {
	m := DataFilenameMatcher.FindStringSubmatch(name)
	if m == nil {
		return DataFileInfo{}, false
	}
	sub := func(group string) string {
		return m[DataFilenameMatcher.SubexpIndex(group)]
	}

	layout, monthly := "20060102", false
	if sub("day") == "" {
		layout, monthly = "200601", true
	}
	date, err := time.Parse(layout, sub("date"))
	if err != nil {
		return DataFileInfo{}, false
	}
	hemi, err := ByName(sub("hemi"))
	if err != nil {
		return DataFileInfo{}, false
	}

	return DataFileInfo{
		Date:       date,
		Platform:   sub("platform"),
		Version:    sub("version"),
		Hemisphere: hemi,
		Monthly:    monthly,
	}, true
}
