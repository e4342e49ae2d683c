package grid

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/icewatch/seaice-stats/internal/domain"
	"github.com/icewatch/seaice-stats/internal/nasateam"
)

// candidate is one discovered concentration file for a (hemisphere, date).
type candidate struct {
	path     string
	platform string
	version  string
	final    bool
}

// FileAccessor reads flat binary NASA Team grids from configured search
// paths. Final-quality paths are preferred over near-real-time paths; within
// a date the platform preference ranges pick the sensor.
type FileAccessor struct {
	platformRanges []nasateam.PlatformRange
	logger         *slog.Logger

	mu    sync.RWMutex
	index map[string][]candidate // key: shortName|YYYY-MM-DD
}

// NewFileAccessor scans the final and near-real-time search paths and builds
// a filename index. Paths that do not exist are skipped with a warning so a
// partial deployment (e.g. NRT only) still works.
func NewFileAccessor(finalPaths, nrtPaths []string, ranges []nasateam.PlatformRange, logger *slog.Logger) (*FileAccessor, error) {
	a := &FileAccessor{
		platformRanges: ranges,
		logger:         logger,
		index:          make(map[string][]candidate),
	}
	if err := a.Rescan(finalPaths, nrtPaths); err != nil {
		return nil, err
	}
	return a, nil
}

// Rescan rebuilds the filename index from scratch. Callers refreshing
// near-real-time data invoke this before an update run.
func (a *FileAccessor) Rescan(finalPaths, nrtPaths []string) error {
	index := make(map[string][]candidate)

	scan := func(paths []string, final bool) error {
		for _, root := range paths {
			if _, err := os.Stat(root); err != nil {
				a.logger.Warn("search path unavailable, skipping", "path", root, "error", err)
				continue
			}
			err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if d.IsDir() {
					return nil
				}
				info, ok := nasateam.ParseDataFilename(d.Name())
				if !ok || info.Monthly {
					return nil
				}
				key := indexKey(info.Hemisphere, info.Date)
				index[key] = append(index[key], candidate{
					path:     path,
					platform: info.Platform,
					version:  info.Version,
					final:    final,
				})
				return nil
			})
			if err != nil {
				return fmt.Errorf("scan %s: %w", root, err)
			}
		}
		return nil
	}

	if err := scan(finalPaths, true); err != nil {
		return err
	}
	if err := scan(nrtPaths, false); err != nil {
		return err
	}

	a.mu.Lock()
	a.index = index
	a.mu.Unlock()
	return nil
}

// LastFinalDate returns the most recent date with final-quality data for the
// hemisphere, capped at the configured last valid final day. The second
// return is false when no final data exists at all.
func (a *FileAccessor) LastFinalDate(hemi nasateam.Hemisphere) (time.Time, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var last time.Time
	found := false
	for key, cands := range a.index {
		h, date, err := parseKey(key)
		if err != nil || h != hemi.ShortName {
			continue
		}
		if date.After(nasateam.LastDayWithValidFinalData) {
			continue
		}
		for _, c := range cands {
			if c.final && (!found || date.After(last)) {
				last = date
				found = true
			}
		}
	}
	return last, found
}

// GridForDate loads the preferred grid for the date. Selection order: the
// preferred platform from the configured ranges, final before near-real-time,
// then any remaining candidate.
func (a *FileAccessor) GridForDate(ctx context.Context, hemi nasateam.Hemisphere, date time.Time) (*ConcentrationGrid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.RLock()
	cands := append([]candidate(nil), a.index[indexKey(hemi, date)]...)
	a.mu.RUnlock()

	if len(cands) == 0 {
		return nil, fmt.Errorf("%s %s: %w", hemi.ShortName, date.Format(domain.DateFormat), ErrNotFound)
	}

	preferred, _ := nasateam.PlatformFor(a.platformRanges, date)
	sort.SliceStable(cands, func(i, j int) bool {
		ci, cj := cands[i], cands[j]
		if (ci.platform == preferred) != (cj.platform == preferred) {
			return ci.platform == preferred
		}
		if ci.final != cj.final {
			return ci.final
		}
		return ci.path < cj.path
	})

	chosen := cands[0]
	g, err := readGridFile(chosen, hemi, date)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// readGridFile loads a flat uint8 grid and scales raw concentration values
// to percent. Flag values are preserved unscaled.
func readGridFile(c candidate, hemi nasateam.Hemisphere, date time.Time) (*ConcentrationGrid, error) {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("read grid %s: %w", c.path, err)
	}

	// Daily files may carry a 300-byte header ahead of the grid.
	if extra := len(raw) - hemi.CellCount(); extra > 0 {
		raw = raw[extra:]
	}
	if len(raw) != hemi.CellCount() {
		return nil, fmt.Errorf("grid %s: %d bytes, want %d", c.path, len(raw), hemi.CellCount())
	}

	data := make([]float64, len(raw))
	for i, v := range raw {
		if v > nasateam.FlagPole-1 {
			data[i] = float64(v)
			continue
		}
		data[i] = float64(v) / nasateam.RawScale
	}

	source := domain.SourceFinal
	if !c.final || c.version == "nrt" {
		source = domain.SourceNRT
	}

	return &ConcentrationGrid{
		Hemisphere: hemi,
		Date:       date,
		Platform:   c.platform,
		Source:     source,
		Filenames:  []string{filepath.Base(c.path)},
		Data:       data,
	}, nil
}

func indexKey(hemi nasateam.Hemisphere, date time.Time) string {
	return hemi.ShortName + "|" + date.Format(domain.DateFormat)
}

func parseKey(key string) (string, time.Time, error) {
	if len(key) < 3 {
		return "", time.Time{}, fmt.Errorf("bad index key %q", key)
	}
	date, err := time.Parse(domain.DateFormat, key[2:])
	return key[:1], date, err
}
