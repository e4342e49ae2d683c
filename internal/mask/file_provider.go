package mask

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/icewatch/seaice-stats/internal/nasateam"
)

// RegionDef configures one regional mask file: a flat uint8 grid where each
// region is a distinct cell value. Only the listed regions are used.
type RegionDef struct {
	Name       string           `yaml:"name"`
	File       string           `yaml:"file"`
	Hemisphere string           `yaml:"hemisphere"`
	Regions    map[string]uint8 `yaml:"regions"`
}

// FileProvider loads masks from flat uint8 files. Loaded masks are cached
// for the life of the provider; masks are static configuration, never
// runtime state.
type FileProvider struct {
	invalidIceDir string
	regionDefs    []RegionDef
	logger        *slog.Logger

	mu       sync.Mutex
	invalid  map[string]*Bitmask
	regional map[string][]Regional
}

// NewFileProvider creates a provider reading invalid-ice masks from
// invalidIceDir (files named invalid_ice_{n|s}_{MM}.msk) and regional masks
// per the given definitions.
func NewFileProvider(invalidIceDir string, defs []RegionDef, logger *slog.Logger) *FileProvider {
	return &FileProvider{
		invalidIceDir: invalidIceDir,
		regionDefs:    defs,
		logger:        logger,
		invalid:       make(map[string]*Bitmask),
		regional:      make(map[string][]Regional),
	}
}

// InvalidIce loads the monthly invalid-ice mask. Cell value 1 marks valid
// ice locations; every other value is invalid. A missing mask file yields an
// all-false mask with a warning, so statistics are computed unmasked rather
// than failing the whole run.
func (p *FileProvider) InvalidIce(hemi nasateam.Hemisphere, month time.Month) (*Bitmask, error) {
	key := fmt.Sprintf("%s|%02d", hemi.ShortName, month)

	p.mu.Lock()
	defer p.mu.Unlock()
	if m, ok := p.invalid[key]; ok {
		return m, nil
	}

	name := fmt.Sprintf("invalid_ice_%s_%02d.msk", strings.ToLower(hemi.ShortName), month)
	path := filepath.Join(p.invalidIceDir, name)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			p.logger.Warn("invalid ice mask missing, masking nothing",
				"hemisphere", hemi.ShortName, "month", int(month), "path", path)
			m := NewBitmask(hemi.Rows, hemi.Cols)
			p.invalid[key] = m
			return m, nil
		}
		return nil, fmt.Errorf("read invalid ice mask %s: %w", path, err)
	}
	if len(raw) != hemi.CellCount() {
		return nil, fmt.Errorf("invalid ice mask %s: %d cells, want %d", path, len(raw), hemi.CellCount())
	}

	m := NewBitmask(hemi.Rows, hemi.Cols)
	for i, v := range raw {
		m.Set(i, v != 1)
	}
	p.invalid[key] = m
	return m, nil
}

// Regions loads the regional masks configured for the hemisphere.
func (p *FileProvider) Regions(hemi nasateam.Hemisphere) ([]Regional, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r, ok := p.regional[hemi.ShortName]; ok {
		return r, nil
	}

	var regions []Regional
	for _, def := range p.regionDefs {
		defHemi, err := nasateam.ByName(def.Hemisphere)
		if err != nil {
			return nil, fmt.Errorf("regional mask %s: %w", def.Name, err)
		}
		if defHemi.ShortName != hemi.ShortName {
			continue
		}

		raw, err := os.ReadFile(def.File)
		if err != nil {
			return nil, fmt.Errorf("read regional mask %s: %w", def.File, err)
		}
		if len(raw) != hemi.CellCount() {
			return nil, fmt.Errorf("regional mask %s: %d cells, want %d", def.File, len(raw), hemi.CellCount())
		}

		for _, region := range sortedRegionNames(def.Regions) {
			value := def.Regions[region]
			include := NewBitmask(hemi.Rows, hemi.Cols)
			for i, v := range raw {
				include.Set(i, v == value)
			}
			regions = append(regions, Regional{
				MaskName: def.Name,
				Region:   region,
				Include:  include,
			})
		}
	}

	p.regional[hemi.ShortName] = regions
	return regions, nil
}

func sortedRegionNames(regions map[string]uint8) []string {
	names := make([]string, 0, len(regions))
	for name := range regions {
		names = append(names, name)
	}
	// Stable column order in the datastore depends on this ordering.
	sort.Strings(names)
	return names
}
