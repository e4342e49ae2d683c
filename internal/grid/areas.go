package grid

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/icewatch/seaice-stats/internal/nasateam"
)

// areaScale converts raw area file values to km².
const areaScale = 1000

// uniformCellAreaKm2 is the nominal area of a 25 km polar stereographic
// cell, used when no area grid file is available.
const uniformCellAreaKm2 = 625

// CellAreas loads the per-cell area grid for a hemisphere from
// ps{n,s}25area_v3.dat (little-endian uint32, km² scaled by 1000). When the
// file is absent a uniform 625 km² grid is returned with a warning, which
// keeps test and partial deployments working at reduced accuracy.
func CellAreas(dir string, hemi nasateam.Hemisphere, logger *slog.Logger) ([]float64, error) {
	name := "psn25area_v3.dat"
	if hemi.ShortName == nasateam.South.ShortName {
		name = "pss25area_v3.dat"
	}
	path := filepath.Join(dir, name)

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("area grid missing, using uniform cell areas",
				"hemisphere", hemi.ShortName, "path", path)
			areas := make([]float64, hemi.CellCount())
			for i := range areas {
				areas[i] = uniformCellAreaKm2
			}
			return areas, nil
		}
		return nil, fmt.Errorf("read area grid %s: %w", path, err)
	}
	if len(raw) != hemi.CellCount()*4 {
		return nil, fmt.Errorf("area grid %s: %d bytes, want %d", path, len(raw), hemi.CellCount()*4)
	}

	areas := make([]float64, hemi.CellCount())
	for i := range areas {
		areas[i] = float64(binary.LittleEndian.Uint32(raw[i*4:])) / areaScale
	}
	return areas, nil
}
