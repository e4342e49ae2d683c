// Package grid provides access to daily sea ice concentration grids. The
// filesystem accessor selects the correct source file per the platform
// preference policy; a cache decorator makes repeated reads cheap and safe
// to share across hemisphere workers.
package grid

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/icewatch/seaice-stats/internal/domain"
	"github.com/icewatch/seaice-stats/internal/nasateam"
)

// ErrNotFound signals that no concentration grid exists for a requested
// hemisphere and date. It is never silently converted to zero statistics.
var ErrNotFound = errors.New("no concentration grid found")

// ConcentrationGrid is one day's concentration grid. Cell values are percent
// concentration in [0, 100] or a nasateam flag value above 100. Grids are
// immutable once constructed.
type ConcentrationGrid struct {
	Hemisphere nasateam.Hemisphere
	Date       time.Time
	Platform   string
	Source     domain.Source
	Filenames  []string
	Data       []float64
}

// At returns the value at row r, column c.
func (g *ConcentrationGrid) At(r, c int) float64 {
	return g.Data[r*g.Hemisphere.Cols+c]
}

// Validate checks that the data length matches the hemisphere shape.
func (g *ConcentrationGrid) Validate() error {
	if want := g.Hemisphere.CellCount(); len(g.Data) != want {
		return fmt.Errorf("grid for %s %s: %d cells, want %d",
			g.Hemisphere.ShortName, g.Date.Format(domain.DateFormat), len(g.Data), want)
	}
	return nil
}

// Accessor fetches a concentration grid for a hemisphere and date. A missing
// day returns an error wrapping ErrNotFound.
type Accessor interface {
	GridForDate(ctx context.Context, hemi nasateam.Hemisphere, date time.Time) (*ConcentrationGrid, error)
}
