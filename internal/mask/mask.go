// Package mask provides the static per-hemisphere masks consumed by the
// statistics calculator: monthly invalid-ice (climatology) masks and named
// regional masks.
package mask

import (
	"fmt"
	"time"

	"github.com/icewatch/seaice-stats/internal/nasateam"
)

// Bitmask is a boolean grid matching one hemisphere's shape.
type Bitmask struct {
	Rows int
	Cols int
	bits []bool
}

// NewBitmask returns an all-false mask of the given shape.
func NewBitmask(rows, cols int) *Bitmask {
	return &Bitmask{Rows: rows, Cols: cols, bits: make([]bool, rows*cols)}
}

// At returns the value at the flat index i.
func (m *Bitmask) At(i int) bool {
	return m.bits[i]
}

// Set assigns the value at the flat index i.
func (m *Bitmask) Set(i int, v bool) {
	m.bits[i] = v
}

// Len returns the number of cells.
func (m *Bitmask) Len() int {
	return len(m.bits)
}

// CountTrue returns the number of set cells.
func (m *Bitmask) CountTrue() int {
	n := 0
	for _, b := range m.bits {
		if b {
			n++
		}
	}
	return n
}

// Regional is one named region of a regional mask set. Include is true for
// cells inside the region.
type Regional struct {
	MaskName string
	Region   string
	Include  *Bitmask
}

// Name returns the datastore column prefix for the region, e.g.
// "meier2007_centralarctic".
func (r Regional) Name() string {
	return r.MaskName + "_" + r.Region
}

// Provider supplies the masks for a hemisphere. Implementations must return
// masks whose shape matches the hemisphere grid.
type Provider interface {
	// InvalidIce returns the invalid-ice (climatology) mask for the month:
	// true where ice cannot exist and statistics are excluded.
	InvalidIce(hemi nasateam.Hemisphere, month time.Month) (*Bitmask, error)

	// Regions returns the named regional masks for the hemisphere, in a
	// stable order.
	Regions(hemi nasateam.Hemisphere) ([]Regional, error)
}

// CheckShape validates a mask against a hemisphere grid.
func CheckShape(m *Bitmask, hemi nasateam.Hemisphere) error {
	if m.Rows != hemi.Rows || m.Cols != hemi.Cols {
		return fmt.Errorf("mask shape %dx%d does not match hemisphere %s (%dx%d)",
			m.Rows, m.Cols, hemi.ShortName, hemi.Rows, hemi.Cols)
	}
	return nil
}
