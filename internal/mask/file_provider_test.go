package mask

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icewatch/seaice-stats/internal/nasateam"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInvalidIce(t *testing.T) {
	dir := t.TempDir()

	// Cell value 1 marks valid ice locations; everything else is invalid.
	raw := bytes.Repeat([]byte{1}, nasateam.North.CellCount())
	raw[0] = 0
	raw[1] = 9
	require.NoError(t, os.WriteFile(filepath.Join(dir, "invalid_ice_n_03.msk"), raw, 0o644))

	p := NewFileProvider(dir, nil, discardLogger())
	m, err := p.InvalidIce(nasateam.North, time.March)
	require.NoError(t, err)
	require.NoError(t, CheckShape(m, nasateam.North))

	assert.True(t, m.At(0))
	assert.True(t, m.At(1))
	assert.False(t, m.At(2))
	assert.Equal(t, 2, m.CountTrue())

	// Cached: same mask pointer on the second call.
	m2, err := p.InvalidIce(nasateam.North, time.March)
	require.NoError(t, err)
	assert.Same(t, m, m2)
}

func TestInvalidIceMissingFileMasksNothing(t *testing.T) {
	p := NewFileProvider(t.TempDir(), nil, discardLogger())
	m, err := p.InvalidIce(nasateam.South, time.July)
	require.NoError(t, err)
	assert.Equal(t, 0, m.CountTrue())
}

func TestInvalidIceWrongSizeFails(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "invalid_ice_n_01.msk"), []byte{1, 2}, 0o644))

	p := NewFileProvider(dir, nil, discardLogger())
	_, err := p.InvalidIce(nasateam.North, time.January)
	assert.Error(t, err)
}

func TestRegions(t *testing.T) {
	dir := t.TempDir()

	raw := bytes.Repeat([]byte{0}, nasateam.North.CellCount())
	raw[0] = 2 // bering
	raw[1] = 2
	raw[2] = 5 // okhotsk
	file := filepath.Join(dir, "meier2007_n.msk")
	require.NoError(t, os.WriteFile(file, raw, 0o644))

	defs := []RegionDef{{
		Name:       "meier2007",
		File:       file,
		Hemisphere: "N",
		Regions:    map[string]uint8{"okhotsk": 5, "bering": 2},
	}}
	p := NewFileProvider(dir, defs, discardLogger())

	regions, err := p.Regions(nasateam.North)
	require.NoError(t, err)
	require.Len(t, regions, 2)

	// Region order is alphabetical for stable datastore columns.
	assert.Equal(t, "meier2007_bering", regions[0].Name())
	assert.Equal(t, "meier2007_okhotsk", regions[1].Name())

	assert.Equal(t, 2, regions[0].Include.CountTrue())
	assert.True(t, regions[0].Include.At(0))
	assert.True(t, regions[0].Include.At(1))
	assert.Equal(t, 1, regions[1].Include.CountTrue())
	assert.True(t, regions[1].Include.At(2))

	// Definitions for the other hemisphere are skipped.
	south, err := p.Regions(nasateam.South)
	require.NoError(t, err)
	assert.Empty(t, south)
}

func TestRegionsMissingFileFails(t *testing.T) {
	defs := []RegionDef{{
		Name:       "meier2007",
		File:       filepath.Join(t.TempDir(), "nope.msk"),
		Hemisphere: "N",
		Regions:    map[string]uint8{"bering": 2},
	}}
	p := NewFileProvider(t.TempDir(), defs, discardLogger())
	_, err := p.Regions(nasateam.North)
	assert.Error(t, err)
}

func TestCheckShape(t *testing.T) {
	assert.NoError(t, CheckShape(NewBitmask(448, 304), nasateam.North))
	assert.Error(t, CheckShape(NewBitmask(2, 2), nasateam.North))
}
