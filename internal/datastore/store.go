// Package datastore persists hemisphere statistic series as CSV files, one
// file per hemisphere per temporality. Writes are atomic: a full temp file is
// written next to the target and renamed over it, so readers never see a
// partial store.
package datastore

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/icewatch/seaice-stats/internal/domain"
)

// ErrStoreNotFound reports a read against a store file that does not exist
// yet. Callers treat it as an empty series or as a signal to initialize.
var ErrStoreNotFound = errors.New("datastore: store file not found")

// WriteError wraps a failure to persist a store file.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("datastore: write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Temporality selects the daily or monthly series of a hemisphere.
type Temporality string

const (
	Daily   Temporality = "daily"
	Monthly Temporality = "monthly"
)

func (t Temporality) dateFormat() string {
	if t == Monthly {
		return domain.MonthFormat
	}
	return domain.DateFormat
}

// Manager owns the datastore directory. Writes to the same store file are
// serialized; distinct files may be written concurrently.
type Manager struct {
	dir    string
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewManager(dir string, logger *slog.Logger) *Manager {
	return &Manager{
		dir:    dir,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

// Path returns the store file for a hemisphere and temporality, e.g.
// daily_n.csv.
func (m *Manager) Path(hemisphere string, temporality Temporality) string {
	name := fmt.Sprintf("%s_%s.csv", temporality, strings.ToLower(hemisphere))
	return filepath.Join(m.dir, name)
}

func (m *Manager) lock(path string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[path]
	if !ok {
		l = &sync.Mutex{}
		m.locks[path] = l
	}
	return l
}

// Read loads the full series for a hemisphere, sorted by date. A missing
// store file returns ErrStoreNotFound.
func (m *Manager) Read(hemisphere string, temporality Temporality) ([]domain.StatRecord, error) {
	path := m.Path(hemisphere, temporality)
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrStoreNotFound, path)
	} else if err != nil {
		return nil, fmt.Errorf("datastore: open %s: %w", path, err)
	}
	defer f.Close()

	records, err := decode(f, hemisphere, temporality.dateFormat())
	if err != nil {
		return nil, fmt.Errorf("datastore: %s: %w", path, err)
	}
	sortRecords(records)
	return records, nil
}

// Write replaces the series for a hemisphere with records. The input is
// sorted and deduplicated by date, last record winning.
func (m *Manager) Write(hemisphere string, temporality Temporality, records []domain.StatRecord) error {
	path := m.Path(hemisphere, temporality)
	l := m.lock(path)
	l.Lock()
	defer l.Unlock()
	return m.writeLocked(path, dedupe(records), temporality)
}

// Merge folds updates into the existing series: records sharing a date are
// replaced by the update, new dates are inserted in order. A missing store
// file is treated as an empty series.
func (m *Manager) Merge(hemisphere string, temporality Temporality, updates []domain.StatRecord) error {
	if len(updates) == 0 {
		return nil
	}
	path := m.Path(hemisphere, temporality)
	l := m.lock(path)
	l.Lock()
	defer l.Unlock()

	existing, err := m.Read(hemisphere, temporality)
	if err != nil && !errors.Is(err, ErrStoreNotFound) {
		return err
	}
	merged := dedupe(append(existing, updates...))
	return m.writeLocked(path, merged, temporality)
}

// Archive copies the current store file aside with a timestamp suffix before
// a rebuild replaces it. Archiving a store that does not exist is a no-op and
// returns an empty path.
func (m *Manager) Archive(hemisphere string, temporality Temporality) (string, error) {
	path := m.Path(hemisphere, temporality)
	l := m.lock(path)
	l.Lock()
	defer l.Unlock()

	src, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	} else if err != nil {
		return "", fmt.Errorf("datastore: open %s for archive: %w", path, err)
	}
	defer src.Close()

	backup := fmt.Sprintf("%s.%s.bak", path, domain.Timestamp())
	dst, err := os.Create(backup)
	if err != nil {
		return "", &WriteError{Path: backup, Err: err}
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(backup)
		return "", &WriteError{Path: backup, Err: err}
	}
	if err := dst.Close(); err != nil {
		os.Remove(backup)
		return "", &WriteError{Path: backup, Err: err}
	}

	if m.logger != nil {
		m.logger.Info("archived datastore before rebuild", "store", path, "backup", backup)
	}
	return backup, nil
}

// writeLocked writes records to path through a temp file in the same
// directory, renaming into place on success. The temp file is removed on any
// failure.
func (m *Manager) writeLocked(path string, records []domain.StatRecord, temporality Temporality) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &WriteError{Path: path, Err: err}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	defer os.Remove(tmp.Name())

	if err := encode(tmp, records, temporality.dateFormat()); err != nil {
		tmp.Close()
		return &WriteError{Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return &WriteError{Path: path, Err: err}
	}

	if m.logger != nil {
		m.logger.Debug("wrote datastore", "store", path, "records", len(records))
	}
	return nil
}

func sortRecords(records []domain.StatRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Date.Before(records[j].Date)
	})
}

// dedupe sorts records by date and keeps the last record for each date, so
// appended updates replace what they overlap.
func dedupe(records []domain.StatRecord) []domain.StatRecord {
	byDate := make(map[string]domain.StatRecord, len(records))
	for _, rec := range records {
		byDate[rec.Date.Format(domain.DateFormat)] = rec
	}
	out := make([]domain.StatRecord, 0, len(byDate))
	for _, rec := range byDate {
		out = append(out, rec)
	}
	sortRecords(out)
	return out
}
