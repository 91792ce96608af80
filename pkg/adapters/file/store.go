package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	goruntime "runtime"
	"sync"
	"time"

	"github.com/aretw0/playbook/pkg/domain"
)

const (
	// ActiveFile holds the array of active execution snapshots.
	ActiveFile = "active-protocols.json"
	// HistoryFile holds the array of archived history records.
	HistoryFile = "protocol-history.json"
)

// Store implements ports.ExecutionStore over two JSON documents in a directory.
// Every mutation is a full load-modify-rewrite of one document, written atomically.
// Malformed documents are logged and read as empty.
type Store struct {
	BasePath string
	Logger   *slog.Logger
	// Now stamps completion times and drives cleanup. Defaults to time.Now.
	Now func() time.Time

	mu   sync.Mutex
	once sync.Once
	err  error
}

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to ".playbook/data".
func New(basePath string, logger *slog.Logger) *Store {
	if basePath == "" {
		basePath = filepath.Join(".playbook", "data")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{BasePath: basePath, Logger: logger, Now: time.Now}
}

// Init creates the data directory and both documents as empty arrays if absent.
// It is idempotent and runs implicitly before the first operation.
func (s *Store) Init() error {
	s.once.Do(func() {
		s.err = s.init()
	})
	return s.err
}

func (s *Store) init() error {
	if err := os.MkdirAll(s.BasePath, 0755); err != nil {
		return fmt.Errorf("failed to ensure data directory: %w", err)
	}
	for _, name := range []string{ActiveFile, HistoryFile} {
		path := filepath.Join(s.BasePath, name)
		if _, err := os.Stat(path); err == nil {
			continue
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat %s: %w", name, err)
		}
		if err := s.writeAtomic(name, []byte("[]")); err != nil {
			return err
		}
	}
	return nil
}

// Save upserts the snapshot into the active document.
func (s *Store) Save(ctx context.Context, snap domain.Snapshot) error {
	if snap.ID == "" {
		return fmt.Errorf("snapshot id cannot be empty")
	}
	if err := s.Init(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	active := s.readActive()
	replaced := false
	for i := range active {
		if active[i].ID == snap.ID {
			active[i] = snap
			replaced = true
			break
		}
	}
	if !replaced {
		active = append(active, snap)
	}
	return s.writeJSON(ActiveFile, active)
}

// Load returns the active snapshots.
func (s *Store) Load(ctx context.Context) ([]domain.Snapshot, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readActive(), nil
}

// Complete moves one snapshot from the active document to the history document.
func (s *Store) Complete(ctx context.Context, id string, success bool) error {
	if err := s.Init(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	active := s.readActive()
	idx := -1
	for i := range active {
		if active[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}

	// History is written first. A record left behind by an interrupted Complete
	// is not appended twice.
	history := s.readHistory()
	archived := false
	for _, h := range history {
		if h.ID == id {
			archived = true
			break
		}
	}
	if !archived {
		history = append(history, domain.Archive(active[idx], s.Now(), success))
		if err := s.writeJSON(HistoryFile, history); err != nil {
			return err
		}
	}
	active = append(active[:idx], active[idx+1:]...)
	return s.writeJSON(ActiveFile, active)
}

// History returns the archived records.
func (s *Store) History(ctx context.Context) ([]domain.HistoryRecord, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readHistory(), nil
}

// Statistics reads both documents and derives the aggregates. Nothing is cached.
func (s *Store) Statistics(ctx context.Context) (domain.Statistics, error) {
	if err := s.Init(); err != nil {
		return domain.Statistics{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.ComputeStatistics(len(s.readActive()), s.readHistory()), nil
}

// Cleanup prunes snapshots started before now-maxAge. The document is rewritten
// only when something was removed.
func (s *Store) Cleanup(ctx context.Context, maxAge time.Duration) ([]string, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.Now().Add(-maxAge)
	active := s.readActive()
	kept := make([]domain.Snapshot, 0, len(active))
	var removed []string
	for _, snap := range active {
		if snap.StartedBefore(cutoff) {
			removed = append(removed, snap.ID)
			continue
		}
		kept = append(kept, snap)
	}
	if len(removed) == 0 {
		return nil, nil
	}
	if err := s.writeJSON(ActiveFile, kept); err != nil {
		return nil, err
	}
	s.Logger.Info("Cleaned up stale protocols", "count", len(removed))
	return removed, nil
}

// RecordPattern is a no-op; the documents carry no pattern analytics.
func (s *Store) RecordPattern(ctx context.Context, pattern, protocolID string) error {
	return nil
}

func (s *Store) readActive() []domain.Snapshot {
	var active []domain.Snapshot
	if !s.readJSON(ActiveFile, &active) || active == nil {
		active = []domain.Snapshot{}
	}
	return active
}

func (s *Store) readHistory() []domain.HistoryRecord {
	var history []domain.HistoryRecord
	if !s.readJSON(HistoryFile, &history) || history == nil {
		history = []domain.HistoryRecord{}
	}
	return history
}

// readJSON decodes a document into target and reports whether it succeeded.
func (s *Store) readJSON(name string, target any) bool {
	path := filepath.Join(s.BasePath, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.Logger.Error("Failed to read document, treating as empty", "file", path, "err", err)
		}
		return false
	}
	if err := json.Unmarshal(data, target); err != nil {
		s.Logger.Error("Malformed document, treating as empty", "file", path, "err", err)
		return false
	}
	return true
}

func (s *Store) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}
	return s.writeAtomic(name, data)
}

// writeAtomic writes to a temporary file first, syncs via fsync, and then renames it to the destination.
func (s *Store) writeAtomic(name string, data []byte) error {
	destPath := filepath.Join(s.BasePath, name)

	// Same directory, so the rename stays on one filesystem.
	tmpFile, err := os.CreateTemp(s.BasePath, "tmp-"+name+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Cannot rename an open file on Windows.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// On Windows, os.Rename fails if dest exists.
	if goruntime.GOOS == "windows" {
		if _, err := os.Stat(destPath); err == nil {
			if err := os.Remove(destPath); err != nil {
				return fmt.Errorf("failed to remove existing %s for overwrite: %w", name, err)
			}
		}
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file to %s: %w", name, err)
	}
	return nil
}
