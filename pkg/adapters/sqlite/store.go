package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/playbook/pkg/domain"
	_ "github.com/glebarez/go-sqlite"
)

// Store implements ports.ExecutionStore on a SQLite database.
// Snapshots are kept as JSON documents; the columns beside them exist for ordering and pruning.
type Store struct {
	DB *sql.DB

	// Now stamps completion times and drives cleanup. Defaults to time.Now.
	Now func() time.Time
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS active_protocols (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		protocol_id TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		doc TEXT NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS protocol_history (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL,
		protocol_id TEXT NOT NULL,
		completed_at INTEGER NOT NULL,
		success INTEGER NOT NULL,
		doc TEXT NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS trigger_patterns (
		protocol_id TEXT NOT NULL,
		pattern TEXT NOT NULL,
		hits INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (protocol_id, pattern)
	);`,
}

// New opens (or creates) the database at dbPath and ensures the schema.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// Single writer.
	db.SetMaxOpenConns(1)

	for _, q := range schema {
		if _, err := db.Exec(q); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return &Store{DB: db, Now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}

// Save upserts the snapshot, keeping its original insertion position.
func (s *Store) Save(ctx context.Context, snap domain.Snapshot) error {
	doc, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	query := `INSERT INTO active_protocols (id, protocol_id, started_at, doc) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET protocol_id = excluded.protocol_id, started_at = excluded.started_at, doc = excluded.doc`
	if _, err := s.DB.ExecContext(ctx, query, snap.ID, snap.ProtocolID, snap.StartedAt.UnixMilli(), string(doc)); err != nil {
		return fmt.Errorf("failed to save snapshot %s: %w", snap.ID, err)
	}
	return nil
}

// Load returns the active snapshots in insertion order.
func (s *Store) Load(ctx context.Context) ([]domain.Snapshot, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT doc FROM active_protocols ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query active protocols: %w", err)
	}
	defer rows.Close()

	out := []domain.Snapshot{}
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var snap domain.Snapshot
		if err := json.Unmarshal([]byte(doc), &snap); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// Complete moves a snapshot into the history table within one transaction.
func (s *Store) Complete(ctx context.Context, id string, success bool) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var doc string
	err = tx.QueryRowContext(ctx, `SELECT doc FROM active_protocols WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read snapshot %s: %w", id, err)
	}

	var snap domain.Snapshot
	if err := json.Unmarshal([]byte(doc), &snap); err != nil {
		return fmt.Errorf("failed to decode snapshot %s: %w", id, err)
	}
	record := domain.Archive(snap, s.Now(), success)
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal history record: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO protocol_history (id, protocol_id, completed_at, success, doc) VALUES (?, ?, ?, ?, ?)`,
		record.ID, record.ProtocolID, record.CompletedAt.UnixMilli(), success, string(data)); err != nil {
		return fmt.Errorf("failed to archive %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM active_protocols WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to remove %s: %w", id, err)
	}
	return tx.Commit()
}

// History returns the archived records, oldest first.
func (s *Store) History(ctx context.Context) ([]domain.HistoryRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT doc FROM protocol_history ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	out := []domain.HistoryRecord{}
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var rec domain.HistoryRecord
		if err := json.Unmarshal([]byte(doc), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode history record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Statistics derives aggregates from both tables.
func (s *Store) Statistics(ctx context.Context) (domain.Statistics, error) {
	var active int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM active_protocols`).Scan(&active); err != nil {
		return domain.Statistics{}, fmt.Errorf("failed to count active protocols: %w", err)
	}
	history, err := s.History(ctx)
	if err != nil {
		return domain.Statistics{}, err
	}
	return domain.ComputeStatistics(active, history), nil
}

// Cleanup deletes snapshots started strictly before now-maxAge.
func (s *Store) Cleanup(ctx context.Context, maxAge time.Duration) ([]string, error) {
	cutoff := s.Now().Add(-maxAge).UnixMilli()

	rows, err := s.DB.QueryContext(ctx, `SELECT id FROM active_protocols WHERE started_at < ? ORDER BY seq`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to find stale protocols: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM active_protocols WHERE id IN (`+placeholders+`)`, args...); err != nil {
		return nil, fmt.Errorf("failed to remove stale protocols: %w", err)
	}
	return ids, nil
}

// RecordPattern counts how often a trigger pattern selected a protocol.
func (s *Store) RecordPattern(ctx context.Context, pattern, protocolID string) error {
	query := `INSERT INTO trigger_patterns (protocol_id, pattern, hits) VALUES (?, ?, 1)
		ON CONFLICT(protocol_id, pattern) DO UPDATE SET hits = hits + 1`
	if _, err := s.DB.ExecContext(ctx, query, protocolID, pattern); err != nil {
		return fmt.Errorf("failed to record pattern: %w", err)
	}
	return nil
}

// Patterns returns the hit counts recorded for a protocol.
func (s *Store) Patterns(ctx context.Context, protocolID string) (map[string]int64, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT pattern, hits FROM trigger_patterns WHERE protocol_id = ?`, protocolID)
	if err != nil {
		return nil, fmt.Errorf("failed to read patterns: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var pattern string
		var hits int64
		if err := rows.Scan(&pattern, &hits); err != nil {
			return nil, err
		}
		out[pattern] = hits
	}
	return out, rows.Err()
}
