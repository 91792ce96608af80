package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/aretw0/playbook/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// Store implements ports.ExecutionStore using Redis.
//
// Layout under the prefix:
//
//	active          HASH  id -> snapshot JSON
//	active:index    ZSET  id scored by startedAt (unix millis)
//	history         LIST  history record JSON, oldest first
//	patterns:<id>   HASH  trigger pattern -> hit count
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger

	// Now stamps completion times and drives cleanup. Defaults to time.Now.
	Now func() time.Time
}

type Option func(*Store)

// WithTTL sets an expiration on the history log, refreshed on every append.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithLogger sets the logger used to report undecodable entries.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "playbook:",
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:    time.Now,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *Store) activeKey() string  { return s.prefix + "active" }
func (s *Store) indexKey() string   { return s.prefix + "active:index" }
func (s *Store) historyKey() string { return s.prefix + "history" }
func (s *Store) patternKey(protocolID string) string {
	return s.prefix + "patterns:" + protocolID
}

// Save upserts the snapshot and indexes it by start time.
func (s *Store) Save(ctx context.Context, snap domain.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
		pipe.HSet(ctx, s.activeKey(), snap.ID, data)
		pipe.ZAdd(ctx, s.indexKey(), backend.Z{
			Score:  float64(snap.StartedAt.UnixMilli()),
			Member: snap.ID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Load returns the active snapshots ordered by start time.
func (s *Store) Load(ctx context.Context) ([]domain.Snapshot, error) {
	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list active protocols: %w", err)
	}
	if len(ids) == 0 {
		return []domain.Snapshot{}, nil
	}

	values, err := s.client.HMGet(ctx, s.activeKey(), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get active protocols: %w", err)
	}

	out := make([]domain.Snapshot, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Indexed but missing from the hash.
			continue
		}
		var snap domain.Snapshot
		if err := json.Unmarshal([]byte(raw), &snap); err != nil {
			s.logger.Error("Skipping malformed snapshot", "active_id", ids[i], "err", err)
			continue
		}
		out = append(out, snap)
	}
	return out, nil
}

// Complete moves a snapshot from the active hash to the history list.
func (s *Store) Complete(ctx context.Context, id string, success bool) error {
	raw, err := s.client.HGet(ctx, s.activeKey(), id).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil
		}
		return fmt.Errorf("failed to get from redis: %w", err)
	}

	var snap domain.Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return fmt.Errorf("failed to unmarshal snapshot %s: %w", id, err)
	}
	data, err := json.Marshal(domain.Archive(snap, s.Now(), success))
	if err != nil {
		return fmt.Errorf("failed to marshal history record: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
		pipe.HDel(ctx, s.activeKey(), id)
		pipe.ZRem(ctx, s.indexKey(), id)
		pipe.RPush(ctx, s.historyKey(), data)
		if s.ttl > 0 {
			pipe.Expire(ctx, s.historyKey(), s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to archive %s: %w", id, err)
	}
	return nil
}

// History returns the archived records, oldest first.
func (s *Store) History(ctx context.Context) ([]domain.HistoryRecord, error) {
	values, err := s.client.LRange(ctx, s.historyKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	out := make([]domain.HistoryRecord, 0, len(values))
	for _, raw := range values {
		var rec domain.HistoryRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			s.logger.Error("Skipping malformed history record", "err", err)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Statistics derives aggregates from the active hash and the history list.
func (s *Store) Statistics(ctx context.Context) (domain.Statistics, error) {
	active, err := s.client.HLen(ctx, s.activeKey()).Result()
	if err != nil {
		return domain.Statistics{}, fmt.Errorf("failed to count active protocols: %w", err)
	}
	history, err := s.History(ctx)
	if err != nil {
		return domain.Statistics{}, err
	}
	return domain.ComputeStatistics(int(active), history), nil
}

// Cleanup removes snapshots started strictly before now-maxAge.
func (s *Store) Cleanup(ctx context.Context, maxAge time.Duration) ([]string, error) {
	cutoff := s.Now().Add(-maxAge).UnixMilli()
	ids, err := s.client.ZRangeByScore(ctx, s.indexKey(), &backend.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff, 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to find stale protocols: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	members := make([]any, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	_, err = s.client.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
		pipe.HDel(ctx, s.activeKey(), ids...)
		pipe.ZRem(ctx, s.indexKey(), members...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to remove stale protocols: %w", err)
	}
	return ids, nil
}

// RecordPattern counts how often a trigger pattern selected a protocol.
func (s *Store) RecordPattern(ctx context.Context, pattern, protocolID string) error {
	if err := s.client.HIncrBy(ctx, s.patternKey(protocolID), pattern, 1).Err(); err != nil {
		return fmt.Errorf("failed to record pattern: %w", err)
	}
	return nil
}

// Patterns returns the hit counts recorded for a protocol.
func (s *Store) Patterns(ctx context.Context, protocolID string) (map[string]int64, error) {
	raw, err := s.client.HGetAll(ctx, s.patternKey(protocolID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read patterns: %w", err)
	}
	out := make(map[string]int64, len(raw))
	for k, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		out[k] = n
	}
	return out, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
