package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aretw0/playbook/pkg/domain"
	"github.com/aretw0/playbook/pkg/ports"
)

// EnvelopeKey is the single context key of an encrypted snapshot.
const EnvelopeKey = "__encrypted__"

// ErrMissingEnvelope is returned when a stored snapshot was not written encrypted.
var ErrMissingEnvelope = errors.New("snapshot is missing encrypted data envelope")

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys are tried when the active key cannot decrypt,
	// so keys can be rotated without losing stored executions.
	FallbackKeys [][]byte
}

type encryptionMiddleware struct {
	next   ports.ExecutionStore
	config EncryptionConfig
}

// sealed is the encrypted payload: everything a caller may have supplied.
type sealed struct {
	Context     domain.Context `json:"context"`
	StepResults map[string]any `json:"stepResults,omitempty"`
}

// NewEncryptionMiddleware encrypts execution contexts and step results with AES-GCM.
// IDs, timestamps and completed step IDs stay readable so the store can order and prune.
func NewEncryptionMiddleware(config EncryptionConfig) (Middleware, error) {
	if len(config.ActiveKey) != 32 {
		return nil, errors.New("active key must be 32 bytes (AES-256)")
	}
	for i, k := range config.FallbackKeys {
		if len(k) != 32 {
			return nil, fmt.Errorf("fallback key %d must be 32 bytes (AES-256)", i+1)
		}
	}
	return func(next ports.ExecutionStore) ports.ExecutionStore {
		return &encryptionMiddleware{next: next, config: config}
	}, nil
}

func (m *encryptionMiddleware) Save(ctx context.Context, snap domain.Snapshot) error {
	plainText, err := json.Marshal(sealed{Context: snap.Context, StepResults: snap.StepResults})
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot payload: %w", err)
	}
	ciphertext, err := encrypt(plainText, m.config.ActiveKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt snapshot: %w", err)
	}

	envelope := snap.Clone()
	envelope.Context = domain.Context{
		EnvelopeKey: domain.StringValue(base64.StdEncoding.EncodeToString(ciphertext)),
	}
	envelope.StepResults = nil
	return m.next.Save(ctx, envelope)
}

func (m *encryptionMiddleware) Load(ctx context.Context) ([]domain.Snapshot, error) {
	snaps, err := m.next.Load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range snaps {
		if err := m.open(&snaps[i]); err != nil {
			return nil, fmt.Errorf("active protocol %s: %w", snaps[i].ID, err)
		}
	}
	return snaps, nil
}

func (m *encryptionMiddleware) Complete(ctx context.Context, id string, success bool) error {
	return m.next.Complete(ctx, id, success)
}

func (m *encryptionMiddleware) History(ctx context.Context) ([]domain.HistoryRecord, error) {
	records, err := m.next.History(ctx)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if err := m.open(&records[i].Snapshot); err != nil {
			return nil, fmt.Errorf("history record %s: %w", records[i].ID, err)
		}
	}
	return records, nil
}

func (m *encryptionMiddleware) Statistics(ctx context.Context) (domain.Statistics, error) {
	stats, err := m.next.Statistics(ctx)
	if err != nil {
		return stats, err
	}
	for i := range stats.RecentProtocols {
		if err := m.open(&stats.RecentProtocols[i].Snapshot); err != nil {
			return domain.Statistics{}, fmt.Errorf("history record %s: %w", stats.RecentProtocols[i].ID, err)
		}
	}
	return stats, nil
}

func (m *encryptionMiddleware) Cleanup(ctx context.Context, maxAge time.Duration) ([]string, error) {
	return m.next.Cleanup(ctx, maxAge)
}

func (m *encryptionMiddleware) RecordPattern(ctx context.Context, pattern, protocolID string) error {
	return m.next.RecordPattern(ctx, pattern, protocolID)
}

// open decrypts snap in place. Plain snapshots are rejected.
func (m *encryptionMiddleware) open(snap *domain.Snapshot) error {
	encoded, ok := snap.Context.Text(EnvelopeKey)
	if !ok {
		return ErrMissingEnvelope
	}
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}
	plainText, err := decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return fmt.Errorf("failed to decrypt snapshot: %w", err)
	}
	var payload sealed
	if err := json.Unmarshal(plainText, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal decrypted snapshot: %w", err)
	}
	snap.Context = payload.Context
	if snap.Context == nil {
		snap.Context = domain.Context{}
	}
	snap.StepResults = payload.StepResults
	return nil
}

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}
	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce := ciphertext[:gcm.NonceSize()]
	return gcm.Open(nil, nonce, ciphertext[gcm.NonceSize():], nil)
}
