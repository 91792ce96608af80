package middleware

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/aretw0/playbook/pkg/domain"
	"github.com/aretw0/playbook/pkg/ports"
)

// Mask replaces the value of every redacted key.
const Mask = "***"

type piiMiddleware struct {
	next     ports.ExecutionStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware masks context values whose key matches any pattern before they
// reach the store. The engine keeps the real values in memory; after a restart
// the restored execution sees the mask.
func NewPIIMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next ports.ExecutionStore) ports.ExecutionStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *piiMiddleware) Save(ctx context.Context, snap domain.Snapshot) error {
	// Clone so the engine's in-memory execution is untouched.
	masked := snap.Clone()
	masked.Context = maskContext(masked.Context, m.patterns)
	return m.next.Save(ctx, masked)
}

func (m *piiMiddleware) Load(ctx context.Context) ([]domain.Snapshot, error) {
	return m.next.Load(ctx)
}

func (m *piiMiddleware) Complete(ctx context.Context, id string, success bool) error {
	return m.next.Complete(ctx, id, success)
}

func (m *piiMiddleware) History(ctx context.Context) ([]domain.HistoryRecord, error) {
	return m.next.History(ctx)
}

func (m *piiMiddleware) Statistics(ctx context.Context) (domain.Statistics, error) {
	return m.next.Statistics(ctx)
}

func (m *piiMiddleware) Cleanup(ctx context.Context, maxAge time.Duration) ([]string, error) {
	return m.next.Cleanup(ctx, maxAge)
}

func (m *piiMiddleware) RecordPattern(ctx context.Context, pattern, protocolID string) error {
	return m.next.RecordPattern(ctx, pattern, protocolID)
}

func maskContext(c domain.Context, patterns []*regexp.Regexp) domain.Context {
	for k, v := range c {
		if matchesAny(k, patterns) {
			c[k] = domain.StringValue(Mask)
			continue
		}
		if v.Kind() == domain.KindMap {
			if nested, ok := v.Interface().(map[string]any); ok {
				maskMap(nested, patterns)
				c[k] = domain.ValueOf(nested)
			}
		}
	}
	return c
}

func maskMap(m map[string]any, patterns []*regexp.Regexp) {
	for k, v := range m {
		if matchesAny(k, patterns) {
			m[k] = Mask
			continue
		}
		if sub, ok := v.(map[string]any); ok {
			maskMap(sub, patterns)
		}
	}
}

func matchesAny(key string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}
