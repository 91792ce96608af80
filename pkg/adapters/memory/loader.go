package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/aretw0/playbook/pkg/domain"
)

// Loader implements ports.CatalogLoader over in-memory definitions.
type Loader struct {
	protocols []domain.Protocol
}

// NewLoader creates a Loader from raw JSON documents keyed by protocol ID.
// Documents are decoded in key order so the catalog order is deterministic.
func NewLoader(data map[string]string) (*Loader, error) {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	l := &Loader{}
	for _, k := range keys {
		var p domain.Protocol
		if err := json.Unmarshal([]byte(data[k]), &p); err != nil {
			return nil, fmt.Errorf("failed to decode protocol %s: %w", k, err)
		}
		if p.ID == "" {
			p.ID = k
		}
		l.protocols = append(l.protocols, p)
	}
	return l, nil
}

// NewFromProtocols creates a Loader from domain objects, keeping their order.
func NewFromProtocols(protocols ...domain.Protocol) *Loader {
	return &Loader{protocols: append([]domain.Protocol{}, protocols...)}
}

// Load returns the definitions.
func (l *Loader) Load(ctx context.Context) ([]domain.Protocol, error) {
	return append([]domain.Protocol{}, l.protocols...), nil
}
