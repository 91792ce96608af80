package ports

import (
	"context"

	"github.com/aretw0/playbook/pkg/domain"
)

// CatalogLoader defines how the engine retrieves protocol definitions.
// This allows the catalog source (built-in, YAML/JSON file, Loam) to be decoupled.
type CatalogLoader interface {
	// Load returns every protocol definition available from the source.
	Load(ctx context.Context) ([]domain.Protocol, error)
}
