package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/playbook/pkg/domain"
	"github.com/aretw0/playbook/pkg/ports"
)

// FileLoader implements ports.CatalogLoader over a single YAML or JSON file.
type FileLoader struct {
	Path string
}

// NewFileLoader creates a loader for path.
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{Path: path}
}

// Load reads and decodes the file.
func (l *FileLoader) Load(ctx context.Context) ([]domain.Protocol, error) {
	data, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", l.Path, err)
	}
	protocols, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.Path, err)
	}
	return protocols, nil
}

// MultiLoader merges several sources. A later source replaces definitions with the
// same ID from earlier ones, in place.
type MultiLoader struct {
	Loaders []ports.CatalogLoader
	Logger  *slog.Logger
}

// Merge combines loaders into one.
func Merge(logger *slog.Logger, loaders ...ports.CatalogLoader) *MultiLoader {
	return &MultiLoader{Loaders: loaders, Logger: logger}
}

// Load runs every loader in order. The first failure aborts.
func (m *MultiLoader) Load(ctx context.Context) ([]domain.Protocol, error) {
	var out []domain.Protocol
	index := make(map[string]int)
	for _, l := range m.Loaders {
		protocols, err := l.Load(ctx)
		if err != nil {
			return nil, err
		}
		for _, p := range protocols {
			if i, ok := index[p.ID]; ok {
				if m.Logger != nil {
					m.Logger.Debug("Protocol overridden", "protocol_id", p.ID)
				}
				out[i] = p
				continue
			}
			index[p.ID] = len(out)
			out = append(out, p)
		}
	}
	return out, nil
}
