package catalog

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/aretw0/playbook/pkg/domain"
)

//go:embed builtin.yaml
var builtinYAML []byte

// Builtin returns the protocols shipped with the binary.
func Builtin() ([]domain.Protocol, error) {
	protocols, err := Decode(builtinYAML)
	if err != nil {
		return nil, fmt.Errorf("built-in catalog: %w", err)
	}
	return protocols, nil
}

// BuiltinLoader implements ports.CatalogLoader over the embedded catalog.
type BuiltinLoader struct{}

// Load returns the built-in protocols.
func (BuiltinLoader) Load(ctx context.Context) ([]domain.Protocol, error) {
	return Builtin()
}
