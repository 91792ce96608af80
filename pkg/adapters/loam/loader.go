package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/loam"
	"github.com/aretw0/playbook/pkg/catalog"
	"github.com/aretw0/playbook/pkg/domain"
)

// Loader implements ports.CatalogLoader over a Loam repository, one protocol per document.
// Markdown documents carry the protocol in frontmatter; the body is used as the
// description when none is given.
type Loader struct {
	Repo *loam.TypedRepository[catalog.Document]
}

// New creates a new Loam adapter.
func New(repo *loam.TypedRepository[catalog.Document]) *Loader {
	return &Loader{
		Repo: repo,
	}
}

// Open initializes a read-only Loam repository at path and wraps it in a Loader.
func Open(path string) (*Loader, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	// Strict mode keeps numeric types consistent across JSON and Markdown sources.
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[catalog.Document](repo)), nil
}

// Load lists every document and converts it into a protocol, ordered by ID.
func (l *Loader) Load(ctx context.Context) ([]domain.Protocol, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string)
	protocols := make([]domain.Protocol, 0, len(docs))
	for _, doc := range docs {
		meta := doc.Data

		rawID := meta.ID
		if rawID == "" {
			rawID = doc.ID
		}
		meta.ID = trimExtension(rawID)

		if existing, ok := seen[meta.ID]; ok {
			return nil, fmt.Errorf("collision detected: ID '%s' is defined in both '%s' and '%s'", meta.ID, existing, doc.ID)
		}
		seen[meta.ID] = doc.ID

		if meta.Description == "" {
			meta.Description = strings.TrimSpace(doc.Content)
		}

		p, err := meta.ToProtocol()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", doc.ID, err)
		}
		protocols = append(protocols, p)
	}

	sort.SliceStable(protocols, func(i, j int) bool {
		return protocols[i].ID < protocols[j].ID
	})
	return protocols, nil
}

// Watch reports the IDs of changed catalog documents until ctx is done.
func (l *Loader) Watch(ctx context.Context) (<-chan string, error) {
	events, err := l.Repo.Watch(ctx, "**/*.{md,json,yaml,yml}")
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan string, 1)
	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				select {
				case ch <- trimExtension(evt.ID):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}
