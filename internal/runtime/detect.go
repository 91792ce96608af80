package runtime

import (
	"context"
	"sort"
	"strings"

	"github.com/aretw0/playbook/pkg/domain"
)

// Detect returns every protocol with at least one matching trigger, ordered by priority
// (critical first). Protocols of equal priority keep catalog order. It never fails.
func (e *Engine) Detect(ctx context.Context, input string, c domain.Context) []domain.Protocol {
	normalized := strings.ToLower(input)

	e.mu.Lock()
	var matched []domain.Protocol
	var patterns []string
	for _, id := range e.order {
		p := e.protocols[id]
		for _, t := range p.Triggers {
			if t.Matches(normalized, c) {
				matched = append(matched, *p)
				patterns = append(patterns, t.Pattern())
				break
			}
		}
	}
	e.mu.Unlock()

	for i, p := range matched {
		if err := e.store.RecordPattern(ctx, patterns[i], p.ID); err != nil {
			e.logger.Debug("Failed to record trigger pattern", "protocol_id", p.ID, "err", err)
		}
	}

	prioritize(matched)

	ids := make([]string, len(matched))
	for i, p := range matched {
		ids[i] = p.ID
	}
	e.logger.Debug("Triggers detected", "matches", ids)
	if e.hooks.OnDetect != nil {
		e.hooks.OnDetect(ctx, &domain.DetectEvent{
			EventBase: domain.EventBase{Timestamp: e.now(), Type: domain.EventDetect},
			Input:     input,
			Matches:   ids,
		})
	}
	return matched
}

func prioritize(protocols []domain.Protocol) {
	sort.SliceStable(protocols, func(i, j int) bool {
		return protocols[i].Metadata.Priority.Rank() < protocols[j].Metadata.Priority.Rank()
	})
}
