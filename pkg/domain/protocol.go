package domain

import (
	"encoding/json"
	"fmt"
)

// Priority ranks protocols when several match the same input.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Rank orders priorities critical < high < medium < low. Unknown values sort last.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// Metadata classifies a protocol.
type Metadata struct {
	Priority Priority `json:"priority"`
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
}

// Protocol is an immutable catalog entry: triggers plus an ordered list of steps.
type Protocol struct {
	ID          string
	Name        string
	Description string
	Triggers    []Trigger
	Steps       []Step
	Metadata    Metadata
}

// Validate checks the structural invariants of a definition.
func (p *Protocol) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidProtocol)
	}
	seen := make(map[string]bool, len(p.Steps))
	for i, s := range p.Steps {
		if s.ID == "" {
			return fmt.Errorf("%w: %s step %d missing id", ErrInvalidProtocol, p.ID, i+1)
		}
		if seen[s.ID] {
			return fmt.Errorf("%w: %s has duplicate step id %q", ErrInvalidProtocol, p.ID, s.ID)
		}
		seen[s.ID] = true
	}
	return nil
}

// Step returns the step with the given ID and its position.
func (p *Protocol) Step(id string) (Step, int, bool) {
	for i, s := range p.Steps {
		if s.ID == id {
			return s, i, true
		}
	}
	return Step{}, -1, false
}

// TriggerPatterns flattens the trigger patterns for listings.
func (p *Protocol) TriggerPatterns() []string {
	out := make([]string, len(p.Triggers))
	for i, t := range p.Triggers {
		out[i] = t.Pattern()
	}
	return out
}

type protocolJSON struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Triggers    []TriggerSpec `json:"triggers"`
	Steps       []Step        `json:"steps"`
	Metadata    Metadata      `json:"metadata"`
}

// MarshalJSON renders triggers in their serializable form.
func (p Protocol) MarshalJSON() ([]byte, error) {
	out := protocolJSON{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Triggers:    make([]TriggerSpec, len(p.Triggers)),
		Steps:       p.Steps,
		Metadata:    p.Metadata,
	}
	for i, t := range p.Triggers {
		out.Triggers[i] = SpecOf(t)
	}
	if out.Steps == nil {
		out.Steps = []Step{}
	}
	return json.Marshal(out)
}

// UnmarshalJSON rebuilds triggers from their serializable form.
func (p *Protocol) UnmarshalJSON(data []byte) error {
	var in protocolJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	triggers := make([]Trigger, 0, len(in.Triggers))
	for _, spec := range in.Triggers {
		t, err := NewTrigger(spec)
		if err != nil {
			return err
		}
		triggers = append(triggers, t)
	}
	*p = Protocol{
		ID:          in.ID,
		Name:        in.Name,
		Description: in.Description,
		Triggers:    triggers,
		Steps:       in.Steps,
		Metadata:    in.Metadata,
	}
	return nil
}

// ProtocolSummary is the catalog listing view of a protocol.
type ProtocolSummary struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Triggers    []string `json:"triggers"`
	Steps       int      `json:"steps"`
	Priority    Priority `json:"priority"`
	Category    string   `json:"category"`
}

// Summary builds the listing view of p.
func (p *Protocol) Summary() ProtocolSummary {
	return ProtocolSummary{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Triggers:    p.TriggerPatterns(),
		Steps:       len(p.Steps),
		Priority:    p.Metadata.Priority,
		Category:    p.Metadata.Category,
	}
}
