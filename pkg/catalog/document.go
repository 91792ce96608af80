package catalog

import (
	"fmt"
	"strings"

	"github.com/aretw0/playbook/pkg/domain"
)

// Document is the authored form of a protocol in YAML, JSON or Markdown frontmatter.
// It uses "mapstructure" tags so the same shape decodes from any generic map.
type Document struct {
	ID          string               `json:"id" yaml:"id" mapstructure:"id"`
	Name        string               `json:"name" yaml:"name" mapstructure:"name"`
	Description string               `json:"description" yaml:"description" mapstructure:"description"`
	Triggers    []domain.TriggerSpec `json:"triggers" yaml:"triggers" mapstructure:"triggers"`
	Steps       []StepDocument       `json:"steps" yaml:"steps" mapstructure:"steps"`
	Metadata    MetadataDocument     `json:"metadata" yaml:"metadata" mapstructure:"metadata"`

	// Priority and Category are accepted at the top level as shorthand for metadata.
	Priority string `json:"priority,omitempty" yaml:"priority,omitempty" mapstructure:"priority"`
	Category string `json:"category,omitempty" yaml:"category,omitempty" mapstructure:"category"`
}

// StepDocument is the authored form of a step.
type StepDocument struct {
	ID          string         `json:"id" yaml:"id" mapstructure:"id"`
	Name        string         `json:"name" yaml:"name" mapstructure:"name"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
	Command     string         `json:"command,omitempty" yaml:"command,omitempty" mapstructure:"command"`
	Validation  string         `json:"validation,omitempty" yaml:"validation,omitempty" mapstructure:"validation"`
	Conditional string         `json:"conditional,omitempty" yaml:"conditional,omitempty" mapstructure:"conditional"`
	Substeps    []StepDocument `json:"substeps,omitempty" yaml:"substeps,omitempty" mapstructure:"substeps"`
}

// MetadataDocument is the authored form of protocol metadata.
type MetadataDocument struct {
	Priority string   `json:"priority" yaml:"priority" mapstructure:"priority"`
	Category string   `json:"category" yaml:"category" mapstructure:"category"`
	Tags     []string `json:"tags" yaml:"tags" mapstructure:"tags"`
}

// ToProtocol converts the document into a validated domain definition.
// Unknown trigger types are kept and never match; invalid regular expressions fail.
func (d Document) ToProtocol() (domain.Protocol, error) {
	p := domain.Protocol{
		ID:          strings.TrimSpace(d.ID),
		Name:        d.Name,
		Description: d.Description,
		Steps:       convertSteps(d.Steps),
		Metadata: domain.Metadata{
			Priority: domain.Priority(strings.ToLower(firstNonEmpty(d.Metadata.Priority, d.Priority))),
			Category: firstNonEmpty(d.Metadata.Category, d.Category),
			Tags:     d.Metadata.Tags,
		},
	}
	if p.Name == "" {
		p.Name = p.ID
	}
	if p.Metadata.Priority == "" {
		p.Metadata.Priority = domain.PriorityMedium
	}

	for i, spec := range d.Triggers {
		t, err := domain.NewTrigger(spec)
		if err != nil {
			return domain.Protocol{}, fmt.Errorf("protocol %s trigger %d: %w", p.ID, i+1, err)
		}
		p.Triggers = append(p.Triggers, t)
	}

	if err := p.Validate(); err != nil {
		return domain.Protocol{}, err
	}
	return p, nil
}

func convertSteps(docs []StepDocument) []domain.Step {
	if len(docs) == 0 {
		return nil
	}
	steps := make([]domain.Step, len(docs))
	for i, s := range docs {
		steps[i] = domain.Step{
			ID:          s.ID,
			Name:        s.Name,
			Description: s.Description,
			Command:     s.Command,
			Validation:  s.Validation,
			Condition:   domain.ParseCondition(s.Conditional),
			Substeps:    convertSteps(s.Substeps),
		}
	}
	return steps
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
