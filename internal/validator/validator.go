// Package validator lints protocol definitions beyond the structural checks
// enforced at registration.
package validator

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/playbook/internal/runtime"
	"github.com/aretw0/playbook/pkg/domain"
)

// Level ranks an Issue.
type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
)

// Issue is one finding about a protocol.
type Issue struct {
	Level      Level  `json:"level"`
	ProtocolID string `json:"protocolId"`
	StepID     string `json:"stepId,omitempty"`
	Message    string `json:"message"`
}

func (i Issue) String() string {
	loc := i.ProtocolID
	if i.StepID != "" {
		loc += "/" + i.StepID
	}
	return fmt.Sprintf("[%s] %s: %s", i.Level, loc, i.Message)
}

// ErrInvalidCatalog is wrapped by Report.Err.
var ErrInvalidCatalog = errors.New("invalid catalog")

// Report collects the findings for a catalog.
type Report struct {
	Issues []Issue `json:"issues"`
	// Variables maps each protocol to the context variables its commands reference.
	Variables map[string][]string `json:"variables"`
}

// Err returns an error summarizing the error-level issues, or nil.
func (r Report) Err() error {
	var msgs []string
	for _, i := range r.Issues {
		if i.Level == LevelError {
			msgs = append(msgs, i.String())
		}
	}
	if len(msgs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: found %d errors:\n- %s", ErrInvalidCatalog, len(msgs), strings.Join(msgs, "\n- "))
}

// ValidateCatalog checks every protocol and the catalog as a whole.
func ValidateCatalog(protocols []domain.Protocol) Report {
	r := Report{Variables: make(map[string][]string)}
	seen := make(map[string]bool)

	for i := range protocols {
		p := &protocols[i]
		if seen[p.ID] {
			r.add(LevelWarning, p.ID, "", "defined more than once; the last definition wins")
		}
		seen[p.ID] = true

		if err := p.Validate(); err != nil {
			r.add(LevelError, p.ID, "", strings.TrimPrefix(err.Error(), domain.ErrInvalidProtocol.Error()+": "))
		}
		if len(p.Triggers) == 0 {
			r.add(LevelWarning, p.ID, "", "has no triggers and can only be started explicitly")
		}
		for _, t := range p.Triggers {
			if u, ok := t.(domain.UnknownTrigger); ok {
				r.add(LevelWarning, p.ID, "", fmt.Sprintf("trigger type %q is not recognized and never matches", u.Type))
			}
		}
		if len(p.Steps) == 0 {
			r.add(LevelWarning, p.ID, "", "has no steps and completes immediately")
		}

		vars := make(map[string]bool)
		for _, s := range p.Steps {
			if s.Name == "" {
				r.add(LevelWarning, p.ID, s.ID, "step has no name")
			}
			if c, ok := s.Condition.(domain.CustomCondition); ok {
				r.add(LevelWarning, p.ID, s.ID, fmt.Sprintf("condition %q is not understood and always holds", c.Raw))
			}
			if len(s.Substeps) > 0 {
				r.add(LevelWarning, p.ID, s.ID, "substeps are listed but never executed")
			}
			for _, name := range runtime.Placeholders(s.Command) {
				if name != "today" {
					vars[name] = true
				}
			}
		}
		if len(vars) > 0 {
			names := make([]string, 0, len(vars))
			for n := range vars {
				names = append(names, n)
			}
			sort.Strings(names)
			r.Variables[p.ID] = names
		}
	}
	return r
}

func (r *Report) add(level Level, protocolID, stepID, msg string) {
	r.Issues = append(r.Issues, Issue{Level: level, ProtocolID: protocolID, StepID: stepID, Message: msg})
}
