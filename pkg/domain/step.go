package domain

import (
	"encoding/json"
	"strings"
)

// Condition gates whether a step runs. A nil Condition means the step is unconditional.
// The set of implementations is closed: FileExists, ContextKey and CustomCondition.
type Condition interface {
	// Expr returns the textual form used in catalog files.
	Expr() string

	sealed()
}

// FileExists is the "file_exists" condition. The engine resolves it through a
// FileChecker; without one it always holds.
type FileExists struct{}

func (FileExists) Expr() string { return "file_exists" }
func (FileExists) sealed()      {}

// ContextKey holds when the named context value is truthy ("context.<name>").
type ContextKey struct {
	Name string
}

func (c ContextKey) Expr() string { return "context." + c.Name }
func (ContextKey) sealed()        {}

// CustomCondition is any expression outside the recognized forms. It always holds.
type CustomCondition struct {
	Raw string
}

func (c CustomCondition) Expr() string { return c.Raw }
func (CustomCondition) sealed()        {}

// ParseCondition maps the textual condition to its variant. An empty string yields nil.
func ParseCondition(expr string) Condition {
	switch {
	case expr == "":
		return nil
	case expr == "file_exists":
		return FileExists{}
	case strings.HasPrefix(expr, "context."):
		return ContextKey{Name: strings.TrimPrefix(expr, "context.")}
	default:
		return CustomCondition{Raw: expr}
	}
}

// FileChecker resolves the file_exists condition for a step.
type FileChecker func(step Step, ctx Context) bool

// Evaluate reports whether cond holds for the step given ctx.
// fileExists may be nil, in which case FileExists always holds.
func Evaluate(cond Condition, step Step, ctx Context, fileExists FileChecker) bool {
	switch c := cond.(type) {
	case nil:
		return true
	case FileExists:
		if fileExists == nil {
			return true
		}
		return fileExists(step, ctx)
	case ContextKey:
		return ctx.Truthy(c.Name)
	default:
		return true
	}
}

// Step is one unit of work within a protocol.
type Step struct {
	ID          string
	Name        string
	Description string
	// Command is an opaque template with ${variable} placeholders; the caller runs it.
	Command string
	// Validation is human-readable and never checked by the engine.
	Validation string
	Condition  Condition
	// Substeps are carried for catalog fidelity but not expanded by the engine.
	Substeps []Step
}

type stepJSON struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Command     string `json:"command,omitempty"`
	Validation  string `json:"validation,omitempty"`
	Conditional string `json:"conditional,omitempty"`
	Substeps    []Step `json:"substeps,omitempty"`
}

// MarshalJSON renders the condition in its textual form.
func (s Step) MarshalJSON() ([]byte, error) {
	out := stepJSON{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		Command:     s.Command,
		Validation:  s.Validation,
		Substeps:    s.Substeps,
	}
	if s.Condition != nil {
		out.Conditional = s.Condition.Expr()
	}
	return json.Marshal(out)
}

// UnmarshalJSON parses the textual condition back into its variant.
func (s *Step) UnmarshalJSON(data []byte) error {
	var in stepJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*s = Step{
		ID:          in.ID,
		Name:        in.Name,
		Description: in.Description,
		Command:     in.Command,
		Validation:  in.Validation,
		Condition:   ParseCondition(in.Conditional),
		Substeps:    in.Substeps,
	}
	return nil
}
