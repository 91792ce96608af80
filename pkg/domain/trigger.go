package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// TriggerKind names the variant of a Trigger.
type TriggerKind string

const (
	TriggerPhrase TriggerKind = "phrase"
	TriggerEvent  TriggerKind = "event"
	TriggerState  TriggerKind = "state"
	TriggerError  TriggerKind = "error"
)

// Trigger decides whether a protocol applies to an input and its context.
// The set of implementations is closed: PhraseTrigger, PatternTrigger,
// EventTrigger, StateTrigger, ErrorTrigger and UnknownTrigger.
type Trigger interface {
	// Kind reports the trigger variant.
	Kind() TriggerKind
	// Pattern returns a display form of the trigger pattern.
	Pattern() string
	// Matches evaluates the trigger. input must already be lowercased.
	Matches(input string, ctx Context) bool

	sealed()
}

// PhraseTrigger matches when the input contains the literal, case-insensitively.
// Matching is substring containment, not whole-word.
type PhraseTrigger struct {
	Literal    string
	ContextKey string
}

func (PhraseTrigger) Kind() TriggerKind { return TriggerPhrase }
func (t PhraseTrigger) Pattern() string { return t.Literal }
func (PhraseTrigger) sealed()           {}
func (t PhraseTrigger) Matches(input string, _ Context) bool {
	return strings.Contains(input, strings.ToLower(t.Literal))
}

// PatternTrigger is a phrase trigger expressed as a regular expression.
// It is tested against the lowercased input as-is, so case sensitivity is
// governed by the expression's own flags.
type PatternTrigger struct {
	Expr       *regexp.Regexp
	ContextKey string
}

func (PatternTrigger) Kind() TriggerKind { return TriggerPhrase }
func (PatternTrigger) sealed()           {}

// Pattern returns the marker used by catalog listings for non-literal phrases.
func (PatternTrigger) Pattern() string { return "custom pattern" }

func (t PatternTrigger) Matches(input string, _ Context) bool {
	return t.Expr != nil && t.Expr.MatchString(input)
}

// EventTrigger matches when context.event equals Name exactly.
type EventTrigger struct {
	Name       string
	ContextKey string
}

func (EventTrigger) Kind() TriggerKind { return TriggerEvent }
func (t EventTrigger) Pattern() string { return t.Name }
func (EventTrigger) sealed()           {}
func (t EventTrigger) Matches(_ string, ctx Context) bool {
	event, ok := ctx.Text("event")
	return ok && event == t.Name
}

// StateTrigger matches when context.state equals Name exactly.
type StateTrigger struct {
	Name       string
	ContextKey string
}

func (StateTrigger) Kind() TriggerKind { return TriggerState }
func (t StateTrigger) Pattern() string { return t.Name }
func (StateTrigger) sealed()           {}
func (t StateTrigger) Matches(_ string, ctx Context) bool {
	state, ok := ctx.Text("state")
	return ok && state == t.Name
}

// ErrorTrigger matches when context.error contains Substring.
type ErrorTrigger struct {
	Substring  string
	ContextKey string
}

func (ErrorTrigger) Kind() TriggerKind { return TriggerError }
func (t ErrorTrigger) Pattern() string { return t.Substring }
func (ErrorTrigger) sealed()           {}
func (t ErrorTrigger) Matches(_ string, ctx Context) bool {
	msg, ok := ctx.Lookup("error")
	if !ok {
		return false
	}
	return strings.Contains(msg.String(), t.Substring)
}

// UnknownTrigger holds a trigger whose kind is not recognized. It never matches.
type UnknownTrigger struct {
	Type  string
	Value string
}

func (t UnknownTrigger) Kind() TriggerKind          { return TriggerKind(t.Type) }
func (t UnknownTrigger) Pattern() string            { return t.Value }
func (UnknownTrigger) sealed()                      {}
func (UnknownTrigger) Matches(string, Context) bool { return false }

// TriggerSpec is the serializable description of a Trigger.
type TriggerSpec struct {
	Type    string `json:"type" yaml:"type" mapstructure:"type"`
	Pattern string `json:"pattern" yaml:"pattern" mapstructure:"pattern"`
	Regex   bool   `json:"regex,omitempty" yaml:"regex,omitempty" mapstructure:"regex"`
	Context string `json:"context,omitempty" yaml:"context,omitempty" mapstructure:"context"`
}

// NewTrigger builds a Trigger from its serializable form.
// Unrecognized types yield an UnknownTrigger; only an invalid regular expression is an error.
func NewTrigger(spec TriggerSpec) (Trigger, error) {
	switch TriggerKind(spec.Type) {
	case TriggerPhrase:
		if spec.Regex {
			re, err := regexp.Compile(spec.Pattern)
			if err != nil {
				return nil, fmt.Errorf("invalid phrase pattern %q: %w", spec.Pattern, err)
			}
			return PatternTrigger{Expr: re, ContextKey: spec.Context}, nil
		}
		return PhraseTrigger{Literal: spec.Pattern, ContextKey: spec.Context}, nil
	case TriggerEvent:
		return EventTrigger{Name: spec.Pattern, ContextKey: spec.Context}, nil
	case TriggerState:
		return StateTrigger{Name: spec.Pattern, ContextKey: spec.Context}, nil
	case TriggerError:
		return ErrorTrigger{Substring: spec.Pattern, ContextKey: spec.Context}, nil
	default:
		return UnknownTrigger{Type: spec.Type, Value: spec.Pattern}, nil
	}
}

// SpecOf returns the serializable form of t.
func SpecOf(t Trigger) TriggerSpec {
	switch v := t.(type) {
	case PhraseTrigger:
		return TriggerSpec{Type: string(TriggerPhrase), Pattern: v.Literal, Context: v.ContextKey}
	case PatternTrigger:
		expr := ""
		if v.Expr != nil {
			expr = v.Expr.String()
		}
		return TriggerSpec{Type: string(TriggerPhrase), Pattern: expr, Regex: true, Context: v.ContextKey}
	case EventTrigger:
		return TriggerSpec{Type: string(TriggerEvent), Pattern: v.Name, Context: v.ContextKey}
	case StateTrigger:
		return TriggerSpec{Type: string(TriggerState), Pattern: v.Name, Context: v.ContextKey}
	case ErrorTrigger:
		return TriggerSpec{Type: string(TriggerError), Pattern: v.Substring, Context: v.ContextKey}
	case UnknownTrigger:
		return TriggerSpec{Type: v.Type, Pattern: v.Value}
	default:
		return TriggerSpec{}
	}
}
