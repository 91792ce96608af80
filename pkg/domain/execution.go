package domain

import (
	"sort"
	"time"
)

// Progress reports how far an execution has advanced.
// Completed counts skipped steps, so it may reach Total without every step producing a result.
type Progress struct {
	Total        int `json:"total"`
	Completed    int `json:"completed"`
	CurrentIndex int `json:"currentIndex"`
}

// Execution is one in-progress run of a Protocol.
// There is no status field: it is complete when every step is in the completed set.
type Execution struct {
	ID        string
	Protocol  *Protocol
	Context   Context
	StartedAt time.Time

	completed  map[string]struct{}
	results    map[string]any
	fileExists FileChecker
}

// NewExecution creates a fresh execution of p.
func NewExecution(id string, p *Protocol, ctx Context, startedAt time.Time) *Execution {
	if ctx == nil {
		ctx = Context{}
	}
	return &Execution{
		ID:        id,
		Protocol:  p,
		Context:   ctx,
		StartedAt: startedAt,
		completed: make(map[string]struct{}),
		results:   make(map[string]any),
	}
}

// SetFileChecker installs the predicate used for the file_exists condition.
func (e *Execution) SetFileChecker(fc FileChecker) {
	e.fileExists = fc
}

// NextStep returns the first step, in definition order, that is neither completed nor skipped.
// Steps whose condition evaluates false are marked completed as a side effect; their
// IDs are returned in skipped. A nil step signals that the protocol is complete.
func (e *Execution) NextStep() (next *Step, skipped []string) {
	for i := range e.Protocol.Steps {
		step := e.Protocol.Steps[i]
		if e.IsStepComplete(step.ID) {
			continue
		}
		if !Evaluate(step.Condition, step, e.Context, e.fileExists) {
			e.completed[step.ID] = struct{}{}
			skipped = append(skipped, step.ID)
			continue
		}
		return &step, skipped
	}
	return nil, skipped
}

// PeekStep returns the step NextStep would return, without marking skipped steps.
func (e *Execution) PeekStep() *Step {
	for i := range e.Protocol.Steps {
		step := e.Protocol.Steps[i]
		if e.IsStepComplete(step.ID) {
			continue
		}
		if Evaluate(step.Condition, step, e.Context, e.fileExists) {
			return &step
		}
	}
	return nil
}

// CompleteStep marks stepID completed. It is idempotent; a non-nil result overwrites
// any result previously recorded for the step. Unknown IDs are accepted.
func (e *Execution) CompleteStep(stepID string, result any) {
	e.completed[stepID] = struct{}{}
	if result != nil {
		e.results[stepID] = result
	}
}

// IsStepComplete reports whether stepID is in the completed set.
func (e *Execution) IsStepComplete(stepID string) bool {
	_, ok := e.completed[stepID]
	return ok
}

// Progress computes the progress snapshot without evaluating conditions.
// Only the protocol's own steps count, so Completed never exceeds Total.
func (e *Execution) Progress() Progress {
	total := len(e.Protocol.Steps)
	current := total
	completed := 0
	for i, s := range e.Protocol.Steps {
		if !e.IsStepComplete(s.ID) {
			if current == total {
				current = i
			}
			continue
		}
		completed++
	}
	return Progress{
		Total:        total,
		Completed:    completed,
		CurrentIndex: current,
	}
}

// CompletedSteps lists completed step IDs: protocol steps in definition order,
// then any foreign IDs sorted lexically.
func (e *Execution) CompletedSteps() []string {
	out := make([]string, 0, len(e.completed))
	known := make(map[string]bool, len(e.Protocol.Steps))
	for _, s := range e.Protocol.Steps {
		known[s.ID] = true
		if e.IsStepComplete(s.ID) {
			out = append(out, s.ID)
		}
	}
	var extra []string
	for id := range e.completed {
		if !known[id] {
			extra = append(extra, id)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

// Result returns the recorded result for stepID.
func (e *Execution) Result(stepID string) (any, bool) {
	r, ok := e.results[stepID]
	return r, ok
}

// Results returns a copy of the recorded results.
func (e *Execution) Results() map[string]any {
	out := make(map[string]any, len(e.results))
	for k, v := range e.results {
		out[k] = v
	}
	return out
}

// Snapshot captures the persistable state of the execution.
func (e *Execution) Snapshot() Snapshot {
	return Snapshot{
		ID:             e.ID,
		ProtocolID:     e.Protocol.ID,
		Context:        e.Context.Clone(),
		StartedAt:      e.StartedAt,
		CompletedSteps: e.CompletedSteps(),
		StepResults:    e.Results(),
	}
}

// Restore rebuilds an execution from its snapshot. The snapshot does not carry step
// definitions, so the protocol must be supplied by the caller.
func Restore(s Snapshot, p *Protocol) *Execution {
	e := NewExecution(s.ID, p, s.Context.Clone(), s.StartedAt)
	for _, id := range s.CompletedSteps {
		e.completed[id] = struct{}{}
	}
	for k, v := range s.StepResults {
		e.results[k] = v
	}
	return e
}

// Snapshot is the persisted form of an Execution.
type Snapshot struct {
	ID             string         `json:"id"`
	ProtocolID     string         `json:"protocolId"`
	Context        Context        `json:"context"`
	StartedAt      time.Time      `json:"startedAt"`
	CompletedSteps []string       `json:"completedSteps"`
	StepResults    map[string]any `json:"stepResults"`
}

// Clone returns a copy that shares no mutable collections with s.
func (s Snapshot) Clone() Snapshot {
	cp := s
	cp.Context = s.Context.Clone()
	cp.CompletedSteps = append([]string{}, s.CompletedSteps...)
	cp.StepResults = make(map[string]any, len(s.StepResults))
	for k, v := range s.StepResults {
		cp.StepResults[k] = v
	}
	return cp
}

// StartedBefore reports whether the snapshot was started before cutoff.
func (s Snapshot) StartedBefore(cutoff time.Time) bool {
	return s.StartedAt.Before(cutoff)
}

// HistoryRecord is an archived snapshot of a finished execution.
type HistoryRecord struct {
	Snapshot
	CompletedAt time.Time `json:"completedAt"`
	Success     bool      `json:"success"`
}

// Archive stamps s as finished.
func Archive(s Snapshot, completedAt time.Time, success bool) HistoryRecord {
	return HistoryRecord{Snapshot: s.Clone(), CompletedAt: completedAt, Success: success}
}
