package domain

import "time"

// ActionType tells the caller what to do with a NextAction.
type ActionType string

const (
	// ActionExecute asks the caller to run Command out-of-band and report back.
	ActionExecute ActionType = "execute"
	// ActionComplete signals that every step is done or skipped.
	ActionComplete ActionType = "complete"
)

// NextAction is the result of asking an execution what comes next.
type NextAction struct {
	Type ActionType `json:"type"`

	// Execute fields.
	Step     *Step     `json:"step,omitempty"`
	Command  string    `json:"command,omitempty"`
	Progress *Progress `json:"progress,omitempty"`
	Display  string    `json:"display,omitempty"`

	// Complete fields.
	Message string `json:"message,omitempty"`
	Summary string `json:"summary,omitempty"`

	// Skipped lists steps auto-completed while looking for the next one.
	Skipped []string `json:"skipped,omitempty"`
}

// ActiveSummary is the listing view of an active execution.
type ActiveSummary struct {
	ID          string    `json:"id"`
	Protocol    string    `json:"protocolName"`
	ProtocolID  string    `json:"protocolId"`
	StartedAt   time.Time `json:"startedAt"`
	Progress    Progress  `json:"progress"`
	CurrentStep string    `json:"currentStep"`
}

// StepComplete is the CurrentStep value of a finished execution.
const StepComplete = "Complete"

// Started is the view returned when an execution begins.
type Started struct {
	Snapshot
	ProtocolName string   `json:"protocolName"`
	Progress     Progress `json:"progress"`
}

// StartedView builds the Started view of e.
func StartedView(e *Execution) Started {
	return Started{
		Snapshot:     e.Snapshot(),
		ProtocolName: e.Protocol.Name,
		Progress:     e.Progress(),
	}
}
