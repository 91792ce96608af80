/*
Package domain contains the core models and state-transition rules of the Playbook engine.

It defines the immutable protocol catalog entries (Protocols, Triggers, Steps) and the
mutable runtime entity that walks a caller through them (Execution). This package is
kept pure and free of I/O or persistence, following Hexagonal Architecture principles.

# Key Entities

  - Protocol: A named, ordered procedure with trigger conditions and metadata.
  - Trigger: A sealed sum type (phrase, pattern, event, state, error) deciding applicability.
  - Step: One unit of work; may carry a command template, validation text and a Condition.
  - Context: Caller-supplied key/value data, stored as tagged Values.
  - Execution: One in-progress run of a Protocol (completed steps, recorded results).
  - Snapshot / HistoryRecord: The persisted shapes of an Execution.
*/
package domain
