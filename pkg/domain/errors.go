package domain

import "errors"

// ErrProtocolNotFound is returned when a protocol ID is not present in the catalog.
var ErrProtocolNotFound = errors.New("protocol not found")

// ErrExecutionNotFound is returned when an active execution ID is unknown to the engine.
var ErrExecutionNotFound = errors.New("active protocol not found")

// ErrStepNotFound is returned when a step ID does not belong to the execution's protocol.
var ErrStepNotFound = errors.New("step not found")

// ErrInvalidProtocol is returned when a protocol definition fails validation.
var ErrInvalidProtocol = errors.New("invalid protocol definition")
