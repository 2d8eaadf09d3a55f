package coordinator

import "errors"

// Errors for activation and handoff operations. All are reported to the
// caller synchronously; a failed operation leaves the shared context's
// active-agent membership exactly as it was.
var (
	// ErrUnknownAgent indicates a referenced identifier is absent from the
	// registry.
	ErrUnknownAgent = errors.New("unknown agent")

	// ErrMissingHandoffPrerequisite indicates activation was attempted for
	// an agent whose declared predecessors are all inactive.
	ErrMissingHandoffPrerequisite = errors.New("missing handoff prerequisite")

	// ErrIllegalHandoff indicates a transfer along an undeclared edge.
	ErrIllegalHandoff = errors.New("illegal handoff")

	// ErrValidationFailed indicates a named pre- or post-condition check
	// failed. For pre-checks the mutation is blocked; for post-handoff
	// checks the swap stands and the failure is surfaced (no rollback).
	ErrValidationFailed = errors.New("validation failed")
)
