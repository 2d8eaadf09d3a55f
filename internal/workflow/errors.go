package workflow

import "fmt"

// StepError reports a failed workflow step. The executor halts the sequence
// on the first failure and reports partial progress so the caller can
// resume or restart; failed steps are never skipped silently.
type StepError struct {
	Mode    Mode
	AgentID string
	TaskID  string
	Err     error
}

// Error implements the error interface.
func (e *StepError) Error() string {
	if e.TaskID != "" {
		return fmt.Sprintf("workflow %s: step %s:%s failed: %v", e.Mode, e.AgentID, e.TaskID, e.Err)
	}
	return fmt.Sprintf("workflow %s: step %s failed: %v", e.Mode, e.AgentID, e.Err)
}

// Unwrap lets errors.Is/As reach the underlying cause.
func (e *StepError) Unwrap() error {
	return e.Err
}
