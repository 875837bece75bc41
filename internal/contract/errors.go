package contract

import "fmt"

// ContractValidationError reports a structural or referential contract
// failure at a stage boundary. It is non-retryable: the payload will not
// become valid on a second attempt.
type ContractValidationError struct {
	Skill     string
	FieldPath string
	Message   string
}

func (e *ContractValidationError) Error() string {
	if e.FieldPath != "" {
		return fmt.Sprintf("contract validation for %s: %s: %s", e.Skill, e.FieldPath, e.Message)
	}
	return fmt.Sprintf("contract validation for %s: %s", e.Skill, e.Message)
}

// WorkerUnavailableError means no registered worker can serve a skill, or
// the resolved worker could not be reached.
type WorkerUnavailableError struct {
	Skill  string
	Reason string
}

func (e *WorkerUnavailableError) Error() string {
	return fmt.Sprintf("no worker available for %s: %s", e.Skill, e.Reason)
}

// TimeoutError means a worker invocation exceeded its deadline. The
// invocation is cancelled; nothing else is.
type TimeoutError struct {
	Skill   string
	Elapsed string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("worker invocation for %s timed out after %s", e.Skill, e.Elapsed)
}

// SideEffectBlockedError is returned by the foreman's effects gate when a
// worker attempts an external action forbidden by the run mode.
type SideEffectBlockedError struct {
	Action string
	Mode   string
}

func (e *SideEffectBlockedError) Error() string {
	return fmt.Sprintf("side effect %q blocked in %s mode", e.Action, e.Mode)
}

// StorageWriteError wraps a failed result-sink write. It is logged and
// swallowed by the sink, never surfaced to pipeline callers.
type StorageWriteError struct {
	Key string
	Err error
}

func (e *StorageWriteError) Error() string {
	return fmt.Sprintf("store write %s: %v", e.Key, e.Err)
}

func (e *StorageWriteError) Unwrap() error { return e.Err }
