package schedule

import "fmt"

// Error taxonomy for schedule actions. Handlers map these to HTTP statuses;
// services never let raw store errors cross the action boundary untyped.

// PermissionDeniedError - access policy or ownership check failed. Not retryable.
type PermissionDeniedError struct {
	Reason string
}

func (e *PermissionDeniedError) Error() string {
	return "permission denied: " + e.Reason
}

// ValidationError - the request is invalid; no store write was attempted.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// ConflictError - the entry is not in a state that allows the transition
// (e.g. claiming an operation that is already claimed). Not retryable; the
// caller's view is stale until the next snapshot.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return "conflict: " + e.Reason
}

// StoreWriteError - a set/remove against the record store failed. Retryable;
// no local state was mutated before the failure.
type StoreWriteError struct {
	Op  string
	Err error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("store write failed (%s): %v", e.Op, e.Err)
}

func (e *StoreWriteError) Unwrap() error { return e.Err }

// PartialCompletionError - the archive write succeeded but the active-entry
// delete failed, so the entry exists in both collections. The archive payload
// is idempotent; retry the delete with the entry key.
type PartialCompletionError struct {
	Key string
	Err error
}

func (e *PartialCompletionError) Error() string {
	return fmt.Sprintf("partial completion for %s: archived but active delete failed: %v", e.Key, e.Err)
}

func (e *PartialCompletionError) Unwrap() error { return e.Err }
