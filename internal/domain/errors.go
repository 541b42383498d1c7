package domain

import "errors"

// Sentinel errors shared across the evaluation pipeline.
// Wrap them with fmt.Errorf("...: %w", err) and match with errors.Is.
var (
	// ErrValidation marks missing or malformed input. Nothing is written.
	ErrValidation = errors.New("validation failed")
	// ErrIllegalTransition marks a request the current pipeline state does not allow
	ErrIllegalTransition = errors.New("illegal evaluation transition")
	// ErrDealMismatch marks a request naming a deal other than the evaluation's
	ErrDealMismatch = errors.New("evaluation belongs to a different deal")
	ErrEvaluationNotFound = errors.New("evaluation not found")
	ErrDealNotFound       = errors.New("deal not found")
	// ErrStepFailed marks an evaluator failure. The record is left at its last completed step.
	ErrStepFailed = errors.New("evaluation step failed")
	// ErrConcurrentModification marks a write that lost a race on the record version
	ErrConcurrentModification = errors.New("evaluation was modified concurrently")
	// ErrProviderUnavailable marks an external provider that is not configured or not reachable
	ErrProviderUnavailable = errors.New("provider unavailable")
)
