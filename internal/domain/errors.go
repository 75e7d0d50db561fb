package domain

import "fmt"

// Error types for consistent error handling across the BFA.

// ErrAuthRequired indicates a gated action was attempted without a profile.
type ErrAuthRequired struct {
	Action string
}

func (e *ErrAuthRequired) Error() string {
	if e.Action == "" {
		return "authentication required"
	}
	return fmt.Sprintf("authentication required to %s", e.Action)
}

// ErrCreditsExhausted indicates the profile has no credits left.
type ErrCreditsExhausted struct {
	UID string
}

func (e *ErrCreditsExhausted) Error() string {
	return "no credits left: upgrade your plan to keep generating documents"
}

// ErrGeneration indicates the generation service failed or returned a payload
// that does not match the document structure.
type ErrGeneration struct {
	Reason string
	Err    error
}

func (e *ErrGeneration) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to generate document: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("failed to generate document: %s", e.Reason)
}

func (e *ErrGeneration) Unwrap() error {
	return e.Err
}

// ErrPersistence indicates a store write failed after generation and deduction
// succeeded. The deducted credit is not refunded.
type ErrPersistence struct {
	Operation string
	Err       error
}

func (e *ErrPersistence) Error() string {
	return fmt.Sprintf("failed to persist document (%s): %v", e.Operation, e.Err)
}

func (e *ErrPersistence) Unwrap() error {
	return e.Err
}

// ErrExport indicates PDF rendering or webhook dispatch failed.
type ErrExport struct {
	Stage string
	Err   error
}

func (e *ErrExport) Error() string {
	return fmt.Sprintf("failed to send document (%s): %v", e.Stage, e.Err)
}

func (e *ErrExport) Unwrap() error {
	return e.Err
}

// ErrGenerationInProgress rejects a generate request while another one is in flight.
type ErrGenerationInProgress struct {
	UID string
}

func (e *ErrGenerationInProgress) Error() string {
	return "a document is already being generated"
}

// ErrInvalidTransition indicates an operation is not allowed in the current step.
type ErrInvalidTransition struct {
	From   AppStep
	Action string
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("cannot %s while in step %q", e.Action, e.From)
}

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrExternalService indicates a failure in an external service call.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrTimeout indicates an operation exceeded its deadline.
type ErrTimeout struct {
	Operation string
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("operation timed out: %s", e.Operation)
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrUnauthorized indicates an invalid or expired identity token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrRateLimited indicates the caller exceeded the allowed request rate.
type ErrRateLimited struct {
	Operation string
}

func (e *ErrRateLimited) Error() string {
	return fmt.Sprintf("too many %s requests, slow down", e.Operation)
}
