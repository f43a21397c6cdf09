// internal/errors/errors.go
package appErrors

import (
    "fmt"
    "strings"
)

// ValidationError is returned when required input is missing or malformed.
type ValidationError struct {
    Field   string
    Message string
}

func (e *ValidationError) Error() string {
    if e.Field == "" {
        return e.Message
    }
    return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidation(field, message string) error {
    return &ValidationError{Field: field, Message: message}
}

// NotFoundError covers any entity looked up by id within an account.
type NotFoundError struct {
    Entity string
    ID     string
}

func (e *NotFoundError) Error() string {
    return fmt.Sprintf("%s with ID %s not found", e.Entity, e.ID)
}

func NewNotFound(entity, id string) error {
    return &NotFoundError{Entity: entity, ID: id}
}

// ForbiddenError is returned when the caller lacks a capability.
type ForbiddenError struct {
    Reason string
}

func (e *ForbiddenError) Error() string {
    return "forbidden: " + e.Reason
}

func NewForbidden(reason string) error {
    return &ForbiddenError{Reason: reason}
}

// ConflictError signals a concurrent or duplicate write.
type ConflictError struct {
    Message string
}

func (e *ConflictError) Error() string {
    return e.Message
}

func NewConflict(format string, args ...any) error {
    return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// TransitionError is returned when a status change is not allowed. Unmet
// lists every precondition that failed so the caller can fix all of them.
type TransitionError struct {
    Axis  string
    From  string
    To    string
    Unmet []string
}

func (e *TransitionError) Error() string {
    msg := fmt.Sprintf("cannot move %s from %q to %q", e.Axis, e.From, e.To)
    if len(e.Unmet) > 0 {
        msg += ": " + strings.Join(e.Unmet, "; ")
    }
    return msg
}

func NewTransition(axis, from, to string, unmet ...string) error {
    return &TransitionError{Axis: axis, From: from, To: to, Unmet: unmet}
}

// MissingIntermediaryOutputsError blocks asset generation until the hook and
// offer headline exist.
type MissingIntermediaryOutputsError struct {
    ExecutionID string
    Missing     []string
}

func (e *MissingIntermediaryOutputsError) Error() string {
    return fmt.Sprintf("execution %s has incomplete intermediary outputs (missing %s)",
        e.ExecutionID, strings.Join(e.Missing, ", "))
}

func NewMissingIntermediaryOutputs(executionID string, missing ...string) error {
    return &MissingIntermediaryOutputsError{ExecutionID: executionID, Missing: missing}
}

// UpstreamProvisioningError wraps an agent platform rejection. Detail holds
// whatever the platform said so an operator can decide how to retry.
type UpstreamProvisioningError struct {
    Operation  string
    StatusCode int
    Detail     string
    Err        error
}

func (e *UpstreamProvisioningError) Error() string {
    if e.StatusCode > 0 {
        return fmt.Sprintf("%s failed upstream (%d): %s", e.Operation, e.StatusCode, e.Detail)
    }
    return fmt.Sprintf("%s failed upstream: %s", e.Operation, e.Detail)
}

func (e *UpstreamProvisioningError) Unwrap() error { return e.Err }

func NewUpstreamProvisioning(operation string, statusCode int, detail string, err error) error {
    return &UpstreamProvisioningError{Operation: operation, StatusCode: statusCode, Detail: detail, Err: err}
}
