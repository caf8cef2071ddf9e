package application

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when the acting principal lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a record with the same identity already exists.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrInvalidCredentials is returned when login credentials or session tokens are rejected.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
	// ErrSessionExpired is returned when a session token is past its expiry.
	ErrSessionExpired = errors.New("application: session expired")
	// ErrAccessUndetermined is returned when the caller's identity or role cannot be resolved.
	ErrAccessUndetermined = errors.New("application: cannot determine access")
	// ErrCapacityExceeded is returned when a room has no free bed for another worker.
	ErrCapacityExceeded = errors.New("application: room capacity exceeded")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver, prefixing field names.
func (v *ValidationError) merge(prefix string, other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(prefix+field, msg)
	}
}

// CollectionError reports that a single camp's statistics could not be collected.
// It is absorbed by the aggregator and only surfaces as a failure count.
type CollectionError struct {
	CampID  string
	Timeout bool
	Err     error
}

func (e *CollectionError) Error() string {
	if e == nil {
		return ""
	}
	if e.Timeout {
		return fmt.Sprintf("collect camp %s: timed out: %v", e.CampID, e.Err)
	}
	return fmt.Sprintf("collect camp %s: %v", e.CampID, e.Err)
}

func (e *CollectionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ScopeError reports a malformed principal. Visibility resolution fails closed on it.
type ScopeError struct {
	Reason string
}

func (e *ScopeError) Error() string {
	if e == nil {
		return ""
	}
	return "scope: " + e.Reason
}

// InvalidationError reports that the cache entries affected by a mutation could
// not be fully determined. The mutation itself has already succeeded.
type InvalidationError struct {
	Trigger string
	CampID  string
	Site    string
	Err     error
}

func (e *InvalidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.CampID == "" && e.Site != "" {
		return fmt.Sprintf("invalidate after %s of site %s: %v", e.Trigger, e.Site, e.Err)
	}
	return fmt.Sprintf("invalidate after %s of camp %s: %v", e.Trigger, e.CampID, e.Err)
}

func (e *InvalidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
