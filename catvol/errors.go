package catvol

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// NotFoundError is returned when a dataset path, component, drawing, project, stack or
// skeleton does not exist.
type NotFoundError struct {
	What string
}

func (e NotFoundError) Error() string {
	return e.What + " not found"
}

// NotFound returns a NotFoundError describing the missing item.
func NotFound(format string, args ...interface{}) error {
	return NotFoundError{What: fmt.Sprintf(format, args...)}
}

// ValidationError is returned when a request is missing a required field or carries
// a malformed value.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return "invalid request: " + e.Reason
	}
	return fmt.Sprintf("invalid %q: %s", e.Field, e.Reason)
}

// Invalid returns a ValidationError for the given field.
func Invalid(field, format string, args ...interface{}) error {
	return ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// StorageError wraps a failure of the backing key-value or relational store.
type StorageError struct {
	Op  string
	Err error
}

func (e StorageError) Error() string {
	return fmt.Sprintf("storage error on %s: %v", e.Op, e.Err)
}

func (e StorageError) Unwrap() error {
	return e.Err
}

// StoreErr wraps err as a StorageError unless it is nil or already classified.
func StoreErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var nf NotFoundError
	var se StorageError
	if errors.As(err, &nf) || errors.As(err, &se) {
		return err
	}
	return StorageError{Op: op, Err: err}
}

// CycleSuspected is returned when walking a class instance hierarchy hits the
// maximum depth while parents remain.
type CycleSuspected struct {
	Start int64
	Depth int
}

func (e CycleSuspected) Error() string {
	return fmt.Sprintf("hierarchy above class instance %d exceeds %d levels, possible cycle", e.Start, e.Depth)
}

// ItemFailure is one failed element of a batch.
type ItemFailure struct {
	ID  int64
	Err error
}

// PartialFailure reports a batch in which some items failed while the rest were applied.
type PartialFailure struct {
	Succeeded int
	Failures  []ItemFailure
}

func (e *PartialFailure) Error() string {
	ids := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		ids[i] = fmt.Sprintf("%d (%v)", f.ID, f.Err)
	}
	return fmt.Sprintf("%d applied, %d failed: %s", e.Succeeded, len(e.Failures), strings.Join(ids, ", "))
}

// Add records a failure for the given item.
func (e *PartialFailure) Add(id int64, err error) {
	e.Failures = append(e.Failures, ItemFailure{ID: id, Err: err})
}

// Failed returns the failures keyed by item id, sorted for stable output.
func (e *PartialFailure) Failed() map[int64]string {
	out := make(map[int64]string, len(e.Failures))
	sort.Slice(e.Failures, func(i, j int) bool { return e.Failures[i].ID < e.Failures[j].ID })
	for _, f := range e.Failures {
		out[f.ID] = f.Err.Error()
	}
	return out
}

// OrNil returns nil when no item failed.
func (e *PartialFailure) OrNil() error {
	if e == nil || len(e.Failures) == 0 {
		return nil
	}
	return e
}

// IsNotFound returns true if err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}

// IsValidation returns true if err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}
