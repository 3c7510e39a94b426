package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Domain errors. Callers match them with errors.Is; services wrap them with
// detail using fmt.Errorf("%w: ...").
var (
	ErrNotFound                = errors.New("not found")
	ErrNotOwner                = errors.New("not owner")
	ErrForbidden               = errors.New("forbidden")
	ErrInvalidState            = errors.New("invalid state")
	ErrValidationFailed        = errors.New("validation failed")
	ErrAirspaceConflict        = errors.New("airspace conflict")
	ErrExpired                 = errors.New("expired")
	ErrOutOfWindow             = errors.New("out of window")
	ErrInsufficientTime        = errors.New("insufficient time")
	ErrAirspaceNoFly           = errors.New("airspace is no-fly")
	ErrAirspaceBusy            = errors.New("airspace busy")
	ErrDuplicateNumber         = errors.New("duplicate airspace number")
	ErrHasDependents           = errors.New("has dependents")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
)

// codes maps each domain error to its stable wire code.
var codes = []struct {
	err  error
	code string
}{
	{ErrNotFound, "not_found"},
	{ErrNotOwner, "not_owner"},
	{ErrForbidden, "forbidden"},
	{ErrInvalidState, "invalid_state"},
	{ErrValidationFailed, "validation_failed"},
	{ErrAirspaceConflict, "airspace_conflict"},
	{ErrExpired, "expired"},
	{ErrOutOfWindow, "out_of_window"},
	{ErrInsufficientTime, "insufficient_time"},
	{ErrAirspaceNoFly, "airspace_no_fly"},
	{ErrAirspaceBusy, "airspace_busy"},
	{ErrDuplicateNumber, "duplicate_number"},
	{ErrHasDependents, "has_dependents"},
	{ErrInvalidStatusTransition, "invalid_status_transition"},
}

// CodeInternal is reported for anything outside the domain taxonomy.
const CodeInternal = "internal"

// Code returns the stable code for err, or CodeInternal.
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}

// ValidationError carries per-field messages. It matches
// ErrValidationFailed under errors.Is.
type ValidationError struct {
	Fields map[string]string
}

// Error implements error.
func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(parts, "; "))
}

// Is makes errors.Is(err, ErrValidationFailed) hold.
func (e *ValidationError) Is(target error) bool { return target == ErrValidationFailed }

// validation accumulates field errors.
type validation map[string]string

func (v validation) add(field, msg string) {
	if _, ok := v[field]; !ok {
		v[field] = msg
	}
}

func (v validation) err() error {
	if len(v) == 0 {
		return nil
	}
	return &ValidationError{Fields: v}
}

func invalidField(field, msg string) error {
	return &ValidationError{Fields: map[string]string{field: msg}}
}
