package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Application-specific errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// MultiError represents multiple errors
type MultiError struct {
	Errors []error `json:"errors"`
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%s (and %d more errors)", e.Errors[0].Error(), len(e.Errors)-1)
}

// Add adds an error to the MultiError
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// Unwrap exposes the collected errors to errors.Is and errors.As
func (e MultiError) Unwrap() []error {
	return e.Errors
}

// HasErrors returns true if there are any errors
func (e *MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// DatabaseError represents a database-related error
type DatabaseError struct {
	Operation string
	Err       error
}

func (e DatabaseError) Error() string {
	return fmt.Sprintf("database error during %s: %v", e.Operation, e.Err)
}

func (e DatabaseError) Unwrap() error {
	return e.Err
}

// PipelineError represents a pipeline-related error
type PipelineError struct {
	Source string
	Stage  string
	Err    error
}

func (e PipelineError) Error() string {
	return fmt.Sprintf("pipeline error in %s at stage %s: %v", e.Source, e.Stage, e.Err)
}

func (e PipelineError) Unwrap() error {
	return e.Err
}

// AmbiguousTimeOfDayError is returned when a time of day without am/pm cannot
// be pinned to a single instant near the posting time.
type AmbiguousTimeOfDayError struct {
	Hour       int           `json:"hour"`
	Minute     int           `json:"minute"`
	PostedAt   time.Time     `json:"posted_at"`
	Window     time.Duration `json:"window"`
	Candidates []time.Time   `json:"candidates"`
}

func (e *AmbiguousTimeOfDayError) Error() string {
	cands := make([]string, len(e.Candidates))
	for i, c := range e.Candidates {
		cands[i] = c.Format(time.RFC3339)
	}
	return fmt.Sprintf("ambiguous time of day %d:%02d posted at %s: no candidate within %s of [%s]",
		e.Hour, e.Minute, e.PostedAt.Format(time.RFC3339), e.Window, strings.Join(cands, ", "))
}

// InvalidTimeOfDayError is returned for hour or minute values outside the clock.
type InvalidTimeOfDayError struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

func (e *InvalidTimeOfDayError) Error() string {
	return fmt.Sprintf("invalid time of day %d:%02d", e.Hour, e.Minute)
}

// UnrecognizedMessageError marks a message that matched no known template.
type UnrecognizedMessageError struct {
	MessageID uint64 `json:"message_id"`
	Text      string `json:"text"`
}

func (e *UnrecognizedMessageError) Error() string {
	return fmt.Sprintf("unrecognized message template (id %d): %q", e.MessageID, e.Text)
}

// CatalogError signals that a template and its field parser disagree.
// It is never recoverable: the catalog itself must be fixed.
type CatalogError struct {
	Category string
	Field    string
	Err      error
}

func (e *CatalogError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("catalog template %s: field %s: %v", e.Category, e.Field, e.Err)
	}
	return fmt.Sprintf("catalog template %s: field %s", e.Category, e.Field)
}

func (e *CatalogError) Unwrap() error {
	return e.Err
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool { return errors.As(err, target) }
