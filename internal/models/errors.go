package models

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadySubmitted is returned when a task was already submitted once
	ErrAlreadySubmitted = errors.New("response already submitted")

	// ErrNotFound is returned when a candidate has no stored responses
	ErrNotFound = errors.New("no responses found")

	// ErrMalformedEvaluatorResponse is returned when the evaluator reply has no usable payload
	ErrMalformedEvaluatorResponse = errors.New("malformed evaluator response")
)

// ValidationError reports caller-supplied data that failed a required-field or shape check
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("invalid field %s", e.Field)
}

// PersistenceError reports a store that is unreachable or refused a write
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// EvaluatorError reports a failed or unusable call to the evaluator
type EvaluatorError struct {
	Err error
}

func (e *EvaluatorError) Error() string {
	return fmt.Sprintf("evaluator failure: %v", e.Err)
}

func (e *EvaluatorError) Unwrap() error { return e.Err }

// MailError reports a failed email send
type MailError struct {
	Err error
}

func (e *MailError) Error() string {
	return fmt.Sprintf("mail failure: %v", e.Err)
}

func (e *MailError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
