package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyResponse is returned when a provider replies without text
	ErrEmptyResponse = errors.New("empty response from model")
	// ErrNoJSON is returned when a reply contains no parseable JSON object
	ErrNoJSON = errors.New("no JSON object in model reply")
)

// Error describes a failed provider call
type Error struct {
	Provider  string
	Operation string
	Code      string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s %s failed (%s): %v", e.Provider, e.Operation, e.Code, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Provider, e.Operation, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
