package models

import (
	"errors"
	"strings"
)

var (
	// ErrMissingPrecondition marks a run requested before its inputs were supplied.
	ErrMissingPrecondition = errors.New("missing precondition")
	// ErrInvalidConfiguration marks a run rejected at construction time.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// MissingPreconditionError lists every required value that was not supplied
type MissingPreconditionError struct {
	Missing []string
}

func (e *MissingPreconditionError) Error() string {
	return "missing required values: " + strings.Join(e.Missing, ", ") +
		" (supply them before requesting a calibration run)"
}

func (e *MissingPreconditionError) Unwrap() error {
	return ErrMissingPrecondition
}

// ConfigError describes a single rejected configuration field
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return "invalid " + e.Field + ": " + e.Reason
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfiguration
}
