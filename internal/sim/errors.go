package sim

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidInput is the kind of every InputError.
	ErrInvalidInput = errors.New("invalid simulation input")
	// ErrTrialPanic marks a run aborted by a panic inside the trial loop.
	ErrTrialPanic = errors.New("simulation trial panicked")
)

// InputError lists every malformed field found before any trial runs.
type InputError struct {
	Problems []string
}

func (e *InputError) Error() string {
	return "simulation input: " + strings.Join(e.Problems, "; ")
}

func (e *InputError) Unwrap() error { return ErrInvalidInput }
