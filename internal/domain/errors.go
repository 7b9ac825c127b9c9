package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrInactiveAccount = errors.New("account is not active")
	ErrSessionClosed   = errors.New("session closed")
	ErrTurnInFlight    = errors.New("a turn is already in flight for this session")
	ErrEmptyContext    = errors.New("no usable context items")
	ErrInvalidInput    = errors.New("invalid input")
	ErrTrainingRunning = errors.New("a training run is already in progress")
)

// SynthesisError is returned when profile synthesis exhausted its retries.
type SynthesisError struct {
	Attempts int
	Err      error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("synthesis failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// PersistenceError wraps a save/load failure of the persistence gateway.
type PersistenceError struct {
	Op    string
	Token Token
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s (token %s): %v", e.Op, e.Token.Short(), e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
