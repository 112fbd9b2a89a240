package domain

import "github.com/pkg/errors"

var (
	// ErrSessionNotFound is returned when a quiz session has not been started.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrSessionClosed is returned when an event is sent to a session that was torn down.
	ErrSessionClosed = errors.New("quiz session closed")
	// ErrNoQuestions indicates the loader succeeded but produced no valid questions.
	ErrNoQuestions = errors.New("no questions found")
	// ErrInvalidChoice indicates an answer label outside A-D.
	ErrInvalidChoice = errors.New("invalid answer choice")
)
