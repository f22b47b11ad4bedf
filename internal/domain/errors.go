package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEmptyCredentials is returned when joining without a name or quiz id.
	ErrEmptyCredentials = errors.New("participant name and quiz id are required")
	// ErrNoQuestions indicates the quiz service returned an empty question set.
	ErrNoQuestions = errors.New("quiz has no questions")
	// ErrInvalidTransition is returned when an operation is called in the wrong state.
	ErrInvalidTransition = errors.New("operation not valid in current session state")
	// ErrAlreadySubmitted is returned when answers are changed after submission.
	ErrAlreadySubmitted = errors.New("answers already submitted")
	// ErrAttemptsExhausted indicates the generation attempt limit was reached.
	ErrAttemptsExhausted = errors.New("generation attempt limit reached")
)

// JoinError wraps any failure to enter a quiz session: bad credentials,
// an inactive session, an empty question set, or a failed network call.
type JoinError struct {
	Err error
}

func (e *JoinError) Error() string { return "join quiz: " + e.Err.Error() }
func (e *JoinError) Unwrap() error { return e.Err }

// SubmissionError wraps a failed final-result post. The session stays in
// Submitting so the caller may retry; nothing retries automatically.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string { return "submit result: " + e.Err.Error() }
func (e *SubmissionError) Unwrap() error { return e.Err }

// GenerationError wraps a failed or malformed quiz-generation call.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string { return "generate quiz: " + e.Err.Error() }
func (e *GenerationError) Unwrap() error { return e.Err }

// CooldownError reports an active rate-limit cooldown and how long it lasts.
type CooldownError struct {
	RetryAfter time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("generation rate limited, retry in %s", e.RetryAfter.Round(time.Second))
}
