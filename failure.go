package notifybox

import (
	"context"
	"errors"
)

// FailureAction defines how a failed record should be handled.
type FailureAction int

const (
	// FailureRetry consumes one attempt and re-arms the record.
	FailureRetry FailureAction = iota
	// FailureDead marks the record as non-retryable and dead-letters it immediately.
	FailureDead
)

// FailureClassifier decides whether a failure is retryable.
type FailureClassifier func(ctx context.Context, record Record, err error) FailureAction

// FailureHandler is called for every failed delivery attempt.
type FailureHandler func(ctx context.Context, record Record, err error)

func defaultFailureClassifier(_ context.Context, _ Record, err error) FailureAction {
	if IsPermanent(err) {
		return FailureDead
	}

	return FailureRetry
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string {
	return e.err.Error()
}

func (e *permanentError) Unwrap() error {
	return e.err
}

// Permanent marks err as terminal: the record is dead-lettered without further retries.
// Senders use it for failures such as an invalid recipient.
func Permanent(err error) error {
	if err == nil {
		return nil
	}

	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var target *permanentError

	return errors.As(err, &target)
}
