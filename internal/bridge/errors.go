package bridge

import (
	"errors"
	"fmt"
)

// Kind classifies why a run failed.
type Kind string

const (
	KindInvalidRequest  Kind = "invalid_request"
	KindSubmission      Kind = "submission_error"
	KindChannel         Kind = "channel_error"
	KindExecution       Kind = "execution_error"
	KindTimeout         Kind = "timeout"
	KindHistoryNotFound Kind = "history_not_found"
	KindFetch           Kind = "fetch_error"
	KindMaterialize     Kind = "materialize_error"
	KindInternal        Kind = "internal_error"
)

// Error is the error type returned by every stage of a run.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// InvalidRequest builds a KindInvalidRequest error for inbound validation.
func InvalidRequest(format string, args ...any) error {
	return newError(KindInvalidRequest, "validate", fmt.Errorf(format, args...))
}
