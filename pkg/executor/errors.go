package executor

import (
	"errors"
	"fmt"
)

// ErrorClass classifies a failed provider query.
type ErrorClass string

const (
	// ClassTimeout means the call exceeded the per-call deadline.
	// Timeouts are terminal for the enclosing window; they are never
	// retried automatically.
	ClassTimeout ErrorClass = "timeout"

	// ClassProtocol means the provider returned something that is not
	// well-formed JSON.
	ClassProtocol ErrorClass = "protocol"

	// ClassUpstream means the provider call itself failed (non-zero
	// exit, explicit error payload, transport failure).
	ClassUpstream ErrorClass = "upstream"
)

// QueryError is a failed query with its classification and signature.
type QueryError struct {
	Class     ErrorClass
	Signature string
	Err       error
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error for query %q: %v", e.Class, e.Signature, e.Err)
	}
	return fmt.Sprintf("%s error for query %q", e.Class, e.Signature)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// ClassOf returns the classification of err, or "" for errors that did
// not originate from a query.
func ClassOf(err error) ErrorClass {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Class
	}
	return ""
}
