package labelstore

import (
	"context"
	"errors"
	"fmt"

	graphql "github.com/hasura/go-graphql-client"
)

// Error represents a failure reported by the annotation store or its
// transport. StatusCode is 0 for transport-level failures where no HTTP
// status was observed.
type Error struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("labelstore: %s (status: %d)", e.Message, e.StatusCode)
	}
	return fmt.Sprintf("labelstore: %s", e.Message)
}

// IsRetryable returns true if the error might be resolved by retrying
func (e *Error) IsRetryable() bool {
	return e.StatusCode == 0 || e.StatusCode >= 500 || e.StatusCode == 429
}

// IsAuth returns true if the error is related to authentication
func (e *Error) IsAuth() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}

// IsNotFound returns true if the requested resource does not exist
func (e *Error) IsNotFound() bool {
	return e.StatusCode == 404
}

// AsStoreError checks if an error is a store error
func AsStoreError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// classify maps raw client errors to *Error. GraphQL-level errors come back
// with a 200 transport status and are never retryable; everything else is
// treated as a transport failure.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	var gqlErrs graphql.Errors
	if errors.As(err, &gqlErrs) {
		for _, gqlErr := range gqlErrs {
			if code, ok := gqlErr.Extensions["code"].(string); ok && (code == "request_error" || code == "network_error") {
				return &Error{StatusCode: 0, Message: gqlErr.Message}
			}
		}
		return &Error{StatusCode: 422, Message: gqlErrs.Error()}
	}
	return &Error{StatusCode: 0, Message: err.Error()}
}
