package utils

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedIndex means the conversation index could not be decoded.
	ErrMalformedIndex = errors.New("malformed conversation index")
	// ErrAuthMismatch means a notification's clientState did not match the registered secret.
	ErrAuthMismatch = errors.New("client state mismatch")
	// ErrIncompleteMessage means the provider response lacked a required field.
	ErrIncompleteMessage = errors.New("incomplete message")
	// ErrUpstreamFailure covers any failed remote call: credential store, Graph, topic or record store.
	ErrUpstreamFailure = errors.New("upstream failure")
)

// Upstream tags err as an ErrUpstreamFailure while keeping the original in the chain.
func Upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUpstreamFailure) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUpstreamFailure, err)
}

// Incomplete reports a missing required field.
func Incomplete(field string) error {
	return fmt.Errorf("%w: %s is missing", ErrIncompleteMessage, field)
}
