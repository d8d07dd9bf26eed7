package oidc

import (
	"errors"
	"fmt"
)

// ErrInvalidState signals an anti-forgery failure: the callback carried a
// state value that was never issued, does not match the pending attempt, or
// was already consumed. Treated as a failed login, never surfaced raw.
var ErrInvalidState = errors.New("oidc: invalid or expired login state")

// DiscoveryError wraps a failure to discover provider metadata. Fatal at
// startup after retries are exhausted.
type DiscoveryError struct {
	Issuer string
	Err    error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("oidc: discovery against %s failed: %v", e.Issuer, e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// ExchangeError wraps a provider or network failure during the code
// exchange or claim verification. Callers redirect back to login rather
// than exposing the underlying error.
type ExchangeError struct {
	Stage string
	Err   error
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("oidc: %s failed: %v", e.Stage, e.Err)
}

func (e *ExchangeError) Unwrap() error {
	return e.Err
}
