package oauth

import (
	"errors"
	"fmt"
)

// AuthFailure names the specific way an authorization attempt failed.
type AuthFailure string

const (
	// FailureStateMismatch means the callback carried a state value
	// that does not match the one sent.
	FailureStateMismatch AuthFailure = "state mismatch"

	// FailureDenied means the provider reported an error, typically
	// because the user declined consent.
	FailureDenied AuthFailure = "authorization denied"

	// FailureMissingCode means the callback carried no authorization
	// code.
	FailureMissingCode AuthFailure = "missing authorization code"
)

// AuthorizationError is fatal to one authorization attempt; the user
// must restart sign-in. Detail never contains codes or tokens.
type AuthorizationError struct {
	Reason AuthFailure
	Detail string
}

func (e *AuthorizationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("authorization failed: %s", e.Reason)
	}
	return fmt.Sprintf("authorization failed: %s (%s)", e.Reason, e.Detail)
}

// IsAuthorizationError reports whether err (or any error in its chain)
// is an AuthorizationError.
func IsAuthorizationError(err error) bool {
	var authErr *AuthorizationError
	return errors.As(err, &authErr)
}

// TokenExchangeError is a non-2xx response from a token or refresh
// endpoint. Body is the raw response body for diagnosis; providers do
// not echo credentials there.
type TokenExchangeError struct {
	Status int
	Body   string
}

func (e *TokenExchangeError) Error() string {
	return fmt.Sprintf("token endpoint returned status %d: %s", e.Status, e.Body)
}

// IsTokenExchangeError reports whether err (or any error in its chain)
// is a TokenExchangeError.
func IsTokenExchangeError(err error) bool {
	var exErr *TokenExchangeError
	return errors.As(err, &exErr)
}
