package oauth

import (
	"errors"
	"fmt"
)

// ErrAuth is matched by every AuthError.
var ErrAuth = errors.New("zoom authentication failed")

// AuthError reports a failed credential exchange. It is fatal to any
// operation that needs a token.
type AuthError struct {
	AccountID string
	Err       error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("failed to obtain access token for account %s: %v", e.AccountID, e.Err)
}

// Unwrap exposes both ErrAuth and the underlying cause.
func (e *AuthError) Unwrap() []error {
	return []error{ErrAuth, e.Err}
}

// IsAuthError reports whether err is or wraps an AuthError.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuth)
}
