package directory

import (
	"errors"
	"fmt"
)

// ErrNotFound is matched when an email has no user in the directory.
var ErrNotFound = errors.New("user not found")

// ResolutionError reports that an email could not be mapped to a user ID.
// Its message carries the plaintext address so the bulk report can name the
// host; log it through logging.UserHash instead.
type ResolutionError struct {
	Email string
	// Err is the cause when the directory could not be read. It is nil when
	// the directory was read and has no such user.
	Err error
}

func (e *ResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to resolve user %s: %v", e.Email, e.Err)
	}
	return fmt.Sprintf("no user with email %s in the directory", e.Email)
}

func (e *ResolutionError) Unwrap() error {
	if e.Err == nil {
		return ErrNotFound
	}
	return e.Err
}
