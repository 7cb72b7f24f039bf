package bulk

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/teemow/zoombulk/internal/directory"
	"github.com/teemow/zoombulk/internal/oauth"
	"github.com/teemow/zoombulk/internal/zoom"
)

// Kind classifies why a row failed.
type Kind string

// Failure kinds.
const (
	KindAuth       Kind = "auth"
	KindAPI        Kind = "api"
	KindResolution Kind = "resolution"
	KindValidation Kind = "validation"
	KindCanceled   Kind = "canceled"
	KindUnknown    Kind = "unknown"
)

// ErrValidation is matched by every ValidationError.
var ErrValidation = errors.New("invalid row")

// ValidationError reports a row that is missing required parameters after
// normalization. The row is never sent to the API.
type ValidationError struct {
	Row     int
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("row %d: missing required parameters: %s", e.Row, strings.Join(e.Missing, ", "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Classify maps an error to its failure kind.
func Classify(err error) Kind {
	var (
		resErr *directory.ResolutionError
		apiErr *zoom.APIError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, oauth.ErrAuth):
		return KindAuth
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.As(err, &resErr):
		return KindResolution
	case errors.As(err, &apiErr):
		return KindAPI
	default:
		return KindUnknown
	}
}
