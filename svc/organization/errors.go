package organization

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound              = errors.New("organization not found")
	ErrConflict              = errors.New("organization conflict")
	ErrInvalidCredential     = errors.New("invalid credential")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrConnectionUnavailable = errors.New("tenant connection unavailable")
	ErrValidation            = errors.New("validation failed")
)

func errConflict(reason string) error {
	return fmt.Errorf("%w: %s", ErrConflict, reason)
}
