package ratelimit

import "errors"

var (
	ErrInvalidLimit    = errors.New("ratelimit: invalid limit")
	ErrInvalidInterval = errors.New("ratelimit: invalid interval")
	ErrStoreRequired   = errors.New("ratelimit: store is required")
	ErrKeyRequired     = errors.New("ratelimit: key is required")
)
