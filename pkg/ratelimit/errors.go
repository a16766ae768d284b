package ratelimit

import "errors"

var (
	ErrKeyRequired   = errors.New("key is required")
	ErrInvalidLimit  = errors.New("invalid limit")
	ErrInvalidWindow = errors.New("invalid window")
	ErrStoreRequired = errors.New("store is required")
)
