package cache

import "errors"

// Errors returned by the contract layer before any backend call is made.
// Callers should match them with errors.Is; the returned errors carry detail.
var (
	ErrInvalidArgument = errors.New("cache: invalid argument")
	ErrInvalidKey      = errors.New("cache: invalid key")
	ErrInvalidTTL      = errors.New("cache: invalid ttl")
)
