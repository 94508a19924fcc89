package repository

import (
	"errors"
)

// Typed provider errors. Callers branch on these to decide between retrying,
// skipping, and failing the operation.
var (
	ErrUnreachable   = errors.New("provider unreachable")
	ErrAuthFailed    = errors.New("provider authentication failed")
	ErrEmptyResponse = errors.New("provider returned empty response")
	ErrParse         = errors.New("provider response parse failure")
)
