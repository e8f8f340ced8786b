package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrForbidden indicates the governed action was blocked.
	ErrForbidden = errors.New("forbidden")
	// ErrRateLimited indicates the per-user export quota is exhausted.
	ErrRateLimited = errors.New("rate limit exceeded")
)
