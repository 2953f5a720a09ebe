// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates failed authentication.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the acting identity lacks permission for the action.
	ErrForbidden = errors.New("forbidden")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., username taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrValidation indicates malformed or inconsistent input.
	ErrValidation = errors.New("validation")

	// ErrToolchainUnavailable indicates the Java compiler is absent from the runtime
	// environment. Distinct from a compile diagnostic: non-retryable configuration error.
	ErrToolchainUnavailable = errors.New("toolchain unavailable")
)
