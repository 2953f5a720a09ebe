// Package limiter throttles login attempts per (username, client IP).
package limiter

import (
	"context"
	"time"
)

// Limiter tracks failed logins and blocks a pair that fails too often.
type Limiter interface {
	// Allow reports whether a login attempt may proceed; when blocked it also
	// returns how long until the next attempt is accepted.
	Allow(ctx context.Context, username string, ipHash []byte) (bool, time.Duration, error)

	// Success clears the failure counter after a correct password.
	Success(ctx context.Context, username string, ipHash []byte) error

	// Failure records a wrong password. The bool is true when this failure
	// tripped the block threshold.
	Failure(ctx context.Context, username string, ipHash []byte) (bool, time.Duration, error)
}
