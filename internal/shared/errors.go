package shared

import (
	"fmt"
	"time"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Token and connection errors
	ErrTokenExpired        = fmt.Errorf("access token expired")
	ErrRefreshFailed       = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken      = fmt.Errorf("no refresh token available")
	ErrServiceNotConnected = fmt.Errorf("music service not connected")

	// Provider errors
	ErrProviderUnavailable = fmt.Errorf("provider unavailable")
	ErrRateLimited         = fmt.Errorf("provider rate limited")
	ErrPartialWrite        = fmt.Errorf("partial provider write")
	ErrUnknownProvider     = fmt.Errorf("unknown provider")

	// Entity errors
	ErrPlaylistNotFound     = fmt.Errorf("playlist not found")
	ErrSongNotFound         = fmt.Errorf("song not found")
	ErrUserNotFound         = fmt.Errorf("user not found")
	ErrJobNotFound          = fmt.Errorf("job not found")
	ErrNotificationNotFound = fmt.Errorf("notification not found")
	ErrForbidden            = fmt.Errorf("access denied")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// RateLimitedError carries the provider's retry-after hint for a 429 response.
// Unwraps to ErrRateLimited.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("provider rate limited: retry after %s", e.RetryAfter)
}

func (e *RateLimitedError) Unwrap() error { return ErrRateLimited }

// PartialWriteError reports a batched provider write that failed midway.
// Added counts the songs confirmed written before the failing batch.
// Unwraps to ErrPartialWrite.
type PartialWriteError struct {
	Added int
	Cause error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("partial provider write: %d songs added before failure: %v", e.Added, e.Cause)
}

func (e *PartialWriteError) Unwrap() error { return ErrPartialWrite }
