package bind

import (
	"context"
	"net/http"

	"golang.org/x/time/rate"
)

// Guard authorizes a connection against a handler's merged configuration.
// Guards from every layer run in root→leaf order before any parameter is
// extracted or dependency resolved.
type Guard func(ctx context.Context, conn Connection, reg *Registration) error

// RequireSecurity returns a guard that rejects handlers whose merged
// security requirements do not include the given scheme. Useful for wiring
// an external authenticator by scheme name.
func RequireSecurity(scheme string, authorize func(ctx context.Context, conn Connection) error) Guard {
	return func(ctx context.Context, conn Connection, reg *Registration) error {
		for _, s := range reg.Security() {
			if s == scheme {
				return authorize(ctx, conn)
			}
		}
		return nil
	}
}

// RateLimitGuard returns a guard that applies token-bucket rate limiting
// across all requests reaching the layers it is attached to. Rejected
// requests fail with 429 before any resource is acquired.
func RateLimitGuard(limit rate.Limit, burst int) Guard {
	limiter := rate.NewLimiter(limit, burst)
	return func(_ context.Context, _ Connection, _ *Registration) error {
		if !limiter.Allow() {
			return Error(http.StatusTooManyRequests, "rate limit exceeded")
		}
		return nil
	}
}
