package ratelimit

import "context"

// RateLimiter bounds outbound send throughput for a named scope.
// The dispatch loop's fixed inter-send sleep only paces a single
// invocation; a shared limiter is what keeps overlapping invocations
// from together exceeding the provider ceiling.
type RateLimiter interface {
	Allow(ctx context.Context, scope string) (bool, error)
	Wait(ctx context.Context, scope string) error
}
