// Package ratelimit throttles sector I/O against a block device the way
// the teacher's internal/ratelimit throttles GCS object reads: a
// golang.org/x/time/rate token bucket gates how many bytes (here, SectorSize
// bytes per sector) may be admitted per unit time, and ThrottledReader wraps an io.Reader so
// the limit applies transparently to callers that just want to read.
package ratelimit

import (
	"context"
	"fmt"
	"io"
	"time"

	"golang.org/x/time/rate"
)

// Throttle gates admission of tokens (bytes, sectors, whatever the caller's
// unit is) at a steady rate, with Capacity bounding the largest single
// request the underlying bucket can ever satisfy.
type Throttle interface {
	// Capacity returns the bucket's burst size: the most tokens a single
	// Wait call can ever be granted.
	Capacity() uint64

	// Wait blocks until tokens have been admitted, or ctx is done.
	Wait(ctx context.Context, tokens uint64) error
}

// tokenBucketThrottle implements Throttle over golang.org/x/time/rate.
type tokenBucketThrottle struct {
	limiter  *rate.Limiter
	capacity uint64
}

// NewThrottle returns a Throttle admitting tokens at rateHz per second, with
// a bucket depth of capacity tokens.
func NewThrottle(rateHz float64, capacity uint64) Throttle {
	return &tokenBucketThrottle{
		limiter:  rate.NewLimiter(rate.Limit(rateHz), int(capacity)),
		capacity: capacity,
	}
}

func (t *tokenBucketThrottle) Capacity() uint64 { return t.capacity }

func (t *tokenBucketThrottle) Wait(ctx context.Context, tokens uint64) error {
	return t.limiter.WaitN(ctx, int(tokens))
}

// limiterCapacityDivisor trades off burstiness against bucket size: a
// bucket capacity of rateHz*window.Seconds()/limiterCapacityDivisor lets
// the rate average out over roughly that many ticks of window without
// admitting a single oversized burst.
const limiterCapacityDivisor = 50

// ChooseLimiterCapacity picks a token-bucket depth for a limiter intended
// to enforce rateHz over a window of the given duration.
func ChooseLimiterCapacity(rateHz float64, window time.Duration) (uint64, error) {
	if rateHz <= 0 {
		return 0, fmt.Errorf("Illegal rate: %f", rateHz)
	}
	if window <= 0 {
		return 0, fmt.Errorf("Illegal window: %v", window)
	}

	capacityFloat := rateHz * window.Seconds() / limiterCapacityDivisor
	capacity := uint64(capacityFloat)
	if capacity == 0 {
		return 0, fmt.Errorf(
			"Can't use a token bucket to limit to %f Hz over a window of %v (result is a capacity of %f)",
			rateHz, window, capacityFloat)
	}

	return capacity, nil
}

// throttledReader wraps an io.Reader, asking throttle for permission before
// satisfying each Read, and never requesting more tokens than throttle's
// Capacity allows in one call.
type throttledReader struct {
	ctx      context.Context
	wrapped  io.Reader
	throttle Throttle
}

// ThrottledReader returns a reader that defers to wrapped for bytes but
// first waits on throttle for permission to read them. ctx bounds both the
// throttle wait and is otherwise unused.
func ThrottledReader(ctx context.Context, wrapped io.Reader, throttle Throttle) io.Reader {
	return &throttledReader{ctx: ctx, wrapped: wrapped, throttle: throttle}
}

func (tr *throttledReader) Read(p []byte) (n int, err error) {
	if cap := tr.throttle.Capacity(); uint64(len(p)) > cap {
		p = p[:cap]
	}

	if err = tr.throttle.Wait(tr.ctx, uint64(len(p))); err != nil {
		return 0, err
	}

	for n < len(p) {
		var nn int
		nn, err = tr.wrapped.Read(p[n:])
		n += nn
		if err != nil {
			break
		}
	}
	return n, err
}
