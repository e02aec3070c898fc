package util

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/mangrove-ai/mangrove/pkg/logger"
)

// RetryPolicy bounds a retry loop. Classify decides whether a failure
// is worth another attempt; when nil every failure is retried up to the
// attempt ceiling.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Classify    func(error) bool
	Operation   string
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 200 * time.Millisecond
	}
	if p.Operation == "" {
		p.Operation = "operation"
	}
	return p
}

// RetryTransient runs fn until it succeeds, the failure classifies as
// permanent, or the attempt ceiling is reached. Waits between attempts
// grow exponentially from BaseDelay with up to 50% random jitter.
//
// Every retry and every exhaustion is logged with the operation name,
// attempt number, and ceiling; success after a retry is logged
// distinctly.
func RetryTransient(ctx context.Context, policy RetryPolicy, fn func(context.Context) error) error {
	p := policy.normalized()

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info("retry succeeded",
					"operation", p.Operation,
					"attempt", attempt,
					"max_attempts", p.MaxAttempts,
				)
			}
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		lastErr = err

		if p.Classify != nil && !p.Classify(err) {
			logger.Debug("permanent failure, not retrying",
				"operation", p.Operation,
				"attempt", attempt,
				"err", err,
			)
			return err
		}
		if attempt == p.MaxAttempts {
			break
		}

		logger.Warn("transient failure, retrying",
			"operation", p.Operation,
			"attempt", attempt,
			"max_attempts", p.MaxAttempts,
			"error_type", fmt.Sprintf("%T", err),
			"err", err,
		)
		if err := sleepBackoff(ctx, p.BaseDelay, attempt); err != nil {
			return err
		}
	}

	logger.Error("retries exhausted",
		"operation", p.Operation,
		"max_attempts", p.MaxAttempts,
		"err", lastErr,
	)
	return lastErr
}

// RetryTransientValue is RetryTransient for functions returning a value.
func RetryTransientValue[T any](ctx context.Context, policy RetryPolicy, fn func(context.Context) (T, error)) (T, error) {
	var result T
	err := RetryTransient(ctx, policy, func(ctx context.Context) error {
		var innerErr error
		result, innerErr = fn(ctx)
		return innerErr
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// sleepBackoff waits baseDelay * 2^(attempt-1) plus up to 50% jitter,
// or until ctx is done.
func sleepBackoff(ctx context.Context, baseDelay time.Duration, attempt int) error {
	d := baseDelay << (attempt - 1)
	d += time.Duration(rand.Int64N(int64(d)/2 + 1))

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
