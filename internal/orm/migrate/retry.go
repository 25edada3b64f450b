package migrate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/conduit-lang/jsonview/internal/orm/codegen"
)

const (
	// DefaultMaxAttempts is the default number of attempts for ApplyWithRetry.
	// A single attempt keeps retrying opt-in.
	DefaultMaxAttempts = 1
	// DefaultBaseBackoff is the delay before the second attempt; it doubles after each retry
	DefaultBaseBackoff = 100 * time.Millisecond
)

// ErrTimeout is returned when a plan does not finish within RetryConfig.Timeout
var ErrTimeout = errors.New("apply timed out")

// RetryConfig configures ApplyWithRetry
type RetryConfig struct {
	MaxAttempts int
	BaseBackoff time.Duration
	// Timeout bounds every attempt and backoff together. Zero means no limit.
	Timeout time.Duration
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: DefaultMaxAttempts,
		BaseBackoff: DefaultBaseBackoff,
	}
}

// ApplyWithRetry applies the plan and reruns it from the start when the
// transaction was aborted by a deadlock, serialization failure or lock
// timeout. Other failures are returned immediately. When every attempt fails
// the last *DatabaseError is returned unchanged.
func (e *Executor) ApplyWithRetry(ctx context.Context, plan *codegen.Plan, cfg RetryConfig) (*Result, error) {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, e.contextError(err, cfg, lastErr)
		}

		result, err := e.Apply(ctx, plan)
		if err == nil {
			return result, nil
		}
		if !IsRetryable(err) {
			if ctx.Err() != nil {
				return nil, e.contextError(ctx.Err(), cfg, err)
			}
			return nil, err
		}

		lastErr = err
		if attempt == cfg.MaxAttempts-1 {
			break
		}

		backoff := cfg.BaseBackoff * time.Duration(1<<uint(attempt))
		e.logger.Warn("retrying plan",
			zap.String("view", plan.View.Name),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return nil, e.contextError(ctx.Err(), cfg, lastErr)
		case <-time.After(backoff):
		}
	}

	e.logger.Warn("giving up on plan",
		zap.String("view", plan.View.Name),
		zap.Int("attempts", cfg.MaxAttempts),
	)
	return nil, lastErr
}

func (e *Executor) contextError(ctxErr error, cfg RetryConfig, lastErr error) error {
	if errors.Is(ctxErr, context.DeadlineExceeded) && cfg.Timeout > 0 {
		if lastErr != nil {
			return fmt.Errorf("%w after %v: %w", ErrTimeout, cfg.Timeout, lastErr)
		}
		return fmt.Errorf("%w after %v", ErrTimeout, cfg.Timeout)
	}
	if lastErr != nil {
		return fmt.Errorf("%w: %w", ctxErr, lastErr)
	}
	return ctxErr
}
