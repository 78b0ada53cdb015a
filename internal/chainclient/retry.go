package chainclient

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ava-labs/record-indexer/pkg/metrics"
	"github.com/ava-labs/record-indexer/pkg/types"
)

// DefaultRetryBackoff is the pause between attempts of a failed range query.
const DefaultRetryBackoff = 2 * time.Second

// RetryPolicy retries transient failures with a fixed backoff.
type RetryPolicy struct {
	Backoff     time.Duration // pause between attempts
	MaxAttempts int           // 0 means retry until success or cancellation
	// Sleep waits for d or until ctx is done. Defaults to a timer-based sleep;
	// tests replace it to avoid real waiting.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy retries forever every DefaultRetryBackoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Backoff: DefaultRetryBackoff}
}

// Do runs fn until it succeeds, returns a permanent error, or MaxAttempts is
// reached. onRetry is called before every pause with the failed attempt number
// (starting at 1) and its error.
func (p RetryPolicy) Do(
	ctx context.Context,
	fn func(ctx context.Context) error,
	onRetry func(attempt int, err error),
) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if IsPermanent(err) || ctx.Err() != nil {
			return err
		}
		if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
			return fmt.Errorf("giving up after %d attempts: %w", attempt, err)
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}
		if err := sleep(ctx, p.Backoff); err != nil {
			return err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type retryingSource struct {
	src     EventSource
	policy  RetryPolicy
	log     *zap.SugaredLogger
	metrics *metrics.Metrics
}

var _ EventSource = (*retryingSource)(nil)

// WithRetry wraps src so that BlockTimestamp and QueryEvents retry transient
// failures according to policy. Head is not retried: failing to reach the node
// before the scan starts is treated as a connection failure. m may be nil.
func WithRetry(src EventSource, policy RetryPolicy, log *zap.SugaredLogger, m *metrics.Metrics) EventSource {
	return &retryingSource{src: src, policy: policy, log: log, metrics: m}
}

func (r *retryingSource) Head(ctx context.Context) (uint64, error) {
	return r.src.Head(ctx)
}

func (r *retryingSource) BlockTimestamp(ctx context.Context, height uint64) (uint64, bool, error) {
	var (
		ts    uint64
		found bool
	)
	err := r.policy.Do(ctx, func(ctx context.Context) error {
		var err error
		ts, found, err = r.src.BlockTimestamp(ctx, height)
		return err
	}, func(attempt int, err error) {
		r.metrics.IncRetry("block_timestamp")
		r.log.Warnw("block timestamp lookup failed, retrying",
			"height", height,
			"attempt", attempt,
			"backoff", r.policy.Backoff,
			"error", err,
		)
	})
	if err != nil {
		return 0, false, fmt.Errorf("block timestamp %d: %w", height, err)
	}
	return ts, found, nil
}

func (r *retryingSource) QueryEvents(ctx context.Context, from, to uint64) ([]types.Record, error) {
	var records []types.Record
	err := r.policy.Do(ctx, func(ctx context.Context) error {
		var err error
		records, err = r.src.QueryEvents(ctx, from, to)
		return err
	}, func(attempt int, err error) {
		r.metrics.IncRetry("query_events")
		r.log.Warnw("range query failed, retrying same range",
			"from", from,
			"to", to,
			"attempt", attempt,
			"backoff", r.policy.Backoff,
			"error", err,
		)
	})
	if err != nil {
		return nil, fmt.Errorf("query events [%d, %d]: %w", from, to, err)
	}
	return records, nil
}
