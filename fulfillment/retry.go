package fulfillment

import (
	"context"
	"sync"
	"time"

	"github.com/aluiziolira/go-ebook-batch/config"
)

// retryPolicy tracks attempts per request key for one Process call.
type retryPolicy struct {
	cfg     *config.Config
	metrics *Metrics

	mu           sync.Mutex
	attempts     map[string]int
	totalRetries int
}

func newRetryPolicy(cfg *config.Config, metrics *Metrics) *retryPolicy {
	return &retryPolicy{
		cfg:      cfg,
		metrics:  metrics,
		attempts: make(map[string]int),
	}
}

// Next claims another attempt for key and returns the delay to wait first.
// It returns false once MaxRetries attempts were used.
func (rp *retryPolicy) Next(key string) (time.Duration, bool) {
	if rp.cfg.MaxRetries == 0 {
		return 0, false
	}

	rp.mu.Lock()
	defer rp.mu.Unlock()

	attempt := rp.attempts[key]
	if attempt >= rp.cfg.MaxRetries {
		return 0, false
	}
	attempt++
	rp.attempts[key] = attempt
	rp.totalRetries++
	rp.metrics.IncRetries()

	return rp.backoff(attempt), true
}

func (rp *retryPolicy) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := rp.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if max := rp.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}

// TotalRetries returns the number of attempts claimed so far.
func (rp *retryPolicy) TotalRetries() int {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	return rp.totalRetries
}

// sleep waits for d or until ctx is done, reporting whether the full delay
// elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
