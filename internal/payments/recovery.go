package payments

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// RecoveryPolicy bounds automatic resubmission after a failed payment.
// Attempt counts are keyed by the originating form submission, not by
// transaction id: every retry creates a fresh transaction record, so
// the budget has to live outside the ledger.
//
// Counters are kept in Redis so the bound survives a restart; when no
// Redis client is available the policy falls back to process-local
// counters.
type RecoveryPolicy struct {
	redis       *redis.Client
	maxAttempts int
	window      time.Duration

	mu    sync.Mutex
	local map[string]int
}

const defaultRetryWindow = 30 * time.Minute

func NewRecoveryPolicy(redisClient *redis.Client, maxAttempts int) *RecoveryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &RecoveryPolicy{
		redis:       redisClient,
		maxAttempts: maxAttempts,
		window:      defaultRetryWindow,
		local:       make(map[string]int),
	}
}

// Allow reports whether the submission may start (or restart) the
// orchestration. A submission that has already failed maxAttempts
// times is refused.
func (p *RecoveryPolicy) Allow(ctx context.Context, submissionID string) error {
	if submissionID == "" {
		return nil
	}
	n, err := p.failures(ctx, submissionID)
	if err != nil {
		return err
	}
	if n >= p.maxAttempts {
		return ErrRetriesExhausted
	}
	return nil
}

// RecordFailure counts one terminal failure against the submission.
func (p *RecoveryPolicy) RecordFailure(ctx context.Context, submissionID string) error {
	if submissionID == "" {
		return nil
	}
	if p.redis == nil {
		p.mu.Lock()
		p.local[submissionID]++
		p.mu.Unlock()
		return nil
	}
	key := p.key(submissionID)
	if err := p.redis.Incr(ctx, key).Err(); err != nil {
		return err
	}
	return p.redis.Expire(ctx, key, p.window).Err()
}

// Reset clears the counter, used when a submission finally succeeds.
func (p *RecoveryPolicy) Reset(ctx context.Context, submissionID string) {
	if submissionID == "" {
		return
	}
	if p.redis == nil {
		p.mu.Lock()
		delete(p.local, submissionID)
		p.mu.Unlock()
		return
	}
	p.redis.Del(ctx, p.key(submissionID))
}

func (p *RecoveryPolicy) failures(ctx context.Context, submissionID string) (int, error) {
	if p.redis == nil {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.local[submissionID], nil
	}
	n, err := p.redis.Get(ctx, p.key(submissionID)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (p *RecoveryPolicy) key(submissionID string) string {
	return fmt.Sprintf("payments:attempts:%s", submissionID)
}
