package payments

import (
	"context"
	"testing"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
)

func TestRecoveryPolicy_InMemory(t *testing.T) {
	policy := NewRecoveryPolicy(nil, 3)
	ctx := context.Background()

	t.Run("fresh submission allowed", func(t *testing.T) {
		assert.NoError(t, policy.Allow(ctx, "sub-1"))
	})

	t.Run("refused after three failures", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			assert.NoError(t, policy.Allow(ctx, "sub-2"))
			assert.NoError(t, policy.RecordFailure(ctx, "sub-2"))
		}
		assert.ErrorIs(t, policy.Allow(ctx, "sub-2"), ErrRetriesExhausted)
	})

	t.Run("reset clears the budget", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			policy.RecordFailure(ctx, "sub-3")
		}
		assert.ErrorIs(t, policy.Allow(ctx, "sub-3"), ErrRetriesExhausted)

		policy.Reset(ctx, "sub-3")
		assert.NoError(t, policy.Allow(ctx, "sub-3"))
	})

	t.Run("empty submission id is never limited", func(t *testing.T) {
		for i := 0; i < 10; i++ {
			assert.NoError(t, policy.RecordFailure(ctx, ""))
		}
		assert.NoError(t, policy.Allow(ctx, ""))
	})
}

func TestRecoveryPolicy_Redis(t *testing.T) {
	client, mock := redismock.NewClientMock()
	policy := NewRecoveryPolicy(client, 3)
	ctx := context.Background()

	t.Run("allowed below the bound", func(t *testing.T) {
		mock.ExpectGet("payments:attempts:sub-1").SetVal("2")
		assert.NoError(t, policy.Allow(ctx, "sub-1"))
	})

	t.Run("missing counter means no failures yet", func(t *testing.T) {
		mock.ExpectGet("payments:attempts:sub-new").RedisNil()
		assert.NoError(t, policy.Allow(ctx, "sub-new"))
	})

	t.Run("refused at the bound", func(t *testing.T) {
		mock.ExpectGet("payments:attempts:sub-2").SetVal("3")
		assert.ErrorIs(t, policy.Allow(ctx, "sub-2"), ErrRetriesExhausted)
	})

	t.Run("failure increments with expiry", func(t *testing.T) {
		mock.ExpectIncr("payments:attempts:sub-3").SetVal(1)
		mock.ExpectExpire("payments:attempts:sub-3", defaultRetryWindow).SetVal(true)
		assert.NoError(t, policy.RecordFailure(ctx, "sub-3"))
	})

	t.Run("reset deletes the counter", func(t *testing.T) {
		mock.ExpectDel("payments:attempts:sub-4").SetVal(1)
		policy.Reset(ctx, "sub-4")
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
