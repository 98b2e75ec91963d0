package payments

import (
	"context"
	"encoding/json"
	"log"

	"github.com/go-redis/redis/v8"
	"github.com/payper/backend/internal/models"
)

// Reconciler receives transactions the processor confirmed but the
// ledger could not finalize, for out-of-band repair.
type Reconciler interface {
	Enqueue(ctx context.Context, tx *models.Transaction)
}

// RedisReconciler pushes divergent transactions onto a Redis list for
// a reconciliation worker to drain.
type RedisReconciler struct {
	redis *redis.Client
	queue string
}

const reconciliationQueue = "reconciliation_queue"

func NewRedisReconciler(redisClient *redis.Client) *RedisReconciler {
	return &RedisReconciler{redis: redisClient, queue: reconciliationQueue}
}

func (r *RedisReconciler) Enqueue(ctx context.Context, tx *models.Transaction) {
	if r.redis == nil {
		log.Printf("[RECONCILE] No queue available, transaction %s needs manual reconciliation", tx.ID)
		return
	}
	data, err := json.Marshal(tx)
	if err != nil {
		log.Printf("[RECONCILE] Failed to encode transaction %s: %v", tx.ID, err)
		return
	}
	if err := r.redis.RPush(ctx, r.queue, data).Err(); err != nil {
		log.Printf("[RECONCILE] Failed to queue transaction %s: %v", tx.ID, err)
	}
}
