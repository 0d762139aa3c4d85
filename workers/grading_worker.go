package workers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"exam-platform/models"
	"exam-platform/services"
	"exam-platform/utils"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	popTimeout = 5 * time.Second
	lockTTL    = 2 * time.Minute
	lockPrefix = "grading:lock:"
)

// RedisGradingQueue is the producer side of the practice grading queue.
type RedisGradingQueue struct {
	rdb   *redis.Client
	queue string
}

func NewRedisGradingQueue(rdb *redis.Client, queue string) *RedisGradingQueue {
	return &RedisGradingQueue{rdb: rdb, queue: queue}
}

func (q *RedisGradingQueue) Enqueue(ctx context.Context, attemptID string) error {
	if err := q.rdb.LPush(ctx, q.queue, attemptID).Err(); err != nil {
		return fmt.Errorf("lpush %s: %w", q.queue, err)
	}
	return nil
}

// NewRedisClient connects and pings; callers fall back to inline grading on error.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}

// AttemptGrader grades one practice attempt; *services.ExamService implements it.
type AttemptGrader interface {
	GradeAttempt(ctx context.Context, attemptID string) (*models.ExamResult, error)
}

// GradingWorker consumes attempt ids and grades them.
type GradingWorker struct {
	rdb   *redis.Client
	queue string
	exams AttemptGrader

	// PopTimeout bounds each BRPOP, and so how fast Start notices cancellation.
	PopTimeout time.Duration
}

func NewGradingWorker(rdb *redis.Client, queue string, exams AttemptGrader) *GradingWorker {
	return &GradingWorker{rdb: rdb, queue: queue, exams: exams, PopTimeout: popTimeout}
}

func (w *GradingWorker) Start(ctx context.Context) {
	log.Println("[Grading] worker started, listening to queue:", w.queue)
	for {
		select {
		case <-ctx.Done():
			log.Println("[Grading] worker stopping...")
			return
		default:
		}

		res, err := w.rdb.BRPop(ctx, w.PopTimeout, w.queue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			log.Printf("[Grading] ❌ BRPop from %s failed: %v", w.queue, err)
			time.Sleep(5 * time.Second)
			continue
		}

		// BRPop returns [queueName, value]
		if len(res) < 2 || res[1] == "" {
			continue
		}
		if _, err := w.process(ctx, res[1]); err != nil {
			utils.ReportError("Grading", err, nil)
		}
	}
}

// process grades attemptID under a Redis claim. It reports false without an
// error when another worker holds the claim or the attempt is already graded.
func (w *GradingWorker) process(ctx context.Context, attemptID string) (bool, error) {
	lockKey := lockPrefix + attemptID
	ok, err := w.rdb.SetNX(ctx, lockKey, uuid.NewString(), lockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("lock attempt %s: %w", attemptID, err)
	}
	if !ok {
		log.Printf("[Grading] attempt %s is being graded elsewhere, skipping", attemptID)
		return false, nil
	}
	defer w.rdb.Del(context.Background(), lockKey)

	if _, err := w.exams.GradeAttempt(ctx, attemptID); err != nil {
		if errors.Is(err, services.ErrConflict) {
			return false, nil
		}
		return false, fmt.Errorf("grade attempt %s: %w", attemptID, err)
	}
	return true, nil
}
