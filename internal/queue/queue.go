// Package queue feeds pipeline runs from a redis list.
package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/forPelevin/topiccut/internal/pkg/logger"
)

type RedisQueue struct {
	rdb       *redis.Client
	queueName string
}

func NewRedisQueue(rdb *redis.Client, queueName string) *RedisQueue {
	return &RedisQueue{rdb: rdb, queueName: queueName}
}

// Push adds refs to the queue. Pop takes from the other end, so refs run
// in the order they were pushed.
func (q *RedisQueue) Push(ctx context.Context, refs ...string) error {
	if len(refs) == 0 {
		return nil
	}
	vals := make([]any, len(refs))
	for i, r := range refs {
		vals[i] = r
	}
	return q.rdb.LPush(ctx, q.queueName, vals...).Err()
}

// Pop blocks until an element is available (BRPOP).
func (q *RedisQueue) Pop(ctx context.Context) (string, error) {
	res, err := q.rdb.BRPop(ctx, 0, q.queueName).Result()
	if err != nil {
		return "", err
	}
	if len(res) < 2 {
		return "", nil
	}
	return res[1], nil
}

type Popper interface {
	Pop(ctx context.Context) (string, error)
}

// Handler runs one job. Its error is logged and the loop continues.
type Handler func(ctx context.Context, ref string) error

// Worker pops refs and runs them one at a time until ctx is done.
type Worker struct {
	q       Popper
	handler Handler
	log     *logger.Logger
	backoff time.Duration
}

func NewWorker(q Popper, handler Handler, log *logger.Logger) *Worker {
	if log == nil {
		log = logger.Nop()
	}
	return &Worker{q: q, handler: handler, log: log.WithComponent("worker"), backoff: time.Second}
}

func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("worker started")
	for {
		ref, err := w.q.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				w.log.Info("worker stopped")
				return ctx.Err()
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			w.log.Error("pop failed", "error", err.Error())
			select {
			case <-time.After(w.backoff):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		w.log.Info("job received", "ref", ref)
		if err := w.run(ctx, ref); err != nil {
			w.log.Error("job failed", "ref", ref, "error", err.Error())
			continue
		}
		w.log.Info("job done", "ref", ref)
	}
}

func (w *Worker) run(ctx context.Context, ref string) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job panic: %v", p)
		}
	}()
	return w.handler(ctx, ref)
}
