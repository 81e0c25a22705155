package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/forPelevin/topiccut/internal/pipeline"
	"github.com/forPelevin/topiccut/internal/queue"
)

func newRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Pop video refs from a redis list and run the pipeline for each",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext(0)
			defer cancel()

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log := newLogger(cfg, cmd)
			store, err := newStore(ctx, cfg)
			if err != nil {
				return err
			}

			if err := pipelineConfig(cmd, cfg, "", log, store).ValidateProducer(); err != nil {
				return fmt.Errorf("config: %w", err)
			}

			rdb := newRedisClient(cfg.Queue.RedisAddr, cfg.Queue.Password, cfg.Queue.RedisDB)
			defer rdb.Close()
			if err := rdb.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis ping %s: %w", cfg.Queue.RedisAddr, err)
			}
			log.Info("connected to redis", "addr", cfg.Queue.RedisAddr, "queue", cfg.Queue.Name)

			q := queue.NewRedisQueue(rdb, cfg.Queue.Name)
			w := queue.NewWorker(q, func(ctx context.Context, ref string) error {
				pc := pipelineConfig(cmd, cfg, ref, log, store)
				if err := pc.Validate(); err != nil {
					return err
				}
				_, err := pipeline.Run(ctx, pc)
				return err
			}, log)
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}

func newEnqueueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue <url|file>...",
		Short: "Push video refs onto the redis list consumed by worker",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(0)
			defer cancel()

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			rdb := newRedisClient(cfg.Queue.RedisAddr, cfg.Queue.Password, cfg.Queue.RedisDB)
			defer rdb.Close()

			if err := queue.NewRedisQueue(rdb, cfg.Queue.Name).Push(ctx, args...); err != nil {
				return fmt.Errorf("enqueue: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queued %d job(s) on %s\n", len(args), cfg.Queue.Name)
			return nil
		},
	}
}
