package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/forPelevin/topiccut/internal/config"
	"github.com/forPelevin/topiccut/internal/pipeline"
	"github.com/forPelevin/topiccut/internal/pkg/logger"
	"github.com/forPelevin/topiccut/internal/storage"
	"github.com/forPelevin/topiccut/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <dir>",
		Short: "Run the pipeline for every video dropped into a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			dir, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			if st, err := os.Stat(dir); err != nil || !st.IsDir() {
				return fmt.Errorf("watch dir %s is not a directory", dir)
			}

			if err := pipelineConfig(cmd, cfg, dir, log, store).ValidateProducer(); err != nil {
				return fmt.Errorf("config: %w", err)
			}

			w, err := watcher.New(dir, func(ctx context.Context, path string) error {
				_, err := pipeline.Run(ctx, watchRunConfig(cmd, cfg, path, log, store))
				return err
			}, log, cfg.Watch.MaxConcurrent, cfg.Watch.Settle)
			if err != nil {
				return err
			}
			if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}

// watchRunConfig is the config of one watched file. Concurrent runs get their
// own output directories so labels and records are not overwritten.
func watchRunConfig(cmd *cobra.Command, cfg config.Config, path string, log *logger.Logger, store storage.Provider) pipeline.Config {
	pc := pipelineConfig(cmd, cfg, path, log, store)
	if cfg.Watch.MaxConcurrent > 1 {
		pc.PerRunDir = true
	}
	return pc
}
