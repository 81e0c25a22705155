package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/forPelevin/topiccut/internal/pipeline"
	"github.com/forPelevin/topiccut/internal/usecase"
)

const runTimeout = 3 * time.Hour

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <url|file>",
		Short: "Download or open a video, find sub-topics and cut them into clips",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFull(cmd, args[0])
		},
	}
}

func newCutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cut <video> <segments.json>",
		Short: "Cut clips from a local video using an existing segments file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(runTimeout)
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

			pc := pipelineConfig(cmd, cfg, args[0], log, store)
			if err := pc.ValidateCut(); err != nil {
				return fmt.Errorf("config: %w", err)
			}
			res, err := pipeline.Cut(ctx, pc, args[1])
			if err != nil {
				return err
			}
			printResult(cmd, res)
			return nil
		},
	}
}

func runFull(cmd *cobra.Command, ref string) error {
	ctx, cancel := signalContext(runTimeout)
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

	pc := pipelineConfig(cmd, cfg, ref, log, store)
	if err := pc.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	res, err := pipeline.Run(ctx, pc)
	if err != nil {
		return err
	}
	printResult(cmd, res)
	return nil
}

// printResult writes the labels file content and clip paths to stdout.
func printResult(cmd *cobra.Command, res usecase.Result) {
	out := cmd.OutOrStdout()
	for i, l := range res.Output.Labels {
		fmt.Fprintf(out, "%s\n", l)
		if i < len(res.Artifacts.Clips) {
			fmt.Fprintf(out, "File: %s\n", res.Artifacts.Clips[i])
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintf(out, "%d of %d segments rendered\n", len(res.Artifacts.Clips), len(res.Validated))
	fmt.Fprintf(out, "Labels: %s\nSegments: %s\n", res.Artifacts.LabelsPath, res.Artifacts.SegmentPath)
}

// signalContext is cancelled on SIGINT/SIGTERM or after timeout; zero means no timeout.
func signalContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	if timeout <= 0 {
		return ctx, stop
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	return tctx, func() {
		cancel()
		stop()
	}
}
