package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	if err := NewRoot().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func NewRoot() *cobra.Command {
	root := &cobra.Command{
		Use:          "topiccut [input]",
		Short:        "Split a long video into short sub-topic clips",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return runFull(cmd, args[0])
		},
	}

	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	root.SilenceErrors = true

	pf := root.PersistentFlags()
	pf.String("config", "", "Path to a YAML config file")
	pf.String("out", "", "Output directory for clips and artifacts")
	pf.Int("workers", 0, "Concurrent renders (default: number of CPUs)")
	pf.Duration("render-timeout", 0, "Per-clip render timeout (0 disables)")
	pf.Bool("per-run-dir", false, "Write each run into its own timestamped subdirectory")
	pf.String("log-level", "", "Log level: debug, info, warn, error")
	pf.String("log-format", "", "Log format: text or json")
	pf.String("provider", "", "Segment producer: openai, gemini or openrouter")
	pf.String("model", "", "Model name for the segment producer")
	pf.String("transcript", "", "Transcript source: auto, subtitles or whisper")
	pf.String("publish", "", "Publish clips to: none, localfs or gdrive")

	root.AddCommand(
		newRunCmd(),
		newCutCmd(),
		newWatchCmd(),
		newWorkerCmd(),
		newEnqueueCmd(),
	)
	return root
}
