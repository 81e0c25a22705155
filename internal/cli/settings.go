package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forPelevin/topiccut/internal/config"
	"github.com/forPelevin/topiccut/internal/pipeline"
	"github.com/forPelevin/topiccut/internal/pkg/logger"
	"github.com/forPelevin/topiccut/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/topiccut/internal/storage"
)

// loadConfig layers defaults, the YAML file, the environment and flags.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	fs := cmd.Flags()
	fileBaseURL := cfg.LLM.BaseURL
	cfg.ApplyEnv()

	if fs.Changed("out") {
		cfg.Paths.Output, _ = fs.GetString("out")
	}
	if fs.Changed("workers") {
		cfg.Render.Workers, _ = fs.GetInt("workers")
	}
	if fs.Changed("render-timeout") {
		cfg.Render.Timeout, _ = fs.GetDuration("render-timeout")
	}
	if fs.Changed("log-level") {
		cfg.Logging.Level, _ = fs.GetString("log-level")
	}
	if fs.Changed("log-format") {
		cfg.Logging.Format, _ = fs.GetString("log-format")
	}
	if fs.Changed("provider") {
		cfg.LLM.Provider, _ = fs.GetString("provider")
		cfg.LLM.BaseURL = fileBaseURL
		cfg.ResolveCredentials()
	}
	if fs.Changed("model") {
		cfg.LLM.Model, _ = fs.GetString("model")
	}
	if fs.Changed("transcript") {
		cfg.Transcript.Source, _ = fs.GetString("transcript")
	}
	if fs.Changed("publish") {
		cfg.Publish.Provider, _ = fs.GetString("publish")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg config.Config, cmd *cobra.Command) *logger.Logger {
	lc := logger.DefaultConfig()
	lc.Level = cfg.Logging.Level
	lc.Format = cfg.Logging.Format
	lc.Output = cmd.ErrOrStderr()
	return logger.New(lc)
}

func newStore(ctx context.Context, cfg config.Config) (storage.Provider, error) {
	return storage.NewProvider(ctx, storage.Config{
		Provider:           cfg.Publish.Provider,
		LocalRoot:          cfg.Publish.LocalRoot,
		GDriveClientID:     cfg.Publish.GDriveID,
		GDriveClientSecret: cfg.Publish.GDriveSecret,
		GDriveRefreshToken: cfg.Publish.GDriveRefresh,
		GDriveFolderID:     cfg.Publish.GDriveFolder,
	})
}

// pipelineConfig maps settings onto one run of ref.
func pipelineConfig(cmd *cobra.Command, cfg config.Config, ref string, log *logger.Logger, store storage.Provider) pipeline.Config {
	perRun, _ := cmd.Flags().GetBool("per-run-dir")
	return pipeline.Config{
		Ref:         ref,
		OutDir:      cfg.Paths.Output,
		DownloadDir: cfg.Paths.Downloads,
		CacheDir:    cfg.Paths.Cache,
		PerRunDir:   perRun,

		Transcript: cfg.Transcript.Source,
		SubLang:    cfg.Transcript.SubLang,
		YtDlpPath:  cfg.Transcript.YtDlpPath,

		FFmpegPath:  cfg.FFmpeg.FFmpegPath,
		FFprobePath: cfg.FFmpeg.FFprobePath,
		Profile: ffmpeg.Profile{
			VideoCodec:   cfg.FFmpeg.VideoCodec,
			Preset:       cfg.FFmpeg.Preset,
			CRF:          cfg.FFmpeg.CRF,
			AudioCodec:   cfg.FFmpeg.AudioCodec,
			AudioBitrate: cfg.FFmpeg.AudioBitrate,
		},

		WhisperBin:   cfg.Transcript.WhisperBin,
		WhisperModel: cfg.Transcript.WhisperModel,

		LLMProvider:     cfg.LLM.Provider,
		LLMModel:        cfg.LLM.Model,
		LLMTemperature:  cfg.LLM.Temperature,
		LLMBaseURL:      cfg.LLM.BaseURL,
		LLMAllowedHosts: cfg.LLM.AllowedHosts,
		LLMAPIKeys:      cfg.LLM.APIKeys,
		LLMJSONMode:     cfg.LLM.JSONMode,

		Workers:       cfg.Render.Workers,
		RenderTimeout: cfg.Render.Timeout,

		Store: store,
		Log:   log,
	}
}
