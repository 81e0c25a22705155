// Package config loads topiccut settings from defaults, an optional YAML
// file and the environment, in that order.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	FFmpeg     FFmpegConfig     `yaml:"ffmpeg"`
	Render     RenderConfig     `yaml:"render"`
	LLM        LLMConfig        `yaml:"llm"`
	Transcript TranscriptConfig `yaml:"transcript"`
	Paths      PathsConfig      `yaml:"paths"`
	Logging    LoggingConfig    `yaml:"logging"`
	Publish    PublishConfig    `yaml:"publish"`
	Queue      QueueConfig      `yaml:"queue"`
	Watch      WatchConfig      `yaml:"watch"`
}

type FFmpegConfig struct {
	FFmpegPath   string `yaml:"ffmpeg_path"`
	FFprobePath  string `yaml:"ffprobe_path"`
	VideoCodec   string `yaml:"video_codec"`
	Preset       string `yaml:"preset"`
	CRF          int    `yaml:"crf"`
	AudioCodec   string `yaml:"audio_codec"`
	AudioBitrate string `yaml:"audio_bitrate"`
}

type RenderConfig struct {
	Workers int           `yaml:"workers"`
	Timeout time.Duration `yaml:"timeout"`
}

type LLMConfig struct {
	// Provider is openai, gemini or openrouter.
	Provider     string   `yaml:"provider"`
	Model        string   `yaml:"model"`
	Temperature  float64  `yaml:"temperature"`
	BaseURL      string   `yaml:"base_url"`
	AllowedHosts []string `yaml:"allowed_hosts"`
	JSONMode     bool     `yaml:"json_mode"`
	// APIKeys are read from the environment, never from the file.
	APIKeys []string `yaml:"-"`
}

type TranscriptConfig struct {
	// Source is auto, subtitles or whisper.
	Source       string `yaml:"source"`
	SubLang      string `yaml:"sub_lang"`
	YtDlpPath    string `yaml:"ytdlp_path"`
	WhisperBin   string `yaml:"whisper_bin"`
	WhisperModel string `yaml:"whisper_model"`
}

type PathsConfig struct {
	Downloads string `yaml:"downloads"`
	Output    string `yaml:"output"`
	Cache     string `yaml:"cache"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type PublishConfig struct {
	// Provider is none, localfs or gdrive.
	Provider      string `yaml:"provider"`
	LocalRoot     string `yaml:"local_root"`
	GDriveFolder  string `yaml:"gdrive_folder_id"`
	GDriveID      string `yaml:"-"`
	GDriveSecret  string `yaml:"-"`
	GDriveRefresh string `yaml:"-"`
}

type QueueConfig struct {
	RedisAddr string `yaml:"redis_addr"`
	RedisDB   int    `yaml:"redis_db"`
	Name      string `yaml:"name"`
	Password  string `yaml:"-"`
}

type WatchConfig struct {
	MaxConcurrent int           `yaml:"max_concurrent"`
	Settle        time.Duration `yaml:"settle"`
}

func Default() Config {
	return Config{
		FFmpeg: FFmpegConfig{
			FFmpegPath:   "ffmpeg",
			FFprobePath:  "ffprobe",
			VideoCodec:   "libx264",
			Preset:       "veryfast",
			CRF:          18,
			AudioCodec:   "aac",
			AudioBitrate: "192k",
		},
		Render: RenderConfig{Workers: runtime.NumCPU()},
		LLM: LLMConfig{
			Provider:    "openai",
			Temperature: 0.7,
		},
		Transcript: TranscriptConfig{
			Source:       "auto",
			SubLang:      "en",
			YtDlpPath:    "yt-dlp",
			WhisperBin:   "whisper-cli",
			WhisperModel: ".cache/models/ggml-base.en.bin",
		},
		Paths: PathsConfig{
			Downloads: "downloaded_videos",
			Output:    "generated_clips",
			Cache:     ".cache",
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Publish: PublishConfig{Provider: "none"},
		Queue: QueueConfig{
			RedisAddr: "localhost:6379",
			Name:      "topiccut:jobs",
		},
		Watch: WatchConfig{MaxConcurrent: 1, Settle: 2 * time.Second},
	}
}

// Load returns defaults overlaid with the YAML file at path, if any.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overlays environment variables. Secrets only come from here.
func (c *Config) ApplyEnv() {
	setString(&c.LLM.Provider, "TOPICCUT_LLM_PROVIDER")
	setString(&c.LLM.Model, "TOPICCUT_LLM_MODEL")
	setString(&c.Logging.Level, "LOG_LEVEL")
	setString(&c.Logging.Format, "LOG_FORMAT")
	setString(&c.Paths.Output, "TOPICCUT_OUTPUT_DIR")
	setString(&c.Paths.Downloads, "TOPICCUT_DOWNLOAD_DIR")
	setString(&c.Paths.Cache, "TOPICCUT_CACHE_DIR")
	setString(&c.Transcript.WhisperModel, "WHISPER_MODEL")
	setString(&c.Queue.RedisAddr, "REDIS_ADDR")
	setString(&c.Queue.Password, "REDIS_PASSWORD")
	setString(&c.Publish.Provider, "STORAGE_PROVIDER")
	setString(&c.Publish.LocalRoot, "STORAGE_LOCAL_ROOT")
	setString(&c.Publish.GDriveID, "GDRIVE_CLIENT_ID")
	setString(&c.Publish.GDriveSecret, "GDRIVE_CLIENT_SECRET")
	setString(&c.Publish.GDriveRefresh, "GDRIVE_REFRESH_TOKEN")
	setString(&c.Publish.GDriveFolder, "GDRIVE_FOLDER_ID")
	if v := strings.TrimSpace(os.Getenv("TOPICCUT_RENDER_WORKERS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Render.Workers = n
		}
	}

	c.ResolveCredentials()
}

// ResolveCredentials reads the API keys of the selected provider.
func (c *Config) ResolveCredentials() {
	switch c.LLM.Provider {
	case "openai":
		c.LLM.APIKeys = splitKeys(os.Getenv("OPENAI_API_KEY"))
		if c.LLM.BaseURL == "" {
			c.LLM.BaseURL = strings.TrimSpace(os.Getenv("OPENAI_BASE_URL"))
		}
	case "gemini":
		c.LLM.APIKeys = splitKeys(os.Getenv("GEMINI_API_KEYS"))
		if len(c.LLM.APIKeys) == 0 {
			c.LLM.APIKeys = splitKeys(os.Getenv("GEMINI_API_KEY"))
		}
	case "openrouter":
		c.LLM.APIKeys = splitKeys(os.Getenv("OPENROUTER_API_KEY"))
		if c.LLM.BaseURL == "" {
			c.LLM.BaseURL = strings.TrimSpace(os.Getenv("OPENROUTER_BASE_URL"))
		}
		if len(c.LLM.AllowedHosts) == 0 {
			c.LLM.AllowedHosts = splitKeys(os.Getenv("OPENROUTER_ALLOWED_HOSTS"))
		}
	}
}

// Validate checks the settings every mode needs and fills zero values.
// Provider credentials are checked by the modes that call a model.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "openai", "gemini", "openrouter":
	default:
		return fmt.Errorf("llm.provider must be openai, gemini or openrouter, got %q", c.LLM.Provider)
	}
	switch c.Transcript.Source {
	case "auto", "subtitles", "whisper":
	default:
		return fmt.Errorf("transcript.source must be auto, subtitles or whisper, got %q", c.Transcript.Source)
	}
	if c.Render.Timeout < 0 {
		return fmt.Errorf("render.timeout must be >= 0")
	}
	if c.Paths.Output == "" {
		return fmt.Errorf("paths.output is required")
	}

	if c.Render.Workers <= 0 {
		c.Render.Workers = runtime.NumCPU()
	}
	if c.Paths.Downloads == "" {
		c.Paths.Downloads = "downloaded_videos"
	}
	if c.Paths.Cache == "" {
		c.Paths.Cache = ".cache"
	}
	if c.Queue.Name == "" {
		c.Queue.Name = "topiccut:jobs"
	}
	if c.Watch.MaxConcurrent <= 0 {
		c.Watch.MaxConcurrent = 1
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func splitKeys(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
