package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topiccut.yaml")
	content := `
render:
  workers: 3
  timeout: 90s
llm:
  provider: gemini
  model: gemini-2.5-pro
paths:
  output: clips
ffmpeg:
  preset: slow
logging:
  level: debug
  format: json
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Render.Workers != 3 || cfg.Render.Timeout != 90*time.Second {
		t.Errorf("render = %+v", cfg.Render)
	}
	if cfg.LLM.Provider != "gemini" || cfg.LLM.Model != "gemini-2.5-pro" {
		t.Errorf("llm = %+v", cfg.LLM)
	}
	if cfg.Paths.Output != "clips" || cfg.Paths.Downloads != "downloaded_videos" {
		t.Errorf("paths = %+v", cfg.Paths)
	}
	if cfg.FFmpeg.Preset != "slow" || cfg.FFmpeg.VideoCodec != "libx264" {
		t.Errorf("ffmpeg = %+v", cfg.FFmpeg)
	}
	if cfg.LLM.Temperature != 0.7 {
		t.Errorf("temperature default lost: %v", cfg.LLM.Temperature)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("render: [1, 2"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(bad); err == nil {
		t.Error("expected error for invalid yaml")
	}
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Paths.Output != "generated_clips" || cfg.LLM.Provider != "openai" || cfg.Queue.Name != "topiccut:jobs" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("TOPICCUT_LLM_PROVIDER", "gemini")
	t.Setenv("GEMINI_API_KEYS", "k1, k2,,")
	t.Setenv("TOPICCUT_RENDER_WORKERS", "5")
	t.Setenv("GDRIVE_REFRESH_TOKEN", "refresh")

	cfg := Default()
	cfg.ApplyEnv()
	if cfg.LLM.Provider != "gemini" {
		t.Errorf("provider = %q", cfg.LLM.Provider)
	}
	if len(cfg.LLM.APIKeys) != 2 || cfg.LLM.APIKeys[1] != "k2" {
		t.Errorf("api keys = %v", cfg.LLM.APIKeys)
	}
	if cfg.Render.Workers != 5 {
		t.Errorf("workers = %d", cfg.Render.Workers)
	}
	if cfg.Publish.GDriveRefresh != "refresh" {
		t.Errorf("gdrive refresh token not applied")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "bard" }, true},
		{"unknown transcript source", func(c *Config) { c.Transcript.Source = "ocr" }, true},
		{"negative timeout", func(c *Config) { c.Render.Timeout = -time.Second }, true},
		{"missing output", func(c *Config) { c.Paths.Output = "" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_FillsDefaults(t *testing.T) {
	cfg := Default()
	cfg.Render.Workers = 0
	cfg.Paths.Cache = ""
	cfg.Watch.MaxConcurrent = -1
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Render.Workers != runtime.NumCPU() {
		t.Errorf("workers = %d", cfg.Render.Workers)
	}
	if cfg.Paths.Cache != ".cache" || cfg.Watch.MaxConcurrent != 1 {
		t.Errorf("defaults not filled: %+v %+v", cfg.Paths, cfg.Watch)
	}
}
