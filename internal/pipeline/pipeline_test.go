package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/forPelevin/topiccut/internal/ports/adapters/gemini"
	"github.com/forPelevin/topiccut/internal/ports/adapters/openai"
	"github.com/forPelevin/topiccut/internal/ports/adapters/openrouter"
	"github.com/forPelevin/topiccut/internal/types"
)

func TestBuildRunOutDir(t *testing.T) {
	now := time.Date(2026, 2, 12, 10, 30, 45, 1234, time.UTC)
	got := buildRunOutDir("out", "My Cool.Video", now)
	base := filepath.Base(got)
	if filepath.Dir(got) != "out" {
		t.Fatalf("unexpected parent dir: %s", got)
	}
	if !strings.HasPrefix(base, "my-cool-video-20260212-103045Z-") {
		t.Fatalf("unexpected run dir format: %s", base)
	}
	if len(base) != len("my-cool-video-20260212-103045Z-")+6 {
		t.Fatalf("unexpected run dir suffix length: %s", base)
	}
}

func TestNormalizePathSegment(t *testing.T) {
	tests := map[string]string{
		"  My Cool.Video  ": "my-cool-video",
		"___":               "",
		"abc123":            "abc123",
		"Name (v2)!":        "name-v2",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			if got := normalizePathSegment(in); got != want {
				t.Fatalf("normalizePathSegment(%q) = %q, want %q", in, got, want)
			}
		})
	}
}

func TestOutputDir(t *testing.T) {
	now := time.Date(2026, 2, 12, 10, 30, 45, 0, time.UTC)
	if got := outputDir(Config{OutDir: "generated_clips"}, "talk", now); got != "generated_clips" {
		t.Fatalf("flat output expected, got %s", got)
	}
	got := outputDir(Config{OutDir: "generated_clips", PerRunDir: true}, "talk", now)
	if !strings.HasPrefix(got, filepath.Join("generated_clips", "talk-20260212-103045Z-")) {
		t.Fatalf("unexpected per-run dir %s", got)
	}
}

func TestOutputDir_PerRunDirsDoNotCollide(t *testing.T) {
	now := time.Date(2026, 2, 12, 10, 30, 45, 0, time.UTC)
	cfg := Config{OutDir: "generated_clips", PerRunDir: true}
	a := outputDir(cfg, "talk-a", now)
	b := outputDir(cfg, "talk-b", now)
	if a == b {
		t.Fatalf("concurrent runs share output dir %s", a)
	}
}

func TestCacheKey(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "talk.mp4")
	if err := os.WriteFile(video, []byte("first"), 0o644); err != nil {
		t.Fatal(err)
	}

	base := cacheKey(video, "auto")
	if cacheKey(video, "") != base {
		t.Fatal("empty transcript mode must key like auto")
	}
	if cacheKey(video, "whisper") == base {
		t.Fatal("transcript mode must change the key")
	}

	if err := os.WriteFile(video, []byte("second, longer"), 0o644); err != nil {
		t.Fatal(err)
	}
	if cacheKey(video, "auto") == base {
		t.Fatal("a rewritten local file must change the key")
	}

	url := "https://www.youtube.com/watch?v=abc"
	if cacheKey(url, "auto") != cacheKey(url, "auto") {
		t.Fatal("url keys must be stable")
	}
	if cacheKey(url, "auto") == cacheKey(url, "subtitles") {
		t.Fatal("transcript mode must change the url key")
	}
}

func TestSourceStem(t *testing.T) {
	if got := sourceStem("/videos/My Talk.mp4"); got != "My Talk" {
		t.Fatalf("unexpected stem %q", got)
	}
	if got := sourceStem("https://youtu.be/abc"); !strings.HasPrefix(got, "url-") || len(got) != len("url-")+6 {
		t.Fatalf("unexpected url stem %q", got)
	}
}

func validConfig(t *testing.T) Config {
	t.Helper()
	in := filepath.Join(t.TempDir(), "in.mp4")
	if err := os.WriteFile(in, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	return Config{
		Ref:         in,
		OutDir:      "generated_clips",
		LLMProvider: "openai",
		LLMAPIKeys:  []string{"sk-test"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"url input is not stat'ed", func(c *Config) { c.Ref = "https://youtu.be/abc" }, false},
		{"empty input", func(c *Config) { c.Ref = " " }, true},
		{"missing file", func(c *Config) { c.Ref = "/does/not/exist.mp4" }, true},
		{"missing key", func(c *Config) { c.LLMAPIKeys = nil }, true},
		{"unknown provider", func(c *Config) { c.LLMProvider = "bard" }, true},
		{"negative timeout", func(c *Config) { c.RenderTimeout = -time.Second }, true},
		{"whisper without model", func(c *Config) { c.Transcript = "whisper" }, true},
		{"openrouter bad base url", func(c *Config) {
			c.LLMProvider = "openrouter"
			c.LLMBaseURL = "https://evil.example"
		}, true},
		{"openrouter default base url", func(c *Config) { c.LLMProvider = "openrouter" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateCut_NoKeyNeeded(t *testing.T) {
	cfg := validConfig(t)
	cfg.LLMAPIKeys = nil
	if err := cfg.ValidateCut(); err != nil {
		t.Fatalf("cut mode must not need an API key: %v", err)
	}
}

func TestNewProducer(t *testing.T) {
	cfg := validConfig(t)

	p, err := newProducer(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p.(*openai.Adapter); !ok {
		t.Fatalf("expected openai adapter, got %T", p)
	}

	cfg.LLMProvider = "gemini"
	if p, err = newProducer(cfg); err != nil {
		t.Fatal(err)
	}
	if _, ok := p.(*gemini.Adapter); !ok {
		t.Fatalf("expected gemini adapter, got %T", p)
	}

	cfg.LLMProvider = "openrouter"
	if p, err = newProducer(cfg); err != nil {
		t.Fatal(err)
	}
	if _, ok := p.(*openrouter.Adapter); !ok {
		t.Fatalf("expected openrouter adapter, got %T", p)
	}

	cfg.LLMProvider = "bard"
	if _, err := newProducer(cfg); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestCut_MalformedSegmentsFile(t *testing.T) {
	cfg := validConfig(t)
	cfg.OutDir = filepath.Join(t.TempDir(), "out")
	segs := filepath.Join(t.TempDir(), "segments.json")
	if err := os.WriteFile(segs, []byte(`[{"start_time":0,"end_time":40}]`), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Cut(context.Background(), cfg, segs)
	var me *types.MalformedSegmentsError
	if !errors.As(err, &me) {
		t.Fatalf("expected MalformedSegmentsError, got %v", err)
	}
	if _, err := os.Stat(cfg.OutDir); !os.IsNotExist(err) {
		t.Fatalf("nothing may be written for a malformed segments file, stat err=%v", err)
	}
}

func TestSourceRouter_Local(t *testing.T) {
	cfg := validConfig(t)
	src, err := newSourceRouter("", "en").Fetch(context.Background(), cfg.Ref, t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.BaseName != "in" || src.Path != cfg.Ref {
		t.Fatalf("unexpected source: %+v", src)
	}
}
