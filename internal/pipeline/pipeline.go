package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/forPelevin/topiccut/internal/domain/topics"
	"github.com/forPelevin/topiccut/internal/pkg/logger"
	"github.com/forPelevin/topiccut/internal/ports"
	"github.com/forPelevin/topiccut/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/topiccut/internal/ports/adapters/gemini"
	"github.com/forPelevin/topiccut/internal/ports/adapters/localsrc"
	"github.com/forPelevin/topiccut/internal/ports/adapters/openai"
	"github.com/forPelevin/topiccut/internal/ports/adapters/openrouter"
	"github.com/forPelevin/topiccut/internal/ports/adapters/vtt"
	"github.com/forPelevin/topiccut/internal/ports/adapters/whispercpp"
	"github.com/forPelevin/topiccut/internal/ports/adapters/ytdlp"
	"github.com/forPelevin/topiccut/internal/types"
	"github.com/forPelevin/topiccut/internal/usecase"
)

type Config struct {
	// Ref is a video URL or a local file path.
	Ref   string
	RunID string

	OutDir      string
	DownloadDir string
	// CacheDir is the base directory for local artifacts (audio, transcripts).
	// If empty, defaults to ".cache".
	CacheDir string
	// PerRunDir puts each run's clips in its own timestamped subdirectory.
	PerRunDir bool

	Transcript string
	SubLang    string
	YtDlpPath  string

	FFmpegPath  string
	FFprobePath string
	Profile     ffmpeg.Profile

	WhisperBin   string
	WhisperModel string

	LLMProvider     string
	LLMModel        string
	LLMTemperature  float64
	LLMBaseURL      string
	LLMAllowedHosts []string
	LLMAPIKeys      []string
	LLMJSONMode     bool

	Workers       int
	RenderTimeout time.Duration

	Store ports.ObjectStore
	Log   *logger.Logger
}

// ValidateCut checks what every mode needs.
func (c Config) ValidateCut() error {
	if strings.TrimSpace(c.Ref) == "" {
		return errors.New("input is empty")
	}
	if !ytdlp.IsURL(c.Ref) {
		if _, err := os.Stat(c.Ref); err != nil {
			return fmt.Errorf("stat input: %w", err)
		}
	}
	if c.OutDir == "" {
		return errors.New("output dir is required")
	}
	if c.Workers < 0 {
		return errors.New("workers must be >= 0")
	}
	if c.RenderTimeout < 0 {
		return errors.New("render timeout must be >= 0")
	}
	return nil
}

// Validate checks a full run, which also needs a segment producer.
func (c Config) Validate() error {
	if err := c.ValidateCut(); err != nil {
		return err
	}
	return c.ValidateProducer()
}

// ValidateProducer checks transcript and LLM settings without looking at Ref.
func (c Config) ValidateProducer() error {
	if c.Transcript == usecase.TranscriptWhisper && c.WhisperModel == "" {
		return errors.New("whisper model path is required")
	}
	if len(c.LLMAPIKeys) == 0 {
		return fmt.Errorf("an API key is required for llm provider %q", c.LLMProvider)
	}
	switch c.LLMProvider {
	case "", "openai", "gemini":
		return nil
	case "openrouter":
		return openrouter.ValidateBaseURL(c.LLMBaseURL, c.LLMAllowedHosts)
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLMProvider)
	}
}

// Run executes the full pipeline for one source.
func Run(ctx context.Context, cfg Config) (usecase.Result, error) {
	producer, err := newProducer(cfg)
	if err != nil {
		return usecase.Result{}, err
	}
	cfg = withDefaults(cfg)
	log := cfg.Log.WithRunID(cfg.RunID)

	v := ffmpeg.New(cfg.FFmpegPath, cfg.FFprobePath, cfg.Profile)
	deps := usecase.Deps{
		Source:        newSourceRouter(cfg.YtDlpPath, cfg.SubLang),
		Subtitles:     vtt.Reader{},
		Audio:         v,
		Producer:      producer,
		Prober:        v,
		Transcoder:    v,
		Store:         cfg.Store,
		Log:           cfg.Log,
		Workers:       cfg.Workers,
		RenderTimeout: cfg.RenderTimeout,
	}
	if cfg.WhisperModel != "" {
		deps.ASR = whispercpp.New(cfg.WhisperBin, cfg.WhisperModel)
	}
	uc := usecase.New(deps)

	cacheDir := filepath.Join(cfg.CacheDir, "runs", cacheKey(cfg.Ref, cfg.Transcript))
	log.Info("preparing workspace", "cache", cacheDir, "downloads", cfg.DownloadDir)
	for _, d := range []string{cacheDir, cfg.DownloadDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return usecase.Result{}, err
		}
	}

	started := time.Now()
	res, err := uc.Run(ctx, usecase.Input{
		Ref:         cfg.Ref,
		RunID:       cfg.RunID,
		Transcript:  cfg.Transcript,
		DownloadDir: cfg.DownloadDir,
		CacheDir:    cacheDir,
		OutputDir:   outputDir(cfg, sourceStem(cfg.Ref), started),
	})
	if err != nil {
		return res, err
	}
	logSummary(log, res, started)
	return res, nil
}

// Cut renders an existing segments file against a local video.
func Cut(ctx context.Context, cfg Config, segmentsPath string) (usecase.Result, error) {
	cfg = withDefaults(cfg)
	log := cfg.Log.WithRunID(cfg.RunID)

	b, err := os.ReadFile(segmentsPath)
	if err != nil {
		return usecase.Result{}, fmt.Errorf("read segments: %w", err)
	}
	segs, err := topics.ParseSegments(string(b))
	if err != nil {
		return usecase.Result{}, fmt.Errorf("%s: %w", segmentsPath, err)
	}

	src, err := localsrc.New().Fetch(ctx, cfg.Ref, "")
	if err != nil {
		return usecase.Result{}, err
	}

	v := ffmpeg.New(cfg.FFmpegPath, cfg.FFprobePath, cfg.Profile)
	uc := usecase.New(usecase.Deps{
		Prober:        v,
		Transcoder:    v,
		Store:         cfg.Store,
		Log:           cfg.Log,
		Workers:       cfg.Workers,
		RenderTimeout: cfg.RenderTimeout,
	})

	started := time.Now()
	res, err := uc.Cut(ctx, usecase.CutInput{
		RunID:      cfg.RunID,
		SourcePath: src.Path,
		BaseName:   src.BaseName,
		OutputDir:  outputDir(cfg, src.BaseName, started),
		Segments:   segs,
	})
	res.Source = src
	if err != nil {
		return res, err
	}
	logSummary(log, res, started)
	return res, nil
}

func withDefaults(cfg Config) Config {
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	if cfg.Log == nil {
		cfg.Log = logger.Nop()
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = ".cache"
	}
	if cfg.DownloadDir == "" {
		cfg.DownloadDir = "downloaded_videos"
	}
	return cfg
}

func newProducer(cfg Config) (ports.SegmentProducer, error) {
	key := ""
	if len(cfg.LLMAPIKeys) > 0 {
		key = cfg.LLMAPIKeys[0]
	}
	switch cfg.LLMProvider {
	case "", "openai":
		return openai.New(openai.Options{
			APIKey:      key,
			Model:       cfg.LLMModel,
			BaseURL:     cfg.LLMBaseURL,
			Temperature: cfg.LLMTemperature,
			JSONMode:    cfg.LLMJSONMode,
		}), nil
	case "gemini":
		return gemini.New(cfg.LLMAPIKeys, cfg.LLMModel, cfg.LLMTemperature)
	case "openrouter":
		return openrouter.New(key, cfg.LLMModel, cfg.LLMBaseURL, cfg.LLMTemperature), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLMProvider)
	}
}

func outputDir(cfg Config, name string, now time.Time) string {
	if !cfg.PerRunDir {
		return cfg.OutDir
	}
	return buildRunOutDir(cfg.OutDir, name, now)
}

func logSummary(log *logger.Logger, res usecase.Result, started time.Time) {
	failed := 0
	for _, r := range res.Renders {
		if !r.OK {
			failed++
			log.Warn("clip failed", "index", r.Index, "error", r.Err.Error())
		}
	}
	log.Info("run finished",
		"segments", len(res.Validated),
		"clips", len(res.Artifacts.Clips),
		"failed", failed,
		"published", len(res.Published),
		"elapsed_ms", time.Since(started).Milliseconds(),
	)
}

// sourceStem names a per-run directory before the source title is known.
func sourceStem(ref string) string {
	if ytdlp.IsURL(ref) {
		return "url-" + hash(ref)[:6]
	}
	return strings.TrimSuffix(filepath.Base(ref), filepath.Ext(ref))
}

func buildRunOutDir(outRoot, name string, now time.Time) string {
	name = normalizePathSegment(name)
	if name == "" {
		name = "input"
	}
	ts := now.UTC().Format("20060102-150405Z")
	runSeed := fmt.Sprintf("%s|%d", name, now.UTC().UnixNano())
	suffix := hash(runSeed)[:6]
	return filepath.Join(outRoot, fmt.Sprintf("%s-%s-%s", name, ts, suffix))
}

func normalizePathSegment(s string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

// cacheKey names the transcript cache of one source. Local files also key on
// size and mtime so an edited file at the same path is transcribed again.
func cacheKey(ref, transcript string) string {
	if transcript == "" {
		transcript = usecase.TranscriptAuto
	}
	seed := ref + "|" + transcript
	if !ytdlp.IsURL(ref) {
		if st, err := os.Stat(ref); err == nil {
			seed += fmt.Sprintf("|%d|%d", st.Size(), st.ModTime().UnixNano())
		}
	}
	return hash(seed)
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}

// sourceRouter downloads URLs with yt-dlp and serves everything else from disk.
type sourceRouter struct {
	remote *ytdlp.Adapter
	local  *localsrc.Source
}

func newSourceRouter(ytdlpPath, subLang string) *sourceRouter {
	return &sourceRouter{remote: ytdlp.New(ytdlpPath, subLang), local: localsrc.New()}
}

func (r *sourceRouter) Fetch(ctx context.Context, ref, downloadDir string) (types.Source, error) {
	if ytdlp.IsURL(ref) {
		return r.remote.Fetch(ctx, ref, downloadDir)
	}
	return r.local.Fetch(ctx, ref, downloadDir)
}

// ensure adapters implement ports
var _ ports.VideoSource = (*sourceRouter)(nil)
var _ ports.VideoSource = (*ytdlp.Adapter)(nil)
var _ ports.VideoSource = (*localsrc.Source)(nil)
var _ ports.CueReader = vtt.Reader{}
var _ ports.AudioExtractor = (*ffmpeg.Adapter)(nil)
var _ ports.Prober = (*ffmpeg.Adapter)(nil)
var _ ports.Transcoder = (*ffmpeg.Adapter)(nil)
var _ ports.ASR = (*whispercpp.Adapter)(nil)
var _ ports.SegmentProducer = (*openai.Adapter)(nil)
var _ ports.SegmentProducer = (*gemini.Adapter)(nil)
var _ ports.SegmentProducer = (*openrouter.Adapter)(nil)
