package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/forPelevin/topiccut/internal/aggregate"
	"github.com/forPelevin/topiccut/internal/domain/segments"
	"github.com/forPelevin/topiccut/internal/domain/topics"
	"github.com/forPelevin/topiccut/internal/pkg/logger"
	"github.com/forPelevin/topiccut/internal/ports"
	"github.com/forPelevin/topiccut/internal/render"
	"github.com/forPelevin/topiccut/internal/storage"
	"github.com/forPelevin/topiccut/internal/types"
)

// Transcript sources.
const (
	TranscriptAuto      = "auto"
	TranscriptSubtitles = "subtitles"
	TranscriptWhisper   = "whisper"
)

// durationTolerance is how far a segment's declared duration may drift from
// end-start before a warning is logged.
const durationTolerance = 1.0

type Deps struct {
	Source     ports.VideoSource
	Subtitles  ports.CueReader
	Audio      ports.AudioExtractor
	ASR        ports.ASR
	Producer   ports.SegmentProducer
	Prober     ports.Prober
	Transcoder ports.Transcoder
	// Store is optional; nil disables publishing.
	Store ports.ObjectStore
	Log   *logger.Logger

	Workers       int
	RenderTimeout time.Duration
}

type Usecase struct {
	d     Deps
	coord *render.Coordinator
	log   *logger.Logger
}

func New(d Deps) Usecase {
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	r := render.NewRenderer(d.Transcoder, d.RenderTimeout, d.Log)
	return Usecase{
		d:     d,
		coord: render.NewCoordinator(r, d.Workers, d.Log),
		log:   d.Log.WithComponent("usecase"),
	}
}

type Input struct {
	// Ref is a URL or a local path.
	Ref         string
	RunID       string
	Transcript  string
	DownloadDir string
	CacheDir    string
	OutputDir   string
}

type CutInput struct {
	RunID      string
	SourcePath string
	BaseName   string
	OutputDir  string
	Segments   []types.Segment
	// ReportedDuration is compared with the probed one when non-zero.
	ReportedDuration float64
}

type Result struct {
	Source    types.Source
	Run       types.RunContext
	Duration  float64
	Validated []types.ValidatedSegment
	Renders   []types.RenderResult
	Output    types.PipelineOutput
	Artifacts types.Artifacts
	Published []string
}

// Run fetches the source, builds a transcript, asks the producer for
// segments and hands them to Cut.
func (u Usecase) Run(ctx context.Context, in Input) (Result, error) {
	ctx = logger.ContextWithRunID(ctx, in.RunID)
	log := u.log.FromContext(ctx)

	log.Info("fetching source", "ref", in.Ref)
	src, err := u.d.Source.Fetch(ctx, in.Ref, in.DownloadDir)
	if err != nil {
		return Result{}, fmt.Errorf("fetch source: %w", err)
	}
	log.Info("source ready", "path", src.Path, "title", src.Title, "base_name", src.BaseName)

	cues, err := u.transcript(ctx, src, in)
	if err != nil {
		return Result{Source: src}, err
	}
	if err := topics.CheckTranscript(cues); err != nil {
		return Result{Source: src}, err
	}
	log.Info("transcript ready", "cues", len(cues))

	segs, err := u.d.Producer.ProposeSegments(ctx, cues)
	if err != nil {
		return Result{Source: src}, fmt.Errorf("propose segments: %w", err)
	}
	log.Info("segments proposed", "segments", len(segs))

	res, err := u.Cut(ctx, CutInput{
		RunID:            in.RunID,
		SourcePath:       src.Path,
		BaseName:         src.BaseName,
		OutputDir:        in.OutputDir,
		Segments:         segs,
		ReportedDuration: src.ReportedDuration,
	})
	res.Source = src
	return res, err
}

// Cut probes, validates, renders and aggregates a known segment list.
func (u Usecase) Cut(ctx context.Context, in CutInput) (Result, error) {
	ctx = logger.ContextWithRunID(ctx, in.RunID)
	log := u.log.FromContext(ctx)

	rc := types.RunContext{
		RunID:      in.RunID,
		SourcePath: in.SourcePath,
		OutputDir:  in.OutputDir,
		BaseName:   in.BaseName,
	}
	res := Result{Run: rc}

	total, err := u.d.Prober.ProbeDuration(ctx, in.SourcePath)
	if err != nil {
		return res, fmt.Errorf("probe source: %w", err)
	}
	res.Duration = total
	log.Info("source probed", "duration_sec", total)
	if in.ReportedDuration > 0 && absf(in.ReportedDuration-total) > durationTolerance {
		log.Warn("reported duration differs from probed duration",
			"reported_sec", in.ReportedDuration, "probed_sec", total)
	}

	res.Validated = segments.Validate(in.Segments, total)
	for _, v := range res.Validated {
		if !v.Valid {
			log.Warn("segment out of range",
				"index", v.Index, "start_time", v.StartTime, "end_time", v.EndTime, "duration_sec", total)
		}
		if derived, mismatch := segments.DurationMismatch(v.Segment, durationTolerance); mismatch {
			log.Warn("segment duration does not match its bounds",
				"index", v.Index, "duration", v.Duration, "derived", derived)
		}
	}
	log.Info("segments validated", "valid", segments.CountValid(res.Validated), "total", len(res.Validated))

	if err := os.MkdirAll(rc.OutputDir, 0o755); err != nil {
		return res, fmt.Errorf("create output dir: %w", err)
	}
	res.Renders = u.coord.RenderAll(ctx, rc, res.Validated)

	res.Output = aggregate.Aggregate(res.Validated, res.Renders)
	art, err := aggregate.Write(rc.OutputDir, res.Output)
	art.Clips = aggregate.Clips(res.Renders)
	res.Artifacts = art
	if err != nil {
		return res, err
	}
	log.Info("artifacts written",
		"clips", len(art.Clips), "labels", art.LabelsPath, "segments", art.SegmentPath)

	res.Published = u.publish(ctx, rc.RunID, art)
	return res, nil
}

func (u Usecase) transcript(ctx context.Context, src types.Source, in Input) ([]types.Cue, error) {
	log := u.log.FromContext(ctx)

	var cached string
	if in.CacheDir != "" {
		cached = filepath.Join(in.CacheDir, "transcript.json")
		if cues, err := readCues(cached); err == nil && len(cues) > 0 {
			log.Info("using cached transcript", "path", cached)
			return cues, nil
		}
	}

	mode := in.Transcript
	if mode == "" {
		mode = TranscriptAuto
	}

	var (
		cues []types.Cue
		err  error
	)
	switch {
	case mode != TranscriptWhisper && src.SubtitlesPath != "" && u.d.Subtitles != nil:
		log.Info("reading subtitles", "path", src.SubtitlesPath)
		cues, err = u.d.Subtitles.ReadCues(src.SubtitlesPath)
		if err != nil {
			return nil, fmt.Errorf("read subtitles: %w", err)
		}
	case mode == TranscriptSubtitles:
		return nil, errors.New("no subtitles available for source")
	default:
		if u.d.ASR == nil || u.d.Audio == nil {
			return nil, errors.New("no subtitles available and speech recognition is not configured")
		}
		work := in.CacheDir
		if work == "" {
			work = os.TempDir()
		}
		if err := os.MkdirAll(work, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
		wav := filepath.Join(work, "audio.wav")
		log.Info("extracting audio", "wav", wav)
		if err := u.d.Audio.ExtractAudioMono16k(ctx, src.Path, wav); err != nil {
			return nil, fmt.Errorf("extract audio: %w", err)
		}
		log.Info("transcribing")
		cues, err = u.d.ASR.Transcribe(ctx, wav, work)
		if err != nil {
			return nil, fmt.Errorf("transcribe: %w", err)
		}
	}

	if cached != "" && len(cues) > 0 {
		if err := writeCues(cached, cues); err != nil {
			log.Warn("could not cache transcript", "error", err.Error())
		}
	}
	return cues, nil
}

// publish uploads clips and artifacts. Failures are logged, never returned.
func (u Usecase) publish(ctx context.Context, runID string, art types.Artifacts) []string {
	if u.d.Store == nil {
		return nil
	}
	log := u.log.FromContext(ctx).WithFields(map[string]any{"provider": u.d.Store.Provider()})

	files := append([]string{}, art.Clips...)
	files = append(files, art.LabelsPath, art.SegmentPath)

	var keys []string
	for _, f := range files {
		out, err := storage.PutFile(ctx, u.d.Store, runID, f)
		if err != nil {
			log.Warn("publish failed", "file", f, "error", err.Error())
			continue
		}
		keys = append(keys, out.ObjectKey)
	}
	log.Info("published artifacts", "published", len(keys), "total", len(files))
	return keys
}

func readCues(path string) ([]types.Cue, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cues []types.Cue
	if err := json.Unmarshal(b, &cues); err != nil {
		return nil, err
	}
	return cues, nil
}

func writeCues(path string, cues []types.Cue) error {
	b, err := json.Marshal(cues)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
