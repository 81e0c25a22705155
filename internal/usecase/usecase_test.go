package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/forPelevin/topiccut/internal/storage/localfs"
	"github.com/forPelevin/topiccut/internal/types"
)

func TestRun_SixHundredSecondSource(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	tc := &fakeTranscoder{}
	asr := &fakeASR{cues: testCues(20)}
	uc := New(Deps{
		Source:     fakeSource{src: types.Source{Path: filepath.Join(tmp, "in.mp4"), BaseName: "My_Video", ReportedDuration: 600}},
		Audio:      fakeAudio{},
		ASR:        asr,
		Producer:   fakeProducer{segs: threeSegments()},
		Prober:     fakeProber{dur: 600},
		Transcoder: tc,
		Workers:    2,
	})

	outDir := filepath.Join(tmp, "generated_clips")
	res, err := uc.Run(context.Background(), Input{
		Ref:       "https://example.com/v",
		RunID:     "run-1",
		CacheDir:  filepath.Join(tmp, "cache"),
		OutputDir: outDir,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if got := tc.count(); got != 2 {
		t.Fatalf("expected 2 render attempts, got %d", got)
	}
	for _, name := range []string{"My_Video_1.mp4", "My_Video_2.mp4"} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Fatalf("expected clip %s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(outDir, "My_Video_3.mp4")); !os.IsNotExist(err) {
		t.Fatalf("out-of-range segment must not be rendered, stat err=%v", err)
	}

	if len(res.Output.Labels) != 2 {
		t.Fatalf("expected 2 labels, got %q", res.Output.Labels)
	}
	if !strings.HasPrefix(res.Output.Labels[1], "Sub-Topic 2: Main, Duration: 100s") {
		t.Fatalf("unexpected second label %q", res.Output.Labels[1])
	}
	if len(res.Output.Record) != 3 || res.Output.Record[2].Valid {
		t.Fatalf("record must keep all three segments with the last invalid: %+v", res.Output.Record)
	}
	labels, err := os.ReadFile(res.Artifacts.LabelsPath)
	if err != nil {
		t.Fatalf("read labels: %v", err)
	}
	if strings.Count(string(labels), "Sub-Topic") != 2 {
		t.Fatalf("unexpected labels file:\n%s", labels)
	}
	if _, err := os.Stat(filepath.Join(tmp, "cache", "transcript.json")); err != nil {
		t.Fatalf("expected cached transcript: %v", err)
	}
	if asr.calls != 1 {
		t.Fatalf("expected one transcription, got %d", asr.calls)
	}
}

func TestRun_UsesCachedTranscript(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	asr := &fakeASR{cues: testCues(12)}
	uc := New(Deps{
		Source:     fakeSource{src: types.Source{Path: "in.mp4", BaseName: "v"}},
		Audio:      fakeAudio{},
		ASR:        asr,
		Producer:   fakeProducer{},
		Prober:     fakeProber{dur: 60},
		Transcoder: &fakeTranscoder{},
	})
	in := Input{Ref: "in.mp4", CacheDir: filepath.Join(tmp, "cache"), OutputDir: filepath.Join(tmp, "out")}
	for i := 0; i < 2; i++ {
		if _, err := uc.Run(context.Background(), in); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	if asr.calls != 1 {
		t.Fatalf("expected transcript to be reused, got %d transcriptions", asr.calls)
	}
}

func TestRun_PrefersSubtitles(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	asr := &fakeASR{cues: testCues(12)}
	subs := &fakeCueReader{cues: testCues(15)}
	uc := New(Deps{
		Source:     fakeSource{src: types.Source{Path: "in.mp4", BaseName: "v", SubtitlesPath: "in.en.vtt"}},
		Subtitles:  subs,
		Audio:      fakeAudio{},
		ASR:        asr,
		Producer:   fakeProducer{},
		Prober:     fakeProber{dur: 60},
		Transcoder: &fakeTranscoder{},
	})
	_, err := uc.Run(context.Background(), Input{Ref: "in.mp4", OutputDir: filepath.Join(tmp, "out")})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if subs.calls != 1 || asr.calls != 0 {
		t.Fatalf("expected subtitles to be used, subs=%d asr=%d", subs.calls, asr.calls)
	}
}

func TestRun_SubtitlesModeWithoutSubtitles(t *testing.T) {
	t.Parallel()

	uc := New(Deps{
		Source:    fakeSource{src: types.Source{Path: "in.mp4", BaseName: "v"}},
		Subtitles: &fakeCueReader{},
		Producer:  fakeProducer{},
	})
	_, err := uc.Run(context.Background(), Input{Ref: "in.mp4", Transcript: TranscriptSubtitles, OutputDir: t.TempDir()})
	if err == nil {
		t.Fatal("expected error when subtitles are required but missing")
	}
}

func TestRun_ShortTranscriptStops(t *testing.T) {
	t.Parallel()

	producer := &countingProducer{}
	uc := New(Deps{
		Source:   fakeSource{src: types.Source{Path: "in.mp4", BaseName: "v"}},
		Audio:    fakeAudio{},
		ASR:      &fakeASR{cues: testCues(9)},
		Producer: producer,
	})
	_, err := uc.Run(context.Background(), Input{Ref: "in.mp4", CacheDir: t.TempDir(), OutputDir: t.TempDir()})
	if !errors.Is(err, types.ErrTranscriptTooShort) {
		t.Fatalf("expected ErrTranscriptTooShort, got %v", err)
	}
	if producer.calls != 0 {
		t.Fatalf("producer must not be called for a short transcript")
	}
}

func TestRun_MalformedSegmentsStop(t *testing.T) {
	t.Parallel()

	tc := &fakeTranscoder{}
	uc := New(Deps{
		Source:     fakeSource{src: types.Source{Path: "in.mp4", BaseName: "v"}},
		Audio:      fakeAudio{},
		ASR:        &fakeASR{cues: testCues(12)},
		Producer:   fakeProducer{err: &types.MalformedSegmentsError{Index: 0, Field: "start_time", Reason: "missing"}},
		Prober:     fakeProber{dur: 60},
		Transcoder: tc,
	})
	_, err := uc.Run(context.Background(), Input{Ref: "in.mp4", CacheDir: t.TempDir(), OutputDir: t.TempDir()})
	var me *types.MalformedSegmentsError
	if !errors.As(err, &me) {
		t.Fatalf("expected MalformedSegmentsError, got %v", err)
	}
	if tc.count() != 0 {
		t.Fatalf("nothing must be rendered after a malformed response")
	}
}

func TestCut_ProbeFailureIsFatal(t *testing.T) {
	t.Parallel()

	tc := &fakeTranscoder{}
	uc := New(Deps{
		Prober:     fakeProber{err: &types.ProbeError{Path: "in.mp4", Err: errors.New("no duration")}},
		Transcoder: tc,
	})
	outDir := filepath.Join(t.TempDir(), "out")
	_, err := uc.Cut(context.Background(), CutInput{SourcePath: "in.mp4", BaseName: "v", OutputDir: outDir, Segments: threeSegments()})
	var pe *types.ProbeError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProbeError, got %v", err)
	}
	if tc.count() != 0 {
		t.Fatalf("no render may start after a probe failure")
	}
	if _, err := os.Stat(filepath.Join(outDir, "segments.json")); !os.IsNotExist(err) {
		t.Fatalf("no artifacts may be written after a probe failure, stat err=%v", err)
	}
}

func TestCut_AllRendersFail(t *testing.T) {
	t.Parallel()

	tc := &fakeTranscoder{fail: true}
	uc := New(Deps{Prober: fakeProber{dur: 600}, Transcoder: tc})
	res, err := uc.Cut(context.Background(), CutInput{SourcePath: "in.mp4", BaseName: "v", OutputDir: t.TempDir(), Segments: threeSegments()})
	if err != nil {
		t.Fatalf("render failures must not fail the run: %v", err)
	}
	if len(res.Output.Labels) != 0 {
		t.Fatalf("expected no labels, got %q", res.Output.Labels)
	}
	if len(res.Output.Record) != 3 {
		t.Fatalf("expected full record, got %d entries", len(res.Output.Record))
	}
	if len(res.Renders) != 2 {
		t.Fatalf("expected 2 render results, got %d", len(res.Renders))
	}
	for _, r := range res.Renders {
		if r.OK || r.Err == nil {
			t.Fatalf("expected failed result, got %v", r)
		}
	}
}

func TestCut_NoValidSegments(t *testing.T) {
	t.Parallel()

	tc := &fakeTranscoder{}
	uc := New(Deps{Prober: fakeProber{dur: 600}, Transcoder: tc})
	res, err := uc.Cut(context.Background(), CutInput{
		SourcePath: "in.mp4",
		BaseName:   "v",
		OutputDir:  t.TempDir(),
		Segments:   []types.Segment{{StartTime: 700, EndTime: 760, Title: "late", Duration: 60}},
	})
	if err != nil {
		t.Fatalf("cut: %v", err)
	}
	if tc.count() != 0 || len(res.Renders) != 0 {
		t.Fatalf("expected no renders, got %d", tc.count())
	}
	b, err := os.ReadFile(res.Artifacts.LabelsPath)
	if err != nil || len(b) != 0 {
		t.Fatalf("expected empty labels file, got %q, %v", b, err)
	}
}

func TestCut_PublishesArtifacts(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	uc := New(Deps{Prober: fakeProber{dur: 600}, Transcoder: &fakeTranscoder{}, Store: localfs.New(root)})
	res, err := uc.Cut(context.Background(), CutInput{
		RunID:      "run-7",
		SourcePath: "in.mp4",
		BaseName:   "v",
		OutputDir:  t.TempDir(),
		Segments:   threeSegments(),
	})
	if err != nil {
		t.Fatalf("cut: %v", err)
	}
	if len(res.Published) != 4 {
		t.Fatalf("expected 2 clips and 2 artifacts published, got %v", res.Published)
	}
	for _, name := range []string{"v_1.mp4", "v_2.mp4", "segment_labels.txt", "segments.json"} {
		if _, err := os.Stat(filepath.Join(root, "run-7", name)); err != nil {
			t.Fatalf("expected published %s: %v", name, err)
		}
	}
}

func TestCut_ConcurrentRunsKeepTheirRecords(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	runs := []struct {
		title string
		segs  int
		dir   string
	}{
		{"A", 2, filepath.Join(root, "a-run")},
		{"B", 3, filepath.Join(root, "b-run")},
	}

	var wg sync.WaitGroup
	errs := make([]error, len(runs))
	for i, r := range runs {
		segs := make([]types.Segment, r.segs)
		for j := range segs {
			segs[j] = types.Segment{StartTime: float64(j * 60), EndTime: float64(j*60 + 40), Title: r.title, Description: "d", Duration: 40}
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			uc := New(Deps{Prober: fakeProber{dur: 600}, Transcoder: &fakeTranscoder{}})
			_, errs[i] = uc.Cut(context.Background(), CutInput{SourcePath: r.title + ".mp4", BaseName: r.title, OutputDir: r.dir, Segments: segs})
		}()
	}
	wg.Wait()

	for i, r := range runs {
		if errs[i] != nil {
			t.Fatalf("run %s: %v", r.title, errs[i])
		}
		b, err := os.ReadFile(filepath.Join(r.dir, "segments.json"))
		if err != nil {
			t.Fatalf("run %s: %v", r.title, err)
		}
		var record []types.RecordEntry
		if err := json.Unmarshal(b, &record); err != nil {
			t.Fatalf("run %s: %v", r.title, err)
		}
		if len(record) != r.segs {
			t.Fatalf("run %s: expected %d entries, got %d", r.title, r.segs, len(record))
		}
		for _, e := range record {
			if e.Title != r.title {
				t.Fatalf("run %s: foreign entry %+v", r.title, e)
			}
		}
	}
}

func threeSegments() []types.Segment {
	return []types.Segment{
		{StartTime: 30, EndTime: 90, Title: "Intro", Description: "Opening", Duration: 60},
		{StartTime: 100, EndTime: 200, Title: "Main", Description: "Core idea", Duration: 100},
		{StartTime: 580, EndTime: 650, Title: "Outro", Description: "Past the end", Duration: 70},
	}
}

func testCues(n int) []types.Cue {
	out := make([]types.Cue, n)
	for i := range out {
		out[i] = types.Cue{Start: float64(i * 5), End: float64(i*5 + 5), Text: fmt.Sprintf("line %d", i)}
	}
	return out
}

type fakeSource struct {
	src types.Source
}

func (f fakeSource) Fetch(_ context.Context, _, _ string) (types.Source, error) {
	return f.src, nil
}

type fakeAudio struct{}

func (fakeAudio) ExtractAudioMono16k(_ context.Context, _, _ string) error { return nil }

type fakeASR struct {
	cues  []types.Cue
	calls int
}

func (f *fakeASR) Transcribe(_ context.Context, _, _ string) ([]types.Cue, error) {
	f.calls++
	return f.cues, nil
}

type fakeCueReader struct {
	cues  []types.Cue
	calls int
}

func (f *fakeCueReader) ReadCues(_ string) ([]types.Cue, error) {
	f.calls++
	return f.cues, nil
}

type fakeProducer struct {
	segs []types.Segment
	err  error
}

func (f fakeProducer) ProposeSegments(_ context.Context, _ []types.Cue) ([]types.Segment, error) {
	return f.segs, f.err
}

type countingProducer struct {
	calls int
}

func (f *countingProducer) ProposeSegments(_ context.Context, _ []types.Cue) ([]types.Segment, error) {
	f.calls++
	return nil, nil
}

type fakeProber struct {
	dur float64
	err error
}

func (f fakeProber) ProbeDuration(_ context.Context, _ string) (float64, error) {
	return f.dur, f.err
}

type fakeTranscoder struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (f *fakeTranscoder) Cut(_ context.Context, _ string, _, _ float64, out string) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.fail {
		return errors.New("exit status 1")
	}
	return os.WriteFile(out, []byte("clip"), 0o644)
}

func (f *fakeTranscoder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
