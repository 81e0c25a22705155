package types

import (
	"fmt"
	"path/filepath"
	"strconv"
)

// Cue is one timed line of a transcript.
type Cue struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Segment is a proposed sub-topic of the source video. JSON field names are
// consumed downstream and must not change.
type Segment struct {
	StartTime   float64 `json:"start_time"`
	EndTime     float64 `json:"end_time"`
	Title       string  `json:"yt_title"`
	Description string  `json:"description"`
	Duration    int     `json:"duration"`
}

// Span returns end_time - start_time in seconds.
func (s Segment) Span() float64 { return s.EndTime - s.StartTime }

type ValidatedSegment struct {
	Segment
	// Index is the 1-based position in the producer's sequence.
	Index int
	Valid bool
}

// Source is a locally available source video.
type Source struct {
	Path     string
	ID       string
	Title    string
	BaseName string
	// ReportedDuration is the platform-reported length in seconds, 0 when unknown.
	ReportedDuration float64
	SubtitlesPath    string
}

// RunContext carries the per-run paths every component needs.
type RunContext struct {
	RunID      string
	SourcePath string
	OutputDir  string
	BaseName   string
	Ext        string
}

// ClipPath returns OutputDir/<BaseName>_<index>.<Ext>.
func (rc RunContext) ClipPath(index int) string {
	ext := rc.Ext
	if ext == "" {
		ext = "mp4"
	}
	return filepath.Join(rc.OutputDir, rc.BaseName+"_"+strconv.Itoa(index)+"."+ext)
}

type RenderTask struct {
	Segment    ValidatedSegment
	SourcePath string
	OutputPath string
}

type RenderResult struct {
	Index      int
	OK         bool
	OutputPath string
	Label      string
	Err        error
}

func (r RenderResult) String() string {
	if r.OK {
		return fmt.Sprintf("segment %d: ok (%s)", r.Index, r.OutputPath)
	}
	return fmt.Sprintf("segment %d: failed: %v", r.Index, r.Err)
}

// RecordEntry is one element of segments.json.
type RecordEntry struct {
	StartTime   float64 `json:"start_time"`
	EndTime     float64 `json:"end_time"`
	Title       string  `json:"yt_title"`
	Description string  `json:"description"`
	Duration    int     `json:"duration"`
	Valid       bool    `json:"valid"`
}

type PipelineOutput struct {
	Labels []string
	Record []RecordEntry
}

// Artifacts are the files written at the end of a run.
type Artifacts struct {
	LabelsPath  string
	SegmentPath string
	Clips       []string
}
