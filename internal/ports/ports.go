package ports

import (
	"context"
	"io"

	"github.com/forPelevin/topiccut/internal/types"
)

type VideoSource interface {
	Fetch(ctx context.Context, ref, downloadDir string) (types.Source, error)
}

type AudioExtractor interface {
	ExtractAudioMono16k(ctx context.Context, inPath, outWav string) error
}

type ASR interface {
	Transcribe(ctx context.Context, wavPath, cacheDir string) ([]types.Cue, error)
}

// SegmentProducer turns transcript cues into candidate sub-topic segments.
type SegmentProducer interface {
	ProposeSegments(ctx context.Context, cues []types.Cue) ([]types.Segment, error)
}

type Prober interface {
	// ProbeDuration returns the playable length of path in seconds.
	ProbeDuration(ctx context.Context, path string) (float64, error)
}

// Transcoder cuts [start, end) seconds of in into out, replacing out if it exists.
type Transcoder interface {
	Cut(ctx context.Context, in string, start, end float64, out string) error
}

// CueReader loads a subtitle file that came with the source.
type CueReader interface {
	ReadCues(path string) ([]types.Cue, error)
}

type PutObjectInput struct {
	ObjectKey   string
	ContentType string
	Reader      io.Reader
	Size        int64
}

type PutObjectOutput struct {
	// ObjectKey is the key as stored; for gdrive this is the file id.
	ObjectKey string
	Size      int64
}

// ObjectStore publishes run artifacts somewhere outside the output directory.
type ObjectStore interface {
	Provider() string
	PutObject(ctx context.Context, in PutObjectInput) (PutObjectOutput, error)
}
