package types

import (
	"errors"
	"fmt"
)

var ErrTranscriptTooShort = errors.New("transcript is too short to extract meaningful segments")

// ProbeError reports that the duration of a media file could not be determined.
type ProbeError struct {
	Path string
	Err  error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s: %v", e.Path, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// AggregationError reports that a final artifact could not be written.
type AggregationError struct {
	Artifact string
	Path     string
	Err      error
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("write %s (%s): %v", e.Artifact, e.Path, e.Err)
}

func (e *AggregationError) Unwrap() error { return e.Err }

// MalformedSegmentsError reports producer output that does not match the
// segment shape.
type MalformedSegmentsError struct {
	Index  int
	Field  string
	Reason string
}

func (e *MalformedSegmentsError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("malformed segments: %s", e.Reason)
	}
	if e.Field == "" {
		return fmt.Sprintf("malformed segment %d: %s", e.Index, e.Reason)
	}
	return fmt.Sprintf("malformed segment %d: %s: %s", e.Index, e.Field, e.Reason)
}
