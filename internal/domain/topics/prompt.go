// Package topics holds the provider-independent half of segment production:
// prompts, the response schema, and strict parsing of the model's answer.
package topics

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/forPelevin/topiccut/internal/types"
)

// MinCues is the shortest transcript worth sending to a model.
const MinCues = 10

const (
	MinSegmentSec = 30
	MaxSegmentSec = 500
)

const SystemPrompt = "You are a viral content producer. You are a master at reading YouTube transcripts " +
	"and finding the most intriguing content. You extract self-contained sub-topics that can be " +
	"republished as separate videos."

// CheckTranscript rejects transcripts too short to split.
func CheckTranscript(cues []types.Cue) error {
	if len(cues) < MinCues {
		return fmt.Errorf("%d cues (need %d): %w", len(cues), MinCues, types.ErrTranscriptTooShort)
	}
	return nil
}

func UserPrompt(cues []types.Cue) string {
	var b strings.Builder
	b.WriteString("Below is the transcript of a video. ")
	b.WriteString("Identify every segment that can be extracted as a standalone sub-topic. ")
	fmt.Fprintf(&b, "Each segment must be between %d and %d seconds long. ", MinSegmentSec, MaxSegmentSec)
	b.WriteString("Timestamps are in seconds from the start of the video and must be accurate. ")
	b.WriteString("Respond only with JSON of the form ")
	b.WriteString(`{"segments":[{"start_time":0,"end_time":0,"yt_title":"","description":"","duration":0}]}`)
	b.WriteString(" where yt_title is a catchy title, description is a detailed video description, ")
	b.WriteString("and duration is end_time minus start_time rounded to whole seconds.")
	b.WriteString("\n\nTranscript:\n")
	b.WriteString(FormatTranscript(cues))
	return b.String()
}

// FormatTranscript renders one "[start-end] text" line per cue.
func FormatTranscript(cues []types.Cue) string {
	var b strings.Builder
	for _, c := range cues {
		text := strings.TrimSpace(c.Text)
		if text == "" {
			continue
		}
		b.WriteByte('[')
		b.WriteString(secs(c.Start))
		b.WriteByte('-')
		b.WriteString(secs(c.End))
		b.WriteString("] ")
		b.WriteString(text)
		b.WriteByte('\n')
	}
	return b.String()
}

func secs(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

// Schema is the JSON schema of the expected model answer.
func Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"segments": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"start_time":  map[string]any{"type": "number", "description": "segment start in seconds"},
						"end_time":    map[string]any{"type": "number", "description": "segment end in seconds"},
						"yt_title":    map[string]any{"type": "string", "description": "title that makes the segment a viral sub-topic"},
						"description": map[string]any{"type": "string", "description": "detailed video description"},
						"duration":    map[string]any{"type": "integer", "description": "segment length in seconds"},
					},
					"required":             []string{"start_time", "end_time", "yt_title", "description", "duration"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"segments"},
		"additionalProperties": false,
	}
}
