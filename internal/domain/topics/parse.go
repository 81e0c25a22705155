package topics

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/forPelevin/topiccut/internal/types"
)

// ExtractJSON strips markdown fences and surrounding prose from a model
// answer and returns the outermost JSON object or array.
func ExtractJSON(s string) (string, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return "", errors.New("empty content")
	}

	if strings.HasPrefix(t, "```") {
		if i := strings.Index(t, "\n"); i >= 0 {
			t = t[i+1:]
		}
		if j := strings.LastIndex(t, "```"); j >= 0 {
			t = t[:j]
		}
		t = strings.TrimSpace(t)
	}

	start := strings.IndexAny(t, "{[")
	if start < 0 {
		return "", fmt.Errorf("could not locate JSON in: %q", Truncate(t, 200))
	}
	closer := "}"
	if t[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(t, closer)
	if end <= start {
		return "", fmt.Errorf("could not locate JSON in: %q", Truncate(t, 200))
	}
	return t[start : end+1], nil
}

func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// rawSegment uses pointers so missing fields can be told apart from zeros.
type rawSegment struct {
	StartTime   *float64 `json:"start_time"`
	EndTime     *float64 `json:"end_time"`
	Title       *string  `json:"yt_title"`
	Description *string  `json:"description"`
	Duration    *float64 `json:"duration"`
}

// ParseSegments decodes either {"segments":[...]} or a bare array. Any entry
// with a missing field or a non-numeric time yields *MalformedSegmentsError.
func ParseSegments(raw string) ([]types.Segment, error) {
	clean, err := ExtractJSON(raw)
	if err != nil {
		return nil, &types.MalformedSegmentsError{Index: -1, Reason: err.Error()}
	}

	var items []json.RawMessage
	if strings.HasPrefix(clean, "{") {
		var wrapper struct {
			Segments *[]json.RawMessage `json:"segments"`
		}
		if err := json.Unmarshal([]byte(clean), &wrapper); err != nil {
			return nil, &types.MalformedSegmentsError{Index: -1, Reason: err.Error()}
		}
		if wrapper.Segments == nil {
			return nil, &types.MalformedSegmentsError{Index: -1, Reason: `missing "segments" array`}
		}
		items = *wrapper.Segments
	} else if err := json.Unmarshal([]byte(clean), &items); err != nil {
		return nil, &types.MalformedSegmentsError{Index: -1, Reason: err.Error()}
	}

	out := make([]types.Segment, 0, len(items))
	for i, item := range items {
		s, err := parseOne(i, item)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func parseOne(i int, item json.RawMessage) (types.Segment, error) {
	if bytes.Equal(bytes.TrimSpace(item), []byte("null")) {
		return types.Segment{}, &types.MalformedSegmentsError{Index: i, Reason: "null entry"}
	}

	var r rawSegment
	if err := json.Unmarshal(item, &r); err != nil {
		var te *json.UnmarshalTypeError
		if errors.As(err, &te) {
			return types.Segment{}, &types.MalformedSegmentsError{Index: i, Field: te.Field, Reason: "expected " + te.Type.String() + ", got " + te.Value}
		}
		return types.Segment{}, &types.MalformedSegmentsError{Index: i, Reason: err.Error()}
	}

	switch {
	case r.StartTime == nil:
		return types.Segment{}, missing(i, "start_time")
	case r.EndTime == nil:
		return types.Segment{}, missing(i, "end_time")
	case r.Title == nil:
		return types.Segment{}, missing(i, "yt_title")
	case r.Description == nil:
		return types.Segment{}, missing(i, "description")
	case r.Duration == nil:
		return types.Segment{}, missing(i, "duration")
	}

	return types.Segment{
		StartTime:   *r.StartTime,
		EndTime:     *r.EndTime,
		Title:       strings.TrimSpace(*r.Title),
		Description: strings.TrimSpace(*r.Description),
		// Producers sometimes emit 45.6 for an integer field; round to whole seconds.
		Duration: int(math.Round(*r.Duration)),
	}, nil
}

func missing(i int, field string) error {
	return &types.MalformedSegmentsError{Index: i, Field: field, Reason: "missing"}
}
