// Package aggregate joins render results back to their segments and writes the
// per-run artifacts.
package aggregate

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/forPelevin/topiccut/internal/domain/segments"
	"github.com/forPelevin/topiccut/internal/types"
)

const (
	LabelsFile   = "segment_labels.txt"
	SegmentsFile = "segments.json"
)

// Aggregate builds the labels of successful renders, ordered by segment index,
// and the full structured record of every segment including invalid ones.
func Aggregate(vs []types.ValidatedSegment, results []types.RenderResult) types.PipelineOutput {
	ok := make(map[int]types.RenderResult, len(results))
	for _, r := range results {
		if r.OK {
			ok[r.Index] = r
		}
	}

	out := types.PipelineOutput{
		Labels: []string{},
		Record: make([]types.RecordEntry, 0, len(vs)),
	}
	for _, v := range vs {
		out.Record = append(out.Record, types.RecordEntry{
			StartTime:   v.StartTime,
			EndTime:     v.EndTime,
			Title:       v.Title,
			Description: v.Description,
			Duration:    v.Duration,
			Valid:       v.Valid,
		})
		r, found := ok[v.Index]
		if !v.Valid || !found {
			continue
		}
		label := r.Label
		if label == "" {
			label = segments.Label(v)
		}
		out.Labels = append(out.Labels, label)
	}
	return out
}

// Clips lists the output paths of successful renders in submission order.
func Clips(results []types.RenderResult) []string {
	clips := []string{}
	for _, r := range results {
		if r.OK {
			clips = append(clips, r.OutputPath)
		}
	}
	return clips
}

// Write persists the labels and the structured record under dir. Both files
// are always written, even when no clip was produced.
func Write(dir string, out types.PipelineOutput) (types.Artifacts, error) {
	art := types.Artifacts{
		LabelsPath:  filepath.Join(dir, LabelsFile),
		SegmentPath: filepath.Join(dir, SegmentsFile),
	}

	if err := writeFile(art.LabelsPath, encodeLabels(out.Labels)); err != nil {
		return art, &types.AggregationError{Artifact: "labels", Path: art.LabelsPath, Err: err}
	}

	b, err := EncodeRecord(out.Record)
	if err != nil {
		return art, &types.AggregationError{Artifact: "segments", Path: art.SegmentPath, Err: err}
	}
	if err := writeFile(art.SegmentPath, b); err != nil {
		return art, &types.AggregationError{Artifact: "segments", Path: art.SegmentPath, Err: err}
	}
	return art, nil
}

// encodeLabels separates entries with a blank line.
func encodeLabels(labels []string) []byte {
	var buf bytes.Buffer
	for _, l := range labels {
		buf.WriteString(l)
		buf.WriteString("\n\n")
	}
	return buf.Bytes()
}

// EncodeRecord renders the record as an indented JSON array.
func EncodeRecord(rec []types.RecordEntry) ([]byte, error) {
	if rec == nil {
		rec = []types.RecordEntry{}
	}
	b, err := json.MarshalIndent(rec, "", "    ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func writeFile(path string, b []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
