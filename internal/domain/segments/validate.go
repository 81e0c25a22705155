package segments

import (
	"math"

	"github.com/forPelevin/topiccut/internal/types"
)

// Validate flags every segment that starts or ends past total seconds.
// Order and count are preserved; out-of-range segments stay in the output
// with Valid=false. A segment starting exactly at total is valid.
func Validate(segs []types.Segment, total float64) []types.ValidatedSegment {
	out := make([]types.ValidatedSegment, len(segs))
	for i, s := range segs {
		out[i] = types.ValidatedSegment{
			Segment: s,
			Index:   i + 1,
			Valid:   !(s.StartTime > total || s.EndTime > total),
		}
	}
	return out
}

// CountValid returns how many validated segments are in range.
func CountValid(vs []types.ValidatedSegment) int {
	n := 0
	for _, v := range vs {
		if v.Valid {
			n++
		}
	}
	return n
}

// DurationMismatch reports whether the producer-supplied duration differs from
// round(end-start) by more than tolerance seconds. The duration is never rewritten.
func DurationMismatch(s types.Segment, tolerance float64) (derived int, mismatch bool) {
	derived = int(math.Round(s.Span()))
	return derived, math.Abs(float64(derived-s.Duration)) > tolerance
}
