package segments

import (
	"fmt"

	"github.com/forPelevin/topiccut/internal/types"
)

// Label is the human-readable summary of one rendered clip.
func Label(v types.ValidatedSegment) string {
	return fmt.Sprintf("Sub-Topic %d: %s, Duration: %ds\nDescription: %s",
		v.Index, v.Title, v.Duration, v.Description)
}
