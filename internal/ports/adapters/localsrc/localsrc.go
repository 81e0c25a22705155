// Package localsrc serves videos that are already on disk.
package localsrc

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/forPelevin/topiccut/internal/domain/naming"
	"github.com/forPelevin/topiccut/internal/types"
)

type Source struct{}

func New() *Source { return &Source{} }

// Fetch resolves ref to an absolute path. downloadDir is unused; local files
// are never copied. A sibling <stem>.vtt or <stem>.en.vtt is picked up as subtitles.
func (s *Source) Fetch(_ context.Context, ref, _ string) (types.Source, error) {
	abs, err := filepath.Abs(ref)
	if err != nil {
		return types.Source{}, err
	}
	st, err := os.Stat(abs)
	if err != nil {
		return types.Source{}, fmt.Errorf("stat input: %w", err)
	}
	if st.IsDir() {
		return types.Source{}, fmt.Errorf("input %s is a directory", abs)
	}

	stem := strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs))
	src := types.Source{
		Path:     abs,
		ID:       stem,
		Title:    stem,
		BaseName: naming.BaseName(stem),
	}
	for _, cand := range []string{stem + ".vtt", stem + ".en.vtt"} {
		p := filepath.Join(filepath.Dir(abs), cand)
		if _, err := os.Stat(p); err == nil {
			src.SubtitlesPath = p
			break
		}
	}
	return src, nil
}
