package whispercpp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/forPelevin/topiccut/internal/types"
)

type Adapter struct {
	bin   string
	model string
}

func New(binPath, modelPath string) *Adapter {
	if binPath == "" {
		binPath = "whisper-cli"
	}
	return &Adapter{bin: binPath, model: modelPath}
}

// output is the subset of whisper.cpp -oj we read. Offsets are milliseconds.
type output struct {
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

func (a *Adapter) Transcribe(ctx context.Context, wavPath, cacheDir string) ([]types.Cue, error) {
	if a.model == "" {
		return nil, fmt.Errorf("whisper.cpp: model path is required")
	}
	outPrefix := filepath.Join(cacheDir, "whisper")
	args := []string{
		"-m", a.model,
		"-f", wavPath,
		"-oj",
		"-of", outPrefix,
	}
	cmd := exec.CommandContext(ctx, a.bin, args...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("whisper.cpp failed: %w\n%s", err, strings.TrimSpace(string(b)))
	}

	jb, err := os.ReadFile(outPrefix + ".json")
	if err != nil {
		return nil, fmt.Errorf("read whisper output: %w", err)
	}
	return Parse(jb)
}

// Parse converts whisper.cpp JSON output into cues, dropping blank lines.
func Parse(b []byte) ([]types.Cue, error) {
	var out output
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("parse whisper output: %w", err)
	}
	cues := make([]types.Cue, 0, len(out.Transcription))
	for _, s := range out.Transcription {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		cues = append(cues, types.Cue{
			Start: float64(s.Offsets.From) / 1000,
			End:   float64(s.Offsets.To) / 1000,
			Text:  text,
		})
	}
	return cues, nil
}
