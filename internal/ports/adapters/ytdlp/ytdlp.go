package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/forPelevin/topiccut/internal/domain/naming"
	"github.com/forPelevin/topiccut/internal/types"
)

type Adapter struct {
	bin     string
	subLang string
	format  string
}

func New(binPath, subLang string) *Adapter {
	if binPath == "" {
		binPath = "yt-dlp"
	}
	if subLang == "" {
		subLang = "en"
	}
	return &Adapter{bin: binPath, subLang: subLang, format: "mp4/bestvideo[ext=mp4]+bestaudio[ext=m4a]/best"}
}

// info is the subset of yt-dlp's info JSON we read.
type info struct {
	ID                string  `json:"id"`
	Title             string  `json:"title"`
	Duration          float64 `json:"duration"`
	Ext               string  `json:"ext"`
	Filename          string  `json:"_filename"`
	RequestedDownload []struct {
		Filepath string `json:"filepath"`
	} `json:"requested_downloads"`
}

func IsURL(ref string) bool {
	ref = strings.ToLower(strings.TrimSpace(ref))
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

func (a *Adapter) Fetch(ctx context.Context, ref, downloadDir string) (types.Source, error) {
	if !IsURL(ref) {
		return types.Source{}, fmt.Errorf("yt-dlp: %q is not a URL", ref)
	}
	if err := os.MkdirAll(downloadDir, 0o755); err != nil {
		return types.Source{}, fmt.Errorf("create download dir: %w", err)
	}

	cmd := exec.CommandContext(ctx, a.bin, a.args(ref, downloadDir)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return types.Source{}, fmt.Errorf("yt-dlp failed: %w\n%s", err, lastLines(stderr.String(), 20))
	}
	return a.sourceFromInfo(stdout.Bytes(), downloadDir)
}

func (a *Adapter) args(ref, downloadDir string) []string {
	return []string{
		"--no-simulate",
		"--dump-json",
		"--no-playlist",
		"--no-progress",
		"-f", a.format,
		"--merge-output-format", "mp4",
		"--restrict-filenames",
		"-o", filepath.Join(downloadDir, "%(id)s.%(ext)s"),
		"--write-auto-subs",
		"--write-subs",
		"--sub-langs", a.subLang,
		"--sub-format", "vtt",
		ref,
	}
}

func (a *Adapter) sourceFromInfo(out []byte, downloadDir string) (types.Source, error) {
	// yt-dlp prints one JSON object per line; the last one describes the download.
	lines := bytes.Split(bytes.TrimSpace(out), []byte("\n"))
	if len(lines) == 0 || len(lines[len(lines)-1]) == 0 {
		return types.Source{}, errors.New("yt-dlp printed no info JSON")
	}
	var in info
	if err := json.Unmarshal(lines[len(lines)-1], &in); err != nil {
		return types.Source{}, fmt.Errorf("parse yt-dlp info: %w", err)
	}
	if in.ID == "" {
		return types.Source{}, errors.New("yt-dlp info has no id")
	}

	path := ""
	if len(in.RequestedDownload) > 0 {
		path = in.RequestedDownload[0].Filepath
	}
	if path == "" {
		path = in.Filename
	}
	if path == "" {
		ext := in.Ext
		if ext == "" {
			ext = "mp4"
		}
		path = filepath.Join(downloadDir, in.ID+"."+ext)
	}

	src := types.Source{
		Path:             path,
		ID:               in.ID,
		Title:            in.Title,
		BaseName:         naming.BaseName(in.Title),
		ReportedDuration: in.Duration,
	}
	subs := filepath.Join(downloadDir, in.ID+"."+a.subLang+".vtt")
	if _, err := os.Stat(subs); err == nil {
		src.SubtitlesPath = subs
	}
	return src, nil
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
