package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/forPelevin/topiccut/internal/types"
)

// Profile is the fixed encode applied to every clip.
type Profile struct {
	VideoCodec   string
	Preset       string
	CRF          int
	AudioCodec   string
	AudioBitrate string
}

// DefaultProfile produces H.264/AAC files that upload without further transcoding.
func DefaultProfile() Profile {
	return Profile{
		VideoCodec:   "libx264",
		Preset:       "veryfast",
		CRF:          18,
		AudioCodec:   "aac",
		AudioBitrate: "192k",
	}
}

type Adapter struct {
	ffmpeg  string
	ffprobe string
	profile Profile
}

func New(ffmpegPath, ffprobePath string, profile Profile) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	def := DefaultProfile()
	if profile.VideoCodec == "" {
		profile.VideoCodec = def.VideoCodec
	}
	if profile.AudioCodec == "" {
		profile.AudioCodec = def.AudioCodec
	}
	if profile.AudioBitrate == "" {
		profile.AudioBitrate = def.AudioBitrate
	}
	return &Adapter{ffmpeg: ffmpegPath, ffprobe: ffprobePath, profile: profile}
}

func (a *Adapter) ExtractAudioMono16k(ctx context.Context, inPath, outWav string) error {
	cmd := exec.CommandContext(ctx, a.ffmpeg,
		"-y",
		"-i", inPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-f", "wav",
		outWav,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg extract audio: %w\n%s", err, tail(b))
	}
	return nil
}

func (a *Adapter) Cut(ctx context.Context, in string, start, end float64, out string) error {
	cmd := exec.CommandContext(ctx, a.ffmpeg, a.cutArgs(in, start, end, out)...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg cut: %w\n%s", err, tail(b))
	}
	return nil
}

// cutArgs seeks on the input and bounds the output by duration, so the clip
// covers [start, end) of the source.
func (a *Adapter) cutArgs(in string, start, end float64, out string) []string {
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-ss", fmtSeconds(start),
		"-i", in,
		"-t", fmtSeconds(end - start),
		"-c:v", a.profile.VideoCodec,
	}
	if a.profile.Preset != "" {
		args = append(args, "-preset", a.profile.Preset)
	}
	if a.profile.CRF > 0 {
		args = append(args, "-crf", strconv.Itoa(a.profile.CRF))
	}
	return append(args,
		"-c:a", a.profile.AudioCodec,
		"-b:a", a.profile.AudioBitrate,
		"-movflags", "+faststart",
		out,
	)
}

func (a *Adapter) ProbeDuration(ctx context.Context, path string) (float64, error) {
	if _, err := os.Stat(path); err != nil {
		return 0, &types.ProbeError{Path: path, Err: err}
	}
	cmd := exec.CommandContext(ctx, a.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return 0, &types.ProbeError{Path: path, Err: fmt.Errorf("ffprobe: %w\n%s", err, tail(b))}
	}
	return parseDuration(string(b), path)
}

func parseDuration(out, path string) (float64, error) {
	s := strings.TrimSpace(out)
	if s == "" || s == "N/A" {
		return 0, &types.ProbeError{Path: path, Err: errors.New("no duration metadata")}
	}
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &types.ProbeError{Path: path, Err: fmt.Errorf("parse duration %q: %w", s, err)}
	}
	if sec <= 0 || math.IsNaN(sec) || math.IsInf(sec, 0) {
		return 0, &types.ProbeError{Path: path, Err: fmt.Errorf("invalid duration %q", s)}
	}
	return sec, nil
}

func fmtSeconds(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	return strconv.FormatFloat(sec, 'f', 3, 64)
}

// tail keeps the last lines of process output for error messages.
func tail(b []byte) string {
	const max = 2000
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		s = s[len(s)-max:]
	}
	return s
}
