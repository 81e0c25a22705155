// Package vtt reads WebVTT subtitles, including the rolling auto-captions
// yt-dlp downloads, into transcript cues.
package vtt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/forPelevin/topiccut/internal/types"
)

var (
	timeRE = regexp.MustCompile(`((?:\d{2,}:)?\d{2}:\d{2}\.\d{3})\s+-->\s+((?:\d{2,}:)?\d{2}:\d{2}\.\d{3})`)
	tagRE  = regexp.MustCompile(`<[^>]*>`)
)

// Reader adapts ParseFile to the cue reader port.
type Reader struct{}

func (Reader) ReadCues(path string) ([]types.Cue, error) { return ParseFile(path) }

func ParseFile(path string) ([]types.Cue, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads cues from r. Lines repeated from the previous cue, as rolling
// auto-captions do, are emitted only once.
func Parse(r io.Reader) ([]types.Cue, error) {
	var (
		cues []types.Cue
		last string
	)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64<<10), 1<<20)

	for sc.Scan() {
		m := timeRE.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		start, err1 := ParseTime(m[1])
		end, err2 := ParseTime(m[2])
		if err1 != nil || err2 != nil {
			continue
		}

		var fresh []string
		for sc.Scan() {
			raw := strings.TrimRight(sc.Text(), "\r")
			if raw == "" {
				break
			}
			line := clean(raw)
			if line == "" || line == last {
				continue
			}
			fresh = append(fresh, line)
			last = line
		}
		if len(fresh) == 0 {
			continue
		}
		cues = append(cues, types.Cue{Start: start, End: end, Text: strings.Join(fresh, " ")})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read vtt: %w", err)
	}
	return cues, nil
}

func clean(s string) string {
	s = tagRE.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	return strings.Join(strings.Fields(s), " ")
}

// ParseTime converts HH:MM:SS.mmm or MM:SS.mmm to seconds.
func ParseTime(s string) (float64, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}
	sec, err := strconv.ParseFloat(parts[len(parts)-1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid seconds in %q: %w", s, err)
	}
	min, err := strconv.Atoi(parts[len(parts)-2])
	if err != nil {
		return 0, fmt.Errorf("invalid minutes in %q: %w", s, err)
	}
	total := float64(min)*60 + sec
	if len(parts) == 3 {
		h, err := strconv.Atoi(parts[0])
		if err != nil {
			return 0, fmt.Errorf("invalid hours in %q: %w", s, err)
		}
		total += float64(h) * 3600
	}
	return total, nil
}
