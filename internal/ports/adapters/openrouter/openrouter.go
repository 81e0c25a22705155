package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/forPelevin/topiccut/internal/domain/topics"
	"github.com/forPelevin/topiccut/internal/types"
)

type Adapter struct {
	key         string
	model       string
	baseURL     string
	temperature float64
	client      *http.Client
}

const (
	requestTimeout = 90 * time.Second
	defaultModel   = "openai/gpt-4"
)

func New(apiKey, model, baseURL string, temperature float64) *Adapter {
	if model == "" {
		model = defaultModel
	}
	baseURL = normalizeBaseURL(baseURL)
	return &Adapter{
		key:         apiKey,
		model:       model,
		baseURL:     baseURL,
		temperature: temperature,
		client:      &http.Client{Timeout: 5 * time.Minute},
	}
}

func (a *Adapter) ProposeSegments(ctx context.Context, cues []types.Cue) ([]types.Segment, error) {
	if err := topics.CheckTranscript(cues); err != nil {
		return nil, err
	}

	payload := map[string]any{
		"model":       a.model,
		"stream":      false,
		"temperature": a.temperature,
		"messages": []map[string]any{
			{"role": "system", "content": topics.SystemPrompt},
			{"role": "user", "content": topics.UserPrompt(cues)},
		},
		"response_format": map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   "video_segments",
				"strict": true,
				"schema": topics.Schema(),
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	url := a.baseURL + "/api/v1/chat/completions"

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+a.key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("openrouter timeout after %s (model=%s)", requestTimeout, a.model)
		}
		return nil, fmt.Errorf("openrouter request: %s", redactSecrets(err.Error(), a.key))
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rb, readErr := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if readErr != nil {
			return nil, fmt.Errorf("openrouter status %d and read body failed: %v", resp.StatusCode, readErr)
		}
		return nil, fmt.Errorf("openrouter status %d: %s", resp.StatusCode, topics.Truncate(redactSecrets(string(rb), a.key), 400))
	}

	var raw struct {
		Choices []struct {
			Message struct {
				Content any `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode openrouter response: %w", err)
	}
	if len(raw.Choices) == 0 {
		return nil, &types.MalformedSegmentsError{Index: -1, Reason: "openrouter returned no choices"}
	}

	content, err := messageContentToString(raw.Choices[0].Message.Content)
	if err != nil {
		return nil, &types.MalformedSegmentsError{Index: -1, Reason: err.Error()}
	}
	return topics.ParseSegments(content)
}

func messageContentToString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		if strings.TrimSpace(x) == "" {
			return "", errors.New("openrouter: empty content")
		}
		return x, nil
	case []any:
		// Some providers return an array of {type,text} parts.
		var b strings.Builder
		for _, it := range x {
			m, ok := it.(map[string]any)
			if !ok {
				continue
			}
			if t, ok := m["text"].(string); ok {
				b.WriteString(t)
			}
		}
		s := b.String()
		if strings.TrimSpace(s) == "" {
			return "", errors.New("openrouter: empty content")
		}
		return s, nil
	default:
		return "", fmt.Errorf("openrouter: unexpected content type %T", v)
	}
}

var (
	bearerTokenRE = regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9._-]+\b`)
	authHeaderRE  = regexp.MustCompile(`(?i)(authorization\s*[:=]\s*)([^\n\r,;]+)`)
	apiKeyFieldRE = regexp.MustCompile(`(?i)(api[_-]?key\s*[:=]\s*)([^\n\r,;]+)`)
)

func redactSecrets(s, apiKey string) string {
	if s == "" {
		return s
	}
	out := s
	if apiKey != "" {
		out = strings.ReplaceAll(out, apiKey, "[REDACTED]")
	}
	out = bearerTokenRE.ReplaceAllString(out, "Bearer [REDACTED]")
	out = authHeaderRE.ReplaceAllString(out, "${1}[REDACTED]")
	out = apiKeyFieldRE.ReplaceAllString(out, "${1}[REDACTED]")
	return out
}
