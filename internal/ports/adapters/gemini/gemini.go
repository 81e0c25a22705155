package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/forPelevin/topiccut/internal/domain/topics"
	"github.com/forPelevin/topiccut/internal/types"
)

const DefaultModel = "gemini-2.5-flash"

// Adapter asks Gemini for segments. Several API keys may be given; on a
// rate-limit error the next key is tried.
type Adapter struct {
	keys        []string
	model       string
	temperature float32

	mu      sync.Mutex
	current int
}

func New(keys []string, model string, temperature float64) (*Adapter, error) {
	clean := make([]string, 0, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			clean = append(clean, k)
		}
	}
	if len(clean) == 0 {
		return nil, errors.New("gemini: at least one API key is required")
	}
	if model == "" {
		model = DefaultModel
	}
	return &Adapter{keys: clean, model: model, temperature: float32(temperature)}, nil
}

func (a *Adapter) config() *genai.GenerateContentConfig {
	temp := a.temperature
	return &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(topics.SystemPrompt, genai.RoleUser),
		Temperature:       &temp,
		ResponseMIMEType:  "application/json",
	}
}

func (a *Adapter) ProposeSegments(ctx context.Context, cues []types.Cue) ([]types.Segment, error) {
	if err := topics.CheckTranscript(cues); err != nil {
		return nil, err
	}
	prompt := topics.UserPrompt(cues)

	var lastErr error
	for range a.keys {
		key := a.key()
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  key,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			lastErr = fmt.Errorf("create client: %w", err)
			a.rotate()
			continue
		}

		result, err := client.Models.GenerateContent(ctx, a.model, genai.Text(prompt), a.config())
		if err != nil {
			if isRateLimited(err) {
				lastErr = err
				a.rotate()
				continue
			}
			return nil, fmt.Errorf("gemini generate content: %w", err)
		}

		text := responseText(result)
		if strings.TrimSpace(text) == "" {
			return nil, &types.MalformedSegmentsError{Index: -1, Reason: "empty response from gemini"}
		}
		return topics.ParseSegments(text)
	}
	return nil, fmt.Errorf("gemini: all API keys exhausted: %w", lastErr)
}

func (a *Adapter) key() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.keys[a.current]
}

func (a *Adapter) rotate() {
	a.mu.Lock()
	a.current = (a.current + 1) % len(a.keys)
	a.mu.Unlock()
}

func isRateLimited(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "quota") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}

func responseText(res *genai.GenerateContentResponse) string {
	if res == nil || len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range res.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}
