package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/forPelevin/topiccut/internal/domain/topics"
	"github.com/forPelevin/topiccut/internal/types"
)

const (
	DefaultModel       = openai.GPT4
	DefaultTemperature = 0.7
	requestTimeout     = 3 * time.Minute
)

type Options struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	// JSONMode asks the API for a JSON object response. Older models such
	// as gpt-4 reject it, so it is opt-in.
	JSONMode bool
}

type Adapter struct {
	client *openai.Client
	opts   Options
}

func New(opts Options) *Adapter {
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	return &Adapter{client: openai.NewClientWithConfig(cfg), opts: opts}
}

func (a *Adapter) request(cues []types.Cue) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:       a.opts.Model,
		Temperature: float32(a.opts.Temperature),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: topics.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: topics.UserPrompt(cues)},
		},
	}
	if a.opts.JSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	return req
}

func (a *Adapter) ProposeSegments(ctx context.Context, cues []types.Cue) ([]types.Segment, error) {
	if err := topics.CheckTranscript(cues); err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	resp, err := a.client.CreateChatCompletion(reqCtx, a.request(cues))
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("openai timeout after %s (model=%s)", requestTimeout, a.opts.Model)
		}
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("openai status %d: %s", apiErr.HTTPStatusCode, topics.Truncate(apiErr.Message, 400))
		}
		return nil, fmt.Errorf("openai request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, &types.MalformedSegmentsError{Index: -1, Reason: "openai returned no choices"}
	}
	return topics.ParseSegments(resp.Choices[0].Message.Content)
}
