// Package advisor asks a Claude model on Bedrock for trade recommendations and
// portfolio summaries.
package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	bedrockruntime "github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

type BedrockClient interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

type Options struct {
	// Timeout bounds a single model call. Zero means no per-call limit.
	Timeout   time.Duration
	MaxTokens int
	Logger    *slog.Logger
	// Cache, when set, serves repeated summaries without calling the model.
	Cache *SummaryCache
}

type Advisor struct {
	client  BedrockClient
	modelID string
	opts    Options
	// sleep waits between summary attempts; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func New(client BedrockClient, modelID string, opts Options) (*Advisor, error) {
	modelID = strings.TrimSpace(modelID)
	if modelID == "" {
		return nil, errors.New("advisor: missing bedrock model id")
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 700
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Advisor{client: client, modelID: modelID, opts: opts, sleep: sleepCtx}, nil
}

type message struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// invoke sends one prompt using the Anthropic messages payload Bedrock expects
// for Claude models and returns the concatenated text parts.
func (a *Advisor) invoke(ctx context.Context, system, prompt string, temperature float64) (string, error) {
	if a.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.Timeout)
		defer cancel()
	}

	payload := map[string]any{
		"anthropic_version": "bedrock-2023-05-31",
		"max_tokens":        a.opts.MaxTokens,
		"temperature":       temperature,
		"system":            system,
		"messages": []message{
			{Role: "user", Content: []contentPart{{Type: "text", Text: prompt}}},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("bedrock payload: %w", err)
	}

	out, err := a.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(a.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", fmt.Errorf("bedrock InvokeModel: %w", err)
	}

	var raw struct {
		Content []contentPart `json:"content"`
	}
	if err := json.Unmarshal(out.Body, &raw); err != nil {
		return "", fmt.Errorf("bedrock response unmarshal: %w", err)
	}

	var text strings.Builder
	for _, c := range raw.Content {
		if c.Type == "text" {
			text.WriteString(c.Text)
		}
	}
	return strings.TrimSpace(text.String()), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// extractFirstJSONObject finds the first {...} block. Braces inside strings are
// not special-cased.
func extractFirstJSONObject(s string) string {
	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
