package parser

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Oracle is the language-model completion boundary. Given a system
// instruction and a user prompt it returns a best-effort completion
// text. Implementations are untrusted and non-deterministic; nothing
// about the returned text is guaranteed, including it being JSON.
type Oracle interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// GeminiOracle implements Oracle against the Gemini API.
type GeminiOracle struct {
	model           string
	maxOutputTokens int32
}

// NewGeminiOracle creates an oracle using the given model name.
// maxOutputTokens bounds the completion; <= 0 uses the API default.
func NewGeminiOracle(model string, maxOutputTokens int32) *GeminiOracle {
	return &GeminiOracle{
		model:           model,
		maxOutputTokens: maxOutputTokens,
	}
}

// Complete performs a single chat-style completion round-trip. Sampling
// temperature is kept low since the caller wants extraction, not prose.
func (o *GeminiOracle) Complete(ctx context.Context, system, user string) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return "", fmt.Errorf("oracle: create genai client: %w", err)
	}

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: user}},
		},
	}

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.1),
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		},
	}
	if o.maxOutputTokens > 0 {
		cfg.MaxOutputTokens = o.maxOutputTokens
	}

	resp, err := client.Models.GenerateContent(ctx, o.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("oracle: generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("oracle: empty response from model")
	}
	return text, nil
}
