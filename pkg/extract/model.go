package extract

import (
	"context"

	"google.golang.org/genai"

	"github.com/agentstation/civicmap/pkg/errors"
)

// Model is the language model boundary: one prompt in, raw text out.
type Model interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ModelFunc adapts a function to Model.
type ModelFunc func(ctx context.Context, prompt string) (string, error)

// Generate implements Model.
func (f ModelFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Gemini calls a Gemini model through the Gemini API backend and asks for
// JSON output.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini model client authenticated with apiKey.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, &errors.ConfigError{
			Component: "gemini",
			Message:   "API key required, set GOOGLE_API_KEY",
		}
	}
	if model == "" {
		return nil, &errors.ConfigError{Component: "gemini", Message: "model name is required"}
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
		APIKey:  apiKey,
	})
	if err != nil {
		return nil, errors.NewConfigError("gemini", "creating client", err)
	}
	return &Gemini{client: client, model: model}, nil
}

// Generate implements Model.
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0),
	})
	if err != nil {
		return "", errors.WrapResource("generate", "model", g.model, err)
	}
	return resp.Text(), nil
}
