package oracle

import (
	"context"
	"fmt"
	"strings"

	"innoviahub/internal/models"

	genai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiClient is an alternative oracle backed by Google Gemini.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient constructs a Gemini-backed oracle.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if model == "" {
		model = "models/gemini-1.5-pro"
	}
	return &GeminiClient{client: client, model: model}, nil
}

// Complete implements Oracle.
func (g *GeminiClient) Complete(ctx context.Context, systemPrompt, contextText, question string) (string, error) {
	m := g.client.GenerativeModel(g.model)
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}

	prompt := fmt.Sprintf("Here is the list of resources:\n%s\nUser asked: %s", contextText, question)
	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrOracleUnavailable, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("%w: empty completion", models.ErrOracleUnavailable)
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String(), nil
}

// Close releases the underlying API connection.
func (g *GeminiClient) Close() error {
	return g.client.Close()
}
