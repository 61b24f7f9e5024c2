package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"innoviahub/internal/models"

	"golang.org/x/time/rate"
)

// OpenAIClient talks to the OpenAI responses API.
type OpenAIClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewOpenAIClient constructs a client. rps bounds outbound calls so a
// burst of chat requests cannot exhaust the API quota.
func NewOpenAIClient(baseURL, apiKey, model string, timeout time.Duration, rps float64) *OpenAIClient {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "gpt-4.1-mini"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if rps <= 0 {
		rps = 5
	}
	return &OpenAIClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), int(rps)+1),
	}
}

type responsesRequest struct {
	Model string           `json:"model"`
	Input []responsesInput `json:"input"`
}

type responsesInput struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responsesReply struct {
	Output []struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
}

// Complete implements Oracle over POST /responses.
func (c *OpenAIClient) Complete(ctx context.Context, systemPrompt, contextText, question string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrOracleUnavailable, err)
	}

	body := responsesRequest{
		Model: c.model,
		Input: []responsesInput{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf("Here is the list of resources:\n%s\nUser asked: %s", contextText, question)},
		},
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/responses", strings.NewReader(string(data)))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrOracleUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: http %d", models.ErrOracleUnavailable, resp.StatusCode)
	}

	var reply responsesReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", models.ErrOracleUnavailable, err)
	}
	if len(reply.Output) == 0 || len(reply.Output[0].Content) == 0 {
		return "", fmt.Errorf("%w: empty completion", models.ErrOracleUnavailable)
	}
	return reply.Output[0].Content[0].Text, nil
}
