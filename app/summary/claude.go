package summary

import (
	"context"
	"errors"
	"net/http"

	"github.com/lysyi3m/newshub/app/database"
)

const (
	anthropicAPIURL       = "https://api.anthropic.com/v1/messages"
	anthropicVersion      = "2023-06-01"
	defaultAnthropicModel = "claude-haiku-4-5-20251001"
)

type ClaudeProvider struct {
	client   *http.Client
	apiKey   string
	model    string
	endpoint string
}

func NewClaudeProvider(client *http.Client, apiKey, model string) *ClaudeProvider {
	if model == "" {
		model = defaultAnthropicModel
	}
	return &ClaudeProvider{client: client, apiKey: apiKey, model: model, endpoint: anthropicAPIURL}
}

func (p *ClaudeProvider) Name() string { return "claude" }

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	System    string          `json:"system"`
	Messages  []claudeMessage `json:"messages"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (p *ClaudeProvider) Generate(ctx context.Context, items []database.SummaryItem, risk database.RiskLevel) (string, error) {
	if p.apiKey == "" {
		return "", errors.New("ANTHROPIC_API_KEY not configured")
	}

	body := claudeRequest{
		Model:     p.model,
		MaxTokens: 600,
		System:    SystemPrompt(risk),
		Messages:  []claudeMessage{{Role: "user", Content: UserMessage(items)}},
	}
	headers := map[string]string{
		"x-api-key":         p.apiKey,
		"anthropic-version": anthropicVersion,
	}

	var resp claudeResponse
	if err := postJSON(ctx, p.client, p.endpoint, headers, body, &resp); err != nil {
		return "", err
	}

	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}
	return "", errors.New("claude returned no text content")
}
