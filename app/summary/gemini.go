package summary

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/lysyi3m/newshub/app/database"
)

const (
	geminiAPIBase      = "https://generativelanguage.googleapis.com/v1beta/models"
	defaultGeminiModel = "gemini-2.0-flash"
)

type GeminiProvider struct {
	client  *http.Client
	apiKey  string
	model   string
	baseURL string
}

func NewGeminiProvider(client *http.Client, apiKey, model string) *GeminiProvider {
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiProvider{client: client, apiKey: apiKey, model: model, baseURL: geminiAPIBase}
}

func (p *GeminiProvider) Name() string { return "gemini" }

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction geminiContent   `json:"systemInstruction"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  struct {
		MaxOutputTokens int     `json:"maxOutputTokens"`
		Temperature     float64 `json:"temperature"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (p *GeminiProvider) Generate(ctx context.Context, items []database.SummaryItem, risk database.RiskLevel) (string, error) {
	if p.apiKey == "" {
		return "", errors.New("GEMINI_API_KEY not configured")
	}

	var body geminiRequest
	body.SystemInstruction = geminiContent{Parts: []geminiPart{{Text: SystemPrompt(risk)}}}
	body.Contents = []geminiContent{{Role: "user", Parts: []geminiPart{{Text: UserMessage(items)}}}}
	body.GenerationConfig.MaxOutputTokens = 600
	body.GenerationConfig.Temperature = 0.3

	endpoint := p.baseURL + "/" + url.PathEscape(p.model) + ":generateContent"
	headers := map[string]string{"x-goog-api-key": p.apiKey}

	var resp geminiResponse
	if err := postJSON(ctx, p.client, endpoint, headers, body, &resp); err != nil {
		return "", err
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 ||
		resp.Candidates[0].Content.Parts[0].Text == "" {
		return "", errors.New("gemini returned no text content")
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}
