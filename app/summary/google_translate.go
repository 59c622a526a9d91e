package summary

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/lysyi3m/newshub/app/database"
)

const googleTranslateURL = "https://translate.googleapis.com/translate_a/single"

// GoogleTranslateProvider machine-translates the headlines and fills the
// five sections from a fixed template. It needs no credentials.
type GoogleTranslateProvider struct {
	client   *http.Client
	names    SourceNames
	endpoint string
}

func NewGoogleTranslateProvider(client *http.Client, names SourceNames) *GoogleTranslateProvider {
	return &GoogleTranslateProvider{client: client, names: names, endpoint: googleTranslateURL}
}

func (p *GoogleTranslateProvider) Name() string { return "google_translate" }

func (p *GoogleTranslateProvider) Generate(ctx context.Context, items []database.SummaryItem, risk database.RiskLevel) (string, error) {
	translated := make([]string, 0, len(items))
	for _, item := range items {
		text, err := p.translate(ctx, item.Title)
		if err != nil {
			return "", err
		}
		translated = append(translated, text)
	}

	return templateSummary(translated, risk, uniqueSourceNames(items, p.names), ""), nil
}

// translate calls the keyless endpoint, whose response looks like
// [[["translated","source",...],...],null,"iw"].
func (p *GoogleTranslateProvider) translate(ctx context.Context, text string) (string, error) {
	params := url.Values{
		"client": {"gtx"},
		"sl":     {"he"},
		"tl":     {"ru"},
		"dt":     {"t"},
		"q":      {text},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}

	var data []any
	if err := doJSON(p.client, req, &data); err != nil {
		return "", err
	}

	if len(data) == 0 {
		return "", errors.New("unexpected response shape")
	}
	outer, ok := data[0].([]any)
	if !ok {
		return "", errors.New("unexpected response shape")
	}

	var segments []string
	for _, seg := range outer {
		parts, ok := seg.([]any)
		if !ok || len(parts) == 0 {
			continue
		}
		if s, ok := parts[0].(string); ok {
			segments = append(segments, s)
		}
	}
	if len(segments) == 0 {
		return "", errors.New("no translation segments returned")
	}

	return strings.Join(segments, ""), nil
}
