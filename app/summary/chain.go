package summary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lysyi3m/newshub/app/database"
)

// DefaultProviderOrder is used when no order is configured.
const DefaultProviderOrder = "gemini,claude,google_translate,rule_based"

type ChainResult struct {
	Text       string
	Provider   string
	LastResort bool
}

// Chain tries its providers strictly in order until one succeeds.
type Chain struct {
	providers []Provider
}

func NewChain(providers ...Provider) *Chain {
	return &Chain{providers: providers}
}

func (c *Chain) Len() int { return len(c.providers) }

// Names lists the providers in the order they are tried.
func (c *Chain) Names() []string {
	names := make([]string, 0, len(c.providers))
	for _, p := range c.providers {
		names = append(names, p.Name())
	}
	return names
}

// Generate returns the first successful provider's text. When every provider
// fails the error names each one with its reason.
func (c *Chain) Generate(ctx context.Context, items []database.SummaryItem, risk database.RiskLevel) (ChainResult, error) {
	if len(c.providers) == 0 {
		return ChainResult{}, errors.New("no summary providers configured")
	}

	failures := make([]string, 0, len(c.providers))
	for _, p := range c.providers {
		text, err := p.Generate(ctx, items, risk)
		if err == nil {
			lr, ok := p.(lastResort)
			return ChainResult{Text: text, Provider: p.Name(), LastResort: ok && lr.LastResort()}, nil
		}

		slog.Warn("Summary provider failed", "provider", p.Name(), "error", err)
		failures = append(failures, fmt.Sprintf("%s: %v", p.Name(), err))
	}

	return ChainResult{}, fmt.Errorf("all providers failed: %s", strings.Join(failures, " | "))
}

type Credentials struct {
	GeminiAPIKey    string
	GeminiModel     string
	AnthropicAPIKey string
	AnthropicModel  string
}

// BuildChain selects providers from a comma separated order. Unknown names
// are ignored and providers whose credential is missing are left out.
func BuildChain(order string, creds Credentials, client *http.Client, names SourceNames) *Chain {
	if strings.TrimSpace(order) == "" {
		order = DefaultProviderOrder
	}

	var providers []Provider
	for _, name := range strings.Split(order, ",") {
		switch strings.TrimSpace(name) {
		case "gemini":
			if creds.GeminiAPIKey != "" {
				providers = append(providers, NewGeminiProvider(client, creds.GeminiAPIKey, creds.GeminiModel))
			}
		case "claude":
			if creds.AnthropicAPIKey != "" {
				providers = append(providers, NewClaudeProvider(client, creds.AnthropicAPIKey, creds.AnthropicModel))
			}
		case "google_translate":
			providers = append(providers, NewGoogleTranslateProvider(client, names))
		case "rule_based":
			providers = append(providers, NewRuleBasedProvider(names))
		}
	}

	return NewChain(providers...)
}
