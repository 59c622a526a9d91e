// Package summary turns a story's headlines into a published five-section
// Russian summary through an ordered chain of generation backends.
package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/lysyi3m/newshub/app/database"
)

// Provider generates raw five-section text for a story's items.
type Provider interface {
	Name() string
	Generate(ctx context.Context, items []database.SummaryItem, risk database.RiskLevel) (string, error)
}

// lastResort is implemented by the deterministic fallback whose output is
// exempt from the length guard.
type lastResort interface {
	LastResort() bool
}

// SourceNames resolves a source id to its display name, "" when unknown.
type SourceNames func(sourceID string) string

const maxErrorBody = 300

// postJSON sends body as JSON and decodes a 2xx response into out.
func postJSON(ctx context.Context, client *http.Client, endpoint string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return doJSON(client, req, out)
}

func doJSON(client *http.Client, req *http.Request, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		// The URL may carry credentials; keep only the cause.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// uniqueSourceNames lists the display names of the items' sources in first
// appearance order.
func uniqueSourceNames(items []database.SummaryItem, names SourceNames) string {
	seen := make(map[string]bool)
	var out []string
	for _, item := range items {
		if seen[item.SourceID] {
			continue
		}
		seen[item.SourceID] = true
		if names == nil {
			continue
		}
		if name := names(item.SourceID); name != "" {
			out = append(out, name)
		}
	}
	if len(out) == 0 {
		return "источник не определён"
	}
	return strings.Join(out, ", ")
}

// templateSummary assembles the five sections from headline texts, used by
// the providers that do not call a language model.
func templateSummary(headlines []string, risk database.RiskLevel, sources, whatHappenedSuffix string) string {
	headline := "Новость"
	if len(headlines) > 0 {
		headline = headlines[0]
	}

	lead := headlines
	if len(lead) > 3 {
		lead = lead[:3]
	}
	whatHappened := strings.Join(lead, ". ") + "." + whatHappenedSuffix

	whyImportant := "По данным источников, ситуация находится под наблюдением."
	if risk == database.RiskHigh {
		whyImportant = "По данным источников, событие требует повышенного внимания."
	}

	return strings.Join([]string{
		sectionTitle + ": " + headline,
		sectionWhatHappened + ": " + whatHappened,
		sectionWhyImportant + ": " + whyImportant,
		sectionWhatsNext + ": Ожидается обновление.",
		sectionSources + ": " + sources,
	}, "\n")
}
