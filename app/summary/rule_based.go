package summary

import (
	"context"

	"github.com/lysyi3m/newshub/app/database"
)

// RuleBasedProvider builds a minimal summary from the untranslated
// headlines. It never fails and is meant to run last.
type RuleBasedProvider struct {
	names SourceNames
}

func NewRuleBasedProvider(names SourceNames) *RuleBasedProvider {
	return &RuleBasedProvider{names: names}
}

func (p *RuleBasedProvider) Name() string { return "rule_based" }

func (p *RuleBasedProvider) LastResort() bool { return true }

func (p *RuleBasedProvider) Generate(ctx context.Context, items []database.SummaryItem, risk database.RiskLevel) (string, error) {
	headlines := make([]string, 0, len(items))
	for _, item := range items {
		headlines = append(headlines, item.Title)
	}
	return templateSummary(headlines, risk, uniqueSourceNames(items, p.names), " Данные уточняются."), nil
}
