package summary

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/lysyi3m/newshub/app/database"
)

type fakeSummaryStore struct {
	stories []database.Story
	items   map[string][]database.SummaryItem
	saved   map[string]string
	hashes  map[string]string
}

func newFakeSummaryStore(stories ...database.Story) *fakeSummaryStore {
	return &fakeSummaryStore{
		stories: stories,
		items:   make(map[string][]database.SummaryItem),
		saved:   make(map[string]string),
		hashes:  make(map[string]string),
	}
}

func (f *fakeSummaryStore) StoriesNeedingSummary(ctx context.Context, limit int) ([]database.Story, error) {
	if len(f.stories) > limit {
		return f.stories[:limit], nil
	}
	return f.stories, nil
}

func (f *fakeSummaryStore) ItemsForSummary(ctx context.Context, storyID string, limit int) ([]database.SummaryItem, error) {
	return f.items[storyID], nil
}

func (f *fakeSummaryStore) SaveSummary(ctx context.Context, storyID, title, fullText, summaryHash string) (bool, error) {
	if _, ok := f.saved[storyID]; ok {
		return false, nil
	}
	f.saved[storyID] = fullText
	f.hashes[storyID] = summaryHash
	return true, nil
}

type fakeRecorder struct {
	events []database.ErrorEvent
}

func (f *fakeRecorder) RecordError(ctx context.Context, event database.ErrorEvent) error {
	f.events = append(f.events, event)
	return nil
}

type fixedGenerator struct {
	result ChainResult
	err    error
	calls  int
}

func (g *fixedGenerator) Generate(ctx context.Context, items []database.SummaryItem, risk database.RiskLevel) (ChainResult, error) {
	g.calls++
	return g.result, g.err
}

func compliantText(t *testing.T) string {
	t.Helper()
	s := Sections{
		Title:        "ЦАХАЛ сообщил о ракетном обстреле",
		WhatHappened: "По сообщению армии, выпущены 3 ракеты. " + strings.Repeat("Подробности уточняются. ", 15),
		WhyImportant: "Событие затрагивает безопасность жителей юга страны.",
		WhatsNext:    "Ожидается обновление.",
		Sources:      "ynet",
	}
	if n := utf8.RuneCountInString(s.Body()); n < 400 || n > 700 {
		t.Fatalf("Test fixture body has %d characters", n)
	}
	return "Заголовок: " + s.Title + "\n" + s.Body() + "\nИсточники: " + s.Sources
}

func storyFixture(id string) database.Story {
	return database.Story{ID: id, State: database.StoryDraft, RiskLevel: database.RiskLow}
}

func TestPipelinePublishes(t *testing.T) {
	store := newFakeSummaryStore(storyFixture("s1"))
	store.items["s1"] = []database.SummaryItem{{ItemID: "i1", SourceID: "ynet", Title: "3 רקטות נורו"}}
	gen := &fixedGenerator{result: ChainResult{Text: compliantText(t), Provider: "gemini"}}
	recorder := &fakeRecorder{}

	counters, err := NewPipeline(store, recorder, gen, 400, 700).Run(context.Background(), "run-1", nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if counters.Attempted != 1 || counters.Published != 1 || counters.Failed != 0 {
		t.Errorf("Unexpected counters %+v", counters)
	}
	if !strings.HasPrefix(store.saved["s1"], "ЦАХАЛ сообщил о ракетном обстреле\n\nЧто произошло:") {
		t.Errorf("Unexpected stored text %q", store.saved["s1"])
	}
	if store.hashes["s1"] != Fingerprint(store.items["s1"], database.RiskLow) {
		t.Error("Expected fingerprint to be stored with the summary")
	}
	if len(recorder.events) != 0 {
		t.Errorf("Expected no error events, got %v", recorder.events)
	}
}

func TestPipelineSkipsUnchangedFingerprint(t *testing.T) {
	items := []database.SummaryItem{{ItemID: "i1", SourceID: "ynet", Title: "כותרת"}}
	story := storyFixture("s1")
	story.SummaryHash = Fingerprint(items, database.RiskLow)

	store := newFakeSummaryStore(story)
	store.items["s1"] = items
	gen := &fixedGenerator{result: ChainResult{Text: compliantText(t)}}

	counters, _ := NewPipeline(store, &fakeRecorder{}, gen, 400, 700).Run(context.Background(), "run-1", nil)

	if counters.Skipped != 1 || counters.Published != 0 {
		t.Errorf("Unexpected counters %+v", counters)
	}
	if gen.calls != 0 {
		t.Errorf("Expected no generation for unchanged input, got %d calls", gen.calls)
	}
}

func TestPipelineRecordsFailures(t *testing.T) {
	tests := []struct {
		name string
		gen  *fixedGenerator
		code string
	}{
		{"parse failure", &fixedGenerator{result: ChainResult{Text: "Заголовок: only"}}, "format_parse_failed"},
		{"guard failure", &fixedGenerator{result: ChainResult{Text: strings.ReplaceAll(compliantText(t), "3 ракеты", "ракеты")}}, "guard_failed"},
		{"chain failure", &fixedGenerator{err: errors.New("all providers failed: gemini: HTTP 500")}, "summary_failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeSummaryStore(storyFixture("s1"), storyFixture("s2"))
			store.items["s1"] = []database.SummaryItem{{ItemID: "i1", SourceID: "ynet", Title: "3 רקטות נורו"}}
			store.items["s2"] = []database.SummaryItem{{ItemID: "i2", SourceID: "ynet", Title: "3 רקטות נורו"}}
			recorder := &fakeRecorder{}

			counters, err := NewPipeline(store, recorder, tt.gen, 400, 700).Run(context.Background(), "run-1", nil)
			if err != nil {
				t.Fatalf("Expected per-story failures to be isolated, got %v", err)
			}

			if counters.Attempted != 2 || counters.Failed != 2 {
				t.Errorf("Expected both stories attempted and failed, got %+v", counters)
			}
			if len(store.saved) != 0 {
				t.Error("Expected nothing to be published")
			}
			if len(recorder.events) != 2 {
				t.Fatalf("Expected 2 error events, got %d", len(recorder.events))
			}
			event := recorder.events[0]
			if event.Code != tt.code || event.Phase != "summary" || event.StoryID != "s1" || event.RunID != "run-1" {
				t.Errorf("Unexpected error event %+v", event)
			}
		})
	}
}

func TestPipelineLastResortSkipsLength(t *testing.T) {
	store := newFakeSummaryStore(storyFixture("s1"))
	store.items["s1"] = []database.SummaryItem{{ItemID: "i1", SourceID: "ynet", Title: "כותרת קצרה"}}

	text, _ := NewRuleBasedProvider(nil).Generate(context.Background(), store.items["s1"], database.RiskLow)
	gen := &fixedGenerator{result: ChainResult{Text: text, Provider: "rule_based", LastResort: true}}

	counters, _ := NewPipeline(store, &fakeRecorder{}, gen, 400, 700).Run(context.Background(), "run-1", nil)
	if counters.Published != 1 {
		t.Errorf("Expected short last resort summary to publish, got %+v", counters)
	}
}

func TestPipelineStopsWhenOutOfTime(t *testing.T) {
	store := newFakeSummaryStore(storyFixture("s1"), storyFixture("s2"), storyFixture("s3"))
	for _, id := range []string{"s1", "s2", "s3"} {
		store.items[id] = []database.SummaryItem{{ItemID: id + "-i", SourceID: "ynet", Title: "3 רקטות נורו"}}
	}
	gen := &fixedGenerator{result: ChainResult{Text: compliantText(t)}}

	budget := 1
	hasTime := func() bool {
		budget--
		return budget >= 0
	}

	counters, _ := NewPipeline(store, &fakeRecorder{}, gen, 400, 700).Run(context.Background(), "run-1", hasTime)
	if counters.Attempted != 1 || counters.Published != 1 {
		t.Errorf("Expected a single story before the budget ran out, got %+v", counters)
	}
}

func TestPipelineLimitsStoriesPerRun(t *testing.T) {
	var stories []database.Story
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		stories = append(stories, storyFixture(id))
	}
	store := newFakeSummaryStore(stories...)

	counters, _ := NewPipeline(store, &fakeRecorder{}, &fixedGenerator{}, 400, 700).Run(context.Background(), "run-1", nil)
	if counters.Attempted != MaxSummariesPerRun {
		t.Errorf("Expected %d attempts, got %d", MaxSummariesPerRun, counters.Attempted)
	}
}

func TestFingerprintIgnoresOrder(t *testing.T) {
	a := []database.SummaryItem{{ItemID: "x"}, {ItemID: "y"}}
	b := []database.SummaryItem{{ItemID: "y"}, {ItemID: "x"}}

	if Fingerprint(a, database.RiskLow) != Fingerprint(b, database.RiskLow) {
		t.Error("Expected fingerprint to ignore item order")
	}
	if Fingerprint(a, database.RiskLow) == Fingerprint(a, database.RiskHigh) {
		t.Error("Expected fingerprint to depend on risk level")
	}
}
