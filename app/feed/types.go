package feed

import (
	"time"
)

// Ingestion types

// Entry is one normalized feed entry ready for the deduplicating upsert.
type Entry struct {
	SourceURL      string
	NormalizedURL  string
	ItemKey        string // sha256(NormalizedURL)
	Title          string
	Snippet        string
	TitleHash      string // sha256(Title)
	PublishedAt    *time.Time
	DateConfidence string // "high" when the feed date parsed, "low" otherwise
}

// Source registry types

type SourceType string

const (
	SourceRSS     SourceType = "rss"
	SourceSitemap SourceType = "sitemap"
	SourceHTML    SourceType = "html"
)

type Config struct {
	ID            string         // Derived from filename (without .yml extension)
	Name          string         `yaml:"name"`
	Type          SourceType     `yaml:"type"`
	URL           string         `yaml:"url"`
	Lang          string         `yaml:"lang"`
	Enabled       bool           `yaml:"enabled"`
	Throttle      ConfigThrottle `yaml:"throttle"`
	CategoryHints []string       `yaml:"category_hints"`
}

type ConfigThrottle struct {
	MinIntervalSec int `yaml:"min_interval_sec"`
	MaxItemsPerRun int `yaml:"max_items_per_run"`
}

// MaxItems returns the per-run cap for this source, falling back to def.
func (c *Config) MaxItems(def int) int {
	if c.Throttle.MaxItemsPerRun > 0 {
		return c.Throttle.MaxItemsPerRun
	}
	return def
}
