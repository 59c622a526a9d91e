package api

import (
	"time"

	"github.com/lysyi3m/newshub/app/database"
	"github.com/lysyi3m/newshub/app/feed"
	"github.com/lysyi3m/newshub/app/tasks"
)

const (
	failingSourcesWindow = 24 * time.Hour
	failingSourcesLimit  = 5
)

type SourceRegistry interface {
	GetConfigCount() int
	GetRunnableConfigs() []*feed.Config
}

var _ SourceRegistry = (*feed.ConfigCache)(nil)

type Handler struct {
	runs      database.RunStore
	errors    database.ErrorStore
	items     database.ItemStore
	stories   database.StoryStore
	pubs      database.PublicationStore
	sources   SourceRegistry
	scheduler tasks.SchedulerInterface
	version   string
	now       func() time.Time
}

type ServiceInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	NowUTC  string `json:"now_utc"`
}

type HealthResponse struct {
	OK             bool                     `json:"ok"`
	Service        ServiceInfo              `json:"service"`
	LastRun        *database.Run            `json:"last_run"`
	FailingSources []database.FailingSource `json:"failing_sources"`
	Sources        SourceCounts             `json:"sources"`
}

type SourceCounts struct {
	Loaded   int `json:"loaded"`
	Runnable int `json:"runnable"`
}

type StatsResponse struct {
	Items        *int                          `json:"items"`
	Stories      map[database.StoryState]int   `json:"stories"`
	Publications map[database.SocialStatus]int `json:"publications"`
}
