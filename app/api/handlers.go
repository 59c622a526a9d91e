package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/newshub/app/database"
	"github.com/lysyi3m/newshub/app/tasks"
)

func NewHandler(runs database.RunStore, errs database.ErrorStore, items database.ItemStore,
	stories database.StoryStore, pubs database.PublicationStore, sources SourceRegistry,
	scheduler tasks.SchedulerInterface, version string) *Handler {
	return &Handler{
		runs:      runs,
		errors:    errs,
		items:     items,
		stories:   stories,
		pubs:      pubs,
		sources:   sources,
		scheduler: scheduler,
		version:   version,
		now:       time.Now,
	}
}

// GetHealth reports the last run and the sources failing most in the last
// day. Store errors degrade to null and empty values.
func (h *Handler) GetHealth(c *gin.Context) {
	ctx := c.Request.Context()
	now := h.now().UTC()

	resp := HealthResponse{
		OK: true,
		Service: ServiceInfo{
			Name:    "newshub",
			Version: h.version,
			NowUTC:  now.Format(time.RFC3339),
		},
		FailingSources: []database.FailingSource{},
		Sources: SourceCounts{
			Loaded:   h.sources.GetConfigCount(),
			Runnable: len(h.sources.GetRunnableConfigs()),
		},
	}

	if run, err := h.runs.LastRun(ctx); err != nil {
		slog.Warn("Health: failed to read last run", "error", err)
	} else {
		resp.LastRun = run
	}

	if failing, err := h.errors.TopFailingSources(ctx, now.Add(-failingSourcesWindow), failingSourcesLimit); err != nil {
		slog.Warn("Health: failed to read failing sources", "error", err)
	} else if failing != nil {
		resp.FailingSources = failing
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()
	var resp StatsResponse

	if count, err := h.items.GetItemCount(ctx); err != nil {
		slog.Warn("Stats: failed to count items", "error", err)
	} else {
		resp.Items = &count
	}

	if byState, err := h.stories.CountByState(ctx); err != nil {
		slog.Warn("Stats: failed to count stories", "error", err)
	} else {
		resp.Stories = byState
	}

	if byStatus, err := h.pubs.CountBySocialStatus(ctx); err != nil {
		slog.Warn("Stats: failed to count publications", "error", err)
	} else {
		resp.Publications = byStatus
	}

	c.JSON(http.StatusOK, resp)
}

// APITriggerRun asks the scheduler for an immediate run.
func (h *Handler) APITriggerRun(c *gin.Context) {
	if h.scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Scheduler not running"})
		return
	}

	queued := h.scheduler.Trigger()
	slog.Info("Manual run requested", "queued", queued)

	message := "Run queued"
	if !queued {
		message = "A run is already queued"
	}
	c.JSON(http.StatusAccepted, gin.H{"success": true, "queued": queued, "message": message})
}
