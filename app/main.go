package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/newshub/app/api"
	"github.com/lysyi3m/newshub/app/cfg"
	"github.com/lysyi3m/newshub/app/cluster"
	"github.com/lysyi3m/newshub/app/crosspost"
	"github.com/lysyi3m/newshub/app/database"
	"github.com/lysyi3m/newshub/app/feed"
	"github.com/lysyi3m/newshub/app/pipeline"
	"github.com/lysyi3m/newshub/app/summary"
	"github.com/lysyi3m/newshub/app/tasks"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	c, err := cfg.Load()
	if err != nil {
		return err
	}
	if c == nil {
		return nil
	}

	setupLogger(c.Debug)
	slog.Info("Starting NewsHub", "version", c.Version, "db_path", c.DBPath, "sources_dir", c.SourcesDir)

	db, err := database.Open(c.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	schema, err := database.RunMigrations(db)
	if err != nil {
		return err
	}
	slog.Info("Database ready", "schema_version", schema.Version)

	configCache := feed.NewConfigCache(c.SourcesDir)
	if err := configCache.Run(); err != nil {
		return fmt.Errorf("failed to load sources: %w", err)
	}
	slog.Info("Sources loaded", "total", configCache.GetConfigCount(), "runnable", len(configCache.GetRunnableConfigs()))

	itemRepo := database.NewItemRepository(db)
	storyRepo := database.NewStoryRepository(db)
	pubRepo := database.NewPublicationRepository(db)
	runRepo := database.NewRunRepository(db)
	errorRepo := database.NewErrorRepository(db)
	leaseRepo := database.NewLeaseRepository(db)

	deps := pipeline.Deps{
		Sources:   configCache,
		Fetcher:   feed.NewFetcher(c.HTTPTimeoutDuration(), c.UserAgent),
		Items:     itemRepo,
		Clusterer: cluster.NewEngine(storyRepo),
		Runs:      runRepo,
		Lease:     leaseRepo,
		Errors:    errorRepo,
	}

	httpClient := &http.Client{Timeout: c.HTTPTimeoutDuration()}
	chain := summary.BuildChain(c.SummaryProviders, summary.Credentials{
		GeminiAPIKey:    c.GeminiAPIKey,
		GeminiModel:     c.GeminiModel,
		AnthropicAPIKey: c.AnthropicAPIKey,
		AnthropicModel:  c.AnthropicModel,
	}, httpClient, configCache.SourceName)
	if chain.Len() > 0 {
		deps.Summarizer = summary.NewPipeline(storyRepo, errorRepo, chain, c.SummaryTargetMin, c.SummaryTargetMax)
		slog.Info("Summary providers configured", "order", chain.Names())
	} else {
		slog.Warn("No summary providers configured, summary phase disabled")
	}

	if c.CrosspostConfigured() {
		poster := crosspost.NewFacebookPoster(c.FBPageID, c.FBPageAccessToken)
		deps.Crossposter = crosspost.NewPolicy(pubRepo, errorRepo, poster, c.PublicSiteBaseURL)
		slog.Info("Facebook crossposting enabled", "page_id", c.FBPageID)
	}

	runner := pipeline.NewRunner(deps, pipeline.Options{
		Budget:         c.RunBudget(),
		LockTTL:        c.LockTTLDuration(),
		MaxItemsPerRun: c.MaxNewItemsPerRun,
	})

	if c.RunOnce {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		result, err := runner.RunOnce(ctx)
		if err != nil {
			return err
		}
		slog.Info("Single run complete", "run_id", result.RunID, "skipped", result.Skipped, "status", result.Status)
		return nil
	}

	scheduler := tasks.NewScheduler(runner, c.SchedulerPeriod())
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(runRepo, errorRepo, itemRepo, storyRepo, pubRepo, configCache, scheduler, c.Version)
	httpServer := &http.Server{
		Addr:         ":" + c.Port,
		Handler:      api.NewServer(handler, c.APIAccessKey),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", c.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("NewsHub shutdown complete")
	return nil
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}
