package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newssift/newssift/app/api"
	"github.com/newssift/newssift/app/cfg"
	"github.com/newssift/newssift/app/config"
	"github.com/newssift/newssift/app/pipeline"
	"github.com/newssift/newssift/app/scheduler"
	"github.com/newssift/newssift/app/source"
	"github.com/newssift/newssift/app/store"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	slog.Info("Starting News Sift", "version", appCfg.Version)

	st, err := store.Open(appCfg.DBPath, appCfg.MaxArticles)
	if err != nil {
		slog.Error("Failed to open store", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer st.Close()
	slog.Info("Store opened", "path", appCfg.DBPath)

	loader := config.NewLoader(appCfg.SourcesDir)
	seeds, err := loader.LoadAll()
	if err != nil {
		slog.Error("Failed to load source configurations", "dir", appCfg.SourcesDir, "error", err)
		os.Exit(1)
	}
	slog.Info("Source configurations loaded", "dir", appCfg.SourcesDir, "count", len(seeds))

	if err := config.Sync(st, seeds); err != nil {
		slog.Error("Failed to sync source configurations", "error", err)
		os.Exit(1)
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}

	deps := source.Deps{
		HTTPClient: httpClient,
		UserAgent:  appCfg.UserAgent,
		ExportsDir: appCfg.ExportsDir,
	}
	if appCfg.BotToken != "" {
		deps.ChannelClient = source.NewBotClient(httpClient, "", appCfg.BotToken)
		slog.Info("Channel client enabled")
	}
	registry := source.NewRegistry(deps)

	runner := pipeline.NewRunner(st, registry,
		pipeline.WithMaxConcurrency(appCfg.MaxConcurrency),
		pipeline.WithFetchTimeout(time.Duration(appCfg.FetchTimeout)*time.Second),
	)

	sched, err := scheduler.New(time.Duration(appCfg.ScrapeInterval)*time.Minute, runner)
	if err != nil {
		slog.Error("Failed to create scheduler", "error", err)
		os.Exit(1)
	}
	sched.Start()
	defer sched.Stop()
	slog.Info("Scheduler started", "interval_minutes", appCfg.ScrapeInterval)

	apiHandler := api.NewHandler(st, runner, appCfg.Version)
	server := api.NewServer(apiHandler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	slog.Info("Shutdown complete")
}
