package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/stellar-reader/app/api"
	"github.com/lysyi3m/stellar-reader/app/cfg"
	"github.com/lysyi3m/stellar-reader/app/database"
	"github.com/lysyi3m/stellar-reader/app/feed"
	"github.com/lysyi3m/stellar-reader/app/tasks"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown
		return
	}

	closeLog, err := setupLogging(appCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	if err := run(appCfg); err != nil {
		slog.Error("Stellar Reader stopped with error", "error", err)
		closeLog()
		os.Exit(1)
	}
}

func run(appCfg *cfg.Cfg) error {
	slog.Info("Starting Stellar Reader", "version", appCfg.Version, "timezone", appCfg.Timezone)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		return err
	}
	slog.Info("Database ready", "path", db.Path(), "schema_version", version, "dirty", dirty)

	configCache := feed.NewConfigCache(appCfg.FeedsDir)
	if err := configCache.Run(); err != nil {
		return fmt.Errorf("failed to load seed configurations: %w", err)
	}
	slog.Info("Seed configurations loaded", "dir", appCfg.FeedsDir, "count", configCache.GetConfigCount())

	feedRepo := database.NewFeedStore(db)
	categoryRepo := database.NewCategoryStore(db)

	httpClient := &http.Client{Timeout: appCfg.FetchTimeout}
	fetcher := feed.NewFetcher(httpClient, appCfg.UserAgent, appCfg.FetchTimeout)

	scheduler := tasks.NewScheduler(configCache, feedRepo, categoryRepo, fetcher,
		feed.NewMetadataExtractor(), appCfg.WorkerCount)
	scheduler.Start()
	defer scheduler.Stop()
	slog.Info("Background workers started", "workers", appCfg.WorkerCount)

	handler := api.NewHandler(configCache, feedRepo, categoryRepo, fetcher, scheduler)
	router := api.NewServer(handler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: appCfg.FetchTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case runErr = <-serverErrChan:
	}

	slog.Info("Shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Stellar Reader shutdown complete")

	return runErr
}

// setupLogging routes slog and gin's access log to stderr, or to a rotating
// file when one is configured.
func setupLogging(appCfg *cfg.Cfg) (func(), error) {
	level := slog.LevelInfo
	if appCfg.Debug {
		level = slog.LevelDebug
	}

	var output io.Writer = os.Stderr
	closeFn := func() {}

	if appCfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(appCfg.LogFile), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		fileWriter := &lumberjack.Logger{
			Filename:   appCfg.LogFile,
			MaxSize:    64, // MB
			MaxBackups: 3,
			MaxAge:     7, // days
			Compress:   true,
		}
		output = io.MultiWriter(os.Stderr, fileWriter)
		closeFn = func() { fileWriter.Close() }
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: level})))
	gin.DefaultWriter = output
	gin.DefaultErrorWriter = output

	return closeFn, nil
}
