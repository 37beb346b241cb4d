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

	"github.com/lumilearn/lumifeed/app/analyzer"
	"github.com/lumilearn/lumifeed/app/api"
	"github.com/lumilearn/lumifeed/app/catalog"
	"github.com/lumilearn/lumifeed/app/cfg"
	"github.com/lumilearn/lumifeed/app/database"
	"github.com/lumilearn/lumifeed/app/feed"
	"github.com/lumilearn/lumifeed/app/ledger"
	"github.com/lumilearn/lumifeed/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was requested, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting LumiFeed server", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "schema_version", version, "dirty", dirty)

	itemRepo := database.NewItemRepository(db)
	profileRepo := database.NewProfileRepository(db)

	seeder := catalog.NewSeeder(appCfg.ContentDir, itemRepo)
	seeded, err := seeder.Run(context.Background())
	if err != nil {
		slog.Error("Failed to seed content packs", "dir", appCfg.ContentDir, "error", err)
		os.Exit(1)
	}
	if seeded > 0 {
		slog.Info("Content packs loaded", "items", seeded)
	}

	var balanceCache *ledger.BalanceCache
	if appCfg.RedisAddr != "" {
		balanceCache, err = ledger.NewBalanceCache(appCfg.RedisAddr)
		if err != nil {
			slog.Warn("Balance cache unavailable, continuing without it", "addr", appCfg.RedisAddr, "error", err)
			balanceCache = nil
		} else {
			defer balanceCache.Close()
		}
	}

	contentCatalog := catalog.NewCatalog(itemRepo)
	rewardLedger := ledger.NewLedger(profileRepo, balanceCache)

	registry := feed.NewRegistry()
	controller := feed.NewController(contentCatalog, rewardLedger, registry, feed.Options{
		VisibilityThreshold: appCfg.VisibilityThreshold,
		SettleDebounce:      time.Duration(appCfg.SettleDebounceMs) * time.Millisecond,
		QuizDwell:           time.Duration(appCfg.QuizDwellMs) * time.Millisecond,
	})

	httpClient := &http.Client{Timeout: 30 * time.Second}
	analyzerClient := analyzer.NewAnalyzer(appCfg.AnalyzerURL, appCfg.UserAgent, httpClient)
	if !analyzerClient.Enabled() {
		slog.Info("Content analysis disabled (ANALYZER_URL not set)")
	}

	sources, err := tasks.ParseImportFeeds(appCfg.ImportFeeds)
	if err != nil {
		slog.Error("Invalid import feed configuration", "error", err)
		os.Exit(1)
	}

	scheduler := tasks.NewScheduler(itemRepo, rewardLedger, registry, analyzerClient, httpClient, sources)
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(controller, registry, contentCatalog, rewardLedger,
		itemRepo, analyzerClient, scheduler, sources)
	server := api.NewServer(handler)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port,
			"curator_api", appCfg.APIAccessKey != "",
			"import_feeds", len(sources))
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
	}

	registry.CloseAll()

	slog.Info("Shutdown complete")
}
