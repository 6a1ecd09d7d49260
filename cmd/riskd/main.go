package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/bhedir/AI-Driven-SOAR-Platform/internal/api"
	"github.com/bhedir/AI-Driven-SOAR-Platform/internal/engine"
	"github.com/bhedir/AI-Driven-SOAR-Platform/internal/metrics"
	"github.com/bhedir/AI-Driven-SOAR-Platform/internal/publish"
	"github.com/bhedir/AI-Driven-SOAR-Platform/internal/rules"
	"github.com/bhedir/AI-Driven-SOAR-Platform/internal/store"
	"github.com/bhedir/AI-Driven-SOAR-Platform/internal/verdict"
)

func main() {
	// Initialize logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting risk scoring & decision service")

	// Load environment variables with defaults
	httpAddr := getEnv("RISKD_HTTP_ADDR", ":8086")
	natsURL := getEnv("RISKD_NATS_URL", "")
	rulesDir := getEnv("RISKD_RULES_DIR", "")
	thresholdsFile := getEnv("RISKD_THRESHOLDS_FILE", "")
	maxVerdicts := getEnvInt("RISKD_MAX_VERDICTS", 10000)
	dedupeCap := getEnvInt("RISKD_DEDUPE_CAP", 100000)
	hotReload := strings.ToLower(getEnv("RISKD_HOT_RELOAD", "false")) == "true"
	debounceMs := getEnvInt("RISKD_DEBOUNCE_MS", 1000)

	logger.Info("Configuration loaded",
		"http_addr", httpAddr,
		"nats_url", natsURL,
		"rules_dir", rulesDir,
		"thresholds_file", thresholdsFile,
		"max_verdicts", maxVerdicts,
		"dedupe_cap", dedupeCap,
		"hot_reload", hotReload,
		"debounce_ms", debounceMs)

	// Connect to NATS when a URL is configured. Publishing is optional; the
	// classification path works without a bus.
	var natsConn *nats.Conn
	if natsURL != "" {
		nc, err := nats.Connect(natsURL)
		if err != nil {
			logger.Error("Failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer nc.Close()
		natsConn = nc
		logger.Info("Connected to NATS", "url", natsURL)
	} else {
		logger.Info("NATS publishing disabled")
	}

	// Create metrics
	prometheusMetrics := metrics.NewMetrics()

	// Load the rule catalog. An invalid catalog must not serve requests.
	ruleLoader := rules.NewLoader(rulesDir, hotReload, debounceMs, logger)
	if _, err := ruleLoader.LoadSnapshot(); err != nil {
		logger.Error("Failed to load rule catalog", "error", err)
		os.Exit(1)
	}
	snapshot := ruleLoader.GetSnapshot()
	prometheusMetrics.SetRulesLoaded(float64(len(snapshot.Rules)))

	// Start the rule file watcher if hot reload is enabled
	if err := ruleLoader.WatchForChanges(); err != nil {
		logger.Error("Failed to start rule watcher", "error", err)
		os.Exit(1)
	}

	// Keep the rules gauge current across hot reloads
	go func() {
		for range ruleLoader.Subscribe() {
			prometheusMetrics.SetRulesLoaded(float64(len(ruleLoader.GetSnapshot().Rules)))
		}
	}()

	// Load and validate the threshold table. A gapped or overlapping table is
	// a fatal configuration error.
	table, err := verdict.LoadTable(thresholdsFile, rules.BaselineScore, logger)
	if err != nil {
		logger.Error("Invalid threshold table, refusing to start", "error", err)
		os.Exit(1)
	}

	// Wire the engine
	scorer := rules.NewScorer(prometheusMetrics, logger)
	decisionEngine := engine.New(ruleLoader, scorer, table, prometheusMetrics, logger)

	// Audit store and verdict publisher
	verdictStore := store.NewMemoryStore(maxVerdicts, dedupeCap)
	logger.Info("Verdict store initialized", "max_verdicts", maxVerdicts, "dedupe_cap", dedupeCap)

	publisher := publish.NewVerdictPublisher(natsConn, prometheusMetrics, logger)

	// Create HTTP API
	httpAPI := api.NewHTTPAPI(decisionEngine, verdictStore, ruleLoader, publisher, prometheusMetrics, natsConn, logger)
	mux := http.NewServeMux()
	httpAPI.SetupRoutes(mux)

	httpServer := &http.Server{
		Addr:    httpAddr,
		Handler: mux,
	}

	// Start HTTP server
	go func() {
		logger.Info("Starting HTTP server", "addr", httpAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("Risk scoring service started successfully",
		"rules", len(snapshot.Rules),
		"bands", len(table.Bands()))

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down risk scoring service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("Risk scoring service stopped")
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as an integer with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
