package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aluiziolira/go-scrape-launches/config"
	"github.com/aluiziolira/go-scrape-launches/models"
	"github.com/aluiziolira/go-scrape-launches/parser"
	"github.com/aluiziolira/go-scrape-launches/pipeline"
	"github.com/aluiziolira/go-scrape-launches/scraper"
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := config.LoadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		return 1
	}
	cfg := config.DefaultConfig()
	if err := config.ApplyEnv(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "invalid environment: %v\n", err)
		return 1
	}

	verbose := flag.Bool("v", cfg.Verbose, "Enable verbose logging")
	outputFormat := flag.String("format", cfg.OutputFormat, "Output format: text, json, or csv")
	outputFile := flag.String("output", cfg.OutputFile, "Output file path (default stdout)")
	metricsAddr := flag.String("metrics-addr", cfg.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	selectorsFile := flag.String("selectors", "", "YAML file overriding the CSS selector lists")
	debugDir := flag.String("debug-dir", cfg.DebugDir, "Directory for page dumps when no product blocks match (empty disables)")
	flag.Parse()

	cfg.Verbose = *verbose
	cfg.OutputFormat = strings.ToLower(*outputFormat)
	cfg.OutputFile = *outputFile
	cfg.MetricsAddr = *metricsAddr
	cfg.DebugDir = *debugDir

	logger, level := newLogger(cfg.Verbose)
	logger = logger.With(slog.String("run_id", uuid.NewString()))
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.Any("error", err))
		return 1
	}

	selectors := config.DefaultSelectors()
	if *selectorsFile != "" {
		loaded, err := config.LoadSelectors(*selectorsFile)
		if err != nil {
			logger.Error("loading selectors", slog.Any("error", err))
			return 1
		}
		selectors = loaded
	}

	opts := []parser.Option{
		parser.WithLogger(logger),
		parser.WithLimit(cfg.MaxProducts),
	}
	if cfg.DebugDir != "" {
		opts = append(opts, parser.WithDumper(parser.FileDumper{Dir: cfg.DebugDir}))
	}
	extractor, err := parser.NewExtractor(cfg.Origin(), selectors, opts...)
	if err != nil {
		logger.Error("building extractor", slog.Any("error", err))
		return 1
	}

	s, err := scraper.NewScraper(cfg, extractor, logger)
	if err != nil {
		logger.Error("initialising scraper", slog.Any("error", err))
		return 1
	}

	out, err := pipeline.OpenOutput(cfg.OutputFile)
	if err != nil {
		logger.Error("opening output", slog.Any("error", err))
		return 1
	}
	defer func() {
		if err := out.Close(); err != nil {
			logger.Error("close output", slog.Any("error", err))
		}
	}()

	writer, err := pipeline.NewWriter(cfg.OutputFormat, out)
	if err != nil {
		logger.Error("creating writer", slog.Any("error", err))
		return 1
	}
	p, err := pipeline.NewPipeline(writer, cfg, logger)
	if err != nil {
		logger.Error("creating pipeline", slog.Any("error", err))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsServer := startMetricsServer(cfg.MetricsAddr, s.Metrics, logger)

	logger.Info("starting scrape",
		slog.String("base_url", cfg.BaseURL),
		slog.Int("max_products", cfg.MaxProducts),
		slog.Int("max_retries", cfg.MaxRetries),
	)

	result := s.Scrape(ctx)

	if err := p.Process(result); err != nil {
		logger.Error("writing result", slog.Any("error", err))
		return 1
	}
	if err := p.Close(); err != nil {
		logger.Error("pipeline shutdown failed", slog.Any("error", err))
		return 1
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	logSummary(logger, result, p.GetMetrics())
	if !result.OK() {
		return 1
	}
	return 0
}

func startMetricsServer(addr string, metrics *scraper.Metrics, logger *slog.Logger) *http.Server {
	if addr == "" || metrics == nil {
		return nil
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	logger.Info("metrics server enabled", slog.String("addr", addr))
	return server
}

func logSummary(logger *slog.Logger, result *models.Result, metrics map[string]interface{}) {
	stats := result.Stats
	attrs := []any{
		slog.String("status", string(result.Status)),
		slog.Int("attempts", stats.Attempts),
		slog.Int("rate_limited", stats.RateLimited),
		slog.Int("skipped_blocks", stats.SkippedItems),
		slog.String("selector", stats.Selector),
		slog.Duration("duration", stats.EndTime.Sub(stats.StartTime)),
	}
	if processed, ok := metrics["processed_products"].(int64); ok {
		attrs = append(attrs, slog.Int64("products", processed))
	}
	if len(stats.ErrorsByType) > 0 {
		attrs = append(attrs, slog.Any("errors_by_type", stats.ErrorsByType))
	}
	if validation, ok := metrics["validation_errors"].(map[string]int); ok && len(validation) > 0 {
		attrs = append(attrs, slog.Any("validation_errors", validation))
	}
	logger.Info("scrape complete", attrs...)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stderr) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
