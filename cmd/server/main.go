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
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/omtx/go-extract-orders/config"
	"github.com/omtx/go-extract-orders/scraper"
	"github.com/omtx/go-extract-orders/server"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	cfg := config.DefaultConfig()
	if err := cfg.FromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	backend := flag.String("backend", cfg.Backend, "Fetch backend: static or browser")
	listenAddr := flag.String("listen", cfg.ListenAddr, "HTTP listen address")
	metricsAddr := flag.String("metrics-addr", cfg.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	maxPages := flag.Int("max-pages", cfg.MaxPages, "Maximum listing pages to walk per run")
	maxRetries := flag.Int("max-retries", cfg.MaxRetries, "Maximum retry attempts per fetch")
	timeout := flag.Duration("timeout", cfg.Timeout, "Per-fetch timeout")
	cursorFile := flag.String("state-file", cfg.CursorFile, "Cursor state file path")
	exportDir := flag.String("exports-dir", cfg.ExportDir, "Directory for JSON export files")
	verbose := flag.Bool("v", cfg.Verbose, "Enable verbose logging")

	flag.Parse()

	cfg.Backend = *backend
	cfg.ListenAddr = *listenAddr
	cfg.MetricsAddr = *metricsAddr
	cfg.MaxPages = *maxPages
	cfg.MaxRetries = *maxRetries
	cfg.Timeout = *timeout
	cfg.CursorFile = *cursorFile
	cfg.ExportDir = *exportDir
	cfg.Verbose = *verbose

	logger, level := newLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	orchestrator, err := scraper.New(cfg)
	if err != nil {
		slog.Error("initialising extraction engine", slog.Any("error", err))
		os.Exit(1)
	}
	defer orchestrator.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(orchestrator.Metrics().Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	api := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.New(cfg, orchestrator).Handler(),
	}
	go func() {
		slog.Info("extraction server listening",
			slog.String("addr", cfg.ListenAddr),
			slog.String("backend", cfg.Backend))
		if err := api.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutdown signal received, draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := api.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", slog.Any("error", err))
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
	}
	slog.Info("shutdown complete")
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	var handler slog.Handler
	if isTerminal(os.Stderr) {
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
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
