package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aluiziolira/go-ebook-batch/collection"
	"github.com/aluiziolira/go-ebook-batch/config"
	"github.com/aluiziolira/go-ebook-batch/dispatcher"
	"github.com/aluiziolira/go-ebook-batch/fulfillment"
	"github.com/aluiziolira/go-ebook-batch/remote"
	"github.com/aluiziolira/go-ebook-batch/session"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type globalFlags struct {
	configPath  string
	verbose     bool
	verboseSet  bool
	remoteURL   string
	metricsAddr string
}

type commandContext struct {
	flags *globalFlags

	configOnce sync.Once
	config     *config.Config
	configErr  error

	registryOnce sync.Once
	registry     *prometheus.Registry
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

// ensureConfig layers defaults, the config file, .env and the environment,
// then the global flags, and installs the logger.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.configErr = fmt.Errorf("load .env: %w", err)
			return
		}

		cfg := config.DefaultConfig()
		if path := strings.TrimSpace(c.flags.configPath); path != "" {
			if err := cfg.LoadFile(path); err != nil {
				c.configErr = err
				return
			}
		}
		if err := cfg.ApplyEnv(); err != nil {
			c.configErr = err
			return
		}
		if c.flags.remoteURL != "" {
			cfg.RemoteURL = c.flags.remoteURL
		}
		if c.flags.metricsAddr != "" {
			cfg.MetricsAddr = c.flags.metricsAddr
		}
		if c.flags.verboseSet {
			cfg.Verbose = c.flags.verbose
		}
		if err := cfg.Validate(); err != nil {
			c.configErr = fmt.Errorf("invalid configuration: %w", err)
			return
		}

		logger, _ := newLogger(cfg.Verbose, os.Stderr)
		slog.SetDefault(logger)
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) metricsRegistry() *prometheus.Registry {
	c.registryOnce.Do(func() {
		c.registry = prometheus.NewRegistry()
		c.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	})
	return c.registry
}

// processor returns the remote client when a remote URL is configured and
// the in-process fulfillment service otherwise.
func (c *commandContext) processor(cfg *config.Config) (dispatcher.Processor, error) {
	if cfg.RemoteURL != "" {
		slog.Info("using remote processing service", slog.String("url", cfg.RemoteURL))
		return remote.NewClient(cfg.RemoteURL, cfg.UserAgent), nil
	}
	service, err := fulfillment.New(cfg, fulfillment.NewMetrics(c.metricsRegistry()))
	if err != nil {
		return nil, fmt.Errorf("initialise fulfillment service: %w", err)
	}
	return service, nil
}

func (c *commandContext) newSession(cfg *config.Config) (*session.Session, error) {
	processor, err := c.processor(cfg)
	if err != nil {
		return nil, err
	}
	d := dispatcher.New(processor, dispatcher.NewMetrics(c.metricsRegistry()))
	return session.New(collection.NewStore(), d), nil
}

// startMetricsServer serves /metrics on cfg.MetricsAddr until the returned
// stop function is called. It is a no-op without an address.
func (c *commandContext) startMetricsServer(cfg *config.Config) func() {
	if cfg.MetricsAddr == "" {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.metricsRegistry(), promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
	}
}
