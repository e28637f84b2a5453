package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"kinetic/internal/content"
	"kinetic/internal/driver"
	"kinetic/internal/kernel"
	"kinetic/internal/render"
	"kinetic/internal/server"
	"kinetic/modules/contentcache"
	"kinetic/pkg/kinetic"
)

const (
	defaultConfigFilePath   = "config/kineticd.yaml"
	alternateConfigFilePath = "bin/config/kineticd.yaml"

	defaultListenAddr = ":8080"
	defaultStorePath  = "state/kinetic.db"

	defaultModuleHookTimeout  = 3 * time.Second
	defaultShutdownTimeout    = 10 * time.Second
	defaultSubscriptionBuffer = 256
	defaultSubscriptionWorker = 2

	httpDriverType        = "httpserver"
	defaultHTTPDriverName = "http"
)

type envConfig struct {
	ConfigFile string `env:"KINETIC_CONFIG_FILE"`
	ListenAddr string `env:"KINETIC_LISTEN_ADDR"`
	StorePath  string `env:"KINETIC_STORE_PATH"`
	LogLevel   string `env:"KINETIC_LOG_LEVEL"`
}

type appConfig struct {
	logLevel slog.Level

	moduleHookTimeout   time.Duration
	shutdownTimeout     time.Duration
	subscriptionBuffer  int
	subscriptionWorkers int

	listenAddr   string
	drainTimeout time.Duration

	storePath      string
	bootstrapLimit int

	drivers []driver.Definition
}

type fileConfig struct {
	LogLevel string            `yaml:"log_level"`
	Kernel   fileKernelConfig  `yaml:"kernel"`
	Server   fileServerConfig  `yaml:"server"`
	Store    fileStoreConfig   `yaml:"store"`
	Drivers  []fileDriverEntry `yaml:"drivers"`
}

type fileKernelConfig struct {
	ModuleHookTimeout   string `yaml:"module_hook_timeout"`
	ShutdownTimeout     string `yaml:"shutdown_timeout"`
	SubscriptionBuffer  *int   `yaml:"subscription_buffer"`
	SubscriptionWorkers *int   `yaml:"subscription_workers"`
}

type fileServerConfig struct {
	ListenAddr   string `yaml:"listen_addr"`
	DrainTimeout string `yaml:"drain_timeout"`
}

type fileStoreConfig struct {
	Path           string `yaml:"path"`
	BootstrapLimit *int   `yaml:"bootstrap_limit"`
}

type fileDriverEntry struct {
	Name    string         `yaml:"name"`
	Type    string         `yaml:"type"`
	Enabled *bool          `yaml:"enabled"`
	Config  map[string]any `yaml:"config"`
}

type httpDriverConfig struct {
	ListenAddr   string `json:"listen_addr"`
	DrainTimeout string `json:"drain_timeout"`
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.logLevel}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := content.Open(
		ctx,
		cfg.storePath,
		content.WithLogger(logger),
		content.WithBootstrapLimit(cfg.bootstrapLimit),
	)
	if err != nil {
		return fmt.Errorf("open content store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.Error("close content store", "error", closeErr)
		}
	}()

	renderer, err := render.New(render.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("new detail renderer: %w", err)
	}

	cacheModule := contentcache.New(contentcache.WithLogger(logger))
	httpServer, err := server.New(cacheModule, store, renderer, server.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("new http server: %w", err)
	}

	registry, err := driver.NewBuiltinRegistry(newHTTPDriverDescriptor(httpServer, cfg))
	if err != nil {
		return fmt.Errorf("new driver registry: %w", err)
	}

	kernelRuntime := buildKernelRuntime(logger, cfg)
	if err := registerRuntimeDrivers(ctx, kernelRuntime, logger, cfg, registry); err != nil {
		return err
	}
	if err := kernelRuntime.RegisterService(kinetic.ServiceLogger, logger); err != nil {
		return fmt.Errorf("register logger service: %w", err)
	}
	if err := kernelRuntime.RegisterService(kinetic.ServiceContentFetcher, store); err != nil {
		return fmt.Errorf("register content fetcher service: %w", err)
	}
	if err := kernelRuntime.RegisterModule(ctx, cacheModule); err != nil {
		return fmt.Errorf("register content cache module: %w", err)
	}

	warmCache(ctx, logger, store, cacheModule)

	if err := kernelRuntime.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run kernel: %w", err)
	}

	return nil
}

// warmCache seeds the in-process cache from the store so hub and detail
// pages serve warm from the first request. A cold start is degraded, not
// fatal.
func warmCache(ctx context.Context, logger *slog.Logger, store *content.Store, cache *contentcache.Module) {
	payload, err := store.FetchBootstrap(ctx)
	if err != nil {
		logger.Warn("cache warm-up failed, starting cold", "error", err)

		return
	}

	cache.HydrateUniversal(payload)
	stats := cache.Stats()
	logger.Info(
		"cache warmed from store",
		"documents", stats.Documents,
		"tags", stats.Tags,
		"creators", stats.Creators,
		"indexes", stats.Indexes,
	)
}

func newHTTPDriverDescriptor(httpServer *server.Server, cfg appConfig) driver.Descriptor {
	return driver.Descriptor{
		Type: httpDriverType,
		Builder: func(
			_ context.Context,
			definition driver.Definition,
			builderLogger *slog.Logger,
		) (driver.Runtime, error) {
			addr := cfg.listenAddr
			drainTimeout := cfg.drainTimeout
			if len(definition.Config) > 0 {
				var parsed httpDriverConfig
				if err := json.Unmarshal(definition.Config, &parsed); err != nil {
					return driver.Runtime{}, fmt.Errorf("parse httpserver config: %w", err)
				}
				if trimmed := strings.TrimSpace(parsed.ListenAddr); trimmed != "" {
					addr = trimmed
				}
				if rawTimeout := strings.TrimSpace(parsed.DrainTimeout); rawTimeout != "" {
					timeout, err := time.ParseDuration(rawTimeout)
					if err != nil {
						return driver.Runtime{}, fmt.Errorf("parse httpserver drain_timeout: %w", err)
					}
					drainTimeout = timeout
				}
			}

			options := []server.DriverOption{server.WithDriverLogger(builderLogger)}
			if drainTimeout > 0 {
				options = append(options, server.WithDrainTimeout(drainTimeout))
			}

			httpDriver := server.NewDriver(definition.Name, addr, httpServer.Handler(), options...)

			return driver.Runtime{Driver: httpDriver}, nil
		},
	}
}

func loadConfig() (appConfig, error) {
	var envCfg envConfig
	if err := env.Parse(&envCfg); err != nil {
		return appConfig{}, fmt.Errorf("parse environment: %w", err)
	}

	cfg := defaultAppConfig()

	configFile, err := resolveConfigFilePath(envCfg.ConfigFile)
	if err != nil {
		return appConfig{}, err
	}
	if configFile != "" {
		if err := applyConfigFile(&cfg, configFile); err != nil {
			return appConfig{}, err
		}
	}

	if err := applyEnvOverrides(&cfg, envCfg); err != nil {
		return appConfig{}, err
	}
	if len(cfg.drivers) == 0 {
		cfg.drivers = []driver.Definition{{
			Name:    defaultHTTPDriverName,
			Type:    httpDriverType,
			Enabled: true,
		}}
	}
	if err := validateAppConfig(&cfg); err != nil {
		return appConfig{}, err
	}

	return cfg, nil
}

// resolveConfigFilePath returns "" when no config file is configured; the
// daemon then runs on defaults plus environment overrides. An explicit
// KINETIC_CONFIG_FILE that does not exist is an error.
func resolveConfigFilePath(explicit string) (string, error) {
	if configFile := strings.TrimSpace(explicit); configFile != "" {
		info, err := os.Stat(configFile)
		if err != nil {
			return "", fmt.Errorf("stat config file %s: %w", configFile, err)
		}
		if info.IsDir() {
			return "", fmt.Errorf("config file %s is a directory", configFile)
		}

		return configFile, nil
	}

	candidates := []string{defaultConfigFilePath, alternateConfigFilePath}
	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil {
			if info.IsDir() {
				return "", fmt.Errorf("config file %s is a directory", candidate)
			}

			return candidate, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("stat config file %s: %w", candidate, err)
		}
	}

	return "", nil
}

func defaultAppConfig() appConfig {
	return appConfig{
		logLevel: slog.LevelInfo,

		moduleHookTimeout:   defaultModuleHookTimeout,
		shutdownTimeout:     defaultShutdownTimeout,
		subscriptionBuffer:  defaultSubscriptionBuffer,
		subscriptionWorkers: defaultSubscriptionWorker,

		listenAddr: defaultListenAddr,
		storePath:  defaultStorePath,

		drivers: make([]driver.Definition, 0),
	}
}

func applyConfigFile(cfg *appConfig, path string) error {
	if cfg == nil {
		return fmt.Errorf("apply config file: nil config")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var parsed fileConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if rawLevel := strings.TrimSpace(parsed.LogLevel); rawLevel != "" {
		level, err := parseLogLevel(rawLevel)
		if err != nil {
			return fmt.Errorf("parse log_level: %w", err)
		}
		cfg.logLevel = level
	}

	if rawTimeout := strings.TrimSpace(parsed.Kernel.ModuleHookTimeout); rawTimeout != "" {
		timeout, err := parsePositiveDuration(rawTimeout)
		if err != nil {
			return fmt.Errorf("parse kernel.module_hook_timeout: %w", err)
		}
		cfg.moduleHookTimeout = timeout
	}
	if rawTimeout := strings.TrimSpace(parsed.Kernel.ShutdownTimeout); rawTimeout != "" {
		timeout, err := parsePositiveDuration(rawTimeout)
		if err != nil {
			return fmt.Errorf("parse kernel.shutdown_timeout: %w", err)
		}
		cfg.shutdownTimeout = timeout
	}
	if parsed.Kernel.SubscriptionBuffer != nil {
		if *parsed.Kernel.SubscriptionBuffer <= 0 {
			return fmt.Errorf("parse kernel.subscription_buffer: must be > 0")
		}
		cfg.subscriptionBuffer = *parsed.Kernel.SubscriptionBuffer
	}
	if parsed.Kernel.SubscriptionWorkers != nil {
		if *parsed.Kernel.SubscriptionWorkers <= 0 {
			return fmt.Errorf("parse kernel.subscription_workers: must be > 0")
		}
		cfg.subscriptionWorkers = *parsed.Kernel.SubscriptionWorkers
	}

	if listenAddr := strings.TrimSpace(parsed.Server.ListenAddr); listenAddr != "" {
		cfg.listenAddr = listenAddr
	}
	if rawTimeout := strings.TrimSpace(parsed.Server.DrainTimeout); rawTimeout != "" {
		timeout, err := parsePositiveDuration(rawTimeout)
		if err != nil {
			return fmt.Errorf("parse server.drain_timeout: %w", err)
		}
		cfg.drainTimeout = timeout
	}

	if storePath := strings.TrimSpace(parsed.Store.Path); storePath != "" {
		cfg.storePath = storePath
	}
	if parsed.Store.BootstrapLimit != nil {
		if *parsed.Store.BootstrapLimit <= 0 {
			return fmt.Errorf("parse store.bootstrap_limit: must be > 0")
		}
		cfg.bootstrapLimit = *parsed.Store.BootstrapLimit
	}

	cfg.drivers = make([]driver.Definition, 0, len(parsed.Drivers))
	for index, entry := range parsed.Drivers {
		enabled := true
		if entry.Enabled != nil {
			enabled = *entry.Enabled
		}

		var rawConfig []byte
		if len(entry.Config) > 0 {
			encoded, err := json.Marshal(entry.Config)
			if err != nil {
				return fmt.Errorf("parse drivers[%d].config: %w", index, err)
			}
			rawConfig = encoded
		}

		cfg.drivers = append(cfg.drivers, driver.Definition{
			Name:    strings.TrimSpace(entry.Name),
			Type:    strings.TrimSpace(entry.Type),
			Enabled: enabled,
			Config:  rawConfig,
		})
	}

	return nil
}

func applyEnvOverrides(cfg *appConfig, envCfg envConfig) error {
	if cfg == nil {
		return fmt.Errorf("apply environment overrides: nil config")
	}

	if rawLevel := strings.TrimSpace(envCfg.LogLevel); rawLevel != "" {
		level, err := parseLogLevel(rawLevel)
		if err != nil {
			return fmt.Errorf("parse KINETIC_LOG_LEVEL: %w", err)
		}
		cfg.logLevel = level
	}
	if listenAddr := strings.TrimSpace(envCfg.ListenAddr); listenAddr != "" {
		cfg.listenAddr = listenAddr
	}
	if storePath := strings.TrimSpace(envCfg.StorePath); storePath != "" {
		cfg.storePath = storePath
	}

	return nil
}

func validateAppConfig(cfg *appConfig) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if strings.TrimSpace(cfg.storePath) == "" {
		return fmt.Errorf("store.path is required")
	}

	enabledCount := 0
	seenNames := make(map[string]struct{}, len(cfg.drivers))
	for _, definition := range cfg.drivers {
		if definition.Name == "" {
			return fmt.Errorf("drivers[].name is required")
		}
		if definition.Type == "" {
			return fmt.Errorf("drivers[%s].type is required", definition.Name)
		}
		if _, exists := seenNames[definition.Name]; exists {
			return fmt.Errorf("drivers[%s]: duplicate name", definition.Name)
		}
		seenNames[definition.Name] = struct{}{}
		if definition.Enabled {
			enabledCount++
		}
	}
	if enabledCount == 0 {
		return fmt.Errorf("at least one enabled driver is required")
	}

	return nil
}

func parsePositiveDuration(raw string) (time.Duration, error) {
	timeout, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if timeout <= 0 {
		return 0, fmt.Errorf("must be > 0")
	}

	return timeout, nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unsupported level %q", raw)
	}
}

func buildKernelRuntime(logger *slog.Logger, cfg appConfig) *kernel.Kernel {
	return kernel.New(
		kernel.WithLogger(logger),
		kernel.WithModuleHookTimeout(cfg.moduleHookTimeout),
		kernel.WithShutdownTimeout(cfg.shutdownTimeout),
		kernel.WithDefaultSubscriptionBuffer(cfg.subscriptionBuffer),
		kernel.WithDefaultSubscriptionWorkers(cfg.subscriptionWorkers),
	)
}

func registerRuntimeDrivers(
	ctx context.Context,
	kernelRuntime *kernel.Kernel,
	logger *slog.Logger,
	cfg appConfig,
	registry *driver.Registry,
) error {
	runtimes, err := registry.BuildEnabled(ctx, cfg.drivers, logger)
	if err != nil {
		return fmt.Errorf("build drivers: %w", err)
	}

	for _, runtime := range runtimes {
		if err := kernelRuntime.RegisterDriver(runtime.Driver); err != nil {
			return fmt.Errorf("register driver %s: %w", runtime.Driver.Name(), err)
		}
	}

	return nil
}
