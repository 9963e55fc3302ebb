package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/star/depthscale/internal/api"
	"github.com/star/depthscale/internal/atmos"
	"github.com/star/depthscale/internal/auth"
	"github.com/star/depthscale/internal/eos"
	"github.com/star/depthscale/internal/metrics"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	cfg, err := loadConfig(logger)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	state, err := eos.NewWittmann(cfg.Abundances)
	if err != nil {
		logger.Error("invalid abundances", "error", err)
		os.Exit(1)
	}

	lib := atmos.NewLibrary(cfg.ModelDir, cfg.MaxModels, logger)
	if infos, err := lib.List(); err != nil {
		logger.Warn("model library unreadable", "dir", cfg.ModelDir, "error", err)
	} else {
		metrics.SetModelsStored(len(infos))
		logger.Info("model library loaded", "dir", cfg.ModelDir, "count", len(infos))
	}

	srv := api.NewServer(cfg.Addr, logger, api.Config{
		Auth:             auth.Config{Enabled: cfg.AuthEnabled, Token: cfg.AuthToken},
		MaxPoints:        cfg.MaxPoints,
		MaxBodyBytes:     cfg.MaxBodyBytes,
		MaxInFlightPerIP: cfg.MaxInFlightPerIP,
		MaxInFlightTotal: cfg.MaxInFlightTotal,
		TrustProxy:       cfg.TrustProxy,
	}, state, lib)

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting server", "addr", cfg.Addr, "auth_enabled", cfg.AuthEnabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// loadConfig builds the service configuration: defaults, then the optional
// TOML file named by DEPTHSCALE_CONFIG, then environment variables.
func loadConfig(logger *slog.Logger) (serviceConfig, error) {
	cfg := defaultServiceConfig()

	if path := os.Getenv("DEPTHSCALE_CONFIG"); path != "" {
		var err error
		cfg, err = loadFileConfig(path, cfg)
		if err != nil {
			return cfg, err
		}
		logger.Info("config file loaded", "path", path)
	}

	if v := os.Getenv("DEPTHSCALE_HTTP_ADDR"); v != "" {
		cfg.Addr = v
	}

	if v := os.Getenv("DEPTHSCALE_MODEL_DIR"); v != "" {
		cfg.ModelDir = v
	}

	if v := os.Getenv("DEPTHSCALE_MAX_MODELS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid DEPTHSCALE_MAX_MODELS value, using default", "value", v, "default", cfg.MaxModels)
		} else {
			cfg.MaxModels = n
		}
	}

	if v := os.Getenv("DEPTHSCALE_MAX_POINTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid DEPTHSCALE_MAX_POINTS value, using default", "value", v, "default", cfg.MaxPoints)
		} else {
			cfg.MaxPoints = n
		}
	}

	if v := os.Getenv("DEPTHSCALE_MAX_BODY_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 1 {
			logger.Warn("invalid DEPTHSCALE_MAX_BODY_BYTES value, using default", "value", v, "default", cfg.MaxBodyBytes)
		} else {
			cfg.MaxBodyBytes = n
		}
	}

	if v := os.Getenv("DEPTHSCALE_MAX_IN_FLIGHT_PER_IP"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid DEPTHSCALE_MAX_IN_FLIGHT_PER_IP value, using default", "value", v, "default", cfg.MaxInFlightPerIP)
		} else {
			cfg.MaxInFlightPerIP = n
		}
	}

	if v := os.Getenv("DEPTHSCALE_TRUST_PROXY"); v != "" {
		trust, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid DEPTHSCALE_TRUST_PROXY value, using default", "value", v, "default", cfg.TrustProxy)
		} else {
			cfg.TrustProxy = trust
		}
	}

	if v := os.Getenv("DEPTHSCALE_AUTH_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, errors.New("DEPTHSCALE_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.AuthEnabled = enabled
	}

	if cfg.AuthEnabled {
		cfg.AuthToken = os.Getenv("DEPTHSCALE_AUTH_TOKEN")
		if cfg.AuthToken == "" {
			return cfg, errors.New("DEPTHSCALE_AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}

	if path := os.Getenv("DEPTHSCALE_ABUNDANCES"); path != "" {
		abund, err := eos.LoadAbundances(path)
		if err != nil {
			return cfg, err
		}
		cfg.Abundances = abund
	}

	logger.Info("service config",
		"addr", cfg.Addr,
		"model_dir", cfg.ModelDir,
		"max_models", cfg.MaxModels,
		"max_points", cfg.MaxPoints,
		"max_body_bytes", cfg.MaxBodyBytes,
		"max_in_flight_per_ip", cfg.MaxInFlightPerIP,
		"max_in_flight_total", cfg.MaxInFlightTotal,
		"trust_proxy", cfg.TrustProxy,
		"abundance_overrides", len(cfg.Abundances),
	)

	return cfg, nil
}
