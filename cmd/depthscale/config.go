package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/star/depthscale/internal/api"
)

// serviceConfig collects everything main needs to start the service.
type serviceConfig struct {
	Addr             string
	ModelDir         string
	MaxModels        int
	MaxPoints        int
	MaxBodyBytes     int64
	MaxInFlightPerIP int
	MaxInFlightTotal int
	TrustProxy       bool
	AuthEnabled      bool
	AuthToken        string
	Abundances       map[string]float64
}

func defaultServiceConfig() serviceConfig {
	def := api.DefaultConfig()
	return serviceConfig{
		Addr:             ":8080",
		ModelDir:         "/tmp/depthscale/models",
		MaxModels:        100,
		MaxPoints:        def.MaxPoints,
		MaxBodyBytes:     def.MaxBodyBytes,
		MaxInFlightPerIP: def.MaxInFlightPerIP,
		MaxInFlightTotal: def.MaxInFlightTotal,
	}
}

type fileConfig struct {
	Addr             string             `toml:"addr"`
	ModelDir         string             `toml:"model_dir"`
	MaxModels        int                `toml:"max_models"`
	MaxPoints        int                `toml:"max_points"`
	MaxBodyBytes     int64              `toml:"max_body_bytes"`
	MaxInFlightPerIP int                `toml:"max_in_flight_per_ip"`
	MaxInFlightTotal int                `toml:"max_in_flight_total"`
	TrustProxy       bool               `toml:"trust_proxy"`
	AuthEnabled      bool               `toml:"auth_enabled"`
	Abundances       map[string]float64 `toml:"abundances"`
}

// loadFileConfig overlays the TOML file at path onto cfg. Only keys present
// in the file are applied. The auth token is never read from the file.
func loadFileConfig(path string, cfg serviceConfig) (serviceConfig, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return cfg, fmt.Errorf("load config: unknown keys %v", undecoded)
	}

	if meta.IsDefined("addr") {
		cfg.Addr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("model_dir") {
		cfg.ModelDir = strings.TrimSpace(raw.ModelDir)
	}
	if meta.IsDefined("max_models") {
		if raw.MaxModels < 1 {
			return cfg, fmt.Errorf("max_models must be positive, got %d", raw.MaxModels)
		}
		cfg.MaxModels = raw.MaxModels
	}
	if meta.IsDefined("max_points") {
		if raw.MaxPoints < 1 {
			return cfg, fmt.Errorf("max_points must be positive, got %d", raw.MaxPoints)
		}
		cfg.MaxPoints = raw.MaxPoints
	}
	if meta.IsDefined("max_body_bytes") {
		if raw.MaxBodyBytes < 1 {
			return cfg, fmt.Errorf("max_body_bytes must be positive, got %d", raw.MaxBodyBytes)
		}
		cfg.MaxBodyBytes = raw.MaxBodyBytes
	}
	if meta.IsDefined("max_in_flight_per_ip") {
		if raw.MaxInFlightPerIP < 1 {
			return cfg, fmt.Errorf("max_in_flight_per_ip must be positive, got %d", raw.MaxInFlightPerIP)
		}
		cfg.MaxInFlightPerIP = raw.MaxInFlightPerIP
	}
	if meta.IsDefined("max_in_flight_total") {
		if raw.MaxInFlightTotal < 1 {
			return cfg, fmt.Errorf("max_in_flight_total must be positive, got %d", raw.MaxInFlightTotal)
		}
		cfg.MaxInFlightTotal = raw.MaxInFlightTotal
	}
	if meta.IsDefined("trust_proxy") {
		cfg.TrustProxy = raw.TrustProxy
	}
	if meta.IsDefined("auth_enabled") {
		cfg.AuthEnabled = raw.AuthEnabled
	}
	if meta.IsDefined("abundances") {
		cfg.Abundances = raw.Abundances
	}

	return cfg, nil
}
