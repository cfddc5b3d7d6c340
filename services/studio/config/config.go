// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads studio service configuration: embedded defaults,
// optional yaml file, then STUDIO_* environment overrides, in that order.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed config.yaml
var defaultConfigYAML []byte

// Config is the full studio service configuration.
type Config struct {
	Server struct {
		ListenAddr  string `yaml:"listen_addr"`
		MetricsAddr string `yaml:"metrics_addr"`
	} `yaml:"server"`

	Backend struct {
		URL            string  `yaml:"url"`
		RateLimitRPS   float64 `yaml:"rate_limit_rps"`
		RateLimitBurst int     `yaml:"rate_limit_burst"`
		PollIntervalMS int     `yaml:"poll_interval_ms"`
		JobTimeoutS    int     `yaml:"job_timeout_s"`
	} `yaml:"backend"`

	Sessions struct {
		// Dir is the BadgerDB directory; empty keeps sessions in memory.
		Dir      string `yaml:"dir"`
		TTLHours int    `yaml:"ttl_hours"`
	} `yaml:"sessions"`

	Scoring struct {
		// Path points at an external scoring policy yaml. Empty uses the
		// embedded default; non-empty enables hot reload.
		Path string `yaml:"path"`
	} `yaml:"scoring"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// Load builds the effective configuration. path may be empty.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(defaultConfigYAML, &cfg); err != nil {
		panic(fmt.Sprintf("embedded config.yaml invalid: %v", err))
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overlays STUDIO_* environment variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv("STUDIO_LISTEN_ADDR"); v != "" {
		cfg.Server.ListenAddr = v
	}
	if v := os.Getenv("STUDIO_METRICS_ADDR"); v != "" {
		cfg.Server.MetricsAddr = v
	}
	if v := os.Getenv("STUDIO_BACKEND_URL"); v != "" {
		cfg.Backend.URL = v
	}
	if v := os.Getenv("STUDIO_SESSION_DIR"); v != "" {
		cfg.Sessions.Dir = v
	}
	if v := os.Getenv("STUDIO_SCORING_PATH"); v != "" {
		cfg.Scoring.Path = v
	}
	if v := os.Getenv("STUDIO_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("STUDIO_SESSION_TTL_HOURS"); v != "" {
		if hours, err := strconv.Atoi(v); err == nil {
			cfg.Sessions.TTLHours = hours
		}
	}
}

func (c *Config) validate() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr must not be empty")
	}
	if c.Backend.URL == "" {
		return fmt.Errorf("backend.url must not be empty")
	}
	if c.Backend.RateLimitRPS <= 0 || c.Backend.RateLimitBurst <= 0 {
		return fmt.Errorf("backend rate limit must be positive (rps=%v burst=%d)",
			c.Backend.RateLimitRPS, c.Backend.RateLimitBurst)
	}
	if c.Sessions.TTLHours <= 0 {
		return fmt.Errorf("sessions.ttl_hours must be positive")
	}
	return nil
}
