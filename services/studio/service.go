// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package studio assembles the compliance validator, scanner generator,
// and tool orchestrator behind the /v1/studio HTTP surface.
package studio

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/scanforgeai/scanforge/services/studio/backend"
	"github.com/scanforgeai/scanforge/services/studio/config"
	"github.com/scanforgeai/scanforge/services/studio/generate"
	"github.com/scanforgeai/scanforge/services/studio/intent"
	"github.com/scanforgeai/scanforge/services/studio/orchestrate"
	"github.com/scanforgeai/scanforge/services/studio/rules"
	badgerstore "github.com/scanforgeai/scanforge/services/studio/storage/badger"
	"github.com/scanforgeai/scanforge/services/studio/validate"
)

// Service owns the studio components and their shared lifecycle.
//
// Thread Safety: Safe for concurrent use after NewService returns.
type Service struct {
	cfg    *config.Config
	logger *slog.Logger

	validator    *validate.Validator
	generator    *generate.Generator
	orchestrator *orchestrate.Orchestrator

	// sessionDB is non-nil only when session persistence is configured.
	sessionDB *badgerstore.DB
}

// NewService wires every studio component from configuration.
func NewService(cfg *config.Config, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}

	validator := validate.NewValidator(validate.WithLogger(logger))
	generator := generate.NewGenerator(
		generate.WithValidator(validator),
		generate.WithGeneratorLogger(logger),
	)

	var sessionDB *badgerstore.DB
	sessionOpts := []orchestrate.SessionManagerOption{orchestrate.WithSessionLogger(logger)}
	if cfg.Sessions.Dir != "" {
		db, err := badgerstore.Open(badgerstore.Options{Path: cfg.Sessions.Dir, Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("open session store: %w", err)
		}
		sessionDB = db
		store := orchestrate.NewBadgerSessionStore(db, time.Duration(cfg.Sessions.TTLHours)*time.Hour, logger)
		sessionOpts = append(sessionOpts, orchestrate.WithSessionStore(store))
	}
	sessions := orchestrate.NewSessionManager(sessionOpts...)

	client := backend.NewClient(cfg.Backend.URL,
		backend.WithRateLimit(cfg.Backend.RateLimitRPS, cfg.Backend.RateLimitBurst),
		backend.WithPollInterval(time.Duration(cfg.Backend.PollIntervalMS)*time.Millisecond),
		backend.WithJobTimeout(time.Duration(cfg.Backend.JobTimeoutS)*time.Second),
		backend.WithClientLogger(logger),
	)

	registry := orchestrate.NewRegistry()
	register := func(tool orchestrate.Tool, intents ...intent.Intent) error {
		return registry.Register(tool, intents...)
	}
	wiring := []error{
		register(orchestrate.NewGenerateTool(generator), intent.IntentGenerateScanner),
		register(orchestrate.NewValidateTool(validator), intent.IntentValidate),
		register(orchestrate.NewPlanTool(), intent.IntentPlan),
		register(orchestrate.NewAnalyzeTool(client), intent.IntentAnalyze),
		register(orchestrate.NewOptimizeTool(client), intent.IntentOptimize),
		register(orchestrate.NewBacktestTool(client), intent.IntentBacktest),
		register(orchestrate.NewExecuteTool(client), intent.IntentExecute),
	}
	for _, err := range wiring {
		if err != nil {
			return nil, fmt.Errorf("register tools: %w", err)
		}
	}

	orchestrator := orchestrate.NewOrchestrator(
		intent.NewClassifier(intent.WithClassifierLogger(logger)),
		registry,
		sessions,
		orchestrate.WithOrchestratorLogger(logger),
	)

	return &Service{
		cfg:          cfg,
		logger:       logger,
		validator:    validator,
		generator:    generator,
		orchestrator: orchestrator,
		sessionDB:    sessionDB,
	}, nil
}

// UpdateScoringPolicy applies a hot-reloaded scoring policy.
func (s *Service) UpdateScoringPolicy(policy rules.ScoringPolicy) {
	s.validator.SetPolicy(policy)
	s.logger.Info("scoring policy applied",
		slog.Float64("pass_threshold", policy.PassThreshold),
	)
}

// Close releases owned resources (session DB).
func (s *Service) Close() error {
	if s.sessionDB != nil {
		return s.sessionDB.Close()
	}
	return nil
}
