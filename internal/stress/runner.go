// Package stress runs torture scenarios against refbase handles and checks
// the lifetime guarantees they must keep under real concurrency.
package stress

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rnkv/refbase-go/internal/telemetry"
)

// ScenarioReport is the outcome of one scenario.
type ScenarioReport struct {
	Name             string        `yaml:"name"`
	Goroutines       int           `yaml:"goroutines"`
	Iterations       int           `yaml:"iterations"`
	Objects          int64         `yaml:"objects"`
	Promotions       int64         `yaml:"promotions"`
	FailedPromotions int64         `yaml:"failed_promotions"`
	Failed           int           `yaml:"failed"`
	Failures         []string      `yaml:"failures,omitempty"`
	Duration         time.Duration `yaml:"duration"`
}

// Passed reports whether the scenario observed no broken guarantee.
func (r ScenarioReport) Passed() bool {
	return r.Failed == 0
}

// Report is the outcome of a whole run.
type Report struct {
	RunID     string           `yaml:"run_id"`
	StartedAt time.Time        `yaml:"started_at"`
	Duration  time.Duration    `yaml:"duration"`
	Scenarios []ScenarioReport `yaml:"scenarios"`
}

// Passed reports whether every scenario passed.
func (r Report) Passed() bool {
	for _, s := range r.Scenarios {
		if !s.Passed() {
			return false
		}
	}
	return true
}

// Runner executes the scenarios of a Config in order.
type Runner struct {
	cfg    Config
	logger *slog.Logger
	tracer trace.Tracer
}

// NewRunner validates cfg and returns a Runner for it. A nil logger means
// slog.Default().
func NewRunner(cfg Config, logger *slog.Logger) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		cfg:    cfg,
		logger: logger,
		tracer: otel.Tracer("github.com/rnkv/refbase-go/internal/stress"),
	}, nil
}

// Run executes every configured scenario. Broken guarantees are reported in
// the Report, not as an error; the error is non-nil only if ctx ends the run
// early.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	report := Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}

	ctx, span := r.tracer.Start(ctx, "stress.Run",
		trace.WithAttributes(attribute.String("run.id", report.RunID)),
	)
	defer span.End()

	logger := telemetry.LoggerWithTrace(ctx, r.logger).With("run_id", report.RunID)
	logger.Info("stress run started", "scenarios", len(r.cfg.Scenarios))

	for _, sc := range r.cfg.Scenarios {
		sr, err := r.runScenario(ctx, sc)
		report.Scenarios = append(report.Scenarios, sr)

		if err != nil {
			report.Duration = time.Since(report.StartedAt)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return report, fmt.Errorf("scenario %s: %w", sc.Name, err)
		}

		level := slog.LevelInfo
		if !sr.Passed() {
			level = slog.LevelError
		}
		logger.Log(ctx, level, "scenario finished",
			"scenario", sr.Name,
			"objects", sr.Objects,
			"promotions", sr.Promotions,
			"failed_promotions", sr.FailedPromotions,
			"failed", sr.Failed,
			"duration", sr.Duration,
		)
	}

	report.Duration = time.Since(report.StartedAt)

	if !report.Passed() {
		span.SetStatus(codes.Error, "guarantees violated")
	}

	logger.Info("stress run finished", "passed", report.Passed(), "duration", report.Duration)
	return report, nil
}

func (r *Runner) runScenario(ctx context.Context, sc ScenarioConfig) (ScenarioReport, error) {
	ctx, span := r.tracer.Start(ctx, "stress.Scenario",
		trace.WithAttributes(
			attribute.String("scenario.name", sc.Name),
			attribute.Int("scenario.goroutines", sc.Goroutines),
			attribute.Int("scenario.iterations", sc.Iterations),
			attribute.Int("scenario.handles", sc.Handles),
		),
	)
	defer span.End()

	var t tally
	started := time.Now()
	err := scenarios[sc.Name](ctx, sc, &t)

	t.mu.Lock()
	defer t.mu.Unlock()

	sr := ScenarioReport{
		Name:             sc.Name,
		Goroutines:       sc.Goroutines,
		Iterations:       sc.Iterations,
		Objects:          t.objects.Load(),
		Promotions:       t.promotions.Load(),
		FailedPromotions: t.failedPromotions.Load(),
		Failed:           t.failed,
		Failures:         t.failures,
		Duration:         time.Since(started),
	}

	span.SetAttributes(
		attribute.Int64("scenario.objects", sr.Objects),
		attribute.Int("scenario.failed", sr.Failed),
	)
	if !sr.Passed() {
		span.SetStatus(codes.Error, "guarantees violated")
	}

	return sr, err
}
