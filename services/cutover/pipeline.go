// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cutover

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultStageTimeout = 5 * time.Minute

// =============================================================================
// Pipeline Step
// =============================================================================

// Step is one stage of the pipeline.
type Step struct {
	// Stage identifies the step in errors, logs and metrics.
	Stage Stage

	// Run performs the stage.
	Run func(ctx context.Context) error

	// Timeout overrides the pipeline's StageTimeout. Zero uses the default.
	Timeout time.Duration
}

// =============================================================================
// Pipeline Configuration
// =============================================================================

// PipelineConfig configures a Pipeline.
//
// # Description
//
// Controls per-stage timeouts and the hooks fired around each stage. The
// Sequencer uses the hooks for logging and metrics.
//
// # Assumptions
//
//   - Hooks return quickly; they run on the pipeline goroutine
type PipelineConfig struct {
	// StageTimeout bounds each stage.
	// Default: 5 minutes
	StageTimeout time.Duration

	// Logger receives stage transitions.
	// Default: slog.Default()
	Logger *slog.Logger

	// Tracer starts one span per stage.
	// Default: otel.Tracer("flowswap/cutover")
	Tracer trace.Tracer

	// OnStageStart is called before each stage runs.
	OnStageStart func(stage Stage)

	// OnStageComplete is called after a stage succeeds.
	OnStageComplete func(stage Stage, duration time.Duration)

	// OnStageFail is called when a stage fails.
	OnStageFail func(stage Stage, duration time.Duration, err error)
}

// =============================================================================
// Pipeline
// =============================================================================

// Pipeline runs stages strictly in order and halts at the first failure.
//
// # Description
//
// Unlike a saga, a Pipeline never compensates: completed stages stay
// committed. Cancellation is checked between stages only; a running stage
// sees ctx but is not interrupted by the pipeline itself.
//
// # Thread Safety
//
// A Pipeline is built and run on one goroutine.
type Pipeline struct {
	config    PipelineConfig
	steps     []Step
	completed []Stage
}

// NewPipeline creates an empty pipeline. Zero config values get defaults.
func NewPipeline(config PipelineConfig) *Pipeline {
	if config.StageTimeout <= 0 {
		config.StageTimeout = defaultStageTimeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Tracer == nil {
		config.Tracer = otel.Tracer("flowswap/cutover")
	}
	return &Pipeline{config: config}
}

// Add appends a step.
func (p *Pipeline) Add(step Step) {
	p.steps = append(p.steps, step)
}

// Completed returns the stages that finished successfully, in order.
func (p *Pipeline) Completed() []Stage {
	out := make([]Stage, len(p.completed))
	copy(out, p.completed)
	return out
}

// Run executes every step in order.
//
// # Outputs
//
//   - error: nil on success, otherwise a *StageError for the first stage
//     that failed or was reached after ctx was cancelled
func (p *Pipeline) Run(ctx context.Context) error {
	p.completed = p.completed[:0]

	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return &StageError{Stage: step.Stage, Err: fmt.Errorf("cancelled before start: %w", err)}
		}

		timeout := step.Timeout
		if timeout <= 0 {
			timeout = p.config.StageTimeout
		}

		if err := p.runStep(ctx, step, timeout); err != nil {
			return &StageError{Stage: step.Stage, Err: err}
		}
		p.completed = append(p.completed, step.Stage)
	}
	return nil
}

func (p *Pipeline) runStep(ctx context.Context, step Step, timeout time.Duration) error {
	if p.config.OnStageStart != nil {
		p.config.OnStageStart(step.Stage)
	}
	p.config.Logger.Info("stage started", "stage", step.Stage.String())

	// A stage runs to completion once started; cancellation of ctx is only
	// observed between stages. The stage timeout still applies.
	stepCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	stepCtx, span := p.config.Tracer.Start(stepCtx, "cutover."+step.Stage.Slug(),
		trace.WithAttributes(attribute.Int("cutover.stage", int(step.Stage))))
	defer span.End()

	start := time.Now()
	err := step.Run(stepCtx)
	duration := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.config.Logger.Error("stage failed",
			"stage", step.Stage.String(),
			"duration", duration,
			"error", err,
		)
		if p.config.OnStageFail != nil {
			p.config.OnStageFail(step.Stage, duration, err)
		}
		return err
	}

	span.SetStatus(codes.Ok, "")
	p.config.Logger.Info("stage completed", "stage", step.Stage.String(), "duration", duration)
	if p.config.OnStageComplete != nil {
		p.config.OnStageComplete(step.Stage, duration)
	}
	return nil
}
