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
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultConcurrency = 8

// =============================================================================
// Sequencer Configuration
// =============================================================================

// Config configures a Sequencer.
type Config struct {
	// Concurrency bounds parallel member operations within a stage.
	// Default: 8
	Concurrency int

	// StageTimeout bounds each stage. Default: 5 minutes.
	StageTimeout time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Tracer defaults to the global otel tracer provider.
	Tracer trace.Tracer

	// Observer, if set, is told about every stage of every run.
	Observer StageObserver
}

// RunOptions selects the optional parts of a run.
type RunOptions struct {
	// Retire runs S6 after a successful S5.
	Retire bool

	// ConfirmRetire is asked before S6. Returning false skips S6. Nil
	// means retirement is confirmed.
	ConfirmRetire func(ctx context.Context, plan Plan) (bool, error)
}

// Result describes what a run did. On failure it holds whatever the
// completed and partially completed stages reported.
type Result struct {
	Plan      Plan
	Stopped   []string
	Rewired   []string
	Created   []string
	Retire    *RetireReport
	Completed []Stage
	Duration  time.Duration
}

// =============================================================================
// Sequencer
// =============================================================================

// Sequencer orders the cutover of one process group to another.
//
// # Description
//
// Each run builds a Plan in S0 and threads it by value through the later
// stages. Within a stage, member operations run concurrently up to
// Config.Concurrency; across stages everything is strictly sequential.
//
// # Thread Safety
//
// A Sequencer holds no per-run state and may run several cutovers at once,
// though cutovers touching the same groups will fight over revisions.
type Sequencer struct {
	api      FlowAPI
	resolver *Resolver
	config   Config
	logger   *slog.Logger
}

// NewSequencer creates a Sequencer over api.
func NewSequencer(api FlowAPI, config Config) *Sequencer {
	if config.Concurrency <= 0 {
		config.Concurrency = defaultConcurrency
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Tracer == nil {
		config.Tracer = otel.Tracer("flowswap/cutover")
	}
	return &Sequencer{
		api:      api,
		resolver: NewResolver(api, config.Concurrency),
		config:   config,
		logger:   config.Logger,
	}
}

func (s *Sequencer) newPipeline() *Pipeline {
	return observedPipeline(s.config.StageTimeout, s.logger, s.config.Tracer, s.config.Observer)
}

// Plan runs S0 only and returns the migration plan. Nothing is mutated.
func (s *Sequencer) Plan(ctx context.Context, ids IDs) (Plan, error) {
	var plan Plan
	p := s.newPipeline()
	p.Add(Step{Stage: StageDiscover, Run: func(ctx context.Context) (err error) {
		plan, err = s.discover(ctx, ids)
		return err
	}})
	err := p.Run(ctx)
	RecordRun("plan", err)
	return plan, err
}

// Run performs the cutover from ids.CurrentID to ids.TargetID.
//
// # Description
//
// Runs S0 through S5 and, when opts.Retire is set and confirmed, S6. The
// first failing stage ends the run; earlier stages are not undone.
//
// # Inputs
//
//   - ctx: Cancellation is honoured between stages
//   - ids: Parent, current and target group ids
//   - opts: Retirement options
//
// # Outputs
//
//   - *Result: Always non-nil
//   - error: *StageError naming the failed stage, or nil
//
// # Example
//
//	seq := cutover.NewSequencer(client, cutover.Config{Logger: logger})
//	result, err := seq.Run(ctx, cutover.IDs{
//	    ParentID:  "root",
//	    CurrentID: "pg-v1",
//	    TargetID:  "pg-v2",
//	}, cutover.RunOptions{})
func (s *Sequencer) Run(ctx context.Context, ids IDs, opts RunOptions) (*Result, error) {
	start := time.Now()
	result := &Result{}
	mode := "cutover"
	if opts.Retire {
		mode = "deploy"
	}

	ctx, span := s.config.Tracer.Start(ctx, "cutover."+mode, trace.WithAttributes(
		attribute.String("nifi.parent_group", ids.ParentID),
		attribute.String("nifi.current_group", ids.CurrentID),
		attribute.String("nifi.target_group", ids.TargetID),
	))
	defer span.End()

	err := s.run(ctx, ids, opts, result)
	result.Duration = time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	RecordRun(mode, err)
	return result, err
}

func (s *Sequencer) run(ctx context.Context, ids IDs, opts RunOptions, result *Result) error {
	p := s.newPipeline()
	p.Add(Step{Stage: StageDiscover, Run: func(ctx context.Context) (err error) {
		result.Plan, err = s.discover(ctx, ids)
		return err
	}})
	p.Add(Step{Stage: StageQuiesce, Run: func(ctx context.Context) (err error) {
		result.Stopped, err = s.quiesce(ctx, result.Plan)
		return err
	}})
	p.Add(Step{Stage: StageRewire, Run: func(ctx context.Context) (err error) {
		result.Rewired, err = s.rewire(ctx, result.Plan)
		return err
	}})
	p.Add(Step{Stage: StageCreateOutbound, Run: func(ctx context.Context) (err error) {
		result.Created, err = s.createOutbound(ctx, result.Plan)
		return err
	}})
	p.Add(Step{Stage: StageActivate, Run: func(ctx context.Context) error {
		return s.activate(ctx, result.Plan)
	}})
	p.Add(Step{Stage: StageResume, Run: func(ctx context.Context) error {
		return s.resume(ctx, result.Stopped)
	}})

	err := p.Run(ctx)
	result.Completed = p.Completed()
	if err != nil || !opts.Retire {
		return err
	}

	// Confirmation may wait on a person, so it stays outside the stage timeout.
	if opts.ConfirmRetire != nil {
		ok, err := opts.ConfirmRetire(ctx, result.Plan)
		if err != nil {
			return &StageError{Stage: StageRetire, Err: err}
		}
		if !ok {
			s.logger.Info("retirement declined", "current", ids.CurrentID)
			result.Retire = &RetireReport{Skipped: true}
			return nil
		}
	}

	retire := s.newPipeline()
	retire.Add(Step{Stage: StageRetire, Run: func(ctx context.Context) (err error) {
		result.Retire, err = s.retire(ctx, result.Plan)
		return err
	}})
	err = retire.Run(ctx)
	result.Completed = append(result.Completed, retire.Completed()...)
	return err
}
