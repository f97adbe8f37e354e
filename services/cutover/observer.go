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
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// StageObserver is told when each stage starts and finishes. The CLI uses
// it to drive progress output. Calls happen on the goroutine running the
// pipeline, one stage at a time.
type StageObserver interface {
	StageStarted(stage Stage)
	StageFinished(stage Stage, duration time.Duration, err error)
}

// observedPipeline builds a Pipeline that records stage metrics and
// forwards stage events to obs, which may be nil.
func observedPipeline(timeout time.Duration, logger *slog.Logger, tracer trace.Tracer, obs StageObserver) *Pipeline {
	cfg := PipelineConfig{
		StageTimeout:    timeout,
		Logger:          logger,
		Tracer:          tracer,
		OnStageComplete: RecordStageSuccess,
		OnStageFail:     RecordStageFailure,
	}
	if obs != nil {
		cfg.OnStageStart = obs.StageStarted
		cfg.OnStageComplete = func(stage Stage, d time.Duration) {
			RecordStageSuccess(stage, d)
			obs.StageFinished(stage, d, nil)
		}
		cfg.OnStageFail = func(stage Stage, d time.Duration, err error) {
			RecordStageFailure(stage, d, err)
			obs.StageFinished(stage, d, err)
		}
	}
	return NewPipeline(cfg)
}
