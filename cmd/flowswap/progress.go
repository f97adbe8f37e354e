// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"time"

	"github.com/AleutianAI/flowswap/pkg/ux"
	"github.com/AleutianAI/flowswap/services/cutover"
)

// stageProgress shows a spinner per stage and a result line when it ends.
type stageProgress struct {
	printer *ux.Printer
	spinner *ux.Spinner
}

func newStageProgress(p *ux.Printer) *stageProgress {
	return &stageProgress{printer: p}
}

func (s *stageProgress) StageStarted(stage cutover.Stage) {
	s.spinner = s.printer.NewSpinner(stage.String())
	s.spinner.Start()
}

func (s *stageProgress) StageFinished(stage cutover.Stage, d time.Duration, err error) {
	if s.spinner == nil {
		s.spinner = s.printer.NewSpinner(stage.String())
	}
	elapsed := d.Round(time.Millisecond)
	if err != nil {
		s.spinner.StopWithError(fmt.Sprintf("%s failed after %s", stage, elapsed))
	} else {
		s.spinner.StopWithSuccess(fmt.Sprintf("%s (%s)", stage, elapsed))
	}
	s.spinner = nil
}
