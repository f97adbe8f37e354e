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
	"github.com/spf13/cobra"

	"github.com/AleutianAI/flowswap/services/cutover"
)

// runCutover runs S0 through S5. The current group is left in place.
func runCutover(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ids := idsFromArgs(args)
	a.logger.Info("starting cutover", "parent", ids.ParentID, "current", ids.CurrentID, "target", ids.TargetID)

	result, err := a.sequencer().Run(cmd.Context(), ids, cutover.RunOptions{})
	return a.report(cmd, newResultView("cutover", result, err), len(result.Completed) > 0, err)
}

// report prints a run's outcome and passes err through. Without JSON, a
// failed run prints its partial result only if some stage completed.
func (a *app) report(cmd *cobra.Command, view resultView, anyCompleted bool, err error) error {
	if jsonOutput {
		if werr := writeJSON(cmd.OutOrStdout(), view); werr != nil && err == nil {
			return werr
		}
		return err
	}
	if err == nil || anyCompleted {
		renderResult(a.out, view)
	}
	if err != nil {
		a.logger.Error("run failed", "error", err)
	} else {
		a.logger.Info("run complete", "target", view.Plan.TargetID, "duration_ms", view.DurationMS)
	}
	return err
}
