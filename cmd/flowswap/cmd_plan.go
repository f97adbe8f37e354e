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

func idsFromArgs(args []string) cutover.IDs {
	return cutover.IDs{ParentID: args[0], CurrentID: args[1], TargetID: args[2]}
}

// runPlan runs discovery only and prints the connections a cutover would
// move.
func runPlan(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	plan, err := a.sequencer().Plan(cmd.Context(), idsFromArgs(args))
	if err != nil {
		return err
	}

	view := newPlanView(plan)
	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), view)
	}
	renderPlan(a.out, view)
	return nil
}
