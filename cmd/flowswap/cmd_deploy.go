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
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/flowswap/pkg/nifi"
	"github.com/AleutianAI/flowswap/pkg/templatesrc"
	"github.com/AleutianAI/flowswap/pkg/ux"
	"github.com/AleutianAI/flowswap/services/cutover"
)

// interactive reports whether a confirmation prompt can be shown. Tests
// replace it.
var interactive = ux.IsInteractive

// runDeploy deploys a template beside the current group, cuts over to it
// and retires the current group.
//
// # Description
//
// The template location is a filesystem path or a gs:// URI. The new group
// is instantiated at the current group's position and the two are moved
// apart by layout.offset. The cutover then runs S0 through S6.
//
// # Limitations
//
//   - Without a terminal (or with --json) retirement is not confirmed
//     interactively; it proceeds unless the run fails first.
func runDeploy(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	parentID, currentID, location := args[0], args[1], args[2]
	ctx := cmd.Context()

	tmpl, err := templatesrc.Open(ctx, location, templatesrc.Options{CredentialsFile: a.cfg.GCS.CredentialsFile})
	if err != nil {
		return usageError{err}
	}
	defer tmpl.Close()

	layout := cutover.Layout{Offset: nifi.Position{X: a.cfg.Layout.Offset.X, Y: a.cfg.Layout.Offset.Y}}
	deployer := cutover.NewDeployer(a.client, layout, a.logger.Slog(), nil).WithObserver(a.progress)

	a.logger.Info("deploying template", "template", location, "parent", parentID, "current", currentID)
	dep, err := deployer.Deploy(ctx, parentID, currentID, tmpl.Name, tmpl)
	if err != nil {
		if dep != nil {
			a.logger.Warn("template deployed but not positioned", "target", dep.TargetID)
		}
		return a.report(cmd, newResultView("deploy", &cutover.Result{}, err), false, err)
	}

	ids := cutover.IDs{ParentID: parentID, CurrentID: currentID, TargetID: dep.TargetID}
	result, err := a.sequencer().Run(ctx, ids, cutover.RunOptions{
		Retire:        true,
		ConfirmRetire: a.retireConfirmation(),
	})
	view := newResultView("deploy", result, err)
	view.TemplateID = dep.TemplateID
	return a.report(cmd, view, true, err)
}

// retireConfirmation returns the S6 confirmation hook, or nil when S6
// should proceed without asking.
func (a *app) retireConfirmation() func(context.Context, cutover.Plan) (bool, error) {
	if assumeYes {
		return nil
	}
	if jsonOutput || !interactive() {
		a.logger.Info("no interactive terminal; retirement will not be confirmed")
		return nil
	}
	return func(ctx context.Context, plan cutover.Plan) (bool, error) {
		return confirmRetire(ctx,
			fmt.Sprintf("Retire %s?", plan.CurrentID),
			fmt.Sprintf("Stops the group and deletes its %d outbound connection(s). %s is already live.",
				len(plan.Outbound), plan.TargetID))
	}
}
