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
)

// --- Global Command Variables ---
var (
	configPath string
	logLevel   string
	jsonOutput bool
	assumeYes  bool

	rootCmd = &cobra.Command{
		Use:   "flowswap",
		Short: "Swap a running NiFi process group for a new version in place",
		Long: `flowswap moves the connections of a running NiFi process group onto a
replacement group, matching ports by name, then starts the replacement.

Stages run strictly in order and are never rolled back. A failure names the
stage that failed and what state the flow was left in.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	planCmd = &cobra.Command{
		Use:   "plan <parentId> <currentId> <targetId>",
		Short: "Show which connections a cutover would move, without changing anything",
		Args:  usageArgs(cobra.ExactArgs(3)),
		RunE:  runPlan, // Defined in cmd_plan.go
	}

	cutoverCmd = &cobra.Command{
		Use:   "cutover <parentId> <currentId> <targetId>",
		Short: "Rewire connections from the current group to the target group and start it",
		Args:  usageArgs(cobra.ExactArgs(3)),
		RunE:  runCutover, // Defined in cmd_cutover.go
	}

	deployCmd = &cobra.Command{
		Use:   "deploy <parentId> <currentId> <template>",
		Short: "Deploy a template next to the current group, cut over to it and retire the old group",
		Long: `deploy uploads a NiFi template (a local file or a gs://bucket/object URI),
instantiates it where the current group sits, moves the two groups apart, runs
the cutover and finally stops the old group and deletes its outbound
connections.

Retirement asks for confirmation on an interactive terminal unless --yes is
given.`,
		Args: usageArgs(cobra.ExactArgs(3)),
		RunE: runDeploy, // Defined in cmd_deploy.go
	}

	initCmd = &cobra.Command{
		Use:   "init",
		Short: "Write a starter configuration file to --config",
		Args:  usageArgs(cobra.NoArgs),
		RunE:  runInit, // Defined in cmd_init.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "conf.yml", "path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "write logs and results as JSON")
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	deployCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "retire the old group without asking")

	rootCmd.AddCommand(planCmd, cutoverCmd, deployCmd, initCmd)
}
