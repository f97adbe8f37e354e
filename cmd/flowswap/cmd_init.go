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

	"github.com/spf13/cobra"

	"github.com/AleutianAI/flowswap/cmd/flowswap/config"
	"github.com/AleutianAI/flowswap/pkg/ux"
)

func runInit(cmd *cobra.Command, _ []string) error {
	if err := config.WriteDefault(configPath); err != nil {
		return usageError{err}
	}
	p := ux.NewPrinter(cmd.OutOrStdout(), machineOutput(cmd.OutOrStdout()))
	p.Success(fmt.Sprintf("wrote %s", configPath))
	p.Info("Set nifi.api.plain (or nifi.secure and nifi.api.secure) before running a cutover.")
	return nil
}
