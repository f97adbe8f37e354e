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
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/flowswap/pkg/ux"
	"github.com/AleutianAI/flowswap/services/cutover"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// usageError marks mistakes in how flowswap was invoked or configured.
type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// usageArgs tags positional argument errors as usage errors.
func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

// exitCode maps a command error to the process exit status: 2 for usage
// and configuration errors, 1 for everything else.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var usage usageError
	if errors.As(err, &usage) {
		return exitUsage
	}
	return exitFailure
}

// reportError prints err. Stage failures get a box naming the stage and
// what the flow was left in.
func reportError(w io.Writer, err error) {
	p := ux.NewPrinter(w, machineOutput(w))

	var stageErr *cutover.StageError
	if errors.As(err, &stageErr) {
		p.ErrorBox(stageErr.Stage.String()+" failed",
			fmt.Sprintf("%v\n\nState: %s", stageErr.Err, stageErr.Recovery()))
		return
	}

	var usage usageError
	if errors.As(err, &usage) {
		p.Error(usage.Error())
		p.Info("Run 'flowswap --help' for usage.")
		return
	}
	p.Error(err.Error())
}
