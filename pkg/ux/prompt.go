// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"context"
	"errors"

	"github.com/charmbracelet/huh"
)

// ErrNotInteractive is returned by Confirm when no terminal is available to
// ask on.
var ErrNotInteractive = errors.New("confirmation requires an interactive terminal")

// ConfirmFunc asks a yes/no question.
type ConfirmFunc func(ctx context.Context, title, description string) (bool, error)

// Confirm asks a yes/no question with a huh form. Aborting the form
// (ctrl+c or esc) counts as "no".
//
// # Outputs
//
//   - bool: True only if the user chose the affirmative answer
//   - error: ErrNotInteractive without a terminal, or a form failure
func Confirm(ctx context.Context, title, description string) (bool, error) {
	if !IsInteractive() {
		return false, ErrNotInteractive
	}

	var confirmed bool
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(title).
			Description(description).
			Affirmative("Yes").
			Negative("No").
			Value(&confirmed),
	))
	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, err
	}
	return confirmed, nil
}

// AutoConfirm returns a ConfirmFunc that answers without asking.
func AutoConfirm(answer bool) ConfirmFunc {
	return func(context.Context, string, string) (bool, error) {
		return answer, nil
	}
}
