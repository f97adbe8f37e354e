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
	"bytes"
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Icon.Render Tests
// =============================================================================

func TestIcon_Render(t *testing.T) {
	for _, icon := range []Icon{IconSuccess, IconWarning, IconError, IconPending, IconArrow, IconBullet} {
		t.Run(string(icon), func(t *testing.T) {
			assert.Contains(t, icon.Render(), string(icon))
		})
	}
}

// =============================================================================
// Printer Tests
// =============================================================================

func TestPrinter_MachineMode(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, true)
	require.True(t, p.Machine())

	p.Title("Cutover plan")
	p.Success("cutover complete")
	p.Warning("1 connection could not be deleted")
	p.Error("S2 rewire-inbound failed")
	p.Info("target pg-new")

	assert.Equal(t, strings.Join([]string{
		"OK: cutover complete",
		"WARN: 1 connection could not be deleted",
		"ERROR: S2 rewire-inbound failed",
		"target pg-new",
		"",
	}, "\n"), buf.String())
}

func TestPrinter_RichMode(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false)

	p.Title("Cutover plan")
	p.Success("cutover complete")
	p.Error("boom")

	out := buf.String()
	assert.Contains(t, out, "Cutover plan")
	assert.Contains(t, out, "cutover complete")
	assert.Contains(t, out, string(IconSuccess))
	assert.Contains(t, out, string(IconError))
}

func TestPrinter_Section(t *testing.T) {
	fields := []Field{
		{Label: "Current group", Value: "pg-old"},
		{Label: "Target", Value: "pg-new"},
	}

	t.Run("machine", func(t *testing.T) {
		var buf bytes.Buffer
		NewPrinter(&buf, true).Section("Groups", fields)
		assert.Equal(t, "groups.current_group=pg-old\ngroups.target=pg-new\n", buf.String())
	})

	t.Run("rich", func(t *testing.T) {
		var buf bytes.Buffer
		NewPrinter(&buf, false).Section("Groups", fields)
		out := buf.String()
		assert.Contains(t, out, "Groups")
		assert.Contains(t, out, "Current group")
		assert.Contains(t, out, "pg-old")
		assert.Contains(t, out, "╭")
	})
}

func TestPrinter_List(t *testing.T) {
	t.Run("machine", func(t *testing.T) {
		var buf bytes.Buffer
		p := NewPrinter(&buf, true)
		p.List("inbound", []string{"c-1", "c-2"})
		p.List("outbound", nil)
		assert.Equal(t, "inbound: c-1\ninbound: c-2\noutbound: (none)\n", buf.String())
	})

	t.Run("rich", func(t *testing.T) {
		var buf bytes.Buffer
		p := NewPrinter(&buf, false)
		p.List("Inbound", []string{"c-1"})
		p.List("Outbound", nil)
		out := buf.String()
		assert.Contains(t, out, "c-1")
		assert.Contains(t, out, "(none)")
	})
}

func TestPrinter_ErrorBox(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, true).ErrorBox("S3 create-outbound failed", "recreate the connections by hand")
	assert.Equal(t, "ERROR S3 create-outbound failed: recreate the connections by hand\n", buf.String())

	buf.Reset()
	NewPrinter(&buf, false).ErrorBox("S3 create-outbound failed", "recreate")
	assert.Contains(t, buf.String(), "S3 create-outbound failed")
	assert.Contains(t, buf.String(), "recreate")
}

// =============================================================================
// Spinner Tests
// =============================================================================

func TestSpinner_MachineMode(t *testing.T) {
	var buf bytes.Buffer
	s := NewPrinter(&buf, true).NewSpinner("S1 quiesce-sources")
	s.Start()
	s.Start()
	s.StopWithSuccess("S1 quiesce-sources")

	assert.Equal(t, "PROGRESS: S1 quiesce-sources\nOK: S1 quiesce-sources\n", buf.String())
}

func TestSpinner_RichMode(t *testing.T) {
	var buf bytes.Buffer
	s := NewPrinter(&buf, false).NewSpinner("working")
	s.Start()
	s.UpdateMessage("S2 rewire-inbound")
	time.Sleep(3 * spinnerInterval)
	s.Stop()
	s.Stop()

	out := buf.String()
	assert.Contains(t, out, "S2 rewire-inbound")
	assert.True(t, strings.HasSuffix(out, "\r\033[K"), "stop should clear the line")
}

func TestSpinner_StopBeforeStart(t *testing.T) {
	var buf bytes.Buffer
	s := NewPrinter(&buf, false).NewSpinner("idle")
	assert.NotPanics(t, s.Stop)
	assert.Empty(t, buf.String())
}

// =============================================================================
// Prompt Tests
// =============================================================================

func TestAutoConfirm(t *testing.T) {
	ok, err := AutoConfirm(true)(context.Background(), "Retire?", "")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = AutoConfirm(false)(context.Background(), "Retire?", "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConfirm_NotInteractive(t *testing.T) {
	if IsInteractive() {
		t.Skip("running attached to a terminal")
	}
	ok, err := Confirm(context.Background(), "Retire?", "")
	assert.ErrorIs(t, err, ErrNotInteractive)
	assert.False(t, ok)
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, IsTerminal(nil))

	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer f.Close()
	assert.False(t, IsTerminal(f))
}
