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
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFanOut_Empty(t *testing.T) {
	called := false
	err := fanOut(context.Background(), 4, []int(nil), func(context.Context, int) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called)
}

func TestFanOut_AllSucceed(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []int
	)
	err := fanOut(context.Background(), 2, []int{1, 2, 3, 4, 5}, func(_ context.Context, v int) error {
		mu.Lock()
		seen = append(seen, v)
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{1, 2, 3, 4, 5}, seen)
}

func TestFanOut_RespectsLimit(t *testing.T) {
	var inFlight, peak atomic.Int32
	err := fanOut(context.Background(), 2, indices(8), func(context.Context, int) error {
		n := inFlight.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestFanOut_FirstErrorStopsLaunches(t *testing.T) {
	boom := errors.New("boom")
	var calls atomic.Int32

	err := fanOut(context.Background(), 1, indices(5), func(_ context.Context, i int) error {
		calls.Add(1)
		if i == 1 {
			return boom
		}
		return nil
	})

	assert.ErrorIs(t, err, boom)
	// With a limit of one, members run one at a time: 0 succeeds, 1 fails,
	// nothing after it starts.
	assert.Equal(t, int32(2), calls.Load())
}

func TestFanOut_InFlightMembersFinish(t *testing.T) {
	boom := errors.New("boom")
	release := make(chan struct{})
	var finished atomic.Int32

	err := fanOut(context.Background(), 0, indices(3), func(_ context.Context, i int) error {
		if i == 0 {
			close(release)
			return boom
		}
		<-release
		finished.Add(1)
		return nil
	})

	assert.ErrorIs(t, err, boom)
	// Members 1 and 2 were already running when 0 failed, or were skipped
	// before starting; none is left blocked.
	assert.LessOrEqual(t, finished.Load(), int32(2))
}

func TestFanOut_ReportsOneError(t *testing.T) {
	err := fanOut(context.Background(), 0, indices(4), func(_ context.Context, i int) error {
		return errors.New("member failed")
	})
	require.Error(t, err)
	assert.Equal(t, "member failed", err.Error())
}
