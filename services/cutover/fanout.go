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
	"sync"

	"golang.org/x/sync/errgroup"
)

// fanOut runs fn for every item with at most limit calls in flight and
// returns the first error.
//
// Members already running when one fails are allowed to finish; members
// not yet started are skipped. The members share ctx unchanged: a failure
// does not cancel siblings that already issued their request. An empty
// items slice returns nil without calling fn.
func fanOut[T any](ctx context.Context, limit int, items []T, fn func(context.Context, T) error) error {
	var (
		g    errgroup.Group
		once sync.Once
		stop = make(chan struct{})
	)
	if limit > 0 {
		g.SetLimit(limit)
	}

launch:
	for _, item := range items {
		select {
		case <-stop:
			break launch
		default:
		}
		g.Go(func() error {
			// Go may have blocked on the limit while a sibling failed.
			select {
			case <-stop:
				return nil
			default:
			}
			if err := fn(ctx, item); err != nil {
				once.Do(func() { close(stop) })
				return err
			}
			return nil
		})
	}
	return g.Wait()
}
