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
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/flowswap/pkg/nifi"
)

// Resolver maps boundary port names to port ids in a target group.
type Resolver struct {
	search      Searcher
	concurrency int
}

// NewResolver creates a Resolver. concurrency bounds parallel searches in
// ResolveAll; values below one mean unbounded.
func NewResolver(search Searcher, concurrency int) *Resolver {
	return &Resolver{search: search, concurrency: concurrency}
}

// Resolve finds the single port of kind named name inside targetID.
//
// # Description
//
// Runs the platform search for name, then keeps only results that are of
// the requested kind, owned by targetID, and (when the result carries a
// name) named exactly name. Search is full-text, so "X" also returns
// "X-old"; those are dropped before counting. Exactly one survivor is
// returned. Ties are never broken by position or id.
//
// # Inputs
//
//   - kind: nifi.TypeInputPort or nifi.TypeOutputPort
//   - name: Port name on the current group's boundary
//   - targetID: Group the port must belong to
//
// # Outputs
//
//   - string: Port id
//   - error: *EndpointError (ErrAmbiguousOrMissingEndpoint) on zero or
//     several survivors, or the search failure
func (r *Resolver) Resolve(ctx context.Context, kind nifi.ComponentType, name, targetID string) (string, error) {
	results, err := r.search.Search(ctx, name)
	if err != nil {
		return "", fmt.Errorf("search %q: %w", name, err)
	}

	var hits []nifi.SearchResult
	switch kind {
	case nifi.TypeInputPort:
		hits = results.InputPortResults
	case nifi.TypeOutputPort:
		hits = results.OutputPortResults
	default:
		return "", fmt.Errorf("%w: cannot resolve endpoints of kind %s", ErrValidation, kind)
	}

	var candidates []string
	for _, hit := range hits {
		if hit.OwnerID() != targetID {
			continue
		}
		if hit.Name != "" && hit.Name != name {
			continue
		}
		candidates = append(candidates, hit.ID)
	}

	if len(candidates) != 1 {
		return "", &EndpointError{Kind: kind, Name: name, TargetID: targetID, Candidates: candidates}
	}
	return candidates[0], nil
}

// ResolveAll resolves every distinct boundary name concurrently.
//
// Inbound names resolve to input ports and outbound names to output ports.
// Empty names are skipped; Plan.Validate reports them. The first failure
// cancels the remaining searches.
func (r *Resolver) ResolveAll(ctx context.Context, b Boundary, targetID string) (inputs, outputs map[string]string, err error) {
	type job struct {
		kind nifi.ComponentType
		name string
	}
	var jobs []job
	seen := make(map[job]bool)
	add := func(kind nifi.ComponentType, set []BoundaryConnection) {
		for _, bc := range set {
			j := job{kind: kind, name: bc.PortName}
			if j.name == "" || seen[j] {
				continue
			}
			seen[j] = true
			jobs = append(jobs, j)
		}
	}
	add(nifi.TypeInputPort, b.Inbound)
	add(nifi.TypeOutputPort, b.Outbound)

	ids := make([]string, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	if r.concurrency > 0 {
		g.SetLimit(r.concurrency)
	}
	for i, j := range jobs {
		g.Go(func() error {
			id, err := r.Resolve(gctx, j.kind, j.name, targetID)
			if err != nil {
				return err
			}
			ids[i] = id
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	inputs = make(map[string]string)
	outputs = make(map[string]string)
	for i, j := range jobs {
		if j.kind == nifi.TypeInputPort {
			inputs[j.name] = ids[i]
		} else {
			outputs[j.name] = ids[i]
		}
	}
	return inputs, outputs, nil
}
