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

// Direction is a connection's relation to the group being migrated.
type Direction int

const (
	Unrelated Direction = iota
	Inbound
	Outbound
)

func (d Direction) String() string {
	switch d {
	case Inbound:
		return "inbound"
	case Outbound:
		return "outbound"
	default:
		return "unrelated"
	}
}

// Classify places conn relative to group currentID. The result depends only
// on the connection's source and destination group ids: a connection whose
// ends are both inside (or both outside) the group is Unrelated.
func Classify(conn nifi.ConnectionEntity, currentID string) Direction {
	src, dst := conn.SourceGroup(), conn.DestinationGroup()
	switch {
	case dst == currentID && src != currentID:
		return Inbound
	case src == currentID && dst != currentID:
		return Outbound
	default:
		return Unrelated
	}
}

// Boundary is the set of connections crossing the current group's edge.
type Boundary struct {
	Inbound  []BoundaryConnection
	Outbound []BoundaryConnection
}

// Discover reads the three groups and partitions the parent's connections.
//
// # Description
//
// The parent flow view and the current and target group entities are read
// concurrently. Any of them missing fails the discovery with
// nifi.ErrNotFound. Each boundary connection is recorded with the name of
// the current group's port it attaches to: the destination name for inbound
// connections, the source name for outbound ones.
//
// # Outputs
//
//   - Boundary: Inbound and outbound sets, in the parent's connection order
//   - error: Read failure, or ErrValidation if current or target is not a
//     child of parent
func Discover(ctx context.Context, api FlowReader, ids IDs) (Boundary, error) {
	var (
		parentFlow *nifi.ProcessGroupFlowEntity
		current    *nifi.ProcessGroupEntity
		target     *nifi.ProcessGroupEntity
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		parentFlow, err = api.GetProcessGroupFlow(gctx, ids.ParentID)
		if err != nil {
			return fmt.Errorf("read parent group %s: %w", ids.ParentID, err)
		}
		return nil
	})
	g.Go(func() (err error) {
		current, err = api.GetProcessGroup(gctx, ids.CurrentID)
		if err != nil {
			return fmt.Errorf("read current group %s: %w", ids.CurrentID, err)
		}
		return nil
	})
	g.Go(func() (err error) {
		target, err = api.GetProcessGroup(gctx, ids.TargetID)
		if err != nil {
			return fmt.Errorf("read target group %s: %w", ids.TargetID, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Boundary{}, err
	}

	for _, child := range []*nifi.ProcessGroupEntity{current, target} {
		if parent := child.Component.ParentGroupID; parent != "" && parent != ids.ParentID {
			return Boundary{}, fmt.Errorf("%w: group %s is inside %s, not %s",
				ErrValidation, child.ID, parent, ids.ParentID)
		}
	}

	var boundary Boundary
	for _, conn := range parentFlow.ProcessGroupFlow.Flow.Connections {
		switch Classify(conn, ids.CurrentID) {
		case Inbound:
			boundary.Inbound = append(boundary.Inbound, BoundaryConnection{
				Connection: conn,
				PortName:   conn.Component.Destination.Name,
			})
		case Outbound:
			boundary.Outbound = append(boundary.Outbound, BoundaryConnection{
				Connection: conn,
				PortName:   conn.Component.Source.Name,
			})
		}
	}
	return boundary, nil
}
