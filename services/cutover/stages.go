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

	"github.com/AleutianAI/flowswap/pkg/nifi"
)

// Queue settings for connections created in S3.
const (
	outboundFlowFileExpiration = "0 sec"
	outboundBackPressureCount  = 10000
)

// DeleteFailure records an old outbound connection S6 could not remove.
type DeleteFailure struct {
	ConnectionID string
	Err          error
}

// RetireReport is the outcome of S6.
type RetireReport struct {
	// Skipped is true when retirement was declined.
	Skipped  bool
	Deleted  []string
	Failures []DeleteFailure
}

// -----------------------------------------------------------------------------
// S0 Discover
// -----------------------------------------------------------------------------

func (s *Sequencer) discover(ctx context.Context, ids IDs) (Plan, error) {
	if err := ids.Validate(); err != nil {
		return Plan{}, err
	}

	boundary, err := Discover(ctx, s.api, ids)
	if err != nil {
		return Plan{}, err
	}
	RecordBoundary(len(boundary.Inbound), len(boundary.Outbound))
	s.logger.Info("boundary discovered",
		"parent", ids.ParentID,
		"current", ids.CurrentID,
		"inbound", len(boundary.Inbound),
		"outbound", len(boundary.Outbound),
	)

	inputs, outputs, err := s.resolver.ResolveAll(ctx, boundary, ids.TargetID)
	if err != nil {
		return Plan{}, err
	}

	plan := Plan{
		IDs:         ids,
		Inbound:     boundary.Inbound,
		Outbound:    boundary.Outbound,
		InputPorts:  inputs,
		OutputPorts: outputs,
	}
	if err := plan.Validate(); err != nil {
		return Plan{}, err
	}
	return plan, nil
}

// -----------------------------------------------------------------------------
// S1 Quiesce / S5 Resume
// -----------------------------------------------------------------------------

// quiesce stops every running processor that feeds an inbound connection
// and returns the ids it stopped. On failure the ids stopped so far are
// still returned.
func (s *Sequencer) quiesce(ctx context.Context, plan Plan) ([]string, error) {
	processors, others := plan.SourceProcessors()
	for _, src := range others {
		s.logger.Warn("inbound source is not a processor, leaving it running",
			"source", src.ID, "type", src.Type)
	}

	changed := make([]bool, len(processors))
	err := fanOut(ctx, s.config.Concurrency, indices(len(processors)), func(ctx context.Context, i int) error {
		ok, err := s.transitionProcessor(ctx, processors[i], nifi.StateRunning, nifi.StateStopped)
		if err != nil {
			return err
		}
		changed[i] = ok
		return nil
	})

	var stopped []string
	for i, id := range processors {
		if changed[i] {
			stopped = append(stopped, id)
		}
	}
	return stopped, err
}

// resume starts the processors quiesce stopped.
func (s *Sequencer) resume(ctx context.Context, processors []string) error {
	return fanOut(ctx, s.config.Concurrency, processors, func(ctx context.Context, id string) error {
		_, err := s.transitionProcessor(ctx, id, nifi.StateStopped, nifi.StateRunning)
		return err
	})
}

// transitionProcessor moves a processor from one state to another using a
// freshly read revision. A processor not in from is left alone and reported
// as unchanged.
func (s *Sequencer) transitionProcessor(ctx context.Context, id string, from, to nifi.RunState) (bool, error) {
	proc, err := s.api.GetProcessor(ctx, id)
	if err != nil {
		return false, fmt.Errorf("read processor %s: %w", id, err)
	}
	if proc.Component.State != from {
		s.logger.Info("processor not in expected state, skipping",
			"processor", id, "state", proc.Component.State, "expected", from)
		return false, nil
	}
	if err := s.api.UpdateProcessorState(ctx, id, proc.Revision, to); err != nil {
		return false, fmt.Errorf("set processor %s %s: %w", id, to, err)
	}
	s.logger.Debug("processor state changed", "processor", id, "from", from, "to", to)
	return true, nil
}

// -----------------------------------------------------------------------------
// S2 Rewire Inbound
// -----------------------------------------------------------------------------

func (s *Sequencer) rewire(ctx context.Context, plan Plan) ([]string, error) {
	done := make([]bool, len(plan.Inbound))
	err := fanOut(ctx, s.config.Concurrency, indices(len(plan.Inbound)), func(ctx context.Context, i int) error {
		in := plan.Inbound[i]
		current, err := s.api.GetConnection(ctx, in.ID())
		if err != nil {
			return fmt.Errorf("read connection %s: %w", in.ID(), err)
		}

		update := &nifi.ConnectionEntity{
			Revision:  current.Revision,
			ID:        current.ID,
			Component: current.Component,
		}
		update.Component.Destination = nifi.ConnectableDTO{
			ID:      plan.InputPorts[in.PortName],
			GroupID: plan.TargetID,
			Type:    nifi.TypeInputPort,
		}
		if _, err := s.api.UpdateConnection(ctx, update); err != nil {
			return fmt.Errorf("rewire connection %s to port %q: %w", in.ID(), in.PortName, err)
		}
		done[i] = true
		return nil
	})
	return collect(plan.Inbound, done), err
}

// -----------------------------------------------------------------------------
// S3 Create Outbound
// -----------------------------------------------------------------------------

func (s *Sequencer) createOutbound(ctx context.Context, plan Plan) ([]string, error) {
	created := make([]string, len(plan.Outbound))
	err := fanOut(ctx, s.config.Concurrency, indices(len(plan.Outbound)), func(ctx context.Context, i int) error {
		out := plan.Outbound[i]
		dst := out.Connection.Destination()
		conn := &nifi.ConnectionEntity{
			Revision: nifi.Revision{ClientID: s.api.ClientID(), Version: 0},
			Component: nifi.ConnectionDTO{
				Name: out.Connection.Component.Name,
				Source: nifi.ConnectableDTO{
					ID:      plan.OutputPorts[out.PortName],
					GroupID: plan.TargetID,
					Type:    nifi.TypeOutputPort,
				},
				Destination:                 nifi.ConnectableDTO{ID: dst.ID, GroupID: dst.GroupID, Type: dst.Type},
				FlowFileExpiration:          outboundFlowFileExpiration,
				BackPressureObjectThreshold: outboundBackPressureCount,
				Prioritizers:                []string{},
				Bends:                       []nifi.Position{},
			},
		}
		id, err := s.createConnection(ctx, plan.ParentID, conn)
		if err != nil {
			return fmt.Errorf("connect port %q to %s: %w", out.PortName, dst.ID, err)
		}
		created[i] = id
		return nil
	})

	var ids []string
	for _, id := range created {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids, err
}

// createConnection posts conn and returns the new connection id.
//
// # Description
//
// A transient failure leaves the outcome unknown: NiFi may have created the
// connection and lost only the response. The parent flow is read again and
// a connection with the same source and destination is adopted. Only when
// none exists is the POST sent a second time.
func (s *Sequencer) createConnection(ctx context.Context, parentID string, conn *nifi.ConnectionEntity) (string, error) {
	resp, err := s.api.CreateConnection(ctx, parentID, conn)
	if err == nil {
		return resp.ID, nil
	}
	if !nifi.IsTransient(err) {
		return "", err
	}

	srcID, dstID := conn.Component.Source.ID, conn.Component.Destination.ID
	existing, lookupErr := s.findConnection(ctx, parentID, srcID, dstID)
	if lookupErr != nil {
		return "", fmt.Errorf("%w (re-reading parent flow: %v)", err, lookupErr)
	}
	if existing != "" {
		s.logger.Warn("create response lost, adopting existing connection",
			"connection", existing, "source", srcID, "destination", dstID, "error", err)
		return existing, nil
	}

	s.logger.Warn("connection was not created, posting again",
		"source", srcID, "destination", dstID, "error", err)
	resp, err = s.api.CreateConnection(ctx, parentID, conn)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

// findConnection returns the id of a connection in parentID from srcID to
// dstID, or "" when there is none.
func (s *Sequencer) findConnection(ctx context.Context, parentID, srcID, dstID string) (string, error) {
	flow, err := s.api.GetProcessGroupFlow(ctx, parentID)
	if err != nil {
		return "", err
	}
	for _, c := range flow.ProcessGroupFlow.Flow.Connections {
		if c.Source().ID == srcID && c.Destination().ID == dstID {
			return c.ID, nil
		}
	}
	return "", nil
}

// -----------------------------------------------------------------------------
// S4 Activate
// -----------------------------------------------------------------------------

func (s *Sequencer) activate(ctx context.Context, plan Plan) error {
	if err := s.api.ScheduleProcessGroup(ctx, plan.TargetID, nifi.StateRunning); err != nil {
		return fmt.Errorf("start target group %s: %w", plan.TargetID, err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// S6 Retire
// -----------------------------------------------------------------------------

// retire stops the current group and then deletes its old outbound
// connections. Delete failures are collected, not returned.
func (s *Sequencer) retire(ctx context.Context, plan Plan) (*RetireReport, error) {
	if err := s.api.ScheduleProcessGroup(ctx, plan.CurrentID, nifi.StateStopped); err != nil {
		return nil, fmt.Errorf("stop current group %s: %w", plan.CurrentID, err)
	}

	failures := make([]error, len(plan.Outbound))
	_ = fanOut(ctx, s.config.Concurrency, indices(len(plan.Outbound)), func(ctx context.Context, i int) error {
		id := plan.Outbound[i].ID()
		conn, err := s.api.GetConnection(ctx, id)
		if err == nil {
			err = s.api.DeleteConnection(ctx, id, conn.Revision)
		}
		if err != nil {
			s.logger.Warn("could not delete old outbound connection", "connection", id, "error", err)
			failures[i] = err
		}
		return nil
	})

	report := &RetireReport{}
	for i, out := range plan.Outbound {
		if failures[i] != nil {
			report.Failures = append(report.Failures, DeleteFailure{ConnectionID: out.ID(), Err: failures[i]})
		} else {
			report.Deleted = append(report.Deleted, out.ID())
		}
	}
	RecordRetireDeleteFailures(len(report.Failures))
	return report, nil
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func indices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func collect(set []BoundaryConnection, done []bool) []string {
	var ids []string
	for i, bc := range set {
		if done[i] {
			ids = append(ids, bc.ID())
		}
	}
	return ids
}
