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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/AleutianAI/flowswap/pkg/ux"
	"github.com/AleutianAI/flowswap/services/cutover"
)

// -----------------------------------------------------------------------------
// JSON Views
// -----------------------------------------------------------------------------

type connectionView struct {
	ID       string `json:"id"`
	Peer     string `json:"peer"`
	PeerName string `json:"peer_name,omitempty"`
	Port     string `json:"port"`
	TargetID string `json:"target_port_id,omitempty"`
}

type planView struct {
	ParentID  string           `json:"parent_id"`
	CurrentID string           `json:"current_id"`
	TargetID  string           `json:"target_id"`
	Inbound   []connectionView `json:"inbound"`
	Outbound  []connectionView `json:"outbound"`
}

type deleteFailureView struct {
	ConnectionID string `json:"connection_id"`
	Error        string `json:"error"`
}

type retireView struct {
	Skipped  bool                `json:"skipped"`
	Deleted  []string            `json:"deleted"`
	Failures []deleteFailureView `json:"failures,omitempty"`
}

type failureView struct {
	Stage    string `json:"stage"`
	Error    string `json:"error"`
	Recovery string `json:"recovery"`
}

type resultView struct {
	Mode       string       `json:"mode"`
	TemplateID string       `json:"template_id,omitempty"`
	Plan       planView     `json:"plan"`
	Stopped    []string     `json:"stopped"`
	Rewired    []string     `json:"rewired"`
	Created    []string     `json:"created"`
	Retire     *retireView  `json:"retire,omitempty"`
	Completed  []string     `json:"completed"`
	DurationMS int64        `json:"duration_ms"`
	Failure    *failureView `json:"failure,omitempty"`
}

func newPlanView(p cutover.Plan) planView {
	v := planView{
		ParentID:  p.ParentID,
		CurrentID: p.CurrentID,
		TargetID:  p.TargetID,
		Inbound:   make([]connectionView, 0, len(p.Inbound)),
		Outbound:  make([]connectionView, 0, len(p.Outbound)),
	}
	for _, in := range p.Inbound {
		src := in.Connection.Source()
		v.Inbound = append(v.Inbound, connectionView{
			ID: in.ID(), Peer: src.ID, PeerName: src.Name, Port: in.PortName, TargetID: p.InputPorts[in.PortName],
		})
	}
	for _, out := range p.Outbound {
		dst := out.Connection.Destination()
		v.Outbound = append(v.Outbound, connectionView{
			ID: out.ID(), Peer: dst.ID, PeerName: dst.Name, Port: out.PortName, TargetID: p.OutputPorts[out.PortName],
		})
	}
	return v
}

func newResultView(mode string, result *cutover.Result, err error) resultView {
	v := resultView{
		Mode:       mode,
		Plan:       newPlanView(result.Plan),
		Stopped:    nonNil(result.Stopped),
		Rewired:    nonNil(result.Rewired),
		Created:    nonNil(result.Created),
		Completed:  make([]string, 0, len(result.Completed)),
		DurationMS: result.Duration.Milliseconds(),
	}
	for _, s := range result.Completed {
		v.Completed = append(v.Completed, s.String())
	}
	if r := result.Retire; r != nil {
		v.Retire = &retireView{Skipped: r.Skipped, Deleted: nonNil(r.Deleted)}
		for _, f := range r.Failures {
			v.Retire.Failures = append(v.Retire.Failures, deleteFailureView{ConnectionID: f.ConnectionID, Error: f.Err.Error()})
		}
	}
	var stageErr *cutover.StageError
	if errors.As(err, &stageErr) {
		v.Failure = &failureView{Stage: stageErr.Stage.String(), Error: stageErr.Err.Error(), Recovery: stageErr.Recovery()}
	}
	return v
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// -----------------------------------------------------------------------------
// Terminal Rendering
// -----------------------------------------------------------------------------

func describeConnection(c connectionView, inbound bool) string {
	peer := c.Peer
	if c.PeerName != "" {
		peer = fmt.Sprintf("%s (%s)", c.PeerName, c.Peer)
	}
	if inbound {
		return fmt.Sprintf("%s: %s %s port %q", c.ID, peer, ux.IconArrow, c.Port)
	}
	return fmt.Sprintf("%s: port %q %s %s", c.ID, c.Port, ux.IconArrow, peer)
}

func renderPlan(p *ux.Printer, plan planView) {
	p.Title("Cutover plan")
	p.Section("Groups", []ux.Field{
		{Label: "Parent", Value: plan.ParentID},
		{Label: "Current", Value: plan.CurrentID},
		{Label: "Target", Value: plan.TargetID},
	})

	inbound := make([]string, 0, len(plan.Inbound))
	for _, c := range plan.Inbound {
		inbound = append(inbound, describeConnection(c, true))
	}
	outbound := make([]string, 0, len(plan.Outbound))
	for _, c := range plan.Outbound {
		outbound = append(outbound, describeConnection(c, false))
	}
	p.List("Inbound", inbound)
	p.List("Outbound", outbound)
}

func renderResult(p *ux.Printer, v resultView) {
	renderPlan(p, v.Plan)

	fields := []ux.Field{
		{Label: "Stopped sources", Value: joinOrNone(v.Stopped)},
		{Label: "Rewired", Value: joinOrNone(v.Rewired)},
		{Label: "Created", Value: joinOrNone(v.Created)},
		{Label: "Stages", Value: joinOrNone(v.Completed)},
		{Label: "Duration", Value: fmt.Sprintf("%dms", v.DurationMS)},
	}
	if v.TemplateID != "" {
		fields = append([]ux.Field{{Label: "Template", Value: v.TemplateID}}, fields...)
	}
	p.Section("Result", fields)

	if r := v.Retire; r != nil {
		switch {
		case r.Skipped:
			p.Warning(fmt.Sprintf("retirement skipped; %s is still in place", v.Plan.CurrentID))
		case len(r.Failures) > 0:
			sort.Slice(r.Failures, func(i, j int) bool { return r.Failures[i].ConnectionID < r.Failures[j].ConnectionID })
			for _, f := range r.Failures {
				p.Warning(fmt.Sprintf("could not delete %s: %s", f.ConnectionID, f.Error))
			}
			p.Success(fmt.Sprintf("retired %s; deleted %d of %d outbound connections",
				v.Plan.CurrentID, len(r.Deleted), len(r.Deleted)+len(r.Failures)))
		default:
			p.Success(fmt.Sprintf("retired %s; deleted %d outbound connections", v.Plan.CurrentID, len(r.Deleted)))
		}
	}

	if v.Failure == nil {
		p.Success(fmt.Sprintf("%s is live", v.Plan.TargetID))
	}
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
