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
	"errors"
	"fmt"
	"strings"

	"github.com/AleutianAI/flowswap/pkg/nifi"
)

// =============================================================================
// Sentinel Errors
// =============================================================================

var (
	// ErrAmbiguousOrMissingEndpoint means a boundary port name matched zero
	// or several ports of the required kind in the target group.
	ErrAmbiguousOrMissingEndpoint = errors.New("ambiguous or missing endpoint")

	// ErrValidation means the migration plan is incomplete or inconsistent.
	ErrValidation = errors.New("validation failed")
)

// =============================================================================
// Stages
// =============================================================================

// Stage identifies one step of the cutover pipeline.
type Stage int

const (
	StageDiscover Stage = iota
	StageQuiesce
	StageRewire
	StageCreateOutbound
	StageActivate
	StageResume
	StageRetire

	// StageDeploy covers template upload, instantiation and repositioning,
	// which precede S0 in the deploy entry point.
	StageDeploy
)

var stageNames = map[Stage]string{
	StageDiscover:       "discover",
	StageQuiesce:        "quiesce-sources",
	StageRewire:         "rewire-inbound",
	StageCreateOutbound: "create-outbound",
	StageActivate:       "activate-target",
	StageResume:         "resume-sources",
	StageRetire:         "retire-current",
	StageDeploy:         "deploy-template",
}

// Slug returns the short machine name used in metrics and span names.
func (s Stage) Slug() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "unknown"
}

// String renders the stage as "S2 rewire-inbound".
func (s Stage) String() string {
	if s == StageDeploy {
		return s.Slug()
	}
	return fmt.Sprintf("S%d %s", int(s), s.Slug())
}

// recoveryGap describes what a failure at each stage leaves behind.
var recoveryGap = map[Stage]string{
	StageDiscover:       "nothing was changed",
	StageQuiesce:        "some source processors may be stopped; start them again by hand",
	StageRewire:         "source processors are stopped and some inbound connections may already point at the target",
	StageCreateOutbound: "source processors are stopped; inbound connections point at the target and some outbound connections may exist",
	StageActivate:       "source processors are stopped; the target is wired but not running",
	StageResume:         "the target is running; some source processors may still be stopped",
	StageRetire:         "the cutover is complete; the current group may still be running",
	StageDeploy:         "nothing was rewired; an uploaded template or new group may need removal",
}

// =============================================================================
// Stage Error
// =============================================================================

// StageError reports the pipeline stage that failed and why.
//
// # Description
//
// The pipeline never compensates completed stages, so the error also
// carries a description of the intermediate state the flow was left in.
//
// # Example
//
//	var stageErr *cutover.StageError
//	if errors.As(err, &stageErr) {
//	    fmt.Println(stageErr.Stage, stageErr.Recovery())
//	}
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Recovery describes the state a failure at this stage leaves behind.
func (e *StageError) Recovery() string {
	return recoveryGap[e.Stage]
}

// =============================================================================
// Endpoint Error
// =============================================================================

// EndpointError is returned when a boundary port name does not resolve to
// exactly one port of the required kind in the target group.
type EndpointError struct {
	Kind       nifi.ComponentType
	Name       string
	TargetID   string
	Candidates []string
}

func (e *EndpointError) Error() string {
	if len(e.Candidates) == 0 {
		return fmt.Sprintf("no %s named %q in group %s", e.Kind, e.Name, e.TargetID)
	}
	return fmt.Sprintf("%d %s ports named %q in group %s: %s",
		len(e.Candidates), e.Kind, e.Name, e.TargetID, strings.Join(e.Candidates, ", "))
}

func (e *EndpointError) Unwrap() error {
	return ErrAmbiguousOrMissingEndpoint
}

// failureKind buckets an error for metrics labels.
func failureKind(err error) string {
	switch {
	case errors.Is(err, nifi.ErrNotFound):
		return "not_found"
	case errors.Is(err, nifi.ErrRevisionConflict):
		return "revision_conflict"
	case errors.Is(err, nifi.ErrTransport):
		return "transport"
	case errors.Is(err, ErrAmbiguousOrMissingEndpoint):
		return "ambiguous_endpoint"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, nifi.ErrUnexpectedStatus):
		return "unexpected_status"
	default:
		return "other"
	}
}
