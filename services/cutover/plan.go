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

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/flowswap/pkg/nifi"
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

var planValidate *validator.Validate

func init() {
	planValidate = validator.New()
	planValidate.RegisterStructValidation(validatePlanPorts, Plan{})
}

// =============================================================================
// Migration Plan
// =============================================================================

// IDs names the three groups involved in a cutover.
type IDs struct {
	ParentID  string `validate:"required"`
	CurrentID string `validate:"required,nefield=ParentID"`
	TargetID  string `validate:"required,nefield=ParentID,nefield=CurrentID"`
}

// Validate checks that all three ids are present and distinct.
func (ids IDs) Validate() error {
	return wrapValidation(planValidate.Struct(ids))
}

// BoundaryConnection is a connection crossing the current group's boundary,
// together with the name of the current group's port at that crossing.
type BoundaryConnection struct {
	Connection nifi.ConnectionEntity `validate:"-"`
	PortName   string                `validate:"required"`
}

// ID returns the connection id.
func (b BoundaryConnection) ID() string {
	if b.Connection.ID != "" {
		return b.Connection.ID
	}
	return b.Connection.Component.ID
}

// Plan is the migration context built by discovery and resolution.
//
// # Description
//
// A Plan is built once by S0 and then passed by value to the later stages,
// none of which modify it. InputPorts maps each inbound boundary port name to
// the id of the input port with that name in the target group; OutputPorts
// does the same for outbound names and output ports.
//
// # Assumptions
//
//   - The maps are never written after S0 returns
type Plan struct {
	IDs
	Inbound     []BoundaryConnection `validate:"dive"`
	Outbound    []BoundaryConnection `validate:"dive"`
	InputPorts  map[string]string
	OutputPorts map[string]string
}

// Validate checks the plan is complete enough to start mutating: ids are
// set and distinct and every boundary name has a resolved port.
func (p Plan) Validate() error {
	return wrapValidation(planValidate.Struct(p))
}

func validatePlanPorts(sl validator.StructLevel) {
	plan := sl.Current().Interface().(Plan)
	for _, in := range plan.Inbound {
		if in.PortName != "" && plan.InputPorts[in.PortName] == "" {
			sl.ReportError(plan.InputPorts, "InputPorts", "InputPorts", "resolved", in.PortName)
		}
	}
	for _, out := range plan.Outbound {
		if out.PortName != "" && plan.OutputPorts[out.PortName] == "" {
			sl.ReportError(plan.OutputPorts, "OutputPorts", "OutputPorts", "resolved", out.PortName)
		}
	}
}

func wrapValidation(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msg := fe.Namespace() + " failed " + fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		msgs = append(msgs, msg)
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, "; "))
}

// SourceProcessors returns the distinct ids of processors feeding inbound
// connections, in discovery order. Sources of other kinds are returned
// separately; they are never stopped.
func (p Plan) SourceProcessors() (processors []string, others []nifi.ConnectableDTO) {
	seen := make(map[string]bool)
	for _, in := range p.Inbound {
		src := in.Connection.Source()
		if seen[src.ID] {
			continue
		}
		seen[src.ID] = true
		if src.Type == nifi.TypeProcessor {
			processors = append(processors, src.ID)
		} else {
			others = append(others, src)
		}
	}
	return processors, others
}
