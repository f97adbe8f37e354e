// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package nifi

// =============================================================================
// Run States and Component Types
// =============================================================================

// RunState is the scheduled state of a processor or process group.
type RunState string

const (
	StateRunning  RunState = "RUNNING"
	StateStopped  RunState = "STOPPED"
	StateDisabled RunState = "DISABLED"
)

// ComponentType is the connectable kind carried on connection endpoints.
type ComponentType string

const (
	TypeProcessor  ComponentType = "PROCESSOR"
	TypeInputPort  ComponentType = "INPUT_PORT"
	TypeOutputPort ComponentType = "OUTPUT_PORT"
	TypeFunnel     ComponentType = "FUNNEL"
)

// =============================================================================
// Revisions
// =============================================================================

// Revision is the optimistic-concurrency token NiFi requires on every
// mutation. A revision is single use: read it, mutate with it, discard it.
type Revision struct {
	ClientID string `json:"clientId,omitempty"`
	Version  int64  `json:"version"`
}

// Position is a canvas coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Offset returns p moved by (dx, dy).
func (p Position) Offset(dx, dy float64) Position {
	return Position{X: p.X + dx, Y: p.Y + dy}
}

// =============================================================================
// Process Groups
// =============================================================================

// ProcessGroupEntity is the revisioned process group object served by
// /process-groups/{id}.
type ProcessGroupEntity struct {
	Revision  Revision        `json:"revision"`
	ID        string          `json:"id"`
	Component ProcessGroupDTO `json:"component"`
}

// ProcessGroupDTO holds the mutable fields of a process group.
type ProcessGroupDTO struct {
	ID            string    `json:"id"`
	ParentGroupID string    `json:"parentGroupId,omitempty"`
	Name          string    `json:"name,omitempty"`
	Position      *Position `json:"position,omitempty"`
}

// ProcessGroupFlowEntity is the live flow view served by
// /flow/process-groups/{id}.
type ProcessGroupFlowEntity struct {
	ProcessGroupFlow ProcessGroupFlowDTO `json:"processGroupFlow"`
}

// ProcessGroupFlowDTO describes the contents of one process group.
type ProcessGroupFlowDTO struct {
	ID            string  `json:"id"`
	ParentGroupID string  `json:"parentGroupId,omitempty"`
	Flow          FlowDTO `json:"flow"`
}

// FlowDTO lists the components directly inside a group.
type FlowDTO struct {
	ProcessGroups []ProcessGroupEntity `json:"processGroups"`
	Processors    []ProcessorEntity    `json:"processors"`
	InputPorts    []PortEntity         `json:"inputPorts"`
	OutputPorts   []PortEntity         `json:"outputPorts"`
	Connections   []ConnectionEntity   `json:"connections"`
}

// FlowEntity wraps a FlowDTO, as returned by template instantiation.
type FlowEntity struct {
	Flow FlowDTO `json:"flow"`
}

// ScheduleComponentsEntity is the body of PUT /flow/process-groups/{id}.
type ScheduleComponentsEntity struct {
	ID    string   `json:"id"`
	State RunState `json:"state"`
}

// =============================================================================
// Processors and Ports
// =============================================================================

// ProcessorEntity is served by /processors/{id}.
type ProcessorEntity struct {
	Revision  Revision     `json:"revision"`
	ID        string       `json:"id"`
	Component ProcessorDTO `json:"component"`
}

// ProcessorDTO holds the processor fields this tool reads or writes.
type ProcessorDTO struct {
	ID            string   `json:"id"`
	ParentGroupID string   `json:"parentGroupId,omitempty"`
	Name          string   `json:"name,omitempty"`
	State         RunState `json:"state,omitempty"`
}

// PortEntity is an input or output port inside a flow view.
type PortEntity struct {
	Revision  Revision `json:"revision"`
	ID        string   `json:"id"`
	Component PortDTO  `json:"component"`
}

// PortDTO holds the port fields this tool reads.
type PortDTO struct {
	ID            string        `json:"id"`
	ParentGroupID string        `json:"parentGroupId,omitempty"`
	Name          string        `json:"name"`
	Type          ComponentType `json:"type,omitempty"`
	State         RunState      `json:"state,omitempty"`
}

// =============================================================================
// Connections
// =============================================================================

// ConnectableDTO is one end of a connection.
type ConnectableDTO struct {
	ID      string        `json:"id"`
	GroupID string        `json:"groupId"`
	Type    ComponentType `json:"type,omitempty"`
	Name    string        `json:"name,omitempty"`
}

// ConnectionDTO holds a connection's endpoints and queue settings.
type ConnectionDTO struct {
	ID                            string         `json:"id,omitempty"`
	ParentGroupID                 string         `json:"parentGroupId,omitempty"`
	Name                          string         `json:"name"`
	Source                        ConnectableDTO `json:"source"`
	Destination                   ConnectableDTO `json:"destination"`
	SelectedRelationships         []string       `json:"selectedRelationships,omitempty"`
	FlowFileExpiration            string         `json:"flowFileExpiration,omitempty"`
	BackPressureObjectThreshold   int64          `json:"backPressureObjectThreshold,omitempty"`
	BackPressureDataSizeThreshold string         `json:"backPressureDataSizeThreshold,omitempty"`
	Prioritizers                  []string       `json:"prioritizers"`
	Bends                         []Position     `json:"bends"`
}

// ConnectionEntity is served by /connections/{id} and appears in flow views.
// The flattened source/destination fields are populated by NiFi in flow
// views and ignored on writes.
type ConnectionEntity struct {
	Revision           Revision      `json:"revision"`
	ID                 string        `json:"id,omitempty"`
	Component          ConnectionDTO `json:"component"`
	SourceID           string        `json:"sourceId,omitempty"`
	SourceGroupID      string        `json:"sourceGroupId,omitempty"`
	SourceType         ComponentType `json:"sourceType,omitempty"`
	DestinationID      string        `json:"destinationId,omitempty"`
	DestinationGroupID string        `json:"destinationGroupId,omitempty"`
	DestinationType    ComponentType `json:"destinationType,omitempty"`
}

// SourceGroup returns the source group id, preferring the flattened field.
func (c ConnectionEntity) SourceGroup() string {
	if c.SourceGroupID != "" {
		return c.SourceGroupID
	}
	return c.Component.Source.GroupID
}

// DestinationGroup returns the destination group id, preferring the
// flattened field.
func (c ConnectionEntity) DestinationGroup() string {
	if c.DestinationGroupID != "" {
		return c.DestinationGroupID
	}
	return c.Component.Destination.GroupID
}

// Source returns the source endpoint with flattened fields folded in.
func (c ConnectionEntity) Source() ConnectableDTO {
	src := c.Component.Source
	if c.SourceID != "" {
		src.ID = c.SourceID
	}
	if c.SourceType != "" {
		src.Type = c.SourceType
	}
	src.GroupID = c.SourceGroup()
	return src
}

// Destination returns the destination endpoint with flattened fields folded in.
func (c ConnectionEntity) Destination() ConnectableDTO {
	dst := c.Component.Destination
	if c.DestinationID != "" {
		dst.ID = c.DestinationID
	}
	if c.DestinationType != "" {
		dst.Type = c.DestinationType
	}
	dst.GroupID = c.DestinationGroup()
	return dst
}

// =============================================================================
// Search
// =============================================================================

// SearchResultsEntity is served by /flow/search-results.
type SearchResultsEntity struct {
	Results SearchResults `json:"searchResultsDTO"`
}

// SearchResults partitions hits by component kind.
type SearchResults struct {
	ProcessorResults    []SearchResult `json:"processorResults"`
	ConnectionResults   []SearchResult `json:"connectionResults"`
	ProcessGroupResults []SearchResult `json:"processGroupResults"`
	InputPortResults    []SearchResult `json:"inputPortResults"`
	OutputPortResults   []SearchResult `json:"outputPortResults"`
}

// SearchResult is one hit. Older NiFi releases report the owning group as
// groupId, newer ones as parentGroup.
type SearchResult struct {
	ID          string             `json:"id"`
	GroupID     string             `json:"groupId,omitempty"`
	Name        string             `json:"name,omitempty"`
	Matches     []string           `json:"matches,omitempty"`
	ParentGroup *SearchResultGroup `json:"parentGroup,omitempty"`
}

// SearchResultGroup identifies the group owning a search hit.
type SearchResultGroup struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// OwnerID returns the id of the group owning the hit.
func (r SearchResult) OwnerID() string {
	if r.GroupID != "" {
		return r.GroupID
	}
	if r.ParentGroup != nil {
		return r.ParentGroup.ID
	}
	return ""
}

// =============================================================================
// Templates
// =============================================================================

// InstantiateTemplateRequest is the body of
// POST /process-groups/{id}/template-instance.
type InstantiateTemplateRequest struct {
	TemplateID string  `json:"templateId"`
	OriginX    float64 `json:"originX"`
	OriginY    float64 `json:"originY"`
}
