// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

/*
Package cutover swaps live traffic from one NiFi process group to another.

Given a parent group, the group currently in service and a target group
holding the new version, the Sequencer runs a strict pipeline:

	S0 discover         read the groups, classify boundary connections,
	                    resolve port names in the target
	S1 quiesce-sources  stop the processors feeding inbound connections
	S2 rewire-inbound   point inbound connections at the target's input ports
	S3 create-outbound  connect the target's output ports to the old destinations
	S4 activate-target  start the target group
	S5 resume-sources   restart the processors stopped in S1
	S6 retire-current   stop the old group and delete its outbound connections

A failing stage halts the pipeline. Nothing is rolled back; the returned
*StageError says which stage failed and what state the flow was left in.

The Deployer uploads and instantiates a template to produce the target group
for the deploy entry point.
*/
package cutover

import (
	"context"
	"io"

	"github.com/AleutianAI/flowswap/pkg/nifi"
)

// FlowReader is the read side of the platform used by discovery.
type FlowReader interface {
	GetProcessGroupFlow(ctx context.Context, id string) (*nifi.ProcessGroupFlowEntity, error)
	GetProcessGroup(ctx context.Context, id string) (*nifi.ProcessGroupEntity, error)
}

// Searcher runs the platform's name search.
type Searcher interface {
	Search(ctx context.Context, q string) (*nifi.SearchResults, error)
}

// FlowAPI is everything the Sequencer needs from the platform.
// *nifi.Client satisfies it.
type FlowAPI interface {
	FlowReader
	Searcher

	ScheduleProcessGroup(ctx context.Context, id string, state nifi.RunState) error
	GetProcessor(ctx context.Context, id string) (*nifi.ProcessorEntity, error)
	UpdateProcessorState(ctx context.Context, id string, rev nifi.Revision, state nifi.RunState) error
	GetConnection(ctx context.Context, id string) (*nifi.ConnectionEntity, error)
	UpdateConnection(ctx context.Context, conn *nifi.ConnectionEntity) (*nifi.ConnectionEntity, error)
	CreateConnection(ctx context.Context, parentID string, conn *nifi.ConnectionEntity) (*nifi.ConnectionEntity, error)
	DeleteConnection(ctx context.Context, id string, rev nifi.Revision) error
	ClientID() string
}

// TemplateAPI is what the Deployer needs from the platform.
type TemplateAPI interface {
	GetProcessGroup(ctx context.Context, id string) (*nifi.ProcessGroupEntity, error)
	UpdateProcessGroup(ctx context.Context, pg *nifi.ProcessGroupEntity) (*nifi.ProcessGroupEntity, error)
	UploadTemplate(ctx context.Context, parentID, filename string, r io.Reader) (string, error)
	InstantiateTemplate(ctx context.Context, parentID, templateID string, origin nifi.Position) (*nifi.FlowEntity, error)
}

var (
	_ FlowAPI     = (*nifi.Client)(nil)
	_ TemplateAPI = (*nifi.Client)(nil)
)
