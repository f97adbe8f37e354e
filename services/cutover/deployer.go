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
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/flowswap/pkg/nifi"
)

// Layout controls where the old and new groups end up on the canvas.
type Layout struct {
	// Offset is the total separation between the two groups. The old group
	// moves by -Offset/2 and the new one by +Offset/2.
	Offset nifi.Position
}

// Deployment is the outcome of Deploy.
type Deployment struct {
	TemplateID string
	TargetID   string
	Origin     nifi.Position
}

// Deployer uploads templates and instantiates them next to the current group.
type Deployer struct {
	api      TemplateAPI
	layout   Layout
	logger   *slog.Logger
	tracer   trace.Tracer
	observer StageObserver
}

// NewDeployer creates a Deployer. A nil logger uses slog.Default().
func NewDeployer(api TemplateAPI, layout Layout, logger *slog.Logger, tracer trace.Tracer) *Deployer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deployer{api: api, layout: layout, logger: logger, tracer: tracer}
}

// WithObserver sets the observer told about the StageDeploy stage.
func (d *Deployer) WithObserver(obs StageObserver) *Deployer {
	d.observer = obs
	return d
}

// Upload sends a template document to parentID and returns its id.
func (d *Deployer) Upload(ctx context.Context, parentID, name string, r io.Reader) (string, error) {
	id, err := d.api.UploadTemplate(ctx, parentID, name, r)
	if err != nil {
		return "", fmt.Errorf("upload template %s: %w", name, err)
	}
	d.logger.Info("template uploaded", "template", id, "name", name, "parent", parentID)
	return id, nil
}

// Instantiate places templateID in parentID at origin and returns the id of
// the process group it created. A template must produce exactly one
// top-level group.
func (d *Deployer) Instantiate(ctx context.Context, parentID, templateID string, origin nifi.Position) (string, error) {
	flow, err := d.api.InstantiateTemplate(ctx, parentID, templateID, origin)
	if err != nil {
		return "", fmt.Errorf("instantiate template %s: %w", templateID, err)
	}
	groups := flow.Flow.ProcessGroups
	if len(groups) != 1 {
		return "", fmt.Errorf("%w: template %s created %d process groups, want 1",
			ErrValidation, templateID, len(groups))
	}
	id := groups[0].ID
	if id == "" {
		id = groups[0].Component.ID
	}
	d.logger.Info("template instantiated", "template", templateID, "group", id, "x", origin.X, "y", origin.Y)
	return id, nil
}

// AdjustPosition reads groupID with a fresh revision, moves it to
// fn(position) and writes it back. It returns the new position.
func (d *Deployer) AdjustPosition(ctx context.Context, groupID string, fn func(nifi.Position) nifi.Position) (nifi.Position, error) {
	pg, err := d.api.GetProcessGroup(ctx, groupID)
	if err != nil {
		return nifi.Position{}, fmt.Errorf("read group %s: %w", groupID, err)
	}
	var current nifi.Position
	if pg.Component.Position != nil {
		current = *pg.Component.Position
	}
	next := fn(current)

	update := &nifi.ProcessGroupEntity{
		Revision:  pg.Revision,
		ID:        pg.ID,
		Component: nifi.ProcessGroupDTO{ID: pg.ID, Position: &next},
	}
	if _, err := d.api.UpdateProcessGroup(ctx, update); err != nil {
		return nifi.Position{}, fmt.Errorf("move group %s: %w", groupID, err)
	}
	return next, nil
}

// Deploy uploads a template, instantiates it where the current group sits,
// and moves the two groups apart.
//
// # Description
//
// The whole deployment runs as StageDeploy. Upload and instantiate
// failures are fatal. A repositioning failure is also returned, since the
// caller should not start a cutover on an overlapping canvas it did not
// expect; the Deployment is still returned so the new group can be found.
//
// # Outputs
//
//   - *Deployment: Template and target ids; nil if nothing was instantiated
//   - error: *StageError with Stage StageDeploy
func (d *Deployer) Deploy(ctx context.Context, parentID, currentID, name string, r io.Reader) (*Deployment, error) {
	var dep *Deployment
	p := observedPipeline(0, d.logger, d.tracer, d.observer)
	p.Add(Step{Stage: StageDeploy, Run: func(ctx context.Context) error {
		current, err := d.api.GetProcessGroup(ctx, currentID)
		if err != nil {
			return fmt.Errorf("read current group %s: %w", currentID, err)
		}
		var origin nifi.Position
		if current.Component.Position != nil {
			origin = *current.Component.Position
		}

		templateID, err := d.Upload(ctx, parentID, name, r)
		if err != nil {
			return err
		}
		targetID, err := d.Instantiate(ctx, parentID, templateID, origin)
		if err != nil {
			return err
		}
		dep = &Deployment{TemplateID: templateID, TargetID: targetID, Origin: origin}

		dx, dy := d.layout.Offset.X/2, d.layout.Offset.Y/2
		if dx == 0 && dy == 0 {
			return nil
		}
		if _, err := d.AdjustPosition(ctx, currentID, func(p nifi.Position) nifi.Position {
			return p.Offset(-dx, -dy)
		}); err != nil {
			return err
		}
		_, err = d.AdjustPosition(ctx, targetID, func(p nifi.Position) nifi.Position {
			return p.Offset(dx, dy)
		})
		return err
	}})
	err := p.Run(ctx)
	return dep, err
}
