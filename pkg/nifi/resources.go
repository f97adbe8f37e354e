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

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// -----------------------------------------------------------------------------
// Process Groups
// -----------------------------------------------------------------------------

// GetProcessGroupFlow returns the live flow view of a group: its processors,
// ports, child groups and the connections drawn inside it.
func (c *Client) GetProcessGroupFlow(ctx context.Context, id string) (*ProcessGroupFlowEntity, error) {
	var out ProcessGroupFlowEntity
	if err := c.getJSON(ctx, "/flow/process-groups/"+url.PathEscape(id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetProcessGroup returns the revisioned group entity.
func (c *Client) GetProcessGroup(ctx context.Context, id string) (*ProcessGroupEntity, error) {
	var out ProcessGroupEntity
	if err := c.getJSON(ctx, "/process-groups/"+url.PathEscape(id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProcessGroup writes pg back using the revision it carries.
func (c *Client) UpdateProcessGroup(ctx context.Context, pg *ProcessGroupEntity) (*ProcessGroupEntity, error) {
	var out ProcessGroupEntity
	path := "/process-groups/" + url.PathEscape(pg.ID)
	if _, err := c.sendJSON(ctx, http.MethodPut, path, pg, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ScheduleProcessGroup starts or stops every component in a group.
func (c *Client) ScheduleProcessGroup(ctx context.Context, id string, state RunState) error {
	body := ScheduleComponentsEntity{ID: id, State: state}
	_, err := c.sendJSON(ctx, http.MethodPut, "/flow/process-groups/"+url.PathEscape(id), body, http.StatusOK, nil)
	return err
}

// -----------------------------------------------------------------------------
// Processors
// -----------------------------------------------------------------------------

// GetProcessor returns a processor with its current revision.
func (c *Client) GetProcessor(ctx context.Context, id string) (*ProcessorEntity, error) {
	var out ProcessorEntity
	if err := c.getJSON(ctx, "/processors/"+url.PathEscape(id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProcessorState sets a processor's run state. rev must have been read
// immediately beforehand.
func (c *Client) UpdateProcessorState(ctx context.Context, id string, rev Revision, state RunState) error {
	body := ProcessorEntity{
		Revision:  rev,
		ID:        id,
		Component: ProcessorDTO{ID: id, State: state},
	}
	_, err := c.sendJSON(ctx, http.MethodPut, "/processors/"+url.PathEscape(id), body, http.StatusOK, nil)
	return err
}

// -----------------------------------------------------------------------------
// Connections
// -----------------------------------------------------------------------------

// GetConnection returns a connection with its current revision.
func (c *Client) GetConnection(ctx context.Context, id string) (*ConnectionEntity, error) {
	var out ConnectionEntity
	if err := c.getJSON(ctx, "/connections/"+url.PathEscape(id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateConnection writes conn back using the revision it carries.
func (c *Client) UpdateConnection(ctx context.Context, conn *ConnectionEntity) (*ConnectionEntity, error) {
	var out ConnectionEntity
	id := conn.Component.ID
	if id == "" {
		id = conn.ID
	}
	path := "/connections/" + url.PathEscape(id)
	if _, err := c.sendJSON(ctx, http.MethodPut, path, conn, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateConnection adds conn under parentID. NiFi answers 201 with the
// created entity.
func (c *Client) CreateConnection(ctx context.Context, parentID string, conn *ConnectionEntity) (*ConnectionEntity, error) {
	var out ConnectionEntity
	path := "/process-groups/" + url.PathEscape(parentID) + "/connections"
	if _, err := c.sendJSON(ctx, http.MethodPost, path, conn, http.StatusCreated, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteConnection removes a connection. rev must be the current revision.
func (c *Client) DeleteConnection(ctx context.Context, id string, rev Revision) error {
	clientID := rev.ClientID
	if clientID == "" {
		clientID = c.clientID
	}
	query := url.Values{}
	query.Set("version", strconv.FormatInt(rev.Version, 10))
	query.Set("clientId", clientID)

	_, err := c.do(ctx, request{
		method: http.MethodDelete,
		path:   "/connections/" + url.PathEscape(id) + "?" + query.Encode(),
		accept: http.StatusOK,
	})
	return err
}

// -----------------------------------------------------------------------------
// Search
// -----------------------------------------------------------------------------

// Search runs NiFi's full-text component search. Hits are partitioned by
// kind; the match is by substring, so callers filter for exact names.
func (c *Client) Search(ctx context.Context, q string) (*SearchResults, error) {
	var out SearchResultsEntity
	if err := c.getJSON(ctx, "/flow/search-results?q="+url.QueryEscape(q), &out); err != nil {
		return nil, err
	}
	return &out.Results, nil
}
