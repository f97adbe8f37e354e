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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strings"
)

// UploadTemplate uploads a template document into parentID and returns the
// new template's id, taken from the Location header of the 201 response.
func (c *Client) UploadTemplate(ctx context.Context, parentID, filename string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("template", filename)
	if err != nil {
		return "", fmt.Errorf("nifi: build template form: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("nifi: read template %s: %w", filename, err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("nifi: build template form: %w", err)
	}

	reqPath := "/process-groups/" + url.PathEscape(parentID) + "/templates/upload"
	resp, err := c.do(ctx, request{
		method:      http.MethodPost,
		path:        reqPath,
		body:        buf.Bytes(),
		contentType: form.FormDataContentType(),
		accept:      http.StatusCreated,
	})
	if err != nil {
		return "", err
	}

	id, err := templateIDFromLocation(resp.header.Get("Location"))
	if err != nil {
		return "", &APIError{
			Method: http.MethodPost,
			Path:   reqPath,
			Status: resp.status,
			Kind:   ErrUnexpectedStatus,
			Cause:  err,
		}
	}
	return id, nil
}

// templateIDFromLocation extracts the id from ".../templates/{id}".
func templateIDFromLocation(location string) (string, error) {
	if location == "" {
		return "", errors.New("response has no Location header")
	}
	u, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("parse Location %q: %w", location, err)
	}
	dir, id := path.Split(strings.TrimSuffix(u.Path, "/"))
	if id == "" || path.Base(strings.TrimSuffix(dir, "/")) != "templates" {
		return "", fmt.Errorf("location %q does not name a template", location)
	}
	return id, nil
}

// InstantiateTemplate places templateID into parentID with its top-left at
// origin and returns the flow that was created.
func (c *Client) InstantiateTemplate(ctx context.Context, parentID, templateID string, origin Position) (*FlowEntity, error) {
	body := InstantiateTemplateRequest{
		TemplateID: templateID,
		OriginX:    origin.X,
		OriginY:    origin.Y,
	}
	var out FlowEntity
	reqPath := "/process-groups/" + url.PathEscape(parentID) + "/template-instance"
	if _, err := c.sendJSON(ctx, http.MethodPost, reqPath, body, http.StatusCreated, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
