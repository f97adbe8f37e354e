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
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Fixtures
// =============================================================================

func newTestClient(t *testing.T, handler http.HandlerFunc, retries uint) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{
		BaseURL:        server.URL + "/nifi-api",
		RequestTimeout: 2 * time.Second,
		MaxRetries:     retries,
		ClientID:       "test-client",
	})
	require.NoError(t, err)
	return client
}

// =============================================================================
// NewClient Tests
// =============================================================================

func TestNewClient_Validation(t *testing.T) {
	t.Run("requires base URL", func(t *testing.T) {
		_, err := NewClient(Config{})
		require.Error(t, err)
	})

	t.Run("generates client id", func(t *testing.T) {
		client, err := NewClient(Config{BaseURL: "http://localhost:8080/nifi-api/"})
		require.NoError(t, err)
		assert.NotEmpty(t, client.ClientID())
		assert.Equal(t, "http://localhost:8080/nifi-api", client.BaseURL())
	})

	t.Run("key pair must be complete", func(t *testing.T) {
		_, err := NewClient(Config{BaseURL: "https://nifi", ClientCertFile: "cert.pem"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "set together")
	})

	t.Run("missing CA bundle", func(t *testing.T) {
		_, err := NewClient(Config{BaseURL: "https://nifi", CACertFile: "/does/not/exist.pem"})
		require.Error(t, err)
	})
}

// =============================================================================
// Status Mapping Tests
// =============================================================================

func TestClient_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"not found", http.StatusNotFound, "Unable to find processor", ErrNotFound},
		{"conflict", http.StatusConflict, "locked", ErrRevisionConflict},
		{"stale revision", http.StatusBadRequest, "[3, null, p1] is not the most up-to-date revision.", ErrRevisionConflict},
		{"plain bad request", http.StatusBadRequest, "invalid state", ErrUnexpectedStatus},
		{"server error", http.StatusInternalServerError, "boom", ErrUnexpectedStatus},
		{"unavailable", http.StatusServiceUnavailable, "busy", ErrTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}, 0)

			_, err := client.GetProcessor(context.Background(), "p1")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, "/processors/p1", apiErr.Path)
		})
	}
}

func TestClient_RetriesTransientOnly(t *testing.T) {
	t.Run("503 then success", func(t *testing.T) {
		var calls atomic.Int32
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_ = json.NewEncoder(w).Encode(ProcessorEntity{
				Revision:  Revision{Version: 4},
				ID:        "p1",
				Component: ProcessorDTO{ID: "p1", State: StateRunning},
			})
		}, 3)

		proc, err := client.GetProcessor(context.Background(), "p1")
		require.NoError(t, err)
		assert.Equal(t, int64(4), proc.Revision.Version)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		var calls atomic.Int32
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		}, 1)

		_, err := client.GetProcessor(context.Background(), "p1")
		assert.ErrorIs(t, err, ErrTransport)
		assert.Equal(t, int32(2), calls.Load())
	})

	for _, status := range []int{http.StatusConflict, http.StatusNotFound} {
		t.Run(http.StatusText(status)+" is not retried", func(t *testing.T) {
			var calls atomic.Int32
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(status)
			}, 3)

			err := client.UpdateProcessorState(context.Background(), "p1", Revision{Version: 1}, StateStopped)
			require.Error(t, err)
			assert.Equal(t, int32(1), calls.Load())

			var apiErr *APIError
			assert.ErrorAs(t, err, &apiErr)
		})
	}
}

// refuseFirst fails the first round trip before anything is written and
// passes later ones to the default transport.
type refuseFirst struct {
	calls atomic.Int32
}

func (r *refuseFirst) RoundTrip(req *http.Request) (*http.Response, error) {
	if r.calls.Add(1) == 1 {
		return nil, errors.New("dial tcp: connection refused")
	}
	return http.DefaultTransport.RoundTrip(req)
}

func TestClient_MutationsRetryOnlyUnsent(t *testing.T) {
	t.Run("POST whose response is lost is not repeated", func(t *testing.T) {
		var posts atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			posts.Add(1)
			// The connection is committed; the reply arrives after the
			// client has given up on this attempt.
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
			w.WriteHeader(http.StatusCreated)
		}))
		t.Cleanup(server.Close)

		client, err := NewClient(Config{
			BaseURL:        server.URL + "/nifi-api",
			RequestTimeout: 50 * time.Millisecond,
			MaxRetries:     3,
			ClientID:       "test-client",
		})
		require.NoError(t, err)

		_, err = client.CreateConnection(context.Background(), "root", &ConnectionEntity{})
		assert.ErrorIs(t, err, ErrTransport)
		assert.Equal(t, int32(1), posts.Load())
	})

	for _, method := range []string{http.MethodPost, http.MethodPut} {
		t.Run(method+" 503 is not repeated", func(t *testing.T) {
			var calls atomic.Int32
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				assert.Equal(t, method, r.Method)
				w.WriteHeader(http.StatusServiceUnavailable)
			}, 3)

			var err error
			if method == http.MethodPost {
				_, err = client.CreateConnection(context.Background(), "root", &ConnectionEntity{})
			} else {
				err = client.UpdateProcessorState(context.Background(), "p1", Revision{Version: 1}, StateStopped)
			}
			assert.ErrorIs(t, err, ErrTransport)
			assert.Equal(t, int32(1), calls.Load())
		})
	}

	t.Run("POST that never left is retried", func(t *testing.T) {
		var posts atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			posts.Add(1)
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(ConnectionEntity{ID: "new", Revision: Revision{Version: 1}})
		}))
		t.Cleanup(server.Close)

		transport := &refuseFirst{}
		client, err := NewClient(Config{
			BaseURL:        server.URL + "/nifi-api",
			RequestTimeout: 2 * time.Second,
			MaxRetries:     2,
			ClientID:       "test-client",
			HTTPClient:     &http.Client{Transport: transport},
		})
		require.NoError(t, err)

		out, err := client.CreateConnection(context.Background(), "root", &ConnectionEntity{})
		require.NoError(t, err)
		assert.Equal(t, "new", out.ID)
		assert.Equal(t, int32(2), transport.calls.Load())
		assert.Equal(t, int32(1), posts.Load())
	})
}

func TestClient_UndecodableBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html>login</html>")
	}, 0)

	_, err := client.GetConnection(context.Background(), "c1")
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
}

// =============================================================================
// Resource Tests
// =============================================================================

func TestClient_UpdateProcessorState_Body(t *testing.T) {
	var got ProcessorEntity
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/nifi-api/processors/p1", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(got)
	}, 0)

	err := client.UpdateProcessorState(context.Background(), "p1", Revision{ClientID: "x", Version: 7}, StateStopped)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.Revision.Version)
	assert.Equal(t, "x", got.Revision.ClientID)
	assert.Equal(t, StateStopped, got.Component.State)
	assert.Equal(t, "p1", got.Component.ID)
}

func TestClient_DeleteConnection_Query(t *testing.T) {
	tests := []struct {
		name       string
		rev        Revision
		wantClient string
	}{
		{"revision client id", Revision{ClientID: "other", Version: 5}, "other"},
		{"falls back to own id", Revision{Version: 5}, "test-client"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodDelete, r.Method)
				assert.Equal(t, "/nifi-api/connections/c9", r.URL.Path)
				assert.Equal(t, "5", r.URL.Query().Get("version"))
				assert.Equal(t, tt.wantClient, r.URL.Query().Get("clientId"))
				_, _ = io.WriteString(w, "{}")
			}, 0)

			require.NoError(t, client.DeleteConnection(context.Background(), "c9", tt.rev))
		})
	}
}

func TestClient_CreateConnection_Expects201(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/nifi-api/process-groups/root/connections", r.URL.Path)
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(ConnectionEntity{ID: "new", Revision: Revision{Version: 1}})
		}, 0)

		out, err := client.CreateConnection(context.Background(), "root", &ConnectionEntity{})
		require.NoError(t, err)
		assert.Equal(t, "new", out.ID)
	})

	t.Run("200 is unexpected", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, "{}")
		}, 0)

		_, err := client.CreateConnection(context.Background(), "root", &ConnectionEntity{})
		assert.ErrorIs(t, err, ErrUnexpectedStatus)
	})
}

func TestClient_Search_Decode(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/nifi-api/flow/search-results", r.URL.Path)
		assert.Equal(t, "In Port", r.URL.Query().Get("q"))
		_, _ = io.WriteString(w, `{"searchResultsDTO":{
			"inputPortResults":[{"id":"ip1","groupId":"g1","name":"In Port"}],
			"outputPortResults":[{"id":"op1","name":"In Port Copy","parentGroup":{"id":"g2"}}]
		}}`)
	}, 0)

	results, err := client.Search(context.Background(), "In Port")
	require.NoError(t, err)
	require.Len(t, results.InputPortResults, 1)
	require.Len(t, results.OutputPortResults, 1)
	assert.Equal(t, "g1", results.InputPortResults[0].OwnerID())
	assert.Equal(t, "g2", results.OutputPortResults[0].OwnerID())
}

func TestClient_ScheduleProcessGroup(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/nifi-api/flow/process-groups/g1", r.URL.Path)
		var body ScheduleComponentsEntity
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, ScheduleComponentsEntity{ID: "g1", State: StateRunning}, body)
		_, _ = io.WriteString(w, `{"id":"g1","state":"RUNNING"}`)
	}, 0)

	require.NoError(t, client.ScheduleProcessGroup(context.Background(), "g1", StateRunning))
}

// =============================================================================
// Template Tests
// =============================================================================

func TestClient_UploadTemplate(t *testing.T) {
	t.Run("reads id from Location", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/nifi-api/process-groups/root/templates/upload", r.URL.Path)
			file, header, err := r.FormFile("template")
			require.NoError(t, err)
			defer file.Close()
			doc, _ := io.ReadAll(file)
			assert.Equal(t, "flow.xml", header.Filename)
			assert.Equal(t, "<template/>", string(doc))

			w.Header().Set("Location", "http://nifi:8080/nifi-api/templates/abc-123")
			w.WriteHeader(http.StatusCreated)
		}, 0)

		id, err := client.UploadTemplate(context.Background(), "root", "flow.xml", strings.NewReader("<template/>"))
		require.NoError(t, err)
		assert.Equal(t, "abc-123", id)
	})

	t.Run("missing Location", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
		}, 0)

		_, err := client.UploadTemplate(context.Background(), "root", "flow.xml", strings.NewReader("x"))
		assert.ErrorIs(t, err, ErrUnexpectedStatus)
	})
}

func TestTemplateIDFromLocation(t *testing.T) {
	tests := []struct {
		location string
		want     string
		wantErr  bool
	}{
		{"http://h/nifi-api/templates/t1", "t1", false},
		{"https://h:9443/nifi-api/templates/t2/", "t2", false},
		{"", "", true},
		{"http://h/nifi-api/processors/p1", "", true},
		{"http://h/nifi-api/templates/", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.location, func(t *testing.T) {
			got, err := templateIDFromLocation(tt.location)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClient_InstantiateTemplate(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body InstantiateTemplateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, InstantiateTemplateRequest{TemplateID: "t1", OriginX: 10, OriginY: 20}, body)
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"flow":{"processGroups":[{"id":"new-pg","component":{"id":"new-pg"}}]}}`)
	}, 0)

	flow, err := client.InstantiateTemplate(context.Background(), "root", "t1", Position{X: 10, Y: 20})
	require.NoError(t, err)
	require.Len(t, flow.Flow.ProcessGroups, 1)
	assert.Equal(t, "new-pg", flow.Flow.ProcessGroups[0].ID)
}
