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
Package nifi is a typed client for the subset of the Apache NiFi REST API
that a live process-group cutover needs.

# Revisions

Every mutable NiFi object carries a Revision. NiFi rejects a mutation whose
revision is not the current one, so callers must read the object, mutate it
with the revision they just read, and never reuse that revision afterwards.
The client never invents or caches revisions.

# Failure Policy

Each HTTP attempt runs under its own timeout. Transport failures and gateway
errors (502/503/504) are retried with exponential backoff up to MaxRetries
times. Everything else, notably ErrNotFound and ErrRevisionConflict, is
returned on the first attempt.

Mutations (POST, PUT, DELETE) are retried only when the failed attempt never
wrote the request. Once NiFi may have applied a mutation, repeating it would
either duplicate the object or replay a consumed revision, so the transient
error is returned and the caller decides.

# Usage

	client, err := nifi.NewClient(nifi.Config{
	    BaseURL:        "https://nifi.internal:9443/nifi-api",
	    CACertFile:     "/etc/flowswap/ca.pem",
	    RequestTimeout: 30 * time.Second,
	    MaxRetries:     3,
	})
	if err != nil {
	    return err
	}
	flow, err := client.GetProcessGroupFlow(ctx, parentID)
*/
package nifi

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptrace"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// Config configures a Client. Zero values get defaults in NewClient.
type Config struct {
	// BaseURL is the API root, e.g. "http://localhost:8080/nifi-api".
	BaseURL string

	// CACertFile is a PEM bundle used to verify the server. Empty uses the
	// system pool.
	CACertFile string

	// ClientCertFile and ClientKeyFile enable mutual TLS when both are set.
	ClientCertFile string
	ClientKeyFile  string

	// RequestTimeout bounds a single HTTP attempt. Default: 30s.
	RequestTimeout time.Duration

	// MaxRetries is the number of extra attempts for transient failures.
	MaxRetries uint

	// RequestsPerSecond paces calls to the platform. Zero disables pacing.
	RequestsPerSecond float64

	// ClientID seeds the revision of objects this client creates. Default:
	// a fresh UUID.
	ClientID string

	// HTTPClient overrides the transport (tests).
	HTTPClient *http.Client

	// Logger receives retry notices. Default: slog.Default().
	Logger *slog.Logger
}

const (
	defaultRequestTimeout = 30 * time.Second
	retryInitialInterval  = 250 * time.Millisecond
	retryMaxInterval      = 5 * time.Second
)

// -----------------------------------------------------------------------------
// Client
// -----------------------------------------------------------------------------

// Client talks to one NiFi instance. It is safe for concurrent use.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	requestTimeout time.Duration
	maxRetries     uint
	limiter        *rate.Limiter
	clientID       string
	logger         *slog.Logger
	metrics        *requestMetrics
}

// NewClient builds a Client, loading TLS material when configured.
//
// # Description
//
// The CA bundle and client key pair are read once here; a missing or
// unparsable file is reported immediately rather than on the first request.
//
// # Outputs
//
//   - *Client: Ready-to-use client
//   - error: Non-nil if BaseURL is empty or TLS material cannot be loaded
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("nifi: base URL is required")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.ClientID == "" {
		cfg.ClientID = uuid.New().String()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		tlsConfig, err := loadTLSConfig(cfg)
		if err != nil {
			return nil, err
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = tlsConfig
		httpClient = &http.Client{Transport: transport}
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Client{
		baseURL:        strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient:     httpClient,
		requestTimeout: cfg.RequestTimeout,
		maxRetries:     cfg.MaxRetries,
		limiter:        rate.NewLimiter(limit, 1),
		clientID:       cfg.ClientID,
		logger:         cfg.Logger,
		metrics:        defaultRequestMetrics(),
	}, nil
}

func loadTLSConfig(cfg Config) (*tls.Config, error) {
	if cfg.CACertFile == "" && cfg.ClientCertFile == "" {
		return nil, nil
	}
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}

	if cfg.CACertFile != "" {
		pem, err := os.ReadFile(cfg.CACertFile)
		if err != nil {
			return nil, fmt.Errorf("nifi: read CA bundle: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("nifi: no certificates found in %s", cfg.CACertFile)
		}
		tlsConfig.RootCAs = pool
	}

	if cfg.ClientCertFile != "" || cfg.ClientKeyFile != "" {
		if cfg.ClientCertFile == "" || cfg.ClientKeyFile == "" {
			return nil, errors.New("nifi: client certificate and key must be set together")
		}
		pair, err := tls.LoadX509KeyPair(cfg.ClientCertFile, cfg.ClientKeyFile)
		if err != nil {
			return nil, fmt.Errorf("nifi: load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{pair}
	}
	return tlsConfig, nil
}

// ClientID returns the id this client stamps on revisions it seeds.
func (c *Client) ClientID() string {
	return c.clientID
}

// BaseURL returns the API root the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// -----------------------------------------------------------------------------
// Request Plumbing
// -----------------------------------------------------------------------------

// request is one logical API call. The body is held as bytes so that every
// retry attempt sends an identical payload.
type request struct {
	method      string
	path        string
	body        []byte
	contentType string
	accept      int
}

// response is the part of an http.Response the callers need after the
// body has been drained.
type response struct {
	status int
	header http.Header
	body   []byte
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, request{method: http.MethodGet, path: path, accept: http.StatusOK})
	if err != nil {
		return err
	}
	return decode(http.MethodGet, path, resp, out)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, in any, accept int, out any) (*response, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("nifi: encode %s %s: %w", method, path, err)
	}
	resp, err := c.do(ctx, request{
		method:      method,
		path:        path,
		body:        payload,
		contentType: "application/json",
		accept:      accept,
	})
	if err != nil {
		return nil, err
	}
	if out != nil {
		if err := decode(method, path, resp, out); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

func decode(method, path string, resp *response, out any) error {
	if err := json.Unmarshal(resp.body, out); err != nil {
		return &APIError{
			Method: method,
			Path:   path,
			Status: resp.status,
			Kind:   ErrUnexpectedStatus,
			Cause:  fmt.Errorf("decode response: %w", err),
		}
	}
	return nil
}

// do executes req with pacing, a per-attempt timeout and bounded retries of
// transient failures.
func (c *Client) do(ctx context.Context, req request) (*response, error) {
	operation := func() (*response, error) {
		resp, sent, err := c.attempt(ctx, req)
		if err != nil {
			if IsTransient(err) && ctx.Err() == nil && req.retryable(sent) {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		return resp, nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = retryInitialInterval
	policy.MaxInterval = retryMaxInterval

	resp, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(c.maxRetries+1),
		backoff.WithNotify(func(err error, wait time.Duration) {
			c.logger.Warn("retrying NiFi request",
				"method", req.method,
				"path", req.path,
				"wait", wait,
				"error", err,
			)
		}),
	)
	// Retry hands back the wrapper when the final attempt was permanent.
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Unwrap()
	}
	return resp, err
}

// retryable reports whether a failed attempt may be repeated. sent is true
// once any part of the request was written to the connection.
func (req request) retryable(sent bool) bool {
	return req.method == http.MethodGet || !sent
}

func (c *Client) attempt(ctx context.Context, req request) (resp *response, sent bool, err error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, false, newTransportError(req.method, req.path, err)
	}
	started := time.Now()
	defer func() { c.metrics.record(ctx, req.method, started, err) }()

	attemptCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	var wrote atomic.Bool
	attemptCtx = httptrace.WithClientTrace(attemptCtx, &httptrace.ClientTrace{
		WroteRequest: func(httptrace.WroteRequestInfo) { wrote.Store(true) },
	})

	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}
	httpReq, err := http.NewRequestWithContext(attemptCtx, req.method, c.baseURL+req.path, body)
	if err != nil {
		return nil, false, fmt.Errorf("nifi: build %s %s: %w", req.method, req.path, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, wrote.Load(), newTransportError(req.method, req.path, err)
	}
	defer httpResp.Body.Close()

	payload, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, true, newTransportError(req.method, req.path, fmt.Errorf("read body: %w", err))
	}

	if httpResp.StatusCode != req.accept {
		return nil, true, newStatusError(req.method, req.path, httpResp.StatusCode, payload)
	}
	return &response{status: httpResp.StatusCode, header: httpResp.Header, body: payload}, true, nil
}
