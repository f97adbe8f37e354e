// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "conf.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_MinimalAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
nifi:
  api:
    plain: http://nifi:8080/nifi-api
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://nifi:8080/nifi-api", cfg.NiFi.BaseURL())
	assert.Equal(t, 30*time.Second, cfg.NiFi.RequestTimeout)
	assert.Equal(t, uint(3), cfg.NiFi.MaxRetries)
	assert.Equal(t, 8, cfg.Cutover.Concurrency)
	assert.Equal(t, 5*time.Minute, cfg.Cutover.StageTimeout)
	assert.Equal(t, 400.0, cfg.Layout.Offset.Y)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "none", cfg.Telemetry.TraceExporter)
}

func TestLoad_FullFile(t *testing.T) {
	path := writeConfig(t, `
nifi:
  secure: true
  api:
    plain: http://nifi:8080/nifi-api
    secure: https://nifi:8443/nifi-api
  cert_file: /etc/nifi/ca.pem
  client_cert: /etc/nifi/client.pem
  client_key: /etc/nifi/client.key
  request_timeout: 10s
  max_retries: 5
  requests_per_second: 20
cutover:
  concurrency: 4
  stage_timeout: 90s
layout:
  offset:
    x: 600
    y: 0
logging:
  level: debug
  dir: /var/log/flowswap
  json: true
telemetry:
  trace_exporter: otlp
  metric_exporter: prometheus
  otlp_endpoint: otel:4317
  otlp_insecure: true
  metrics_file: /var/lib/node_exporter/flowswap.prom
gcs:
  credentials_file: /etc/gcs/key.json
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://nifi:8443/nifi-api", cfg.NiFi.BaseURL())
	assert.Equal(t, 10*time.Second, cfg.NiFi.RequestTimeout)
	assert.Equal(t, uint(5), cfg.NiFi.MaxRetries)
	assert.Equal(t, 20.0, cfg.NiFi.RequestsPerSecond)
	assert.Equal(t, 90*time.Second, cfg.Cutover.StageTimeout)
	assert.Equal(t, OffsetConfig{X: 600, Y: 0}, cfg.Layout.Offset)
	assert.True(t, cfg.Logging.JSON)
	assert.Equal(t, "otel:4317", cfg.Telemetry.OTLPEndpoint)
	assert.Equal(t, "/etc/gcs/key.json", cfg.GCS.CredentialsFile)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "conf.yml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "no endpoint",
			body: "cutover:\n  concurrency: 2\n",
			want: "nifi.api.plain is required",
		},
		{
			name: "secure without secure endpoint",
			body: "nifi:\n  secure: true\n  cert_file: ca.pem\n  api:\n    plain: http://nifi:8080/nifi-api\n",
			want: "nifi.api.secure is required",
		},
		{
			name: "secure without CA bundle",
			body: "nifi:\n  secure: true\n  api:\n    secure: https://nifi:8443/nifi-api\n",
			want: "nifi.cert_file is required",
		},
		{
			name: "client cert without key",
			body: "nifi:\n  api:\n    plain: http://nifi/nifi-api\n  client_cert: c.pem\n",
			want: "nifi.client_key is required",
		},
		{
			name: "bad url",
			body: "nifi:\n  api:\n    plain: not a url\n",
			want: "nifi.api.plain must be a URL",
		},
		{
			name: "zero concurrency",
			body: "nifi:\n  api:\n    plain: http://nifi/nifi-api\ncutover:\n  concurrency: 0\n",
			want: "cutover.concurrency failed gte=1",
		},
		{
			name: "unknown exporter",
			body: "nifi:\n  api:\n    plain: http://nifi/nifi-api\ntelemetry:\n  trace_exporter: zipkin\n",
			want: "telemetry.trace_exporter must be one of",
		},
		{
			name: "otlp without endpoint",
			body: "nifi:\n  api:\n    plain: http://nifi/nifi-api\ntelemetry:\n  trace_exporter: otlp\n",
			want: "telemetry.otlp_endpoint is required",
		},
		{
			name: "bad log level",
			body: "nifi:\n  api:\n    plain: http://nifi/nifi-api\nlogging:\n  level: loud\n",
			want: "logging.level must be one of",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.body))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_RejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("nifi:\n  api:\n    plain: http://nifi/nifi-api\n  certFile: ca.pem\n"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "certFile")
}

func TestParse_BadDuration(t *testing.T) {
	_, err := Parse([]byte("nifi:\n  api:\n    plain: http://nifi/nifi-api\n  request_timeout: soon\n"))
	assert.Error(t, err)
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf.yml")
	require.NoError(t, WriteDefault(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/nifi-api", cfg.NiFi.BaseURL())
	assert.Equal(t, DefaultConfig().Cutover, cfg.Cutover)

	assert.Error(t, WriteDefault(path), "existing file must not be overwritten")
}
