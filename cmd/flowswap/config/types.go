// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config holds the flowswap configuration file format.
package config

import "time"

// FlowswapConfig is the root of conf.yml.
type FlowswapConfig struct {
	// NiFi: where the API lives and how to talk to it
	NiFi NiFiConfig `yaml:"nifi"`

	// Cutover: concurrency and time limits for the stage pipeline
	Cutover CutoverConfig `yaml:"cutover"`

	// Layout: canvas placement of freshly deployed groups
	Layout LayoutConfig `yaml:"layout"`

	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// GCS: credentials for gs:// template locations
	GCS GCSConfig `yaml:"gcs"`
}

type NiFiConfig struct {
	// Secure selects API.Secure over API.Plain and enables TLS material.
	Secure bool         `yaml:"secure"`
	API    APIEndpoints `yaml:"api"`

	// CertFile is the CA bundle used to verify NiFi when Secure is set.
	CertFile   string `yaml:"cert_file" validate:"required_if=Secure true"`
	ClientCert string `yaml:"client_cert" validate:"required_with=ClientKey"`
	ClientKey  string `yaml:"client_key" validate:"required_with=ClientCert"`

	RequestTimeout    time.Duration `yaml:"request_timeout" validate:"gt=0"`
	MaxRetries        uint          `yaml:"max_retries" validate:"lte=10"`
	RequestsPerSecond float64       `yaml:"requests_per_second" validate:"gte=0"`
}

// APIEndpoints are full API roots, e.g. "https://nifi:8443/nifi-api".
type APIEndpoints struct {
	Plain  string `yaml:"plain" validate:"omitempty,url"`
	Secure string `yaml:"secure" validate:"omitempty,url"`
}

// BaseURL returns the endpoint selected by Secure.
func (n NiFiConfig) BaseURL() string {
	if n.Secure {
		return n.API.Secure
	}
	return n.API.Plain
}

type CutoverConfig struct {
	Concurrency  int           `yaml:"concurrency" validate:"gte=1,lte=64"`
	StageTimeout time.Duration `yaml:"stage_timeout" validate:"gt=0"`
}

type LayoutConfig struct {
	Offset OffsetConfig `yaml:"offset"`
}

// OffsetConfig is the total separation between old and new groups.
type OffsetConfig struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn warning error"`
	Dir   string `yaml:"dir"`
	JSON  bool   `yaml:"json"`
}

type TelemetryConfig struct {
	TraceExporter  string `yaml:"trace_exporter" validate:"oneof=none stdout otlp"`
	MetricExporter string `yaml:"metric_exporter" validate:"oneof=none stdout prometheus"`
	OTLPEndpoint   string `yaml:"otlp_endpoint" validate:"required_if=TraceExporter otlp"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`

	// MetricsFile receives a Prometheus textfile after every command.
	MetricsFile string `yaml:"metrics_file"`
}

type GCSConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
}

// DefaultConfig returns the values applied to anything conf.yml leaves
// unset. The NiFi endpoints have no default.
func DefaultConfig() FlowswapConfig {
	return FlowswapConfig{
		NiFi: NiFiConfig{
			RequestTimeout: 30 * time.Second,
			MaxRetries:     3,
		},
		Cutover: CutoverConfig{
			Concurrency:  8,
			StageTimeout: 5 * time.Minute,
		},
		Layout: LayoutConfig{
			Offset: OffsetConfig{Y: 400},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Telemetry: TelemetryConfig{
			TraceExporter:  "none",
			MetricExporter: "none",
		},
	}
}
