// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/flowswap/cmd/flowswap/config"
	"github.com/AleutianAI/flowswap/pkg/logging"
	"github.com/AleutianAI/flowswap/pkg/nifi"
	"github.com/AleutianAI/flowswap/pkg/telemetry"
	"github.com/AleutianAI/flowswap/pkg/ux"
	"github.com/AleutianAI/flowswap/services/cutover"
)

const shutdownTimeout = 10 * time.Second

// confirmRetire asks before S6. Tests replace it.
var confirmRetire ux.ConfirmFunc = ux.Confirm

// app holds everything a command needs, built from conf.yml and the
// global flags.
type app struct {
	cfg      *config.FlowswapConfig
	logger   *logging.Logger
	client   *nifi.Client
	out      *ux.Printer
	progress cutover.StageObserver
	shutdown func(context.Context) error
}

// newApp loads the configuration and builds the logger, telemetry and
// NiFi client. Configuration problems are usage errors.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, usageError{err}
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, usageError{err}
	}

	logger := logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Logging.Dir,
		Service: "flowswap",
		JSON:    jsonOutput || cfg.Logging.JSON,
		Output:  cmd.ErrOrStderr(),
	})

	shutdown, err := telemetry.Init(cmd.Context(), telemetry.Config{
		ServiceName:    "flowswap",
		ServiceVersion: version,
		TraceExporter:  cfg.Telemetry.TraceExporter,
		MetricExporter: cfg.Telemetry.MetricExporter,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure:   cfg.Telemetry.OTLPInsecure,
		Writer:         cmd.ErrOrStderr(),
	})
	if err != nil {
		logger.Close()
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	client, err := nifi.NewClient(nifiConfig(cfg, logger))
	if err != nil {
		_ = shutdown(cmd.Context())
		logger.Close()
		return nil, usageError{err}
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		client:   client,
		out:      ux.NewPrinter(cmd.OutOrStdout(), machineOutput(cmd.OutOrStdout())),
		shutdown: shutdown,
	}
	if !jsonOutput {
		a.progress = newStageProgress(ux.NewPrinter(cmd.ErrOrStderr(), machineOutput(cmd.ErrOrStderr())))
	}
	logger.Debug("configuration loaded", "path", configPath, "nifi", client.BaseURL(), "client_id", client.ClientID())
	return a, nil
}

func nifiConfig(cfg *config.FlowswapConfig, logger *logging.Logger) nifi.Config {
	c := nifi.Config{
		BaseURL:           cfg.NiFi.BaseURL(),
		RequestTimeout:    cfg.NiFi.RequestTimeout,
		MaxRetries:        cfg.NiFi.MaxRetries,
		RequestsPerSecond: cfg.NiFi.RequestsPerSecond,
		Logger:            logger.Slog().With("component", "nifi"),
	}
	if cfg.NiFi.Secure {
		c.CACertFile = cfg.NiFi.CertFile
		c.ClientCertFile = cfg.NiFi.ClientCert
		c.ClientKeyFile = cfg.NiFi.ClientKey
	}
	return c
}

func (a *app) sequencer() *cutover.Sequencer {
	return cutover.NewSequencer(a.client, cutover.Config{
		Concurrency:  a.cfg.Cutover.Concurrency,
		StageTimeout: a.cfg.Cutover.StageTimeout,
		Logger:       a.logger.Slog(),
		Observer:     a.progress,
	})
}

// Close flushes telemetry, writes the metrics textfile and closes the log.
func (a *app) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown telemetry: %w", err))
	}
	if path := a.cfg.Telemetry.MetricsFile; path != "" {
		if err := telemetry.WriteMetrics(path, prometheus.DefaultGatherer); err != nil {
			errs = append(errs, err)
		}
	}
	err := errors.Join(errs...)
	if err != nil {
		a.logger.Warn("cleanup failed", "error", err)
	}
	return errors.Join(err, a.logger.Close())
}

// machineOutput reports whether w should get plain output.
func machineOutput(w io.Writer) bool {
	if jsonOutput {
		return true
	}
	f, ok := w.(*os.File)
	return !ok || !ux.IsTerminal(f)
}
