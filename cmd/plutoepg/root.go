// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ManuGH/plutoepg/internal/config"
	"github.com/ManuGH/plutoepg/internal/jobs"
	xglog "github.com/ManuGH/plutoepg/internal/log"
	"github.com/ManuGH/plutoepg/internal/metrics"
	"github.com/ManuGH/plutoepg/internal/pluto"
	"github.com/ManuGH/plutoepg/internal/telemetry"
	"github.com/ManuGH/plutoepg/internal/version"
)

const serviceName = "plutoepg"

var errPartialCoverage = errors.New("guide coverage is incomplete")

type rootOptions struct {
	configPath string
	envFile    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           serviceName,
		Short:         "Build an XMLTV guide from Pluto TV",
		Long:          "plutoepg fetches the Pluto TV channel catalog and timelines for the next hours and writes them as one XMLTV document.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGuide(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.configPath, "config", "", "path to config file (YAML)")
	cmd.Flags().StringVar(&opts.envFile, "env-file", ".env", "optional dotenv file")

	cmd.AddCommand(newVersionCmd(), newVerifyCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", serviceName, version.String())
		},
	}
}

func runGuide(ctx context.Context, opts *rootOptions) error {
	cfg, err := config.NewLoader(opts.configPath, opts.envFile, version.Version).Load()
	if err != nil {
		return &exitError{code: exitFailure, err: err}
	}

	xglog.Configure(xglog.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: serviceName,
		Version: cfg.Version,
	})
	ctx = xglog.ContextWithRunID(ctx, uuid.NewString())
	logger := xglog.WithComponentFromContext(ctx, "cli")

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    serviceName,
		ServiceVersion: cfg.Version,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		if err := tp.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Warn().Err(err).Str(xglog.FieldEvent, "telemetry.shutdown_failed").Msg("telemetry shutdown failed")
		}
	}()

	client, err := pluto.New(cfg.PlutoConfig())
	if err != nil {
		return fmt.Errorf("pluto client: %w", err)
	}

	status, err := jobs.Refresh(ctx, jobs.Config{
		OutputPath:      cfg.Output.Path,
		ChannelListPath: cfg.Output.ChannelList,
		Aggregate: jobs.AggregateOptions{
			BatchSize:    cfg.Fetch.BatchSize,
			HorizonHours: cfg.Fetch.HorizonHours,
			WindowHours:  cfg.Fetch.WindowHours,
			Retries:      cfg.Fetch.Retries,
			RetryDelay:   cfg.Fetch.RetryDelay,
		},
	}, client)

	if cfg.Output.MetricsFile != "" {
		if mErr := metrics.WriteTextfile(cfg.Output.MetricsFile); mErr != nil {
			logger.Warn().
				Err(mErr).
				Str(xglog.FieldEvent, "metrics.write_failed").
				Str(xglog.FieldPath, cfg.Output.MetricsFile).
				Msg("metrics textfile not written")
		}
	}

	if err != nil {
		return err
	}
	if cfg.Fetch.StrictCoverage && status.Partial() {
		return &exitError{
			code: exitPartial,
			err:  fmt.Errorf("%w: %d of %d timeline batches failed", errPartialCoverage, status.Stats.FailedBatches, status.Stats.Batches),
		}
	}
	return nil
}
