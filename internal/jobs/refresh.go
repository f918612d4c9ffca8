// SPDX-License-Identifier: MIT

// Package jobs runs the guide refresh pipeline: bootstrap a session, load
// the channel catalog, aggregate the timeline windows, then build and write
// the XMLTV document.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"

	"github.com/ManuGH/plutoepg/internal/epg"
	xglog "github.com/ManuGH/plutoepg/internal/log"
	"github.com/ManuGH/plutoepg/internal/metrics"
	"github.com/ManuGH/plutoepg/internal/telemetry"
)

// ErrBootstrap marks failures before any guide data could be requested:
// app version discovery or token exchange. No file is written.
var ErrBootstrap = errors.New("bootstrap failed")

// GuideClient is the upstream API used by a refresh.
type GuideClient interface {
	TimelineFetcher
	AppVersion(ctx context.Context) (string, error)
	StartSession(ctx context.Context, appVersion, clientID string) (string, error)
	Channels(ctx context.Context, token string) (*epg.Catalog, error)
}

// Config holds configuration for refresh operations.
type Config struct {
	// OutputPath is the XMLTV file to replace.
	OutputPath string
	// ChannelListPath, when set, receives a plain-text dump of the catalog.
	ChannelListPath string
	Aggregate       AggregateOptions

	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
	// NewClientID overrides the session client id; nil means a random UUID.
	NewClientID func() string
}

// Status summarises a finished refresh.
type Status struct {
	StartedAt  time.Time
	Duration   time.Duration
	ClientID   string
	Channels   int
	Programmes int
	OutputPath string
	Stats      AggregateStats
}

// Partial reports whether some timeline batches were skipped.
func (s *Status) Partial() bool { return !s.Stats.Complete() }

// Refresh performs one complete run. Bootstrap failures are fatal and wrap
// ErrBootstrap. A failing catalog call yields a guide without channels. A
// cancelled context aborts the run before the output file is replaced.
func Refresh(ctx context.Context, cfg Config, client GuideClient) (*Status, error) {
	now := time.Now
	if cfg.Now != nil {
		now = cfg.Now
	}
	newClientID := uuid.NewString
	if cfg.NewClientID != nil {
		newClientID = cfg.NewClientID
	}

	ctx, span := telemetry.Tracer(tracerName).Start(ctx, "guide.refresh")
	defer span.End()

	status := &Status{StartedAt: now(), OutputPath: cfg.OutputPath}
	logger := xglog.WithComponentFromContext(ctx, "jobs")
	logger.Info().
		Str(xglog.FieldEvent, "refresh.start").
		Str(xglog.FieldPath, cfg.OutputPath).
		Msg("starting refresh")

	fail := func(stage string, err error) (*Status, error) {
		metrics.IncRefreshFailure(stage)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error().
			Err(err).
			Str(xglog.FieldEvent, "refresh.failed").
			Str("stage", stage).
			Msg("refresh failed")
		return status, err
	}

	appVersion, err := client.AppVersion(ctx)
	if err != nil {
		return fail("app_version", fmt.Errorf("%w: app version: %w", ErrBootstrap, err))
	}
	status.ClientID = newClientID()
	token, err := client.StartSession(ctx, appVersion, status.ClientID)
	if err != nil {
		return fail("session", fmt.Errorf("%w: session token: %w", ErrBootstrap, err))
	}
	logger.Info().
		Str(xglog.FieldEvent, "session.started").
		Str("app_version", appVersion).
		Str("client_id", status.ClientID).
		Msg("session established")

	catalog, err := client.Channels(ctx, token)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fail("channels", fmt.Errorf("channels: %w", ctxErr))
		}
		metrics.IncRefreshFailure("channels")
		logger.Warn().
			Err(err).
			Str(xglog.FieldEvent, "channels.failed").
			Msg("channel catalog unavailable, continuing with an empty guide")
		catalog = epg.NewCatalog()
	}
	status.Channels = catalog.Len()
	metrics.RecordChannels(status.Channels)

	if cfg.ChannelListPath != "" {
		if err := writeChannelList(ctx, cfg.ChannelListPath, catalog); err != nil {
			logger.Warn().
				Err(err).
				Str(xglog.FieldEvent, "channel_list.failed").
				Str(xglog.FieldPath, cfg.ChannelListPath).
				Msg("channel list not written")
		}
	}

	result, err := NewAggregator(client, cfg.Aggregate).Run(ctx, token, catalog.IDs(), status.StartedAt)
	status.Stats = result.Stats
	if err != nil {
		return fail("aggregate", err)
	}

	tv := epg.BuildGuide(catalog, result.Programmes)
	status.Programmes = len(tv.Programmes)

	writeErr := writeXMLTV(ctx, cfg.OutputPath, tv)
	metrics.RecordXMLTV(status.Programmes, writeErr)
	if writeErr != nil {
		return fail("write", fmt.Errorf("write guide: %w", writeErr))
	}
	logger.Info().
		Str(xglog.FieldEvent, "xmltv.written").
		Str(xglog.FieldPath, cfg.OutputPath).
		Int("channels", len(tv.Channels)).
		Int("programmes", status.Programmes).
		Msg("guide written")

	status.Duration = now().Sub(status.StartedAt)
	metrics.RecordSuccess(now())
	span.SetAttributes(telemetry.GuideAttributes(status.Channels, status.Programmes)...)

	logger.Info().
		Str(xglog.FieldEvent, "refresh.success").
		Int("channels", status.Channels).
		Int("programmes", status.Programmes).
		Bool("partial", status.Partial()).
		Dur("duration", status.Duration).
		Msgf("process terminated in %s", status.Duration)
	return status, nil
}
