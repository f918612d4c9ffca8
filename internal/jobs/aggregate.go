// SPDX-License-Identifier: MIT

package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/plutoepg/internal/epg"
	xglog "github.com/ManuGH/plutoepg/internal/log"
	"github.com/ManuGH/plutoepg/internal/metrics"
	"github.com/ManuGH/plutoepg/internal/pluto"
	"github.com/ManuGH/plutoepg/internal/telemetry"
)

const tracerName = "github.com/ManuGH/plutoepg/internal/jobs"

// Aggregation defaults.
const (
	DefaultBatchSize    = 30
	DefaultHorizonHours = 48
	DefaultWindowHours  = 4
	DefaultRetries      = 2
	DefaultRetryDelay   = time.Second
)

// Drop reasons reported in metrics and logs.
const (
	dropDuplicate = "duplicate"
	dropInvalid   = "invalid"
)

// TimelineFetcher retrieves the schedule of a set of channels for one window.
type TimelineFetcher interface {
	Timelines(ctx context.Context, token string, start time.Time, duration time.Duration, channelIDs []string) ([]pluto.ChannelTimeline, error)
}

// AggregateOptions shapes the windows and batches of one aggregation run.
type AggregateOptions struct {
	BatchSize    int
	HorizonHours int
	WindowHours  int
	Retries      int
	RetryDelay   time.Duration
}

func (o AggregateOptions) withDefaults() AggregateOptions {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.HorizonHours < 0 {
		o.HorizonHours = DefaultHorizonHours
	}
	if o.WindowHours <= 0 {
		o.WindowHours = DefaultWindowHours
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	if o.RetryDelay < 0 {
		o.RetryDelay = 0
	}
	return o
}

// AggregateStats counts what happened during one aggregation run.
type AggregateStats struct {
	Windows       int
	Batches       int
	FailedBatches int
	Entries       int
	Duplicates    int
	Invalid       int
	Duration      time.Duration
}

// Complete reports whether every (window, batch) fetch succeeded.
func (s AggregateStats) Complete() bool { return s.FailedBatches == 0 }

// AggregateResult holds the programmes collected by one run.
type AggregateResult struct {
	Programmes []epg.ProgrammeRecord
	Stats      AggregateStats
}

// Windows returns the start of every timeline window: the first at the top of
// the hour of start, each following one step later, up to and including
// start+horizon.
func Windows(start time.Time, horizon, step time.Duration) []time.Time {
	if step <= 0 || horizon < 0 {
		return nil
	}
	first := start.UTC().Truncate(time.Hour)
	out := make([]time.Time, 0, int(horizon/step)+1)
	for inc := time.Duration(0); inc <= horizon; inc += step {
		out = append(out, first.Add(inc))
	}
	return out
}

// Batches splits ids into consecutive slices of at most size elements,
// keeping their order.
func Batches(ids []string, size int) [][]string {
	if size <= 0 || len(ids) == 0 {
		return nil
	}
	out := make([][]string, 0, (len(ids)+size-1)/size)
	for i := 0; i < len(ids); i += size {
		end := min(i+size, len(ids))
		out = append(out, ids[i:end:end])
	}
	return out
}

// Aggregator walks the horizon window by window and batch by batch, merging
// the timelines into one deduplicated programme list.
type Aggregator struct {
	fetcher TimelineFetcher
	opts    AggregateOptions
}

// NewAggregator creates an aggregator over fetcher.
func NewAggregator(fetcher TimelineFetcher, opts AggregateOptions) *Aggregator {
	return &Aggregator{fetcher: fetcher, opts: opts.withDefaults()}
}

// Run fetches every (window, batch) pair sequentially. A batch that still
// fails after its retries is skipped and counted; the loop always advances.
// When ctx is cancelled Run stops before the next fetch and returns what was
// collected so far together with the context error.
func (a *Aggregator) Run(ctx context.Context, token string, channelIDs []string, now time.Time) (AggregateResult, error) {
	began := time.Now()
	ctx, span := telemetry.Tracer(tracerName).Start(ctx, "guide.aggregate")
	defer span.End()
	logger := xglog.WithComponentFromContext(ctx, "aggregator")

	window := time.Duration(a.opts.WindowHours) * time.Hour
	starts := Windows(now, time.Duration(a.opts.HorizonHours)*time.Hour, window)
	batches := Batches(channelIDs, a.opts.BatchSize)

	acc := newAccumulator(logger)
	res := AggregateResult{}
	res.Stats.Windows = len(starts)

	var runErr error
loop:
	for wi, start := range starts {
		for bi, batch := range batches {
			if err := ctx.Err(); err != nil {
				runErr = err
				break loop
			}
			res.Stats.Batches++

			timelines, err := a.fetchBatch(ctx, token, wi, start, window, bi, batch)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					res.Stats.Batches--
					runErr = ctxErr
					break loop
				}
				res.Stats.FailedBatches++
				metrics.IncTimelineBatch("failed")
				logger.Warn().
					Err(err).
					Str(xglog.FieldEvent, "window.fetch_failed").
					Int(xglog.FieldWindow, wi).
					Time("window_start", start).
					Int(xglog.FieldBatch, bi).
					Str(xglog.FieldChannelID, batch[0]).
					Int("channels", len(batch)).
					Msg("timeline batch skipped")
				continue
			}
			metrics.IncTimelineBatch("success")
			acc.add(timelines)
		}
	}

	res.Programmes = acc.records
	res.Stats.Entries = acc.entries
	res.Stats.Duplicates = acc.duplicates
	res.Stats.Invalid = acc.invalid
	res.Stats.Duration = time.Since(began)

	metrics.RecordAggregation(len(res.Programmes), acc.duplicates, acc.invalid, res.Stats.FailedBatches, res.Stats.Duration)
	span.SetAttributes(telemetry.GuideAttributes(len(channelIDs), len(res.Programmes))...)

	if !res.Stats.Complete() {
		logger.Warn().
			Str(xglog.FieldEvent, "aggregate.partial").
			Int("windows", res.Stats.Windows).
			Int("batches", res.Stats.Batches).
			Int("failed_batches", res.Stats.FailedBatches).
			Int("programmes", len(res.Programmes)).
			Msg("guide coverage is incomplete")
	}
	logger.Info().
		Str(xglog.FieldEvent, "aggregate.done").
		Int("windows", res.Stats.Windows).
		Int("batches", res.Stats.Batches).
		Int("entries", res.Stats.Entries).
		Int("programmes", len(res.Programmes)).
		Int(dropDuplicate, res.Stats.Duplicates).
		Int(dropInvalid, res.Stats.Invalid).
		Dur("duration", res.Stats.Duration).
		Msg("timelines aggregated")

	if runErr != nil {
		span.SetStatus(codes.Error, runErr.Error())
		return res, fmt.Errorf("aggregate timelines: %w", runErr)
	}
	return res, nil
}

func (a *Aggregator) fetchBatch(ctx context.Context, token string, wi int, start time.Time, window time.Duration, bi int, batch []string) ([]pluto.ChannelTimeline, error) {
	attrs := append(telemetry.WindowAttributes(wi, start), telemetry.BatchAttributes(bi, len(batch))...)
	ctx, span := telemetry.Tracer(tracerName).Start(ctx, "guide.timeline_batch", trace.WithAttributes(attrs...))
	defer span.End()

	logger := xglog.WithComponentFromContext(ctx, "aggregator")
	attempts := 0
	timelines, err := retry.DoWithData(
		func() ([]pluto.ChannelTimeline, error) {
			attempts++
			return a.fetcher.Timelines(ctx, token, start, window, batch)
		},
		retry.Context(ctx),
		retry.Attempts(uint(a.opts.Retries)+1),
		retry.Delay(a.opts.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return ctx.Err() == nil && retryable(err)
		}),
		retry.OnRetry(func(n uint, err error) {
			logger.Debug().
				Err(err).
				Str(xglog.FieldEvent, "window.retry").
				Int(xglog.FieldWindow, wi).
				Int(xglog.FieldBatch, bi).
				Uint(xglog.FieldAttempt, n+1).
				Msg("retrying timeline batch")
		}),
	)
	span.SetAttributes(attribute.Int(telemetry.AttemptsKey, attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return timelines, nil
}

// retryable reports whether a failed timeline call is worth repeating.
// Rejected credentials are final. Per-call timeouts are retried; the end of
// the run is decided by the run context, not by the error class.
func retryable(err error) bool {
	return !errors.Is(err, pluto.ErrUnauthorized)
}

// accumulator owns the dedup set and the record slice of one run.
type accumulator struct {
	logger     zerolog.Logger
	seen       map[string]struct{}
	records    []epg.ProgrammeRecord
	entries    int
	duplicates int
	invalid    int
}

func newAccumulator(logger zerolog.Logger) *accumulator {
	return &accumulator{logger: logger, seen: make(map[string]struct{})}
}

func (acc *accumulator) add(timelines []pluto.ChannelTimeline) {
	for _, ch := range timelines {
		for _, entry := range ch.Timelines {
			acc.entries++
			rec, ok := programmeRecord(ch.ChannelID, entry)
			if !ok {
				acc.invalid++
				acc.drop(dropInvalid, ch.ChannelID, entry.Episode.ID)
				continue
			}
			if _, dup := acc.seen[rec.ProgramID]; dup {
				acc.duplicates++
				acc.drop(dropDuplicate, rec.ChannelID, rec.ProgramID)
				continue
			}
			acc.seen[rec.ProgramID] = struct{}{}
			acc.records = append(acc.records, rec)
		}
	}
}

func (acc *accumulator) drop(reason, channelID, programID string) {
	acc.logger.Debug().
		Str(xglog.FieldEvent, "programme.dropped").
		Str("reason", reason).
		Str(xglog.FieldChannelID, channelID).
		Str(xglog.FieldProgramID, programID).
		Msg("timeline entry dropped")
}

// programmeRecord converts a raw entry. Ids and the icon path are trimmed.
// Entries without channel, programme id or parsable start and stop, or whose
// stop is not after start, are rejected.
func programmeRecord(channelID string, e pluto.TimelineEntry) (epg.ProgrammeRecord, bool) {
	channelID = strings.TrimSpace(channelID)
	programID := strings.TrimSpace(e.Episode.ID)
	if channelID == "" || programID == "" {
		return epg.ProgrammeRecord{}, false
	}
	start, ok := epg.ParseTime(e.Start)
	if !ok {
		return epg.ProgrammeRecord{}, false
	}
	stop, ok := epg.ParseTime(e.Stop)
	if !ok || !stop.After(start) {
		return epg.ProgrammeRecord{}, false
	}
	return epg.ProgrammeRecord{
		ChannelID:   channelID,
		ProgramID:   programID,
		Title:       epg.TextOr(e.Title, epg.DefaultTitle),
		Description: epg.TextOr(e.Episode.Description, epg.DefaultDescription),
		IconURL:     strings.TrimSpace(e.Episode.Series.Tile.Path),
		Start:       epg.FormatTime(start),
		Stop:        epg.FormatTime(stop),
	}, true
}
