// SPDX-License-Identifier: MIT

package jobs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/plutoepg/internal/epg"
	xglog "github.com/ManuGH/plutoepg/internal/log"
	"github.com/ManuGH/plutoepg/internal/pluto"
)

var testNow = time.Date(2024, 1, 15, 20, 42, 17, 0, time.UTC)

func testOptions() AggregateOptions {
	return AggregateOptions{
		BatchSize:    30,
		HorizonHours: 48,
		WindowHours:  4,
		Retries:      0,
		RetryDelay:   time.Millisecond,
	}
}

func TestWindows(t *testing.T) {
	starts := Windows(testNow, 48*time.Hour, 4*time.Hour)
	require.Len(t, starts, 13)
	assert.Equal(t, time.Date(2024, 1, 15, 20, 0, 0, 0, time.UTC), starts[0])
	for i := 1; i < len(starts); i++ {
		assert.Equal(t, 4*time.Hour, starts[i].Sub(starts[i-1]), "window %d", i)
	}
	assert.Equal(t, starts[0].Add(48*time.Hour), starts[12])

	assert.Len(t, Windows(testNow, 0, 4*time.Hour), 1)
	assert.Nil(t, Windows(testNow, 48*time.Hour, 0))
	assert.Nil(t, Windows(testNow, -time.Hour, time.Hour))
}

func TestBatches(t *testing.T) {
	ids := make([]string, 65)
	for i := range ids {
		ids[i] = fmt.Sprintf("ch%02d", i)
	}
	batches := Batches(ids, 30)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 30)
	assert.Len(t, batches[1], 30)
	assert.Len(t, batches[2], 5)
	assert.Equal(t, "ch00", batches[0][0])
	assert.Equal(t, "ch30", batches[1][0])
	assert.Equal(t, "ch64", batches[2][4])

	assert.Nil(t, Batches(nil, 30))
	assert.Nil(t, Batches(ids, 0))
	assert.Len(t, Batches(ids[:30], 30), 1)
}

func TestAggregatorCallsEveryWindowAndBatch(t *testing.T) {
	ids := make([]string, 65)
	for i := range ids {
		ids[i] = fmt.Sprintf("ch%02d", i)
	}
	fake := newFakeGuide()

	res, err := NewAggregator(fake, testOptions()).Run(context.Background(), "tok", ids, testNow)
	require.NoError(t, err)

	assert.Equal(t, 13*3, fake.callCount())
	assert.Equal(t, 13, res.Stats.Windows)
	assert.Equal(t, 39, res.Stats.Batches)
	assert.True(t, res.Stats.Complete())

	first := fake.calls[0]
	assert.Equal(t, time.Date(2024, 1, 15, 20, 0, 0, 0, time.UTC), first.Start)
	assert.Equal(t, 4*time.Hour, first.Duration)
	assert.Equal(t, ids[:30], first.IDs)
	assert.Equal(t, ids[60:], fake.calls[2].IDs)
	assert.Equal(t, first.Start.Add(4*time.Hour), fake.calls[3].Start)
}

func TestAggregatorDeduplicatesAcrossWindows(t *testing.T) {
	fake := newFakeGuide()
	w0 := time.Date(2024, 1, 15, 20, 0, 0, 0, time.UTC)
	w1 := w0.Add(4 * time.Hour)
	p1 := entry("p1", "Film", "2024-01-15T22:00:00.000Z", "2024-01-16T00:00:00.000Z")
	p2 := entry("p2", "News", "2024-01-16T01:00:00Z", "2024-01-16T01:30:00Z")
	fake.windows[w0] = []pluto.ChannelTimeline{{ChannelID: "2", Timelines: []pluto.TimelineEntry{p1}}}
	fake.windows[w1] = []pluto.ChannelTimeline{
		{ChannelID: "2", Timelines: []pluto.TimelineEntry{p1}},
		{ChannelID: "1", Timelines: []pluto.TimelineEntry{p2}},
	}

	res, err := NewAggregator(fake, testOptions()).Run(context.Background(), "tok", []string{"1", "2"}, testNow)
	require.NoError(t, err)

	require.Len(t, res.Programmes, 2)
	assert.Equal(t, 1, res.Stats.Duplicates)
	assert.Equal(t, 3, res.Stats.Entries)
	assert.Equal(t, "p1", res.Programmes[0].ProgramID)
	assert.Equal(t, "20240115220000 +0000", res.Programmes[0].Start)
	assert.Equal(t, "20240116000000 +0000", res.Programmes[0].Stop)

	tv := epg.BuildGuide(catalogOf("1", "2"), res.Programmes)
	require.Len(t, tv.Programmes, 2)
	assert.Equal(t, "1", tv.Programmes[0].Channel)
	assert.Equal(t, "News", tv.Programmes[0].Title)
	assert.Equal(t, "2", tv.Programmes[1].Channel)
	assert.Equal(t, "Film", tv.Programmes[1].Title)
}

func TestAggregatorSkipsFailingBatch(t *testing.T) {
	ids := make([]string, 65)
	for i := range ids {
		ids[i] = fmt.Sprintf("ch%02d", i)
	}
	fake := newFakeGuide()
	w0 := time.Date(2024, 1, 15, 20, 0, 0, 0, time.UTC)
	fake.failures[failKey(w0, "ch00")] = -1
	fake.windows[w0] = []pluto.ChannelTimeline{
		{ChannelID: "ch01", Timelines: []pluto.TimelineEntry{entry("lost", "x", "2024-01-15T20:00:00Z", "2024-01-15T21:00:00Z")}},
		{ChannelID: "ch31", Timelines: []pluto.TimelineEntry{entry("kept", "y", "2024-01-15T20:00:00Z", "2024-01-15T21:00:00Z")}},
	}

	opts := testOptions()
	opts.Retries = 1
	res, err := NewAggregator(fake, opts).Run(context.Background(), "tok", ids, testNow)
	require.NoError(t, err)

	assert.Equal(t, 13*3+1, fake.callCount(), "one retry for the failing batch")
	assert.Equal(t, 1, res.Stats.FailedBatches)
	assert.False(t, res.Stats.Complete())
	require.Len(t, res.Programmes, 1)
	assert.Equal(t, "kept", res.Programmes[0].ProgramID)
	assert.Equal(t, "ch00", fake.calls[1].IDs[0], "the failing batch was retried before moving on")
	assert.Equal(t, "ch30", fake.calls[2].IDs[0])
}

func TestAggregatorRetryRecovers(t *testing.T) {
	fake := newFakeGuide()
	w0 := time.Date(2024, 1, 15, 20, 0, 0, 0, time.UTC)
	fake.failures[failKey(w0, "a")] = 2
	fake.windows[w0] = []pluto.ChannelTimeline{
		{ChannelID: "a", Timelines: []pluto.TimelineEntry{entry("p", "t", "2024-01-15T20:00:00Z", "2024-01-15T21:00:00Z")}},
	}

	opts := testOptions()
	opts.HorizonHours = 0
	opts.Retries = 2
	res, err := NewAggregator(fake, opts).Run(context.Background(), "tok", []string{"a"}, testNow)
	require.NoError(t, err)

	assert.Equal(t, 3, fake.callCount())
	assert.Equal(t, 0, res.Stats.FailedBatches)
	assert.Len(t, res.Programmes, 1)
}

func TestAggregatorDiscardsInvalidEntries(t *testing.T) {
	fake := newFakeGuide()
	w0 := time.Date(2024, 1, 15, 20, 0, 0, 0, time.UTC)

	noTitle := entry("ok", "", "2024-01-15T21:00:00+01:00", "2024-01-15T22:00:00+01:00")
	noTitle.Title = nil
	fake.windows[w0] = []pluto.ChannelTimeline{
		{ChannelID: "a", Timelines: []pluto.TimelineEntry{
			noTitle,
			entry("", "no id", "2024-01-15T20:00:00Z", "2024-01-15T21:00:00Z"),
			entry("bad-start", "x", "soon", "2024-01-15T21:00:00Z"),
			entry("no-stop", "x", "2024-01-15T20:00:00Z", ""),
			entry("backwards", "x", "2024-01-15T21:00:00Z", "2024-01-15T20:00:00Z"),
			entry("empty", "x", "2024-01-15T21:00:00Z", "2024-01-15T21:00:00Z"),
		}},
		{ChannelID: "", Timelines: []pluto.TimelineEntry{
			entry("orphan", "x", "2024-01-15T20:00:00Z", "2024-01-15T21:00:00Z"),
		}},
	}

	opts := testOptions()
	opts.HorizonHours = 0
	res, err := NewAggregator(fake, opts).Run(context.Background(), "tok", []string{"a"}, testNow)
	require.NoError(t, err)

	require.Len(t, res.Programmes, 1)
	assert.Equal(t, 6, res.Stats.Invalid)
	got := res.Programmes[0]
	assert.Equal(t, epg.ProgrammeRecord{
		ChannelID:   "a",
		ProgramID:   "ok",
		Title:       epg.DefaultTitle,
		Description: epg.DefaultDescription,
		Start:       "20240115210000 +0100",
		Stop:        "20240115220000 +0100",
	}, got)
}

func TestAggregatorInvalidEntryDoesNotShadowValidOne(t *testing.T) {
	fake := newFakeGuide()
	w0 := time.Date(2024, 1, 15, 20, 0, 0, 0, time.UTC)
	fake.windows[w0] = []pluto.ChannelTimeline{
		{ChannelID: "a", Timelines: []pluto.TimelineEntry{
			entry("p", "x", "", ""),
			entry("p", "x", "2024-01-15T20:00:00Z", "2024-01-15T21:00:00Z"),
		}},
	}
	opts := testOptions()
	opts.HorizonHours = 0
	res, err := NewAggregator(fake, opts).Run(context.Background(), "tok", []string{"a"}, testNow)
	require.NoError(t, err)
	require.Len(t, res.Programmes, 1)
	assert.Equal(t, 0, res.Stats.Duplicates)
}

func TestAggregatorStopsOnCancel(t *testing.T) {
	fake := newFakeGuide()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w0 := time.Date(2024, 1, 15, 20, 0, 0, 0, time.UTC)
	fake.windows[w0] = []pluto.ChannelTimeline{
		{ChannelID: "a", Timelines: []pluto.TimelineEntry{entry("p", "t", "2024-01-15T20:00:00Z", "2024-01-15T21:00:00Z")}},
	}
	fake.onCall = func(n int) {
		if n == 2 {
			cancel()
		}
	}

	res, err := NewAggregator(fake, testOptions()).Run(ctx, "tok", []string{"a"}, testNow)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, fake.callCount())
	assert.Equal(t, 1, res.Stats.Batches)
	assert.Equal(t, 0, res.Stats.FailedBatches)
	assert.Len(t, res.Programmes, 1, "entries collected before cancellation are returned")
}

func TestOptionsDefaults(t *testing.T) {
	opts := AggregateOptions{HorizonHours: -1, Retries: -3, RetryDelay: -time.Second}.withDefaults()
	assert.Equal(t, AggregateOptions{
		BatchSize:    DefaultBatchSize,
		HorizonHours: DefaultHorizonHours,
		WindowHours:  DefaultWindowHours,
	}, opts)
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "upstream", err: pluto.ErrUpstream, want: true},
		{name: "plain", err: errors.New("reset"), want: true},
		{name: "client timeout", err: &pluto.APIError{Sentinel: pluto.ErrTimeout, Operation: "timelines", Err: fmt.Errorf("get: %w", context.DeadlineExceeded)}, want: true},
		{name: "deadline", err: fmt.Errorf("wrapped: %w", context.DeadlineExceeded), want: true},
		{name: "unauthorized", err: &pluto.APIError{Sentinel: pluto.ErrUnauthorized, Operation: "timelines", Status: 401}, want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, retryable(tc.err))
		})
	}
}

func TestAggregatorRetriesClientTimeout(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			select {
			case <-time.After(400 * time.Millisecond):
			case <-r.Context().Done():
			}
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"channelId":"a","timelines":[` +
			`{"title":"Film","start":"2024-01-15T20:30:00.000Z","stop":"2024-01-15T21:30:00.000Z",` +
			`"episode":{"_id":"p1","series":{"tile":{"path":"http://img/p1.jpg"}}}}]}]}`))
	}))
	defer srv.Close()

	client, err := pluto.New(pluto.Config{TimelineURL: srv.URL, Timeout: 100 * time.Millisecond})
	require.NoError(t, err)

	opts := testOptions()
	opts.HorizonHours = 0
	opts.Retries = 2

	res, err := NewAggregator(client, opts).Run(context.Background(), "tok", []string{"a"}, testNow)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Zero(t, res.Stats.FailedBatches)
	require.Len(t, res.Programmes, 1)
	assert.Equal(t, "p1", res.Programmes[0].ProgramID)
}

func TestProgrammeRecordTrimsIdentifiers(t *testing.T) {
	valid := func(id, icon string) pluto.TimelineEntry {
		e := entry(id, "Film", "2024-01-15T20:30:00.000Z", "2024-01-15T21:30:00.000Z")
		e.Episode.Series.Tile.Path = icon
		return e
	}

	tests := []struct {
		name    string
		channel string
		entry   pluto.TimelineEntry
		wantOK  bool
		want    epg.ProgrammeRecord
	}{
		{name: "blank channel", channel: "   ", entry: valid("p1", ""), wantOK: false},
		{name: "blank programme", channel: " a ", entry: valid("  ", ""), wantOK: false},
		{name: "tab only channel", channel: "\t", entry: valid("p1", ""), wantOK: false},
		{
			name:    "padded ids",
			channel: " a ",
			entry:   valid(" p2 ", " http://img/p2.jpg\n"),
			wantOK:  true,
			want: epg.ProgrammeRecord{
				ChannelID:   "a",
				ProgramID:   "p2",
				Title:       "Film",
				Description: epg.DefaultDescription,
				IconURL:     "http://img/p2.jpg",
				Start:       "20240115203000 +0000",
				Stop:        "20240115213000 +0000",
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := programmeRecord(tc.channel, tc.entry)
			require.Equal(t, tc.wantOK, ok)
			if tc.wantOK {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestAccumulatorRejectsBlankIdentifiers(t *testing.T) {
	acc := newAccumulator(zerolog.Nop())
	acc.add([]pluto.ChannelTimeline{
		{ChannelID: "   ", Timelines: []pluto.TimelineEntry{entry("p1", "A", "2024-01-15T20:00:00.000Z", "2024-01-15T21:00:00.000Z")}},
		{ChannelID: " a ", Timelines: []pluto.TimelineEntry{
			entry("  ", "B", "2024-01-15T20:00:00.000Z", "2024-01-15T21:00:00.000Z"),
			entry(" p2 ", "C", "2024-01-15T20:00:00.000Z", "2024-01-15T21:00:00.000Z"),
		}},
		{ChannelID: "a", Timelines: []pluto.TimelineEntry{entry("p2", "C", "2024-01-15T20:00:00.000Z", "2024-01-15T21:00:00.000Z")}},
	})

	require.Len(t, acc.records, 1)
	assert.Equal(t, "a", acc.records[0].ChannelID)
	assert.Equal(t, "p2", acc.records[0].ProgramID)
	assert.Equal(t, 4, acc.entries)
	assert.Equal(t, 2, acc.invalid)
	assert.Equal(t, 1, acc.duplicates)
}

func TestAggregatorLogsChannelOfDroppedAndFailedWork(t *testing.T) {
	var buf bytes.Buffer
	xglog.Configure(xglog.Config{Output: &buf, Level: "debug"})
	t.Cleanup(func() { xglog.Configure(xglog.Config{}) })

	start := time.Date(2024, 1, 15, 20, 0, 0, 0, time.UTC)
	fake := &fakeGuide{
		windows: map[time.Time][]pluto.ChannelTimeline{
			start: {{ChannelID: "ch00", Timelines: []pluto.TimelineEntry{
				entry("p1", "A", "2024-01-15T20:00:00.000Z", "2024-01-15T21:00:00.000Z"),
				entry("p1", "A", "2024-01-15T20:00:00.000Z", "2024-01-15T21:00:00.000Z"),
				entry("", "B", "2024-01-15T20:00:00.000Z", "2024-01-15T21:00:00.000Z"),
			}}},
		},
		failures: map[string]int{failKey(start, "ch01"): -1},
	}

	opts := testOptions()
	opts.HorizonHours = 0
	opts.BatchSize = 1

	res, err := NewAggregator(fake, opts).Run(context.Background(), "tok", []string{"ch00", "ch01"}, testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stats.FailedBatches)

	out := buf.String()
	assert.Contains(t, out, `"event":"window.fetch_failed"`)
	assert.Contains(t, out, `"channel_id":"ch01"`)
	assert.Contains(t, out, `"event":"programme.dropped"`)
	assert.Contains(t, out, `"reason":"duplicate"`)
	assert.Contains(t, out, `"reason":"invalid"`)
	assert.Contains(t, out, `"program_id":"p1"`)
}
