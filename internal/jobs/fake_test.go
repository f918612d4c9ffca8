// SPDX-License-Identifier: MIT

package jobs

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/ManuGH/plutoepg/internal/epg"
	"github.com/ManuGH/plutoepg/internal/pluto"
)

type timelineCall struct {
	Start    time.Time
	Duration time.Duration
	IDs      []string
}

// fakeGuide is an in-memory GuideClient. Responses are keyed by window
// start; failures by "start|firstID".
type fakeGuide struct {
	mu sync.Mutex

	appVersion    string
	appVersionErr error
	token         string
	sessionErr    error
	catalog       *epg.Catalog
	channelsErr   error

	windows  map[time.Time][]pluto.ChannelTimeline
	failures map[string]int // remaining failures per key, -1 = always
	onCall   func(n int)

	calls      []timelineCall
	sessionArg [2]string
}

func newFakeGuide() *fakeGuide {
	return &fakeGuide{
		appVersion: "7.0.0",
		token:      "tok",
		catalog:    epg.NewCatalog(),
		windows:    make(map[time.Time][]pluto.ChannelTimeline),
		failures:   make(map[string]int),
	}
}

func failKey(start time.Time, firstID string) string {
	return fmt.Sprintf("%s|%s", start.UTC().Format(time.RFC3339), firstID)
}

func (f *fakeGuide) AppVersion(context.Context) (string, error) {
	return f.appVersion, f.appVersionErr
}

func (f *fakeGuide) StartSession(_ context.Context, appVersion, clientID string) (string, error) {
	f.sessionArg = [2]string{appVersion, clientID}
	if f.sessionErr != nil {
		return "", f.sessionErr
	}
	return f.token, nil
}

func (f *fakeGuide) Channels(context.Context, string) (*epg.Catalog, error) {
	if f.channelsErr != nil {
		return nil, f.channelsErr
	}
	return f.catalog, nil
}

func (f *fakeGuide) Timelines(ctx context.Context, token string, start time.Time, duration time.Duration, ids []string) ([]pluto.ChannelTimeline, error) {
	f.mu.Lock()
	f.calls = append(f.calls, timelineCall{Start: start, Duration: duration, IDs: slices.Clone(ids)})
	n := len(f.calls)
	key := failKey(start, ids[0])
	remaining, failing := f.failures[key]
	if failing && remaining != 0 {
		if remaining > 0 {
			f.failures[key] = remaining - 1
		}
	}
	onCall := f.onCall
	f.mu.Unlock()

	if onCall != nil {
		onCall(n)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if failing && remaining != 0 {
		return nil, fmt.Errorf("%w: injected", pluto.ErrUpstream)
	}

	var out []pluto.ChannelTimeline
	for _, ch := range f.windows[start] {
		if ch.ChannelID == "" || slices.Contains(ids, ch.ChannelID) {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (f *fakeGuide) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func strPtr(s string) *string { return &s }

func entry(id, title, start, stop string) pluto.TimelineEntry {
	e := pluto.TimelineEntry{Title: strPtr(title), Start: start, Stop: stop}
	e.Episode.ID = id
	return e
}

func catalogOf(ids ...string) *epg.Catalog {
	c := epg.NewCatalog()
	for _, id := range ids {
		c.Add(epg.ChannelRecord{ID: id, Name: "Channel " + id})
	}
	return c
}
