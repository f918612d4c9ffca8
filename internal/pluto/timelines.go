// SPDX-License-Identifier: MIT

package pluto

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// DefaultTimelineDuration is the width of one timeline request.
const DefaultTimelineDuration = 4 * time.Hour

// Series carries the programme artwork.
type Series struct {
	Tile struct {
		Path string `json:"path"`
	} `json:"tile"`
}

// Episode is the nested programme object of a timeline entry.
type Episode struct {
	ID          string  `json:"_id"`
	Description *string `json:"description"`
	Series      Series  `json:"series"`
}

// TimelineEntry is one scheduled airing.
type TimelineEntry struct {
	Title   *string `json:"title"`
	Start   string  `json:"start"`
	Stop    string  `json:"stop"`
	Episode Episode `json:"episode"`
}

// ChannelTimeline groups the entries returned for one channel.
type ChannelTimeline struct {
	ChannelID string          `json:"channelId"`
	Timelines []TimelineEntry `json:"timelines"`
}

type timelinesResponse struct {
	Data []ChannelTimeline `json:"data"`
}

// StartParam formats a window start the way the timelines endpoint expects:
// UTC, top of the hour, millisecond precision.
func StartParam(start time.Time) string {
	return start.UTC().Truncate(time.Hour).Format("2006-01-02T15:04:05.000Z")
}

// Timelines fetches the schedule of channelIDs for the window starting at
// start and spanning duration (whole minutes).
func (c *Client) Timelines(ctx context.Context, token string, start time.Time, duration time.Duration, channelIDs []string) ([]ChannelTimeline, error) {
	if duration <= 0 {
		duration = DefaultTimelineDuration
	}
	q := c.localeParams()
	q.Set("start", StartParam(start))
	q.Set("channelIds", strings.Join(channelIDs, ","))
	q.Set("duration", strconv.Itoa(int(duration/time.Minute)))

	var resp timelinesResponse
	if err := c.getJSON(ctx, "timelines", c.cfg.TimelineURL, q, c.apiHeader(token), &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}
