// SPDX-License-Identifier: MIT

package pluto

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"github.com/ManuGH/plutoepg/internal/epg"
	xglog "github.com/ManuGH/plutoepg/internal/log"
)

// Image tags used for channel logos.
const (
	ImageColorLogo = "colorLogoPNG"
	ImageSolidLogo = "solidLogoPNG"
)

// Image is one entry of a channel's image list.
type Image struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// RawChannel is a channel entry as returned by the guide channels endpoint.
type RawChannel struct {
	ID     string          `json:"id"`
	Name   *string         `json:"name"`
	Number json.RawMessage `json:"number"`
	Images []Image         `json:"images"`
}

type channelsResponse struct {
	Data []RawChannel `json:"data"`
}

// Channels fetches the channel catalog in upstream order (sorted by number).
func (c *Client) Channels(ctx context.Context, token string) (*epg.Catalog, error) {
	q := c.localeParams()
	q.Set("channelIds", "")
	q.Set("offset", "0")
	q.Set("limit", "1000")
	q.Set("sort", "number:asc")

	var resp channelsResponse
	if err := c.getJSON(ctx, "channels", c.cfg.ChannelsURL, q, c.apiHeader(token), &resp); err != nil {
		return nil, err
	}

	logger := xglog.WithComponentFromContext(ctx, "pluto")
	catalog := epg.NewCatalog()
	skipped := 0
	for _, raw := range resp.Data {
		rec, ok := raw.Record()
		if !ok {
			skipped++
			continue
		}
		catalog.Add(rec)
	}
	if skipped > 0 {
		logger.Warn().
			Str(xglog.FieldEvent, "channels.skipped").
			Int("skipped", skipped).
			Msg("channels without id skipped")
	}
	return catalog, nil
}

// Record converts the raw entry. It reports false when the channel has no id.
func (r RawChannel) Record() (epg.ChannelRecord, bool) {
	id := strings.TrimSpace(r.ID)
	if id == "" {
		return epg.ChannelRecord{}, false
	}
	return epg.ChannelRecord{
		ID:      id,
		Name:    epg.TextOr(r.Name, epg.DefaultChannelName),
		LCN:     numberText(r.Number),
		LogoURL: SelectLogo(r.Images),
	}, true
}

// SelectLogo picks the channel logo from its image list in one pass. Within
// each tag the last non-empty URL wins; a color logo is preferred over a
// solid one. It returns "" when neither tag is present.
func SelectLogo(images []Image) string {
	var color, solid string
	for _, img := range images {
		u := strings.TrimSpace(img.URL)
		if u == "" {
			continue
		}
		switch img.Type {
		case ImageColorLogo:
			color = u
		case ImageSolidLogo:
			solid = u
		}
	}
	if color != "" {
		return color
	}
	return solid
}

// numberText renders the channel number as text. Numbers keep their JSON
// literal, strings are unquoted, null or missing yield "".
func numberText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return ""
	}
	return n.String()
}
