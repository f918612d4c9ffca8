// SPDX-License-Identifier: MIT

package epg

import (
	"slices"
	"strings"
)

// DefaultChannelName is used when the catalog entry carries no name.
const DefaultChannelName = "Pluto TV"

// Defaults applied to programme text when upstream omits the field.
const (
	DefaultTitle       = "No title"
	DefaultDescription = "No description"
)

// ChannelRecord is one catalog entry.
type ChannelRecord struct {
	ID      string
	Name    string
	LCN     string
	LogoURL string
}

// ProgrammeRecord is one deduplicated guide entry. Start and Stop are in
// TimeLayout form.
type ProgrammeRecord struct {
	ChannelID   string
	ProgramID   string
	Title       string
	Description string
	IconURL     string
	Start       string
	Stop        string
}

// Catalog is an insertion-ordered set of channels keyed by id.
// Re-adding an id replaces its record but keeps its original position.
type Catalog struct {
	order []string
	byID  map[string]ChannelRecord
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{byID: make(map[string]ChannelRecord)}
}

// Add inserts or replaces rec. Records with an empty id are ignored.
func (c *Catalog) Add(rec ChannelRecord) bool {
	if rec.ID == "" {
		return false
	}
	if _, ok := c.byID[rec.ID]; !ok {
		c.order = append(c.order, rec.ID)
	}
	c.byID[rec.ID] = rec
	return true
}

// Get returns the record for id.
func (c *Catalog) Get(id string) (ChannelRecord, bool) {
	if c == nil {
		return ChannelRecord{}, false
	}
	rec, ok := c.byID[id]
	return rec, ok
}

// Len returns the number of channels.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.order)
}

// IDs returns the channel ids in catalog order.
func (c *Catalog) IDs() []string {
	if c == nil {
		return nil
	}
	return slices.Clone(c.order)
}

// Channels returns the records in catalog order.
func (c *Catalog) Channels() []ChannelRecord {
	if c == nil {
		return nil
	}
	out := make([]ChannelRecord, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// BuildGuide assembles the guide document. Channels keep catalog order.
// Programmes are stable sorted by channel id, so entries of one channel keep
// their discovery order. Programmes on channels missing from the catalog are
// kept.
func BuildGuide(catalog *Catalog, programmes []ProgrammeRecord) *TV {
	tv := &TV{
		SourceInfoName: SourceInfoName,
		Channels:       make([]Channel, 0, catalog.Len()),
		Programmes:     make([]Programme, 0, len(programmes)),
	}

	for _, ch := range catalog.Channels() {
		tv.Channels = append(tv.Channels, Channel{
			ID:          ch.ID,
			DisplayName: ch.Name,
			LCN:         ch.LCN,
			Icon:        Icon{Src: ch.LogoURL},
		})
	}

	sorted := slices.Clone(programmes)
	slices.SortStableFunc(sorted, func(a, b ProgrammeRecord) int {
		return strings.Compare(a.ChannelID, b.ChannelID)
	})

	for _, p := range sorted {
		tv.Programmes = append(tv.Programmes, Programme{
			Start:   p.Start,
			Stop:    p.Stop,
			Channel: p.ChannelID,
			Title:   p.Title,
			Desc:    p.Description,
			Icon:    Icon{Src: p.IconURL},
		})
	}
	return tv
}
