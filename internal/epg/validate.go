// SPDX-License-Identifier: MIT

package epg

import (
	"errors"
	"fmt"
	"time"
)

// Validate checks the structural guarantees of a built guide: channel ids
// are present, every programme names a channel and carries XMLTV start/stop
// values, and programmes are ordered by channel id.
func Validate(tv *TV) error {
	if tv == nil {
		return errors.New("xmltv: nil document")
	}
	var errs []error
	for i, ch := range tv.Channels {
		if ch.ID == "" {
			errs = append(errs, fmt.Errorf("channel %d: empty id", i))
		}
	}
	prev := ""
	for i, p := range tv.Programmes {
		if p.Channel == "" {
			errs = append(errs, fmt.Errorf("programme %d: empty channel", i))
		}
		if _, err := time.Parse(TimeLayout, p.Start); err != nil {
			errs = append(errs, fmt.Errorf("programme %d: start %q: %w", i, p.Start, err))
		}
		if _, err := time.Parse(TimeLayout, p.Stop); err != nil {
			errs = append(errs, fmt.Errorf("programme %d: stop %q: %w", i, p.Stop, err))
		}
		if p.Channel < prev {
			errs = append(errs, fmt.Errorf("programme %d: channel %q sorted after %q", i, p.Channel, prev))
		}
		prev = p.Channel
	}
	return errors.Join(errs...)
}
