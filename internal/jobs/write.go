// SPDX-License-Identifier: MIT

package jobs

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/google/renameio/v2"

	"github.com/ManuGH/plutoepg/internal/epg"
	xglog "github.com/ManuGH/plutoepg/internal/log"
)

const outputPerm = 0o644

// writeAtomic replaces path with whatever fill writes. The previous file stays
// intact unless the new content was written and synced completely.
func writeAtomic(ctx context.Context, path string, fill func(io.Writer) error) error {
	logger := xglog.FromContext(ctx)

	pendingFile, err := renameio.NewPendingFile(path,
		renameio.WithPermissions(outputPerm),
		renameio.WithExistingPermissions(),
	)
	if err != nil {
		return fmt.Errorf("create pending file: %w", err)
	}
	defer func() {
		if err := pendingFile.Cleanup(); err != nil {
			logger.Debug().Err(err).Str(xglog.FieldPath, path).Msg("cleanup pending file")
		}
	}()

	if err := fill(pendingFile); err != nil {
		return err
	}

	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace %s: %w", path, err)
	}
	return nil
}

// writeXMLTV writes the guide document atomically.
func writeXMLTV(ctx context.Context, path string, tv *epg.TV) error {
	return writeAtomic(ctx, path, func(w io.Writer) error {
		if err := epg.Encode(w, tv); err != nil {
			return fmt.Errorf("write XMLTV data: %w", err)
		}
		return nil
	})
}

// writeChannelList dumps the catalog in a line-oriented debug format.
func writeChannelList(ctx context.Context, path string, catalog *epg.Catalog) error {
	return writeAtomic(ctx, path, func(w io.Writer) error {
		bw := bufio.NewWriter(w)
		for _, ch := range catalog.Channels() {
			if _, err := fmt.Fprintf(bw, "id: %s, name: %s,  ch_n: %s,   logo:%s\n",
				ch.ID, ch.Name, ch.LCN, ch.LogoURL); err != nil {
				return fmt.Errorf("write channel list: %w", err)
			}
		}
		if err := bw.Flush(); err != nil {
			return fmt.Errorf("write channel list: %w", err)
		}
		return nil
	})
}
