// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ManuGH/plutoepg/internal/epg"
)

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <file>",
		Short: "Check that a file is a well-formed guide",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// #nosec G304 -- the path is the operator's argument
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()

			tv, err := epg.Decode(f)
			if err != nil {
				return err
			}
			if err := epg.Validate(tv); err != nil {
				return fmt.Errorf("invalid guide %s: %w", args[0], err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d channels, %d programmes\n",
				args[0], len(tv.Channels), len(tv.Programmes))
			return nil
		},
	}
}
