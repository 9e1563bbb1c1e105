package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"winlib/pkg/core"
	"winlib/pkg/fileio"
	"winlib/pkg/listing"
)

func newListCommand(global *globalOptions) *cobra.Command {
	var (
		format string
		digest bool
	)
	cmd := &cobra.Command{
		Use:   "list LIB",
		Short: "Show the contents of a lib",
		Long: `Show the offset, size and name of every member of a lib.

Offsets are those accepted by "winlib create --exclude".`,
		Example: `  winlib list kernel32.lib
  winlib list --format json --digest user32.lib`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := listing.ParseFormat(format)
			if err != nil {
				return err
			}
			logger, err := newLogger(cmd.ErrOrStderr(), global.logFormat, global.verbose)
			if err != nil {
				return err
			}

			path := args[0]
			data, err := fileio.ReadLibrary(path)
			if err != nil {
				return fmt.Errorf("cannot read %s: %w", path, err)
			}
			entries, err := core.List(data)
			if err != nil {
				return fmt.Errorf("not a recognised archive file: %s: %w", path, err)
			}
			logger.Debug("listed library", "path", path, "members", len(entries))
			return listing.Render(cmd.OutOrStdout(), listing.Rows(entries, digest), f)
		},
	}
	cmd.Flags().StringVar(&format, "format", string(listing.FormatText), "output format: text, json or cbor")
	cmd.Flags().BoolVar(&digest, "digest", false, "add the BLAKE3-256 digest of each member")
	return cmd
}
