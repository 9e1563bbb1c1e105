package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"winlib/pkg/config"
	"winlib/pkg/core"
	"winlib/pkg/fileio"
	"winlib/pkg/progress"
)

// createOptions holds the flags of the create command.
type createOptions struct {
	from         string
	exclude      offsetList
	excludeIdata bool
	saveExcluded string
	policy       string
	compress     string
}

func newCreateCommand(global *globalOptions) *cobra.Command {
	opts := &createOptions{}
	cmd := &cobra.Command{
		Use:   "create NEW_LIB --from OLD_LIB",
		Short: "Create a new lib from an old lib",
		Long: `Create a new lib holding the members of an old lib, minus the
excluded ones.

Members are excluded by the offset shown by "winlib list" (--exclude) or
because they contribute to the import table (--exclude-idata): short import
descriptors and objects with an .idata$ section. The excluded members can be
saved to a second lib with --save-excluded.`,
		Example: `  winlib create clean.lib --from mixed.lib --exclude-idata
  winlib create clean.lib --from mixed.lib --exclude 0x44 --exclude 0x120 --save-excluded rest.lib
  winlib create clean.lib --from mixed.lib --policy policy.yaml --compress zstd`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cmd.ErrOrStderr(), global.logFormat, global.verbose)
			if err != nil {
				return err
			}
			settings, err := opts.settings()
			if err != nil {
				return err
			}
			compression, err := fileio.ParseCompression(settings.Compress)
			if err != nil {
				return err
			}

			target := args[0]
			source, err := fileio.ReadLibrary(opts.from)
			if err != nil {
				return fmt.Errorf("cannot read %s: %w", opts.from, err)
			}

			tracker := progress.New(logger)
			defer tracker.Stop()

			result, err := core.Run(source, settings.Policy(),
				core.WithTracker(tracker),
				core.WithLogger(logger),
			)
			if err != nil {
				return fmt.Errorf("unable to build library from %s: %w", opts.from, err)
			}

			outputs := []fileio.Output{{Path: target, Data: result.Kept, Compression: compression}}
			if settings.SaveExcluded != "" {
				outputs = append(outputs, fileio.Output{
					Path:        settings.SaveExcluded,
					Data:        result.Excluded,
					Compression: compression,
				})
			}
			if err := fileio.WriteLibraries(tracker, outputs...); err != nil {
				return fmt.Errorf("unable to write library to %s: %w", target, err)
			}

			tracker.Stop()
			stats := result.Stats
			logger.Info("created library",
				"path", target,
				"members", stats.Members,
				"kept", stats.Kept,
				"excluded", stats.Excluded,
				"import_descriptors", stats.ImportDescriptors,
				"import_objects", stats.ImportObjects,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.from, "from", "", "the new lib will contain members from the old lib at `PATH`")
	cmd.Flags().Var(&opts.exclude, "exclude", "exclude the member at the given offset (repeatable)")
	cmd.Flags().BoolVar(&opts.excludeIdata, "exclude-idata", false, "exclude import descriptors and members containing .idata sections")
	cmd.Flags().StringVar(&opts.saveExcluded, "save-excluded", "", "store the excluded members in a separate lib at `PATH`")
	cmd.Flags().StringVar(&opts.policy, "policy", "", "read exclusions from the YAML policy `FILE`")
	cmd.Flags().StringVar(&opts.compress, "compress", "", "compress the written libs: none, lz4 or zstd")
	// Fails only for an undefined flag name.
	_ = cmd.MarkFlagRequired("from")
	return cmd
}

// settings merges the flags with the policy file, if any.
func (o *createOptions) settings() (config.Settings, error) {
	flags := config.Settings{
		ExcludeOffsets: o.exclude.offsets,
		ExcludeIdata:   o.excludeIdata,
		SaveExcluded:   o.saveExcluded,
		Compress:       o.compress,
	}
	if o.policy == "" {
		return flags, nil
	}
	file, err := config.LoadFile(o.policy)
	if err != nil {
		return config.Settings{}, err
	}
	return file.Merge(flags), nil
}
