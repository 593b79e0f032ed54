package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/calhue/internal/cache"
)

// cacheEntry describes the cached result of one image.
type cacheEntry struct {
	Path          string    `json:"path" yaml:"path"`
	Location      string    `json:"location" yaml:"location"`
	Valid         bool      `json:"valid" yaml:"valid"`
	Fingerprint   string    `json:"fingerprint,omitempty" yaml:"fingerprint,omitempty"`
	SourceModTime time.Time `json:"source_mtime,omitzero" yaml:"source_mtime,omitempty"`
	Colours       []string  `json:"colours" yaml:"colours"`
	Error         string    `json:"error,omitempty" yaml:"error,omitempty"`
}

func newCacheCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and clear cached results",
		Long: `Inspect and clear the cached dominant colours of images.

The cache backend is chosen with --cache (sidecar, dir, redis). A cached
result is valid while the image is unmodified and was extracted with the
current settings.`,
	}

	cmd.AddCommand(newCacheShowCmd(a))
	cmd.AddCommand(newCacheClearCmd(a))

	return cmd
}

func newCacheShowCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show <image>...",
		Short: "Show the cached result for images",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format, formatTable, formatJSON, formatYAML); err != nil {
				return err
			}

			c, closer, err := a.newCache(cmd.Context())
			if err != nil {
				return err
			}
			defer closer.Close()
			if c == nil {
				return errCacheDisabled
			}

			entries := make([]cacheEntry, len(args))
			for i, path := range args {
				entries[i] = peekEntry(cmd, c, path)
			}

			out := cmd.OutOrStdout()
			if format != formatTable {
				return writeStructured(out, format, entries)
			}

			table := NewTable("Image", "Colours", "Valid", "Location")
			for _, e := range entries {
				valid := "no"
				switch {
				case e.Error != "":
					valid = e.Error
				case e.Valid:
					valid = "yes"
				}
				table.AddRow(e.Path, formatColours(e.Colours, false), valid, e.Location)
			}
			return table.Write(out)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "output format (table, json, yaml)")

	return cmd
}

func peekEntry(cmd *cobra.Command, c *cache.Cache, path string) cacheEntry {
	e := cacheEntry{
		Path:     path,
		Location: c.Store().Location(path),
		Colours:  []string{},
	}

	rec, valid, err := c.Peek(cmd.Context(), path)
	switch {
	case errors.Is(err, cache.ErrNotFound):
		e.Error = "not cached"
	case errors.Is(err, cache.ErrCorrupt):
		e.Error = "corrupt"
	case err != nil:
		e.Error = err.Error()
	default:
		e.Valid = valid
		e.Fingerprint = rec.Fingerprint
		e.SourceModTime = rec.SourceModTime
		e.Colours = rec.Colours
	}
	return e
}

func newCacheClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <image>...",
		Short: "Remove the cached result for images",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, closer, err := a.newCache(cmd.Context())
			if err != nil {
				return err
			}
			defer closer.Close()
			if c == nil {
				return errCacheDisabled
			}

			out := cmd.OutOrStdout()
			for _, path := range args {
				err := c.Invalidate(cmd.Context(), path)
				switch {
				case errors.Is(err, cache.ErrNotFound):
					fmt.Fprintf(out, "%s: not cached\n", path)
				case err != nil:
					return fmt.Errorf("failed to clear %s: %w", path, err)
				default:
					fmt.Fprintf(out, "%s: cleared\n", path)
				}
			}
			return nil
		},
	}
}
