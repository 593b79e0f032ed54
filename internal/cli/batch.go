package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/calhue/internal/image"
)

type batchOptions struct {
	format  string
	preview bool
	noCache bool
}

func newBatchCmd(a *app) *cobra.Command {
	opts := &batchOptions{}

	cmd := &cobra.Command{
		Use:   "batch <dir>",
		Short: "Extract dominant colours from every image in a directory",
		Long: `Extract the dominant colours of every supported image directly inside a
directory, using up to --workers concurrent extractions.

A failing image is reported and does not stop the others; the command exits
non-zero when any image failed.

Examples:
  # Summarise a directory of monthly images
  calhue batch ./months

  # Write all results as YAML
  calhue batch --format yaml ./months`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBatch(cmd, args[0], opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.format, "format", "f", formatTable, "output format (table, json, yaml)")
	f.BoolVar(&opts.preview, "preview", false, "show colour swatches when writing to a terminal")
	f.BoolVar(&opts.noCache, "no-cache", false, "neither read nor write cached results")

	return cmd
}

func (a *app) runBatch(cmd *cobra.Command, dir string, opts *batchOptions) error {
	if err := checkFormat(opts.format, formatTable, formatJSON, formatYAML); err != nil {
		return err
	}

	paths, err := image.ScanDirectoryForImages(dir)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	svc, closer, err := a.newService(ctx, !opts.noCache)
	if err != nil {
		return err
	}
	defer closer.Close()

	a.logger.Info("extracting directory", "dir", dir, "images", len(paths), "workers", a.cfg.Workers)

	results, err := svc.ExtractBatch(ctx, paths, a.cfg.Workers)
	if err != nil {
		return err
	}

	if c := svc.Cache(); c != nil {
		st := c.Stats()
		a.logger.Info("cache summary", "hits", st.Hits, "misses", st.Misses,
			"corrupt", st.Corrupt, "persist_failures", st.PersistFailures)
	}

	out := cmd.OutOrStdout()
	if opts.format != formatTable {
		if err := writeStructured(out, opts.format, toImageColours(results)); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return reportFailures(cmd, results)
	}

	preview := opts.preview && isTerminal(out)

	table := NewTable("Image", "Colours", "Status")
	table.SetColumnMaxWidth(2, 48)
	for _, r := range results {
		status := "ok"
		if r.Err != nil {
			status = "error: " + r.Err.Error()
		}
		table.AddRow(filepath.Base(r.Path), formatColours(r.Colours, preview), status)
	}
	if err := table.Write(out); err != nil {
		return err
	}

	return reportFailures(cmd, results)
}
