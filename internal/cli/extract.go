package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/calhue/internal/dominant"
)

type extractOptions struct {
	format  string
	output  string
	preview bool
	noCache bool
	refresh bool
}

func newExtractCmd(a *app) *cobra.Command {
	opts := &extractOptions{}

	cmd := &cobra.Command{
		Use:   "extract <image>...",
		Short: "Extract dominant colours from images",
		Long: `Extract the dominant colours of one or more images.

Colours are printed most dominant first as lowercase hex codes without a
leading '#'. Results are cached next to each image (or in the configured cache
backend) and reused until the image changes.

Supported image formats: JPEG, PNG, GIF, WebP

Examples:
  # Extract 5 colours (default) from an image
  calhue extract january.jpg

  # Extract 3 colours with terminal swatches
  calhue extract -c 3 --preview january.jpg

  # Extract several images as JSON
  calhue extract --format json images/*.png

  # Ignore and replace any cached result
  calhue extract --refresh january.jpg`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runExtract(cmd, args, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.format, "format", "f", formatHex, "output format (hex, json, yaml)")
	f.StringVarP(&opts.output, "output", "o", "", "output file (default: stdout)")
	f.BoolVar(&opts.preview, "preview", false, "show colour swatches when writing to a terminal")
	f.BoolVar(&opts.noCache, "no-cache", false, "neither read nor write cached results")
	f.BoolVar(&opts.refresh, "refresh", false, "recompute and replace cached results")

	return cmd
}

func (a *app) runExtract(cmd *cobra.Command, args []string, opts *extractOptions) error {
	if err := checkFormat(opts.format, formatHex, formatJSON, formatYAML); err != nil {
		return err
	}

	ctx := cmd.Context()
	svc, closer, err := a.newService(ctx, !opts.noCache)
	if err != nil {
		return err
	}
	defer closer.Close()

	var results []dominant.Result
	if opts.refresh {
		results = make([]dominant.Result, len(args))
		for i, path := range args {
			colours, err := svc.Refresh(ctx, path)
			results[i] = dominant.Result{Path: path, Colours: colours, Err: err}
		}
	} else {
		results, err = svc.ExtractBatch(ctx, args, a.cfg.Workers)
		if err != nil {
			return err
		}
	}

	var out io.Writer = cmd.OutOrStdout()
	if opts.output != "" {
		file, err := os.Create(opts.output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer file.Close()
		out = file
	}

	preview := opts.preview && isTerminal(out)

	switch opts.format {
	case formatHex:
		for _, r := range results {
			if r.Err != nil {
				continue
			}
			line := formatColours(r.Colours, preview)
			if len(args) > 1 {
				line = r.Path + ": " + line
			}
			fmt.Fprintln(out, line)
		}
	default:
		if err := writeStructured(out, opts.format, toImageColours(results)); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}

	return reportFailures(cmd, results)
}

// reportFailures prints each failed image to stderr and returns an error when
// any image failed.
func reportFailures(cmd *cobra.Command, results []dominant.Result) error {
	failed := dominant.Failed(results)
	if failed == 0 {
		return nil
	}
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s: %v\n", r.Path, r.Err)
		}
	}
	return fmt.Errorf("%d of %d images failed", failed, len(results))
}
