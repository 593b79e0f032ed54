package cli

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/calhue/internal/colour"
	"github.com/jmylchreest/calhue/internal/image"
)

type paletteOptions struct {
	format  string
	top     int
	preview bool
}

func newPaletteCmd(a *app) *cobra.Command {
	opts := &paletteOptions{}

	cmd := &cobra.Command{
		Use:   "palette <image>",
		Short: "Show the quantised palette of an image",
		Long: `Show the weighted palette an image quantises to, before dominant colours are
selected. Useful for understanding why a colour was or was not picked.

Examples:
  # The 20 most common buckets at the default depth
  calhue palette january.jpg

  # Every bucket at 3 bits per channel, as JSON
  calhue palette --bits 3 --format json january.jpg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runPalette(cmd, args[0], opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.format, "format", "f", formatTable, "output format (table, json)")
	f.IntVarP(&opts.top, "top", "n", 20, "show only the heaviest n entries in table output (0 = all)")
	f.BoolVar(&opts.preview, "preview", false, "show colour swatches when writing to a terminal")

	return cmd
}

func (a *app) runPalette(cmd *cobra.Command, path string, opts *paletteOptions) error {
	if err := checkFormat(opts.format, formatTable, formatJSON); err != nil {
		return err
	}
	if err := image.ValidateImagePath(path); err != nil {
		return err
	}

	width, height, err := image.GetImageDimensions(path)
	if err != nil {
		return err
	}
	a.logger.Debug("building palette", "path", path, "size", fmt.Sprintf("%dx%d", width, height))

	loader := image.NewFileLoader(image.WithMaxDimension(a.cfg.MaxDimension))
	px, err := loader.LoadPixels(path)
	if err != nil {
		return err
	}

	palette, err := colour.BuildPalette(px, a.cfg.QuantisationBits)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.format == formatJSON {
		data, err := palette.ToJSON()
		if err != nil {
			return fmt.Errorf("failed to encode palette: %w", err)
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}

	entries := palette.Entries()
	slices.SortStableFunc(entries, func(x, y colour.Entry) int {
		return cmp.Compare(y.Weight, x.Weight)
	})
	if opts.top > 0 && len(entries) > opts.top {
		entries = entries[:opts.top]
	}

	preview := opts.preview && isTerminal(out)
	total := float64(palette.TotalWeight())

	table := NewTable("Colour", "Weight", "Share")
	for _, e := range entries {
		table.AddRow(
			formatColours([]string{e.Colour.Hex()}, preview),
			strconv.Itoa(e.Weight),
			fmt.Sprintf("%.1f%%", 100*float64(e.Weight)/total),
		)
	}
	if err := table.Write(out); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%d of %d buckets, %d pixels\n", len(entries), palette.Len(), palette.TotalWeight())
	return nil
}
