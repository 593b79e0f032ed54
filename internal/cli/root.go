// Package cli provides the command-line interface for calhue.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/calhue/internal/colour"
	"github.com/jmylchreest/calhue/internal/config"
	"github.com/jmylchreest/calhue/internal/version"
)

// app carries state shared by every command of one root command instance.
type app struct {
	cfgFile string
	verbose bool

	cfg    *config.Config
	logger hclog.Logger
}

// NewRootCmd builds the calhue command tree.
func NewRootCmd() *cobra.Command {
	a := &app{logger: hclog.NewNullLogger()}

	rootCmd := &cobra.Command{
		Use:   "calhue",
		Short: "Dominant colour extraction for calendar pages",
		Long: `calhue extracts a small set of perceptually distinct dominant colours from
images, for choosing background and accent colours on generated calendar pages.

Colours are picked by quantising the image into a weighted palette and then
greedily selecting the entries that are farthest apart under CIEDE2000. Results
are cached per image and reused until the image is modified.`,
		Version:           version.Short(),
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/calhue/config.yaml)")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "enable verbose output (same as --log-level debug)")
	pf.IntP("colours", "c", colour.DefaultColourCount, "number of dominant colours to extract (1-256)")
	pf.Int("bits", colour.DefaultQuantisationBits, "quantisation depth in bits per channel (1-8)")
	pf.Int("max-dimension", config.DefaultMaxDimension, "downscale images so neither side exceeds this many pixels (0 disables)")
	pf.Int("workers", 0, "concurrent extractions for batch work (0 = number of CPUs)")
	pf.String("log-level", "warn", "log level (trace, debug, info, warn, error, off)")
	pf.String("cache", config.BackendSidecar, "cache backend (sidecar, dir, redis, none)")
	pf.String("cache-dir", "", "cache directory for the dir backend (default: user cache dir)")

	rootCmd.SetVersionTemplate(version.String() + "\n")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newExtractCmd(a))
	rootCmd.AddCommand(newBatchCmd(a))
	rootCmd.AddCommand(newWatchCmd(a))
	rootCmd.AddCommand(newCacheCmd(a))
	rootCmd.AddCommand(newPaletteCmd(a))

	return rootCmd
}

// Execute runs the root command, cancelling its context on SIGINT or SIGTERM.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}

// setup resolves configuration and the logger before any subcommand runs.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(config.LoadOptions{
		File:  a.cfgFile,
		Flags: cmd.Flags(),
	})
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg

	level := cfg.Level()
	if a.verbose && level > hclog.Debug {
		level = hclog.Debug
	}

	a.logger = hclog.New(&hclog.LoggerOptions{
		Name:   "calhue",
		Level:  level,
		Output: cmd.ErrOrStderr(),
		Color:  hclog.AutoColor,
	})

	if cfg.File != "" {
		a.logger.Debug("loaded config file", "path", cfg.File)
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print detailed version information including build date, commit hash, and Go version.`,
		Args:  cobra.NoArgs,
		// Version output never depends on configuration.
		PersistentPreRun: func(*cobra.Command, []string) {},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
