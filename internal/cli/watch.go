package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/calhue/internal/dominant"
)

type watchOptions struct {
	debounce time.Duration
	initial  bool
}

func newWatchCmd(a *app) *cobra.Command {
	opts := &watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Keep cached colours current as images change",
		Long: `Watch a directory and re-extract images as they are added or modified.

Removed images have their cached result invalidated. Each outcome is printed
as it happens. The command runs until interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runWatch(cmd, args[0], opts)
		},
	}

	f := cmd.Flags()
	f.DurationVar(&opts.debounce, "debounce", dominant.DefaultDebounce, "quiet period before a changed image is extracted")
	f.BoolVar(&opts.initial, "initial", true, "extract existing images before watching")

	return cmd
}

func (a *app) runWatch(cmd *cobra.Command, dir string, opts *watchOptions) error {
	ctx := cmd.Context()
	svc, closer, err := a.newService(ctx, true)
	if err != nil {
		return err
	}
	defer closer.Close()

	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	return svc.Watch(ctx, dir, dominant.WatchOptions{
		Debounce: opts.debounce,
		Initial:  opts.initial,
	}, func(u dominant.Update) {
		switch {
		case u.Err != nil:
			fmt.Fprintf(errOut, "Error: %s: %v\n", u.Path, u.Err)
		case u.Removed:
			fmt.Fprintf(out, "%s: removed\n", u.Path)
		default:
			fmt.Fprintf(out, "%s: %s\n", u.Path, formatColours(u.Colours, false))
		}
	})
}
