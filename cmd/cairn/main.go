package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/cairn-backup/cairn/internal/debug"
	"github.com/cairn-backup/cairn/internal/errors"
)

func init() {
	// don't import `go.uber.org/automaxprocs` to disable the log output
	_, _ = maxprocs.Set()
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cairn",
		Short: "Verify and browse content-addressed backup repositories",
		Long: `
cairn verifies the integrity of a deduplicating, content-addressed backup
repository and serves the contents of its snapshots as a filesystem.
`,
		SilenceErrors:     true,
		SilenceUsage:      true,
		DisableAutoGenTag: true,

		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return globalOptions.PreRun()
		},
	}

	globalOptions.AddFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		newCheckCommand(),
		newSnapshotsCommand(),
		newVersionCommand(),
	)

	registerMountCommand(cmd)

	return cmd
}

func main() {
	debug.Log("main %#v", os.Args)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := newRootCommand().ExecuteContext(ctx)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(os.Stderr, "interrupt received, cleaning up")
		os.Exit(130)
	case errors.IsFatal(err):
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	default:
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		os.Exit(1)
	}
}
