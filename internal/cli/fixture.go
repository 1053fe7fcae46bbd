package cli

import (
	"fmt"
	"net"

	"github.com/spf13/cobra"

	"github.com/networkteam/pageprobe/fixture"
)

// NewFixtureCommand creates the fixture command with its serve and write subcommands.
func NewFixtureCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fixture",
		Short: "Serve or write the stub game page",
		Long: `The fixture is a stub of the game page with every element the builtin
scenarios use. Serve it to try scenarios without the game, or write it to
a directory to run scenarios against file: targets.`,
	}

	cmd.AddCommand(newFixtureServeCommand(rootOpts))
	cmd.AddCommand(newFixtureWriteCommand(rootOpts))

	return cmd
}

func newFixtureServeCommand(rootOpts *RootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the fixture over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			listener, err := net.Listen("tcp", addr)
			if err != nil {
				return WrapExitError(ExitCommandError, "listening", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Serving fixture on http://%s/\n", listener.Addr())

			return serveUntilDone(cmd, rootOpts, listener, fixture.Handler())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "localhost:8000", "listen address")

	return cmd
}

func newFixtureWriteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "write <dir>",
		Short: "Write the fixture files to a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := fixture.Dir(args[0]); err != nil {
				return WrapExitError(ExitCommandError, "writing fixture", err)
			}
			rootOpts.Logger.Debug("Wrote fixture", "dir", args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Fixture written to %s\n", args[0])
			return nil
		},
	}
}
