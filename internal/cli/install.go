package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/networkteam/pageprobe/driver/pwdriver"
)

// NewInstallCommand creates the install command.
func NewInstallCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Install the Playwright driver and Chromium",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rootOpts.Logger.Info("Installing Playwright driver and Chromium")
			if err := pwdriver.Install(); err != nil {
				return WrapExitError(ExitCommandError, "installing playwright", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Playwright and Chromium installed")
			return nil
		},
	}
}
