package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/networkteam/pageprobe/scenario"
)

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	var showSource string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List builtin scenarios",
		Long: `List the builtin scenarios with their descriptions.

Use --show to print the YAML of one scenario, e.g. as a starting point
for a custom scenario file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showSource != "" {
				data, err := scenario.BuiltinSource(showSource)
				if err != nil {
					return WrapExitError(ExitCommandError, "showing scenario", err)
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}

			scenarios, err := scenario.Builtins()
			if err != nil {
				return WrapExitError(ExitCommandError, "loading builtin scenarios", err)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, sc := range scenarios {
				fmt.Fprintf(tw, "%s\t%s\n", sc.Name, sc.Description)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&showSource, "show", "", "print the YAML of the named builtin scenario")

	return cmd
}
