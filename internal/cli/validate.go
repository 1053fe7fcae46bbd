package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/networkteam/pageprobe/scenario"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [file|dir]...",
		Short: "Validate scenario files without running them",
		Long: `Parse and validate scenario files without launching a browser.

Unknown fields, unknown actions and missing step parameters are reported.
Without arguments the builtin scenarios are validated.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, refs []string, cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	if len(refs) == 0 {
		refs = scenario.List()
	}

	invalid := 0
	count := 0
	for _, ref := range refs {
		scenarios, err := scenario.Load(ref)
		if err != nil {
			invalid++
			fmt.Fprintf(out, "✗ %s\n    %s\n", ref, err)
			continue
		}
		for _, sc := range scenarios {
			count++
			opts.Logger.Debug("Validated scenario", "scenario", sc.Name, "source", sc.Source, "steps", len(sc.Steps))
			fmt.Fprintf(out, "✓ %s (%s)\n", sc.Name, sc.Source)
		}
	}

	if invalid > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d invalid scenario source(s)", invalid))
	}
	fmt.Fprintf(out, "\n%d scenario(s) valid\n", count)
	return nil
}
