package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pos-qa/internal/runner"
	"pos-qa/internal/scenario"
)

type ScenariosOptions struct {
	*RootOptions
	Extended    bool
	IncludeTags string
	ExcludeTags string
}

// NewScenariosCommand prints the execution plan without contacting a backend.
func NewScenariosCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScenariosOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "scenarios",
		Short:         "Print the scenario plan in execution order",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := runner.Plan(scenario.Catalogue(opts.Extended), runner.Options{
				IncludeTags: splitCSV(opts.IncludeTags),
				ExcludeTags: splitCSV(opts.ExcludeTags),
			})
			if err != nil {
				return WrapExitError(ExitFailure, "plan", err)
			}
			w := cmd.OutOrStdout()
			for i, sc := range plan {
				fmt.Fprintf(w, "%2d. %s [%s]", i+1, sc.Name, strings.Join(sc.Tags, ","))
				if len(sc.Requires) > 0 {
					fmt.Fprintf(w, " requires: %s", strings.Join(sc.Requires, ", "))
				}
				fmt.Fprintln(w)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.Extended, "extended", false, "include the extended scenarios")
	cmd.Flags().StringVar(&opts.IncludeTags, "include-tags", "", "comma-separated tags to include (OR semantics)")
	cmd.Flags().StringVar(&opts.ExcludeTags, "exclude-tags", "", "comma-separated tags to exclude (OR semantics)")
	return cmd
}
