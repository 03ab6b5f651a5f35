package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/storycheck/storycheck/internal/harness"
)

// NewScenariosCommand creates the scenarios command, which lists the
// scenarios in the active registry.
func NewScenariosCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scenarios",
		Short: "List available scenarios",
		RunE: func(cmd *cobra.Command, args []string) error {
			var scenarios []harness.Scenario
			if opts.Registry != "" {
				loaded, err := harness.LoadRegistry(opts.Registry)
				if err != nil {
					return WrapExitError(ExitCommandError, "load scenario registry", err)
				}
				scenarios = loaded
			} else {
				scenarios = harness.BuiltinScenarios()
			}
			return printScenarios(cmd.OutOrStdout(), opts.Format, scenarios)
		},
	}
}

func printScenarios(w io.Writer, format string, scenarios []harness.Scenario) error {
	if format == "json" {
		type listed struct {
			Name            string `json:"name"`
			Description     string `json:"description"`
			ExpectedStories int    `json:"expected_stories"`
			SourceDir       string `json:"source_dir"`
		}
		out := make([]listed, 0, len(scenarios))
		for _, s := range scenarios {
			out = append(out, listed{
				Name:            s.Name,
				Description:     s.Description,
				ExpectedStories: s.ExpectedStories,
				SourceDir:       s.SourceDir,
			})
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	for _, s := range scenarios {
		fmt.Fprintf(w, "%s\t%d stories\t%s\n", s.Name, s.ExpectedStories, s.Description)
	}
	return nil
}
