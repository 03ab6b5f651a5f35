// Package cli implements the storycheck command line interface.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	FixtureDir string // golden dataset root
	SourcesDir string // crawl-target declaration root
	Registry   string // optional scenario registry file overriding the builtin
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the storycheck CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "storycheck",
		Short: "Crawl regression verification",
		Long:  "Verifies that a crawl of a fixture-backed web source reproduces a previously recorded set of stories.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.FixtureDir, "fixtures", "testdata/fixtures", "golden dataset root directory")
	cmd.PersistentFlags().StringVar(&opts.SourcesDir, "sources", "sources", "crawl-target declaration root directory")
	cmd.PersistentFlags().StringVar(&opts.Registry, "registry", "", "scenario registry file (defaults to the builtin registry)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewScenariosCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
