package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/courier/packages/core/parser"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file|directory>...",
	Short: "Check collections without sending requests",
	Long: `Parse collection files and report syntax, assertion, capture and
dependency errors without sending anything.

Examples:
  courier validate api.yaml
  courier validate ./collections/`,
	Args: requireArgs(cobra.MinimumNArgs(1)),
	RunE: validateCommand,
}

func validateCommand(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return withExit(ExitUsageError, err)
	}
	if len(files) == 0 {
		return withExit(ExitUsageError, fmt.Errorf("no collection files found"))
	}

	invalid := 0
	for _, path := range files {
		if _, err := parser.ParseFile(path); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			invalid++
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s\n", path)
	}

	if invalid > 0 {
		return withExit(ExitParseError, fmt.Errorf("%d of %d files invalid", invalid, len(files)))
	}
	return nil
}
