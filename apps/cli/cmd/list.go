package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/courier/packages/core/parser"
)

var listCmd = &cobra.Command{
	Use:   "list <file|directory>...",
	Short: "List the requests in collections",
	Long: `List the requests defined in collection files.

Examples:
  courier list api.yaml
  courier list ./collections/`,
	Args: requireArgs(cobra.MinimumNArgs(1)),
	RunE: listCommand,
}

func listCommand(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return withExit(ExitUsageError, err)
	}
	if len(files) == 0 {
		return withExit(ExitUsageError, fmt.Errorf("no collection files found"))
	}

	failed := false
	for _, path := range files {
		f, err := parser.ParseFile(path)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error parsing %s: %v\n", path, err)
			failed = true
			continue
		}

		fmt.Fprintf(cmd.OutOrStdout(), "\n%s:\n", path)
		for _, req := range f.Requests {
			name := req.Name
			if name == "" {
				name = "(unnamed)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  - %s  %s %s\n", name, req.Method, req.URL)
			if len(req.Tags) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "    tags: %s\n", strings.Join(req.Tags, ", "))
			}
			if len(req.Depends) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "    depends: %s\n", strings.Join(req.Depends, ", "))
			}
		}
	}

	if failed {
		return withExit(ExitParseError, nil)
	}
	return nil
}
