package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/courier/packages/core/config"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Create a profile and an example collection",
	Long: `Initialize a courier project.

This creates:
  - .courier.yaml  - profile with client defaults and environments
  - api.yaml       - example request collection

Examples:
  courier init
  courier init ./api-tests --force`,
	Args: requireArgs(cobra.MaximumNArgs(1)),
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
}

const exampleCollection = `# Requests run in dependency order. Values captured by a named request
# are available to later ones as {{name.variable}}.
variables:
  resource: widgets

requests:
  - name: health
    description: Check that the API is up
    tags: [smoke]
    url: "{{baseUrl}}/health"
    assert:
      - status == 200

  - name: create
    tags: [crud]
    url: "{{baseUrl}}/{{resource}}"
    json:
      name: Test widget
      description: Created by courier
    assert:
      - status == 201
      - body.id exists
      - body.name == "Test widget"
    capture:
      - id=body:id

  - name: fetch
    tags: [crud]
    depends: [create]
    url: "{{baseUrl}}/{{resource}}/{{create.id}}"
    retry: 2
    retryOn: [502, 503]
    assert:
      - status == 200
      - body.id exists
`

func initCommand(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
		if err := os.MkdirAll(dir, 0755); err != nil {
			return withExit(ExitConfigError, err)
		}
	}

	profilePath := filepath.Join(dir, config.ConfigFilenames[0])
	examplePath := filepath.Join(dir, "api.yaml")

	if !forceInit {
		for _, f := range []string{profilePath, examplePath} {
			if _, err := os.Stat(f); err == nil {
				return withExit(ExitUsageError, fmt.Errorf("file already exists: %s (use --force to overwrite)", f))
			}
		}
	}

	profile := config.DefaultConfig()
	profile.Headers = map[string]string{"User-Agent": "courier/" + version}
	profile.Environments = map[string]map[string]any{
		"dev":     {"baseUrl": "http://localhost:3000"},
		"staging": {"baseUrl": "https://staging.api.example.com"},
		"prod":    {"baseUrl": "https://api.example.com"},
	}
	if err := profile.SaveConfig(profilePath); err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", profilePath)

	if err := os.WriteFile(examplePath, []byte(exampleCollection), 0644); err != nil {
		return fmt.Errorf("failed to create example collection: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", examplePath)

	fmt.Fprintf(cmd.OutOrStdout(), "\nRun 'courier run %s' to execute the example requests.\n", examplePath)
	return nil
}
