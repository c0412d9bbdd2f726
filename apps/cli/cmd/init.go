package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hityaml/packages/core/config"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new hityaml project",
	Long: `Initialize a new hityaml project in the current directory.

This creates:
  - .hityaml.config.json - Configuration file with named base URIs
  - example.yaml         - Example test file

Examples:
  hityaml init
  hityaml init --force`,
	Args: cobra.NoArgs,
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
}

const exampleSpec = `baseUri:
  default: http://localhost:3000
  staging: https://staging.api.example.com

tests:
  health:
    GET /health:
      response:
        status: 200

  resources:
    POST /resources:
      body:
        name: Test Resource
        description: Created by hityaml
      response:
        status: 201
        content-type: application/json
        body:
          matches:
            name: Test Resource
          take:
            id: !var resourceId

    GET /resources/search:
      queryParameters:
        id: !var resourceId
      response:
        status: 200
        body:
          matches:
            "[0].id": !var resourceId
`

func initCommand(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	configFile := filepath.Join(cwd, config.ConfigFilenames[0])
	exampleFile := filepath.Join(cwd, "example.yaml")

	if !forceInit {
		for _, f := range []string{configFile, exampleFile} {
			if _, err := os.Stat(f); err == nil {
				return usageError(fmt.Errorf("file already exists: %s (use --force to overwrite)", f))
			}
		}
	}

	cfg := config.DefaultConfig()
	cfg.Headers = map[string]string{
		"User-Agent": "hityaml/" + version,
	}
	cfg.URIs = map[string]string{
		"local": "http://localhost:3000",
	}
	if err := cfg.SaveConfig(configFile); err != nil {
		return exitWith(ExitConfigError, fmt.Errorf("failed to create config file: %w", err))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	if err := os.WriteFile(exampleFile, []byte(exampleSpec), 0644); err != nil {
		return fmt.Errorf("failed to create example file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", exampleFile)

	fmt.Fprintf(cmd.OutOrStdout(), "\nhityaml project initialized!\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Run 'hityaml run example.yaml' to execute the example tests.\n")

	return nil
}
