package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hityaml/packages/core/parser"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file|directory|glob>...",
	Short: "Validate YAML test files without running them",
	Long: `Load YAML test files and report syntax and schema errors without
sending any request. Includes, merge keys, request keys and variable
tags are all checked.

Examples:
  hityaml validate api.yaml
  hityaml validate ./tests/`,
	Args: minArgs(1),
	RunE: validateCommand,
}

func validateCommand(cmd *cobra.Command, args []string) error {
	files, err := expandPatterns(args)
	if err != nil {
		return usageError(err)
	}

	var firstErr error
	for _, file := range files {
		suite, err := parser.ParseFile(file)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error in %s: %v\n", file, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s (%d groups, %d requests, %d variables)\n",
			file, len(suite.Groups), suite.RequestCount(), suite.Cells.Len())
		for _, w := range suite.Warnings {
			fmt.Fprintf(cmd.OutOrStdout(), "  warning: %s\n", w)
		}
	}

	if firstErr != nil {
		return exitWith(ExitParseError, nil)
	}
	return nil
}
