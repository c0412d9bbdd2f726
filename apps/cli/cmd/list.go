package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hityaml/packages/core/parser"
)

var listCmd = &cobra.Command{
	Use:   "list <file|directory|glob>...",
	Short: "List the groups and requests of YAML test files",
	Long: `List every group and request of YAML test files in the order
they run.

Examples:
  hityaml list api.yaml
  hityaml list ./tests/`,
	Args: minArgs(1),
	RunE: listCommand,
}

func listCommand(cmd *cobra.Command, args []string) error {
	files, err := expandPatterns(args)
	if err != nil {
		return usageError(err)
	}

	failed := false
	for _, file := range files {
		suite, err := parser.ParseFile(file)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error parsing %s: %v\n", file, err)
			failed = true
			continue
		}

		fmt.Fprintf(cmd.OutOrStdout(), "\n%s:\n", file)
		for _, group := range suite.Groups {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", group.Name)
			for _, req := range group.Requests {
				fmt.Fprintf(cmd.OutOrStdout(), "    - %s\n", req.Key)
				if verboseFlag {
					listTakes(cmd, suite, req)
				}
			}
		}
	}

	if failed {
		return exitWith(ExitParseError, nil)
	}
	return nil
}

func listTakes(cmd *cobra.Command, suite *parser.Suite, req *parser.Request) {
	if req.Response == nil || req.Response.Body == nil {
		return
	}
	for _, take := range req.Response.Body.Take {
		names := make([]string, 0, len(take.Targets))
		for _, ref := range take.Targets {
			names = append(names, suite.Cells.Name(ref))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "        take %s -> %s\n", take.Path, strings.Join(names, ", "))
	}
}
