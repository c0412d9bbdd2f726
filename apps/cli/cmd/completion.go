package cmd

import (
	"github.com/spf13/cobra"
)

var completionNoDescFlag bool

var completionCmd = &cobra.Command{
	Use:   "completion <bash|zsh|fish|powershell>",
	Short: "Generate shell completion scripts",
	Long: `Generate a completion script for the given shell and write it to stdout.

Test file arguments of exec, run, validate and list complete to *.yaml and
*.yml files.

  source <(hityaml completion bash)
  hityaml completion zsh > "${fpath[1]}/_hityaml"
  hityaml completion fish | source`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, out := cmd.Root(), cmd.OutOrStdout()
		desc := !completionNoDescFlag
		switch args[0] {
		case "bash":
			return root.GenBashCompletionV2(out, desc)
		case "zsh":
			if desc {
				return root.GenZshCompletion(out)
			}
			return root.GenZshCompletionNoDesc(out)
		case "fish":
			return root.GenFishCompletion(out, desc)
		default:
			if desc {
				return root.GenPowerShellCompletionWithDesc(out)
			}
			return root.GenPowerShellCompletion(out)
		}
	},
}

// completeSuiteFiles offers YAML files and directories for test file
// arguments.
func completeSuiteFiles(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return []string{"yaml", "yml"}, cobra.ShellCompDirectiveFilterFileExt
}

func init() {
	completionCmd.Flags().BoolVar(&completionNoDescFlag, "no-descriptions", false, "Leave command and flag descriptions out of completions")

	for _, c := range []*cobra.Command{execCmd, runCmd, validateCmd, listCmd} {
		c.ValidArgsFunction = completeSuiteFiles
	}
	rootCmd.AddCommand(completionCmd)
}
