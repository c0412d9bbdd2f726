package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	verboseFlag bool
	configFlag  string

	logger = slog.New(slog.DiscardHandler)
)

var rootCmd = &cobra.Command{
	Use:   "hityaml",
	Short: "YAML API tests. One request after another.",
	Long: `hityaml runs HTTP API tests written as YAML documents. Requests run
in document order, responses are checked against their expectations and
values taken from one response feed the requests that follow.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = newLogger(cmd.ErrOrStderr(), verboseFlag)
	},
}

func Execute(v, bt string) {
	version = v
	buildTime = bt
	os.Exit(execute(rootCmd, os.Args[1:]))
}

// execute runs root with args and maps the outcome to a process exit code.
func execute(root *cobra.Command, args []string) int {
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		return ExitSuccess
	}

	var exit *exitError
	if errors.As(err, &exit) {
		if exit.err != nil {
			fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", exit.err)
		}
		return exit.code
	}

	fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", err)
	return ExitUsageError
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", getEnvBool("HITYAML_VERBOSE", false), "Verbose output and debug logging (env: HITYAML_VERBOSE)")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", getEnvString("HITYAML_CONFIG", ""), "Path to config file (env: HITYAML_CONFIG)")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError(err)
	})

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
}
