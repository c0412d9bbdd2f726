package cmd

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hityaml/packages/core/config"
	"github.com/abdul-hamid-achik/hityaml/packages/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded runs",
	Long: `List runs recorded with --history, newest first. With --run the
results of a single run are shown instead.

Examples:
  hityaml history --db runs.db
  hityaml history --db runs.db --file api.yaml -n 5
  hityaml history --db runs.db --run 2b1f0c3e-...`,
	Args: cobra.NoArgs,
	RunE: historyCommand,
}

var (
	historyDBFlag    string
	historyFileFlag  string
	historyLimitFlag int
	historyRunFlag   string
)

func init() {
	historyCmd.Flags().StringVar(&historyDBFlag, "db", getEnvString("HITYAML_HISTORY", ""), "History database (env: HITYAML_HISTORY)")
	historyCmd.Flags().StringVar(&historyFileFlag, "file", "", "Only runs of this file")
	historyCmd.Flags().IntVarP(&historyLimitFlag, "limit", "n", 20, "Number of runs to show")
	historyCmd.Flags().StringVar(&historyRunFlag, "run", "", "Show the results of one run")
}

func historyCommand(cmd *cobra.Command, args []string) error {
	path := historyDBFlag
	if path == "" {
		fileConfig, err := config.LoadConfig(configFlag)
		if err != nil {
			return exitWith(ExitConfigError, fmt.Errorf("loading config: %w", err))
		}
		path = fileConfig.History
	}
	if path == "" {
		return usageError(errors.New("no history database: use --db or set \"history\" in the config file"))
	}

	store, err := history.Open(path)
	if err != nil {
		return exitWith(ExitConfigError, err)
	}
	defer store.Close()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer w.Flush()

	if historyRunFlag != "" {
		entries, err := store.Entries(cmd.Context(), historyRunFlag)
		if err != nil {
			return exitWith(ExitConfigError, err)
		}
		if len(entries) == 0 {
			return usageError(fmt.Errorf("no results recorded for run %q", historyRunFlag))
		}
		fmt.Fprintln(w, "GROUP\tREQUEST\tSTATE\tSTATUS\tTIME\tERROR")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n", e.Group, e.Name, e.State, e.Status, e.Duration, firstLine(e.Error))
		}
		return nil
	}

	runs, err := store.Recent(cmd.Context(), historyFileFlag, historyLimitFlag)
	if err != nil {
		return exitWith(ExitConfigError, err)
	}
	fmt.Fprintln(w, "RUN\tFILE\tSTARTED\tPASSED\tFAILED\tSKIPPED\tTIME")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n", r.ID, r.File, humanize.Time(r.StartedAt),
			r.Passed, r.Failed, r.Skipped, r.Duration.Round(time.Millisecond))
	}
	return nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
