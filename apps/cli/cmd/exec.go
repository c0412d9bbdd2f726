package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hityaml/packages/core/config"
	"github.com/abdul-hamid-achik/hityaml/packages/core/runner"
	"github.com/abdul-hamid-achik/hityaml/packages/history"
	"github.com/abdul-hamid-achik/hityaml/packages/http"
	"github.com/abdul-hamid-achik/hityaml/packages/output"
)

var execCmd = &cobra.Command{
	Use:   "exec <file>",
	Short: "Run the tests of a single YAML file",
	Long: `Run every request of one YAML test file in document order.

This is the command "hityaml run" starts once per matched file.

Examples:
  hityaml exec api.yaml
  hityaml exec api.yaml --uri staging
  hityaml exec api.yaml --uri http://localhost:8080 --bail
  hityaml exec api.yaml -o junit --output-file report.xml
  hityaml exec api.yaml --wait-for http://localhost:8080/health`,
	Args: exactArgs(1),
	RunE: execCommand,
}

var (
	uriFlag         string
	nameFlag        string
	bailFlag        bool
	timeoutFlag     string
	rateFlag        float64
	proxyFlag       string
	insecureFlag    bool
	headerFlags     []string
	noColorFlag     bool
	outputFlag      string
	outputFileFlag  string
	historyFlag     string
	waitForFlag     string
	waitStatusFlag  int
	waitTimeoutFlag string
)

func init() {
	execCmd.Flags().StringVar(&uriFlag, "uri", getEnvString("HITYAML_URI", runner.DefaultURI), "Base URI name or absolute URL (env: HITYAML_URI)")
	execCmd.Flags().StringVarP(&nameFlag, "name", "n", getEnvString("HITYAML_NAME", ""), "Run only entries matching name pattern (env: HITYAML_NAME)")

	// Output flags
	execCmd.Flags().BoolVar(&noColorFlag, "no-color", getEnvBool("HITYAML_NO_COLOR", false), "Disable colored output (env: HITYAML_NO_COLOR)")
	execCmd.Flags().StringVarP(&outputFlag, "output", "o", getEnvString("HITYAML_OUTPUT", ""), "Output formats, comma-separated: console, json, junit, tap (env: HITYAML_OUTPUT)")
	execCmd.Flags().StringVar(&outputFileFlag, "output-file", getEnvString("HITYAML_OUTPUT_FILE", ""), "Write output to file (default: stdout) (env: HITYAML_OUTPUT_FILE)")
	execCmd.Flags().StringVar(&historyFlag, "history", getEnvString("HITYAML_HISTORY", ""), "Record the run in this SQLite database (env: HITYAML_HISTORY)")

	// Execution flags
	execCmd.Flags().BoolVar(&bailFlag, "bail", getEnvBool("HITYAML_BAIL", false), "Stop on first failure (env: HITYAML_BAIL)")
	execCmd.Flags().StringVar(&timeoutFlag, "timeout", getEnvString("HITYAML_TIMEOUT", ""), "Request timeout, e.g. 30s or 1m (env: HITYAML_TIMEOUT)")
	execCmd.Flags().Float64Var(&rateFlag, "rate", getEnvFloat("HITYAML_RATE", 0), "Maximum requests per second, 0 for unlimited (env: HITYAML_RATE)")
	execCmd.Flags().StringVar(&waitForFlag, "wait-for", getEnvString("HITYAML_WAIT_FOR", ""), "Poll this URL until it is ready before running (env: HITYAML_WAIT_FOR)")
	execCmd.Flags().IntVar(&waitStatusFlag, "wait-status", getEnvInt("HITYAML_WAIT_STATUS", 200), "Status code --wait-for expects (env: HITYAML_WAIT_STATUS)")
	execCmd.Flags().StringVar(&waitTimeoutFlag, "wait-timeout", getEnvString("HITYAML_WAIT_TIMEOUT", "30s"), "How long --wait-for polls (env: HITYAML_WAIT_TIMEOUT)")

	// Network flags
	execCmd.Flags().StringVar(&proxyFlag, "proxy", getEnvString("HITYAML_PROXY", ""), "Proxy URL for HTTP requests (env: HITYAML_PROXY)")
	execCmd.Flags().BoolVarP(&insecureFlag, "insecure", "k", getEnvBool("HITYAML_INSECURE", false), "Disable SSL certificate validation (env: HITYAML_INSECURE)")
	execCmd.Flags().StringArrayVarP(&headerFlags, "header", "H", nil, "Default request header \"Name: value\", repeatable")
}

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func execCommand(cmd *cobra.Command, args []string) error {
	file := args[0]

	fileConfig, err := config.LoadConfig(configFlag)
	if err != nil {
		return exitWith(ExitConfigError, fmt.Errorf("loading config: %w", err))
	}

	cfg, err := buildRunnerConfig(fileConfig)
	if err != nil {
		return exitWith(ExitUsageError, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if waitForFlag != "" {
		if err := waitForService(ctx); err != nil {
			return exitWith(ExitNetworkError, err)
		}
	}

	reporters := reporterNames(fileConfig)
	formatters, closeOutputs, err := buildFormatters(cmd, reporters, fileConfig)
	if err != nil {
		return exitWith(ExitConfigError, err)
	}
	defer closeOutputs()

	r := runner.NewRunner(cfg, runner.WithLogger(logger))
	result, err := r.RunFile(ctx, file)
	if err != nil {
		return loadError(err)
	}

	for _, f := range formatters {
		f.FormatHeader(version)
		f.FormatResult(result)
		if flushable, ok := f.(output.Flushable); ok {
			if err := flushable.Flush(result.Duration); err != nil {
				return exitWith(ExitConfigError, fmt.Errorf("error writing output: %w", err))
			}
		}
	}

	if path := historyPath(fileConfig); path != "" {
		recordHistory(ctx, path, result)
	}

	if err := ctx.Err(); err != nil {
		return exitWith(ExitTestFailure, fmt.Errorf("run interrupted: %w", err))
	}
	if code := resultCode(result); code != ExitSuccess {
		return exitWith(code, nil)
	}
	return nil
}

// buildRunnerConfig layers CLI flags over the config file.
func buildRunnerConfig(fileConfig *config.Config) (*runner.Config, error) {
	timeout := fileConfig.TimeoutDuration()
	if timeoutFlag != "" {
		d, err := time.ParseDuration(timeoutFlag)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout value %q: %w (use format like 30s, 1m, 500ms)", timeoutFlag, err)
		}
		timeout = d
	}

	headers, err := parseHeaders(headerFlags)
	if err != nil {
		return nil, err
	}

	proxy := fileConfig.Proxy
	if proxyFlag != "" {
		proxy = proxyFlag
	}

	rate := fileConfig.Rate
	if rateFlag > 0 {
		rate = rateFlag
	}

	return &runner.Config{
		URI:            uriFlag,
		URIs:           fileConfig.URIs,
		Timeout:        timeout,
		FollowRedirect: fileConfig.GetFollowRedirects(),
		MaxRedirects:   fileConfig.MaxRedirects,
		ValidateSSL:    fileConfig.GetValidateSSL() && !insecureFlag,
		Proxy:          proxy,
		Headers:        mergeHeaders(fileConfig.Headers, headers),
		Bail:           bailFlag || fileConfig.GetBail(),
		NameFilter:     nameFlag,
		Rate:           rate,
	}, nil
}

func parseHeaders(values []string) (map[string]string, error) {
	headers := make(map[string]string, len(values))
	for _, v := range values {
		name, val, ok := strings.Cut(v, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q: expected \"Name: value\"", v)
		}
		headers[name] = strings.TrimSpace(val)
	}
	return headers, nil
}

func mergeHeaders(base, over map[string]string) map[string]string {
	if len(over) == 0 {
		return base
	}
	out := make(map[string]string, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}

func waitForService(ctx context.Context) error {
	timeout, err := time.ParseDuration(waitTimeoutFlag)
	if err != nil {
		return fmt.Errorf("invalid wait timeout %q: %w", waitTimeoutFlag, err)
	}
	return runner.WaitFor(ctx, runner.WaitConfig{
		URL:     waitForFlag,
		Status:  waitStatusFlag,
		Timeout: timeout,
	}, logger)
}

func reporterNames(fileConfig *config.Config) []string {
	if outputFlag == "" {
		if len(fileConfig.Reporters) > 0 {
			return fileConfig.Reporters
		}
		return []string{"console"}
	}
	var names []string
	for _, name := range strings.Split(outputFlag, ",") {
		if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
			names = append(names, name)
		}
	}
	return names
}

var reportExtensions = map[string]string{
	"json":  ".json",
	"junit": ".xml",
	"tap":   ".tap",
}

// buildFormatters creates one formatter per reporter. With a single
// reporter --output-file receives it; otherwise non-console reporters go
// to the configured output directory when one is set.
func buildFormatters(cmd *cobra.Command, names []string, fileConfig *config.Config) ([]output.Formatter, func(), error) {
	var files []*os.File
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}

	create := func(path string) (io.Writer, error) {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("cannot create output directory: %w", err)
			}
		}
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("cannot create output file: %w", err)
		}
		files = append(files, f)
		return f, nil
	}

	formatters := make([]output.Formatter, 0, len(names))
	for _, name := range names {
		w := cmd.OutOrStdout()
		switch {
		case outputFileFlag != "" && len(names) == 1:
			f, err := create(outputFileFlag)
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			w = f
		case name != "console" && fileConfig.OutputDir != "":
			f, err := create(filepath.Join(fileConfig.OutputDir, "hityaml-report"+reportExtensions[name]))
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			w = f
		}

		formatter, err := output.New(name, output.Options{
			Writer:  w,
			Verbose: verboseFlag || fileConfig.GetVerbose(),
			NoColor: noColorFlag || fileConfig.GetNoColor(),
		})
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		formatters = append(formatters, formatter)
	}
	return formatters, closeAll, nil
}

func historyPath(fileConfig *config.Config) string {
	if historyFlag != "" {
		return historyFlag
	}
	return fileConfig.History
}

// recordHistory stores result; failing to record never fails the run.
func recordHistory(ctx context.Context, path string, result *runner.RunResult) {
	store, err := history.Open(path)
	if err != nil {
		logger.Warn("history unavailable", "path", path, "error", err)
		return
	}
	defer store.Close()

	if err := store.Record(context.WithoutCancel(ctx), result); err != nil {
		logger.Warn("recording run failed", "path", path, "run", result.ID, "error", err)
	}
}

// resultCode maps a finished run to an exit code. A run whose failures are
// all transport errors reports a network error.
func resultCode(result *runner.RunResult) int {
	if result.OK() {
		return ExitSuccess
	}
	for _, r := range result.Results {
		if r.Skipped || r.Passed {
			continue
		}
		var transportErr *http.TransportError
		if !errors.As(r.Error, &transportErr) {
			return ExitTestFailure
		}
	}
	return ExitNetworkError
}
