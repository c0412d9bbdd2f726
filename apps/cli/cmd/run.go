package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hityaml/packages/core/runner"
)

var runCmd = &cobra.Command{
	Use:   "run [--uri U] <file|directory|glob>... [-- exec flags...]",
	Short: "Run API tests from YAML files, one process per file",
	Long: `Run API tests from YAML files. Every matched file is run by a
separate "hityaml exec" process, one after another. Arguments after --
are passed to each exec unchanged. The first file that fails stops the
run and its exit code becomes the exit code of run.

Examples:
  hityaml run api.yaml
  hityaml run ./tests/
  hityaml run 'tests/**/*.yaml' --uri staging
  hityaml run tests/*.yaml -- --bail -o junit
  hityaml run ./tests/ --watch`,
	Args: minArgs(1),
	RunE: runCommand,
}

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond
)

var (
	runURIFlag string
	watchFlag  bool
)

func init() {
	runCmd.Flags().StringVar(&runURIFlag, "uri", getEnvString("HITYAML_URI", runner.DefaultURI), "Base URI name or absolute URL passed to every file (env: HITYAML_URI)")
	runCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch files for changes and re-run tests")
}

// spawnFunc runs one file and returns the exit code it finished with.
type spawnFunc func(ctx context.Context, file string, args []string) (int, error)

// launcher runs files sequentially through spawn.
type launcher struct {
	spawn spawnFunc
	out   io.Writer
}

// run stops at the first file that does not exit cleanly and returns its code.
func (l *launcher) run(ctx context.Context, files []string, args []string) (int, error) {
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return ExitTestFailure, err
		}
		code, err := l.spawn(ctx, file, args)
		if err != nil {
			return ExitTestFailure, fmt.Errorf("running %s: %w", file, err)
		}
		if code != ExitSuccess {
			logger.Debug("file failed, stopping", "file", file, "code", code)
			return code, nil
		}
	}
	return ExitSuccess, nil
}

// selfSpawn re-executes the current binary as "exec <file>".
func selfSpawn(uri string, stdout, stderr io.Writer) (spawnFunc, error) {
	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locating hityaml executable: %w", err)
	}

	return func(ctx context.Context, file string, args []string) (int, error) {
		argv := append([]string{"exec", file}, inheritedFlags()...)
		argv = append(argv, args...)

		c := exec.CommandContext(ctx, self, argv...)
		c.Env = append(os.Environ(), "HITYAML_URI="+uri)
		c.Stdin = os.Stdin
		c.Stdout = stdout
		c.Stderr = stderr

		logger.Debug("spawning", "file", file, "args", argv)
		err := c.Run()
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		if err != nil {
			return ExitTestFailure, err
		}
		return ExitSuccess, nil
	}, nil
}

// inheritedFlags forwards root flags given to run on to exec.
func inheritedFlags() []string {
	var flags []string
	if verboseFlag {
		flags = append(flags, "--verbose")
	}
	if configFlag != "" {
		flags = append(flags, "--config", configFlag)
	}
	return flags
}

func runCommand(cmd *cobra.Command, args []string) error {
	patterns, passthrough := args, []string(nil)
	if dash := cmd.ArgsLenAtDash(); dash >= 0 {
		patterns, passthrough = args[:dash], args[dash:]
	}
	if len(patterns) == 0 {
		return usageError(errors.New("no files given"))
	}

	files, err := expandPatterns(patterns)
	if err != nil {
		return usageError(err)
	}

	spawn, err := selfSpawn(runURIFlag, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err != nil {
		return exitWith(ExitConfigError, err)
	}
	l := &launcher{spawn: spawn, out: cmd.OutOrStdout()}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code, err := l.run(ctx, files, passthrough)
	if !watchFlag {
		if err != nil || code != ExitSuccess {
			return exitWith(code, err)
		}
		return nil
	}
	if err != nil && ctx.Err() == nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
	}

	return l.watch(ctx, patterns, passthrough)
}

// watch re-expands patterns and re-runs every file after a spec file changes.
func (l *launcher) watch(ctx context.Context, patterns, args []string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	files, err := expandPatterns(patterns)
	if err != nil {
		return usageError(err)
	}
	for _, dir := range watchDirs(patterns, files) {
		if err := watcher.Add(dir); err != nil {
			logger.Warn("cannot watch directory", "dir", dir, "error", err)
		}
	}

	fmt.Fprintf(l.out, "\nWatching for changes... (press Ctrl+C to stop)\n\n")

	rerun := make(chan string, 1)
	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) || !isSpecFile(event.Name) {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			name := event.Name
			debounceTimer = time.AfterFunc(WatchDebounceDelay, func() {
				select {
				case rerun <- name:
				default:
				}
			})

		case name := <-rerun:
			fmt.Fprintf(l.out, "\n\nFile changed: %s\nRe-running tests...\n\n", name)
			files, err := expandPatterns(patterns)
			if err != nil {
				logger.Warn("no files to run", "error", err)
				continue
			}
			if code, err := l.run(ctx, files, args); err != nil && ctx.Err() == nil {
				logger.Warn("run failed", "error", err)
			} else if code != ExitSuccess {
				logger.Debug("run finished with failures", "code", code)
			}
			fmt.Fprintf(l.out, "\nWatching for changes... (press Ctrl+C to stop)\n")

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", "error", err)
		}
	}
}

// watchDirs returns the directories holding files plus every directory
// below a directory argument.
func watchDirs(patterns, files []string) []string {
	seen := make(map[string]bool)
	var dirs []string
	add := func(dir string) {
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}

	for _, file := range files {
		add(filepath.Dir(file))
	}
	for _, p := range patterns {
		info, err := os.Stat(p)
		if err != nil || !info.IsDir() {
			continue
		}
		_ = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err == nil && d.IsDir() {
				add(path)
			}
			return nil
		})
	}
	return dirs
}

// expandPatterns turns files, directories and glob patterns into a list of
// spec files. Directories contribute every *.yaml and *.yml below them.
// Order follows the patterns; duplicates are dropped.
func expandPatterns(patterns []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	add := func(path string) {
		path = filepath.Clean(path)
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, pattern := range patterns {
		matches := []string{pattern}
		if hasMeta(pattern) {
			var err error
			matches, err = glob(pattern)
			if err != nil {
				return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
			}
			if len(matches) == 0 {
				return nil, fmt.Errorf("no files match %q", pattern)
			}
		}

		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil {
				return nil, fmt.Errorf("cannot access %s: %w", match, err)
			}
			if !info.IsDir() {
				add(match)
				continue
			}
			err = filepath.WalkDir(match, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if !d.IsDir() && isSpecFile(path) {
					add(path)
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
		}
	}

	if len(files) == 0 {
		return nil, errors.New("no .yaml or .yml files found")
	}
	return files, nil
}

func hasMeta(pattern string) bool {
	return strings.ContainsAny(pattern, `*?[`)
}

// glob is filepath.Glob with "**" matching any number of directories.
func glob(pattern string) ([]string, error) {
	if !strings.Contains(pattern, "**") {
		return filepath.Glob(pattern)
	}

	root, rest, _ := strings.Cut(pattern, "**")
	root = filepath.Clean(root)
	if root == "" {
		root = "."
	}
	rest = strings.TrimPrefix(rest, string(filepath.Separator))

	var matches []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rest == "" {
			matches = append(matches, path)
			return nil
		}
		// rest matches the tail of the relative path, at any depth
		parts := strings.Split(rel, string(filepath.Separator))
		for i := range parts {
			ok, err := filepath.Match(rest, filepath.Join(parts[i:]...))
			if err != nil {
				return err
			}
			if ok {
				matches = append(matches, path)
				return nil
			}
		}
		return nil
	})
	return matches, err
}

func isSpecFile(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".yaml" || ext == ".yml"
}
