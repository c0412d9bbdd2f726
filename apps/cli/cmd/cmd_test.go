package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/hityaml/packages/core/config"
	"github.com/abdul-hamid-achik/hityaml/packages/core/runner"
	hyhttp "github.com/abdul-hamid-achik/hityaml/packages/http"
	"github.com/abdul-hamid-achik/hityaml/packages/output"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// resetFlags restores every flag of c and its children to its default.
func resetFlags(t *testing.T, c *cobra.Command) {
	t.Helper()
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, child := range c.Commands() {
		resetFlags(t, child)
	}
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	resetFlags(t, rootCmd)
	t.Cleanup(func() { resetFlags(t, rootCmd) })

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})

	code := execute(rootCmd, args)
	return code, stdout.String(), stderr.String()
}

func TestExpandPatterns(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.yaml", "tests: {}")
	b := writeFile(t, dir, "nested/b.yml", "tests: {}")
	c := writeFile(t, dir, "nested/deeper/c.yaml", "tests: {}")
	writeFile(t, dir, "nested/notes.txt", "ignored")

	t.Run("directory", func(t *testing.T) {
		files, err := expandPatterns([]string{dir})
		require.NoError(t, err)
		assert.Equal(t, []string{a, b, c}, files)
	})

	t.Run("glob", func(t *testing.T) {
		files, err := expandPatterns([]string{filepath.Join(dir, "*.yaml")})
		require.NoError(t, err)
		assert.Equal(t, []string{a}, files)
	})

	t.Run("double star", func(t *testing.T) {
		files, err := expandPatterns([]string{filepath.Join(dir, "nested", "**", "*.yaml")})
		require.NoError(t, err)
		assert.Equal(t, []string{c}, files)
	})

	t.Run("order kept and duplicates dropped", func(t *testing.T) {
		files, err := expandPatterns([]string{c, a, c})
		require.NoError(t, err)
		assert.Equal(t, []string{c, a}, files)
	})

	t.Run("no match", func(t *testing.T) {
		_, err := expandPatterns([]string{filepath.Join(dir, "*.json")})
		assert.ErrorContains(t, err, "no files match")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := expandPatterns([]string{filepath.Join(dir, "missing.yaml")})
		assert.ErrorContains(t, err, "cannot access")
	})
}

func TestLauncher_StopsAtFirstFailure(t *testing.T) {
	var calls []string
	l := &launcher{
		out: &bytes.Buffer{},
		spawn: func(ctx context.Context, file string, args []string) (int, error) {
			calls = append(calls, file)
			assert.Equal(t, []string{"--bail"}, args)
			if file == "b.yaml" {
				return ExitParseError, nil
			}
			return ExitSuccess, nil
		},
	}

	code, err := l.run(context.Background(), []string{"a.yaml", "b.yaml", "c.yaml"}, []string{"--bail"})
	require.NoError(t, err)
	assert.Equal(t, ExitParseError, code)
	assert.Equal(t, []string{"a.yaml", "b.yaml"}, calls)
}

func TestLauncher_AllPass(t *testing.T) {
	n := 0
	l := &launcher{
		out: &bytes.Buffer{},
		spawn: func(ctx context.Context, file string, args []string) (int, error) {
			n++
			return ExitSuccess, nil
		},
	}

	code, err := l.run(context.Background(), []string{"a.yaml", "b.yaml"}, nil)
	require.NoError(t, err)
	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, 2, n)
}

func TestLauncher_SpawnError(t *testing.T) {
	l := &launcher{
		out: &bytes.Buffer{},
		spawn: func(ctx context.Context, file string, args []string) (int, error) {
			return 0, errors.New("exec format error")
		},
	}

	code, err := l.run(context.Background(), []string{"a.yaml"}, nil)
	assert.ErrorContains(t, err, "running a.yaml")
	assert.Equal(t, ExitTestFailure, code)
}

func TestResultCode(t *testing.T) {
	transport := &hyhttp.TransportError{Method: "GET", URL: "http://x", Err: errors.New("refused")}

	tests := []struct {
		name   string
		result *runner.RunResult
		want   int
	}{
		{"all passed", &runner.RunResult{Passed: 2}, ExitSuccess},
		{
			"check failed",
			&runner.RunResult{Failed: 1, Results: []*runner.RequestResult{{Error: errors.New("expected status 200, got 500")}}},
			ExitTestFailure,
		},
		{
			"only transport failures",
			&runner.RunResult{Failed: 1, Results: []*runner.RequestResult{{Passed: true}, {Error: transport}}},
			ExitNetworkError,
		},
		{
			"mixed",
			&runner.RunResult{Failed: 2, Results: []*runner.RequestResult{{Error: transport}, {Error: errors.New("boom")}}},
			ExitTestFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resultCode(tt.result))
		})
	}
}

func TestParseHeaders(t *testing.T) {
	headers, err := parseHeaders([]string{"X-Api-Key: secret", "Accept:application/json"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"X-Api-Key": "secret", "Accept": "application/json"}, headers)

	_, err = parseHeaders([]string{"no-colon"})
	assert.ErrorContains(t, err, "invalid header")
}

func TestBuildRunnerConfig(t *testing.T) {
	resetFlags(t, rootCmd)
	t.Cleanup(func() { resetFlags(t, rootCmd) })

	fileConfig := config.DefaultConfig()
	fileConfig.Rate = 5
	fileConfig.Headers = map[string]string{"User-Agent": "cfg", "X-Team": "core"}
	fileConfig.URIs = map[string]string{"local": "http://localhost:1"}

	require.NoError(t, execCmd.Flags().Set("timeout", "2s"))
	require.NoError(t, execCmd.Flags().Set("header", "User-Agent: flag"))
	require.NoError(t, execCmd.Flags().Set("insecure", "true"))
	require.NoError(t, execCmd.Flags().Set("uri", "local"))

	cfg, err := buildRunnerConfig(fileConfig)
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.URI)
	assert.Equal(t, fileConfig.URIs, cfg.URIs)
	assert.Equal(t, "2s", cfg.Timeout.String())
	assert.False(t, cfg.ValidateSSL)
	assert.True(t, cfg.FollowRedirect)
	assert.Equal(t, 5.0, cfg.Rate)
	assert.Equal(t, map[string]string{"User-Agent": "flag", "X-Team": "core"}, cfg.Headers)

	require.NoError(t, execCmd.Flags().Set("timeout", "soon"))
	_, err = buildRunnerConfig(fileConfig)
	assert.ErrorContains(t, err, "invalid timeout")
}

func TestReporterNames(t *testing.T) {
	resetFlags(t, rootCmd)
	t.Cleanup(func() { resetFlags(t, rootCmd) })

	fileConfig := config.DefaultConfig()
	assert.Equal(t, []string{"console"}, reporterNames(fileConfig))

	fileConfig.Reporters = []string{"junit"}
	assert.Equal(t, []string{"junit"}, reporterNames(fileConfig))

	require.NoError(t, execCmd.Flags().Set("output", "Console, json"))
	assert.Equal(t, []string{"console", "json"}, reporterNames(fileConfig))
}

func TestExec_EndToEnd(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/login":
			_, _ = w.Write([]byte(`{"token":"t-1"}`))
		case "/me":
			if r.URL.Query().Get("token") != "t-1" {
				w.WriteHeader(http.StatusUnauthorized)
			}
			_, _ = w.Write([]byte(`{"name":"alice"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	dir := t.TempDir()
	spec := writeFile(t, dir, "api.yaml", `
tests:
  auth:
    POST /login:
      response:
        status: 200
        body:
          take:
            token: !var token
    GET /me:
      queryParameters:
        token: !var token
      response:
        status: 200
        body:
          matches:
            name: alice
`)

	code, stdout, stderr := runCLI(t, "exec", spec, "--uri", server.URL, "-o", "json", "--config", writeFile(t, dir, "cfg.json", `{}`))
	require.Equal(t, ExitSuccess, code, stderr)

	var out output.JSONOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, 2, out.Summary.Passed)
	require.Len(t, out.Tests, 2)
	assert.Equal(t, "POST /login", out.Tests[0].Name)
}

func TestExec_ExitCodes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	dir := t.TempDir()
	cfg := writeFile(t, dir, "cfg.json", `{}`)

	failing := writeFile(t, dir, "fail.yaml", `
tests:
  g:
    GET /x:
      response:
        status: 200
`)
	code, _, _ := runCLI(t, "exec", failing, "--uri", server.URL, "--config", cfg, "--no-color")
	assert.Equal(t, ExitTestFailure, code)

	broken := writeFile(t, dir, "broken.yaml", "tests:\n  g:\n    get /x: {}\n")
	code, _, stderr := runCLI(t, "exec", broken, "--uri", server.URL, "--config", cfg)
	assert.Equal(t, ExitParseError, code)
	assert.Contains(t, stderr, "broken.yaml")

	code, _, _ = runCLI(t, "exec", failing, "--uri", "nowhere", "--config", cfg)
	assert.Equal(t, ExitConfigError, code)

	code, _, _ = runCLI(t, "exec", failing, "--config", filepath.Join(dir, "missing.json"))
	assert.Equal(t, ExitConfigError, code)

	code, _, _ = runCLI(t, "exec")
	assert.Equal(t, ExitUsageError, code)

	code, _, _ = runCLI(t, "exec", failing, "--no-such-flag")
	assert.Equal(t, ExitUsageError, code)
}

func TestValidateAndList(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.yaml", `
baseUri: http://localhost
tests:
  users:
    GET /users:
      response:
        status: 200
    POST /users:
      response:
        body:
          take:
            id: !var userId
`)

	code, stdout, _ := runCLI(t, "validate", good)
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "Valid: "+good+" (1 groups, 2 requests, 1 variables)")

	code, stdout, _ = runCLI(t, "list", good, "-v")
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "  users\n    - GET /users\n    - POST /users\n")
	assert.Contains(t, stdout, "take id -> userId")

	bad := writeFile(t, dir, "bad.yaml", "tests: [1, 2]\n")
	code, _, stderr := runCLI(t, "validate", good, bad)
	assert.Equal(t, ExitParseError, code)
	assert.Contains(t, stderr, "Error in "+bad)
}

func TestHistoryCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	dir := t.TempDir()
	cfg := writeFile(t, dir, "cfg.json", `{}`)
	db := filepath.Join(dir, "runs.db")
	spec := writeFile(t, dir, "api.yaml", "tests:\n  g:\n    GET /ping: {}\n")

	code, _, stderr := runCLI(t, "exec", spec, "--uri", server.URL, "--config", cfg, "--history", db, "-o", "tap")
	require.Equal(t, ExitSuccess, code, stderr)

	code, stdout, _ := runCLI(t, "history", "--db", db)
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "RUN")
	assert.Contains(t, stdout, spec)

	code, _, _ = runCLI(t, "history", "--config", cfg)
	assert.Equal(t, ExitUsageError, code)
}

func TestVersionCommand(t *testing.T) {
	code, stdout, _ := runCLI(t, "version", "--short")
	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, currentBuild().Version+"\n", stdout)

	code, stdout, _ = runCLI(t, "version", "--json")
	assert.Equal(t, ExitSuccess, code)
	var info buildInfo
	require.NoError(t, json.Unmarshal([]byte(stdout), &info))
	assert.Equal(t, buildTime, info.Built)
	assert.NotEmpty(t, info.GoVersion)
	assert.Contains(t, info.Platform, "/")

	code, stdout, _ = runCLI(t, "version")
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "hityaml "+info.Version)

	code, _, _ = runCLI(t, "version", "--short", "--json")
	assert.Equal(t, ExitUsageError, code)
}

func TestCompletion(t *testing.T) {
	code, stdout, _ := runCLI(t, "completion", "bash")
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "hityaml")

	code, _, _ = runCLI(t, "completion", "tcsh")
	assert.Equal(t, ExitUsageError, code)

	for _, sub := range []string{"exec", "validate", "list"} {
		code, stdout, _ = runCLI(t, "__complete", sub, "")
		assert.Equal(t, ExitSuccess, code, sub)
		assert.Contains(t, stdout, "yaml\nyml\n:8\n", sub)
	}
}
