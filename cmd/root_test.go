// File: cmd/root_test.go
package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/hindsight/api/schemas"
	"github.com/xkilldash9x/hindsight/internal/config"
	"github.com/xkilldash9x/hindsight/internal/observability"
	"github.com/xkilldash9x/hindsight/internal/store"
)

// -- Test Setup Helpers --

type testEnv struct {
	dir       string
	cfgFile   string
	cachePath string
}

// setupTestEnv isolates a test from the user's configuration, credentials
// and cache, and resets the global logger around it.
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		dir:       dir,
		cfgFile:   filepath.Join(dir, "config.yaml"),
		cachePath: filepath.Join(dir, "cache", "hindsight.db"),
	}

	t.Setenv("HINDSIGHT_LOGGER_LOG_FILE", filepath.Join(dir, "logs", "hindsight.log"))
	t.Setenv("HINDSIGHT_CACHE_PATH", env.cachePath)
	for _, key := range []string{config.EnvAPIKey, config.EnvAnthropicAPIKey, config.EnvGeminiAPIKey, config.EnvModel} {
		t.Setenv(key, "")
	}

	observability.ResetForTest()
	t.Cleanup(observability.ResetForTest)
	return env
}

// execute runs a fresh command tree and captures its output streams.
func (e *testEnv) execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	root := NewRootCommand()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"-c", e.cfgFile}, args...))

	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func (e *testEnv) seedCache(t *testing.T, entries map[string]string) {
	t.Helper()
	ctx := context.Background()
	c, err := store.Open(ctx, store.Options{Path: e.cachePath, TTL: time.Hour}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer c.Close()
	for key, ns := range entries {
		require.NoError(t, c.Set(ctx, ns, key, map[string]string{"summary": key}))
	}
}

// -- Test Cases: Version --

func TestRootCmd_VersionFlag(t *testing.T) {
	env := setupTestEnv(t)
	out, _, err := env.execute(t, "", "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "hindsight version "+Version)
}

func TestVersionCmd(t *testing.T) {
	env := setupTestEnv(t)
	out, _, err := env.execute(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "hindsight version "+Version+"\n", out)
}

// -- Test Cases: Analysis --

func TestRootCmd_NoInput(t *testing.T) {
	env := setupTestEnv(t)

	testCases := []struct {
		name  string
		stdin string
		args  []string
	}{
		{name: "No Arguments"},
		{name: "Blank Argument", args: []string{"   "}},
		{name: "Empty Stdin", args: []string{"-"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			observability.ResetForTest()
			out, _, err := env.execute(t, tc.stdin, tc.args...)
			require.ErrorIs(t, err, errNoInput)
			assert.Contains(t, out, "Error: No error message provided.")
			assert.Contains(t, out, usageLine)
		})
	}
}

func TestRootCmd_NotARepository(t *testing.T) {
	env := setupTestEnv(t)
	plain := t.TempDir()

	out, _, err := env.execute(t, "", "-r", plain, "--no-cache", "--no-color", "ValueError:", "invalid", "literal")
	require.NoError(t, err)
	assert.Contains(t, out, "Hindsight Analysis")
	assert.Contains(t, out, "Error: ValueError: invalid literal")
	assert.Contains(t, out, "Not a valid git repository. Git analysis skipped.")
	assert.NotContains(t, out, "\x1b[", "output to a buffer is never colored")
}

func TestRootCmd_InputSources(t *testing.T) {
	env := setupTestEnv(t)
	plain := t.TempDir()
	traceFile := filepath.Join(env.dir, "trace.txt")
	require.NoError(t, os.WriteFile(traceFile, []byte("Traceback (most recent call last):\n  File \"app.py\", line 3, in main\nZeroDivisionError: division by zero\n"), 0o644))

	t.Run("Stdin", func(t *testing.T) {
		observability.ResetForTest()
		out, _, err := env.execute(t, "KeyError: 'id'\n", "-r", plain, "--no-cache", "--format", "json", "-")
		require.NoError(t, err)

		var result map[string]any
		require.NoError(t, jsoniter.Unmarshal([]byte(out), &result))
		info := result["error_info"].(map[string]any)
		assert.Equal(t, "KeyError", info["error_type"])
		assert.Equal(t, "'id'", info["message"])
	})

	t.Run("Traceback File", func(t *testing.T) {
		observability.ResetForTest()
		out, _, err := env.execute(t, "", "-r", plain, "--no-cache", "-f", traceFile)
		require.NoError(t, err)
		assert.Contains(t, out, "Error: ZeroDivisionError: division by zero")
		assert.Contains(t, out, "Files: app.py")
	})

	t.Run("Missing Traceback File", func(t *testing.T) {
		observability.ResetForTest()
		_, _, err := env.execute(t, "", "-f", filepath.Join(env.dir, "missing.txt"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read traceback file")
	})
}

func TestRootCmd_OutputFile(t *testing.T) {
	env := setupTestEnv(t)
	report := filepath.Join(env.dir, "report.json")

	out, _, err := env.execute(t, "", "-r", t.TempDir(), "--no-cache", "--format", "json", "-o", report, "TypeError: bad operand")
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(report)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"error_type": "TypeError"`)
}

func TestRootCmd_InvalidConfiguration(t *testing.T) {
	env := setupTestEnv(t)
	_, _, err := env.execute(t, "", "--format", "xml", "ValueError: x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load or validate config")
	assert.Contains(t, err.Error(), `output.format "xml" is not supported`)
}

func TestRootCmd_ConfigFileIsRead(t *testing.T) {
	env := setupTestEnv(t)
	require.NoError(t, os.WriteFile(env.cfgFile, []byte("output:\n  format: json\ncache:\n  enabled: false\n"), 0o600))

	out, _, err := env.execute(t, "", "-r", t.TempDir(), "NameError: name 'x' is not defined")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "{"), "format comes from the config file")
	_, statErr := os.Stat(env.cachePath)
	assert.True(t, os.IsNotExist(statErr), "a disabled cache is never created")
}

func TestRootCmd_AgainstGitRepository(t *testing.T) {
	env := setupTestEnv(t)
	repoDir := t.TempDir()
	repo, err := git.PlainInit(repoDir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(repoDir, "calc.py"), []byte("def ratio(a, b):\n    \"\"\"Return a divided by b.\"\"\"\n    return a / b\n"), 0o644))
	_, err = wt.Add("calc.py")
	require.NoError(t, err)
	sig := &object.Signature{Name: "Ada", Email: "ada@example.com", When: time.Now().Add(-time.Hour)}
	hash, err := wt.Commit("Drop zero check in ratio", &git.CommitOptions{Author: sig, Committer: sig})
	require.NoError(t, err)

	trace := "Traceback (most recent call last):\n" +
		"  File \"" + filepath.Join(repoDir, "calc.py") + "\", line 3, in ratio\n" +
		"    return a / b\n" +
		"ZeroDivisionError: division by zero\n"

	out, _, err := env.execute(t, trace, "-r", repoDir, "--format", "json", "-")
	require.NoError(t, err)

	var result schemas.AnalysisResult
	require.NoError(t, jsoniter.Unmarshal([]byte(out), &result))
	require.NotNil(t, result.RootCause)
	assert.Equal(t, hash.String()[:8], result.RootCause.Revision.ID)
	require.NotNil(t, result.Repository)
	assert.Equal(t, 1, result.Repository.TotalCommits)
	require.NotNil(t, result.Explanation)
	assert.Contains(t, result.Limitations, "No API key found. Set ANTHROPIC_API_KEY or HINDSIGHT_API_KEY environment variable for AI-powered explanations.")
	require.NotEmpty(t, result.Intent.DeclaredIntents)
	assert.Equal(t, "Intended behavior of `ratio`: "+result.Intent.DeclaredIntents[0].IntendedBehavior, result.Explanation.IntentVsActual)
}

// -- Test Cases: Init --

func TestInitCmd(t *testing.T) {
	env := setupTestEnv(t)

	out, _, err := env.execute(t, "", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration created at "+env.cfgFile)
	assert.Contains(t, out, "export ANTHROPIC_API_KEY=your-key-here")

	info, err := os.Stat(env.cfgFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	observability.ResetForTest()
	out, _, err = env.execute(t, "", "--init")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration already exists at "+env.cfgFile)
}

func TestInitCmd_KeyPresentSkipsHint(t *testing.T) {
	env := setupTestEnv(t)
	t.Setenv(config.EnvAPIKey, "test-key")

	out, _, err := env.execute(t, "", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration created")
	assert.NotContains(t, out, "Set your API key")

	data, err := os.ReadFile(env.cfgFile)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "test-key", "credentials are never written")
}

// -- Test Cases: Cache --

func TestCacheCmd_NoCache(t *testing.T) {
	env := setupTestEnv(t)
	for _, args := range [][]string{{"cache", "stats"}, {"cache", "clear"}, {"cache", "cleanup"}, {"--clear-cache"}} {
		observability.ResetForTest()
		out, _, err := env.execute(t, "", args...)
		require.NoError(t, err)
		assert.Contains(t, out, "No cache found.")
	}
	_, err := os.Stat(env.cachePath)
	assert.True(t, os.IsNotExist(err))
}

func TestCacheCmd_Lifecycle(t *testing.T) {
	env := setupTestEnv(t)
	env.seedCache(t, map[string]string{
		"k1": schemas.NamespaceAIResponses,
		"k2": schemas.NamespaceAIResponses,
		"k3": schemas.NamespaceGitAnalysis,
	})

	out, _, err := env.execute(t, "", "cache", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Cache: "+env.cachePath)
	assert.Contains(t, out, "Entries: 3")
	assert.Contains(t, out, "ai_responses")
	assert.Contains(t, out, "Oldest entry:")

	observability.ResetForTest()
	out, _, err = env.execute(t, "", "cache", "cleanup")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 0 expired entries.")

	observability.ResetForTest()
	out, _, err = env.execute(t, "", "cache", "clear", schemas.NamespaceGitAnalysis)
	require.NoError(t, err)
	assert.Contains(t, out, "Cleared 1 cached entry.")

	observability.ResetForTest()
	_, _, err = env.execute(t, "", "cache", "clear", "bogus")
	require.ErrorIs(t, err, store.ErrUnknownNamespace)

	observability.ResetForTest()
	out, _, err = env.execute(t, "", "--clear-cache")
	require.NoError(t, err)
	assert.Contains(t, out, "Cleared 2 cached entries.")
}

// -- Test Cases: Watch --

func TestWatchCmd_MissingLogFile(t *testing.T) {
	env := setupTestEnv(t)
	_, _, err := env.execute(t, "", "watch", "--no-cache", filepath.Join(env.dir, "missing.log"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to tail log file")
}

func TestWatchCmd_RequiresLogFile(t *testing.T) {
	env := setupTestEnv(t)
	_, _, err := env.execute(t, "", "watch")
	assert.Error(t, err)
}

func TestWatchCmd_StopsAtTimeout(t *testing.T) {
	env := setupTestEnv(t)
	logFile := filepath.Join(env.dir, "app.log")
	require.NoError(t, os.WriteFile(logFile, nil, 0o644))

	out, _, err := env.execute(t, "", "watch", "--no-cache", "--timeout", "200ms", logFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Watching "+logFile)
}
