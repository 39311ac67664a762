package engine_test

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vercel-labs/just-bash/engine"
	"github.com/vercel-labs/just-bash/govern"
	"github.com/vercel-labs/just-bash/plugin"
	"github.com/vercel-labs/just-bash/vfs"
)

// catPlugin and wcPlugin stand in for the utility-command plugins a real
// embedder would register; the engine itself ships with none.
type catPlugin struct{}

func (catPlugin) Name() string       { return "cat" }
func (catPlugin) APIVersion() string { return "v1.0.0" }
func (catPlugin) Execute(_ context.Context, argv []string, pctx *plugin.Context) (plugin.Result, error) {
	args := argv[1:] // argv[0] is "cat" itself
	if len(args) == 0 {
		buf := new(strings.Builder)
		if _, err := buf.ReadFrom(pctx.Stdin); err != nil {
			return plugin.Result{Stderr: err.Error() + "\n", ExitCode: 1}, nil
		}
		return plugin.Result{Stdout: buf.String()}, nil
	}
	content, err := pctx.FS.ReadFile(vfs.ResolvePath(pctx.CWD, args[0]))
	if err != nil {
		return plugin.Result{Stderr: err.Error() + "\n", ExitCode: 1}, nil
	}
	return plugin.Result{Stdout: string(content)}, nil
}

type wcPlugin struct{}

func (wcPlugin) Name() string       { return "wc" }
func (wcPlugin) APIVersion() string { return "v1.0.0" }
func (wcPlugin) Execute(_ context.Context, argv []string, pctx *plugin.Context) (plugin.Result, error) {
	buf := new(strings.Builder)
	if _, err := buf.ReadFrom(pctx.Stdin); err != nil {
		return plugin.Result{Stderr: err.Error() + "\n", ExitCode: 1}, nil
	}
	scanner := bufio.NewScanner(strings.NewReader(buf.String()))
	scanner.Split(bufio.ScanWords)
	n := 0
	for scanner.Scan() {
		n++
	}
	return plugin.Result{Stdout: fmt.Sprintf("%d\n", n)}, nil
}

func newEngine(t *testing.T) *engine.Engine {
	t.Helper()
	eng, err := engine.New(engine.Options{
		Env:            map[string]string{"HOME": "/home/user"},
		CWD:            "/",
		CustomCommands: []plugin.Plugin{catPlugin{}, wcPlugin{}},
	})
	require.NoError(t, err)
	return eng
}

// End-to-end scenarios covering the common execution paths: pipelines,
// loops, and-or chains, scoping, arrays, defaulting, regex matching.
func TestExecScenarios(t *testing.T) {
	cases := []struct {
		name   string
		script string
		stdout string
		exit   int
	}{
		{"pipe word count", `echo hello | wc -w`, "1\n", 0},
		{"for loop", `for i in 1 2 3; do echo $i; done`, "1\n2\n3\n", 0},
		{"and-or chain", `false && echo x || echo y`, "y\n", 0},
		{"pipefail", `set -o pipefail; false | true; echo $?`, "1\n", 0},
		{"local scoping", `f(){ local x=1; echo $x; }; x=2; f; echo $x`, "1\n2\n", 0},
		{"indexed array", `a=(1 2 3); echo ${a[@]}; echo ${#a[@]}`, "1 2 3\n3\n", 0},
		{"default value", `echo "${v:-default}"; echo ${v}`, "default\n\n", 0},
		{"regex rematch", `if [[ "abc" =~ ^a(b)c$ ]]; then echo ${BASH_REMATCH[1]}; fi`, "b\n", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			eng := newEngine(t)
			res := eng.Exec(tc.script, nil)
			assert.Equal(t, tc.stdout, res.Stdout)
			assert.Equal(t, tc.exit, res.ExitCode)
		})
	}
}

// Env set in one exec does not leak into the next.
func TestExecIsolation(t *testing.T) {
	eng := newEngine(t)
	eng.Exec(`VAR=1`, nil)
	res := eng.Exec(`echo "$VAR"`, nil)
	assert.Equal(t, "\n", res.Stdout)
}

// Subshell purity: a `( ... )` assignment never escapes.
func TestSubshellPurity(t *testing.T) {
	eng := newEngine(t)
	res := eng.Exec(`( VAR=1 ); echo "$VAR"`, nil)
	assert.Equal(t, "\n", res.Stdout)
	assert.Equal(t, 0, res.ExitCode)
}

// Round-trips a file through the engine's WriteFile/ReadFile convenience
// calls and a registered cat plugin.
func TestWriteReadFile(t *testing.T) {
	eng := newEngine(t)
	require.NoError(t, eng.WriteFile("/greeting.txt", "hello\n"))
	content, err := eng.ReadFile("/greeting.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", content)

	res := eng.Exec(`cat /greeting.txt`, nil)
	assert.Equal(t, "hello\n", res.Stdout)
}

// A redirected while-read loop exercises only registered builtins (read,
// echo) plus the trailing `< file` redirect a compound command can now
// carry, with no plugin involved at all.
func TestWhileReadRedirectedFromFile(t *testing.T) {
	eng := newEngine(t)
	require.NoError(t, eng.WriteFile("/lines.txt", "one\ntwo\nthree\n"))
	res := eng.Exec(`while read -r line; do echo "got:$line"; done < /lines.txt`, nil)
	assert.Equal(t, "got:one\ngot:two\ngot:three\n", res.Stdout)
	assert.Equal(t, 0, res.ExitCode)
}

// A `{ ...; } > file` group redirect, checked by reading the file back
// through the engine's own ReadFile rather than a cat plugin.
func TestGroupRedirectToFile(t *testing.T) {
	eng := newEngine(t)
	res := eng.Exec(`{ echo line1; echo line2; } > /tmp/grouped.txt`, nil)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "", res.Stdout)

	content, err := eng.ReadFile("/tmp/grouped.txt")
	require.NoError(t, err)
	assert.Equal(t, "line1\nline2\n", content)
}

// Files persist across Exec calls even though env/cwd do not.
func TestFilesPersistAcrossExec(t *testing.T) {
	eng := newEngine(t)
	eng.Exec(`echo persisted > /tmp/out.txt`, nil)
	content, err := eng.ReadFile("/tmp/out.txt")
	require.NoError(t, err)
	assert.Equal(t, "persisted\n", content)
}

func TestExecOverridesCWD(t *testing.T) {
	eng, err := engine.New(engine.Options{
		Files:          map[string]string{"/a/hello.txt": "from a\n", "/b/hello.txt": "from b\n"},
		CWD:            "/a",
		CustomCommands: []plugin.Plugin{catPlugin{}},
	})
	require.NoError(t, err)

	res := eng.Exec(`cat hello.txt`, nil)
	assert.Equal(t, "from a\n", res.Stdout)

	res = eng.Exec(`cat hello.txt`, &engine.Overrides{CWD: "/b"})
	assert.Equal(t, "from b\n", res.Stdout)
}

func TestCommandNotFound(t *testing.T) {
	eng := newEngine(t)
	res := eng.Exec(`ecko hi`, nil)
	assert.Equal(t, 127, res.ExitCode)
	assert.Contains(t, res.Stderr, "command not found")
}

func TestGovernorLimitReservedExitCode(t *testing.T) {
	eng, err := engine.New(engine.Options{
		ExecutionLimits: govern.Limits{MaxLoopIterations: 5},
	})
	require.NoError(t, err)

	res := eng.Exec(`while :; do :; done`, nil)
	assert.Equal(t, govern.ReservedExitCode, res.ExitCode)
}

func TestCheckpointRestore(t *testing.T) {
	eng, err := engine.New(engine.Options{
		Files: map[string]string{"/data.txt": "v1\n"},
		Env:   map[string]string{"HOME": "/home/user"},
		CWD:   "/",
	})
	require.NoError(t, err)

	snap, err := eng.Checkpoint()
	require.NoError(t, err)

	require.NoError(t, eng.WriteFile("/data.txt", "v2\n"))
	content, err := eng.ReadFile("/data.txt")
	require.NoError(t, err)
	assert.Equal(t, "v2\n", content)

	require.NoError(t, eng.Restore(snap))
	content, err = eng.ReadFile("/data.txt")
	require.NoError(t, err)
	assert.Equal(t, "v1\n", content)
}

func TestConfigYAML(t *testing.T) {
	yamlDoc := []byte(`
cwd: /srv
executionLimits:
  maxCommandCount: 1000
`)
	eng, err := engine.New(engine.Options{ConfigYAML: yamlDoc, Files: map[string]string{"/srv/x.txt": "hi\n"}})
	require.NoError(t, err)
	content, err := eng.ReadFile("x.txt")
	require.NoError(t, err)
	assert.Equal(t, "hi\n", content)
}

func TestConfigYAMLRejectsUnknownLimitField(t *testing.T) {
	yamlDoc := []byte(`
executionLimits:
  bogusLimit: 5
`)
	_, err := engine.New(engine.Options{ConfigYAML: yamlDoc})
	require.Error(t, err)
}

func TestRegisterPluginRejectsBadAPIVersion(t *testing.T) {
	eng := newEngine(t)
	err := eng.RegisterPlugin(&badVersionPlugin{})
	require.Error(t, err)
}

type badVersionPlugin struct{}

func (badVersionPlugin) Name() string       { return "bogus" }
func (badVersionPlugin) APIVersion() string { return "not-a-version" }
func (badVersionPlugin) Execute(ctx context.Context, argv []string, pctx *plugin.Context) (plugin.Result, error) {
	return plugin.Result{}, nil
}
