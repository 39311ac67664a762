// Package interp implements the tree-walking interpreter core (spec
// §4.G): it drives the word expander for every word, the pipeline and
// redirection engine for every command, the command dispatcher to resolve
// argv[0], and the control-flow unwinding that realises functions,
// subshells, loops, and `errexit`.
package interp

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"golang.org/x/crypto/blake2b"

	"github.com/vercel-labs/just-bash/ast"
	"github.com/vercel-labs/just-bash/builtin"
	"github.com/vercel-labs/just-bash/envframe"
	"github.com/vercel-labs/just-bash/expand"
	"github.com/vercel-labs/just-bash/govern"
	"github.com/vercel-labs/just-bash/parser"
	"github.com/vercel-labs/just-bash/plugin"
	"github.com/vercel-labs/just-bash/value"
	"github.com/vercel-labs/just-bash/vfs"
)

// NetworkEvaluator is the allow-list hook an embedder supplies: the engine
// asks "is this URL+method permitted?" and never inspects URLs itself.
type NetworkEvaluator interface {
	IsAllowed(url, method string) bool
}

// Hooks bundles the optional sandbox escape hatches a plugin Context may
// use.
type Hooks struct {
	Fetch   func(ctx context.Context, url string) ([]byte, error)
	Sleep   func(ctx context.Context, ms int) error
	Random  func() float64
	Network NetworkEvaluator
}

// Interp is one shell instance: the frame stack, filesystem, governor,
// word expander, plugin registry and the small pieces of process-wide
// shell state ($?, $_, $PIPESTATUS, directory stack, traps, source depth,
// parsed-script cache).
type Interp struct {
	stack    *envframe.Stack
	fs       vfs.FS
	governor *govern.Governor
	expander *expand.Expander
	plugins  *plugin.Registry
	hooks    Hooks

	cwd         string
	lastStatus  int
	pipeStatus  []int
	lastArg     string // $_
	dirStack    []string
	traps       map[string]string
	bashRematch []string
	sourceDepth int

	cacheMu     sync.Mutex
	scriptCache map[[32]byte]*ast.Script

	stdout *strings.Builder
	stderr *strings.Builder
	stdin  *stdinCursor
}

const maxSourceDepth = 200

// New builds an interpreter over an already-mounted filesystem, starting
// at cwd with env seeding the root frame.
func New(fs vfs.FS, cwd string, env map[string]string, limits govern.Limits, plugins *plugin.Registry, hooks Hooks) *Interp {
	root := envframe.NewRoot(env)
	stack := envframe.NewStack(root)
	gov := govern.New(limits)
	ip := &Interp{
		stack:       stack,
		fs:          fs,
		governor:    gov,
		plugins:     plugins,
		hooks:       hooks,
		cwd:         cwd,
		traps:       make(map[string]string),
		scriptCache: make(map[[32]byte]*ast.Script),
		stdout:      &strings.Builder{},
		stderr:      &strings.Builder{},
		stdin:       &stdinCursor{},
	}
	ip.expander = &expand.Expander{Stack: stack, FS: fs, Governor: gov, Run: ip, CWD: cwd}
	root.Vars["PWD"] = value.NewScalar(cwd)
	if _, ok := root.Vars["IFS"]; !ok {
		root.Vars["IFS"] = value.NewScalar(" \t\n")
	}
	return ip
}

// Stack/FS/Governor/CWD satisfy builtin.Shell's read accessors.
func (ip *Interp) Stack() *envframe.Stack    { return ip.stack }
func (ip *Interp) FS() vfs.FS                { return ip.fs }
func (ip *Interp) Governor() *govern.Governor { return ip.governor }
func (ip *Interp) CWD() string               { return ip.cwd }

func (ip *Interp) LastStatus() int { return ip.lastStatus }

var _ builtin.Shell = (*Interp)(nil)
var _ expand.Runner = (*Interp)(nil)

// Chdir implements builtin.Shell.
func (ip *Interp) Chdir(path string) error {
	resolved := vfs.ResolvePath(ip.cwd, path)
	fi, err := ip.fs.Stat(resolved)
	if err != nil {
		return err
	}
	if !fi.Mode.IsDir() {
		return fmt.Errorf("not a directory: %s", resolved)
	}
	old := ip.cwd
	ip.cwd = resolved
	ip.expander.CWD = resolved
	ip.stack.SetGlobal("OLDPWD", value.NewScalar(old))
	ip.stack.SetGlobal("PWD", value.NewScalar(resolved))
	return nil
}

// RunSource parses src and executes it against the current frame,
// absorbing a `return` at this boundary.
func (ip *Interp) RunSource(src, source string) (int, error) {
	ip.sourceDepth++
	defer func() { ip.sourceDepth-- }()
	if ip.sourceDepth > maxSourceDepth {
		return 1, fmt.Errorf("source: maximum nesting depth exceeded")
	}
	script, err := ip.parseCached(src, source)
	if err != nil {
		fmt.Fprintf(ip.stderr, "%s\n", err)
		return 2, nil
	}
	code, err := ip.execScriptInPlace(script)
	if err != nil {
		if re, ok := err.(*ReturnError); ok {
			return re.Code, nil
		}
		return code, err
	}
	return code, nil
}

// Exit/ReturnFromFunc build the typed flow-control errors.
func (ip *Interp) Exit(code int) error          { return &ExitError{Code: code} }
func (ip *Interp) ReturnFromFunc(code int) error { return &ReturnError{Code: code} }

func (ip *Interp) SetTrap(name, body string) { ip.traps[name] = body }
func (ip *Interp) Trap(name string) (string, bool) {
	b, ok := ip.traps[name]
	return b, ok
}

func (ip *Interp) PushDir(path string) { ip.dirStack = append(ip.dirStack, path) }
func (ip *Interp) PopDir() (string, bool) {
	if len(ip.dirStack) == 0 {
		return "", false
	}
	last := ip.dirStack[len(ip.dirStack)-1]
	ip.dirStack = ip.dirStack[:len(ip.dirStack)-1]
	return last, true
}
func (ip *Interp) DirStack() []string { return append([]string(nil), ip.dirStack...) }

// parseCached parses src, keyed by a blake2b-256 digest of the source text
// so a `source`d file or a `$PATH` script hit repeatedly in a loop is
// parsed once.
func (ip *Interp) parseCached(src, source string) (*ast.Script, error) {
	key := blake2b.Sum256([]byte(src))
	ip.cacheMu.Lock()
	if s, ok := ip.scriptCache[key]; ok {
		ip.cacheMu.Unlock()
		return s, nil
	}
	ip.cacheMu.Unlock()
	script, err := parser.Parse(src, source)
	if err != nil {
		return nil, err
	}
	ip.cacheMu.Lock()
	ip.scriptCache[key] = script
	ip.cacheMu.Unlock()
	return script, nil
}

// RunCapture implements expand.Runner: it executes body in a cloned frame
// (subshell purity: no mutation escapes to the caller) and returns its
// captured stdout with trailing newlines trimmed.
func (ip *Interp) RunCapture(body *ast.Script) (string, error) {
	saved := ip.stack
	clone := envframe.NewStack(ip.stack.Top().Clone())
	ip.swapStack(clone)
	defer ip.swapStack(saved)

	savedOut, savedErr := ip.stdout, ip.stderr
	ip.stdout = &strings.Builder{}
	ip.stderr = &strings.Builder{}
	defer func() { ip.stdout, ip.stderr = savedOut, savedErr }()

	_, err := ip.execScriptInPlace(body)
	out := strings.TrimRight(ip.stdout.String(), "\n")
	if err != nil {
		if isFlowControl(err) {
			return out, err
		}
		return out, nil
	}
	return out, nil
}

// swapStack repoints the expander at a different frame stack, used to
// enter/exit cloned subshell frames without rebuilding the Expander.
func (ip *Interp) swapStack(s *envframe.Stack) {
	ip.stack = s
	ip.expander.Stack = s
}

func isFlowControl(err error) bool {
	switch err.(type) {
	case *BreakError, *ContinueError, *ReturnError, *ExitError, *ErrexitError:
		return true
	}
	_, ok := err.(*govern.LimitError)
	return ok
}

// Exec is the engine-facing entry point: it parses and
// runs script top to bottom against this interpreter's current frame,
// returning the accumulated stdout/stderr, exit code and the exported
// environment afterward.
func (ip *Interp) Exec(src string) (stdout, stderr string, exitCode int, env map[string]string) {
	ip.governor.Reset()
	ip.stdout = &strings.Builder{}
	ip.stderr = &strings.Builder{}
	ip.pipeStatus = nil

	script, err := parser.Parse(src, "<script>")
	if err != nil {
		fmt.Fprintf(ip.stderr, "%s\n", err)
		return ip.stdout.String(), ip.stderr.String(), 2, ip.stack.ExportedEnviron()
	}
	code, runErr := ip.execScriptInPlace(script)
	if runErr != nil {
		switch e := runErr.(type) {
		case *ExitError:
			code = e.Code
		case *ErrexitError:
			code = e.Code
		case *govern.LimitError:
			fmt.Fprintf(ip.stderr, "%s\n", e.Error())
			code = govern.ReservedExitCode
		case *ReturnError:
			code = e.Code
		case *BreakError, *ContinueError:
			// break/continue with no enclosing loop at script scope: ignore,
			// matching Bash's silent no-op.
		}
	}
	ip.lastStatus = code
	return ip.stdout.String(), ip.stderr.String(), code, ip.stack.ExportedEnviron()
}

func (ip *Interp) writeStdout(s string) {
	if s == "" {
		return
	}
	io.WriteString(ip.stdout, s)
}

func (ip *Interp) writeStderr(s string) {
	if s == "" {
		return
	}
	io.WriteString(ip.stderr, s)
}

// fuzzyCandidates lists every resolvable command name for "command not
// found" suggestions.
func (ip *Interp) fuzzyCandidates() []string {
	names := builtin.Names()
	for name := range ip.stack.Top().Functions {
		names = append(names, name)
	}
	if ip.plugins != nil {
		names = append(names, plugin.Names(ip.plugins)...)
	}
	sort.Strings(names)
	return names
}
