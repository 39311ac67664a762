// Package builtin implements the shell's built-in command suite (spec
// §4.H): cd, export, source, shift, alias/unalias, pushd/popd/dirs,
// set/shopt, read, trap/exit/return/eval/local/declare, plus the small
// utility builtins (echo, printf, test, true/false/:) a sandboxed shell
// needs since it can never exec a real PATH binary for them.
//
// Builtins never import package interp directly; Shell is the minimal
// surface they need, the same decoupling expand.Runner gives the
// expander against the interpreter.
package builtin

import (
	"io"
	"sort"
	"sync"

	"github.com/vercel-labs/just-bash/envframe"
	"github.com/vercel-labs/just-bash/govern"
	"github.com/vercel-labs/just-bash/vfs"
)

// IO is the stdin/stdout/stderr a builtin invocation is wired to; pipeline
// stages exchange whole buffered strings, not streams, so Stdin is a
// string and Stdout/Stderr are plain io.Writer targets the caller already
// arranged to be either a pipe buffer or a redirect target.
type IO struct {
	Stdin  string
	Stdout io.Writer
	Stderr io.Writer
}

// Shell is what a builtin needs from the interpreter: the active frame
// stack, the filesystem, the governor, and the handful of operations
// (cd, eval, trap storage, directory stack, exit/return signalling) that
// do not live on Stack itself.
type Shell interface {
	Stack() *envframe.Stack
	FS() vfs.FS
	Governor() *govern.Governor
	CWD() string

	// Chdir resolves and validates path against FS, then updates CWD,
	// PWD and OLDPWD.
	Chdir(path string) error

	// RunSource parses src and executes it in the current frame,
	// returning its exit code.
	RunSource(src, source string) (int, error)

	// Exit/ReturnFromFunc build the typed flow-control errors `exit`/
	// `return` raise so the walker can unwind to the right boundary.
	Exit(code int) error
	ReturnFromFunc(code int) error

	SetTrap(name, body string)
	Trap(name string) (string, bool)

	// ReadStdinLine pulls one delim-terminated line off the ambient stdin
	// cursor the current pipeline stage inherited, reporting false at EOF.
	ReadStdinLine(delim byte) (string, bool)

	PushDir(path string)
	PopDir() (string, bool)
	DirStack() []string

	LastStatus() int
}

// Func is a builtin's entry point; it returns the command's exit code and
// an error only for fatal conditions (governor limits, flow control) that
// must propagate past normal command-failure handling.
type Func func(sh Shell, argv []string, io IO) (int, error)

var (
	mu       sync.RWMutex
	registry = map[string]Func{}
)

func register(name string, fn Func) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = fn
}

// Lookup returns the builtin registered under name, if any.
func Lookup(name string) (Func, bool) {
	mu.RLock()
	defer mu.RUnlock()
	fn, ok := registry[name]
	return fn, ok
}

// Names lists every registered builtin name, sorted (backs `command -V`
// style introspection and the dispatcher's fuzzy-match candidate list).
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func init() {
	register("cd", cdBuiltin)
	register("pwd", pwdBuiltin)
	register("export", exportBuiltin)
	register("unset", unsetBuiltin)
	register("readonly", readonlyBuiltin)
	register("shift", shiftBuiltin)
	register("source", sourceBuiltin)
	register(".", sourceBuiltin)
	register("eval", evalBuiltin)
	register("exit", exitBuiltin)
	register("return", returnBuiltin)
	register("local", localBuiltin)
	register("declare", declareBuiltin)
	register("typeset", declareBuiltin)
	register("alias", aliasBuiltin)
	register("unalias", unaliasBuiltin)
	register("pushd", pushdBuiltin)
	register("popd", popdBuiltin)
	register("dirs", dirsBuiltin)
	register("set", setBuiltin)
	register("shopt", shoptBuiltin)
	register("read", readBuiltin)
	register("trap", trapBuiltin)
	register("echo", echoBuiltin)
	register("printf", printfBuiltin)
	register("true", trueBuiltin)
	register("false", falseBuiltin)
	register(":", trueBuiltin)
	register("test", testBuiltin)
	register("[", testBracketBuiltin)
	register("command", commandBuiltin)
	register("type", typeBuiltin)
}
