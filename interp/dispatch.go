package interp

import (
	"context"
	"fmt"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/vercel-labs/just-bash/ast"
	"github.com/vercel-labs/just-bash/builtin"
	"github.com/vercel-labs/just-bash/govern"
	"github.com/vercel-labs/just-bash/plugin"
	"github.com/vercel-labs/just-bash/vfs"
)

// dispatch resolves argv[0] in order: function, builtin, plugin, then a
// `$PATH`-resolved script; nothing resolving is a 127 "command not found"
// carrying a fuzzy-matched suggestion.
func (ip *Interp) dispatch(argv []string, io builtin.IO) (int, error) {
	name := argv[0]

	if fn, ok := ip.stack.Top().Functions[name]; ok {
		return ip.callFunction(fn, argv)
	}

	if fn, ok := builtin.Lookup(name); ok {
		return fn(ip, argv, io)
	}

	if ip.plugins != nil {
		if p, ok := ip.plugins.Lookup(name); ok {
			return ip.callPlugin(p, argv, io)
		}
	}

	if path, ok := ip.resolveOnPath(name); ok {
		return ip.runScriptFile(path, argv)
	}

	ip.writeStderr(notFoundMessage(name, ip.fuzzyCandidates()))
	return 127, nil
}

func notFoundMessage(name string, candidates []string) string {
	msg := fmt.Sprintf("%s: command not found\n", name)
	if ranks := fuzzy.RankFindFold(name, candidates); len(ranks) > 0 {
		msg += fmt.Sprintf("did you mean: %s?\n", ranks[0].Target)
	}
	return msg
}

// callFunction pushes a new frame bound to the function's positional
// parameters, runs its body, and absorbs a `return` at this boundary
//.
func (ip *Interp) callFunction(fn *ast.FunctionDef, argv []string) (int, error) {
	release, err := ip.governor.EnterCall()
	if err != nil {
		return govern.ReservedExitCode, err
	}
	defer release()

	ip.stack.Push(fn.Name, fn.Source, argv[1:])
	defer ip.stack.Pop()

	code, err := ip.runCommandNode(fn.Body)
	if err != nil {
		if re, ok := err.(*ReturnError); ok {
			return re.Code, nil
		}
		return code, err
	}
	return code, nil
}

// callPlugin adapts a plugin's {stdout,stderr,exitCode} Result contract
// onto the same io the rest of dispatch uses.
func (ip *Interp) callPlugin(p plugin.Plugin, argv []string, io builtin.IO) (int, error) {
	pctx := &plugin.Context{
		FS:     ip.fs,
		CWD:    ip.cwd,
		Env:    ip.stack.ExportedEnviron(),
		Stdin:  strings.NewReader(io.Stdin),
		Limits: ip.governor.Limits(),
		Fetch:  ip.hooks.Fetch,
		Sleep:  ip.hooks.Sleep,
		Random: ip.hooks.Random,
	}
	res, err := p.Execute(context.Background(), argv, pctx)
	if err != nil {
		fmt.Fprintf(io.Stderr, "%s: %s\n", argv[0], err)
		return 1, nil
	}
	fmt.Fprint(io.Stdout, res.Stdout)
	fmt.Fprint(io.Stderr, res.Stderr)
	return res.ExitCode, nil
}

// resolveOnPath searches $PATH for a file named name, skipping
// directories, as the final dispatch fallback; a name containing '/' is
// resolved against the cwd instead. No execute permission is checked.
func (ip *Interp) resolveOnPath(name string) (string, bool) {
	if strings.Contains(name, "/") {
		resolved := vfs.ResolvePath(ip.cwd, name)
		if fi, err := ip.fs.Stat(resolved); err == nil && !fi.Mode.IsDir() {
			return resolved, true
		}
		return "", false
	}
	pv, ok := ip.stack.Lookup("PATH")
	if !ok {
		return "", false
	}
	for _, dir := range strings.Split(pv.AsScalar(), ":") {
		if dir == "" {
			continue
		}
		cand := vfs.ResolvePath(dir, name)
		if fi, err := ip.fs.Stat(cand); err == nil && !fi.Mode.IsDir() {
			return cand, true
		}
	}
	return "", false
}

// runScriptFile executes a `$PATH`-resolved script in a pushed frame with
// argv[1:] bound as its positional parameters. The script is not isolated
// from the caller: variable lookup and assignment fall through to the
// caller's frames as in a function call.
func (ip *Interp) runScriptFile(path string, argv []string) (int, error) {
	content, err := ip.fs.ReadFile(path)
	if err != nil {
		ip.writeStderr(fmt.Sprintf("%s: %s\n", argv[0], err))
		return 126, nil
	}
	ip.stack.Push("", path, argv[1:])
	defer ip.stack.Pop()

	code, err := ip.RunSource(string(content), path)
	if err != nil {
		if ee, ok := err.(*ExitError); ok {
			return ee.Code, nil
		}
		return code, err
	}
	return code, nil
}
