package builtin

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vercel-labs/just-bash/value"
	"github.com/vercel-labs/just-bash/vfs"
)

func cdBuiltin(sh Shell, argv []string, io IO) (int, error) {
	args := argv[1:]
	// -L/-P (logical/physical) are accepted but not distinguished: the VFS
	// has no bind-mount concept for cd to see through.
	for len(args) > 0 && (args[0] == "-L" || args[0] == "-P") {
		args = args[1:]
	}
	var target string
	switch {
	case len(args) == 0:
		if home, ok := sh.Stack().Lookup("HOME"); ok {
			target = home.AsScalar()
		}
	case args[0] == "-":
		if old, ok := sh.Stack().Lookup("OLDPWD"); ok {
			target = old.AsScalar()
			fmt.Fprintln(io.Stdout, target)
		}
	default:
		target = args[0]
	}
	if target == "" {
		target = "/"
	}
	if err := sh.Chdir(target); err != nil {
		fmt.Fprintf(io.Stderr, "cd: %s\n", err)
		return 1, nil
	}
	return 0, nil
}

func pwdBuiltin(sh Shell, argv []string, io IO) (int, error) {
	fmt.Fprintln(io.Stdout, sh.CWD())
	return 0, nil
}

func exportBuiltin(sh Shell, argv []string, io IO) (int, error) {
	args := argv[1:]
	unexport := false
	if len(args) > 0 && args[0] == "-n" {
		unexport = true
		args = args[1:]
	}
	if len(args) == 0 {
		for _, name := range sh.Stack().Names() {
			v, ok := sh.Stack().Lookup(name)
			if ok && v.Attrs.Has(value.AttrExported) {
				fmt.Fprintf(io.Stdout, "declare -x %s=%s\n", name, quoteSingle(v.AsScalar()))
			}
		}
		return 0, nil
	}
	for _, a := range args {
		name, val, hasVal := strings.Cut(a, "=")
		v, ok := sh.Stack().Lookup(name)
		if !ok {
			v = value.NewScalar("")
		}
		if hasVal {
			nv := *v
			nv.Scalar = val
			v = &nv
		}
		if unexport {
			v.Attrs &^= value.AttrExported
		} else {
			v.Attrs |= value.AttrExported
		}
		sh.Stack().Set(name, v)
	}
	return 0, nil
}

func unsetBuiltin(sh Shell, argv []string, io IO) (int, error) {
	args := argv[1:]
	isFunc := false
	if len(args) > 0 && args[0] == "-f" {
		isFunc = true
		args = args[1:]
	} else if len(args) > 0 && args[0] == "-v" {
		args = args[1:]
	}
	top := sh.Stack().Top()
	for _, name := range args {
		if isFunc {
			delete(top.Functions, name)
			continue
		}
		if v, ok := sh.Stack().Lookup(name); ok && v.Attrs.Has(value.AttrReadonly) {
			fmt.Fprintf(io.Stderr, "unset: %s: cannot unset: readonly variable\n", name)
			return 1, nil
		}
		delete(top.Vars, name)
	}
	return 0, nil
}

func readonlyBuiltin(sh Shell, argv []string, io IO) (int, error) {
	for _, a := range argv[1:] {
		name, val, hasVal := strings.Cut(a, "=")
		v, ok := sh.Stack().Lookup(name)
		if !ok {
			v = value.NewScalar("")
		}
		if hasVal {
			nv := *v
			nv.Scalar = val
			v = &nv
		}
		v.Attrs |= value.AttrReadonly
		sh.Stack().Set(name, v)
	}
	return 0, nil
}

func shiftBuiltin(sh Shell, argv []string, io IO) (int, error) {
	n := 1
	if len(argv) > 1 {
		v, err := strconv.Atoi(argv[1])
		if err != nil {
			fmt.Fprintln(io.Stderr, "shift: numeric argument required")
			return 1, nil
		}
		n = v
	}
	top := sh.Stack().Top()
	if n < 0 {
		fmt.Fprintln(io.Stderr, "shift: numeric argument required")
		return 1, nil
	}
	if n > len(top.Positional) {
		fmt.Fprintln(io.Stderr, "shift: shift count out of range")
		return 1, nil
	}
	top.Positional = top.Positional[n:]
	return 0, nil
}

// sourceBuiltin implements `source FILE [args...]` / `. FILE [args...]`.
// Search order (see DESIGN.md for the Open Question this resolves): a name
// containing '/' is used as-is; otherwise $PATH is searched before cwd.
func sourceBuiltin(sh Shell, argv []string, io IO) (int, error) {
	if len(argv) < 2 {
		fmt.Fprintln(io.Stderr, "source: filename argument required")
		return 2, nil
	}
	name := argv[1]
	path, err := resolveSourcePath(sh, name)
	if err != nil {
		fmt.Fprintf(io.Stderr, "source: %s: %s\n", name, err)
		return 1, nil
	}
	content, err := sh.FS().ReadFile(path)
	if err != nil {
		fmt.Fprintf(io.Stderr, "source: %s: %s\n", name, err)
		return 1, nil
	}
	top := sh.Stack().Top()
	savedPositional := top.Positional
	if len(argv) > 2 {
		top.Positional = argv[2:]
	}
	defer func() { top.Positional = savedPositional }()

	return sh.RunSource(string(content), path)
}

func resolveSourcePath(sh Shell, name string) (string, error) {
	if strings.Contains(name, "/") {
		return vfs.ResolvePath(sh.CWD(), name), nil
	}
	if pv, ok := sh.Stack().Lookup("PATH"); ok {
		for _, dir := range strings.Split(pv.AsScalar(), ":") {
			if dir == "" {
				continue
			}
			cand := vfs.ResolvePath(dir, name)
			if fi, err := sh.FS().Stat(cand); err == nil && !fi.Mode.IsDir() {
				return cand, nil
			}
		}
	}
	cwdCandidate := vfs.ResolvePath(sh.CWD(), name)
	if fi, err := sh.FS().Stat(cwdCandidate); err == nil && !fi.Mode.IsDir() {
		return cwdCandidate, nil
	}
	return "", fmt.Errorf("no such file or directory")
}

func evalBuiltin(sh Shell, argv []string, io IO) (int, error) {
	src := strings.Join(argv[1:], " ")
	if src == "" {
		return 0, nil
	}
	return sh.RunSource(src, "<eval>")
}

func exitBuiltin(sh Shell, argv []string, io IO) (int, error) {
	code := sh.LastStatus()
	if len(argv) > 1 {
		n, err := strconv.Atoi(argv[1])
		if err != nil {
			fmt.Fprintf(io.Stderr, "exit: %s: numeric argument required\n", argv[1])
			code = 2
		} else {
			code = n
		}
	}
	return code, sh.Exit(code)
}

func returnBuiltin(sh Shell, argv []string, io IO) (int, error) {
	code := sh.LastStatus()
	if len(argv) > 1 {
		n, err := strconv.Atoi(argv[1])
		if err != nil {
			fmt.Fprintf(io.Stderr, "return: %s: numeric argument required\n", argv[1])
			code = 2
		} else {
			code = n
		}
	}
	return code, sh.ReturnFromFunc(code)
}

func localBuiltin(sh Shell, argv []string, io IO) (int, error) {
	for _, a := range argv[1:] {
		name, val, hasVal := strings.Cut(a, "=")
		var v *value.Value
		if hasVal {
			v = value.NewScalar(val)
		}
		sh.Stack().Local(name, v)
	}
	return 0, nil
}

// declareBuiltin implements `declare`/`typeset -a|-A|-i|-l|-u|-r|-x|-g|-p`.
func declareBuiltin(sh Shell, argv []string, io IO) (int, error) {
	var attrs value.Attr
	global := false
	printOnly := false
	args := argv[1:]
	i := 0
	for ; i < len(args); i++ {
		a := args[i]
		if !strings.HasPrefix(a, "-") || a == "-" {
			break
		}
		for _, c := range a[1:] {
			switch c {
			case 'a', 'A':
				// array kinds are established by the assignment syntax
				// itself; the flag only documents intent here.
			case 'i':
				attrs |= value.AttrInteger
			case 'l':
				attrs |= value.AttrLower
			case 'u':
				attrs |= value.AttrUpper
			case 'r':
				attrs |= value.AttrReadonly
			case 'x':
				attrs |= value.AttrExported
			case 'g':
				global = true
			case 'p':
				printOnly = true
			case 'f':
				// function listing, handled below when no names given
			}
		}
	}
	rest := args[i:]
	if printOnly || (len(rest) == 0 && attrs == 0) {
		for _, name := range sh.Stack().Names() {
			v, _ := sh.Stack().Lookup(name)
			fmt.Fprintf(io.Stdout, "declare -- %s=%s\n", name, quoteSingle(v.AsScalar()))
		}
		return 0, nil
	}
	for _, a := range rest {
		name, val, hasVal := strings.Cut(a, "=")
		v, ok := sh.Stack().Lookup(name)
		if !ok {
			v = value.NewScalar("")
		} else {
			cp := *v
			v = &cp
		}
		if hasVal {
			v.Scalar = val
		}
		v.Attrs |= attrs
		if v.Attrs.Has(value.AttrInteger) {
			v.Scalar = value.CoerceInteger(v.Scalar)
		}
		if v.Attrs.Has(value.AttrLower) || v.Attrs.Has(value.AttrUpper) {
			v.Scalar = value.ApplyCase(v.Attrs, v.Scalar)
		}
		if global {
			sh.Stack().SetGlobal(name, v)
		} else {
			sh.Stack().Set(name, v)
		}
	}
	return 0, nil
}

func quoteSingle(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
