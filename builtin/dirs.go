package builtin

import (
	"fmt"
	"strings"

	"github.com/vercel-labs/just-bash/envframe"
)

func aliasBuiltin(sh Shell, argv []string, io IO) (int, error) {
	args := argv[1:]
	top := sh.Stack().Top()
	if len(args) == 0 {
		for name, body := range top.Aliases {
			fmt.Fprintf(io.Stdout, "alias %s=%s\n", name, quoteSingle(body))
		}
		return 0, nil
	}
	status := 0
	for _, a := range args {
		name, val, hasVal := strings.Cut(a, "=")
		if !hasVal {
			if body, ok := top.Aliases[name]; ok {
				fmt.Fprintf(io.Stdout, "alias %s=%s\n", name, quoteSingle(body))
			} else {
				fmt.Fprintf(io.Stderr, "alias: %s: not found\n", name)
				status = 1
			}
			continue
		}
		top.Aliases[name] = val
	}
	return status, nil
}

func unaliasBuiltin(sh Shell, argv []string, io IO) (int, error) {
	top := sh.Stack().Top()
	args := argv[1:]
	if len(args) > 0 && args[0] == "-a" {
		top.Aliases = map[string]string{}
		return 0, nil
	}
	status := 0
	for _, name := range args {
		if _, ok := top.Aliases[name]; !ok {
			fmt.Fprintf(io.Stderr, "unalias: %s: not found\n", name)
			status = 1
			continue
		}
		delete(top.Aliases, name)
	}
	return status, nil
}

func pushdBuiltin(sh Shell, argv []string, io IO) (int, error) {
	if len(argv) < 2 {
		fmt.Fprintln(io.Stderr, "pushd: no other directory")
		return 1, nil
	}
	target := argv[1]
	prev := sh.CWD()
	if err := sh.Chdir(target); err != nil {
		fmt.Fprintf(io.Stderr, "pushd: %s\n", err)
		return 1, nil
	}
	sh.PushDir(prev)
	printDirs(sh, io)
	return 0, nil
}

func popdBuiltin(sh Shell, argv []string, io IO) (int, error) {
	dir, ok := sh.PopDir()
	if !ok {
		fmt.Fprintln(io.Stderr, "popd: directory stack empty")
		return 1, nil
	}
	if err := sh.Chdir(dir); err != nil {
		fmt.Fprintf(io.Stderr, "popd: %s\n", err)
		return 1, nil
	}
	printDirs(sh, io)
	return 0, nil
}

func dirsBuiltin(sh Shell, argv []string, io IO) (int, error) {
	for _, a := range argv[1:] {
		if a == "-c" {
			for sh.DirStack() != nil {
				if _, ok := sh.PopDir(); !ok {
					break
				}
			}
			return 0, nil
		}
	}
	printDirs(sh, io)
	return 0, nil
}

func printDirs(sh Shell, io IO) {
	stack := append([]string{sh.CWD()}, sh.DirStack()...)
	fmt.Fprintln(io.Stdout, strings.Join(stack, " "))
}

// setBuiltin implements `set [-e|+e] [-u|+u] [-x|+x] [-o pipefail|+o pipefail] [--] args...`.
func setBuiltin(sh Shell, argv []string, io IO) (int, error) {
	flags := &sh.Stack().Top().Flags
	args := argv[1:]
	i := 0
	for ; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			i++
			break
		}
		if len(a) < 2 || (a[0] != '-' && a[0] != '+') {
			break
		}
		on := a[0] == '-'
		if a[1:] == "o" && i+1 < len(args) {
			i++
			applyNamedFlag(flags, args[i], on)
			continue
		}
		for _, c := range a[1:] {
			switch c {
			case 'e':
				flags.Errexit = on
			case 'u':
				flags.Nounset = on
			case 'x':
				flags.Xtrace = on
			case 'v':
				flags.Verbose = on
			}
		}
	}
	if i < len(args) {
		sh.Stack().Top().Positional = args[i:]
	}
	return 0, nil
}

func applyNamedFlag(flags *envframe.Flags, name string, on bool) {
	switch name {
	case "pipefail":
		flags.Pipefail = on
	case "noglob":
		flags.Noglob = on
	case "errexit":
		flags.Errexit = on
	case "nounset":
		flags.Nounset = on
	case "xtrace":
		flags.Xtrace = on
	case "verbose":
		flags.Verbose = on
	}
}

// shoptBuiltin implements `shopt -s|-u name...` for the handful of shell
// options the walker consults (extglob, nullglob, lastpipe).
func shoptBuiltin(sh Shell, argv []string, io IO) (int, error) {
	flags := &sh.Stack().Top().Flags
	args := argv[1:]
	on := true
	if len(args) > 0 && (args[0] == "-s" || args[0] == "-u") {
		on = args[0] == "-s"
		args = args[1:]
	}
	if len(args) == 0 {
		for _, name := range []string{"extglob", "nullglob", "lastpipe"} {
			fmt.Fprintf(io.Stdout, "%s\t%s\n", name, onOff(shoptValue(flags, name)))
		}
		return 0, nil
	}
	for _, name := range args {
		switch name {
		case "extglob":
			flags.Extglob = on
		case "nullglob":
			flags.Nullglob = on
		case "lastpipe":
			flags.Lastpipe = on
		default:
			fmt.Fprintf(io.Stderr, "shopt: %s: invalid shell option name\n", name)
			return 1, nil
		}
	}
	return 0, nil
}

func shoptValue(flags *envframe.Flags, name string) bool {
	switch name {
	case "extglob":
		return flags.Extglob
	case "nullglob":
		return flags.Nullglob
	case "lastpipe":
		return flags.Lastpipe
	}
	return false
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func trapBuiltin(sh Shell, argv []string, io IO) (int, error) {
	args := argv[1:]
	if len(args) > 0 && args[0] == "--" {
		args = args[1:]
	}
	if len(args) == 0 {
		return 0, nil
	}
	if len(args) == 1 {
		// `trap -- SIGNAL` or `trap SIGNAL` alone is a query, not a clear.
		if body, ok := sh.Trap(args[0]); ok {
			fmt.Fprintf(io.Stdout, "trap -- %s %s\n", quoteSingle(body), args[0])
		}
		return 0, nil
	}
	body := args[0]
	for _, sig := range args[1:] {
		sh.SetTrap(sig, body)
	}
	return 0, nil
}
