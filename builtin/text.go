package builtin

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vercel-labs/just-bash/value"
)

func trueBuiltin(sh Shell, argv []string, io IO) (int, error)  { return 0, nil }
func falseBuiltin(sh Shell, argv []string, io IO) (int, error) { return 1, nil }

func echoBuiltin(sh Shell, argv []string, io IO) (int, error) {
	args := argv[1:]
	newline := true
	interpret := false
	for len(args) > 0 && len(args[0]) >= 2 && args[0][0] == '-' {
		flag := args[0][1:]
		if strings.Trim(flag, "neE") != "" {
			break
		}
		if strings.ContainsRune(flag, 'n') {
			newline = false
		}
		if strings.ContainsRune(flag, 'e') {
			interpret = true
		}
		if strings.ContainsRune(flag, 'E') {
			interpret = false
		}
		args = args[1:]
	}
	out := strings.Join(args, " ")
	if interpret {
		out = interpretBackslashes(out)
	}
	fmt.Fprint(io.Stdout, out)
	if newline {
		fmt.Fprintln(io.Stdout)
	}
	return 0, nil
}

func interpretBackslashes(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '\\':
			b.WriteByte('\\')
		case 'a':
			b.WriteByte('\a')
		case '0':
			b.WriteByte(0)
		default:
			b.WriteByte('\\')
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// printfBuiltin supports the common conversions (%s %d %i %b %q %% and a
// literal passthrough) applied cyclically over the argument list, the way
// Bash reuses a short format against extra operands.
func printfBuiltin(sh Shell, argv []string, io IO) (int, error) {
	if len(argv) < 2 {
		return 0, nil
	}
	format := interpretBackslashes(argv[1])
	operands := argv[2:]
	oi := 0
	nextOperand := func() string {
		if oi < len(operands) {
			o := operands[oi]
			oi++
			return o
		}
		return ""
	}

	render := func() {
		var b strings.Builder
		for i := 0; i < len(format); i++ {
			if format[i] != '%' || i+1 >= len(format) {
				b.WriteByte(format[i])
				continue
			}
			i++
			switch format[i] {
			case '%':
				b.WriteByte('%')
			case 's':
				b.WriteString(nextOperand())
			case 'd', 'i':
				n, _ := strconv.ParseInt(strings.TrimSpace(nextOperand()), 0, 64)
				b.WriteString(strconv.FormatInt(n, 10))
			case 'b':
				b.WriteString(interpretBackslashes(nextOperand()))
			case 'q':
				b.WriteString(quoteSingle(nextOperand()))
			default:
				b.WriteByte('%')
				b.WriteByte(format[i])
			}
		}
		fmt.Fprint(io.Stdout, b.String())
	}

	if len(operands) == 0 {
		render()
		return 0, nil
	}
	for oi < len(operands) {
		before := oi
		render()
		if oi == before {
			break
		}
	}
	return 0, nil
}

// readBuiltin implements `read [-r] [-p prompt] [-a arr] [-d delim] var...`
// against the one-string stdin the pipeline engine hands every command.
func readBuiltin(sh Shell, argv []string, io IO) (int, error) {
	args := argv[1:]
	raw := false
	prompt := ""
	arrayName := ""
	delim := byte('\n')
	for len(args) > 0 && strings.HasPrefix(args[0], "-") && args[0] != "-" {
		switch args[0] {
		case "-r":
			raw = true
			args = args[1:]
		case "-p":
			if len(args) > 1 {
				prompt = args[1]
				args = args[2:]
			} else {
				args = args[1:]
			}
		case "-a":
			if len(args) > 1 {
				arrayName = args[1]
				args = args[2:]
			} else {
				args = args[1:]
			}
		case "-d":
			if len(args) > 1 {
				if len(args[1]) > 0 {
					delim = args[1][0]
				}
				args = args[2:]
			} else {
				args = args[1:]
			}
		default:
			args = args[1:]
		}
	}
	if prompt != "" {
		fmt.Fprint(io.Stderr, prompt)
	}

	line, ok := sh.ReadStdinLine(delim)
	eof := !ok
	line = strings.TrimSuffix(line, string(delim))
	if !raw {
		line = strings.ReplaceAll(line, "\\\n", "")
	}

	ifs := " \t\n"
	if v, ok := sh.Stack().Lookup("IFS"); ok {
		ifs = v.AsScalar()
	}
	fields := splitOnAny(line, ifs)

	if arrayName != "" {
		sh.Stack().Set(arrayName, value.NewIndexed(fields))
	} else if len(args) == 0 {
		sh.Stack().Set("REPLY", value.NewScalar(line))
	} else {
		for i, name := range args {
			if i == len(args)-1 && i < len(fields) {
				sh.Stack().Set(name, value.NewScalar(strings.Join(fields[i:], " ")))
			} else if i < len(fields) {
				sh.Stack().Set(name, value.NewScalar(fields[i]))
			} else {
				sh.Stack().Set(name, value.NewScalar(""))
			}
		}
	}
	if eof {
		return 1, nil
	}
	return 0, nil
}

func splitOnAny(s, chars string) []string {
	if chars == "" {
		return []string{s}
	}
	return strings.FieldsFunc(s, func(r rune) bool { return strings.ContainsRune(chars, r) })
}

func commandBuiltin(sh Shell, argv []string, io IO) (int, error) {
	if len(argv) > 1 {
		if fn, ok := Lookup(argv[1]); ok {
			return fn(sh, argv[1:], io)
		}
	}
	fmt.Fprintln(io.Stderr, "command: only builtins are supported as operands")
	return 1, nil
}

func typeBuiltin(sh Shell, argv []string, io IO) (int, error) {
	status := 0
	for _, name := range argv[1:] {
		if _, ok := sh.Stack().Top().Functions[name]; ok {
			fmt.Fprintf(io.Stdout, "%s is a function\n", name)
			continue
		}
		if _, ok := Lookup(name); ok {
			fmt.Fprintf(io.Stdout, "%s is a shell builtin\n", name)
			continue
		}
		fmt.Fprintf(io.Stderr, "type: %s: not found\n", name)
		status = 1
	}
	return status, nil
}
