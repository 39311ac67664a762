package interp

import (
	"regexp"
	"strconv"

	"github.com/vercel-labs/just-bash/ast"
	"github.com/vercel-labs/just-bash/envframe"
	"github.com/vercel-labs/just-bash/glob"
	"github.com/vercel-labs/just-bash/value"
	"github.com/vercel-labs/just-bash/vfs"
)

// execCond evaluates a `[[ expr ]]` tree, returning exit
// status 0 for true and 1 for false; malformed operands (bad regex, a
// non-numeric `-eq` operand) report status 2 the way Bash's `test` does.
func (ip *Interp) execCond(c *ast.Cond) (int, error) {
	ok, err := ip.evalCondExpr(c.Expr)
	if err != nil {
		ip.writeStderr(err.Error() + "\n")
		return 2, nil
	}
	return boolStatus(ok), nil
}

func boolStatus(ok bool) int {
	if ok {
		return 0
	}
	return 1
}

func (ip *Interp) evalCondExpr(e ast.CondExpr) (bool, error) {
	switch x := e.(type) {
	case *ast.CondGroup:
		return ip.evalCondExpr(x.X)
	case *ast.CondNot:
		ok, err := ip.evalCondExpr(x.X)
		return !ok, err
	case *ast.CondAnd:
		left, err := ip.evalCondExpr(x.Left)
		if err != nil || !left {
			return false, err
		}
		return ip.evalCondExpr(x.Right)
	case *ast.CondOr:
		left, err := ip.evalCondExpr(x.Left)
		if err != nil {
			return false, err
		}
		if left {
			return true, nil
		}
		return ip.evalCondExpr(x.Right)
	case *ast.CondUnary:
		return ip.evalCondUnary(x)
	case *ast.CondBinary:
		return ip.evalCondBinary(x)
	}
	return false, nil
}

func (ip *Interp) condWord(w *ast.Word) (string, error) {
	return ip.expander.ExpandAssignmentValue(w)
}

func (ip *Interp) evalCondUnary(u *ast.CondUnary) (bool, error) {
	if u.Op == "-v" {
		name, err := ip.condWord(u.Operand)
		if err != nil {
			return false, err
		}
		_, ok := ip.stack.Lookup(name)
		return ok, nil
	}
	if u.Op == "-o" {
		name, err := ip.condWord(u.Operand)
		if err != nil {
			return false, err
		}
		return shellOptionOn(ip.stack.Top().Flags, name), nil
	}

	s, err := ip.condWord(u.Operand)
	if err != nil {
		return false, err
	}

	switch u.Op {
	case "-z":
		return s == "", nil
	case "-n":
		return s != "", nil
	}

	fi, statErr := ip.fs.Stat(vfs.ResolvePath(ip.cwd, s))
	switch u.Op {
	case "-e":
		return statErr == nil, nil
	case "-f":
		return statErr == nil && !fi.Mode.IsDir() && fi.Mode&vfs.ModeSymlink == 0, nil
	case "-d":
		return statErr == nil && fi.Mode.IsDir(), nil
	case "-L", "-h":
		return statErr == nil && fi.Mode&vfs.ModeSymlink != 0, nil
	case "-r":
		return statErr == nil && fi.Mode&vfs.ModeRead != 0, nil
	case "-w":
		return statErr == nil && fi.Mode&vfs.ModeWrite != 0, nil
	case "-x":
		return statErr == nil && fi.Mode&vfs.ModeExec != 0, nil
	case "-s":
		return statErr == nil && fi.Size > 0, nil
	case "-p", "-S", "-b", "-c", "-g", "-u", "-k", "-G", "-O", "-N", "-t", "-R":
		// Device/IPC/ownership/terminal predicates have no meaning in a
		// sandboxed virtual filesystem with no process table; always false.
		return false, nil
	}
	return false, nil
}

func (ip *Interp) evalCondBinary(b *ast.CondBinary) (bool, error) {
	left, err := ip.condWord(b.Left)
	if err != nil {
		return false, err
	}

	if b.Op == "-nt" || b.Op == "-ot" || b.Op == "-ef" {
		right, err := ip.condWord(b.Right)
		if err != nil {
			return false, err
		}
		return ip.evalFileCompare(b.Op, left, right), nil
	}

	switch b.Op {
	case "=", "==":
		right, err := ip.condWord(b.Right)
		if err != nil {
			return false, err
		}
		return glob.Match(right, left, glob.Options{Extglob: ip.stack.Top().Flags.Extglob}), nil
	case "!=":
		right, err := ip.condWord(b.Right)
		if err != nil {
			return false, err
		}
		return !glob.Match(right, left, glob.Options{Extglob: ip.stack.Top().Flags.Extglob}), nil
	case "<":
		right, err := ip.condWord(b.Right)
		if err != nil {
			return false, err
		}
		return left < right, nil
	case ">":
		right, err := ip.condWord(b.Right)
		if err != nil {
			return false, err
		}
		return left > right, nil
	case "=~":
		pattern, err := ip.condWord(b.Right)
		if err != nil {
			return false, err
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false, err
		}
		match := re.FindStringSubmatch(left)
		if match == nil {
			ip.bashRematch = nil
			return false, nil
		}
		ip.bashRematch = match
		ip.stack.SetGlobal("BASH_REMATCH", value.NewIndexed(match))
		return true, nil
	}

	right, err := ip.condWord(b.Right)
	if err != nil {
		return false, err
	}
	ln, lerr := strconv.ParseInt(left, 0, 64)
	rn, rerr := strconv.ParseInt(right, 0, 64)
	if lerr != nil || rerr != nil {
		return false, &strconvCondError{op: b.Op}
	}
	switch b.Op {
	case "-eq":
		return ln == rn, nil
	case "-ne":
		return ln != rn, nil
	case "-lt":
		return ln < rn, nil
	case "-le":
		return ln <= rn, nil
	case "-gt":
		return ln > rn, nil
	case "-ge":
		return ln >= rn, nil
	}
	return false, nil
}

func (ip *Interp) evalFileCompare(op, left, right string) bool {
	lf, lerr := ip.fs.Stat(vfs.ResolvePath(ip.cwd, left))
	rf, rerr := ip.fs.Stat(vfs.ResolvePath(ip.cwd, right))
	switch op {
	case "-nt":
		return lerr == nil && (rerr != nil || lf.ModTime.After(rf.ModTime))
	case "-ot":
		return rerr == nil && (lerr != nil || rf.ModTime.After(lf.ModTime))
	case "-ef":
		return lerr == nil && rerr == nil && vfs.ResolvePath(ip.cwd, left) == vfs.ResolvePath(ip.cwd, right)
	}
	return false
}

type strconvCondError struct{ op string }

func (e *strconvCondError) Error() string { return e.op + ": operand is not numeric" }

// shellOptionOn backs `[[ -o name ]]`, the `set -o` query form.
func shellOptionOn(f envframe.Flags, name string) bool {
	switch name {
	case "errexit":
		return f.Errexit
	case "pipefail":
		return f.Pipefail
	case "nounset":
		return f.Nounset
	case "noglob":
		return f.Noglob
	case "xtrace":
		return f.Xtrace
	case "verbose":
		return f.Verbose
	}
	return false
}
