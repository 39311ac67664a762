package builtin

import (
	"strconv"

	"github.com/vercel-labs/just-bash/vfs"
)

// testBuiltin implements POSIX `test expr` (distinct from the `[[ ]]`
// conditional expression, which the walker evaluates directly from the
// ast.Cond node rather than dispatching through a builtin).
func testBuiltin(sh Shell, argv []string, io IO) (int, error) {
	return evalTest(sh, argv[1:])
}

// testBracketBuiltin implements `[ expr ]`, requiring the trailing `]`.
func testBracketBuiltin(sh Shell, argv []string, io IO) (int, error) {
	args := argv[1:]
	if len(args) == 0 || args[len(args)-1] != "]" {
		return 2, nil
	}
	return evalTest(sh, args[:len(args)-1])
}

func evalTest(sh Shell, args []string) (int, error) {
	if len(args) == 0 {
		return 1, nil
	}
	if len(args) == 1 {
		return boolStatus(args[0] != ""), nil
	}
	if len(args) == 2 && args[0] == "!" {
		s, _ := evalTest(sh, args[1:])
		return boolStatus(s != 0), nil
	}
	if len(args) == 2 {
		return evalUnaryTest(sh, args[0], args[1]), nil
	}
	if len(args) == 3 {
		return evalBinaryTest(args[0], args[1], args[2]), nil
	}
	return 2, nil
}

func boolStatus(b bool) int {
	if b {
		return 0
	}
	return 1
}

func evalUnaryTest(sh Shell, op, operand string) int {
	switch op {
	case "-z":
		return boolStatus(operand == "")
	case "-n":
		return boolStatus(operand != "")
	case "-e", "-f", "-d", "-r", "-w", "-x", "-s", "-L", "-h", "-p", "-S":
		path := vfs.ResolvePath(sh.CWD(), operand)
		fi, err := sh.FS().Stat(path)
		if err != nil {
			return 1
		}
		switch op {
		case "-d":
			return boolStatus(fi.Mode.IsDir())
		case "-f":
			return boolStatus(!fi.Mode.IsDir() && fi.Mode&vfs.ModeSymlink == 0)
		case "-s":
			return boolStatus(fi.Size > 0)
		case "-r":
			return boolStatus(fi.Mode&vfs.ModeRead != 0)
		case "-w":
			return boolStatus(fi.Mode&vfs.ModeWrite != 0)
		case "-x":
			return boolStatus(fi.Mode&vfs.ModeExec != 0)
		case "-L", "-h":
			return boolStatus(fi.Mode&vfs.ModeSymlink != 0)
		default:
			return 0
		}
	default:
		return 1
	}
}

func evalBinaryTest(left, op, right string) int {
	switch op {
	case "=", "==":
		return boolStatus(left == right)
	case "!=":
		return boolStatus(left != right)
	case "-eq", "-ne", "-lt", "-le", "-gt", "-ge":
		l, lerr := strconv.ParseInt(left, 0, 64)
		r, rerr := strconv.ParseInt(right, 0, 64)
		if lerr != nil || rerr != nil {
			return 2
		}
		switch op {
		case "-eq":
			return boolStatus(l == r)
		case "-ne":
			return boolStatus(l != r)
		case "-lt":
			return boolStatus(l < r)
		case "-le":
			return boolStatus(l <= r)
		case "-gt":
			return boolStatus(l > r)
		case "-ge":
			return boolStatus(l >= r)
		}
	}
	return 1
}
