// Package arith evaluates the arithmetic-expression AST shared by
// $((...)), (( )), array subscripts, and C-style for headers, using
// 64-bit signed semantics)").
package arith

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vercel-labs/just-bash/ast"
)

// Accessor is the variable/command-substitution surface arithmetic
// evaluation needs from the interpreter; it lets this package stay free of
// any dependency on envframe or interp.
type Accessor interface {
	Get(name string) (string, bool)
	GetIndex(name string, idx int64) (string, bool)
	Set(name, value string)
	SetIndex(name string, idx int64, value string)
	RunCommandSubst(sub *ast.CommandSubstitution) (string, error)
}

// Error wraps an arithmetic evaluation failure (bad substitution,
// division by zero) so it can propagate to command failure.
type Error struct{ Msg string }

func (e *Error) Error() string { return e.Msg }

// Eval evaluates expr against acc, recursing at most maxVarDepth times
// when a variable's value is itself not a plain integer (Bash re-expands
// variable values as arithmetic).
func Eval(expr *ast.ArithExpr, acc Accessor) (int64, error) {
	return eval(expr, acc, 0)
}

const maxVarDepth = 32

func eval(e *ast.ArithExpr, acc Accessor, depth int) (int64, error) {
	if e == nil {
		return 0, nil
	}
	if depth > maxVarDepth {
		return 0, &Error{Msg: "arithmetic: expression recursion too deep"}
	}

	switch e.Kind {
	case ast.ArithNumber:
		return e.Num, nil

	case ast.ArithVar:
		return evalVarRead(e, acc, depth)

	case ast.ArithGroup:
		return eval(e.X, acc, depth)

	case ast.ArithComma:
		var last int64
		for _, item := range e.List {
			v, err := eval(item, acc, depth)
			if err != nil {
				return 0, err
			}
			last = v
		}
		return last, nil

	case ast.ArithCommandSubst:
		s, err := acc.RunCommandSubst(e.Sub)
		if err != nil {
			return 0, err
		}
		return parseInt(strings.TrimSpace(s))

	case ast.ArithUnary:
		return evalUnary(e, acc, depth)

	case ast.ArithPostfix:
		return evalPostfix(e, acc, depth)

	case ast.ArithBinary:
		return evalBinary(e, acc, depth)

	case ast.ArithTernary:
		c, err := eval(e.Cond, acc, depth)
		if err != nil {
			return 0, err
		}
		if c != 0 {
			return eval(e.Then, acc, depth)
		}
		return eval(e.Else, acc, depth)

	case ast.ArithAssign:
		return evalAssign(e, acc, depth)
	}
	return 0, &Error{Msg: "arithmetic: unknown node"}
}

func evalVarRead(e *ast.ArithExpr, acc Accessor, depth int) (int64, error) {
	var s string
	var ok bool
	if e.Index != nil {
		idx, err := eval(e.Index, acc, depth+1)
		if err != nil {
			return 0, err
		}
		s, ok = acc.GetIndex(e.Name, idx)
	} else {
		s, ok = acc.Get(e.Name)
	}
	if !ok || s == "" {
		return 0, nil
	}
	if n, err := parseInt(s); err == nil {
		return n, nil
	}
	// Not a plain integer: Bash recursively treats the variable's string
	// value as an arithmetic expression of its own.
	sub, err := Parse(s)
	if err != nil {
		return 0, &Error{Msg: fmt.Sprintf("arithmetic: bad value for %q: %s", e.Name, s)}
	}
	return eval(sub, acc, depth+1)
}

func evalUnary(e *ast.ArithExpr, acc Accessor, depth int) (int64, error) {
	switch e.Op {
	case "++", "--":
		v, err := eval(e.X, acc, depth)
		if err != nil {
			return 0, err
		}
		if e.Op == "++" {
			v++
		} else {
			v--
		}
		if err := assignTo(e.X, v, acc, depth); err != nil {
			return 0, err
		}
		return v, nil
	}
	v, err := eval(e.X, acc, depth)
	if err != nil {
		return 0, err
	}
	switch e.Op {
	case "-":
		return -v, nil
	case "+":
		return v, nil
	case "!":
		if v == 0 {
			return 1, nil
		}
		return 0, nil
	case "~":
		return ^v, nil
	}
	return 0, &Error{Msg: "arithmetic: unknown unary operator " + e.Op}
}

func evalPostfix(e *ast.ArithExpr, acc Accessor, depth int) (int64, error) {
	v, err := eval(e.X, acc, depth)
	if err != nil {
		return 0, err
	}
	nv := v
	if e.Op == "++" {
		nv++
	} else {
		nv--
	}
	if err := assignTo(e.X, nv, acc, depth); err != nil {
		return 0, err
	}
	return v, nil
}

func evalBinary(e *ast.ArithExpr, acc Accessor, depth int) (int64, error) {
	// Short-circuit && / ||.
	if e.Op == "&&" || e.Op == "||" {
		l, err := eval(e.X, acc, depth)
		if err != nil {
			return 0, err
		}
		if e.Op == "&&" && l == 0 {
			return 0, nil
		}
		if e.Op == "||" && l != 0 {
			return 1, nil
		}
		r, err := eval(e.Y, acc, depth)
		if err != nil {
			return 0, err
		}
		if r != 0 {
			return 1, nil
		}
		return 0, nil
	}

	l, err := eval(e.X, acc, depth)
	if err != nil {
		return 0, err
	}
	r, err := eval(e.Y, acc, depth)
	if err != nil {
		return 0, err
	}
	switch e.Op {
	case "+":
		return l + r, nil
	case "-":
		return l - r, nil
	case "*":
		return l * r, nil
	case "/":
		if r == 0 {
			return 0, &Error{Msg: "arithmetic: division by zero"}
		}
		return l / r, nil
	case "%":
		if r == 0 {
			return 0, &Error{Msg: "arithmetic: division by zero"}
		}
		return l % r, nil
	case "**":
		return ipow(l, r), nil
	case "<<":
		return l << uint(r), nil
	case ">>":
		return l >> uint(r), nil
	case "&":
		return l & r, nil
	case "|":
		return l | r, nil
	case "^":
		return l ^ r, nil
	case "<":
		return boolInt(l < r), nil
	case "<=":
		return boolInt(l <= r), nil
	case ">":
		return boolInt(l > r), nil
	case ">=":
		return boolInt(l >= r), nil
	case "==":
		return boolInt(l == r), nil
	case "!=":
		return boolInt(l != r), nil
	}
	return 0, &Error{Msg: "arithmetic: unknown operator " + e.Op}
}

func evalAssign(e *ast.ArithExpr, acc Accessor, depth int) (int64, error) {
	rhs, err := eval(e.Y, acc, depth)
	if err != nil {
		return 0, err
	}
	if e.Op != "=" {
		cur, err := eval(e.X, acc, depth)
		if err != nil {
			return 0, err
		}
		tmp := &ast.ArithExpr{Kind: ast.ArithBinary, Op: strings.TrimSuffix(e.Op, "="), X: numNode(cur), Y: numNode(rhs)}
		rhs, err = eval(tmp, acc, depth)
		if err != nil {
			return 0, err
		}
	}
	if err := assignTo(e.X, rhs, acc, depth); err != nil {
		return 0, err
	}
	return rhs, nil
}

func numNode(n int64) *ast.ArithExpr { return &ast.ArithExpr{Kind: ast.ArithNumber, Num: n} }

func assignTo(target *ast.ArithExpr, v int64, acc Accessor, depth int) error {
	if target.Kind != ast.ArithVar {
		return &Error{Msg: "arithmetic: invalid assignment target"}
	}
	if target.Index != nil {
		idx, err := eval(target.Index, acc, depth+1)
		if err != nil {
			return err
		}
		acc.SetIndex(target.Name, idx, strconv.FormatInt(v, 10))
		return nil
	}
	acc.Set(target.Name, strconv.FormatInt(v, 10))
	return nil
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func ipow(base, exp int64) int64 {
	if exp < 0 {
		return 0
	}
	var result int64 = 1
	for i := int64(0); i < exp; i++ {
		result *= base
	}
	return result
}

func parseInt(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, &Error{Msg: "arithmetic: empty value"}
	}
	return strconv.ParseInt(s, 0, 64)
}
