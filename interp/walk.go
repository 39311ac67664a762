package interp

import (
	"fmt"
	"strings"

	"github.com/vercel-labs/just-bash/ast"
	"github.com/vercel-labs/just-bash/envframe"
	"github.com/vercel-labs/just-bash/glob"
	"github.com/vercel-labs/just-bash/govern"
	"github.com/vercel-labs/just-bash/value"
)

// stdinCursor is the ambient fd0 a pipeline stage inherits; `read`
// consumes from it progressively across loop iterations, while most
// other commands just see the whole remaining buffer as their input.
type stdinCursor struct{ data string }

func (c *stdinCursor) readLine(delim byte) (string, bool) {
	if c == nil || c.data == "" {
		return "", false
	}
	if i := strings.IndexByte(c.data, delim); i >= 0 {
		line := c.data[:i+1]
		c.data = c.data[i+1:]
		return line, true
	}
	line := c.data
	c.data = ""
	return line, true
}

// ReadStdinLine implements builtin.Shell.
func (ip *Interp) ReadStdinLine(delim byte) (string, bool) {
	return ip.stdin.readLine(delim)
}

// execScriptInPlace runs every top-level list of script against the
// current frame and current ip.stdout/ip.stderr sink, honoring errexit at
// each untested pipeline.
func (ip *Interp) execScriptInPlace(script *ast.Script) (int, error) {
	code := 0
	for _, list := range script.Lists {
		c, err := ip.execList(list, false)
		code = c
		if err != nil {
			return code, err
		}
	}
	return code, nil
}

// execList runs one &&/||-chained list, short-circuiting per the usual
// rules. tested marks this list as a condition context (if/while/until),
// which exempts every pipeline in it from errexit.
func (ip *Interp) execList(list *ast.List, tested bool) (int, error) {
	result := 0
	skip := false
	for i, pl := range list.Pipelines {
		if i > 0 {
			switch list.Operators[i-1] {
			case ast.LogAnd:
				skip = result != 0
			case ast.LogOr:
				skip = result == 0
			}
		}
		if skip {
			continue
		}
		isLast := i == len(list.Pipelines)-1
		exempt := !isLast || tested
		code, err := ip.execPipelineTop(pl, exempt)
		result = code
		if err != nil {
			return result, err
		}
	}
	return result, nil
}

// execPipelineTop runs one pipeline, charges the governor, wires its
// output into the current sink, updates $PIPESTATUS, and applies
// negation + errexit.
func (ip *Interp) execPipelineTop(pl *ast.Pipeline, errexitExempt bool) (int, error) {
	stdout, stderr, codes, err := ip.execPipeline(pl, "")
	ip.writeStdout(stdout)
	ip.writeStderr(stderr)
	if err != nil {
		return lastOrZero(codes), err
	}
	ip.pipeStatus = codes
	ps := make([]string, len(codes))
	for i, c := range codes {
		ps[i] = fmt.Sprint(c)
	}
	ip.stack.SetGlobal("PIPESTATUS", value.NewIndexed(ps))
	raw := codes[len(codes)-1]
	if ip.stack.Top().Flags.Pipefail {
		raw = rightmostNonZero(codes)
	}
	effective := raw
	if pl.Negated {
		effective = boolNeg(raw)
	}
	if ip.stack.Top().Flags.Errexit && effective != 0 && !errexitExempt && !pl.Negated {
		return effective, &ErrexitError{Code: effective}
	}
	return effective, nil
}

func lastOrZero(codes []int) int {
	if len(codes) == 0 {
		return 0
	}
	return codes[len(codes)-1]
}

func rightmostNonZero(codes []int) int {
	for i := len(codes) - 1; i >= 0; i-- {
		if codes[i] != 0 {
			return codes[i]
		}
	}
	return 0
}

func boolNeg(code int) int {
	if code == 0 {
		return 1
	}
	return 0
}

// execPipeline runs every stage of pl, piping each stage's captured
// output into the next stage's stdin. Every stage runs in a
// cloned frame unless it is the pipeline's sole command, or it is the
// final stage under `lastpipe`.
func (ip *Interp) execPipeline(pl *ast.Pipeline, stdin string) (stdout, stderr string, exitCodes []int, err error) {
	n := len(pl.Commands)
	exitCodes = make([]int, n)
	cur := stdin
	var finalOut, finalErr string
	for i := 0; i < n; i++ {
		isLast := i == n-1
		useParentFrame := n == 1 || (isLast && ip.stack.Top().Flags.Lastpipe)
		out, errOut, code, stageErr := ip.execStage(pl.Commands[i], cur, useParentFrame)
		exitCodes[i] = code
		if stageErr != nil {
			return out, errOut, exitCodes, stageErr
		}
		if isLast {
			finalOut, finalErr = out, errOut
		} else {
			next := out
			if pl.PipeStderr[i] {
				next += errOut
			} else {
				ip.writeStderr(errOut)
			}
			cur = next
		}
	}
	return finalOut, finalErr, exitCodes, nil
}

// execStage runs one pipeline command in isolation: its own stdin cursor,
// its own output sink (captured so the caller can pipe or emit it), and
// optionally its own cloned frame.
func (ip *Interp) execStage(cmd ast.Command, stdin string, useParentFrame bool) (stdoutOut, stderrOut string, code int, err error) {
	savedOut, savedErr := ip.stdout, ip.stderr
	ip.stdout, ip.stderr = &strings.Builder{}, &strings.Builder{}
	defer func() { ip.stdout, ip.stderr = savedOut, savedErr }()

	savedStdin := ip.stdin
	ip.stdin = &stdinCursor{data: stdin}
	defer func() { ip.stdin = savedStdin }()

	if !useParentFrame {
		saved := ip.stack
		clone := envframe.NewStack(ip.stack.Top().Clone())
		ip.swapStack(clone)
		defer ip.swapStack(saved)
	}

	if chErr := ip.governor.ChargeCommand(); chErr != nil {
		return "", "", govern.ReservedExitCode, chErr
	}
	code, err = ip.runCommandNode(cmd)
	return ip.stdout.String(), ip.stderr.String(), code, err
}

// runCommandNode dispatches one Command node to its walk semantics (spec
// §4.G), writing to whatever ip.stdout/ip.stderr currently point at.
func (ip *Interp) runCommandNode(cmd ast.Command) (int, error) {
	if _, ok := cmd.(*ast.SimpleCommand); !ok {
		if redirects := commandRedirects(cmd); len(redirects) > 0 {
			_, flush, err := ip.setupRedirects(redirects)
			if err != nil {
				ip.writeStderr(err.Error() + "\n")
				return 1, nil
			}
			defer flush()
		}
	}
	switch c := cmd.(type) {
	case *ast.SimpleCommand:
		return ip.execSimple(c)
	case *ast.If:
		return ip.execIf(c)
	case *ast.While:
		return ip.execWhile(c)
	case *ast.For:
		return ip.execFor(c)
	case *ast.CStyleFor:
		return ip.execCStyleFor(c)
	case *ast.Case:
		return ip.execCase(c)
	case *ast.Group:
		return ip.execScriptInPlace(c.Body)
	case *ast.Subshell:
		return ip.execSubshell(c)
	case *ast.FunctionDef:
		ip.stack.Top().Functions[c.Name] = c
		return 0, nil
	case *ast.Cond:
		return ip.execCond(c)
	case *ast.ArithEval:
		n, err := ip.expander.EvalArith(c.Expr)
		if err != nil {
			ip.writeStderr(err.Error() + "\n")
			return 1, nil
		}
		return zeroToOne(n), nil
	default:
		return 1, fmt.Errorf("interp: unhandled command node %T", cmd)
	}
}

// commandRedirects extracts a compound command's trailing redirects, e.g.
// `while ...; done < file` or `{ ...; } > out`. SimpleCommand manages its
// own redirects inside execSimple and is never passed here.
func commandRedirects(cmd ast.Command) []*ast.Redirect {
	switch c := cmd.(type) {
	case *ast.If:
		return c.Redirects
	case *ast.While:
		return c.Redirects
	case *ast.For:
		return c.Redirects
	case *ast.CStyleFor:
		return c.Redirects
	case *ast.Case:
		return c.Redirects
	case *ast.Group:
		return c.Redirects
	case *ast.Subshell:
		return c.Redirects
	case *ast.Cond:
		return c.Redirects
	case *ast.ArithEval:
		return c.Redirects
	default:
		return nil
	}
}

// zeroToOne renders (( expr )) 's truthiness: exit 0 iff the arithmetic
// result is non-zero.
func zeroToOne(n int64) int {
	if n != 0 {
		return 0
	}
	return 1
}

func (ip *Interp) execSubshell(c *ast.Subshell) (int, error) {
	saved := ip.stack
	clone := envframe.NewStack(ip.stack.Top().Clone())
	ip.swapStack(clone)
	savedCWD := ip.cwd
	defer func() {
		ip.swapStack(saved)
		ip.cwd = savedCWD
		ip.expander.CWD = savedCWD
	}()
	return ip.execScriptInPlace(c.Body)
}

func (ip *Interp) execIf(c *ast.If) (int, error) {
	for i, cond := range c.Conds {
		code, err := ip.execList(cond, true)
		if err != nil {
			return code, err
		}
		if code == 0 {
			return ip.execScriptInPlace(c.Blocks[i])
		}
	}
	if c.Else != nil {
		return ip.execScriptInPlace(c.Else)
	}
	return 0, nil
}

func (ip *Interp) execWhile(c *ast.While) (int, error) {
	marker, release := ip.governor.NewLoop()
	defer release()
	code := 0
	for {
		condCode, err := ip.execList(c.Cond, true)
		if err != nil {
			return condCode, err
		}
		truthy := condCode == 0
		if c.Until {
			truthy = !truthy
		}
		if !truthy {
			break
		}
		if err := ip.governor.ChargeLoop(marker); err != nil {
			return govern.ReservedExitCode, err
		}
		bodyCode, err := ip.execScriptInPlace(c.Body)
		code = bodyCode
		if err != nil {
			if handled, stop, rc := ip.handleLoopControl(err); handled {
				if stop {
					return rc, nil
				}
				continue
			}
			return code, err
		}
	}
	return code, nil
}

func (ip *Interp) execFor(c *ast.For) (int, error) {
	var words []string
	var err error
	if c.HasIn {
		words, err = ip.expander.ExpandWords(c.Words)
		if err != nil {
			ip.writeStderr(err.Error() + "\n")
			return 1, nil
		}
	} else {
		words = ip.stack.Top().Positional
	}
	marker, release := ip.governor.NewLoop()
	defer release()
	code := 0
	for _, w := range words {
		if err := ip.governor.ChargeLoop(marker); err != nil {
			return govern.ReservedExitCode, err
		}
		ip.stack.Set(c.Var, value.NewScalar(w))
		bodyCode, err := ip.execScriptInPlace(c.Body)
		code = bodyCode
		if err != nil {
			if handled, stop, rc := ip.handleLoopControl(err); handled {
				if stop {
					return rc, nil
				}
				continue
			}
			return code, err
		}
	}
	return code, nil
}

func (ip *Interp) execCStyleFor(c *ast.CStyleFor) (int, error) {
	if c.Init != nil {
		if _, err := ip.expander.EvalArith(c.Init); err != nil {
			ip.writeStderr(err.Error() + "\n")
			return 1, nil
		}
	}
	marker, release := ip.governor.NewLoop()
	defer release()
	code := 0
	for {
		if c.Cond != nil {
			n, err := ip.expander.EvalArith(c.Cond)
			if err != nil {
				ip.writeStderr(err.Error() + "\n")
				return 1, nil
			}
			if n == 0 {
				break
			}
		}
		if err := ip.governor.ChargeLoop(marker); err != nil {
			return govern.ReservedExitCode, err
		}
		bodyCode, err := ip.execScriptInPlace(c.Body)
		code = bodyCode
		if err != nil {
			if handled, stop, rc := ip.handleLoopControl(err); handled {
				if stop {
					return rc, nil
				}
				goto step
			}
			return code, err
		}
	step:
		if c.Step != nil {
			if _, err := ip.expander.EvalArith(c.Step); err != nil {
				ip.writeStderr(err.Error() + "\n")
				return 1, nil
			}
		}
	}
	return code, nil
}

// handleLoopControl interprets a break/continue error raised from a loop
// body: handled reports whether this loop owns it; stop reports whether
// the loop should terminate (vs. continue iterating); rc is the exit code
// to return when stopping.
func (ip *Interp) handleLoopControl(err error) (handled, stop bool, rc int) {
	switch e := err.(type) {
	case *BreakError:
		if e.N <= 1 {
			return true, true, 0
		}
		// Not our level to absorb: this loop still stops, but decrements N
		// in place before the error propagates to the next enclosing loop.
		e.N--
		return false, false, 0
	case *ContinueError:
		if e.N <= 1 {
			return true, false, 0
		}
		e.N--
		return false, false, 0
	}
	return false, false, 0
}

func (ip *Interp) execCase(c *ast.Case) (int, error) {
	subjects, err := ip.expander.ExpandWord(c.Subject)
	if err != nil {
		ip.writeStderr(err.Error() + "\n")
		return 1, nil
	}
	subject := strings.Join(subjects, " ")
	for i := 0; i < len(c.Items); i++ {
		item := c.Items[i]
		if !ip.caseItemMatches(item, subject) {
			continue
		}
		code, err := ip.execScriptInPlace(item.Body)
		if err != nil {
			return code, err
		}
		switch item.Term {
		case ast.CaseFallthru:
			if i+1 < len(c.Items) {
				code, err = ip.execScriptInPlace(c.Items[i+1].Body)
			}
			return code, err
		case ast.CaseContinue:
			continue
		default:
			return code, nil
		}
	}
	return 0, nil
}

func (ip *Interp) caseItemMatches(item *ast.CaseItem, subject string) bool {
	for _, pat := range item.Patterns {
		patterns, err := ip.expander.ExpandWord(pat)
		if err != nil {
			continue
		}
		for _, p := range patterns {
			if globMatchCase(p, subject, ip.stack.Top().Flags.Extglob) {
				return true
			}
		}
	}
	return false
}

func globMatchCase(pattern, name string, extglob bool) bool {
	return glob.Match(pattern, name, glob.Options{Extglob: extglob})
}
