// Package expand implements the word-expansion pipeline: brace expansion,
// tilde expansion, parameter expansion, command substitution, arithmetic
// expansion, word splitting + pathname expansion, and quote removal.
package expand

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/vercel-labs/just-bash/arith"
	"github.com/vercel-labs/just-bash/ast"
	"github.com/vercel-labs/just-bash/envframe"
	"github.com/vercel-labs/just-bash/glob"
	"github.com/vercel-labs/just-bash/govern"
	"github.com/vercel-labs/just-bash/vfs"
)

// Runner is the subshell-execution surface the expander needs from the
// interpreter to evaluate $(...), `...`, and the command-substitution arm
// of arithmetic expansion, without expand importing interp directly.
type Runner interface {
	// RunCapture executes body in a forked, copy-on-write frame and
	// returns its standard output.
	RunCapture(body *ast.Script) (stdout string, err error)
}

// Expander holds the state a word expansion needs: the active scope, the
// filesystem pathname expansion resolves against, the resource governor,
// and the subshell runner for command substitution.
type Expander struct {
	Stack    *envframe.Stack
	FS       vfs.FS
	Governor *govern.Governor
	Run      Runner
	CWD      string
}

// field is one unit of output text carrying whether it came from
// unquoted context (eligible for IFS splitting and pathname expansion).
type field struct {
	text      string
	quoted    bool
	wasArray  bool // this field is one element of an unquoted "$@"-like expansion
	forceGlob bool // a bare Glob word part; glob even if it expanded to literal text
}

// ExpandWords expands a slice of words into the final argv, applying
// splitting and globbing across word boundaries as Bash does (one word can
// become zero or many fields).
func (e *Expander) ExpandWords(words []*ast.Word) ([]string, error) {
	var out []string
	for _, w := range words {
		fields, err := e.expandWordFields(w)
		if err != nil {
			return nil, err
		}
		for _, f := range fields {
			expanded, err := e.splitAndGlob(f)
			if err != nil {
				return nil, err
			}
			out = append(out, expanded...)
		}
	}
	return out, nil
}

// ExpandWord expands a single word to its resulting fields (used for
// command-name and single-word contexts like case subjects).
func (e *Expander) ExpandWord(w *ast.Word) ([]string, error) {
	fields, err := e.expandWordFields(w)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, f := range fields {
		expanded, err := e.splitAndGlob(f)
		if err != nil {
			return nil, err
		}
		out = append(out, expanded...)
	}
	return out, nil
}

// ExpandAssignmentValue expands a word for use as an assignment's scalar
// right-hand side: no word splitting, no pathname expansion.
func (e *Expander) ExpandAssignmentValue(w *ast.Word) (string, error) {
	fields, err := e.expandWordFields(w)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, f := range fields {
		b.WriteString(f.text)
	}
	return b.String(), nil
}

func (e *Expander) expandWordFields(w *ast.Word) ([]field, error) {
	if w == nil {
		return nil, nil
	}
	braceVariants := expandBraces(w)
	var all []field
	for _, variant := range braceVariants {
		fs, err := e.expandParts(variant.Parts, false)
		if err != nil {
			return nil, err
		}
		all = append(all, fs...)
	}
	return all, nil
}

func (e *Expander) expandParts(parts []ast.WordPart, inDouble bool) ([]field, error) {
	var out []field
	for _, p := range parts {
		fs, err := e.expandPart(p, inDouble)
		if err != nil {
			return nil, err
		}
		out = append(out, fs...)
	}
	return out, nil
}

func (e *Expander) expandPart(p ast.WordPart, inDouble bool) ([]field, error) {
	switch part := p.(type) {
	case *ast.Literal:
		return []field{{text: part.Text, quoted: inDouble}}, nil

	case *ast.SingleQuoted:
		return []field{{text: part.Text, quoted: true}}, nil

	case *ast.AnsiCQuoted:
		return []field{{text: part.Text, quoted: true}}, nil

	case *ast.DoubleQuoted:
		fs, err := e.expandParts(part.Parts, true)
		if err != nil {
			return nil, err
		}
		var b strings.Builder
		var arrayFields []field
		hasArray := false
		for _, f := range fs {
			if f.wasArray {
				hasArray = true
			}
		}
		if hasArray {
			for _, f := range fs {
				if f.wasArray {
					arrayFields = append(arrayFields, field{text: f.text, quoted: true, wasArray: true})
				} else {
					b.WriteString(f.text)
				}
			}
			if b.Len() > 0 && len(arrayFields) > 0 {
				arrayFields[len(arrayFields)-1].text += b.String()
			}
			return arrayFields, nil
		}
		for _, f := range fs {
			b.WriteString(f.text)
		}
		return []field{{text: b.String(), quoted: true}}, nil

	case *ast.TildeExpansion:
		return []field{{text: e.expandTilde(part.User), quoted: inDouble}}, nil

	case *ast.ParameterExpansion:
		return e.expandParameter(part, inDouble)

	case *ast.CommandSubstitution:
		out, err := e.runCommandSubst(part)
		if err != nil {
			return nil, err
		}
		out = strings.TrimRight(out, "\n")
		return []field{{text: out, quoted: inDouble}}, nil

	case *ast.ArithmeticExpansion:
		v, err := e.evalArith(part.Expr)
		if err != nil {
			return nil, err
		}
		return []field{{text: fmt.Sprintf("%d", v), quoted: inDouble}}, nil

	case *ast.Glob:
		return []field{{text: part.Pattern, quoted: false, forceGlob: true}}, nil

	case *ast.BraceExpansion:
		// Reached only if brace expansion was not resolved at the word
		// level (nested inside another expansion); expand and flatten.
		w := &ast.Word{Parts: []ast.WordPart{part}}
		variants := expandBraces(w)
		var out []field
		for _, v := range variants {
			fs, err := e.expandParts(v.Parts, inDouble)
			if err != nil {
				return nil, err
			}
			out = append(out, fs...)
		}
		return out, nil
	}
	return nil, fmt.Errorf("expand: unknown word part %T", p)
}

func (e *Expander) expandTilde(user string) string {
	if user == "" {
		if home, ok := e.Stack.Lookup("HOME"); ok {
			return home.AsScalar()
		}
		return os.Getenv("HOME")
	}
	// No host user database in a sandboxed VFS; unresolvable named-user
	// tildes are left unexpanded per Bash's behaviour on unknown users.
	return "~" + user
}

func (e *Expander) runCommandSubst(sub *ast.CommandSubstitution) (string, error) {
	if e.Run == nil {
		return "", fmt.Errorf("expand: command substitution unavailable")
	}
	return e.Run.RunCapture(sub.Body)
}

func (e *Expander) evalArith(expr *ast.ArithExpr) (int64, error) {
	acc := &frameAccessor{e: e}
	return arith.Eval(expr, acc)
}

// EvalArith evaluates an arithmetic expression against this expander's
// frame, for callers outside the package (`(( expr ))` commands, C-style
// `for` headers) that need the same variable/command-substitution wiring
// a `$((...))` word part gets.
func (e *Expander) EvalArith(expr *ast.ArithExpr) (int64, error) {
	return e.evalArith(expr)
}

// splitAndGlob applies IFS word splitting (only to unquoted fields) and
// then pathname expansion (only to fields that may contain glob
// metacharacters and were not produced by quoting).
func (e *Expander) splitAndGlob(f field) ([]string, error) {
	if f.quoted {
		if f.text == "" && !f.wasArray {
			return []string{""}, nil
		}
		return []string{f.text}, nil
	}

	flags := e.Stack.Top().Flags
	ifsChars := " \t\n"
	if ifs, ok := e.Stack.Lookup("IFS"); ok {
		ifsChars = ifs.AsScalar()
	}

	var words []string
	if f.text == "" {
		words = nil
	} else {
		words = splitIFS(f.text, ifsChars)
	}

	if flags.Noglob {
		return words, nil
	}

	var out []string
	for _, w := range words {
		if !glob.HasMeta(w, glob.Options{Extglob: flags.Extglob}) {
			out = append(out, w)
			continue
		}
		matches := e.globMatch(w, flags.Extglob)
		if len(matches) == 0 {
			if flags.Nullglob {
				continue
			}
			out = append(out, w)
			continue
		}
		out = append(out, matches...)
	}
	return out, nil
}

func splitIFS(s, ifs string) []string {
	if ifs == "" {
		return []string{s}
	}
	isWS := func(r rune) bool { return r == ' ' || r == '\t' || r == '\n' }
	allWhitespace := true
	for _, r := range ifs {
		if !isWS(r) {
			allWhitespace = false
			break
		}
	}
	var fields []string
	var cur strings.Builder
	inField := false
	flush := func() {
		if inField {
			fields = append(fields, cur.String())
			cur.Reset()
			inField = false
		}
	}
	for _, r := range s {
		isSep := strings.ContainsRune(ifs, r)
		if isSep {
			if allWhitespace && isWS(r) {
				flush()
				continue
			}
			// A separator ends the field in progress; one with no field
			// in progress (leading or repeated) yields an empty field.
			if inField {
				flush()
			} else {
				fields = append(fields, "")
			}
			continue
		}
		cur.WriteRune(r)
		inField = true
	}
	flush()
	// A single trailing separator only ends the last field, so it leaves no
	// empty field behind (as in Bash). A whitespace-only IFS never yields
	// empty fields; this drops a trailing one should it appear.
	if len(fields) > 0 && fields[len(fields)-1] == "" && allWhitespace {
		fields = fields[:len(fields)-1]
	}
	return fields
}

func (e *Expander) globMatch(pattern string, extglob bool) []string {
	dir, base := vfs.SplitDirBase(vfs.ResolvePath(e.CWD, pattern))
	if !glob.HasMeta(pattern, glob.Options{Extglob: extglob}) {
		return nil
	}
	absDir := dir
	entries, err := e.FS.ReadDir(absDir)
	if err != nil {
		return nil
	}
	var matches []string
	opts := glob.Options{Extglob: extglob}
	for _, name := range entries {
		if strings.HasPrefix(name, ".") && !strings.HasPrefix(base, ".") {
			continue
		}
		if glob.Match(base, name, opts) {
			if dir == "/" {
				matches = append(matches, "/"+name)
			} else {
				matches = append(matches, dir+"/"+name)
			}
		}
	}
	sort.Strings(matches)
	return matches
}
