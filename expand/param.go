package expand

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/vercel-labs/just-bash/ast"
	"github.com/vercel-labs/just-bash/glob"
	"github.com/vercel-labs/just-bash/value"
)

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (e *Expander) wordText(w *ast.Word) (string, error) {
	if w == nil {
		return "", nil
	}
	fields, err := e.expandParts(w.Parts, true)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, f := range fields {
		b.WriteString(f.text)
	}
	return b.String(), nil
}

// expandParameter implements every ${...} / $name parameter-expansion
// form.
func (e *Expander) expandParameter(p *ast.ParameterExpansion, inDouble bool) ([]field, error) {
	switch p.Parameter {
	case "#":
		return []field{{text: strconv.Itoa(len(e.Stack.Top().Positional)), quoted: inDouble}}, nil
	case "@", "*":
		return e.expandPositionalAll(p.Parameter == "*", inDouble)
	case "?", "$", "!", "0":
		v, _ := e.Stack.Lookup(p.Parameter)
		s := ""
		if v != nil {
			s = v.AsScalar()
		}
		return []field{{text: s, quoted: inDouble}}, nil
	}

	if isAllDigits(p.Parameter) {
		idx, _ := strconv.Atoi(p.Parameter)
		pos := e.Stack.Top().Positional
		s := ""
		if idx >= 1 && idx <= len(pos) {
			s = pos[idx-1]
		}
		return e.applyParamOp(p, s, true, inDouble)
	}

	switch p.Operation {
	case ast.ParamIndirection:
		target, ok := e.Stack.Lookup(p.Parameter)
		if !ok {
			return []field{{text: "", quoted: inDouble}}, nil
		}
		indirect, ok := e.Stack.Lookup(target.AsScalar())
		s := ""
		if ok {
			s = indirect.AsScalar()
		}
		return []field{{text: s, quoted: inDouble}}, nil

	case ast.ParamVarNamePrefix:
		var names []string
		for _, n := range e.Stack.Names() {
			if strings.HasPrefix(n, p.Parameter) {
				names = append(names, n)
			}
		}
		return e.joinArrayFields(names, p.AllStar, inDouble), nil

	case ast.ParamArrayKeys:
		v, ok := e.Stack.Lookup(p.Parameter)
		if !ok {
			return []field{{text: "", quoted: inDouble}}, nil
		}
		return e.joinArrayFields(v.Keys(), p.AllStar, inDouble), nil

	case ast.ParamLength:
		v, ok := e.Stack.Lookup(p.Parameter)
		if !ok {
			return []field{{text: "0", quoted: inDouble}}, nil
		}
		if p.Index != nil && !p.AllElements {
			idxStr, err := e.wordText(p.Index)
			if err != nil {
				return nil, err
			}
			var s string
			if v.Kind == value.Associative {
				s = v.Assoc[idxStr]
			} else {
				n, _ := strconv.Atoi(idxStr)
				s = v.Indexed[n]
			}
			return []field{{text: strconv.Itoa(len([]rune(s))), quoted: inDouble}}, nil
		}
		return []field{{text: strconv.Itoa(v.Len()), quoted: inDouble}}, nil
	}

	if p.AllElements {
		return e.expandArrayAll(p, inDouble)
	}

	v, exists := e.Stack.Lookup(p.Parameter)
	var s string
	var isSet bool
	if p.Index != nil && exists {
		idxStr, err := e.wordText(p.Index)
		if err != nil {
			return nil, err
		}
		if v.Kind == value.Associative {
			s, isSet = v.Assoc[idxStr]
		} else {
			n, _ := strconv.Atoi(idxStr)
			s, isSet = v.Indexed[n]
		}
	} else if exists {
		s, isSet = v.AsScalar(), true
	}
	return e.applyParamOp(p, s, isSet, inDouble)
}

func (e *Expander) joinArrayFields(elems []string, quoteEach bool, inDouble bool) []field {
	if len(elems) == 0 {
		return []field{{text: "", quoted: inDouble}}
	}
	if inDouble && !quoteEach {
		out := make([]field, len(elems))
		for i, s := range elems {
			out[i] = field{text: s, quoted: true, wasArray: true}
		}
		return out
	}
	return []field{{text: strings.Join(elems, " "), quoted: inDouble}}
}

func (e *Expander) expandPositionalAll(star bool, inDouble bool) ([]field, error) {
	pos := e.Stack.Top().Positional
	if inDouble && !star {
		// "$@": each positional parameter is its own field, unsplit.
		if len(pos) == 0 {
			return []field{{text: "", quoted: true, wasArray: true}}, nil
		}
		out := make([]field, len(pos))
		for i, s := range pos {
			out[i] = field{text: s, quoted: true, wasArray: true}
		}
		return out, nil
	}
	ifs := " "
	if v, ok := e.Stack.Lookup("IFS"); ok && len(v.AsScalar()) > 0 {
		ifs = v.AsScalar()[:1]
	}
	return []field{{text: strings.Join(pos, ifs), quoted: inDouble}}, nil
}

func (e *Expander) expandArrayAll(p *ast.ParameterExpansion, inDouble bool) ([]field, error) {
	v, ok := e.Stack.Lookup(p.Parameter)
	if !ok {
		return []field{{text: "", quoted: inDouble}}, nil
	}
	elems := v.Elements()
	return e.joinArrayFields(elems, p.AllStar, inDouble), nil
}

// applyParamOp applies a ${name OP arg} modifier to the resolved scalar s
// (isSet distinguishes "unset" from "set but empty" for :-/:=/:?/:+).
func (e *Expander) applyParamOp(p *ast.ParameterExpansion, s string, isSet bool, inDouble bool) ([]field, error) {
	nonEmpty := isSet && s != ""
	switch p.Operation {
	case ast.ParamPlain:
		if !isSet && e.Stack.Top().Flags.Nounset {
			return nil, &UnsetVariableError{Name: p.Parameter}
		}
		return []field{{text: s, quoted: inDouble}}, nil

	case ast.ParamDefaultValue:
		if nonEmpty {
			return []field{{text: s, quoted: inDouble}}, nil
		}
		def, err := e.wordText(p.Arg)
		if err != nil {
			return nil, err
		}
		return []field{{text: def, quoted: inDouble}}, nil

	case ast.ParamAssignDefault:
		if nonEmpty {
			return []field{{text: s, quoted: inDouble}}, nil
		}
		def, err := e.wordText(p.Arg)
		if err != nil {
			return nil, err
		}
		e.Stack.Set(p.Parameter, value.NewScalar(def))
		return []field{{text: def, quoted: inDouble}}, nil

	case ast.ParamUseAlternative:
		if !nonEmpty {
			return []field{{text: "", quoted: inDouble}}, nil
		}
		alt, err := e.wordText(p.Arg)
		if err != nil {
			return nil, err
		}
		return []field{{text: alt, quoted: inDouble}}, nil

	case ast.ParamErrorIfUnset:
		if nonEmpty {
			return []field{{text: s, quoted: inDouble}}, nil
		}
		msg, err := e.wordText(p.Arg)
		if err != nil {
			return nil, err
		}
		if msg == "" {
			msg = "parameter null or not set"
		}
		return nil, &ParamRequiredError{Name: p.Parameter, Msg: msg}

	case ast.ParamRemovePrefix, ast.ParamRemovePrefixLong:
		pat, err := e.wordText(p.Arg)
		if err != nil {
			return nil, err
		}
		longest := p.Operation == ast.ParamRemovePrefixLong
		return []field{{text: removeAffix(s, pat, true, longest, e.extglob()), quoted: inDouble}}, nil

	case ast.ParamRemoveSuffix, ast.ParamRemoveSuffixLong:
		pat, err := e.wordText(p.Arg)
		if err != nil {
			return nil, err
		}
		longest := p.Operation == ast.ParamRemoveSuffixLong
		return []field{{text: removeAffix(s, pat, false, longest, e.extglob()), quoted: inDouble}}, nil

	case ast.ParamReplaceFirst, ast.ParamReplaceAll, ast.ParamReplacePrefix, ast.ParamReplaceSuffix:
		pat, err := e.wordText(p.Arg)
		if err != nil {
			return nil, err
		}
		rep, err := e.wordText(p.Arg2)
		if err != nil {
			return nil, err
		}
		return []field{{text: replacePattern(s, pat, rep, p.Operation, e.extglob()), quoted: inDouble}}, nil

	case ast.ParamSubstring:
		return e.substring(p, s, inDouble)

	case ast.ParamCaseUpperFirst:
		return []field{{text: caseFirst(s, true), quoted: inDouble}}, nil
	case ast.ParamCaseUpperAll:
		return []field{{text: cases.Upper(language.Und).String(s), quoted: inDouble}}, nil
	case ast.ParamCaseLowerFirst:
		return []field{{text: caseFirst(s, false), quoted: inDouble}}, nil
	case ast.ParamCaseLowerAll:
		return []field{{text: cases.Lower(language.Und).String(s), quoted: inDouble}}, nil
	}
	return []field{{text: s, quoted: inDouble}}, nil
}

func (e *Expander) extglob() bool { return e.Stack.Top().Flags.Extglob }

func (e *Expander) substring(p *ast.ParameterExpansion, s string, inDouble bool) ([]field, error) {
	argText, err := e.wordText(p.Arg)
	if err != nil {
		return nil, err
	}
	offset, length, hasLength := parseSubstringSpec(argText)
	r := []rune(s)
	n := len(r)
	if offset < 0 {
		offset = n + offset
	}
	if offset < 0 {
		offset = 0
	}
	if offset > n {
		offset = n
	}
	end := n
	if hasLength {
		if length < 0 {
			end = n + length
		} else {
			end = offset + length
		}
		if end > n {
			end = n
		}
		if end < offset {
			end = offset
		}
	}
	return []field{{text: string(r[offset:end]), quoted: inDouble}}, nil
}

func parseSubstringSpec(s string) (offset, length int, hasLength bool) {
	parts := strings.SplitN(s, ":", 2)
	offset, _ = strconv.Atoi(strings.TrimSpace(parts[0]))
	if len(parts) == 2 {
		length, _ = strconv.Atoi(strings.TrimSpace(parts[1]))
		hasLength = true
	}
	return
}

func caseFirst(s string, upper bool) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	if upper {
		r[0] = []rune(cases.Upper(language.Und).String(string(r[0])))[0]
	} else {
		r[0] = []rune(cases.Lower(language.Und).String(string(r[0])))[0]
	}
	return string(r)
}

// removeAffix finds the shortest or longest glob match at the start or end
// of s and removes it, per ${p#pat}/${p##pat}/${p%pat}/${p%%pat}.
func removeAffix(s, pattern string, prefix, longest bool, extglob bool) string {
	if pattern == "" {
		return s
	}
	r := []rune(s)
	opts := glob.Options{Extglob: extglob}
	if prefix {
		if longest {
			for n := len(r); n >= 0; n-- {
				if glob.Match(pattern, string(r[:n]), opts) {
					return string(r[n:])
				}
			}
		} else {
			for n := 0; n <= len(r); n++ {
				if glob.Match(pattern, string(r[:n]), opts) {
					return string(r[n:])
				}
			}
		}
		return s
	}
	if longest {
		for n := 0; n <= len(r); n++ {
			if glob.Match(pattern, string(r[n:]), opts) {
				return string(r[:n])
			}
		}
	} else {
		for n := len(r); n >= 0; n-- {
			if glob.Match(pattern, string(r[n:]), opts) {
				return string(r[:n])
			}
		}
	}
	return s
}

// replacePattern implements ${p/pat/rep}, ${p//pat/rep}, ${p/#pat/rep},
// ${p/%pat/rep} by scanning for the first (or every, non-overlapping)
// glob match and substituting rep.
func replacePattern(s, pattern, rep string, op ast.ParamOp, extglob bool) string {
	opts := glob.Options{Extglob: extglob}
	r := []rune(s)

	switch op {
	case ast.ParamReplacePrefix:
		for n := len(r); n >= 0; n-- {
			if glob.Match(pattern, string(r[:n]), opts) {
				return rep + string(r[n:])
			}
		}
		return s
	case ast.ParamReplaceSuffix:
		for n := 0; n <= len(r); n++ {
			if glob.Match(pattern, string(r[n:]), opts) {
				return string(r[:n]) + rep
			}
		}
		return s
	}

	all := op == ast.ParamReplaceAll
	var b strings.Builder
	i := 0
	replaced := false
	for i < len(r) {
		matchLen := -1
		for n := len(r) - i; n >= 1; n-- {
			if glob.Match(pattern, string(r[i:i+n]), opts) {
				matchLen = n
				break
			}
		}
		if matchLen < 0 {
			b.WriteRune(r[i])
			i++
			continue
		}
		b.WriteString(rep)
		i += matchLen
		replaced = true
		if !all {
			b.WriteString(string(r[i:]))
			return b.String()
		}
	}
	if !replaced {
		return s
	}
	return b.String()
}

// UnsetVariableError is returned when `set -u` is active and an unset
// parameter is referenced without a default-value operator.
type UnsetVariableError struct{ Name string }

func (e *UnsetVariableError) Error() string { return e.Name + ": unbound variable" }

// ParamRequiredError backs ${p:?message}.
type ParamRequiredError struct{ Name, Msg string }

func (e *ParamRequiredError) Error() string { return e.Name + ": " + e.Msg }
