package parser

import "github.com/vercel-labs/just-bash/ast"

// parseBracedParam parses the raw text between `${` and `}` into a fully
// populated ast.ParameterExpansion, covering defaulting, pattern trimming,
// substitution, substring, case modification, indirection and the
// `!`/`#` prefix forms.
func parseBracedParam(s, source string) (*ast.ParameterExpansion, error) {
	pe := &ast.ParameterExpansion{Braced: true}

	if s != "" && s[0] == '#' && s != "#" {
		pe.Operation = ast.ParamLength
		name, rest := scanParamName(s[1:])
		pe.Parameter = name
		rest, err := parseIndexSuffix(pe, rest, source)
		if err != nil {
			return nil, err
		}
		if rest != "" {
			return nil, &Error{Msg: "bad substitution: " + s}
		}
		return pe, nil
	}

	if s != "" && s[0] == '!' && s != "!" {
		rest := s[1:]
		name, after := scanParamName(rest)
		if name != "" {
			if len(after) >= 3 && after[0] == '[' {
				if end, ok := matchPairFrom(after, 0, '[', ']'); ok {
					sub := after[1:end]
					if sub == "@" || sub == "*" {
						pe.Operation = ast.ParamArrayKeys
						pe.Parameter = name
						pe.AllStar = sub == "*"
						return pe, nil
					}
				}
			}
			if after == "*" || after == "@" {
				pe.Operation = ast.ParamVarNamePrefix
				pe.Parameter = name
				pe.AllStar = after == "*"
				return pe, nil
			}
			if after == "" {
				pe.Operation = ast.ParamIndirection
				pe.Parameter = name
				return pe, nil
			}
		}
		pe.Operation = ast.ParamIndirection
		pe.Parameter = rest
		return pe, nil
	}

	name, rest := scanParamName(s)
	pe.Parameter = name
	rest, err := parseIndexSuffix(pe, rest, source)
	if err != nil {
		return nil, err
	}
	if rest == "" {
		pe.Operation = ast.ParamPlain
		return pe, nil
	}
	return parseParamOp(pe, rest, source)
}

// scanParamName consumes a leading variable/positional/special-parameter
// name from s, returning the name and the unconsumed remainder.
func scanParamName(s string) (string, string) {
	if s == "" {
		return "", ""
	}
	switch s[0] {
	case '@', '*', '#', '?', '$', '!', '-':
		return s[:1], s[1:]
	}
	i := 0
	if s[0] >= '0' && s[0] <= '9' {
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		return s[:i], s[i:]
	}
	for i < len(s) && isIdentChar(s[i]) {
		i++
	}
	return s[:i], s[i:]
}

// parseIndexSuffix consumes a leading `[subscript]`, if present, recording
// either AllElements (for [@]/[*]) or a parsed Index word on pe.
func parseIndexSuffix(pe *ast.ParameterExpansion, rest, source string) (string, error) {
	if rest == "" || rest[0] != '[' {
		return rest, nil
	}
	end, ok := matchPairFrom(rest, 0, '[', ']')
	if !ok {
		return "", &Error{Msg: "bad array subscript"}
	}
	sub := rest[1:end]
	switch sub {
	case "@", "*":
		pe.AllElements = true
		pe.AllStar = sub == "*"
	default:
		w, err := operandWord(sub, source)
		if err != nil {
			return "", err
		}
		pe.Index = w
	}
	return rest[end+1:], nil
}

// parseParamOp dispatches on the modifier that follows a name[index].
func parseParamOp(pe *ast.ParameterExpansion, rest, source string) (*ast.ParameterExpansion, error) {
	switch {
	case hasOpPrefix(rest, ":-"):
		return setArg(pe, ast.ParamDefaultValue, rest[2:], source)
	case hasOpPrefix(rest, ":="):
		return setArg(pe, ast.ParamAssignDefault, rest[2:], source)
	case hasOpPrefix(rest, ":+"):
		return setArg(pe, ast.ParamUseAlternative, rest[2:], source)
	case hasOpPrefix(rest, ":?"):
		return setArg(pe, ast.ParamErrorIfUnset, rest[2:], source)
	case hasOpPrefix(rest, ":"):
		return parseSubstring(pe, rest[1:], source)
	case hasOpPrefix(rest, "##"):
		return setArg(pe, ast.ParamRemovePrefixLong, rest[2:], source)
	case hasOpPrefix(rest, "#"):
		return setArg(pe, ast.ParamRemovePrefix, rest[1:], source)
	case hasOpPrefix(rest, "%%"):
		return setArg(pe, ast.ParamRemoveSuffixLong, rest[2:], source)
	case hasOpPrefix(rest, "%"):
		return setArg(pe, ast.ParamRemoveSuffix, rest[1:], source)
	case hasOpPrefix(rest, "//"):
		return parseReplace(pe, ast.ParamReplaceAll, rest[2:], source)
	case hasOpPrefix(rest, "/#"):
		return parseReplace(pe, ast.ParamReplacePrefix, rest[2:], source)
	case hasOpPrefix(rest, "/%"):
		return parseReplace(pe, ast.ParamReplaceSuffix, rest[2:], source)
	case hasOpPrefix(rest, "/"):
		return parseReplace(pe, ast.ParamReplaceFirst, rest[1:], source)
	case hasOpPrefix(rest, "^^"):
		pe.Operation = ast.ParamCaseUpperAll
		return pe, nil
	case hasOpPrefix(rest, "^"):
		pe.Operation = ast.ParamCaseUpperFirst
		return pe, nil
	case hasOpPrefix(rest, ",,"):
		pe.Operation = ast.ParamCaseLowerAll
		return pe, nil
	case hasOpPrefix(rest, ","):
		pe.Operation = ast.ParamCaseLowerFirst
		return pe, nil
	}
	return nil, &Error{Msg: "bad substitution: " + rest}
}

func hasOpPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func setArg(pe *ast.ParameterExpansion, op ast.ParamOp, argText, source string) (*ast.ParameterExpansion, error) {
	pe.Operation = op
	w, err := operandWord(argText, source)
	if err != nil {
		return nil, err
	}
	pe.Arg = w
	return pe, nil
}

func parseSubstring(pe *ast.ParameterExpansion, rest, source string) (*ast.ParameterExpansion, error) {
	pe.Operation = ast.ParamSubstring
	if i, ok := findTopLevelByte(rest, ':'); ok {
		off, err := operandWord(rest[:i], source)
		if err != nil {
			return nil, err
		}
		length, err := operandWord(rest[i+1:], source)
		if err != nil {
			return nil, err
		}
		pe.Arg = off
		pe.Arg2 = length
		return pe, nil
	}
	off, err := operandWord(rest, source)
	if err != nil {
		return nil, err
	}
	pe.Arg = off
	return pe, nil
}

func parseReplace(pe *ast.ParameterExpansion, op ast.ParamOp, rest, source string) (*ast.ParameterExpansion, error) {
	pe.Operation = op
	if i, ok := findTopLevelByte(rest, '/'); ok {
		pat, err := operandWord(rest[:i], source)
		if err != nil {
			return nil, err
		}
		rep, err := operandWord(rest[i+1:], source)
		if err != nil {
			return nil, err
		}
		pe.Arg = pat
		pe.Arg2 = rep
		return pe, nil
	}
	pat, err := operandWord(rest, source)
	if err != nil {
		return nil, err
	}
	pe.Arg = pat
	return pe, nil
}
