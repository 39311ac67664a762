package parser

import (
	"strings"

	"github.com/vercel-labs/just-bash/arith"
	"github.com/vercel-labs/just-bash/ast"
)

// parseInterpolated scans raw double-quoted (or braced-parameter operand)
// text for $name / ${...} / $(...) / $((...)) expansions, leaving
// everything else as literal runs. It does not re-enter brace expansion or
// tilde expansion, which only apply to unquoted words.
func parseInterpolated(s, source string) ([]ast.WordPart, error) {
	var parts []ast.WordPart
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			parts = append(parts, &ast.Literal{Text: lit.String()})
			lit.Reset()
		}
	}
	i := 0
	for i < len(s) {
		c := s[i]
		if c == '`' {
			end := strings.IndexByte(s[i+1:], '`')
			if end >= 0 {
				flush()
				body, err := Parse(s[i+1:i+1+end], source)
				if err != nil {
					return nil, err
				}
				parts = append(parts, &ast.CommandSubstitution{Body: body, Backtick: true})
				i = i + 1 + end + 1
				continue
			}
		}
		if c == '$' && i+1 < len(s) {
			switch {
			case s[i+1] == '{':
				if end, ok := matchPairFrom(s, i+1, '{', '}'); ok {
					flush()
					part, err := parseBracedParam(s[i+2:end], source)
					if err != nil {
						return nil, err
					}
					parts = append(parts, part)
					i = end + 1
					continue
				}
			case s[i+1] == '(' && i+2 < len(s) && s[i+2] == '(':
				if end, ok := matchPairFrom(s, i+2, '(', ')'); ok && end+1 < len(s) && s[end+1] == ')' {
					flush()
					expr, err := arith.Parse(s[i+3 : end])
					if err != nil {
						return nil, err
					}
					parts = append(parts, &ast.ArithmeticExpansion{Expr: expr})
					i = end + 2
					continue
				}
			case s[i+1] == '(':
				if end, ok := matchPairFrom(s, i+1, '(', ')'); ok {
					flush()
					body, err := Parse(s[i+2:end], source)
					if err != nil {
						return nil, err
					}
					parts = append(parts, &ast.CommandSubstitution{Body: body})
					i = end + 1
					continue
				}
			default:
				if name, n, ok := bareNameAt(s, i+1); ok {
					flush()
					parts = append(parts, paramFromName(name))
					i = i + 1 + n
					continue
				}
			}
		}
		lit.WriteByte(c)
		i++
	}
	flush()
	return parts, nil
}

// matchPairFrom finds the index of the delimiter matching open at s[start],
// tracking nesting depth while skipping over quoted runs so a `/` or `}`
// inside '...'/"..." doesn't close the pair early.
func matchPairFrom(s string, start int, open, closeB byte) (int, bool) {
	depth := 0
	i := start
	for i < len(s) {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s):
			i += 2
			continue
		case c == '\'':
			end := strings.IndexByte(s[i+1:], '\'')
			if end < 0 {
				return 0, false
			}
			i = i + 1 + end + 1
			continue
		case c == '"':
			j := i + 1
			for j < len(s) && s[j] != '"' {
				if s[j] == '\\' {
					j++
				}
				j++
			}
			i = j + 1
			continue
		case c == open:
			depth++
		case c == closeB:
			depth--
			if depth == 0 {
				return i, true
			}
		}
		i++
	}
	return 0, false
}

// findTopLevelByte returns the index of the first occurrence of any byte in
// targets that sits at nesting depth 0 with respect to (), {}, [] and is not
// inside a '...' or "..." run, or ok=false if none is found.
func findTopLevelByte(s string, targets ...byte) (int, bool) {
	depth := 0
	i := 0
	isTarget := func(b byte) bool {
		for _, t := range targets {
			if b == t {
				return true
			}
		}
		return false
	}
	for i < len(s) {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s):
			i += 2
			continue
		case c == '\'':
			end := strings.IndexByte(s[i+1:], '\'')
			if end < 0 {
				return 0, false
			}
			i = i + 1 + end + 1
			continue
		case c == '"':
			j := i + 1
			for j < len(s) && s[j] != '"' {
				if s[j] == '\\' {
					j++
				}
				j++
			}
			i = j + 1
			continue
		case c == '(' || c == '{' || c == '[':
			depth++
		case c == ')' || c == '}' || c == ']':
			depth--
		default:
			if depth == 0 && isTarget(c) {
				return i, true
			}
		}
		i++
	}
	return 0, false
}

// parseOperandWord parses a ${...} operand (default value, pattern,
// replacement text): like parseInterpolated but additionally honours
// nested '...'/"..."  quoting and backslash escapes, since this text is not
// itself inside double quotes the way a DOUBLE_QUOTED token's body is.
func parseOperandWord(s, source string) ([]ast.WordPart, error) {
	var parts []ast.WordPart
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			parts = append(parts, &ast.Literal{Text: lit.String()})
			lit.Reset()
		}
	}
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s):
			lit.WriteByte(s[i+1])
			i += 2
			continue
		case c == '\'':
			end := strings.IndexByte(s[i+1:], '\'')
			if end >= 0 {
				flush()
				parts = append(parts, &ast.SingleQuoted{Text: s[i+1 : i+1+end]})
				i = i + 1 + end + 1
				continue
			}
		case c == '"':
			j := i + 1
			for j < len(s) && s[j] != '"' {
				if s[j] == '\\' {
					j++
				}
				j++
			}
			if j < len(s) {
				flush()
				inner, err := parseInterpolated(s[i+1:j], source)
				if err != nil {
					return nil, err
				}
				parts = append(parts, &ast.DoubleQuoted{Parts: inner})
				i = j + 1
				continue
			}
		case c == '`':
			end := strings.IndexByte(s[i+1:], '`')
			if end >= 0 {
				flush()
				body, err := Parse(s[i+1:i+1+end], source)
				if err != nil {
					return nil, err
				}
				parts = append(parts, &ast.CommandSubstitution{Body: body, Backtick: true})
				i = i + 1 + end + 1
				continue
			}
		case c == '$' && i+1 < len(s):
			switch {
			case s[i+1] == '{':
				if end, ok := matchPairFrom(s, i+1, '{', '}'); ok {
					flush()
					part, err := parseBracedParam(s[i+2:end], source)
					if err != nil {
						return nil, err
					}
					parts = append(parts, part)
					i = end + 1
					continue
				}
			case s[i+1] == '(' && i+2 < len(s) && s[i+2] == '(':
				if end, ok := matchPairFrom(s, i+2, '(', ')'); ok && end+1 < len(s) && s[end+1] == ')' {
					flush()
					expr, err := arith.Parse(s[i+3 : end])
					if err != nil {
						return nil, err
					}
					parts = append(parts, &ast.ArithmeticExpansion{Expr: expr})
					i = end + 2
					continue
				}
			case s[i+1] == '(':
				if end, ok := matchPairFrom(s, i+1, '(', ')'); ok {
					flush()
					body, err := Parse(s[i+2:end], source)
					if err != nil {
						return nil, err
					}
					parts = append(parts, &ast.CommandSubstitution{Body: body})
					i = end + 1
					continue
				}
			default:
				if name, n, ok := bareNameAt(s, i+1); ok {
					flush()
					parts = append(parts, paramFromName(name))
					i = i + 1 + n
					continue
				}
			}
		}
		lit.WriteByte(c)
		i++
	}
	flush()
	return parts, nil
}

func operandWord(s, source string) (*ast.Word, error) {
	parts, err := parseOperandWord(s, source)
	if err != nil {
		return nil, err
	}
	return &ast.Word{Parts: parts}, nil
}

func bareNameAt(s string, i int) (string, int, bool) {
	if i >= len(s) {
		return "", 0, false
	}
	switch s[i] {
	case '@', '*', '#', '?', '$', '!', '-':
		return string(s[i]), 1, true
	}
	if s[i] >= '0' && s[i] <= '9' {
		j := i
		for j < len(s) && s[j] >= '0' && s[j] <= '9' {
			j++
		}
		return s[i:j], j - i, true
	}
	if isIdentStart(s[i]) {
		j := i
		for j < len(s) && isIdentChar(s[j]) {
			j++
		}
		return s[i:j], j - i, true
	}
	return "", 0, false
}

func isIdentStart(b byte) bool { return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') }
func isIdentChar(b byte) bool  { return isIdentStart(b) || (b >= '0' && b <= '9') }
