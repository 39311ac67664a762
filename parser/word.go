package parser

import (
	"strconv"
	"strings"

	"github.com/vercel-labs/just-bash/arith"
	"github.com/vercel-labs/just-bash/ast"
	"github.com/vercel-labs/just-bash/token"
)

func isWordPartToken(t token.Type) bool {
	switch t {
	case token.WORD, token.SINGLE_QUOTED, token.DOUBLE_QUOTED, token.ANSI_C_QUOTED,
		token.BACKTICK, token.DOLLAR, token.DOLLAR_LBRACE, token.DOLLAR_LPAREN, token.DOLLAR_DLPAREN:
		return true
	}
	return false
}

// parseWord consumes one or more adjacent (no intervening space) word-part
// tokens into a single *ast.Word.
func (p *Parser) parseWord() (*ast.Word, error) {
	if !isWordPartToken(p.tok.Type) {
		return nil, &Error{Pos: p.tok.Pos, Msg: "expected a word"}
	}
	start := p.tok.Pos
	var parts []ast.WordPart
	first := true
	for isWordPartToken(p.tok.Type) && (first || !p.tok.HasSpaceBefore) {
		ps, err := p.parseWordPart(first)
		if err != nil {
			return nil, err
		}
		parts = append(parts, ps...)
		first = false
	}
	w := &ast.Word{Parts: parts}
	w.Pos, w.EndPos = start, p.tok.Pos
	return w, nil
}

// parseWordPart consumes the current token and returns the one or more
// WordParts it contributes; isFirst tells whether this is the first token
// of the enclosing word (tilde expansion only applies there).
func (p *Parser) parseWordPart(isFirst bool) ([]ast.WordPart, error) {
	tok := p.tok
	switch tok.Type {
	case token.WORD:
		p.next()
		return literalWordParts(tok.Value, isFirst), nil

	case token.SINGLE_QUOTED:
		p.next()
		return []ast.WordPart{&ast.SingleQuoted{Text: tok.Value}}, nil

	case token.ANSI_C_QUOTED:
		p.next()
		return []ast.WordPart{&ast.AnsiCQuoted{Text: tok.Value}}, nil

	case token.DOUBLE_QUOTED:
		p.next()
		inner, err := parseInterpolated(tok.Value, p.source)
		if err != nil {
			return nil, err
		}
		return []ast.WordPart{&ast.DoubleQuoted{Parts: inner}}, nil

	case token.BACKTICK:
		p.next()
		body, err := Parse(tok.Value, p.source)
		if err != nil {
			return nil, err
		}
		return []ast.WordPart{&ast.CommandSubstitution{Body: body, Backtick: true}}, nil

	case token.DOLLAR:
		p.next()
		return []ast.WordPart{paramFromName(tok.Value)}, nil

	case token.DOLLAR_LPAREN:
		p.next()
		body, err := Parse(tok.Value, p.source)
		if err != nil {
			return nil, err
		}
		return []ast.WordPart{&ast.CommandSubstitution{Body: body}}, nil

	case token.DOLLAR_DLPAREN:
		p.next()
		expr, err := arith.Parse(tok.Value)
		if err != nil {
			return nil, &Error{Pos: tok.Pos, Msg: err.Error()}
		}
		return []ast.WordPart{&ast.ArithmeticExpansion{Expr: expr}}, nil

	case token.DOLLAR_LBRACE:
		p.next()
		part, err := parseBracedParam(tok.Value, p.source)
		if err != nil {
			return nil, &Error{Pos: tok.Pos, Msg: err.Error()}
		}
		return []ast.WordPart{part}, nil
	}
	return nil, &Error{Pos: tok.Pos, Msg: "unexpected token in word"}
}

// literalWordParts turns one raw WORD token's text into tilde expansion
// (only when leading the whole word), brace-expansion groups, and literal
// runs. Brace expansion here only sees a single contiguous lexer token, so
// it covers the common case of a brace group with no embedded expansion
//.
func literalWordParts(text string, isFirst bool) []ast.WordPart {
	var parts []ast.WordPart
	rest := text
	if isFirst && strings.HasPrefix(rest, "~") {
		i := strings.IndexByte(rest, '/')
		var user string
		if i < 0 {
			user = rest[1:]
			rest = ""
		} else {
			user = rest[1:i]
			rest = rest[i:]
		}
		parts = append(parts, &ast.TildeExpansion{User: user})
		if rest == "" {
			return parts
		}
	}
	parts = append(parts, splitBraceGroups(rest)...)
	return parts
}

// splitBraceGroups scans literal text for {a,b,c} / {1..5} / {01..10..2} /
// {a..z} groups, emitting ast.BraceExpansion nodes around literal runs.
func splitBraceGroups(text string) []ast.WordPart {
	var parts []ast.WordPart
	i := 0
	var lit strings.Builder
	flushLit := func() {
		if lit.Len() > 0 {
			parts = append(parts, &ast.Literal{Text: lit.String()})
			lit.Reset()
		}
	}
	for i < len(text) {
		if text[i] == '{' {
			if end, ok := matchBrace(text, i); ok {
				inner := text[i+1 : end]
				if be, ok := buildBraceExpansion(inner); ok {
					flushLit()
					parts = append(parts, be)
					i = end + 1
					continue
				}
			}
		}
		lit.WriteByte(text[i])
		i++
	}
	flushLit()
	return parts
}

func matchBrace(s string, start int) (int, bool) {
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// buildBraceExpansion attempts to interpret inner (the text between { and
// }) as a comma list or a range; returns ok=false for a malformed or
// single-item group, which the caller then leaves as literal text.
func buildBraceExpansion(inner string) (*ast.BraceExpansion, bool) {
	if r, ok := parseBraceRange(inner); ok {
		return &ast.BraceExpansion{Range: r}, true
	}
	items := splitTopLevelComma(inner)
	if len(items) < 2 {
		return nil, false
	}
	words := make([]*ast.Word, len(items))
	for i, it := range items {
		words[i] = &ast.Word{Parts: splitBraceGroups(it)}
	}
	return &ast.BraceExpansion{Items: words}, true
}

func splitTopLevelComma(s string) []string {
	var out []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, s[start:])
	return out
}

// parseBraceRange recognises `from..to` or `from..to..step`, numeric or
// single-character, with zero-padding detected from the wider endpoint.
func parseBraceRange(s string) (*ast.BraceRange, bool) {
	parts := strings.Split(s, "..")
	if len(parts) < 2 || len(parts) > 3 {
		return nil, false
	}
	step := 1
	if len(parts) == 3 {
		n, err := strconv.Atoi(parts[2])
		if err != nil {
			return nil, false
		}
		if n < 0 {
			n = -n
		}
		if n == 0 {
			n = 1
		}
		step = n
	}
	if len(parts[0]) == 1 && len(parts[1]) == 1 && isAlphaByte(parts[0][0]) && isAlphaByte(parts[1][0]) {
		return &ast.BraceRange{From: int(parts[0][0]), To: int(parts[1][0]), Step: step, Char: true}, true
	}
	from, err1 := strconv.Atoi(parts[0])
	to, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return nil, false
	}
	zero := hasLeadingZero(parts[0]) || hasLeadingZero(parts[1])
	width := len(parts[0])
	if len(parts[1]) > width {
		width = len(parts[1])
	}
	return &ast.BraceRange{From: from, To: to, Step: step, Zero: zero, Width: width}, true
}

func isAlphaByte(b byte) bool { return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') }

func hasLeadingZero(s string) bool {
	s = strings.TrimPrefix(s, "-")
	return len(s) > 1 && s[0] == '0'
}

// paramFromName builds the ParameterExpansion for a bare `$name` reference
// (no braces, no operation).
func paramFromName(name string) *ast.ParameterExpansion {
	switch name {
	case "@", "*":
		return &ast.ParameterExpansion{Parameter: name}
	}
	return &ast.ParameterExpansion{Parameter: name}
}
