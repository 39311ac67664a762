package parser

import (
	"strconv"
	"strings"

	"github.com/vercel-labs/just-bash/arith"
	"github.com/vercel-labs/just-bash/ast"
	"github.com/vercel-labs/just-bash/token"
)

// parseCommand dispatches on the current token to one of the compound
// command forms, a function definition, or a simple command — the single
// entry point parsePipeline calls for each pipeline stage.
func (p *Parser) parseCommand() (ast.Command, error) {
	switch {
	case p.at(token.ARITH_LPAREN):
		return p.withTrailingRedirects(p.parseArithEval())
	case p.atKeyword("[["):
		return p.withTrailingRedirects(p.parseCond())
	case p.atKeyword("if"):
		return p.withTrailingRedirects(p.parseIf())
	case p.atKeyword("while"):
		return p.withTrailingRedirects(p.parseWhile(false))
	case p.atKeyword("until"):
		return p.withTrailingRedirects(p.parseWhile(true))
	case p.atKeyword("for"):
		return p.withTrailingRedirects(p.parseFor())
	case p.atKeyword("case"):
		return p.withTrailingRedirects(p.parseCase())
	case p.atKeyword("function"):
		return p.parseFunctionDefKeyword()
	case p.at(token.LBRACE):
		return p.withTrailingRedirects(p.parseGroup())
	case p.at(token.LPAREN):
		return p.withTrailingRedirects(p.parseSubshell())
	}
	if p.at(token.WORD) {
		if fn, ok, err := p.tryFunctionDef(); ok || err != nil {
			return fn, err
		}
	}
	return p.parseSimpleCommand()
}

// withTrailingRedirects consumes any redirection tokens following a
// compound command (e.g. `while ...; done < file`, `{ ...; } > out`,
// `( ... ) 2>&1`) and attaches them to cmd. Compound commands other than
// SimpleCommand only ever see their redirects here, after the body has
// already been parsed, since their closing keyword/brace/paren marks the
// end of the command shape itself.
func (p *Parser) withTrailingRedirects[T ast.Command](cmd T, err error) (ast.Command, error) {
	if err != nil {
		return cmd, err
	}
	var redirs []*ast.Redirect
	for {
		fd := -1
		if p.at(token.WORD) && isAllDigits(p.tok.Value) {
			if next := p.peekToken(); isRedirectStart(next.Type) && !next.HasSpaceBefore {
				fd, _ = strconv.Atoi(p.tok.Value)
				p.next()
			}
		}
		if !isRedirectStart(p.tok.Type) {
			break
		}
		r, rerr := p.parseRedirect()
		if rerr != nil {
			return cmd, rerr
		}
		if fd >= 0 {
			r.Fd = fd
		}
		redirs = append(redirs, r)
	}
	if len(redirs) > 0 {
		attachRedirects(cmd, redirs)
	}
	return cmd, nil
}

// attachRedirects appends redirs to whichever Redirects field cmd carries.
func attachRedirects(cmd ast.Command, redirs []*ast.Redirect) {
	switch c := cmd.(type) {
	case *ast.If:
		c.Redirects = append(c.Redirects, redirs...)
	case *ast.While:
		c.Redirects = append(c.Redirects, redirs...)
	case *ast.For:
		c.Redirects = append(c.Redirects, redirs...)
	case *ast.CStyleFor:
		c.Redirects = append(c.Redirects, redirs...)
	case *ast.Case:
		c.Redirects = append(c.Redirects, redirs...)
	case *ast.Group:
		c.Redirects = append(c.Redirects, redirs...)
	case *ast.Subshell:
		c.Redirects = append(c.Redirects, redirs...)
	case *ast.Cond:
		c.Redirects = append(c.Redirects, redirs...)
	case *ast.ArithEval:
		c.Redirects = append(c.Redirects, redirs...)
	case *ast.SimpleCommand:
		c.Redirects = append(c.Redirects, redirs...)
	}
}

// parseScriptUntil parses lists until stop() reports true or EOF is hit,
// shared by every compound command's body.
func (p *Parser) parseScriptUntil(stop func() bool) (*ast.Script, error) {
	start := p.tok.Pos
	script := &ast.Script{}
	p.skipTerminators()
	for !stop() && !p.at(token.EOF) {
		list, err := p.parseList()
		if err != nil {
			return nil, err
		}
		script.Lists = append(script.Lists, list)
		if err := p.flushHeredocsIfAny(); err != nil {
			return nil, err
		}
		p.skipTerminators()
	}
	script.Pos, script.EndPos = start, p.tok.Pos
	return script, nil
}

func (p *Parser) tryFunctionDef() (*ast.FunctionDef, bool, error) {
	next := p.peekToken()
	if next.Type != token.LPAREN || next.HasSpaceBefore {
		return nil, false, nil
	}
	start := p.tok.Pos
	name := p.tok.Value
	p.next() // name
	p.next() // (
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, true, err
	}
	p.skipNewlines()
	body, err := p.parseCommand()
	if err != nil {
		return nil, true, err
	}
	fd := &ast.FunctionDef{Name: name, Body: body, Source: p.source}
	fd.Pos, fd.EndPos = start, p.tok.Pos
	return fd, true, nil
}

func (p *Parser) parseFunctionDefKeyword() (*ast.FunctionDef, error) {
	start := p.tok.Pos
	p.next() // function
	nameTok, err := p.expect(token.WORD)
	if err != nil {
		return nil, err
	}
	if p.at(token.LPAREN) {
		p.next()
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
	}
	p.skipNewlines()
	body, err := p.parseCommand()
	if err != nil {
		return nil, err
	}
	fd := &ast.FunctionDef{Name: nameTok.Value, Body: body, Source: p.source}
	fd.Pos, fd.EndPos = start, p.tok.Pos
	return fd, nil
}

func (p *Parser) parseGroup() (*ast.Group, error) {
	start := p.tok.Pos
	p.next() // {
	body, err := p.parseScriptUntil(func() bool { return p.at(token.RBRACE) })
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RBRACE); err != nil {
		return nil, err
	}
	g := &ast.Group{Body: body}
	g.Pos, g.EndPos = start, p.tok.Pos
	return g, nil
}

func (p *Parser) parseSubshell() (*ast.Subshell, error) {
	start := p.tok.Pos
	p.next() // (
	body, err := p.parseScriptUntil(func() bool { return p.at(token.RPAREN) })
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	s := &ast.Subshell{Body: body}
	s.Pos, s.EndPos = start, p.tok.Pos
	return s, nil
}

func (p *Parser) parseIf() (*ast.If, error) {
	start := p.tok.Pos
	n := &ast.If{}
	p.next() // if
	for {
		cond, err := p.parseList()
		if err != nil {
			return nil, err
		}
		n.Conds = append(n.Conds, cond)
		p.skipTerminators()
		if !p.atKeyword("then") {
			return nil, &Error{Pos: p.tok.Pos, Msg: "expected 'then'"}
		}
		p.next()
		block, err := p.parseScriptUntil(func() bool {
			return p.atKeyword("elif") || p.atKeyword("else") || p.atKeyword("fi")
		})
		if err != nil {
			return nil, err
		}
		n.Blocks = append(n.Blocks, block)
		if p.atKeyword("elif") {
			p.next()
			continue
		}
		break
	}
	if p.atKeyword("else") {
		p.next()
		elseBlock, err := p.parseScriptUntil(func() bool { return p.atKeyword("fi") })
		if err != nil {
			return nil, err
		}
		n.Else = elseBlock
	}
	if !p.atKeyword("fi") {
		return nil, &Error{Pos: p.tok.Pos, Msg: "expected 'fi'"}
	}
	p.next()
	n.Pos, n.EndPos = start, p.tok.Pos
	return n, nil
}

func (p *Parser) parseWhile(until bool) (*ast.While, error) {
	start := p.tok.Pos
	p.next() // while / until
	cond, err := p.parseList()
	if err != nil {
		return nil, err
	}
	p.skipTerminators()
	if !p.atKeyword("do") {
		return nil, &Error{Pos: p.tok.Pos, Msg: "expected 'do'"}
	}
	p.next()
	body, err := p.parseScriptUntil(func() bool { return p.atKeyword("done") })
	if err != nil {
		return nil, err
	}
	if !p.atKeyword("done") {
		return nil, &Error{Pos: p.tok.Pos, Msg: "expected 'done'"}
	}
	p.next()
	w := &ast.While{Until: until, Cond: cond, Body: body}
	w.Pos, w.EndPos = start, p.tok.Pos
	return w, nil
}

func (p *Parser) parseFor() (ast.Command, error) {
	start := p.tok.Pos
	p.next() // for
	if p.at(token.ARITH_LPAREN) {
		return p.parseCStyleFor(start)
	}
	nameTok, err := p.expect(token.WORD)
	if err != nil {
		return nil, err
	}
	f := &ast.For{Var: nameTok.Value}
	p.skipTerminators()
	if p.atKeyword("in") {
		f.HasIn = true
		p.next()
		for !p.isListTerminator() && !p.atKeyword("do") {
			w, err := p.parseWord()
			if err != nil {
				return nil, err
			}
			f.Words = append(f.Words, w)
		}
	}
	p.skipTerminators()
	if !p.atKeyword("do") {
		return nil, &Error{Pos: p.tok.Pos, Msg: "expected 'do'"}
	}
	p.next()
	body, err := p.parseScriptUntil(func() bool { return p.atKeyword("done") })
	if err != nil {
		return nil, err
	}
	if !p.atKeyword("done") {
		return nil, &Error{Pos: p.tok.Pos, Msg: "expected 'done'"}
	}
	p.next()
	f.Body = body
	f.Pos, f.EndPos = start, p.tok.Pos
	return f, nil
}

// parseCStyleFor handles `for ((init; cond; step)); do ... done`. The
// clauses are lexed as raw text (like a $((...)) body) rather than
// token-by-token, since ARITH_LPAREN itself carries no payload.
func (p *Parser) parseCStyleFor(start token.Position) (*ast.CStyleFor, error) {
	raw := p.lex.ReadArithBalanced()
	p.next()
	clauses := splitArithClauses(raw)
	for len(clauses) < 3 {
		clauses = append(clauses, "")
	}
	f := &ast.CStyleFor{}
	var err error
	if f.Init, err = parseArithClause(clauses[0]); err != nil {
		return nil, &Error{Pos: start, Msg: err.Error()}
	}
	if f.Cond, err = parseArithClause(clauses[1]); err != nil {
		return nil, &Error{Pos: start, Msg: err.Error()}
	}
	if f.Step, err = parseArithClause(clauses[2]); err != nil {
		return nil, &Error{Pos: start, Msg: err.Error()}
	}
	p.skipTerminators()
	if !p.atKeyword("do") {
		return nil, &Error{Pos: p.tok.Pos, Msg: "expected 'do'"}
	}
	p.next()
	body, err := p.parseScriptUntil(func() bool { return p.atKeyword("done") })
	if err != nil {
		return nil, err
	}
	if !p.atKeyword("done") {
		return nil, &Error{Pos: p.tok.Pos, Msg: "expected 'done'"}
	}
	p.next()
	f.Body = body
	f.Pos, f.EndPos = start, p.tok.Pos
	return f, nil
}

func parseArithClause(s string) (*ast.ArithExpr, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	return arith.Parse(s)
}

func splitArithClauses(s string) []string {
	var out []string
	start := 0
	for i, ok := findTopLevelByte(s[start:], ';'); ok; i, ok = findTopLevelByte(s[start:], ';') {
		out = append(out, s[start:start+i])
		start = start + i + 1
	}
	out = append(out, s[start:])
	return out
}

// parseArithEval handles `(( expr ))` as a command.
func (p *Parser) parseArithEval() (*ast.ArithEval, error) {
	start := p.tok.Pos
	raw := p.lex.ReadArithBalanced()
	p.next()
	expr, err := arith.Parse(raw)
	if err != nil {
		return nil, &Error{Pos: start, Msg: err.Error()}
	}
	n := &ast.ArithEval{Expr: expr}
	n.Pos, n.EndPos = start, p.tok.Pos
	return n, nil
}

func (p *Parser) parseCase() (*ast.Case, error) {
	start := p.tok.Pos
	p.next() // case
	subject, err := p.parseWord()
	if err != nil {
		return nil, err
	}
	p.skipTerminators()
	if !p.atKeyword("in") {
		return nil, &Error{Pos: p.tok.Pos, Msg: "expected 'in'"}
	}
	p.next()
	p.skipTerminators()
	c := &ast.Case{Subject: subject}
	for !p.atKeyword("esac") && !p.at(token.EOF) {
		item, err := p.parseCaseItem()
		if err != nil {
			return nil, err
		}
		c.Items = append(c.Items, item)
		p.skipTerminators()
	}
	if !p.atKeyword("esac") {
		return nil, &Error{Pos: p.tok.Pos, Msg: "expected 'esac'"}
	}
	p.next()
	c.Pos, c.EndPos = start, p.tok.Pos
	return c, nil
}

func (p *Parser) parseCaseItem() (*ast.CaseItem, error) {
	start := p.tok.Pos
	if p.at(token.LPAREN) {
		p.next()
	}
	item := &ast.CaseItem{}
	for {
		w, err := p.parseWord()
		if err != nil {
			return nil, err
		}
		item.Patterns = append(item.Patterns, w)
		if p.at(token.PIPE) {
			p.next()
			continue
		}
		break
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	body, err := p.parseScriptUntil(func() bool {
		return p.at(token.SEMI_SEMI) || p.at(token.SEMI_AMP) || p.at(token.SEMI_SEMI_AMP) || p.atKeyword("esac")
	})
	if err != nil {
		return nil, err
	}
	item.Body = body
	switch p.tok.Type {
	case token.SEMI_AMP:
		item.Term = ast.CaseFallthru
		p.next()
	case token.SEMI_SEMI_AMP:
		item.Term = ast.CaseContinue
		p.next()
	case token.SEMI_SEMI:
		item.Term = ast.CaseBreak
		p.next()
	}
	item.Pos, item.EndPos = start, p.tok.Pos
	return item, nil
}

// parseSimpleCommand parses leading assignments, words and redirects in
// whatever order they appear (redirects may be interspersed anywhere).
func (p *Parser) parseSimpleCommand() (*ast.SimpleCommand, error) {
	start := p.tok.Pos
	c := &ast.SimpleCommand{}
	sawWord := false
	for {
		if p.at(token.WORD) && isAllDigits(p.tok.Value) {
			if next := p.peekToken(); isRedirectStart(next.Type) && !next.HasSpaceBefore {
				fd, _ := strconv.Atoi(p.tok.Value)
				p.next()
				r, err := p.parseRedirect()
				if err != nil {
					return nil, err
				}
				r.Fd = fd
				c.Redirects = append(c.Redirects, r)
				continue
			}
		}
		if isRedirectStart(p.tok.Type) {
			r, err := p.parseRedirect()
			if err != nil {
				return nil, err
			}
			c.Redirects = append(c.Redirects, r)
			continue
		}
		if !sawWord && p.at(token.WORD) {
			if assign, ok, err := p.tryAssignment(); err != nil {
				return nil, err
			} else if ok {
				c.Assignments = append(c.Assignments, assign)
				continue
			}
		}
		if isWordPartToken(p.tok.Type) {
			w, err := p.parseWord()
			if err != nil {
				return nil, err
			}
			c.Words = append(c.Words, w)
			sawWord = true
			continue
		}
		break
	}
	if len(c.Words) == 0 && len(c.Assignments) == 0 && len(c.Redirects) == 0 {
		return nil, &Error{Pos: p.tok.Pos, Msg: "expected a command, got " + p.tok.Type.String()}
	}
	c.Pos, c.EndPos = start, p.tok.Pos
	return c, nil
}

func isRedirectStart(t token.Type) bool {
	switch t {
	case token.LESS, token.GREAT, token.DGREAT, token.DLESS, token.DLESS_DASH,
		token.DLESSLESS, token.GREAT_AMP, token.LESS_AMP, token.CLOBBER:
		return true
	}
	return false
}

// tryAssignment recognises `name=value`, `name+=value`, `name=(...)` and
// `name[idx]=value` at the current WORD token; it returns ok=false (without
// consuming) when the word isn't actually an assignment, e.g. a bare
// command name.
func (p *Parser) tryAssignment() (*ast.Assignment, bool, error) {
	word := p.tok.Value
	eq := strings.IndexByte(word, '=')
	if eq <= 0 {
		return nil, false, nil
	}
	name := word
	append_ := false
	if word[eq-1] == '+' {
		name = word[:eq-1]
		append_ = true
	} else {
		name = word[:eq]
	}
	var index string
	if bi := strings.IndexByte(name, '['); bi > 0 && strings.HasSuffix(name, "]") {
		index = name[bi+1 : len(name)-1]
		name = name[:bi]
	}
	if !isValidName(name) {
		return nil, false, nil
	}
	start := p.tok.Pos
	rest := word[eq+1:]
	p.next() // consume the WORD carrying `name=`

	a := &ast.Assignment{Name: name, Append: append_}
	if index != "" {
		parts, err := parseOperandWord(index, p.source)
		if err != nil {
			return nil, true, err
		}
		a.Index = &ast.Word{Parts: parts}
	}

	if rest == "" && p.at(token.LPAREN) {
		if err := p.parseArrayLiteral(a); err != nil {
			return nil, true, err
		}
		a.Pos, a.EndPos = start, p.tok.Pos
		return a, true, nil
	}

	parts, err := parseOperandWord(rest, p.source)
	if err != nil {
		return nil, true, err
	}
	valWord := &ast.Word{Parts: parts}
	// an adjacent (no-space) word part continues the value, e.g. name=$x"y"
	for isWordPartToken(p.tok.Type) && !p.tok.HasSpaceBefore {
		more, err := p.parseWordPart(false)
		if err != nil {
			return nil, true, err
		}
		valWord.Parts = append(valWord.Parts, more...)
	}
	a.Value = valWord
	a.Pos, a.EndPos = start, p.tok.Pos
	return a, true, nil
}

// parseArrayLiteral parses `(v1 v2 [k]=v3 ...)` following `name=`.
func (p *Parser) parseArrayLiteral(a *ast.Assignment) error {
	p.next() // (
	p.skipNewlines()
	for !p.at(token.RPAREN) && !p.at(token.EOF) {
		if p.at(token.LBRACE) { // not expected; guard against infinite loop
			break
		}
		w, err := p.parseWord()
		if err != nil {
			return err
		}
		// `[key]=value` element makes this an associative array.
		if len(w.Parts) > 0 {
			if lit, ok := w.Parts[0].(*ast.Literal); ok && strings.HasPrefix(lit.Text, "[") {
				if ci := strings.Index(lit.Text, "]="); ci > 0 {
					a.IsAssocArray = true
					keyText := lit.Text[1:ci]
					valText := lit.Text[ci+2:]
					keyParts, err := parseOperandWord(keyText, p.source)
					if err != nil {
						return err
					}
					a.AssocKeys = append(a.AssocKeys, &ast.Word{Parts: keyParts})
					valParts, err := parseOperandWord(valText, p.source)
					if err != nil {
						return err
					}
					valWord := &ast.Word{Parts: valParts}
					valWord.Parts = append(valWord.Parts, w.Parts[1:]...)
					a.AssocVals = append(a.AssocVals, valWord)
					p.skipNewlines()
					continue
				}
			}
		}
		a.IsArray = true
		a.Elements = append(a.Elements, w)
		p.skipNewlines()
	}
	_, err := p.expect(token.RPAREN)
	return err
}

func isValidName(s string) bool {
	if s == "" {
		return false
	}
	if s[0] != '_' && !isAlphaByte(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentChar(s[i]) {
			return false
		}
	}
	return true
}

// parseRedirect parses one redirection operator together with its target,
// including here-doc tag capture. A leading fd word (`2>`) is consumed by
// the caller, which sets the returned Redirect's Fd.
func (p *Parser) parseRedirect() (*ast.Redirect, error) {
	start := p.tok.Pos
	fd := -1
	op := p.tok
	p.next()

	r := &ast.Redirect{Fd: fd, TargetFd: -1}
	switch op.Type {
	case token.LESS:
		r.Kind = ast.RedirRead
	case token.GREAT:
		r.Kind = ast.RedirWrite
	case token.DGREAT:
		r.Kind = ast.RedirAppend
	case token.CLOBBER:
		r.Kind = ast.RedirClobber
	case token.LESS_AMP:
		r.Kind = ast.RedirDupIn
	case token.GREAT_AMP:
		r.Kind = ast.RedirDupOut
	case token.DLESS, token.DLESS_DASH:
		if op.Type == token.DLESS {
			r.Kind = ast.RedirHereDoc
		} else {
			r.Kind = ast.RedirHereDocTab
		}
	case token.DLESSLESS:
		r.Kind = ast.RedirHereString
	}

	if r.Kind == ast.RedirHereDoc || r.Kind == ast.RedirHereDocTab {
		tag := p.tok.Value
		quoted := p.tok.Type == token.SINGLE_QUOTED || p.tok.Type == token.DOUBLE_QUOTED
		p.next()
		r.HereDoc = &ast.HereDoc{Tag: tag, Quoted: quoted, StripTabs: r.Kind == ast.RedirHereDocTab}
		p.pendingHeredocs = append(p.pendingHeredocs, pendingHeredoc{redirect: r})
		r.Pos, r.EndPos = start, p.tok.Pos
		return r, nil
	}

	if (r.Kind == ast.RedirDupIn || r.Kind == ast.RedirDupOut) && p.at(token.WORD) && isAllDigits(p.tok.Value) {
		n, _ := strconv.Atoi(p.tok.Value)
		r.TargetFd = n
		p.next()
		r.Pos, r.EndPos = start, p.tok.Pos
		return r, nil
	}

	target, err := p.parseWord()
	if err != nil {
		return nil, err
	}
	r.Target = target
	r.Pos, r.EndPos = start, p.tok.Pos
	return r, nil
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

