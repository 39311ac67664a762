// Package parser builds the AST from a lexer.Lexer's token stream via
// recursive descent.
package parser

import (
	"fmt"

	"github.com/vercel-labs/just-bash/ast"
	"github.com/vercel-labs/just-bash/lexer"
	"github.com/vercel-labs/just-bash/token"
)

// Error is a parse failure carrying a source position so syntax errors
// can report line/column.
type Error struct {
	Pos token.Position
	Msg string
}

func (e *Error) Error() string { return fmt.Sprintf("%s: syntax error: %s", e.Pos, e.Msg) }

// Parser turns one token stream into an *ast.Script.
type Parser struct {
	lex *lexer.Lexer
	tok token.Token

	pendingHeredocs []pendingHeredoc
	source          string // recorded as BASH_SOURCE for function defs parsed here
}

type pendingHeredoc struct {
	redirect *ast.Redirect
}

// New builds a Parser over src. source names the origin (script path or
// "<stdin>"/"<command substitution>") for BASH_SOURCE bookkeeping.
func New(src, source string) *Parser {
	p := &Parser{lex: lexer.New(src), source: source}
	p.next()
	return p
}

func (p *Parser) next() {
	p.tok = p.lex.NextToken()
}

func (p *Parser) at(t token.Type) bool { return p.tok.Type == t }

func (p *Parser) atKeyword(word string) bool {
	return p.tok.Type == token.WORD && p.tok.Value == word
}

func (p *Parser) expect(t token.Type) (token.Token, error) {
	if p.tok.Type != t {
		return token.Token{}, &Error{Pos: p.tok.Pos, Msg: fmt.Sprintf("expected %s, got %s", t, p.tok.Type)}
	}
	tok := p.tok
	p.next()
	return tok, nil
}

func (p *Parser) skipNewlines() {
	for p.at(token.NEWLINE) {
		p.next()
	}
}

func (p *Parser) skipTerminators() {
	for p.at(token.NEWLINE) || p.at(token.SEMI) {
		p.next()
	}
}

// peekToken looks one token past the current one without consuming it, by
// running the scan over a copy of the lexer's state.
func (p *Parser) peekToken() token.Token {
	clone := *p.lex
	return clone.NextToken()
}

// Parse parses the entire token stream into a Script.
func Parse(src, source string) (*ast.Script, error) {
	return New(src, source).ParseScript()
}

// ParseScript parses a sequence of lists until EOF.
func (p *Parser) ParseScript() (*ast.Script, error) {
	start := p.tok.Pos
	script := &ast.Script{}
	p.skipTerminators()
	for !p.at(token.EOF) {
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

// flushHeredocsIfAny reads the bodies for any <<TAG / <<-TAG redirects
// collected while parsing the command(s) on the current line, once the
// terminating NEWLINE has been consumed.
func (p *Parser) flushHeredocsIfAny() error {
	if len(p.pendingHeredocs) == 0 {
		return nil
	}
	pending := p.pendingHeredocs
	p.pendingHeredocs = nil
	for _, ph := range pending {
		body := p.lex.ReadHereDocBody(ph.redirect.HereDoc.Tag, ph.redirect.HereDoc.StripTabs)
		ph.redirect.HereDoc.Body = body
	}
	// The lexer consumed raw lines directly; resynchronize the parser's
	// lookahead token to whatever now follows the heredoc bodies.
	p.next()
	return nil
}

// parseList parses pipelines chained by && / ||, ending at a list
// terminator (;, &, newline, EOF) or a reserved word that closes an
// enclosing construct.
func (p *Parser) parseList() (*ast.List, error) {
	start := p.tok.Pos
	first, err := p.parsePipeline()
	if err != nil {
		return nil, err
	}
	list := &ast.List{Pipelines: []*ast.Pipeline{first}}
	for {
		var op ast.LogOp
		switch p.tok.Type {
		case token.AND_AND:
			op = ast.LogAnd
		case token.OR_OR:
			op = ast.LogOr
		default:
			goto done
		}
		p.next()
		p.skipNewlines()
		next, err := p.parsePipeline()
		if err != nil {
			return nil, err
		}
		list.Pipelines = append(list.Pipelines, next)
		list.Operators = append(list.Operators, op)
	}
done:
	if p.at(token.AMP) {
		list.Async = true
		p.next()
	} else if p.at(token.SEMI) {
		p.next()
	}
	list.Pos, list.EndPos = start, p.tok.Pos
	return list, nil
}

// parsePipeline parses `! time cmd1 | cmd2 |& cmd3`.
func (p *Parser) parsePipeline() (*ast.Pipeline, error) {
	start := p.tok.Pos
	pl := &ast.Pipeline{}
	if p.at(token.BANG) {
		pl.Negated = true
		p.next()
	}
	if p.atKeyword("time") {
		pl.Timed = true
		p.next()
		if p.at(token.WORD) && p.tok.Value == "-p" {
			pl.TimedPosix = true
			p.next()
		}
	}
	cmd, err := p.parseCommand()
	if err != nil {
		return nil, err
	}
	pl.Commands = append(pl.Commands, cmd)
	for p.at(token.PIPE) || p.at(token.PIPE_AMP) {
		stderr := p.at(token.PIPE_AMP)
		p.next()
		p.skipNewlines()
		next, err := p.parseCommand()
		if err != nil {
			return nil, err
		}
		pl.Commands = append(pl.Commands, next)
		pl.PipeStderr = append(pl.PipeStderr, stderr)
	}
	pl.Pos, pl.EndPos = start, p.tok.Pos
	return pl, nil
}

// isListTerminator reports whether the current token ends a list/command
// sequence in the current context (used by block parsers to know when to
// stop scanning statements).
func (p *Parser) isListTerminator() bool {
	switch p.tok.Type {
	case token.EOF, token.SEMI, token.NEWLINE, token.AMP:
		return true
	}
	return false
}

func (p *Parser) isReservedClose(words ...string) bool {
	if p.tok.Type != token.WORD {
		return false
	}
	for _, w := range words {
		if p.tok.Value == w {
			return true
		}
	}
	return false
}
