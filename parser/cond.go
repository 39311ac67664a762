package parser

import (
	"github.com/vercel-labs/just-bash/ast"
	"github.com/vercel-labs/just-bash/token"
)

var condUnaryOps = map[string]bool{
	"-z": true, "-n": true, "-e": true, "-f": true, "-d": true, "-r": true,
	"-w": true, "-x": true, "-s": true, "-L": true, "-h": true, "-p": true,
	"-S": true, "-b": true, "-c": true, "-g": true, "-u": true, "-k": true,
	"-G": true, "-O": true, "-N": true, "-t": true, "-v": true, "-o": true,
	"-R": true,
}

var condBinaryOps = map[string]bool{
	"=": true, "==": true, "!=": true, "=~": true,
	"-eq": true, "-ne": true, "-lt": true, "-le": true, "-gt": true, "-ge": true,
	"-nt": true, "-ot": true, "-ef": true,
}

// parseCond parses `[[ expr ]]`.
func (p *Parser) parseCond() (*ast.Cond, error) {
	start := p.tok.Pos
	p.next() // [[
	expr, err := p.parseCondOr()
	if err != nil {
		return nil, err
	}
	if !p.atKeyword("]]") {
		return nil, &Error{Pos: p.tok.Pos, Msg: "expected ']]'"}
	}
	p.next()
	c := &ast.Cond{Expr: expr}
	c.Pos, c.EndPos = start, p.tok.Pos
	return c, nil
}

func (p *Parser) parseCondOr() (ast.CondExpr, error) {
	left, err := p.parseCondAnd()
	if err != nil {
		return nil, err
	}
	for p.at(token.OR_OR) {
		p.next()
		p.skipNewlines()
		right, err := p.parseCondAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.CondOr{Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseCondAnd() (ast.CondExpr, error) {
	left, err := p.parseCondNot()
	if err != nil {
		return nil, err
	}
	for p.at(token.AND_AND) {
		p.next()
		p.skipNewlines()
		right, err := p.parseCondNot()
		if err != nil {
			return nil, err
		}
		left = &ast.CondAnd{Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseCondNot() (ast.CondExpr, error) {
	if p.at(token.BANG) {
		p.next()
		x, err := p.parseCondNot()
		if err != nil {
			return nil, err
		}
		return &ast.CondNot{X: x}, nil
	}
	return p.parseCondPrimary()
}

func (p *Parser) parseCondPrimary() (ast.CondExpr, error) {
	start := p.tok.Pos
	if p.at(token.LPAREN) {
		p.next()
		x, err := p.parseCondOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		g := &ast.CondGroup{X: x}
		g.Pos, g.EndPos = start, p.tok.Pos
		return g, nil
	}
	if p.at(token.WORD) && condUnaryOps[p.tok.Value] {
		op := p.tok.Value
		p.next()
		operand, err := p.parseWord()
		if err != nil {
			return nil, err
		}
		u := &ast.CondUnary{Op: op, Operand: operand}
		u.Pos, u.EndPos = start, p.tok.Pos
		return u, nil
	}
	left, err := p.parseWord()
	if err != nil {
		return nil, err
	}
	switch {
	case p.at(token.WORD) && condBinaryOps[p.tok.Value]:
		op := p.tok.Value
		p.next()
		right, err := p.parseWord()
		if err != nil {
			return nil, err
		}
		b := &ast.CondBinary{Op: op, Left: left, Right: right}
		b.Pos, b.EndPos = start, p.tok.Pos
		return b, nil
	case p.at(token.LESS), p.at(token.GREAT):
		op := "<"
		if p.at(token.GREAT) {
			op = ">"
		}
		p.next()
		right, err := p.parseWord()
		if err != nil {
			return nil, err
		}
		b := &ast.CondBinary{Op: op, Left: left, Right: right}
		b.Pos, b.EndPos = start, p.tok.Pos
		return b, nil
	}
	u := &ast.CondUnary{Op: "-n", Operand: left}
	u.Pos, u.EndPos = start, p.tok.Pos
	return u, nil
}
