// Package parser implements Charon's recursive-descent parser: tokens to
// abstract syntax tree.
//
// Top level alternates between `func` declarations, `class` declarations,
// and bare statements; the residual statements become the body of the
// synthetic entry function `$`. Expression precedence, loosest to tightest:
// logical-or, logical-and, equality, relational (non-associative — a single
// chain only), additive, multiplicative, prefix unary, call/member chain,
// primary.
package parser

import (
	"fmt"

	"github.com/0x264/charon/pkg/ast"
	"github.com/0x264/charon/pkg/lexer"
)

// Error is a parse error with the offending token's source offset.
type Error struct {
	Msg    string
	Offset int
}

func (e *Error) Error() string { return e.Msg }

func errAt(msg string, offset int) *Error { return &Error{Msg: msg, Offset: offset} }

// Parser consumes a flat token stream and produces a Program.
type Parser struct {
	tokens []lexer.Token
	offset int
}

// New wraps a token stream for parsing.
func New(tokens []lexer.Token) *Parser {
	return &Parser{tokens: tokens}
}

// Parse consumes the entire token stream.
func (p *Parser) Parse() (*ast.Program, error) {
	var funcs []ast.FuncDecl
	var classes []ast.ClassDecl
	var stmts []ast.Stmt

	for {
		tok, ok := p.peek()
		if !ok {
			break
		}
		switch tok.Kind {
		case lexer.Func:
			p.advance()
			f, err := p.parseFunction()
			if err != nil {
				return nil, err
			}
			funcs = append(funcs, *f)
		case lexer.Class:
			p.advance()
			c, err := p.parseClass()
			if err != nil {
				return nil, err
			}
			classes = append(classes, *c)
		default:
			s, err := p.parseStmt()
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, s)
		}
	}

	funcs = append(funcs, ast.FuncDecl{Name: ast.EntryName, Body: stmts})
	return &ast.Program{Funcs: funcs, Classes: classes}, nil
}

func (p *Parser) parseFunction() (*ast.FuncDecl, error) {
	tok, ok := p.next()
	if !ok || tok.Kind != lexer.Identifier {
		return nil, errAt("function name not found after keyword `func`", p.offset)
	}
	name := tok.Ident

	if err := p.consumeOrErr(lexer.LParen); err != nil {
		return nil, err
	}

	var params []string
	for {
		tok, ok := p.peek()
		if !ok || tok.Kind != lexer.Identifier {
			break
		}
		params = append(params, tok.Ident)
		p.advance()
		if !p.consume(lexer.Comma) {
			break
		}
	}

	if err := p.consumeOrErr(lexer.RParen); err != nil {
		return nil, err
	}
	if err := p.consumeOrErr(lexer.LBrace); err != nil {
		return nil, err
	}

	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.FuncDecl{Name: name, Params: params, Body: body}, nil
}

func (p *Parser) parseClass() (*ast.ClassDecl, error) {
	tok, ok := p.next()
	if !ok || tok.Kind != lexer.Identifier {
		return nil, errAt("class name not found after keyword `class`", p.offset)
	}
	name := tok.Ident

	if err := p.consumeOrErr(lexer.LBrace); err != nil {
		return nil, err
	}

	var methods []ast.FuncDecl
	for {
		tok, ok := p.peek()
		if !ok || tok.Kind != lexer.Func {
			break
		}
		p.advance()
		m, err := p.parseFunction()
		if err != nil {
			return nil, err
		}
		methods = append(methods, *m)
	}

	if err := p.consumeOrErr(lexer.RBrace); err != nil {
		return nil, err
	}
	return &ast.ClassDecl{Name: name, Methods: methods}, nil
}

func (p *Parser) parseStmt() (ast.Stmt, error) {
	tok, ok := p.next()
	if !ok {
		return nil, errAt("unexpected end of file", p.offset)
	}

	switch tok.Kind {
	case lexer.Var:
		return p.parseVarDef()
	case lexer.If:
		return p.parseIf()
	case lexer.While:
		return p.parseWhile()
	case lexer.Break:
		if err := p.consumeOrErr(lexer.Semi); err != nil {
			return nil, err
		}
		return ast.Break{}, nil
	case lexer.Continue:
		if err := p.consumeOrErr(lexer.Semi); err != nil {
			return nil, err
		}
		return ast.Continue{}, nil
	case lexer.Return:
		return p.parseReturn()
	case lexer.LBrace:
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		return ast.Block{Stmts: body}, nil
	default:
		p.offset--
		return p.parseAssignOrExprStmt()
	}
}

func (p *Parser) parseVarDef() (ast.Stmt, error) {
	tok, ok := p.next()
	if !ok || tok.Kind != lexer.Identifier {
		return nil, errAt("expected variable name after keyword `var`", p.offset)
	}
	name := tok.Ident

	var init ast.Expr
	if p.consume(lexer.Eq) {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		init = e
	}
	if err := p.consumeOrErr(lexer.Semi); err != nil {
		return nil, err
	}
	return ast.VarDef{Name: name, Init: init}, nil
}

func (p *Parser) parseIf() (ast.Stmt, error) {
	if err := p.consumeOrErr(lexer.LParen); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.consumeOrErr(lexer.RParen); err != nil {
		return nil, err
	}
	then, err := p.parseBlockWithLBrace()
	if err != nil {
		return nil, err
	}

	if !p.consume(lexer.Else) {
		return ast.If{Cond: cond, Then: then}, nil
	}

	var els []ast.Stmt
	if p.consume(lexer.If) {
		nested, err := p.parseIf()
		if err != nil {
			return nil, err
		}
		els = []ast.Stmt{nested}
	} else {
		els, err = p.parseBlockWithLBrace()
		if err != nil {
			return nil, err
		}
	}
	return ast.If{Cond: cond, Then: then, Else: els}, nil
}

func (p *Parser) parseWhile() (ast.Stmt, error) {
	if err := p.consumeOrErr(lexer.LParen); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.consumeOrErr(lexer.RParen); err != nil {
		return nil, err
	}
	body, err := p.parseBlockWithLBrace()
	if err != nil {
		return nil, err
	}
	return ast.While{Cond: cond, Body: body}, nil
}

func (p *Parser) parseReturn() (ast.Stmt, error) {
	if p.consume(lexer.Semi) {
		return ast.Return{}, nil
	}
	v, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.consumeOrErr(lexer.Semi); err != nil {
		return nil, err
	}
	return ast.Return{Value: v}, nil
}

func (p *Parser) parseAssignOrExprStmt() (ast.Stmt, error) {
	left, err := p.parseExpr()
	if err != nil {
		return nil, err
	}

	tok, ok := p.next()
	if !ok {
		return nil, errAt("unexpected end after expr in stmt", p.tokens[len(p.tokens)-1].Offset)
	}

	var op ast.AssignOp
	switch tok.Kind {
	case lexer.Semi:
		return ast.ExprStmt{Expr: left}, nil
	case lexer.Eq:
		op = ast.Assign
	case lexer.PlusEq:
		op = ast.AddAssign
	case lexer.SubEq:
		op = ast.SubAssign
	case lexer.StarEq:
		op = ast.MultiplyAssign
	case lexer.SlashEq:
		op = ast.DivideAssign
	default:
		return nil, errAt(fmt.Sprintf("unexpected token: %v", tok.Kind), tok.Offset)
	}

	getVar, isGetVar := left.(ast.GetVar)
	getter, isGetter := left.(ast.Getter)
	if !isGetVar && !isGetter {
		return nil, errAt("invalid assign target", tok.Offset)
	}

	value, err := p.parseExpr()
	if err != nil {
		return nil, err
	}

	var stmt ast.Stmt
	if isGetVar {
		stmt = ast.SetVar{To: getVar.Name, Op: op, Value: value}
	} else {
		stmt = ast.Setter{Owner: getter.Owner, Field: getter.Member, Op: op, Value: value}
	}

	if err := p.consumeOrErr(lexer.Semi); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) parseExpr() (ast.Expr, error) { return p.logicOr() }

func (p *Parser) logicOr() (ast.Expr, error) {
	left, err := p.logicAnd()
	if err != nil {
		return nil, err
	}
	for p.consume(lexer.BarBar) {
		right, err := p.logicAnd()
		if err != nil {
			return nil, err
		}
		left = ast.Logic{Left: left, Op: ast.Or, Right: right}
	}
	return left, nil
}

func (p *Parser) logicAnd() (ast.Expr, error) {
	left, err := p.equal()
	if err != nil {
		return nil, err
	}
	for p.consume(lexer.AmpAmp) {
		right, err := p.equal()
		if err != nil {
			return nil, err
		}
		left = ast.Logic{Left: left, Op: ast.And, Right: right}
	}
	return left, nil
}

func (p *Parser) equal() (ast.Expr, error) {
	left, err := p.compare()
	if err != nil {
		return nil, err
	}
	if p.consume(lexer.EqEq) {
		right, err := p.compare()
		if err != nil {
			return nil, err
		}
		return ast.Binary{Left: left, Op: ast.EqEq, Right: right}, nil
	}
	if p.consume(lexer.BangEq) {
		right, err := p.compare()
		if err != nil {
			return nil, err
		}
		return ast.Binary{Left: left, Op: ast.BangEq, Right: right}, nil
	}
	return left, nil
}

func (p *Parser) compare() (ast.Expr, error) {
	left, err := p.addSub()
	if err != nil {
		return nil, err
	}
	tok, ok := p.next()
	if !ok {
		return left, nil
	}

	var op ast.BinaryOp
	switch tok.Kind {
	case lexer.Gt:
		op = ast.Gt
	case lexer.Lt:
		op = ast.Lt
	case lexer.GtEq:
		op = ast.GtEq
	case lexer.LtEq:
		op = ast.LtEq
	default:
		p.offset--
		return left, nil
	}

	right, err := p.addSub()
	if err != nil {
		return nil, err
	}
	return ast.Binary{Left: left, Op: op, Right: right}, nil
}

func (p *Parser) addSub() (ast.Expr, error) {
	left, err := p.multiplyDivide()
	if err != nil {
		return nil, err
	}
	for {
		if p.consume(lexer.Plus) {
			right, err := p.multiplyDivide()
			if err != nil {
				return nil, err
			}
			left = ast.Binary{Left: left, Op: ast.Add, Right: right}
		} else if p.consume(lexer.Sub) {
			right, err := p.multiplyDivide()
			if err != nil {
				return nil, err
			}
			left = ast.Binary{Left: left, Op: ast.Sub, Right: right}
		} else {
			break
		}
	}
	return left, nil
}

func (p *Parser) multiplyDivide() (ast.Expr, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		if p.consume(lexer.Star) {
			right, err := p.unary()
			if err != nil {
				return nil, err
			}
			left = ast.Binary{Left: left, Op: ast.Multiply, Right: right}
		} else if p.consume(lexer.Slash) {
			right, err := p.unary()
			if err != nil {
				return nil, err
			}
			left = ast.Binary{Left: left, Op: ast.Divide, Right: right}
		} else {
			break
		}
	}
	return left, nil
}

func (p *Parser) unary() (ast.Expr, error) {
	if p.consume(lexer.Bang) {
		e, err := p.unary()
		if err != nil {
			return nil, err
		}
		return ast.Unary{Op: ast.Bang, Expr: e}, nil
	}
	if p.consume(lexer.Sub) {
		e, err := p.unary()
		if err != nil {
			return nil, err
		}
		return ast.Unary{Op: ast.Neg, Expr: e}, nil
	}
	return p.call()
}

func (p *Parser) call() (ast.Expr, error) {
	expr, err := p.primary()
	if err != nil {
		return nil, err
	}

	for {
		if p.consume(lexer.LParen) {
			var args []ast.Expr
			for {
				if p.consume(lexer.RParen) {
					break
				}
				arg, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				args = append(args, arg)
				if !p.consume(lexer.Comma) {
					if err := p.consumeOrErr(lexer.RParen); err != nil {
						return nil, err
					}
					break
				}
			}
			expr = ast.Call{Owner: expr, Args: args}
		} else if p.consume(lexer.Dot) {
			tok, ok := p.next()
			if !ok || tok.Kind != lexer.Identifier {
				return nil, errAt("expected identifier", p.offset)
			}
			expr = ast.Getter{Owner: expr, Member: tok.Ident}
		} else {
			break
		}
	}
	return expr, nil
}

func (p *Parser) primary() (ast.Expr, error) {
	tok, ok := p.next()
	if !ok {
		return nil, errAt("unexpected end of file", p.offset)
	}

	switch tok.Kind {
	case lexer.Long:
		return ast.Long{Value: tok.Long}, nil
	case lexer.Double:
		return ast.Double{Value: tok.Double}, nil
	case lexer.String:
		return ast.String{Value: tok.Str}, nil
	case lexer.True:
		return ast.True{}, nil
	case lexer.False:
		return ast.False{}, nil
	case lexer.This:
		return ast.This{}, nil
	case lexer.Null:
		return ast.Null{}, nil
	case lexer.Identifier:
		return ast.GetVar{Name: tok.Ident}, nil
	case lexer.LParen:
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.consumeOrErr(lexer.RParen); err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, errAt(fmt.Sprintf("unexpected token: %v in primary stmt", tok.Kind), tok.Offset)
	}
}

func (p *Parser) parseBlockWithLBrace() ([]ast.Stmt, error) {
	if err := p.consumeOrErr(lexer.LBrace); err != nil {
		return nil, err
	}
	return p.parseBlock()
}

func (p *Parser) parseBlock() ([]ast.Stmt, error) {
	var stmts []ast.Stmt
	for {
		if p.consume(lexer.RBrace) {
			break
		}
		s, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	return stmts, nil
}

func (p *Parser) consume(kind lexer.TokenKind) bool {
	if tok, ok := p.peek(); ok && tok.Kind == kind {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) consumeOrErr(kind lexer.TokenKind) error {
	tok, ok := p.peek()
	if !ok {
		return errAt(fmt.Sprintf("failed to consume token: %v, end of file", kind), p.offset)
	}
	if tok.Kind != kind {
		return errAt(fmt.Sprintf("expected token: %v, got: %v", kind, tok.Kind), tok.Offset)
	}
	p.advance()
	return nil
}

func (p *Parser) peek() (lexer.Token, bool) {
	if p.offset >= len(p.tokens) {
		return lexer.Token{}, false
	}
	return p.tokens[p.offset], true
}

func (p *Parser) next() (lexer.Token, bool) {
	tok, ok := p.peek()
	if ok {
		p.advance()
	}
	return tok, ok
}

func (p *Parser) advance() { p.offset++ }
