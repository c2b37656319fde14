// This file is part of smdc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package c

import "github.com/kidoz/smdc/common"

// Parser is a hand-written recursive-descent parser with Pratt-style
// expression precedence. On a syntax error it records a
// parser-error and recovers at the next statement boundary (semicolon or
// matching brace) so a single run can surface more than one error.
type Parser struct {
	lex     *Lexer
	tok     Token
	errs    common.ErrorList
	typedefs map[string]bool // reserved for future typedef support; always empty today
}

// NewParser creates a parser over the given lexer and primes the first
// token.
func NewParser(lex *Lexer) *Parser {
	p := &Parser{lex: lex, typedefs: map[string]bool{}}
	p.advance()
	return p
}

// Errors returns the accumulated lexer and parser errors.
func (p *Parser) Errors() common.ErrorList {
	errs := append(common.ErrorList{}, p.lex.Errors()...)
	return append(errs, p.errs...)
}

func (p *Parser) advance() { p.tok = p.lex.Next() }

func (p *Parser) at(kind TokKind, text string) bool {
	return p.tok.Kind == kind && (text == "" || p.tok.Text == text)
}

func (p *Parser) atPunct(s string) bool   { return p.at(TokPunct, s) }
func (p *Parser) atKeyword(s string) bool { return p.at(TokKeyword, s) }

func (p *Parser) errorf(format string, args ...interface{}) {
	if p.errs.Full() {
		return
	}
	p.errs.Add(common.NewError(common.KindParser, p.tok.Span, format, args...))
}

// expectPunct consumes a punctuator or records an error and recovers.
func (p *Parser) expectPunct(s string) bool {
	if p.atPunct(s) {
		p.advance()
		return true
	}
	p.errorf("expected %q, found %q", s, p.tok.Text)
	p.recover()
	return false
}

// recover skips to the next statement boundary: a semicolon (consumed) or a
// closing brace (not consumed).2.
func (p *Parser) recover() {
	for {
		if p.tok.Kind == TokEOF {
			return
		}
		if p.atPunct(";") {
			p.advance()
			return
		}
		if p.atPunct("}") {
			return
		}
		p.advance()
	}
}

// ParseProgram parses a whole translation unit.
func (p *Parser) ParseProgram() *Program {
	prog := &Program{}
	for p.tok.Kind != TokEOF {
		if d := p.parseTopLevel(); d != nil {
			prog.Decls = append(prog.Decls, d)
		}
	}
	return prog
}

func (p *Parser) isTypeStart() bool {
	if !p.atKeyword("") {
		return false
	}
	switch p.tok.Text {
	case "int", "unsigned", "signed", "char", "short", "long", "void", "const":
		return true
	}
	return false
}

// parseBaseType parses the keyword sequence for a base type.
func (p *Parser) parseBaseType() Type {
	unsigned := false
	seenSigned := false
	width := 32
	isVoid := false
	sawAny := false
	for p.isTypeStart() {
		sawAny = true
		switch p.tok.Text {
		case "const":
			// qualifiers are not tracked in the neutral type universe
		case "void":
			isVoid = true
		case "unsigned":
			unsigned = true
			seenSigned = true
		case "signed":
			seenSigned = true
		case "char":
			width = 8
		case "short":
			width = 16
		case "long", "int":
			width = 32
		}
		p.advance()
	}
	if !sawAny {
		p.errorf("expected a type, found %q", p.tok.Text)
	}
	if isVoid {
		return TVoid
	}
	_ = seenSigned
	return Type{Kind: KInt, Width: width, Signed: !unsigned}
}

// parseDeclarator parses the pointer/array layers around a name, folding
// them onto base.2.
func (p *Parser) parseDeclarator(base Type) (string, Type) {
	t := base
	for p.atPunct("*") {
		p.advance()
		t = PointerTo(t)
	}
	name := ""
	if p.tok.Kind == TokIdent {
		name = p.tok.Text
		p.advance()
	} else {
		p.errorf("expected identifier in declarator, found %q", p.tok.Text)
	}
	for p.atPunct("[") {
		p.advance()
		n := 0
		if p.tok.Kind == TokInt {
			n = int(p.tok.Int)
			p.advance()
		}
		p.expectPunct("]")
		t = ArrayOf(t, n)
	}
	return name, t
}

func (p *Parser) parseTopLevel() Decl {
	start := p.tok.Span
	base := p.parseBaseType()
	name, typ := p.parseDeclarator(base)
	if p.atPunct("(") {
		return p.parseFuncRest(start, name, typ)
	}
	decl := &VarDecl{Node: Node{Span: start}, Name: name, Type: typ}
	if p.atPunct("=") {
		p.advance()
		decl.Init = p.parseAssignExpr()
	}
	p.expectPunct(";")
	return decl
}

func (p *Parser) parseFuncRest(start common.Span, name string, ret Type) *FuncDecl {
	p.expectPunct("(")
	var params []Param
	if p.atKeyword("void") {
		// peek: `(void)` with nothing after is a no-params marker
		save := p.tok
		p.advance()
		if p.atPunct(")") {
			p.advance()
			fn := &FuncDecl{Node: Node{Span: start}, Name: name, ReturnType: ret}
			return p.parseFuncBodyOrDecl(fn)
		}
		// it was actually a `void` typed parameter's base type; fall through
		base := Type{Kind: KVoid}
		pname, ptyp := p.parseDeclarator(base)
		params = append(params, Param{Name: pname, Type: ptyp})
		_ = save
	}
	for !p.atPunct(")") && p.tok.Kind != TokEOF {
		if len(params) > 0 || p.isTypeStart() {
			if !p.isTypeStart() {
				break
			}
			base := p.parseBaseType()
			pname, ptyp := p.parseDeclarator(base)
			params = append(params, Param{Name: pname, Type: ptyp})
		}
		if p.atPunct(",") {
			p.advance()
			continue
		}
		break
	}
	p.expectPunct(")")
	fn := &FuncDecl{Node: Node{Span: start}, Name: name, Params: params, ReturnType: ret}
	return p.parseFuncBodyOrDecl(fn)
}

func (p *Parser) parseFuncBodyOrDecl(fn *FuncDecl) *FuncDecl {
	if p.atPunct(";") {
		p.advance()
		return fn
	}
	fn.Body = p.parseBlock()
	return fn
}

func (p *Parser) parseBlock() *BlockStmt {
	start := p.tok.Span
	p.expectPunct("{")
	blk := &BlockStmt{Node: Node{Span: start}}
	for !p.atPunct("}") && p.tok.Kind != TokEOF {
		blk.Stmts = append(blk.Stmts, p.parseStmt())
	}
	p.expectPunct("}")
	return blk
}

func (p *Parser) parseStmt() Stmt {
	start := p.tok.Span
	switch {
	case p.atPunct("{"):
		return p.parseBlock()
	case p.atKeyword("if"):
		return p.parseIf(start)
	case p.atKeyword("while"):
		return p.parseWhile(start)
	case p.atKeyword("do"):
		return p.parseDoWhile(start)
	case p.atKeyword("for"):
		return p.parseFor(start)
	case p.atKeyword("return"):
		p.advance()
		var x Expr
		if !p.atPunct(";") {
			x = p.parseExpr()
		}
		p.expectPunct(";")
		return &ReturnStmt{Node: Node{Span: start}, X: x}
	case p.atKeyword("break"):
		p.advance()
		p.expectPunct(";")
		return &BreakStmt{Node{Span: start}}
	case p.atKeyword("continue"):
		p.advance()
		p.expectPunct(";")
		return &ContinueStmt{Node{Span: start}}
	case p.isTypeStart():
		base := p.parseBaseType()
		name, typ := p.parseDeclarator(base)
		decl := &VarDecl{Node: Node{Span: start}, Name: name, Type: typ}
		if p.atPunct("=") {
			p.advance()
			decl.Init = p.parseAssignExpr()
		}
		p.expectPunct(";")
		return &DeclStmt{Node: Node{Span: start}, Decl: decl}
	default:
		x := p.parseExpr()
		p.expectPunct(";")
		return &ExprStmt{Node: Node{Span: start}, X: x}
	}
}

func (p *Parser) parseIf(start common.Span) Stmt {
	p.advance()
	p.expectPunct("(")
	cond := p.parseExpr()
	p.expectPunct(")")
	then := p.parseStmt()
	var els Stmt
	if p.atKeyword("else") {
		p.advance()
		els = p.parseStmt()
	}
	return &IfStmt{Node: Node{Span: start}, Cond: cond, Then: then, Else: els}
}

func (p *Parser) parseWhile(start common.Span) Stmt {
	p.advance()
	p.expectPunct("(")
	cond := p.parseExpr()
	p.expectPunct(")")
	body := p.parseStmt()
	return &WhileStmt{Node: Node{Span: start}, Cond: cond, Body: body}
}

func (p *Parser) parseDoWhile(start common.Span) Stmt {
	p.advance()
	body := p.parseStmt()
	if !p.atKeyword("while") {
		p.errorf("expected 'while' after do-block body")
	} else {
		p.advance()
	}
	p.expectPunct("(")
	cond := p.parseExpr()
	p.expectPunct(")")
	p.expectPunct(";")
	return &DoWhileStmt{Node: Node{Span: start}, Body: body, Cond: cond}
}

func (p *Parser) parseFor(start common.Span) Stmt {
	p.advance()
	p.expectPunct("(")
	fs := &ForStmt{Node: Node{Span: start}}
	if !p.atPunct(";") {
		if p.isTypeStart() {
			declStart := p.tok.Span
			base := p.parseBaseType()
			name, typ := p.parseDeclarator(base)
			decl := &VarDecl{Node: Node{Span: declStart}, Name: name, Type: typ}
			if p.atPunct("=") {
				p.advance()
				decl.Init = p.parseAssignExpr()
			}
			fs.Init = &DeclStmt{Node: Node{Span: declStart}, Decl: decl}
		} else {
			fs.Init = &ExprStmt{Node: Node{Span: p.tok.Span}, X: p.parseExpr()}
		}
	}
	p.expectPunct(";")
	if !p.atPunct(";") {
		fs.Cond = p.parseExpr()
	}
	p.expectPunct(";")
	if !p.atPunct(")") {
		fs.Post = p.parseExpr()
	}
	p.expectPunct(")")
	fs.Body = p.parseStmt()
	return fs
}

// --- Expressions: Pratt-style precedence climbing ---

func (p *Parser) parseExpr() Expr { return p.parseComma() }

func (p *Parser) parseComma() Expr {
	// The comma operator is not part of this subset; assignment is the
	// top-level expression production.
	return p.parseAssignExpr()
}

func (p *Parser) parseAssignExpr() Expr {
	lhs := p.parseCond()
	op, compound, isAssign := p.assignOpAt()
	if !isAssign {
		return lhs
	}
	start := lhs.span()
	p.advance()
	rhs := p.parseAssignExpr()
	return &Assign{ExprBase: ExprBase{Sp: common.Join(start, rhs.span())}, Lhs: lhs, Rhs: rhs, Compound: compound, Op: op}
}

func (p *Parser) assignOpAt() (op BinOp, compound bool, ok bool) {
	if !p.atPunct("") {
		return 0, false, false
	}
	switch p.tok.Text {
	case "=":
		return 0, false, true
	case "+=":
		return BAdd, true, true
	case "-=":
		return BSub, true, true
	case "*=":
		return BMul, true, true
	case "/=":
		return BDiv, true, true
	case "%=":
		return BMod, true, true
	case "&=":
		return BAnd, true, true
	case "|=":
		return BOr, true, true
	case "^=":
		return BXor, true, true
	case "<<=":
		return BShl, true, true
	case ">>=":
		return BShr, true, true
	}
	return 0, false, false
}

func (p *Parser) parseCond() Expr {
	c := p.parseLOr()
	if p.atPunct("?") {
		start := c.span()
		p.advance()
		t := p.parseExpr()
		p.expectPunct(":")
		e := p.parseAssignExpr()
		return &Cond{ExprBase: ExprBase{Sp: common.Join(start, e.span())}, C: c, T: t, E: e}
	}
	return c
}

// binLevel is one precedence tier: a set of punctuators mapped to BinOp and
// the parser for the next-tighter tier.
type binLevel struct {
	ops  map[string]BinOp
	next func(*Parser) Expr
}

func (p *Parser) parseLOr() Expr  { return p.parseBinLevel(lOrLevel) }
func (p *Parser) parseLAnd() Expr { return p.parseBinLevel(lAndLevel) }
func (p *Parser) parseBOr() Expr  { return p.parseBinLevel(bOrLevel) }
func (p *Parser) parseBXor() Expr { return p.parseBinLevel(bXorLevel) }
func (p *Parser) parseBAnd() Expr { return p.parseBinLevel(bAndLevel) }
func (p *Parser) parseEq() Expr   { return p.parseBinLevel(eqLevel) }
func (p *Parser) parseRel() Expr  { return p.parseBinLevel(relLevel) }
func (p *Parser) parseShift() Expr { return p.parseBinLevel(shiftLevel) }
func (p *Parser) parseAdd() Expr  { return p.parseBinLevel(addLevel) }
func (p *Parser) parseMul() Expr  { return p.parseBinLevel(mulLevel) }

var (
	lOrLevel   = binLevel{map[string]BinOp{"||": BLOr}, (*Parser).parseLAnd}
	lAndLevel  = binLevel{map[string]BinOp{"&&": BLAnd}, (*Parser).parseBOr}
	bOrLevel   = binLevel{map[string]BinOp{"|": BOr}, (*Parser).parseBXor}
	bXorLevel  = binLevel{map[string]BinOp{"^": BXor}, (*Parser).parseBAnd}
	bAndLevel  = binLevel{map[string]BinOp{"&": BAnd}, (*Parser).parseEq}
	eqLevel    = binLevel{map[string]BinOp{"==": BEQ, "!=": BNE}, (*Parser).parseRel}
	relLevel   = binLevel{map[string]BinOp{"<": BLT, "<=": BLE, ">": BGT, ">=": BGE}, (*Parser).parseShift}
	shiftLevel = binLevel{map[string]BinOp{"<<": BShl, ">>": BShr}, (*Parser).parseAdd}
	addLevel   = binLevel{map[string]BinOp{"+": BAdd, "-": BSub}, (*Parser).parseMul}
	mulLevel   = binLevel{map[string]BinOp{"*": BMul, "/": BDiv, "%": BMod}, (*Parser).parseUnary}
)

func (p *Parser) parseBinLevel(lvl binLevel) Expr {
	lhs := lvl.next(p)
	for p.tok.Kind == TokPunct {
		op, ok := lvl.ops[p.tok.Text]
		if !ok {
			break
		}
		p.advance()
		rhs := lvl.next(p)
		lhs = &Binary{ExprBase: ExprBase{Sp: common.Join(lhs.span(), rhs.span())}, Op: op, X: lhs, Y: rhs}
	}
	return lhs
}

func (p *Parser) parseUnary() Expr {
	start := p.tok.Span
	switch {
	case p.atPunct("-"):
		p.advance()
		return &Unary{ExprBase: ExprBase{Sp: start}, Op: UNeg, X: p.parseUnary()}
	case p.atPunct("!"):
		p.advance()
		return &Unary{ExprBase: ExprBase{Sp: start}, Op: UNot, X: p.parseUnary()}
	case p.atPunct("~"):
		p.advance()
		return &Unary{ExprBase: ExprBase{Sp: start}, Op: UBitNot, X: p.parseUnary()}
	case p.atPunct("&"):
		p.advance()
		return &Unary{ExprBase: ExprBase{Sp: start}, Op: UAddr, X: p.parseUnary()}
	case p.atPunct("*"):
		p.advance()
		return &Unary{ExprBase: ExprBase{Sp: start}, Op: UDeref, X: p.parseUnary()}
	case p.atPunct("++"):
		p.advance()
		return &Unary{ExprBase: ExprBase{Sp: start}, Op: UPreInc, X: p.parseUnary()}
	case p.atPunct("--"):
		p.advance()
		return &Unary{ExprBase: ExprBase{Sp: start}, Op: UPreDec, X: p.parseUnary()}
	case p.atPunct("(") && p.lexerLooksLikeCast():
		p.advance()
		base := p.parseBaseType()
		t := base
		for p.atPunct("*") {
			p.advance()
			t = PointerTo(t)
		}
		p.expectPunct(")")
		x := p.parseUnary()
		return &Cast{ExprBase: ExprBase{Sp: common.Join(start, x.span())}, To: t, X: x}
	default:
		return p.parsePostfix()
	}
}

// lexerLooksLikeCast performs a minimal lookahead: `(` is a cast only if
// immediately followed by a type keyword. This subset has no typedef names
// in scope, so no further disambiguation is required.
func (p *Parser) lexerLooksLikeCast() bool {
	// save/restore lexer+token state around the one-token lookahead
	savedLex := *p.lex
	savedTok := p.tok
	p.advance() // consume '('
	isType := p.isTypeStart()
	*p.lex = savedLex
	p.tok = savedTok
	return isType
}

func (p *Parser) parsePostfix() Expr {
	x := p.parsePrimary()
	for {
		switch {
		case p.atPunct("["):
			p.advance()
			idx := p.parseExpr()
			end := p.tok.Span
			p.expectPunct("]")
			x = &Index{ExprBase: ExprBase{Sp: common.Join(x.span(), end)}, X: x, I: idx}
		case p.atPunct("++"):
			end := p.tok.Span
			p.advance()
			x = &Unary{ExprBase: ExprBase{Sp: common.Join(x.span(), end)}, Op: UPreInc, X: x}
		case p.atPunct("--"):
			end := p.tok.Span
			p.advance()
			x = &Unary{ExprBase: ExprBase{Sp: common.Join(x.span(), end)}, Op: UPreDec, X: x}
		default:
			return x
		}
	}
}

func (p *Parser) parsePrimary() Expr {
	start := p.tok.Span
	switch {
	case p.tok.Kind == TokInt:
		v, w, s := p.tok.Int, p.tok.Width, p.tok.Signed
		p.advance()
		return &IntLit{ExprBase: ExprBase{Sp: start}, Value: v, Width: w, Signed: s}
	case p.tok.Kind == TokChar:
		v := p.tok.Int
		p.advance()
		return &IntLit{ExprBase: ExprBase{Sp: start}, Value: v, Width: 8, Signed: true}
	case p.tok.Kind == TokIdent:
		name := p.tok.Text
		p.advance()
		if p.atPunct("(") {
			return p.parseCallRest(start, name)
		}
		return &Ident{ExprBase: ExprBase{Sp: start}, Name: name}
	case p.atPunct("("):
		p.advance()
		x := p.parseExpr()
		p.expectPunct(")")
		return x
	default:
		p.errorf("expected expression, found %q", p.tok.Text)
		p.recover()
		return &IntLit{ExprBase: ExprBase{Sp: start}, Value: 0, Width: 32, Signed: true}
	}
}

func (p *Parser) parseCallRest(start common.Span, name string) Expr {
	p.advance() // '('
	var args []Expr
	for !p.atPunct(")") && p.tok.Kind != TokEOF {
		args = append(args, p.parseAssignExpr())
		if p.atPunct(",") {
			p.advance()
			continue
		}
		break
	}
	end := p.tok.Span
	p.expectPunct(")")
	return &Call{ExprBase: ExprBase{Sp: common.Join(start, end)}, Callee: name, Args: args}
}
