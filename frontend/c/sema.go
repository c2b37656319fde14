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

// scope is one level of the lexically-stacked symbol table.
type scope struct {
	parent *scope
	names  map[string]*Symbol
}

func newScope(parent *scope) *scope {
	return &scope{parent: parent, names: map[string]*Symbol{}}
}

func (s *scope) declare(sym *Symbol) bool {
	if _, exists := s.names[sym.Name]; exists {
		return false
	}
	s.names[sym.Name] = sym
	return true
}

func (s *scope) lookup(name string) *Symbol {
	for cur := s; cur != nil; cur = cur.parent {
		if sym, ok := cur.names[name]; ok {
			return sym
		}
	}
	return nil
}

// Checker runs name resolution and type checking over a Program, annotating every Ident with its Symbol and every Expr with its
// Resolved type in place.
type Checker struct {
	errs      common.ErrorList
	global    *scope
	funcs     map[string]*FuncDecl
	loopDepth int
	curRet    Type
}

// NewChecker creates a Checker with an empty global scope.
func NewChecker() *Checker {
	return &Checker{global: newScope(nil), funcs: map[string]*FuncDecl{}}
}

// Errors returns the accumulated semantic errors.
func (c *Checker) Errors() common.ErrorList { return c.errs }

func (c *Checker) errorf(span common.Span, format string, args ...interface{}) {
	if c.errs.Full() {
		return
	}
	c.errs.Add(common.NewError(common.KindSemantic, span, format, args...))
}

func (c *Checker) typeErrorf(span common.Span, format string, args ...interface{}) {
	if c.errs.Full() {
		return
	}
	c.errs.Add(common.NewError(common.KindType, span, format, args...))
}

// Check resolves names and types across the whole program. Functions are
// forward-declarable within the translation unit: a first pass registers
// every function's signature before any body is checked.
func (c *Checker) Check(prog *Program) {
	for _, d := range prog.Decls {
		if fn, ok := d.(*FuncDecl); ok {
			if c.global.lookup(fn.Name) != nil {
				c.errorf(fn.Span, "redefinition of %q", fn.Name)
				continue
			}
			c.global.declare(&Symbol{Name: fn.Name, Kind: SymFunc, Type: fn.ReturnType, IRName: fn.Name})
			c.funcs[fn.Name] = fn
		}
	}
	for _, d := range prog.Decls {
		switch d := d.(type) {
		case *VarDecl:
			c.checkGlobalVar(d)
		case *FuncDecl:
			c.checkFunc(d)
		}
	}
}

func (c *Checker) checkGlobalVar(v *VarDecl) {
	if c.global.lookup(v.Name) != nil {
		c.errorf(v.Span, "redefinition of %q", v.Name)
		return
	}
	sym := &Symbol{Name: v.Name, Kind: SymVar, Type: v.Type, IRName: v.Name, IsGlobal: true}
	c.global.declare(sym)
	v.Sym = sym
	if v.Init != nil {
		c.checkExpr(v.Init, c.global)
	}
}

func (c *Checker) checkFunc(fn *FuncDecl) {
	if fn.Body == nil {
		return
	}
	s := newScope(c.global)
	for i := range fn.Params {
		p := &fn.Params[i]
		sym := &Symbol{Name: p.Name, Kind: SymParam, Type: p.Type}
		if !s.declare(sym) {
			c.errorf(fn.Span, "duplicate parameter %q", p.Name)
		}
		p.Sym = sym
	}
	c.curRet = fn.ReturnType
	c.checkBlock(fn.Body, s)
}

func (c *Checker) checkBlock(b *BlockStmt, parent *scope) {
	s := newScope(parent)
	for _, st := range b.Stmts {
		c.checkStmt(st, s)
	}
}

func (c *Checker) checkStmt(st Stmt, s *scope) {
	switch st := st.(type) {
	case *DeclStmt:
		sym := &Symbol{Name: st.Decl.Name, Kind: SymVar, Type: st.Decl.Type}
		if !s.declare(sym) {
			c.errorf(st.Span, "redefinition of %q", st.Decl.Name)
		}
		st.Decl.Sym = sym
		if st.Decl.Init != nil {
			c.checkExpr(st.Decl.Init, s)
		}
	case *ExprStmt:
		c.checkExpr(st.X, s)
	case *BlockStmt:
		c.checkBlock(st, s)
	case *IfStmt:
		c.checkExpr(st.Cond, s)
		c.checkStmt(st.Then, s)
		if st.Else != nil {
			c.checkStmt(st.Else, s)
		}
	case *WhileStmt:
		c.checkExpr(st.Cond, s)
		c.loopDepth++
		c.checkStmt(st.Body, s)
		c.loopDepth--
	case *DoWhileStmt:
		c.loopDepth++
		c.checkStmt(st.Body, s)
		c.loopDepth--
		c.checkExpr(st.Cond, s)
	case *ForStmt:
		inner := newScope(s)
		if st.Init != nil {
			c.checkStmt(st.Init, inner)
		}
		if st.Cond != nil {
			c.checkExpr(st.Cond, inner)
		}
		if st.Post != nil {
			c.checkExpr(st.Post, inner)
		}
		c.loopDepth++
		c.checkStmt(st.Body, inner)
		c.loopDepth--
	case *ReturnStmt:
		if st.X != nil {
			c.checkExpr(st.X, s)
		} else if c.curRet.Kind != KVoid {
			c.typeErrorf(st.Span, "non-void function must return a value")
		}
	case *BreakStmt:
		if c.loopDepth == 0 {
			c.errorf(st.Span, "'break' outside of a loop")
		}
	case *ContinueStmt:
		if c.loopDepth == 0 {
			c.errorf(st.Span, "'continue' outside of a loop")
		}
	}
}

func (c *Checker) isLvalue(e Expr) bool {
	switch e := e.(type) {
	case *Ident:
		return true
	case *Unary:
		return e.Op == UDeref
	case *Index:
		return true
	}
	return false
}

func (c *Checker) checkExpr(e Expr, s *scope) Type {
	switch e := e.(type) {
	case *IntLit:
		t := Type{Kind: KInt, Width: e.Width, Signed: e.Signed}
		e.Resolved = t
		return t
	case *Ident:
		sym := s.lookup(e.Name)
		if sym == nil {
			c.errorf(e.Sp, "use of undeclared identifier %q", e.Name)
			e.Resolved = TInt
			return TInt
		}
		e.Sym = sym
		e.Resolved = sym.Type
		return sym.Type
	case *Unary:
		xt := c.checkExpr(e.X, s)
		switch e.Op {
		case UAddr:
			if !c.isLvalue(e.X) {
				c.typeErrorf(e.Sp, "cannot take the address of a non-lvalue")
			}
			e.Resolved = PointerTo(xt)
		case UDeref:
			if xt.Kind != KPointer {
				c.typeErrorf(e.Sp, "indirection requires a pointer operand")
				e.Resolved = TInt
			} else {
				e.Resolved = *xt.Elem
			}
		default:
			e.Resolved = xt.Decayed()
		}
		return e.Resolved
	case *Binary:
		lt := c.checkExpr(e.X, s)
		rt := c.checkExpr(e.Y, s)
		e.Resolved = resultType(lt.Decayed(), rt.Decayed())
		return e.Resolved
	case *Assign:
		lt := c.checkExpr(e.Lhs, s)
		c.checkExpr(e.Rhs, s)
		if !c.isLvalue(e.Lhs) {
			c.typeErrorf(e.Sp, "left-hand side of assignment is not an lvalue")
		}
		e.Resolved = lt
		return lt
	case *Call:
		for _, a := range e.Args {
			c.checkExpr(a, s)
		}
		if fn, ok := c.funcs[e.Callee]; ok {
			e.Resolved = fn.ReturnType
			return fn.ReturnType
		}
		// Unresolved user-level calls are assumed to be backend intrinsics
		//; semantic analysis does not know the registry, so
		// it defaults the result type and leaves resolution to lowering/IR
		// verification, which will fail with a codegen-error if the name is
		// truly unknown.
		e.Resolved = TInt
		return TInt
	case *Index:
		xt := c.checkExpr(e.X, s).Decayed()
		c.checkExpr(e.I, s)
		if xt.Kind != KPointer {
			c.typeErrorf(e.Sp, "subscripted value is not an array or pointer")
			e.Resolved = TInt
		} else {
			e.Resolved = *xt.Elem
		}
		return e.Resolved
	case *Cast:
		c.checkExpr(e.X, s)
		e.Resolved = e.To
		return e.To
	case *Cond:
		c.checkExpr(e.C, s)
		tt := c.checkExpr(e.T, s)
		et := c.checkExpr(e.E, s)
		e.Resolved = resultType(tt, et)
		return e.Resolved
	}
	return TInt
}

// resultType implements this frontend's integer-promotion rule: the wider
// type wins; if widths match, the unsigned type wins (standard C usual
// arithmetic conversions, simplified to this target's two relevant axes).
func resultType(a, b Type) Type {
	if a.Kind != KInt || b.Kind != KInt {
		if a.Kind == KPointer {
			return a
		}
		if b.Kind == KPointer {
			return b
		}
		return a
	}
	if a.Width != b.Width {
		if b.Width > a.Width {
			return b
		}
		return a
	}
	signed := a.Signed && b.Signed
	return Type{Kind: KInt, Width: a.Width, Signed: signed}
}
