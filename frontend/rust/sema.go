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

package rust

import "github.com/kidoz/smdc/common"

// SymKind distinguishes what an Ident resolves to.
type SymKind int

// Symbol kinds.
const (
	SymVar SymKind = iota
	SymParam
	SymFunc
)

// Symbol is what sema resolves a name to.
type Symbol struct {
	Name     string
	Kind     SymKind
	Type     Type
	Mut      bool
	IsGlobal bool
}

type scope struct {
	parent *scope
	names  map[string]*Symbol
}

func newScope(parent *scope) *scope { return &scope{parent: parent, names: map[string]*Symbol{}} }

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

// Checker runs name resolution and type checking over a File, annotating
// every Ident/Expr in place, mirroring the C frontend's Checker.
type Checker struct {
	errs      common.ErrorList
	global    *scope
	funcs     map[string]*FnDecl
	loopDepth int
	curRet    Type
}

// NewChecker creates a Checker with an empty global scope.
func NewChecker() *Checker {
	return &Checker{global: newScope(nil), funcs: map[string]*FnDecl{}}
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

// Check resolves names and types across the whole file. Functions may be
// called before their declaration site appears, so a first pass registers
// every signature.
func (c *Checker) Check(f *File) {
	for _, it := range f.Items {
		if fn, ok := it.(*FnDecl); ok {
			if c.global.lookup(fn.Name) != nil {
				c.errorf(fn.Span, "redefinition of %q", fn.Name)
				continue
			}
			c.global.declare(&Symbol{Name: fn.Name, Kind: SymFunc, Type: fn.RetType})
			c.funcs[fn.Name] = fn
		}
	}
	for _, it := range f.Items {
		switch it := it.(type) {
		case *StaticDecl:
			c.checkStaticDecl(it)
		case *FnDecl:
			c.checkFn(it)
		}
	}
}

func (c *Checker) checkStaticDecl(sd *StaticDecl) {
	if c.global.lookup(sd.Name) != nil {
		c.errorf(sd.Span, "redefinition of %q", sd.Name)
		return
	}
	sym := &Symbol{Name: sd.Name, Kind: SymVar, Type: sd.Type, IsGlobal: true}
	c.global.declare(sym)
	if sd.Init != nil {
		c.checkExpr(sd.Init, c.global)
	}
}

func (c *Checker) checkFn(fn *FnDecl) {
	s := newScope(c.global)
	for i := range fn.Params {
		p := &fn.Params[i]
		sym := &Symbol{Name: p.Name, Kind: SymParam, Type: p.Type}
		if !s.declare(sym) {
			c.errorf(fn.Span, "duplicate parameter %q", p.Name)
		}
		p.Sym = sym
	}
	c.curRet = fn.RetType
	c.checkBlockAsStmt(fn.Body, s, fn.RetType)
}

// checkBlockAsStmt checks a block whose value (if any, via its tail
// expression) must be compatible with want. Only checkFn calls it, for
// function bodies; nested blocks are checked by checkBlock.
func (c *Checker) checkBlockAsStmt(b *Block, parent *scope, want Type) {
	s := newScope(parent)
	for i, st := range b.Stmts {
		c.checkStmt(st, s)
		if es, ok := st.(*ExprStmt); ok && es.NoSemicolon && i == len(b.Stmts)-1 {
			t := es.X.Type()
			if want.Size() > 0 && t.Size() > 0 && !typesCompatible(t, want) {
				c.typeErrorf(es.Span, "block tail expression has type %v, function returns %v", t, want)
			}
		}
	}
}

func typesCompatible(a, b Type) bool {
	if a.IsPointer() != b.IsPointer() {
		return false
	}
	if a.IsBool != b.IsBool {
		return false
	}
	return true
}

func (c *Checker) checkBlock(b *Block, parent *scope) Type {
	s := newScope(parent)
	result := Unit
	for i, st := range b.Stmts {
		c.checkStmt(st, s)
		if es, ok := st.(*ExprStmt); ok && es.NoSemicolon && i == len(b.Stmts)-1 {
			result = es.X.Type()
		}
	}
	return result
}

func (c *Checker) checkStmt(st Stmt, s *scope) {
	switch st := st.(type) {
	case *LetStmt:
		var t Type
		if st.Init != nil {
			t = c.checkExpr(st.Init, s)
		}
		if st.Type.Size() > 0 || st.Type.IsBool || st.Type.IsUnit {
			t = st.Type
		}
		sym := &Symbol{Name: st.Name, Kind: SymVar, Type: t, Mut: st.Mut}
		if !s.declare(sym) {
			c.errorf(st.Span, "redefinition of %q", st.Name)
		}
		st.Sym = sym
	case *ExprStmt:
		c.checkExpr(st.X, s)
	case *ReturnStmt:
		if st.X != nil {
			c.checkExpr(st.X, s)
		} else if c.curRet.Size() > 0 {
			c.typeErrorf(st.Span, "function must return a value")
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

func (c *Checker) isPlace(e Expr) bool {
	switch e := e.(type) {
	case *Ident:
		return true
	case *Unary:
		return e.Op == UDeref
	}
	return false
}

func (c *Checker) checkExpr(e Expr, s *scope) Type {
	switch e := e.(type) {
	case *IntLit:
		t := Type{Width: e.Width, Signed: e.Signed}
		setType(e, t)
		return t
	case *BoolLit:
		setType(e, Bool)
		return Bool
	case *Ident:
		sym := s.lookup(e.Name)
		if sym == nil {
			c.errorf(e.Sp, "cannot find value %q in this scope", e.Name)
			setType(e, I32)
			return I32
		}
		e.Sym = sym
		setType(e, sym.Type)
		return sym.Type
	case *Unary:
		xt := c.checkExpr(e.X, s)
		switch e.Op {
		case URef, URefMut:
			if !c.isPlace(e.X) {
				c.typeErrorf(e.Sp, "cannot take a reference to a non-place expression")
			}
			setType(e, PointerTo(xt))
		case UDeref:
			if !xt.IsPointer() {
				c.typeErrorf(e.Sp, "type %v cannot be dereferenced", xt)
				setType(e, I32)
			} else {
				setType(e, *xt.Ptr)
			}
		default:
			setType(e, xt)
		}
		return e.Type()
	case *Binary:
		lt := c.checkExpr(e.X, s)
		rt := c.checkExpr(e.Y, s)
		switch e.Op {
		case BEQ, BNE, BLT, BLE, BGT, BGE, BLAnd, BLOr:
			setType(e, Bool)
		default:
			setType(e, widerOf(lt, rt))
		}
		return e.Type()
	case *Assign:
		lt := c.checkExpr(e.Lhs, s)
		c.checkExpr(e.Rhs, s)
		if !c.isPlace(e.Lhs) {
			c.typeErrorf(e.Sp, "invalid left-hand side of assignment")
		}
		setType(e, lt)
		return lt
	case *Call:
		for _, a := range e.Args {
			c.checkExpr(a, s)
		}
		if fn, ok := c.funcs[e.Callee]; ok {
			setType(e, fn.RetType)
			return fn.RetType
		}
		setType(e, I32)
		return I32
	case *IfExpr:
		c.checkExpr(e.Cond, s)
		tt := c.checkBlock(e.Then, s)
		et := Unit
		if e.Else != nil {
			et = c.checkBlock(e.Else, s)
		}
		if e.Else != nil && typesCompatible(tt, et) {
			setType(e, tt)
		} else {
			setType(e, Unit)
		}
		return e.Type()
	case *WhileExpr:
		c.checkExpr(e.Cond, s)
		c.loopDepth++
		c.checkBlock(e.Body, s)
		c.loopDepth--
		setType(e, Unit)
		return Unit
	case *LoopExpr:
		c.loopDepth++
		bt := c.checkBlock(e.Body, s)
		c.loopDepth--
		setType(e, bt)
		return e.Type()
	case *BlockExpr:
		t := c.checkBlock(e.Block, s)
		setType(e, t)
		return t
	case *MatchExpr:
		c.checkExpr(e.Scrutinee, s)
		var result Type
		for i := range e.Arms {
			arm := &e.Arms[i]
			inner := newScope(s)
			if arm.Pat.Kind == PatBinding {
				inner.declare(&Symbol{Name: arm.Pat.Name, Kind: SymVar, Type: e.Scrutinee.Type()})
			}
			t := c.checkExpr(arm.Body, inner)
			if i == 0 {
				result = t
			}
		}
		setType(e, result)
		return result
	}
	return I32
}

func widerOf(a, b Type) Type {
	if a.IsPointer() {
		return a
	}
	if b.IsPointer() {
		return b
	}
	if b.Width > a.Width {
		return b
	}
	return a
}

// setType stores the resolved type on any Expr built from ExprBase, by
// address so the mutation is visible through the Expr interface value.
func setType(e Expr, t Type) {
	switch e := e.(type) {
	case *IntLit:
		e.Resolved = t
	case *BoolLit:
		e.Resolved = t
	case *Ident:
		e.Resolved = t
	case *Unary:
		e.Resolved = t
	case *Binary:
		e.Resolved = t
	case *Assign:
		e.Resolved = t
	case *Call:
		e.Resolved = t
	case *IfExpr:
		e.Resolved = t
	case *WhileExpr:
		e.Resolved = t
	case *LoopExpr:
		e.Resolved = t
	case *BlockExpr:
		e.Resolved = t
	case *MatchExpr:
		e.Resolved = t
	}
}
