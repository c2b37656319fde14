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

import (
	"fmt"

	"github.com/kidoz/smdc/common"
	"github.com/kidoz/smdc/ir"
)

// Every C local that can be referenced by name is given a module-level
// global data slot rather than a bare virtual register. This sidesteps
// address-taken analysis entirely — arrays and plain scalars are all
// addressable uniformly — at the cost of never
// promoting a local to a register the way an optimizing compiler would.
// That tradeoff is free since register-allocating locals is out of scope
// for this compiler. Only expression temporaries live in virtual
// registers.
type lowerer struct {
	mod   *ir.Module
	fn    *ir.Function
	b     *ir.Builder
	slots map[*Symbol]string
	ctr   int

	breakTargets    []*ir.BasicBlock
	continueTargets []*ir.BasicBlock
}

// LowerProgram translates a checked Program into an IR module.
func LowerProgram(prog *Program) (*ir.Module, error) {
	mod := ir.NewModule()
	for _, d := range prog.Decls {
		name := declName(d)
		if !mod.Declare(name) {
			return nil, common.NewSpanless(common.KindCodegen, "duplicate top-level symbol %q", name)
		}
	}
	for _, d := range prog.Decls {
		switch d := d.(type) {
		case *VarDecl:
			g, err := lowerGlobal(d)
			if err != nil {
				return nil, err
			}
			mod.AddGlobal(g)
		case *FuncDecl:
			if d.Body == nil {
				continue
			}
			fn, err := lowerFunction(mod, d)
			if err != nil {
				return nil, err
			}
			mod.AddFunction(fn)
		}
	}
	return mod, nil
}

func declName(d Decl) string {
	switch d := d.(type) {
	case *VarDecl:
		return d.Name
	case *FuncDecl:
		return d.Name
	}
	return ""
}

func lowerGlobal(v *VarDecl) (*ir.GlobalData, error) {
	g := &ir.GlobalData{Name: v.Name, Size: v.Type.Size()}
	if v.Init == nil {
		return g, nil
	}
	lit, ok := v.Init.(*IntLit)
	if !ok {
		return nil, common.NewError(common.KindCodegen, v.Span, "global initializer for %q must be a constant integer expression", v.Name)
	}
	g.Init = encodeIntBE(lit.Value, v.Type.Size())
	return g, nil
}

func encodeIntBE(v int64, size int) []byte {
	buf := make([]byte, size)
	for i := 0; i < size; i++ {
		shift := uint((size - 1 - i) * 8)
		buf[i] = byte(v >> shift)
	}
	return buf
}

func irType(t Type) ir.Type {
	switch t.Kind {
	case KPointer, KArray:
		return ir.Ptr
	case KVoid:
		return ir.Void
	default:
		switch {
		case t.Width == 8 && t.Signed:
			return ir.I8
		case t.Width == 8:
			return ir.U8
		case t.Width == 16 && t.Signed:
			return ir.I16
		case t.Width == 16:
			return ir.U16
		case t.Signed:
			return ir.I32
		default:
			return ir.U32
		}
	}
}

func lowerFunction(mod *ir.Module, decl *FuncDecl) (fn *ir.Function, err error) {
	defer func() {
		if r := recover(); r != nil {
			if ce, ok := r.(codegenPanic); ok {
				err = ce.err
				return
			}
			panic(r)
		}
	}()

	fn = ir.NewFunction(decl.Name, nil, irType(decl.ReturnType))
	params := make([]ir.Param, len(decl.Params))
	for i, p := range decl.Params {
		r := fn.NewReg()
		params[i] = ir.Param{Name: p.Name, Reg: r, Type: irType(p.Type)}
	}
	fn.Params = params
	fn.NewBlock("entry")
	b := ir.NewBuilder(fn)

	l := &lowerer{mod: mod, fn: fn, b: b, slots: map[*Symbol]string{}}
	for i, p := range decl.Params {
		slot := l.newSlot(irType(p.Type), p.Name)
		l.slots[p.Sym] = slot
		l.b.Store(l.b.AddrOf(slot, common.NoSpan), ir.RegValue(params[i].Reg, irType(p.Type)), common.NoSpan)
	}

	l.lowerBlock(decl.Body)
	if !l.b.Terminated() {
		if decl.ReturnType.Kind == KVoid {
			l.b.Ret(ir.Value{Type: ir.Void}, common.NoSpan)
		} else {
			l.b.Ret(ir.ConstValue(0, irType(decl.ReturnType)), common.NoSpan)
		}
	}
	return fn, nil
}

// codegenPanic carries a codegen-error out of deeply nested expression
// lowering without threading an error return through every helper,
// centralizing error reporting rather than propagating an error value
// through every recursive call.
type codegenPanic struct{ err error }

func (l *lowerer) fail(span common.Span, format string, args ...interface{}) {
	panic(codegenPanic{common.NewError(common.KindCodegen, span, format, args...)})
}

func (l *lowerer) newSlot(typ ir.Type, hint string) string {
	name := fmt.Sprintf("%s$%s.%d", l.fn.Name, hint, l.ctr)
	l.ctr++
	l.mod.Declare(name)
	sz := typ.Size()
	if sz == 0 {
		sz = 4
	}
	l.mod.AddGlobal(&ir.GlobalData{Name: name, Size: sz})
	return name
}

func (l *lowerer) newSlotSized(size int, hint string) string {
	name := fmt.Sprintf("%s$%s.%d", l.fn.Name, hint, l.ctr)
	l.ctr++
	l.mod.Declare(name)
	l.mod.AddGlobal(&ir.GlobalData{Name: name, Size: size})
	return name
}

func (l *lowerer) lowerBlock(blk *BlockStmt) {
	for _, st := range blk.Stmts {
		if l.b.Terminated() {
			return
		}
		l.lowerStmt(st)
	}
}

func (l *lowerer) lowerStmt(st Stmt) {
	switch st := st.(type) {
	case *BlockStmt:
		l.lowerBlock(st)
	case *DeclStmt:
		size := st.Decl.Type.Size()
		slot := l.newSlotSized(size, st.Decl.Name)
		l.slots[st.Decl.Sym] = slot
		if st.Decl.Init != nil {
			val := l.lowerExpr(st.Decl.Init)
			l.b.Store(l.b.AddrOf(slot, st.Span), val, st.Span)
		}
	case *ExprStmt:
		l.lowerExprStmt(st.X)
	case *IfStmt:
		l.lowerIf(st)
	case *WhileStmt:
		l.lowerWhile(st)
	case *DoWhileStmt:
		l.lowerDoWhile(st)
	case *ForStmt:
		l.lowerFor(st)
	case *ReturnStmt:
		if st.X == nil {
			l.b.Ret(ir.Value{Type: ir.Void}, st.Span)
			return
		}
		val := l.lowerExpr(st.X)
		l.b.Ret(val, st.Span)
	case *BreakStmt:
		l.b.Br(l.breakTargets[len(l.breakTargets)-1], st.Span)
	case *ContinueStmt:
		l.b.Br(l.continueTargets[len(l.continueTargets)-1], st.Span)
	}
}

// lowerExprStmt lowers an expression used for its side effects only; a bare
// call in this position targets a void-returning callee (most intrinsics),
// so no result register is requested.
func (l *lowerer) lowerExprStmt(e Expr) {
	if call, ok := e.(*Call); ok {
		args := make([]ir.Value, len(call.Args))
		for i, a := range call.Args {
			args[i] = l.lowerExpr(a)
		}
		l.b.Call(call.Callee, args, ir.Void, call.Sp)
		return
	}
	l.lowerExpr(e)
}

func (l *lowerer) truthy(v ir.Value, span common.Span) ir.Value {
	return l.b.Cmp(ir.PredNE, v, ir.ConstValue(0, v.Type), span)
}

func isConstNonZero(e Expr) bool {
	lit, ok := e.(*IntLit)
	return ok && lit.Value != 0
}

func (l *lowerer) lowerIf(st *IfStmt) {
	thenBlk := l.fn.NewBlock("if.then")
	var elseBlk *ir.BasicBlock
	mergeBlk := l.fn.NewBlock("if.end")

	cond := l.lowerExpr(st.Cond)
	truth := l.truthy(cond, st.Span)
	if st.Else != nil {
		elseBlk = l.fn.NewBlock("if.else")
		l.b.CondBr(truth, thenBlk, elseBlk, st.Span)
	} else {
		l.b.CondBr(truth, thenBlk, mergeBlk, st.Span)
	}

	l.b.SetBlock(thenBlk)
	l.lowerStmt(st.Then)
	if !l.b.Terminated() {
		l.b.Br(mergeBlk, st.Span)
	}

	if st.Else != nil {
		l.b.SetBlock(elseBlk)
		l.lowerStmt(st.Else)
		if !l.b.Terminated() {
			l.b.Br(mergeBlk, st.Span)
		}
	}

	l.b.SetBlock(mergeBlk)
}

func (l *lowerer) lowerWhile(st *WhileStmt) {
	if isConstNonZero(st.Cond) {
		l.lowerInfiniteLoop(st.Body, st.Span)
		return
	}
	header := l.fn.NewBlock("while.cond")
	body := l.fn.NewBlock("while.body")
	end := l.fn.NewBlock("while.end")

	l.b.Br(header, st.Span)
	l.b.SetBlock(header)
	cond := l.lowerExpr(st.Cond)
	l.b.CondBr(l.truthy(cond, st.Span), body, end, st.Span)

	l.b.SetBlock(body)
	l.pushLoop(end, header)
	l.lowerStmt(st.Body)
	l.popLoop()
	if !l.b.Terminated() {
		l.b.Br(header, st.Span)
	}
	l.b.SetBlock(end)
}

// lowerInfiniteLoop builds a single self-looping block for a `while` whose
// condition is a nonzero integer literal (`while(1)`); `for(;;)` does not
// come here and keeps lowerFor's separate blocks. It produces an unconditional branch
// back to the loop header rather than a compare-and-branch — this is what
// lets the M68K backend emit a bare `bra.s` for the canonical `while(1){}`
// scenario instead of a redundant `cmp`+`bne`.
func (l *lowerer) lowerInfiniteLoop(body Stmt, span common.Span) {
	header := l.fn.NewBlock("loop.body")
	end := l.fn.NewBlock("loop.end")
	l.b.Br(header, span)
	l.b.SetBlock(header)
	l.pushLoop(end, header)
	l.lowerStmt(body)
	l.popLoop()
	if !l.b.Terminated() {
		l.b.Br(header, span)
	}
	l.b.SetBlock(end)
}

func (l *lowerer) lowerDoWhile(st *DoWhileStmt) {
	body := l.fn.NewBlock("do.body")
	cond := l.fn.NewBlock("do.cond")
	end := l.fn.NewBlock("do.end")

	l.b.Br(body, st.Span)
	l.b.SetBlock(body)
	l.pushLoop(end, cond)
	l.lowerStmt(st.Body)
	l.popLoop()
	if !l.b.Terminated() {
		l.b.Br(cond, st.Span)
	}

	l.b.SetBlock(cond)
	cv := l.lowerExpr(st.Cond)
	l.b.CondBr(l.truthy(cv, st.Span), body, end, st.Span)

	l.b.SetBlock(end)
}

func (l *lowerer) lowerFor(st *ForStmt) {
	if st.Init != nil {
		l.lowerStmt(st.Init)
	}
	header := l.fn.NewBlock("for.cond")
	body := l.fn.NewBlock("for.body")
	post := l.fn.NewBlock("for.post")
	end := l.fn.NewBlock("for.end")

	l.b.Br(header, st.Span)
	l.b.SetBlock(header)
	if st.Cond == nil || isConstNonZero(st.Cond) {
		l.b.Br(body, st.Span)
	} else {
		cv := l.lowerExpr(st.Cond)
		l.b.CondBr(l.truthy(cv, st.Span), body, end, st.Span)
	}

	l.b.SetBlock(body)
	l.pushLoop(end, post)
	l.lowerStmt(st.Body)
	l.popLoop()
	if !l.b.Terminated() {
		l.b.Br(post, st.Span)
	}

	l.b.SetBlock(post)
	if st.Post != nil {
		l.lowerExpr(st.Post)
	}
	if !l.b.Terminated() {
		l.b.Br(header, st.Span)
	}

	l.b.SetBlock(end)
}

func (l *lowerer) pushLoop(brk, cont *ir.BasicBlock) {
	l.breakTargets = append(l.breakTargets, brk)
	l.continueTargets = append(l.continueTargets, cont)
}

func (l *lowerer) popLoop() {
	l.breakTargets = l.breakTargets[:len(l.breakTargets)-1]
	l.continueTargets = l.continueTargets[:len(l.continueTargets)-1]
}

// lowerAddr computes the address of an lvalue expression as a Ptr-typed IR
// value.
func (l *lowerer) lowerAddr(e Expr) ir.Value {
	switch e := e.(type) {
	case *Ident:
		slot, ok := l.slots[e.Sym]
		if !ok {
			slot = e.Sym.IRName // global, declared under its source name
		}
		return l.b.AddrOf(slot, e.Sp)
	case *Unary:
		if e.Op != UDeref {
			l.fail(e.Sp, "expression is not an lvalue")
		}
		return l.lowerExpr(e.X)
	case *Index:
		base := l.lowerExpr(e.X)
		idx := l.lowerExpr(e.I)
		elem := e.X.Type().Elem
		if elem == nil {
			l.fail(e.Sp, "indexing a non-pointer, non-array value")
		}
		return l.pointerAdd(base, idx, elem.Size(), e.Sp)
	default:
		l.fail(e.span(), "expression is not an lvalue")
		return ir.Value{}
	}
}

func (l *lowerer) pointerAdd(ptr, index ir.Value, elemSize int, span common.Span) ir.Value {
	scaled := index
	if elemSize != 1 {
		scaled = l.b.Bin(ir.OpMul, index, ir.ConstValue(int64(elemSize), ir.I32), ir.I32, span)
	}
	return l.b.Bin(ir.OpAdd, ptr, scaled, ir.Ptr, span)
}

func (l *lowerer) lowerExpr(e Expr) ir.Value {
	switch e := e.(type) {
	case *IntLit:
		return ir.ConstValue(e.Value, irType(e.Resolved))
	case *Ident:
		if e.Sym.Type.Kind == KArray {
			slot, ok := l.slots[e.Sym]
			if !ok {
				slot = e.Sym.IRName
			}
			return l.b.AddrOf(slot, e.Sp)
		}
		return l.b.Load(l.lowerAddr(e), irType(e.Sym.Type), e.Sp)
	case *Unary:
		return l.lowerUnary(e)
	case *Binary:
		return l.lowerBinary(e)
	case *Assign:
		return l.lowerAssign(e)
	case *Call:
		args := make([]ir.Value, len(e.Args))
		for i, a := range e.Args {
			args[i] = l.lowerExpr(a)
		}
		return l.b.Call(e.Callee, args, irType(e.Resolved), e.Sp)
	case *Index:
		elem := e.X.Type().Elem
		if elem.Kind == KArray {
			return l.lowerAddr(e)
		}
		return l.b.Load(l.lowerAddr(e), irType(*elem), e.Sp)
	case *Cast:
		v := l.lowerExpr(e.X)
		return l.b.Move(v, irType(e.To), e.Sp)
	case *Cond:
		return l.lowerTernary(e)
	}
	l.fail(e.span(), "unsupported expression")
	return ir.Value{}
}

func (l *lowerer) lowerUnary(e *Unary) ir.Value {
	switch e.Op {
	case UAddr:
		return l.lowerAddr(e.X)
	case UDeref:
		elem := e.X.Type().Elem
		if elem == nil {
			l.fail(e.Sp, "indirection on a non-pointer value")
		}
		ptr := l.lowerExpr(e.X)
		return l.b.Load(ptr, irType(*elem), e.Sp)
	case UNeg:
		v := l.lowerExpr(e.X)
		return l.b.Bin(ir.OpSub, ir.ConstValue(0, v.Type), v, v.Type, e.Sp)
	case UNot:
		v := l.lowerExpr(e.X)
		eq := l.b.Cmp(ir.PredEQ, v, ir.ConstValue(0, v.Type), e.Sp)
		return eq
	case UBitNot:
		v := l.lowerExpr(e.X)
		return l.b.Bin(ir.OpXor, v, ir.ConstValue(-1, v.Type), v.Type, e.Sp)
	case UPreInc, UPreDec:
		addr := l.lowerAddr(e.X)
		cur := l.b.Load(addr, irType(e.X.Type()), e.Sp)
		op := ir.OpAdd
		if e.Op == UPreDec {
			op = ir.OpSub
		}
		nv := l.b.Bin(op, cur, ir.ConstValue(1, cur.Type), cur.Type, e.Sp)
		l.b.Store(addr, nv, e.Sp)
		return nv
	}
	l.fail(e.Sp, "unsupported unary operator")
	return ir.Value{}
}

var binOpMap = map[BinOp]ir.Op{
	BAdd: ir.OpAdd, BSub: ir.OpSub, BMul: ir.OpMul,
	BAnd: ir.OpAnd, BOr: ir.OpOr, BXor: ir.OpXor,
	BShl: ir.OpShl, BShr: ir.OpAShr,
}

var cmpPredMap = map[BinOp]ir.Pred{
	BEQ: ir.PredEQ, BNE: ir.PredNE,
	BLT: ir.PredSLT, BLE: ir.PredSLE, BGT: ir.PredSGT, BGE: ir.PredSGE,
}

var cmpPredMapUnsigned = map[BinOp]ir.Pred{
	BEQ: ir.PredEQ, BNE: ir.PredNE,
	BLT: ir.PredULT, BLE: ir.PredULE, BGT: ir.PredUGT, BGE: ir.PredUGE,
}

func (l *lowerer) lowerBinary(e *Binary) ir.Value {
	switch e.Op {
	case BLAnd, BLOr:
		return l.lowerLogical(e)
	}

	xt, yt := e.X.Type(), e.Y.Type()
	lhs := l.lowerExpr(e.X)
	rhs := l.lowerExpr(e.Y)

	// Pointer arithmetic: scale the integer operand by the pointee size.
	if (e.Op == BAdd || e.Op == BSub) && xt.Kind == KPointer && yt.Kind != KPointer {
		return l.pointerAdd(lhs, rhs, xt.Elem.Size(), e.Sp)
	}
	if e.Op == BAdd && yt.Kind == KPointer && xt.Kind != KPointer {
		return l.pointerAdd(rhs, lhs, yt.Elem.Size(), e.Sp)
	}

	resType := irType(e.Resolved)
	if op, ok := binOpMap[e.Op]; ok {
		return l.b.Bin(op, lhs, rhs, resType, e.Sp)
	}
	if e.Op == BDiv {
		op := ir.OpSDiv
		if !e.Resolved.Signed {
			op = ir.OpUDiv
		}
		return l.b.Bin(op, lhs, rhs, resType, e.Sp)
	}
	if e.Op == BMod {
		if !e.Resolved.Signed {
			return l.b.Bin(ir.OpURem, lhs, rhs, resType, e.Sp)
		}
		// The M68K selector has no signed-remainder opcode, so lower
		// a % b to a - (a/b)*b here, matching the identity the target's
		// DIVS instruction already exposes for the quotient.
		q := l.b.Bin(ir.OpSDiv, lhs, rhs, resType, e.Sp)
		qb := l.b.Bin(ir.OpMul, q, rhs, resType, e.Sp)
		return l.b.Bin(ir.OpSub, lhs, qb, resType, e.Sp)
	}
	preds := cmpPredMap
	widest := xt
	if yt.Width > xt.Width {
		widest = yt
	}
	if !widest.Signed {
		preds = cmpPredMapUnsigned
	}
	if pred, ok := preds[e.Op]; ok {
		return l.b.Cmp(pred, lhs, rhs, e.Sp)
	}
	l.fail(e.Sp, "unsupported binary operator")
	return ir.Value{}
}

func (l *lowerer) lowerLogical(e *Binary) ir.Value {
	slot := l.newSlotSized(4, "logical")
	addr := l.b.AddrOf(slot, e.Sp)
	rhsBlk := l.fn.NewBlock("logical.rhs")
	shortBlk := l.fn.NewBlock("logical.short")
	endBlk := l.fn.NewBlock("logical.end")

	lv := l.lowerExpr(e.X)
	lt := l.truthy(lv, e.Sp)
	if e.Op == BLAnd {
		l.b.CondBr(lt, rhsBlk, shortBlk, e.Sp)
	} else {
		l.b.CondBr(lt, shortBlk, rhsBlk, e.Sp)
	}

	l.b.SetBlock(shortBlk)
	shortVal := int64(0)
	if e.Op == BLOr {
		shortVal = 1
	}
	l.b.Store(addr, ir.ConstValue(shortVal, ir.I32), e.Sp)
	l.b.Br(endBlk, e.Sp)

	l.b.SetBlock(rhsBlk)
	rv := l.lowerExpr(e.Y)
	rt := l.truthy(rv, e.Sp)
	l.b.Store(addr, rt, e.Sp)
	l.b.Br(endBlk, e.Sp)

	l.b.SetBlock(endBlk)
	return l.b.Load(addr, ir.I32, e.Sp)
}

func (l *lowerer) lowerTernary(e *Cond) ir.Value {
	resType := irType(e.Resolved)
	slot := l.newSlot(resType, "ternary")
	addr := l.b.AddrOf(slot, e.Sp)
	thenBlk := l.fn.NewBlock("cond.then")
	elseBlk := l.fn.NewBlock("cond.else")
	endBlk := l.fn.NewBlock("cond.end")

	cv := l.lowerExpr(e.C)
	l.b.CondBr(l.truthy(cv, e.Sp), thenBlk, elseBlk, e.Sp)

	l.b.SetBlock(thenBlk)
	tv := l.lowerExpr(e.T)
	l.b.Store(addr, tv, e.Sp)
	l.b.Br(endBlk, e.Sp)

	l.b.SetBlock(elseBlk)
	ev := l.lowerExpr(e.E)
	l.b.Store(addr, ev, e.Sp)
	l.b.Br(endBlk, e.Sp)

	l.b.SetBlock(endBlk)
	return l.b.Load(addr, resType, e.Sp)
}

func (l *lowerer) lowerAssign(e *Assign) ir.Value {
	addr := l.lowerAddr(e.Lhs)
	lhsType := irType(e.Lhs.Type())
	if !e.Compound {
		rv := l.lowerExpr(e.Rhs)
		l.b.Store(addr, rv, e.Sp)
		return rv
	}
	cur := l.b.Load(addr, lhsType, e.Sp)
	rv := l.lowerExpr(e.Rhs)
	op, ok := binOpMap[e.Op]
	if !ok {
		l.fail(e.Sp, "unsupported compound assignment operator")
	}
	nv := l.b.Bin(op, cur, rv, lhsType, e.Sp)
	l.b.Store(addr, nv, e.Sp)
	return nv
}
