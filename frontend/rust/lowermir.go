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

import (
	"fmt"

	"github.com/kidoz/smdc/common"
	"github.com/kidoz/smdc/ir"
)

// Translating MIR to the shared IR gives every MIRLocal a module-level
// global data slot, exactly as frontend/c/lower.go does for C locals. A
// MIRLocal read is an ir.Load from its slot; a MIRStmt assignment is an
// ir.Store to it. MIR's Switch terminator expands into a linear chain of
// ir.OpCmp/OpCondBr pairs. Rust's match is the only source of a Switch; the
// C-family frontend has no switch statement.
type mirTranslator struct {
	mod      *ir.Module
	fn       *ir.Function
	b        *ir.Builder
	mirFn    *MIRFunction
	slots    []string          // indexed by LocalID
	blocks   map[MIRBlockID]*ir.BasicBlock
	ctr      int
}

func irType(t Type) ir.Type {
	switch {
	case t.IsPointer():
		return ir.Ptr
	case t.IsUnit:
		return ir.Void
	case t.IsBool:
		return ir.U8
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

// LowerFile translates every function and static in a checked File into an
// IR module.
func LowerFile(f *File) (*ir.Module, error) {
	mod := ir.NewModule()
	for _, it := range f.Items {
		name := itemName(it)
		if name != "" && !mod.Declare(name) {
			return nil, common.NewSpanless(common.KindCodegen, "duplicate top-level symbol %q", name)
		}
	}
	for _, it := range f.Items {
		switch it := it.(type) {
		case *StaticDecl:
			g, err := lowerStatic(it)
			if err != nil {
				return nil, err
			}
			mod.AddGlobal(g)
		case *FnDecl:
			mirFn := BuildFunctionMIR(it)
			fn, err := lowerMIRFunction(mod, mirFn)
			if err != nil {
				return nil, err
			}
			mod.AddFunction(fn)
		}
	}
	return mod, nil
}

func itemName(it Item) string {
	switch it := it.(type) {
	case *StaticDecl:
		return it.Name
	case *FnDecl:
		return it.Name
	}
	return ""
}

func lowerStatic(sd *StaticDecl) (*ir.GlobalData, error) {
	g := &ir.GlobalData{Name: sd.Name, Size: sd.Type.Size()}
	if sd.Init == nil {
		return g, nil
	}
	lit, ok := sd.Init.(*IntLit)
	if !ok {
		if bl, ok := sd.Init.(*BoolLit); ok {
			v := int64(0)
			if bl.Value {
				v = 1
			}
			g.Init = encodeIntBE(v, g.Size)
			return g, nil
		}
		return nil, common.NewError(common.KindCodegen, sd.Span, "static initializer for %q must be a constant", sd.Name)
	}
	g.Init = encodeIntBE(lit.Value, g.Size)
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

// translatePanic carries a codegen-error out of deeply nested translation
// helpers, mirroring frontend/c/lower.go's codegenPanic.
type translatePanic struct{ err error }

func (t *mirTranslator) fail(span common.Span, format string, args ...interface{}) {
	panic(translatePanic{common.NewError(common.KindCodegen, span, format, args...)})
}

func lowerMIRFunction(mod *ir.Module, mirFn *MIRFunction) (fn *ir.Function, err error) {
	defer func() {
		if r := recover(); r != nil {
			if tp, ok := r.(translatePanic); ok {
				err = tp.err
				return
			}
			panic(r)
		}
	}()

	fn = ir.NewFunction(mirFn.Name, nil, irType(mirFn.RetType))
	fn.NewBlock("entry")
	b := ir.NewBuilder(fn)

	t := &mirTranslator{mod: mod, fn: fn, b: b, mirFn: mirFn, blocks: map[MIRBlockID]*ir.BasicBlock{}}
	t.slots = make([]string, len(mirFn.Locals))
	for _, l := range mirFn.Locals {
		t.slots[l.ID] = t.newSlot(l.Type, l.Name)
	}

	params := make([]ir.Param, len(mirFn.Params))
	for i, localID := range mirFn.Params {
		local := mirFn.Locals[localID]
		r := fn.NewReg()
		params[i] = ir.Param{Name: local.Name, Reg: r, Type: irType(local.Type)}
	}
	fn.Params = params
	for i, localID := range mirFn.Params {
		local := mirFn.Locals[localID]
		t.b.Store(t.b.AddrOf(t.slots[localID], common.NoSpan), ir.RegValue(params[i].Reg, irType(local.Type)), common.NoSpan)
	}

	// Pre-create one ir.BasicBlock per MIR block so forward branch targets
	// resolve, then translate each in order (block 0 is already "entry").
	for i, blk := range mirFn.Blocks {
		if i == 0 {
			t.blocks[blk.ID] = fn.Blocks[0]
			continue
		}
		t.blocks[blk.ID] = fn.NewBlock(fmt.Sprintf("bb%d", blk.ID))
	}
	for _, blk := range mirFn.Blocks {
		t.b.SetBlock(t.blocks[blk.ID])
		t.translateBlock(blk)
	}

	return fn, nil
}

func (t *mirTranslator) newSlot(typ Type, hint string) string {
	name := fmt.Sprintf("%s$%s.%d", t.fn.Name, hint, t.ctr)
	t.ctr++
	t.mod.Declare(name)
	sz := typ.Size()
	if sz == 0 {
		sz = 4
	}
	t.mod.AddGlobal(&ir.GlobalData{Name: name, Size: sz})
	return name
}

func (t *mirTranslator) slotAddr(id LocalID, span common.Span) ir.Value {
	return t.b.AddrOf(t.slots[id], span)
}

func (t *mirTranslator) translateBlock(blk *MIRBlock) {
	for _, st := range blk.Stmts {
		t.translateStmt(st)
	}
	t.translateTerm(blk.Term)
}

func (t *mirTranslator) translateStmt(st MIRStmt) {
	switch st.Kind {
	case MIRAssign:
		v := t.translateRvalue(st.RV, st.Span)
		t.b.Store(t.slotAddr(st.Dest, st.Span), v, st.Span)
	case MIRDerefStore:
		addr := t.translateOperand(st.Addr, st.Span)
		val := t.translateOperand(st.Val, st.Span)
		t.b.Store(addr, val, st.Span)
	case MIREval:
		t.translateRvalue(st.RV, st.Span)
	case MIRGlobalStore:
		val := t.translateOperand(st.Val, st.Span)
		t.b.Store(t.b.AddrOf(st.Global, st.Span), val, st.Span)
	}
}

func (t *mirTranslator) translateOperand(op Operand, span common.Span) ir.Value {
	switch op.Kind {
	case OperandConst:
		return ir.ConstValue(op.Const, irType(op.Type))
	case OperandCopy:
		return t.b.Load(t.slotAddr(op.Local, span), irType(op.Type), span)
	}
	return ir.Value{}
}

func (t *mirTranslator) translateRvalue(rv Rvalue, span common.Span) ir.Value {
	resType := irType(rv.Type)
	switch rv.Kind {
	case RvUse:
		return t.translateOperand(rv.X, span)
	case RvBinOp:
		x := t.translateOperand(rv.X, span)
		y := t.translateOperand(rv.Y, span)
		return t.b.Bin(rv.BinOp, x, y, resType, span)
	case RvCompare:
		x := t.translateOperand(rv.X, span)
		y := t.translateOperand(rv.Y, span)
		return t.b.Cmp(rv.Pred, x, y, span)
	case RvNeg:
		x := t.translateOperand(rv.X, span)
		return t.b.Bin(ir.OpSub, ir.ConstValue(0, x.Type), x, x.Type, span)
	case RvNot:
		x := t.translateOperand(rv.X, span)
		return t.b.Cmp(ir.PredEQ, x, ir.ConstValue(0, x.Type), span)
	case RvRef:
		return t.slotAddr(rv.RefOf, span)
	case RvLoad:
		ptr := t.translateOperand(rv.X, span)
		return t.b.Load(ptr, resType, span)
	case RvGlobalLoad:
		return t.b.Load(t.b.AddrOf(rv.Global, span), resType, span)
	case RvGlobalRef:
		return t.b.AddrOf(rv.Global, span)
	case RvCall:
		args := make([]ir.Value, len(rv.Args))
		for i, a := range rv.Args {
			args[i] = t.translateOperand(a, span)
		}
		return t.b.Call(rv.Callee, args, resType, span)
	}
	t.fail(span, "unsupported MIR rvalue")
	return ir.Value{}
}

func (t *mirTranslator) translateTerm(term Terminator) {
	switch term.Kind {
	case TermReturn:
		if term.HasValue {
			t.b.Ret(t.translateOperand(term.Value, term.Span), term.Span)
		} else {
			t.b.Ret(ir.Value{Type: ir.Void}, term.Span)
		}
	case TermBranch:
		t.b.Br(t.blocks[term.Target], term.Span)
	case TermUnreachable:
		// No runtime trap instruction exists in this target's ISA; a
		// self-branch keeps the block's terminator invariant satisfied
		// without falling into whatever bytes follow in the ROM image.
		t.b.Br(t.b.Block(), term.Span)
	case TermSwitch:
		t.translateSwitch(term)
	}
}

// translateSwitch expands a Switch terminator into a linear chain of
// compare-and-branch blocks, one per case, falling through to Default when
// none match.
func (t *mirTranslator) translateSwitch(term Terminator) {
	sel := t.translateOperand(term.Selector, term.Span)
	for _, c := range term.Cases {
		eq := t.b.Cmp(ir.PredEQ, sel, ir.ConstValue(c.Value, sel.Type), term.Span)
		thenBlk := t.blocks[c.Target]
		nextBlk := t.fn.NewBlock("switch.next")
		t.b.CondBr(eq, thenBlk, nextBlk, term.Span)
		t.b.SetBlock(nextBlk)
	}
	t.b.Br(t.blocks[term.Default], term.Span)
}
