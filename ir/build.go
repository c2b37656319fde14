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

package ir

import "github.com/kidoz/smdc/common"

// Builder appends instructions to a function's basic blocks one at a time.
// Both frontends' lowering passes (frontend/c/lower.go and
// frontend/rust/lowermir.go) share this type instead of poking at
// BasicBlock.Instrs directly, so that "every register defined before use"
// bookkeeping happens in one place.
type Builder struct {
	Fn  *Function
	cur *BasicBlock
}

// NewBuilder creates a Builder positioned at the given function's entry
// block. The caller must have created at least one block already.
func NewBuilder(fn *Function) *Builder {
	return &Builder{Fn: fn, cur: fn.Blocks[0]}
}

// SetBlock repositions the builder's insertion point.
func (b *Builder) SetBlock(blk *BasicBlock) { b.cur = blk }

// Block returns the builder's current insertion block.
func (b *Builder) Block() *BasicBlock { return b.cur }

// Terminated reports whether the current block already ends in a
// terminator, i.e. further Emit calls would violate the one-terminator
// invariant.
func (b *Builder) Terminated() bool {
	return b.cur.Terminator() != nil
}

func (b *Builder) emit(in Instruction) {
	b.cur.Instrs = append(b.cur.Instrs, in)
}

// Bin emits a binary arithmetic/logic instruction and returns its result
// register.
func (b *Builder) Bin(op Op, lhs, rhs Value, typ Type, span common.Span) Value {
	r := b.Fn.NewReg()
	b.emit(Instruction{Op: op, HasResult: true, Result: r, Type: typ, Args: []Value{lhs, rhs}, Span: span})
	return RegValue(r, typ)
}

// Cmp emits a comparison and returns its boolean (0/1, I32) result.
func (b *Builder) Cmp(pred Pred, lhs, rhs Value, span common.Span) Value {
	r := b.Fn.NewReg()
	b.emit(Instruction{Op: OpCmp, Pred: pred, HasResult: true, Result: r, Type: I32, Args: []Value{lhs, rhs}, Span: span})
	return RegValue(r, I32)
}

// Move emits a register-to-register copy and returns the destination.
func (b *Builder) Move(src Value, typ Type, span common.Span) Value {
	r := b.Fn.NewReg()
	b.emit(Instruction{Op: OpMove, HasResult: true, Result: r, Type: typ, Args: []Value{src}, Span: span})
	return RegValue(r, typ)
}

// Load emits a memory load from the address in addr.
func (b *Builder) Load(addr Value, typ Type, span common.Span) Value {
	r := b.Fn.NewReg()
	b.emit(Instruction{Op: OpLoad, HasResult: true, Result: r, Type: typ, Args: []Value{addr}, Span: span})
	return RegValue(r, typ)
}

// Store emits a memory store of val to the address in addr.
func (b *Builder) Store(addr, val Value, span common.Span) {
	b.emit(Instruction{Op: OpStore, Type: val.Type, Args: []Value{addr, val}, Span: span})
}

// AddrOf emits the address of a module-level symbol.
func (b *Builder) AddrOf(name string, span common.Span) Value {
	r := b.Fn.NewReg()
	b.emit(Instruction{Op: OpAddrOf, HasResult: true, Result: r, Type: Ptr, Callee: name, Span: span})
	return RegValue(r, Ptr)
}

// Call emits a call to callee. If retType is not Void, the call produces a
// result register; otherwise HasResult is false.
func (b *Builder) Call(callee string, args []Value, retType Type, span common.Span) Value {
	in := Instruction{Op: OpCall, Type: retType, Args: args, Callee: callee, Span: span}
	var result Value
	if retType.Kind != TVoid {
		r := b.Fn.NewReg()
		in.HasResult = true
		in.Result = r
		result = RegValue(r, retType)
	}
	b.emit(in)
	return result
}

// Br terminates the current block with an unconditional branch.
func (b *Builder) Br(target *BasicBlock, span common.Span) {
	b.emit(Instruction{Op: OpBr, Target: target.ID, Span: span})
}

// CondBr terminates the current block with a conditional branch.
func (b *Builder) CondBr(cond Value, thenBlk, elseBlk *BasicBlock, span common.Span) {
	b.emit(Instruction{Op: OpCondBr, Args: []Value{cond}, Target: thenBlk.ID, ElseTarget: elseBlk.ID, HasElse: true, Span: span})
}

// Ret terminates the current block with a return. A zero Value with
// Type.Kind == TVoid means "return with no value".
func (b *Builder) Ret(val Value, span common.Span) {
	in := Instruction{Op: OpRet, Span: span}
	if val.Type.Kind != TVoid {
		in.Args = []Value{val}
	}
	b.emit(in)
}
