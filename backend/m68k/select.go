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

package m68k

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/kidoz/smdc/ir"
)

// scratchData and scratchAddr are the two register banks' reserved
// scratch registers.
const (
	scratchData = Reg(0) // d0
	scratchData2 = Reg(1) // d1
	scratchAddr = Reg(8) // a0
)

// predToCond maps an IR comparison predicate to its M68K branch condition.
var predToCond = map[ir.Pred]Cond{
	ir.PredEQ:  CondEQ,
	ir.PredNE:  CondNE,
	ir.PredSLT: CondLT,
	ir.PredSLE: CondLE,
	ir.PredSGT: CondGT,
	ir.PredSGE: CondGE,
	ir.PredULT: CondCS,
	ir.PredULE: CondLS,
	ir.PredUGT: CondHI,
	ir.PredUGE: CondCC,
}

var binOpMnemonic = map[ir.Op]Mnemonic{
	ir.OpAdd: ADD,
	ir.OpSub: SUB,
	ir.OpAnd: AND,
	ir.OpOr:  OR,
	ir.OpXor: EOR,
}

var shiftOpMnemonic = map[ir.Op]Mnemonic{
	ir.OpShl:  ASL,
	ir.OpLShr: LSR,
	ir.OpAShr: ASR,
}

// selector carries the per-function state used while lowering IR to M68K
// lines: the register allocation, the SDK (for call/division-helper
// resolution), and a counter for the synthetic labels comparisons and
// boolean materialization need.
type selector struct {
	fn      *ir.Function
	alloc   *Allocation
	sdk     *SDK
	labelID int

	// needsFrame is false when the function spilled nothing, letting the
	// prologue/epilogue skip link/unlk entirely.
	needsFrame bool
}

// SelectFunction lowers fn into one assembly Unit: a prologue, one labelled
// block per ir.BasicBlock, and an epilogue reached by every ir.OpRet.
func SelectFunction(fn *ir.Function, sdk *SDK) (Unit, error) {
	alloc := Allocate(fn)
	s := &selector{fn: fn, alloc: alloc, sdk: sdk}

	s.needsFrame = alloc.FrameSize > 0

	u := Unit{Name: fn.Name}
	u.Lines = append(u.Lines, s.prologue()...)

	for i, blk := range fn.Blocks {
		lbl := blockLabel(fn, blk.ID)
		first := true
		for idx := range blk.Instrs {
			in := &blk.Instrs[idx]
			lines, err := s.selectInstr(in, fn.Blocks, i)
			if err != nil {
				return Unit{}, errors.Wrapf(err, "function %q", fn.Name)
			}
			if first && len(lines) > 0 {
				lines[0].Label = lbl
				first = false
			} else if first {
				// Empty selection (shouldn't happen, every IR op selects to
				// at least one line) — still bind the label somewhere.
				lines = append(lines, Line{Label: lbl})
				first = false
			}
			u.Lines = append(u.Lines, lines...)
		}
	}
	return u, nil
}

func blockLabel(fn *ir.Function, id ir.BlockID) string {
	return fmt.Sprintf("%s_%d", fn.Name, int(id))
}

func (s *selector) newLabel(tag string) string {
	s.labelID++
	return fmt.Sprintf("%s_%s_%d", s.fn.Name, tag, s.labelID)
}

// prologue sets up the frame pointer and reserves the spill area, a
// link/unlk-based frame the way the curated ISA's LINK/UNLK mnemonics
// imply.
func (s *selector) prologue() []Line {
	var lines []Line
	if s.needsFrame {
		lines = append(lines, Line{Label: s.fn.Name, In: &Instr{Op: LINK, Dst: A(FP), Src: Imm32(-s.alloc.FrameSize)}})
	}
	if len(s.alloc.CalleeSaved) > 0 {
		lines = append(lines, Line{In: &Instr{Op: MOVEM, Size: Long, Src: RegListOperand(s.alloc.CalleeSaved), Dst: PreDec(SP)}})
	}
	dIdx, aIdx := 0, 0
	for _, p := range s.fn.Params {
		dst := s.destOperand(p.Reg, p.Type)
		var src Operand
		if p.Type.Kind == ir.TPointer {
			src = paramOperand(aIdx, p.Type)
			aIdx++
		} else {
			src = paramOperand(dIdx, p.Type)
			dIdx++
		}
		if dst == src {
			continue
		}
		lines = append(lines, Line{In: &Instr{Op: MOVE, Size: sizeOf(p.Type), Src: src, Dst: dst}})
	}
	if !s.needsFrame {
		if len(lines) > 0 {
			lines[0].Label = s.fn.Name
		} else {
			// No frame setup and no parameter shuffling: bind the function's
			// entry label to a zero-length anchor so it still resolves to
			// the address of whatever the body's first selected instruction
			// turns out to be.
			lines = append(lines, Line{Label: s.fn.Name})
		}
	}
	return lines
}

// paramOperand returns where a parameter arrives, given its index i within
// its own register bank: the curated calling convention (the one
// selectCall follows) passes integer parameters in d0, d1, ... and pointer
// parameters in a0, a1, ..., each bank counted separately in parameter
// order.
func paramOperand(i int, typ ir.Type) Operand {
	if typ.Kind == ir.TPointer {
		return A(AReg(i))
	}
	return D(DReg(i))
}

// epilogue tears the frame down and returns, optionally moving a return
// value into the d0/a0 result register first.
func (s *selector) epilogue(retVal *ir.Value) []Line {
	var lines []Line
	if retVal != nil && retVal.Type.Kind != ir.TVoid {
		src := s.srcOperand(*retVal)
		dst := Operand{Mode: ModeDataReg, Reg: DReg(0)}
		if retVal.Type.Kind == ir.TPointer {
			dst = Operand{Mode: ModeAddrReg, Reg: AReg(0)}
		}
		if dst != src {
			lines = append(lines, Line{In: loadValue(*retVal, src, dst, sizeOf(retVal.Type))})
		}
	}
	if len(s.alloc.CalleeSaved) > 0 {
		lines = append(lines, Line{In: &Instr{Op: MOVEM, Size: Long, Src: PostInc(SP), Dst: RegListOperand(s.alloc.CalleeSaved)}})
	}
	if s.needsFrame {
		lines = append(lines, Line{In: &Instr{Op: UNLK, Dst: A(FP)}})
	}
	lines = append(lines, Line{In: &Instr{Op: RTS}})
	return lines
}

// loadValue materializes v (already turned into the effective-address
// operand src by the caller) into dst, preferring the 2-byte moveq
// encoding over a general move whenever v is a small enough constant
// going into a data register — the same peephole a hand-written assembler
// programmer applies by instinct, and the one the empty-program
// scenario ("moveq #0,d0") requires the selector to make.
func loadValue(v ir.Value, src, dst Operand, sz Size) *Instr {
	if v.IsConst && dst.Mode == ModeDataReg && v.Const >= -128 && v.Const <= 127 {
		return &Instr{Op: MOVEQ, Src: Imm32(int32(v.Const)), Dst: dst}
	}
	return &Instr{Op: MOVE, Size: sz, Src: src, Dst: dst}
}

func sizeOf(t ir.Type) Size {
	switch t.Size() {
	case 1:
		return Byte
	case 2:
		return Word
	default:
		return Long
	}
}

// srcOperand turns an IR value into an effective address usable as an
// instruction's source: a constant, a physical register, or the spilled
// value's frame slot, loaded directly from memory rather than staged
// through a scratch register. Shift counts are the one exception: the
// shift opcodes take only Dn or #imm, so selectShift stages a spilled
// count through d1 itself.
func (s *selector) srcOperand(v ir.Value) Operand {
	if v.IsConst {
		return Imm32(int32(v.Const))
	}
	if v.IsLabel {
		return AbsLabel(v.Label)
	}
	if phys, ok := s.alloc.RegOf[v.Reg]; ok {
		if phys.IsAddr() {
			return A(phys)
		}
		return D(phys)
	}
	off := s.alloc.SpillOffset[v.Reg]
	return IndDisp(FP, -(off + 4))
}

// destOperand returns the register a definition of r should be written to:
// its physical register if allocated one, otherwise a scratch register
// (the caller is responsible for spilling scratch to r's frame slot
// afterward via storeResult).
func (s *selector) destOperand(r ir.Reg, typ ir.Type) Operand {
	if phys, ok := s.alloc.RegOf[r]; ok {
		if phys.IsAddr() {
			return A(phys)
		}
		return D(phys)
	}
	if typ.Kind == ir.TPointer {
		return A(scratchAddr)
	}
	return D(scratchData)
}

// storeResult appends the spill-to-frame move when r's destOperand was a
// scratch register because r didn't get a physical register.
func (s *selector) storeResult(r ir.Reg, typ ir.Type, scratch Operand) *Line {
	if _, ok := s.alloc.RegOf[r]; ok {
		return nil
	}
	off := s.alloc.SpillOffset[r]
	return &Line{In: &Instr{Op: MOVE, Size: sizeOf(typ), Src: scratch, Dst: IndDisp(FP, -(off + 4))}}
}

// selectInstr lowers a single IR instruction into one or more M68K lines.
// blocks/blockIdx are not consulted: every OpRet expands to a complete
// inline epilogue, so no block branches to a shared one.
func (s *selector) selectInstr(in *ir.Instruction, blocks []*ir.BasicBlock, blockIdx int) ([]Line, error) {
	switch in.Op {
	case ir.OpAdd, ir.OpSub, ir.OpAnd, ir.OpOr, ir.OpXor:
		return s.selectBin(in)
	case ir.OpMul:
		return s.selectMul(in)
	case ir.OpSDiv:
		return s.selectDiv(in, DIVS, false)
	case ir.OpSRem:
		return nil, errors.New("m68k: signed remainder has no direct opcode; frontends must lower %% to div+mul+sub")
	case ir.OpUDiv:
		return s.selectDivCall(in, "__udivsi3")
	case ir.OpURem:
		return s.selectDivCall(in, "__umodsi3")
	case ir.OpShl, ir.OpLShr, ir.OpAShr:
		return s.selectShift(in)
	case ir.OpCmp:
		return s.selectCmp(in)
	case ir.OpMove:
		return s.selectMove(in)
	case ir.OpLoad:
		return s.selectLoad(in)
	case ir.OpStore:
		return s.selectStore(in)
	case ir.OpAddrOf:
		return s.selectAddrOf(in)
	case ir.OpCall:
		return s.selectCall(in)
	case ir.OpBr:
		return s.selectBr(in), nil
	case ir.OpCondBr:
		return s.selectCondBr(in), nil
	case ir.OpRet:
		return s.selectRet(in), nil
	default:
		return nil, errors.Errorf("m68k: no selection rule for opcode %d", in.Op)
	}
}

func (s *selector) selectBin(in *ir.Instruction) ([]Line, error) {
	mnem, ok := binOpMnemonic[in.Op]
	if !ok {
		return nil, errors.Errorf("m68k: unhandled binary opcode %d", in.Op)
	}
	lhs, rhs := s.srcOperand(in.Args[0]), s.srcOperand(in.Args[1])
	dst := s.destOperand(in.Result, in.Type)
	sz := sizeOf(in.Type)
	var lines []Line
	lines = append(lines, Line{In: loadValue(in.Args[0], lhs, dst, sz)})
	lines = append(lines, Line{In: &Instr{Op: mnem, Size: sz, Src: rhs, Dst: dst}})
	if spill := s.storeResult(in.Result, in.Type, dst); spill != nil {
		lines = append(lines, *spill)
	}
	return lines, nil
}

// selectMul lowers to MULS, the only multiply the curated ISA exposes (16x16
// -> 32), so both operands are treated as words.
func (s *selector) selectMul(in *ir.Instruction) ([]Line, error) {
	lhs, rhs := s.srcOperand(in.Args[0]), s.srcOperand(in.Args[1])
	dst := s.destOperand(in.Result, in.Type)
	var lines []Line
	lines = append(lines, Line{In: &Instr{Op: MOVE, Size: Word, Src: lhs, Dst: dst}})
	lines = append(lines, Line{In: &Instr{Op: MULS, Src: rhs, Dst: dst}})
	if spill := s.storeResult(in.Result, in.Type, dst); spill != nil {
		lines = append(lines, *spill)
	}
	return lines, nil
}

func (s *selector) selectDiv(in *ir.Instruction, mnem Mnemonic, _ bool) ([]Line, error) {
	lhs, rhs := s.srcOperand(in.Args[0]), s.srcOperand(in.Args[1])
	dst := s.destOperand(in.Result, in.Type)
	var lines []Line
	lines = append(lines, Line{In: &Instr{Op: MOVE, Size: Word, Src: lhs, Dst: dst}})
	lines = append(lines, Line{In: &Instr{Op: mnem, Src: rhs, Dst: dst}})
	if spill := s.storeResult(in.Result, in.Type, dst); spill != nil {
		lines = append(lines, *spill)
	}
	return lines, nil
}

// selectDivCall lowers an unsigned divide/remainder to a call into the
// matching runtime helper, using the same two-argument, d0/d1-in d0-out
// convention as any other SDK intrinsic call.
func (s *selector) selectDivCall(in *ir.Instruction, helper string) ([]Line, error) {
	intr, ok := s.sdk.Lookup(helper)
	if !ok {
		return nil, errors.Errorf("m68k: runtime helper %q missing from SDK registry", helper)
	}
	var lines []Line
	lines = append(lines, Line{In: &Instr{Op: MOVE, Size: Long, Src: s.srcOperand(in.Args[0]), Dst: D(DReg(0))}})
	lines = append(lines, Line{In: &Instr{Op: MOVE, Size: Long, Src: s.srcOperand(in.Args[1]), Dst: D(DReg(1))}})
	lines = append(lines, Line{In: &Instr{Op: JSR, Dst: AbsLabel(intr.StubLabel)}})
	dst := s.destOperand(in.Result, in.Type)
	if dst != (Operand{Mode: ModeDataReg, Reg: DReg(0)}) {
		lines = append(lines, Line{In: &Instr{Op: MOVE, Size: Long, Src: D(DReg(0)), Dst: dst}})
	}
	if spill := s.storeResult(in.Result, in.Type, dst); spill != nil {
		lines = append(lines, *spill)
	}
	return lines, nil
}

func (s *selector) selectShift(in *ir.Instruction) ([]Line, error) {
	mnem := shiftOpMnemonic[in.Op]
	lhs, rhs := s.srcOperand(in.Args[0]), s.srcOperand(in.Args[1])
	dst := s.destOperand(in.Result, in.Type)
	sz := sizeOf(in.Type)
	var lines []Line
	lines = append(lines, Line{In: &Instr{Op: MOVE, Size: sz, Src: lhs, Dst: dst}})
	if rhs.Mode != ModeImmediate && rhs.Mode != ModeDataReg {
		// Count lives in memory (spilled): stage it through a scratch data
		// register, since the shift-count operand only accepts Dn or #imm.
		lines = append(lines, Line{In: &Instr{Op: MOVE, Size: Long, Src: rhs, Dst: D(scratchData2)}})
		rhs = D(scratchData2)
	}
	lines = append(lines, Line{In: &Instr{Op: mnem, Size: sz, Src: rhs, Dst: dst}})
	if spill := s.storeResult(in.Result, in.Type, dst); spill != nil {
		lines = append(lines, *spill)
	}
	return lines, nil
}

// selectCmp lowers a comparison to a compare-and-materialize sequence,
// since the curated ISA has no Scc: branch to a moveq #1 when the
// condition holds, otherwise fall into moveq #0 and branch past it.
func (s *selector) selectCmp(in *ir.Instruction) ([]Line, error) {
	cond, ok := predToCond[in.Pred]
	if !ok {
		return nil, errors.Errorf("m68k: unknown comparison predicate %d", in.Pred)
	}
	lhs, rhs := s.srcOperand(in.Args[0]), s.srcOperand(in.Args[1])
	sz := sizeOf(in.Args[0].Type)
	dst := s.destOperand(in.Result, in.Type)

	trueLabel := s.newLabel("cmp_true")
	endLabel := s.newLabel("cmp_end")

	var lines []Line
	lines = append(lines, Line{In: &Instr{Op: MOVE, Size: sz, Src: lhs, Dst: D(scratchData2)}})
	lines = append(lines, Line{In: &Instr{Op: CMP, Size: sz, Src: rhs, Dst: D(scratchData2)}})
	lines = append(lines, Line{In: &Instr{Op: BCC, Cond: cond, ShortForm: true, Label: trueLabel}})
	lines = append(lines, Line{In: &Instr{Op: MOVEQ, Src: Imm32(0), Dst: dst}})
	lines = append(lines, Line{In: &Instr{Op: BRA, ShortForm: true, Label: endLabel}})
	lines = append(lines, Line{Label: trueLabel, In: &Instr{Op: MOVEQ, Src: Imm32(1), Dst: dst}})
	// endLabel binds to a self-move so the label always has somewhere to
	// point regardless of whether the result is spilled below; the spill
	// comes after it so both paths store the result.
	lines = append(lines, Line{Label: endLabel, In: &Instr{Op: MOVE, Size: sz, Src: dst, Dst: dst}})
	if spill := s.storeResult(in.Result, in.Type, dst); spill != nil {
		lines = append(lines, *spill)
	}
	return lines, nil
}

func (s *selector) selectMove(in *ir.Instruction) ([]Line, error) {
	src := s.srcOperand(in.Args[0])
	dst := s.destOperand(in.Result, in.Type)
	lines := []Line{{In: loadValue(in.Args[0], src, dst, sizeOf(in.Type))}}
	if spill := s.storeResult(in.Result, in.Type, dst); spill != nil {
		lines = append(lines, *spill)
	}
	return lines, nil
}

func (s *selector) selectLoad(in *ir.Instruction) ([]Line, error) {
	addr := s.srcOperand(in.Args[0])
	dst := s.destOperand(in.Result, in.Type)
	ea := addrOperandFor(addr)
	lines := []Line{{In: &Instr{Op: MOVE, Size: sizeOf(in.Type), Src: ea, Dst: dst}}}
	if spill := s.storeResult(in.Result, in.Type, dst); spill != nil {
		lines = append(lines, *spill)
	}
	return lines, nil
}

func (s *selector) selectStore(in *ir.Instruction) ([]Line, error) {
	addr, val := s.srcOperand(in.Args[0]), s.srcOperand(in.Args[1])
	ea := addrOperandFor(addr)
	return []Line{{In: &Instr{Op: MOVE, Size: sizeOf(in.Type), Src: val, Dst: ea}}}, nil
}

// addrOperandFor turns an address-valued source operand into the
// effective address it points at: an address register becomes (An), a
// resolved label becomes an absolute reference, and anything already
// expressed as a memory operand (a spilled pointer) is used as-is, one
// indirection short — the selector never spills pointer values without
// also tracking that a reload is needed, so this case does not arise for
// well-typed input.
func addrOperandFor(addr Operand) Operand {
	switch addr.Mode {
	case ModeAddrReg:
		return Ind(addr.Reg)
	case ModeAbsLong, ModeAbsShort:
		return addr
	default:
		return addr
	}
}

func (s *selector) selectAddrOf(in *ir.Instruction) ([]Line, error) {
	dst := s.destOperand(in.Result, ir.Ptr)
	// LEA's operand convention (matched to encode.go/isa.go): Src names the
	// destination address register, Dst is the effective address computed.
	lines := []Line{{In: &Instr{Op: LEA, Src: dst, Dst: AbsLabel(in.Callee)}}}
	if spill := s.storeResult(in.Result, ir.Ptr, dst); spill != nil {
		lines = append(lines, *spill)
	}
	return lines, nil
}

// selectCall lowers a call to a user function or an SDK intrinsic: an
// inline-bytes intrinsic splices its fixed sequence directly in; everything
// else compiles to an argument shuffle followed by jsr.
func (s *selector) selectCall(in *ir.Instruction) ([]Line, error) {
	var lines []Line
	dReg, aReg := 0, 0
	for _, arg := range in.Args {
		src := s.srcOperand(arg)
		if arg.Type.Kind == ir.TPointer {
			lines = append(lines, Line{In: &Instr{Op: MOVE, Size: Long, Src: src, Dst: A(AReg(aReg))}})
			aReg++
		} else {
			lines = append(lines, Line{In: &Instr{Op: MOVE, Size: sizeOf(arg.Type), Src: src, Dst: D(DReg(dReg))}})
			dReg++
		}
	}

	if intr, ok := s.sdk.Lookup(in.Callee); ok && intr.InlineBytes != nil {
		lines = append(lines, Line{Raw: intr.InlineBytes})
	} else if intr, ok := s.sdk.Lookup(in.Callee); ok {
		lines = append(lines, Line{In: &Instr{Op: JSR, Dst: AbsLabel(intr.StubLabel)}})
	} else {
		lines = append(lines, Line{In: &Instr{Op: JSR, Dst: AbsLabel(in.Callee)}})
	}

	if in.HasResult {
		dst := s.destOperand(in.Result, in.Type)
		retSrc := Operand{Mode: ModeDataReg, Reg: DReg(0)}
		if in.Type.Kind == ir.TPointer {
			retSrc = Operand{Mode: ModeAddrReg, Reg: AReg(0)}
		}
		if dst != retSrc {
			lines = append(lines, Line{In: &Instr{Op: MOVE, Size: sizeOf(in.Type), Src: retSrc, Dst: dst}})
		}
		if spill := s.storeResult(in.Result, in.Type, dst); spill != nil {
			lines = append(lines, *spill)
		}
	}
	return lines, nil
}

func (s *selector) selectBr(in *ir.Instruction) []Line {
	return []Line{{In: &Instr{Op: BRA, ShortForm: true, Label: blockLabel(s.fn, in.Target)}}}
}

// selectCondBr lowers a conditional branch on a 0/1 IR value: cmp against
// zero, branch-if-nonzero to the then-block, fall through to an
// unconditional branch to the else-block.
func (s *selector) selectCondBr(in *ir.Instruction) []Line {
	cond := s.srcOperand(in.Args[0])
	return []Line{
		{In: &Instr{Op: MOVE, Size: Long, Src: cond, Dst: D(scratchData)}},
		{In: &Instr{Op: CMP, Size: Long, Src: Imm32(0), Dst: D(scratchData)}},
		{In: &Instr{Op: BCC, Cond: CondNE, ShortForm: true, Label: blockLabel(s.fn, in.Target)}},
		{In: &Instr{Op: BRA, ShortForm: true, Label: blockLabel(s.fn, in.ElseTarget)}},
	}
}

func (s *selector) selectRet(in *ir.Instruction) []Line {
	var retVal *ir.Value
	if len(in.Args) > 0 {
		retVal = &in.Args[0]
	}
	return s.epilogue(retVal)
}
