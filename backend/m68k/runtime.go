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

// padPortAddr is the memory-mapped controller port address.
const padPortAddr = 0x00A10003

// RuntimeStubs returns the unit containing every StubLabel body the SDK
// registry references (the unsigned division helpers, plus the
// controller-port handshake __pad_read_stub is too long to inline at every
// call site). driver.Run links this unit in exactly once, regardless of
// how many functions call into it.
func RuntimeStubs() Unit {
	return Unit{
		Name:  "__runtime",
		Lines: udivsi3Lines(),
	}
}

// udivsi3Lines implements unsigned 32-bit division and, by sharing its
// remainder, modulo: a textbook bit-serial long-division loop since the
// curated ISA has no ROXL/ROXR to carry a bit across a double-width shift.
// d0 = dividend, d1 = divisor in; d0 = quotient, d2 = remainder out.
// Clobbers d2-d6.
func udivsi3Lines() []Line {
	return []Line{
		{Label: "__udivsi3_stub", In: &Instr{Op: MOVEQ, Src: Imm32(0), Dst: D(DReg(2))}},
		{In: &Instr{Op: MOVE, Size: Long, Src: D(DReg(0)), Dst: D(DReg(3))}},
		{In: &Instr{Op: MOVEQ, Src: Imm32(0), Dst: D(DReg(6))}},
		{In: &Instr{Op: MOVE, Size: Long, Src: Imm32(32), Dst: D(DReg(4))}},

		{Label: "__udiv_loop", In: &Instr{Op: MOVE, Size: Long, Src: D(DReg(3)), Dst: D(DReg(5))}},
		{In: &Instr{Op: AND, Size: Long, Src: Imm32(int32(-2147483648)), Dst: D(DReg(5))}},
		{In: &Instr{Op: ASL, Size: Long, Src: Imm32(1), Dst: D(DReg(3))}},
		{In: &Instr{Op: ASL, Size: Long, Src: Imm32(1), Dst: D(DReg(2))}},
		{In: &Instr{Op: ASL, Size: Long, Src: Imm32(1), Dst: D(DReg(6))}},
		{In: &Instr{Op: CMP, Size: Long, Src: Imm32(0), Dst: D(DReg(5))}},
		{In: &Instr{Op: BCC, Cond: CondEQ, ShortForm: true, Label: "__udiv_bitzero"}},
		{In: &Instr{Op: OR, Size: Long, Src: Imm32(1), Dst: D(DReg(2))}},

		{Label: "__udiv_bitzero", In: &Instr{Op: CMP, Size: Long, Src: D(DReg(1)), Dst: D(DReg(2))}},
		{In: &Instr{Op: BCC, Cond: CondCC, ShortForm: true, Label: "__udiv_subtract"}},
		{In: &Instr{Op: BRA, ShortForm: true, Label: "__udiv_contskip"}},

		{Label: "__udiv_subtract", In: &Instr{Op: SUB, Size: Long, Src: D(DReg(1)), Dst: D(DReg(2))}},
		{In: &Instr{Op: OR, Size: Long, Src: Imm32(1), Dst: D(DReg(6))}},

		{Label: "__udiv_contskip", In: &Instr{Op: SUB, Size: Long, Src: Imm32(1), Dst: D(DReg(4))}},
		{In: &Instr{Op: BCC, Cond: CondNE, ShortForm: true, Label: "__udiv_loop"}},
		{In: &Instr{Op: MOVE, Size: Long, Src: D(DReg(6)), Dst: D(DReg(0))}},
		{In: &Instr{Op: RTS}},

		// __umodsi3 reuses the division loop above and returns the
		// remainder the loop leaves behind in d2.
		{Label: "__umodsi3_stub", In: &Instr{Op: JSR, Dst: AbsLabel("__udivsi3_stub")}},
		{In: &Instr{Op: MOVE, Size: Long, Src: D(DReg(2)), Dst: D(DReg(0))}},
		{In: &Instr{Op: RTS}},

		// __pad_read_stub: select the controller's button-set line and
		// return the masked status byte.
		{Label: "__pad_read_stub", In: &Instr{Op: MOVE, Size: Byte, Src: Imm32(0x40), Dst: Operand{Mode: ModeAbsLong, Abs: padPortAddr}}},
		{In: &Instr{Op: MOVE, Size: Byte, Src: Operand{Mode: ModeAbsLong, Abs: padPortAddr}, Dst: D(DReg(0))}},
		{In: &Instr{Op: AND, Size: Word, Src: Imm32(0x3F), Dst: D(DReg(0))}},
		{In: &Instr{Op: RTS}},
	}
}
