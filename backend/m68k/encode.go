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
	"encoding/binary"

	"github.com/pkg/errors"
)

// sizeCode returns the 2-bit size field most M68K opcodes use: 00=byte,
// 01=word, 10=long.
func sizeCode(sz Size) uint16 {
	switch sz {
	case Byte:
		return 0
	case Long:
		return 2
	default:
		return 1
	}
}

// moveSizeCode returns MOVE's idiosyncratic 2-bit size field: 01=byte,
// 11=word, 10=long.
func moveSizeCode(sz Size) uint16 {
	switch sz {
	case Byte:
		return 1
	case Long:
		return 2
	default:
		return 3
	}
}

// ea encodes an effective address operand into its 6-bit (mode,reg) field
// plus any extension words, for the curated addressing-mode subset Mode
// enumerates. It fails with an encode-error if the mode is not legal for
// an effective-address position at all (register-list and
// PC-relative-without-resolution operands reach here only through a
// selector bug).
func ea(op Operand, sz Size) (mode, reg uint16, ext []uint16, err error) {
	switch op.Mode {
	case ModeDataReg:
		return 0, uint16(op.Reg.Num()), nil, nil
	case ModeAddrReg:
		return 1, uint16(op.Reg.Num()), nil, nil
	case ModeIndirect:
		return 2, uint16(op.Reg.Num()), nil, nil
	case ModePostInc:
		return 3, uint16(op.Reg.Num()), nil, nil
	case ModePreDec:
		return 4, uint16(op.Reg.Num()), nil, nil
	case ModeIndirectDisp:
		return 5, uint16(op.Reg.Num()), []uint16{uint16(int16(op.Disp))}, nil
	case ModeIndirectIndex:
		ext0 := uint16(op.Index.Num()&0x7) << 12
		if op.Index.IsAddr() {
			ext0 |= 1 << 15
		}
		if op.IndexLong {
			ext0 |= 1 << 11
		}
		ext0 |= uint16(int8(op.Disp)) & 0xFF
		return 6, uint16(op.Reg.Num()), []uint16{ext0}, nil
	case ModeAbsShort:
		return 7, 0, []uint16{uint16(op.Abs)}, nil
	case ModeAbsLong:
		hi := uint16(op.Abs >> 16)
		lo := uint16(op.Abs)
		return 7, 1, []uint16{hi, lo}, nil
	case ModeImmediate:
		if sz == Long {
			return 7, 4, []uint16{uint16(uint32(op.Imm) >> 16), uint16(uint32(op.Imm))}, nil
		}
		return 7, 4, []uint16{uint16(uint32(op.Imm))}, nil
	default:
		return 0, 0, nil, errors.Errorf("m68k: illegal addressing mode %d in effective-address position", op.Mode)
	}
}

func pushWords(buf []byte, words ...uint16) []byte {
	for _, w := range words {
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], w)
		buf = append(buf, b[:]...)
	}
	return buf
}

// Encode is a pure function from a fully resolved M68K instruction (no
// unresolved Label left for JSR/JMP/LEA; Disp already computed for BRA/BCC)
// to its big-endian byte encoding. It fails with an encode-error if an
// addressing mode is illegal for the opcode (e.g. an immediate destination)
// or an immediate/displacement is out of range for its encoded width.
func Encode(in *Instr) ([]byte, error) {
	switch in.Op {
	case MOVEQ:
		if in.Src.Imm < -128 || in.Src.Imm > 127 {
			return nil, errors.Errorf("m68k: moveq immediate %d out of 8-bit signed range", in.Src.Imm)
		}
		word := 0x7000 | (uint16(in.Dst.Reg.Num()) << 9) | (uint16(in.Src.Imm) & 0xFF)
		return pushWords(nil, word), nil

	case RTS:
		return pushWords(nil, 0x4E75), nil

	case UNLK:
		return pushWords(nil, 0x4E58|uint16(in.Dst.Reg.Num())), nil

	case LINK:
		if in.Src.Imm < -32768 || in.Src.Imm > 32767 {
			return nil, errors.New("m68k: link frame size out of 16-bit range")
		}
		return pushWords(nil, 0x4E50|uint16(in.Dst.Reg.Num()), uint16(int16(in.Src.Imm))), nil

	case BRA, BCC:
		cond := uint16(0)
		if in.Op == BCC {
			cond = uint16(in.Cond)
		}
		if in.ShortForm {
			if in.Disp < -128 || in.Disp > 127 || in.Disp == 0 {
				return nil, errors.Errorf("m68k: short branch displacement %d out of range", in.Disp)
			}
			word := 0x6000 | (cond << 8) | (uint16(int8(in.Disp)) & 0xFF)
			return pushWords(nil, word), nil
		}
		if in.Disp < -32768 || in.Disp > 32767 {
			return nil, errors.Errorf("m68k: branch displacement %d exceeds 16-bit range", in.Disp)
		}
		word := 0x6000 | (cond << 8)
		return pushWords(nil, word, uint16(int16(in.Disp))), nil

	case JSR, JMP:
		mode, reg, ext, err := ea(in.Dst, Long)
		if err != nil {
			return nil, err
		}
		base := uint16(0x4E80)
		if in.Op == JMP {
			base = 0x4EC0
		}
		return pushWords(nil, append([]uint16{base | (mode << 3) | reg}, ext...)...), nil

	case LEA:
		mode, reg, ext, err := ea(in.Dst, Long)
		if err != nil {
			return nil, err
		}
		if mode != 2 && mode != 5 && mode != 6 && mode != 7 {
			return nil, errors.New("m68k: lea requires a control addressing mode")
		}
		word := 0x41C0 | (uint16(in.Src.Reg.Num()) << 9) | (mode << 3) | reg
		return pushWords(nil, append([]uint16{word}, ext...)...), nil

	case MOVE:
		srcMode, srcReg, srcExt, err := ea(in.Src, in.Size)
		if err != nil {
			return nil, err
		}
		dstMode, dstReg, dstExt, err := ea(in.Dst, in.Size)
		if err != nil {
			return nil, err
		}
		if dstMode == 7 && dstReg == 4 {
			return nil, errors.New("m68k: move cannot target an immediate operand")
		}
		word := (moveSizeCode(in.Size) << 12) | (dstReg << 9) | (dstMode << 6) | (srcMode << 3) | srcReg
		out := pushWords(nil, word)
		out = pushWords(out, srcExt...)
		out = pushWords(out, dstExt...)
		return out, nil

	case ADD, SUB, AND, OR, CMP:
		return encodeArith(in)

	case EOR:
		mode, reg, ext, err := ea(in.Dst, in.Size)
		if err != nil {
			return nil, err
		}
		if mode == 0 && in.Dst.Mode == ModeDataReg {
			// eor Dn,Dn is a degenerate but legal encoding.
		}
		word := 0xB100 | (uint16(in.Src.Reg.Num()) << 9) | (sizeCode(in.Size) << 6) | (mode << 3) | reg
		return pushWords(append([]byte{}, pushWords(nil, word)...), ext...), nil

	case MULS:
		mode, reg, ext, err := ea(in.Src, Word)
		if err != nil {
			return nil, err
		}
		word := 0xC1C0 | (uint16(in.Dst.Reg.Num()) << 9) | (mode << 3) | reg
		return pushWords(append([]byte{}, pushWords(nil, word)...), ext...), nil

	case DIVS:
		mode, reg, ext, err := ea(in.Src, Word)
		if err != nil {
			return nil, err
		}
		word := 0x81C0 | (uint16(in.Dst.Reg.Num()) << 9) | (mode << 3) | reg
		return pushWords(append([]byte{}, pushWords(nil, word)...), ext...), nil

	case NOT, NEG:
		mode, reg, ext, err := ea(in.Dst, in.Size)
		if err != nil {
			return nil, err
		}
		base := uint16(0x4600)
		if in.Op == NEG {
			base = 0x4400
		}
		word := base | (sizeCode(in.Size) << 6) | (mode << 3) | reg
		return pushWords(append([]byte{}, pushWords(nil, word)...), ext...), nil

	case ASL, ASR, LSL, LSR:
		return encodeShift(in)

	case MOVEM:
		return encodeMovem(in)

	default:
		return nil, errors.Errorf("m68k: encoder does not support mnemonic %d", in.Op)
	}
}

// encodeArith handles the Dn-destination, <ea>-source forms of ADD/SUB/AND/
// OR/CMP, which is the only direction the instruction selector ever emits.
func encodeArith(in *Instr) ([]byte, error) {
	if in.Dst.Mode != ModeDataReg {
		return nil, errors.New("m68k: arithmetic destination must be a data register")
	}
	mode, reg, ext, err := ea(in.Src, in.Size)
	if err != nil {
		return nil, err
	}
	var base uint16
	switch in.Op {
	case ADD:
		base = 0xD000
	case SUB:
		base = 0x9000
	case AND:
		base = 0xC000
	case OR:
		base = 0x8000
	case CMP:
		base = 0xB000
	}
	word := base | (uint16(in.Dst.Reg.Num()) << 9) | (sizeCode(in.Size) << 6) | (mode << 3) | reg
	out := pushWords(nil, word)
	out = pushWords(out, ext...)
	return out, nil
}

// encodeShift handles the register/immediate-count, data-register-only
// shift forms.
func encodeShift(in *Instr) ([]byte, error) {
	if in.Dst.Mode != ModeDataReg {
		return nil, errors.New("m68k: shift destination must be a data register")
	}
	var typ uint16
	switch in.Op {
	case ASL, ASR:
		typ = 0
	case LSL, LSR:
		typ = 1
	}
	var dr uint16
	switch in.Op {
	case ASL, LSL:
		dr = 1
	}
	var countField uint16
	var ir uint16
	switch in.Src.Mode {
	case ModeImmediate:
		n := in.Src.Imm
		if n < 1 || n > 8 {
			return nil, errors.Errorf("m68k: immediate shift count %d out of range 1-8", n)
		}
		countField = uint16(n % 8) // 8 encodes as 0
		ir = 0
	case ModeDataReg:
		countField = uint16(in.Src.Reg.Num())
		ir = 1
	default:
		return nil, errors.New("m68k: shift count must be an immediate or a data register")
	}
	word := 0xE000 | (countField << 9) | (dr << 8) | (sizeCode(in.Size) << 6) | (ir << 5) | (typ << 3) | uint16(in.Dst.Reg.Num())
	return pushWords(nil, word), nil
}

// encodeMovem handles the prologue/epilogue register-save form.
func encodeMovem(in *Instr) ([]byte, error) {
	var memOperand Operand
	var dr uint16 // 0 = registers to memory, 1 = memory to registers
	if in.Src.Mode == ModeRegList {
		memOperand = in.Dst
		dr = 0
	} else {
		memOperand = in.Src
		dr = 1
	}
	mode, reg, ext, err := ea(memOperand, Long)
	if err != nil {
		return nil, err
	}
	sz := uint16(0)
	if in.Size == Long {
		sz = 1
	}
	word := 0x4880 | (dr << 10) | (sz << 6) | (mode << 3) | reg
	var list uint16
	if dr == 0 {
		list = in.Src.RegList
	} else {
		list = in.Dst.RegList
	}
	// Predecrement mode is the one exception to the usual D0..D7,A0..A7
	// bit order: the CPU walks memory backwards, so the mask is specified
	// with the bit order reversed (A7..A0,D7..D0) to keep register N at
	// the same relative stack position regardless of addressing mode.
	if memOperand.Mode == ModePreDec {
		list = reverseRegList(list)
	}
	out := pushWords(nil, word, list)
	out = pushWords(out, ext...)
	return out, nil
}

// reverseRegList reverses the 16 bits of a movem register-list mask, for
// predecrement mode's reversed bit ordering.
func reverseRegList(list uint16) uint16 {
	var out uint16
	for i := 0; i < 16; i++ {
		if list&(1<<uint(i)) != 0 {
			out |= 1 << uint(15-i)
		}
	}
	return out
}
