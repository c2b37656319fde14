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

package m68k_test

import (
	"bytes"
	"testing"

	"github.com/kidoz/smdc/backend/m68k"
)

func encodeOrFatal(t *testing.T, in *m68k.Instr) []byte {
	t.Helper()
	b, err := m68k.Encode(in)
	if err != nil {
		t.Fatalf("Encode(%+v): %v", in, err)
	}
	if len(b) != in.Len() {
		t.Fatalf("Encode produced %d bytes, Len() reports %d", len(b), in.Len())
	}
	return b
}

// TestEncodeEmptyProgram covers the empty-program scenario: a function
// returning the constant 0 compiles to "moveq #0,d0 / rts".
func TestEncodeEmptyProgram(t *testing.T) {
	moveq := &m68k.Instr{Op: m68k.MOVEQ, Size: m68k.Long, Src: m68k.Imm32(0), Dst: m68k.D(m68k.DReg(0))}
	got := encodeOrFatal(t, moveq)
	want := []byte{0x70, 0x00}
	if !bytes.Equal(got, want) {
		t.Errorf("moveq #0,d0 = % X, want % X", got, want)
	}

	rts := &m68k.Instr{Op: m68k.RTS}
	got = encodeOrFatal(t, rts)
	want = []byte{0x4E, 0x75}
	if !bytes.Equal(got, want) {
		t.Errorf("rts = % X, want % X", got, want)
	}
}

// TestEncodeShortBranch covers the "bra.s -2" -> 0x60FE scenario.
func TestEncodeShortBranch(t *testing.T) {
	in := &m68k.Instr{Op: m68k.BRA, ShortForm: true, Disp: -2}
	got := encodeOrFatal(t, in)
	want := []byte{0x60, 0xFE}
	if !bytes.Equal(got, want) {
		t.Errorf("bra.s -2 = % X, want % X", got, want)
	}
}

// TestEncodeLongConditionalBranch covers the long conditional branch form
// 0x6?00 <disp16>, using beq as the representative condition.
func TestEncodeLongConditionalBranch(t *testing.T) {
	in := &m68k.Instr{Op: m68k.BCC, Cond: m68k.CondEQ, ShortForm: false, Disp: 300}
	got := encodeOrFatal(t, in)
	if got[0] != 0x67 || got[1] != 0x00 {
		t.Errorf("opword = % X, want 67 00", got[:2])
	}
	if got[2] != 0x01 || got[3] != 0x2C {
		t.Errorf("disp16 = % X, want 01 2C (300)", got[2:4])
	}
}

func TestEncodeMoveDataRegToDataReg(t *testing.T) {
	in := &m68k.Instr{Op: m68k.MOVE, Size: m68k.Long, Src: m68k.D(m68k.DReg(1)), Dst: m68k.D(m68k.DReg(0))}
	got := encodeOrFatal(t, in)
	want := []byte{0x20, 0x01}
	if !bytes.Equal(got, want) {
		t.Errorf("move.l d1,d0 = % X, want % X", got, want)
	}
}

func TestEncodeAddImmediateToDataReg(t *testing.T) {
	in := &m68k.Instr{Op: m68k.ADD, Size: m68k.Long, Src: m68k.Imm32(4), Dst: m68k.D(m68k.DReg(2))}
	got := encodeOrFatal(t, in)
	if len(got) != 6 {
		t.Fatalf("add.l #4,d2 length = %d, want 6", len(got))
	}
}

// calleeSavedRegs is the register set select.go's prologue/epilogue saves
// whenever a function uses every allocatable callee-saved bank entry:
// d2-d7, a2-a5.
func calleeSavedRegs() []m68k.Reg {
	return []m68k.Reg{
		m68k.DReg(2), m68k.DReg(3), m68k.DReg(4), m68k.DReg(5), m68k.DReg(6), m68k.DReg(7),
		m68k.AReg(2), m68k.AReg(3), m68k.AReg(4), m68k.AReg(5),
	}
}

// TestEncodeMovemSaveUsesReversedBitOrder covers the predecrement-mode
// register-list quirk: movem.l d2-d7/a2-a5,-(sp) encodes to 48E7 3F3C, not
// the 3CFC mask that every other addressing mode would use for the same
// register set.
func TestEncodeMovemSaveUsesReversedBitOrder(t *testing.T) {
	in := &m68k.Instr{Op: m68k.MOVEM, Size: m68k.Long, Src: m68k.RegListOperand(calleeSavedRegs()), Dst: m68k.PreDec(m68k.SP)}
	got := encodeOrFatal(t, in)
	want := []byte{0x48, 0xE7, 0x3F, 0x3C}
	if !bytes.Equal(got, want) {
		t.Errorf("movem.l d2-d7/a2-a5,-(sp) = % X, want % X", got, want)
	}
}

// TestEncodeMovemRestoreUsesNormalBitOrder covers the postincrement
// counterpart: movem.l (sp)+,d2-d7/a2-a5 encodes to 4CDF 3CFC, the
// straightforward D0..D7,A0..A7 bit order.
func TestEncodeMovemRestoreUsesNormalBitOrder(t *testing.T) {
	in := &m68k.Instr{Op: m68k.MOVEM, Size: m68k.Long, Src: m68k.PostInc(m68k.SP), Dst: m68k.RegListOperand(calleeSavedRegs())}
	got := encodeOrFatal(t, in)
	want := []byte{0x4C, 0xDF, 0x3C, 0xFC}
	if !bytes.Equal(got, want) {
		t.Errorf("movem.l (sp)+,d2-d7/a2-a5 = % X, want % X", got, want)
	}
}

func TestEncodeMoveqOutOfRange(t *testing.T) {
	in := &m68k.Instr{Op: m68k.MOVEQ, Src: m68k.Imm32(200), Dst: m68k.D(m68k.DReg(0))}
	if _, err := m68k.Encode(in); err == nil {
		t.Fatal("expected range error for moveq #200")
	}
}

func TestEncodeMoveImmediateDestinationRejected(t *testing.T) {
	in := &m68k.Instr{
		Op:   m68k.MOVE,
		Size: m68k.Long,
		Src:  m68k.D(m68k.DReg(0)),
		Dst:  m68k.Imm32(1),
	}
	if _, err := m68k.Encode(in); err == nil {
		t.Fatal("expected error for move with immediate destination")
	}
}

func TestEncodeLeaIndirect(t *testing.T) {
	in := &m68k.Instr{Op: m68k.LEA, Src: m68k.A(m68k.AReg(0)), Dst: m68k.Ind(m68k.AReg(1))}
	got := encodeOrFatal(t, in)
	want := []byte{0x41, 0xD1}
	if !bytes.Equal(got, want) {
		t.Errorf("lea (a1),a0 = % X, want % X", got, want)
	}
}
