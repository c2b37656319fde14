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

func TestAssembleEmptyProgram(t *testing.T) {
	prog := &m68k.Program{Units: []m68k.Unit{{
		Name: "main",
		Lines: []m68k.Line{
			{Label: "main", In: &m68k.Instr{Op: m68k.MOVEQ, Src: m68k.Imm32(0), Dst: m68k.D(m68k.DReg(0))}},
			{In: &m68k.Instr{Op: m68k.RTS}},
		},
	}}}

	code, symtab, err := m68k.Assemble(prog, 0x200)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	want := []byte{0x70, 0x00, 0x4E, 0x75}
	if !bytes.Equal(code, want) {
		t.Errorf("code = % X, want % X", code, want)
	}
	if symtab["main"] != 0x200 {
		t.Errorf("main = 0x%X, want 0x200", symtab["main"])
	}
}

func TestAssembleWidensShortBranchOnOverflow(t *testing.T) {
	var lines []m68k.Line
	lines = append(lines, m68k.Line{Label: "start", In: &m68k.Instr{Op: m68k.BRA, ShortForm: true, Label: "end"}})
	// Pad with enough instructions that the forward branch can't fit in 8
	// bits (-128..127), forcing the assembler to widen it to the 16-bit
	// form on a later pass.
	for i := 0; i < 70; i++ {
		lines = append(lines, m68k.Line{In: &m68k.Instr{Op: m68k.MOVEQ, Src: m68k.Imm32(int32(i % 100)), Dst: m68k.D(m68k.DReg(0))}})
	}
	lines = append(lines, m68k.Line{Label: "end", In: &m68k.Instr{Op: m68k.RTS}})

	prog := &m68k.Program{Units: []m68k.Unit{{Name: "f", Lines: lines}}}
	code, symtab, err := m68k.Assemble(prog, 0)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if code[0] != 0x60 {
		t.Fatalf("opword high byte = %#x, want 0x60 (bra)", code[0])
	}
	if code[1] != 0x00 {
		t.Errorf("opword low byte = %#x, want 0x00 (widened to 16-bit displacement form)", code[1])
	}
	if symtab["end"] != uint32(len(code)-2) {
		t.Errorf("end = %d, want %d", symtab["end"], len(code)-2)
	}
}

func TestAssembleUndefinedLabelFails(t *testing.T) {
	prog := &m68k.Program{Units: []m68k.Unit{{
		Name: "f",
		Lines: []m68k.Line{
			{In: &m68k.Instr{Op: m68k.BRA, ShortForm: true, Label: "nowhere"}},
		},
	}}}
	if _, _, err := m68k.Assemble(prog, 0); err == nil {
		t.Fatal("expected error for undefined branch target")
	}
}

func TestSDKIntrinsicsResolve(t *testing.T) {
	sdk := m68k.NewSDK()
	for _, name := range []string{"vdp_init", "vdp_set_sprite", "wait_vblank", "pad_read", "psg_play_note", "__udivsi3", "__umodsi3"} {
		if !sdk.Resolvable(name) {
			t.Errorf("intrinsic %q not resolvable", name)
		}
	}
	if sdk.Resolvable("not_a_real_intrinsic") {
		t.Error("unexpected intrinsic resolved")
	}
}
