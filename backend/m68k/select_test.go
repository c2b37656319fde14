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
	"testing"

	"github.com/kidoz/smdc/backend/m68k"
	"github.com/kidoz/smdc/common"
	"github.com/kidoz/smdc/ir"
)

// buildReturnConstFn builds the canonical empty-program function:
// int main(void) { return 0; }
func buildReturnConstFn() *ir.Function {
	fn := ir.NewFunction("main", nil, ir.I32)
	fn.NewBlock("entry")
	b := ir.NewBuilder(fn)
	b.Ret(ir.ConstValue(0, ir.I32), common.NoSpan)
	return fn
}

func TestSelectFunctionEmptyProgram(t *testing.T) {
	fn := buildReturnConstFn()
	sdk := m68k.NewSDK()
	unit, err := m68k.SelectFunction(fn, sdk)
	if err != nil {
		t.Fatalf("SelectFunction: %v", err)
	}

	prog := &m68k.Program{Units: []m68k.Unit{unit}}
	code, symtab, err := m68k.Assemble(prog, 0x200)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if symtab["main"] != 0x200 {
		t.Errorf("main entry = 0x%X, want 0x200", symtab["main"])
	}
	if len(code) == 0 {
		t.Fatal("empty code for a function that returns")
	}
	last4 := code[len(code)-2:]
	if last4[0] != 0x4E || last4[1] != 0x75 {
		t.Errorf("function does not end in rts: % X", last4)
	}
}

func TestSelectFunctionAddAndReturn(t *testing.T) {
	fn := ir.NewFunction("add_one", []ir.Param{{Name: "x", Reg: 0, Type: ir.I32}}, ir.I32)
	fn.NewBlock("entry")
	fn.NewReg() // reg 0 already used by the parameter
	b := ir.NewBuilder(fn)
	sum := b.Bin(ir.OpAdd, ir.RegValue(0, ir.I32), ir.ConstValue(1, ir.I32), ir.I32, common.NoSpan)
	b.Ret(sum, common.NoSpan)

	sdk := m68k.NewSDK()
	unit, err := m68k.SelectFunction(fn, sdk)
	if err != nil {
		t.Fatalf("SelectFunction: %v", err)
	}
	prog := &m68k.Program{Units: []m68k.Unit{unit}}
	if _, _, err := m68k.Assemble(prog, 0); err != nil {
		t.Fatalf("Assemble: %v", err)
	}
}

func TestSelectFunctionIntrinsicCall(t *testing.T) {
	fn := ir.NewFunction("init", nil, ir.Void)
	fn.NewBlock("entry")
	b := ir.NewBuilder(fn)
	b.Call("vdp_init", nil, ir.Void, common.NoSpan)
	b.Ret(ir.Value{Type: ir.Void}, common.NoSpan)

	sdk := m68k.NewSDK()
	unit, err := m68k.SelectFunction(fn, sdk)
	if err != nil {
		t.Fatalf("SelectFunction: %v", err)
	}

	var sawRaw bool
	for _, ln := range unit.Lines {
		if ln.Raw != nil {
			sawRaw = true
		}
	}
	if !sawRaw {
		t.Error("expected the vdp_init intrinsic's inline bytes to appear in the selected unit")
	}
}

func TestSelectFunctionSavesAndRestoresCalleeSavedRegisters(t *testing.T) {
	fn := ir.NewFunction("add_one", []ir.Param{{Name: "x", Reg: 0, Type: ir.I32}}, ir.I32)
	fn.NewBlock("entry")
	fn.NewReg()
	b := ir.NewBuilder(fn)
	sum := b.Bin(ir.OpAdd, ir.RegValue(0, ir.I32), ir.ConstValue(1, ir.I32), ir.I32, common.NoSpan)
	b.Ret(sum, common.NoSpan)

	alloc := m68k.Allocate(fn)
	if len(alloc.CalleeSaved) == 0 {
		t.Fatal("expected the parameter's virtual register to land in a callee-saved physical register")
	}

	sdk := m68k.NewSDK()
	unit, err := m68k.SelectFunction(fn, sdk)
	if err != nil {
		t.Fatalf("SelectFunction: %v", err)
	}

	var save, restore *m68k.Instr
	for i, ln := range unit.Lines {
		if ln.In != nil && ln.In.Op == m68k.MOVEM {
			if save == nil {
				save = unit.Lines[i].In
			} else {
				restore = unit.Lines[i].In
			}
		}
	}
	if save == nil || restore == nil {
		t.Fatal("expected two movem instructions (save and restore) for a function using callee-saved registers")
	}
	if save.Dst.Mode != m68k.ModePreDec {
		t.Errorf("save movem destination mode = %v, want ModePreDec", save.Dst.Mode)
	}
	if restore.Src.Mode != m68k.ModePostInc {
		t.Errorf("restore movem source mode = %v, want ModePostInc", restore.Src.Mode)
	}

	prog := &m68k.Program{Units: []m68k.Unit{unit}}
	if _, _, err := m68k.Assemble(prog, 0); err != nil {
		t.Fatalf("Assemble: %v", err)
	}
}

func TestSelectFunctionSkipsMovemWithNoCalleeSavedRegisters(t *testing.T) {
	fn := buildReturnConstFn()
	sdk := m68k.NewSDK()
	unit, err := m68k.SelectFunction(fn, sdk)
	if err != nil {
		t.Fatalf("SelectFunction: %v", err)
	}
	for _, ln := range unit.Lines {
		if ln.In != nil && ln.In.Op == m68k.MOVEM {
			t.Fatal("expected no movem for a function that uses no callee-saved registers")
		}
	}
}

func TestSelectFunctionUnsignedDivideCallsRuntimeHelper(t *testing.T) {
	fn := ir.NewFunction("udiv", []ir.Param{{Name: "a", Reg: 0, Type: ir.U32}, {Name: "b", Reg: 1, Type: ir.U32}}, ir.U32)
	fn.NewBlock("entry")
	fn.NewReg()
	fn.NewReg()
	b := ir.NewBuilder(fn)
	q := b.Bin(ir.OpUDiv, ir.RegValue(0, ir.U32), ir.RegValue(1, ir.U32), ir.U32, common.NoSpan)
	b.Ret(q, common.NoSpan)

	sdk := m68k.NewSDK()
	unit, err := m68k.SelectFunction(fn, sdk)
	if err != nil {
		t.Fatalf("SelectFunction: %v", err)
	}

	prog := &m68k.Program{Units: []m68k.Unit{unit, m68k.RuntimeStubs()}}
	if _, symtab, err := m68k.Assemble(prog, 0); err != nil {
		t.Fatalf("Assemble: %v", err)
	} else if _, ok := symtab["__udivsi3_stub"]; !ok {
		t.Error("runtime stub label missing from symbol table")
	}
}
