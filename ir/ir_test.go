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

package ir_test

import (
	"testing"

	"github.com/kidoz/smdc/common"
	"github.com/kidoz/smdc/ir"
)

func noneResolvable(string) bool { return false }

func TestVerifyWellFormed(t *testing.T) {
	m := ir.NewModule()
	m.Declare("main")
	fn := ir.NewFunction("main", nil, ir.I32)
	entry := fn.NewBlock("entry")
	b := ir.NewBuilder(fn)
	_ = entry

	sum := b.Bin(ir.OpAdd, ir.ConstValue(1, ir.I32), ir.ConstValue(2, ir.I32), ir.I32, common.NoSpan)
	b.Ret(sum, common.NoSpan)
	m.AddFunction(fn)

	if err := ir.Verify(m, noneResolvable); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerifyMissingTerminator(t *testing.T) {
	m := ir.NewModule()
	m.Declare("f")
	fn := ir.NewFunction("f", nil, ir.Void)
	blk := fn.NewBlock("entry")
	blk.Instrs = append(blk.Instrs, ir.Instruction{Op: ir.OpMove, HasResult: true, Result: fn.NewReg(), Type: ir.I32, Args: []ir.Value{ir.ConstValue(0, ir.I32)}})
	m.AddFunction(fn)

	if err := ir.Verify(m, noneResolvable); err == nil {
		t.Fatal("expected error for missing terminator")
	}
}

func TestVerifyUseBeforeDef(t *testing.T) {
	m := ir.NewModule()
	m.Declare("f")
	fn := ir.NewFunction("f", nil, ir.Void)
	blk := fn.NewBlock("entry")
	// reference register 5 which was never defined.
	blk.Instrs = append(blk.Instrs, ir.Instruction{Op: ir.OpRet, Args: []ir.Value{ir.RegValue(5, ir.I32)}})
	m.AddFunction(fn)

	if err := ir.Verify(m, noneResolvable); err == nil {
		t.Fatal("expected error for use before definition")
	}
}

func TestVerifyUnresolvedCall(t *testing.T) {
	m := ir.NewModule()
	m.Declare("f")
	fn := ir.NewFunction("f", nil, ir.Void)
	fn.NewBlock("entry")
	b := ir.NewBuilder(fn)
	b.Call("vdp_init", nil, ir.Void, common.NoSpan)
	b.Ret(ir.Value{Type: ir.Void}, common.NoSpan)
	m.AddFunction(fn)

	if err := ir.Verify(m, noneResolvable); err == nil {
		t.Fatal("expected unresolved-symbol error")
	}
	if err := ir.Verify(m, func(n string) bool { return n == "vdp_init" }); err != nil {
		t.Fatalf("Verify with resolvable intrinsic: %v", err)
	}
}

func TestRecordLayoutNaturalAlignment(t *testing.T) {
	rl := ir.NewRecordLayout("point", []struct {
		Name string
		Type ir.Type
	}{
		{"flag", ir.U8},
		{"x", ir.I32},
		{"y", ir.I16},
	})
	flag, _ := rl.Field("flag")
	x, _ := rl.Field("x")
	y, _ := rl.Field("y")
	if flag.Offset != 0 {
		t.Errorf("flag offset = %d, want 0", flag.Offset)
	}
	if x.Offset != 4 {
		t.Errorf("x offset = %d, want 4 (aligned up from 1)", x.Offset)
	}
	if y.Offset != 8 {
		t.Errorf("y offset = %d, want 8", y.Offset)
	}
	if rl.Align != 4 {
		t.Errorf("record align = %d, want 4", rl.Align)
	}
	if rl.Size != 12 {
		t.Errorf("record size = %d, want 12 (tail padded to align 4)", rl.Size)
	}
}
