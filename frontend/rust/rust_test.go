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

package rust_test

import (
	"testing"

	"github.com/kidoz/smdc/common"
	"github.com/kidoz/smdc/frontend/rust"
	"github.com/kidoz/smdc/ir"
)

func compile(t *testing.T, src string) *ir.Module {
	t.Helper()
	files := common.NewFileSet()
	f := files.AddFile("t.rs", []byte(src))
	lex := rust.NewLexer(f)
	p := rust.NewParser(lex)
	file := p.ParseFile()
	if errs := p.Errors(); len(errs) > 0 {
		t.Fatalf("parse errors: %v", errs)
	}
	chk := rust.NewChecker()
	chk.Check(file)
	if errs := chk.Errors(); len(errs) > 0 {
		t.Fatalf("semantic errors: %v", errs)
	}
	mod, err := rust.LowerFile(file)
	if err != nil {
		t.Fatalf("lower: %v", err)
	}
	if err := ir.Verify(mod, func(string) bool { return true }); err != nil {
		t.Fatalf("verify: %v", err)
	}
	return mod
}

func TestLexerKeywordsAndArrow(t *testing.T) {
	f := common.NewFileSet().AddFile("t.rs", []byte("fn f() -> i32 { 1 }"))
	lex := rust.NewLexer(f)
	var kinds []rust.TokKind
	for {
		tok := lex.Next()
		kinds = append(kinds, tok.Kind)
		if tok.Kind == rust.TokEOF {
			break
		}
	}
	want := []rust.TokKind{
		rust.TokKeyword, rust.TokIdent, rust.TokPunct, rust.TokPunct,
		rust.TokPunct, rust.TokKeyword, rust.TokPunct, rust.TokInt, rust.TokPunct, rust.TokEOF,
	}
	if len(kinds) != len(want) {
		t.Fatalf("token count = %d, want %d: %v", len(kinds), len(want), kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("token %d kind = %v, want %v", i, kinds[i], want[i])
		}
	}
}

func TestLexerNestedBlockComment(t *testing.T) {
	f := common.NewFileSet().AddFile("t.rs", []byte("/* outer /* inner */ still-comment */ 42"))
	lex := rust.NewLexer(f)
	tok := lex.Next()
	if tok.Kind != rust.TokInt || tok.Int != 42 {
		t.Fatalf("expected the int literal after the nested comment, got %+v", tok)
	}
}

func TestFunctionReturningIntLowers(t *testing.T) {
	mod := compile(t, "fn main() -> i32 { return 0; }")
	fn := mod.FindFunction("main")
	if fn == nil {
		t.Fatal("main not found")
	}
	last := fn.Blocks[len(fn.Blocks)-1]
	term := last.Terminator()
	if term == nil || term.Op != ir.OpRet {
		t.Fatalf("expected a return terminator, got %+v", term)
	}
}

func TestTailExpressionIsImplicitReturn(t *testing.T) {
	mod := compile(t, "fn answer() -> i32 { 42 }")
	fn := mod.FindFunction("answer")
	if fn == nil {
		t.Fatal("answer not found")
	}
	var sawConst42 bool
	for _, b := range fn.Blocks {
		for _, in := range b.Instrs {
			for _, a := range in.Args {
				if a.IsConst && a.Const == 42 {
					sawConst42 = true
				}
			}
		}
	}
	if !sawConst42 {
		t.Error("expected the literal 42 to flow through as the tail expression's value")
	}
}

func TestMatchLowersToSwitchChain(t *testing.T) {
	mod := compile(t, `
fn classify(x: i32) -> i32 {
	match x {
		0 => 1,
		_ => 2,
	}
}
`)
	fn := mod.FindFunction("classify")
	if fn == nil {
		t.Fatal("classify not found")
	}
	var sawCondBr, sawCmpZero bool
	for _, b := range fn.Blocks {
		for _, in := range b.Instrs {
			if in.Op == ir.OpCondBr {
				sawCondBr = true
			}
			if in.Op == ir.OpCmp && in.Pred == ir.PredEQ {
				for _, a := range in.Args {
					if a.IsConst && a.Const == 0 {
						sawCmpZero = true
					}
				}
			}
		}
	}
	if !sawCondBr {
		t.Error("expected the match to lower to at least one conditional branch")
	}
	if !sawCmpZero {
		t.Error("expected a comparison against the 0 pattern literal")
	}
}

func TestLoopLowersToSelfBranch(t *testing.T) {
	mod := compile(t, "fn spin() { loop { } }")
	fn := mod.FindFunction("spin")
	if fn == nil {
		t.Fatal("spin not found")
	}
	var sawSelfBranch bool
	for _, b := range fn.Blocks {
		term := b.Terminator()
		if term != nil && term.Op == ir.OpBr && term.Target == b.ID {
			sawSelfBranch = true
		}
	}
	if !sawSelfBranch {
		t.Error("expected loop {} to lower to a block branching to itself")
	}
}

func TestWhileTrueLowersToSelfBranch(t *testing.T) {
	mod := compile(t, "fn spin() { while true { } }")
	fn := mod.FindFunction("spin")
	if fn == nil {
		t.Fatal("spin not found")
	}
	var sawSelfBranch bool
	for _, b := range fn.Blocks {
		term := b.Terminator()
		if term != nil && term.Op == ir.OpBr && term.Target == b.ID {
			sawSelfBranch = true
		}
	}
	if !sawSelfBranch {
		t.Error("expected while true {} to lower the same way as loop {}")
	}
}

func TestReferenceAndDerefAssignment(t *testing.T) {
	mod := compile(t, `
static mut counter: i32 = 5;
fn bump() {
	let p: i32 = counter;
	let r = &p;
	*r = 1;
}
`)
	if mod.FindFunction("bump") == nil {
		t.Fatal("bump not found")
	}
	if len(mod.Globals) == 0 {
		t.Fatal("expected at least the counter static")
	}
}

func TestSignedModuloLowersToDivMulSub(t *testing.T) {
	mod := compile(t, "fn modulo(a: i32, b: i32) -> i32 { a % b }")
	fn := mod.FindFunction("modulo")
	if fn == nil {
		t.Fatal("modulo not found")
	}
	var ops []ir.Op
	for _, blk := range fn.Blocks {
		for _, in := range blk.Instrs {
			ops = append(ops, in.Op)
		}
	}
	for _, op := range ops {
		if op == ir.OpSRem {
			t.Fatalf("signed %% must not lower to OpSRem, the M68K selector rejects it: %v", ops)
		}
	}
	wantInOrder := []ir.Op{ir.OpSDiv, ir.OpMul, ir.OpSub}
	i := 0
	for _, op := range ops {
		if i < len(wantInOrder) && op == wantInOrder[i] {
			i++
		}
	}
	if i != len(wantInOrder) {
		t.Fatalf("expected OpSDiv, OpMul, OpSub in order, got %v", ops)
	}
}

func TestUnsignedModuloLowersToURem(t *testing.T) {
	mod := compile(t, "fn modulo(a: u32, b: u32) -> u32 { a % b }")
	fn := mod.FindFunction("modulo")
	if fn == nil {
		t.Fatal("modulo not found")
	}
	found := false
	for _, blk := range fn.Blocks {
		for _, in := range blk.Instrs {
			if in.Op == ir.OpURem {
				found = true
			}
		}
	}
	if !found {
		t.Fatal("expected unsigned %% to lower directly to OpURem")
	}
}

func TestParserRejectsUnsupportedPattern(t *testing.T) {
	files := common.NewFileSet()
	f := files.AddFile("t.rs", []byte("fn f(x: i32) -> i32 { match x { (1, 2) => 1, _ => 0 } }"))
	lex := rust.NewLexer(f)
	p := rust.NewParser(lex)
	p.ParseFile()
	if len(p.Errors()) == 0 {
		t.Fatal("expected a parse error for an unsupported tuple pattern")
	}
}

func TestIfElseExpressionValue(t *testing.T) {
	mod := compile(t, `
fn choose(x: i32) -> i32 {
	if x > 0 { 1 } else { -1 }
}
`)
	fn := mod.FindFunction("choose")
	if fn == nil {
		t.Fatal("choose not found")
	}
	var sawCondBr bool
	for _, b := range fn.Blocks {
		if term := b.Terminator(); term != nil && term.Op == ir.OpCondBr {
			sawCondBr = true
		}
	}
	if !sawCondBr {
		t.Error("expected the if/else expression to lower to a conditional branch")
	}
}
