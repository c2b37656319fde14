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

package c_test

import (
	"testing"

	"github.com/kidoz/smdc/common"
	"github.com/kidoz/smdc/frontend/c"
	"github.com/kidoz/smdc/ir"
)

func compile(t *testing.T, src string) *ir.Module {
	t.Helper()
	files := common.NewFileSet()
	f := files.AddFile("t.c", []byte(src))
	lex := c.NewLexer(f)
	p := c.NewParser(lex)
	prog := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		t.Fatalf("parse errors: %v", errs)
	}
	chk := c.NewChecker()
	chk.Check(prog)
	if errs := chk.Errors(); len(errs) > 0 {
		t.Fatalf("semantic errors: %v", errs)
	}
	mod, err := c.LowerProgram(prog)
	if err != nil {
		t.Fatalf("lower: %v", err)
	}
	if err := ir.Verify(mod, func(string) bool { return true }); err != nil {
		t.Fatalf("verify: %v", err)
	}
	return mod
}

func TestLexerKeywordsAndPunctuators(t *testing.T) {
	f := common.NewFileSet().AddFile("t.c", []byte("int x = 1 + 2;"))
	lex := c.NewLexer(f)
	var kinds []c.TokKind
	for {
		tok := lex.Next()
		kinds = append(kinds, tok.Kind)
		if tok.Kind == c.TokEOF {
			break
		}
	}
	want := []c.TokKind{c.TokKeyword, c.TokIdent, c.TokPunct, c.TokInt, c.TokPunct, c.TokInt, c.TokPunct, c.TokEOF}
	if len(kinds) != len(want) {
		t.Fatalf("token count = %d, want %d: %v", len(kinds), len(want), kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("token %d kind = %v, want %v", i, kinds[i], want[i])
		}
	}
}

func TestLexerIntegerLiteralOutOfRange(t *testing.T) {
	f := common.NewFileSet().AddFile("t.c", []byte("300u"))
	lex := c.NewLexer(f)
	tok := lex.Next()
	if tok.Width != 32 {
		t.Fatalf("expected default 32-bit width, got %d", tok.Width)
	}
	f2 := common.NewFileSet().AddFile("t2.c", []byte("999999999999999999999999"))
	lex2 := c.NewLexer(f2)
	lex2.Next()
	if len(lex2.Errors()) == 0 {
		t.Error("expected a lexer error for an out-of-range literal")
	}
}

func TestEmptyProgramLowersToReturnZero(t *testing.T) {
	mod := compile(t, "int main(void) { return 0; }")
	fn := mod.FindFunction("main")
	if fn == nil {
		t.Fatal("main not found")
	}
	if len(fn.Blocks) != 1 {
		t.Fatalf("expected a single block, got %d", len(fn.Blocks))
	}
	term := fn.Blocks[0].Terminator()
	if term == nil || term.Op != ir.OpRet {
		t.Fatalf("expected a return terminator, got %+v", term)
	}
}

func TestWhileTrueLowersToSelfLoop(t *testing.T) {
	mod := compile(t, "int main(void) { while (1) { } return 0; }")
	fn := mod.FindFunction("main")
	var loopBlock *ir.BasicBlock
	for _, b := range fn.Blocks {
		if b.Name == "loop.body" {
			loopBlock = b
		}
	}
	if loopBlock == nil {
		t.Fatal("expected a loop.body block")
	}
	term := loopBlock.Terminator()
	if term == nil || term.Op != ir.OpBr || term.Target != loopBlock.ID {
		t.Fatalf("expected loop.body to branch to itself, got %+v", term)
	}
}

func TestGlobalsArraysAndPointers(t *testing.T) {
	mod := compile(t, `
int counter = 5;
int buf[4];
int add(int a, int b) { return a + b; }
int main(void) {
	int *p = &counter;
	*p = add(*p, 1);
	buf[0] = *p;
	return buf[0];
}
`)
	if mod.FindFunction("main") == nil || mod.FindFunction("add") == nil {
		t.Fatal("expected both functions in module")
	}
	if len(mod.Globals) == 0 {
		t.Fatal("expected at least the counter/buf globals")
	}
}

func TestSignedModuloLowersToDivMulSub(t *testing.T) {
	mod := compile(t, "int mod(int a, int b) { return a % b; }")
	fn := mod.FindFunction("mod")
	if fn == nil {
		t.Fatal("mod not found")
	}
	var ops []ir.Op
	for _, in := range fn.Blocks[0].Instrs {
		ops = append(ops, in.Op)
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
	mod := compile(t, "unsigned mod(unsigned a, unsigned b) { return a % b; }")
	fn := mod.FindFunction("mod")
	if fn == nil {
		t.Fatal("mod not found")
	}
	found := false
	for _, in := range fn.Blocks[0].Instrs {
		if in.Op == ir.OpURem {
			found = true
		}
	}
	if !found {
		t.Fatal("expected unsigned %% to lower directly to OpURem")
	}
}

func TestIfElseBranches(t *testing.T) {
	mod := compile(t, `
int choose(int x) {
	if (x > 0) { return 1; } else { return -1; }
}
`)
	fn := mod.FindFunction("choose")
	var sawCondBr bool
	for _, b := range fn.Blocks {
		if term := b.Terminator(); term != nil && term.Op == ir.OpCondBr {
			sawCondBr = true
		}
	}
	if !sawCondBr {
		t.Error("expected a conditional branch for the if/else")
	}
}

func TestParserRecoversAfterSyntaxError(t *testing.T) {
	files := common.NewFileSet()
	f := files.AddFile("t.c", []byte("int main(void) { return 0 return 1; }"))
	lex := c.NewLexer(f)
	p := c.NewParser(lex)
	p.ParseProgram()
	if len(p.Errors()) == 0 {
		t.Fatal("expected at least one parser error")
	}
}

func TestPreprocessorDetectsIncludeCycle(t *testing.T) {
	files := map[string][]byte{
		"/src/a.h": []byte("#include \"b.h\"\n"),
		"/src/b.h": []byte("#include \"a.h\"\n"),
	}
	reader := fakeReader{files: files}
	pp := c.NewPreprocessor(reader, nil)
	_, err := pp.Expand("/src/a.h", files["/src/a.h"])
	if err == nil {
		t.Fatal("expected an include-cycle error")
	}
}

type fakeReader struct{ files map[string][]byte }

func (r fakeReader) ReadFile(searchPaths []string, dir, p string, angled bool) (string, []byte, error) {
	resolved := dir + "/" + p
	if dir == "/src" {
		resolved = "/src/" + p
	}
	data, ok := r.files[resolved]
	if !ok {
		data, ok = r.files["/src/"+p]
		resolved = "/src/" + p
	}
	if !ok {
		return "", nil, errNotFound
	}
	return resolved, data, nil
}

var errNotFound = &notFoundError{}

type notFoundError struct{}

func (*notFoundError) Error() string { return "file not found" }
