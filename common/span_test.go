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

package common_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/kidoz/smdc/common"
)

func TestFilePosition(t *testing.T) {
	fs := common.NewFileSet()
	f := fs.AddFile("t.c", []byte("int a;\nint b;\n"))

	cases := []struct {
		offset           int
		wantLine, wantCo int
	}{
		{0, 1, 1},
		{4, 1, 5},
		{7, 2, 1},
		{13, 2, 7},
	}
	for _, c := range cases {
		line, col := f.Position(c.offset)
		if line != c.wantLine || col != c.wantCo {
			t.Errorf("Position(%d) = %d:%d, want %d:%d", c.offset, line, col, c.wantLine, c.wantCo)
		}
	}
}

func TestSpanJoin(t *testing.T) {
	fs := common.NewFileSet()
	f := fs.AddFile("t.c", []byte("int a;\n"))
	a := common.Span{File: f, Start: 0, End: 3}
	b := common.Span{File: f, Start: 4, End: 5}
	j := common.Join(a, b)
	if j.Start != 0 || j.End != 5 {
		t.Errorf("Join = [%d,%d), want [0,5)", j.Start, j.End)
	}
}

func TestErrorListFull(t *testing.T) {
	var l common.ErrorList
	for i := 0; i < common.MaxErrors; i++ {
		l.Add(common.NewSpanless(common.KindIO, "err %d", i))
	}
	if !l.Full() {
		t.Fatal("expected list to be full")
	}
}

func TestRenderCaret(t *testing.T) {
	fs := common.NewFileSet()
	f := fs.AddFile("t.c", []byte("int a b;\n"))
	sp := common.Span{File: f, Start: 6, End: 7}
	e := common.NewError(common.KindParser, sp, "unexpected identifier %q", "b")

	var buf bytes.Buffer
	common.Render(&buf, e)
	out := buf.String()
	if !strings.Contains(out, "t.c:1:7") {
		t.Errorf("expected position in output, got %q", out)
	}
	if !strings.Contains(out, "^") {
		t.Errorf("expected caret in output, got %q", out)
	}
}
