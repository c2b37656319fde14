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

package c

import (
	"fmt"
	"io"

	"github.com/kr/pretty"

	"github.com/kidoz/smdc/common"
	"github.com/kidoz/smdc/frontend"
	"github.com/kidoz/smdc/ir"
)

// Frontend implements frontend.Frontend for the C-family language.
type Frontend struct{}

// NewFrontend returns the C-family frontend value.
func NewFrontend() frontend.Frontend { return Frontend{} }

// Name implements frontend.Frontend.
func (Frontend) Name() string { return "c" }

// Extensions implements frontend.Frontend.
func (Frontend) Extensions() []string { return []string{".c", ".h"} }

// Compile implements frontend.Frontend: lex, parse, check and lower src into
// an IR module.
func (Frontend) Compile(files *common.FileSet, name string, src []byte, dump *frontend.DumpRequest) (*ir.Module, error) {
	f := files.AddFile(name, src)

	lex := NewLexer(f)
	if dump != nil && dump.Tokens {
		dumpTokens(lex, dump.Out)
		lex = NewLexer(f) // dumping drains the lexer; rescan for the real parse
	}

	p := NewParser(lex)
	prog := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		return nil, errs
	}

	if dump != nil && dump.AST {
		fmt.Fprintf(dump.Out, "%# v\n", pretty.Formatter(prog))
	}

	chk := NewChecker()
	chk.Check(prog)
	if errs := chk.Errors(); len(errs) > 0 {
		return nil, errs
	}

	mod, err := LowerProgram(prog)
	if err != nil {
		return nil, err
	}
	return mod, nil
}

func dumpTokens(lex *Lexer, out io.Writer) {
	for {
		tok := lex.Next()
		fmt.Fprintf(out, "%-10s %-20q %s\n", tokKindName(tok.Kind), tok.Text, tok.Span)
		if tok.Kind == TokEOF {
			return
		}
	}
}

func tokKindName(k TokKind) string {
	switch k {
	case TokEOF:
		return "eof"
	case TokIdent:
		return "ident"
	case TokInt:
		return "int"
	case TokString:
		return "string"
	case TokChar:
		return "char"
	case TokKeyword:
		return "keyword"
	case TokPunct:
		return "punct"
	default:
		return "?"
	}
}
