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

// Package rust implements the Rust-like frontend: lexing, parsing, semantic
// analysis, lowering to a mid-level IR with explicit control flow and
// desugared patterns, and translation from that MIR to the shared IR.
package rust

import (
	"fmt"

	"github.com/kidoz/smdc/common"
)

// TokKind tags a lexical class.
type TokKind int

// Token kinds.
const (
	TokEOF TokKind = iota
	TokIdent
	TokInt
	TokString
	TokKeyword
	TokPunct
)

// Token is a single lexeme plus its span.
type Token struct {
	Kind   TokKind
	Text   string
	Int    int64
	Width  int
	Signed bool
	Span   common.Span
}

var keywords = map[string]bool{
	"fn": true, "let": true, "mut": true, "if": true, "else": true,
	"while": true, "loop": true, "match": true, "return": true,
	"break": true, "continue": true, "true": true, "false": true,
	"i8": true, "u8": true, "i16": true, "u16": true, "i32": true, "u32": true,
	"bool": true, "as": true, "static": true,
}

var intTypeWidths = map[string][2]int{
	// suffix -> {width, signed(1)/unsigned(0)}
	"i8": {8, 1}, "u8": {8, 0}, "i16": {16, 1}, "u16": {16, 0},
	"i32": {32, 1}, "u32": {32, 0},
}

// Lexer is a streaming scanner over a single source buffer. Unlike the
// C-family lexer, block comments nest.
type Lexer struct {
	file *common.File
	src  []byte
	pos  int
	errs common.ErrorList
}

// NewLexer creates a lexer over f's source.
func NewLexer(f *common.File) *Lexer { return &Lexer{file: f, src: f.Src} }

// Errors returns the lexical errors accumulated so far.
func (l *Lexer) Errors() common.ErrorList { return l.errs }

func (l *Lexer) peekByte() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) peekByteAt(off int) byte {
	if l.pos+off >= len(l.src) {
		return 0
	}
	return l.src[l.pos+off]
}

func (l *Lexer) span(start int) common.Span {
	return common.Span{File: l.file, Start: start, End: l.pos}
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
func isAlpha(b byte) bool { return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') }
func isAlnum(b byte) bool { return isAlpha(b) || isDigit(b) }

func (l *Lexer) skipTrivia() {
	for l.pos < len(l.src) {
		b := l.src[l.pos]
		switch {
		case b == ' ' || b == '\t' || b == '\n' || b == '\r':
			l.pos++
		case b == '/' && l.peekByteAt(1) == '/':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		case b == '/' && l.peekByteAt(1) == '*':
			l.skipNestedBlockComment()
		default:
			return
		}
	}
}

// skipNestedBlockComment supports arbitrary nesting depth, required of the
// Rust-like lexer by
func (l *Lexer) skipNestedBlockComment() {
	start := l.pos
	depth := 0
	for l.pos < len(l.src) {
		if l.src[l.pos] == '/' && l.peekByteAt(1) == '*' {
			depth++
			l.pos += 2
			continue
		}
		if l.src[l.pos] == '*' && l.peekByteAt(1) == '/' {
			depth--
			l.pos += 2
			if depth == 0 {
				return
			}
			continue
		}
		l.pos++
	}
	l.errs.Add(common.NewError(common.KindLexer, l.span(start), "unterminated block comment"))
}

// Next scans and returns the next token.
func (l *Lexer) Next() Token {
	l.skipTrivia()
	start := l.pos
	if l.pos >= len(l.src) {
		return Token{Kind: TokEOF, Span: l.span(start)}
	}
	b := l.src[l.pos]
	switch {
	case isAlpha(b):
		return l.lexIdent(start)
	case isDigit(b):
		return l.lexNumber(start)
	case b == '"':
		return l.lexString(start)
	default:
		return l.lexPunct(start)
	}
}

func (l *Lexer) lexIdent(start int) Token {
	for l.pos < len(l.src) && isAlnum(l.src[l.pos]) {
		l.pos++
	}
	text := string(l.src[start:l.pos])
	kind := TokIdent
	if keywords[text] {
		kind = TokKeyword
	}
	return Token{Kind: kind, Text: text, Span: l.span(start)}
}

func (l *Lexer) lexNumber(start int) Token {
	base := 10
	if l.peekByte() == '0' && (l.peekByteAt(1) == 'x' || l.peekByteAt(1) == 'X') {
		base = 16
		l.pos += 2
	} else if l.peekByte() == '0' && (l.peekByteAt(1) == 'b' || l.peekByteAt(1) == 'B') {
		base = 2
		l.pos += 2
	} else if l.peekByte() == '0' && (l.peekByteAt(1) == 'o' || l.peekByteAt(1) == 'O') {
		base = 8
		l.pos += 2
	}
	digitsStart := l.pos
	for l.pos < len(l.src) && (isDigitInBase(l.src[l.pos], base) || l.src[l.pos] == '_') {
		l.pos++
	}
	var v int64
	digits := stripUnderscores(l.src[digitsStart:l.pos])
	fmt.Sscanf(digits, numScanFormat(base), &v)
	if base == 2 {
		v = parseBinary([]byte(digits))
	}
	width, signed := 32, true
	if isAlpha(l.peekByte()) {
		sufStart := l.pos
		for l.pos < len(l.src) && isAlnum(l.src[l.pos]) {
			l.pos++
		}
		suffix := string(l.src[sufStart:l.pos])
		if wv, ok := intTypeWidths[suffix]; ok {
			width, signed = wv[0], wv[1] == 1
		} else {
			l.errs.Add(common.NewError(common.KindLexer, l.span(start), "unknown integer literal suffix %q", suffix))
		}
	}
	max := int64(1)<<uint(width) - 1
	if v > max {
		l.errs.Add(common.NewError(common.KindLexer, l.span(start), "integer literal %s out of range for %d-bit width", string(l.src[start:l.pos]), width))
	}
	return Token{Kind: TokInt, Text: string(l.src[start:l.pos]), Int: v, Width: width, Signed: signed, Span: l.span(start)}
}

func stripUnderscores(b []byte) string {
	out := make([]byte, 0, len(b))
	for _, c := range b {
		if c != '_' {
			out = append(out, c)
		}
	}
	return string(out)
}

func numScanFormat(base int) string {
	switch base {
	case 16:
		return "%x"
	case 8:
		return "%o"
	default:
		return "%d"
	}
}

func parseBinary(digits []byte) int64 {
	var v int64
	for _, d := range digits {
		v = v<<1 | int64(d-'0')
	}
	return v
}

func isDigitInBase(b byte, base int) bool {
	switch base {
	case 16:
		return isDigit(b) || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
	case 8:
		return b >= '0' && b <= '7'
	case 2:
		return b == '0' || b == '1'
	default:
		return isDigit(b)
	}
}

func (l *Lexer) lexEscape(start int) (byte, bool) {
	if l.pos >= len(l.src) {
		return 0, false
	}
	b := l.src[l.pos]
	l.pos++
	switch b {
	case 'n':
		return '\n', true
	case 'r':
		return '\r', true
	case 't':
		return '\t', true
	case '\\':
		return '\\', true
	case '\'':
		return '\'', true
	case '"':
		return '"', true
	case '0':
		return 0, true
	default:
		l.errs.Add(common.NewError(common.KindLexer, l.span(start), "invalid escape sequence \\%c", b))
		return b, false
	}
}

func (l *Lexer) lexString(start int) Token {
	l.pos++
	var sb []byte
	for l.pos < len(l.src) && l.src[l.pos] != '"' {
		if l.src[l.pos] == '\\' {
			l.pos++
			if c, ok := l.lexEscape(start); ok {
				sb = append(sb, c)
			}
			continue
		}
		sb = append(sb, l.src[l.pos])
		l.pos++
	}
	if l.pos >= len(l.src) {
		l.errs.Add(common.NewError(common.KindLexer, l.span(start), "unterminated string literal"))
	} else {
		l.pos++
	}
	return Token{Kind: TokString, Text: string(sb), Span: l.span(start)}
}

var punct2 = []string{"==", "!=", "<=", ">=", "&&", "||", "->", "=>", "+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "<<", ">>"}

func (l *Lexer) lexPunct(start int) Token {
	rest := l.src[l.pos:]
	for _, p := range punct2 {
		if hasPrefix(rest, p) {
			l.pos += len(p)
			return Token{Kind: TokPunct, Text: p, Span: l.span(start)}
		}
	}
	l.pos++
	return Token{Kind: TokPunct, Text: string(rest[0]), Span: l.span(start)}
}

func hasPrefix(b []byte, s string) bool {
	if len(b) < len(s) {
		return false
	}
	for i := 0; i < len(s); i++ {
		if b[i] != s[i] {
			return false
		}
	}
	return true
}
