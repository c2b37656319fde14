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

// Package c implements the C-family frontend: preprocessing, lexing,
// recursive-descent parsing, semantic analysis and direct AST-to-IR
// lowering.
package c

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
	TokChar
	TokKeyword
	TokPunct
)

// Token is a single lexeme plus its span.
type Token struct {
	Kind  TokKind
	Text  string
	Int   int64
	Width int // for TokInt: width in bits, always 32 (with or without an l/L suffix)
	Signed bool
	Span  common.Span
}

var keywords = map[string]bool{
	"int": true, "unsigned": true, "signed": true, "char": true, "short": true,
	"long": true, "void": true, "if": true, "else": true, "while": true,
	"for": true, "do": true, "return": true, "break": true, "continue": true,
	"const": true, "sizeof": true,
}

// Lexer is a streaming scanner over a single source buffer.
type Lexer struct {
	file *common.File
	src  []byte
	pos  int
	errs common.ErrorList
}

// NewLexer creates a lexer over f's source.
func NewLexer(f *common.File) *Lexer {
	return &Lexer{file: f, src: f.Src}
}

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

func isDigit(b byte) bool  { return b >= '0' && b <= '9' }
func isAlpha(b byte) bool  { return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') }
func isAlnum(b byte) bool  { return isAlpha(b) || isDigit(b) }

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
			start := l.pos
			l.pos += 2
			closed := false
			for l.pos < len(l.src) {
				if l.src[l.pos] == '*' && l.peekByteAt(1) == '/' {
					l.pos += 2
					closed = true
					break
				}
				l.pos++
			}
			if !closed {
				l.errs.Add(common.NewError(common.KindLexer, l.span(start), "unterminated block comment"))
			}
		default:
			return
		}
	}
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
	case b == '\'':
		return l.lexChar(start)
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
	for l.pos < len(l.src) && isDigitInBase(l.src[l.pos], base) {
		l.pos++
	}
	if l.pos == digitsStart && base != 10 {
		l.errs.Add(common.NewError(common.KindLexer, l.span(start), "malformed numeric literal"))
	}
	var v int64
	_, scanErr := fmt.Sscanf(string(l.src[digitsStart:l.pos]), numScanFormat(base), &v)
	// A literal too large for int64 fails to scan and leaves v at 0.
	overflow := scanErr != nil && base != 2 && l.pos > digitsStart
	if base == 2 {
		v = parseBinary(l.src[digitsStart:l.pos])
	}
	signed := true
	width := 0
	for l.pos < len(l.src) {
		switch l.src[l.pos] {
		case 'u', 'U':
			signed = false
			l.pos++
			continue
		case 'l', 'L':
			width = 32
			l.pos++
			continue
		}
		break
	}
	if width == 0 {
		width = 32
	}
	max := int64(1)<<uint(width) - 1
	if v > max || overflow {
		l.errs.Add(common.NewError(common.KindLexer, l.span(start), "integer literal %s out of range for %d-bit width", string(l.src[start:l.pos]), width))
	}
	return Token{Kind: TokInt, Text: string(l.src[start:l.pos]), Int: v, Width: width, Signed: signed, Span: l.span(start)}
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
	case 'x':
		if l.pos+1 >= len(l.src) {
			l.errs.Add(common.NewError(common.KindLexer, l.span(start), "truncated \\x escape"))
			return 0, false
		}
		var v int64
		fmt.Sscanf(string(l.src[l.pos:l.pos+2]), "%x", &v)
		l.pos += 2
		return byte(v), true
	default:
		l.errs.Add(common.NewError(common.KindLexer, l.span(start), "invalid escape sequence \\%c", b))
		return b, false
	}
}

func (l *Lexer) lexString(start int) Token {
	l.pos++ // opening quote
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
		l.pos++ // closing quote
	}
	return Token{Kind: TokString, Text: string(sb), Span: l.span(start)}
}

func (l *Lexer) lexChar(start int) Token {
	l.pos++ // opening quote
	var v byte
	if l.pos < len(l.src) && l.src[l.pos] == '\\' {
		l.pos++
		c, _ := l.lexEscape(start)
		v = c
	} else if l.pos < len(l.src) {
		v = l.src[l.pos]
		l.pos++
	}
	if l.peekByte() == '\'' {
		l.pos++
	} else {
		l.errs.Add(common.NewError(common.KindLexer, l.span(start), "unterminated char literal"))
	}
	return Token{Kind: TokChar, Text: string(v), Int: int64(v), Width: 8, Signed: true, Span: l.span(start)}
}

var punct3 = []string{"<<=", ">>="}
var punct2 = []string{"==", "!=", "<=", ">=", "&&", "||", "++", "--", "+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "<<", ">>", "->"}

func (l *Lexer) lexPunct(start int) Token {
	rest := l.src[l.pos:]
	for _, p := range punct3 {
		if hasPrefix(rest, p) {
			l.pos += len(p)
			return Token{Kind: TokPunct, Text: p, Span: l.span(start)}
		}
	}
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
