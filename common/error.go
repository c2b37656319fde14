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

package common

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind tags the phase that produced an Error.
type Kind int

// Error kinds. Lexer, Parser, Semantic and Type errors always carry a Span;
// Codegen, Backend and IO errors render without one (they identify the phase
// instead).
const (
	KindLexer Kind = iota
	KindParser
	KindSemantic
	KindType
	KindCodegen
	KindBackend
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindLexer:
		return "lexer"
	case KindParser:
		return "parser"
	case KindSemantic:
		return "semantic"
	case KindType:
		return "type"
	case KindCodegen:
		return "codegen"
	case KindBackend:
		return "backend"
	case KindIO:
		return "I/O"
	default:
		return "error"
	}
}

// HasSpan reports whether errors of this kind carry a source span.
func (k Kind) HasSpan() bool {
	switch k {
	case KindLexer, KindParser, KindSemantic, KindType:
		return true
	default:
		return false
	}
}

// Error is the tagged diagnostic value every phase produces. It is a value,
// not an exception: frontends build these and hand them to the diagnostic
// renderer, then propagate them as plain Go errors.
type Error struct {
	Kind Kind
	Span Span
	Msg  string
}

// NewError builds an Error of the given kind at the given span.
func NewError(kind Kind, span Span, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Span: span, Msg: fmt.Sprintf(format, args...)}
}

// NewSpanless builds an Error for a kind that renders without a span
// (codegen/backend/I-O).
func NewSpanless(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Span: NoSpan, Msg: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.Kind.HasSpan() && e.Span.Valid() {
		return fmt.Sprintf("%s: %s error: %s", e.Span, e.Kind, e.Msg)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Msg)
}

// MaxErrors caps the number of recoverable errors the C-family parser and
// both semantic checkers record; once the list is Full they drop further
// errors and keep going. The Rust-like parser does not apply the cap.
const MaxErrors = 10

// ErrorList accumulates recoverable errors from a single frontend pass (one
// parser.Parse call, one sema.Check call, ...). It implements error so an
// ErrorList value can be returned and type-asserted (see AsErrorList) by
// callers that want the full list.
type ErrorList []*Error

// Add appends an error to the list.
func (l *ErrorList) Add(e *Error) {
	*l = append(*l, e)
}

// Full reports whether the list has reached MaxErrors. Callers that check it
// stop adding errors; none of them end parsing or checking early.
func (l ErrorList) Full() bool {
	return len(l) >= MaxErrors
}

func (l ErrorList) Error() string {
	if len(l) == 0 {
		return "no errors"
	}
	s := ""
	for i, e := range l {
		if i > 0 {
			s += "\n"
		}
		s += e.Error()
	}
	return s
}

// AsErrorList unwraps err (following any pkg/errors wrapping) to an
// ErrorList, if it is one.
func AsErrorList(err error) (ErrorList, bool) {
	for err != nil {
		if l, ok := err.(ErrorList); ok {
			return l, true
		}
		cause := errors.Unwrap(err)
		if cause == nil {
			break
		}
		err = cause
	}
	return nil, false
}
