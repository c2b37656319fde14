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
	"io"
	"strings"
)

// Severity of a rendered diagnostic. The compiler currently only produces
// errors, but the renderer accepts a severity so future warnings fit without
// changing the interface.
type Severity int

// Severities.
const (
	SevError Severity = iota
	SevWarning
)

func (s Severity) String() string {
	if s == SevWarning {
		return "warning"
	}
	return "error"
}

// Render writes a single Error to w as: severity, one-line summary,
// file:line:col range, and (if the error carries a span) the source excerpt
// with a caret span underneath. Codegen/backend/I-O errors
// render without a span but still identify the phase.
func Render(w io.Writer, e *Error) {
	fmt.Fprintf(w, "%s: %s: %s\n", SevError, e.Kind, e.Msg)
	if !e.Kind.HasSpan() || !e.Span.Valid() {
		return
	}
	line, col := e.Span.File.Position(e.Span.Start)
	fmt.Fprintf(w, "  --> %s\n", e.Span.Range())
	src := e.Span.File.Line(line)
	if src == nil {
		return
	}
	fmt.Fprintf(w, "  %s\n", src)
	caretLen := e.Span.End - e.Span.Start
	if caretLen < 1 {
		caretLen = 1
	}
	if col-1+caretLen > len(src)+1 {
		caretLen = len(src) - (col - 1)
		if caretLen < 1 {
			caretLen = 1
		}
	}
	fmt.Fprintf(w, "  %s%s\n", strings.Repeat(" ", col-1), strings.Repeat("^", caretLen))
}

// RenderAll renders every error in an ErrorList, in order, separated by a
// blank line, matching the driver's "report as many recoverable errors as
// possible in one run" contract. Writes go through a sticky errWriter so
// that once the underlying writer fails (e.g. a closed pipe) the remaining
// errors are skipped cheaply instead of retrying a doomed write for every
// line of every remaining diagnostic.
func RenderAll(w io.Writer, errs ErrorList) {
	ew := &errWriter{w: w}
	for i, e := range errs {
		if i > 0 {
			fmt.Fprintln(ew)
		}
		Render(ew, e)
	}
}

// RenderErr renders any error value: an ErrorList is expanded entry by
// entry, a *Error is rendered directly, and anything else (a wrapped I/O or
// backend error from github.com/pkg/errors) is printed as a single spanless
// line.
func RenderErr(w io.Writer, err error) {
	if err == nil {
		return
	}
	if l, ok := AsErrorList(err); ok {
		RenderAll(w, l)
		return
	}
	if e, ok := err.(*Error); ok {
		Render(w, e)
		return
	}
	fmt.Fprintf(w, "%s: %v\n", SevError, err)
}
