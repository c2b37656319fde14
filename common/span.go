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

// Package common provides the infrastructure shared by every frontend and
// backend in the compiler: source spans, the diagnostic error value, and the
// renderer that turns errors into user-visible text.
package common

import "fmt"

// File is a named source buffer registered with a FileSet. Offsets into File
// are byte offsets into Src.
type File struct {
	Name string
	Src  []byte

	// lineStarts[i] is the byte offset of the first byte of line i (0-based).
	lineStarts []int
}

func newFile(name string, src []byte) *File {
	f := &File{Name: name, Src: src, lineStarts: []int{0}}
	for i, b := range src {
		if b == '\n' {
			f.lineStarts = append(f.lineStarts, i+1)
		}
	}
	return f
}

// Position converts a byte offset into a 1-based line/column pair.
func (f *File) Position(offset int) (line, col int) {
	if offset < 0 {
		offset = 0
	}
	if offset > len(f.Src) {
		offset = len(f.Src)
	}
	// binary search for the last line start <= offset
	lo, hi := 0, len(f.lineStarts)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if f.lineStarts[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo + 1, offset - f.lineStarts[lo] + 1
}

// Line returns the raw bytes of the given 1-based line number, without the
// trailing newline.
func (f *File) Line(n int) []byte {
	if n < 1 || n > len(f.lineStarts) {
		return nil
	}
	start := f.lineStarts[n-1]
	end := len(f.Src)
	if n < len(f.lineStarts) {
		end = f.lineStarts[n] - 1
	}
	if end > 0 && end <= len(f.Src) && f.Src[end-1] == '\r' {
		end--
	}
	if start > end {
		return nil
	}
	return f.Src[start:end]
}

// FileSet owns every source buffer registered for a single compilation run.
// It outlives every tree derived from it so that spans can be rendered after
// the frontend that produced them has discarded its own state.
type FileSet struct {
	files []*File
}

// NewFileSet creates an empty file set.
func NewFileSet() *FileSet {
	return &FileSet{}
}

// AddFile registers a new source buffer and returns its File. The returned
// *File's identity is what Span.File refers to.
func (fs *FileSet) AddFile(name string, src []byte) *File {
	f := newFile(name, src)
	fs.files = append(fs.files, f)
	return f
}

// Span is a half-open byte range [Start, End) into a single File. Spans are
// immutable once created and are attached to every AST node, every traceable
// IR instruction, and every diagnostic.
type Span struct {
	File  *File
	Start int
	End   int
}

// NoSpan is the zero Span, used for errors that carry no source location.
var NoSpan = Span{}

// Valid reports whether the span refers to a file.
func (s Span) Valid() bool { return s.File != nil }

// String renders the span as "file:line:col" using its start position.
func (s Span) String() string {
	if !s.Valid() {
		return "<no-span>"
	}
	line, col := s.File.Position(s.Start)
	return fmt.Sprintf("%s:%d:%d", s.File.Name, line, col)
}

// Range renders "file:startLine:startCol-endLine:endCol" for diagnostics that
// want to show the whole offending span rather than just its start.
func (s Span) Range() string {
	if !s.Valid() {
		return "<no-span>"
	}
	l1, c1 := s.File.Position(s.Start)
	l2, c2 := s.File.Position(s.End)
	if l1 == l2 {
		return fmt.Sprintf("%s:%d:%d-%d", s.File.Name, l1, c1, c2)
	}
	return fmt.Sprintf("%s:%d:%d-%d:%d", s.File.Name, l1, c1, l2, c2)
}

// Join returns the smallest span covering both a and b. Both must belong to
// the same file; Join panics otherwise since spans are never combined across
// translation units.
func Join(a, b Span) Span {
	if !a.Valid() {
		return b
	}
	if !b.Valid() {
		return a
	}
	if a.File != b.File {
		panic("common: Join of spans from different files")
	}
	start, end := a.Start, a.End
	if b.Start < start {
		start = b.Start
	}
	if b.End > end {
		end = b.End
	}
	return Span{File: a.File, Start: start, End: end}
}
