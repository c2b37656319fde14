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

package ir

// FieldLayout is one field's placement inside a RecordLayout.
type FieldLayout struct {
	Name   string
	Type   Type
	Offset int
}

// RecordLayout lays out a record's fields with each field naturally
// aligned to its own size, and the record as a whole aligned (and
// tail-padded) to its largest field's alignment. Layouts are computed
// once, in declaration order, and are stable and deterministic. Neither
// frontend has record types, so no lowering pass builds one.
type RecordLayout struct {
	Name   string
	Fields []FieldLayout
	Size   int
	Align  int
}

func alignUp(n, align int) int {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}

// NewRecordLayout computes a RecordLayout for fields given in declaration
// order. Neither frontend calls it: the C-family and Rust-like frontends
// have no struct or record types.
func NewRecordLayout(name string, fields []struct {
	Name string
	Type Type
}) *RecordLayout {
	rl := &RecordLayout{Name: name, Align: 1}
	offset := 0
	for _, f := range fields {
		a := f.Type.Align()
		if a < 1 {
			a = 1
		}
		offset = alignUp(offset, a)
		rl.Fields = append(rl.Fields, FieldLayout{Name: f.Name, Type: f.Type, Offset: offset})
		offset += f.Type.Size()
		if a > rl.Align {
			rl.Align = a
		}
	}
	rl.Size = alignUp(offset, rl.Align)
	return rl
}

// Field looks up a field by name.
func (rl *RecordLayout) Field(name string) (FieldLayout, bool) {
	for _, f := range rl.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldLayout{}, false
}
