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

package m68k

import "github.com/pkg/errors"

// Line is one emitted unit in an assembly stream: either a machine
// instruction, a pre-encoded raw byte blob (an inlined intrinsic sequence),
// or a label definition with no payload of its own (a label bound to the
// address of whatever line comes right after it). Exactly one of In/Raw is
// set, except for a label-only line, which has neither.
type Line struct {
	Label string
	In    *Instr
	Raw   []byte
}

// Unit is a labelled, ordered run of Lines: one function's body, or the
// runtime stub library, or similar.
type Unit struct {
	Name  string
	Lines []Line
}

// Program is everything that goes into one assembled ROM code region: one
// Unit per function plus the runtime stub library, in link order.
type Program struct {
	Units []Unit
}

const maxAssemblerPasses = 8

// Assemble resolves every label reference in prog and emits the final
// big-endian byte stream, starting at the given load address. It returns the
// bytes and a symbol table mapping every label to its resolved address
// (callers need this to patch the ROM vector table's entry point).
//
// This is a two-stage design: a layout pass walks the stream recording
// each line's address and each label's address, then a resolve pass turns
// every label reference into a concrete displacement or absolute address.
// Rather than failing outright on an oversized jump, a branch that doesn't
// fit an 8-bit displacement is widened to the 16-bit form and the whole
// stream is re-laid-out, repeating until every branch is stable or a
// 16-bit displacement is also exceeded.
func Assemble(prog *Program, origin uint32) ([]byte, map[string]uint32, error) {
	lines := flattenProgram(prog)
	for _, ln := range lines {
		if ln.In != nil && (ln.In.Op == BRA || ln.In.Op == BCC) {
			ln.In.ShortForm = true
		}
	}

	var addrs []uint32
	var symtab map[string]uint32
	for pass := 0; pass < maxAssemblerPasses; pass++ {
		addrs, symtab = layout(lines, origin)
		widened, err := resolveBranches(lines, addrs, symtab)
		if err != nil {
			return nil, nil, err
		}
		if err := patchAbsoluteLabels(lines, symtab); err != nil {
			return nil, nil, err
		}
		if !widened {
			out, err := emit(lines)
			if err != nil {
				return nil, nil, err
			}
			return out, symtab, nil
		}
	}
	return nil, nil, errors.New("m68k: assembly did not converge after widening passes")
}

func flattenProgram(prog *Program) []*Line {
	var out []*Line
	for u := range prog.Units {
		unit := &prog.Units[u]
		for i := range unit.Lines {
			out = append(out, &unit.Lines[i])
		}
	}
	return out
}

func lineLen(ln *Line) int {
	switch {
	case ln.In != nil:
		return ln.In.Len()
	case ln.Raw != nil:
		return len(ln.Raw)
	default:
		return 0
	}
}

func layout(lines []*Line, origin uint32) ([]uint32, map[string]uint32) {
	addrs := make([]uint32, len(lines))
	symtab := make(map[string]uint32)
	pc := origin
	for i, ln := range lines {
		if ln.Label != "" {
			symtab[ln.Label] = pc
		}
		addrs[i] = pc
		pc += uint32(lineLen(ln))
	}
	return addrs, symtab
}

// resolveBranches computes each BRA/BCC's PC-relative displacement
// (target - (address-of-opcode-word + 2), per the M68K's addressing rule
// used uniformly for both the 8-bit and 16-bit displacement forms) and
// widens the encoding when an 8-bit displacement doesn't fit. A
// displacement of 0 also takes the 16-bit form, since a zero 8-bit field
// is how the opword itself announces that an extension word follows.
func resolveBranches(lines []*Line, addrs []uint32, symtab map[string]uint32) (widened bool, err error) {
	for i, ln := range lines {
		if ln.In == nil || (ln.In.Op != BRA && ln.In.Op != BCC) {
			continue
		}
		target, ok := symtab[ln.In.Label]
		if !ok {
			return false, errors.Errorf("m68k: branch to undefined label %q", ln.In.Label)
		}
		disp := int64(target) - int64(addrs[i]+2)
		if ln.In.ShortForm {
			if disp < -128 || disp > 127 || disp == 0 {
				ln.In.ShortForm = false
				widened = true
				continue
			}
			ln.In.Disp = int32(disp)
			continue
		}
		if disp < -32768 || disp > 32767 {
			return false, errors.Errorf("m68k: branch to %q exceeds 16-bit displacement range (%d)", ln.In.Label, disp)
		}
		ln.In.Disp = int32(disp)
	}
	return widened, nil
}

// patchAbsoluteLabels resolves every AbsLabel operand (lea/jsr/jmp targets,
// and absolute loads of a global's address) into a concrete Abs value.
func patchAbsoluteLabels(lines []*Line, symtab map[string]uint32) error {
	patch := func(op *Operand) error {
		if op.Mode != ModeAbsLong || op.Label == "" {
			return nil
		}
		addr, ok := symtab[op.Label]
		if !ok {
			return errors.Errorf("m68k: reference to undefined symbol %q", op.Label)
		}
		op.Abs = addr
		return nil
	}
	for _, ln := range lines {
		if ln.In == nil {
			continue
		}
		if err := patch(&ln.In.Src); err != nil {
			return err
		}
		if err := patch(&ln.In.Dst); err != nil {
			return err
		}
	}
	return nil
}

func emit(lines []*Line) ([]byte, error) {
	var out []byte
	for _, ln := range lines {
		switch {
		case ln.In != nil:
			b, err := Encode(ln.In)
			if err != nil {
				return nil, errors.Wrapf(err, "encoding instruction for label %q", ln.Label)
			}
			out = append(out, b...)
		case ln.Raw != nil:
			out = append(out, ln.Raw...)
		}
	}
	return out, nil
}
