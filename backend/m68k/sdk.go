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

import "github.com/kidoz/smdc/ir"

// Intrinsic is one entry of the SDK registry: a call
// target the compiler resolves without the user having defined it. An
// intrinsic is satisfied one of two ways:
//
//   - InlineBytes is non-nil: the fixed instruction sequence is spliced
//     directly into the caller's code at the call site (used for short
//     sequences like a hardware register poke);
//   - StubLabel is non-empty: the call compiles to a normal jsr to a
//     runtime stub driver.Run links in once, regardless of how many
//     call sites reference it (used for anything long enough that inlining
//     would bloat every caller, notably the unsigned-division helpers).
//
// Exactly one of the two is set.
type Intrinsic struct {
	Name   string
	Params []ir.Type
	Return ir.Type

	InlineBytes []byte
	StubLabel   string
}

// SDK is the intrinsic registry: a name to Intrinsic mapping built once at
// startup.
type SDK struct {
	entries map[string]Intrinsic
}

// Lookup returns the intrinsic registered under name, if any.
func (s *SDK) Lookup(name string) (Intrinsic, bool) {
	e, ok := s.entries[name]
	return e, ok
}

// Resolvable reports whether name is a registered intrinsic. It has the
// exact shape ir.Verify wants for its resolvable callback, keeping the ir
// package free of any dependency on backend/m68k.
func (s *SDK) Resolvable(name string) bool {
	_, ok := s.entries[name]
	return ok
}

// Names returns the registered intrinsic names, for --help/diagnostics.
func (s *SDK) Names() []string {
	names := make([]string, 0, len(s.entries))
	for n := range s.entries {
		names = append(names, n)
	}
	return names
}

// NewSDK builds the registry. It is a plain constructor rather than a
// package-level map built by init(), so tests can construct an isolated SDK
// and so the registry's construction order is visible in one place.
func NewSDK() *SDK {
	s := &SDK{entries: make(map[string]Intrinsic)}

	// Hardware/display/input/sound primitives. Each is a short fixed sequence poking a
	// well-known memory-mapped register, inlined at the call site.
	s.add(Intrinsic{
		Name:        "vdp_init",
		Return:      ir.Void,
		InlineBytes: vdpInitSequence(),
	})
	s.add(Intrinsic{
		Name:        "vdp_set_sprite",
		Params:      []ir.Type{ir.U8, ir.U16, ir.U16},
		Return:      ir.Void,
		InlineBytes: vdpSetSpriteSequence(),
	})
	s.add(Intrinsic{
		Name:        "wait_vblank",
		Return:      ir.Void,
		InlineBytes: waitVblankSequence(),
	})
	s.add(Intrinsic{
		Name:   "pad_read",
		Params: []ir.Type{ir.U8},
		Return: ir.U16,
		// pad_read reads through the controller port's handshake protocol,
		// long enough that every call site would rather jsr a shared stub.
		StubLabel: "__pad_read_stub",
	})
	s.add(Intrinsic{
		Name:        "psg_play_note",
		Params:      []ir.Type{ir.U8, ir.U16},
		Return:      ir.Void,
		InlineBytes: psgPlayNoteSequence(),
	})

	// Unsigned division/modulo helpers: the M68K divs/divu pair only covers
	// one of the two signednesses the curated ISA exposes cleanly for a
	// 32/16 divide, so unsigned 32-bit division and remainder route through
	// runtime stubs rather than silently reusing the signed opcode.
	s.add(Intrinsic{
		Name:      "__udivsi3",
		Params:    []ir.Type{ir.U32, ir.U32},
		Return:    ir.U32,
		StubLabel: "__udivsi3_stub",
	})
	s.add(Intrinsic{
		Name:      "__umodsi3",
		Params:    []ir.Type{ir.U32, ir.U32},
		Return:    ir.U32,
		StubLabel: "__umodsi3_stub",
	})

	return s
}

func (s *SDK) add(in Intrinsic) { s.entries[in.Name] = in }

// vdpInitSequence returns the fixed byte sequence that resets the VDP's
// control/status port and clears its data port pointer:
//
//	move.w #0x8000,VDP_CTRL
func vdpInitSequence() []byte {
	return assembleInline(
		&Instr{Op: MOVE, Size: Word, Src: Imm32(0x8000), Dst: Operand{Mode: ModeAbsLong, Abs: vdpCtrlAddr}},
	)
}

// vdpSetSpriteSequence writes d0 (sprite index), d1 (x), d2 (y) to the
// sprite attribute table base.
func vdpSetSpriteSequence() []byte {
	return assembleInline(
		&Instr{Op: MOVE, Size: Byte, Src: D(DReg(0)), Dst: Operand{Mode: ModeAbsLong, Abs: vdpSpriteTableAddr}},
		&Instr{Op: MOVE, Size: Word, Src: D(DReg(1)), Dst: Operand{Mode: ModeAbsLong, Abs: vdpSpriteTableAddr + 1}},
		&Instr{Op: MOVE, Size: Word, Src: D(DReg(2)), Dst: Operand{Mode: ModeAbsLong, Abs: vdpSpriteTableAddr + 3}},
	)
}

// waitVblankSequence spins on the VDP status port until the vblank flag is
// set.
func waitVblankSequence() []byte {
	return assembleInline(
		&Instr{Op: MOVE, Size: Byte, Src: Operand{Mode: ModeAbsLong, Abs: vdpStatusAddr}, Dst: D(DReg(0))},
		&Instr{Op: AND, Size: Byte, Src: Imm32(0x08), Dst: D(DReg(0))},
		&Instr{Op: BCC, Cond: CondEQ, ShortForm: true, Disp: -12},
	)
}

// psgPlayNoteSequence writes d0 (channel) and d1 (note period) to the PSG
// port.
func psgPlayNoteSequence() []byte {
	return assembleInline(
		&Instr{Op: MOVE, Size: Byte, Src: D(DReg(0)), Dst: Operand{Mode: ModeAbsLong, Abs: psgPortAddr}},
		&Instr{Op: MOVE, Size: Word, Src: D(DReg(1)), Dst: Operand{Mode: ModeAbsLong, Abs: psgPortAddr + 1}},
	)
}

// Memory-mapped register addresses for the curated hardware subset.
const (
	vdpCtrlAddr         = 0x00C00004
	vdpStatusAddr       = 0x00C00004
	vdpSpriteTableAddr  = 0x00FF0000
	psgPortAddr         = 0x00C00011
)

// assembleInline encodes a short, self-contained instruction sequence
// (containing no unresolved labels) directly to bytes. It panics on an
// encode error, since every sequence here is a compile-time constant of
// this package and a failure means a bug in this file, not user input.
func assembleInline(instrs ...*Instr) []byte {
	var out []byte
	for _, in := range instrs {
		b, err := Encode(in)
		if err != nil {
			panic("m68k: built-in intrinsic sequence failed to encode: " + err.Error())
		}
		out = append(out, b...)
	}
	return out
}
