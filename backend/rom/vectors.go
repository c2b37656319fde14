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

// Package rom builds the final cartridge ROM image: the 256-byte vector
// table, the 256-byte cartridge header, the checksum, and the padded code
// and data region.
package rom

import "encoding/binary"

// numVectors is the vector table's entry count: 2 fixed entries (SP, PC)
// plus 62 remaining exception/interrupt vectors, each 4 bytes, filling the
// table's 0x100-byte extent exactly.
const numVectors = 64

// Vector table indices for the handlers this compiler names. Unnamed
// reserved slots are left at their default (the entry point) and are
// addressable only by index via Vectors.Set.
const (
	VecSP    = 0
	VecPC    = 1
	VecBus   = 2
	VecAddr  = 3
	VecIllegal = 4
	VecZeroDiv = 5
	VecCHK   = 6
	VecTrapV = 7
	VecPriv  = 8
	VecTrace = 9
	VecLineA = 10
	VecLineF = 11
	// indices 12-23: 12 reserved vectors.
	VecSpurious = 24
	// indices 25-31: auto-vectored interrupt levels 1-7 (level N at
	// VecAutoBase+N-1); level 2 is external, level 4 is HBlank, level 6 is
	// VBlank.
	VecAutoBase = 25
	VecHBlank   = VecAutoBase + 3 // level 4
	VecVBlank   = VecAutoBase + 5 // level 6
	// indices 32-47: 16 TRAP vectors.
	VecTrapBase = 32
	// indices 48-63: 16 reserved vectors.
)

// Vectors is the 64-entry, 32-bit exception vector table. Every entry not explicitly Set defaults to the entry
// point, matching the real CPU's behavior of treating an unconfigured
// handler as a jump back to reset.
type Vectors struct {
	entries [numVectors]uint32
}

// NewVectors creates a vector table with every slot defaulted to the entry
// point, then fills in the two mandatory slots.
func NewVectors(sp, entry uint32) *Vectors {
	v := &Vectors{}
	for i := range v.entries {
		v.entries[i] = entry
	}
	v.entries[VecSP] = sp
	v.entries[VecPC] = entry
	return v
}

// Set overrides one exception vector (e.g. VecVBlank) to a handler address.
func (v *Vectors) Set(index int, addr uint32) { v.entries[index] = addr }

// Encode writes the 0x100-byte vector table, big-endian.
func (v *Vectors) Encode() []byte {
	buf := make([]byte, numVectors*4)
	for i, addr := range v.entries {
		binary.BigEndian.PutUint32(buf[i*4:], addr)
	}
	return buf
}
