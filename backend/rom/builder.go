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

package rom

import "github.com/pkg/errors"

// minROMSize is the 64 KiB floor step 2 clamps to.
const minROMSize = 0x10000

// contentStart is the ROM offset code and data are written at.
const contentStart = 0x200

// Config is everything Build needs beyond the assembled code/data bytes:
// the layout inputs names explicitly.
type Config struct {
	Code  []byte
	Data  []byte
	Entry uint32
	SP    uint32

	// VectorOverrides maps a Vectors index (VecHBlank, VecVBlank, ...) to a
	// handler address; any vector not present here defaults to Entry.
	VectorOverrides map[int]uint32

	Header Header
}

// Build lays out a complete ROM image: vector table at
// [0x000,0x100), header at [0x100,0x200) with the ROM-end field patched to
// rom_size-1, then code, then data, padded with 0xFF to a power-of-two size
// no smaller than 64 KiB, with the cartridge checksum computed last and
// stored at 0x18E.
func Build(cfg Config) ([]byte, error) {
	contentSize := len(cfg.Code) + len(cfg.Data)
	romSize := nextPowerOfTwo(contentStart + contentSize)
	if romSize < minROMSize {
		romSize = minROMSize
	}

	if len(cfg.Code) == 0 {
		return nil, errors.New("rom: code region is empty")
	}
	if int(cfg.Entry) < contentStart || int(cfg.Entry) >= contentStart+len(cfg.Code) {
		return nil, errors.Errorf("rom: entry point 0x%08X does not fall inside the code region [0x%X, 0x%X)", cfg.Entry, contentStart, contentStart+len(cfg.Code))
	}

	r := make([]byte, romSize)
	for i := range r {
		r[i] = 0xFF
	}

	vecs := NewVectors(cfg.SP, cfg.Entry)
	for idx, addr := range cfg.VectorOverrides {
		vecs.Set(idx, addr)
	}
	copy(r[0x000:0x100], vecs.Encode())

	hdr := cfg.Header.Encode(0, uint32(romSize-1))
	copy(r[0x100:0x200], hdr)

	copy(r[contentStart:], cfg.Code)
	copy(r[contentStart+len(cfg.Code):], cfg.Data)

	UpdateChecksum(r)
	return r, nil
}

// nextPowerOfTwo returns the smallest power of two >= n.
func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
