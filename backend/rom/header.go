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

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Header field offsets within the 0x100-byte header region, relative to the header's own start at ROM offset 0x100.
const (
	offSystemID     = 0x00 // 16 bytes
	offCopyright    = 0x10 // 16 bytes
	offDomesticName = 0x20 // 48 bytes
	offOverseasName = 0x50 // 48 bytes
	offSerial       = 0x80 // 14 bytes
	offChecksum     = 0x8E // 2 bytes, relative to header start (abs 0x18E)
	offDeviceSupport = 0x90 // 16 bytes
	offROMStart     = 0xA0 // 4 bytes
	offROMEnd       = 0xA4 // 4 bytes
	offRAMStart     = 0xA8 // 4 bytes
	offRAMEnd       = 0xAC // 4 bytes
	offSRAMInfo     = 0xB0 // 16 bytes
	offNotes        = 0xC0 // 40 bytes

	headerSize = 0x100
)

// Header is the cartridge metadata block written at ROM offset 0x100
//. String fields are space-padded ASCII;
// the checksum field is filled in by the builder after the code/data
// region is known, not by Header itself.
type Header struct {
	SystemID       string
	Copyright      string
	DomesticTitle  string
	OverseasTitle  string
	Serial         string
	DeviceSupport  string
	RAMStart       uint32
	RAMEnd         uint32
	Notes          string

	// Checksum is populated only by DecodeHeader; Encode never writes it,
	// since the checksum is computed over the finished image by
	// checksum.UpdateChecksum after Build places the header.
	Checksum uint16
}

// Encode writes the fixed-format header. romStart/romEnd are the already
// computed ROM start/end addresses; the
// checksum bytes are left zero here and patched in later by
// checksum.UpdateChecksum once the full image exists.
func (h *Header) Encode(romStart, romEnd uint32) []byte {
	buf := make([]byte, headerSize)
	writeASCIIField(buf[offSystemID:], 16, h.SystemID)
	writeASCIIField(buf[offCopyright:], 16, h.Copyright)
	writeASCIIField(buf[offDomesticName:], 48, h.DomesticTitle)
	writeASCIIField(buf[offOverseasName:], 48, h.OverseasTitle)
	writeASCIIField(buf[offSerial:], 14, h.Serial)
	writeASCIIField(buf[offDeviceSupport:], 16, h.DeviceSupport)
	binary.BigEndian.PutUint32(buf[offROMStart:], romStart)
	binary.BigEndian.PutUint32(buf[offROMEnd:], romEnd)
	binary.BigEndian.PutUint32(buf[offRAMStart:], h.RAMStart)
	binary.BigEndian.PutUint32(buf[offRAMEnd:], h.RAMEnd)
	// offSRAMInfo is left zero-filled: "zero-filled when absent",
	// and SRAM cartridges are out of scope for this target.
	writeASCIIField(buf[offNotes:], 40, h.Notes)
	return buf
}

// writeASCIIField copies s into dst[:size], space-padding or truncating to
// fit, generalizing vm.Image's fixed-width ASCII encode/decode helpers to
// this header's space-padded convention.
func writeASCIIField(dst []byte, size int, s string) {
	for i := 0; i < size; i++ {
		dst[i] = ' '
	}
	copy(dst[:size], s)
}

// readASCIIField is the decode counterpart, trimming the trailing space
// padding writeASCIIField applies.
func readASCIIField(src []byte, size int) string {
	end := size
	for end > 0 && src[end-1] == ' ' {
		end--
	}
	return string(src[:end])
}

// DecodeHeader parses the header region back out of a built ROM image, for
// the -dump-header debug flag. rom must be at least headerSize bytes past
// the header's start offset (0x100).
func DecodeHeader(rom []byte) (Header, error) {
	if len(rom) < 0x100+headerSize {
		return Header{}, errors.New("rom: image too short to contain a header")
	}
	buf := rom[0x100:]
	return Header{
		SystemID:      readASCIIField(buf[offSystemID:], 16),
		Copyright:     readASCIIField(buf[offCopyright:], 16),
		DomesticTitle: readASCIIField(buf[offDomesticName:], 48),
		OverseasTitle: readASCIIField(buf[offOverseasName:], 48),
		Serial:        readASCIIField(buf[offSerial:], 14),
		DeviceSupport: readASCIIField(buf[offDeviceSupport:], 16),
		RAMStart:      binary.BigEndian.Uint32(buf[offRAMStart:]),
		RAMEnd:        binary.BigEndian.Uint32(buf[offRAMEnd:]),
		Notes:         readASCIIField(buf[offNotes:], 40),
		Checksum:      binary.BigEndian.Uint16(buf[offChecksum:]),
	}, nil
}
