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

package rom_test

import (
	"encoding/binary"
	"math/bits"
	"testing"

	"github.com/kidoz/smdc/backend/rom"
)

func buildMinimal(t *testing.T, code []byte) []byte {
	t.Helper()
	r, err := rom.Build(rom.Config{
		Code:  code,
		Entry: 0x200,
		SP:    0x00FFE000,
		Header: rom.Header{
			SystemID:      "SMDC",
			DomesticTitle: "TEST",
		},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return r
}

func TestBuildMinimalROMInvariants(t *testing.T) {
	r := buildMinimal(t, []byte{0x70, 0x00, 0x4E, 0x75}) // moveq #0,d0 ; rts

	if len(r) != 0x10000 {
		t.Errorf("len(R) = 0x%X, want 0x10000", len(r))
	}
	if bits.OnesCount(uint(len(r))) != 1 {
		t.Errorf("len(R) = 0x%X is not a power of two", len(r))
	}
	if got := binary.BigEndian.Uint32(r[0:4]); got != 0x00FFE000 {
		t.Errorf("SP = 0x%08X, want 0x00FFE000", got)
	}
	if got := binary.BigEndian.Uint32(r[4:8]); got != 0x200 {
		t.Errorf("PC = 0x%08X, want 0x200", got)
	}
	if !rom.VerifyChecksum(r) {
		t.Error("VerifyChecksum failed on freshly built ROM")
	}
	if got := binary.BigEndian.Uint32(r[0x1A4:0x1A8]); got != uint32(len(r)-1) {
		t.Errorf("ROM end field = 0x%08X, want 0x%08X", got, len(r)-1)
	}
	if r[0x200] != 0x70 || r[0x201] != 0x00 || r[0x202] != 0x4E || r[0x203] != 0x75 {
		t.Errorf("code region = % X, want 70 00 4E 75", r[0x200:0x204])
	}
}

func TestChecksumKnownValue(t *testing.T) {
	r := make([]byte, 0x10000)
	for i := range r {
		r[i] = 0xFF
	}
	content := r[0x200:]
	for i := range content {
		content[i] = 0
	}
	binary.BigEndian.PutUint32(content[0:4], 0x12345678)
	rom.UpdateChecksum(r)
	got := binary.BigEndian.Uint16(r[0x18E : 0x18E+2])
	if got != 0x68AC {
		t.Errorf("checksum = 0x%04X, want 0x68AC", got)
	}
}

func TestChecksumIdempotent(t *testing.T) {
	r := buildMinimal(t, []byte{0x70, 0x00, 0x4E, 0x75})
	before := append([]byte(nil), r[0x18E:0x190]...)
	rom.UpdateChecksum(r)
	after := r[0x18E:0x190]
	if string(before) != string(after) {
		t.Error("UpdateChecksum changed the checksum field on a second call")
	}
}

func TestChecksumRoundTrip(t *testing.T) {
	r := buildMinimal(t, make([]byte, 64))
	base := rom.CalculateChecksum(r)

	content := r[0x200:]
	orig := binary.BigEndian.Uint16(content[10:12])
	binary.BigEndian.PutUint16(content[10:12], orig+0x4321)
	withW := rom.CalculateChecksum(r)

	if diff := uint16(withW - base); diff != 0x4321 {
		t.Errorf("checksum delta = 0x%04X, want 0x4321", diff)
	}
}

func TestBuildPowerOfTwoSizingAtExactBoundary(t *testing.T) {
	r := buildMinimal(t, make([]byte, 0x10000-0x200))
	if len(r) != 0x10000 {
		t.Errorf("len(R) = 0x%X, want 0x10000 (content exactly fills the 64 KiB floor)", len(r))
	}
}

func TestDecodeHeaderRoundTrip(t *testing.T) {
	r := buildMinimal(t, []byte{0x70, 0x00, 0x4E, 0x75})
	hdr, err := rom.DecodeHeader(r)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if hdr.SystemID != "SMDC" {
		t.Errorf("SystemID = %q, want %q", hdr.SystemID, "SMDC")
	}
	if hdr.DomesticTitle != "TEST" {
		t.Errorf("DomesticTitle = %q, want %q", hdr.DomesticTitle, "TEST")
	}
	want := binary.BigEndian.Uint16(r[0x18E:0x190])
	if hdr.Checksum != want {
		t.Errorf("Checksum = 0x%04X, want 0x%04X", hdr.Checksum, want)
	}
}

func TestDecodeHeaderTooShort(t *testing.T) {
	if _, err := rom.DecodeHeader(make([]byte, 0x10)); err == nil {
		t.Fatal("expected error decoding a header from a truncated image")
	}
}

func TestBuildEntryOutsideCodeRegionFails(t *testing.T) {
	_, err := rom.Build(rom.Config{
		Code:  []byte{0x4E, 0x75},
		Entry: 0x9999,
		SP:    0x00FFE000,
	})
	if err == nil {
		t.Fatal("expected error for out-of-range entry point")
	}
}
