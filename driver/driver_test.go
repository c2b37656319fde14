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

package driver_test

import (
	"testing"

	"github.com/kidoz/smdc/backend/rom"
	"github.com/kidoz/smdc/common"
	"github.com/kidoz/smdc/driver"
)

func TestRunDispatchesFrontendByExtension(t *testing.T) {
	res, err := driver.Run(driver.Options{
		InputPath: "prog.c",
		Source:    []byte("int main() { return 0; }"),
		Backend:   driver.BackendM68K,
		Origin:    0x200,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Code) == 0 {
		t.Fatal("expected non-empty assembled code")
	}
	if _, ok := res.Symtab["main"]; !ok {
		t.Fatal("expected a symbol table entry for main")
	}
}

func TestRunDispatchesRustByExtension(t *testing.T) {
	res, err := driver.Run(driver.Options{
		InputPath: "prog.rs",
		Source:    []byte("fn main() -> i32 { 0 }"),
		Backend:   driver.BackendM68K,
		Origin:    0x200,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Code) == 0 {
		t.Fatal("expected non-empty assembled code")
	}
}

func TestRunBuildsFullROM(t *testing.T) {
	res, err := driver.Run(driver.Options{
		InputPath:     "prog.c",
		Source:        []byte("int main() { return 0; }"),
		Backend:       driver.BackendROM,
		Origin:        0x200,
		EntryFunction: "main",
		StackPointer:  0x01000000,
		Header:        rom.Header{SystemID: "TEST"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.ROM) < 0x10000 {
		t.Fatalf("ROM too small: %d bytes", len(res.ROM))
	}
	if !rom.VerifyChecksum(res.ROM) {
		t.Fatal("ROM checksum does not verify")
	}
}

func TestRunRejectsUnknownExtension(t *testing.T) {
	_, err := driver.Run(driver.Options{
		InputPath: "prog.txt",
		Source:    []byte("whatever"),
		Backend:   driver.BackendM68K,
	})
	if err == nil {
		t.Fatal("expected an error for an unrecognized extension")
	}
}

func TestRunReturnsCompileErrorAsErrorList(t *testing.T) {
	_, err := driver.Run(driver.Options{
		InputPath: "prog.c",
		Source:    []byte("int main() { return 0 }"),
		Backend:   driver.BackendM68K,
		Origin:    0x200,
	})
	if err == nil {
		t.Fatal("expected a parse error")
	}
	if _, ok := common.AsErrorList(err); !ok {
		if _, ok := err.(*common.Error); !ok {
			t.Fatalf("expected a *common.Error or common.ErrorList, got %T", err)
		}
	}
}
