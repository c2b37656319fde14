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

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kidoz/smdc/driver"
)

func TestParseBackend(t *testing.T) {
	cases := map[string]driver.Backend{
		"m68k": driver.BackendM68K,
		"rom":  driver.BackendROM,
		"":     driver.BackendROM,
	}
	for name, want := range cases {
		got, err := parseBackend(name)
		if err != nil {
			t.Fatalf("parseBackend(%q): %v", name, err)
		}
		if got != want {
			t.Errorf("parseBackend(%q) = %v, want %v", name, got, want)
		}
	}
	if _, err := parseBackend("vm"); err == nil {
		t.Error("expected an error for an unknown backend name")
	}
}

func TestWriteOutputToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.bin")
	if err := writeOutput(path, []byte{1, 2, 3}); err != nil {
		t.Fatalf("writeOutput: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Errorf("unexpected file contents: %v", got)
	}
}
