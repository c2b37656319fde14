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

// Package driver wires the frontend registry, the M68K backend, and the ROM
// builder into a single pipeline: a "registry plus one Run entry point"
// shape split out so the registries are reusable outside the CLI.
package driver

import (
	"io"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/kidoz/smdc/backend/m68k"
	"github.com/kidoz/smdc/backend/rom"
	"github.com/kidoz/smdc/common"
	"github.com/kidoz/smdc/frontend"
	"github.com/kidoz/smdc/frontend/c"
	"github.com/kidoz/smdc/frontend/rust"
	"github.com/kidoz/smdc/ir"
)

// Backend selects how far the pipeline runs.
type Backend int

// Backends.
const (
	// BackendM68K stops after assembly and returns the raw code bytes,
	// useful for inspecting codegen without the ROM wrapper.
	BackendM68K Backend = iota
	// BackendROM runs the full pipeline through backend/rom.Build.
	BackendROM
)

// Options configures one Run invocation.
type Options struct {
	// InputPath names the source file on disk; its extension drives
	// frontend dispatch when FrontendName is empty.
	InputPath string
	Source    []byte

	// FrontendName overrides extension-based dispatch ("c" or "rust").
	FrontendName string
	Backend      Backend

	// Origin is the code region's load address; the ROM backend always uses backend/rom's fixed contentStart
	// regardless of this value, since the vector table and header occupy
	// the bytes below it unconditionally.
	Origin uint32

	// EntryFunction names the function the vector table's PC entry and,
	// for BackendM68K, the reported entry address point at.
	EntryFunction string

	// StackPointer seeds the ROM's initial SP.
	StackPointer uint32

	Header rom.Header

	Dump *frontend.DumpRequest
}

// Result is what a successful Run produces.
type Result struct {
	Module *ir.Module
	Code   []byte
	Symtab map[string]uint32
	ROM    []byte
}

// NewRegistry builds the frontend registry with both language frontends
// installed, keyed by name and by the extensions each frontend claims for
// extension-based dispatch.
func NewRegistry() *frontend.Registry {
	return frontend.NewRegistry(c.NewFrontend(), rust.NewFrontend())
}

// Run executes the full compile→select→assemble(→ROM) pipeline and maps
// any failure to the CLI's exit-code taxonomy via the returned error's
// concrete type: a *common.Error or common.ErrorList means a compilation
// error (exit 1); anything else returned from this function is a driver/
// configuration error (exit 2, see cmd/smdc).
func Run(opts Options) (res Result, err error) {
	// A panicking lowering or codegen bug surfaces as an ordinary
	// common.Error instead of crashing the process rather than taking
	// down the whole run.
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = common.NewSpanless(common.KindBackend, "internal compiler error: %v", e)
				return
			}
			err = common.NewSpanless(common.KindBackend, "internal compiler error: %v", r)
		}
	}()

	fe, ferr := selectFrontend(opts)
	if ferr != nil {
		return Result{}, ferr
	}

	files := common.NewFileSet()
	mod, cerr := fe.Compile(files, filepath.Base(opts.InputPath), opts.Source, opts.Dump)
	if cerr != nil {
		return Result{}, cerr
	}

	sdk := m68k.NewSDK()
	if verr := ir.Verify(mod, sdk.Resolvable); verr != nil {
		return Result{}, common.NewSpanless(common.KindCodegen, "%v", verr)
	}

	prog := &m68k.Program{}
	fnNames := make([]string, 0, len(mod.Functions))
	for _, fn := range mod.Functions {
		fnNames = append(fnNames, fn.Name)
	}
	sort.Strings(fnNames) // deterministic unit order regardless of lowering order
	byName := make(map[string]*ir.Function, len(mod.Functions))
	for _, fn := range mod.Functions {
		byName[fn.Name] = fn
	}
	for _, name := range fnNames {
		u, serr := m68k.SelectFunction(byName[name], sdk)
		if serr != nil {
			return Result{}, common.NewSpanless(common.KindBackend, "%v", serr)
		}
		prog.Units = append(prog.Units, u)
	}
	prog.Units = append(prog.Units, m68k.RuntimeStubs())
	prog.Units = append(prog.Units, dataUnit(mod))

	origin := opts.Origin
	if opts.Backend == BackendROM {
		// The ROM layout fixes code to start immediately after the vector
		// table and header; the
		// assembler's origin must agree or backend/rom.Build's entry-point
		// range check fails.
		origin = 0x200
	}
	code, symtab, aerr := m68k.Assemble(prog, origin)
	if aerr != nil {
		return Result{}, common.NewSpanless(common.KindBackend, "%v", aerr)
	}
	res = Result{Module: mod, Code: code, Symtab: symtab}

	if opts.Backend == BackendM68K {
		return res, nil
	}

	entry := opts.EntryFunction
	if entry == "" {
		entry = "main"
	}
	entryAddr, ok := symtab[entry]
	if !ok {
		return Result{}, common.NewSpanless(common.KindBackend, "entry function %q not found in assembled output", entry)
	}

	romBytes, berr := rom.Build(rom.Config{
		Code:   res.Code,
		Entry:  entryAddr,
		SP:     opts.StackPointer,
		Header: opts.Header,
	})
	if berr != nil {
		return Result{}, common.NewSpanless(common.KindBackend, "%v", berr)
	}
	res.ROM = romBytes
	return res, nil
}

func selectFrontend(opts Options) (frontend.Frontend, error) {
	reg := NewRegistry()
	if opts.FrontendName != "" {
		fe, ok := reg.ByName(opts.FrontendName)
		if !ok {
			return nil, errors.Errorf("driver: unknown frontend %q", opts.FrontendName)
		}
		return fe, nil
	}
	ext := filepath.Ext(opts.InputPath)
	fe, ok := reg.ByExtension(ext)
	if !ok {
		return nil, errors.Errorf("driver: no frontend registered for extension %q (pass --frontend explicitly)", ext)
	}
	return fe, nil
}

// dataUnit turns every module global into one labelled Line apiece so the
// assembler's existing label-layout pass (backend/m68k/assembler.go) places
// and resolves them exactly like a function's code: a global is addressed
// by ir.OpAddrOf through the same AbsLabel/symtab mechanism a jsr or lea
// target uses, so giving it a Unit of its own is all that's needed — no
// separate global-offset table.
func dataUnit(mod *ir.Module) m68k.Unit {
	u := m68k.Unit{Name: "__data"}
	for _, g := range mod.Globals {
		data := g.Init
		if data == nil {
			data = make([]byte, g.Size)
		}
		u.Lines = append(u.Lines, m68k.Line{Label: g.Name, Raw: data})
	}
	return u
}

// RenderDiagnostics writes err to w using common's diagnostic renderer,
// regardless of whether it is a single *common.Error, a common.ErrorList,
// or an opaque wrapped error from a later phase.
func RenderDiagnostics(w io.Writer, err error) {
	common.RenderErr(w, err)
}
