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

// Package frontend declares the capability every language frontend
// implements — neither frontend knows about the other — and a small
// name-keyed registry the driver dispatches through.
package frontend

import (
	"io"

	"github.com/kidoz/smdc/common"
	"github.com/kidoz/smdc/ir"
)

// DumpRequest controls which intermediate artifacts a Compile call should
// render to Out as it goes,
// so the driver's CLI flags translate directly into frontend behavior
// without the frontend depending on the flag package itself.
type DumpRequest struct {
	Tokens bool
	AST    bool
	MIR    bool
	Out    io.Writer
}

// Frontend turns source text into an IR module. Implementations own their
// own lexer/parser/sema/lowering pipeline; Compile is the only entry point
// the driver calls.
type Frontend interface {
	// Name identifies the frontend for --frontend=<name> and error
	// messages ("c", "rust").
	Name() string

	// Extensions lists the file extensions (including the leading dot)
	// this frontend claims for extension-based dispatch.
	Extensions() []string

	// Compile lexes, parses, analyzes and lowers src (registered in files
	// under name) into an IR module. dump, if non-nil, requests
	// intermediate artifact rendering. Errors are returned as
	// *common.Error or common.ErrorList.
	Compile(files *common.FileSet, name string, src []byte, dump *DumpRequest) (*ir.Module, error)
}

// Registry maps frontend names and file extensions to their Frontend,
// built once at startup the same way backend/m68k.SDK is: a constructor
// populates a fixed map, never mutated after.
type Registry struct {
	byName extmap
	byExt  extmap
}

type extmap map[string]Frontend

// NewRegistry builds a registry from the given frontends.
func NewRegistry(fes ...Frontend) *Registry {
	r := &Registry{byName: make(extmap), byExt: make(extmap)}
	for _, fe := range fes {
		r.byName[fe.Name()] = fe
		for _, ext := range fe.Extensions() {
			r.byExt[ext] = fe
		}
	}
	return r
}

// ByName looks up a frontend by its --frontend= value.
func (r *Registry) ByName(name string) (Frontend, bool) {
	fe, ok := r.byName[name]
	return fe, ok
}

// ByExtension looks up a frontend by file extension, for when --frontend
// is not given.
func (r *Registry) ByExtension(ext string) (Frontend, bool) {
	fe, ok := r.byExt[ext]
	return fe, ok
}
