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

package ir

import "github.com/pkg/errors"

// Verify checks the invariants a well-formed module must satisfy:
//
//   - every basic block in every function ends with exactly one terminator;
//   - every branch target references a block in the same function;
//   - every virtual register used is a parameter or is defined earlier in
//     the function, by linear position in fn.Blocks (not per CFG path);
//   - every call target not defined in-module is resolvable, i.e. present in
//     the supplied intrinsic name set (checked by the caller via
//     resolvable, since the SDK registry lives in the backend package and
//     ir must not import it).
//
// Verify runs once, right after a frontend finishes lowering. An unresolved
// call target comes from the source program calling an unknown name; any
// other failure is a compiler bug in the lowerer, since a correct lowerer's
// output satisfies the remaining invariants by construction.
func Verify(m *Module, resolvable func(name string) bool) error {
	for _, f := range m.Functions {
		if err := verifyFunction(m, f, resolvable); err != nil {
			return errors.Wrapf(err, "function %q", f.Name)
		}
	}
	return nil
}

func verifyFunction(m *Module, f *Function, resolvable func(string) bool) error {
	blockIDs := make(map[BlockID]bool, len(f.Blocks))
	for _, b := range f.Blocks {
		blockIDs[b.ID] = true
	}

	defined := make(map[Reg]bool, f.NumRegs())
	for _, p := range f.Params {
		defined[p.Reg] = true
	}

	for _, b := range f.Blocks {
		if len(b.Instrs) == 0 {
			return errors.Errorf("block %q has no instructions", b.Name)
		}
		for idx := range b.Instrs {
			in := &b.Instrs[idx]
			isLast := idx == len(b.Instrs)-1
			if in.IsTerminator() != isLast {
				if in.IsTerminator() {
					return errors.Errorf("block %q: terminator before end of block", b.Name)
				}
				return errors.Errorf("block %q: missing terminator", b.Name)
			}
			for _, arg := range in.Args {
				if arg.IsConst || arg.IsLabel {
					continue
				}
				if !defined[arg.Reg] {
					return errors.Errorf("block %q: use of register r%d before definition", b.Name, arg.Reg)
				}
			}
			if in.Op == OpBr && !blockIDs[in.Target] {
				return errors.Errorf("block %q: branch to unknown block %d", b.Name, in.Target)
			}
			if in.Op == OpCondBr {
				if !blockIDs[in.Target] || (in.HasElse && !blockIDs[in.ElseTarget]) {
					return errors.Errorf("block %q: conditional branch to unknown block", b.Name)
				}
			}
			if in.Op == OpCall {
				if m.FindFunction(in.Callee) == nil && !resolvable(in.Callee) {
					return errors.Errorf("block %q: unresolved call target %q", b.Name, in.Callee)
				}
			}
			if in.HasResult {
				defined[in.Result] = true
			}
		}
	}
	if !blockIDs[f.Entry] {
		return errors.New("entry block not present in function")
	}
	return nil
}
