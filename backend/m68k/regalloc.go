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

// allocatable data registers: d0/d1 stay reserved as codegen scratch
// (select.go always has somewhere to materialize an intermediate value),
// d2-d7 are available for virtual registers.
var allocatableData = []Reg{DReg(2), DReg(3), DReg(4), DReg(5), DReg(6), DReg(7)}

// allocatable address registers: a0/a1 are scratch (used for indexing and
// for the assembler's own temporaries), a6 is the frame pointer, a7 the
// stack pointer. a2-a5 hold virtual registers of pointer type.
var allocatableAddr = []Reg{AReg(2), AReg(3), AReg(4), AReg(5)}

// Allocation is the result of register allocation for one function: where
// each virtual register lives, and the frame layout needed to save/restore
// whatever callee-saved registers it used.
type Allocation struct {
	RegOf       map[ir.Reg]Reg
	SpillOffset map[ir.Reg]int32 // valid iff the register is not in RegOf
	FrameSize   int32            // local spill area, 4-byte aligned
	CalleeSaved []Reg            // physical registers used, in ascending order (for movem)
}

// interval is a virtual register's live range expressed as an instruction
// index in a flattened, per-block-then-in-order numbering of the function.
// This numbering is not full dataflow liveness: the IR has no loop
// back-edges through anything but ir.OpBr/ir.OpCondBr targets, so a single
// forward walk recording "last instruction index that reads or writes r"
// already gives a safe (if occasionally conservative across backward
// branches) upper bound on r's live range, which is the same tradeoff a
// single-pass linear scan always makes in exchange for never running a
// separate dataflow fixpoint.
type interval struct {
	reg        ir.Reg
	typ        ir.Type
	start, end int
}

// Allocate assigns physical M68K registers to fn's virtual registers,
// spilling to the stack frame when the allocatable banks run out. It is a
// single forward linear-scan pass over the flattened instruction stream,
// preferring one explicit pass over a slice to a general dataflow
// framework.
func Allocate(fn *ir.Function) *Allocation {
	order, index := flatten(fn)
	intervals := computeIntervals(fn, order, index)

	alloc := &Allocation{
		RegOf:       make(map[ir.Reg]Reg, len(intervals)),
		SpillOffset: make(map[ir.Reg]int32),
	}

	var freeData, freeAddr []Reg
	freeData = append(freeData, allocatableData...)
	freeAddr = append(freeAddr, allocatableAddr...)

	type active struct {
		iv  interval
		reg Reg
	}
	var activeList []active
	var spillSlots int32
	used := map[Reg]bool{}

	expireBefore := func(pos int) {
		kept := activeList[:0]
		for _, a := range activeList {
			if a.iv.end < pos {
				if a.reg.IsAddr() {
					freeAddr = append(freeAddr, a.reg)
				} else {
					freeData = append(freeData, a.reg)
				}
				continue
			}
			kept = append(kept, a)
		}
		activeList = kept
	}

	for _, iv := range intervals {
		expireBefore(iv.start)

		wantsAddr := iv.typ.Kind == ir.TPointer
		var pool *[]Reg
		if wantsAddr {
			pool = &freeAddr
		} else {
			pool = &freeData
		}

		if len(*pool) > 0 {
			r := (*pool)[0]
			*pool = (*pool)[1:]
			alloc.RegOf[iv.reg] = r
			used[r] = true
			activeList = append(activeList, active{iv: iv, reg: r})
			continue
		}

		// Out of physical registers of the right bank: spill to the frame.
		alloc.SpillOffset[iv.reg] = spillSlots
		spillSlots += 4
	}

	alloc.FrameSize = alignUp32(spillSlots, 4)
	for r := range used {
		alloc.CalleeSaved = append(alloc.CalleeSaved, r)
	}
	sortRegs(alloc.CalleeSaved)
	return alloc
}

func alignUp32(n, align int32) int32 {
	if n%align == 0 {
		return n
	}
	return n + (align - n%align)
}

func sortRegs(rs []Reg) {
	for i := 1; i < len(rs); i++ {
		for j := i; j > 0 && rs[j-1] > rs[j]; j-- {
			rs[j-1], rs[j] = rs[j], rs[j-1]
		}
	}
}

// flatten numbers every instruction in fn in block order, returning the flat instruction list and a
// parallel slice mapping (blockID) to the starting index of that block.
func flatten(fn *ir.Function) ([]*ir.Instruction, map[ir.BlockID]int) {
	var order []*ir.Instruction
	starts := make(map[ir.BlockID]int, len(fn.Blocks))
	for _, b := range fn.Blocks {
		starts[b.ID] = len(order)
		for i := range b.Instrs {
			order = append(order, &b.Instrs[i])
		}
	}
	return order, starts
}

// computeIntervals builds one interval per virtual register: start is the
// flattened index where it's defined (or 0 for parameters, live from
// function entry), end is the last flattened index where it's read. A
// branch target earlier than the reading instruction (a loop back-edge)
// widens end to the end of the function, since the conservative flattened
// order can't otherwise see that the value is still needed after the loop
// repeats.
func computeIntervals(fn *ir.Function, order []*ir.Instruction, starts map[ir.BlockID]int) []interval {
	byReg := make(map[ir.Reg]*interval)
	get := func(r ir.Reg, typ ir.Type, pos int) *interval {
		iv, ok := byReg[r]
		if !ok {
			iv = &interval{reg: r, typ: typ, start: pos, end: pos}
			byReg[r] = iv
		}
		return iv
	}

	for _, p := range fn.Params {
		get(p.Reg, p.Type, 0)
	}

	hasBackEdge := false
	for pos, in := range order {
		if in.HasResult {
			get(in.Result, in.Type, pos).start = pos
		}
		for _, a := range in.Args {
			if !a.IsConst && !a.IsLabel {
				iv := get(a.Reg, a.Type, pos)
				if pos > iv.end {
					iv.end = pos
				}
			}
		}
		if in.Op == ir.OpBr && starts[in.Target] <= pos {
			hasBackEdge = true
		}
		if in.Op == ir.OpCondBr && (starts[in.Target] <= pos || (in.HasElse && starts[in.ElseTarget] <= pos)) {
			hasBackEdge = true
		}
	}

	last := len(order) - 1
	result := make([]interval, 0, len(byReg))
	for _, iv := range byReg {
		if hasBackEdge && last > iv.end {
			iv.end = last
		}
		result = append(result, *iv)
	}
	// Sort by start so the linear scan above processes registers in
	// definition order, in a single forward pass.
	for i := 1; i < len(result); i++ {
		for j := i; j > 0 && result[j-1].start > result[j].start; j-- {
			result[j-1], result[j] = result[j], result[j-1]
		}
	}
	return result
}
