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

// Package ir implements the shared three-address intermediate
// representation both frontends lower into. It is the only cross-frontend
// contract in the compiler: neither frontend knows about the
// other, and the M68K backend knows nothing about either frontend, only
// about ir.Module.
package ir

import "github.com/kidoz/smdc/common"

// TypeKind distinguishes the handful of shapes in the IR's neutral type
// universe.
type TypeKind int

// Type kinds.
const (
	TInt TypeKind = iota
	TPointer
	TVoid
	TRecord
)

// Type is a value in the IR's neutral type universe. Integers carry an
// explicit bit width and signedness; pointers and void carry neither;
// records are represented by a RecordLayout (see layout.go).
type Type struct {
	Kind   TypeKind
	Width  int // bits, for TInt: 8, 16 or 32
	Signed bool
	Record *RecordLayout // non-nil iff Kind == TRecord
}

// Common scalar types, interned once so equality can be done by field
// comparison (there is no separate interning arena: the type universe is
// small and flat; the frontends' Type values in frontend/*/ast.go are plain
// structs without one as well).
var (
	I8  = Type{Kind: TInt, Width: 8, Signed: true}
	U8  = Type{Kind: TInt, Width: 8, Signed: false}
	I16 = Type{Kind: TInt, Width: 16, Signed: true}
	U16 = Type{Kind: TInt, Width: 16, Signed: false}
	I32 = Type{Kind: TInt, Width: 32, Signed: true}
	U32 = Type{Kind: TInt, Width: 32, Signed: false}
	Ptr = Type{Kind: TPointer, Width: 32}
	Void = Type{Kind: TVoid}
)

// Size returns the type's size in bytes, as used for load/store width
// selection and frame layout.
func (t Type) Size() int {
	switch t.Kind {
	case TInt:
		return t.Width / 8
	case TPointer:
		return 4
	case TVoid:
		return 0
	case TRecord:
		return t.Record.Size
	}
	return 0
}

// Align returns the type's natural alignment in bytes: each field aligns
// to its own size.
func (t Type) Align() int {
	switch t.Kind {
	case TInt:
		return t.Width / 8
	case TPointer:
		return 4
	case TRecord:
		return t.Record.Align
	}
	return 1
}

// Reg identifies a function-local virtual register. Register ids are small
// integers assigned in creation order,
// never derived from pointer identity.
type Reg int

// BlockID identifies a basic block within a function, also assigned in
// creation order.
type BlockID int

// Value is an instruction operand: a compile-time constant, a virtual
// register, or a symbolic label (a function or global data name).
type Value struct {
	IsConst bool
	IsLabel bool
	Const   int64
	Reg     Reg
	Label   string
	Type    Type
}

// ConstValue builds a constant operand of the given type.
func ConstValue(v int64, t Type) Value { return Value{IsConst: true, Const: v, Type: t} }

// RegValue builds a register operand of the given type.
func RegValue(r Reg, t Type) Value { return Value{Reg: r, Type: t} }

// LabelValue builds a symbolic label operand (function or global name).
func LabelValue(name string, t Type) Value { return Value{IsLabel: true, Label: name, Type: t} }

// Op tags the kind of a three-address Instruction: integer arithmetic,
// comparison, move, load/store, address-of-symbol, call, branch/condbranch,
// return.
type Op int

// Opcodes.
const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpSDiv
	OpUDiv
	OpSRem
	OpURem
	OpAnd
	OpOr
	OpXor
	OpShl
	OpLShr
	OpAShr
	OpCmp // result is 0/1, Pred selects the predicate
	OpMove
	OpLoad
	OpStore
	OpAddrOf
	OpCall
	OpBr     // unconditional branch, Target set
	OpCondBr // conditional branch: Args[0] is the condition, Target/ElseTarget set
	OpRet
)

// Pred is a comparison predicate for OpCmp/OpCondBr-after-OpCmp sequences.
type Pred int

// Predicates, named so the M68K selector's condition-code table maps onto
// them one for one.
const (
	PredEQ Pred = iota
	PredNE
	PredSLT
	PredSLE
	PredSGT
	PredSGE
	PredULT
	PredULE
	PredUGT
	PredUGE
)

// Instruction is a single three-address IR instruction. Every instruction
// records the types of its operands and result so that widths survive into
// codegen untouched.
type Instruction struct {
	Op   Op
	Pred Pred // valid iff Op == OpCmp

	// Result is the defined register, if any (not set for Store/Br/CondBr/
	// Ret, and optional for Call).
	HasResult bool
	Result    Reg
	Type      Type // result type, or the operation's working type for Store

	Args []Value // operands, in opcode-specific order

	// Call-specific.
	Callee string

	// Control-flow-terminator-specific.
	Target     BlockID
	ElseTarget BlockID
	HasElse    bool

	Span common.Span // zero Span if untraceable
}

// IsTerminator reports whether this instruction may end a basic block.
func (in *Instruction) IsTerminator() bool {
	switch in.Op {
	case OpBr, OpCondBr, OpRet:
		return true
	default:
		return false
	}
}

// BasicBlock is a straight-line run of instructions ending in exactly one
// terminator.
type BasicBlock struct {
	ID   BlockID
	Name string
	Instrs []Instruction
}

// Terminator returns the block's terminating instruction, or nil if the
// block has not been terminated yet (only valid during construction).
func (b *BasicBlock) Terminator() *Instruction {
	if len(b.Instrs) == 0 {
		return nil
	}
	last := &b.Instrs[len(b.Instrs)-1]
	if last.IsTerminator() {
		return last
	}
	return nil
}

// Param is a function parameter: a name (for debugging/disassembly) and a
// register that holds its value on entry.
type Param struct {
	Name string
	Reg  Reg
	Type Type
}

// Function is a named, typed sequence of basic blocks plus the register
// numbering for its locals. Basic blocks are stored in creation order, as
// NewBlock appends them (entry first); nothing reorders them afterwards.
type Function struct {
	Name       string
	Params     []Param
	ReturnType Type
	Blocks     []*BasicBlock
	Entry      BlockID

	numRegs   int
	numBlocks int
}

// NewFunction creates an empty function. Use Builder (see build.go) to
// populate it; Function itself only owns storage and id counters.
func NewFunction(name string, params []Param, ret Type) *Function {
	return &Function{Name: name, Params: params, ReturnType: ret}
}

// NewReg allocates the next virtual register id for this function.
func (f *Function) NewReg() Reg {
	r := Reg(f.numRegs)
	f.numRegs++
	return r
}

// NumRegs returns how many virtual registers have been allocated so far.
func (f *Function) NumRegs() int { return f.numRegs }

// NewBlock appends a new, empty basic block and returns it. The first block
// ever created becomes the function's Entry.
func (f *Function) NewBlock(name string) *BasicBlock {
	b := &BasicBlock{ID: BlockID(f.numBlocks), Name: name}
	f.numBlocks++
	if len(f.Blocks) == 0 {
		f.Entry = b.ID
	}
	f.Blocks = append(f.Blocks, b)
	return b
}

// Block looks up a basic block by id.
func (f *Function) Block(id BlockID) *BasicBlock {
	for _, b := range f.Blocks {
		if b.ID == id {
			return b
		}
	}
	return nil
}

// GlobalData is a labelled, typed byte blob with optional initial contents.
// A nil Init means the data is zero-initialized (e.g. BSS-like globals);
// non-nil Init must have length == Size.
type GlobalData struct {
	Name string
	Size int
	Init []byte
}

// Module is an ordered collection of functions and global data items, plus a
// name-uniqueness symbol table.
type Module struct {
	Functions []*Function
	Globals   []*GlobalData

	symbols map[string]bool
}

// NewModule creates an empty module.
func NewModule() *Module {
	return &Module{symbols: make(map[string]bool)}
}

// Declare reserves a name in the module's symbol table. It reports false if
// the name is already taken, per the "names are unique within a module"
// invariant.
func (m *Module) Declare(name string) bool {
	if m.symbols[name] {
		return false
	}
	m.symbols[name] = true
	return true
}

// HasSymbol reports whether name is declared in this module (a function or a
// global).
func (m *Module) HasSymbol(name string) bool {
	return m.symbols[name]
}

// AddFunction appends a function to the module. The caller must have
// Declare'd its name first.
func (m *Module) AddFunction(f *Function) {
	m.Functions = append(m.Functions, f)
}

// AddGlobal appends a global data item to the module. The caller must have
// Declare'd its name first.
func (m *Module) AddGlobal(g *GlobalData) {
	m.Globals = append(m.Globals, g)
}

// FindFunction looks up a function by name within the module.
func (m *Module) FindFunction(name string) *Function {
	for _, f := range m.Functions {
		if f.Name == name {
			return f
		}
	}
	return nil
}
