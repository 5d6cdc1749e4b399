package il

// OpCode tags the operation an Instruction performs. The set mirrors
// spec §4.1's IL model: memory, control flow, arithmetic/bitwise/
// comparison, resource access, atomics, calls, and the export op that
// feature injectors use to emit diagnostic records.
type OpCode uint8

const (
	OpNop OpCode = iota

	// Memory
	OpLoad
	OpStore
	OpAddressChain

	// Aggregate
	OpExtract
	OpInsert

	// Control flow
	OpBranch
	OpBranchConditional
	OpSwitch
	OpReturn
	OpPhi

	// Arithmetic / bitwise / comparison
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpNot
	OpNeg
	OpCompareEQ
	OpCompareNE
	OpCompareLT
	OpCompareLE
	OpCompareGT
	OpCompareGE
	OpConvert

	// Resource access
	OpResourceSample
	OpResourceLoad
	OpResourceStore

	// Atomics
	OpAtomicLoad
	OpAtomicStore
	OpAtomicAdd
	OpAtomicOr
	OpAtomicAnd
	OpAtomicExchange
	OpAtomicCompareExchange

	// Calls
	OpCall
	OpKernelValue

	// Diagnostics
	OpExport

	// OpOpaque is a passthrough instruction this codec does not
	// interpret; its original bytes/words live in Raw so re-emitting an
	// untransformed container reproduces them exactly.
	OpOpaque
)

// Source points an instruction back to the word/byte offset in the
// original binary it was parsed from, so a detected fault can be
// symbolized to (shader, basic block, instruction index) without
// re-parsing.
type Source struct {
	CodeOffset uint32
}

// ValueID identifies the SSA value an instruction produces, if any.
// Instructions with no result (Store, Branch, ...) use InvalidValue.
type ValueID uint32

// InvalidValue marks an instruction with no result.
const InvalidValue ValueID = 0xFFFFFFFF

// Instruction is a tagged union: Op selects which payload fields are
// meaningful. This replaces the source's polymorphic Instruction +
// per-opcode downcast hierarchy with a flat struct and a switch,
// per the Design Notes' "deep inheritance" guidance.
type Instruction struct {
	Op     OpCode
	Result ValueID
	Type   TypeID
	Source Source

	// Operands, meaning depends on Op:
	//   OpLoad/OpStore/OpAddressChain: Operands[0] = pointer
	//   OpBranch: no operands; Targets[0] = target block
	//   OpBranchConditional: Operands[0] = cond; Targets[0] = true block, Targets[1] = false block
	//   OpSwitch: Operands[0] = selector, Operands[1:] = case values, Targets = case/default blocks
	//   binary arithmetic/bitwise/comparison: Operands[0], Operands[1]
	//   OpCall: Operands[0] = function, Operands[1:] = args
	//   OpExport: Operands = exported values (the export id is in ExportID)
	//   OpResourceStore: Operands[0] = resource, Operands[1] = value
	Operands []ValueID
	Targets  []BlockID
	Literal  ConstantID // OpSwitch case values, OpKernelValue literal operand

	// ExportID distinguishes independently-flushed export streams
	// (spec §4.4's "one StreamInfo per export ID").
	ExportID uint32

	// RawOp and Raw carry an instruction this codec does not semantically
	// model, preserved verbatim for re-emission. RawOp is the original
	// format-specific opcode (interpreted by whichever codec produced
	// it); Raw is that opcode's full operand word/byte list. Only
	// meaningful when Op == OpOpaque.
	RawOp uint32
	Raw   []uint32
}

// BlockID identifies a basic block within one function.
type BlockID uint32

// BasicBlock is an ordered instruction list addressed by ID.
type BasicBlock struct {
	ID           BlockID
	Instructions []Instruction
}

// Parameter is a function parameter declaration.
type Parameter struct {
	Type TypeID
	Name string
}

// Variable is a function-local variable declaration (an alloca-equivalent).
type Variable struct {
	Type TypeID
	Name string
}

// Function holds one compiled entry point or callable.
type Function struct {
	Name       string
	Type       TypeID // TypeFunction
	Params     []Parameter
	Locals     []Variable
	Blocks     []BasicBlock
	EntryPoint bool
}

// Block returns a pointer to the basic block with the given ID, or nil.
func (f *Function) Block(id BlockID) *BasicBlock {
	for i := range f.Blocks {
		if f.Blocks[i].ID == id {
			return &f.Blocks[i]
		}
	}
	return nil
}

// Program is one parsed (or under-construction) shader: the full
// type/constant pool plus the function list. Exactly one Program backs
// one ShaderModule's lazily-parsed IL.
type Program struct {
	Types     *TypeMap
	Constants *ConstantMap
	Functions []Function
}

// NewProgram returns an empty, ready-to-build Program.
func NewProgram() *Program {
	return &Program{
		Types:     NewTypeMap(),
		Constants: NewConstantMap(),
	}
}

// EntryPoints returns the subset of Functions marked as shader entry points.
func (p *Program) EntryPoints() []*Function {
	var out []*Function
	for i := range p.Functions {
		if p.Functions[i].EntryPoint {
			out = append(out, &p.Functions[i])
		}
	}
	return out
}
