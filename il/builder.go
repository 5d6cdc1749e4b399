package il

// Builder appends instructions to one function, handing out fresh ValueIDs
// and BlockIDs. Feature injectors use a Builder instead of constructing
// Instruction literals directly, mirroring the source's "emitter" helpers:
// one constructor function per opcode rather than a polymorphic emitter
// object.
type Builder struct {
	fn      *Function
	block   *BasicBlock
	nextVal ValueID
	nextBB  BlockID

	// prog is set by NewBuilderForProgram; it lets Constant intern a
	// fresh literal into the owning Program's constant pool. Builders
	// created via NewBuilder (no Program in scope) cannot call Constant.
	prog *Program
}

// NewBuilder starts building into fn, appending to the block with id
// lastBlock (the typical case: continuing a function a codec just parsed,
// or a fresh function with one empty entry block).
func NewBuilder(fn *Function, lastBlock BlockID) *Builder {
	b := &Builder{fn: fn}
	b.block = fn.Block(lastBlock)
	for _, bb := range fn.Blocks {
		if bb.ID >= b.nextBB {
			b.nextBB = bb.ID + 1
		}
		for _, inst := range bb.Instructions {
			if inst.Result != InvalidValue && inst.Result >= b.nextVal {
				b.nextVal = inst.Result + 1
			}
		}
	}
	return b
}

// NewBuilderForProgram is identical to NewBuilder but also records prog,
// enabling Constant to intern literals as this function is built —
// needed by feature injectors (e.g. the texel allocator's addressing
// emitter, the export-stability checker) that must materialize a fresh
// integer or float literal mid-injection rather than only referencing
// values the original binary already declared.
func NewBuilderForProgram(prog *Program, fn *Function, lastBlock BlockID) *Builder {
	b := NewBuilder(fn, lastBlock)
	b.prog = prog
	return b
}

// Constant interns an integer literal into the owning Program's constant
// pool and emits OpKernelValue to materialize it as a ValueID usable by
// later instructions — the IL equivalent of SPIR-V's OpConstant / DXIL's
// immediate operands, exposed as one instruction so both codecs re-emit
// it the same way. Panics if this Builder was not created with
// NewBuilderForProgram (a programming error in the caller, not a
// malformed-input condition).
func (b *Builder) Constant(t TypeID, intVal int64, src Source) ValueID {
	if b.prog == nil {
		panic("il: Constant called on a Builder with no Program (use NewBuilderForProgram)")
	}
	cid := b.prog.Constants.Add(Constant{Kind: ConstInt, Type: t, Int: intVal})
	v := b.freshValue()
	return b.emit(Instruction{Op: OpKernelValue, Result: v, Type: t, Literal: cid, Source: src})
}

// FPConstant is Constant's floating-point counterpart: it interns an
// fp64-valued literal typed t (normally a 32-bit fp type) and emits
// OpKernelValue to materialize it, the way a feature injector builds the
// +Inf/-Inf comparison constants an export-stability check needs. Panics
// under the same condition as Constant.
func (b *Builder) FPConstant(t TypeID, fpVal float64, src Source) ValueID {
	if b.prog == nil {
		panic("il: FPConstant called on a Builder with no Program (use NewBuilderForProgram)")
	}
	cid := b.prog.Constants.Add(Constant{Kind: ConstFP, Type: t, FP: fpVal})
	v := b.freshValue()
	return b.emit(Instruction{Op: OpKernelValue, Result: v, Type: t, Literal: cid, Source: src})
}

func (b *Builder) emit(inst Instruction) ValueID {
	if inst.Result == 0 {
		inst.Result = InvalidValue
	}
	b.block.Instructions = append(b.block.Instructions, inst)
	return inst.Result
}

func (b *Builder) freshValue() ValueID {
	if b.nextVal == 0 {
		b.nextVal = 1 // emit treats a Result of 0 as "no result"
	}
	v := b.nextVal
	b.nextVal++
	return v
}

// NewBlock appends and switches to a fresh empty basic block, returning
// its ID so the caller can branch to it.
func (b *Builder) NewBlock() BlockID {
	id := b.nextBB
	b.nextBB++
	b.fn.Blocks = append(b.fn.Blocks, BasicBlock{ID: id})
	b.block = &b.fn.Blocks[len(b.fn.Blocks)-1]
	return id
}

// SetBlock switches insertion to an existing block.
func (b *Builder) SetBlock(id BlockID) {
	if bb := b.fn.Block(id); bb != nil {
		b.block = bb
	}
}

// Load emits OpLoad from ptr, typed t.
func (b *Builder) Load(ptr ValueID, t TypeID, src Source) ValueID {
	v := b.freshValue()
	return b.emit(Instruction{Op: OpLoad, Result: v, Type: t, Operands: []ValueID{ptr}, Source: src})
}

// Store emits OpStore of val into ptr.
func (b *Builder) Store(ptr, val ValueID, src Source) {
	b.emit(Instruction{Op: OpStore, Operands: []ValueID{ptr, val}, Source: src})
}

// AddressChain emits OpAddressChain computing a pointer from base+indices
// (the IL equivalent of GEP), typed base.
func (b *Builder) AddressChain(base TypeID, ptr ValueID, indices []ValueID, src Source) ValueID {
	v := b.freshValue()
	operands := append([]ValueID{ptr}, indices...)
	return b.emit(Instruction{Op: OpAddressChain, Result: v, Type: base, Operands: operands, Source: src})
}

// Binary emits a two-operand arithmetic/bitwise/comparison op.
func (b *Builder) Binary(op OpCode, lhs, rhs ValueID, t TypeID, src Source) ValueID {
	v := b.freshValue()
	return b.emit(Instruction{Op: op, Result: v, Type: t, Operands: []ValueID{lhs, rhs}, Source: src})
}

// AtomicOr emits OpAtomicOr at ptr with the given mask — the instruction
// the texel allocator's write path injects to set an initialization bit.
func (b *Builder) AtomicOr(ptr, mask ValueID, t TypeID, src Source) ValueID {
	v := b.freshValue()
	return b.emit(Instruction{Op: OpAtomicOr, Result: v, Type: t, Operands: []ValueID{ptr, mask}, Source: src})
}

// BranchConditional emits a conditional branch to trueBlock or falseBlock.
func (b *Builder) BranchConditional(cond ValueID, trueBlock, falseBlock BlockID, src Source) {
	b.emit(Instruction{Op: OpBranchConditional, Operands: []ValueID{cond}, Targets: []BlockID{trueBlock, falseBlock}, Source: src})
}

// Branch emits an unconditional branch to target.
func (b *Builder) Branch(target BlockID, src Source) {
	b.emit(Instruction{Op: OpBranch, Targets: []BlockID{target}, Source: src})
}

// Export emits OpExport of values tagged with exportID — the instruction
// a feature injector appends to push a diagnostic record into the export
// stream (spec §4.4).
func (b *Builder) Export(exportID uint32, values []ValueID, src Source) {
	b.emit(Instruction{Op: OpExport, ExportID: exportID, Operands: values, Source: src})
}

// Call emits a call to fn with args, typed t (TypeVoid if no result).
func (b *Builder) Call(fn ValueID, args []ValueID, t TypeID, src Source) ValueID {
	v := b.freshValue()
	operands := append([]ValueID{fn}, args...)
	return b.emit(Instruction{Op: OpCall, Result: v, Type: t, Operands: operands, Source: src})
}
