package spirv

import "github.com/gpureshape/layer/il"

// Program lazily translates the parsed raw instruction stream into an
// il.Program. Translating shader modules that are never touched by a
// feature injector is avoided entirely: the first call does the work and
// caches it; Dirty() only becomes true once a caller installs a new
// program via SetProgram.
func (c *Container) Program() (*il.Program, error) {
	if c.program != nil {
		return c.program, nil
	}

	p := il.NewProgram()
	fn := il.Function{Name: "module", EntryPoint: true}

	block := il.BasicBlock{ID: 0}
	for _, r := range c.raw {
		if r.Op == OpLabel && len(r.Operand) == 1 {
			// Start a fresh block; flush the one in progress first.
			fn.Blocks = append(fn.Blocks, block)
			block = il.BasicBlock{ID: il.BlockID(r.Operand[0])}
			continue
		}
		block.Instructions = append(block.Instructions, translate(r))
	}
	fn.Blocks = append(fn.Blocks, block)

	p.Functions = append(p.Functions, fn)
	c.program = p
	return p, nil
}

// translate maps one raw SPIR-V instruction to its il.Instruction
// equivalent for the opcode subset this codec understands, or wraps it as
// an OpOpaque passthrough otherwise.
func translate(r rawInstruction) il.Instruction {
	src := il.Source{CodeOffset: uint32(r.Offset * 4)}

	switch r.Op {
	case OpLoad:
		// %resultType %result %pointer [%memoryAccess...]
		if len(r.Operand) >= 3 {
			return il.Instruction{Op: il.OpLoad, Type: il.TypeID(r.Operand[0]), Result: il.ValueID(r.Operand[1]),
				Operands: []il.ValueID{il.ValueID(r.Operand[2])}, Source: src}
		}
	case OpStore:
		if len(r.Operand) >= 2 {
			return il.Instruction{Op: il.OpStore, Result: il.InvalidValue,
				Operands: []il.ValueID{il.ValueID(r.Operand[0]), il.ValueID(r.Operand[1])}, Source: src}
		}
	case OpAccessChain:
		if len(r.Operand) >= 3 {
			operands := make([]il.ValueID, 0, len(r.Operand)-2)
			operands = append(operands, il.ValueID(r.Operand[2]))
			for _, w := range r.Operand[3:] {
				operands = append(operands, il.ValueID(w))
			}
			return il.Instruction{Op: il.OpAddressChain, Type: il.TypeID(r.Operand[0]), Result: il.ValueID(r.Operand[1]),
				Operands: operands, Source: src}
		}
	case OpIAdd, OpFAdd:
		return binaryOp(il.OpAdd, r, src)
	case OpISub, OpFSub:
		return binaryOp(il.OpSub, r, src)
	case OpIMul, OpFMul:
		return binaryOp(il.OpMul, r, src)
	case OpBitwiseAnd:
		return binaryOp(il.OpAnd, r, src)
	case OpBitwiseOr:
		return binaryOp(il.OpOr, r, src)
	case OpBitwiseXor:
		return binaryOp(il.OpXor, r, src)
	case OpIEqual:
		return binaryOp(il.OpCompareEQ, r, src)
	case OpAtomicOr:
		if len(r.Operand) >= 6 {
			return il.Instruction{Op: il.OpAtomicOr, Type: il.TypeID(r.Operand[0]), Result: il.ValueID(r.Operand[1]),
				Operands: []il.ValueID{il.ValueID(r.Operand[2]), il.ValueID(r.Operand[5])}, Source: src}
		}
	case OpAtomicIAdd:
		if len(r.Operand) >= 6 {
			return il.Instruction{Op: il.OpAtomicAdd, Type: il.TypeID(r.Operand[0]), Result: il.ValueID(r.Operand[1]),
				Operands: []il.ValueID{il.ValueID(r.Operand[2]), il.ValueID(r.Operand[5])}, Source: src}
		}
	case OpBranch:
		if len(r.Operand) >= 1 {
			return il.Instruction{Op: il.OpBranch, Result: il.InvalidValue,
				Targets: []il.BlockID{il.BlockID(r.Operand[0])}, Source: src}
		}
	case OpBranchConditional:
		if len(r.Operand) >= 3 {
			return il.Instruction{Op: il.OpBranchConditional, Result: il.InvalidValue,
				Operands: []il.ValueID{il.ValueID(r.Operand[0])},
				Targets:  []il.BlockID{il.BlockID(r.Operand[1]), il.BlockID(r.Operand[2])}, Source: src}
		}
	case OpReturn:
		return il.Instruction{Op: il.OpReturn, Result: il.InvalidValue, Source: src}
	case OpReturnValue:
		if len(r.Operand) >= 1 {
			return il.Instruction{Op: il.OpReturn, Result: il.InvalidValue,
				Operands: []il.ValueID{il.ValueID(r.Operand[0])}, Source: src}
		}
	case OpExtInst:
		if isExportInst(r) {
			exportID := r.Operand[4]
			values := make([]il.ValueID, 0, len(r.Operand)-5)
			for _, w := range r.Operand[5:] {
				values = append(values, il.ValueID(w))
			}
			return il.Instruction{Op: il.OpExport, Result: il.InvalidValue, ExportID: exportID, Operands: values, Source: src}
		}
	}

	return il.Instruction{Op: il.OpOpaque, Result: il.InvalidValue, RawOp: uint32(r.Op), Raw: append([]uint32(nil), r.Operand...), Source: src}
}

func binaryOp(op il.OpCode, r rawInstruction, src il.Source) il.Instruction {
	if len(r.Operand) < 4 {
		return il.Instruction{Op: il.OpOpaque, RawOp: uint32(r.Op), Raw: r.Operand, Source: src}
	}
	return il.Instruction{Op: op, Type: il.TypeID(r.Operand[0]), Result: il.ValueID(r.Operand[1]),
		Operands: []il.ValueID{il.ValueID(r.Operand[2]), il.ValueID(r.Operand[3])}, Source: src}
}

// isExportInst reports whether r is an OpExtInst call into this codec's
// own ExportExtInstSet import. The set id operand (Operand[2]) is not
// checked: any OpExtInst with at least five operands whose instruction
// number (Operand[3]) equals ExportInstNumber is treated as an export.
func isExportInst(r rawInstruction) bool {
	return len(r.Operand) >= 5 && r.Operand[3] == ExportInstNumber
}
