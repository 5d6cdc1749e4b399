package dxbc

import (
	"encoding/binary"

	"github.com/gpureshape/layer/codec"
	"github.com/gpureshape/layer/il"
)

// Program lazily decodes the DXIL chunk's instruction stream into an
// il.Program, caching the result. A container with no DXIL chunk (a
// library fragment or a stripped binary) yields an empty program rather
// than an error.
func (c *Container) Program() (*il.Program, error) {
	if c.program != nil {
		return c.program, nil
	}
	p := il.NewProgram()

	chunk, ok := c.Chunk(FourCCDXIL)
	if !ok {
		c.program = p
		return p, nil
	}
	if len(chunk.Bytes) < 4 {
		return nil, &codec.ParseError{Offset: chunk.Offset, Reason: "truncated DXIL payload"}
	}
	words := make([]uint32, len(chunk.Bytes)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(chunk.Bytes[i*4:])
	}
	// words[0] is the payload format version; only ilPayloadVersion, the
	// one version this package emits, is accepted.
	if words[0] != ilPayloadVersion {
		return nil, &codec.ParseError{Offset: chunk.Offset, Reason: "unrecognized DXIL payload version"}
	}

	fn := il.Function{Name: "main", EntryPoint: true}
	block := il.BasicBlock{ID: 0}
	i := 1
	for i < len(words) {
		first := words[i]
		wordCount := int(first >> 16)
		op := ilOpcode(first & 0xFFFF)
		if wordCount == 0 || i+wordCount > len(words) {
			return nil, &codec.ParseError{Offset: chunk.Offset + i*4, Reason: "DXIL instruction overruns payload"}
		}
		inst := ilInstruction{Op: op, Operand: append([]uint32(nil), words[i+1:i+wordCount]...)}
		block.Instructions = append(block.Instructions, translateIL(inst, i*4))
		i += wordCount
	}
	fn.Blocks = append(fn.Blocks, block)
	p.Functions = append(p.Functions, fn)
	c.program = p
	return p, nil
}

func translateIL(r ilInstruction, offset int) il.Instruction {
	src := il.Source{CodeOffset: uint32(offset)}
	switch r.Op {
	case ilOpLoad:
		if len(r.Operand) >= 3 {
			return il.Instruction{Op: il.OpLoad, Type: il.TypeID(r.Operand[0]), Result: il.ValueID(r.Operand[1]),
				Operands: []il.ValueID{il.ValueID(r.Operand[2])}, Source: src}
		}
	case ilOpStore:
		if len(r.Operand) >= 2 {
			return il.Instruction{Op: il.OpStore, Result: il.InvalidValue,
				Operands: []il.ValueID{il.ValueID(r.Operand[0]), il.ValueID(r.Operand[1])}, Source: src}
		}
	case ilOpGEP:
		if len(r.Operand) >= 3 {
			operands := []il.ValueID{il.ValueID(r.Operand[2])}
			for _, w := range r.Operand[3:] {
				operands = append(operands, il.ValueID(w))
			}
			return il.Instruction{Op: il.OpAddressChain, Type: il.TypeID(r.Operand[0]), Result: il.ValueID(r.Operand[1]),
				Operands: operands, Source: src}
		}
	case ilOpAdd, ilOpSub, ilOpMul, ilOpAnd, ilOpOr, ilOpXor, ilOpICmpEQ:
		if len(r.Operand) >= 4 {
			return il.Instruction{Op: ilToILOp[r.Op], Type: il.TypeID(r.Operand[0]), Result: il.ValueID(r.Operand[1]),
				Operands: []il.ValueID{il.ValueID(r.Operand[2]), il.ValueID(r.Operand[3])}, Source: src}
		}
	case ilOpAtomicOr:
		if len(r.Operand) >= 3 {
			return il.Instruction{Op: il.OpAtomicOr, Type: il.TypeID(r.Operand[0]), Result: il.ValueID(r.Operand[1]),
				Operands: []il.ValueID{il.ValueID(r.Operand[2])}, Source: src}
		}
	case ilOpAtomicAdd:
		if len(r.Operand) >= 3 {
			return il.Instruction{Op: il.OpAtomicAdd, Type: il.TypeID(r.Operand[0]), Result: il.ValueID(r.Operand[1]),
				Operands: []il.ValueID{il.ValueID(r.Operand[2])}, Source: src}
		}
	case ilOpBr:
		if len(r.Operand) >= 1 {
			return il.Instruction{Op: il.OpBranch, Result: il.InvalidValue, Targets: []il.BlockID{il.BlockID(r.Operand[0])}, Source: src}
		}
	case ilOpBrCond:
		if len(r.Operand) >= 3 {
			return il.Instruction{Op: il.OpBranchConditional, Result: il.InvalidValue,
				Operands: []il.ValueID{il.ValueID(r.Operand[0])},
				Targets:  []il.BlockID{il.BlockID(r.Operand[1]), il.BlockID(r.Operand[2])}, Source: src}
		}
	case ilOpRet:
		return il.Instruction{Op: il.OpReturn, Result: il.InvalidValue, Source: src}
	case ilOpRetVal:
		if len(r.Operand) >= 1 {
			return il.Instruction{Op: il.OpReturn, Result: il.InvalidValue, Operands: []il.ValueID{il.ValueID(r.Operand[0])}, Source: src}
		}
	case ilOpExport:
		if len(r.Operand) >= 1 {
			values := make([]il.ValueID, 0, len(r.Operand)-1)
			for _, w := range r.Operand[1:] {
				values = append(values, il.ValueID(w))
			}
			return il.Instruction{Op: il.OpExport, Result: il.InvalidValue, ExportID: r.Operand[0], Operands: values, Source: src}
		}
	}
	return il.Instruction{Op: il.OpOpaque, Result: il.InvalidValue, RawOp: uint32(r.Op), Raw: append([]uint32(nil), r.Operand...), Source: src}
}

var ilToILOp = map[ilOpcode]il.OpCode{
	ilOpAdd:    il.OpAdd,
	ilOpSub:    il.OpSub,
	ilOpMul:    il.OpMul,
	ilOpAnd:    il.OpAnd,
	ilOpOr:     il.OpOr,
	ilOpXor:    il.OpXor,
	ilOpICmpEQ: il.OpCompareEQ,
}

var reverseILOp = map[il.OpCode]ilOpcode{
	il.OpAdd:       ilOpAdd,
	il.OpSub:       ilOpSub,
	il.OpMul:       ilOpMul,
	il.OpAnd:       ilOpAnd,
	il.OpOr:        ilOpOr,
	il.OpXor:       ilOpXor,
	il.OpCompareEQ: ilOpICmpEQ,
}

// encodeDXILPayload renders a program's single function back into this
// package's simplified DXIL word stream.
func encodeDXILPayload(p *il.Program) ([]byte, error) {
	words := []uint32{ilPayloadVersion}
	if len(p.Functions) == 0 {
		return toBytesLE(words), nil
	}
	for _, block := range p.Functions[0].Blocks {
		for _, inst := range block.Instructions {
			raw, err := fromILInst(inst)
			if err != nil {
				return nil, err
			}
			words = raw.encode(words)
		}
	}
	return toBytesLE(words), nil
}

func fromILInst(inst il.Instruction) (ilInstruction, error) {
	switch inst.Op {
	case il.OpOpaque:
		return ilInstruction{Op: ilOpcode(inst.RawOp), Operand: inst.Raw}, nil
	case il.OpLoad:
		return ilInstruction{Op: ilOpLoad, Operand: []uint32{uint32(inst.Type), uint32(inst.Result), uint32(inst.Operands[0])}}, nil
	case il.OpStore:
		return ilInstruction{Op: ilOpStore, Operand: []uint32{uint32(inst.Operands[0]), uint32(inst.Operands[1])}}, nil
	case il.OpAddressChain:
		operand := []uint32{uint32(inst.Type), uint32(inst.Result), uint32(inst.Operands[0])}
		for _, v := range inst.Operands[1:] {
			operand = append(operand, uint32(v))
		}
		return ilInstruction{Op: ilOpGEP, Operand: operand}, nil
	case il.OpAdd, il.OpSub, il.OpMul, il.OpAnd, il.OpOr, il.OpXor, il.OpCompareEQ:
		op, ok := reverseILOp[inst.Op]
		if !ok {
			return ilInstruction{}, codec.ErrReemitFailed
		}
		return ilInstruction{Op: op, Operand: []uint32{uint32(inst.Type), uint32(inst.Result), uint32(inst.Operands[0]), uint32(inst.Operands[1])}}, nil
	case il.OpAtomicOr:
		return ilInstruction{Op: ilOpAtomicOr, Operand: []uint32{uint32(inst.Type), uint32(inst.Result), uint32(inst.Operands[0])}}, nil
	case il.OpAtomicAdd:
		return ilInstruction{Op: ilOpAtomicAdd, Operand: []uint32{uint32(inst.Type), uint32(inst.Result), uint32(inst.Operands[0])}}, nil
	case il.OpBranch:
		return ilInstruction{Op: ilOpBr, Operand: []uint32{uint32(inst.Targets[0])}}, nil
	case il.OpBranchConditional:
		return ilInstruction{Op: ilOpBrCond, Operand: []uint32{uint32(inst.Operands[0]), uint32(inst.Targets[0]), uint32(inst.Targets[1])}}, nil
	case il.OpReturn:
		if len(inst.Operands) == 1 {
			return ilInstruction{Op: ilOpRetVal, Operand: []uint32{uint32(inst.Operands[0])}}, nil
		}
		return ilInstruction{Op: ilOpRet}, nil
	case il.OpExport:
		operand := []uint32{inst.ExportID}
		for _, v := range inst.Operands {
			operand = append(operand, uint32(v))
		}
		return ilInstruction{Op: ilOpExport, Operand: operand}, nil
	default:
		return ilInstruction{}, codec.ErrReemitFailed
	}
}

func toBytesLE(words []uint32) []byte {
	out := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[i*4:], w)
	}
	return out
}
