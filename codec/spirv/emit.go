package spirv

import (
	"encoding/binary"

	"github.com/gpureshape/layer/codec"
	"github.com/gpureshape/layer/il"
)

// Emit serializes the container. When untouched since Parse, it replays
// the original raw instruction stream word-for-word (round-trip identity,
// spec §8). Once SetProgram has installed a transformed program, it
// regenerates the stream from the IL instead.
func (c *Container) Emit() ([]byte, error) {
	var words []uint32
	words = append(words, c.header.Magic, c.header.Version, c.header.Generator, c.header.Bound, c.header.Schema)

	if !c.dirty {
		for _, r := range c.raw {
			words = r.encode(words)
		}
		return toBytes(words), nil
	}

	if c.program == nil || len(c.program.Functions) == 0 {
		return nil, codec.ErrReemitFailed
	}
	fn := c.program.Functions[0]
	for bi, block := range fn.Blocks {
		if bi > 0 {
			words = rawInstruction{Op: OpLabel, Operand: []uint32{uint32(block.ID)}}.encode(words)
		}
		for _, inst := range block.Instructions {
			raw, err := fromIL(inst)
			if err != nil {
				return nil, err
			}
			words = raw.encode(words)
		}
	}
	return toBytes(words), nil
}

func toBytes(words []uint32) []byte {
	out := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[i*4:], w)
	}
	return out
}

// fromIL is the inverse of translate: it reconstructs the raw SPIR-V
// instruction an il.Instruction represents, including instructions a
// feature injector newly appended (which never went through translate).
func fromIL(inst il.Instruction) (rawInstruction, error) {
	switch inst.Op {
	case il.OpOpaque:
		return rawInstruction{Op: Opcode(inst.RawOp), Operand: inst.Raw}, nil
	case il.OpLoad:
		return rawInstruction{Op: OpLoad, Operand: []uint32{uint32(inst.Type), uint32(inst.Result), uint32(inst.Operands[0])}}, nil
	case il.OpStore:
		return rawInstruction{Op: OpStore, Operand: []uint32{uint32(inst.Operands[0]), uint32(inst.Operands[1])}}, nil
	case il.OpAddressChain:
		operand := []uint32{uint32(inst.Type), uint32(inst.Result), uint32(inst.Operands[0])}
		for _, v := range inst.Operands[1:] {
			operand = append(operand, uint32(v))
		}
		return rawInstruction{Op: OpAccessChain, Operand: operand}, nil
	case il.OpAdd, il.OpSub, il.OpMul, il.OpAnd, il.OpOr, il.OpXor, il.OpCompareEQ:
		return binaryRaw(inst)
	case il.OpAtomicOr:
		return atomicRaw(OpAtomicOr, inst), nil
	case il.OpAtomicAdd:
		return atomicRaw(OpAtomicIAdd, inst), nil
	case il.OpBranch:
		return rawInstruction{Op: OpBranch, Operand: []uint32{uint32(inst.Targets[0])}}, nil
	case il.OpBranchConditional:
		return rawInstruction{Op: OpBranchConditional, Operand: []uint32{uint32(inst.Operands[0]), uint32(inst.Targets[0]), uint32(inst.Targets[1])}}, nil
	case il.OpReturn:
		if len(inst.Operands) == 1 {
			return rawInstruction{Op: OpReturnValue, Operand: []uint32{uint32(inst.Operands[0])}}, nil
		}
		return rawInstruction{Op: OpReturn}, nil
	case il.OpExport:
		operand := []uint32{0, 0, 0, ExportInstNumber, inst.ExportID}
		for _, v := range inst.Operands {
			operand = append(operand, uint32(v))
		}
		return rawInstruction{Op: OpExtInst, Operand: operand}, nil
	default:
		return rawInstruction{}, codec.ErrReemitFailed
	}
}

func binaryRaw(inst il.Instruction) (rawInstruction, error) {
	op, ok := reverseBinary[inst.Op]
	if !ok {
		return rawInstruction{}, codec.ErrReemitFailed
	}
	return rawInstruction{Op: op, Operand: []uint32{uint32(inst.Type), uint32(inst.Result), uint32(inst.Operands[0]), uint32(inst.Operands[1])}}, nil
}

// reverseBinary picks one concrete SPIR-V opcode per il.OpCode for
// re-emission. The original int/float distinction (e.g. OpIAdd vs OpFAdd)
// is not preserved by the simplified IL translation above; re-emitted
// arithmetic always uses the integer form. Features that need float
// arithmetic construct the float opcode directly via OpOpaque instead of
// going through these generic binary builders.
var reverseBinary = map[il.OpCode]Opcode{
	il.OpAdd:       OpIAdd,
	il.OpSub:       OpISub,
	il.OpMul:       OpIMul,
	il.OpAnd:       OpBitwiseAnd,
	il.OpOr:        OpBitwiseOr,
	il.OpXor:       OpBitwiseXor,
	il.OpCompareEQ: OpIEqual,
}

func atomicRaw(op Opcode, inst il.Instruction) rawInstruction {
	// %result %type %pointer %scope %semantics %value
	return rawInstruction{Op: op, Operand: []uint32{
		uint32(inst.Type), uint32(inst.Result), uint32(inst.Operands[0]), 0, 0, uint32(inst.Operands[1]),
	}}
}
