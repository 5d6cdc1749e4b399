package spirv

import (
	"encoding/binary"

	"github.com/gpureshape/layer/codec"
	"github.com/gpureshape/layer/il"
)

// Header is the 5-word SPIR-V module header.
type Header struct {
	Magic        uint32
	Version      uint32
	Generator    uint32
	Bound        uint32
	Schema       uint32
}

// rawInstruction is one parsed SPIR-V instruction: its opcode, word count
// (including the packed first word), and the operand words that follow.
type rawInstruction struct {
	Op      Opcode
	Operand []uint32
	Offset  int // word index of this instruction's first word
}

func (r rawInstruction) wordCount() uint32 { return uint32(len(r.Operand)) + 1 }

func (r rawInstruction) encode(out []uint32) []uint32 {
	out = append(out, (r.wordCount()<<16)|uint32(r.Op))
	return append(out, r.Operand...)
}

// Container holds a parsed SPIR-V module: the header plus one flat,
// order-preserving instruction stream. Instructions this codec does not
// semantically model are carried as opaque il.Instruction{Op: il.OpOpaque}
// entries with their original words in Raw, so re-emitting an unmodified
// container reproduces the input exactly.
//
// The module is modeled as a single pseudo-function (Functions[0])
// containing one basic block per OpLabel boundary; every instruction
// before the first OpLabel (capabilities, types, constants, globals,
// OpEntryPoint/OpMemoryModel, and the OpFunction itself) lives in block 0
// of that function. This flattening trades a fully reconstructed multi-function
// CFG for a much simpler, order-preserving model — sufficient for the
// invariants this layer actually needs (round-trip identity, and
// inserting new instructions at a known point) without reimplementing a
// SPIR-V control-flow analyzer.
type Container struct {
	header Header
	raw    []rawInstruction // full original stream, used when !dirty

	program *il.Program
	dirty   bool
}

var _ codec.Container = (*Container)(nil)

// Parse reads a SPIR-V binary (little-endian word stream) into a
// Container. Parsing never panics: any malformed input returns
// codec.ErrShaderParsingFailed.
func Parse(data []byte) (*Container, error) {
	if len(data) < 20 || len(data)%4 != 0 {
		return nil, &codec.ParseError{Offset: 0, Reason: "truncated or misaligned SPIR-V binary"}
	}
	words := make([]uint32, len(data)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	if words[0] != Magic {
		return nil, &codec.ParseError{Offset: 0, Reason: "bad SPIR-V magic"}
	}

	c := &Container{
		header: Header{
			Magic:     words[0],
			Version:   words[1],
			Generator: words[2],
			Bound:     words[3],
			Schema:    words[4],
		},
	}

	i := 5
	for i < len(words) {
		first := words[i]
		wordCount := int(first >> 16)
		op := Opcode(first & 0xFFFF)
		if wordCount == 0 || i+wordCount > len(words) {
			return nil, &codec.ParseError{Offset: i * 4, Reason: "instruction word count overruns module"}
		}
		inst := rawInstruction{
			Op:      op,
			Operand: append([]uint32(nil), words[i+1:i+wordCount]...),
			Offset:  i,
		}
		c.raw = append(c.raw, inst)
		i += wordCount
	}

	return c, nil
}

// Dirty reports whether SetProgram has been called since parsing.
func (c *Container) Dirty() bool { return c.dirty }

// SetProgram installs a (possibly transformed) program and marks the
// container dirty, so the next Emit regenerates the word stream from it
// instead of reproducing the original bytes.
func (c *Container) SetProgram(p *il.Program) {
	c.program = p
	c.dirty = true
}

// Bound returns the current ID bound (one past the highest ID in use).
// Feature injectors allocate fresh result IDs starting here, the same
// convention real SPIR-V tooling uses.
func (c *Container) Bound() uint32 { return c.header.Bound }

// AllocID reserves and returns a fresh SPIR-V ID, bumping the bound.
func (c *Container) AllocID() uint32 {
	id := c.header.Bound
	c.header.Bound++
	return id
}
