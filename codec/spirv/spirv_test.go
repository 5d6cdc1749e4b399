package spirv

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// buildModule assembles a minimal valid SPIR-V binary: header + instrs.
func buildModule(bound uint32, instrs []rawInstruction) []byte {
	words := []uint32{Magic, 0x00010000, 0, bound, 0}
	for _, r := range instrs {
		words = r.encode(words)
	}
	buf := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[i*4:], w)
	}
	return buf
}

// TestShaderRoundTrip matches spec.md §8 scenario 1: magic 0x07230203,
// version 1.0, 3 instructions (OpMemoryModel, OpEntryPoint, OpReturn);
// parse then re-emit without transformation must be byte-identical.
func TestShaderRoundTrip(t *testing.T) {
	input := buildModule(1, []rawInstruction{
		{Op: OpMemoryModel, Operand: []uint32{0, 1}},
		{Op: OpEntryPoint, Operand: []uint32{6, 4, 0x6E69616D}}, // Kernel, id 4, "main"
		{Op: OpReturn},
	})

	c, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	out, err := c.Emit()
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if !bytes.Equal(input, out) {
		t.Fatalf("round-trip mismatch:\n in:  % x\n out: % x", input, out)
	}
}

func TestZeroInstructionModuleParsesAndEmitsIdentically(t *testing.T) {
	input := buildModule(1, nil)
	c, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	out, err := c.Emit()
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if !bytes.Equal(input, out) {
		t.Fatalf("zero-instruction module must round-trip identically")
	}
}

func TestMalformedMagicFails(t *testing.T) {
	input := buildModule(1, nil)
	input[0] = 0xFF
	if _, err := Parse(input); err == nil {
		t.Fatalf("expected parse failure on bad magic")
	}
}

func TestTruncatedInstructionFailsWithoutPanic(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("parser must not panic on malformed input, got: %v", r)
		}
	}()
	words := []uint32{Magic, 0x00010000, 0, 1, 0, (5 << 16) | uint32(OpLoad)} // claims 5 words, has 0
	buf := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[i*4:], w)
	}
	if _, err := Parse(buf); err == nil {
		t.Fatalf("expected parse failure on truncated instruction")
	}
}

func TestParseEmitParseIsIdempotent(t *testing.T) {
	input := buildModule(1, []rawInstruction{
		{Op: OpMemoryModel, Operand: []uint32{0, 1}},
		{Op: OpReturn},
	})
	c1, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	out1, _ := c1.Emit()
	c2, err := Parse(out1)
	if err != nil {
		t.Fatalf("re-Parse: %v", err)
	}
	out2, _ := c2.Emit()
	if !bytes.Equal(out1, out2) {
		t.Fatalf("Parse . Emit . Parse must equal Parse . Emit")
	}
}

func TestProgramBuildsOneBasicBlock(t *testing.T) {
	input := buildModule(1, []rawInstruction{
		{Op: OpMemoryModel, Operand: []uint32{0, 1}},
		{Op: OpReturn},
	})
	c, _ := Parse(input)
	prog, err := c.Program()
	if err != nil {
		t.Fatalf("Program: %v", err)
	}
	if len(prog.Functions) != 1 {
		t.Fatalf("expected 1 pseudo-function, got %d", len(prog.Functions))
	}
	if len(prog.Functions[0].Blocks) != 1 {
		t.Fatalf("expected 1 basic block with no OpLabel present, got %d", len(prog.Functions[0].Blocks))
	}
}
