package core

import (
	"errors"
	"testing"

	"github.com/gpureshape/layer/il"
	"github.com/gpureshape/layer/prmt"
)

func TestShaderModuleEnsureProgram(t *testing.T) {
	m := NewShaderModule(1, []byte{0xAA})

	calls := 0
	parse := func(b []byte) (*il.Program, error) {
		calls++
		return il.NewProgram(), nil
	}

	prog1, err := m.EnsureProgram(parse)
	if err != nil {
		t.Fatalf("EnsureProgram: %v", err)
	}
	prog2, err := m.EnsureProgram(parse)
	if err != nil {
		t.Fatalf("EnsureProgram (cached): %v", err)
	}
	if prog1 != prog2 {
		t.Error("EnsureProgram reparsed instead of returning the cached Program")
	}
	if calls != 1 {
		t.Errorf("parse called %d times, want 1", calls)
	}
}

func TestShaderModuleEnsureProgramError(t *testing.T) {
	m := NewShaderModule(1, nil)
	wantErr := errors.New("bad bytecode")
	_, err := m.EnsureProgram(func([]byte) (*il.Program, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("EnsureProgram error = %v, want %v", err, wantErr)
	}
	if m.Program != nil {
		t.Error("Program should remain nil after a failed parse")
	}
}

func TestResourceStateMapping(t *testing.T) {
	r := ResourceState{PUID: 0x100000005, Type: 2, SubresourceBase: 7}
	mapping := r.Mapping(prmt.DescriptorKindDX12)
	if mapping.PUID != 5 {
		t.Errorf("PUID = %d, want 5", mapping.PUID)
	}
	if mapping.SRBHigh != 1 {
		t.Errorf("SRBHigh = %d, want 1", mapping.SRBHigh)
	}
	if mapping.Kind != uint32(prmt.DescriptorKindDX12) {
		t.Errorf("Kind = %d, want %d", mapping.Kind, prmt.DescriptorKindDX12)
	}
}

func TestPipelineStateKey(t *testing.T) {
	p := PipelineState{
		CombinedHash:  55,
		FeatureBitSet: 3,
	}
	key := p.Key()
	if key.CombinedHash != 55 || key.FeatureBitSet != 3 {
		t.Errorf("Key() = %+v", key)
	}
}
