package core

import (
	"testing"

	"github.com/gpureshape/layer/compiler"
)

func TestNewHub(t *testing.T) {
	hub := NewHub()
	if hub == nil {
		t.Fatal("NewHub returned nil")
	}

	counts := hub.ResourceCounts()
	for _, resourceType := range []string{"shader_modules", "pipeline_states", "resource_states"} {
		count, ok := counts[resourceType]
		if !ok {
			t.Errorf("ResourceCounts missing %s", resourceType)
		}
		if count != 0 {
			t.Errorf("initial count for %s = %d, want 0", resourceType, count)
		}
	}
}

func TestHubShaderModule(t *testing.T) {
	hub := NewHub()
	module := *NewShaderModule(42, []byte{0x01, 0x02})

	id := hub.RegisterShaderModule(module)
	if id.IsZero() {
		t.Fatal("RegisterShaderModule returned zero ID")
	}

	got, err := hub.GetShaderModule(id)
	if err != nil {
		t.Fatalf("GetShaderModule failed: %v", err)
	}
	if got.GUID != 42 {
		t.Errorf("GUID = %d, want 42", got.GUID)
	}

	err = hub.MutateShaderModule(id, func(m *ShaderModule) {
		m.Instrumented[compiler.InstrumentationKey{CombinedHash: 1}] = 7
	})
	if err != nil {
		t.Fatalf("MutateShaderModule failed: %v", err)
	}
	got, _ = hub.GetShaderModule(id)
	if h, ok := got.CompiledHandle(compiler.InstrumentationKey{CombinedHash: 1}); !ok || h != 7 {
		t.Errorf("mutation did not persist: handle=%v ok=%v", h, ok)
	}

	removed, err := hub.UnregisterShaderModule(id)
	if err != nil {
		t.Fatalf("UnregisterShaderModule failed: %v", err)
	}
	if removed.GUID != 42 {
		t.Error("UnregisterShaderModule returned different module")
	}

	if _, err := hub.GetShaderModule(id); err == nil {
		t.Error("GetShaderModule after unregister should fail")
	}
}

func TestHubPipelineState(t *testing.T) {
	hub := NewHub()
	state := PipelineState{Variant: PipelineCompute, CombinedHash: 9}

	id := hub.RegisterPipelineState(state)
	got, err := hub.GetPipelineState(id)
	if err != nil {
		t.Fatalf("GetPipelineState failed: %v", err)
	}
	if got.Variant != PipelineCompute {
		t.Errorf("Variant = %v, want Compute", got.Variant)
	}

	if err := hub.MutatePipelineState(id, func(p *PipelineState) {
		p.CurrentInstrument = 123
	}); err != nil {
		t.Fatalf("MutatePipelineState failed: %v", err)
	}
	got, _ = hub.GetPipelineState(id)
	if got.CurrentInstrument != 123 {
		t.Errorf("CurrentInstrument = %d, want 123", got.CurrentInstrument)
	}

	if _, err := hub.UnregisterPipelineState(id); err != nil {
		t.Fatalf("UnregisterPipelineState failed: %v", err)
	}
	if _, err := hub.GetPipelineState(id); err == nil {
		t.Error("GetPipelineState after unregister should fail")
	}
}

func TestHubResourceState(t *testing.T) {
	hub := NewHub()
	state := ResourceState{PUID: 99, Type: 1, SubresourceBase: 3}

	id := hub.RegisterResourceState(state)
	got, err := hub.GetResourceState(id)
	if err != nil {
		t.Fatalf("GetResourceState failed: %v", err)
	}
	mapping := got.Mapping(0)
	if mapping.PUID != 99 || mapping.SRBLow != 3 {
		t.Errorf("Mapping = %+v, want PUID=99 SRBLow=3", mapping)
	}

	removed, err := hub.UnregisterResourceState(id)
	if err != nil {
		t.Fatalf("UnregisterResourceState failed: %v", err)
	}
	if removed.PUID != 99 {
		t.Error("UnregisterResourceState returned different state")
	}
}

func TestHubClear(t *testing.T) {
	hub := NewHub()
	hub.RegisterShaderModule(*NewShaderModule(1, nil))
	hub.RegisterPipelineState(PipelineState{})
	hub.RegisterResourceState(ResourceState{})

	hub.Clear()
	for name, count := range hub.ResourceCounts() {
		if count != 0 {
			t.Errorf("%s count after Clear = %d, want 0", name, count)
		}
	}
}
