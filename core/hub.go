package core

import "sync"

// Hub owns every generation-indexed registry this layer keeps: one slot
// map per entity from spec §3's Data Model (Shader Module, Pipeline
// State, Resource State). It is the layer-wide analogue of the source's
// per-object-type dispatch tables, backed by Registry's epoch-checked
// slot arrays instead of raw pointers.
type Hub struct {
	mu sync.RWMutex

	shaderModules  *Registry[ShaderModule, shaderModuleMarker]
	pipelineStates *Registry[PipelineState, pipelineStateMarker]
	resourceStates *Registry[ResourceState, resourceStateMarker]
}

// NewHub constructs an empty Hub with one registry per tracked entity.
func NewHub() *Hub {
	return &Hub{
		shaderModules:  NewRegistry[ShaderModule, shaderModuleMarker](),
		pipelineStates: NewRegistry[PipelineState, pipelineStateMarker](),
		resourceStates: NewRegistry[ResourceState, resourceStateMarker](),
	}
}

// RegisterShaderModule adds module to the hub and returns its ID.
func (h *Hub) RegisterShaderModule(module ShaderModule) ShaderModuleID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.shaderModules.Register(module)
}

// GetShaderModule returns a copy of the ShaderModule at id.
func (h *Hub) GetShaderModule(id ShaderModuleID) (ShaderModule, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.shaderModules.Get(id)
}

// MutateShaderModule applies fn to the ShaderModule at id in place,
// without a copy round-trip — used to populate Program or Instrumented
// after the module is already registered.
func (h *Hub) MutateShaderModule(id ShaderModuleID, fn func(*ShaderModule)) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.shaderModules.GetMut(id, fn)
}

// UnregisterShaderModule removes and returns the ShaderModule at id.
func (h *Hub) UnregisterShaderModule(id ShaderModuleID) (ShaderModule, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.shaderModules.Unregister(id)
}

// RegisterPipelineState adds state to the hub and returns its ID.
func (h *Hub) RegisterPipelineState(state PipelineState) PipelineStateID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pipelineStates.Register(state)
}

// GetPipelineState returns a copy of the PipelineState at id.
func (h *Hub) GetPipelineState(id PipelineStateID) (PipelineState, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.pipelineStates.Get(id)
}

// MutatePipelineState applies fn to the PipelineState at id in place —
// used to swap CurrentInstrument once a pending compile lands.
func (h *Hub) MutatePipelineState(id PipelineStateID, fn func(*PipelineState)) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pipelineStates.GetMut(id, fn)
}

// UnregisterPipelineState removes and returns the PipelineState at id.
func (h *Hub) UnregisterPipelineState(id PipelineStateID) (PipelineState, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pipelineStates.Unregister(id)
}

// RegisterResourceState adds state to the hub and returns its ID.
func (h *Hub) RegisterResourceState(state ResourceState) ResourceStateID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.resourceStates.Register(state)
}

// GetResourceState returns a copy of the ResourceState at id.
func (h *Hub) GetResourceState(id ResourceStateID) (ResourceState, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.resourceStates.Get(id)
}

// UnregisterResourceState removes and returns the ResourceState at id.
// Per spec invariant, callers must invalidate any PRMT entry referencing
// id before the returned ResourceState's descriptor slot is reused.
func (h *Hub) UnregisterResourceState(id ResourceStateID) (ResourceState, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.resourceStates.Unregister(id)
}

// ResourceCounts returns the live entity count per registry, for
// diagnostics and tests.
func (h *Hub) ResourceCounts() map[string]uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return map[string]uint64{
		"shader_modules":  h.shaderModules.Count(),
		"pipeline_states": h.pipelineStates.Count(),
		"resource_states": h.resourceStates.Count(),
	}
}

// Clear empties every registry. Intended for tests and full-reset paths.
func (h *Hub) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.shaderModules.Clear()
	h.pipelineStates.Clear()
	h.resourceStates.Clear()
}
