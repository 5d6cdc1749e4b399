package core

import (
	"github.com/gpureshape/layer/compiler"
	"github.com/gpureshape/layer/il"
	"github.com/gpureshape/layer/prmt"
	"github.com/gpureshape/layer/texel"
)

// CodeOffsetTraceback maps one byte offset in a shader module's original
// bytecode back to the IL location it parsed into, for diagnostic
// symbolization of driver validation errors that only know the raw
// offset (spec §3's "list of code-offset -> (basic_block_id,
// instruction_index) tracebacks").
type CodeOffsetTraceback struct {
	CodeOffset       uint32
	BasicBlockID     uint32
	InstructionIndex uint32
}

// ShaderModule is this layer's record of one application-owned shader:
// its original bytecode, a lazily-parsed IL program, every instrumented
// variant compiled from it so far, and the tracebacks needed to map a
// driver-reported code offset back to an IL instruction (spec §3 "Shader
// Module"). The layer retains a ShaderModule while any PipelineState
// still references it.
type ShaderModule struct {
	GUID     uint64
	Bytecode []byte

	// Program is nil until the first feature injector or symbolization
	// request forces a parse; grounded on il.Program's own doc comment
	// ("Exactly one Program backs one ShaderModule's lazily-parsed IL").
	Program *il.Program

	// Instrumented maps an InstrumentationKey to the driver object
	// compiled for that (feature set, content, binding layout)
	// combination, so two pipelines requesting the same key share one
	// compiled result instead of recompiling.
	Instrumented map[compiler.InstrumentationKey]compiler.DriverHandle

	Tracebacks []CodeOffsetTraceback
}

// NewShaderModule returns a ShaderModule wrapping bytecode, with no
// parsed program and no compiled variants yet.
func NewShaderModule(guid uint64, bytecode []byte) *ShaderModule {
	return &ShaderModule{
		GUID:         guid,
		Bytecode:     bytecode,
		Instrumented: make(map[compiler.InstrumentationKey]compiler.DriverHandle),
	}
}

// EnsureProgram parses Bytecode into Program on first use via parse, and
// returns the cached Program on every subsequent call.
func (m *ShaderModule) EnsureProgram(parse func([]byte) (*il.Program, error)) (*il.Program, error) {
	if m.Program != nil {
		return m.Program, nil
	}
	prog, err := parse(m.Bytecode)
	if err != nil {
		return nil, err
	}
	m.Program = prog
	return prog, nil
}

// CompiledHandle returns the driver object already compiled for key, if
// any.
func (m *ShaderModule) CompiledHandle(key compiler.InstrumentationKey) (compiler.DriverHandle, bool) {
	h, ok := m.Instrumented[key]
	return h, ok
}

// PipelineVariant distinguishes the three pipeline shapes the spec's
// Pipeline State entity can take.
type PipelineVariant uint8

const (
	PipelineGraphics PipelineVariant = iota
	PipelineCompute
	PipelineLibrary
)

func (v PipelineVariant) String() string {
	switch v {
	case PipelineGraphics:
		return "graphics"
	case PipelineCompute:
		return "compute"
	case PipelineLibrary:
		return "library"
	default:
		return "unknown"
	}
}

// PipelineState is this layer's record of one application pipeline
// object (spec §3 "Pipeline State"): the shader modules it was built
// from, a deep copy of its creation description so the driver's own
// copy may be freed, the fixed register layout its signature commits
// to, a combined hash identifying byte-identical compiles, and whichever
// driver object — original or instrumented — is currently bound.
type PipelineState struct {
	Variant PipelineVariant

	ShaderModules []ShaderModuleID

	// Description is an application-owned creation description, deep
	// copied so PipelineState does not alias memory the driver might
	// reuse or free after pipeline creation returns.
	Description []byte

	Signature    prmt.DescriptorKind
	BindingInfo  compiler.SignatureBindingInfo
	CombinedHash uint64

	FeatureBitSet compiler.FeatureBitSet

	// CurrentInstrument is the driver object presently bound for
	// application work: either the pipeline's original compile or a
	// fully-compiled instrumented variant. Per spec invariant, it is
	// never a partially-compiled object.
	CurrentInstrument compiler.DriverHandle
}

// Key derives the InstrumentationKey two pipelines would share if they
// compile to the same instrumented object.
func (p *PipelineState) Key() compiler.InstrumentationKey {
	return compiler.InstrumentationKey{
		FeatureBitSet:        p.FeatureBitSet,
		CombinedHash:         p.CombinedHash,
		SignatureBindingInfo: p.BindingInfo,
	}
}

// ResourceState is this layer's record of one physical buffer or texture
// (spec §3 "Resource State"): a process-unique id, the token fields
// written into every PRMT entry that addresses it (prmt.VirtualResourceMapping
// carries PUID/Type/SRB as separate GPU-resident words rather than one
// packed host value), and the texel memory allocation backing it when
// texel addressing is enabled.
type ResourceState struct {
	PUID uint64
	Type uint32

	// SubresourceBase is the low bound of this resource's subresource
	// range, written into the SRBLow field of every PRMT entry.
	SubresourceBase uint32

	// Texels is nil when texel addressing is disabled for this resource.
	Texels *texel.Allocation
}

// Mapping returns the PRMT entry this resource's current state should
// be written as, for kind's descriptor addressing scheme. SRBHigh carries
// the upper 32 bits of PUID, since the mapping's PUID field holds only the
// lower 32.
func (r *ResourceState) Mapping(kind prmt.DescriptorKind) prmt.VirtualResourceMapping {
	return prmt.VirtualResourceMapping{
		PUID:    uint32(r.PUID),
		Type:    r.Type,
		SRBLow:  r.SubresourceBase,
		SRBHigh: uint32(r.PUID >> 32),
		Kind:    uint32(kind),
	}
}
