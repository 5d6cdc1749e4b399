// Package prmt implements the physical resource mapping table: a
// GPU-resident array instrumented shaders use to recover a typed
// (puid, type, srb) token from an opaque descriptor index.
package prmt

// DescriptorKind distinguishes which backend's descriptor addressing
// scheme a mapping's offset is relative to. Both Vulkan's descriptor-set
// layout and DX12's descriptor heap layout fund into the same
// VirtualResourceMapping table; only how an offset is computed from the
// application's own binding differs.
type DescriptorKind uint8

const (
	// DescriptorKindVulkan addresses a mapping relative to a descriptor
	// set's binding + array index.
	DescriptorKindVulkan DescriptorKind = iota
	// DescriptorKindDX12 addresses a mapping relative to a descriptor
	// heap's base + element offset.
	DescriptorKindDX12
)

// VirtualResourceMapping is one PRMT entry: 6 x u32 (24 bytes), matching
// the GPU-resident layout shaders index into directly.
type VirtualResourceMapping struct {
	PUID     uint32 // process-unique resource id
	Type     uint32 // resource type tag
	SRBLow   uint32 // subresource base
	SRBHigh  uint32 // core.ResourceState.Mapping stores the PUID's upper 32 bits here
	Kind     uint32 // DescriptorKind
	Reserved uint32
}

// PhysicalResourceSegmentID is an opaque handle into a PartitionedAllocator's
// segment space. Never dereferenced outside this package.
type PhysicalResourceSegmentID uint64
