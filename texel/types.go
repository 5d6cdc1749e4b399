package texel

// Field indices within a per-resource texel memory header, per spec §3's
// "Header DWORDs: subresource count, failure-block code, texel count,
// then one offset per subresource."
const (
	FieldSubresourceCount = 0
	FieldFailureBlock     = 1
	FieldTexelCount       = 2
	FieldSubresourceStart = 3
)

// kMaxTrackedTexelBlocks / kMaxTrackedTexels mirror the source's
// constants: one u32 block tracks 32 texels, so the full 32-bit block
// index space covers ~128 GiB of single-bit (R1) texels.
const (
	MaxTrackedTexelBlocks uint64 = 0xFFFFFFFF
	MaxTrackedTexels      uint64 = MaxTrackedTexelBlocks * 32
)

// AddressInfo is the per-resource addressing metadata the allocator
// derives from a ResourceInfo: how many texels the resource has in total
// and where each subresource's texel range begins within that range.
type AddressInfo struct {
	TexelCount         uint64
	SubresourceOffsets []uint64
}

// ResourceInfo is the minimal shape AddressInfo / Allocate need from a
// tracked resource: either a linear buffer (Height/Depth/MipCount == 1)
// or a 2D/3D texture with a mip chain and, for array/volume resources, a
// slice or depth count.
type ResourceInfo struct {
	Width, Height, DepthOrSliceCount uint32
	MipCount                        uint32
	Is3D                             bool // false: 2D array (slices multiply the mip chain); true: volumetric (depth is part of each mip)
}

// Allocation is the host-visible result of allocating texel-tracking
// storage for one resource (spec §3's TexelMemoryAllocation).
type Allocation struct {
	BuddyOffset      uint64
	HeaderDWordCount uint32
	TexelBlockCount  uint32
	TexelBaseBlock   uint32
	AddressInfo      AddressInfo
	buddy            buddyAllocation
}
