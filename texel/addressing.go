package texel

import "github.com/gpureshape/layer/il"

// alignToPow2Upper rounds x up to the next power of two, with the
// source's edge case preserved: x == 1 stays 1 rather than becoming 2
// (AlignedSubresourceEmitter::AlignToPow2Upper: "2u << FirstBitHigh(X-1),
// edge case if the value is 1, return 1").
func alignToPow2Upper(x uint32) uint32 {
	if x <= 1 {
		return 1
	}
	return nextPow2(x)
}

func nextPow2(x uint32) uint32 {
	n := x - 1
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	return n + 1
}

// mipOffsetFromDifference implements the geometric-series identity spec
// §4.6 names: given `difference = totalTexels - mipTexels`, the offset
// to a mip within its chain is `(difference * 2^d) / (2^d - 1)`, where d
// is the addressing dimensionality (2 for 2D/array, 3 for volumetric).
func mipOffsetFromDifference(difference uint64, dimensionality uint32) uint64 {
	scale := uint64(1) << dimensionality
	return (difference * scale) / (scale - 1)
}

// AlignedInfo caches the power-of-two-aligned dimensions an addressing
// computation reuses across mip/slice offset queries, mirroring
// AlignedSubresourceEmitter's constructor (which computes these once and
// holds them for the emitter's lifetime).
type AlignedInfo struct {
	res                                     ResourceInfo
	widthP2, heightP2, depthOrSliceCountP2 uint32
}

// NewAlignedInfo aligns res's dimensions up to the next power of two.
func NewAlignedInfo(res ResourceInfo) AlignedInfo {
	return AlignedInfo{
		res:                  res,
		widthP2:              alignToPow2Upper(res.Width),
		heightP2:             alignToPow2Upper(res.Height),
		depthOrSliceCountP2: alignToPow2Upper(res.DepthOrSliceCount),
	}
}

// texelCount2D / texelCount3D match the emitter's TexelCount overloads.
func texelCount2D(w, h uint32) uint64  { return uint64(w) * uint64(h) }
func texelCount3D(w, h, d uint32) uint64 { return uint64(w) * uint64(h) * uint64(d) }

func mipDim(dim uint32, mip uint32) uint32 {
	if v := dim >> mip; v > 1 {
		return v
	}
	return 1
}

// SliceOffset computes the texel offset to the start of slice's mip
// chain for a 2D array resource, matching
// AlignedSubresourceEmitter::SliceOffset.
func (a AlignedInfo) SliceOffset(slice uint32) uint64 {
	mipW := mipDim(a.widthP2, a.res.MipCount)
	mipH := mipDim(a.heightP2, a.res.MipCount)
	mipSize := mipOffsetFromDifference(texelCount2D(a.widthP2, a.heightP2)-texelCount2D(mipW, mipH), 2)
	return mipSize * uint64(slice)
}

// MipOffset2D returns the offset and dimensions of mip within slice's
// chain, matching AlignedSubresourceEmitter::SlicedOffset.
func (a AlignedInfo) MipOffset2D(slice, mip uint32) (offset uint64, w, h uint32) {
	base := a.SliceOffset(slice)
	w = mipDim(a.widthP2, mip)
	h = mipDim(a.heightP2, mip)
	diff := texelCount2D(a.widthP2, a.heightP2) - texelCount2D(w, h)
	return base + mipOffsetFromDifference(diff, 2), w, h
}

// MipOffset3D returns the offset and dimensions of mip for a volumetric
// resource, matching AlignedSubresourceEmitter::VolumetricOffset.
func (a AlignedInfo) MipOffset3D(mip uint32) (offset uint64, w, h, d uint32) {
	w = mipDim(a.widthP2, mip)
	h = mipDim(a.heightP2, mip)
	d = mipDim(a.depthOrSliceCountP2, mip)
	diff := texelCount3D(a.widthP2, a.heightP2, a.depthOrSliceCountP2) - texelCount3D(w, h, d)
	return mipOffsetFromDifference(diff, 3), w, h, d
}

// computeAddressInfo derives the total texel count and per-subresource
// offset table for res, the host-side computation Allocate uses to size
// a new allocation's header before any IL is ever emitted.
func computeAddressInfo(res ResourceInfo) AddressInfo {
	if !res.Is3D && res.Height <= 1 && res.DepthOrSliceCount <= 1 && res.MipCount <= 1 {
		// Buffers are indexed linearly, without power-of-two padding.
		return AddressInfo{TexelCount: uint64(res.Width), SubresourceOffsets: []uint64{0}}
	}
	aligned := NewAlignedInfo(res)
	mipCount := res.MipCount
	if mipCount == 0 {
		mipCount = 1
	}

	var offsets []uint64
	var total uint64

	if res.Is3D {
		for mip := uint32(0); mip < mipCount; mip++ {
			off, w, h, d := aligned.MipOffset3D(mip)
			offsets = append(offsets, off)
			total = off + uint64(w)*uint64(h)*uint64(d)
		}
		return AddressInfo{TexelCount: total, SubresourceOffsets: offsets}
	}

	sliceCount := res.DepthOrSliceCount
	if sliceCount == 0 {
		sliceCount = 1
	}
	for slice := uint32(0); slice < sliceCount; slice++ {
		for mip := uint32(0); mip < mipCount; mip++ {
			off, w, h := aligned.MipOffset2D(slice, mip)
			offsets = append(offsets, off)
			if end := off + uint64(w)*uint64(h); end > total {
				total = end
			}
		}
	}
	return AddressInfo{TexelCount: total, SubresourceOffsets: offsets}
}

// EmitAddressChain appends the IL instruction sequence that computes a
// texel's absolute bit address in the global tracking buffer, the
// run-time equivalent of computeAddressInfo's host-side math — grounded
// on original_source's AlignedSubresourceEmitter, which exists so a
// feature injector (not this package) can generate shader code rather
// than only compute offsets for tests. b must be built with
// il.NewBuilderForProgram (EmitAddressChain interns the shift/mask
// constants it needs). subresourceOffset is the value of the
// subresource's precomputed header offset (already an IL value, e.g.
// loaded from the allocation header); x, y, z are per-texel coordinates
// (z == il.InvalidValue for a 2D resource). Returns the ValueID holding
// the texel's dword index and the ValueID holding its bit-within-dword
// mask, ready for the caller to emit an OpAtomicOr (write path) or
// OpLoad+OpAnd (read path) against.
func EmitAddressChain(b *il.Builder, u32 il.TypeID, subresourceOffset, x, y, z il.ValueID, src il.Source) (dwordIndex, bitMask il.ValueID) {
	linear := b.Binary(il.OpAdd, x, y, u32, src)
	if z != il.InvalidValue {
		linear = b.Binary(il.OpAdd, linear, z, u32, src)
	}
	texelIndex := b.Binary(il.OpAdd, subresourceOffset, linear, u32, src)

	const texelsPerDword = 5 // log2(32): 32 texels per tracking dword

	dwordIndex = b.Binary(il.OpShr, texelIndex, b.Constant(u32, texelsPerDword, src), u32, src)
	bitIndex := b.Binary(il.OpAnd, texelIndex, b.Constant(u32, 31, src), u32, src)
	one := b.Constant(u32, 1, src)
	bitMask = b.Binary(il.OpShl, one, bitIndex, u32, src)
	return dwordIndex, bitMask
}
