package texel

import "github.com/gpureshape/layer/il"

// CopyRangeProgram describes the IL shape used to migrate texel-state
// bits from one resource's allocation to another's when a resource is
// resized or aliased — grounded on original_source's
// MaskCopyRangeShaderProgram, which installs a compute kernel doing
// exactly this against the real device. This module never submits work
// to a real driver (spec's Out-of-scope list), so CopyRangeProgram is
// data describing the instruction shape rather than a dispatched kernel:
// From/To are the resource-token kinds being bridged (e.g. a buffer
// migrating to a texture's addressing scheme), Volumetric selects the 2D
// vs 3D addressing math EmitAddressChain's caller must use.
type CopyRangeProgram struct {
	From, To   ResourceTokenKind
	Volumetric bool
}

// ResourceTokenKind mirrors Backend::IL::ResourceTokenType's role in the
// source: which PRMT-resolved resource shape a program addresses.
type ResourceTokenKind uint8

const (
	ResourceTokenBuffer ResourceTokenKind = iota
	ResourceTokenTexture1D
	ResourceTokenTexture2D
	ResourceTokenTexture3D
)

// Build emits the copy kernel's instruction sequence into fn: for each
// texel, compute the source and destination dword/bit addresses and
// atomically-or the source bit into the destination word if set.
// src/dst are the preloaded base-offset values (already IL-resident,
// e.g. read out of each allocation's header at kernel entry). The dword
// index EmitAddressChain returns is used directly as the buffer-element
// operand rather than threaded through a further OpAddressChain: this
// package models the global texel buffer as a single flat resource, so
// "pointer" and "element index" coincide, the same simplification
// codec/dxbc's il_encoding.go documents for its own scope limitation.
func (p CopyRangeProgram) Build(prog *il.Program, fn *il.Function, u32 il.TypeID, srcBase, dstBase, x, y, z il.ValueID) {
	b := il.NewBuilderForProgram(prog, fn, fn.Blocks[len(fn.Blocks)-1].ID)
	src := il.Source{}

	srcDword, srcMask := EmitAddressChain(b, u32, srcBase, x, y, z, src)
	dstDword, dstMask := EmitAddressChain(b, u32, dstBase, x, y, z, src)

	word := b.Load(srcDword, u32, src)
	bitSet := b.Binary(il.OpAnd, word, srcMask, u32, src)
	// bitSet is 0 or srcMask; bitSet/srcMask*dstMask moves it to the destination bit.
	b.AtomicOr(dstDword, b.Binary(il.OpMul, b.Binary(il.OpDiv, bitSet, srcMask, u32, src), dstMask, u32, src), u32, src)
}

// BlitProgram describes the IL shape used to rescale texel-state bits
// across a mip blit (e.g. a texture resize that changes mip geometry),
// grounded on original_source's MaskBlitShaderProgram. Unlike
// CopyRangeProgram (1:1 bit migration), a blit's source and destination
// texel grids are not the same size, so SourceMip/DestMip record the
// two address spaces' mip levels the caller resolves coordinates against
// before invoking EmitAddressChain twice (once per grid).
type BlitProgram struct {
	SourceMip, DestMip uint32
}
