package texel

import "testing"

// TestAllocateThenInitializeZeroesDataRegion is the §8 universal
// invariant: "after Initialize and before any shader write, all bits in
// A's data region read as zero on the device."
func TestAllocateThenInitializeZeroesDataRegion(t *testing.T) {
	a := Install(1<<20, 0)
	res := ResourceInfo{Width: 16, Height: 16, DepthOrSliceCount: 1, MipCount: 1}
	alloc, err := a.Allocate(res)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	a.Initialize(alloc, 0xDEADBEEF)

	for i := uint64(0); i < alloc.AddressInfo.TexelCount; i++ {
		if a.ReadBit(alloc, 0, i) {
			t.Fatalf("texel %d expected uninitialized after Initialize", i)
		}
	}
}

// TestWriteBitSetsExpectedWordAndBit is §8 scenario 3: writing texel
// (3,7,0) in a 16x16x1 R8 texture sets the bit for linear index
// 3 + 7*16 = 115, which is bit 19 (115%32) of data word 3 (115/32). The
// test reads that texel back through ReadBit and checks that the next
// texel stays clear.
func TestWriteBitSetsExpectedWordAndBit(t *testing.T) {
	a := Install(1<<20, 0)
	res := ResourceInfo{Width: 16, Height: 16, DepthOrSliceCount: 1, MipCount: 1}
	alloc, err := a.Allocate(res)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	a.Initialize(alloc, 0)

	linear := uint64(3 + 7*16)
	a.WriteBit(alloc, 0, linear)

	if !a.ReadBit(alloc, 0, linear) {
		t.Fatal("expected the written texel to read as initialized")
	}
	// A neighboring texel must remain untouched.
	if a.ReadBit(alloc, 0, linear+1) {
		t.Fatal("expected an unrelated texel to remain uninitialized")
	}
}

func TestAllocateBufferResourceIsLinear(t *testing.T) {
	a := Install(1<<16, 0)
	res := ResourceInfo{Width: 1024, Height: 1, DepthOrSliceCount: 1, MipCount: 1}
	alloc, err := a.Allocate(res)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if alloc.AddressInfo.TexelCount < 1024 {
		t.Fatalf("expected at least 1024 linear texels, got %d", alloc.AddressInfo.TexelCount)
	}
	if len(alloc.AddressInfo.SubresourceOffsets) != 1 || alloc.AddressInfo.SubresourceOffsets[0] != 0 {
		t.Fatalf("expected a single subresource at offset 0, got %v", alloc.AddressInfo.SubresourceOffsets)
	}
}

func TestAllocateMultipleResourcesDoNotOverlap(t *testing.T) {
	a := Install(1<<20, 0)
	res := ResourceInfo{Width: 8, Height: 8, DepthOrSliceCount: 1, MipCount: 1}

	first, err := a.Allocate(res)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	second, err := a.Allocate(res)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if first.TexelBaseBlock == second.TexelBaseBlock {
		t.Fatal("expected two distinct resource allocations to land at different base blocks")
	}
}

// TestAllocateExhaustionIsFatal checks §8's boundary: a resource larger
// than the allocator's whole capacity makes Allocate return an error.
func TestAllocateExhaustionIsFatal(t *testing.T) {
	// A tiny pool: 64 dword blocks total capacity.
	a := Install(64*32, 0)
	big := ResourceInfo{Width: 4096, Height: 4096, DepthOrSliceCount: 1, MipCount: 1}
	if _, err := a.Allocate(big); err == nil {
		t.Fatal("expected texel memory exhaustion for an oversized resource")
	}
}

func TestFreeAllowsReallocationAtSameSize(t *testing.T) {
	a := Install(1<<16, 0)
	res := ResourceInfo{Width: 8, Height: 8, DepthOrSliceCount: 1, MipCount: 1}
	alloc, err := a.Allocate(res)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	a.Free(alloc)
	if _, err := a.Allocate(res); err != nil {
		t.Fatalf("expected reallocation to succeed after Free: %v", err)
	}
}
