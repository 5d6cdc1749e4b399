package texel

import (
	"fmt"
	"sync"

	"github.com/gpureshape/layer/internal/fatalerr"
)

// Allocator is the Texel Memory Allocator (spec §4.6): one large sparse
// dword buffer, a buddy allocator handing out ranges within it, and a
// tile-residency allocator (sparse_linux.go, sparse_other.go) that only maps the tiles covered
// by live allocations. Grounded on original_source's
// TexelMemoryAllocator::Install/Allocate/Initialize.
type Allocator struct {
	mu sync.Mutex

	blockCapacityAlignPow2 uint64 // buddy size, minus one, per Install's "-1 for pow2 alignment"
	texelCapacity          uint64
	buddy                  *BuddyAllocator
	residency              *sparseResidency

	// device is the host-visible mirror of the GPU buffer's header and
	// data region. A real backend would stage this through a command
	// builder instead of writing it directly; this module never issues
	// driver calls (spec's Out-of-scope list), so the mirror is the only
	// representation of device state this package owns.
	device []uint32
}

// Install constructs the allocator. requestedTexels == 0 selects the
// default (spec's ~128 GiB of R1 texels, MaxTrackedTexels); hardwareLimit
// is the backend's bufferMaxElementCount — when the requested capacity
// exceeds it, the allocator silently clamps down to the largest safe
// power of two rather than failing Install (the source does the same;
// exhaustion becomes visible later, at Allocate time, as a fatal
// diagnostic).
func Install(requestedTexels, hardwareLimit uint64) *Allocator {
	if requestedTexels == 0 {
		requestedTexels = MaxTrackedTexels
	}
	blockCount := (requestedTexels + 31) / 32
	capAlignPow2 := nextPow2OrOne(blockCount - 1)
	if hardwareLimit != 0 && capAlignPow2 > hardwareLimit {
		capAlignPow2 = prevPow2(hardwareLimit)
	}
	capAlignPow2--

	a := &Allocator{
		blockCapacityAlignPow2: capAlignPow2,
		texelCapacity:          capAlignPow2 * 32,
		buddy:                  NewBuddyAllocator(capAlignPow2 + 1),
		residency:              newSparseResidency(capAlignPow2 * 4), // bytes
	}
	a.device = make([]uint32, 0)
	return a
}

func nextPow2OrOne(n uint64) uint64 {
	if n == 0 {
		return 1
	}
	return nextPow2_64(n)
}

func nextPow2_64(n uint64) uint64 {
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}

func prevPow2(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	p := nextPow2_64(n)
	if p > n {
		p >>= 1
	}
	return p
}

// ErrTexelExhaustion is the fatalerr.Error Allocate returns when the buddy
// allocator cannot fit a resource; per spec §7, allocation exhaustion is
// the one path this module treats as fatal to the whole process, not
// local to one resource. This package only returns it and does not end
// the process itself.
var ErrTexelExhaustion = fatalerr.New(
	"texel memory exhaustion",
	"disable texel addressing in the launch configuration, or reduce the resource working set",
)

// Allocate reserves tracking storage for res: one header DWORD block
// (subresource count, failure code, texel count, per-subresource
// offsets) followed by ceil(texelCount/32) data DWORDs and one safety
// padding DWORD.
func (a *Allocator) Allocate(res ResourceInfo) (Allocation, error) {
	info := computeAddressInfo(res)

	texelBlockCount := uint32((info.TexelCount + 31) / 32)
	if texelBlockCount == 0 {
		texelBlockCount = 1
	}
	headerDWords := uint32(FieldSubresourceStart) + uint32(len(info.SubresourceOffsets))
	allocDWords := headerDWords + texelBlockCount + 1 // +1 safety padding

	a.mu.Lock()
	defer a.mu.Unlock()

	buddyAlloc := a.buddy.Allocate(uint64(allocDWords))
	if !buddyAlloc.Valid() {
		return Allocation{}, ErrTexelExhaustion
	}
	base := uint32(buddyAlloc.Offset)
	if uint64(base)+uint64(allocDWords) >= a.blockCapacityAlignPow2 {
		return Allocation{}, ErrTexelExhaustion
	}

	a.residency.reserve(uint64(base)*4, uint64(allocDWords)*4)
	a.ensureDeviceLocked(base + allocDWords)

	return Allocation{
		BuddyOffset:      buddyAlloc.Offset,
		HeaderDWordCount: headerDWords,
		TexelBlockCount:  texelBlockCount,
		TexelBaseBlock:   base,
		AddressInfo:      info,
		buddy:            buddyAlloc,
	}, nil
}

// Free releases alloc back to the buddy allocator and relinquishes its
// tile residency.
func (a *Allocator) Free(alloc Allocation) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.buddy.Free(alloc.buddy)
	a.residency.release(uint64(alloc.TexelBaseBlock)*4, uint64(alloc.HeaderDWordCount+alloc.TexelBlockCount+1)*4)
}

// Initialize stages alloc's header bytes and clears its data region to
// zero — after this call and before any shader write, every bit in the
// allocation's data region reads as zero (§8's universal invariant).
// failureBlockCode is the sentinel value a shader-side fallback path
// writes when addressing math itself goes out of range.
func (a *Allocator) Initialize(alloc Allocation, failureBlockCode uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()

	base := alloc.TexelBaseBlock
	header := make([]uint32, alloc.HeaderDWordCount)
	header[FieldSubresourceCount] = uint32(len(alloc.AddressInfo.SubresourceOffsets))
	header[FieldFailureBlock] = failureBlockCode
	header[FieldTexelCount] = alloc.TexelBlockCount * 32
	for i, off := range alloc.AddressInfo.SubresourceOffsets {
		header[FieldSubresourceStart+i] = uint32(off)
	}

	for i, v := range header {
		a.device[base+uint32(i)] = v
	}
	dataStart := base + alloc.HeaderDWordCount
	for i := uint32(0); i < alloc.TexelBlockCount; i++ {
		a.device[dataStart+i] = 0
	}
}

// ReadBit reports whether the texel at (subresourceIndex, linearTexelIndex)
// is marked initialized — the host-visible equivalent of a shader's
// OpLoad+test against the bit EmitAddressChain addresses. Used by tests
// and by CPU-side diagnostic readback.
func (a *Allocator) ReadBit(alloc Allocation, subresourceIndex int, linearTexelIndex uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	texelIndex := alloc.AddressInfo.SubresourceOffsets[subresourceIndex] + linearTexelIndex
	word := alloc.TexelBaseBlock + alloc.HeaderDWordCount + uint32(texelIndex/32)
	bit := uint(texelIndex % 32)
	return a.device[word]&(1<<bit) != 0
}

// WriteBit sets the initialized bit for the given texel, mirroring the
// atomic-or a shader issues on write.
func (a *Allocator) WriteBit(alloc Allocation, subresourceIndex int, linearTexelIndex uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	texelIndex := alloc.AddressInfo.SubresourceOffsets[subresourceIndex] + linearTexelIndex
	word := alloc.TexelBaseBlock + alloc.HeaderDWordCount + uint32(texelIndex/32)
	bit := uint(texelIndex % 32)
	a.device[word] |= 1 << bit
}

func (a *Allocator) ensureDeviceLocked(minWords uint32) {
	if uint32(len(a.device)) >= minWords {
		return
	}
	grown := make([]uint32, minWords)
	copy(grown, a.device)
	a.device = grown
}

// String summarizes the allocator's configuration for diagnostics.
func (a *Allocator) String() string {
	return fmt.Sprintf("texel.Allocator{blocks=%d texels=%d}", a.blockCapacityAlignPow2, a.texelCapacity)
}
