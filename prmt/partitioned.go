package prmt

import (
	"errors"
	"math/bits"
	"sort"
	"sync"
)

// ErrOutOfSegments indicates no suitable segment is available.
var ErrOutOfSegments = errors.New("prmt: out of segments")

// ErrInvalidSegment indicates a free/alloc call referenced a segment this
// allocator never issued.
var ErrInvalidSegment = errors.New("prmt: invalid segment")

// Segment is an allocated range of PRMT slots: [Offset, Offset+Count).
type Segment struct {
	ID     PhysicalResourceSegmentID
	Offset uint32
	Count  uint32
}

// PartitionedAllocator assigns each application-visible descriptor range a
// PRMT segment. Ranges up to buddyRegionSlots are served by a power-of-two
// buddy allocator (adapted directly from the teacher's Vulkan device
// memory buddy allocator); ranges larger than the buddy's largest block
// fall through to a large-slack region: a simple coalescing free-list,
// since huge descriptor ranges are rare enough that buddy's O(log n)
// splitting isn't worth the bookkeeping. Both regions merge freed
// neighbors back together — unlike texel.buddyAllocator, this allocator's
// invariant (segment reuse efficiency, not a GPU-resident free bitmask) is
// safe to merge eagerly.
type PartitionedAllocator struct {
	mu sync.Mutex

	minBlock  uint32
	maxOrder  int
	freeLists []map[uint32]struct{}
	split     map[uint64]struct{} // (order<<32)|offset
	allocated map[uint32]int      // offset -> order, buddy region only

	buddyRegionSlots uint32

	slackBase  uint32
	slackFree  []slackRange // sorted, non-overlapping, merged
	slackAlloc map[uint32]uint32

	nextID uint64
}

type slackRange struct {
	offset uint32
	count  uint32
}

// NewPartitionedAllocator constructs an allocator whose buddy region
// covers buddyRegionSlots slots (rounded up to a power of two) addressed
// down to minBlock-slot granularity; anything beyond that falls into the
// slack region.
func NewPartitionedAllocator(buddyRegionSlots, minBlock uint32) *PartitionedAllocator {
	if minBlock == 0 {
		minBlock = 1
	}
	regionSlots := nextPow2(buddyRegionSlots)
	if regionSlots < minBlock {
		regionSlots = minBlock
	}
	maxOrder := log2(uint64(regionSlots / minBlock))

	a := &PartitionedAllocator{
		minBlock:         minBlock,
		maxOrder:         maxOrder,
		freeLists:        make([]map[uint32]struct{}, maxOrder+1),
		split:            make(map[uint64]struct{}),
		allocated:        make(map[uint32]int),
		buddyRegionSlots: regionSlots,
		slackBase:        regionSlots,
		slackAlloc:       make(map[uint32]uint32),
	}
	for i := range a.freeLists {
		a.freeLists[i] = make(map[uint32]struct{})
	}
	a.freeLists[maxOrder][0] = struct{}{}
	return a
}

// Alloc assigns a segment of at least count slots.
func (a *PartitionedAllocator) Alloc(count uint32) (Segment, error) {
	if count == 0 {
		return Segment{}, errors.New("prmt: zero-length segment")
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	allocCount := nextPow2(count)
	if allocCount < a.minBlock {
		allocCount = a.minBlock
	}
	targetOrder := log2(uint64(allocCount / a.minBlock))

	if targetOrder <= a.maxOrder {
		if offset, ok := a.findAndSplit(targetOrder); ok {
			a.allocated[offset] = targetOrder
			a.nextID++
			return Segment{ID: PhysicalResourceSegmentID(a.nextID), Offset: offset, Count: allocCount}, nil
		}
	}

	offset, ok := a.allocSlack(count)
	if !ok {
		return Segment{}, ErrOutOfSegments
	}
	a.nextID++
	return Segment{ID: PhysicalResourceSegmentID(a.nextID), Offset: offset, Count: count}, nil
}

// Free releases a previously allocated segment, merging with a free
// buddy/slack neighbor when possible.
func (a *PartitionedAllocator) Free(seg Segment) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if order, ok := a.allocated[seg.Offset]; ok {
		delete(a.allocated, seg.Offset)
		a.freeAndMerge(seg.Offset, order)
		return nil
	}
	if _, ok := a.slackAlloc[seg.Offset]; ok {
		delete(a.slackAlloc, seg.Offset)
		a.freeSlack(seg.Offset, seg.Count)
		return nil
	}
	return ErrInvalidSegment
}

func (a *PartitionedAllocator) findAndSplit(targetOrder int) (uint32, bool) {
	if len(a.freeLists[targetOrder]) > 0 {
		for offset := range a.freeLists[targetOrder] {
			delete(a.freeLists[targetOrder], offset)
			return offset, true
		}
	}
	splitOrder := -1
	for order := targetOrder + 1; order <= a.maxOrder; order++ {
		if len(a.freeLists[order]) > 0 {
			splitOrder = order
			break
		}
	}
	if splitOrder == -1 {
		return 0, false
	}
	var offset uint32
	for o := range a.freeLists[splitOrder] {
		offset = o
		delete(a.freeLists[splitOrder], o)
		break
	}
	for order := splitOrder; order > targetOrder; order-- {
		blockSlots := a.minBlock << order
		half := blockSlots >> 1
		a.split[(uint64(order)<<32)|uint64(offset)] = struct{}{}
		buddyOffset := offset + half
		a.freeLists[order-1][buddyOffset] = struct{}{}
	}
	return offset, true
}

func (a *PartitionedAllocator) freeAndMerge(offset uint32, order int) {
	for order <= a.maxOrder {
		blockSlots := a.minBlock << order
		var buddyOffset uint32
		if (offset & blockSlots) == 0 {
			buddyOffset = offset + blockSlots
		} else {
			buddyOffset = offset - blockSlots
		}
		if order == a.maxOrder {
			a.freeLists[order][offset] = struct{}{}
			return
		}
		if _, buddyFree := a.freeLists[order][buddyOffset]; !buddyFree {
			a.freeLists[order][offset] = struct{}{}
			return
		}
		delete(a.freeLists[order], buddyOffset)
		parentOffset := offset &^ blockSlots
		delete(a.split, (uint64(order+1)<<32)|uint64(parentOffset))
		offset = parentOffset
		order++
	}
}

// allocSlack finds (or creates, by growing slackBase) a free range of at
// least count slots in the slack region.
func (a *PartitionedAllocator) allocSlack(count uint32) (uint32, bool) {
	for i, r := range a.slackFree {
		if r.count >= count {
			offset := r.offset
			if r.count == count {
				a.slackFree = append(a.slackFree[:i], a.slackFree[i+1:]...)
			} else {
				a.slackFree[i] = slackRange{offset: r.offset + count, count: r.count - count}
			}
			a.slackAlloc[offset] = count
			return offset, true
		}
	}
	// No free range large enough: grow the slack region.
	offset := a.slackBase
	a.slackBase += count
	a.slackAlloc[offset] = count
	return offset, true
}

func (a *PartitionedAllocator) freeSlack(offset, count uint32) {
	a.slackFree = append(a.slackFree, slackRange{offset: offset, count: count})
	sort.Slice(a.slackFree, func(i, j int) bool { return a.slackFree[i].offset < a.slackFree[j].offset })

	merged := a.slackFree[:0]
	for _, r := range a.slackFree {
		if len(merged) > 0 && merged[len(merged)-1].offset+merged[len(merged)-1].count == r.offset {
			merged[len(merged)-1].count += r.count
			continue
		}
		merged = append(merged, r)
	}
	a.slackFree = merged
}

// Capacity returns the total slot count currently reserved across both
// regions (buddy region plus however far the slack region has grown).
func (a *PartitionedAllocator) Capacity() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.slackBase
}

func nextPow2(n uint32) uint32 {
	if n == 0 {
		return 1
	}
	if n&(n-1) == 0 {
		return n
	}
	return 1 << (32 - bits.LeadingZeros32(n))
}

func log2(n uint64) int {
	if n <= 1 {
		return 0
	}
	return 63 - bits.LeadingZeros64(n)
}
