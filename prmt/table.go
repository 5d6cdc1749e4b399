package prmt

import (
	"fmt"
	"sync"

	"github.com/gpureshape/layer/internal/fatalerr"
)

// minTableGrowth is the floor on how many slots a resize adds, per spec
// §4.5's "grows by max(64,000, next_count * 1.5)".
const minTableGrowth = 64000

// QueueState tracks one GPU queue's view of the table: the commit version
// it last copied host→device. Update elides the copy entirely when this
// hasn't fallen behind the table's current commit version.
type QueueState struct {
	CommitHead uint64
}

// Table is one PRMT: a host-side mirror of the GPU-resident mapping
// array, the allocator assigning application descriptor ranges to
// segments within it, and a generation counter every write bumps so
// per-queue device copies can be elided when nothing changed.
type Table struct {
	mu            sync.Mutex
	entries       []VirtualResourceMapping
	commitVersion uint64
	maxElements   uint32

	allocator *PartitionedAllocator
}

// NewTable constructs a table with the given initial and maximum element
// counts. maxElements is the hardware-dictated ceiling past which
// allocation exhaustion is fatal (§4.5 "Failure policy"); 0 means
// unbounded.
func NewTable(initialCapacity, maxElements uint32) *Table {
	return &Table{
		entries:     make([]VirtualResourceMapping, initialCapacity),
		maxElements: maxElements,
		allocator:   NewPartitionedAllocator(initialCapacity, 16),
	}
}

// Allocate reserves count contiguous slots, growing the table first if
// the allocator's region can't satisfy it.
func (t *Table) Allocate(count uint32) (Segment, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	seg, err := t.allocator.Alloc(count)
	if err != nil {
		return Segment{}, err
	}

	if t.maxElements != 0 && seg.Offset+seg.Count > t.maxElements {
		_ = t.allocator.Free(seg)
		return Segment{}, fatalerr.New(
			fmt.Sprintf("physical resource mapping table exhausted: %d elements requested beyond max %d", count, t.maxElements),
			"disable texel addressing or reduce the resource working set",
		)
	}

	t.ensureCapacityLocked(seg.Offset + seg.Count)
	return seg, nil
}

// Free releases a segment back to the allocator.
func (t *Table) Free(seg Segment) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.allocator.Free(seg)
}

// WriteMapping asserts offset < segment.Count and writes mapping into the
// host copy at segment.Offset+offset, bumping the table's commit version.
func (t *Table) WriteMapping(segment Segment, offset uint32, mapping VirtualResourceMapping) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.writeLocked(segment, offset, mapping)
}

// WriteMappingState is identical to WriteMapping except it also updates
// the caller-supplied QueueState's bookkeeping view in the same critical
// section. Kept as a distinct method rather than folded into WriteMapping
// with an optional *QueueState parameter: callers that track their own
// queue state need this call site to be unambiguous at the call itself,
// not conditional on an argument's nilness.
func (t *Table) WriteMappingState(state *QueueState, segment Segment, offset uint32, mapping VirtualResourceMapping) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.writeLocked(segment, offset, mapping); err != nil {
		return err
	}
	if state != nil {
		state.CommitHead = t.commitVersion - 1 // this write's pre-bump version; state catches up once Update observes it
	}
	return nil
}

func (t *Table) writeLocked(segment Segment, offset uint32, mapping VirtualResourceMapping) error {
	if offset >= segment.Count {
		return fmt.Errorf("prmt: write offset %d out of bounds for segment of %d slots", offset, segment.Count)
	}
	idx := segment.Offset + offset
	t.ensureCapacityLocked(idx + 1)
	t.entries[idx] = mapping
	t.commitVersion++
	return nil
}

// CopyMapping performs a host-side shallow copy within the same table.
func (t *Table) CopyMapping(src, dst uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if int(src) >= len(t.entries) || int(dst) >= len(t.entries) {
		return fmt.Errorf("prmt: copy index out of bounds (src=%d dst=%d len=%d)", src, dst, len(t.entries))
	}
	t.entries[dst] = t.entries[src]
	t.commitVersion++
	return nil
}

// GetMapping returns the host copy's value at offset, for CPU inspection
// only — shader reads always go through the GPU-resident copy.
func (t *Table) GetMapping(offset uint32) (VirtualResourceMapping, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if int(offset) >= len(t.entries) {
		return VirtualResourceMapping{}, fmt.Errorf("prmt: read offset %d out of bounds (len=%d)", offset, len(t.entries))
	}
	return t.entries[offset], nil
}

// Update copies the host table to the device for the queue that state
// describes, if the table's commit version has advanced past state.CommitHead,
// calling devicePush with a host-copy snapshot; it elides the call
// entirely (per §4.5's device-update protocol) when nothing changed.
func (t *Table) Update(state *QueueState, devicePush func([]VirtualResourceMapping)) bool {
	t.mu.Lock()
	version := t.commitVersion
	if state.CommitHead >= version {
		t.mu.Unlock()
		return false
	}
	snapshot := append([]VirtualResourceMapping(nil), t.entries...)
	t.mu.Unlock()

	if devicePush != nil {
		devicePush(snapshot)
	}
	state.CommitHead = version
	return true
}

// ensureCapacityLocked grows entries to at least n slots, following
// §4.5's max(64,000, next_count*1.5) growth formula. Must be called with
// mu held.
func (t *Table) ensureCapacityLocked(n uint32) {
	if uint32(len(t.entries)) >= n {
		return
	}
	next := uint32(float64(len(t.entries)) * 1.5)
	grown := len(t.entries) + minTableGrowth
	if int(next) > grown {
		grown = int(next)
	}
	for uint32(grown) < n {
		grown = int(float64(grown) * 1.5)
	}
	newEntries := make([]VirtualResourceMapping, grown)
	copy(newEntries, t.entries)
	t.entries = newEntries
}
