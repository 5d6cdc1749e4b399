package prmt

import "testing"

func TestAllocateWriteAndReadMappingRoundTrips(t *testing.T) {
	table := NewTable(128, 0)

	seg, err := table.Allocate(4)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	mapping := VirtualResourceMapping{PUID: 7, Type: 1, SRBLow: 0x1000, Kind: uint32(DescriptorKindVulkan)}
	if err := table.WriteMapping(seg, 2, mapping); err != nil {
		t.Fatalf("WriteMapping: %v", err)
	}

	got, err := table.GetMapping(seg.Offset + 2)
	if err != nil {
		t.Fatalf("GetMapping: %v", err)
	}
	if got != mapping {
		t.Fatalf("got %+v, want %+v", got, mapping)
	}
}

func TestWriteMappingRejectsOutOfBoundsOffset(t *testing.T) {
	table := NewTable(128, 0)
	seg, err := table.Allocate(4)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if err := table.WriteMapping(seg, seg.Count, VirtualResourceMapping{}); err == nil {
		t.Fatal("expected an out-of-bounds write to fail")
	}
}

func TestTableGrowsPastInitialCapacity(t *testing.T) {
	table := NewTable(16, 0)
	seg, err := table.Allocate(200000)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if err := table.WriteMapping(seg, seg.Count-1, VirtualResourceMapping{PUID: 1}); err != nil {
		t.Fatalf("WriteMapping at grown capacity: %v", err)
	}
}

func TestAllocateBeyondMaxElementsIsFatal(t *testing.T) {
	table := NewTable(16, 32)
	if _, err := table.Allocate(1 << 20); err == nil {
		t.Fatal("expected allocation beyond maxElements to fail")
	}
}

func TestFreeAllowsSegmentReuse(t *testing.T) {
	table := NewTable(128, 0)
	seg, err := table.Allocate(8)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if err := table.Free(seg); err != nil {
		t.Fatalf("Free: %v", err)
	}
	if _, err := table.Allocate(8); err != nil {
		t.Fatalf("expected reallocation after Free to succeed: %v", err)
	}
}

func TestUpdateElidesUnchangedCommitVersion(t *testing.T) {
	table := NewTable(128, 0)
	state := &QueueState{}

	seg, err := table.Allocate(4)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if err := table.WriteMapping(seg, 0, VirtualResourceMapping{PUID: 1}); err != nil {
		t.Fatalf("WriteMapping: %v", err)
	}

	var pushes int
	if ok := table.Update(state, func(snapshot []VirtualResourceMapping) { pushes++ }); !ok {
		t.Fatal("expected the first Update after a write to push")
	}
	if pushes != 1 {
		t.Fatalf("expected 1 push, got %d", pushes)
	}

	if ok := table.Update(state, func(snapshot []VirtualResourceMapping) { pushes++ }); ok {
		t.Fatal("expected a second Update with no intervening write to be elided")
	}
	if pushes != 1 {
		t.Fatalf("expected push count to stay at 1, got %d", pushes)
	}
}

func TestPartitionedAllocatorMergesFreedBuddies(t *testing.T) {
	a := NewPartitionedAllocator(1024, 16)

	left, err := a.Alloc(16)
	if err != nil {
		t.Fatalf("Alloc left: %v", err)
	}
	right, err := a.Alloc(16)
	if err != nil {
		t.Fatalf("Alloc right: %v", err)
	}
	if err := a.Free(left); err != nil {
		t.Fatalf("Free left: %v", err)
	}
	if err := a.Free(right); err != nil {
		t.Fatalf("Free right: %v", err)
	}
	// Merged back to the full region: a single allocation spanning the
	// whole buddy region must now succeed without falling into slack.
	before := a.Capacity()
	if _, err := a.Alloc(1024); err != nil {
		t.Fatalf("Alloc after merge: %v", err)
	}
	if a.Capacity() != before {
		t.Fatalf("expected merge to avoid growing slack region, capacity went %d -> %d", before, a.Capacity())
	}
}

func TestPartitionedAllocatorFallsBackToSlackForOversizedSegments(t *testing.T) {
	a := NewPartitionedAllocator(64, 16)
	seg, err := a.Alloc(10000)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if seg.Offset < 64 {
		t.Fatalf("expected an oversized segment to land in the slack region past offset 64, got %d", seg.Offset)
	}
}
