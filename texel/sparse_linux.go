//go:build linux

package texel

import "golang.org/x/sys/unix"

// sparseResidency reserves address space for the texel tracking buffer
// via mmap(MAP_NORESERVE), committing physical pages lazily the way a
// tiled GPU resource only maps the tiles its allocations actually cover
// (spec §4.6's "Tile residency is managed by a second allocator that
// only maps tiles actually covered by live allocations"). On Linux the
// reservation itself is free (no physical backing until first touch).
// reserve makes a range readable and writable with mprotect; release
// drops the range's pages with MADV_DONTNEED and sets it back to
// PROT_NONE. The region is never unmapped, and nothing else in this
// package reads or writes it: the host-side mirror of device memory is
// Allocator.device.
type sparseResidency struct {
	region []byte
}

func newSparseResidency(sizeBytes uint64) *sparseResidency {
	if sizeBytes == 0 {
		return &sparseResidency{}
	}
	data, err := unix.Mmap(-1, 0, int(sizeBytes), unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON|unix.MAP_NORESERVE)
	if err != nil {
		// Falls back to an empty reservation: this mirror is advisory
		// bookkeeping (see type doc), so a failed mmap (e.g. a sandboxed
		// environment that forbids PROT_NONE|MAP_NORESERVE reservations of
		// this size) degrades to "no residency tracking" rather than
		// failing allocator construction.
		return &sparseResidency{}
	}
	return &sparseResidency{region: data}
}

func (s *sparseResidency) reserve(offset, size uint64) {
	if s.region == nil || offset+size > uint64(len(s.region)) {
		return
	}
	_ = unix.Mprotect(s.region[offset:offset+size], unix.PROT_READ|unix.PROT_WRITE)
}

func (s *sparseResidency) release(offset, size uint64) {
	if s.region == nil || offset+size > uint64(len(s.region)) {
		return
	}
	_ = unix.Madvise(s.region[offset:offset+size], unix.MADV_DONTNEED)
	_ = unix.Mprotect(s.region[offset:offset+size], unix.PROT_NONE)
}
