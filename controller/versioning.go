package controller

import "sync"

// ResourceEventKind distinguishes a resource lifetime transition.
type ResourceEventKind uint8

const (
	ResourceCreated ResourceEventKind = iota
	ResourceDestroyed
	ResourceRenamed
)

// ResourceEvent is one ordered lifetime transition for a puid (a
// process-unique resource id). Versioning guarantees a happens-before
// relationship between a ResourceCreated event at version N and any later
// event referencing that puid at version N (spec §4's versioning
// invariant) — callers get that for free by only ever observing events
// through the emit callback's in-order delivery.
type ResourceEvent struct {
	PUID    uint64
	Kind    ResourceEventKind
	Version uint64
	Name    string // only meaningful for ResourceRenamed
}

// VersioningController emits an ordered stream of resource create/
// destroy/rename events on a dedicated bridge stream so the host inspector
// can reconstruct resource lifetimes. Ordering is enforced by a single
// mutex around both version assignment and event emission — the
// happens-before guarantee only holds if no two goroutines can interleave
// those two steps for the same puid.
type VersioningController struct {
	mu      sync.Mutex
	version uint64
	emit    func(ResourceEvent)
}

// NewVersioningController constructs a controller that calls emit for
// every event, in the exact order events are assigned a version. emit is
// expected to dispatch onto a bridge ordered stream; it must not block
// indefinitely or it stalls every subsequent versioning event.
func NewVersioningController(emit func(ResourceEvent)) *VersioningController {
	return &VersioningController{emit: emit}
}

// nextVersionLocked advances and returns the monotonic version counter. Must be
// called with mu held.
func (v *VersioningController) nextVersionLocked() uint64 {
	v.version++
	return v.version
}

// Created records a resource's creation and emits the event before
// returning, so any later call on the same goroutine (or any goroutine
// that first observes the emitted event) is guaranteed to see it.
func (v *VersioningController) Created(puid uint64) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	ver := v.nextVersionLocked()
	v.emitLocked(ResourceEvent{PUID: puid, Kind: ResourceCreated, Version: ver})
	return ver
}

// Destroyed records a resource's destruction.
func (v *VersioningController) Destroyed(puid uint64) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	ver := v.nextVersionLocked()
	v.emitLocked(ResourceEvent{PUID: puid, Kind: ResourceDestroyed, Version: ver})
	return ver
}

// Renamed records a resource's debug-name change.
func (v *VersioningController) Renamed(puid uint64, name string) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	ver := v.nextVersionLocked()
	v.emitLocked(ResourceEvent{PUID: puid, Kind: ResourceRenamed, Version: ver, Name: name})
	return ver
}

func (v *VersioningController) emitLocked(e ResourceEvent) {
	if v.emit != nil {
		v.emit(e)
	}
}
