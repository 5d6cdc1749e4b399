package streamer

import "sync"

// ExportSpec describes one export stream a segment needs, sized for the
// worst case a submission's instrumented shaders could write.
type ExportSpec struct {
	ExportID uint32
	Size     uint32
}

// Dispatch is called once per drained segment with the messages it
// produced, in queue-FIFO order. It is expected to forward onto a bridge
// stream; the streamer does not retry a failed dispatch.
type Dispatch func(queueID uint64, segmentID uint64, messages []Message)

// Streamer is the shader export streamer: it allocates per-submission
// segments, tracks them per queue in FIFO order, and on each sync point
// surfaces completed segments' diagnostic records to a Dispatch callback.
type Streamer struct {
	mode     AllocationMode
	dispatch Dispatch

	mu     sync.Mutex
	queues map[uint64]*queue
	nextID uint64

	// outstanding gates how many LocalCommandBuffer segments may be
	// allocated at once; Submit blocks on it once the cap is reached
	// (§4.4 "Backpressure"). Unused under GlobalCyclicBufferNoOverwrite.
	outstanding chan struct{}

	// cyclic is the single shared segment reused by every queue under
	// GlobalCyclicBufferNoOverwrite.
	cyclicMu sync.Mutex
	cyclic   *StreamSegment
}

// New constructs a Streamer. localCap bounds outstanding segments under
// LocalCommandBuffer; it is ignored under GlobalCyclicBufferNoOverwrite.
func New(mode AllocationMode, localCap int, dispatch Dispatch) *Streamer {
	s := &Streamer{
		mode:     mode,
		dispatch: dispatch,
		queues:   make(map[uint64]*queue),
	}
	if mode == LocalCommandBuffer {
		if localCap < 1 {
			localCap = 1
		}
		s.outstanding = make(chan struct{}, localCap)
	}
	return s
}

func (s *Streamer) queueFor(queueID uint64) *queue {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.queues[queueID]
	if !ok {
		q = &queue{}
		s.queues[queueID] = q
	}
	return q
}

// Submit allocates (or reuses) a segment sized for specs, records its
// pre-patch list (PRMT refresh + counter reset), and enqueues it onto
// queueID's live list with fence as its completion fence value. It
// implements §4.4 step 3-4 of the recording lifecycle.
func (s *Streamer) Submit(queueID uint64, specs []ExportSpec, fence uint64, refreshPRMT func()) *StreamSegment {
	q := s.queueFor(queueID)
	seg := s.acquireSegment(q, specs)
	seg.Fence = fence

	seg.PrePatch = []func(){
		refreshPRMT,
		func() {
			for i := range seg.Counters.Device {
				seg.Counters.Device[i] = 0
			}
		},
	}
	seg.PostPatch = nil // reserved, intentionally empty today

	for _, f := range seg.PrePatch {
		if f != nil {
			f()
		}
	}

	q.enqueue(seg)
	return seg
}

func (s *Streamer) acquireSegment(q *queue, specs []ExportSpec) *StreamSegment {
	switch s.mode {
	case GlobalCyclicBufferNoOverwrite:
		s.cyclicMu.Lock()
		defer s.cyclicMu.Unlock()
		if s.cyclic == nil {
			s.cyclic = s.newSegment(specs)
		}
		return s.cyclic
	default: // LocalCommandBuffer
		s.outstanding <- struct{}{}
		if seg := q.takeFree(); seg != nil && len(seg.Streams) == len(specs) {
			fits := true
			for i, spec := range specs {
				if seg.Streams[i].ExportID != spec.ExportID || uint32(len(seg.Streams[i].Device)) < spec.Size {
					fits = false
				}
			}
			if fits {
				return seg
			}
		}
		return s.newSegment(specs)
	}
}

func (s *Streamer) newSegment(specs []ExportSpec) *StreamSegment {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.mu.Unlock()

	seg := &StreamSegment{
		ID:       id,
		Streams:  make([]StreamInfo, len(specs)),
		Counters: CounterInfo{Device: make([]uint32, len(specs)), Host: make([]uint32, len(specs))},
	}
	for i, spec := range specs {
		seg.Streams[i] = StreamInfo{
			ExportID: spec.ExportID,
			Host:     make([]byte, spec.Size),
			Device:   make([]byte, spec.Size),
		}
	}
	return seg
}

// RecordWrite models an instrumented shader writing n bytes at the
// current counter position of an export stream within seg. It enforces
// the GlobalCyclicBufferNoOverwrite drop-on-full rule; LocalCommandBuffer
// segments are sized per-submission and never overflow in ordinary use,
// but writes past capacity are still dropped defensively rather than
// indexed out of bounds.
func (s *Streamer) RecordWrite(seg *StreamSegment, exportID uint32, data []byte) {
	idx := seg.streamIndex(exportID)
	if idx < 0 {
		return
	}
	stream := &seg.Streams[idx]
	counter := seg.Counters.Device[idx]
	capacity := uint32(len(stream.Device))

	if counter >= capacity {
		seg.LatentOvershoot++
		return
	}
	n := copy(stream.Device[counter:], data)
	seg.Counters.Device[idx] = counter + uint32(n)
	if uint32(n) < uint32(len(data)) {
		seg.LatentOvershoot++
	}
}

// SyncPoint drains every segment on queueID whose fence has reached
// fenceValue, copies each stream's device-written bytes back to its host
// mirror (clamped to min(counter, size), per §4.4 step 5), dispatches the
// resulting messages, and recycles the segment for reuse.
func (s *Streamer) SyncPoint(queueID uint64, fenceValue uint64) {
	q := s.queueFor(queueID)
	done := q.drain(fenceValue)

	for _, seg := range done {
		copy(seg.Counters.Host, seg.Counters.Device)

		messages := make([]Message, 0, len(seg.Streams))
		for i, stream := range seg.Streams {
			n := seg.Counters.Host[i]
			if int(n) > len(stream.Device) {
				n = uint32(len(stream.Device))
			}
			copy(stream.Host[:n], stream.Device[:n])
			messages = append(messages, Message{ExportID: stream.ExportID, Data: append([]byte(nil), stream.Host[:n]...)})
		}

		if s.dispatch != nil {
			s.dispatch(queueID, seg.ID, messages)
		}

		s.releaseSegment(q, seg)
	}
}

func (s *Streamer) releaseSegment(q *queue, seg *StreamSegment) {
	switch s.mode {
	case GlobalCyclicBufferNoOverwrite:
		// The single shared segment stays resident; only its counters
		// reset, which Submit's pre-patch already does on reuse.
	default:
		q.recycle(seg)
		<-s.outstanding
	}
}
