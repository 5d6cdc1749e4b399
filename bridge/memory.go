package bridge

import "sync"

// Memory is the in-process bridge transport: append-to-queue plus
// Commit drains the queued streams into listener callbacks, with no
// serialization or network I/O involved — the common case when the
// inspector runs embedded in the same process as the layer (spec §4.7).
type Memory struct {
	listeners *listenerSet

	mu     sync.Mutex
	queued []MessageStream
}

// NewMemory constructs an empty in-process bridge.
func NewMemory() *Memory {
	return &Memory{listeners: newListenerSet()}
}

func (m *Memory) Register(id MessageID, l Listener) (unregister func()) {
	return m.listeners.register(id, l)
}

func (m *Memory) RegisterOrdered(l Listener) (unregister func()) {
	return m.listeners.registerOrdered(l)
}

// Append queues stream for the next Commit.
func (m *Memory) Append(stream MessageStream) {
	m.mu.Lock()
	m.queued = append(m.queued, stream)
	m.mu.Unlock()
}

// Commit drains every stream queued since the last Commit to registered
// listeners, in the order Append was called.
func (m *Memory) Commit() {
	m.mu.Lock()
	batch := m.queued
	m.queued = nil
	m.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	m.listeners.dispatch(batch)
}

var _ Bridge = (*Memory)(nil)
