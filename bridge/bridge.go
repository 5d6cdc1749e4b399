package bridge

import "sync"

// Listener receives a batch of streams. Ordered listeners see every
// commit in submission order; specialized listeners are registered
// against one MessageID and only see streams of that schema (spec §4.7's
// "two listener kinds: specialized-by-message-id ... and ordered").
type Listener func(streams []MessageStream)

// Bridge is the interface both transports (Memory, RemoteClient)
// implement: register/deregister listeners, append outbound streams,
// and commit — draining whatever is queued to registered listeners.
// Grounded on original_source's Bridge::CLR::IBridge (Register/
// Deregister/GetInput/GetOutput/Commit).
type Bridge interface {
	Register(id MessageID, l Listener) (unregister func())
	RegisterOrdered(l Listener) (unregister func())
	Append(stream MessageStream)
	Commit()
}

// listenerSet holds one bridge endpoint's registered listeners, shared
// by Memory and RemoteClient so both transports dispatch identically.
type listenerSet struct {
	mu        sync.Mutex
	ordered   []*Listener
	byID      map[MessageID][]*Listener
}

func newListenerSet() *listenerSet {
	return &listenerSet{byID: make(map[MessageID][]*Listener)}
}

func (s *listenerSet) register(id MessageID, l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &l
	s.byID[id] = append(s.byID[id], p)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.byID[id] = removeListener(s.byID[id], p)
	}
}

func (s *listenerSet) registerOrdered(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &l
	s.ordered = append(s.ordered, p)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.ordered = removeListener(s.ordered, p)
	}
}

func removeListener(list []*Listener, target *Listener) []*Listener {
	out := list[:0]
	for _, l := range list {
		if l != target {
			out = append(out, l)
		}
	}
	return out
}

// dispatch invokes ordered listeners with the full batch, then
// specialized listeners with only the streams matching their id — spec
// §4.7's "invokes ordered listeners with a batch, then dispatches
// specialized listeners per message id".
func (s *listenerSet) dispatch(streams []MessageStream) {
	s.mu.Lock()
	ordered := append([]*Listener(nil), s.ordered...)
	s.mu.Unlock()

	for _, l := range ordered {
		(*l)(streams)
	}

	byID := make(map[MessageID][]MessageStream)
	for _, st := range streams {
		byID[st.SchemaID] = append(byID[st.SchemaID], st)
	}
	for id, batch := range byID {
		s.mu.Lock()
		listeners := append([]*Listener(nil), s.byID[id]...)
		s.mu.Unlock()
		for _, l := range listeners {
			(*l)(batch)
		}
	}
}
