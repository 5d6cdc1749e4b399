package bridge

import (
	"sync"
	"testing"
)

func TestMemoryAppendDoesNotDispatchUntilCommit(t *testing.T) {
	m := NewMemory()

	var calls int
	m.Register(MessageHostConnected, func(streams []MessageStream) { calls++ })

	m.Append(EncodeHostConnected(true))
	if calls != 0 {
		t.Fatalf("expected no dispatch before Commit, got %d calls", calls)
	}
	m.Commit()
	if calls != 1 {
		t.Fatalf("expected 1 dispatch after Commit, got %d", calls)
	}
}

func TestMemoryOrderedListenerSeesFullBatch(t *testing.T) {
	m := NewMemory()

	var seen int
	m.RegisterOrdered(func(streams []MessageStream) { seen = len(streams) })

	m.Append(EncodeHostConnected(true))
	m.Append(EncodeHostResolved(true))
	m.Commit()

	if seen != 2 {
		t.Fatalf("expected ordered listener to see 2 streams, got %d", seen)
	}
}

func TestMemorySpecializedListenerOnlySeesMatchingSchema(t *testing.T) {
	m := NewMemory()

	var connected, resolved int
	m.Register(MessageHostConnected, func(streams []MessageStream) { connected += len(streams) })
	m.Register(MessageHostResolved, func(streams []MessageStream) { resolved += len(streams) })

	m.Append(EncodeHostConnected(true))
	m.Append(EncodeHostConnected(false))
	m.Append(EncodeHostResolved(true))
	m.Commit()

	if connected != 2 {
		t.Fatalf("expected 2 HostConnected streams, got %d", connected)
	}
	if resolved != 1 {
		t.Fatalf("expected 1 HostResolved stream, got %d", resolved)
	}
}

func TestUnregisterStopsFurtherDispatch(t *testing.T) {
	m := NewMemory()

	var calls int
	unregister := m.Register(MessageHostConnected, func(streams []MessageStream) { calls++ })

	m.Append(EncodeHostConnected(true))
	m.Commit()
	unregister()
	m.Append(EncodeHostConnected(true))
	m.Commit()

	if calls != 1 {
		t.Fatalf("expected exactly 1 dispatch before unregister, got %d", calls)
	}
}

func TestCommitIsConcurrencySafe(t *testing.T) {
	m := NewMemory()
	m.RegisterOrdered(func(streams []MessageStream) {})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Append(EncodeHostConnected(true))
			m.Commit()
		}()
	}
	wg.Wait()
}

func TestHostConnectedRoundTrip(t *testing.T) {
	stream := EncodeHostConnected(true)
	accepted, err := DecodeHostConnected(stream)
	if err != nil {
		t.Fatalf("DecodeHostConnected: %v", err)
	}
	if !accepted {
		t.Fatal("expected accepted=true to round-trip")
	}
}

func TestHostDiscoveryRoundTrip(t *testing.T) {
	infos := []ServerInfo{
		{GUID: "guid-a", ReservedGUID: "res-a", Process: "game.exe", Application: "Game", ProcessID: 42, DeviceUID: 7, DeviceObjects: 3},
		{GUID: "guid-b", Process: "tool.exe", Application: "Tool"},
	}
	stream := EncodeHostDiscovery(infos)

	got, err := DecodeHostDiscovery(stream)
	if err != nil {
		t.Fatalf("DecodeHostDiscovery: %v", err)
	}
	if len(got) != len(infos) {
		t.Fatalf("expected %d servers, got %d", len(infos), len(got))
	}
	if got[0].GUID != "guid-a" || got[0].ProcessID != 42 || got[0].DeviceUID != 7 {
		t.Fatalf("unexpected decoded server: %+v", got[0])
	}
	if got[1].Process != "tool.exe" {
		t.Fatalf("unexpected decoded server: %+v", got[1])
	}
}
