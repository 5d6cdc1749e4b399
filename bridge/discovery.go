package bridge

import "sync"

// Discovery tracks the resolver table RemoteClientBridge::OnDiscovery
// populates: the set of hosts this client has learned about, kept current
// by registering as an ordered-independent listener on MessageHostDiscovery
// streams (spec §4.7's discovery handshake).
type Discovery struct {
	client     *RemoteClient
	unregister func()

	mu      sync.Mutex
	servers []ServerInfo
}

// NewDiscovery wires a Discovery table to client's inbound discovery
// messages. Call Stop to unregister before discarding the Discovery.
func NewDiscovery(client *RemoteClient) *Discovery {
	d := &Discovery{client: client}
	d.unregister = client.Register(MessageHostDiscovery, d.onDiscoveryStreams)
	return d
}

// DiscoverAsync sends a discovery query to the connected host and returns
// immediately; the resolver table updates asynchronously as
// MessageHostDiscovery responses arrive and Commit drains them.
func (d *Discovery) DiscoverAsync() {
	d.client.Append(EncodeDiscoverRequest())
	d.client.Commit()
}

// RequestClientAsync asks the host to begin forwarding the server
// identified by token, mirroring RemoteClientBridge::RequestClientAsync.
func (d *Discovery) RequestClientAsync(token [clientTokenSize]byte) {
	d.client.Append(EncodeRequestClient(token))
	d.client.Commit()
}

// Servers returns a snapshot of the most recently discovered hosts.
func (d *Discovery) Servers() []ServerInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]ServerInfo(nil), d.servers...)
}

func (d *Discovery) onDiscoveryStreams(streams []MessageStream) {
	for _, stream := range streams {
		infos, err := DecodeHostDiscovery(stream)
		if err != nil {
			continue
		}
		d.mu.Lock()
		d.servers = infos
		d.mu.Unlock()
	}
}

// Stop unregisters the Discovery's listener from its client. It does not
// close the underlying connection — use RemoteClient.Stop for that.
func (d *Discovery) Stop() {
	if d.unregister != nil {
		d.unregister()
	}
}
