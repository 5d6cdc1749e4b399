package bridge

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/gputypes"
)

// backendByName reverses gputypes.Backend.String() for the handful of
// backends the host-resolve handshake can report, so HostServerInfoMessage
// can carry a typed gputypes.Backend instead of a bare string (spec §4.7's
// HostServerInfoMessage.api, grounded on RemoteClientBridge.cpp's
// entry.info.apiName and gogpu/wgpu's hal.BackendFactory registry).
var backendByName = map[string]gputypes.Backend{
	gputypes.BackendVulkan.String(): gputypes.BackendVulkan,
	gputypes.BackendMetal.String():  gputypes.BackendMetal,
	gputypes.BackendDX12.String():   gputypes.BackendDX12,
	gputypes.BackendGL.String():     gputypes.BackendGL,
	gputypes.BackendEmpty.String():  gputypes.BackendEmpty,
}

func parseBackend(name string) gputypes.Backend {
	if b, ok := backendByName[name]; ok {
		return b
	}
	return gputypes.BackendEmpty
}

// EncodeHostConnected builds the single-record stream RemoteClientBridge's
// OnConnected pushes after a host-resolve accept/reject.
func EncodeHostConnected(accepted bool) MessageStream {
	b := NewStreamBuilder(MessageHostConnected)
	var rec [4]byte
	if accepted {
		rec[0] = 1
	}
	b.AddFixed(rec[:])
	return b.Build(1)
}

// DecodeHostConnected reads back the accepted flag.
func DecodeHostConnected(stream MessageStream) (accepted bool, err error) {
	if len(stream.Bytes) < 4 {
		return false, fmt.Errorf("bridge: short HostConnectedMessage record")
	}
	return stream.Bytes[0] != 0, nil
}

// EncodeHostResolved mirrors EncodeHostConnected for OnResolve's
// ResolveResponse.found.
func EncodeHostResolved(found bool) MessageStream {
	b := NewStreamBuilder(MessageHostResolved)
	var rec [4]byte
	if found {
		rec[0] = 1
	}
	b.AddFixed(rec[:])
	return b.Build(1)
}

func DecodeHostResolved(stream MessageStream) (found bool, err error) {
	if len(stream.Bytes) < 4 {
		return false, fmt.Errorf("bridge: short HostResolvedMessage record")
	}
	return stream.Bytes[0] != 0, nil
}

// ServerInfo mirrors RemoteClientBridge.cpp's
// AsioRemoteServerResolverDiscoveryRequest::Entry + its embedded
// HostServerInfoMessage fields: a discoverable host process and the
// backend API it exposes for attachment.
type ServerInfo struct {
	GUID          string
	ReservedGUID  string
	Process       string
	Application   string
	API           gputypes.Backend
	ProcessID     uint32
	DeviceUID     uint64
	DeviceObjects uint32
}

// serverInfoHeaderSize is the fixed-size prefix of one encoded ServerInfo:
// five u32 lengths, processID, deviceUID (u64), deviceObjects.
const serverInfoHeaderSize = 5*4 + 4 + 8 + 4

func appendServerInfo(buf []byte, info ServerInfo) []byte {
	apiName := info.API.String()
	guid, reserved, proc, app := []byte(info.GUID), []byte(info.ReservedGUID), []byte(info.Process), []byte(info.Application)
	api := []byte(apiName)

	header := make([]byte, serverInfoHeaderSize)
	putU32le(header[0:4], uint32(len(guid)))
	putU32le(header[4:8], uint32(len(reserved)))
	putU32le(header[8:12], uint32(len(proc)))
	putU32le(header[12:16], uint32(len(app)))
	putU32le(header[16:20], uint32(len(api)))
	putU32le(header[20:24], info.ProcessID)
	binary.LittleEndian.PutUint64(header[24:32], info.DeviceUID)
	putU32le(header[32:36], info.DeviceObjects)

	buf = append(buf, header...)
	buf = append(buf, guid...)
	buf = append(buf, reserved...)
	buf = append(buf, proc...)
	buf = append(buf, app...)
	buf = append(buf, api...)
	return buf
}

// readServerInfo decodes one ServerInfo starting at buf[0] and returns the
// number of bytes consumed.
func readServerInfo(buf []byte) (ServerInfo, int, error) {
	if len(buf) < serverInfoHeaderSize {
		return ServerInfo{}, 0, fmt.Errorf("bridge: short ServerInfo header")
	}
	guidLen := u32le(buf[0:4])
	reservedLen := u32le(buf[4:8])
	procLen := u32le(buf[8:12])
	appLen := u32le(buf[12:16])
	apiLen := u32le(buf[16:20])
	processID := u32le(buf[20:24])
	deviceUID := binary.LittleEndian.Uint64(buf[24:32])
	deviceObjects := u32le(buf[32:36])

	off := serverInfoHeaderSize
	total := off + int(guidLen) + int(reservedLen) + int(procLen) + int(appLen) + int(apiLen)
	if len(buf) < total {
		return ServerInfo{}, 0, fmt.Errorf("bridge: truncated ServerInfo payload")
	}

	next := func(n uint32) string {
		s := string(buf[off : off+int(n)])
		off += int(n)
		return s
	}
	info := ServerInfo{}
	info.GUID = next(guidLen)
	info.ReservedGUID = next(reservedLen)
	info.Process = next(procLen)
	info.Application = next(appLen)
	info.API = parseBackend(next(apiLen))
	info.ProcessID = processID
	info.DeviceUID = deviceUID
	info.DeviceObjects = deviceObjects
	return info, total, nil
}

// EncodeHostDiscovery builds the discovery-response stream
// RemoteClientBridge::OnDiscovery sends after enumerating resolved hosts:
// one HostDiscoveryMessage wrapping a count-prefixed run of ServerInfo
// records (the source's nested entries MessageStream, flattened here since
// this transport doesn't need a second framed stream to carry it).
func EncodeHostDiscovery(infos []ServerInfo) MessageStream {
	b := NewStreamBuilder(MessageHostDiscovery)
	var count [4]byte
	putU32le(count[:], uint32(len(infos)))
	var payload []byte
	for _, info := range infos {
		payload = appendServerInfo(payload, info)
	}
	b.AddVariable(count[:], payload)
	return b.Build(1)
}

// DecodeHostDiscovery reads back the ServerInfo list.
func DecodeHostDiscovery(stream MessageStream) ([]ServerInfo, error) {
	if len(stream.Bytes) < 4 {
		return nil, fmt.Errorf("bridge: short HostDiscoveryMessage record")
	}
	count := u32le(stream.Bytes[0:4])
	buf := stream.Bytes[4:]
	infos := make([]ServerInfo, 0, count)
	for i := uint32(0); i < count; i++ {
		info, n, err := readServerInfo(buf)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
		buf = buf[n:]
	}
	return infos, nil
}

// EncodeDiscoverRequest builds the empty-body query Discovery.
// DiscoverAsync sends to ask the host for the current resolver table.
func EncodeDiscoverRequest() MessageStream {
	return NewStreamBuilder(MessageHostDiscovery).Build(1)
}

// clientTokenSize matches AsioHostClientToken's 16-byte GUID.
const clientTokenSize = 16

// EncodeRequestClient builds the RequestClientAsync request carrying the
// 16-byte client token of the server to attach to.
func EncodeRequestClient(token [clientTokenSize]byte) MessageStream {
	b := NewStreamBuilder(MessageHostConnected)
	b.AddFixed(token[:])
	return b.Build(1)
}

// DecodeRequestClient reads back a RequestClientAsync token.
func DecodeRequestClient(stream MessageStream) (token [clientTokenSize]byte, err error) {
	if len(stream.Bytes) < clientTokenSize {
		return token, fmt.Errorf("bridge: short client token record")
	}
	copy(token[:], stream.Bytes[:clientTokenSize])
	return token, nil
}
