// Package bridge carries message streams between the in-process layer
// and the out-of-process inspector (spec §4.7): an in-proc memory bridge
// for same-process listeners, and a TCP remote bridge for the
// cross-process inspector, both transporting the same typed
// MessageStream shape.
package bridge

import "encoding/binary"

// MessageID identifies a message's schema within a stream, the same way
// a DXBC fourcc identifies a chunk kind — purely a dispatch key, never
// interpreted by the bridge itself.
type MessageID uint32

// Known message ids. Host->layer control messages and layer->host
// diagnostic messages share one id space; schema versioning within a
// kind is carried separately in MessageStream.VersionID.
const (
	MessageHostConnected MessageID = iota + 1
	MessageHostResolved
	MessageHostServerInfo
	MessageHostDiscovery

	MessageSetGlobalInstrumentation
	MessageSetShaderInstrumentation
	MessageSetPipelineInstrumentation
	MessageAddFilter
	MessageGetState

	MessageUnstableExport
	MessageShaderSourceMapping
	MessageResourceVersion
	MessageStreamerExport
)

// MessageStream is a typed blob of encoded messages: schema_id +
// version_id select how Bytes decodes, Count is the number of
// fixed-or-variable-length records packed into Bytes (spec §4.7).
// AllocationInfo, for variable-length messages, records where each
// record's inline byte arrays begin so the bridge itself never needs to
// parse message payloads to forward them.
type MessageStream struct {
	SchemaID  MessageID
	VersionID uint32
	Count     uint32
	Bytes     []byte
}

// AllocationInfo describes one variable-length message's inline byte
// array placement within a MessageStream's Bytes, computed once at
// allocation time (spec §4.7) so a reader never has to re-scan earlier
// records to find a later one's payload offset.
type AllocationInfo struct {
	RecordOffset int // fixed-size header offset within Bytes
	DataOffset   int // variable-length payload offset within Bytes
	DataLength   int
}

// StreamBuilder appends fixed-size message records (optionally followed
// by variable-length payload bytes) to a MessageStream under
// construction, mirroring the source's MessageStreamView::Add<T>.
type StreamBuilder struct {
	schema MessageID
	buf    []byte
	count  uint32
}

// NewStreamBuilder starts building a stream of the given schema.
func NewStreamBuilder(schema MessageID) *StreamBuilder {
	return &StreamBuilder{schema: schema}
}

// AddFixed appends a fixed-size record's raw bytes.
func (b *StreamBuilder) AddFixed(record []byte) {
	b.buf = append(b.buf, record...)
	b.count++
}

// AddVariable appends a fixed header followed immediately by a
// variable-length payload, returning the AllocationInfo a message
// encoder uses to fill in the header's offset/length fields.
func (b *StreamBuilder) AddVariable(header []byte, payload []byte) AllocationInfo {
	info := AllocationInfo{
		RecordOffset: len(b.buf),
		DataOffset:   len(b.buf) + len(header),
		DataLength:   len(payload),
	}
	b.buf = append(b.buf, header...)
	b.buf = append(b.buf, payload...)
	b.count++
	return info
}

// Build finalizes the stream.
func (b *StreamBuilder) Build(version uint32) MessageStream {
	return MessageStream{SchemaID: b.schema, VersionID: version, Count: b.count, Bytes: b.buf}
}

// u32le / putU32le are small helpers message encoders share so every
// fixed-size record in this package uses one consistent byte order
// (little-endian, matching the frame header in remote.go).
func u32le(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }
func putU32le(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) }
