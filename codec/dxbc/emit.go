package dxbc

import (
	"encoding/binary"

	"github.com/gpureshape/layer/codec"
)

// SetBindings records the synthesized resource bindings the next Emit
// should stamp into the PSV0 chunk. Only meaningful when the container is
// dirty; an untouched container re-emits its original PSV0 chunk (or lack
// of one) verbatim.
func (c *Container) SetBindings(b Bindings) { c.bindings = &b }

// Emit serializes the container: header, chunk offset table, chunk
// bodies, then a freshly computed checksum over everything after it. An
// untouched container reproduces its original chunks byte-for-byte aside
// from the checksum recomputation, which is idempotent (re-signing
// identical bytes yields the identical checksum).
func (c *Container) Emit() ([]byte, error) {
	chunks := c.chunks
	if c.dirty {
		rebuilt, err := c.rebuildChunks()
		if err != nil {
			return nil, err
		}
		chunks = rebuilt
	}

	offsetTableSize := len(chunks) * 4
	headerAndTable := headerSize + offsetTableSize

	offsets := make([]uint32, len(chunks))
	bodies := make([][]byte, len(chunks))
	cursor := headerAndTable
	for i, ch := range chunks {
		offsets[i] = uint32(cursor)
		body := make([]byte, 8+len(ch.Bytes))
		copy(body[0:4], ch.Tag[:])
		binary.LittleEndian.PutUint32(body[4:8], uint32(len(ch.Bytes)))
		copy(body[8:], ch.Bytes)
		bodies[i] = body
		cursor += len(body)
	}
	totalSize := cursor

	buf := make([]byte, totalSize)
	copy(buf[0:4], Magic[:])
	// buf[4:20] checksum filled in below
	binary.LittleEndian.PutUint32(buf[20:24], 1) // reserved/version, fixed at 1
	binary.LittleEndian.PutUint32(buf[24:28], uint32(totalSize))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(len(chunks)))
	for i, off := range offsets {
		binary.LittleEndian.PutUint32(buf[headerSize+i*4:], off)
	}
	for i, body := range bodies {
		copy(buf[offsets[i]:], body)
	}

	rewriteChecksum(buf)
	return buf, nil
}

// rebuildChunks replaces the DXIL chunk with the re-encoded program and
// synthesizes or refreshes the PSV0 chunk, leaving every other chunk
// (signatures, root signature, reflection data) exactly as parsed.
func (c *Container) rebuildChunks() ([]codec.Chunk, error) {
	if c.program == nil {
		return nil, codec.ErrReemitFailed
	}
	payload, err := encodeDXILPayload(c.program)
	if err != nil {
		return nil, err
	}

	out := make([]codec.Chunk, 0, len(c.chunks)+1)
	sawDXIL, sawPSV0 := false, false
	for _, ch := range c.chunks {
		switch ch.Tag {
		case FourCCDXIL:
			out = append(out, codec.Chunk{Tag: FourCCDXIL, Bytes: payload})
			sawDXIL = true
		case FourCCPSV0:
			if c.bindings != nil {
				out = append(out, codec.Chunk{Tag: FourCCPSV0, Bytes: synthesizePSV0(*c.bindings)})
			} else {
				out = append(out, ch)
			}
			sawPSV0 = true
		default:
			out = append(out, ch)
		}
	}
	if !sawDXIL {
		out = append(out, codec.Chunk{Tag: FourCCDXIL, Bytes: payload})
	}
	if !sawPSV0 && c.bindings != nil {
		out = append(out, codec.Chunk{Tag: FourCCPSV0, Bytes: synthesizePSV0(*c.bindings)})
	}
	return out, nil
}
