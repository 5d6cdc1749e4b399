// Package dxbc implements the DXBC/DXIL container codec: a fixed header
// followed by a chunk offset table and a sequence of (fourcc, size, bytes)
// chunks. Chunks this codec does not interpret are preserved verbatim by
// offset+length on re-emit.
package dxbc

import (
	"encoding/binary"

	"github.com/gpureshape/layer/codec"
	"github.com/gpureshape/layer/il"
)

// Magic is the fixed 4-byte container tag.
var Magic = [4]byte{'D', 'X', 'B', 'C'}

// Recognized chunk fourccs (spec §4.1). Any other fourcc is treated as
// unknown and copied verbatim.
var (
	FourCCDXIL = codec.FourCC{'D', 'X', 'I', 'L'}
	FourCCILDB = codec.FourCC{'I', 'L', 'D', 'B'}
	FourCCILDN = codec.FourCC{'I', 'L', 'D', 'N'}
	FourCCRDAT = codec.FourCC{'R', 'D', 'A', 'T'}
	FourCCPSV0 = codec.FourCC{'P', 'S', 'V', '0'}
	FourCCSTAT = codec.FourCC{'S', 'T', 'A', 'T'}
	FourCCSFI0 = codec.FourCC{'S', 'F', 'I', '0'}
	FourCCISGN = codec.FourCC{'I', 'S', 'G', 'N'}
	FourCCOSGN = codec.FourCC{'O', 'S', 'G', 'N'}
	FourCCRTS0 = codec.FourCC{'R', 'T', 'S', '0'}
)

const headerSize = 4 + 16 + 4 + 4 + 4 // magic, checksum, reserved, total size, chunk count

// Container holds a parsed DXBC binary: its chunk list in original order,
// plus whatever was needed to re-derive the header (checksum is always
// recomputed on emit, never trusted from the input).
type Container struct {
	chunks []codec.Chunk

	program *il.Program // lazily built from the DXIL chunk, if present
	dirty   bool

	bindings *Bindings // set by SetBindings; drives PSV0 synthesis on a dirty Emit

	bypassSigning bool
}

var _ codec.Container = (*Container)(nil)

// SetBypassSigning configures whether Emit computes a self-signed
// checksum (release-mode behavior) rather than invoking a platform
// validator. This codec never calls an external validator — that is the
// host layer's concern (§4.1 "Signing") — so bypass is effectively always
// what this package does; the flag exists so callers can express intent
// and so a future validator hook has somewhere to plug in.
func (c *Container) SetBypassSigning(v bool) { c.bypassSigning = v }

// Parse reads a DXBC container. It validates the header and chunk table
// but never indexes past the supplied buffer; any structural problem
// returns codec.ErrShaderParsingFailed instead of panicking.
func Parse(data []byte) (*Container, error) {
	if len(data) < headerSize {
		return nil, &codec.ParseError{Offset: 0, Reason: "truncated DXBC header"}
	}
	var magic [4]byte
	copy(magic[:], data[0:4])
	if magic != Magic {
		return nil, &codec.ParseError{Offset: 0, Reason: "bad DXBC magic"}
	}

	totalSize := binary.LittleEndian.Uint32(data[24:28])
	chunkCount := binary.LittleEndian.Uint32(data[28:32])
	if int(totalSize) > len(data) {
		return nil, &codec.ParseError{Offset: 24, Reason: "declared size exceeds buffer"}
	}

	offsetTableStart := headerSize
	offsetTableEnd := offsetTableStart + int(chunkCount)*4
	if offsetTableEnd > len(data) {
		return nil, &codec.ParseError{Offset: offsetTableStart, Reason: "chunk offset table truncated"}
	}

	c := &Container{}
	for i := uint32(0); i < chunkCount; i++ {
		off := int(binary.LittleEndian.Uint32(data[offsetTableStart+int(i)*4:]))
		if off < 0 || off+8 > len(data) {
			return nil, &codec.ParseError{Offset: off, Reason: "chunk header out of bounds"}
		}
		var tag codec.FourCC
		copy(tag[:], data[off:off+4])
		size := binary.LittleEndian.Uint32(data[off+4 : off+8])
		bodyStart := off + 8
		bodyEnd := bodyStart + int(size)
		if bodyEnd > len(data) {
			return nil, &codec.ParseError{Offset: bodyStart, Reason: "chunk body out of bounds"}
		}
		c.chunks = append(c.chunks, codec.Chunk{
			Tag:    tag,
			Offset: bodyStart,
			Bytes:  append([]byte(nil), data[bodyStart:bodyEnd]...),
		})
	}

	return c, nil
}

// Chunks returns the parsed chunk list in original order.
func (c *Container) Chunks() []codec.Chunk { return c.chunks }

// Chunk returns the first chunk with the given fourcc, or false.
func (c *Container) Chunk(tag codec.FourCC) (codec.Chunk, bool) {
	for _, ch := range c.chunks {
		if ch.Tag == tag {
			return ch, true
		}
	}
	return codec.Chunk{}, false
}

// Dirty reports whether SetProgram has replaced the DXIL chunk's IL.
func (c *Container) Dirty() bool { return c.dirty }

// SetProgram installs transformed IL and marks the container dirty.
func (c *Container) SetProgram(p *il.Program) {
	c.program = p
	c.dirty = true
}
