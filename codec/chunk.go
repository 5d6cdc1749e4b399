package codec

import "github.com/gpureshape/layer/il"

// FourCC is a 4-byte chunk tag (DXBC's "DXIL", "RDAT", ... or a
// SPIR-V-side synthetic tag used internally for symmetry).
type FourCC [4]byte

func (f FourCC) String() string { return string(f[:]) }

// Chunk is a (fourcc, size, bytes) region inside a container, preserved
// verbatim on stitch when the codec does not recognize its fourcc.
type Chunk struct {
	Tag    FourCC
	Offset int // byte offset of Bytes within the original container
	Bytes  []byte
}

// Container is the parsed-but-not-yet-ILed form of a shader binary: chunks
// in their original order plus enough header bookkeeping to re-sign on
// emit. Building the IL program is deferred until a transformation is
// requested (Program), since most shader modules observed by the layer are
// never touched.
type Container interface {
	// Program lazily parses the format-specific instruction chunk into an
	// il.Program. Calling it more than once returns the same cached
	// program. Parsing that finds malformed content returns
	// ErrShaderParsingFailed; it never panics.
	Program() (*il.Program, error)

	// Dirty reports whether a transformation has written back through
	// SetProgram since the container was parsed. Re-emitting a non-dirty
	// container must reproduce the original bytes exactly (round-trip
	// identity, spec §8).
	Dirty() bool

	// SetProgram replaces the IL the container will emit from, marking
	// the container dirty.
	SetProgram(p *il.Program)

	// Emit serializes the container, either byte-identical to the parse
	// source (if !Dirty()) or reflecting SetProgram's replacement.
	Emit() ([]byte, error)
}
