package il

import "github.com/chewxy/math32"

// IsStableFP32 reports whether v is neither NaN nor infinite when
// represented as a 32-bit float — the definition of "stable" the
// export-stability feature checks at runtime for every stored
// floating-point value, and that constant folding uses here to skip
// injecting a runtime check around a constant literal already known to be
// finite.
//
// math32 is used instead of math so the check happens in the same
// precision the GPU's shader ALU actually computes in; round-tripping a
// float32 bit pattern through math.IsNaN's float64 argument is not
// equivalent for signaling-NaN payloads.
func IsStableFP32(v float32) bool {
	return !math32.IsNaN(v) && !math32.IsInf(v, 0)
}

// FoldFPConstant evaluates whether the constant at id is a known-unstable
// floating point literal, so the export-stability injector can skip
// emitting a guard around a value that can never change at runtime.
// Returns (unstable, ok); ok is false if id is not a floating point
// constant (the check does not apply).
func (p *Program) FoldFPConstant(id ConstantID) (unstable bool, ok bool) {
	c := p.Constants.Get(id)
	if c.Kind != ConstFP {
		return false, false
	}
	return !IsStableFP32(float32(c.FP)), true
}
