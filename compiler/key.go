package compiler

// FeatureBitSet is a bitmask of which feature injectors were applied to a
// shader or pipeline, used both for dedup and for the instrumentation
// controller's filter matching.
type FeatureBitSet uint64

// Has reports whether bit is set.
func (b FeatureBitSet) Has(bit uint) bool { return b&(1<<bit) != 0 }

// Set returns a copy of b with bit set.
func (b FeatureBitSet) Set(bit uint) FeatureBitSet { return b | (1 << bit) }

// SignatureBindingInfo summarizes the root/pipeline binding layout a
// compiled object needs: enough to detect two jobs that would compile to
// the same result without re-parsing their shaders.
type SignatureBindingInfo struct {
	UAVCount uint32
	SRVCount uint32
	CBVCount uint32
}

// InstrumentationKey identifies a unique (feature set, content, binding
// layout) combination. Two jobs with equal keys compile to byte-identical
// output, so the shader cache and the in-flight job queue both dedup on
// it.
type InstrumentationKey struct {
	FeatureBitSet  FeatureBitSet
	CombinedHash   uint64
	SignatureBindingInfo
}

// CacheKey is the on-disk/in-memory shader cache key: a feature-version
// UID (bumped whenever a feature injector's output would change for the
// same input) paired with the shader's content hash.
type CacheKey struct {
	FeatureVersionUID uint64
	ContentHash       uint64
}
