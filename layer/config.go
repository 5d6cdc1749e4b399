package layer

import (
	"github.com/gpureshape/layer/streamer"
)

// Option configures a Config during creation, the same functional-options
// shape the pack's gg.ContextOption uses for optional constructor
// parameters (spec §2 Configuration: "layer.Config ... built via
// functional options").
type Option func(*Config)

// Config collects every subsystem's tunables into one value a host
// application builds once at layer install time.
type Config struct {
	// ShaderWorkerCount / PipelineWorkerCount size the two compiler pools
	// (compiler.NewPool).
	ShaderWorkerCount   int
	PipelineWorkerCount int

	// SynchronousRecording configures whether controller.
	// ConditionalWaitForCompletion actually blocks the calling goroutine.
	SynchronousRecording bool

	// CachePath is the on-disk shader cache location; empty disables
	// on-disk caching (in-memory only).
	CachePath           string
	CacheFlushThreshold int
	CacheFlushFactor    float64

	// StreamerMode / StreamerLocalCap configure the export streamer's
	// segment allocation strategy (streamer.New).
	StreamerMode     streamer.AllocationMode
	StreamerLocalCap int

	// TexelCapacityTexels / TexelHardwareLimit size the texel allocator's
	// sparse buffer (texel.Install).
	TexelCapacityTexels uint64
	TexelHardwareLimit  uint64

	// PRMTInitialCapacity / PRMTMaxElements size the physical resource
	// mapping table (prmt.NewTable).
	PRMTInitialCapacity uint32
	PRMTMaxElements     uint32

	// BridgeRemoteAddr, when non-empty, has the layer dial out to a
	// remote inspector (bridge.DialRemote) instead of using the in-process
	// bridge.Memory transport.
	BridgeRemoteAddr string
}

// defaultConfig mirrors the magnitudes named throughout spec.md/SPEC_FULL.md
// (table growth floor, texel buffer size) rather than arbitrary round
// numbers.
func defaultConfig() Config {
	return Config{
		ShaderWorkerCount:    4,
		PipelineWorkerCount:  4,
		CacheFlushThreshold:  256,
		CacheFlushFactor:     1.5,
		StreamerMode:         streamer.LocalCommandBuffer,
		StreamerLocalCap:     64,
		TexelCapacityTexels:  1 << 24,
		PRMTInitialCapacity:  64000,
	}
}

// NewConfig builds a Config from defaults plus the given options.
func NewConfig(opts ...Option) Config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithWorkerCounts sets the shader and pipeline compiler pool sizes.
func WithWorkerCounts(shaders, pipelines int) Option {
	return func(c *Config) {
		c.ShaderWorkerCount = shaders
		c.PipelineWorkerCount = pipelines
	}
}

// WithSynchronousRecording configures whether
// ConditionalWaitForCompletion blocks the caller.
func WithSynchronousRecording(synchronous bool) Option {
	return func(c *Config) {
		c.SynchronousRecording = synchronous
	}
}

// WithShaderCache sets the on-disk cache path and auto-flush threshold.
func WithShaderCache(path string, flushThreshold int, flushFactor float64) Option {
	return func(c *Config) {
		c.CachePath = path
		c.CacheFlushThreshold = flushThreshold
		c.CacheFlushFactor = flushFactor
	}
}

// WithStreamerMode sets the export streamer's allocation strategy.
func WithStreamerMode(mode streamer.AllocationMode, localCap int) Option {
	return func(c *Config) {
		c.StreamerMode = mode
		c.StreamerLocalCap = localCap
	}
}

// WithTexelCapacity sets the texel allocator's requested and
// hardware-limit texel counts (texel.Install).
func WithTexelCapacity(requested, hardwareLimit uint64) Option {
	return func(c *Config) {
		c.TexelCapacityTexels = requested
		c.TexelHardwareLimit = hardwareLimit
	}
}

// WithPRMTCapacity sets the physical resource mapping table's initial and
// maximum element counts.
func WithPRMTCapacity(initial, max uint32) Option {
	return func(c *Config) {
		c.PRMTInitialCapacity = initial
		c.PRMTMaxElements = max
	}
}

// WithRemoteBridge has the layer dial a remote inspector instead of using
// the default in-process bridge.
func WithRemoteBridge(addr string) Option {
	return func(c *Config) {
		c.BridgeRemoteAddr = addr
	}
}
