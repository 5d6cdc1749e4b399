package layer

import (
	"github.com/gpureshape/layer/bridge"
	"github.com/gpureshape/layer/compiler"
	"github.com/gpureshape/layer/controller"
	"github.com/gpureshape/layer/core"
	"github.com/gpureshape/layer/prmt"
	"github.com/gpureshape/layer/streamer"
	"github.com/gpureshape/layer/texel"
)

// Context is the one explicit value every entry point is handed, replacing
// the source's process-wide dispatch/state tables and hook trampolines
// (spec §9 Design Notes: "Model them as one explicit 'layer context' value
// passed to every entry point"). It owns every subsystem constructed from
// a Config.
type Context struct {
	Config Config

	// Hub backs the §3 entities (ShaderModule, PipelineState,
	// ResourceState) with a generation-indexed slot map, so an ID handed
	// out before a resource's destruction can never be silently
	// confused with whatever gets allocated into the same slot after.
	Hub *core.Hub

	ShaderPool   *compiler.Pool
	PipelinePool *compiler.Pool
	Cache        *compiler.ShaderCache // nil when Config.CachePath == ""

	Controller *controller.Controller
	Versioning *controller.VersioningController

	Streamer *streamer.Streamer
	Table    *prmt.Table
	Texels   *texel.Allocator

	Bridge bridge.Bridge
}

// New builds a Context from cfg, wiring every subsystem together. hooks
// supplies the controller's shader/pipeline compile and table-commit
// callbacks (controller.Hooks) since those depend on the host's concrete
// device/shader-binary types, which this package has no dependency on.
func New(cfg Config, hooks controller.Hooks) (*Context, error) {
	ctx := &Context{Config: cfg}

	ctx.Hub = core.NewHub()

	ctx.ShaderPool = compiler.NewPool(cfg.ShaderWorkerCount)
	ctx.PipelinePool = compiler.NewPool(cfg.PipelineWorkerCount)

	if cfg.CachePath != "" {
		ctx.Cache = compiler.NewShaderCache(cfg.CachePath, cfg.CacheFlushThreshold, cfg.CacheFlushFactor)
		if err := ctx.Cache.Load(); err != nil {
			Logger().Warn("shader cache load failed, starting cold", "path", cfg.CachePath, "error", err)
		}
	}

	ctx.Controller = controller.New(ctx.ShaderPool, ctx.PipelinePool, hooks, cfg.SynchronousRecording)

	if cfg.TexelCapacityTexels > 0 {
		ctx.Texels = texel.Install(cfg.TexelCapacityTexels, cfg.TexelHardwareLimit)
	}

	if cfg.PRMTInitialCapacity > 0 {
		ctx.Table = prmt.NewTable(cfg.PRMTInitialCapacity, cfg.PRMTMaxElements)
	}

	var mb bridge.Bridge
	if cfg.BridgeRemoteAddr != "" {
		remote, err := bridge.DialRemote(cfg.BridgeRemoteAddr)
		if err != nil {
			return nil, err
		}
		mb = remote
	} else {
		mb = bridge.NewMemory()
	}
	ctx.Bridge = mb

	ctx.Versioning = controller.NewVersioningController(func(ev controller.ResourceEvent) {
		ctx.emitVersioningEvent(ev)
	})

	ctx.Streamer = streamer.New(cfg.StreamerMode, cfg.StreamerLocalCap, ctx.dispatchStreamerMessages)

	return ctx, nil
}

// dispatchStreamerMessages forwards a drained segment's messages onto the
// bridge as a single stream, keeping the streamer package free of any
// bridge dependency.
func (ctx *Context) dispatchStreamerMessages(queueID, segmentID uint64, messages []streamer.Message) {
	if ctx.Bridge == nil || len(messages) == 0 {
		return
	}
	b := bridge.NewStreamBuilder(bridge.MessageStreamerExport)
	for _, m := range messages {
		header := make([]byte, 8)
		header[0] = byte(m.ExportID)
		header[1] = byte(m.ExportID >> 8)
		header[2] = byte(m.ExportID >> 16)
		header[3] = byte(m.ExportID >> 24)
		b.AddVariable(header, m.Data)
	}
	ctx.Bridge.Append(b.Build(1))
}

// emitVersioningEvent forwards one resource lifetime event to the bridge's
// dedicated ordered stream (spec's Versioning Controller: "a dedicated
// ordered bridge stream so the inspector can reconstruct resource
// lifetimes").
func (ctx *Context) emitVersioningEvent(ev controller.ResourceEvent) {
	if ctx.Bridge == nil {
		return
	}
	rec := make([]byte, 24+len(ev.Name))
	putU64le(rec[0:8], ev.PUID)
	rec[8] = byte(ev.Kind)
	putU64le(rec[16:24], ev.Version)
	copy(rec[24:], ev.Name)

	b := bridge.NewStreamBuilder(bridge.MessageResourceVersion)
	b.AddFixed(rec)
	ctx.Bridge.Append(b.Build(1))
	ctx.Bridge.Commit()
}

func putU64le(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

// Close releases the context's background resources: both compiler
// pools, the shader cache's dedicated serializer thread (if a cache is
// configured), and the bridge transport (if it owns a connection).
func (ctx *Context) Close() {
	ctx.ShaderPool.Close()
	ctx.PipelinePool.Close()
	if ctx.Cache != nil {
		ctx.Cache.Close()
	}
	if stopper, ok := ctx.Bridge.(interface{ Stop() }); ok {
		stopper.Stop()
	}
}
