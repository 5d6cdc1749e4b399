package layer

import (
	"testing"

	"github.com/gpureshape/layer/bridge"
	"github.com/gpureshape/layer/compiler"
	"github.com/gpureshape/layer/controller"
)

func testHooks() controller.Hooks {
	return controller.Hooks{
		CompileShader:   func(guid uint64, bitset compiler.FeatureBitSet) error { return nil },
		CompilePipeline: func(uid uint64, bitset compiler.FeatureBitSet) error { return nil },
		CommitTable:     func() error { return nil },
	}
}

func TestNewConfigAppliesOptionsOverDefaults(t *testing.T) {
	cfg := NewConfig(WithWorkerCounts(2, 3), WithSynchronousRecording(true))
	if cfg.ShaderWorkerCount != 2 || cfg.PipelineWorkerCount != 3 {
		t.Fatalf("unexpected worker counts: %+v", cfg)
	}
	if !cfg.SynchronousRecording {
		t.Fatal("expected synchronous recording to be enabled")
	}
	if cfg.TexelCapacityTexels == 0 {
		t.Fatal("expected a default texel capacity")
	}
}

func TestContextWiresSubsystemsFromConfig(t *testing.T) {
	cfg := NewConfig(WithTexelCapacity(1<<16, 0), WithPRMTCapacity(128, 0))
	ctx, err := New(cfg, testHooks())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer ctx.Close()

	if ctx.Hub == nil {
		t.Fatal("expected a resource hub")
	}
	if ctx.ShaderPool == nil || ctx.PipelinePool == nil {
		t.Fatal("expected both compiler pools to be constructed")
	}
	if ctx.Texels == nil {
		t.Fatal("expected a texel allocator")
	}
	if ctx.Table == nil {
		t.Fatal("expected a PRMT table")
	}
	if ctx.Bridge == nil {
		t.Fatal("expected an in-process bridge by default")
	}
	if ctx.Streamer == nil {
		t.Fatal("expected a streamer")
	}
}

func TestContextVersioningEventReachesBridge(t *testing.T) {
	ctx, err := New(NewConfig(), testHooks())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer ctx.Close()

	received := make(chan bridge.MessageStream, 1)
	ctx.Bridge.Register(bridge.MessageResourceVersion, func(streams []bridge.MessageStream) {
		for _, s := range streams {
			received <- s
		}
	})

	ctx.Versioning.Created(42)

	select {
	case stream := <-received:
		if stream.SchemaID != bridge.MessageResourceVersion {
			t.Fatalf("unexpected schema id %d", stream.SchemaID)
		}
		if len(stream.Bytes) < 16 {
			t.Fatalf("expected at least a puid+kind+version record, got %d bytes", len(stream.Bytes))
		}
	default:
		t.Fatal("expected Created to synchronously emit and commit a versioning event")
	}
}
