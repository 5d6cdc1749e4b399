package controller

import (
	"sync"
	"testing"
	"time"

	"github.com/gpureshape/layer/compiler"
)

func newTestController(synchronous bool) (*Controller, *compiler.Pool, *compiler.Pool) {
	shaderPool := compiler.NewPool(2)
	pipelinePool := compiler.NewPool(2)
	c := New(shaderPool, pipelinePool, Hooks{
		CompileShader:   func(guid uint64, bitset compiler.FeatureBitSet) error { return nil },
		CompilePipeline: func(uid uint64, bitset compiler.FeatureBitSet) error { return nil },
		CommitTable:     func() error { return nil },
	}, synchronous)
	return c, shaderPool, pipelinePool
}

func TestCommitProgressesThroughStages(t *testing.T) {
	c, sp, pp := newTestController(true)
	defer sp.Close()
	defer pp.Close()

	c.SetShaderInstrumentation(1, compiler.FeatureBitSet(1))
	c.SetPipelineInstrumentation(10, compiler.FeatureBitSet(1), PipelineTypeCompute, "main_cs")

	c.Commit()
	c.ConditionalWaitForCompletion()

	if got := c.GetState(); got != StageNone {
		t.Fatalf("expected idle controller after wait, got %s", got)
	}
}

func TestConditionalWaitIsNoOpWhenAsynchronous(t *testing.T) {
	c, sp, pp := newTestController(false)
	defer sp.Close()
	defer pp.Close()

	c.SetShaderInstrumentation(1, compiler.FeatureBitSet(1))
	c.Commit()

	done := make(chan struct{})
	go func() {
		c.ConditionalWaitForCompletion()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("ConditionalWaitForCompletion blocked despite asynchronous mode")
	}
}

func TestFilterMatchingORsBitsets(t *testing.T) {
	c, sp, pp := newTestController(true)
	defer sp.Close()
	defer pp.Close()

	c.SetPipelineInstrumentation(1, 0, PipelineTypeGraphics, "shadow_pass")
	c.AddFilter(Filter{Type: PipelineTypeGraphics, NameSubstring: "shadow", BitSet: compiler.FeatureBitSet(1).Set(3)})
	c.AddFilter(Filter{Type: PipelineTypeCompute, NameSubstring: "shadow", BitSet: compiler.FeatureBitSet(1).Set(5)})

	eff := c.EffectiveBitSet(1, 0)
	if !eff.Has(3) {
		t.Fatalf("expected matching graphics filter's bit 3 set, got %v", eff)
	}
	if eff.Has(5) {
		t.Fatalf("compute-only filter must not match a graphics pipeline, got %v", eff)
	}
}

func TestGlobalInstrumentationDirtiesEverything(t *testing.T) {
	c, sp, pp := newTestController(true)
	defer sp.Close()
	defer pp.Close()

	c.SetShaderInstrumentation(1, 0)
	c.SetPipelineInstrumentation(1, 0, PipelineTypeAny, "")
	// Commit clears the dirty set seeded above.
	c.Commit()
	c.ConditionalWaitForCompletion()

	c.SetGlobalInstrumentation(compiler.FeatureBitSet(1))
	if len(c.dirtyShaders) != 1 || len(c.dirtyPipelines) != 1 {
		t.Fatalf("expected global instrumentation to re-dirty known objects, got shaders=%d pipelines=%d",
			len(c.dirtyShaders), len(c.dirtyPipelines))
	}
}

func TestVersioningControllerOrdersEvents(t *testing.T) {
	var mu sync.Mutex
	var events []ResourceEvent
	vc := NewVersioningController(func(e ResourceEvent) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(puid uint64) {
			defer wg.Done()
			vc.Created(puid)
		}(uint64(i))
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 50 {
		t.Fatalf("expected 50 events, got %d", len(events))
	}
	seen := make(map[uint64]bool)
	for _, e := range events {
		if seen[e.Version] {
			t.Fatalf("version %d emitted more than once", e.Version)
		}
		seen[e.Version] = true
	}
}

func TestVersioningHappensBeforeCreateThenRename(t *testing.T) {
	var events []ResourceEvent
	vc := NewVersioningController(func(e ResourceEvent) { events = append(events, e) })

	createVer := vc.Created(7)
	renameVer := vc.Renamed(7, "new_name")

	if renameVer <= createVer {
		t.Fatalf("rename version %d must be greater than create version %d", renameVer, createVer)
	}
	if events[0].Kind != ResourceCreated || events[1].Kind != ResourceRenamed {
		t.Fatalf("expected create before rename in emission order, got %+v", events)
	}
}
