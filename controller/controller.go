// Package controller implements the instrumentation controller: the state
// machine that turns a set of dirty shaders and pipelines into a freshly
// compiled, live-swapped instrumentation wave, plus the versioning
// controller that reports resource lifetime events to the host.
package controller

import (
	"sync"
	"sync/atomic"

	"github.com/gpureshape/layer/compiler"
)

// Stage is the instrumentation controller's batch state machine position.
type Stage int32

const (
	StageNone Stage = iota
	StageShaders
	StagePipelines
	StageTable
	StageCommit
)

func (s Stage) String() string {
	switch s {
	case StageNone:
		return "None"
	case StageShaders:
		return "Shaders"
	case StagePipelines:
		return "Pipelines"
	case StageTable:
		return "Table"
	case StageCommit:
		return "Commit"
	default:
		return "Unknown"
	}
}

// Hooks are the controller's collaborators: the compiler pools used to
// schedule work, and the functions that actually compile one shader or
// pipeline and rebuild the PRMT/descriptor mirror. Kept as plain function
// fields rather than an interface since each commit protocol stage needs
// exactly one call shape and nothing else implements this contract.
type Hooks struct {
	CompileShader   func(guid uint64, bitset compiler.FeatureBitSet) error
	CompilePipeline func(uid uint64, bitset compiler.FeatureBitSet) error
	CommitTable     func() error
}

// batch is one in-flight compilation wave.
type batch struct {
	stage   atomic.Int32
	done    chan struct{}
	once    sync.Once
	failed  atomic.Uint64
	shaders []uint64
	pipes   []uint64
}

func (b *batch) setStage(s Stage) { b.stage.Store(int32(s)) }
func (b *batch) finish()          { b.once.Do(func() { close(b.done) }) }

// Controller drives the None → Shaders → Pipelines → Table → Commit
// state machine. It owns exactly one accumulating immediateBatch of dirty
// object IDs and at most one compilationBatch in flight, per spec §4.3.
type Controller struct {
	mu sync.Mutex

	global      compiler.FeatureBitSet
	perShader   map[uint64]compiler.FeatureBitSet
	perPipeline map[uint64]compiler.FeatureBitSet
	filters     []Filter
	pipeKind    map[uint64]PipelineType
	pipeName    map[uint64]string

	dirtyShaders   map[uint64]struct{}
	dirtyPipelines map[uint64]struct{}

	active *batch // the one compilationBatch in flight, nil when idle

	shaderPool   *compiler.Pool
	pipelinePool *compiler.Pool
	hooks        Hooks

	synchronousRecording bool
	lastFailed           atomic.Uint64
}

// New constructs a controller over the given shader and pipeline compiler
// pools. synchronousRecording configures whether ConditionalWaitForCompletion
// actually blocks (§4.3 "Synchronous vs async").
func New(shaderPool, pipelinePool *compiler.Pool, hooks Hooks, synchronousRecording bool) *Controller {
	return &Controller{
		perShader:            make(map[uint64]compiler.FeatureBitSet),
		perPipeline:          make(map[uint64]compiler.FeatureBitSet),
		pipeKind:             make(map[uint64]PipelineType),
		pipeName:             make(map[uint64]string),
		dirtyShaders:         make(map[uint64]struct{}),
		dirtyPipelines:       make(map[uint64]struct{}),
		shaderPool:           shaderPool,
		pipelinePool:         pipelinePool,
		hooks:                hooks,
		synchronousRecording: synchronousRecording,
	}
}

// SetGlobalInstrumentation installs the global feature bitset and marks
// every known shader and pipeline dirty, since the effective bitset of
// every object may have changed.
func (c *Controller) SetGlobalInstrumentation(bitset compiler.FeatureBitSet) {
	c.mu.Lock()
	c.global = bitset
	for guid := range c.perShader {
		c.dirtyShaders[guid] = struct{}{}
	}
	for uid := range c.perPipeline {
		c.dirtyPipelines[uid] = struct{}{}
	}
	c.mu.Unlock()
}

// SetShaderInstrumentation sets one shader's per-shader bitset and marks
// it dirty.
func (c *Controller) SetShaderInstrumentation(guid uint64, bitset compiler.FeatureBitSet) {
	c.mu.Lock()
	c.perShader[guid] = bitset
	c.dirtyShaders[guid] = struct{}{}
	c.mu.Unlock()
}

// SetPipelineInstrumentation sets one pipeline's per-pipeline bitset and
// marks it dirty. kind/debugName are recorded for filter matching.
func (c *Controller) SetPipelineInstrumentation(uid uint64, bitset compiler.FeatureBitSet, kind PipelineType, debugName string) {
	c.mu.Lock()
	c.perPipeline[uid] = bitset
	c.pipeKind[uid] = kind
	c.pipeName[uid] = debugName
	c.dirtyPipelines[uid] = struct{}{}
	c.mu.Unlock()
}

// AddFilter appends a filter and marks every pipeline it matches dirty.
func (c *Controller) AddFilter(f Filter) {
	c.mu.Lock()
	c.filters = append(c.filters, f)
	for uid, kind := range c.pipeKind {
		if f.Matches(kind, c.pipeName[uid]) {
			c.dirtyPipelines[uid] = struct{}{}
		}
	}
	c.mu.Unlock()
}

// GetState returns the stage of the in-flight compilation batch, or
// StageNone when idle.
func (c *Controller) GetState() Stage {
	c.mu.Lock()
	b := c.active
	c.mu.Unlock()
	if b == nil {
		return StageNone
	}
	return Stage(b.stage.Load())
}

// EffectiveBitSet returns the summarized feature set for one pipeline,
// recomputed from the current global/per-pipeline/per-shader/filter state
// (spec §4.3's "recomputed lazily when any input changes").
func (c *Controller) EffectiveBitSet(pipelineUID, shaderGUID uint64) compiler.FeatureBitSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	kind := c.pipeKind[pipelineUID]
	name := c.pipeName[pipelineUID]
	return effectiveBitSet(c.global, c.perPipeline[pipelineUID], c.perShader[shaderGUID], c.filters, kind, name)
}

// Commit snapshots every dirty shader and pipeline into a new
// compilationBatch and dispatches the commit protocol. It is a no-op if a
// batch is already in flight or nothing is dirty. Commit never blocks;
// use ConditionalWaitForCompletion to wait for it.
func (c *Controller) Commit() {
	c.mu.Lock()
	if c.active != nil {
		c.mu.Unlock()
		return
	}
	if len(c.dirtyShaders) == 0 && len(c.dirtyPipelines) == 0 {
		c.mu.Unlock()
		return
	}
	b := &batch{done: make(chan struct{})}
	for guid := range c.dirtyShaders {
		b.shaders = append(b.shaders, guid)
	}
	for uid := range c.dirtyPipelines {
		b.pipes = append(b.pipes, uid)
	}
	c.dirtyShaders = make(map[uint64]struct{})
	c.dirtyPipelines = make(map[uint64]struct{})
	c.active = b
	c.mu.Unlock()

	b.setStage(StageShaders)
	c.dispatchShaders(b)
}

func (c *Controller) dispatchShaders(b *batch) {
	jobs := make([]compiler.Job, len(b.shaders))
	for i, guid := range b.shaders {
		guid := guid
		jobs[i] = func() error {
			if c.hooks.CompileShader == nil {
				return nil
			}
			return c.hooks.CompileShader(guid, c.EffectiveBitSet(0, guid))
		}
	}
	c.shaderPool.Submit(jobs, func(head uint64, failures []error) {
		b.failed.Add(uint64(len(failures)))
		b.setStage(StagePipelines)
		c.dispatchPipelines(b)
	})
}

func (c *Controller) dispatchPipelines(b *batch) {
	jobs := make([]compiler.Job, len(b.pipes))
	for i, uid := range b.pipes {
		uid := uid
		jobs[i] = func() error {
			if c.hooks.CompilePipeline == nil {
				return nil
			}
			return c.hooks.CompilePipeline(uid, c.EffectiveBitSet(uid, 0))
		}
	}
	c.pipelinePool.Submit(jobs, func(head uint64, failures []error) {
		b.failed.Add(uint64(len(failures)))
		b.setStage(StageTable)
		c.commitTable(b)
	})
}

func (c *Controller) commitTable(b *batch) {
	if c.hooks.CommitTable != nil {
		_ = c.hooks.CommitTable()
	}
	b.setStage(StageCommit)

	c.lastFailed.Store(b.failed.Load())

	c.mu.Lock()
	c.active = nil
	c.mu.Unlock()

	b.finish()
}

// ConditionalWaitForCompletion blocks the calling goroutine until the
// in-flight compilation batch reaches StageCommit, but only when the
// controller was constructed with synchronousRecording set. This is the
// one sanctioned blocking path in the controller (§4.3); in asynchronous
// mode it returns immediately and callers keep using whichever pipeline
// object was live when they recorded.
func (c *Controller) ConditionalWaitForCompletion() {
	if !c.synchronousRecording {
		return
	}
	c.mu.Lock()
	b := c.active
	c.mu.Unlock()
	if b == nil {
		return
	}
	<-b.done
}

// FailedJobs returns the number of shader/pipeline compile failures
// recorded by the most recently completed batch (or, if one is in
// flight, its failures so far).
func (c *Controller) FailedJobs() uint64 {
	c.mu.Lock()
	b := c.active
	c.mu.Unlock()
	if b != nil {
		return b.failed.Load()
	}
	return c.lastFailed.Load()
}
