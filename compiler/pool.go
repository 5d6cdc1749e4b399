package compiler

import (
	"sync"
	"sync/atomic"
)

// Job compiles or instruments one shader or pipeline object. It returns an
// error describing a localized, non-fatal compile failure (§7); it must
// never panic.
type Job func() error

// Batch is a group of jobs submitted together and completed together. Its
// onComplete functor runs exactly once, invoked by whichever worker
// happens to finish the batch's last outstanding chunk.
type Batch struct {
	total   int
	pending atomic.Int64

	mu       sync.Mutex
	failures []error

	onComplete func(head uint64, failures []error)
}

func (b *Batch) recordFailure(err error) {
	b.mu.Lock()
	b.failures = append(b.failures, err)
	b.mu.Unlock()
}

// chunk is the FIFO queue element: a contiguous slice of one batch's jobs,
// sized by the pool's batch-chunking formula.
type chunk struct {
	batch *Batch
	jobs  []Job
}

// Pool is a fixed-size worker pool shared by the shader and pipeline
// compiler pools. Jobs are submitted in batches and chunked across
// workers; a mutex-guarded FIFO plus a condition variable hands chunks to
// idle workers, matching the dedicated-thread-free, plain-goroutine-worker
// shape used throughout this module's concurrency (no extra abstraction
// over goroutines where a channel-backed queue suffices).
type Pool struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []chunk
	closed  bool
	workers int

	// completeCounter is the running total of jobs completed across every
	// batch ever submitted to this pool. It is read to predict a batch's
	// "head" position (see completeBatch) and only written after a
	// batch's completion functor has already run — preserving the
	// source's documented read-before-increment ordering rather than
	// fixing it into a more obviously-correct sequence.
	completeCounter atomic.Uint64
	failedJobs      atomic.Uint64
}

// NewPool starts a pool with the given number of workers. workers must be
// at least 1.
func NewPool(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	p := &Pool{workers: workers}
	p.cond = sync.NewCond(&p.mu)
	for i := 0; i < workers; i++ {
		go p.run()
	}
	return p
}

// batchChunkSize implements the pool's chunking formula,
// max(1, jobCount/(workers*3)): at least one job per chunk, otherwise
// roughly three chunks per worker.
func batchChunkSize(jobCount, workers int) int {
	size := jobCount / (workers * 3)
	if size < 1 {
		size = 1
	}
	return size
}

// Submit splits jobs into chunks and enqueues them, returning a Batch
// whose onComplete runs once every job (across every chunk) has finished.
func (p *Pool) Submit(jobs []Job, onComplete func(head uint64, failures []error)) *Batch {
	b := &Batch{total: len(jobs), onComplete: onComplete}
	b.pending.Store(int64(len(jobs)))

	if len(jobs) == 0 {
		p.completeBatch(b)
		return b
	}

	size := batchChunkSize(len(jobs), p.workers)
	p.mu.Lock()
	for i := 0; i < len(jobs); i += size {
		end := i + size
		if end > len(jobs) {
			end = len(jobs)
		}
		p.queue = append(p.queue, chunk{batch: b, jobs: jobs[i:end]})
	}
	p.mu.Unlock()
	p.cond.Broadcast()
	return b
}

// run is a worker goroutine: dequeue a chunk, execute its jobs, and
// complete the batch if this chunk was the last outstanding work.
func (p *Pool) run() {
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.queue) == 0 && p.closed {
			p.mu.Unlock()
			return
		}
		c := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		for _, job := range c.jobs {
			if err := job(); err != nil {
				c.batch.recordFailure(err)
				p.failedJobs.Add(1)
			}
		}

		if c.batch.pending.Add(-int64(len(c.jobs))) == 0 {
			p.completeBatch(c.batch)
		}
	}
}

// completeBatch invokes a batch's completion functor exactly once. head is
// computed as the pool's completion counter plus this batch's size before
// the counter itself is advanced — a later caller inspecting
// p.completeCounter mid-callback still sees the pre-batch value. The
// counter only advances once onComplete has returned.
func (p *Pool) completeBatch(b *Batch) {
	head := p.completeCounter.Load() + uint64(b.total)
	if b.onComplete != nil {
		b.mu.Lock()
		failures := append([]error(nil), b.failures...)
		b.mu.Unlock()
		b.onComplete(head, failures)
	}
	p.completeCounter.Add(uint64(b.total))
}

// FailedJobs returns the running count of jobs that returned a non-nil
// error, across every batch this pool has ever completed.
func (p *Pool) FailedJobs() uint64 { return p.failedJobs.Load() }

// Close stops accepting new work and lets running workers drain the
// existing queue before exiting. It does not block.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cond.Broadcast()
}
