package compiler

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
)

func TestBatchChunkSizeFormula(t *testing.T) {
	cases := []struct {
		jobs, workers, want int
	}{
		{jobs: 100, workers: 4, want: 8}, // 100/(4*3) = 8
		{jobs: 1, workers: 4, want: 1},   // floor hits zero, clamped to 1
		{jobs: 0, workers: 4, want: 1},
	}
	for _, c := range cases {
		if got := batchChunkSize(c.jobs, c.workers); got != c.want {
			t.Errorf("batchChunkSize(%d, %d) = %d, want %d", c.jobs, c.workers, got, c.want)
		}
	}
}

func TestPoolRunsEveryJobExactlyOnce(t *testing.T) {
	p := NewPool(4)
	defer p.Close()

	const n = 500
	var ran atomic.Int64
	jobs := make([]Job, n)
	for i := range jobs {
		jobs[i] = func() error {
			ran.Add(1)
			return nil
		}
	}

	var wg sync.WaitGroup
	wg.Add(1)
	p.Submit(jobs, func(head uint64, failures []error) {
		defer wg.Done()
		if len(failures) != 0 {
			t.Errorf("unexpected failures: %v", failures)
		}
	})
	wg.Wait()

	if got := ran.Load(); got != n {
		t.Fatalf("expected %d jobs to run, got %d", n, got)
	}
}

func TestPoolCompletionRunsOnce(t *testing.T) {
	p := NewPool(8)
	defer p.Close()

	jobs := make([]Job, 200)
	for i := range jobs {
		jobs[i] = func() error { return nil }
	}

	var completions atomic.Int64
	var wg sync.WaitGroup
	wg.Add(1)
	p.Submit(jobs, func(head uint64, failures []error) {
		completions.Add(1)
		wg.Done()
	})
	wg.Wait()

	if got := completions.Load(); got != 1 {
		t.Fatalf("completion functor ran %d times, want 1", got)
	}
}

func TestPoolRecordsJobFailures(t *testing.T) {
	p := NewPool(2)
	defer p.Close()

	boom := errors.New("compile failed")
	jobs := []Job{
		func() error { return nil },
		func() error { return boom },
		func() error { return nil },
	}

	var wg sync.WaitGroup
	wg.Add(1)
	var gotFailures []error
	p.Submit(jobs, func(head uint64, failures []error) {
		gotFailures = failures
		wg.Done()
	})
	wg.Wait()

	if len(gotFailures) != 1 {
		t.Fatalf("expected 1 recorded failure, got %d", len(gotFailures))
	}
	if p.FailedJobs() != 1 {
		t.Fatalf("FailedJobs() = %d, want 1", p.FailedJobs())
	}
}

func TestPoolEmptyBatchCompletesImmediately(t *testing.T) {
	p := NewPool(2)
	defer p.Close()

	called := make(chan struct{})
	p.Submit(nil, func(head uint64, failures []error) { close(called) })
	<-called
}

func TestShaderCacheGetOrCompile(t *testing.T) {
	dir := t.TempDir()
	c := NewShaderCache(filepath.Join(dir, "cache.bin"), 1000, 1.5)
	defer c.Close()

	key := CacheKey{FeatureVersionUID: 1, ContentHash: 42}
	var compiles atomic.Int64
	compile := func() ([]byte, error) {
		compiles.Add(1)
		return []byte{1, 2, 3}, nil
	}

	bc, err := c.GetOrCompile(key, 0, compile)
	if err != nil {
		t.Fatalf("GetOrCompile: %v", err)
	}
	if len(bc) != 3 {
		t.Fatalf("unexpected bytecode: %v", bc)
	}

	bc2, err := c.GetOrCompile(key, 0, compile)
	if err != nil {
		t.Fatalf("GetOrCompile (cached): %v", err)
	}
	if len(bc2) != 3 {
		t.Fatalf("unexpected cached bytecode: %v", bc2)
	}
	if compiles.Load() != 1 {
		t.Fatalf("compile invoked %d times, want 1", compiles.Load())
	}
	if ratio := c.HitRatio(); ratio <= 0 {
		t.Fatalf("expected a positive hit ratio, got %f", ratio)
	}
}

func TestShaderCacheRoundTripsThroughDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.bin")

	c := NewShaderCache(path, 1, 1.5) // flush after every insert
	key := CacheKey{FeatureVersionUID: 7, ContentHash: 99}
	c.Put(key, 0xAB, []byte("bytecode-payload"))
	// Put triggers FlushAsync, which serializes on the background thread;
	// Close drains it before the thread exits.
	c.Close()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected cache file to exist: %v", err)
	}

	c2 := NewShaderCache(path, 1000, 1.5)
	defer c2.Close()
	if err := c2.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	bc, ok := c2.Get(key)
	if !ok {
		t.Fatalf("expected key to be present after reload")
	}
	if string(bc) != "bytecode-payload" {
		t.Fatalf("unexpected bytecode after reload: %q", bc)
	}
}

func TestShaderCacheDiscardsForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.bin")
	if err := os.WriteFile(path, []byte("not a cache file"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	c := NewShaderCache(path, 1000, 1.5)
	defer c.Close()
	if err := c.Load(); err != nil {
		t.Fatalf("Load should discard a foreign file without error, got: %v", err)
	}
	if _, ok := c.Get(CacheKey{}); ok {
		t.Fatalf("expected empty cache after discarding a foreign file")
	}
}
