package compiler

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/gpureshape/layer/internal/thread"
)

// ErrCacheMagicMismatch is returned (and logged, never fatal) when an
// on-disk cache file does not start with the expected magic — a stale or
// foreign file is discarded rather than trusted.
var ErrCacheMagicMismatch = errors.New("compiler: shader cache magic mismatch")

var cacheMagic = [4]byte{'G', 'R', 'S', 'C'}

const layerCacheVersion uint32 = 1

// cacheEntry is one on-disk/in-memory shader cache record.
type cacheEntry struct {
	Key      CacheKey
	Flags    uint32
	Bytecode []byte
}

// ShaderCache is a hashed get-or-create cache of compiled, instrumented
// shader bytecode, keyed by (featureVersionUID, contentHash) so a feature
// version bump invalidates only what it must. Reads take a read lock; a
// miss inserts under the write lock without re-checking for an entry
// another goroutine inserted meanwhile (the later Put replaces it).
type ShaderCache struct {
	mu      sync.RWMutex
	entries map[CacheKey]*cacheEntry

	hits   atomic.Uint64
	misses atomic.Uint64

	path           string
	flushThreshold int
	flushFactor    float64
	dirty          int

	serializer *thread.Thread
}

// NewShaderCache opens (or prepares to create) a cache backed by path.
// flushThreshold is the number of dirty entries that triggers an
// auto-flush; each flush grows the threshold by flushFactor so a cache
// that is being populated quickly doesn't serialize on every single
// insert.
func NewShaderCache(path string, flushThreshold int, flushFactor float64) *ShaderCache {
	if flushThreshold < 1 {
		flushThreshold = 1
	}
	if flushFactor < 1 {
		flushFactor = 1
	}
	c := &ShaderCache{
		entries:        make(map[CacheKey]*cacheEntry),
		path:           path,
		flushThreshold: flushThreshold,
		flushFactor:    flushFactor,
		serializer:     thread.New(),
	}
	return c
}

// Load reads the on-disk cache file, if present. A missing file is not an
// error — a cold cache is the normal first-run state. A corrupt or
// foreign file is discarded with a warning rather than surfaced as a
// fatal error, since the cache is purely an optimization.
func (c *ShaderCache) Load() error {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("compiler: reading shader cache: %w", err)
	}
	entries, err := decodeCache(data)
	if err != nil {
		slog.Warn("discarding shader cache", "path", c.path, "reason", err)
		return nil
	}
	c.mu.Lock()
	for _, e := range entries {
		ent := e
		c.entries[e.Key] = &ent
	}
	c.mu.Unlock()
	return nil
}

// Get returns cached bytecode for key, or false on miss.
func (c *ShaderCache) Get(key CacheKey) ([]byte, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
		return e.Bytecode, true
	}
	c.misses.Add(1)
	return nil, false
}

// GetOrCompile returns the cached bytecode for key, compiling and
// inserting it via compile on miss. compile is called at most once per
// miss; a second, concurrent miss for the same key may still call compile
// twice (the lock is not held across compile), allowing rare duplicate
// work over serializing all compiles behind one lock.
func (c *ShaderCache) GetOrCompile(key CacheKey, flags uint32, compile func() ([]byte, error)) ([]byte, error) {
	if bc, ok := c.Get(key); ok {
		return bc, nil
	}
	bc, err := compile()
	if err != nil {
		return nil, err
	}
	c.Put(key, flags, bc)
	return bc, nil
}

// Put inserts or replaces a cache entry, scheduling an auto-flush once the
// dirty count crosses the current threshold.
func (c *ShaderCache) Put(key CacheKey, flags uint32, bytecode []byte) {
	c.mu.Lock()
	c.entries[key] = &cacheEntry{Key: key, Flags: flags, Bytecode: bytecode}
	c.dirty++
	shouldFlush := c.dirty >= c.flushThreshold
	c.mu.Unlock()

	if shouldFlush {
		c.FlushAsync()
	}
}

// HitRatio returns hits/(hits+misses), or 0 with no lookups yet.
func (c *ShaderCache) HitRatio() float64 {
	h, m := c.hits.Load(), c.misses.Load()
	if h+m == 0 {
		return 0
	}
	return float64(h) / float64(h+m)
}

// FlushAsync snapshots the cache and serializes it on the dedicated
// background thread, then grows the flush threshold by flushFactor so the
// next auto-flush fires less eagerly relative to cache size.
func (c *ShaderCache) FlushAsync() {
	c.mu.Lock()
	snapshot := make([]cacheEntry, 0, len(c.entries))
	for _, e := range c.entries {
		snapshot = append(snapshot, *e)
	}
	c.dirty = 0
	c.flushThreshold = int(float64(c.flushThreshold) * c.flushFactor)
	if c.flushThreshold < 1 {
		c.flushThreshold = 1
	}
	c.mu.Unlock()

	c.serializer.CallAsync(func() {
		data := encodeCache(snapshot)
		if err := os.WriteFile(c.path, data, 0o644); err != nil {
			slog.Error("shader cache flush failed", "path", c.path, "error", err)
		}
	})
}

// Close drains any flush already queued on the background serializer
// thread, then stops it. The drain is a synchronous no-op call: since the
// thread processes its func channel strictly in order and nothing has
// closed its done channel yet, this blocks until every FlushAsync queued
// before Close was called has actually run.
func (c *ShaderCache) Close() {
	c.serializer.CallVoid(func() {})
	c.serializer.Stop()
}

// encodeCache lays out [magic|layer_version|entry_count|(key,flags,
// bytecode)*]. There is no separate trailing location registry: offsets
// are implicit in sequential read order, which this format relies on
// exclusively (no random access into a cache file is ever needed).
func encodeCache(entries []cacheEntry) []byte {
	var buf bytes.Buffer
	buf.Write(cacheMagic[:])
	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[0:4], layerCacheVersion)
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(entries)))
	buf.Write(hdr[:])

	for _, e := range entries {
		var rec [28]byte
		binary.LittleEndian.PutUint64(rec[0:8], e.Key.FeatureVersionUID)
		binary.LittleEndian.PutUint64(rec[8:16], e.Key.ContentHash)
		binary.LittleEndian.PutUint32(rec[16:20], e.Flags)
		binary.LittleEndian.PutUint32(rec[20:24], uint32(len(e.Bytecode)))
		buf.Write(rec[:24])
		buf.Write(e.Bytecode)
	}
	return buf.Bytes()
}

func decodeCache(data []byte) ([]cacheEntry, error) {
	if len(data) < 12 || !bytes.Equal(data[0:4], cacheMagic[:]) {
		return nil, ErrCacheMagicMismatch
	}
	version := binary.LittleEndian.Uint32(data[4:8])
	if version != layerCacheVersion {
		return nil, fmt.Errorf("compiler: unsupported shader cache version %d", version)
	}
	count := binary.LittleEndian.Uint32(data[8:12])

	entries := make([]cacheEntry, 0, count)
	off := 12
	for i := uint32(0); i < count; i++ {
		if off+24 > len(data) {
			return nil, fmt.Errorf("compiler: shader cache truncated at entry %d", i)
		}
		var e cacheEntry
		e.Key.FeatureVersionUID = binary.LittleEndian.Uint64(data[off : off+8])
		e.Key.ContentHash = binary.LittleEndian.Uint64(data[off+8 : off+16])
		e.Flags = binary.LittleEndian.Uint32(data[off+16 : off+20])
		size := binary.LittleEndian.Uint32(data[off+20 : off+24])
		off += 24
		if off+int(size) > len(data) {
			return nil, fmt.Errorf("compiler: shader cache bytecode truncated at entry %d", i)
		}
		e.Bytecode = append([]byte(nil), data[off:off+int(size)]...)
		off += int(size)
		entries = append(entries, e)
	}
	return entries, nil
}
