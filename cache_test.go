package assetcache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// memVfs serves byte slices from an in-memory map, for tests that don't
// want to touch a real filesystem.
type memVfs struct {
	mu      sync.Mutex
	files   map[string][]byte
	opens   atomic.Int64
	sizeOK  bool
	missing error
}

func newMemVfs(files map[string][]byte) *memVfs {
	return &memVfs{files: files, sizeOK: true}
}

func (v *memVfs) Open(_ context.Context, key string) (VfsReader, error) {
	v.opens.Add(1)
	v.mu.Lock()
	data, ok := v.files[key]
	v.mu.Unlock()
	if !ok {
		if v.missing != nil {
			return nil, v.missing
		}
		return nil, fmt.Errorf("no such key: %s", key)
	}
	return &memVfsReader{data: data, sizeOK: v.sizeOK}, nil
}

type memVfsReader struct {
	data   []byte
	pos    int
	sizeOK bool
}

func (r *memVfsReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}

func (r *memVfsReader) Close() error { return nil }

func (r *memVfsReader) Size(_ context.Context) (uint64, bool, error) {
	if !r.sizeOK {
		return 0, false, nil
	}
	return uint64(len(r.data)), true, nil
}

// countingDecoder decodes to string(bytes), counting invocations and
// optionally sleeping to widen the window for concurrent callers to
// join a single-flight call.
type countingDecoder struct {
	calls atomic.Int64
	delay time.Duration
	err   error
}

func (d *countingDecoder) Decode(_ context.Context, r io.Reader) (string, error) {
	d.calls.Add(1)
	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	if d.err != nil {
		return "", d.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (d *countingDecoder) EstimateCost(v string) (uint64, error) {
	return uint64(len(v)), nil
}

func testConfig() AssetCacheConfig {
	cfg, err := NewConfigBuilder().
		WithMaxBytesCost(1024).
		WithMaxDecodedCost(1024).
		WithMaxSingleObjectBytesCost(256).
		WithMaxSingleObjectDecodedCost(256).
		Build()
	if err != nil {
		panic(err)
	}
	return cfg
}

func TestAssetCacheGetDecodesOnMiss(t *testing.T) {
	vfs := newMemVfs(map[string][]byte{"a": []byte("hello")})
	decoder := &countingDecoder{}
	cache := New[string](vfs, decoder, testConfig())

	h, err := cache.Get(context.Background(), "a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.Value() != "hello" {
		t.Fatalf("got %q, want %q", h.Value(), "hello")
	}
	h.Close()

	if decoder.calls.Load() != 1 {
		t.Fatalf("expected exactly one decode, got %d", decoder.calls.Load())
	}
}

func TestAssetCacheGetHitsDecodedLruOnSecondCall(t *testing.T) {
	vfs := newMemVfs(map[string][]byte{"a": []byte("hello")})
	decoder := &countingDecoder{}
	cache := New[string](vfs, decoder, testConfig())

	ctx := context.Background()
	h1, err := cache.Get(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	h1.Close()

	h2, err := cache.Get(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	h2.Close()

	if decoder.calls.Load() != 1 {
		t.Fatalf("expected decode to run once, got %d", decoder.calls.Load())
	}
	stats := cache.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Fatalf("expected 1 hit and 1 miss, got %+v", stats)
	}
}

func TestAssetCacheOversizeObjectSurvivesViaWeakTable(t *testing.T) {
	vfs := newMemVfs(map[string][]byte{"big": make([]byte, 1000)})
	decoder := &countingDecoder{}
	cache := New[string](vfs, decoder, testConfig())

	h, err := cache.Get(context.Background(), "big")
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	// The decoded value exceeds MaxSingleObjectDecodedCost, so it must
	// not have landed in the decoded LRU...
	if _, ok := cache.decodedLRU.Get("big"); ok {
		t.Fatal("expected oversize object to bypass the decoded LRU")
	}
	// ...but the caller's handle must still be the one tracked by the
	// weak table, since h is still held.
	revived, ok := cache.weakRefs.Get("big")
	if !ok {
		t.Fatal("expected the weak table to still observe the held handle")
	}
	revived.Close()
}

func TestAssetCacheWeakTableRevivesEvictedEntry(t *testing.T) {
	vfs := newMemVfs(map[string][]byte{
		"a": []byte("aaaa"),
		"b": []byte("bbbb"),
	})
	decoder := &countingDecoder{}
	cfg, err := NewConfigBuilder().
		WithMaxBytesCost(1024).
		WithMaxDecodedCost(1). // evicts almost everything immediately
		WithMaxSingleObjectBytesCost(256).
		WithMaxSingleObjectDecodedCost(256).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	cache := New[string](vfs, decoder, cfg)

	ctx := context.Background()
	held, err := cache.Get(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	defer held.Close()

	// decodedLRU has budget 1, so "a" (cost 4) was evicted the moment it
	// was inserted. The held handle keeps the value alive, and the weak
	// table should still be able to revive it without calling Decode
	// again.
	before := decoder.calls.Load()
	again, err := cache.Get(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	defer again.Close()

	if decoder.calls.Load() != before {
		t.Fatalf("expected no additional decode, calls went from %d to %d", before, decoder.calls.Load())
	}
}

func TestAssetCachePinnedEntryFoundUntilRemove(t *testing.T) {
	vfs := newMemVfs(map[string][]byte{"a": []byte("aaaa")})
	decoder := &countingDecoder{}
	cache := New[string](vfs, decoder, testConfig())

	pinned := newShared("pinned-value")
	cache.CacheAlways("pinned", pinned)
	defer pinned.Close()

	h, ok := cache.searchForItem("pinned")
	if !ok {
		t.Fatal("expected pinned entry to be found")
	}
	if h.Value() != "pinned-value" {
		t.Fatalf("got %q", h.Value())
	}
	h.Close()

	cache.Remove("pinned")
	if _, ok := cache.searchForItem("pinned"); ok {
		t.Fatal("expected pinned entry to be gone after Remove")
	}
}

func TestAssetCacheRemovePurgesEveryTier(t *testing.T) {
	vfs := newMemVfs(map[string][]byte{"a": []byte("aaaa")})
	decoder := &countingDecoder{}
	cache := New[string](vfs, decoder, testConfig())

	ctx := context.Background()
	h, err := cache.Get(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	h.Close()

	cache.Remove("a")

	if _, ok := cache.decodedLRU.Get("a"); ok {
		t.Fatal("expected decoded LRU entry to be purged")
	}
	if _, ok := cache.weakRefs.Get("a"); ok {
		t.Fatal("expected weak table entry to be purged")
	}

	before := decoder.calls.Load()
	h2, err := cache.Get(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	h2.Close()
	if decoder.calls.Load() != before+1 {
		t.Fatal("expected Remove to force a fresh decode on the next Get")
	}
}

func TestAssetCacheConcurrentGetsCoalesceIntoOneDecode(t *testing.T) {
	vfs := newMemVfs(map[string][]byte{"a": []byte("aaaa")})
	decoder := &countingDecoder{delay: 50 * time.Millisecond}
	cache := New[string](vfs, decoder, testConfig())

	const n = 32
	var wg sync.WaitGroup
	errs := make([]error, n)
	handles := make([]*Shared[string], n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := cache.Get(context.Background(), "a")
			handles[i] = h
			errs[i] = err
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("goroutine %d: %v", i, err)
		}
		if handles[i].Value() != "aaaa" {
			t.Fatalf("goroutine %d: got %q", i, handles[i].Value())
		}
		handles[i].Close()
	}

	if got := decoder.calls.Load(); got != 1 {
		t.Fatalf("expected exactly one decode across %d concurrent callers, got %d", n, got)
	}
	if got := vfs.opens.Load(); got != 1 {
		t.Fatalf("expected exactly one Vfs.Open across %d concurrent callers, got %d", n, got)
	}
}

func TestAssetCacheVfsErrorWrapsWithOp(t *testing.T) {
	vfs := newMemVfs(map[string][]byte{})
	decoder := &countingDecoder{}
	cache := New[string](vfs, decoder, testConfig())

	_, err := cache.Get(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected an error")
	}
	if !IsVfsError(err) {
		t.Fatalf("expected a vfs error, got %v", err)
	}
}

func TestAssetCacheDecoderErrorWrapsWithOp(t *testing.T) {
	vfs := newMemVfs(map[string][]byte{"a": []byte("aaaa")})
	decoder := &countingDecoder{err: errors.New("boom")}
	cache := New[string](vfs, decoder, testConfig())

	_, err := cache.Get(context.Background(), "a")
	if err == nil {
		t.Fatal("expected an error")
	}
	if !IsDecoderError(err) {
		t.Fatalf("expected a decoder error, got %v", err)
	}
}
