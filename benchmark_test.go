package assetcache

import (
	"context"
	"testing"
)

// BenchmarkCostBasedLruInsert measures the steady-state cost of
// Insert once the free list is warm (every slot has already been
// allocated and is being recycled).
func BenchmarkCostBasedLruInsert(b *testing.B) {
	lru := NewCostBasedLru[string, int](1000)
	keys := make([]string, 100)
	for i := range keys {
		keys[i] = string(rune('a' + i%26))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		lru.Insert(keys[i%len(keys)], i, 1)
	}
}

// BenchmarkCostBasedLruGetHit measures the promote-on-hit path.
func BenchmarkCostBasedLruGetHit(b *testing.B) {
	lru := NewCostBasedLru[string, int](1000)
	lru.Insert("key", 1, 1)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		h, _ := lru.Get("key")
		h.Close()
	}
}

// BenchmarkAssetCacheGetHit measures the fully-warmed fast path through
// AssetCache.Get, bypassing the Vfs and Decoder entirely.
func BenchmarkAssetCacheGetHit(b *testing.B) {
	vfs := newMemVfs(map[string][]byte{"key": []byte("value")})
	decoder := &countingDecoder{}
	cache := New[string](vfs, decoder, testConfig())

	ctx := context.Background()
	warm, err := cache.Get(ctx, "key")
	if err != nil {
		b.Fatal(err)
	}
	warm.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		h, err := cache.Get(ctx, "key")
		if err != nil {
			b.Fatal(err)
		}
		h.Close()
	}
}
