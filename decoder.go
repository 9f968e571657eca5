package assetcache

import (
	"context"
	"io"
)

// Decoder turns a byte stream into a decoded value of type V, and
// estimates that value's in-memory cost once produced. Output values must
// be safe to share across goroutines once published, since AssetCache
// hands out concurrent, independent Shared[V] handles to the same
// decoded value.
type Decoder[V any] interface {
	// Decode consumes r and produces a decoded value. A failure surfaces
	// to callers of AssetCache.Get wrapped as a CacheError with
	// Op == OpDecoder. Decode must not retain r beyond this call.
	Decode(ctx context.Context, r io.Reader) (V, error)

	// EstimateCost returns the decoded value's cost, usually its
	// in-memory footprint in bytes. This is compared against
	// AssetCacheConfig.MaxSingleObjectDecodedCost to decide whether the
	// value is eligible for the decoded LRU at all.
	EstimateCost(v V) (uint64, error)
}
