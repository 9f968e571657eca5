package assetcache

import (
	"context"
	"io"
)

// Vfs resolves string keys to byte readers. Implementations must be safe
// for concurrent use from multiple goroutines; AssetCache may call Open
// for the same key from many goroutines at once (though single-flight
// decoding guards ensure at most one Open+decode is actually in flight
// per key at a time).
type Vfs interface {
	// Open resolves key to a VfsReader. A failure surfaces to callers of
	// AssetCache.Get wrapped as a CacheError with Op == OpVfs.
	Open(ctx context.Context, key string) (VfsReader, error)
}

// VfsReader streams the bytes behind a single key. It is released
// deterministically on every exit path (success, decode failure, or a
// read error), via Close.
type VfsReader interface {
	io.Reader
	io.Closer

	// Size returns a best-effort reported length. If the reader cannot
	// report its size, ok is false and AssetCache streams the reader
	// directly to the Decoder rather than attempting to cache the raw
	// bytes.
	Size(ctx context.Context) (size uint64, ok bool, err error)
}
