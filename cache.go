package assetcache

import (
	"bytes"
	"context"
	"io"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// AssetCache drives a Vfs and a Decoder[V] with two levels of caching:
// first at the level of the raw bytes read from the Vfs, second at the
// level of the decoded objects themselves. An item so critical it must
// never be evicted can be pinned with CacheAlways, at which point it is
// removed only by an explicit Remove.
type AssetCache[V any] struct {
	config AssetCacheConfig

	pinned     *pinnedTable[V]
	bytesLRU   *CostBasedLru[string, []byte]
	decodedLRU *CostBasedLru[string, V]
	weakRefs   *weakRefTable[V]
	guards     *decodingGuards

	vfs     Vfs
	decoder Decoder[V]

	metrics *cacheMetrics
	logger  *zap.Logger

	hits, misses, decodes, vfsErrors, decodeErrors atomic.Uint64
}

// Option configures an AssetCache at construction time. This mirrors the
// teacher's functional-options pattern for the handful of ambient,
// optional concerns (logging, metrics registration) that don't belong in
// the required AssetCacheConfig.
type Option[V any] func(*AssetCache[V])

// WithLogger attaches a structured logger. Without this option, the
// cache logs nothing.
func WithLogger[V any](logger *zap.Logger) Option[V] {
	return func(c *AssetCache[V]) { c.logger = logOrNop(logger) }
}

// WithMetrics registers the cache's Prometheus metrics with reg under
// the given name. Without this option, metrics are maintained in-process
// (Stats still works) but never exposed to a Prometheus registry.
func WithMetrics[V any](reg prometheus.Registerer, name string) Option[V] {
	return func(c *AssetCache[V]) { c.metrics = newCacheMetrics(reg, name) }
}

// New constructs an AssetCache backed by vfs and decoder, bounded by
// config.
func New[V any](vfs Vfs, decoder Decoder[V], config AssetCacheConfig, opts ...Option[V]) *AssetCache[V] {
	c := &AssetCache[V]{
		config:     config,
		pinned:     newPinnedTable[V](),
		bytesLRU:   NewCostBasedLru[string, []byte](config.MaxBytesCost),
		decodedLRU: NewCostBasedLru[string, V](config.MaxDecodedCost),
		weakRefs:   newWeakRefTable[V](),
		guards:     newDecodingGuards(),
		vfs:        vfs,
		decoder:    decoder,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = newCacheMetrics(nil, "default")
	}
	return c
}

// searchForItem implements the fast path: pinned, then the decoded LRU
// (which promotes on hit), then an upgrade attempt against the weak
// table. It never touches the Vfs or Decoder.
func (c *AssetCache[V]) searchForItem(key string) (*Shared[V], bool) {
	if h, ok := c.pinned.Get(key); ok {
		return h, true
	}
	if h, ok := c.decodedLRU.Get(key); ok {
		return h, true
	}
	if h, ok := c.weakRefs.Get(key); ok {
		return h, true
	}
	return nil, false
}

// Get returns the value for key, decoding it if necessary. Unless a
// Remove for key lands while a decode is running, at most one decode per
// key is in flight at a time; concurrent callers for the same key are
// coalesced via the decoding guards.
func (c *AssetCache[V]) Get(ctx context.Context, key string) (*Shared[V], error) {
	if h, ok := c.searchForItem(key); ok {
		c.recordHit()
		return h, nil
	}

	c.recordMiss()

	v, err := c.guards.Do(key, func() (any, error) {
		return c.findOrDecodePostchecked(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	return v.(*sharedResult[V]).Take(), nil
}

// findOrDecodePostchecked runs under the per-key decoding guard: it
// rechecks the cache tiers first, since a peer may have finished the
// work while this goroutine was waiting for the guard, and only then
// drives the Vfs and Decoder.
func (c *AssetCache[V]) findOrDecodePostchecked(ctx context.Context, key string) (*sharedResult[V], error) {
	if h, ok := c.searchForItem(key); ok {
		return newSharedResult(h), nil
	}

	reader, err := c.vfs.Open(ctx, key)
	if err != nil {
		c.recordVfsError()
		return nil, wrapVfsErr(key, err)
	}
	defer reader.Close()

	value, err := c.readAndDecode(ctx, key, reader)
	if err != nil {
		return nil, err
	}

	cost, err := c.decoder.EstimateCost(value)
	if err != nil {
		c.recordDecodeError()
		return nil, wrapDecoderErr(key, err)
	}

	var handle *Shared[V]
	if cost <= c.config.MaxSingleObjectDecodedCost {
		c.decodedLRU.Insert(key, value, cost)
		if h, ok := c.decodedLRU.Get(key); ok {
			handle = h
		} else {
			// Evicted again before we could re-fetch it (its own cost
			// alone can exceed the decoded LRU's remaining budget once
			// its neighbors are gone). The current caller still gets
			// its value; it just won't be found via the decoded LRU
			// afterwards.
			handle = newShared(value)
		}
	} else {
		handle = newShared(value)
	}

	c.weakRefs.Set(key, handle)
	c.recordDecode()
	return newSharedResult(handle), nil
}

// readAndDecode consults or fills the bytes LRU when the reader reports
// a size within the single-object threshold, otherwise streams the
// reader directly into the decoder.
func (c *AssetCache[V]) readAndDecode(ctx context.Context, key string, reader VfsReader) (V, error) {
	var zero V

	size, known, err := reader.Size(ctx)
	if err != nil {
		c.recordVfsError()
		return zero, wrapVfsErr(key, err)
	}

	if !known || size > c.config.MaxSingleObjectBytesCost {
		value, err := c.decoder.Decode(ctx, reader)
		if err != nil {
			c.recordDecodeError()
			return zero, wrapDecoderErr(key, err)
		}
		return value, nil
	}

	if cached, ok := c.bytesLRU.Get(key); ok {
		defer cached.Close()
		value, err := c.decoder.Decode(ctx, bytes.NewReader(cached.Value()))
		if err != nil {
			c.recordDecodeError()
			return zero, wrapDecoderErr(key, err)
		}
		return value, nil
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		c.recordVfsError()
		return zero, wrapVfsErr(key, err)
	}

	c.bytesLRU.Insert(key, data, size)
	// Re-fetch and decode from the handle the bytes LRU now actually
	// owns: our own clone keeps the buffer alive even if some unrelated
	// Insert triggers an eviction of this slot before we finish.
	will, ok := c.bytesLRU.Get(key)
	if !ok {
		value, err := c.decoder.Decode(ctx, bytes.NewReader(data))
		if err != nil {
			c.recordDecodeError()
			return zero, wrapDecoderErr(key, err)
		}
		return value, nil
	}
	defer will.Close()

	value, err := c.decoder.Decode(ctx, bytes.NewReader(will.Value()))
	if err != nil {
		c.recordDecodeError()
		return zero, wrapDecoderErr(key, err)
	}
	return value, nil
}

// CacheAlways pins value under key, bypassing all cost accounting. The
// cache takes its own reference; the caller retains ownership of the
// handle passed in and must still Close it. A pinned key's presence
// preempts every other lookup path and is removed only by Remove.
func (c *AssetCache[V]) CacheAlways(key string, value *Shared[V]) {
	c.pinned.Set(key, value.Clone())
	c.weakRefs.Set(key, value)
	c.metrics.pinnedGauge.Set(float64(c.pinned.Len()))
}

// Remove purges key from every tier: pinned, both LRUs, the weak-
// reference table, and the decoding guard, so a Get that arrives after
// this call starts its own decode instead of joining one already in
// flight. A decode that was already in flight still publishes its result
// to the decoded LRU and the weak table when it finishes.
func (c *AssetCache[V]) Remove(key string) {
	c.pinned.Delete(key)
	if h, ok := c.bytesLRU.Remove(key); ok {
		h.Close()
	}
	if h, ok := c.decodedLRU.Remove(key); ok {
		h.Close()
	}
	c.weakRefs.Delete(key)
	c.guards.Forget(key)
	c.metrics.pinnedGauge.Set(float64(c.pinned.Len()))
}

// Stats returns a point-in-time snapshot of cache effectiveness.
func (c *AssetCache[V]) Stats() Stats {
	return Stats{
		Hits:         c.hits.Load(),
		Misses:       c.misses.Load(),
		Decodes:      c.decodes.Load(),
		VfsErrors:    c.vfsErrors.Load(),
		DecodeErrors: c.decodeErrors.Load(),
	}
}

func (c *AssetCache[V]) recordHit() {
	c.hits.Add(1)
	c.metrics.hits.Inc()
}

func (c *AssetCache[V]) recordMiss() {
	c.misses.Add(1)
	c.metrics.misses.Inc()
}

func (c *AssetCache[V]) recordDecode() {
	c.decodes.Add(1)
	c.metrics.decodes.Inc()
	c.logger.Debug("assetcache: decoded")
}

func (c *AssetCache[V]) recordVfsError() {
	c.vfsErrors.Add(1)
	c.metrics.vfsErrors.Inc()
}

func (c *AssetCache[V]) recordDecodeError() {
	c.decodeErrors.Add(1)
	c.metrics.decodeErrors.Inc()
}
