package assetcache

import "golang.org/x/sync/singleflight"

// decodingGuards ensures at most one decode is in flight per key at a
// time, so two concurrent misses on the same key don't both open the
// reader and decode. golang.org/x/sync/singleflight already provides a
// reference-counted per-key mutual exclusion token, created on demand
// and removed as soon as the in-flight call completes, so this type is a
// thin wrapper around a singleflight.Group rather than a hand-rolled map
// of tokens: there is no guards-map entry to leak or opportunistically
// prune. singleflight.Group predates generics and operates on `any`;
// callers type-assert the result back to their own *sharedResult[V].
type decodingGuards struct {
	group singleflight.Group
}

func newDecodingGuards() *decodingGuards {
	return &decodingGuards{}
}

// Do runs fn for key, coalescing any concurrent callers for the same key
// into a single execution of fn.
func (g *decodingGuards) Do(key string, fn func() (any, error)) (any, error) {
	v, err, _ := g.group.Do(key, fn)
	return v, err
}

// Forget removes key from the group immediately, so the next call for
// key is guaranteed to run fn again rather than join a call already in
// flight. Callers that were already waiting on that call still receive
// its result. Used by AssetCache.Remove so that a Get arriving after the
// removal starts a fresh decode.
func (g *decodingGuards) Forget(key string) {
	g.group.Forget(key)
}
