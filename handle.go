package assetcache

import "sync"

/*
Shared and Weak are this package's stand-in for Arc<T>/Weak<T>: a
reference-counted handle to a value of type V, plus a non-owning observer
that can be atomically upgraded back to a strong handle iff one is still
alive.

Go has no destructors, so there is no way to decrement a refcount when a
handle merely goes out of scope. Instead, every Shared[V] obtained from
this package carries an explicit Close method, the same "caller owns the
lifecycle" contract Go already uses for *os.File and *sql.Rows. Forgetting
to call Close leaks a reference the same way forgetting to call Close on
a file leaks an fd: the value never becomes eligible for weak-table
recovery to fail, and its memory is never released, even after a
cost-based LRU has evicted it and stopped counting its cost.

A double Close is a programming defect, not a runtime condition to
tolerate. Closing a handle after the value's last reference has already
been released panics via invariant; a repeated Close of one handle while
other handles to the same value are still open is not detected and
releases one of their references instead.
*/

type control[V any] struct {
	mu    sync.Mutex
	count int
	value V
	// live is false once count has dropped to zero; value is zeroed at
	// that point so the underlying object can be collected even though
	// the (tiny) control block itself may still be referenced from a
	// weak table entry.
	live bool
}

// Shared is a strongly-counted handle to a value of type V.
type Shared[V any] struct {
	ctrl *control[V]
}

// newShared creates a fresh Shared with an initial refcount of one. The
// returned handle is the sole owner; call Close when done with it.
func newShared[V any](v V) *Shared[V] {
	return &Shared[V]{ctrl: &control[V]{count: 1, value: v, live: true}}
}

// Value returns the underlying value. It is only valid to call Value on a
// handle that has not yet been Closed; the live flag catches such a call
// (and panics) once every handle to the value has been closed.
func (s *Shared[V]) Value() V {
	s.ctrl.mu.Lock()
	defer s.ctrl.mu.Unlock()
	invariant(s.ctrl.live, "assetcache: Value called on a closed Shared handle")
	return s.ctrl.value
}

// Clone returns a new, independently-closeable handle to the same
// underlying value, incrementing the refcount. The returned handle must
// itself be Closed exactly once.
func (s *Shared[V]) Clone() *Shared[V] {
	s.ctrl.mu.Lock()
	defer s.ctrl.mu.Unlock()
	invariant(s.ctrl.live, "assetcache: Clone called on a closed Shared handle")
	s.ctrl.count++
	return &Shared[V]{ctrl: s.ctrl}
}

// Weak returns a non-owning observer of this handle's value.
func (s *Shared[V]) Weak() Weak[V] {
	return Weak[V]{ctrl: s.ctrl}
}

// Close releases this handle's reference. Once the last outstanding
// handle is closed, the stored value is discarded (zeroed) so it becomes
// eligible for garbage collection; any live Weak observers will then fail
// to upgrade. Closing the same handle twice is a programming defect; it
// panics only if no other handle to the value is still open.
func (s *Shared[V]) Close() {
	s.ctrl.mu.Lock()
	defer s.ctrl.mu.Unlock()
	invariant(s.ctrl.live, "assetcache: double Close of a Shared handle")
	s.ctrl.count--
	invariant(s.ctrl.count >= 0, "assetcache: Shared refcount underflow")
	if s.ctrl.count == 0 {
		var zero V
		s.ctrl.value = zero
		s.ctrl.live = false
	}
}

// Weak is a non-owning observer of a value shared via Shared[V]. It can be
// upgraded back into an owning Shared[V] iff at least one Shared[V] for
// the same value is still live.
type Weak[V any] struct {
	ctrl *control[V]
}

// Upgrade attempts to obtain a new owning handle to the observed value.
// It succeeds iff the value has not yet had its last Shared handle
// closed.
func (w Weak[V]) Upgrade() (*Shared[V], bool) {
	if w.ctrl == nil {
		return nil, false
	}
	w.ctrl.mu.Lock()
	defer w.ctrl.mu.Unlock()
	if !w.ctrl.live {
		return nil, false
	}
	w.ctrl.count++
	return &Shared[V]{ctrl: w.ctrl}, true
}

// sharedResult lets a single constructed Shared[V] be safely handed out to
// an a-priori unknown number of independent consumers, as happens when a
// decodingGuards.Do call releases several blocked goroutines at once with
// the identical return value. Every call to Take returns its own
// independent clone; the handle's own initial reference (the one it was
// constructed with, belonging to nobody in particular) is released
// exactly once no matter how many goroutines call Take concurrently.
type sharedResult[V any] struct {
	handle *Shared[V]
	once   sync.Once
}

func newSharedResult[V any](handle *Shared[V]) *sharedResult[V] {
	return &sharedResult[V]{handle: handle}
}

func (r *sharedResult[V]) Take() *Shared[V] {
	clone := r.handle.Clone()
	r.once.Do(r.handle.Close)
	return clone
}
