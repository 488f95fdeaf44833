// Package rcu implements read-copy-update: readers get wait-free access to a
// shared value while writers publish modified copies and wait for a grace
// period before handing the old value to a retire hook.
//
// Readers must never block inside a read. A stalled reader stalls every
// writer.
package rcu

import (
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// spinThreshold is the number of polls a writer yields with
	// runtime.Gosched() before it starts sleeping between polls.
	spinThreshold = 100
	pollInterval  = time.Microsecond
)

// node is a reader slot. gen is the grace period the reader started in, or
// 0 when it is not reading.
type node struct {
	gen  atomic.Uint64
	busy atomic.Bool
	dead atomic.Bool
	next atomic.Pointer[node]
}

// RCU holds one value of type T.
type RCU[T any] struct {
	value   atomic.Pointer[T]
	readers atomic.Pointer[node]
	gp      atomic.Uint64

	mu     sync.Mutex
	clone  func(T) T
	retire func(*T)
}

// Option configures an RCU.
type Option[T any] func(r *RCU[T])

// WithClone sets how Update copies the value. The default is an assignment,
// which is a shallow copy.
func WithClone[T any](clone func(T) T) Option[T] {
	return func(r *RCU[T]) {
		r.clone = clone
	}
}

// WithRetire sets a hook called with each replaced value once no reader can
// observe it anymore.
func WithRetire[T any](retire func(*T)) Option[T] {
	return func(r *RCU[T]) {
		r.retire = retire
	}
}

// New ...
func New[T any](initial T, opts ...Option[T]) *RCU[T] {
	r := &RCU[T]{
		clone: func(v T) T { return v },
	}
	for _, opt := range opts {
		opt(r)
	}
	r.gp.Store(1)
	r.value.Store(&initial)
	return r
}

// NewSlice is New with a clone function that copies the backing array.
func NewSlice[E any](initial []E, opts ...Option[[]E]) *RCU[[]E] {
	return New(initial, append([]Option[[]E]{WithClone(slices.Clone[[]E])}, opts...)...)
}

// ----- Readers ----- //

// acquire claims an idle reader slot, or registers a new one.
func (r *RCU[T]) acquire() *node {
	for n := r.readers.Load(); n != nil; n = n.next.Load() {
		if !n.dead.Load() && n.busy.CompareAndSwap(false, true) {
			return n
		}
	}
	n := &node{}
	n.busy.Store(true)
	for {
		head := r.readers.Load()
		n.next.Store(head)
		if r.readers.CompareAndSwap(head, n) {
			return n
		}
	}
}

func (r *RCU[T]) read(n *node, fn func(v *T)) {
	n.gen.Store(r.gp.Load())
	fn(r.value.Load())
	n.gen.Store(0)
}

// Read calls fn with the current value. fn must not modify it nor keep it
// after returning. Read never blocks and allocates only when more goroutines
// read at once than ever before.
func (r *RCU[T]) Read(fn func(v *T)) {
	n := r.acquire()
	r.read(n, fn)
	n.busy.Store(false)
}

// Reader is a reader slot owned by one goroutine, typically a real-time
// callback that must not allocate even on its first read.
type Reader[T any] struct {
	rcu  *RCU[T]
	node *node
}

// Register reserves a reader slot until Close is called.
func (r *RCU[T]) Register() *Reader[T] {
	return &Reader[T]{rcu: r, node: r.acquire()}
}

// Read is RCU.Read through the reserved slot. A Reader must not be used by
// two goroutines at once.
func (rd *Reader[T]) Read(fn func(v *T)) {
	rd.rcu.read(rd.node, fn)
}

// Close releases the slot. The next Update unlinks it.
func (rd *Reader[T]) Close() {
	rd.node.gen.Store(0)
	rd.node.dead.Store(true)
}

// Readers returns the number of linked reader slots.
func (r *RCU[T]) Readers() int {
	count := 0
	for n := r.readers.Load(); n != nil; n = n.next.Load() {
		count++
	}
	return count
}

// ----- Writers ----- //

// Update applies fn to a copy of the value and publishes the copy. It
// returns after every read that could see the old value has finished.
// Updates are serialized. Update must not be called from inside Read.
func (r *RCU[T]) Update(fn func(v *T)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.value.Load()
	next := r.clone(*old)
	fn(&next)
	r.value.Store(&next)

	r.synchronize()
	if r.retire != nil {
		r.retire(old)
	}
}

// synchronize opens a new grace period and waits until no reader is still
// in an older one. Then it unlinks closed slots.
func (r *RCU[T]) synchronize() {
	gp := r.gp.Add(1)
	polls := 0
	for n := r.readers.Load(); n != nil; n = n.next.Load() {
		for {
			g := n.gen.Load()
			if g == 0 || g >= gp {
				break
			}
			polls++
			if polls < spinThreshold {
				runtime.Gosched()
			} else {
				time.Sleep(pollInterval)
			}
		}
	}
	r.reap()
}

// reap unlinks dead slots. Readers only ever prepend to the list, so the
// head is the only link that can change under the writer.
func (r *RCU[T]) reap() {
	var prev *node
	n := r.readers.Load()
	for n != nil {
		next := n.next.Load()
		if !n.dead.Load() {
			prev = n
			n = next
			continue
		}
		if prev == nil && !r.readers.CompareAndSwap(n, next) {
			prev = r.predecessor(n)
		}
		if prev != nil {
			prev.next.Store(next)
		}
		n = next
	}
}

func (r *RCU[T]) predecessor(target *node) *node {
	for n := r.readers.Load(); n != nil; n = n.next.Load() {
		if n.next.Load() == target {
			return n
		}
	}
	return nil
}

// ----- Helpers ----- //

// Snapshot returns a copy of the current value made with the clone function.
func (r *RCU[T]) Snapshot() T {
	var v T
	r.Read(func(p *T) {
		v = r.clone(*p)
	})
	return v
}

// Len returns the length of a slice held by r.
func Len[E any](r *RCU[[]E]) int {
	n := 0
	r.Read(func(v *[]E) {
		n = len(*v)
	})
	return n
}

// Empty ...
func Empty[E any](r *RCU[[]E]) bool {
	return Len(r) == 0
}

// Set updates the entry at path of a value that supports it.
func Set[T any, V any, P interface {
	*T
	SetPath(path string, v V)
}](r *RCU[T], path string, v V) {
	r.Update(func(t *T) {
		P(t).SetPath(path, v)
	})
}

// Get reads the entry at path.
func Get[T interface{ GetPath(path string) (V, bool) }, V any](r *RCU[T], path string) (V, bool) {
	var v V
	var ok bool
	r.Read(func(t *T) {
		v, ok = (*t).GetPath(path)
	})
	return v, ok
}

// Has reports whether path exists.
func Has[T interface{ HasPath(path string) bool }](r *RCU[T], path string) bool {
	var ok bool
	r.Read(func(t *T) {
		ok = (*t).HasPath(path)
	})
	return ok
}
