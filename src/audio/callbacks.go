package audio

import (
	"slices"
	"sync"

	"github.com/jinjor/rings-resonator/src/rcu"
)

// ----- Callback List ----- //

type callback[A any] struct {
	fn func(A)
}

// CallbackList is a set of listeners that can be called while other
// goroutines add and remove listeners. Calling never blocks on them.
type CallbackList[A any] struct {
	list *rcu.RCU[[]*callback[A]]
}

// NewCallbackList ...
func NewCallbackList[A any]() *CallbackList[A] {
	return &CallbackList[A]{list: rcu.NewSlice[*callback[A]](nil)}
}

// Add registers fn and returns a function that removes it.
func (c *CallbackList[A]) Add(fn func(A)) (remove func()) {
	cb := &callback[A]{fn: fn}
	c.list.Update(func(l *[]*callback[A]) {
		*l = append(*l, cb)
	})
	var once sync.Once
	return func() {
		once.Do(func() {
			c.list.Update(func(l *[]*callback[A]) {
				*l = slices.DeleteFunc(*l, func(x *callback[A]) bool { return x == cb })
			})
		})
	}
}

// Call calls every listener with arg, in the order they were added. The
// listeners run on a snapshot taken outside any read, so a slow listener
// does not hold up Add or remove, and a listener may remove itself.
func (c *CallbackList[A]) Call(arg A) {
	for _, cb := range c.list.Snapshot() {
		cb.fn(arg)
	}
}

// Len ...
func (c *CallbackList[A]) Len() int {
	return rcu.Len(c.list)
}
