package state

import (
	"sync"
)

// Container owns one piece of client state. Reductions run under the
// container's lock; subscribers are notified after it is released, in
// subscription order, with the snapshot produced by that reduction.
//
// Snapshots are delivered in commit order. Whichever Update finds no
// delivery in progress drains the queue, so an Update made while another
// goroutine is notifying returns once its reduction is committed and its
// snapshot is delivered by that goroutine. An Update made from inside a
// subscriber is delivered after the current snapshot reaches every
// subscriber, before the outer Update returns.
//
// Reducers must not mutate maps or slices reachable from a previous
// snapshot in place. Replace them instead so snapshots already handed to
// subscribers stay stable.
type Container[S any] struct {
	mu       sync.Mutex
	state    S
	pending  []S
	draining bool

	subMu  sync.Mutex
	subs   []subscriber[S]
	nextID uint64
}

type subscriber[S any] struct {
	id uint64
	fn func(S)
}

func New[S any](initial S) *Container[S] {
	return &Container[S]{state: initial}
}

// Snapshot returns the current state.
func (c *Container[S]) Snapshot() S {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Update applies reduce atomically and notifies subscribers.
func (c *Container[S]) Update(reduce func(s *S)) {
	c.mu.Lock()
	reduce(&c.state)
	c.pending = append(c.pending, c.state)
	if c.draining {
		c.mu.Unlock()
		return
	}
	c.draining = true
	c.mu.Unlock()

	c.drain()
}

func (c *Container[S]) drain() {
	done := false
	defer func() {
		if done {
			return
		}
		// A subscriber panicked; drop the backlog so later updates can drain.
		c.mu.Lock()
		c.pending = nil
		c.draining = false
		c.mu.Unlock()
	}()

	for {
		c.mu.Lock()
		if len(c.pending) == 0 {
			c.pending = nil
			c.draining = false
			c.mu.Unlock()
			done = true
			return
		}
		snap := c.pending[0]
		var zero S
		c.pending[0] = zero
		c.pending = c.pending[1:]
		c.mu.Unlock()

		c.notify(snap)
	}
}

// Subscribe registers fn for change notifications. The returned function
// unsubscribes; calling it more than once is harmless.
func (c *Container[S]) Subscribe(fn func(S)) (unsubscribe func()) {
	c.subMu.Lock()
	c.nextID++
	id := c.nextID
	c.subs = append(c.subs, subscriber[S]{id: id, fn: fn})
	c.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.subMu.Lock()
			defer c.subMu.Unlock()

			for i, s := range c.subs {
				if s.id == id {
					c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (c *Container[S]) notify(snap S) {
	c.subMu.Lock()
	subs := make([]subscriber[S], len(c.subs))
	copy(subs, c.subs)
	c.subMu.Unlock()

	for _, s := range subs {
		s.fn(snap)
	}
}
