// Package singleflight merges concurrent calls that share a key so the
// underlying work runs once and every caller receives the same result.
package singleflight

import (
	"context"
	"sync"
)

// Group manages in-flight calls keyed by string.
type Group struct {
	mu sync.Mutex
	m  map[string]*call
}

type call struct {
	done chan struct{}
	val  interface{}
	err  error
	dups int
}

// New creates an empty Group.
func New() *Group {
	return &Group{
		m: make(map[string]*call),
	}
}

// Do runs fn for key unless a call for key is already in flight, in which
// case it waits for that call and returns its result with shared=true.
// A waiter whose ctx ends first returns ctx.Err(); the owner keeps running.
// The key is released as soon as fn returns, so later callers start fresh.
func (g *Group) Do(ctx context.Context, key string, fn func() (interface{}, error)) (v interface{}, err error, shared bool) {
	g.mu.Lock()
	if c, ok := g.m[key]; ok {
		c.dups++
		g.mu.Unlock()
		select {
		case <-c.done:
			return c.val, c.err, true
		case <-ctx.Done():
			return nil, ctx.Err(), true
		}
	}

	c := &call{done: make(chan struct{})}
	g.m[key] = c
	g.mu.Unlock()

	// dups is written by waiters under g.mu, so shared is read there too.
	defer func() {
		g.mu.Lock()
		shared = c.dups > 0
		if g.m[key] == c {
			delete(g.m, key)
		}
		g.mu.Unlock()
		close(c.done)
	}()

	c.val, c.err = fn()
	return c.val, c.err, false
}

// InFlight reports how many distinct keys are currently executing.
func (g *Group) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.m)
}
