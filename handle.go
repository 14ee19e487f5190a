package rtmp

import (
	"strconv"
	"sync"
)

// Handle is an opaque reference to a session context owned by a Bridge.
// The zero value never refers to a live context.
type Handle int64

// InvalidHandle is returned by Alloc when no context could be created.
const InvalidHandle Handle = 0

// Valid reports whether h may refer to a live context.
func (h Handle) Valid() bool { return h > InvalidHandle }

func (h Handle) String() string { return "rtmp#" + strconv.FormatInt(int64(h), 10) }

// registry is the arena of live session contexts, indexed by Handle.
// Handles are never reused, so a stale Handle cannot resolve to a newer context.
type registry struct {
	mu   sync.RWMutex
	next Handle
	max  int
	live map[Handle]*sessionContext
}

func newRegistry(max int) *registry {
	return &registry{
		max:  max,
		live: make(map[Handle]*sessionContext),
	}
}

// register stores ctx and returns its handle. It returns false when the
// registry is full.
func (r *registry) register(ctx *sessionContext) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.max > 0 && len(r.live) >= r.max {
		return InvalidHandle, false
	}

	r.next++
	r.live[r.next] = ctx
	return r.next, true
}

// lookup returns the live context for h.
func (r *registry) lookup(h Handle) (*sessionContext, bool) {
	if !h.Valid() {
		return nil, false
	}

	r.mu.RLock()
	ctx, ok := r.live[h]
	r.mu.RUnlock()

	return ctx, ok
}

// release removes h from the registry.
func (r *registry) release(h Handle) (*sessionContext, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx, ok := r.live[h]
	if !ok {
		return nil, false
	}
	delete(r.live, h)
	return ctx, true
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.live)
}
