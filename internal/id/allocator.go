// Package id assigns the 16-bit request ids that distinguish concurrent
// requests multiplexed over one FastCGI connection.
package id

import (
	"context"
	"errors"
	"sync"
)

// ErrExhausted is returned when no request id became free before the
// context deadline.
var ErrExhausted = errors.New("request id space exhausted")

// Allocator hands out request ids for one connection. An id returned by
// Alloc must not be handed out again until Release is called for it,
// which happens only after the response for that id has been fully
// consumed.
type Allocator interface {
	Alloc(ctx context.Context) (uint16, error)
	Release(id uint16)
}

// fixedID is the id nginx uses for every request; with one request per
// connection there is nothing to multiplex.
const fixedID uint16 = 1

// Fixed always returns the same id. It serves one-shot connections,
// where a single request owns the whole connection.
type Fixed struct{}

// NewFixed creates a fixed allocator.
func NewFixed() Fixed {
	return Fixed{}
}

// Alloc returns the constant id.
func (Fixed) Alloc(_ context.Context) (uint16, error) {
	return fixedID, nil
}

// Release is a no-op; the fixed id is never retired.
func (Fixed) Release(_ uint16) {}

// Pool hands out ids from the 16-bit space, excluding 0 which the
// protocol reserves for management records. Alloc blocks until an id is
// free or the context expires, so a momentarily drained pool waits for
// in-flight releases instead of failing.
type Pool struct {
	locker   sync.Mutex
	inUse    map[uint16]struct{}
	next     uint16
	limit    uint16
	released chan struct{}
}

// NewPool creates a pool over ids 1..limit. A zero limit means the full
// 16-bit space.
func NewPool(limit uint16) *Pool {
	if limit == 0 {
		limit = 0xffff
	}

	return &Pool{
		inUse:    make(map[uint16]struct{}),
		next:     1,
		limit:    limit,
		released: make(chan struct{}, 1),
	}
}

// Alloc returns an id not currently in flight, blocking while the pool
// is empty. It fails with ErrExhausted once ctx is done.
func (p *Pool) Alloc(ctx context.Context) (uint16, error) {
	for {
		if id, ok := p.tryAlloc(); ok {
			return id, nil
		}

		select {
		case <-p.released:
		case <-ctx.Done():
			return 0, errors.Join(ErrExhausted, ctx.Err())
		}
	}
}

func (p *Pool) tryAlloc() (uint16, bool) {
	p.locker.Lock()
	defer p.locker.Unlock()

	if len(p.inUse) >= int(p.limit) {
		return 0, false
	}

	// Scan from the rotating cursor so released ids rest before reuse.
	id := p.next
	for {
		if _, used := p.inUse[id]; !used {
			break
		}
		if id == p.limit {
			id = 1
		} else {
			id++
		}
	}

	p.inUse[id] = struct{}{}
	if id == p.limit {
		p.next = 1
	} else {
		p.next = id + 1
	}

	return id, true
}

// Release returns an id to the pool and wakes one blocked Alloc.
func (p *Pool) Release(id uint16) {
	p.locker.Lock()
	delete(p.inUse, id)
	p.locker.Unlock()

	select {
	case p.released <- struct{}{}:
	default:
	}
}
