// Package gateway holds the platform-independent plumbing shared by the chat
// adapters that implement bingo.Gateway.
package gateway

import (
	"context"
	"slices"
	"sync"
	"time"

	"bingo-bot/internal/game/bingo"
)

type waiter struct {
	id     bingo.PlayerID
	accept func(bingo.Reply) bool
	ch     chan bingo.Reply
}

// Waiters is the set of pending reply waits. Adapters feed every incoming
// message to Dispatch; the oldest waiter that accepts it receives it.
type Waiters struct {
	mu      sync.Mutex
	pending []*waiter
}

// NewWaiters returns an empty waiter set.
func NewWaiters() *Waiters {
	return &Waiters{}
}

// Await blocks until a reply from id satisfies accept, the timeout elapses or
// ctx is done. A timeout yields bingo.ErrTimedOut.
func (w *Waiters) Await(ctx context.Context, id bingo.PlayerID, accept func(bingo.Reply) bool, timeout time.Duration) (bingo.Reply, error) {
	wt := &waiter{id: id, accept: accept, ch: make(chan bingo.Reply, 1)}
	w.mu.Lock()
	w.pending = append(w.pending, wt)
	w.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var err error
	select {
	case r := <-wt.ch:
		return r, nil
	case <-ctx.Done():
		err = ctx.Err()
	case <-timer.C:
		err = bingo.ErrTimedOut
	}

	if !w.remove(wt) {
		// Dispatch claimed the waiter before we could remove it.
		return <-wt.ch, nil
	}
	return bingo.Reply{}, err
}

// Dispatch hands r to the oldest waiter that accepts it.
// It reports whether any waiter took the reply.
func (w *Waiters) Dispatch(r bingo.Reply) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i, wt := range w.pending {
		if wt.id != r.From || !wt.accept(r) {
			continue
		}
		w.pending = slices.Delete(w.pending, i, i+1)
		wt.ch <- r
		return true
	}
	return false
}

// Len returns the number of pending waits.
func (w *Waiters) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

func (w *Waiters) remove(wt *waiter) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	i := slices.Index(w.pending, wt)
	if i < 0 {
		return false
	}
	w.pending = slices.Delete(w.pending, i, i+1)
	return true
}
