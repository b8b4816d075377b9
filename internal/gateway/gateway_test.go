package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"bingo-bot/internal/game/bingo"
)

func acceptAll(bingo.Reply) bool { return true }

func waitPending(t *testing.T, w *Waiters, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return w.Len() == n }, time.Second, time.Millisecond)
}

func TestWaitersDispatch(t *testing.T) {
	w := NewWaiters()
	done := make(chan bingo.Reply, 1)
	go func() {
		r, err := w.Await(context.Background(), "alice", acceptAll, time.Minute)
		assert.NoError(t, err)
		done <- r
	}()
	waitPending(t, w, 1)

	assert.False(t, w.Dispatch(bingo.Reply{From: "bob", Text: "3"}), "other players are ignored")
	assert.True(t, w.Dispatch(bingo.Reply{From: "alice", Text: "7"}))

	select {
	case r := <-done:
		assert.Equal(t, "7", r.Text)
	case <-time.After(time.Second):
		t.Fatal("reply not delivered")
	}
	assert.Equal(t, 0, w.Len())
}

func TestWaitersPredicate(t *testing.T) {
	w := NewWaiters()
	digits := func(r bingo.Reply) bool { return r.Text == "5" }
	done := make(chan error, 1)
	go func() {
		_, err := w.Await(context.Background(), "alice", digits, time.Minute)
		done <- err
	}()
	waitPending(t, w, 1)

	assert.False(t, w.Dispatch(bingo.Reply{From: "alice", Text: "hello"}))
	assert.True(t, w.Dispatch(bingo.Reply{From: "alice", Text: "5"}))
	assert.NoError(t, <-done)
}

func TestWaitersTimeout(t *testing.T) {
	w := NewWaiters()
	start := time.Now()
	_, err := w.Await(context.Background(), "alice", acceptAll, 20*time.Millisecond)
	assert.ErrorIs(t, err, bingo.ErrTimedOut)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.Equal(t, 0, w.Len())
	assert.False(t, w.Dispatch(bingo.Reply{From: "alice"}))
}

func TestWaitersCancel(t *testing.T) {
	w := NewWaiters()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := w.Await(ctx, "alice", acceptAll, time.Minute)
		done <- err
	}()
	waitPending(t, w, 1)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancel did not release the wait")
	}
	assert.Equal(t, 0, w.Len())
}

// TestWaitersOldestFirstProperty checks that concurrent waits for the same
// player are served in arrival order.
func TestWaitersOldestFirstProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(t, "waiters")
		w := NewWaiters()

		results := make([]chan string, n)
		for i := range results {
			results[i] = make(chan string, 1)
			go func() {
				r, err := w.Await(context.Background(), "alice", acceptAll, time.Minute)
				if err == nil {
					results[i] <- r.Text
				}
			}()
			deadline := time.Now().Add(time.Second)
			for w.Len() != i+1 {
				if time.Now().After(deadline) {
					t.Fatalf("waiter %d never registered", i)
				}
				time.Sleep(time.Millisecond)
			}
		}

		for i := 0; i < n; i++ {
			if !w.Dispatch(bingo.Reply{From: "alice", Text: string(rune('a' + i))}) {
				t.Fatalf("dispatch %d found no waiter", i)
			}
		}
		for i, ch := range results {
			select {
			case got := <-ch:
				if want := string(rune('a' + i)); got != want {
					t.Fatalf("waiter %d got %q, want %q", i, got, want)
				}
			case <-time.After(time.Second):
				t.Fatalf("waiter %d got nothing", i)
			}
		}
	})
}

type countingGateway struct {
	mu    sync.Mutex
	sends int
	err   error
}

func (g *countingGateway) SendToChannel(context.Context, bingo.ChannelKey, bingo.Message) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sends++
	return g.err
}

func (g *countingGateway) SendPrivately(context.Context, bingo.PlayerID, bingo.Message) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sends++
	return g.err
}

func (g *countingGateway) AwaitReply(context.Context, bingo.PlayerID, func(bingo.Reply) bool, time.Duration) (bingo.Reply, error) {
	return bingo.Reply{}, bingo.ErrTimedOut
}

func TestLimitedBlocksOverBurst(t *testing.T) {
	inner := &countingGateway{}
	l := NewLimited(inner, 1, 2)

	ctx := context.Background()
	require.NoError(t, l.SendToChannel(ctx, "c", bingo.Message{}))
	require.NoError(t, l.SendPrivately(ctx, "p", bingo.Message{}))

	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	err := l.SendToChannel(short, "c", bingo.Message{})
	assert.Error(t, err, "third send inside one second exceeds the burst")
	assert.Equal(t, 2, inner.sends)
}

func TestLimitedPassesErrors(t *testing.T) {
	inner := &countingGateway{err: bingo.ErrPermissionDenied}
	l := NewLimited(inner, 0, 0)

	err := l.SendPrivately(context.Background(), "p", bingo.Message{})
	assert.True(t, errors.Is(err, bingo.ErrPermissionDenied))

	_, err = l.AwaitReply(context.Background(), "p", acceptAll, time.Millisecond)
	assert.ErrorIs(t, err, bingo.ErrTimedOut)
}
