package render

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicket_ResolveDeliversResult(t *testing.T) {
	ticket := NewTicket()
	require.False(t, ticket.IsFinished())

	ticket.Resolve("frame-data")

	assert.True(t, ticket.IsFinished())
	assert.True(t, ticket.HasResult())
	assert.Equal(t, "frame-data", ticket.Result())
}

func TestTicket_ResolveEmptyHasNoResult(t *testing.T) {
	ticket := NewTicket()
	ticket.ResolveEmpty()

	assert.True(t, ticket.IsFinished())
	assert.False(t, ticket.HasResult())
	assert.Nil(t, ticket.Result())
}

func TestTicket_FirstOutcomeWins(t *testing.T) {
	ticket := NewTicket()
	ticket.Resolve("first")
	ticket.ResolveEmpty()
	ticket.Resolve("second")

	assert.True(t, ticket.HasResult())
	assert.Equal(t, "first", ticket.Result())
}

func TestTicket_WaitForFinishedBlocksUntilResolve(t *testing.T) {
	ticket := NewTicket()

	done := make(chan struct{})
	go func() {
		ticket.WaitForFinished()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("wait returned before resolve")
	case <-time.After(10 * time.Millisecond):
	}

	ticket.Resolve(nil)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("wait did not unblock")
	}
}

func TestTicket_ListenBeforeAndAfterFinish(t *testing.T) {
	ticket := NewTicket()

	var order []string
	ticket.Listen(func(tk *Ticket) {
		order = append(order, "before:"+tk.Result().(string))
	})

	ticket.Resolve("x")

	ticket.Listen(func(tk *Ticket) {
		order = append(order, "after:"+tk.Result().(string))
	})

	assert.Equal(t, []string{"before:x", "after:x"}, order)
}

func TestTicket_PassthroughSharesOutcome(t *testing.T) {
	main := NewTicket()
	early := NewTicket()
	main.AttachPassthrough(early)

	main.Resolve("shared")

	assert.True(t, early.IsFinished())
	assert.Equal(t, "shared", early.Result())

	// Attaching after the fact resolves immediately with the same outcome.
	late := NewTicket()
	main.AttachPassthrough(late)
	assert.True(t, late.IsFinished())
	assert.Equal(t, "shared", late.Result())
}

func TestTicket_PassthroughOfEmptyOutcome(t *testing.T) {
	main := NewTicket()
	p := NewTicket()
	main.AttachPassthrough(p)

	main.ResolveEmpty()

	assert.True(t, p.IsFinished())
	assert.False(t, p.HasResult())
}

func TestTicket_CancelIsCooperative(t *testing.T) {
	ticket := NewTicket()
	ticket.Cancel()

	// Cancel alone does not finish the ticket - the worker does.
	assert.True(t, ticket.IsCancelled())
	assert.False(t, ticket.IsFinished())

	ticket.ResolveEmpty()
	assert.True(t, ticket.IsFinished())
}

func TestTicket_IDsAreUnique(t *testing.T) {
	a, b := NewTicket(), NewTicket()
	assert.NotEqual(t, a.ID(), b.ID())
	assert.NotEmpty(t, a.ID())
}

func TestPool_RendersAndResolves(t *testing.T) {
	pool := NewPool(2, func(ctx context.Context, req Request) (any, bool) {
		return "ok", true
	}, nil, nil)
	defer pool.Close()

	ticket := pool.RenderFrame(Request{Media: MediaVideo})
	ticket.WaitForFinished()

	assert.True(t, ticket.HasResult())
	assert.Equal(t, "ok", ticket.Result())
}

func TestPool_NilFuncResolvesEmpty(t *testing.T) {
	pool := NewPool(1, nil, nil, nil)
	defer pool.Close()

	ticket := pool.RenderAudio(Request{Media: MediaAudio})
	ticket.WaitForFinished()
	assert.False(t, ticket.HasResult())
}

func TestPool_FailedWorkResolvesEmpty(t *testing.T) {
	pool := NewPool(1, func(ctx context.Context, req Request) (any, bool) {
		return nil, false
	}, nil, nil)
	defer pool.Close()

	ticket := pool.RenderFrame(Request{})
	ticket.WaitForFinished()
	assert.False(t, ticket.HasResult())
}

func TestPool_CloseDrainsEveryTicket(t *testing.T) {
	var mu sync.Mutex
	started := 0
	pool := NewPool(1, func(ctx context.Context, req Request) (any, bool) {
		mu.Lock()
		started++
		mu.Unlock()
		select {
		case <-ctx.Done():
			return nil, false
		case <-time.After(5 * time.Millisecond):
			return "late", true
		}
	}, nil, nil)

	tickets := make([]*Ticket, 0, 8)
	for i := 0; i < 8; i++ {
		tickets = append(tickets, pool.RenderFrame(Request{}))
	}

	pool.Close()

	for _, tk := range tickets {
		assert.True(t, tk.IsFinished(), "every ticket must finish after Close")
	}
}

func TestPool_CancelledTicketSkipsWork(t *testing.T) {
	block := make(chan struct{})
	pool := NewPool(1, func(ctx context.Context, req Request) (any, bool) {
		<-block
		return "done", true
	}, nil, nil)

	// Occupy the single worker, then queue a second request and cancel it
	// before it gets a slot.
	first := pool.RenderFrame(Request{})
	time.Sleep(5 * time.Millisecond)
	second := pool.RenderFrame(Request{})
	second.Cancel()

	close(block)
	second.WaitForFinished()
	assert.False(t, second.HasResult())

	first.WaitForFinished()
	assert.True(t, first.HasResult())
	pool.Close()
}
