package render

import (
	"context"
	"sync"
)

// Func produces the result for one request. Returning ok=false means the
// work failed or was abandoned; the ticket resolves empty.
type Func func(ctx context.Context, req Request) (result any, ok bool)

// Pool is a local Backend running render functions on a bounded worker
// pool. It exists for the CLI simulator and tests; a production render
// farm implements Backend directly.
type Pool struct {
	video   Func
	audio   Func
	conform Func

	sem    chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPool creates a pool with the given concurrency. Each Func may be nil,
// in which case that request kind resolves empty.
func NewPool(workers int, video, audio, conform Func) *Pool {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		video:   video,
		audio:   audio,
		conform: conform,
		sem:     make(chan struct{}, workers),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// RenderFrame implements Backend.
func (p *Pool) RenderFrame(req Request) *Ticket {
	return p.submit(p.video, req)
}

// RenderAudio implements Backend.
func (p *Pool) RenderAudio(req Request) *Ticket {
	return p.submit(p.audio, req)
}

// ConformAudio implements Backend.
func (p *Pool) ConformAudio(req Request) *Ticket {
	return p.submit(p.conform, req)
}

func (p *Pool) submit(fn Func, req Request) *Ticket {
	ticket := NewTicket()
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		select {
		case p.sem <- struct{}{}:
			defer func() { <-p.sem }()
		case <-p.ctx.Done():
			ticket.ResolveEmpty()
			return
		}

		// Cancelled while waiting for a worker slot: skip the work but
		// still finish the ticket.
		if fn == nil || ticket.IsCancelled() || p.ctx.Err() != nil {
			ticket.ResolveEmpty()
			return
		}

		if result, ok := fn(p.ctx, req); ok && !ticket.IsCancelled() {
			ticket.Resolve(result)
		} else {
			ticket.ResolveEmpty()
		}
	}()
	return ticket
}

// Close cancels outstanding work and waits for every ticket to finish.
func (p *Pool) Close() {
	p.cancel()
	p.wg.Wait()
}
