package pyout

import (
	"context"
	"runtime"
	"sync"
)

func defaultMaxWorkers() int {
	n := runtime.GOMAXPROCS(0) + 4
	if n > 32 {
		n = 32
	}
	return n
}

// pool runs queued functions on a bounded set of goroutines. Functions
// that have not started yet sit in a queue so cancellation can drop them
// without waiting for a worker.
type pool struct {
	mu      sync.Mutex
	idle    *sync.Cond
	queue   []func(ctx context.Context)
	active  int
	workers int
	spawned int
	closed  bool

	ctx       context.Context
	cancelCtx context.CancelFunc
	wg        sync.WaitGroup
}

func newPool(workers int) *pool {
	if workers <= 0 {
		workers = defaultMaxWorkers()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &pool{workers: workers, ctx: ctx, cancelCtx: cancel}
	p.idle = sync.NewCond(&p.mu)
	return p
}

// submit queues fn. A new worker goroutine is spawned when all existing
// ones are busy and the limit has not been reached.
func (p *pool) submit(fn func(ctx context.Context)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.queue = append(p.queue, fn)
	if p.spawned < p.workers && p.spawned < p.active+len(p.queue) {
		p.spawned++
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *pool) worker() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		if len(p.queue) == 0 || p.closed {
			p.spawned--
			p.idle.Broadcast()
			p.mu.Unlock()
			return
		}
		fn := p.queue[0]
		p.queue = p.queue[1:]
		p.active++
		p.mu.Unlock()

		fn(p.ctx)

		p.mu.Lock()
		p.active--
		p.idle.Broadcast()
		p.mu.Unlock()
	}
}

// pending reports how many functions are queued or running.
func (p *pool) pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue) + p.active
}

// drain blocks until every queued and running function has finished.
// Functions submitted while draining are waited for as well.
func (p *pool) drain() {
	p.mu.Lock()
	for len(p.queue) > 0 || p.active > 0 {
		p.idle.Wait()
	}
	p.mu.Unlock()
}

// cancel drops unstarted functions and signals running ones to stop. It
// does not wait, so it is safe to call from inside a pooled function.
func (p *pool) cancel() {
	p.mu.Lock()
	p.closed = true
	p.queue = nil
	p.idle.Broadcast()
	p.mu.Unlock()
	p.cancelCtx()
}

// shutdown cancels and then waits for the workers to exit.
func (p *pool) shutdown() {
	p.cancel()
	p.wg.Wait()
}
