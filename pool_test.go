package pyout

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoolRunsAll(t *testing.T) {
	t.Parallel()
	p := newPool(4)
	var n atomic.Int64
	for range 50 {
		p.submit(func(context.Context) { n.Add(1) })
	}
	p.drain()
	assert.Equal(t, int64(50), n.Load())
	p.shutdown()
}

func TestPoolBoundsWorkers(t *testing.T) {
	t.Parallel()
	p := newPool(2)
	var mu sync.Mutex
	running, peak := 0, 0
	var wg sync.WaitGroup
	wg.Add(8)
	for range 8 {
		p.submit(func(context.Context) {
			defer wg.Done()
			mu.Lock()
			running++
			if running > peak {
				peak = running
			}
			mu.Unlock()
			mu.Lock()
			running--
			mu.Unlock()
		})
	}
	wg.Wait()
	p.shutdown()
	assert.LessOrEqual(t, peak, 2)
}

func TestPoolDrainWaitsForResubmission(t *testing.T) {
	t.Parallel()
	p := newPool(2)
	var n atomic.Int64
	p.submit(func(context.Context) {
		n.Add(1)
		p.submit(func(context.Context) { n.Add(1) })
	})
	p.drain()
	assert.Equal(t, int64(2), n.Load())
	p.shutdown()
}

func TestPoolCancelDropsQueued(t *testing.T) {
	t.Parallel()
	p := newPool(1)
	started := make(chan struct{})
	var ran atomic.Int64
	p.submit(func(ctx context.Context) {
		close(started)
		<-ctx.Done()
	})
	<-started
	for range 10 {
		p.submit(func(context.Context) { ran.Add(1) })
	}
	p.shutdown()
	assert.Equal(t, int64(0), ran.Load())
	assert.Equal(t, 0, p.pending())
}

func TestPoolSubmitAfterCloseIsNoop(t *testing.T) {
	t.Parallel()
	p := newPool(1)
	p.shutdown()
	var ran atomic.Int64
	p.submit(func(context.Context) { ran.Add(1) })
	p.drain()
	assert.Equal(t, int64(0), ran.Load())
}

func TestDefaultMaxWorkers(t *testing.T) {
	t.Parallel()
	n := defaultMaxWorkers()
	assert.Greater(t, n, 0)
	assert.LessOrEqual(t, n, 32)
}
