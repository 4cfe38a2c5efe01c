package ca

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Allocator supplies Blocks to a SendQueue and takes them back once the
// consumer has drained them. Implementations must be safe for concurrent use;
// a queue and its consumer may call Get and Put from different goroutines.
type Allocator interface {
	// Get hands out an empty block, or an error wrapping ErrAllocExhausted
	// when the allocator refuses to grow further.
	Get() (*Block, error)

	// Put returns a block for reuse. Put of nil is a no-op.
	Put(*Block)
}

// BlockPool is the default Allocator. It recycles blocks through a sync.Pool
// and optionally bounds how many may be outstanding at once.
type BlockPool struct {
	limit int64
	pool  sync.Pool

	outstanding atomic.Int64
	news        atomic.Int64
	gets        atomic.Int64
	puts        atomic.Int64
	highWater   atomic.Int64
}

// NewBlockPool returns a pool that refuses to exceed limit outstanding
// blocks. A limit of 0 disables the bound.
func NewBlockPool(limit int) *BlockPool {
	p := &BlockPool{limit: int64(limit)}
	p.pool.New = func() any {
		p.news.Add(1)
		return new(Block)
	}
	return p
}

func (p *BlockPool) Get() (*Block, error) {
	n := p.outstanding.Add(1)
	if p.limit > 0 && n > p.limit {
		p.outstanding.Add(-1)
		return nil, fmt.Errorf("%w: limit of %d blocks reached", ErrAllocExhausted, p.limit)
	}
	for hw := p.highWater.Load(); n > hw && !p.highWater.CompareAndSwap(hw, n); hw = p.highWater.Load() {
	}
	p.gets.Add(1)
	b := p.pool.Get().(*Block)
	b.Reset()
	return b, nil
}

func (p *BlockPool) Put(b *Block) {
	if b == nil {
		return
	}
	p.outstanding.Add(-1)
	p.puts.Add(1)
	p.pool.Put(b)
}

// PoolStats is a point-in-time snapshot of allocator activity.
type PoolStats struct {
	Gets        int64 // blocks handed out
	Puts        int64 // blocks returned
	News        int64 // blocks freshly allocated rather than recycled
	Outstanding int64 // blocks currently held by queues or consumers
	HighWater   int64 // peak Outstanding observed
}

func (p *BlockPool) Stats() PoolStats {
	return PoolStats{
		Gets:        p.gets.Load(),
		Puts:        p.puts.Load(),
		News:        p.news.Load(),
		Outstanding: p.outstanding.Load(),
		HighWater:   p.highWater.Load(),
	}
}
