/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

// Package mempool is the bucketed, size-classed buffer pool that backs the
// write/read hot path. Four fixed size classes (1/4/16/64 KiB) each own a
// sync.Pool; Acquire rounds a request up to the nearest class and returns a
// PooledBuffer whose Release puts the backing slice back.
package mempool

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/jwsung91/unilink-go/errctx"
	"github.com/jwsung91/unilink-go/size"
)

const maxAcquireSize = 64 * 1024 * 1024

var bucketSizes = []size.Size{
	1 * size.SizeKilo,
	4 * size.SizeKilo,
	16 * size.SizeKilo,
	64 * size.SizeKilo,
}

// Pool is a bucketed buffer pool. Use New or Global; the zero value is not
// usable since each bucket's sync.Pool.New closure must be wired up first.
type Pool struct {
	buckets []sync.Pool
	total   int64
	misses  int64
}

// New constructs a Pool with the standard four size classes.
func New() *Pool {
	p := &Pool{buckets: make([]sync.Pool, len(bucketSizes))}
	for i := range bucketSizes {
		n := int(bucketSizes[i])
		idx := i
		p.buckets[idx].New = func() interface{} {
			atomic.AddInt64(&p.misses, 1)
			return make([]byte, n)
		}
	}
	return p
}

var (
	globalMu sync.Mutex
	global   *Pool
)

// Global returns the process-wide default pool, lazily initialized.
func Global() *Pool {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global == nil {
		global = New()
	}
	return global
}

// ResetForTest replaces the global pool with a fresh instance, as the
// design note "expose a reset hook for tests" requires.
func ResetForTest() {
	globalMu.Lock()
	defer globalMu.Unlock()
	global = New()
}

func bucketIndex(requested int) (int, bool) {
	for i, bs := range bucketSizes {
		if size.Size(requested) <= bs {
			return i, true
		}
	}
	return 0, false
}

// Acquire rounds size up to the nearest bucket class and returns a handle
// whose Len() is the requested size, backed by bucket-sized storage.
// Requests of zero/negative size or larger than 64 MiB fail with a
// Configuration-category error. Requests larger than the largest bucket
// (64 KiB) bypass the pool and allocate fresh, per the four-class design.
func (p *Pool) Acquire(requested int) (*PooledBuffer, error) {
	if requested <= 0 {
		return nil, errctx.ErrorInfo{
			Level: errctx.Error, Category: errctx.CategoryConfiguration,
			Component: "mempool", Operation: "Acquire",
			Message: fmt.Sprintf("invalid size %d: must be > 0", requested),
		}
	}
	if requested > maxAcquireSize {
		return nil, errctx.ErrorInfo{
			Level: errctx.Error, Category: errctx.CategoryConfiguration,
			Component: "mempool", Operation: "Acquire",
			Message: fmt.Sprintf("invalid size %d: exceeds 64MiB pool ceiling", requested),
		}
	}

	idx, ok := bucketIndex(requested)
	if !ok {
		atomic.AddInt64(&p.total, 1)
		atomic.AddInt64(&p.misses, 1)
		return &PooledBuffer{buf: make([]byte, requested), size: requested}, nil
	}

	atomic.AddInt64(&p.total, 1)
	buf := p.buckets[idx].Get().([]byte)
	return &PooledBuffer{buf: buf[:int(bucketSizes[idx])], size: requested, bucket: idx, pool: p}, nil
}

// release returns buf's backing storage to its bucket. No-op for
// pool-bypassing (oversized) buffers, which have buf.pool == nil.
func (p *Pool) release(buf *PooledBuffer) {
	if buf.pool == nil {
		return
	}
	p.buckets[buf.bucket].Put(buf.buf[:cap(buf.buf)])
}

// PoolStats mirrors the original's {total_allocations, pool_hits}.
type PoolStats struct {
	TotalAllocations int64
	PoolHits         int64
}

// HitRate is PoolHits/TotalAllocations, or zero when nothing was allocated.
func (s PoolStats) HitRate() float64 {
	if s.TotalAllocations == 0 {
		return 0
	}
	return float64(s.PoolHits) / float64(s.TotalAllocations)
}

// Stats reports hit-rate instrumentation. PoolHits is derived as
// total-misses since sync.Pool itself does not distinguish a Get() that
// reused a Put() buffer from one that ran New(); we count every New()
// invocation as a miss and everything else as a hit.
func (p *Pool) Stats() PoolStats {
	total := atomic.LoadInt64(&p.total)
	misses := atomic.LoadInt64(&p.misses)
	hits := total - misses
	if hits < 0 {
		hits = 0
	}
	return PoolStats{TotalAllocations: total, PoolHits: hits}
}
