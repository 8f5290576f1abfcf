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

package mempool

import (
	"fmt"
	"sync/atomic"

	"github.com/jwsung91/unilink-go/errctx"
)

// PooledBuffer is a handle to pool-owned (or, for oversized requests,
// freshly allocated) storage. It is not copyable in spirit — copy the
// pointer, never the struct — and Release is idempotent: a second call is a
// no-op, the Go substitute for "moved-from handles are inert" in a language
// without move semantics.
type PooledBuffer struct {
	buf      []byte
	size     int
	bucket   int
	pool     *Pool
	released atomic.Bool
}

// Len returns the requested size, not the (possibly larger) bucket capacity.
func (b *PooledBuffer) Len() int { return b.size }

// Bytes returns the requested-size view of the backing storage.
func (b *PooledBuffer) Bytes() []byte { return b.buf[:b.size] }

// At returns the byte at index i, bounds-checked against the requested
// size (not the bucket size). Out-of-range access returns a Memory-category
// error instead of panicking, per "throws out-of-range on violation...
// never silently clamped".
func (b *PooledBuffer) At(i int) (byte, error) {
	if i < 0 || i >= b.size {
		return 0, errctx.ErrorInfo{
			Level: errctx.Error, Category: errctx.CategoryMemory,
			Component: "mempool", Operation: "At",
			Message: fmt.Sprintf("index %d out of range [0,%d)", i, b.size),
		}
	}
	return b.buf[i], nil
}

// Release returns the backing storage to its bucket. Safe to call more than
// once; only the first call has an effect.
func (b *PooledBuffer) Release() {
	if b.released.Swap(true) {
		return
	}
	if b.pool != nil {
		b.pool.release(b)
	}
}
