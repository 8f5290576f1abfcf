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

package session

import "github.com/jwsung91/unilink-go/mempool"

// SharedBytes is an immutable byte slice shared across writes without
// copying — the zero-copy broadcast-fan-out vehicle.
type SharedBytes struct {
	data []byte
}

// NewSharedBytes wraps p without copying. Callers must not mutate p afterward.
func NewSharedBytes(p []byte) *SharedBytes { return &SharedBytes{data: p} }

func (s *SharedBytes) Bytes() []byte { return s.data }

// writeEntry is the tagged union of {pooled buffer, owned byte vector,
// shared immutable byte vector} queued by a session's write path.
type writeEntry interface {
	bytes() []byte
	free()
}

type pooledEntry struct{ buf *mempool.PooledBuffer }

func (e pooledEntry) bytes() []byte { return e.buf.Bytes() }
func (e pooledEntry) free()         { e.buf.Release() }

// ownedEntry holds a []byte outright. Go slices are reference types already,
// so promoting one to "shared" on the way into the write queue is a no-op:
// the garbage collector keeps the backing array alive as long as this entry
// (or the completion closure capturing it) is reachable.
type ownedEntry struct{ data []byte }

func (e ownedEntry) bytes() []byte { return e.data }
func (e ownedEntry) free()         {}

type sharedEntry struct{ shared *SharedBytes }

func (e sharedEntry) bytes() []byte { return e.shared.Bytes() }
func (e sharedEntry) free()         {}
