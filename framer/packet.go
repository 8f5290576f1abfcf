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

package framer

import (
	"bytes"
	"errors"
)

type packetState int

const (
	packetSync packetState = iota
	packetCollect
)

// PacketFramer extracts start/end-pattern delimited packets. At least one
// of start or end must be non-empty.
type PacketFramer struct {
	start, end []byte
	maxLength  int
	buffer     []byte
	state      packetState
	scannedIdx int
	onMessage  func([]byte)
}

// NewPacketFramer constructs a PacketFramer. start and end cannot both be
// empty.
func NewPacketFramer(start, end []byte, maxLength int) (*PacketFramer, error) {
	if len(start) == 0 && len(end) == 0 {
		return nil, errors.New("framer: start and end pattern cannot both be empty")
	}
	return &PacketFramer{start: start, end: end, maxLength: maxLength, state: packetSync}, nil
}

func (f *PacketFramer) OnMessage(cb func([]byte)) { f.onMessage = cb }

func (f *PacketFramer) PushBytes(data []byte) {
	if len(data) == 0 {
		return
	}

	// Fast path: empty buffer, Sync state, non-empty start pattern — scan
	// the incoming span directly without copying into buffer first.
	if len(f.buffer) == 0 && f.state == packetSync && len(f.start) > 0 {
		f.pushFastPath(data)
		return
	}

	f.buffer = append(f.buffer, data...)
	f.drain()
}

func (f *PacketFramer) pushFastPath(data []byte) {
	processed := 0
	for processed < len(data) {
		rel := bytes.Index(data[processed:], f.start)
		if rel < 0 {
			if len(f.start) > 1 {
				remaining := len(data) - processed
				keep := len(f.start) - 1
				if remaining > keep {
					processed += remaining - keep
				}
				f.buffer = append(f.buffer, data[processed:]...)
			}
			return
		}

		startIdx := processed + rel

		if len(f.end) == 0 {
			packetLen := len(f.start)
			if f.onMessage != nil {
				f.onMessage(data[startIdx : startIdx+packetLen])
			}
			processed = startIdx + packetLen
			continue
		}

		searchFrom := startIdx + len(f.start)
		relEnd := bytes.Index(data[searchFrom:], f.end)
		if relEnd < 0 {
			f.buffer = append(f.buffer, data[startIdx:]...)
			f.state = packetCollect
			f.scannedIdx = len(f.buffer)
			if len(f.buffer) > f.maxLength {
				f.buffer = f.buffer[:0]
				f.state = packetSync
				f.scannedIdx = 0
			}
			return
		}

		endIdx := searchFrom + relEnd
		packetLen := (endIdx - startIdx) + len(f.end)
		if packetLen <= f.maxLength && f.onMessage != nil {
			f.onMessage(data[startIdx : startIdx+packetLen])
		}
		processed = startIdx + packetLen
	}
}

func (f *PacketFramer) drain() {
	for {
		switch f.state {
		case packetSync:
			if len(f.start) == 0 {
				f.state = packetCollect
				continue
			}

			idx := bytes.Index(f.buffer, f.start)
			if idx >= 0 {
				if idx > 0 {
					n := copy(f.buffer, f.buffer[idx:])
					f.buffer = f.buffer[:n]
				}
				f.state = packetCollect
				f.scannedIdx = len(f.start)
				continue
			}

			if len(f.start) > 1 {
				keep := len(f.start) - 1
				if len(f.buffer) > keep {
					n := copy(f.buffer, f.buffer[len(f.buffer)-keep:])
					f.buffer = f.buffer[:n]
				}
			} else {
				f.buffer = f.buffer[:0]
			}
			return

		case packetCollect:
			if len(f.end) == 0 {
				packetLen := len(f.start)
				if f.onMessage != nil {
					f.onMessage(f.buffer[:packetLen])
				}
				if len(f.buffer) == 0 {
					return
				}
				n := copy(f.buffer, f.buffer[packetLen:])
				f.buffer = f.buffer[:n]
				f.state = packetSync
				continue
			}

			searchOffset := f.scannedIdx
			if searchOffset < len(f.start) {
				searchOffset = len(f.start)
			}
			if searchOffset > len(f.start) {
				overlap := 0
				if len(f.end) > 1 {
					overlap = len(f.end) - 1
				}
				if searchOffset >= overlap {
					searchOffset -= overlap
				} else {
					searchOffset = 0
				}
			}
			if searchOffset < len(f.start) {
				searchOffset = len(f.start)
			}
			if len(f.buffer) < searchOffset {
				return
			}

			rel := bytes.Index(f.buffer[searchOffset:], f.end)
			if rel < 0 {
				f.scannedIdx = len(f.buffer)
				if len(f.buffer) > f.maxLength {
					f.buffer = f.buffer[:0]
					f.state = packetSync
					f.scannedIdx = 0
				}
				return
			}

			packetLen := searchOffset + rel + len(f.end)
			if packetLen <= f.maxLength && f.onMessage != nil {
				f.onMessage(f.buffer[:packetLen])
			}
			if len(f.buffer) == 0 {
				return
			}
			n := copy(f.buffer, f.buffer[packetLen:])
			f.buffer = f.buffer[:n]
			f.state = packetSync
			f.scannedIdx = 0
		}
	}
}

func (f *PacketFramer) Reset() {
	f.buffer = f.buffer[:0]
	f.state = packetSync
	f.scannedIdx = 0
}
