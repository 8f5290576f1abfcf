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

// Package framer extracts message boundaries from a byte stream: a
// delimiter (line) framer and a start/end-pattern (packet) framer. Both are
// single-pass, amortized O(N) across the life of the stream regardless of
// how it is chunked, and both are not safe for concurrent use — callers
// serialize PushBytes through the owning session's strand.
package framer

import "bytes"

// Framer is the shared contract: push bytes, get zero or more messages back
// synchronously through OnMessage, on the calling goroutine.
type Framer interface {
	PushBytes(p []byte)
	Reset()
}

// LineFramer splits a byte stream on delimiter, with a single linear scan
// and a single trailing buffer-shift per PushBytes call — never per
// message — so a client trickling in one byte at a time never triggers
// quadratic behavior.
type LineFramer struct {
	delimiter        []byte
	includeDelimiter bool
	maxLength        int
	buffer           []byte
	scannedIndex     int
	onMessage        func([]byte)
}

// NewLineFramer builds a LineFramer. An empty delimiter defaults to "\n".
func NewLineFramer(delimiter string, includeDelimiter bool, maxLength int) *LineFramer {
	d := []byte(delimiter)
	if len(d) == 0 {
		d = []byte("\n")
	}
	return &LineFramer{delimiter: d, includeDelimiter: includeDelimiter, maxLength: maxLength}
}

// OnMessage registers the callback invoked for each extracted message.
func (f *LineFramer) OnMessage(cb func([]byte)) { f.onMessage = cb }

func (f *LineFramer) PushBytes(data []byte) {
	if len(data) == 0 {
		return
	}
	f.buffer = append(f.buffer, data...)

	searchStart := f.scannedIndex
	if searchStart >= len(f.delimiter)-1 {
		searchStart -= len(f.delimiter) - 1
	} else {
		searchStart = 0
	}

	lastProcessedEnd := 0

	for {
		rel := bytes.Index(f.buffer[searchStart:], f.delimiter)
		if rel < 0 {
			f.scannedIndex = len(f.buffer)
			break
		}

		foundPos := searchStart + rel
		msgEnd := foundPos + len(f.delimiter)
		msgTotalLen := msgEnd - lastProcessedEnd

		if msgTotalLen > f.maxLength {
			// Drop silently: advance past it without emitting.
			lastProcessedEnd = msgEnd
		} else {
			if f.onMessage != nil {
				extractLen := msgTotalLen
				if !f.includeDelimiter {
					extractLen -= len(f.delimiter)
				}
				f.onMessage(f.buffer[lastProcessedEnd : lastProcessedEnd+extractLen])
			}
			lastProcessedEnd = msgEnd
		}

		searchStart = lastProcessedEnd
	}

	if lastProcessedEnd > 0 {
		n := copy(f.buffer, f.buffer[lastProcessedEnd:])
		f.buffer = f.buffer[:n]
		f.scannedIndex = len(f.buffer)
	}

	if len(f.buffer) > f.maxLength {
		f.buffer = f.buffer[:0]
		f.scannedIndex = 0
	}
}

func (f *LineFramer) Reset() {
	f.buffer = f.buffer[:0]
	f.scannedIndex = 0
}
