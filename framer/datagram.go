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

// DatagramFramer treats every non-empty PushBytes call as exactly one
// complete message, with no buffering across calls; an empty push delivers
// nothing. It exists for transports that
// already deliver message-bounded reads at the OS level — UDP datagrams,
// framed device drivers — where a delimiter or pattern scan would be wrong:
// a datagram with no trailing delimiter must not be merged with the next one.
type DatagramFramer struct {
	onMessage func([]byte)
}

// NewDatagramFramer builds a DatagramFramer.
func NewDatagramFramer() *DatagramFramer {
	return &DatagramFramer{}
}

// OnMessage registers the callback invoked once per non-empty PushBytes call.
func (f *DatagramFramer) OnMessage(cb func([]byte)) { f.onMessage = cb }

func (f *DatagramFramer) PushBytes(p []byte) {
	if f.onMessage != nil && len(p) > 0 {
		f.onMessage(p)
	}
}

func (f *DatagramFramer) Reset() {}
