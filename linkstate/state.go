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

// Package linkstate holds the session lifecycle tag and the generic
// thread-safe primitives every transport builds on: a read-write state
// wrapper with condition-variable wait, a lighter atomic state wrapper, a
// counter, and a flag. These mirror the C++ original's
// ThreadSafeState<T>/AtomicState<T>/ThreadSafeCounter/ThreadSafeFlag
// templates, expressed as Go generics instead of class templates.
package linkstate

// LinkState is a session-scoped lifecycle tag. Closed and Error are
// terminal: no session instance ever leaves them.
type LinkState int

const (
	Idle LinkState = iota
	Connecting
	Listening
	Connected
	Closed
	Error
)

func (s LinkState) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Connecting:
		return "Connecting"
	case Listening:
		return "Listening"
	case Connected:
		return "Connected"
	case Closed:
		return "Closed"
	case Error:
		return "Error"
	default:
		return "Unknown"
	}
}

// IsTerminal reports whether s is Closed or Error.
func (s LinkState) IsTerminal() bool {
	return s == Closed || s == Error
}
