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
 *
 *
 */

// Package errors attaches a small numeric code and an optional parent chain
// to a failure. A package reserves a range of codes with a Min constant,
// registers a Message function for them in an init func, and builds errors
// with CodeError.Error. Only the certificates package uses this today.
package errors

import (
	"sort"
	"sync"
)

// CodeError identifies a class of failure by a small numeric code.
type CodeError uint16

// UnknownError is the zero value, returned when a code was never registered.
const UnknownError CodeError = 0

// UnknownMessage is the message for a code with no registered Message func.
const UnknownMessage = "unknown error"

// MinPkgCertificate is the first code the certificates package reserves.
const MinPkgCertificate CodeError = 300

// Message renders a human-readable string for a CodeError.
type Message func(code CodeError) string

var (
	mu      sync.RWMutex
	idMsgFct = make(map[CodeError]Message)
)

// RegisterIdFctMessage associates a Message function with every code at or
// above minCode, up to the next registered minCode. Call it once per package
// from an init func, passing that package's lowest reserved code.
func RegisterIdFctMessage(minCode CodeError, fct Message) {
	mu.Lock()
	defer mu.Unlock()
	idMsgFct[minCode] = fct
}

// ExistInMapMessage reports whether code resolves to a non-empty message
// through a registered Message function.
func ExistInMapMessage(code CodeError) bool {
	mu.RLock()
	defer mu.RUnlock()
	if f, ok := idMsgFct[floorKey(code)]; ok {
		return f(code) != ""
	}
	return false
}

// Message returns the registered message for c, or UnknownMessage if none
// was registered (or the registered function returned an empty string).
func (c CodeError) Message() string {
	if c == UnknownError {
		return UnknownMessage
	}

	mu.RLock()
	f, ok := idMsgFct[floorKey(c)]
	mu.RUnlock()

	if ok {
		if m := f(c); m != "" {
			return m
		}
	}
	return UnknownMessage
}

// Error builds a new Error carrying code c, its registered message, and the
// given parents.
func (c CodeError) Error(parent ...error) Error {
	return New(c, c.Message(), parent...)
}

// floorKey finds the greatest registered key <= code, the same "nearest
// package range below this code" lookup the registry uses throughout.
func floorKey(code CodeError) CodeError {
	mu.RLock()
	keys := make([]int, 0, len(idMsgFct))
	for k := range idMsgFct {
		keys = append(keys, int(k))
	}
	mu.RUnlock()

	sort.Ints(keys)

	var res CodeError
	for _, k := range keys {
		if CodeError(k) <= code {
			res = CodeError(k)
		}
	}
	return res
}

// Error is a failure carrying a CodeError and an optional parent chain.
type Error interface {
	error

	// Code returns the numeric code of this error, ignoring parents.
	Code() CodeError
	// StringError returns the message, ignoring the code and parents.
	StringError() string
	// Add appends non-nil errors as parents of this Error.
	Add(parent ...error)
	// HasParent reports whether this Error has at least one parent.
	HasParent() bool
	// Unwrap exposes the parent chain to errors.Is/errors.As.
	Unwrap() []error
}

type ers struct {
	code CodeError
	msg  string
	p    []error
}

// New builds an Error with the given code, message, and parents.
func New(code CodeError, message string, parent ...error) Error {
	e := &ers{code: code, msg: message}
	e.Add(parent...)
	return e
}

func (e *ers) Code() CodeError      { return e.code }
func (e *ers) StringError() string  { return e.msg }
func (e *ers) HasParent() bool      { return len(e.p) > 0 }

func (e *ers) Add(parent ...error) {
	for _, p := range parent {
		if p != nil {
			e.p = append(e.p, p)
		}
	}
}

func (e *ers) Unwrap() []error { return e.p }

func (e *ers) Error() string {
	if e.msg == "" {
		return UnknownMessage
	}
	return e.msg
}
