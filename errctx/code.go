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

// Package errctx is the error taxonomy every transport and session reports
// through: a fixed ErrorCode space, a richer ErrorInfo used internally for
// logging, and the trimmed ErrorContext that crosses the user callback
// boundary.
package errctx

// Code is the closed set of error classifications a Channel reports to its
// on_error callback. Mapping from OS/net errors to Code is fixed (see
// FromNetError) and is itself a tested property.
type Code int

const (
	Success Code = iota
	IoError
	ConnectionRefused
	TimedOut
	ConnectionReset
	ConnectionAborted
	NotConnected
	AlreadyConnected
	PortInUse
	AccessDenied
	InvalidConfiguration
	InternalError
)

func (c Code) String() string {
	switch c {
	case Success:
		return "Success"
	case IoError:
		return "IoError"
	case ConnectionRefused:
		return "ConnectionRefused"
	case TimedOut:
		return "TimedOut"
	case ConnectionReset:
		return "ConnectionReset"
	case ConnectionAborted:
		return "ConnectionAborted"
	case NotConnected:
		return "NotConnected"
	case AlreadyConnected:
		return "AlreadyConnected"
	case PortInUse:
		return "PortInUse"
	case AccessDenied:
		return "AccessDenied"
	case InvalidConfiguration:
		return "InvalidConfiguration"
	case InternalError:
		return "InternalError"
	default:
		return "Unknown"
	}
}

// Level is the severity of a logged ErrorInfo.
type Level int

const (
	Info Level = iota
	Warning
	Error
	Critical
)

func (l Level) String() string {
	switch l {
	case Info:
		return "INFO"
	case Warning:
		return "WARNING"
	case Error:
		return "ERROR"
	case Critical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Category groups errors by the subsystem that raised them.
type Category int

const (
	CategoryConnection Category = iota
	CategoryCommunication
	CategoryConfiguration
	CategoryMemory
	CategorySystem
	CategoryUnknown
)

func (c Category) String() string {
	switch c {
	case CategoryConnection:
		return "Connection"
	case CategoryCommunication:
		return "Communication"
	case CategoryConfiguration:
		return "Configuration"
	case CategoryMemory:
		return "Memory"
	case CategorySystem:
		return "System"
	default:
		return "Unknown"
	}
}
