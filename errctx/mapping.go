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

package errctx

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"syscall"
)

// FromNetError maps a net/os-level error to the fixed Code space. The
// mapping mirrors the original boost::system::error_code table: connection
// refused/timed out/reset/aborted map to their named codes, unreachable
// network/host maps to NotConnected, address-in-use maps to PortInUse,
// permission errors map to AccessDenied, and anything else unrecognized
// maps to IoError.
func FromNetError(err error) Code {
	if err == nil {
		return Success
	}
	if errors.Is(err, io.EOF) {
		return ConnectionReset
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return TimedOut
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return ConnectionRefused
	}
	if errors.Is(err, syscall.ETIMEDOUT) {
		return TimedOut
	}
	if errors.Is(err, syscall.ECONNRESET) {
		return ConnectionReset
	}
	if errors.Is(err, syscall.ECONNABORTED) {
		return ConnectionAborted
	}
	if errors.Is(err, syscall.ENETUNREACH) || errors.Is(err, syscall.EHOSTUNREACH) {
		return NotConnected
	}
	if errors.Is(err, syscall.EISCONN) {
		return AlreadyConnected
	}
	if errors.Is(err, syscall.EADDRINUSE) {
		return PortInUse
	}
	if errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) {
		return AccessDenied
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return TimedOut
	}

	return IoError
}

// IsRetryableConnectError decides whether a TCP-client connect failure
// should be retried. operation_aborted (our context.Canceled / net.ErrClosed
// analogue) is never retryable; most other connect failures default to
// retryable, which keeps a flaky network from permanently wedging the
// reconnect loop.
func IsRetryableConnectError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, net.ErrClosed) {
		return false
	}
	switch FromNetError(err) {
	case ConnectionRefused, TimedOut, ConnectionReset:
		return true
	case NotConnected:
		return true
	default:
		return true
	}
}
