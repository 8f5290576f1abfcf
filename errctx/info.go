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
	"fmt"
	"time"
)

// ErrorInfo is the internal, log-facing error record. It carries everything
// a component knows about a failure; ErrorContext below is the trimmed view
// that actually reaches a user callback.
type ErrorInfo struct {
	Level      Level
	Category   Category
	Component  string
	Operation  string
	Message    string
	OSErr      error
	Timestamp  time.Time
	Retryable  bool
	RetryCount int
}

func (e ErrorInfo) Error() string {
	if e.OSErr != nil {
		return fmt.Sprintf("[%s/%s] %s.%s: %s: %v", e.Level, e.Category, e.Component, e.Operation, e.Message, e.OSErr)
	}
	return fmt.Sprintf("[%s/%s] %s.%s: %s", e.Level, e.Category, e.Component, e.Operation, e.Message)
}

// Summary renders a one-line, log-oriented description.
func (e ErrorInfo) Summary() string {
	return e.Error()
}

// ErrorContext is what crosses the on_error callback boundary: a fixed Code,
// a human Message, and (for TCP server multi-client sessions) the id of the
// client the error belongs to.
type ErrorContext struct {
	Code     Code
	Message  string
	ClientID *uint64
}

func (e ErrorContext) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ToContext reduces an ErrorInfo down to the ErrorContext a callback sees.
func (e ErrorInfo) ToContext(code Code, clientID *uint64) ErrorContext {
	return ErrorContext{Code: code, Message: e.Message, ClientID: clientID}
}

// Stats aggregates error counts for diagnostics/metrics consumers.
type Stats struct {
	TotalErrors       int64
	ErrorsByLevel     [4]int64
	ErrorsByCategory  [6]int64
	RetryableErrors   int64
	SuccessfulRetries int64
	FailedRetries     int64
	FirstError        time.Time
	LastError         time.Time
}

// ErrorRate returns errors observed per second across [FirstError, LastError].
// Zero when fewer than two errors have been recorded.
func (s Stats) ErrorRate() float64 {
	if s.TotalErrors < 2 || s.LastError.Before(s.FirstError) || s.LastError.Equal(s.FirstError) {
		return 0
	}
	elapsed := s.LastError.Sub(s.FirstError).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(s.TotalErrors) / elapsed
}

// Record folds info into the running stats. Not safe for concurrent use;
// callers that aggregate across goroutines must serialize calls themselves.
func (s *Stats) Record(info ErrorInfo) {
	s.TotalErrors++
	s.ErrorsByLevel[info.Level]++
	s.ErrorsByCategory[info.Category]++
	if info.Retryable {
		s.RetryableErrors++
	}
	if s.FirstError.IsZero() {
		s.FirstError = info.Timestamp
	}
	s.LastError = info.Timestamp
}
