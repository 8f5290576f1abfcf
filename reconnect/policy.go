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

// Package reconnect decides whether and when a TCP client retries a failed
// connect attempt: fixed interval or exponential-with-jitter, bounded
// attempts, clamped delay.
package reconnect

import (
	"math/rand"
	"sync"
	"time"

	"github.com/jwsung91/unilink-go/errctx"
)

const maxDelay = 30 * time.Second

// Decision is the outcome of one reconnect evaluation.
type Decision struct {
	Retry bool
	Delay time.Duration
}

// Policy computes a Decision from the last error and the 0-based attempt
// count. Returning Retry=false stops the sequence regardless of max_retries.
type Policy func(errInfo errctx.ErrorInfo, attempt int) Decision

// Config mirrors a TCP client's retry settings. MaxRetries == -1 means
// infinite, 0 means never retry.
type Config struct {
	MaxRetries   int
	RetryInterval time.Duration
}

var (
	randMu sync.Mutex
	rng    = rand.New(rand.NewSource(1))
)

func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	randMu.Lock()
	defer randMu.Unlock()
	return time.Duration(rng.Int63n(int64(d) + 1))
}

func clamp(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	if d > maxDelay {
		return maxDelay
	}
	return d
}

// FixedInterval retries every d whenever the error is retryable.
func FixedInterval(d time.Duration) Policy {
	return func(errInfo errctx.ErrorInfo, attempt int) Decision {
		return Decision{Retry: errInfo.Retryable, Delay: d}
	}
}

// ExponentialBackoff computes delay = min * factor^attempt, clamped to max.
// With jitter, the delay is resampled uniformly in [0, delay].
func ExponentialBackoff(min, max time.Duration, factor float64, jitterEnabled bool) Policy {
	if factor <= 0 {
		factor = 2.0
	}
	return func(errInfo errctx.ErrorInfo, attempt int) Decision {
		if !errInfo.Retryable {
			return Decision{Retry: false}
		}
		d := float64(min)
		for i := 0; i < attempt; i++ {
			d *= factor
		}
		delay := time.Duration(d)
		if delay > max {
			delay = max
		}
		if delay < min {
			delay = min
		}
		if jitterEnabled {
			delay = jitter(delay)
		}
		return Decision{Retry: true, Delay: delay}
	}
}

// Decide runs the five-step reconnect algorithm: non-retryable errors and an
// exhausted attempt budget stop the sequence; otherwise a supplied policy
// picks the delay, clamped to [0, 30s], or the caller's fixed interval applies.
func Decide(cfg Config, errInfo errctx.ErrorInfo, attempt int, policy Policy) Decision {
	if !errInfo.Retryable {
		return Decision{Retry: false}
	}
	if cfg.MaxRetries == 0 {
		return Decision{Retry: false}
	}
	if cfg.MaxRetries > 0 && attempt >= cfg.MaxRetries {
		return Decision{Retry: false}
	}
	if policy != nil {
		d := policy(errInfo, attempt)
		if !d.Retry {
			return Decision{Retry: false}
		}
		d.Delay = clamp(d.Delay)
		return d
	}
	return Decision{Retry: true, Delay: cfg.RetryInterval}
}
