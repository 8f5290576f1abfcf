package reconnect_test

import (
	"testing"
	"time"

	"github.com/jwsung91/unilink-go/errctx"
	. "github.com/jwsung91/unilink-go/reconnect"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestReconnect(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Reconnect Suite")
}

var retryable = errctx.ErrorInfo{Retryable: true}
var notRetryable = errctx.ErrorInfo{Retryable: false}

var _ = Describe("Decide", func() {
	It("stops immediately on a non-retryable error", func() {
		d := Decide(Config{MaxRetries: -1}, notRetryable, 0, nil)
		Expect(d.Retry).To(BeFalse())
	})

	It("never retries when max_retries is 0", func() {
		d := Decide(Config{MaxRetries: 0}, retryable, 0, nil)
		Expect(d.Retry).To(BeFalse())
	})

	It("retries forever when max_retries is -1", func() {
		for attempt := 0; attempt < 100; attempt++ {
			d := Decide(Config{MaxRetries: -1, RetryInterval: time.Second}, retryable, attempt, nil)
			Expect(d.Retry).To(BeTrue())
		}
	})

	It("stops once attempts reach max_retries (Scenario E: 0,1,2 then stop)", func() {
		cfg := Config{MaxRetries: 3, RetryInterval: time.Second}
		var attempts []int
		for attempt := 0; ; attempt++ {
			d := Decide(cfg, retryable, attempt, nil)
			if !d.Retry {
				break
			}
			attempts = append(attempts, attempt)
		}
		Expect(attempts).To(Equal([]int{0, 1, 2}))
	})

	It("uses the fixed retry interval when no policy is supplied", func() {
		d := Decide(Config{MaxRetries: -1, RetryInterval: 500 * time.Millisecond}, retryable, 0, nil)
		Expect(d.Delay).To(Equal(500 * time.Millisecond))
	})

	It("clamps a policy-returned delay into [0, 30s]", func() {
		huge := func(errctx.ErrorInfo, int) Decision { return Decision{Retry: true, Delay: time.Hour} }
		d := Decide(Config{MaxRetries: -1}, retryable, 0, Policy(huge))
		Expect(d.Delay).To(Equal(30 * time.Second))

		negative := func(errctx.ErrorInfo, int) Decision { return Decision{Retry: true, Delay: -5 * time.Second} }
		d = Decide(Config{MaxRetries: -1}, retryable, 0, Policy(negative))
		Expect(d.Delay).To(Equal(time.Duration(0)))
	})

	It("honors a policy that stops the sequence early", func() {
		giveUp := func(errctx.ErrorInfo, int) Decision { return Decision{Retry: false} }
		d := Decide(Config{MaxRetries: -1}, retryable, 0, Policy(giveUp))
		Expect(d.Retry).To(BeFalse())
	})
})

var _ = Describe("FixedInterval", func() {
	It("always returns the configured interval for a retryable error", func() {
		p := FixedInterval(2 * time.Second)
		d := p(retryable, 5)
		Expect(d.Retry).To(BeTrue())
		Expect(d.Delay).To(Equal(2 * time.Second))
	})

	It("refuses to retry a non-retryable error", func() {
		p := FixedInterval(2 * time.Second)
		d := p(notRetryable, 0)
		Expect(d.Retry).To(BeFalse())
	})
})

var _ = Describe("ExponentialBackoff", func() {
	It("grows the delay by factor^attempt up to max, without jitter", func() {
		p := ExponentialBackoff(100*time.Millisecond, 10*time.Second, 2.0, false)

		d0 := p(retryable, 0)
		d1 := p(retryable, 1)
		d2 := p(retryable, 2)

		Expect(d0.Delay).To(Equal(100 * time.Millisecond))
		Expect(d1.Delay).To(Equal(200 * time.Millisecond))
		Expect(d2.Delay).To(Equal(400 * time.Millisecond))
	})

	It("clamps growth at max", func() {
		p := ExponentialBackoff(time.Second, 3*time.Second, 2.0, false)
		d := p(retryable, 10)
		Expect(d.Delay).To(Equal(3 * time.Second))
	})

	It("resamples uniformly in [0, delay] when jitter is enabled", func() {
		p := ExponentialBackoff(time.Second, 10*time.Second, 2.0, true)
		for i := 0; i < 20; i++ {
			d := p(retryable, 3)
			Expect(d.Delay).To(BeNumerically(">=", 0))
			Expect(d.Delay).To(BeNumerically("<=", 8*time.Second))
		}
	})

	It("never retries a non-retryable error", func() {
		p := ExponentialBackoff(time.Second, 10*time.Second, 2.0, true)
		d := p(notRetryable, 0)
		Expect(d.Retry).To(BeFalse())
	})
})
