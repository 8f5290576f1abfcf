package executor_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/jwsung91/unilink-go/executor"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestExecutor(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Executor Suite")
}

var _ = Describe("Strand", func() {
	It("runs posted tasks in order, one at a time", func() {
		rt := New(0)
		rt.Start()
		s := rt.NewStrand()

		var mu sync.Mutex
		var order []int
		var wg sync.WaitGroup
		wg.Add(5)
		for i := 0; i < 5; i++ {
			i := i
			s.Post(func() {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				wg.Done()
			})
		}
		wg.Wait()

		Expect(order).To(Equal([]int{0, 1, 2, 3, 4}))

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		Expect(rt.Stop(ctx)).To(Succeed())
	})

	It("never runs two tasks from the same strand concurrently", func() {
		rt := New(0)
		rt.Start()
		s := rt.NewStrand()

		var running int32
		var sawOverlap int32
		var wg sync.WaitGroup
		wg.Add(20)
		for i := 0; i < 20; i++ {
			s.Post(func() {
				if atomic.AddInt32(&running, 1) > 1 {
					atomic.StoreInt32(&sawOverlap, 1)
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&running, -1)
				wg.Done()
			})
		}
		wg.Wait()

		Expect(atomic.LoadInt32(&sawOverlap)).To(Equal(int32(0)))

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = rt.Stop(ctx)
	})

	It("Dispatch runs inline when called from the strand's own worker goroutine", func() {
		rt := New(0)
		rt.Start()
		s := rt.NewStrand()

		done := make(chan bool, 1)
		s.Post(func() {
			ranInline := false
			s.Dispatch(s.Context(), func() { ranInline = true })
			done <- ranInline
		})

		Eventually(done).Should(Receive(BeTrue()))

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = rt.Stop(ctx)
	})

	It("Dispatch posts (does not run inline) when called off-strand", func() {
		rt := New(0)
		rt.Start()
		s := rt.NewStrand()

		ran := make(chan struct{})
		s.Dispatch(context.Background(), func() { close(ran) })
		Eventually(ran).Should(BeClosed())

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = rt.Stop(ctx)
	})

	It("survives a panicking task and keeps draining later posts", func() {
		rt := New(0)
		rt.Start()
		s := rt.NewStrand()

		s.Post(func() { panic("boom") })

		done := make(chan struct{})
		s.Post(func() { close(done) })
		Eventually(done, time.Second).Should(BeClosed())

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = rt.Stop(ctx)
	})
})

var _ = Describe("Runtime shutdown", func() {
	It("Stop drains strand queues within the bounded timeout", func() {
		rt := New(0)
		rt.Start()
		s := rt.NewStrand()

		var done int32
		for i := 0; i < 3; i++ {
			s.Post(func() { atomic.AddInt32(&done, 1) })
		}

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		Expect(rt.Stop(ctx)).To(Succeed())
		Expect(atomic.LoadInt32(&done)).To(Equal(int32(3)))
	})

	It("Start after Stop recreates strands from scratch", func() {
		rt := New(0)
		rt.Start()
		s1 := rt.NewStrand()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_ = rt.Stop(ctx)
		cancel()

		rt.Start()
		s2 := rt.NewStrand()
		Expect(s2).NotTo(BeIdenticalTo(s1))

		done := make(chan struct{})
		s2.Post(func() { close(done) })
		Eventually(done).Should(BeClosed())

		ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
		defer cancel2()
		_ = rt.Stop(ctx2)
	})
})

var _ = Describe("Shared executor", func() {
	It("is refcounted and reset is always safe to call", func() {
		ResetForTest()
		a := Shared()
		b := Shared()
		Expect(a).To(BeIdenticalTo(b))
		Release()
		Release()
		ResetForTest()
	})
})

var _ = Describe("Timer", func() {
	It("fires the callback with nil error after the delay", func() {
		rt := New(0)
		rt.Start()
		s := rt.NewStrand()

		result := make(chan error, 1)
		s.AfterFunc(10*time.Millisecond, func(err error) { result <- err })

		Eventually(result, time.Second).Should(Receive(BeNil()))

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = rt.Stop(ctx)
	})

	It("delivers ErrCanceled when stopped before firing", func() {
		rt := New(0)
		rt.Start()
		s := rt.NewStrand()

		result := make(chan error, 1)
		timer := s.AfterFunc(time.Hour, func(err error) { result <- err })
		timer.Stop()

		Eventually(result, time.Second).Should(Receive(Equal(ErrCanceled{})))

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = rt.Stop(ctx)
	})
})
