package linkstate_test

import (
	"sync"
	"testing"
	"time"

	. "github.com/jwsung91/unilink-go/linkstate"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestLinkstate(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Linkstate Suite")
}

var _ = Describe("LinkState", func() {
	It("reports Closed and Error as terminal, everything else not", func() {
		Expect(Closed.IsTerminal()).To(BeTrue())
		Expect(Error.IsTerminal()).To(BeTrue())
		Expect(Idle.IsTerminal()).To(BeFalse())
		Expect(Connected.IsTerminal()).To(BeFalse())
	})
})

var _ = Describe("State", func() {
	It("notifies OnChange exactly once per distinct transition", func() {
		s := NewState(Idle)
		var transitions []LinkState
		s.OnChange(func(old, new LinkState) { transitions = append(transitions, new) })

		s.Set(Connecting)
		s.Set(Connecting) // no-op, same value
		s.Set(Connected)
		s.Set(Closed)

		Expect(transitions).To(Equal([]LinkState{Connecting, Connected, Closed}))
	})

	It("CompareAndSet only swaps when the current value matches", func() {
		s := NewState(Idle)
		Expect(s.CompareAndSet(Connecting, Connected)).To(BeFalse())
		Expect(s.CompareAndSet(Idle, Connecting)).To(BeTrue())
		Expect(s.Get()).To(Equal(Connecting))
	})

	It("Exchange returns the previous value", func() {
		s := NewState(Idle)
		prev := s.Exchange(Connected)
		Expect(prev).To(Equal(Idle))
		Expect(s.Get()).To(Equal(Connected))
	})

	It("WaitFor unblocks once the target value is set from another goroutine", func() {
		s := NewState(Idle)
		done := make(chan struct{})
		go func() {
			s.WaitFor(Closed)
			close(done)
		}()
		time.Sleep(10 * time.Millisecond)
		s.Set(Connecting)
		s.Set(Closed)

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			Fail("WaitFor did not unblock within 2s")
		}
	})
})

var _ = Describe("Atomic", func() {
	It("stores and loads without a lock", func() {
		a := NewAtomic(42)
		Expect(a.Load()).To(Equal(42))
		a.Store(7)
		Expect(a.Load()).To(Equal(7))
	})
})

var _ = Describe("Counter", func() {
	It("increments/decrements atomically under concurrent use", func() {
		var c Counter
		var wg sync.WaitGroup
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				c.Increment()
			}()
		}
		wg.Wait()
		Expect(c.Load()).To(Equal(int64(100)))
	})

	It("CompareAndSwap reports success/failure correctly", func() {
		var c Counter
		Expect(c.CompareAndSwap(0, 5)).To(BeTrue())
		Expect(c.CompareAndSwap(0, 9)).To(BeFalse())
		Expect(c.Load()).To(Equal(int64(5)))
	})
})

var _ = Describe("Flag", func() {
	It("TestAndSet returns the previous value", func() {
		var f Flag
		Expect(f.TestAndSet()).To(BeFalse())
		Expect(f.TestAndSet()).To(BeTrue())
	})

	It("WaitForTrue unblocks when another goroutine sets it", func() {
		var f Flag
		done := make(chan struct{})
		go func() {
			f.WaitForTrue()
			close(done)
		}()
		time.Sleep(10 * time.Millisecond)
		f.Set(true)

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			Fail("WaitForTrue did not unblock within 2s")
		}
	})
})
