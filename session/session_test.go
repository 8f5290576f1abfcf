package session_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/jwsung91/unilink-go/executor"
	"github.com/jwsung91/unilink-go/linkstate"
	. "github.com/jwsung91/unilink-go/session"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestSession(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Session Suite")
}

// fakeHandle gives full control over when Write calls return, so tests can
// deterministically drive queue depth without racing a real socket.
type fakeHandle struct {
	mu        sync.Mutex
	writes    [][]byte
	writeGate chan struct{} // if non-nil, each Write blocks until a value arrives
	readCh    chan []byte
	closed    bool
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{readCh: make(chan []byte)}
}

func (f *fakeHandle) Read(p []byte) (int, error) {
	data, ok := <-f.readCh
	if !ok {
		return 0, io.EOF
	}
	n := copy(p, data)
	return n, nil
}

func (f *fakeHandle) Write(p []byte) (int, error) {
	if f.writeGate != nil {
		<-f.writeGate
	}
	f.mu.Lock()
	f.writes = append(f.writes, append([]byte(nil), p...))
	f.mu.Unlock()
	return len(p), nil
}

func (f *fakeHandle) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	close(f.readCh)
	return nil
}

func (f *fakeHandle) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func newStrand() *executor.Strand {
	rt := executor.New(0)
	rt.Start()
	return rt.NewStrand()
}

var _ = Describe("Session write path", func() {
	It("delivers WriteCopy bytes to the handle", func() {
		h := newFakeHandle()
		s := New(h, newStrand(), 1024, false, Callbacks{})
		s.Start()

		Expect(s.WriteCopy([]byte("hello"))).To(Succeed())

		Eventually(h.writeCount).Should(Equal(1))
		Expect(h.writes[0]).To(Equal([]byte("hello")))

		s.Close(nil)
	})

	It("rejects writes once closed", func() {
		h := newFakeHandle()
		s := New(h, newStrand(), 1024, false, Callbacks{})
		s.Start()
		s.Close(nil)

		Expect(s.WriteCopy([]byte("x"))).To(MatchError(ErrNotAlive))
	})

	It("rejects a single write larger than 64 MiB", func() {
		h := newFakeHandle()
		s := New(h, newStrand(), 1024, false, Callbacks{})
		s.Start()

		big := make([]byte, 64*1024*1024+1)
		Expect(s.WriteCopy(big)).To(MatchError(ErrTooLarge))
		s.Close(nil)
	})

	It("fires on_backpressure exactly once per hysteresis edge crossing", func() {
		h := newFakeHandle()
		h.writeGate = make(chan struct{})

		var mu sync.Mutex
		var events []int64
		cb := Callbacks{OnBackpressure: func(q int64) {
			mu.Lock()
			events = append(events, q)
			mu.Unlock()
		}}

		// threshold=10 -> high=10, low=5, hard_limit=max(40,1MiB) clamped... but
		// hard_limit floors at defaultBackpressure (1MiB) so it never blocks
		// this small test; only the hysteresis watermarks matter here.
		s := New(h, newStrand(), 10, false, cb)
		s.Start()

		Expect(s.WriteCopy([]byte("12345"))).To(Succeed())     // queued=5, in flight, blocks on gate
		Expect(s.WriteCopy([]byte("123456"))).To(Succeed())    // queued=11 >= high(10) -> bp active

		Eventually(func() int {
			mu.Lock()
			defer mu.Unlock()
			return len(events)
		}).Should(Equal(1))

		h.writeGate <- struct{}{} // release first write (5 bytes) -> queued=6, still > low(5)

		Consistently(func() int {
			mu.Lock()
			defer mu.Unlock()
			return len(events)
		}, 100*time.Millisecond).Should(Equal(1))

		h.writeGate <- struct{}{} // release second write (6 bytes) -> queued=0 <= low(5) -> bp inactive

		Eventually(func() int {
			mu.Lock()
			defer mu.Unlock()
			return len(events)
		}).Should(Equal(2))

		s.Close(nil)
	})

	It("transitions to Error and drops the queue on hard-limit overflow", func() {
		h := newFakeHandle()
		h.writeGate = make(chan struct{}) // never released: first write stays in flight forever

		var mu sync.Mutex
		closed := false
		var closeErr error
		cb := Callbacks{OnClose: func(err error) {
			mu.Lock()
			closed = true
			closeErr = err
			mu.Unlock()
		}}

		// threshold=1 -> hard_limit floors at 1 MiB regardless. Two 600 KiB
		// writes sum past it while the first sits in flight.
		s := New(h, newStrand(), 1, false, cb)
		s.Start()

		chunk := make([]byte, 600*1024)
		Expect(s.WriteCopy(chunk)).To(Succeed()) // queued=600KiB, write in flight (gated, never completes)
		Expect(s.WriteCopy(chunk)).To(Succeed()) // queued=1200KiB > hard_limit -> overflow

		Eventually(s.State).Should(Equal(linkstate.Error))
		Eventually(func() bool {
			mu.Lock()
			defer mu.Unlock()
			return closed
		}).Should(BeTrue())
		mu.Lock()
		Expect(closeErr).To(HaveOccurred())
		mu.Unlock()
	})

	It("WriteShared delivers a shared, non-copied buffer", func() {
		h := newFakeHandle()
		s := New(h, newStrand(), 1024, false, Callbacks{})
		s.Start()

		shared := NewSharedBytes([]byte("broadcast"))
		Expect(s.WriteShared(shared)).To(Succeed())

		Eventually(h.writeCount).Should(Equal(1))
		Expect(h.writes[0]).To(Equal([]byte("broadcast")))

		s.Close(nil)
	})
})

var _ = Describe("Session close protocol", func() {
	It("is idempotent: the close callback fires exactly once", func() {
		h := newFakeHandle()
		var mu sync.Mutex
		count := 0
		cb := Callbacks{OnClose: func(err error) {
			mu.Lock()
			count++
			mu.Unlock()
		}}
		s := New(h, newStrand(), 1024, false, cb)
		s.Start()

		s.Close(nil)
		s.Close(nil)
		s.Close(errors.New("late"))

		Eventually(func() int {
			mu.Lock()
			defer mu.Unlock()
			return count
		}).Should(Equal(1))
	})

	It("transitions to Closed on a nil-error close and Error otherwise", func() {
		h1 := newFakeHandle()
		s1 := New(h1, newStrand(), 1024, false, Callbacks{})
		s1.Start()
		s1.Close(nil)
		Eventually(s1.State).Should(Equal(linkstate.Closed))

		h2 := newFakeHandle()
		s2 := New(h2, newStrand(), 1024, false, Callbacks{})
		s2.Start()
		s2.Close(errors.New("boom"))
		Eventually(s2.State).Should(Equal(linkstate.Error))
	})

	It("delivers received bytes to OnBytes and then EOF triggers a graceful close", func() {
		h := newFakeHandle()
		received := make(chan []byte, 1)
		closed := make(chan struct{})
		cb := Callbacks{
			OnBytes: func(p []byte) { received <- append([]byte(nil), p...) },
			OnClose: func(err error) { close(closed) },
		}
		s := New(h, newStrand(), 1024, false, cb)
		s.Start()

		h.readCh <- []byte("ping")
		Eventually(received, time.Second).Should(Receive(Equal([]byte("ping"))))

		h.Close()
		Eventually(closed, time.Second).Should(BeClosed())
		Expect(s.State()).To(Equal(linkstate.Closed))
	})
})

var _ = Describe("Session callback exception handling", func() {
	It("logs and keeps running when OnBytes panics and StopOnCallbackException is false", func() {
		h := newFakeHandle()
		received := make(chan []byte, 1)
		cb := Callbacks{OnBytes: func(p []byte) {
			if len(received) == 0 {
				received <- append([]byte(nil), p...)
				panic("boom")
			}
		}}
		s := New(h, newStrand(), 1024, false, cb)
		s.Start()

		h.readCh <- []byte("first")
		Eventually(received, time.Second).Should(Receive(Equal([]byte("first"))))

		Consistently(s.State, 100*time.Millisecond).ShouldNot(Equal(linkstate.Error))
		Expect(s.IsAlive()).To(BeTrue())

		s.Close(nil)
	})

	It("transitions to Error and closes when OnBytes panics and StopOnCallbackException is true", func() {
		h := newFakeHandle()
		cb := Callbacks{
			OnBytes:                 func(p []byte) { panic("boom") },
			StopOnCallbackException: true,
		}
		s := New(h, newStrand(), 1024, false, cb)
		s.Start()

		h.readCh <- []byte("trigger")

		Eventually(s.State, time.Second).Should(Equal(linkstate.Error))
		Expect(s.IsAlive()).To(BeFalse())
	})

	It("does not deadlock the strand after a panicking OnClose", func() {
		h := newFakeHandle()
		cb := Callbacks{OnClose: func(err error) { panic("boom") }}
		strand := newStrand()
		s := New(h, strand, 1024, false, cb)
		s.Start()

		s.Close(nil)

		// the strand must still be able to process further work afterward
		ran := make(chan struct{})
		strand.Post(func() { close(ran) })
		Eventually(ran, time.Second).Should(BeClosed())
		Expect(s.WriteCopy([]byte("x"))).To(MatchError(ErrNotAlive))
	})
})

var _ = Describe("Session cancellation on close (Scenario D)", func() {
	It("invokes close within a bounded window even with writes queued", func() {
		h := newFakeHandle()
		h.writeGate = make(chan struct{}, 10)
		for i := 0; i < 10; i++ {
			h.writeGate <- struct{}{}
		}

		closed := make(chan struct{})
		cb := Callbacks{OnClose: func(err error) { close(closed) }}
		s := New(h, newStrand(), 1024, false, cb)
		s.Start()

		for i := 0; i < 5; i++ {
			_ = s.WriteCopy([]byte("data"))
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		s.Close(nil)

		select {
		case <-closed:
		case <-ctx.Done():
			Fail("close callback did not fire within 2s")
		}
	})
})
