package tcpserver_test

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	. "github.com/jwsung91/unilink-go/transport/tcpserver"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestTCPServer(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "TCPServer Suite")
}

func freePort() int {
	ln, _ := net.Listen("tcp", "127.0.0.1:0")
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

var _ = Describe("Server", func() {
	It("accepts multiple clients and assigns monotonically increasing ids", func() {
		port := freePort()

		var mu sync.Mutex
		var connected []uint64
		srv := New(Config{Port: port, BackpressureThreshold: 1 << 20}, Callbacks{
			OnMultiConnect: func(id uint64, peer string) {
				mu.Lock()
				connected = append(connected, id)
				mu.Unlock()
			},
		})
		Expect(srv.Start(context.Background())).To(Succeed())
		defer srv.Stop()

		time.Sleep(20 * time.Millisecond) // let the acceptor bind

		c1, err := net.Dial("tcp", "127.0.0.1:"+strconv.Itoa(port))
		Expect(err).NotTo(HaveOccurred())
		defer c1.Close()
		c2, err := net.Dial("tcp", "127.0.0.1:"+strconv.Itoa(port))
		Expect(err).NotTo(HaveOccurred())
		defer c2.Close()

		Eventually(func() int {
			mu.Lock()
			defer mu.Unlock()
			return len(connected)
		}, time.Second).Should(Equal(2))

		mu.Lock()
		Expect(connected[1]).To(BeNumerically(">", connected[0]))
		mu.Unlock()
		Expect(srv.GetClientCount()).To(Equal(2))
	})

	It("broadcasts to every connected client", func() {
		port := freePort()
		srv := New(Config{Port: port, BackpressureThreshold: 1 << 20}, Callbacks{})
		Expect(srv.Start(context.Background())).To(Succeed())
		defer srv.Stop()

		time.Sleep(20 * time.Millisecond)

		c1, _ := net.Dial("tcp", "127.0.0.1:"+strconv.Itoa(port))
		defer c1.Close()
		c2, _ := net.Dial("tcp", "127.0.0.1:"+strconv.Itoa(port))
		defer c2.Close()

		Eventually(srv.GetClientCount, time.Second).Should(Equal(2))

		srv.Broadcast([]byte("hi\n"))

		r1 := bufio.NewReader(c1)
		r2 := bufio.NewReader(c2)
		c1.SetReadDeadline(time.Now().Add(time.Second))
		c2.SetReadDeadline(time.Now().Add(time.Second))

		line1, err := r1.ReadString('\n')
		Expect(err).NotTo(HaveOccurred())
		Expect(line1).To(Equal("hi\n"))

		line2, err := r2.ReadString('\n')
		Expect(err).NotTo(HaveOccurred())
		Expect(line2).To(Equal("hi\n"))
	})

	It("rejects connections beyond the client cap without growing the session table", func() {
		port := freePort()
		srv := New(Config{Port: port, BackpressureThreshold: 1 << 20, ClientLimit: 1}, Callbacks{})
		Expect(srv.Start(context.Background())).To(Succeed())
		defer srv.Stop()

		time.Sleep(20 * time.Millisecond)

		c1, _ := net.Dial("tcp", "127.0.0.1:"+strconv.Itoa(port))
		defer c1.Close()
		Eventually(srv.GetClientCount, time.Second).Should(Equal(1))

		c2, _ := net.Dial("tcp", "127.0.0.1:"+strconv.Itoa(port))
		defer c2.Close()

		Consistently(srv.GetClientCount, 200*time.Millisecond).Should(Equal(1))
	})

	It("removes a session from the table on disconnect", func() {
		port := freePort()
		disconnected := make(chan uint64, 1)
		srv := New(Config{Port: port, BackpressureThreshold: 1 << 20}, Callbacks{
			OnMultiDisconnect: func(id uint64) { disconnected <- id },
		})
		Expect(srv.Start(context.Background())).To(Succeed())
		defer srv.Stop()

		time.Sleep(20 * time.Millisecond)

		c1, _ := net.Dial("tcp", "127.0.0.1:"+strconv.Itoa(port))
		Eventually(srv.GetClientCount, time.Second).Should(Equal(1))

		c1.Close()
		Eventually(disconnected, time.Second).Should(Receive())
		Eventually(srv.GetClientCount, time.Second).Should(Equal(0))
	})

	It("keeps the session alive when OnMultiData panics and StopOnCallbackException is false", func() {
		port := freePort()
		received := make(chan []byte, 2)
		srv := New(Config{Port: port, BackpressureThreshold: 1 << 20}, Callbacks{
			OnMultiData: func(id uint64, p []byte) {
				received <- append([]byte(nil), p...)
				panic("boom")
			},
		})
		Expect(srv.Start(context.Background())).To(Succeed())
		defer srv.Stop()

		time.Sleep(20 * time.Millisecond)

		c1, err := net.Dial("tcp", "127.0.0.1:"+strconv.Itoa(port))
		Expect(err).NotTo(HaveOccurred())
		defer c1.Close()
		Eventually(srv.GetClientCount, time.Second).Should(Equal(1))

		c1.Write([]byte("one"))
		Eventually(received, time.Second).Should(Receive(Equal([]byte("one"))))

		c1.Write([]byte("two"))
		Eventually(received, time.Second).Should(Receive(Equal([]byte("two"))))
		Consistently(srv.GetClientCount, 100*time.Millisecond).Should(Equal(1))
	})

	It("drops the session when OnMultiData panics and StopOnCallbackException is true", func() {
		port := freePort()
		disconnected := make(chan uint64, 1)
		srv := New(Config{Port: port, BackpressureThreshold: 1 << 20, StopOnCallbackException: true}, Callbacks{
			OnMultiData:       func(id uint64, p []byte) { panic("boom") },
			OnMultiDisconnect: func(id uint64) { disconnected <- id },
		})
		Expect(srv.Start(context.Background())).To(Succeed())
		defer srv.Stop()

		time.Sleep(20 * time.Millisecond)

		c1, err := net.Dial("tcp", "127.0.0.1:"+strconv.Itoa(port))
		Expect(err).NotTo(HaveOccurred())
		defer c1.Close()
		Eventually(srv.GetClientCount, time.Second).Should(Equal(1))

		c1.Write([]byte("trigger"))
		Eventually(disconnected, time.Second).Should(Receive())
		Eventually(srv.GetClientCount, time.Second).Should(Equal(0))
	})
})

