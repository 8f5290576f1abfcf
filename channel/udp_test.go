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

package channel_test

import (
	"context"
	"net"
	"strconv"
	"time"

	. "github.com/jwsung91/unilink-go/channel"
	"github.com/jwsung91/unilink-go/transport/udp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("UDP channel framing", func() {
	It("delivers a datagram with no trailing delimiter as one OnData message", func() {
		port := freePort()

		var received []string
		ch, err := NewUDP(udp.Config{LocalPort: port, BackpressureThreshold: 1 << 20})
		Expect(err).NotTo(HaveOccurred())
		ch.OnData(func(s string) { received = append(received, s) })
		Expect(ch.Start(context.Background())).To(Succeed())
		defer ch.Stop()

		time.Sleep(20 * time.Millisecond)

		raddr, err := net.ResolveUDPAddr("udp", "127.0.0.1:"+strconv.Itoa(port))
		Expect(err).NotTo(HaveOccurred())
		conn, err := net.DialUDP("udp", nil, raddr)
		Expect(err).NotTo(HaveOccurred())
		defer conn.Close()

		_, err = conn.Write([]byte("ping"))
		Expect(err).NotTo(HaveOccurred())

		Eventually(func() []string { return received }, time.Second).Should(ContainElement("ping"))
	})

	It("does not merge two delimiter-less datagrams sent back to back", func() {
		port := freePort()

		var received []string
		ch, err := NewUDP(udp.Config{LocalPort: port, BackpressureThreshold: 1 << 20})
		Expect(err).NotTo(HaveOccurred())
		ch.OnData(func(s string) { received = append(received, s) })
		Expect(ch.Start(context.Background())).To(Succeed())
		defer ch.Stop()

		time.Sleep(20 * time.Millisecond)

		raddr, err := net.ResolveUDPAddr("udp", "127.0.0.1:"+strconv.Itoa(port))
		Expect(err).NotTo(HaveOccurred())
		conn, err := net.DialUDP("udp", nil, raddr)
		Expect(err).NotTo(HaveOccurred())
		defer conn.Close()

		Expect(conn.Write([]byte("ping"))).Error().NotTo(HaveOccurred())
		Expect(conn.Write([]byte("pong"))).Error().NotTo(HaveOccurred())

		Eventually(func() []string { return received }, time.Second).Should(Equal([]string{"ping", "pong"}))
	})
})

