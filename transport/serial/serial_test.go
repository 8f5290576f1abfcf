package serial_test

import (
	"context"
	"testing"
	"time"

	"github.com/jwsung91/unilink-go/linkstate"
	. "github.com/jwsung91/unilink-go/transport/serial"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestSerial(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Serial Suite")
}

const invalidDevice = "/dev/ttyInvalid999"

var _ = Describe("Channel", func() {
	It("transitions to Error on an invalid device when reopen is disabled", func() {
		ch := New(Config{Device: invalidDevice, BaudRate: 9600}, Callbacks{})
		Expect(ch.Start(context.Background())).To(Succeed())
		defer ch.Stop()

		Eventually(ch.State, time.Second).Should(Equal(linkstate.Error))
		Expect(ch.IsConnected()).To(BeFalse())
	})

	It("stays in Connecting and keeps retrying when reopen_on_error is set", func() {
		ch := New(Config{
			Device: invalidDevice, BaudRate: 9600,
			ReopenOnError: true, RetryInterval: 20 * time.Millisecond,
		}, Callbacks{})
		Expect(ch.Start(context.Background())).To(Succeed())
		defer ch.Stop()

		Consistently(ch.State, 150*time.Millisecond, 10*time.Millisecond).Should(Equal(linkstate.Connecting))
		Expect(ch.IsConnected()).To(BeFalse())
	})

	It("is idempotent on Stop and ends in Closed", func() {
		ch := New(Config{Device: invalidDevice, BaudRate: 9600}, Callbacks{})
		Expect(ch.Start(context.Background())).To(Succeed())

		Expect(ch.Stop()).To(Succeed())
		Expect(ch.Stop()).To(Succeed())
		Expect(ch.State()).To(Equal(linkstate.Closed))
	})

	It("does not deliver bytes or accept writes once stopped", func() {
		ch := New(Config{Device: invalidDevice, BaudRate: 9600}, Callbacks{})
		Expect(ch.Start(context.Background())).To(Succeed())
		Expect(ch.Stop()).To(Succeed())

		Expect(ch.Send([]byte("anything"))).To(Succeed()) // dropped silently, not an error
		Expect(ch.State()).To(Equal(linkstate.Closed))
	})

	It("reports Connecting immediately after Start before the open attempt resolves", func() {
		ch := New(Config{Device: invalidDevice, BaudRate: 9600, ReopenOnError: true, RetryInterval: time.Second}, Callbacks{})
		Expect(ch.Start(context.Background())).To(Succeed())
		defer ch.Stop()

		Expect(ch.State()).To(Equal(linkstate.Connecting))
	})
})
