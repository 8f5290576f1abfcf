package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/jwsung91/unilink-go/config"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestConfig(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Config Suite")
}

var _ = Describe("Store", func() {
	It("applies built-in defaults when a section is absent", func() {
		s := New()
		cli := s.TCPClient()
		Expect(cli.ConnectionTimeout).To(Equal(5 * time.Second))
		Expect(cli.BackpressureThreshold).To(Equal(int64(1 << 20)))

		sp := s.Serial()
		Expect(sp.BaudRate).To(Equal(9600))
		Expect(sp.ReadChunk).To(Equal(4096))
	})

	It("round-trips through a YAML file", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "unilink.yaml")

		s := New()
		s.Set("tcp_server.port", 9000)
		s.Set("tcp_server.client_limit", 32)
		s.Set("serial.device", "/dev/ttyUSB0")

		Expect(s.Save(path)).To(Succeed())

		loaded, err := Load(path)
		Expect(err).NotTo(HaveOccurred())

		srv := loaded.TCPServer()
		Expect(srv.Port).To(Equal(9000))
		Expect(srv.ClientLimit).To(Equal(32))

		sp := loaded.Serial()
		Expect(sp.Device).To(Equal("/dev/ttyUSB0"))
	})

	It("populates TLS config only when enabled", func() {
		s := New()
		Expect(s.TCPClient().TLS).To(BeNil())

		s.Set("tcp_client.tls.enabled", true)
		s.Set("tcp_client.tls.cert_file", "cert.pem")
		s.Set("tcp_client.tls.key_file", "key.pem")

		tls := s.TCPClient().TLS
		Expect(tls).NotTo(BeNil())
		Expect(tls.CertFile).To(Equal("cert.pem"))
	})

	It("errors loading a missing file", func() {
		_, err := Load(filepath.Join(os.TempDir(), "does-not-exist-unilink.yaml"))
		Expect(err).To(HaveOccurred())
	})

	It("accepts the built-in defaults", func() {
		Expect(New().Validate()).To(Succeed())
	})

	It("rejects an out-of-range port", func() {
		s := New()
		s.Set("tcp_server.port", 70000)
		Expect(s.Validate()).To(HaveOccurred())
	})

	It("treats a zero baud rate as unset and rejects a negative one", func() {
		s := New()
		s.Set("serial.baud_rate", 0)
		s.Set("serial.char_size", 0)
		Expect(s.Validate()).To(Succeed()) // zero counts as "unset" (omitempty)

		s.Set("serial.baud_rate", -1)
		Expect(s.Validate()).To(HaveOccurred())
	})
})
