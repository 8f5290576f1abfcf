package tlsconfig_test

import (
	"testing"

	. "github.com/jwsung91/unilink-go/tlsconfig"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestTLSConfig(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "TLSConfig Suite")
}

var _ = Describe("Build", func() {
	It("builds a usable *tls.Config with no CA/cert configured", func() {
		tc, err := Build(Config{Enabled: true, ServerName: "example.test"})
		Expect(err).NotTo(HaveOccurred())
		Expect(tc).NotTo(BeNil())
		Expect(tc.ServerName).To(Equal("example.test"))
	})

	It("fails when the CA file does not exist", func() {
		_, err := Build(Config{Enabled: true, CAFile: "/no/such/ca.pem"})
		Expect(err).To(HaveOccurred())
	})

	It("fails when the certificate pair files do not exist", func() {
		_, err := Build(Config{Enabled: true, CertFile: "/no/such/cert.pem", KeyFile: "/no/such/key.pem"})
		Expect(err).To(HaveOccurred())
	})
})
