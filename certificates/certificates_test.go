package certificates_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"

	. "github.com/jwsung91/unilink-go/certificates"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestCertificates(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Certificates Suite")
}

// selfSignedPEM returns a self-signed cert/key pair, PEM encoded.
func selfSignedPEM() (certPEM, keyPEM []byte) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	Expect(err).NotTo(HaveOccurred())

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "unilink-test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	Expect(err).NotTo(HaveOccurred())

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	return certPEM, keyPEM
}

var _ = Describe("TLSConfig", func() {
	var certPEM, keyPEM []byte

	BeforeEach(func() {
		certPEM, keyPEM = selfSignedPEM()
	})

	It("rejects an empty PEM string as root CA", func() {
		tc := New()
		Expect(tc.AddRootCAString("")).To(BeFalse())
	})

	It("accepts a well-formed PEM root CA string", func() {
		tc := New()
		Expect(tc.AddRootCAString(string(certPEM))).To(BeTrue())
		Expect(tc.GetRootCA()).NotTo(BeNil())
	})

	It("loads a certificate/key pair from PEM strings", func() {
		tc := New()
		Expect(tc.AddCertificatePairString(string(keyPEM), string(certPEM))).To(Succeed())
		Expect(tc.LenCertificatePair()).To(Equal(1))
	})

	It("rejects a mismatched certificate/key pair", func() {
		otherCertPEM, _ := selfSignedPEM()
		tc := New()
		err := tc.AddCertificatePairString(string(keyPEM), string(otherCertPEM))
		Expect(err).To(HaveOccurred())
	})

	It("loads a certificate/key pair from files", func() {
		dir := GinkgoT().TempDir()
		keyFile := filepath.Join(dir, "key.pem")
		crtFile := filepath.Join(dir, "cert.pem")
		Expect(os.WriteFile(keyFile, keyPEM, 0o600)).To(Succeed())
		Expect(os.WriteFile(crtFile, certPEM, 0o600)).To(Succeed())

		tc := New()
		Expect(tc.AddCertificatePairFile(keyFile, crtFile)).To(Succeed())
		Expect(tc.LenCertificatePair()).To(Equal(1))
	})

	It("fails on a missing certificate file", func() {
		tc := New()
		err := tc.AddCertificatePairFile("/nonexistent/key.pem", "/nonexistent/cert.pem")
		Expect(err).To(HaveOccurred())
	})

	It("renders a *tls.Config with the loaded material", func() {
		tc := New()
		Expect(tc.AddRootCAString(string(certPEM))).To(BeTrue())
		Expect(tc.AddCertificatePairString(string(keyPEM), string(certPEM))).To(Succeed())

		cfg := tc.TlsConfig("example.com")
		Expect(cfg.ServerName).To(Equal("example.com"))
		Expect(cfg.RootCAs).NotTo(BeNil())
		Expect(cfg.Certificates).To(HaveLen(1))
	})

	It("clones independently of the source", func() {
		tc := New()
		Expect(tc.AddCertificatePairString(string(keyPEM), string(certPEM))).To(Succeed())

		clone := tc.Clone()
		tc.CleanCertificatePair()

		Expect(tc.LenCertificatePair()).To(Equal(0))
		Expect(clone.LenCertificatePair()).To(Equal(1))
	})
})
