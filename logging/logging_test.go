package logging_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/jwsung91/unilink-go/logging"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestLogging(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Logging Suite")
}

var _ = Describe("Level", func() {
	It("parses case-insensitively and falls back to info", func() {
		Expect(ParseLevel("DEBUG")).To(Equal(DebugLevel))
		Expect(ParseLevel("warning")).To(Equal(WarnLevel))
		Expect(ParseLevel("nonsense")).To(Equal(InfoLevel))
	})
})

var _ = Describe("Logger", func() {
	It("writes entries to a rotating file sink and rotates past the size limit", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "unilink.log")

		lg, err := New(Config{
			Level: DebugLevel,
			File: &FileOptions{
				FilePath: path,
				Create:   true,
				Rotation: RotationConfig{MaxFileSizeBytes: 64, MaxFiles: 2},
			},
		})
		Expect(err).NotTo(HaveOccurred())
		defer lg.Close()

		for i := 0; i < 20; i++ {
			lg.Info("a reasonably sized log line to force rotation", nil)
		}

		Expect(lg.Close()).To(Succeed())

		entries, err := os.ReadDir(dir)
		Expect(err).NotTo(HaveOccurred())

		var rotated int
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), "unilink.") && strings.HasSuffix(e.Name(), ".log") && e.Name() != "unilink.log" {
				rotated++
			}
		}
		Expect(rotated).To(BeNumerically(">", 0))
		Expect(rotated).To(BeNumerically("<=", 2))
	})

	It("tracks level and fields", func() {
		lg, err := New(Config{Level: WarnLevel})
		Expect(err).NotTo(HaveOccurred())
		defer lg.Close()

		Expect(lg.GetLevel()).To(Equal(WarnLevel))

		lg.SetFields(Fields{"component": "tcpclient"})
		Expect(lg.GetFields()).To(HaveKeyWithValue("component", "tcpclient"))

		clone := lg.Clone()
		clone.SetFields(clone.GetFields().Add("session", 1))
		Expect(lg.GetFields()).NotTo(HaveKey("session"))
	})

	It("exposes an hclog.Logger bridge that does not panic", func() {
		lg, err := New(Config{Level: DebugLevel})
		Expect(err).NotTo(HaveOccurred())
		defer lg.Close()

		hl := lg.HCLog()
		Expect(func() {
			hl.Info("probe opened", "device", "/dev/ttyUSB0")
			hl.Named("serial").Debug("reopen scheduled")
		}).NotTo(Panic())
	})
})
