package arch_test

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/ephroot/takeover/internal/constants"
	"github.com/ephroot/takeover/pkg/arch"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("architecture table", func() {
	Context("Validate", func() {
		It("accepts the shipped table", func() {
			Expect(arch.Validate()).ToNot(HaveOccurred())
		})
	})

	Context("Lookup", func() {
		It("resolves exact table keys", func() {
			b, err := arch.Lookup("x86_64")
			Expect(err).ToNot(HaveOccurred())
			Expect(b.Arch).To(Equal("x86_64"))
			Expect(b.ToolURL).To(ContainSubstring("/x86_64/"))
		})
		It("folds 32-bit intel identifiers onto x86", func() {
			for _, machine := range []string{"i386", "i486", "i586", "i686"} {
				b, err := arch.Lookup(machine)
				Expect(err).ToNot(HaveOccurred())
				Expect(b.Arch).To(Equal("x86"))
			}
		})
		It("folds armv7 variants onto armv7", func() {
			b, err := arch.Lookup("armv7l")
			Expect(err).ToNot(HaveOccurred())
			Expect(b.Arch).To(Equal("armv7"))
		})
		It("rejects unknown machines with the sentinel error", func() {
			_, err := arch.Lookup("riscv64")
			Expect(err).To(HaveOccurred())
			Expect(err).To(MatchError(constants.ErrUnsupportedArch))
			Expect(err.Error()).To(ContainSubstring("riscv64"))
		})
	})

	Context("key literals", func() {
		It("splits filename and body", func() {
			name, body, err := arch.SplitKey("some-key.rsa.pub:QUJD")
			Expect(err).ToNot(HaveOccurred())
			Expect(name).To(Equal("some-key.rsa.pub"))
			Expect(body).To(Equal("QUJD"))
		})
		It("rejects literals without a body", func() {
			_, _, err := arch.SplitKey("some-key.rsa.pub:")
			Expect(err).To(HaveOccurred())
			_, _, err = arch.SplitKey("no-separator")
			Expect(err).To(HaveOccurred())
		})
		It("frames the body as PEM wrapped at 64 columns", func() {
			body := strings.Repeat("A", 100)
			name, pem, err := arch.ExpandKey("key.rsa.pub:" + body)
			Expect(err).ToNot(HaveOccurred())
			Expect(name).To(Equal("key.rsa.pub"))

			lines := strings.Split(strings.TrimSuffix(pem, "\n"), "\n")
			Expect(lines[0]).To(Equal("-----BEGIN PUBLIC KEY-----"))
			Expect(lines[len(lines)-1]).To(Equal("-----END PUBLIC KEY-----"))
			Expect(lines[1]).To(HaveLen(64))
			Expect(lines[2]).To(HaveLen(36))
		})
	})

	Context("WriteKeys", func() {
		It("materializes one file per key", func() {
			dir, err := os.MkdirTemp("", "arch-keys")
			Expect(err).ToNot(HaveOccurred())
			defer os.RemoveAll(dir)

			b, err := arch.Lookup("aarch64")
			Expect(err).ToNot(HaveOccurred())
			Expect(arch.WriteKeys(dir, b.Keys)).ToNot(HaveOccurred())

			name, _, err := arch.SplitKey(b.Keys[0])
			Expect(err).ToNot(HaveOccurred())
			dat, err := os.ReadFile(filepath.Join(dir, name))
			Expect(err).ToNot(HaveOccurred())
			Expect(string(dat)).To(HavePrefix("-----BEGIN PUBLIC KEY-----\n"))
			Expect(string(dat)).To(HaveSuffix("-----END PUBLIC KEY-----\n"))
		})
	})
})
