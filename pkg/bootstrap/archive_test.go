package bootstrap

import (
	"archive/tar"
	"bytes"
	"compress/gzip"

	"github.com/ephroot/takeover/internal/constants"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// gzipTar builds one gzip stream holding a tar segment. Leading segments of
// a package archive carry no end-of-archive terminator, only the final one
// does, so termination is the caller's choice.
func gzipTar(members map[string]string, terminate bool) []byte {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range members {
		Expect(tw.WriteHeader(&tar.Header{
			Name: name,
			Mode: 0644,
			Size: int64(len(content)),
		})).ToNot(HaveOccurred())
		_, err := tw.Write([]byte(content))
		Expect(err).ToNot(HaveOccurred())
	}
	if terminate {
		Expect(tw.Close()).ToNot(HaveOccurred())
	} else {
		Expect(tw.Flush()).ToNot(HaveOccurred())
	}
	Expect(gz.Close()).ToNot(HaveOccurred())
	return buf.Bytes()
}

var _ = Describe("package archive extraction", func() {
	It("finds a member in the payload stream", func() {
		payload := gzipTar(map[string]string{
			"etc/alpine-release": "3.20.2\n",
		}, true)
		dat, err := extractMemberFromReader(bytes.NewReader(payload), "etc/alpine-release")
		Expect(err).ToNot(HaveOccurred())
		Expect(string(dat)).To(Equal("3.20.2\n"))
	})

	It("normalizes leading ./ in member names", func() {
		payload := gzipTar(map[string]string{
			"./etc/alpine-release": "3.20.2\n",
		}, true)
		dat, err := extractMemberFromReader(bytes.NewReader(payload), "etc/alpine-release")
		Expect(err).ToNot(HaveOccurred())
		Expect(string(dat)).To(Equal("3.20.2\n"))
	})

	It("scans across concatenated streams", func() {
		// Package archives are several gzip streams back to back; the member
		// lives in the last one.
		first := gzipTar(map[string]string{".SIGN.RSA.key": "sig"}, false)
		second := gzipTar(map[string]string{".PKGINFO": "pkgname = alpine-release"}, false)
		third := gzipTar(map[string]string{"etc/alpine-release": "3.20.2\n"}, true)
		payload := append(append(first, second...), third...)

		dat, err := extractMemberFromReader(bytes.NewReader(payload), "etc/alpine-release")
		Expect(err).ToNot(HaveOccurred())
		Expect(string(dat)).To(Equal("3.20.2\n"))
	})

	It("reports a missing member", func() {
		payload := gzipTar(map[string]string{"etc/os-release": "x"}, true)
		_, err := extractMemberFromReader(bytes.NewReader(payload), "etc/alpine-release")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("package set filtering", func() {
	It("strips only the package-manager client", func() {
		in := []string{"alpine-base", constants.PackageManagerPkg, "openssh"}
		Expect(withoutPackageManager(in)).To(Equal([]string{"alpine-base", "openssh"}))
	})
})
