package utils_test

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"github.com/containerd/containerd/mount"
	"github.com/ephroot/takeover/internal/constants"
	"github.com/ephroot/takeover/internal/utils"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/twpayne/go-vfs/v4/vfst"
)

var _ = Describe("common utils", func() {
	Context("RandomSecret", func() {
		It("produces the requested length from the allowed alphabet", func() {
			secret, err := utils.RandomSecret(constants.SecretLength)
			Expect(err).ToNot(HaveOccurred())
			Expect(secret).To(HaveLen(constants.SecretLength))
			for _, c := range secret {
				Expect(strings.ContainsRune(constants.SecretAlphabet, c)).To(BeTrue())
			}
		})
		It("rejects non-positive lengths", func() {
			_, err := utils.RandomSecret(0)
			Expect(err).To(HaveOccurred())
			_, err = utils.RandomSecret(-5)
			Expect(err).To(HaveOccurred())
		})
		It("does not repeat itself", func() {
			a, err := utils.RandomSecret(constants.SecretLength)
			Expect(err).ToNot(HaveOccurred())
			b, err := utils.RandomSecret(constants.SecretLength)
			Expect(err).ToNot(HaveOccurred())
			Expect(a).ToNot(Equal(b))
		})
	})

	Context("UniqueSlice", func() {
		It("removes duplicates keeping first-seen order", func() {
			Expect(utils.UniqueSlice([]string{"a", "b", "a", "c", "b"})).To(Equal([]string{"a", "b", "c"}))
		})
	})

	Context("CleanupSlice", func() {
		It("drops empty and whitespace-only entries", func() {
			Expect(utils.CleanupSlice([]string{"size=50%", "", "  ", "mode=0755"})).To(Equal([]string{"size=50%", "mode=0755"}))
		})
	})

	Context("Sha256File", func() {
		It("matches an independently computed digest", func() {
			fs, cleanup, err := vfst.NewTestFS(map[string]interface{}{
				"/payload": "static tool payload",
			})
			Expect(err).ToNot(HaveOccurred())
			defer cleanup()

			path := filepath.Join(fs.TempDir(), "payload")

			sum := sha256.Sum256([]byte("static tool payload"))
			got, err := utils.Sha256File(path)
			Expect(err).ToNot(HaveOccurred())
			Expect(got).To(Equal(hex.EncodeToString(sum[:])))
		})
	})

	Context("CopyFile", func() {
		It("copies content and creates missing parent directories", func() {
			fs, cleanup, err := vfst.NewTestFS(map[string]interface{}{
				"/resolv.conf": "nameserver 1.1.1.1\n",
			})
			Expect(err).ToNot(HaveOccurred())
			defer cleanup()

			src := filepath.Join(fs.TempDir(), "resolv.conf")
			dst := filepath.Join(fs.TempDir(), "staging", "etc", "resolv.conf")
			Expect(utils.CopyFile(src, dst)).ToNot(HaveOccurred())

			dat, err := os.ReadFile(dst)
			Expect(err).ToNot(HaveOccurred())
			Expect(string(dat)).To(Equal("nameserver 1.1.1.1\n"))
		})
	})

	Context("host proc paths", func() {
		It("honors the init override", func() {
			Expect(os.Setenv("TAKEOVER_PROC_INIT", "/tmp/fake-init")).ToNot(HaveOccurred())
			defer os.Unsetenv("TAKEOVER_PROC_INIT")
			Expect(utils.GetHostProcInit()).To(Equal("/tmp/fake-init"))
		})
		It("defaults to pid 1", func() {
			Expect(os.Unsetenv("TAKEOVER_PROC_INIT")).ToNot(HaveOccurred())
			Expect(utils.GetHostProcInit()).To(Equal("/proc/1/exe"))
		})
		It("defaults to the kernel mountinfo table", func() {
			Expect(os.Unsetenv("TAKEOVER_PROC_MOUNTS")).ToNot(HaveOccurred())
			Expect(utils.GetHostProcMounts()).To(Equal("/proc/self/mountinfo"))
		})
	})

	Context("mount table queries", func() {
		var fs *vfst.TestFS
		var cleanup func()

		BeforeEach(func() {
			var err error
			fs, cleanup, err = vfst.NewTestFS(map[string]interface{}{
				"/mountinfo": "22 1 0:5 / / rw - ext4 /dev/sda1 rw\n" +
					"40 22 0:38 / /takeover rw - tmpfs tmpfs rw\n" +
					"41 40 0:39 / /takeover/proc rw - proc proc rw\n" +
					"42 40 0:40 / /takeover/dev rw - devtmpfs devtmpfs rw\n",
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(os.Setenv("TAKEOVER_PROC_MOUNTS", filepath.Join(fs.TempDir(), "mountinfo"))).ToNot(HaveOccurred())
		})
		AfterEach(func() {
			os.Unsetenv("TAKEOVER_PROC_MOUNTS")
			cleanup()
		})

		It("lists the mount points at or below a path", func() {
			points, err := utils.MountsUnder("/takeover")
			Expect(err).ToNot(HaveOccurred())
			Expect(points).To(ConsistOf("/takeover", "/takeover/proc", "/takeover/dev"))
		})

		It("reports mounted paths from the overridden table", func() {
			Expect(utils.IsMounted("/takeover")).To(BeTrue())
			Expect(utils.IsMounted("/takeover/proc")).To(BeTrue())
			Expect(utils.IsMounted("/staging")).To(BeFalse())
		})
	})
})

var _ = Describe("mount utils", func() {
	Context("MountToFstab", func() {
		It("carries source, type and options", func() {
			m := mount.Mount{Type: "tmpfs", Source: "tmpfs", Options: []string{"mode=1777", "nosuid"}}
			entry := utils.MountToFstab(m)
			Expect(entry.Spec).To(Equal("tmpfs"))
			Expect(entry.VfsType).To(Equal("tmpfs"))
			Expect(entry.MntOps).To(HaveKeyWithValue("mode", "1777"))
			Expect(entry.MntOps).To(HaveKey("nosuid"))
		})
		It("falls back to defaults when there are no options", func() {
			entry := utils.MountToFstab(mount.Mount{Type: "proc", Source: "proc"})
			Expect(entry.MntOps).To(HaveKey("defaults"))
		})
	})

	Context("CleanRootForFstab", func() {
		It("strips the staging prefix", func() {
			Expect(utils.CleanRootForFstab("/takeover", "/takeover/proc")).To(Equal("/proc"))
		})
		It("maps the staging root itself onto /", func() {
			Expect(utils.CleanRootForFstab("/takeover", "/takeover")).To(Equal("/"))
		})
		It("leaves unrelated paths alone", func() {
			Expect(utils.CleanRootForFstab("/takeover", "/mnt/data")).To(Equal("/mnt/data"))
		})
	})
})
