package config_test

import (
	"os"
	"path/filepath"

	"github.com/ephroot/takeover/internal/constants"
	"github.com/ephroot/takeover/pkg/config"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("configuration", func() {
	Context("Default", func() {
		It("fills every documented default", func() {
			cfg := config.Default()
			Expect(cfg.Branch).To(Equal(constants.DefaultBranch))
			Expect(cfg.Mirror).To(Equal(constants.DefaultMirror))
			Expect(cfg.StagingDir).To(Equal(constants.DefaultStagingDir))
			Expect(cfg.MountOptions).To(Equal(constants.DefaultMountOptions))
			Expect(cfg.SSHPort).To(Equal(constants.DefaultSSHPort))
			Expect(cfg.KeepPackageManager).To(BeTrue())
			Expect(cfg.Validate()).ToNot(HaveOccurred())
		})
	})

	Context("Packages", func() {
		It("always contains the required set", func() {
			cfg := config.Default()
			for _, p := range constants.RequiredPackages() {
				Expect(cfg.Packages()).To(ContainElement(p))
			}
		})
		It("appends extras without duplicating required packages", func() {
			cfg := config.Default()
			cfg.ExtraPackages = []string{"vim", "openssh", "vim"}
			pkgs := cfg.Packages()
			Expect(pkgs).To(ContainElement("vim"))

			count := 0
			for _, p := range pkgs {
				if p == "openssh" {
					count++
				}
			}
			Expect(count).To(Equal(1))
		})
		It("drops the package-manager client when it is not kept", func() {
			cfg := config.Default()
			cfg.KeepPackageManager = false
			Expect(cfg.Packages()).ToNot(ContainElement(constants.PackageManagerPkg))
		})
		It("ignores empty entries from the caller", func() {
			cfg := config.Default()
			cfg.ExtraPackages = []string{"", "  ", "htop"}
			Expect(cfg.Packages()).To(ContainElement("htop"))
			Expect(cfg.Packages()).ToNot(ContainElement(""))
		})
	})

	Context("RepositoryLines", func() {
		It("produces exactly the main and community lines", func() {
			cfg := config.Default()
			cfg.Mirror = "https://mirror.example.org/alpine"
			cfg.Branch = "v3.19"
			Expect(cfg.RepositoryLines()).To(Equal([]string{
				"https://mirror.example.org/alpine/v3.19/main",
				"https://mirror.example.org/alpine/v3.19/community",
			}))
		})
	})

	Context("Validate", func() {
		It("rejects a relative staging path", func() {
			cfg := config.Default()
			cfg.StagingDir = "takeover"
			Expect(cfg.Validate()).To(HaveOccurred())
		})
		It("rejects out-of-range ports", func() {
			cfg := config.Default()
			cfg.SSHPort = 0
			Expect(cfg.Validate()).To(HaveOccurred())
			cfg.SSHPort = 70000
			Expect(cfg.Validate()).To(HaveOccurred())
		})
		It("rejects a missing customization script", func() {
			cfg := config.Default()
			cfg.Script = "/nonexistent/customize.sh"
			Expect(cfg.Validate()).To(HaveOccurred())
		})
	})

	Context("LoadEnvFile", func() {
		It("overlays values from the file", func() {
			dir, err := os.MkdirTemp("", "takeover-config")
			Expect(err).ToNot(HaveOccurred())
			defer os.RemoveAll(dir)

			envFile := filepath.Join(dir, "takeover.env")
			err = os.WriteFile(envFile, []byte(
				"TAKEOVER_BRANCH=v3.19\nTAKEOVER_PORT=2022\nTAKEOVER_PACKAGES=\"htop strace\"\n"), os.ModePerm)
			Expect(err).ToNot(HaveOccurred())

			cfg := config.Default()
			Expect(cfg.LoadEnvFile(envFile)).ToNot(HaveOccurred())
			Expect(cfg.Branch).To(Equal("v3.19"))
			Expect(cfg.SSHPort).To(Equal(2022))
			Expect(cfg.ExtraPackages).To(Equal([]string{"htop", "strace"}))
			// Untouched keys keep their defaults.
			Expect(cfg.Mirror).To(Equal(constants.DefaultMirror))
		})
		It("rejects a non-numeric port", func() {
			dir, err := os.MkdirTemp("", "takeover-config")
			Expect(err).ToNot(HaveOccurred())
			defer os.RemoveAll(dir)

			envFile := filepath.Join(dir, "takeover.env")
			err = os.WriteFile(envFile, []byte("TAKEOVER_PORT=not-a-port\n"), os.ModePerm)
			Expect(err).ToNot(HaveOccurred())

			cfg := config.Default()
			Expect(cfg.LoadEnvFile(envFile)).To(HaveOccurred())
		})
	})

	Context("LoadYAML", func() {
		It("overlays values from the file", func() {
			dir, err := os.MkdirTemp("", "takeover-config")
			Expect(err).ToNot(HaveOccurred())
			defer os.RemoveAll(dir)

			yamlFile := filepath.Join(dir, "takeover.yaml")
			err = os.WriteFile(yamlFile, []byte(
				"branch: v3.18\nport: 2200\npackages:\n  - curl\nkeep_package_manager: false\n"), os.ModePerm)
			Expect(err).ToNot(HaveOccurred())

			cfg := config.Default()
			Expect(cfg.LoadYAML(yamlFile)).ToNot(HaveOccurred())
			Expect(cfg.Branch).To(Equal("v3.18"))
			Expect(cfg.SSHPort).To(Equal(2200))
			Expect(cfg.ExtraPackages).To(Equal([]string{"curl"}))
			Expect(cfg.KeepPackageManager).To(BeFalse())
		})
	})
})
