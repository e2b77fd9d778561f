package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/ephroot/takeover/internal/constants"
	"github.com/ephroot/takeover/internal/utils"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config carries every resolved input of a takeover run. It is built once by
// the CLI layer and passed by value into the stages; nothing is handed off
// through the environment.
type Config struct {
	Branch       string `yaml:"branch"`
	Mirror       string `yaml:"mirror"`
	StagingDir   string `yaml:"staging"`
	MountOptions string `yaml:"mount_options"`
	SSHPort      int    `yaml:"port"`

	// ExtraPackages are appended to the required set, never substituted for it.
	ExtraPackages []string `yaml:"packages"`
	// KeepPackageManager decides whether the package-manager client stays in
	// the final image; it also drives the cleanup purge policy.
	KeepPackageManager bool `yaml:"keep_package_manager"`

	// RepositoriesFile, when set, is copied verbatim instead of generating one.
	RepositoriesFile string `yaml:"repositories_file"`

	// Script is the optional customization step. Isolate selects chroot mode.
	Script  string `yaml:"script"`
	Isolate bool   `yaml:"isolate"`

	Debug  bool `yaml:"debug"`
	DryRun bool `yaml:"-"`
}

// Default returns a Config with every documented default filled in.
func Default() Config {
	return Config{
		Branch:             constants.DefaultBranch,
		Mirror:             constants.DefaultMirror,
		StagingDir:         constants.DefaultStagingDir,
		MountOptions:       constants.DefaultMountOptions,
		SSHPort:            constants.DefaultSSHPort,
		KeepPackageManager: true,
	}
}

// LoadEnvFile overlays defaults from an env file (KEY=value, godotenv format).
func (c *Config) LoadEnvFile(path string) error {
	env, err := godotenv.Read(path)
	if err != nil {
		return err
	}
	if v, ok := env["TAKEOVER_BRANCH"]; ok {
		c.Branch = v
	}
	if v, ok := env["TAKEOVER_MIRROR"]; ok {
		c.Mirror = v
	}
	if v, ok := env["TAKEOVER_STAGING"]; ok {
		c.StagingDir = v
	}
	if v, ok := env["TAKEOVER_MOUNT_OPTIONS"]; ok {
		c.MountOptions = v
	}
	if v, ok := env["TAKEOVER_PACKAGES"]; ok {
		c.ExtraPackages = strings.Fields(v)
	}
	if v, ok := env["TAKEOVER_PORT"]; ok {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err != nil {
			return fmt.Errorf("invalid TAKEOVER_PORT %q: %w", v, err)
		}
		c.SSHPort = port
	}
	return nil
}

// LoadYAML overlays values from a YAML config file.
func (c *Config) LoadYAML(path string) error {
	dat, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(dat, c)
}

// Validate rejects configurations that would fail mid-flight.
func (c Config) Validate() error {
	if c.Branch == "" {
		return fmt.Errorf("empty repository branch")
	}
	if c.Mirror == "" {
		return fmt.Errorf("empty mirror URL")
	}
	if c.StagingDir == "" || !strings.HasPrefix(c.StagingDir, "/") {
		return fmt.Errorf("staging dir must be an absolute path, got %q", c.StagingDir)
	}
	if c.SSHPort <= 0 || c.SSHPort > 65535 {
		return fmt.Errorf("invalid remote-access port %d", c.SSHPort)
	}
	if c.Script != "" {
		if _, err := os.Stat(c.Script); err != nil {
			return fmt.Errorf("customization script: %w", err)
		}
	}
	return nil
}

// Packages resolves the installation set: the required subset first, then the
// caller's additions, duplicates removed. The required subset is always
// present regardless of what the caller asked for.
func (c Config) Packages() []string {
	required := constants.RequiredPackages()
	if !c.KeepPackageManager {
		kept := []string{}
		for _, p := range required {
			if p == constants.PackageManagerPkg {
				continue
			}
			kept = append(kept, p)
		}
		required = kept
	}
	return utils.UniqueSlice(utils.CleanupSlice(append(required, c.ExtraPackages...)))
}

// RepositoryLines are the exact two repository lines written into the image.
func (c Config) RepositoryLines() []string {
	return []string{
		fmt.Sprintf("%s/%s/main", c.Mirror, c.Branch),
		fmt.Sprintf("%s/%s/community", c.Mirror, c.Branch),
	}
}
