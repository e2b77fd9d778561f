package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ephroot/takeover/internal/constants"
	internalUtils "github.com/ephroot/takeover/internal/utils"
	"github.com/ephroot/takeover/pkg/arch"
	"github.com/ephroot/takeover/pkg/config"
	"github.com/gofrs/uuid"
)

// Builder populates the staging root with a minimal userland. Its methods are
// the Image Builder steps, each a hard precondition for the next; the
// orchestration layer decides ordering, Builder only knows how.
type Builder struct {
	Config config.Config
	Root   string
	Apk    Apk

	toolCleanup      func()
	virtualInstalled bool
}

func NewBuilder(cfg config.Config, root string) *Builder {
	return &Builder{Config: cfg, Root: root, toolCleanup: func() {}}
}

func (b *Builder) path(p ...string) string {
	return filepath.Join(append([]string{b.Root}, p...)...)
}

// EnsureTool resolves the package-manager binary for this build.
func (b *Builder) EnsureTool(boot arch.Bootstrap) error {
	bin, cleanup, err := EnsureTool(boot)
	b.toolCleanup = cleanup
	if err != nil {
		cleanup()
		return err
	}
	b.Apk = Apk{Bin: bin, Root: b.Root}
	return nil
}

// WriteRepositories writes the repository configuration: the caller's file
// verbatim when one is supplied, otherwise exactly two generated lines
// pointing at the resolved mirror and branch.
func (b *Builder) WriteRepositories() error {
	dst := b.path(constants.RepositoriesFile)
	if err := os.MkdirAll(filepath.Dir(dst), os.ModePerm); err != nil {
		return err
	}
	if b.Config.RepositoriesFile != "" {
		return internalUtils.CopyFile(b.Config.RepositoriesFile, dst)
	}
	content := strings.Join(b.Config.RepositoryLines(), "\n") + "\n"
	return os.WriteFile(dst, []byte(content), 0644)
}

// InstallTrustAnchors materializes the signing keys into the image: the
// host's own trust store when it has one, else the embedded per-arch
// fallback. Without these no package fetch is trusted.
func (b *Builder) InstallTrustAnchors(boot arch.Bootstrap) error {
	dst := b.path(constants.KeysDir)

	hostKeys, err := filepath.Glob(filepath.Join(constants.HostKeysDir, "*.pub"))
	if err == nil && len(hostKeys) > 0 {
		if err := os.MkdirAll(dst, os.ModePerm); err != nil {
			return err
		}
		for _, k := range hostKeys {
			if err := internalUtils.CopyFile(k, filepath.Join(dst, filepath.Base(k))); err != nil {
				return err
			}
		}
		internalUtils.Log.Debug().Int("keys", len(hostKeys)).Msg("Copied host trust anchors")
		return nil
	}

	internalUtils.Log.Debug().Msg("No host trust store, using embedded keys")
	return arch.WriteKeys(dst, boot.Keys)
}

// InstallRequired installs the fixed required subset on its own, so its
// success is verified independently of whatever the caller asked for.
func (b *Builder) InstallRequired() error {
	required := constants.RequiredPackages()
	if !b.Config.KeepPackageManager {
		required = withoutPackageManager(required)
	}
	return b.Apk.Add(required...)
}

// InstallExtra installs the caller-supplied additions, if any.
func (b *Builder) InstallExtra() error {
	extra := internalUtils.CleanupSlice(b.Config.ExtraPackages)
	if len(extra) == 0 {
		return nil
	}
	return b.Apk.Add(extra...)
}

// EnsureReleaseFile guarantees the release-identity marker exists in the
// image. When the package set did not provide it, the marker is lifted
// straight out of the release package's archive payload; installing the
// package directly would drag its full dependency graph (a whole service
// manager) into the minimal image.
func (b *Builder) EnsureReleaseFile() error {
	marker := b.path(constants.ReleaseFile)
	if _, err := os.Stat(marker); err == nil {
		return nil
	}
	if b.Apk.Installed(constants.ReleasePackage) {
		return fmt.Errorf("release package installed but %s missing from image", constants.ReleaseFile)
	}

	tmpDir, err := os.MkdirTemp("", "takeover-release-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmpDir)

	archive, err := b.Apk.FetchArchive(constants.ReleasePackage, tmpDir)
	if err != nil {
		return err
	}
	payload, err := extractMember(archive, constants.ReleaseFile)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(marker), os.ModePerm); err != nil {
		return err
	}
	return os.WriteFile(marker, payload, 0644)
}

// Harden locks the root account and provides the runtime-state compatibility
// symlink.
func (b *Builder) Harden() error {
	if err := LockRootPassword(b.Root); err != nil {
		return err
	}
	return RuntimeDirSymlink(b.Root)
}

// Cleanup strips build-only artifacts from the image and releases the
// bootstrap temp dir. The purge policy is keyed off the resolved PackageSet,
// not off re-probing the filesystem: when the package manager is not part of
// the image its binary is stale and non-functional, so its keys and library
// state go with it.
func (b *Builder) Cleanup() error {
	defer b.toolCleanup()

	if b.virtualInstalled {
		if err := b.Apk.Del(constants.VirtualPackage); err != nil {
			return err
		}
		b.virtualInstalled = false
	}
	if err := RemoveManagedResolvConf(b.Root); err != nil {
		return err
	}
	if err := os.RemoveAll(b.path(constants.CacheDir)); err != nil {
		return err
	}
	if !b.Config.KeepPackageManager {
		for _, p := range []string{
			filepath.Join("sbin", constants.PackageManagerBin),
			constants.KeysDir,
			constants.PkgLibDir,
		} {
			if err := os.RemoveAll(b.path(p)); err != nil {
				return err
			}
		}
	}
	return nil
}

func withoutPackageManager(pkgs []string) []string {
	out := []string{}
	for _, p := range pkgs {
		if p == constants.PackageManagerPkg {
			continue
		}
		out = append(out, p)
	}
	return out
}

// LockRootPassword replaces root's password field in the shadow file with the
// locked marker, so the image never boots with a password-less root.
func LockRootPassword(root string) error {
	shadow := filepath.Join(root, "etc", "shadow")
	dat, err := os.ReadFile(shadow)
	if err != nil {
		return err
	}
	lines := strings.Split(string(dat), "\n")
	found := false
	for i, line := range lines {
		fields := strings.Split(line, ":")
		if len(fields) < 2 || fields[0] != "root" {
			continue
		}
		fields[1] = "!"
		lines[i] = strings.Join(fields, ":")
		found = true
		break
	}
	if !found {
		return fmt.Errorf("no root entry in %s", shadow)
	}
	return os.WriteFile(shadow, []byte(strings.Join(lines, "\n")), 0600)
}

// RuntimeDirSymlink provides the var/run compatibility symlink expected by
// software that predates the unified runtime-state directory.
func RuntimeDirSymlink(root string) error {
	varRun := filepath.Join(root, "var", "run")
	if _, err := os.Lstat(varRun); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(varRun), os.ModePerm); err != nil {
		return err
	}
	return os.Symlink("../run", varRun)
}

// WriteResolvBridge installs a DNS-resolution bridge into the tree, marked
// with a unique sentinel so cleanup can tell a managed file from a
// caller-provided one.
func WriteResolvBridge(root string) error {
	id, err := uuid.NewV4()
	if err != nil {
		return err
	}
	var sb strings.Builder
	sb.WriteString(constants.SentinelPrefix + id.String() + "\n")
	if host, err := os.ReadFile("/etc/resolv.conf"); err == nil {
		sb.Write(host)
	} else {
		// No host resolver config; fall back to a public resolver so package
		// fetches inside the chroot still work.
		sb.WriteString("nameserver 1.1.1.1\n")
	}
	dst := filepath.Join(root, "etc", "resolv.conf")
	if err := os.MkdirAll(filepath.Dir(dst), os.ModePerm); err != nil {
		return err
	}
	return os.WriteFile(dst, []byte(sb.String()), 0644)
}

// RemoveManagedResolvConf removes the resolv.conf only when it carries our
// sentinel. A caller-provided file is left alone.
func RemoveManagedResolvConf(root string) error {
	path := filepath.Join(root, "etc", "resolv.conf")
	dat, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if !strings.HasPrefix(string(dat), constants.SentinelPrefix) {
		return nil
	}
	return os.Remove(path)
}
