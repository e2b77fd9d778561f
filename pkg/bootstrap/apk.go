package bootstrap

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ephroot/takeover/internal/constants"
	internalUtils "github.com/ephroot/takeover/internal/utils"
)

// Apk is the narrow interface to the package manager. Everything it does goes
// through one binary (the host's own client or the checksum-verified static
// tool) pointed at the staging root.
type Apk struct {
	Bin  string
	Root string
}

func (a Apk) run(args ...string) (string, error) {
	full := append([]string{"--root", a.Root}, args...)
	cmd := exec.Command(a.Bin, full...)
	cmd.Env = os.Environ()
	out, err := cmd.CombinedOutput()
	internalUtils.Log.Debug().Str("cmd", a.Bin+" "+strings.Join(full, " ")).Str("out", string(out)).Msg("apk")
	if err != nil {
		return string(out), fmt.Errorf("%s %s: %w: %s", a.Bin, strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// Add installs packages, initializing the package database on first use.
func (a Apk) Add(pkgs ...string) error {
	args := []string{"add"}
	if _, err := os.Stat(filepath.Join(a.Root, constants.PkgLibDir, "db")); os.IsNotExist(err) {
		args = append(args, "--initdb")
	}
	_, err := a.run(append(args, pkgs...)...)
	return err
}

// AddVirtual installs pkgs grouped under a throwaway virtual package, so one
// Del call can remove the whole set later.
func (a Apk) AddVirtual(name string, pkgs ...string) error {
	_, err := a.run(append([]string{"add", "--virtual", name}, pkgs...)...)
	return err
}

// Del removes a package (or virtual package) and everything only it pulled in.
func (a Apk) Del(name string) error {
	_, err := a.run("del", name)
	return err
}

// Installed probes the package database for an installed package.
func (a Apk) Installed(pkg string) bool {
	_, err := a.run("info", "-e", pkg)
	return err == nil
}

// FetchArchive downloads a single package archive into dir without installing
// anything, and returns the archive path.
func (a Apk) FetchArchive(pkg, dir string) (string, error) {
	if _, err := a.run("fetch", "--output", dir, pkg); err != nil {
		return "", err
	}
	matches, err := filepath.Glob(filepath.Join(dir, pkg+"-*.apk"))
	if err != nil || len(matches) == 0 {
		return "", fmt.Errorf("fetched archive for %s not found in %s", pkg, dir)
	}
	return matches[0], nil
}
