package bootstrap

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/ephroot/takeover/internal/constants"
	internalUtils "github.com/ephroot/takeover/internal/utils"
)

// Customize runs the operator-supplied customization step, if one is
// configured. Simple mode hands the script the staging path through ROOTFS;
// isolated mode runs it inside a chroot of the staging root with the script's
// directory bound at a fixed mount point. Any script failure aborts the whole
// takeover.
func (b *Builder) Customize() error {
	if b.Config.Script == "" {
		return nil
	}
	script, err := filepath.Abs(b.Config.Script)
	if err != nil {
		return err
	}
	if b.Config.Isolate {
		return b.customizeIsolated(script)
	}
	return b.customizeSimple(script)
}

func (b *Builder) customizeSimple(script string) error {
	cmd := exec.Command(script)
	cmd.Dir = b.Root
	cmd.Env = append(os.Environ(), "ROOTFS="+b.Root)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	internalUtils.Log.Info().Str("script", script).Msg("Running customization step")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("customization script failed: %w", err)
	}
	return nil
}

// customizeIsolated executes the script inside the staging root. The chroot
// gets the script's directory bound at the fixed mount point, a transient
// virtual package pulling in a usable package-manager client, and a
// sentinel-marked DNS bridge; the mounts are reversed afterwards, the virtual
// package and bridge are removed by Cleanup.
func (b *Builder) customizeIsolated(script string) error {
	scriptDir := filepath.Dir(script)
	inner := filepath.Join(constants.ChrootScriptMount, filepath.Base(script))

	if err := b.Apk.AddVirtual(constants.VirtualPackage, constants.PackageManagerPkg); err != nil {
		return err
	}
	b.virtualInstalled = true

	if err := WriteResolvBridge(b.Root); err != nil {
		return err
	}

	chroot := internalUtils.NewChroot(b.Root).WithBind(scriptDir, constants.ChrootScriptMount)
	internalUtils.Log.Info().Str("script", script).Str("mount", constants.ChrootScriptMount).Msg("Running customization step in chroot")
	out, err := chroot.Run(inner)
	if out != "" {
		internalUtils.Log.Debug().Str("out", out).Msg("customization output")
	}
	if err != nil {
		return fmt.Errorf("customization script failed: %w", err)
	}
	return nil
}
