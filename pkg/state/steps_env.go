package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/containerd/containerd/mount"
	"github.com/deniswernert/go-fstab"
	"github.com/ephroot/takeover/internal/constants"
	internalUtils "github.com/ephroot/takeover/internal/utils"
	"github.com/ephroot/takeover/pkg/op"
	"github.com/spectrocloud-labs/herd"
)

// RegisterEnvironment adds the steps that turn the populated image into a
// runnable root: pseudo-filesystems, device tree and the recorded fstab.
func (s *State) RegisterEnvironment(g *herd.Graph) error {
	if err := g.Add(constants.OpPrepareEnv,
		herd.WithDeps(constants.OpBuildCleanup),
		herd.WithCallback(s.prepareEnvironment),
		herd.FatalOp); err != nil {
		return err
	}

	return g.Add(constants.OpWriteFstab,
		herd.WithDeps(constants.OpPrepareEnv),
		herd.WithCallback(s.writeFstab),
		herd.FatalOp)
}

// prepareEnvironment mounts what the new root needs to function once it has
// been pivoted into: /tmp, /proc, /sys and a device tree. Every mount that
// lands here is also recorded for the staged fstab.
func (s *State) prepareEnvironment(_ context.Context) error {
	// The staged tree keeps mtab pointing at the kernel's view, the way
	// every modern distribution ships it.
	mtab := s.path("etc", "mtab")
	_ = os.Remove(mtab)
	if err := os.Symlink("/proc/self/mounts", mtab); err != nil {
		return fmt.Errorf("linking mtab: %w", err)
	}

	if err := internalUtils.CopyFile("/etc/resolv.conf", s.path("etc", "resolv.conf")); err != nil {
		internalUtils.Log.Warn().Err(err).Msg("Could not carry host resolv.conf into the staged root")
	}

	pseudo := []struct {
		fsType  string
		source  string
		target  string
		options []string
	}{
		{"tmpfs", "tmpfs", s.path("tmp"), []string{"mode=1777"}},
		{"proc", "proc", s.path("proc"), nil},
		{"sysfs", "sysfs", s.path("sys"), nil},
	}
	for _, p := range pseudo {
		if err := s.mountPseudo(p.fsType, p.source, p.target, p.options); err != nil {
			return err
		}
	}

	if err := s.mountDeviceTree(); err != nil {
		return err
	}

	// Sharing the host's pts keeps the controlling terminal usable from
	// inside the staged root, before and after the pivot.
	if err := syscall.Mount("/dev/pts", s.path("dev", "pts"), "", syscall.MS_BIND, ""); err != nil {
		return fmt.Errorf("binding /dev/pts: %w", err)
	}
	return nil
}

func (s *State) mountPseudo(fsType, source, target string, options []string) error {
	if err := internalUtils.CreateIfNotExists(target); err != nil {
		return err
	}

	m := mount.Mount{Type: fsType, Source: source, Options: options}
	fstabEntry := internalUtils.MountToFstab(m)
	fstabEntry.File = internalUtils.CleanRootForFstab(s.Config.StagingDir, target)

	mountOp := op.MountOperation{
		FstabEntry:  *fstabEntry,
		MountOption: m,
		Target:      target,
	}
	err := mountOp.Run()
	if errors.Is(err, constants.ErrAlreadyMounted) {
		internalUtils.Log.Debug().Str("where", target).Msg("Pseudo filesystem already in place")
		err = nil
	}
	if err != nil {
		return fmt.Errorf("mounting %s on %s: %w", fsType, target, err)
	}

	s.AddToFstab(fstabEntry)
	return nil
}

// mountDeviceTree prefers a kernel-managed devtmpfs. Some kernels refuse it
// outside the initial namespace, in which case the tree is synthesized on a
// tmpfs from the host's device nodes.
func (s *State) mountDeviceTree() error {
	dev := s.path("dev")
	if err := internalUtils.CreateIfNotExists(dev); err != nil {
		return err
	}

	err := s.mountPseudo("devtmpfs", "devtmpfs", dev, []string{"mode=0755"})
	if err == nil {
		return s.devSubDirs()
	}
	internalUtils.Log.Warn().Err(err).Msg("devtmpfs unavailable, synthesizing device tree")

	if err := s.mountPseudo("tmpfs", "tmpfs", dev, []string{"mode=0755"}); err != nil {
		return err
	}
	if err := internalUtils.CopyDeviceNodes("/dev", dev); err != nil {
		return fmt.Errorf("copying device nodes: %w", err)
	}
	return s.devSubDirs()
}

func (s *State) devSubDirs() error {
	for _, d := range []string{"pts", "shm"} {
		if err := os.MkdirAll(s.path("dev", d), 0755); err != nil {
			return err
		}
	}
	return nil
}

// writeFstab renders the entries accumulated during preparation into the
// staged /etc/fstab.
func (s *State) writeFstab(_ context.Context) error {
	var fstabFile fstab.Mounts
	for _, entry := range s.fstabs {
		fstabFile = append(fstabFile, entry)
	}
	return os.WriteFile(s.path(constants.FstabFile), []byte(fstabFile.String()+"\n"), 0644)
}
