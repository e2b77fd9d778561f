package state

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/containerd/containerd/mount"
	"github.com/ephroot/takeover/internal/constants"
	internalUtils "github.com/ephroot/takeover/internal/utils"
	"github.com/ephroot/takeover/pkg/arch"
	"github.com/ephroot/takeover/pkg/op"
	"github.com/spectrocloud-labs/herd"
)

// RegisterOrchestration adds the precondition checks, the staging mount with
// its rollback guard, and the session-secret generation.
func (s *State) RegisterOrchestration(g *herd.Graph) error {
	var err error

	err = g.Add(constants.OpPreflight, herd.WithCallback(s.preflight), herd.FatalOp)
	if err != nil {
		return err
	}

	err = g.Add(constants.OpMountStaging,
		herd.WithDeps(constants.OpPreflight),
		herd.WithCallback(s.mountStaging),
		herd.FatalOp)
	if err != nil {
		return err
	}

	return g.Add(constants.OpGenerateSecret,
		herd.WithDeps(constants.OpMountStaging),
		herd.WithCallback(s.generateSecret),
		herd.FatalOp)
}

// preflight fails fast, before any mutation: privilege, required host tools,
// architecture support, and a conflicting staging path are all checked here.
func (s *State) preflight(_ context.Context) error {
	if os.Geteuid() != 0 {
		return fmt.Errorf("takeover needs root privileges, running as uid %d", os.Geteuid())
	}

	for _, tool := range constants.RequiredTools() {
		if _, err := exec.LookPath(tool); err != nil {
			return fmt.Errorf("required tool %q not found on host", tool)
		}
	}

	if err := arch.Validate(); err != nil {
		return err
	}
	boot, err := arch.Detect()
	if err != nil {
		return err
	}
	s.Boot = boot
	internalUtils.Log.Info().Str("arch", boot.Arch).Msg("Architecture supported")

	if internalUtils.IsMounted(s.Config.StagingDir) {
		return fmt.Errorf("staging path %s already carries a mount", s.Config.StagingDir)
	}
	return nil
}

// mountStaging creates the memory-backed staging root and arms the rollback
// guard. From here until commit, any failure or termination signal unmounts
// and removes the tree.
func (s *State) mountStaging(_ context.Context) error {
	staging := s.Config.StagingDir
	if err := internalUtils.CreateIfNotExists(staging); err != nil {
		return err
	}

	mountOp := op.MountOperation{
		MountOption: mount.Mount{
			Type:    "tmpfs",
			Source:  "tmpfs",
			Options: internalUtils.CleanupSlice(strings.Split(s.Config.MountOptions, ",")),
		},
		Target: staging,
	}
	if err := mountOp.Run(); err != nil {
		return err
	}
	internalUtils.Log.Info().Str("where", staging).Str("options", s.Config.MountOptions).Msg("Staging root mounted")

	s.Guard = op.NewCleanupGuard(func() {
		internalUtils.Log.Info().Str("what", staging).Msg("Rolling back staging root")
		if err := op.RecursiveUnmount(staging); err != nil {
			internalUtils.Log.Err(err).Msg("Rollback incomplete")
		}
	})
	s.Guard.Arm()
	return nil
}

// generateSecret produces the session credential. A short or empty secret is
// fatal: the remote-access session after the pivot depends on it.
func (s *State) generateSecret(_ context.Context) error {
	secret, err := internalUtils.RandomSecret(constants.SecretLength)
	if err != nil {
		return fmt.Errorf("generating session secret: %w", err)
	}
	s.Secret = secret
	return nil
}
