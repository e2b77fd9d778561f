package state

import (
	"context"

	"github.com/ephroot/takeover/internal/constants"
	internalUtils "github.com/ephroot/takeover/internal/utils"
	"github.com/spectrocloud-labs/herd"
)

// RegisterBuild adds the Image Builder steps. Each one is a hard precondition
// for the next, so every dependency here is strict.
func (s *State) RegisterBuild(g *herd.Graph) error {
	steps := []struct {
		name string
		deps []string
		call func(context.Context) error
	}{
		{constants.OpBootstrapTool, []string{constants.OpGenerateSecret}, func(context.Context) error {
			return s.Builder.EnsureTool(s.Boot)
		}},
		{constants.OpRepositories, []string{constants.OpBootstrapTool}, func(context.Context) error {
			return s.Builder.WriteRepositories()
		}},
		{constants.OpTrustAnchors, []string{constants.OpRepositories}, func(context.Context) error {
			return s.Builder.InstallTrustAnchors(s.Boot)
		}},
		{constants.OpInstallRequired, []string{constants.OpTrustAnchors}, func(context.Context) error {
			internalUtils.Log.Info().Strs("packages", s.Config.Packages()).Msg("Populating staging root")
			return s.Builder.InstallRequired()
		}},
		{constants.OpInstallExtra, []string{constants.OpInstallRequired}, func(context.Context) error {
			return s.Builder.InstallExtra()
		}},
		{constants.OpReleaseFile, []string{constants.OpInstallExtra}, func(context.Context) error {
			return s.Builder.EnsureReleaseFile()
		}},
		{constants.OpHardenImage, []string{constants.OpReleaseFile}, func(context.Context) error {
			return s.Builder.Harden()
		}},
		{constants.OpCustomize, []string{constants.OpHardenImage}, func(context.Context) error {
			return s.Builder.Customize()
		}},
		{constants.OpBuildCleanup, []string{constants.OpCustomize}, func(context.Context) error {
			return s.Builder.Cleanup()
		}},
	}

	for _, step := range steps {
		if err := g.Add(step.name, herd.WithDeps(step.deps...), herd.WithCallback(step.call), herd.FatalOp); err != nil {
			return err
		}
	}
	return nil
}
