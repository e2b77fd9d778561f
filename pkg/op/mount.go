package op

import (
	"github.com/containerd/containerd/mount"
	"github.com/deniswernert/go-fstab"
	"github.com/ephroot/takeover/internal/constants"
	internalUtils "github.com/ephroot/takeover/internal/utils"
	"github.com/moby/sys/mountinfo"
)

// MountOperation pairs the mount to perform with the fstab entry the new root
// will carry for it.
type MountOperation struct {
	FstabEntry      fstab.Mount
	MountOption     mount.Mount
	Target          string
	PrepareCallback func() error
}

func (m MountOperation) Run() error {
	l := internalUtils.Log.With().Str("what", m.MountOption.Source).Str("where", m.Target).Str("type", m.MountOption.Type).Strs("options", m.MountOption.Options).Logger()

	if m.PrepareCallback != nil {
		if err := m.PrepareCallback(); err != nil {
			l.Warn().Err(err).Msg("executing mount callback")
			return err
		}
	}
	mounted, err := mountinfo.Mounted(m.Target)
	if err != nil {
		l.Warn().Err(err).Msg("checking mount status")
		return err
	}
	if mounted {
		l.Debug().Msg("Already mounted")
		return constants.ErrAlreadyMounted
	}
	l.Debug().Msg("mount ready")
	return mount.All([]mount.Mount{m.MountOption}, m.Target)
}
