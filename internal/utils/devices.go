package utils

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// CopyDeviceNodes replicates the top level of an existing device tree into
// dst: character and block nodes via mknod, symlinks as symlinks, plain
// directories as empty directories. Used when the kernel refuses a device
// filesystem mount outside the initial namespace and the tree has to be
// synthesized on a tmpfs instead.
func CopyDeviceNodes(src, dst string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, e := range entries {
		from := filepath.Join(src, e.Name())
		to := filepath.Join(dst, e.Name())

		var st unix.Stat_t
		if err := unix.Lstat(from, &st); err != nil {
			Log.Debug().Err(err).Str("what", from).Msg("Skipping device entry")
			continue
		}

		switch st.Mode & unix.S_IFMT {
		case unix.S_IFCHR, unix.S_IFBLK:
			if err := unix.Mknod(to, st.Mode, int(st.Rdev)); err != nil {
				Log.Debug().Err(err).Str("what", to).Msg("Skipping device node")
			}
		case unix.S_IFLNK:
			target, err := os.Readlink(from)
			if err != nil {
				continue
			}
			if err := os.Symlink(target, to); err != nil {
				Log.Debug().Err(err).Str("what", to).Msg("Skipping device symlink")
			}
		case unix.S_IFDIR:
			if err := os.MkdirAll(to, os.FileMode(st.Mode&0777)); err != nil {
				return err
			}
		}
	}
	return nil
}
