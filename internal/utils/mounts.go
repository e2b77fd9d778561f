package utils

import (
	"os"
	"strings"

	"github.com/containerd/containerd/mount"
	"github.com/deniswernert/go-fstab"
	"github.com/moby/sys/mountinfo"
)

// MountToFstab transforms a mount.Mount into an fstab entry for the new root.
func MountToFstab(m mount.Mount) *fstab.Mount {
	opts := map[string]string{}
	for _, o := range m.Options {
		if strings.Contains(o, "=") {
			dat := strings.Split(o, "=")
			key := dat[0]
			value := dat[1]
			opts[key] = value
		} else {
			opts[o] = ""
		}
	}
	if len(opts) == 0 {
		opts["defaults"] = ""
	}
	return &fstab.Mount{
		Spec:    m.Source,
		VfsType: m.Type,
		MntOps:  opts,
		Freq:    0,
		PassNo:  0,
	}
}

// CleanRootForFstab strips the staging prefix so entries address the tree as
// it will be seen once it is the root filesystem.
func CleanRootForFstab(root, path string) string {
	if !strings.HasPrefix(path, root) {
		return path
	}
	cleaned := strings.TrimPrefix(path, root)
	if cleaned == "" {
		cleaned = "/"
	}
	return cleaned
}

func IsMounted(path string) bool {
	points, err := MountsUnder(path)
	if err != nil {
		return false
	}
	for _, p := range points {
		if p == path {
			return true
		}
	}
	return false
}

// MountsUnder lists the mount points at or below the given path, read from
// the mounts table returned by GetHostProcMounts.
func MountsUnder(path string) ([]string, error) {
	f, err := os.Open(GetHostProcMounts())
	if err != nil {
		return nil, err
	}
	defer f.Close()

	infos, err := mountinfo.GetMountsFromReader(f, mountinfo.PrefixFilter(path))
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(infos))
	for _, i := range infos {
		out = append(out, i.Mountpoint)
	}
	return out, nil
}
