package state

import (
	"bytes"
	"os"
	"path/filepath"
	"text/template"

	"github.com/ephroot/takeover/internal/constants"
)

// stubTemplate is the init-replacement program, emitted as data from a static
// template rather than composed by string interpolation. It executes exactly
// once, as PID 1, when the old init re-execs itself into the bind-mounted
// stub. Sequence: re-bind the standard streams to the captured terminal,
// enter the staging root, stop mount propagation back into the original
// namespace, pivot, drop the displaced root, close every descriptor but the
// standard three, then hand off to a shell that erases the stub and execs the
// real init. All tooling comes from the image's static busybox.
const stubTemplate = `#!/bin/sh
exec <{{.Terminal}} >{{.Terminal}} 2>&1
cd {{.StagingRoot}}
./bin/busybox.static mount --make-rprivate /
./bin/busybox.static pivot_root . {{.OldRoot}}
./bin/busybox.static umount -l /{{.OldRoot}} 2>/dev/null
./bin/busybox.static rmdir /{{.OldRoot}} 2>/dev/null
for fd in /proc/self/fd/*; do
	fd=${fd##*/}
	case "$fd" in
	0|1|2) ;;
	*) eval "exec $fd>&-" 2>/dev/null ;;
	esac
done
exec /bin/busybox.static sh -c 'rm -f {{.StubPath}}; exec /sbin/init'
`

type stubParams struct {
	// Terminal is the controlling tty as addressed through the staging tree;
	// the path stays valid on both sides of the pivot because the host's
	// dev/pts is bound into the tree.
	Terminal string
	// StagingRoot is the tree about to become /.
	StagingRoot string
	// OldRoot is where pivot_root parks the displaced original root,
	// relative to the new root.
	OldRoot string
	// StubPath is the stub's own path as seen from the new root.
	StubPath string
}

// RenderStub produces the stub body for the given staging root and terminal.
func RenderStub(stagingRoot, terminal string) ([]byte, error) {
	tpl, err := template.New("stub").Parse(stubTemplate)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	err = tpl.Execute(&buf, stubParams{
		Terminal:    filepath.Join(stagingRoot, terminal),
		StagingRoot: stagingRoot,
		OldRoot:     constants.OldRootDir,
		StubPath:    filepath.Join("/tmp", constants.StubName),
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteStub renders the stub into the staging scratch area, executable, and
// pre-creates the mount point the displaced root will land on.
func WriteStub(stagingRoot, terminal string) (string, error) {
	body, err := RenderStub(stagingRoot, terminal)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Join(stagingRoot, constants.OldRootDir), 0700); err != nil {
		return "", err
	}
	path := filepath.Join(stagingRoot, "tmp", constants.StubName)
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, body, 0755); err != nil {
		return "", err
	}
	return path, nil
}
