package bootstrap

import (
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/cavaliergopher/grab/v3"
	"github.com/ephroot/takeover/internal/constants"
	internalUtils "github.com/ephroot/takeover/internal/utils"
	"github.com/ephroot/takeover/pkg/arch"
)

// fetchTool obtains the static-tool archive for verification. Swappable so
// the digest check can be exercised without a network.
var fetchTool = download

// EnsureTool makes a package-manager binary available for populating the
// staging root. The host's own client wins when present; otherwise the static
// tool for the detected architecture is acquired.
func EnsureTool(b arch.Bootstrap) (bin string, cleanup func(), err error) {
	if hostBin, err := exec.LookPath(constants.PackageManagerBin); err == nil {
		internalUtils.Log.Debug().Str("bin", hostBin).Msg("Using host package manager")
		return hostBin, func() {}, nil
	}
	return ensureStaticTool(b)
}

// ensureStaticTool downloads the static tool into a temp dir and checks its
// digest against the pinned value before the payload is ever extracted or
// executed. The returned cleanup removes the temp dir, on success and failure
// alike.
func ensureStaticTool(b arch.Bootstrap) (bin string, cleanup func(), err error) {
	cleanup = func() {}

	tmpDir, err := os.MkdirTemp("", "takeover-bootstrap-")
	if err != nil {
		return "", cleanup, err
	}
	cleanup = func() { _ = os.RemoveAll(tmpDir) }

	archivePath, err := fetchTool(b.ToolURL, tmpDir)
	if err != nil {
		return "", cleanup, fmt.Errorf("downloading bootstrap tool: %w", err)
	}

	digest, err := internalUtils.Sha256File(archivePath)
	if err != nil {
		return "", cleanup, err
	}
	if digest != b.Checksum {
		return "", cleanup, fmt.Errorf("bootstrap tool checksum mismatch: got %s, want %s", digest, b.Checksum)
	}

	payload, err := extractMember(archivePath, "sbin/"+constants.StaticToolName)
	if err != nil {
		return "", cleanup, err
	}
	bin = filepath.Join(tmpDir, constants.StaticToolName)
	if err := os.WriteFile(bin, payload, 0755); err != nil {
		return "", cleanup, err
	}
	internalUtils.Log.Debug().Str("bin", bin).Msg("Static package manager verified")
	return bin, cleanup, nil
}

func download(url, dir string) (string, error) {
	client := grab.NewClient()
	client.HTTPClient = &http.Client{Timeout: constants.DownloadTimeoutSeconds * time.Second}

	req, err := grab.NewRequest(dir, url)
	if err != nil {
		return "", err
	}
	resp := client.Do(req)
	if err := resp.Err(); err != nil {
		return "", err
	}
	return resp.Filename, nil
}
