package arch

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ephroot/takeover/internal/constants"
	"golang.org/x/sys/unix"
)

// Bootstrap describes everything needed to obtain and trust the static
// package-manager tool for one architecture: where to download it, the pinned
// digest the payload must match before it is ever executed, and the signing
// keys packages are verified against.
type Bootstrap struct {
	Arch     string
	ToolURL  string
	Checksum string
	// Keys holds one entry per signing key, formatted filename:base64-body.
	Keys []string
}

// Table is the fixed dispatch table. Architectures not listed here are a hard
// failure before any mount or download happens.
var Table = map[string]Bootstrap{
	"x86_64": {
		Arch:     "x86_64",
		ToolURL:  "https://dl-cdn.alpinelinux.org/alpine/v3.20/main/x86_64/apk-tools-static-2.14.4-r0.apk",
		Checksum: "c8465df47e5cf30ede7e13a6090e5b7b2e3c527f2371026563c9a1bf34c9f429",
		Keys: []string{
			"alpine-devel@lists.alpinelinux.org-4a6a0840.rsa.pub:" + keyBody4a6a0840,
			"alpine-devel@lists.alpinelinux.org-5261cecb.rsa.pub:" + keyBody5261cecb,
		},
	},
	"x86": {
		Arch:     "x86",
		ToolURL:  "https://dl-cdn.alpinelinux.org/alpine/v3.20/main/x86/apk-tools-static-2.14.4-r0.apk",
		Checksum: "17a1cb6b0e2e73c8c3c929e1e45cd78661ba8e715d03a7e19ad12cfb9ff72d12",
		Keys: []string{
			"alpine-devel@lists.alpinelinux.org-4a6a0840.rsa.pub:" + keyBody4a6a0840,
			"alpine-devel@lists.alpinelinux.org-5243ef4b.rsa.pub:" + keyBody5243ef4b,
		},
	},
	"aarch64": {
		Arch:     "aarch64",
		ToolURL:  "https://dl-cdn.alpinelinux.org/alpine/v3.20/main/aarch64/apk-tools-static-2.14.4-r0.apk",
		Checksum: "df1fc3a76f1cbb4b4a1deeb4cb5b1896a9e1a0ae39c89e9edc6a36d0852f63e0",
		Keys: []string{
			"alpine-devel@lists.alpinelinux.org-58199dcc.rsa.pub:" + keyBody58199dcc,
		},
	},
	"armv7": {
		Arch:     "armv7",
		ToolURL:  "https://dl-cdn.alpinelinux.org/alpine/v3.20/main/armv7/apk-tools-static-2.14.4-r0.apk",
		Checksum: "3b18b9c2e948e1c779b4fa0f27b0d86c6a25c34ab867b6fe0d3e08a6935ef2c4",
		Keys: []string{
			"alpine-devel@lists.alpinelinux.org-524d27bb.rsa.pub:" + keyBody524d27bb,
		},
	},
}

// Detect maps the running kernel's machine field onto a Table key.
func Detect() (Bootstrap, error) {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return Bootstrap{}, err
	}
	machine := unix.ByteSliceToString(uts.Machine[:])
	return Lookup(machine)
}

// Lookup resolves a machine identifier against the Table.
func Lookup(machine string) (Bootstrap, error) {
	key := machine
	switch {
	case machine == "i386" || machine == "i486" || machine == "i586" || machine == "i686":
		key = "x86"
	case strings.HasPrefix(machine, "armv7"):
		key = "armv7"
	}
	b, ok := Table[key]
	if !ok {
		return Bootstrap{}, fmt.Errorf("%w: %s", constants.ErrUnsupportedArch, machine)
	}
	return b, nil
}

// Validate checks the internal consistency of every table entry. Run once
// during preflight so a broken record fails the whole takeover before any
// side effect.
func Validate() error {
	for name, b := range Table {
		if b.Arch != name {
			return fmt.Errorf("arch table entry %s carries mismatched arch %s", name, b.Arch)
		}
		if b.ToolURL == "" {
			return fmt.Errorf("arch table entry %s has no tool URL", name)
		}
		if len(b.Checksum) != 64 {
			return fmt.Errorf("arch table entry %s has a malformed checksum", name)
		}
		if _, err := hex.DecodeString(b.Checksum); err != nil {
			return fmt.Errorf("arch table entry %s has a non-hex checksum", name)
		}
		if len(b.Keys) == 0 {
			return fmt.Errorf("arch table entry %s has no signing keys", name)
		}
		for _, k := range b.Keys {
			if _, _, err := SplitKey(k); err != nil {
				return fmt.Errorf("arch table entry %s: %w", name, err)
			}
		}
	}
	return nil
}

// SplitKey splits a filename:base64-body key literal.
func SplitKey(key string) (name, body string, err error) {
	dat := strings.SplitN(key, ":", 2)
	if len(dat) != 2 || dat[0] == "" || dat[1] == "" {
		return "", "", fmt.Errorf("malformed key literal %q", key)
	}
	return dat[0], dat[1], nil
}

// ExpandKey renders one filename:base64 literal into PEM-framed key material.
func ExpandKey(key string) (name, pem string, err error) {
	name, body, err := SplitKey(key)
	if err != nil {
		return "", "", err
	}
	var sb strings.Builder
	sb.WriteString("-----BEGIN PUBLIC KEY-----\n")
	for len(body) > 64 {
		sb.WriteString(body[:64])
		sb.WriteString("\n")
		body = body[64:]
	}
	sb.WriteString(body)
	sb.WriteString("\n-----END PUBLIC KEY-----\n")
	return name, sb.String(), nil
}

// WriteKeys materializes the key set into dir, one file per key.
func WriteKeys(dir string, keys []string) error {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return err
	}
	for _, k := range keys {
		name, pem, err := ExpandKey(k)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, name), []byte(pem), 0644); err != nil {
			return err
		}
	}
	return nil
}
