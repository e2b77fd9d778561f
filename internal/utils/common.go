package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/ephroot/takeover/internal/constants"
)

func CreateIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModePerm)
	}
	return nil
}

// RandomSecret returns a fixed-length alphanumeric secret from the
// cryptographic random stream. An empty result is never returned.
func RandomSecret(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid secret length %d", length)
	}
	alphabet := constants.SecretAlphabet
	var sb strings.Builder
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			return "", err
		}
		sb.WriteByte(alphabet[n.Int64()])
	}
	secret := sb.String()
	if len(secret) != length {
		return "", fmt.Errorf("secret generation produced %d characters, wanted %d", len(secret), length)
	}
	return secret, nil
}

// Sha256File hex-digests the file at path.
func Sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), os.ModePerm); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// CleanupSlice removes empty or whitespace-only entries.
func CleanupSlice(s []string) []string {
	out := []string{}
	for _, v := range s {
		if strings.TrimSpace(v) == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}

// UniqueSlice removes duplicates, keeping first-seen order.
func UniqueSlice(s []string) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, v := range s {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// GetHostProcInit returns the path used to resolve the running init binary.
// Overridable for tests.
func GetHostProcInit() string {
	if p := os.Getenv("TAKEOVER_PROC_INIT"); p != "" {
		return p
	}
	return "/proc/1/exe"
}

// GetHostProcMounts returns the live mounts table path, in mountinfo format.
// Overridable for tests.
func GetHostProcMounts() string {
	if p := os.Getenv("TAKEOVER_PROC_MOUNTS"); p != "" {
		return p
	}
	return "/proc/self/mountinfo"
}
