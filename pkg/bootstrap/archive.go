package bootstrap

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// extractMember pulls a single member out of a gzipped tar package archive.
// Nothing else in the archive is touched, which is what lets us lift one file
// out of a package without installing its dependency graph.
func extractMember(archive, member string) ([]byte, error) {
	f, err := os.Open(archive)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return extractMemberFromReader(f, member)
}

func extractMemberFromReader(r io.Reader, member string) ([]byte, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, err
	}
	// Package archives are concatenated gzip streams (signature, control,
	// data); Multistream reads across the boundaries.
	gz.Multistream(true)
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if strings.TrimPrefix(hdr.Name, "./") == member {
			return io.ReadAll(tr)
		}
	}
	return nil, fmt.Errorf("member %s not found in archive", member)
}
