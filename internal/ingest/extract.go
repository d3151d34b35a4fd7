package ingest

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// extractArchive unpacks the zip at archivePath into scratchDir and returns
// the extracted file paths. Directory entries are skipped; member names that
// would escape the scratch directory are rejected.
func extractArchive(archivePath, scratchDir string) ([]string, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()

	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}

	var extracted []string
	for _, member := range zr.File {
		if member.FileInfo().IsDir() {
			continue
		}
		target := filepath.Join(scratchDir, filepath.FromSlash(member.Name))
		if !strings.HasPrefix(target, scratchDir+string(filepath.Separator)) {
			return nil, fmt.Errorf("archive member %q escapes extraction directory", member.Name)
		}
		if err := extractMember(member, target); err != nil {
			return nil, err
		}
		extracted = append(extracted, target)
	}
	return extracted, nil
}

func extractMember(member *zip.File, target string) error {
	src, err := member.Open()
	if err != nil {
		return fmt.Errorf("open archive member %q: %w", member.Name, err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create member dir: %w", err)
	}
	dst, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create extracted file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("extract %q: %w", member.Name, err)
	}
	return dst.Close()
}
