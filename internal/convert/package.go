package convert

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"
)

// ArchiveName is the file name used for multi-file results.
const ArchiveName = "output_files.zip"

// Package turns a list of converted files into a single deliverable. One
// path is returned unchanged. Several paths are stored flat (base names
// only) in a zip archive at archivePath, and the standalone files are
// removed once the archive is complete.
func Package(paths []string, archivePath string) (string, error) {
	switch len(paths) {
	case 0:
		return "", ErrEmptyBatch
	case 1:
		return paths[0], nil
	}

	seen := make(map[string]string, len(paths))
	for _, p := range paths {
		name := filepath.Base(p)
		if prev, ok := seen[name]; ok {
			return "", fmt.Errorf("duplicate archive entry %q (%s and %s)", name, prev, p)
		}
		seen[name] = p
	}

	if err := writeArchive(paths, archivePath); err != nil {
		_ = os.Remove(archivePath)
		return "", err
	}

	for _, p := range paths {
		if err := os.Remove(p); err != nil {
			return "", fmt.Errorf("remove packaged file: %w", err)
		}
	}
	return archivePath, nil
}

func writeArchive(paths []string, archivePath string) error {
	f, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer func() { _ = f.Close() }()

	zw := zip.NewWriter(f)
	for _, p := range paths {
		if err := addToArchive(zw, p); err != nil {
			_ = zw.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}
	return f.Close()
}

func addToArchive(zw *zip.Writer, path string) error {
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = src.Close() }()

	info, err := src.Stat()
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = filepath.Base(path)
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("add %s: %w", header.Name, err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("write %s: %w", header.Name, err)
	}
	return nil
}
