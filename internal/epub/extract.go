package epub

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// copyBufferSize is the chunk size used when streaming zip entries to disk.
const copyBufferSize = 64 * 1024

// CleanName derives the book id from a source file name: the name without
// its extension, spaces turned into underscores, everything except ASCII
// letters, digits and underscores dropped, and underscore runs collapsed.
//
// Distinct names can map to the same result ("My Book.epub" and
// "My_Book!.epub" are both "My_Book"); callers decide how to handle that.
func CleanName(fileName string) (string, error) {
	base := filepath.Base(fileName)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	var b strings.Builder
	lastUnderscore := false
	for _, r := range base {
		if r == ' ' {
			r = '_'
		}
		switch {
		case r == '_':
			if lastUnderscore {
				continue
			}
			lastUnderscore = true
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			lastUnderscore = false
		default:
			continue
		}
		b.WriteRune(r)
	}

	if b.Len() == 0 {
		return "", fmt.Errorf("%w: %q", ErrEmptyName, fileName)
	}
	return b.String(), nil
}

// ExtractFile opens the archive at path and extracts it under destRoot.
// It returns the directory the archive was extracted into.
func ExtractFile(archivePath, destRoot string) (string, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat archive: %w", err)
	}

	return Extract(f, info.Size(), filepath.Base(archivePath), destRoot)
}

// Extract writes every file entry of the zip read from r into
// destRoot/CleanName(fileName), keeping the entries' relative paths.
// Any previous contents of that directory are removed first.
func Extract(r io.ReaderAt, size int64, fileName, destRoot string) (string, error) {
	name, err := CleanName(fileName)
	if err != nil {
		return "", err
	}

	// entry paths are checked one by one below
	zr, err := zip.NewReader(r, size)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return "", fmt.Errorf("failed to read zip %s: %w", fileName, err)
	}

	dir := filepath.Join(destRoot, name)
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("failed to clear %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}

	buf := make([]byte, copyBufferSize)
	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() {
			continue
		}
		if err := extractEntry(zf, dir, buf); err != nil {
			return "", err
		}
	}

	return dir, nil
}

// extractEntry streams a single zip entry to dir, creating parent directories.
func extractEntry(zf *zip.File, dir string, buf []byte) error {
	rel, err := entryPath(zf.Name)
	if err != nil {
		return err
	}
	out := filepath.Join(dir, filepath.FromSlash(rel))

	// some zips don't list directory entries before their files
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return fmt.Errorf("failed to create parent dir for %s: %w", zf.Name, err)
	}

	rc, err := zf.Open()
	if err != nil {
		return fmt.Errorf("failed to open zip entry %s: %w", zf.Name, err)
	}
	defer rc.Close()

	f, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", out, err)
	}

	if _, err := io.CopyBuffer(f, rc, buf); err != nil {
		f.Close()
		return fmt.Errorf("failed to extract %s: %w", zf.Name, err)
	}
	return f.Close()
}

// entryPath cleans a zip entry name and rejects names that escape the
// extraction root.
func entryPath(name string) (string, error) {
	name = strings.ReplaceAll(name, `\`, "/")
	cleaned := path.Clean(name)
	if strings.HasPrefix(cleaned, "/") || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %s", ErrUnsafeEntry, name)
	}
	return cleaned, nil
}
