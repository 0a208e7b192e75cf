package converter

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/otiai10/copy"
	"github.com/yuanying/unpub/internal/epub"
)

// RelocateAssets copies every manifest item that is neither a document nor
// a stylesheet from the package directory into destDir, keeping its
// manifest-relative path. Items above the package directory but inside
// the archive root land at their root-relative path instead. Items whose
// source file is absent are skipped. It returns the number of files copied.
func RelocateAssets(pkg *epub.Package, destDir string, logger *slog.Logger) (int, error) {
	copied := 0
	for _, item := range pkg.Items() {
		if item.Class() != epub.MediaAsset {
			continue
		}

		src, err := pkg.Resolve(item.FileName)
		if err != nil {
			logger.Warn("skipping asset outside the archive", "item", item.ID, "href", item.FileName)
			continue
		}
		rel := filepath.FromSlash(item.FileName)
		if !filepath.IsLocal(rel) {
			if rel, err = filepath.Rel(pkg.Root(), src); err != nil {
				return copied, fmt.Errorf("failed to place asset %s: %w", item.FileName, err)
			}
		}

		info, err := os.Stat(src)
		if errors.Is(err, fs.ErrNotExist) {
			logger.Debug("asset listed in manifest but missing", "item", item.ID, "href", item.FileName)
			continue
		}
		if err != nil {
			return copied, fmt.Errorf("failed to stat asset %s: %w", item.FileName, err)
		}
		if info.IsDir() {
			continue
		}

		if err := copy.Copy(src, filepath.Join(destDir, rel)); err != nil {
			return copied, fmt.Errorf("failed to copy asset %s: %w", item.FileName, err)
		}
		copied++
	}
	return copied, nil
}
