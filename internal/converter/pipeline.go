package converter

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/yuanying/unpub/internal/epub"
)

const (
	// BookFileName is the merged page written for every processed book.
	BookFileName = "book.html"
	// StyleFileName is the stylesheet linked from BookFileName.
	StyleFileName = "style.css"
)

// ProcessOptions holds options for the processing pipeline.
type ProcessOptions struct {
	Style          StyleConfig
	ThumbnailWidth int
	Logger         *slog.Logger
}

// Processor turns an extracted EPUB tree into a library book directory.
type Processor struct {
	Options ProcessOptions
}

// NewProcessor creates a new processing pipeline.
func NewProcessor(opts ProcessOptions) *Processor {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Processor{Options: opts}
}

// Process reads the package under rootDir and writes book.html, style.css,
// the relocated assets and an optional thumbnail to destRoot/<id>, where
// id is the base name of rootDir. Output is assembled in a staging
// directory beside the target and renamed into place only on success, so
// a failed run leaves any previous output untouched.
func (p *Processor) Process(rootDir, destRoot string) (*epub.BookMetadata, error) {
	id := filepath.Base(rootDir)
	md, err := p.process(id, rootDir, destRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to process %s: %w", id, err)
	}
	return md, nil
}

func (p *Processor) process(id, rootDir, destRoot string) (*epub.BookMetadata, error) {
	logger := p.Options.Logger.With("book", id)

	pkgPath, err := epub.FindPackage(rootDir)
	if err != nil {
		return nil, err
	}
	pkg, err := epub.OpenPackageInRoot(rootDir, pkgPath, id)
	if err != nil {
		return nil, err
	}
	md := pkg.Metadata()

	if err := os.MkdirAll(destRoot, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create library directory: %w", err)
	}
	staging, err := os.MkdirTemp(destRoot, "."+id+"-")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			os.RemoveAll(staging)
		}
	}()
	if err := os.Chmod(staging, 0o755); err != nil {
		return nil, fmt.Errorf("failed to prepare staging directory: %w", err)
	}

	chapters, err := p.writeBook(pkg, md.Title, staging, logger)
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(filepath.Join(staging, StyleFileName), []byte(p.Options.Style.Stylesheet()), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write stylesheet: %w", err)
	}

	assets, err := RelocateAssets(pkg, staging, logger)
	if err != nil {
		return nil, err
	}

	p.writeThumbnail(pkg, staging, logger)

	if err := replaceDir(staging, filepath.Join(destRoot, id)); err != nil {
		return nil, err
	}
	committed = true

	logger.Info("processed book", "title", md.Title, "chapters", chapters, "assets", assets)
	return &md, nil
}

// writeBook merges the spine documents into dir/book.html.
func (p *Processor) writeBook(pkg *epub.Package, title, dir string, logger *slog.Logger) (int, error) {
	builder := NewBookBuilder(pkg, title)

	err := pkg.EachSpineItem(func(item epub.ManifestItem) error {
		if item.Class() != epub.MediaDocument {
			logger.Debug("skipping non-document spine item", "item", item.ID, "media_type", item.MediaType)
			return nil
		}

		path, err := pkg.Resolve(item.FileName)
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", epub.ErrChapterNotFound, item.FileName)
		}
		if err != nil {
			return fmt.Errorf("failed to open chapter %s: %w", item.FileName, err)
		}
		defer f.Close()

		return builder.AddChapter(item, f)
	})
	if err != nil {
		return 0, err
	}

	if err := os.WriteFile(filepath.Join(dir, BookFileName), builder.Build(), 0o644); err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", BookFileName, err)
	}
	return builder.Chapters(), nil
}

// writeThumbnail is best effort; a missing or undecodable cover only logs.
// A zero ThumbnailWidth disables it.
func (p *Processor) writeThumbnail(pkg *epub.Package, dir string, logger *slog.Logger) {
	if p.Options.ThumbnailWidth <= 0 {
		return
	}
	cover := pkg.DetectCover()
	if cover == nil {
		logger.Debug("no cover image found")
		return
	}

	src, err := pkg.Resolve(cover.Item.FileName)
	if err != nil {
		logger.Warn("skipping cover outside the archive", "cover", cover.Item.FileName)
		return
	}
	if err := WriteThumbnail(src, filepath.Join(dir, ThumbnailName), p.Options.ThumbnailWidth); err != nil {
		logger.Warn("failed to write thumbnail", "cover", cover.Item.FileName, "error", err)
		return
	}
	logger.Debug("wrote thumbnail", "cover", cover.Item.FileName, "method", cover.DetectionMethod)
}

// replaceDir moves staging to dst, discarding whatever dst held before.
func replaceDir(staging, dst string) error {
	if err := os.RemoveAll(dst); err != nil {
		return fmt.Errorf("failed to remove previous output: %w", err)
	}
	if err := os.Rename(staging, dst); err != nil {
		return fmt.Errorf("failed to move output into place: %w", err)
	}
	return nil
}
