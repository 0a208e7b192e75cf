// Package importer drives EPUB archives through extraction and processing
// into the library and keeps the catalog in step.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuanying/unpub/internal/catalog"
	"github.com/yuanying/unpub/internal/converter"
	"github.com/yuanying/unpub/internal/epub"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNotEPUB is returned for uploads without an .epub extension.
	ErrNotEPUB = errors.New("importer: not an epub file")

	// ErrNameCollision is returned by ImportAll when two source files
	// sanitize to the same book id.
	ErrNameCollision = errors.New("importer: archives share a book id")
)

// Options configures an Importer.
type Options struct {
	// LibraryDir receives one directory per book and books.yaml.
	LibraryDir string
	// StagingDir holds extracted archives while they are processed.
	StagingDir string
	// Workers bounds parallel processing in ImportAll. Values below 1 mean 1.
	Workers int

	Processor *converter.Processor
	Logger    *slog.Logger
}

// Importer runs archives through extraction and processing.
type Importer struct {
	opts    Options
	catalog *catalog.Catalog
	logger  *slog.Logger
	locks   keyedMutex
}

// New creates an Importer that records books in cat.
func New(opts Options, cat *catalog.Catalog) *Importer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Processor == nil {
		opts.Processor = converter.NewProcessor(converter.ProcessOptions{
			Style:  converter.DefaultStyle(),
			Logger: logger,
		})
	}
	if cat == nil {
		cat = catalog.New()
	}
	return &Importer{opts: opts, catalog: cat, logger: logger}
}

// Catalog returns the catalog the importer writes to.
func (i *Importer) Catalog() *catalog.Catalog {
	return i.catalog
}

// ImportAll processes every .epub file under srcDir. Any failure aborts the
// run and leaves the catalog unchanged. On success the catalog is replaced
// by the imported books, in source order, and saved; book directories left
// by earlier imports that are no longer catalogued are then removed.
func (i *Importer) ImportAll(ctx context.Context, srcDir string) ([]epub.BookMetadata, error) {
	paths, err := findArchives(srcDir)
	if err != nil {
		return nil, err
	}
	if err := checkCollisions(paths); err != nil {
		return nil, err
	}
	i.logger.Info("importing library", "source", srcDir, "archives", len(paths), "workers", i.workers())

	books := make([]epub.BookMetadata, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(i.workers())
	for n, path := range paths {
		g.Go(func() error {
			md, err := i.ImportFile(ctx, path)
			if err != nil {
				return err
			}
			books[n] = *md
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	i.catalog.Replace(books)
	if err := i.catalog.Save(i.opts.LibraryDir); err != nil {
		return nil, err
	}
	i.pruneStale(books)
	i.logger.Info("imported library", "books", len(books))
	return books, nil
}

// pruneStale removes book directories under the library that books does
// not name. Failures only log; the catalog is already saved.
func (i *Importer) pruneStale(books []epub.BookMetadata) {
	stale, err := staleBookDirs(i.opts.LibraryDir, books)
	if err != nil {
		i.logger.Warn("failed to scan library for stale books", "error", err)
		return
	}
	for _, dir := range stale {
		if err := os.RemoveAll(dir); err != nil {
			i.logger.Warn("failed to remove stale book", "path", dir, "error", err)
			continue
		}
		i.logger.Info("removed stale book", "path", dir)
	}
}

// staleBookDirs lists directories directly under libraryDir that hold a
// book page but whose name is not a catalogued id. Hidden entries are
// skipped so in-progress staging output is never touched.
func staleBookDirs(libraryDir string, books []epub.BookMetadata) ([]string, error) {
	entries, err := os.ReadDir(libraryDir)
	if err != nil {
		return nil, err
	}
	keep := make(map[string]bool, len(books))
	for _, b := range books {
		keep[b.ID] = true
	}

	var stale []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") || keep[e.Name()] {
			continue
		}
		dir := filepath.Join(libraryDir, e.Name())
		if _, err := os.Stat(filepath.Join(dir, converter.BookFileName)); err != nil {
			continue
		}
		stale = append(stale, dir)
	}
	return stale, nil
}

func (i *Importer) workers() int {
	if i.opts.Workers < 1 {
		return 1
	}
	return i.opts.Workers
}

// findArchives lists .epub files under dir in lexical order.
func findArchives(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && isEPUB(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	return paths, nil
}

func checkCollisions(paths []string) error {
	seen := make(map[string]string, len(paths))
	for _, path := range paths {
		id, err := epub.CleanName(filepath.Base(path))
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if prev, ok := seen[id]; ok {
			return fmt.Errorf("%w: %s and %s both map to %q", ErrNameCollision, prev, path, id)
		}
		seen[id] = path
	}
	return nil
}

func isEPUB(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".epub")
}

// ImportFile extracts and processes one archive on disk. The catalog is
// not touched.
func (i *Importer) ImportFile(ctx context.Context, path string) (*epub.BookMetadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return i.ImportReader(ctx, filepath.Base(path), f, info.Size())
}

// ImportReader extracts an archive named name from r into the staging
// directory and processes it into the library. Imports resolving to the
// same book id run one at a time; the later one overwrites the earlier.
func (i *Importer) ImportReader(ctx context.Context, name string, r io.ReaderAt, size int64) (*epub.BookMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id, err := epub.CleanName(name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	unlock := i.locks.Lock(id)
	defer unlock()

	root, err := epub.Extract(r, size, name, i.opts.StagingDir)
	if err != nil {
		return nil, fmt.Errorf("failed to extract %s: %w", name, err)
	}
	defer func() {
		if err := os.RemoveAll(root); err != nil {
			i.logger.Warn("failed to clean staging directory", "path", root, "error", err)
		}
	}()
	i.logger.Debug("extracted archive", "archive", name, "root", root)

	return i.opts.Processor.Process(root, i.opts.LibraryDir)
}

// Result is the outcome of importing one uploaded file.
type Result struct {
	Path string
	Book *epub.BookMetadata
	Err  error
}

// Message returns the user-facing report for the upload.
func (r Result) Message() string {
	if errors.Is(r.Err, ErrNotEPUB) {
		return fmt.Sprintf("error importing %s: not an epub file", filepath.Base(r.Path))
	}
	if r.Err != nil {
		return fmt.Sprintf("error importing %s: %v", filepath.Base(r.Path), r.Err)
	}
	return fmt.Sprintf("successfully imported %s by %s", r.Book.Title, r.Book.Author)
}

// ImportFiles imports each path independently. A failing file is recorded
// in its Result and the rest continue. Successful books are merged into
// the catalog, which is saved once; the returned error reports only a
// failed save.
func (i *Importer) ImportFiles(ctx context.Context, paths []string) ([]Result, error) {
	results := make([]Result, 0, len(paths))
	var imported []epub.BookMetadata
	for _, path := range paths {
		res := Result{Path: path}
		if !isEPUB(path) {
			res.Err = ErrNotEPUB
		} else {
			res.Book, res.Err = i.ImportFile(ctx, path)
		}

		if res.Err != nil {
			i.logger.Warn("import failed", "file", path, "error", res.Err)
		} else {
			imported = append(imported, *res.Book)
			i.logger.Info("imported book", "file", path, "id", res.Book.ID)
		}
		results = append(results, res)
	}

	if len(imported) == 0 {
		return results, nil
	}
	i.catalog.Put(imported...)
	if err := i.catalog.Save(i.opts.LibraryDir); err != nil {
		return results, err
	}
	return results, nil
}
