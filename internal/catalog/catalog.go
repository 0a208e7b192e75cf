// Package catalog keeps the library's list of processed books and
// persists it as books.yaml.
package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/yuanying/unpub/internal/epub"
	"gopkg.in/yaml.v3"
)

// FileName is the catalog document written in the library directory.
const FileName = "books.yaml"

// Catalog is an ordered, concurrency-safe set of book records keyed by id.
// Re-adding an id replaces the record in place.
type Catalog struct {
	mu    sync.RWMutex
	order []string
	books map[string]epub.BookMetadata

	// saveMu orders whole Save calls so an older snapshot never
	// replaces a newer one on disk.
	saveMu sync.Mutex
}

// New returns a catalog holding books in the given order.
func New(books ...epub.BookMetadata) *Catalog {
	c := &Catalog{books: make(map[string]epub.BookMetadata)}
	c.putLocked(books)
	return c
}

// Put adds or replaces records.
func (c *Catalog) Put(books ...epub.BookMetadata) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.putLocked(books)
}

func (c *Catalog) putLocked(books []epub.BookMetadata) {
	for _, b := range books {
		if _, ok := c.books[b.ID]; !ok {
			c.order = append(c.order, b.ID)
		}
		c.books[b.ID] = cloneBook(b)
	}
}

// Replace discards every record and stores books instead.
func (c *Catalog) Replace(books []epub.BookMetadata) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order = nil
	c.books = make(map[string]epub.BookMetadata, len(books))
	c.putLocked(books)
}

// Get returns the record with the given id.
func (c *Catalog) Get(id string) (epub.BookMetadata, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.books[id]
	if !ok {
		return epub.BookMetadata{}, false
	}
	return cloneBook(b), true
}

// Len returns the number of records.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// Snapshot returns a copy of all records in catalog order. The result
// does not change when the catalog does.
func (c *Catalog) Snapshot() []epub.BookMetadata {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]epub.BookMetadata, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, cloneBook(c.books[id]))
	}
	return out
}

// SortBy orders books in place by "title" (sort title) or "author".
// Ties keep their catalog order.
func SortBy(books []epub.BookMetadata, key string) error {
	var less func(a, b epub.BookMetadata) bool
	switch key {
	case "", "title":
		less = func(a, b epub.BookMetadata) bool {
			return strings.ToLower(sortTitle(a)) < strings.ToLower(sortTitle(b))
		}
	case "author":
		less = func(a, b epub.BookMetadata) bool {
			return strings.ToLower(a.Author) < strings.ToLower(b.Author)
		}
	default:
		return fmt.Errorf("unknown sort key %q", key)
	}
	sort.SliceStable(books, func(i, j int) bool { return less(books[i], books[j]) })
	return nil
}

func sortTitle(b epub.BookMetadata) string {
	if b.SortTitle != "" {
		return b.SortTitle
	}
	return b.Title
}

// Load reads dir/books.yaml. A missing file yields an empty catalog.
func Load(dir string) (*Catalog, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if errors.Is(err, fs.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var books []epub.BookMetadata
	if err := yaml.Unmarshal(data, &books); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return New(books...), nil
}

// Save writes the catalog to dir/books.yaml through a temporary file so
// readers never observe a partial document.
func (c *Catalog) Save(dir string) error {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	books := c.Snapshot()
	data, err := yaml.Marshal(books)
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create library directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+FileName+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary catalog: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, FileName)); err != nil {
		return fmt.Errorf("failed to replace catalog: %w", err)
	}
	return nil
}

func cloneBook(b epub.BookMetadata) epub.BookMetadata {
	b.Creators = append([]epub.CreatorRec(nil), b.Creators...)
	b.Subjects = append([]string(nil), b.Subjects...)
	return b
}
