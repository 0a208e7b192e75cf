package epub

import "errors"

// Structural errors returned while reading an extracted EPUB tree.
// Each is fatal for the archive being processed; callers wrap them with
// the book id and match them with errors.Is.
var (
	// ErrEmptyName is returned when a source file name sanitizes to nothing.
	ErrEmptyName = errors.New("epub: file name has no usable characters")

	// ErrUnsafeEntry is returned for zip entries that would be written
	// outside the extraction directory.
	ErrUnsafeEntry = errors.New("epub: unsafe zip entry path")

	ErrContainerNotFound = errors.New("epub: META-INF/container.xml not found")
	ErrRootfileCount     = errors.New("epub: container must declare exactly one rootfile")
	ErrPackageNotFound   = errors.New("epub: package document not found")

	// ErrSectionCount is returned when a package document does not hold
	// exactly one metadata, manifest or spine element.
	ErrSectionCount = errors.New("epub: package section must appear exactly once")

	ErrMissingAttribute   = errors.New("epub: required attribute missing")
	ErrUnresolvedSpineRef = errors.New("epub: spine itemref does not match any manifest item")
	ErrDateTooShort       = errors.New("epub: date must have at least 10 characters")
	ErrChapterNotFound    = errors.New("epub: chapter file not found")

	// ErrPathEscapesRoot is returned when a container or manifest path
	// resolves outside the extracted archive.
	ErrPathEscapesRoot = errors.New("epub: path leaves the extracted archive")
)
