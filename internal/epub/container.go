package epub

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/beevik/etree"
	"golang.org/x/net/html/charset"
)

// containerPath is the well-known location of container.xml in an EPUB tree.
const containerPath = "META-INF/container.xml"

// FindPackage parses META-INF/container.xml under rootDir and returns the
// path of the package document it points to. Only single-rendition
// EPUBs are supported: the container must declare exactly one rootfile.
func FindPackage(rootDir string) (string, error) {
	doc, err := readXMLFile(filepath.Join(rootDir, filepath.FromSlash(containerPath)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w in %s", ErrContainerNotFound, rootDir)
		}
		return "", fmt.Errorf("failed to parse container.xml: %w", err)
	}

	rootfiles := doc.FindElements("//rootfile")
	if len(rootfiles) != 1 {
		return "", fmt.Errorf("%w: found %d", ErrRootfileCount, len(rootfiles))
	}

	attr := rootfiles[0].SelectAttr("full-path")
	if attr == nil {
		return "", fmt.Errorf("%w: rootfile has no full-path", ErrMissingAttribute)
	}

	if !filepath.IsLocal(filepath.FromSlash(attr.Value)) {
		return "", fmt.Errorf("%w: %s", ErrPathEscapesRoot, attr.Value)
	}
	pkgPath := filepath.Join(rootDir, filepath.FromSlash(attr.Value))
	if _, err := os.Stat(pkgPath); err != nil {
		return "", fmt.Errorf("%w: %s", ErrPackageNotFound, attr.Value)
	}
	return pkgPath, nil
}

// readXMLFile parses an XML file, transcoding non UTF-8 documents.
func readXMLFile(path string) (*etree.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc := newXMLDocument()
	if _, err := doc.ReadFrom(f); err != nil {
		return nil, err
	}
	return doc, nil
}

func newXMLDocument() *etree.Document {
	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = charset.NewReaderLabel
	return doc
}
