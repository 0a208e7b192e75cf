package epub

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/beevik/etree"
)

// Package is a parsed OPF package document.
// The spine is kept as parsed XML and resolved against the manifest on
// demand, so iteration always follows spine document order.
type Package struct {
	dir      string // directory holding the package document, "" when parsed from a reader
	root     string // manifest paths must stay below this directory
	metadata BookMetadata
	coverID  string // EPUB 2.0 cover image manifest item ID (from meta name="cover")
	items    []ManifestItem
	byID     map[string]int
	byName   map[string]int // final path segment -> index in items
	spine    *etree.Element
}

// OpenPackage reads and parses the package document at path.
// id becomes the BookMetadata id. Manifest paths are confined to the
// package document's directory.
func OpenPackage(path, id string) (*Package, error) {
	return OpenPackageInRoot(filepath.Dir(path), path, id)
}

// OpenPackageInRoot is OpenPackage for a package document inside an
// extracted archive rooted at root. Manifest paths may leave the package
// directory but not root.
func OpenPackageInRoot(root, path, id string) (*Package, error) {
	if !within(root, path) {
		return nil, fmt.Errorf("%w: %s", ErrPathEscapesRoot, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPackageNotFound, path)
	}
	defer f.Close()

	pkg, err := ParsePackage(f, id)
	if err != nil {
		return nil, err
	}
	pkg.dir = filepath.Dir(path)
	pkg.root = root
	return pkg, nil
}

// ParsePackage parses an OPF document. Only structure needed for
// conversion is checked: exactly one metadata, manifest and spine section,
// and the attributes each manifest item needs.
func ParsePackage(r io.Reader, id string) (*Package, error) {
	doc := newXMLDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("failed to parse package document: %w", err)
	}

	pkg := &Package{
		metadata: BookMetadata{ID: id},
		byID:     make(map[string]int),
		byName:   make(map[string]int),
	}

	metadata, err := singleSection(doc, "metadata")
	if err != nil {
		return nil, err
	}
	if err := pkg.parseMetadata(metadata); err != nil {
		return nil, err
	}

	manifest, err := singleSection(doc, "manifest")
	if err != nil {
		return nil, err
	}
	if err := pkg.parseManifest(manifest); err != nil {
		return nil, err
	}

	pkg.spine, err = singleSection(doc, "spine")
	if err != nil {
		return nil, err
	}

	return pkg, nil
}

func singleSection(doc *etree.Document, tag string) (*etree.Element, error) {
	found := doc.FindElements("//" + tag)
	if len(found) != 1 {
		return nil, fmt.Errorf("%w: found %d %s sections", ErrSectionCount, len(found), tag)
	}
	return found[0], nil
}

// parseMetadata walks the direct children of <metadata> in document order.
func (p *Package) parseMetadata(metadata *etree.Element) error {
	children := metadata.ChildElements()
	refines := collectRefinements(children)

	md := &p.metadata
	for _, el := range children {
		if el.Tag == "meta" && el.SelectAttrValue("name", "") == "cover" {
			p.coverID = el.SelectAttrValue("content", "")
			continue
		}

		switch LookupMetadataField(el.Tag) {
		case FieldTitle:
			md.Title = textContent(el)
		case FieldDescription:
			md.Description = textContent(el)
		case FieldPublisher:
			md.Publisher = textContent(el)
		case FieldDate:
			date, err := truncateDate(textContent(el))
			if err != nil {
				return err
			}
			md.Date = date
		case FieldCreator:
			md.Creators = append(md.Creators, parseCreator(el, refines))
		case FieldSubject:
			md.Subjects = append(md.Subjects, textContent(el))
		case FieldUnknown:
		}
	}

	md.Author = deriveAuthor(md.Creators)
	md.SortTitle = md.Title
	return nil
}

// collectRefinements gathers EPUB 3.0 <meta refines="#id" property="..."> values.
func collectRefinements(children []*etree.Element) map[string]map[string]string {
	refines := make(map[string]map[string]string)
	for _, el := range children {
		if el.Tag != "meta" {
			continue
		}
		target := el.SelectAttrValue("refines", "")
		property := el.SelectAttrValue("property", "")
		if target == "" || property == "" {
			continue
		}
		if refines[target] == nil {
			refines[target] = make(map[string]string)
		}
		refines[target][property] = textContent(el)
	}
	return refines
}

// parseCreator prefers the file-as form of the name (EPUB 2.0 attribute,
// then EPUB 3.0 refinement) over the element text.
func parseCreator(el *etree.Element, refines map[string]map[string]string) CreatorRec {
	refined := refines["#"+el.SelectAttrValue("id", "")]

	name := el.SelectAttrValue("file-as", "")
	if name == "" {
		name = refined["file-as"]
	}
	if name == "" {
		name = textContent(el)
	}

	role := el.SelectAttrValue("role", "")
	if role == "" {
		role = refined["role"]
	}
	return NewCreator(name, role)
}

// truncateDate keeps the ISO date part of a date or timestamp.
func truncateDate(value string) (string, error) {
	runes := []rune(value)
	if len(runes) < 10 {
		return "", fmt.Errorf("%w: %q", ErrDateTooShort, value)
	}
	return string(runes[:10]), nil
}

func (p *Package) parseManifest(manifest *etree.Element) error {
	for _, el := range manifest.SelectElements("item") {
		id := el.SelectAttr("id")
		if id == nil {
			return fmt.Errorf("%w: manifest item has no id", ErrMissingAttribute)
		}
		href := el.SelectAttr("href")
		if href == nil {
			return fmt.Errorf("%w: manifest item %q has no href", ErrMissingAttribute, id.Value)
		}
		mediaType := el.SelectAttr("media-type")
		if mediaType == nil {
			return fmt.Errorf("%w: manifest item %q has no media-type", ErrMissingAttribute, id.Value)
		}

		fileName, err := url.PathUnescape(href.Value)
		if err != nil {
			return fmt.Errorf("manifest item %q has a malformed href: %w", id.Value, err)
		}

		item := ManifestItem{
			ID:         id.Value,
			FileName:   fileName,
			MediaType:  mediaType.Value,
			Properties: strings.Fields(el.SelectAttrValue("properties", "")),
		}
		p.byID[item.ID] = len(p.items)
		p.byName[item.BaseName()] = len(p.items)
		p.items = append(p.items, item)
	}
	return nil
}

// Metadata returns the book record collected from the metadata section.
func (p *Package) Metadata() BookMetadata {
	md := p.metadata
	md.Creators = append([]CreatorRec(nil), p.metadata.Creators...)
	md.Subjects = append([]string(nil), p.metadata.Subjects...)
	return md
}

// Dir returns the directory manifest file names are relative to.
func (p *Package) Dir() string {
	return p.dir
}

// Root returns the directory manifest paths are confined to.
func (p *Package) Root() string {
	return p.root
}

// Resolve returns the on-disk path of a manifest file name.
func (p *Package) Resolve(fileName string) (string, error) {
	path := filepath.Join(p.dir, filepath.FromSlash(fileName))
	if !within(p.root, path) {
		return "", fmt.Errorf("%w: %s", ErrPathEscapesRoot, fileName)
	}
	return path, nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && (rel == "." || filepath.IsLocal(rel))
}

// Items returns the manifest items in document order.
func (p *Package) Items() []ManifestItem {
	return append([]ManifestItem(nil), p.items...)
}

// Item looks up a manifest item by id.
func (p *Package) Item(id string) (ManifestItem, bool) {
	i, ok := p.byID[id]
	if !ok {
		return ManifestItem{}, false
	}
	return p.items[i], true
}

// ItemByFileName looks up a manifest item by the final segment of its path.
func (p *Package) ItemByFileName(name string) (ManifestItem, bool) {
	i, ok := p.byName[name]
	if !ok {
		return ManifestItem{}, false
	}
	return p.items[i], true
}

// EachSpineItem calls fn for every spine itemref in document order with
// the manifest item it refers to. It stops at the first error.
func (p *Package) EachSpineItem(fn func(ManifestItem) error) error {
	for _, ref := range p.spine.SelectElements("itemref") {
		idref := ref.SelectAttr("idref")
		if idref == nil {
			return fmt.Errorf("%w: spine itemref has no idref", ErrMissingAttribute)
		}
		item, ok := p.Item(idref.Value)
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnresolvedSpineRef, idref.Value)
		}
		if err := fn(item); err != nil {
			return err
		}
	}
	return nil
}

// textContent concatenates all character data below el, trimmed.
func textContent(el *etree.Element) string {
	var b strings.Builder
	appendText(&b, el)
	return strings.TrimSpace(b.String())
}

func appendText(b *strings.Builder, el *etree.Element) {
	for _, tok := range el.Child {
		switch t := tok.(type) {
		case *etree.CharData:
			b.WriteString(t.Data)
		case *etree.Element:
			appendText(b, t)
		}
	}
}
