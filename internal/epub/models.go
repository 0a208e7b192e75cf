package epub

import "strings"

// BookMetadata is the catalog record produced for one processed archive.
type BookMetadata struct {
	ID          string       `yaml:"id"`
	Title       string       `yaml:"title"`
	SortTitle   string       `yaml:"sortTitle"`
	Author      string       `yaml:"author"`
	Description string       `yaml:"description"`
	Publisher   string       `yaml:"publisher"`
	Date        string       `yaml:"date"`
	Creators    []CreatorRec `yaml:"creators"`
	Subjects    []string     `yaml:"subjects"`
}

// CreatorRec represents one creator (author, editor, etc.) of the book
type CreatorRec struct {
	Name      string `yaml:"name"`
	FirstName string `yaml:"firstName"`
	LastName  string `yaml:"lastName"`
	Role      string `yaml:"role"` // e.g., "aut" for author, "edt" for editor
}

// RoleAuthor is the MARC relator code for an author, and the default role.
const RoleAuthor = "aut"

// NewCreator builds a CreatorRec, splitting "Last, First" names.
func NewCreator(name, role string) CreatorRec {
	if role == "" {
		role = RoleAuthor
	}
	first, last := splitName(name)
	return CreatorRec{
		Name:      name,
		FirstName: first,
		LastName:  last,
		Role:      role,
	}
}

// splitName splits on the first comma: "Last, First" -> (First, Last).
// Names without a comma (or starting with one) are returned whole as the last name.
func splitName(name string) (string, string) {
	pos := strings.IndexByte(name, ',')
	if pos <= 0 {
		return "", name
	}
	return strings.TrimSpace(name[pos+1:]), strings.TrimSpace(name[:pos])
}

// deriveAuthor joins the "aut" creators, falling back to every creator.
func deriveAuthor(creators []CreatorRec) string {
	var authors, all []string
	for _, c := range creators {
		all = append(all, c.Name)
		if c.Role == RoleAuthor {
			authors = append(authors, c.Name)
		}
	}
	if len(authors) > 0 {
		return strings.Join(authors, ", ")
	}
	return strings.Join(all, ", ")
}

// ManifestItem represents an item in the manifest
type ManifestItem struct {
	ID         string
	FileName   string // URL-decoded, relative to the package document directory
	MediaType  string
	Properties []string
}

// Class classifies the item for assembly and relocation.
func (m ManifestItem) Class() MediaClass {
	return ClassifyMediaType(m.MediaType)
}

// BaseName returns the final path segment of the item's file name.
func (m ManifestItem) BaseName() string {
	if i := strings.LastIndexByte(m.FileName, '/'); i >= 0 {
		return m.FileName[i+1:]
	}
	return m.FileName
}

// MediaClass is the closed set of roles a manifest item can play.
type MediaClass int

const (
	// MediaAsset covers images, fonts and anything else copied verbatim.
	MediaAsset MediaClass = iota
	// MediaDocument is an XHTML chapter merged into book.html.
	MediaDocument
	// MediaStylesheet is book CSS, replaced by the configured stylesheet.
	MediaStylesheet
)

const (
	mediaTypeXHTML = "application/xhtml+xml"
	mediaTypeCSS   = "text/css"
)

// ClassifyMediaType maps a manifest media-type to its MediaClass.
func ClassifyMediaType(mediaType string) MediaClass {
	switch mediaType {
	case mediaTypeXHTML:
		return MediaDocument
	case mediaTypeCSS:
		return MediaStylesheet
	default:
		return MediaAsset
	}
}

func (c MediaClass) String() string {
	switch c {
	case MediaDocument:
		return "document"
	case MediaStylesheet:
		return "stylesheet"
	default:
		return "asset"
	}
}

// MetadataField is the closed set of metadata elements copied into BookMetadata.
type MetadataField int

const (
	FieldUnknown MetadataField = iota
	FieldTitle
	FieldDescription
	FieldPublisher
	FieldDate
	FieldCreator
	FieldSubject
)

// metadataFields is keyed by local element name so that the dc: prefix
// (or any other prefix bound to Dublin Core) does not matter.
var metadataFields = map[string]MetadataField{
	"title":       FieldTitle,
	"description": FieldDescription,
	"publisher":   FieldPublisher,
	"date":        FieldDate,
	"creator":     FieldCreator,
	"subject":     FieldSubject,
}

// LookupMetadataField returns the field for a local element name.
func LookupMetadataField(localName string) MetadataField {
	return metadataFields[localName]
}
