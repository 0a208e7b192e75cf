package converter

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/yuanying/unpub/internal/epub"
)

// ErrNoBody is returned when a chapter document has no body element to merge.
var ErrNoBody = errors.New("converter: chapter has no body")

const htmlTop = `<!DOCTYPE html>
<html lang="en">
  <head>
    <meta charset="UTF-8">
    <title>%s</title>
    <link rel="stylesheet" href="style.css">
  </head>
  <body>
`

const htmlBottom = `  </body>
</html>
`

// ItemLookup resolves a manifest file name (final path segment) to its item.
type ItemLookup interface {
	ItemByFileName(name string) (epub.ManifestItem, bool)
}

// BookBuilder merges spine documents into a single HTML page.
// Chapters are appended in the order AddChapter is called.
type BookBuilder struct {
	items    ItemLookup
	title    string
	body     bytes.Buffer
	chapters int
}

// NewBookBuilder creates a builder that rewrites links against items.
func NewBookBuilder(items ItemLookup, title string) *BookBuilder {
	return &BookBuilder{items: items, title: title}
}

// AddChapter parses one XHTML document, rewrites its links and image
// sources, and appends an anchor for item followed by the body content.
func (b *BookBuilder) AddChapter(item epub.ManifestItem, r io.Reader) error {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", item.FileName, err)
	}

	body := doc.Find("body").First()
	if body.Length() == 0 {
		return fmt.Errorf("%w: %s", ErrNoBody, item.FileName)
	}

	body.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		s.SetAttr("href", RewriteHref(href, b.items))
	})
	body.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		s.SetAttr("src", RewriteImageSrc(src))
	})

	content, err := body.Html()
	if err != nil {
		return fmt.Errorf("failed to render %s: %w", item.FileName, err)
	}

	fmt.Fprintf(&b.body, "<a id=\"%s\"></a>\n", html.EscapeString(item.ID))
	b.body.WriteString(strings.TrimSpace(content))
	b.body.WriteByte('\n')
	b.chapters++
	return nil
}

// Chapters returns the number of documents merged so far.
func (b *BookBuilder) Chapters() int {
	return b.chapters
}

// Build returns the complete page. It can be called more than once.
func (b *BookBuilder) Build() []byte {
	var out bytes.Buffer
	fmt.Fprintf(&out, htmlTop, html.EscapeString(b.title))
	out.Write(b.body.Bytes())
	out.WriteString(htmlBottom)
	return out.Bytes()
}

// RewriteHref maps a chapter link onto the merged page.
//
// An href with a fragment after a non-empty path keeps only the fragment.
// Fragment-only and empty hrefs are left alone. Otherwise, if the final
// path segment names a manifest item, the link points at that item's
// anchor. Anything else, external URLs included, is returned unchanged.
func RewriteHref(href string, items ItemLookup) string {
	if pos := strings.IndexByte(href, '#'); pos > 0 {
		return href[pos:]
	}
	if href == "" || strings.HasPrefix(href, "#") {
		return href
	}

	name := href[strings.LastIndexByte(href, '/')+1:]
	if item, ok := items.ItemByFileName(name); ok {
		return "#" + item.ID
	}
	if decoded, err := url.PathUnescape(name); err == nil && decoded != name {
		if item, ok := items.ItemByFileName(decoded); ok {
			return "#" + item.ID
		}
	}
	return href
}

// RewriteImageSrc strips one leading "../", "./" or "/" so image paths
// resolve against the book directory.
func RewriteImageSrc(src string) string {
	for _, prefix := range []string{"../", "./", "/"} {
		if strings.HasPrefix(src, prefix) {
			return src[len(prefix):]
		}
	}
	return src
}
