package converter

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/yuanying/unpub/internal/epub"
)

const testContainerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

const testOPF = `<?xml version="1.0" encoding="UTF-8"?>
<package version="2.0" xmlns="http://www.idpf.org/2007/opf" unique-identifier="bookid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">
    <dc:title>Tom &amp; Jerry</dc:title>
    <dc:creator opf:role="aut">Hanna, William</dc:creator>
    <dc:date>1940-02-10</dc:date>
    <meta name="cover" content="cover"/>
  </metadata>
  <manifest>
    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>
    <item id="cover" href="images/front.jpg" media-type="image/jpeg"/>
    <item id="ch1" href="text/chapter1.xhtml" media-type="application/xhtml+xml"/>
    <item id="ch2" href="text/chapter%202.xhtml" media-type="application/xhtml+xml"/>
    <item id="notes" href="text/notes.xhtml" media-type="application/xhtml+xml"/>
    <item id="css" href="css/book.css" media-type="text/css"/>
  </manifest>
  <spine toc="ncx">
    <itemref idref="ch2"/>
    <itemref idref="cover"/>
    <itemref idref="ch1"/>
  </spine>
</package>`

const testChapter1 = `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml">
<head><title>One</title><link rel="stylesheet" href="../css/book.css"/></head>
<body>
<h1 id="top">Chapter One</h1>
<p>Go to <a href="chapter%202.xhtml">two</a>, <a href="chapter1.xhtml#sec">a section</a>,
<a href="#top">the top</a> or <a href="http://example.com/page">elsewhere</a>.</p>
<p><img src="../images/front.jpg" alt="front"/></p>
</body>
</html>`

const testNotes = `<html xmlns="http://www.w3.org/1999/xhtml"><head><title>Notes</title></head>
<body><p>Unlisted editorial notes.</p></body></html>`

const testChapter2 = `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml">
<head><title>Two</title></head>
<body>
<h1>Chapter Two</h1>
<p>Back to <a href="../text/chapter1.xhtml">one</a>.</p>
</body>
</html>`

// writeTree writes files (slash separated relative path -> content) under dir.
func writeTree(t *testing.T, dir string, files map[string][]byte) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("failed to create dir for %s: %v", name, err)
		}
		if err := os.WriteFile(path, content, 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
}

// writeTestBook lays out an extracted book named id under parent and
// returns its root directory.
func writeTestBook(t *testing.T, parent, id string) string {
	t.Helper()
	root := filepath.Join(parent, id)
	writeTree(t, root, map[string][]byte{
		"META-INF/container.xml":     []byte(testContainerXML),
		"OEBPS/content.opf":          []byte(testOPF),
		"OEBPS/text/chapter1.xhtml":  []byte(testChapter1),
		"OEBPS/text/chapter 2.xhtml": []byte(testChapter2),
		"OEBPS/text/notes.xhtml":     []byte(testNotes),
		"OEBPS/css/book.css":         []byte("p { color: red; }"),
		"OEBPS/images/front.jpg":     mustJPEG(t, 600, 800),
	})
	return root
}

func mustJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("failed to encode jpeg: %v", err)
	}
	return buf.Bytes()
}

// itemsByName is an ItemLookup backed by a map.
type itemsByName map[string]epub.ManifestItem

func (m itemsByName) ItemByFileName(name string) (epub.ManifestItem, bool) {
	item, ok := m[name]
	return item, ok
}

func testItems() itemsByName {
	return itemsByName{
		"chapter1.xhtml":  {ID: "ch1", FileName: "text/chapter1.xhtml", MediaType: "application/xhtml+xml"},
		"chapter 2.xhtml": {ID: "ch2", FileName: "text/chapter 2.xhtml", MediaType: "application/xhtml+xml"},
	}
}
