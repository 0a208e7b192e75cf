package converter

import (
	"errors"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/yuanying/unpub/internal/epub"
)

func TestRewriteHref(t *testing.T) {
	tests := []struct {
		href string
		want string
	}{
		{"chapter1.xhtml#sec", "#sec"},
		{"../text/chapter1.xhtml#sec", "#sec"},
		{"chapter1.xhtml", "#ch1"},
		{"../text/chapter1.xhtml", "#ch1"},
		{"chapter%202.xhtml", "#ch2"},
		{"#top", "#top"},
		{"", ""},
		{"http://example.com/page", "http://example.com/page"},
		{"missing.xhtml", "missing.xhtml"},
		{"text/", "text/"},
	}

	items := testItems()
	for _, tt := range tests {
		t.Run(tt.href, func(t *testing.T) {
			if got := RewriteHref(tt.href, items); got != tt.want {
				t.Errorf("RewriteHref(%q) = %q, want %q", tt.href, got, tt.want)
			}
		})
	}
}

func TestRewriteImageSrc(t *testing.T) {
	tests := map[string]string{
		"../images/a.png":    "images/a.png",
		"./images/a.png":     "images/a.png",
		"/images/a.png":      "images/a.png",
		"images/a.png":       "images/a.png",
		"../../images/a.png": "../images/a.png",
		"":                   "",
	}
	for src, want := range tests {
		if got := RewriteImageSrc(src); got != want {
			t.Errorf("RewriteImageSrc(%q) = %q, want %q", src, got, want)
		}
	}
}

func TestBookBuilder_Build(t *testing.T) {
	items := testItems()
	builder := NewBookBuilder(items, "Tom & Jerry")

	if err := builder.AddChapter(items["chapter 2.xhtml"], strings.NewReader(testChapter2)); err != nil {
		t.Fatalf("AddChapter(ch2) error = %v", err)
	}
	if err := builder.AddChapter(items["chapter1.xhtml"], strings.NewReader(testChapter1)); err != nil {
		t.Fatalf("AddChapter(ch1) error = %v", err)
	}
	if builder.Chapters() != 2 {
		t.Errorf("Chapters() = %d, want 2", builder.Chapters())
	}

	out := string(builder.Build())

	if !strings.HasPrefix(out, "<!DOCTYPE html>\n<html lang=\"en\">\n") {
		t.Errorf("output should start with the page head, got %q", out[:40])
	}
	if !strings.HasSuffix(out, "  </body>\n</html>\n") {
		t.Errorf("output should end with the closing block")
	}
	if !strings.Contains(out, "<title>Tom &amp; Jerry</title>") {
		t.Errorf("title should be escaped in output")
	}
	if !strings.Contains(out, `<link rel="stylesheet" href="style.css">`) {
		t.Errorf("output should link style.css")
	}

	ch2 := strings.Index(out, `<a id="ch2"></a>`)
	ch1 := strings.Index(out, `<a id="ch1"></a>`)
	if ch2 < 0 || ch1 < 0 || ch2 > ch1 {
		t.Fatalf("chapter anchors out of order: ch2 at %d, ch1 at %d", ch2, ch1)
	}
	if strings.Index(out, "Chapter Two") > ch1 {
		t.Errorf("chapter two content should come before the ch1 anchor")
	}
	if strings.Contains(out, "<head><title>One") || strings.Contains(out, "book.css") {
		t.Errorf("chapter heads should not be merged")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(out))
	if err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	var hrefs []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		hrefs = append(hrefs, href)
	})
	wantHrefs := []string{"#ch1", "#ch2", "#sec", "#top", "http://example.com/page"}
	if strings.Join(hrefs, " ") != strings.Join(wantHrefs, " ") {
		t.Errorf("hrefs = %v, want %v", hrefs, wantHrefs)
	}
	if src, _ := doc.Find("img").Attr("src"); src != "images/front.jpg" {
		t.Errorf("img src = %q, want images/front.jpg", src)
	}
}

func TestBookBuilder_BuildIsRepeatable(t *testing.T) {
	items := testItems()
	builder := NewBookBuilder(items, "Repeat")
	if err := builder.AddChapter(items["chapter1.xhtml"], strings.NewReader(testChapter1)); err != nil {
		t.Fatalf("AddChapter error = %v", err)
	}
	first := string(builder.Build())
	second := string(builder.Build())
	if first != second {
		t.Errorf("Build() should not change between calls")
	}
	if strings.Count(first, "</html>") != 1 {
		t.Errorf("expected a single closing block, got %d", strings.Count(first, "</html>"))
	}
}

func TestBookBuilder_Empty(t *testing.T) {
	out := string(NewBookBuilder(testItems(), "").Build())
	if strings.Contains(out, `<a id=`) {
		t.Errorf("empty builder should emit no chapter anchors")
	}
	if !strings.Contains(out, "<title></title>") {
		t.Errorf("empty title should render an empty title element")
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestBookBuilder_ReadError(t *testing.T) {
	builder := NewBookBuilder(testItems(), "x")
	err := builder.AddChapter(epub.ManifestItem{ID: "bad", FileName: "bad.xhtml"}, failingReader{})
	if err == nil {
		t.Fatal("expected error from failing reader")
	}
	if !strings.Contains(err.Error(), "bad.xhtml") {
		t.Errorf("error should name the file: %v", err)
	}
	if builder.Chapters() != 0 {
		t.Errorf("failed chapter should not be counted")
	}
}
