package converter

import (
	"fmt"
	"strings"
)

// StyleConfig holds the display preferences rendered into each book's style.css.
type StyleConfig struct {
	BackgroundColor  string `yaml:"background_color"`
	FontColor        string `yaml:"font_color"`
	FontSize         string `yaml:"font_size"`
	TopMargin        string `yaml:"top_margin"`
	SideMargin       string `yaml:"side_margin"`
	ParagraphSpacing string `yaml:"paragraph_spacing"`
	LinkFontColor    string `yaml:"link_font_color"`
	TextAlign        string `yaml:"text_align"`
}

// DefaultStyle returns the base display preferences.
func DefaultStyle() StyleConfig {
	return StyleConfig{
		BackgroundColor:  "#ffffff",
		FontColor:        "#000000",
		FontSize:         "16pt",
		TopMargin:        "0.5em",
		SideMargin:       "2em",
		ParagraphSpacing: "1em",
		LinkFontColor:    "#0000ff",
		TextAlign:        "left",
	}
}

// WithDefaults fills empty fields from DefaultStyle.
func (s StyleConfig) WithDefaults() StyleConfig {
	d := DefaultStyle()
	for _, f := range []struct{ v, def *string }{
		{&s.BackgroundColor, &d.BackgroundColor},
		{&s.FontColor, &d.FontColor},
		{&s.FontSize, &d.FontSize},
		{&s.TopMargin, &d.TopMargin},
		{&s.SideMargin, &d.SideMargin},
		{&s.ParagraphSpacing, &d.ParagraphSpacing},
		{&s.LinkFontColor, &d.LinkFontColor},
		{&s.TextAlign, &d.TextAlign},
	} {
		if strings.TrimSpace(*f.v) == "" {
			*f.v = *f.def
		}
	}
	return s
}

// fontFaces are the Latin Modern Sans faces served by the library under /fonts.
var fontFaces = []struct {
	weight, style, file string
}{
	{"normal", "normal", "lmsans10-regular.otf"},
	{"normal", "italic", "lmsans10-oblique.otf"},
	{"bold", "normal", "lmsans10-bold.otf"},
	{"bold", "italic", "lmsans10-boldoblique.otf"},
}

// Stylesheet renders the CSS written next to every book.html.
func (s StyleConfig) Stylesheet() string {
	s = s.WithDefaults()

	var b strings.Builder
	for _, f := range fontFaces {
		fmt.Fprintf(&b, `@font-face {
    font-family: "Latin Modern Sans";
    font-weight: %s;
    font-style: %s;
    src: url('/fonts/latin-modern/%s') format('opentype');
}

`, f.weight, f.style, f.file)
	}

	fmt.Fprintf(&b, `body {
    font-family: "Latin Modern Sans", Barlow, Helvetica, sans-serif;
    font-size: %s;
    margin: %s %s;
    color: %s;
    background: %s;
    text-align: %s;
}

`, s.FontSize, s.TopMargin, s.SideMargin, s.FontColor, s.BackgroundColor, s.TextAlign)

	for _, h := range []struct{ tag, size string }{{"h1", "20pt"}, {"h2", "18pt"}, {"h3", "16pt"}} {
		fmt.Fprintf(&b, "%s {\n    font-size: %s;\n    font-weight: bold;\n}\n\n", h.tag, h.size)
	}

	fmt.Fprintf(&b, `p {
    margin-bottom: %s;
}

ul.no-bullets {
    list-style-type: none;
    padding: 0;
    margin: 0em 1em;
}

a:link, a:active, a:visited, a:hover {
    color: %s;
}
`, s.ParagraphSpacing, s.LinkFontColor)

	return b.String()
}
