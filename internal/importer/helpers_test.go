package importer

import (
	"archive/zip"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/yuanying/unpub/internal/catalog"
	"github.com/yuanying/unpub/internal/converter"
)

const testContainerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

const testOPFTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<package version="2.0" xmlns="http://www.idpf.org/2007/opf">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>%s</dc:title>
    <dc:creator>%s</dc:creator>
    <dc:date>2020-01-01</dc:date>
  </metadata>
  <manifest>
    <item id="ch1" href="chapter1.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine>
    <itemref idref="ch1"/>
  </spine>
</package>`

const testChapter = `<html xmlns="http://www.w3.org/1999/xhtml"><head><title>c</title></head>
<body><p>Hello.</p></body></html>`

// writeEPUB writes a minimal valid archive to dir/name.
func writeEPUB(t *testing.T, dir, name, title, author string) string {
	t.Helper()
	return writeZip(t, dir, name, map[string]string{
		"mimetype":               "application/epub+zip",
		"META-INF/container.xml": testContainerXML,
		"OEBPS/content.opf":      fmt.Sprintf(testOPFTemplate, title, author),
		"OEBPS/chapter1.xhtml":   testChapter,
	})
}

// writeBrokenEPUB writes an archive without a container document.
func writeBrokenEPUB(t *testing.T, dir, name string) string {
	t.Helper()
	return writeZip(t, dir, name, map[string]string{
		"OEBPS/chapter1.xhtml": testChapter,
	})
}

func writeZip(t *testing.T, dir, name string, files map[string]string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", name, err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	for entry, content := range files {
		ew, err := w.Create(entry)
		if err != nil {
			t.Fatalf("failed to create entry %s: %v", entry, err)
		}
		if _, err := ew.Write([]byte(content)); err != nil {
			t.Fatalf("failed to write entry %s: %v", entry, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close zip: %v", err)
	}
	return path
}

type testEnv struct {
	library string
	staging string
	imp     *Importer
}

func newTestEnv(t *testing.T, workers int) *testEnv {
	t.Helper()
	base := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env := &testEnv{
		library: filepath.Join(base, "library"),
		staging: filepath.Join(base, "staging"),
	}
	env.imp = New(Options{
		LibraryDir: env.library,
		StagingDir: env.staging,
		Workers:    workers,
		Processor:  converter.NewProcessor(converter.ProcessOptions{Logger: logger}),
		Logger:     logger,
	}, catalog.New())
	return env
}
