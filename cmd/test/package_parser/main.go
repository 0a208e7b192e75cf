// Manual check for the package document parser.
//
// Usage:
//   go run ./cmd/test/package_parser/main.go <epub-file-path>
//
// Example:
//   go run ./cmd/test/package_parser/main.go ~/Downloads/sample.epub
//
// This program will:
// - Extract the EPUB into a temporary directory
// - Locate and parse the package document
// - Display metadata as it would be stored in books.yaml
// - Summarize the manifest by media class
// - Show spine order and the detected cover

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/yuanying/unpub/internal/epub"
	"gopkg.in/yaml.v3"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <epub-file-path>\n", os.Args[0])
		os.Exit(1)
	}
	if err := run(os.Args[1]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(epubPath string) error {
	fmt.Println("=== EPUB Package Parser Test ===")
	fmt.Printf("File: %s\n\n", epubPath)

	tmp, err := os.MkdirTemp("", "package_parser-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	root, err := epub.ExtractFile(epubPath, tmp)
	if err != nil {
		return fmt.Errorf("extracting: %w", err)
	}
	fmt.Printf("✓ Extracted to %s (id %s)\n", root, filepath.Base(root))

	pkgPath, err := epub.FindPackage(root)
	if err != nil {
		return err
	}
	rel, _ := filepath.Rel(root, pkgPath)
	fmt.Printf("Package: %s\n\n", rel)

	pkg, err := epub.OpenPackage(pkgPath, filepath.Base(root))
	if err != nil {
		return err
	}
	fmt.Println("✓ Package parsed successfully")

	fmt.Println("--- Metadata ---")
	out, err := yaml.Marshal(pkg.Metadata())
	if err != nil {
		return err
	}
	fmt.Print(string(out))

	fmt.Printf("\n--- Manifest ---\n")
	counts := make(map[epub.MediaClass]int)
	for _, item := range pkg.Items() {
		counts[item.Class()]++
	}
	fmt.Printf("Total items: %d\n", len(pkg.Items()))
	for _, class := range []epub.MediaClass{epub.MediaDocument, epub.MediaStylesheet, epub.MediaAsset} {
		fmt.Printf("  %-10s %d\n", class, counts[class])
	}

	fmt.Printf("\n--- Spine ---\n")
	n := 0
	err = pkg.EachSpineItem(func(item epub.ManifestItem) error {
		n++
		fmt.Printf("  %2d. %-20s %s (%s)\n", n, item.ID, item.FileName, item.Class())
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Printf("\n--- Cover ---\n")
	if cover := pkg.DetectCover(); cover != nil {
		fmt.Printf("  %s (%s, found by %s)\n", cover.Item.FileName, cover.Item.MediaType, cover.DetectionMethod)
	} else {
		fmt.Println("  none")
	}
	return nil
}
