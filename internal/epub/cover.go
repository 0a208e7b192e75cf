package epub

import (
	"strings"
)

// CoverInfo holds information about the detected cover image.
type CoverInfo struct {
	Item            ManifestItem
	DetectionMethod string // "properties", "meta", "filename"
}

// DetectCover detects the cover image from the manifest using multiple methods.
// Methods are tried in priority order:
//  1. properties="cover-image" (EPUB 3.0)
//  2. meta name="cover" (EPUB 2.0)
//  3. filename pattern (basename contains "cover", case-insensitive, SVG excluded)
//
// Returns nil if no cover image is found.
func (p *Package) DetectCover() *CoverInfo {
	for _, item := range p.items {
		if !isRasterImage(item.MediaType) {
			continue
		}
		for _, prop := range item.Properties {
			if prop == "cover-image" {
				return &CoverInfo{Item: item, DetectionMethod: "properties"}
			}
		}
	}

	if p.coverID != "" {
		if item, ok := p.Item(p.coverID); ok && isRasterImage(item.MediaType) {
			return &CoverInfo{Item: item, DetectionMethod: "meta"}
		}
	}

	for _, item := range p.items {
		if !isRasterImage(item.MediaType) {
			continue
		}
		if strings.Contains(strings.ToLower(item.BaseName()), "cover") {
			return &CoverInfo{Item: item, DetectionMethod: "filename"}
		}
	}

	return nil
}

// isRasterImage checks if a media type is a raster image (SVG excluded).
func isRasterImage(mediaType string) bool {
	if mediaType == "image/svg+xml" {
		return false
	}
	return strings.HasPrefix(mediaType, "image/")
}
