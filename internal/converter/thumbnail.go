package converter

import (
	"fmt"
	"image"
	"os"

	"github.com/disintegration/imaging"
)

const (
	// ThumbnailName is the file written next to book.html when a cover is found.
	ThumbnailName = "thumb.jpg"

	defaultThumbnailWidth   = 300
	defaultThumbnailQuality = 85
	maxCoverPixels          = 100 * 1000 * 1000
)

// WriteThumbnail scales the image at src down to width pixels wide and
// saves it as JPEG at dst. Smaller images are re-encoded without scaling.
func WriteThumbnail(src, dst string, width int) error {
	if width <= 0 {
		width = defaultThumbnailWidth
	}

	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open cover: %w", err)
	}
	cfg, _, err := image.DecodeConfig(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("failed to read cover header: %w", err)
	}
	if pixels := uint64(cfg.Width) * uint64(cfg.Height); pixels > maxCoverPixels {
		return fmt.Errorf("cover too large to decode: %dx%d", cfg.Width, cfg.Height)
	}

	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("failed to decode cover: %w", err)
	}
	if img.Bounds().Dx() > width {
		img = imaging.Resize(img, width, 0, imaging.Lanczos)
	}

	if err := imaging.Save(img, dst, imaging.JPEGQuality(defaultThumbnailQuality)); err != nil {
		return fmt.Errorf("failed to write thumbnail: %w", err)
	}
	return nil
}
