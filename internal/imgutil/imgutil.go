// Package imgutil holds the encoding and text helpers shared by the capture
// and compare packages.
package imgutil

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomedium"
)

// Encode writes img to w. format is "png" or "jpeg"; quality only applies to jpeg.
func Encode(w io.Writer, img image.Image, format string, quality int) error {
	switch format {
	case "png":
		return png.Encode(w, img)
	case "jpeg", "jpg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	default:
		return fmt.Errorf("unsupported image format %q", format)
	}
}

// FormatFromPath maps a file extension to an encoder name. Unknown
// extensions fall back to png.
func FormatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "jpeg"
	default:
		return "png"
	}
}

// ToRGBA returns img as an *image.RGBA anchored at the origin. The result
// is always a fresh copy so two calls with equally sized inputs have
// comparable Pix slices.
func ToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

var (
	fontOnce sync.Once
	fontTTF  *truetype.Font
	fontErr  error
)

// Face returns a font face of the given point size backed by the embedded Go
// Medium typeface.
func Face(size float64) (font.Face, error) {
	fontOnce.Do(func() {
		fontTTF, fontErr = truetype.Parse(gomedium.TTF)
	})
	if fontErr != nil {
		return nil, fmt.Errorf("failed to parse embedded font: %w", fontErr)
	}
	return truetype.NewFace(fontTTF, &truetype.Options{Size: size}), nil
}
