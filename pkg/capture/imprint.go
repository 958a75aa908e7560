package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"github.com/root4loot/goutils/urlutil"
	"github.com/root4loot/pagediff/internal/imgutil"
)

const (
	imprintPadding = 20
	imprintBorder  = 1
)

// Imprint adds a footer with the origin of rawURL below img and returns the
// encoded result. The width is unchanged.
func Imprint(img image.Image, rawURL string, format Format, quality int) ([]byte, error) {
	origin, err := urlutil.GetOrigin(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get origin of %s: %w", rawURL, err)
	}

	face, err := imgutil.Face(14)
	if err != nil {
		return nil, err
	}

	w := img.Bounds().Dx()
	h := img.Bounds().Dy() + imprintPadding*2 + imprintBorder
	dc := gg.NewContext(w, h)

	dc.DrawImage(img, 0, 0)

	yLine := float64(img.Bounds().Dy())
	dc.SetColor(color.White)
	dc.DrawRectangle(0, yLine, float64(w), float64(imprintPadding*2+imprintBorder))
	dc.Fill()
	dc.SetColor(color.Black)
	dc.SetLineWidth(float64(imprintBorder))
	dc.DrawLine(0, yLine, float64(w), yLine)
	dc.Stroke()
	dc.SetFontFace(face)
	dc.DrawStringAnchored(origin, float64(w)/2, yLine+float64(imprintPadding), 0.5, 0.5)

	var buf bytes.Buffer
	if err := imgutil.Encode(&buf, dc.Image(), string(format), quality); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
