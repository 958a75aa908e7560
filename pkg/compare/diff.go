package compare

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/fogleman/gg"
	"github.com/root4loot/pagediff/internal/imgutil"
)

// DiffOptions controls how diff artifacts look.
type DiffOptions struct {
	Tolerance int  `validate:"min=0,max=255"` // Per-channel difference below or at which pixels count as equal
	Quality   int  `validate:"min=1,max=100"` // JPEG quality when the artifact path ends in .jpg
	Caption   bool // Draw the changed pixel count in the top left corner
}

func NewDiffOptions() DiffOptions {
	return DiffOptions{
		Tolerance: 100,
		Quality:   90,
		Caption:   true,
	}
}

// DiffStats describes the changed region of a diff.
type DiffStats struct {
	Changed int             // Number of pixels beyond the tolerance
	Bounds  image.Rectangle // Bounding box of all changed pixels
}

var (
	changedColor = color.RGBA{R: 255, A: 255}
	boxColor     = color.RGBA{R: 255, G: 0, B: 128, A: 255}
)

// DiffImage overlays the changed pixels of b relative to a. Unchanged pixels
// are drawn as a faded copy of b and changed ones in solid red. The result
// covers the larger of the two inputs on each axis; pixels present in only
// one input count as changed.
func DiffImage(a, b image.Image, opts DiffOptions) (*image.RGBA, DiffStats) {
	ra, rb := imgutil.ToRGBA(a), imgutil.ToRGBA(b)
	w := max(ra.Rect.Dx(), rb.Rect.Dx())
	h := max(ra.Rect.Dy(), rb.Rect.Dy())
	out := image.NewRGBA(image.Rect(0, 0, w, h))

	var stats DiffStats
	inA, inB := ra.Rect, rb.Rect

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p := image.Pt(x, y)
			if !p.In(inA) || !p.In(inB) {
				out.SetRGBA(x, y, changedColor)
				stats.add(p)
				continue
			}

			ca, cb := ra.RGBAAt(x, y), rb.RGBAAt(x, y)
			if exceeds(ca, cb, opts.Tolerance) {
				out.SetRGBA(x, y, changedColor)
				stats.add(p)
				continue
			}
			out.SetRGBA(x, y, fade(cb))
		}
	}

	return out, stats
}

func (s *DiffStats) add(p image.Point) {
	px := image.Rectangle{Min: p, Max: p.Add(image.Pt(1, 1))}
	if s.Changed == 0 {
		s.Bounds = px
	} else {
		s.Bounds = s.Bounds.Union(px)
	}
	s.Changed++
}

func exceeds(a, b color.RGBA, tolerance int) bool {
	return absDiff(a.R, b.R) > tolerance ||
		absDiff(a.G, b.G) > tolerance ||
		absDiff(a.B, b.B) > tolerance
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

// fade blends c towards white so the highlighted pixels stand out.
func fade(c color.RGBA) color.RGBA {
	blend := func(v uint8) uint8 { return uint8((int(v) + 3*255) / 4) }
	return color.RGBA{R: blend(c.R), G: blend(c.G), B: blend(c.B), A: 255}
}

// RenderDiff writes the diff of a and b to outputPath. The encoding follows
// the file extension (.png or .jpg/.jpeg) and the parent directory is created
// if needed.
func RenderDiff(a, b image.Image, outputPath string, opts DiffOptions) error {
	img, stats := DiffImage(a, b, opts)

	if stats.Changed > 0 {
		if err := annotate(img, stats, opts); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), os.ModePerm); err != nil {
		return fmt.Errorf("creating diff directory: %w", err)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("creating diff file: %w", err)
	}

	if err := imgutil.Encode(f, img, imgutil.FormatFromPath(outputPath), opts.Quality); err != nil {
		f.Close()
		return fmt.Errorf("encoding diff %s: %w", outputPath, err)
	}
	return f.Close()
}

// annotate strokes the bounding box of the changed region and, if enabled,
// draws a caption. It draws in place so the dimensions never change.
func annotate(img *image.RGBA, stats DiffStats, opts DiffOptions) error {
	dc := gg.NewContextForRGBA(img)

	r := stats.Bounds
	dc.SetColor(boxColor)
	dc.SetLineWidth(2)
	dc.DrawRectangle(float64(r.Min.X), float64(r.Min.Y), float64(r.Dx()), float64(r.Dy()))
	dc.Stroke()

	if !opts.Caption {
		return nil
	}

	face, err := imgutil.Face(13)
	if err != nil {
		return err
	}
	dc.SetFontFace(face)

	text := fmt.Sprintf("%d pixels changed", stats.Changed)
	tw, th := dc.MeasureString(text)
	const pad = 6
	dc.SetColor(color.RGBA{A: 200})
	dc.DrawRectangle(0, 0, tw+pad*2, th+pad*2)
	dc.Fill()
	dc.SetColor(color.White)
	dc.DrawStringAnchored(text, pad, pad, 0, 1)
	return nil
}
