package compare

import (
	"bytes"
	"image"
	"math"

	"github.com/root4loot/pagediff/internal/imgutil"
)

const (
	blockSize = 8

	// Stabilizing constants for 8-bit channels: (0.01*255)^2 and (0.03*255)^2.
	ssimC1 = 6.5025
	ssimC2 = 58.5225
)

// dissimilarity returns the structural dissimilarity (DSSIM) of two equally
// sized images: (1 - mean SSIM) / 2, where SSIM is computed per RGB channel
// over non-overlapping 8x8 blocks. Blocks at the right and bottom edges are
// partial so every pixel contributes. The result is 0 only for images with
// identical pixels.
func dissimilarity(a, b image.Image) float64 {
	ra, rb := imgutil.ToRGBA(a), imgutil.ToRGBA(b)
	if bytes.Equal(ra.Pix, rb.Pix) {
		return 0
	}

	w, h := ra.Rect.Dx(), ra.Rect.Dy()
	var sum float64
	var n int

	for by := 0; by < h; by += blockSize {
		for bx := 0; bx < w; bx += blockSize {
			bw, bh := min(blockSize, w-bx), min(blockSize, h-by)
			for ch := 0; ch < 3; ch++ {
				sum += blockSSIM(ra, rb, bx, by, bw, bh, ch)
				n++
			}
		}
	}

	score := (1 - sum/float64(n)) / 2
	if score <= 0 {
		// Pixels differ, so the pair must never come out as identical.
		return math.SmallestNonzeroFloat64
	}
	return score
}

// blockSSIM computes SSIM for one channel of the w x h block at (x0, y0).
func blockSSIM(a, b *image.RGBA, x0, y0, w, h, ch int) float64 {
	n := float64(w * h)

	var sumA, sumB float64
	for y := y0; y < y0+h; y++ {
		off := y*a.Stride + x0*4 + ch
		for x := 0; x < w; x++ {
			sumA += float64(a.Pix[off+x*4])
			sumB += float64(b.Pix[off+x*4])
		}
	}
	meanA, meanB := sumA/n, sumB/n

	var varA, varB, cov float64
	for y := y0; y < y0+h; y++ {
		off := y*a.Stride + x0*4 + ch
		for x := 0; x < w; x++ {
			da := float64(a.Pix[off+x*4]) - meanA
			db := float64(b.Pix[off+x*4]) - meanB
			varA += da * da
			varB += db * db
			cov += da * db
		}
	}
	varA /= n
	varB /= n
	cov /= n

	num := (2*meanA*meanB + ssimC1) * (2*cov + ssimC2)
	den := (meanA*meanA + meanB*meanB + ssimC1) * (varA + varB + ssimC2)
	return num / den
}
