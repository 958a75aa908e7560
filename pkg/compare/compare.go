// Package compare scores the visual difference between two captures of the
// same page and renders diff artifacts for pages that changed.
package compare

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// Verdict is the outcome of comparing two images.
type Verdict int

const (
	Identical Verdict = iota
	SizeMismatch
	ContentMismatch
)

func (v Verdict) String() string {
	switch v {
	case Identical:
		return "identical"
	case SizeMismatch:
		return "size_mismatch"
	case ContentMismatch:
		return "content_mismatch"
	}
	return fmt.Sprintf("verdict(%d)", int(v))
}

// MaxScore is the score reported for images that cannot be compared pixel
// for pixel because their dimensions differ.
const MaxScore = 1.0

// Result is the comparison of one pair of images.
type Result struct {
	Filename string
	Score    float64
	Verdict  Verdict
}

// Changed reports whether the pair differs in any way.
func (r Result) Changed() bool {
	return r.Verdict != Identical
}

// DecodeError is returned when an input is not a valid image.
type DecodeError struct {
	Name string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %s: %v", e.Name, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Compare scores two encoded images. Dimensions are checked first from the
// image headers; only equally sized images are fully decoded.
func Compare(a, b []byte) (Result, error) {
	res, _, _, err := compareEncoded("first image", a, "second image", b)
	return res, err
}

// CompareImages scores two decoded images.
func CompareImages(a, b image.Image) Result {
	if a.Bounds().Size() != b.Bounds().Size() {
		return Result{Score: MaxScore, Verdict: SizeMismatch}
	}
	return scored(dissimilarity(a, b))
}

func scored(score float64) Result {
	if score == 0 {
		return Result{Score: 0, Verdict: Identical}
	}
	return Result{Score: score, Verdict: ContentMismatch}
}

// compareEncoded returns the decoded images alongside the result when the
// sizes matched, so a diff can be rendered without decoding twice.
func compareEncoded(nameA string, a []byte, nameB string, b []byte) (Result, image.Image, image.Image, error) {
	cfgA, _, err := image.DecodeConfig(bytes.NewReader(a))
	if err != nil {
		return Result{}, nil, nil, &DecodeError{Name: nameA, Err: err}
	}
	cfgB, _, err := image.DecodeConfig(bytes.NewReader(b))
	if err != nil {
		return Result{}, nil, nil, &DecodeError{Name: nameB, Err: err}
	}
	if cfgA.Width != cfgB.Width || cfgA.Height != cfgB.Height {
		return Result{Score: MaxScore, Verdict: SizeMismatch}, nil, nil, nil
	}

	imgA, _, err := image.Decode(bytes.NewReader(a))
	if err != nil {
		return Result{}, nil, nil, &DecodeError{Name: nameA, Err: err}
	}
	imgB, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return Result{}, nil, nil, &DecodeError{Name: nameB, Err: err}
	}

	return scored(dissimilarity(imgA, imgB)), imgA, imgB, nil
}
