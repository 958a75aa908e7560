package capture

import (
	"context"
	"errors"
	"fmt"
)

// Stage names the step of the capture protocol that failed.
type Stage string

const (
	StageTab        Stage = "open tab"
	StageViewport   Stage = "set viewport"
	StageNavigate   Stage = "navigate"
	StageMeasure    Stage = "measure height"
	StageResize     Stage = "resize viewport"
	StageScreenshot Stage = "screenshot"
)

var (
	// ErrEmptyCapture is returned when the browser hands back no image data.
	ErrEmptyCapture = errors.New("browser returned an empty screenshot")

	// ErrNameCollision is reported for a URL whose sanitized filename was
	// already claimed by an earlier URL of the same run.
	ErrNameCollision = errors.New("sanitized filename already in use")

	// ErrNoHeight is returned when the page reports a non-positive height.
	ErrNoHeight = errors.New("page reported no usable height")
)

// CaptureError is a per-URL failure. It never aborts the rest of a run.
type CaptureError struct {
	URL   string
	Stage Stage
	Err   error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.URL, e.Stage, e.Err)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was caused by a deadline.
func (e *CaptureError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// DecodeError is returned when captured bytes are not a well formed image.
// Nothing is written for such a capture.
type DecodeError struct {
	URL string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: invalid image data: %v", e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
