package capture

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Format is the raster encoding requested from the browser.
type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpeg"
)

// Ext returns the file extension used for captures in this format.
func (f Format) Ext() string {
	if f == JPEG {
		return "jpg"
	}
	return "png"
}

// ParseFormat accepts png, jpeg or jpg (case insensitive).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "png":
		return PNG, nil
	case "jpeg", "jpg":
		return JPEG, nil
	}
	return "", fmt.Errorf("unknown capture format %q", s)
}

// Options controls how pages are captured and written.
type Options struct {
	Width              int           `validate:"min=1"`          // Viewport width in pixels
	MaxHeight          int           `validate:"gte=0"`          // Upper bound for the resized viewport height (0 = unbounded)
	Timeout            time.Duration `validate:"gt=0"`           // Navigation timeout, also bounds measure and capture
	Delay              time.Duration `validate:"gte=0"`          // Settle time between load and measurement
	Format             Format        `validate:"oneof=png jpeg"` // Capture encoding
	Quality            int           `validate:"min=1,max=100"`  // JPEG quality
	Concurrency        int           `validate:"min=1"`          // Number of tabs working at once
	Imprint            bool          // Add the page origin below the capture
	AvoidDuplicates    bool          // Skip captures similar to one already saved in this run
	DuplicateThreshold int           `validate:"min=1,max=100"` // ssdeep score at which two captures are duplicates
}

// NewOptions returns Options initialized with default values.
func NewOptions() *Options {
	return &Options{
		Width:              1200,
		MaxHeight:          16384,
		Timeout:            30 * time.Second,
		Format:             PNG,
		Quality:            90,
		Concurrency:        1,
		DuplicateThreshold: 96,
	}
}

// Validate checks the options against their constraints.
func (o *Options) Validate() error {
	return validate.Struct(o)
}

// BrowserOptions configures the browser session shared by a run.
type BrowserOptions struct {
	RemoteURL                string `validate:"omitempty,url"` // DevTools endpoint of an already running browser
	UserAgent                string // User agent override
	RespectCertificateErrors bool   // Fail on TLS errors instead of ignoring them
	UseHTTP2                 bool   // Leave HTTP2 enabled
	Stealth                  bool   // Open tabs with evasion scripts (rod only)
}

// Validate checks the options against their constraints.
func (o BrowserOptions) Validate() error {
	return validate.Struct(o)
}
