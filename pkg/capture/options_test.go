package capture

import "testing"

func TestDefaultOptionsValid(t *testing.T) {
	if err := NewOptions().Validate(); err != nil {
		t.Fatalf("Default options should be valid: %v", err)
	}
	if err := (BrowserOptions{}).Validate(); err != nil {
		t.Fatalf("Empty browser options should be valid: %v", err)
	}
}

func TestOptionsValidation(t *testing.T) {
	cases := map[string]func(o *Options){
		"zero width":       func(o *Options) { o.Width = 0 },
		"zero timeout":     func(o *Options) { o.Timeout = 0 },
		"bad format":       func(o *Options) { o.Format = "gif" },
		"quality too high": func(o *Options) { o.Quality = 101 },
		"no workers":       func(o *Options) { o.Concurrency = 0 },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			opts := NewOptions()
			mutate(opts)
			if err := opts.Validate(); err == nil {
				t.Errorf("Expected validation error for %s", name)
			}
		})
	}

	if err := (BrowserOptions{RemoteURL: "not a url"}).Validate(); err == nil {
		t.Error("Expected invalid remote URL to be rejected")
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"png": PNG, "PNG": PNG, "jpeg": JPEG, "jpg": JPEG} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseFormat("webp"); err == nil {
		t.Error("Expected webp to be rejected")
	}
}
