package capture

import "strings"

func isReserved(r rune) bool {
	return r == ':' || r == '/' || r == '.'
}

// Sanitize turns a URL into the filename stem used for its capture. Every
// run of ':', '/' and '.' becomes a single '_', so "https://a.com/x" maps to
// "https_a_com_x". The mapping is deterministic so the same URL lines up
// across runs.
func Sanitize(rawURL string) string {
	var b strings.Builder
	b.Grow(len(rawURL))

	inRun := false
	for _, r := range rawURL {
		if isReserved(r) {
			if !inRun {
				b.WriteByte('_')
			}
			inRun = true
			continue
		}
		inRun = false
		b.WriteRune(r)
	}
	return b.String()
}

// Filename returns the full capture filename for rawURL in the given format.
func Filename(rawURL string, format Format) string {
	return Sanitize(rawURL) + "." + format.Ext()
}
