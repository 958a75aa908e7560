package capture

import (
	"sync"

	"github.com/glaslos/ssdeep"
	"github.com/root4loot/goutils/log"
)

type fingerprint struct {
	url  string
	hash string
}

// duplicateFilter remembers the fuzzy hashes of saved captures and flags
// new captures that are too similar to one of them.
type duplicateFilter struct {
	threshold int
	mu        sync.Mutex
	seen      []fingerprint
}

func newDuplicateFilter(threshold int) *duplicateFilter {
	return &duplicateFilter{threshold: threshold}
}

// check returns the URL of an earlier similar capture, or "" if data is new.
// New captures are remembered.
func (f *duplicateFilter) check(url string, data []byte) string {
	hash, err := ssdeep.FuzzyBytes(data)
	if err != nil {
		log.Debugf("Could not hash capture of %s: %v", url, err)
		return ""
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, fp := range f.seen {
		score, err := ssdeep.Distance(hash, fp.hash)
		if err != nil {
			continue
		}
		if score >= f.threshold {
			log.Debugf("%s is similar to %s with a score of %d", url, fp.url, score)
			return fp.url
		}
	}

	f.seen = append(f.seen, fingerprint{url: url, hash: hash})
	return ""
}
