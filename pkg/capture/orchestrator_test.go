package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/root4loot/pagediff/pkg/metrics"
)

func decodeFile(t *testing.T, path string) image.Config {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open %s: %v", path, err)
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		t.Fatalf("%s is not a valid image: %v", path, err)
	}
	return cfg
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Failed to list %s: %v", dir, err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestCaptureAllPartialSuccess(t *testing.T) {
	b := newFakeBrowser(map[string]fakePage{"https://example.com": {height: 800}})
	outDir := filepath.Join(t.TempDir(), "nested", "captures")
	m := metrics.New()

	report, err := NewOrchestrator(b, testOptions()).WithMetrics(m).CaptureAll(context.Background(),
		[]string{"https://example.com", "https://unreachable.invalid"}, outDir)
	if err != nil {
		t.Fatalf("CaptureAll failed: %v", err)
	}

	if len(report.Saved) != 1 || len(report.Failed) != 1 {
		t.Fatalf("Expected 1 saved and 1 failed, got %+v", report)
	}
	if report.Failed[0].URL != "https://unreachable.invalid" {
		t.Errorf("Unexpected failed URL %s", report.Failed[0].URL)
	}

	names := listDir(t, outDir)
	if len(names) != 1 || names[0] != "https_example_com.png" {
		t.Fatalf("Expected only https_example_com.png, got %v", names)
	}

	cfg := decodeFile(t, filepath.Join(outDir, "https_example_com.png"))
	if cfg.Width != 1200 {
		t.Errorf("Expected capture width 1200, got %d", cfg.Width)
	}

	if b.opened != 2 || b.closed != 2 {
		t.Errorf("Expected every tab to be closed, opened %d closed %d", b.opened, b.closed)
	}
	if got := testutil.ToFloat64(m.CapturesTotal.WithLabelValues(metrics.StatusFailed)); got != 1 {
		t.Errorf("Expected 1 failed capture metric, got %v", got)
	}
}

func TestCaptureAllRejectsCorruptImage(t *testing.T) {
	b := newFakeBrowser(map[string]fakePage{"https://broken.test": {height: 100, corrupt: true}})
	outDir := t.TempDir()

	report, err := NewOrchestrator(b, testOptions()).CaptureAll(context.Background(), []string{"https://broken.test"}, outDir)
	if err != nil {
		t.Fatalf("CaptureAll failed: %v", err)
	}

	var derr *DecodeError
	if len(report.Failed) != 1 || !errors.As(report.Failed[0].Err, &derr) {
		t.Fatalf("Expected a DecodeError, got %+v", report.Failed)
	}
	if names := listDir(t, outDir); len(names) != 0 {
		t.Errorf("Corrupt capture must not be written, found %v", names)
	}
}

func TestCaptureAllNameCollision(t *testing.T) {
	b := newFakeBrowser(map[string]fakePage{
		"https://a.com/x":  {height: 100},
		"https://a/com.x":  {height: 200},
		"https://b.com/y/": {height: 100},
	})
	outDir := t.TempDir()

	report, err := NewOrchestrator(b, testOptions()).CaptureAll(context.Background(),
		[]string{"https://a.com/x", "https://a/com.x", "https://b.com/y/"}, outDir)
	if err != nil {
		t.Fatalf("CaptureAll failed: %v", err)
	}

	if len(report.Saved) != 2 || len(report.Failed) != 1 {
		t.Fatalf("Expected 2 saved and 1 collision, got %+v", report)
	}
	if !errors.Is(report.Failed[0].Err, ErrNameCollision) || report.Failed[0].URL != "https://a/com.x" {
		t.Errorf("Expected the second URL to collide, got %+v", report.Failed[0])
	}

	cfg := decodeFile(t, filepath.Join(outDir, "https_a_com_x.png"))
	if cfg.Height != 100 {
		t.Errorf("Expected the first URL to keep the file, got height %d", cfg.Height)
	}
}

func TestCaptureAllConcurrent(t *testing.T) {
	pages := map[string]fakePage{}
	var urls []string
	for i := 0; i < 12; i++ {
		u := fmt.Sprintf("https://site%d.test", i)
		pages[u] = fakePage{height: float64(100 + i)}
		urls = append(urls, u)
	}
	b := newFakeBrowser(pages)
	opts := testOptions()
	opts.Concurrency = 4
	outDir := t.TempDir()

	report, err := NewOrchestrator(b, opts).CaptureAll(context.Background(), urls, outDir)
	if err != nil {
		t.Fatalf("CaptureAll failed: %v", err)
	}
	if len(report.Saved) != len(urls) {
		t.Fatalf("Expected %d saved captures, got %d (%+v)", len(urls), len(report.Saved), report.Failed)
	}
	for i, s := range report.Saved {
		if s.URL != urls[i] {
			t.Errorf("Report order differs from input at %d: %s", i, s.URL)
		}
	}
	if got := len(listDir(t, outDir)); got != len(urls) {
		t.Errorf("Expected %d files, got %d", len(urls), got)
	}
}

func TestCaptureAllOverwrites(t *testing.T) {
	b := newFakeBrowser(map[string]fakePage{"https://example.com": {height: 100}})
	outDir := t.TempDir()
	o := NewOrchestrator(b, testOptions())

	for i := 0; i < 2; i++ {
		report, err := o.CaptureAll(context.Background(), []string{"https://example.com"}, outDir)
		if err != nil || len(report.Saved) != 1 {
			t.Fatalf("Run %d failed: %v %+v", i, err, report)
		}
	}
	if names := listDir(t, outDir); len(names) != 1 {
		t.Errorf("Expected the rerun to overwrite, got %v", names)
	}
}

func TestCaptureAllImprint(t *testing.T) {
	b := newFakeBrowser(map[string]fakePage{"https://example.com": {height: 300}})
	opts := testOptions()
	opts.Imprint = true
	outDir := t.TempDir()

	report, err := NewOrchestrator(b, opts).CaptureAll(context.Background(), []string{"https://example.com"}, outDir)
	if err != nil || len(report.Saved) != 1 {
		t.Fatalf("CaptureAll failed: %v %+v", err, report)
	}

	cfg := decodeFile(t, report.Saved[0].Path)
	if cfg.Width != 1200 {
		t.Errorf("Imprint must keep the width, got %d", cfg.Width)
	}
	if want := 300 + imprintPadding*2 + imprintBorder; cfg.Height != want {
		t.Errorf("Expected imprinted height %d, got %d", want, cfg.Height)
	}
}

func TestCaptureAllAvoidDuplicates(t *testing.T) {
	b := newFakeBrowser(map[string]fakePage{
		"https://one.test": {height: 200, noisy: true},
		"https://two.test": {height: 200, noisy: true},
	})
	opts := testOptions()
	opts.Width = 200
	opts.AvoidDuplicates = true
	outDir := t.TempDir()

	report, err := NewOrchestrator(b, opts).CaptureAll(context.Background(), []string{"https://one.test", "https://two.test"}, outDir)
	if err != nil {
		t.Fatalf("CaptureAll failed: %v", err)
	}
	if len(report.Saved) != 1 || len(report.Duplicates) != 1 {
		t.Fatalf("Expected 1 saved and 1 duplicate, got %+v", report)
	}
	if report.Duplicates[0].Original != "https://one.test" {
		t.Errorf("Expected duplicate of https://one.test, got %s", report.Duplicates[0].Original)
	}
}

func TestCaptureAllTabFailure(t *testing.T) {
	b := newFakeBrowser(nil)
	b.tabErr = errors.New("target closed")

	report, err := NewOrchestrator(b, testOptions()).CaptureAll(context.Background(), []string{"https://example.com"}, t.TempDir())
	if err != nil {
		t.Fatalf("CaptureAll failed: %v", err)
	}
	var cerr *CaptureError
	if len(report.Failed) != 1 || !errors.As(report.Failed[0].Err, &cerr) || cerr.Stage != StageTab {
		t.Fatalf("Expected a tab stage failure, got %+v", report.Failed)
	}
}

func TestCaptureAllUnwritableOutput(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := NewOrchestrator(newFakeBrowser(nil), testOptions()).CaptureAll(context.Background(), []string{"https://example.com"}, filepath.Join(file, "out"))
	if err == nil {
		t.Fatal("Expected an error when the output directory cannot be created")
	}
}

func TestCaptureAllCancelled(t *testing.T) {
	b := newFakeBrowser(map[string]fakePage{"https://slow.test": {hang: true}, "https://next.test": {height: 10}})
	opts := testOptions()
	opts.Timeout = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	report, err := NewOrchestrator(b, opts).CaptureAll(ctx, []string{"https://slow.test", "https://next.test"}, t.TempDir())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected deadline error, got %v", err)
	}
	if len(report.Failed) != 2 {
		t.Errorf("Expected both URLs to be reported as failed, got %+v", report)
	}
}
