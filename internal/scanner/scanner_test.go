package scanner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"spacesaver/internal/catalog"
	"spacesaver/internal/probe"
)

func fakeFFProbe(t *testing.T, dir, codec string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell-script fake ffprobe not supported on windows")
	}
	script := filepath.Join(dir, "fake-ffprobe.sh")
	counter := filepath.Join(dir, "probe_calls.log")
	body := "#!/bin/sh\necho called >> " + counter + "\ncat <<'EOF'\n" +
		`{"streams":[{"index":0,"codec_name":"` + codec + `","codec_type":"video","width":1920,"height":1080,"duration":"10.000","bit_rate":"3000000"}],"format":{"duration":"10.000","size":"12"}}` +
		"\nEOF\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	return script
}

func probeCallCount(t *testing.T, dir string) int {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "probe_calls.log"))
	if errors.Is(err, os.ErrNotExist) {
		return 0
	}
	if err != nil {
		t.Fatal(err)
	}
	return len(strings.Split(strings.TrimSpace(string(data)), "\n"))
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestCatalog(t *testing.T) *catalog.Store {
	t.Helper()
	store, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("catalog.Open failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestScanner(t *testing.T, store *catalog.Store, roots []string, codec string) (*Scanner, string) {
	t.Helper()
	probeDir := t.TempDir()
	script := fakeFFProbe(t, probeDir, codec)
	sc := New(Config{
		Roots:          roots,
		RescanInterval: time.Hour,
		Policy:         catalog.ClassifyPolicy{TargetCodec: "hevc"},
	}, store, probe.New(script), testLogger())
	t.Cleanup(sc.Stop)
	return sc, probeDir
}

func TestCategoryForRoot(t *testing.T) {
	if got := categoryForRoot("/media/tv"); got != catalog.CategoryTV {
		t.Fatalf("expected tv category, got %s", got)
	}
	if got := categoryForRoot("/media/movies"); got != catalog.CategoryMovie {
		t.Fatalf("expected movie category, got %s", got)
	}
}

func TestScanInsertsAndClassifiesPending(t *testing.T) {
	dir := t.TempDir()
	moviesDir := filepath.Join(dir, "movies")
	if err := os.MkdirAll(moviesDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(moviesDir, "movie.mkv"), []byte("source bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := openTestCatalog(t)
	sc, _ := newTestScanner(t, store, []string{moviesDir}, "h264")

	ctx := context.Background()
	summary, err := sc.Scan(ctx)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if summary.Inserted != 1 || summary.Classified != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	entry, err := store.GetByPath(ctx, filepath.Join(moviesDir, "movie.mkv"))
	if err != nil {
		t.Fatal(err)
	}
	if entry.State != catalog.StatePending {
		t.Fatalf("expected PENDING, got %s", entry.State)
	}
	if entry.Category != catalog.CategoryMovie {
		t.Fatalf("expected movie category, got %s", entry.Category)
	}
}

func TestScanClassifiesSkipWhenAlreadyTargetCodec(t *testing.T) {
	dir := t.TempDir()
	moviesDir := filepath.Join(dir, "movies")
	if err := os.MkdirAll(moviesDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(moviesDir, "movie.mkv"), []byte("source bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := openTestCatalog(t)
	sc, _ := newTestScanner(t, store, []string{moviesDir}, "hevc")

	ctx := context.Background()
	if _, err := sc.Scan(ctx); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	entry, err := store.GetByPath(ctx, filepath.Join(moviesDir, "movie.mkv"))
	if err != nil {
		t.Fatal(err)
	}
	if entry.State != catalog.StateSkip {
		t.Fatalf("expected SKIP, got %s", entry.State)
	}
}

func TestScanIgnoresNonMediaExtensions(t *testing.T) {
	dir := t.TempDir()
	moviesDir := filepath.Join(dir, "movies")
	if err := os.MkdirAll(moviesDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(moviesDir, "notes.txt"), []byte("not media"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := openTestCatalog(t)
	sc, _ := newTestScanner(t, store, []string{moviesDir}, "h264")

	ctx := context.Background()
	summary, err := sc.Scan(ctx)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if summary.Inserted != 0 {
		t.Fatalf("expected no inserts, got %+v", summary)
	}
}

func TestScanSkipsUnchangedFileOnSecondPass(t *testing.T) {
	dir := t.TempDir()
	moviesDir := filepath.Join(dir, "movies")
	if err := os.MkdirAll(moviesDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(moviesDir, "movie.mkv"), []byte("source bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := openTestCatalog(t)
	sc, probeDir := newTestScanner(t, store, []string{moviesDir}, "h264")

	ctx := context.Background()
	if _, err := sc.Scan(ctx); err != nil {
		t.Fatalf("first Scan failed: %v", err)
	}
	if got := probeCallCount(t, probeDir); got != 1 {
		t.Fatalf("expected 1 probe call after first scan, got %d", got)
	}

	if _, err := sc.Scan(ctx); err != nil {
		t.Fatalf("second Scan failed: %v", err)
	}
	if got := probeCallCount(t, probeDir); got != 1 {
		t.Fatalf("expected no additional probe calls for unchanged file, got %d", got)
	}
}

func TestScanMarksVanishedFileGone(t *testing.T) {
	dir := t.TempDir()
	moviesDir := filepath.Join(dir, "movies")
	if err := os.MkdirAll(moviesDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(moviesDir, "movie.mkv")
	if err := os.WriteFile(path, []byte("source bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := openTestCatalog(t)
	sc, _ := newTestScanner(t, store, []string{moviesDir}, "h264")

	ctx := context.Background()
	if _, err := sc.Scan(ctx); err != nil {
		t.Fatalf("first Scan failed: %v", err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	summary, err := sc.Scan(ctx)
	if err != nil {
		t.Fatalf("second Scan failed: %v", err)
	}
	if summary.Gone != 1 {
		t.Fatalf("expected 1 gone entry, got %+v", summary)
	}

	entry, err := store.GetByPath(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if entry.State != catalog.StateGone {
		t.Fatalf("expected GONE, got %s", entry.State)
	}
}

func TestScanDeduplicatesIdenticalContent(t *testing.T) {
	dir := t.TempDir()
	moviesDir := filepath.Join(dir, "movies")
	subDir := filepath.Join(moviesDir, "sub")
	if err := os.MkdirAll(subDir, 0o755); err != nil {
		t.Fatal(err)
	}
	keptPath := filepath.Join(moviesDir, "a.mkv")
	dupePath := filepath.Join(subDir, "z.mkv")
	content := []byte("identical content for both copies")
	if err := os.WriteFile(keptPath, content, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dupePath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	store := openTestCatalog(t)
	sc, _ := newTestScanner(t, store, []string{moviesDir}, "h264")

	ctx := context.Background()
	summary, err := sc.Scan(ctx)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if summary.Deduplicated != 1 {
		t.Fatalf("expected 1 deduplicated entry, got %+v", summary)
	}

	if _, err := os.Stat(dupePath); !os.IsNotExist(err) {
		t.Fatalf("expected duplicate file removed from disk, err=%v", err)
	}
	if _, err := os.Stat(keptPath); err != nil {
		t.Fatalf("expected kept file to remain: %v", err)
	}

	dupeEntry, err := store.GetByPath(ctx, dupePath)
	if err != nil {
		t.Fatal(err)
	}
	if dupeEntry.State != catalog.StateGone {
		t.Fatalf("expected duplicate entry GONE, got %s", dupeEntry.State)
	}

	keptEntry, err := store.GetByPath(ctx, keptPath)
	if err != nil {
		t.Fatal(err)
	}
	if keptEntry.State == catalog.StateGone {
		t.Fatal("expected kept entry to remain live")
	}
}
