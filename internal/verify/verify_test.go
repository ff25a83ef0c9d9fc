package verify

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"

	"spacesaver/internal/probe"
)

func fakeFFProbe(t *testing.T, dir string, codec string, durationS float64) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell-script fake ffprobe not supported on windows")
	}
	script := filepath.Join(dir, "fake-ffprobe.sh")
	durationStr := strconv.FormatFloat(durationS, 'f', 3, 64)
	body := "#!/bin/sh\ncat <<'EOF'\n" + `{"streams":[{"index":0,"codec_name":"` + codec +
		`","codec_type":"video","width":1920,"height":1080,"duration":"` + durationStr +
		`","bit_rate":"2000000"}],"format":{"duration":"` + durationStr + `","size":"50"}}` + "\nEOF\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	return script
}

func TestOutputAcceptsMatchingCandidate(t *testing.T) {
	dir := t.TempDir()
	candidate := filepath.Join(dir, "candidate.mkv")
	if err := os.WriteFile(candidate, []byte("smaller output"), 0o644); err != nil {
		t.Fatal(err)
	}
	script := fakeFFProbe(t, dir, "hevc", 100)

	_, ok, reason := Output(context.Background(), probe.New(script), candidate, Criteria{
		TargetCodec:       "hevc",
		OriginalSizeBytes: 1000,
		OriginalDurationS: 100,
		DurationTolerance: 1.0,
	})
	if !ok {
		t.Fatalf("expected acceptance, got rejection: %s", reason)
	}
}

func TestOutputRejectsWrongCodec(t *testing.T) {
	dir := t.TempDir()
	candidate := filepath.Join(dir, "candidate.mkv")
	if err := os.WriteFile(candidate, []byte("smaller output"), 0o644); err != nil {
		t.Fatal(err)
	}
	script := fakeFFProbe(t, dir, "h264", 100)

	_, ok, reason := Output(context.Background(), probe.New(script), candidate, Criteria{
		TargetCodec:       "hevc",
		OriginalSizeBytes: 1000,
		OriginalDurationS: 100,
		DurationTolerance: 1.0,
	})
	if ok {
		t.Fatal("expected rejection for mismatched codec")
	}
	if reason == "" {
		t.Fatal("expected a rejection reason")
	}
}

func TestOutputRejectsNotSmaller(t *testing.T) {
	dir := t.TempDir()
	candidate := filepath.Join(dir, "candidate.mkv")
	if err := os.WriteFile(candidate, []byte("this candidate is not actually smaller"), 0o644); err != nil {
		t.Fatal(err)
	}
	script := fakeFFProbe(t, dir, "hevc", 100)

	_, ok, _ := Output(context.Background(), probe.New(script), candidate, Criteria{
		TargetCodec:       "hevc",
		OriginalSizeBytes: 5,
		OriginalDurationS: 100,
		DurationTolerance: 1.0,
	})
	if ok {
		t.Fatal("expected rejection when candidate is not smaller than original")
	}
}

func TestOutputRejectsDurationOutsideTolerance(t *testing.T) {
	dir := t.TempDir()
	candidate := filepath.Join(dir, "candidate.mkv")
	if err := os.WriteFile(candidate, []byte("smaller output"), 0o644); err != nil {
		t.Fatal(err)
	}
	script := fakeFFProbe(t, dir, "hevc", 50)

	_, ok, _ := Output(context.Background(), probe.New(script), candidate, Criteria{
		TargetCodec:       "hevc",
		OriginalSizeBytes: 1000,
		OriginalDurationS: 100,
		DurationTolerance: 1.0,
	})
	if ok {
		t.Fatal("expected rejection for duration outside tolerance")
	}
}

func TestReadableEndToEndMissingFile(t *testing.T) {
	if ReadableEndToEnd(filepath.Join(t.TempDir(), "missing.mkv")) {
		t.Fatal("expected false for a missing file")
	}
}
