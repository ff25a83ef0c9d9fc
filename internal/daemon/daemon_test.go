package daemon_test

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"spacesaver/internal/config"
	"spacesaver/internal/daemon"
)

// fakeFFProbe writes a script that prints canned ffprobe JSON for any
// invocation, letting daemon tests run without a real ffprobe binary.
func fakeFFProbe(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell-script fake ffprobe not supported on windows")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "fake-ffprobe.sh")
	body := "#!/bin/sh\ncat <<'EOF'\n" +
		`{"streams":[{"index":0,"codec_name":"h264","codec_type":"video","width":1920,"height":1080,"duration":"3600.0","bit_rate":"2000000"}],"format":{"duration":"3600.0","size":"50"}}` +
		"\nEOF\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	return script
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	mediaDir := filepath.Join(root, "movies")
	if err := os.MkdirAll(mediaDir, 0o755); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Paths.MediaDirs = []string{mediaDir}
	cfg.Paths.WorkDir = filepath.Join(root, "work")
	cfg.Paths.LogDir = filepath.Join(root, "logs")
	cfg.Tools.FFProbeBinary = fakeFFProbe(t)
	cfg.Tools.EncoderBinary = ""
	cfg.API.Bind = "127.0.0.1:0"
	cfg.Scanner.RescanIntervalSeconds = 3600
	return &cfg
}

func TestDaemonStartServesAPIAndStopReleasesLock(t *testing.T) {
	cfg := testConfig(t)

	d, err := daemon.New(cfg, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	addr := d.APIAddr()
	if addr == "" {
		t.Fatal("expected API to be listening")
	}

	resp, err := http.Get("http://" + addr + "/version")
	if err != nil {
		t.Fatalf("GET /version failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var payload map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if payload["version"] == "" {
		t.Fatal("expected non-empty version")
	}

	status := d.Status()
	if !status.Running {
		t.Fatal("expected daemon status to report running")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	d.Stop(shutdownCtx)

	if d.Status().Running {
		t.Fatal("expected daemon status to report stopped after Stop")
	}

	if err := d.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestDaemonStartTwiceFails(t *testing.T) {
	cfg := testConfig(t)

	d, err := daemon.New(cfg, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer d.Close()

	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second Start to fail")
	}
}
