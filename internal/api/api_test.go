package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"spacesaver/internal/api"
	"spacesaver/internal/catalog"
	"spacesaver/internal/deps"
	"spacesaver/internal/worker"
)

func openTestStore(t *testing.T) *catalog.Store {
	t.Helper()
	dir := t.TempDir()
	store, err := catalog.Open(filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func mustProbe(hash string, size int64, codec string, category catalog.Category) catalog.Probe {
	return catalog.Probe{
		ContentHash: hash,
		SizeBytes:   size,
		Codec:       codec,
		Width:       1920,
		Height:      1080,
		BitrateBPS:  4_000_000,
		DurationS:   3600,
		Category:    category,
	}
}

type fakeStatusSource struct {
	running bool
}

func (f fakeStatusSource) Running() bool { return f.running }
func (f fakeStatusSource) WorkerStatus() worker.Status {
	return worker.Status{Running: false}
}
func (f fakeStatusSource) DependencyStatuses() []deps.Status {
	return []deps.Status{{Name: "Encoder", Available: true}}
}

func TestHandleVersion(t *testing.T) {
	store := openTestStore(t)
	srv := api.New(store, fakeStatusSource{}, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/version")
	if err != nil {
		t.Fatalf("GET /version failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var view api.VersionView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if view.Version == "" {
		t.Fatal("expected non-empty version")
	}
}

func TestHandleStatusReportsCatalogCounts(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if _, _, err := store.UpsertByPath(ctx, "/media/movies/a.mkv", mustProbe("h1", 100, "h264", catalog.CategoryMovie)); err != nil {
		t.Fatalf("UpsertByPath failed: %v", err)
	}

	srv := api.New(store, fakeStatusSource{running: true}, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status failed: %v", err)
	}
	defer resp.Body.Close()
	var view api.StatusView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !view.Running {
		t.Fatal("expected running=true")
	}
	if view.CatalogCounts["NEW"] != 1 {
		t.Fatalf("expected 1 NEW entry, got %d", view.CatalogCounts["NEW"])
	}
	if len(view.Dependencies) != 1 || !view.Dependencies[0].Available {
		t.Fatalf("unexpected dependencies: %+v", view.Dependencies)
	}
}

func TestHandleListAndListOne(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	id, _, err := store.UpsertByPath(ctx, "/media/movies/a.mkv", mustProbe("h1", 100, "h264", catalog.CategoryMovie))
	if err != nil {
		t.Fatalf("UpsertByPath failed: %v", err)
	}

	srv := api.New(store, fakeStatusSource{}, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/list")
	if err != nil {
		t.Fatalf("GET /list failed: %v", err)
	}
	defer resp.Body.Close()
	var entries []api.EntryView
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != id {
		t.Fatalf("unexpected entries: %+v", entries)
	}

	resp2, err := http.Get(ts.URL + "/list/" + id)
	if err != nil {
		t.Fatalf("GET /list/{id} failed: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp2.StatusCode)
	}

	resp3, err := http.Get(ts.URL + "/list/does-not-exist")
	if err != nil {
		t.Fatalf("GET /list/{missing} failed: %v", err)
	}
	defer resp3.Body.Close()
	if resp3.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp3.StatusCode)
	}
}

func TestHandleEnqueueBest(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	srv := api.New(store, fakeStatusSource{}, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/request/enqueue/best", "application/json", nil)
	if err != nil {
		t.Fatalf("POST enqueue/best failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for empty catalog, got %d", resp.StatusCode)
	}

	id, _, err := store.UpsertByPath(ctx, "/media/movies/a.mkv", mustProbe("h1", 100, "hevc", catalog.CategoryMovie))
	if err != nil {
		t.Fatalf("UpsertByPath failed: %v", err)
	}
	if _, err := store.Classify(ctx, id, catalog.ClassifyPolicy{TargetCodec: "hevc"}); err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	resp2, err := http.Post(ts.URL+"/request/enqueue/best", "application/json", nil)
	if err != nil {
		t.Fatalf("POST enqueue/best failed: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp2.StatusCode)
	}
	var view api.EnqueueView
	if err := json.NewDecoder(resp2.Body).Decode(&view); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if view.ID != id {
		t.Fatalf("expected id %s, got %s", id, view.ID)
	}
}
