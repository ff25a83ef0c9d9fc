package services_test

import (
	"errors"
	"strings"
	"testing"

	"spacesaver/internal/services"
)

func TestWrapAndUnwrap(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "encoding", "mux", "failed", base)
	se, ok := err.(*services.ServiceError)
	if !ok {
		t.Fatalf("expected ServiceError, got %T", err)
	}
	if se.Code != "E_EXTERNAL" {
		t.Fatalf("unexpected code %q", se.Code)
	}
	if se.Kind != services.ErrorKindExternal {
		t.Fatalf("unexpected kind %q", se.Kind)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected errors.Is to match wrapped cause")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected errors.Is to match marker")
	}
	if got := err.Error(); !strings.Contains(got, "encoding") || !strings.Contains(got, "boom") {
		t.Fatalf("unexpected error message: %s", got)
	}
}

func TestWrapDetailAttachesPath(t *testing.T) {
	err := services.WrapDetail(services.ErrValidation, "probe", "ffprobe", "bad stream", nil, "/tmp/probe-output.json")
	details := services.Details(err)
	if details.Kind != services.ErrorKindValidation {
		t.Fatalf("unexpected kind %q", details.Kind)
	}
	if details.DetailPath != "/tmp/probe-output.json" {
		t.Fatalf("expected detail path, got %q", details.DetailPath)
	}
	if details.Hint == "" {
		t.Fatal("expected hint to be derived from detail path")
	}
}

func TestWrapHintSetsCodeAndHint(t *testing.T) {
	err := services.WrapHint(services.ErrConfiguration, "config", "load", "missing field", "E_MISSING_FIELD", "set media_dirs", nil)
	se, ok := err.(*services.ServiceError)
	if !ok {
		t.Fatalf("expected ServiceError, got %T", err)
	}
	if se.Code != "E_MISSING_FIELD" {
		t.Fatalf("expected overridden code, got %q", se.Code)
	}
	if se.Hint != "set media_dirs" {
		t.Fatalf("expected hint to be set, got %q", se.Hint)
	}
}

func TestIsSourceMutated(t *testing.T) {
	err := services.Wrap(services.ErrSourceMutated, "worker", "claim", "content hash changed", nil)
	if !services.IsSourceMutated(err) {
		t.Fatal("expected IsSourceMutated to report true")
	}
	other := services.Wrap(services.ErrRejected, "worker", "accept", "duration mismatch", nil)
	if services.IsSourceMutated(other) {
		t.Fatal("expected IsSourceMutated to report false for unrelated marker")
	}
}

func TestRejectedMarkerClassification(t *testing.T) {
	err := services.Wrap(services.ErrRejected, "worker", "accept", "codec not hevc", nil)
	details := services.Details(err)
	if details.Kind != services.ErrorKindRejected {
		t.Fatalf("unexpected kind %q", details.Kind)
	}
}

func TestDetailsFallsBackForPlainErrors(t *testing.T) {
	plain := errors.New("disk full")
	details := services.Details(plain)
	if details.Kind != services.ErrorKindTransient {
		t.Fatalf("expected transient fallback kind, got %q", details.Kind)
	}
	if details.Message != "disk full" {
		t.Fatalf("unexpected message %q", details.Message)
	}
}
