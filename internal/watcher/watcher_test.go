package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestIsVideo(t *testing.T) {
	t.Parallel()

	for path, want := range map[string]bool{
		"a.mp4":         true,
		"b.MOV":         true,
		"dir/c.webm":    true,
		"notes.txt":     false,
		"a.mp4.part":    false,
		"segments.json": false,
	} {
		if got := IsVideo(path); got != want {
			t.Fatalf("IsVideo(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestWatcher_RunsHandlerForNewVideos(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	got := make(chan string, 4)
	w, err := New(dir, func(_ context.Context, path string) error {
		got <- filepath.Base(path)
		return nil
	}, nil, 1, 0)
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "talk.mp4"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case name := <-got:
		if name != "talk.mp4" {
			t.Fatalf("handler called for %q", name)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("handler was not called")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestNew_MissingDir(t *testing.T) {
	t.Parallel()

	if _, err := New(filepath.Join(t.TempDir(), "missing"), nil, nil, 1, 0); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
