package prompts

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writePrompt(t *testing.T, dir, filename, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, filename), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoaderGet(t *testing.T) {
	dir := t.TempDir()
	writePrompt(t, dir, "finance-agent.md", "Eres el agente de finanzas.")

	l := NewLoader(dir)
	got, err := l.Get("finance")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Eres el agente de finanzas." {
		t.Errorf("got %q", got)
	}
}

func TestLoaderGetCaches(t *testing.T) {
	dir := t.TempDir()
	writePrompt(t, dir, "finance-agent.md", "v1")

	l := NewLoader(dir)
	if _, err := l.Get("finance"); err != nil {
		t.Fatal(err)
	}

	// Without a watcher, the cached copy survives a file change.
	writePrompt(t, dir, "finance-agent.md", "v2")
	got, err := l.Get("finance")
	if err != nil {
		t.Fatal(err)
	}
	if got != "v1" {
		t.Errorf("got %q, want cached v1", got)
	}
}

func TestLoaderUnknownAgent(t *testing.T) {
	l := NewLoader(t.TempDir())
	if _, err := l.Get("nonexistent"); err == nil {
		t.Fatal("expected error for unknown agent")
	}
}

func TestLoaderMissingFile(t *testing.T) {
	l := NewLoader(t.TempDir())
	if _, err := l.Get("finance"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoaderWatchInvalidates(t *testing.T) {
	dir := t.TempDir()
	writePrompt(t, dir, "finance-agent.md", "v1")

	l := NewLoader(dir)
	if err := l.Watch(); err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer l.Close()

	if _, err := l.Get("finance"); err != nil {
		t.Fatal(err)
	}
	writePrompt(t, dir, "finance-agent.md", "v2")

	// The watcher invalidates asynchronously.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, err := l.Get("finance")
		if err != nil {
			t.Fatal(err)
		}
		if got == "v2" {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("cache was not invalidated after file change")
}
