// Package prompts loads prompt documents from the local docs/prompts
// directory. It serves only as the read-only fallback for the analysis
// template when GitHub is unreachable; applied fixes always go through
// the versioned store.
package prompts

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// promptFiles maps agent names to their local document filenames,
// mirroring the layout of the versioned store.
var promptFiles = map[string]string{
	"router":          "router-agent.md",
	"finance":         "finance-agent.md",
	"calendar":        "calendar-agent.md",
	"reminder":        "reminder-agent.md",
	"shopping":        "shopping-agent.md",
	"vehicle":         "vehicle-agent.md",
	"qa":              "qa-agent.md",
	"prompt-improver": "prompt-improver-agent.md",
}

// Loader reads prompt documents from a local directory, caching them
// until the file changes on disk.
type Loader struct {
	dir string

	mu    sync.RWMutex
	cache map[string]string

	watcher *fsnotify.Watcher
}

// NewLoader creates a loader rooted at dir.
func NewLoader(dir string) *Loader {
	return &Loader{
		dir:   dir,
		cache: make(map[string]string),
	}
}

// Get returns the prompt document for an agent, reading from cache when
// the file has not changed since the last read.
func (l *Loader) Get(agentName string) (string, error) {
	l.mu.RLock()
	cached, ok := l.cache[agentName]
	l.mu.RUnlock()
	if ok {
		return cached, nil
	}

	filename, ok := promptFiles[agentName]
	if !ok {
		return "", fmt.Errorf("no prompt file configured for agent %q", agentName)
	}

	path := filepath.Join(l.dir, filename)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt %s: %w", path, err)
	}

	content := string(data)
	l.mu.Lock()
	l.cache[agentName] = content
	l.mu.Unlock()
	return content, nil
}

// Watch invalidates cached documents when files in the prompts
// directory change, so redeployed templates take effect without a
// restart. Close stops the watcher.
func (l *Loader) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(l.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", l.dir, err)
	}
	l.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
					l.invalidate(filepath.Base(event.Name))
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("[Prompts] Watcher error: %v", err)
			}
		}
	}()

	return nil
}

// Close stops the file watcher, if started.
func (l *Loader) Close() error {
	if l.watcher != nil {
		return l.watcher.Close()
	}
	return nil
}

func (l *Loader) invalidate(filename string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for agent, f := range promptFiles {
		if f == filename {
			delete(l.cache, agent)
			log.Printf("[Prompts] Reloading %s on next read", filename)
			return
		}
	}
}
