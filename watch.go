package main

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// watchGrid reloads the grid asset at path whenever it is written or
// replaced, until ctx is done. The parent directory is watched because
// editors usually save by renaming a temp file over the original.
func (s *server) watchGrid(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}

	target := filepath.Clean(path)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				log.Printf("🔄 Grid asset changed, reloading %s\n", path)
				if err := s.loadGrid(path); err != nil {
					// Keep serving the previous grid.
					log.Printf("❌ Reload failed: %v\n", err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("⚠️  Watcher error: %v\n", err)
			}
		}
	}()
	return nil
}
