package services

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_IsRelevant(t *testing.T) {
	w := NewDirectoryWatcher("/kb", []string{".pdf"}, 0, nil)

	tests := []struct {
		name  string
		event fsnotify.Event
		want  bool
	}{
		{name: "new pdf", event: fsnotify.Event{Name: "/kb/ecuador/a.pdf", Op: fsnotify.Create}, want: true},
		{name: "upper-case extension", event: fsnotify.Event{Name: "/kb/ecuador/A.PDF", Op: fsnotify.Write}, want: true},
		{name: "moved in", event: fsnotify.Event{Name: "/kb/ecuador/a.pdf", Op: fsnotify.Rename}, want: true},
		{name: "removed", event: fsnotify.Event{Name: "/kb/ecuador/a.pdf", Op: fsnotify.Remove}, want: false},
		{name: "other extension", event: fsnotify.Event{Name: "/kb/ecuador/notes.txt", Op: fsnotify.Create}, want: false},
		{name: "chmod", event: fsnotify.Event{Name: "/kb/ecuador/a.pdf", Op: fsnotify.Chmod}, want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, w.isRelevant(tc.event))
		})
	}
}

func TestWatcher_RefreshesOnNewCountry(t *testing.T) {
	base := t.TempDir()
	var refreshes atomic.Int32
	w := NewDirectoryWatcher(base, []string{".txt"}, 50*time.Millisecond, func(ctx context.Context) error {
		refreshes.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	// let the watcher register the base directory
	time.Sleep(100 * time.Millisecond)

	dir := filepath.Join(base, "ecuador")
	require.NoError(t, os.Mkdir(dir, 0o755))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("Sheep import duty is 5%"), 0o644))

	assert.Eventually(t, func() bool { return refreshes.Load() >= 1 }, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
