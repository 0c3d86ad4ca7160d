package watch

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type seen struct {
	mu    sync.Mutex
	paths []string
}

func (s *seen) add(p string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = append(s.paths, p)
}

func (s *seen) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.paths...)
}

func startWatcher(t *testing.T, dir string) (*seen, context.CancelFunc, <-chan error) {
	t.Helper()
	w, err := New(Config{
		Dir:    dir,
		Settle: 50 * time.Millisecond,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s := &seen{}
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx, s.add) }()
	return s, cancel, errc
}

func waitFor(t *testing.T, s *seen, n int) []string {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		if got := s.snapshot(); len(got) >= n {
			return got
		}
		if time.Now().After(deadline) {
			t.Fatalf("reported %v, want %d files", s.snapshot(), n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWatcher_ReportsNewFile(t *testing.T) {
	dir := t.TempDir()
	s, cancel, errc := startWatcher(t, dir)

	path := filepath.Join(dir, "photo.png")
	if err := os.WriteFile(path, []byte("pixels"), 0644); err != nil {
		t.Fatal(err)
	}

	got := waitFor(t, s, 1)
	if got[0] != path {
		t.Fatalf("reported %q, want %q", got[0], path)
	}

	cancel()
	if err := <-errc; err != nil {
		t.Fatalf("Run = %v, want nil", err)
	}
}

func TestWatcher_WaitsForWritesToSettle(t *testing.T) {
	dir := t.TempDir()
	s, cancel, _ := startWatcher(t, dir)
	defer cancel()

	path := filepath.Join(dir, "clip.mp4")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		f.Write([]byte("chunk"))
		time.Sleep(10 * time.Millisecond)
	}
	f.Close()

	waitFor(t, s, 1)
	time.Sleep(200 * time.Millisecond)
	if got := s.snapshot(); len(got) != 1 {
		t.Fatalf("reported %v, want exactly one report", got)
	}
}

func TestWatcher_IgnoresPatternsAndDirectories(t *testing.T) {
	dir := t.TempDir()
	s, cancel, _ := startWatcher(t, dir)
	defer cancel()

	os.WriteFile(filepath.Join(dir, ".hidden"), []byte("x"), 0644)
	os.WriteFile(filepath.Join(dir, "download.part"), []byte("x"), 0644)
	os.Mkdir(filepath.Join(dir, "sub"), 0755)
	keep := filepath.Join(dir, "keep.txt")
	os.WriteFile(keep, []byte("x"), 0644)

	waitFor(t, s, 1)
	time.Sleep(200 * time.Millisecond)
	got := s.snapshot()
	if len(got) != 1 || got[0] != keep {
		t.Fatalf("reported %v, want only %s", got, keep)
	}
}

func TestWatcher_DroppedBeforeSettling(t *testing.T) {
	dir := t.TempDir()
	s, cancel, _ := startWatcher(t, dir)
	defer cancel()

	gone := filepath.Join(dir, "gone.txt")
	os.WriteFile(gone, []byte("x"), 0644)
	os.Remove(gone)
	marker := filepath.Join(dir, "marker.txt")
	time.Sleep(20 * time.Millisecond)
	os.WriteFile(marker, []byte("x"), 0644)

	waitFor(t, s, 1)
	time.Sleep(100 * time.Millisecond)
	for _, p := range s.snapshot() {
		if p == gone {
			t.Fatal("removed file reported")
		}
	}
}

func TestWatcher_MissingDir(t *testing.T) {
	if _, err := New(Config{Dir: filepath.Join(t.TempDir(), "nope")}); err == nil {
		t.Fatal("expected an error for a missing directory")
	}
}

func TestShouldIgnore(t *testing.T) {
	w := &Watcher{config: Config{Ignore: []string{"Thumbs.db", "*.tmp", " ", "[ab].txt"}}}
	tests := []struct {
		path string
		want bool
	}{
		{"/in/Thumbs.db", true},
		{"/in/x.tmp", true},
		{"/in/a.txt", true},
		{"/in/c.txt", false},
		{"/in/photo.png", false},
		{"/in/.hidden", false},
	}
	for _, tt := range tests {
		if got := w.shouldIgnore(tt.path); got != tt.want {
			t.Errorf("shouldIgnore(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}

	d := &Watcher{config: Config{Ignore: DefaultIgnore}}
	if !d.shouldIgnore("/in/.hidden") {
		t.Error("DefaultIgnore should skip hidden files")
	}
}
