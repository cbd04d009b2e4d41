package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/nguyentantai21042004/transflow/internal/logger"
)

type recorder struct {
	mu       sync.Mutex
	seen     []string
	inFlight int
	peak     int
	hold     time.Duration
	calls    chan string
}

func newRecorder(hold time.Duration) *recorder {
	return &recorder{hold: hold, calls: make(chan string, 16)}
}

func (r *recorder) handle(ctx context.Context, path string) error {
	r.mu.Lock()
	r.seen = append(r.seen, filepath.Base(path))
	r.inFlight++
	if r.inFlight > r.peak {
		r.peak = r.inFlight
	}
	r.mu.Unlock()

	time.Sleep(r.hold)

	r.mu.Lock()
	r.inFlight--
	r.mu.Unlock()
	r.calls <- path
	return nil
}

func (r *recorder) wait(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-r.calls:
		case <-time.After(5 * time.Second):
			t.Fatalf("handler called %d times, want %d", i, n)
		}
	}
}

func start(t *testing.T, dir string, r *recorder, maxConcurrent int) (context.CancelFunc, chan error) {
	t.Helper()
	w, err := New(dir, r.handle, logger.Nop(), maxConcurrent, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { w.Stop() })

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Start(ctx) }()
	return cancel, errCh
}

func TestWatcherHandlesSupportedFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "existing.pdf"), []byte("%PDF-1.4"), 0644); err != nil {
		t.Fatal(err)
	}

	r := newRecorder(0)
	cancel, errCh := start(t, dir, r, 2)
	r.wait(t, 1)

	for name, data := range map[string]string{
		"talk.mp3":    "ID3",
		"notes.txt":   "ignored",
		".hidden.pdf": "ignored",
		"deck.pptx":   "PK",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(data), 0644); err != nil {
			t.Fatal(err)
		}
	}
	r.wait(t, 2)

	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Start() error = %v, want context.Canceled", err)
	}

	r.mu.Lock()
	got := append([]string(nil), r.seen...)
	r.mu.Unlock()
	sort.Strings(got)
	if diff := cmp.Diff([]string{"deck.pptx", "existing.pdf", "talk.mp3"}, got); diff != "" {
		t.Errorf("handled files mismatch (-want +got):\n%s", diff)
	}
}

func TestWatcherBoundsConcurrency(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.docx", "b.docx", "c.docx"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("PK"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	r := newRecorder(50 * time.Millisecond)
	cancel, errCh := start(t, dir, r, 1)
	r.wait(t, 3)
	cancel()
	<-errCh

	if r.peak != 1 {
		t.Errorf("peak concurrent handlers = %d, want 1", r.peak)
	}
}

func TestNewMissingDir(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing"), func(context.Context, string) error { return nil }, logger.Nop(), 1, 0)
	if err == nil {
		t.Error("New() expected error for a missing directory")
	}
}
