package job

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nguyentantai21042004/transflow/internal/domain"
	"github.com/nguyentantai21042004/transflow/internal/logger"
)

func newBlocks(texts ...string) []*domain.Block {
	out := make([]*domain.Block, len(texts))
	for i, t := range texts {
		out[i] = domain.NewBlock(t, i, t, nil)
	}
	return out
}

// TestClaimIsExclusive verifies concurrent claimers never receive the same unit.
func TestClaimIsExclusive(t *testing.T) {
	j := New("j1", domain.KindDOCX, "in.docx", false)
	j.Load(newBlocks("a", "b", "c", "d", "e", "f", "g", "h"))
	j.Start()

	var (
		mu   sync.Mutex
		seen = map[string]int{}
		wg   sync.WaitGroup
	)
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				u, ok := j.Claim()
				if !ok {
					return
				}
				mu.Lock()
				seen[u.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != 8 {
		t.Fatalf("claimed %d distinct units, want 8", len(seen))
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("unit %s claimed %d times", id, n)
		}
	}
}

func TestUnitTransitions(t *testing.T) {
	j := New("j1", domain.KindDOCX, "in.docx", false)
	blocks := newBlocks("a")
	j.Load(blocks)

	if err := j.Complete(blocks[0], "x"); !errors.Is(err, ErrInvalidClaim) {
		t.Errorf("Complete() on unclaimed unit error = %v, want ErrInvalidClaim", err)
	}

	u, _ := j.Claim()
	if err := j.Complete(u, "A"); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if err := j.Fail(u, errors.New("late")); !errors.Is(err, ErrInvalidClaim) {
		t.Errorf("Fail() after done error = %v, want ErrInvalidClaim", err)
	}
	if u.Output() != "A" {
		t.Errorf("Output() = %q, want %q", u.Output(), "A")
	}
}

func TestDerivedStatus(t *testing.T) {
	tests := []struct {
		name       string
		failClosed bool
		fail       bool
		finishAll  bool
		want       Status
	}{
		{"all done", false, false, true, StatusDone},
		{"failure under fail-open", false, true, true, StatusDone},
		{"failure under fail-closed", true, true, true, StatusFailed},
		{"failure under fail-closed before the rest finish", true, true, false, StatusFailed},
		{"work remaining", false, false, false, StatusRunning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := New("j", domain.KindPDF, "in.pdf", tt.failClosed)
			j.Load(newBlocks("a", "b"))

			first, _ := j.Claim()
			if tt.fail {
				j.Fail(first, errors.New("backend down"))
			} else {
				j.Complete(first, "A")
			}
			if tt.finishAll {
				second, _ := j.Claim()
				j.Complete(second, "B")
			}

			if got := j.Derived(); got != tt.want {
				t.Errorf("Derived() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAbandon(t *testing.T) {
	j := New("j", domain.KindPPTX, "in.pptx", false)
	blocks := newBlocks("a", "b", "c")
	j.Load(blocks)

	u, _ := j.Claim()
	j.Complete(u, "A")
	j.Claim() // b stays in flight

	if n := j.Abandon("cancelled"); n != 2 {
		t.Errorf("Abandon() = %d, want 2", n)
	}
	if _, ok := j.Claim(); ok {
		t.Error("Claim() succeeded after Abandon()")
	}

	want := map[domain.UnitStatus]int{
		domain.UnitPending:  0,
		domain.UnitInFlight: 0,
		domain.UnitDone:     1,
		domain.UnitFailed:   2,
	}
	if diff := cmp.Diff(want, j.Counts()); diff != "" {
		t.Errorf("Counts() mismatch (-want +got):\n%s", diff)
	}
	if blocks[2].Output() != "c" {
		t.Errorf("abandoned unit output = %q, want source text", blocks[2].Output())
	}
}

func TestFinishKeepsCounts(t *testing.T) {
	j := New("j", domain.KindDOCX, "in.docx", false)
	j.Load(newBlocks("a", "b"))
	j.Start()
	for {
		u, ok := j.Claim()
		if !ok {
			break
		}
		j.Complete(u, "x")
	}

	if err := j.Finish("out.docx", nil, false); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	if err := j.Finish("out.docx", nil, false); !errors.Is(err, ErrAlreadyFinished) {
		t.Errorf("second Finish() error = %v, want ErrAlreadyFinished", err)
	}

	s := j.Snapshot()
	if s.Status != StatusDone || s.Total != 2 || s.Counts[domain.UnitDone] != 2 || s.Progress != 1 {
		t.Errorf("Snapshot() = %+v", s)
	}
	if s.Output != "out.docx" || s.FinishedAt == nil {
		t.Errorf("Snapshot() output/finish not recorded: %+v", s)
	}
	if j.Units() != nil {
		t.Error("units retained after Finish()")
	}
}

func TestFinishWithNonTerminalUnits(t *testing.T) {
	j := New("j", domain.KindDOCX, "in.docx", false)
	j.Load(newBlocks("a"))

	j.Finish("", nil, false)
	if j.Status() != StatusFailed {
		t.Errorf("Status() = %v, want failed", j.Status())
	}
}

func TestManagerLifecycle(t *testing.T) {
	store := &memStore{}
	m := NewManager(store, logger.Nop())

	j, ctx := m.Create(context.Background(), domain.KindDOCX, "in.docx", false)
	if logger.JobID(ctx) != j.ID {
		t.Errorf("job ctx carries %q, want %q", logger.JobID(ctx), j.ID)
	}

	if _, err := m.Status("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Status(missing) error = %v, want ErrNotFound", err)
	}

	if err := m.Cancel(j.ID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if ctx.Err() == nil {
		t.Fatal("job context not cancelled")
	}

	snap := m.Finish(ctx, j, "", context.Canceled)
	if snap.Status != StatusCancelled {
		t.Errorf("Status = %v, want cancelled", snap.Status)
	}
	if len(store.saved) != 1 || store.saved[0].ID != j.ID {
		t.Errorf("store saved %+v", store.saved)
	}
	if err := m.Cancel(j.ID); !errors.Is(err, ErrAlreadyFinished) {
		t.Errorf("Cancel() after finish error = %v, want ErrAlreadyFinished", err)
	}

	m.Forget(j.ID)
	if len(m.List()) != 0 {
		t.Error("job still listed after Forget()")
	}
}

func TestSQLiteStore(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer store.Close()

	m := NewManager(store, logger.Nop())
	ctx := context.Background()

	for _, src := range []string{"first.docx", "second.pdf"} {
		j, jctx := m.Create(ctx, domain.KindDOCX, src, false)
		j.Load(newBlocks("a", "b"))
		j.Start()
		u, _ := j.Claim()
		j.Complete(u, "A")
		u, _ = j.Claim()
		j.Fail(u, errors.New("timeout"))
		m.Finish(jctx, j, src+".out", nil)
	}

	got, err := m.History(ctx, 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("History() returned %d rows, want 2", len(got))
	}
	for _, s := range got {
		if s.Status != StatusDone {
			t.Errorf("%s status = %v, want done", s.Source, s.Status)
		}
		if s.Counts[domain.UnitDone] != 1 || s.Counts[domain.UnitFailed] != 1 || s.Total != 2 {
			t.Errorf("%s counts = %v total %d", s.Source, s.Counts, s.Total)
		}
		if s.FinishedAt == nil {
			t.Errorf("%s has no finish time", s.Source)
		}
	}

	limited, err := store.List(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 {
		t.Errorf("List(1) returned %d rows", len(limited))
	}
}

type memStore struct {
	mu    sync.Mutex
	saved []Snapshot
}

func (s *memStore) Save(_ context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, snap)
	return nil
}

func (s *memStore) List(context.Context, int) ([]Snapshot, error) { return s.saved, nil }
func (s *memStore) Close() error                                  { return nil }
