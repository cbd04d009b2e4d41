package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/nguyentantai21042004/transflow/internal/domain"
	"github.com/nguyentantai21042004/transflow/internal/job"
	"github.com/nguyentantai21042004/transflow/internal/logger"
	"github.com/nguyentantai21042004/transflow/internal/translate"
)

// fakeTranslator looks up translations, sleeps per text and records peak
// concurrency and completion order.
type fakeTranslator struct {
	dict   map[string]string
	delays map[string]time.Duration
	fail   map[string]int // text -> number of leading attempts that fail (-1 = always)
	block  bool           // wait for ctx cancellation on every call

	inFlight atomic.Int32
	peak     atomic.Int32

	mu        sync.Mutex
	calls     map[string]int
	completed []string
	requests  []translate.Request
	started   chan struct{}
}

func (f *fakeTranslator) Name() string { return "fake" }

func (f *fakeTranslator) Translate(ctx context.Context, req translate.Request) (string, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	f.mu.Lock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[req.Text]++
	attempt := f.calls[req.Text]
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}

	select {
	case <-time.After(f.delays[req.Text]):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	if k, ok := f.fail[req.Text]; ok && (k < 0 || attempt <= k) {
		return "", fmt.Errorf("backend error on %q attempt %d", req.Text, attempt)
	}

	f.mu.Lock()
	f.completed = append(f.completed, req.Text)
	f.mu.Unlock()

	if out, ok := f.dict[req.Text]; ok {
		return out, nil
	}
	return "T(" + req.Text + ")", nil
}

func newJob(failClosed bool, texts ...string) (*job.Job, []*domain.Block) {
	blocks := make([]*domain.Block, len(texts))
	for i, t := range texts {
		blocks[i] = domain.NewBlock(fmt.Sprintf("b%d", i), i, t, nil)
	}
	j := job.New("test", domain.KindDOCX, "in.docx", failClosed)
	j.Load(blocks)
	return j, blocks
}

func opts(n int) Options {
	return Options{Concurrency: n, MaxRetries: 2, RetryDelay: time.Millisecond, SourceLang: "en", TargetLang: "fr"}
}

// TestReverseCompletionOrder verifies the Hello/World/Again document
// reconstructs in index order when the last block finishes first.
func TestReverseCompletionOrder(t *testing.T) {
	tr := &fakeTranslator{
		dict: map[string]string{"Hello": "Bonjour", "World": "Monde", "Again": "Encore"},
		delays: map[string]time.Duration{
			"Hello": 80 * time.Millisecond,
			"World": 40 * time.Millisecond,
			"Again": 0,
		},
	}
	j, blocks := newJob(false, "Hello", "World", "Again")

	if err := New(tr, opts(3), logger.Nop()).Run(context.Background(), j); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if diff := cmp.Diff([]string{"Again", "World", "Hello"}, tr.completed); diff != "" {
		t.Errorf("completion order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Bonjour", "Monde", "Encore"}, domain.Texts(blocks)); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

// TestOrderPreservedUnderShuffledCompletion verifies output order does not
// depend on completion order.
func TestOrderPreservedUnderShuffledCompletion(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		t.Run(fmt.Sprintf("seed %d", seed), func(t *testing.T) {
			rng := rand.New(rand.NewSource(seed))
			texts := make([]string, 40)
			delays := map[string]time.Duration{}
			want := make([]string, len(texts))
			for i := range texts {
				texts[i] = fmt.Sprintf("block-%02d", i)
				delays[texts[i]] = time.Duration(rng.Intn(15)) * time.Millisecond
				want[i] = "T(" + texts[i] + ")"
			}

			tr := &fakeTranslator{delays: delays}
			j, blocks := newJob(false, texts...)

			// Hand the job its units in shuffled slice order; order_index must win.
			shuffled := append([]*domain.Block(nil), blocks...)
			rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
			j.Load(shuffled)

			if err := New(tr, opts(4), logger.Nop()).Run(context.Background(), j); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if diff := cmp.Diff(want, domain.Texts(blocks)); diff != "" {
				t.Errorf("output mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// TestConcurrencyBound verifies no more than N requests are ever in flight.
func TestConcurrencyBound(t *testing.T) {
	for _, n := range []int{1, 3, 5} {
		t.Run(fmt.Sprintf("N=%d", n), func(t *testing.T) {
			texts := make([]string, 25)
			delays := map[string]time.Duration{}
			for i := range texts {
				texts[i] = fmt.Sprintf("t%d", i)
				delays[texts[i]] = 5 * time.Millisecond
			}
			tr := &fakeTranslator{delays: delays}
			j, _ := newJob(false, texts...)

			if err := New(tr, opts(n), logger.Nop()).Run(context.Background(), j); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if peak := tr.peak.Load(); peak > int32(n) || peak < 1 {
				t.Errorf("peak in-flight = %d, want 1..%d", peak, n)
			}
		})
	}
}

// TestFailOpen verifies a unit that fails every retry keeps its source text
// and the job still completes.
func TestFailOpen(t *testing.T) {
	tr := &fakeTranslator{
		dict: map[string]string{"Hello": "Bonjour", "Again": "Encore"},
		fail: map[string]int{"World": -1},
	}
	j, blocks := newJob(false, "Hello", "World", "Again")

	if err := New(tr, opts(2), logger.Nop()).Run(context.Background(), j); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if diff := cmp.Diff([]string{"Bonjour", "World", "Encore"}, domain.Texts(blocks)); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
	if blocks[1].Status != domain.UnitFailed {
		t.Errorf("World status = %v, want failed", blocks[1].Status)
	}
	if _, ok := blocks[1].Translation(); ok {
		t.Error("failed unit has a recorded translation")
	}
	if tr.calls["World"] != 3 {
		t.Errorf("World attempted %d times, want 3", tr.calls["World"])
	}
	if blocks[1].Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", blocks[1].Attempts)
	}
	if j.Derived() != job.StatusDone {
		t.Errorf("Derived() = %v, want done", j.Derived())
	}
}

// TestRetryWithUnchangedRequest verifies a transient failure is retried with
// the identical request.
func TestRetryWithUnchangedRequest(t *testing.T) {
	tr := &fakeTranslator{
		dict: map[string]string{"Hello": "Bonjour"},
		fail: map[string]int{"Hello": 1},
	}
	j, blocks := newJob(false, "Hello")

	if err := New(tr, opts(1), logger.Nop()).Run(context.Background(), j); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if blocks[0].Output() != "Bonjour" || blocks[0].Status != domain.UnitDone {
		t.Errorf("block = %+v, want done Bonjour", blocks[0])
	}
	if len(tr.requests) != 2 || tr.requests[0] != tr.requests[1] {
		t.Errorf("requests = %+v, want two identical requests", tr.requests)
	}
	if tr.requests[0].Text != "Hello" || tr.requests[0].TargetLang != "fr" {
		t.Errorf("request = %+v, want only the unit text and target", tr.requests[0])
	}
}

func TestFailClosed(t *testing.T) {
	tr := &fakeTranslator{fail: map[string]int{"b": -1}}
	j, blocks := newJob(true, "a", "b", "c", "d")

	err := New(tr, opts(1), logger.Nop()).Run(context.Background(), j)
	if !errors.Is(err, domain.ErrTranslationUnit) {
		t.Fatalf("Run() error = %v, want translation unit error", err)
	}
	if j.Derived() != job.StatusFailed {
		t.Errorf("Derived() = %v, want failed", j.Derived())
	}
	for _, b := range blocks {
		if !b.Status.Terminal() {
			t.Errorf("block %s left %v", b.ID, b.Status)
		}
	}
}

// TestCancellation verifies cancelling stops dispatch and leaves every unit
// in a terminal fallback state.
func TestCancellation(t *testing.T) {
	tr := &fakeTranslator{block: true, started: make(chan struct{}, 1)}
	j, blocks := newJob(false, "a", "b", "c", "d", "e", "f")

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- New(tr, opts(2), logger.Nop()).Run(ctx, j)
	}()

	<-tr.started
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancellation")
	}

	for _, b := range blocks {
		if b.Status != domain.UnitFailed {
			t.Errorf("block %s status = %v, want failed", b.ID, b.Status)
		}
		if b.Output() != b.SourceText {
			t.Errorf("block %s output = %q, want source text", b.ID, b.Output())
		}
	}
	if len(tr.requests) > 2 {
		t.Errorf("%d requests issued, want at most the 2 in flight at cancel", len(tr.requests))
	}
}

func TestPerAttemptTimeout(t *testing.T) {
	tr := &fakeTranslator{block: true}
	j, blocks := newJob(false, "slow")

	o := opts(1)
	o.MaxRetries = 1
	o.Timeout = 10 * time.Millisecond

	if err := New(tr, o, logger.Nop()).Run(context.Background(), j); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if blocks[0].Status != domain.UnitFailed || tr.calls["slow"] != 2 {
		t.Errorf("status = %v calls = %d, want failed after 2 attempts", blocks[0].Status, tr.calls["slow"])
	}
}

func TestEmptyJob(t *testing.T) {
	j, _ := newJob(false)
	if err := New(&fakeTranslator{}, opts(5), logger.Nop()).Run(context.Background(), j); err != nil {
		t.Errorf("Run() error = %v", err)
	}
}
