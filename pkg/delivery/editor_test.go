package delivery

import (
	"context"
	"testing"
	"time"
)

func editorFixture(t *testing.T, interval time.Duration) (*StreamEditor, *fakeSender, func(time.Duration)) {
	t.Helper()
	s := newFakeSender()
	q := fastQueue(s)
	e := NewStreamEditor(q, "d1", "h1", "…", interval)

	clock := time.Now()
	e.now = func() time.Time { return clock }
	advance := func(d time.Duration) { clock = clock.Add(d) }

	t.Cleanup(q.Wait)
	return e, s, advance
}

func TestEditorIntervalGate(t *testing.T) {
	e, s, advance := editorFixture(t, time.Second)
	ctx := context.Background()

	e.Update(ctx, "Hel")
	e.Update(ctx, "Hello wo")
	e.queue.Wait()
	// First update is due immediately (no prior edit); the second is
	// inside the interval with no sentence boundary.
	if got := len(s.callList()); got != 1 {
		t.Fatalf("expected 1 edit, got %d", got)
	}

	advance(2 * time.Second)
	e.Update(ctx, "Hello world so far")
	e.queue.Wait()
	if got := len(s.callList()); got != 2 {
		t.Errorf("expected edit after interval, got %d calls", got)
	}
}

func TestEditorSentenceFlush(t *testing.T) {
	e, s, _ := editorFixture(t, time.Hour)
	ctx := context.Background()

	e.Update(ctx, "First")
	e.Update(ctx, "First part continues")
	e.Update(ctx, "First part continues. ")
	e.queue.Wait()

	calls := s.callList()
	if len(calls) != 2 {
		t.Fatalf("expected 2 edits, got %v", calls)
	}
	if calls[1] != "edit:First part continues. " {
		t.Errorf("sentence boundary should flush immediately, got %s", calls[1])
	}
}

func TestEditorNoOpSuppression(t *testing.T) {
	e, s, advance := editorFixture(t, time.Second)
	ctx := context.Background()

	e.Update(ctx, "same content")
	advance(2 * time.Second)
	e.Update(ctx, "same content")
	e.Flush(ctx, "same content")
	e.queue.Wait()

	if got := len(s.callList()); got != 1 {
		t.Errorf("identical content must not re-edit, got %d calls", got)
	}
}

func TestEditorFlushIgnoresInterval(t *testing.T) {
	e, s, _ := editorFixture(t, time.Hour)
	ctx := context.Background()

	e.Update(ctx, "partial")
	e.Flush(ctx, "partial plus tail")
	e.queue.Wait()

	calls := s.callList()
	if len(calls) != 2 || calls[1] != "edit:partial plus tail" {
		t.Errorf("flush should push final content, got %v", calls)
	}
}
