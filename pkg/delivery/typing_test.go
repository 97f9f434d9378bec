package delivery

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type typingCounter struct {
	fakeSender
	count atomic.Int64
}

func (c *typingCounter) StartTyping(ctx context.Context, destID string) error {
	c.count.Add(1)
	return nil
}

func TestWithTypingRunsAndStops(t *testing.T) {
	s := &typingCounter{}
	err := WithTyping(context.Background(), s, "d1", 10*time.Millisecond, func(ctx context.Context) error {
		time.Sleep(35 * time.Millisecond)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	n := s.count.Load()
	if n < 2 {
		t.Errorf("expected repeated typing pings, got %d", n)
	}

	// The loop must be fully stopped once WithTyping returns.
	time.Sleep(30 * time.Millisecond)
	if s.count.Load() != n {
		t.Error("typing loop kept running after WithTyping returned")
	}
}

func TestWithTypingStopsOnError(t *testing.T) {
	s := &typingCounter{}
	wantErr := errors.New("generation failed")

	err := WithTyping(context.Background(), s, "d1", 10*time.Millisecond, func(ctx context.Context) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped fn error, got %v", err)
	}

	n := s.count.Load()
	time.Sleep(30 * time.Millisecond)
	if s.count.Load() != n {
		t.Error("typing loop kept running after error")
	}
}
