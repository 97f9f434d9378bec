package safety

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"
)

// sliceStream serves fragments from a slice and records how many were
// consumed.
type sliceStream struct {
	mu        sync.Mutex
	fragments []string
	pos       int
}

func (s *sliceStream) Recv() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= len(s.fragments) {
		return "", io.EOF
	}
	f := s.fragments[s.pos]
	s.pos++
	return f, nil
}

func (s *sliceStream) consumed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

func collect(t *testing.T, ch <-chan string) []string {
	t.Helper()
	var out []string
	for {
		select {
		case frag, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, frag)
		case <-time.After(2 * time.Second):
			t.Fatal("pipeline output stalled")
		}
	}
}

func TestPipelinePassThrough(t *testing.T) {
	stream := &sliceStream{fragments: []string{"Hello ", "there, ", "friend."}}
	p := NewPipeline(0)

	out := collect(t, p.Run(context.Background(), stream))

	if strings.Join(out, "") != "Hello there, friend." {
		t.Errorf("unexpected output %v", out)
	}
	if p.State() != StateCompleted {
		t.Errorf("expected completed, got %s", p.State())
	}
}

func TestPipelineRefusalShortCircuit(t *testing.T) {
	stream := &sliceStream{fragments: []string{
		"Sure, here is how to ", "make a bo", "mb using household",
		"never", "read", "me", "either",
	}}
	p := NewPipeline(0)

	out := collect(t, p.Run(context.Background(), stream))

	// Everything before the trigger passes, then exactly one refusal
	// and nothing else.
	if len(out) == 0 || out[len(out)-1] != RefusalMessage() {
		t.Fatalf("expected refusal as final fragment, got %v", out)
	}
	refusals := 0
	for _, f := range out {
		if f == RefusalMessage() {
			refusals++
		}
	}
	if refusals != 1 {
		t.Errorf("expected exactly one refusal, got %d", refusals)
	}
	if p.State() != StateRefused {
		t.Errorf("expected refused, got %s", p.State())
	}
	if stream.consumed() >= len(stream.fragments) {
		t.Error("pipeline kept consuming after refusal")
	}
}

func TestPipelineMasksPerFragment(t *testing.T) {
	stream := &sliceStream{fragments: []string{"well ", "shit happens"}}
	p := NewPipeline(MaskThreshold)

	out := collect(t, p.Run(context.Background(), stream))

	if strings.Join(out, "") != "well s**t happens" {
		t.Errorf("unexpected masked output %v", out)
	}
}

func TestPipelineLevelZeroUnmasked(t *testing.T) {
	stream := &sliceStream{fragments: []string{"well shit happens"}}
	p := NewPipeline(0)

	out := collect(t, p.Run(context.Background(), stream))

	if strings.Join(out, "") != "well shit happens" {
		t.Errorf("level 0 must not mask, got %v", out)
	}
}

func TestPipelineAbort(t *testing.T) {
	// An endless stream; cancellation is the only way out.
	stream := &sliceStream{fragments: make([]string, 10000)}
	for i := range stream.fragments {
		stream.fragments[i] = "more text "
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := NewPipeline(0)
	ch := p.Run(ctx, stream)

	<-ch
	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				if p.State() != StateAborted {
					t.Errorf("expected aborted, got %s", p.State())
				}
				return
			}
		case <-deadline:
			t.Fatal("pipeline did not stop after cancellation")
		}
	}
}

func TestPipelineAbortEmitsNoRefusal(t *testing.T) {
	stream := &sliceStream{fragments: []string{"harmless", "text"}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPipeline(0)
	out := collect(t, p.Run(ctx, stream))

	for _, f := range out {
		if f == RefusalMessage() {
			t.Error("aborted pipeline must not emit a refusal")
		}
	}
	if p.State() != StateAborted {
		t.Errorf("expected aborted, got %s", p.State())
	}
}
