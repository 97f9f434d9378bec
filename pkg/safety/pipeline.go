package safety

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
)

// State is the lifecycle of one filtered generation.
type State int32

const (
	StateStreaming State = iota
	StateRefused
	StateCompleted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateRefused:
		return "refused"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	default:
		return "streaming"
	}
}

// FragmentStream is an ordered, consume-once source of text fragments.
// Recv returns io.EOF when the stream is exhausted. Implementations
// must unblock Recv when their underlying request is cancelled.
type FragmentStream interface {
	Recv() (string, error)
}

// Pipeline applies safety policy to a single generation's fragment
// stream. A Pipeline is used for exactly one stream and then
// discarded; its accumulator state is not reusable.
type Pipeline struct {
	level int
	state atomic.Int32
}

// NewPipeline creates a Pipeline with the given per-user moderation
// level.
func NewPipeline(level int) *Pipeline {
	return &Pipeline{level: level}
}

// State reports the pipeline's current lifecycle state.
func (p *Pipeline) State() State {
	return State(p.state.Load())
}

// Run consumes the stream and returns a channel of safe fragments.
// Each incoming fragment is appended to the running text and the whole
// accumulation is reclassified, since disallowed content can span
// fragment boundaries. An illegal-category hit emits exactly one
// refusal fragment and stops consuming; the stream beyond that point
// is never read. Otherwise the fragment is emitted after masking.
// Masking is per fragment and never retroactive. Cancelling ctx moves
// the pipeline to StateAborted with no refusal emitted.
func (p *Pipeline) Run(ctx context.Context, stream FragmentStream) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		var total strings.Builder
		for {
			if ctx.Err() != nil {
				p.state.Store(int32(StateAborted))
				return
			}

			frag, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				p.state.Store(int32(StateCompleted))
				return
			}
			if err != nil {
				p.state.Store(int32(StateAborted))
				return
			}

			total.WriteString(frag)
			if IsIllegal(Classify(total.String())) {
				p.state.Store(int32(StateRefused))
				select {
				case out <- RefusalMessage():
				case <-ctx.Done():
					p.state.Store(int32(StateAborted))
				}
				return
			}

			select {
			case out <- ApplyMasking(frag, p.level):
			case <-ctx.Done():
				p.state.Store(int32(StateAborted))
				return
			}
		}
	}()
	return out
}
