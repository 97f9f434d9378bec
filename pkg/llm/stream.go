// Package llm exposes text generations as ordered, consume-once
// fragment streams, with an OpenAI-compatible SSE client behind them.
package llm

import "time"

// Meta describes a finished generation. It is valid once Recv has
// returned io.EOF.
type Meta struct {
	// FirstFragment is the latency to the first emitted fragment.
	FirstFragment time.Duration
	// Total is the wall time of the whole generation.
	Total time.Duration
	// Fragments is the count of non-empty fragments emitted.
	Fragments int
}

// Stream is an ordered sequence of text fragments, consumable once and
// terminable early. Recv returns io.EOF when the generation ends.
type Stream interface {
	Recv() (string, error)
	Meta() Meta
	Close() error
}
