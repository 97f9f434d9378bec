package delivery

import (
	"context"
	"strings"
	"time"
)

// StreamEditor paces edits to an already-sent placeholder message
// while a reply is still streaming. An edit goes out when the minimum
// interval has elapsed or the content ends at sentence punctuation,
// whichever comes first, and never when the content is identical to
// what was last pushed. This bounds edit-call volume while keeping
// perceived latency low.
type StreamEditor struct {
	queue    *Queue
	destID   string
	handle   string
	interval time.Duration
	now      func() time.Time

	lastPushed string
	lastEdit   time.Time
}

// NewStreamEditor creates a StreamEditor for a sent message handle.
// initial is the placeholder content already on the message.
func NewStreamEditor(q *Queue, destID, handle, initial string, interval time.Duration) *StreamEditor {
	if interval <= 0 {
		interval = 1200 * time.Millisecond
	}
	return &StreamEditor{
		queue:      q,
		destID:     destID,
		handle:     handle,
		interval:   interval,
		now:        time.Now,
		lastPushed: initial,
	}
}

// Update offers the latest accumulated content. It enqueues an edit
// when due and is otherwise a no-op.
func (e *StreamEditor) Update(ctx context.Context, content string) {
	if content == e.lastPushed {
		return
	}
	now := e.now()
	if now.Sub(e.lastEdit) < e.interval && !endsSentence(content) {
		return
	}
	e.push(ctx, content, now)
}

// Flush pushes the final content regardless of the interval, still
// suppressing an edit that would change nothing.
func (e *StreamEditor) Flush(ctx context.Context, content string) {
	if content == e.lastPushed {
		return
	}
	e.push(ctx, content, e.now())
}

func (e *StreamEditor) push(ctx context.Context, content string, now time.Time) {
	e.queue.Edit(ctx, e.destID, e.handle, content)
	e.lastPushed = content
	e.lastEdit = now
}

func endsSentence(s string) bool {
	s = strings.TrimRight(s, " \t\n")
	return strings.HasSuffix(s, ".") || strings.HasSuffix(s, "!") || strings.HasSuffix(s, "?")
}
