package delivery

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RateLimitedError signals the platform throttled a send or edit. The
// queue retries these with backoff indefinitely; they never surface to
// the caller.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

// Sender is the chat-platform client surface the queue needs. Send
// returns an opaque handle for the created message so later edits can
// target it.
type Sender interface {
	Send(ctx context.Context, destID, content string) (handle string, err error)
	Edit(ctx context.Context, destID, handle, content string) error
	StartTyping(ctx context.Context, destID string) error
}

type taskKind int

const (
	taskSend taskKind = iota
	taskEdit
)

type task struct {
	kind    taskKind
	destID  string
	handle  string
	content string
	// result carries the message handle on a successful send and is
	// closed without a value when the task is dropped.
	result chan string
}

// Queue runs send/edit tasks per destination: strictly FIFO, one in
// flight at a time, paced by the token bucket plus a fixed spacing
// delay after each successful send. Rate limits retry forever with
// jittered exponential backoff; any other failure drops the task and
// the destination's queue moves on.
type Queue struct {
	sender  Sender
	pacer   *Pacer
	spacing time.Duration
	base    time.Duration
	ceiling time.Duration
	log     *zap.Logger

	mu      sync.Mutex
	pending map[string][]*task
	busy    map[string]bool
	wg      sync.WaitGroup
}

// NewQueue creates a Queue over a sender and pacer. A nil logger
// disables logging.
func NewQueue(sender Sender, pacer *Pacer, spacing, backoffBase, backoffCeiling time.Duration, log *zap.Logger) *Queue {
	if log == nil {
		log = zap.NewNop()
	}
	if backoffBase <= 0 {
		backoffBase = 2 * time.Second
	}
	if backoffCeiling < backoffBase {
		backoffCeiling = 10 * time.Second
	}
	return &Queue{
		sender:  sender,
		pacer:   pacer,
		spacing: spacing,
		base:    backoffBase,
		ceiling: backoffCeiling,
		log:     log,
		pending: make(map[string][]*task),
		busy:    make(map[string]bool),
	}
}

// Send enqueues a message for a destination. The returned channel
// yields the message handle once the platform accepts it, and closes
// without a value if the task is dropped. ctx gates admission only:
// a task accepted into the queue is delivered even if ctx is
// cancelled afterwards.
func (q *Queue) Send(ctx context.Context, destID, content string) <-chan string {
	t := &task{kind: taskSend, destID: destID, content: content, result: make(chan string, 1)}
	if ctx.Err() != nil {
		close(t.result)
		return t.result
	}
	q.enqueue(t)
	return t.result
}

// Edit enqueues an edit of an already-sent message. Ordering with
// previously enqueued tasks on the same destination is preserved, so
// an edit always runs after the send that produced its handle. As
// with Send, ctx gates admission only.
func (q *Queue) Edit(ctx context.Context, destID, handle, content string) {
	if ctx.Err() != nil {
		return
	}
	t := &task{kind: taskEdit, destID: destID, handle: handle, content: content, result: make(chan string, 1)}
	q.enqueue(t)
}

// Wait blocks until every queue has drained. Intended for shutdown and
// tests.
func (q *Queue) Wait() {
	q.wg.Wait()
}

func (q *Queue) enqueue(t *task) {
	q.mu.Lock()
	q.pending[t.destID] = append(q.pending[t.destID], t)
	start := !q.busy[t.destID]
	if start {
		q.busy[t.destID] = true
		q.wg.Add(1)
	}
	q.mu.Unlock()

	if start {
		go q.drain(t.destID)
	}
}

// drain pops and runs tasks for one destination until its list is
// empty. At most one drain runs per destination, which is what makes
// delivery single-flight and FIFO.
func (q *Queue) drain(destID string) {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		list := q.pending[destID]
		if len(list) == 0 {
			q.busy[destID] = false
			q.mu.Unlock()
			return
		}
		t := list[0]
		q.pending[destID] = list[1:]
		q.mu.Unlock()

		q.run(t)
	}
}

// run executes one task to completion or drop. Execution is
// deliberately not bound to the producer's context: a queued task
// outlives the request that enqueued it, so an aborted generation
// never retracts delivery work that was already accepted.
func (q *Queue) run(t *task) {
	defer close(t.result)

	ctx := context.Background()
	for attempt := 0; ; attempt++ {
		if err := q.pacer.Take(ctx, t.destID); err != nil {
			return
		}

		var handle string
		var err error
		switch t.kind {
		case taskSend:
			handle, err = q.sender.Send(ctx, t.destID, t.content)
		case taskEdit:
			err = q.sender.Edit(ctx, t.destID, t.handle, t.content)
		}

		if err == nil {
			if t.kind == taskSend {
				t.result <- handle
				if q.spacing > 0 {
					time.Sleep(q.spacing)
				}
			}
			return
		}

		var rl *RateLimitedError
		if errors.As(err, &rl) {
			delay := backoffDelay(q.base, q.ceiling, attempt)
			if rl.RetryAfter > delay {
				delay = rl.RetryAfter
			}
			q.log.Debug("rate limited, backing off",
				zap.String("dest", t.destID),
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay))
			time.Sleep(delay)
			continue
		}

		// Terminal for this task only; the destination's queue keeps
		// moving.
		q.log.Error("dropping undeliverable task",
			zap.String("dest", t.destID), zap.Error(err))
		return
	}
}

// backoffDelay doubles from base per attempt up to ceiling, plus
// nonzero random jitter so synchronized retries spread out.
func backoffDelay(base, ceiling time.Duration, attempt int) time.Duration {
	d := base
	for i := 0; i < attempt && d < ceiling; i++ {
		d *= 2
	}
	if d > ceiling {
		d = ceiling
	}
	jitterMax := base / 4
	if jitterMax < time.Millisecond {
		jitterMax = time.Millisecond
	}
	return d + time.Duration(rand.Int63n(int64(jitterMax))) + time.Millisecond
}
