// Package bot drives the governance core for inbound chat events:
// entitlement lookup, budget and slot checks, streamed generation
// through the safety pipeline, and paced delivery.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/murmur-ai/murmur/pkg/delivery"
	"github.com/murmur-ai/murmur/pkg/llm"
	"github.com/murmur-ai/murmur/pkg/models"
	"github.com/murmur-ai/murmur/pkg/safety"
	"github.com/murmur-ai/murmur/pkg/slots"
	"github.com/murmur-ai/murmur/pkg/usage"
)

// systemPrompt keeps replies short; chat channels are not the place
// for essays.
const systemPrompt = "You are a concise, helpful chat assistant. Answer in at most two sentences unless asked for detail."

// placeholder is the initial content of a streamed reply message.
const placeholder = "…"

// Event is one inbound chat message addressed to the bot.
type Event struct {
	TenantID string
	DestID   string
	UserID   string
	Prompt   string
}

// Entitlements resolves tenant caps.
type Entitlements interface {
	Get(ctx context.Context, tenantID string) models.Entitlement
}

// Generator opens a token stream for a prompt.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (llm.Stream, error)
}

// Config tunes per-driver behavior.
type Config struct {
	ModerationLevel int
	MaxChunkLen     int
	TypingInterval  time.Duration
	EditInterval    time.Duration
}

// Driver wires the governance core together for one bot process.
type Driver struct {
	ents   Entitlements
	slots  *slots.Limiter
	queue  *delivery.Queue
	sender delivery.Sender
	gen    Generator
	ledger *usage.Ledger
	cfg    Config
	log    *zap.Logger
}

// New creates a Driver. ledger may be nil to disable budget checks;
// a nil logger disables logging.
func New(ents Entitlements, lim *slots.Limiter, queue *delivery.Queue, sender delivery.Sender, gen Generator, ledger *usage.Ledger, cfg Config, log *zap.Logger) *Driver {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MaxChunkLen <= 0 {
		cfg.MaxChunkLen = safety.DefaultMaxChunkLen
	}
	return &Driver{
		ents:   ents,
		slots:  lim,
		queue:  queue,
		sender: sender,
		gen:    gen,
		ledger: ledger,
		cfg:    cfg,
		log:    log,
	}
}

// HandleMessage generates and delivers a reply for one inbound event.
// A refused or aborted generation is not an error; only infrastructure
// problems surface here.
func (d *Driver) HandleMessage(ctx context.Context, ev Event) error {
	ent := d.ents.Get(ctx, ev.TenantID)

	if d.ledger != nil {
		over, err := d.ledger.Exceeded(ctx, ent)
		if err != nil {
			// Budget accounting being down should not silence the
			// bot; let the reply through.
			d.log.Warn("usage check failed", zap.String("tenant", ev.TenantID), zap.Error(err))
		} else if over {
			d.queue.Send(ctx, ev.DestID, "This server's monthly token budget is used up. Upgrade your plan to keep chatting.")
			return nil
		}
	}

	return delivery.WithTyping(ctx, d.sender, ev.DestID, d.cfg.TypingInterval, func(ctx context.Context) error {
		return d.streamReply(ctx, ev, ent)
	})
}

// streamReply runs one generation through the safety pipeline and
// delivers it: a placeholder message edited in place while streaming,
// then the final text re-chunked to size.
func (d *Driver) streamReply(ctx context.Context, ev Event, ent models.Entitlement) error {
	stream, err := d.gen.Generate(ctx, systemPrompt, ev.Prompt)
	if err != nil {
		return fmt.Errorf("open generation: %w", err)
	}
	defer stream.Close()

	handleCh := d.queue.Send(ctx, ev.DestID, placeholder)
	handle, ok := <-handleCh
	if !ok {
		return errors.New("placeholder send dropped")
	}

	editor := delivery.NewStreamEditor(d.queue, ev.DestID, handle, placeholder, d.cfg.EditInterval)
	pipe := safety.NewPipeline(d.cfg.ModerationLevel)

	var text strings.Builder
	for frag := range pipe.Run(ctx, stream) {
		text.WriteString(frag)
		editor.Update(ctx, clipForEdit(text.String(), d.cfg.MaxChunkLen))
	}

	switch pipe.State() {
	case safety.StateAborted:
		// Cancelled upstream; whatever is already queued still goes
		// out, nothing more is flushed.
		return nil
	case safety.StateRefused:
		// The refusal replaces any partial content already shown.
		editor.Flush(ctx, safety.RefusalMessage())
		return nil
	}

	chunks := safety.Chunk(text.String(), d.cfg.MaxChunkLen)
	editor.Flush(ctx, chunks[0])
	for _, c := range chunks[1:] {
		d.queue.Send(ctx, ev.DestID, c)
	}

	if d.ledger != nil && pipe.State() == safety.StateCompleted {
		meta := stream.Meta()
		rec := models.UsageRecord{
			TenantID: ev.TenantID,
			// Rough accounting: prompt length over four approximates
			// input tokens, one fragment approximates one output
			// token.
			TokensIn:  int64(len(ev.Prompt)/4) + 1,
			TokensOut: int64(meta.Fragments),
		}
		if err := d.ledger.Record(ctx, rec); err != nil {
			d.log.Warn("usage record failed", zap.String("tenant", ev.TenantID), zap.Error(err))
		}
	}
	return nil
}

// clipForEdit bounds in-place edit content to one message's worth;
// the overflow is delivered as follow-up chunks once the stream ends.
func clipForEdit(text string, max int) string {
	chunks := safety.Chunk(text, max)
	return chunks[0]
}

// JoinSession acquires a streaming-session slot for the tenant and
// returns its token. When the plan's ceiling is hit the user gets a
// plan-limit message on the destination and ErrCapacityExceeded comes
// back to the caller.
func (d *Driver) JoinSession(ctx context.Context, tenantID, destID string) (string, error) {
	token := slots.NewToken()
	err := d.slots.Acquire(ctx, tenantID, token)
	if errors.Is(err, slots.ErrCapacityExceeded) {
		ent := d.ents.Get(ctx, tenantID)
		d.queue.Send(ctx, destID, fmt.Sprintf(
			"This plan allows %d concurrent sessions. Upgrade to run more at once.", ent.Caps.Concurrency))
		return "", err
	}
	if err != nil {
		return "", err
	}
	return token, nil
}

// LeaveSession releases a previously acquired session slot.
func (d *Driver) LeaveSession(ctx context.Context, tenantID, token string) {
	if err := d.slots.Release(ctx, tenantID, token); err != nil {
		d.log.Warn("slot release failed", zap.String("tenant", tenantID), zap.Error(err))
	}
}
