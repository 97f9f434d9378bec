package delivery

import (
	"context"
	"time"
)

// WithTyping runs fn while refreshing the destination's typing
// indicator every interval. The indicator loop is started before fn
// and always cancelled and awaited afterwards, even when fn fails.
// Indicator errors are ignored; typing is cosmetic.
func WithTyping(ctx context.Context, sender Sender, destID string, interval time.Duration, fn func(ctx context.Context) error) error {
	if interval <= 0 {
		interval = 8 * time.Second
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			_ = sender.StartTyping(loopCtx, destID)
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	err := fn(ctx)
	cancel()
	<-done
	return err
}
