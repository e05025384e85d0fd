package notify

import (
	"context"
	"log/slog"
	"sync"
)

// Subscriber consumes AgreementsRevoked events. Errors are logged, not
// propagated: the triggering mutation has already committed by the time
// subscribers fire.
type Subscriber func(ctx context.Context, event AgreementsRevoked) error

// Bus is a synchronous in-process publish/subscribe channel. All subscribers
// fire after the triggering mutation completes; no ordering is guaranteed
// among them.
type Bus struct {
	mu          sync.RWMutex
	subscribers []Subscriber
	logger      *slog.Logger
}

func NewBus(logger *slog.Logger) *Bus {
	return &Bus{logger: logger}
}

// Subscribe registers a subscriber. Not safe to call concurrently with
// Publish from the same goroutine set during startup wiring; in practice all
// Subscribe calls happen in main before the server starts.
func (b *Bus) Subscribe(s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, s)
}

// Publish delivers the event to every subscriber.
func (b *Bus) Publish(ctx context.Context, event AgreementsRevoked) {
	b.mu.RLock()
	subs := b.subscribers
	b.mu.RUnlock()

	for _, s := range subs {
		if err := s(ctx, event); err != nil {
			b.logger.WarnContext(ctx, "revocation subscriber failed",
				"error", err,
				"user_id", event.User.ID.String(),
				"request_id", event.RequestID,
			)
		}
	}
}
