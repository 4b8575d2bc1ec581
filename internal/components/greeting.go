package components

import (
	"context"
	"log/slog"
	"time"

	"github.com/vimbiso/vimbiso-chatserver/internal/flow"
	"github.com/vimbiso/vimbiso-chatserver/internal/state"
)

// Greeting opens every conversation with a time-of-day greeting. It never
// waits for input; the login call follows in the same turn.
type Greeting struct{}

// Name returns the registry name.
func (g *Greeting) Name() string { return flow.CompGreeting }

// Process sends the greeting and completes immediately.
func (g *Greeting) Process(ctx context.Context, sm *state.Manager) flow.Outcome {
	svc, to, err := sendTo(sm)
	if err != nil {
		return flow.Fatal(err)
	}
	if err := svc.SendText(ctx, to, greetingText(time.Now())); err != nil {
		slog.Error("Greeting send failed", "error", err)
		return flow.Fatal(err)
	}
	return flow.Done()
}

func greetingText(now time.Time) string {
	switch h := now.Hour(); {
	case h < 12:
		return "Good morning! 🌅"
	case h < 18:
		return "Good afternoon! ☀️"
	default:
		return "Good evening! 🌙"
	}
}
