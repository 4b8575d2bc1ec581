package flow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vimbiso/vimbiso-chatserver/internal/state"
)

// Activator resolves component instances and runs them. Instances are
// cached per channel+component only while the component is awaiting input,
// so a prompting step can keep private fields across activations — but
// correctness never depends on the cache: state is the source of truth and
// a fresh instance bound to the same persisted state behaves identically.
type Activator struct {
	registry Registry

	mu    sync.Mutex
	cache map[string]Component // channelID + ":" + component name
}

// NewActivator creates an Activator over the given registry.
func NewActivator(registry Registry) *Activator {
	return &Activator{registry: registry, cache: make(map[string]Component)}
}

// Activate creates or retrieves the component and invokes it. Unknown
// names, a missing messaging capability and panics inside the component all
// surface as a fatal activation outcome, never a silent no-op.
func (a *Activator) Activate(ctx context.Context, name string, sm *state.Manager) (out Outcome) {
	channelID, err := sm.GetChannelID()
	if err != nil {
		return Fatalf("component %s: %w", name, err)
	}
	cacheKey := channelID + ":" + name

	a.mu.Lock()
	comp, cached := a.cache[cacheKey]
	if !cached || !sm.IsAwaitingInput() {
		ctor, ok := a.registry[name]
		if !ok {
			a.mu.Unlock()
			slog.Error("Activator component not found", "component", name)
			return Fatalf("component not found: %s", name)
		}
		comp = ctor()
		a.cache[cacheKey] = comp
	} else {
		slog.Debug("Activator reusing awaiting component instance", "component", name, "channel", channelID)
	}
	a.mu.Unlock()

	// The messaging capability must be wired before any component runs.
	if _, err := sm.Messaging(); err != nil {
		a.evict(cacheKey)
		return Fatalf("component %s: %w", name, err)
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Activator component panicked", "component", name, "panic", r)
			out = Fatal(fmt.Errorf("component activation failed: %s: %v", name, r))
			a.evict(cacheKey)
		}
	}()

	slog.Debug("Activator invoking component", "component", name, "channel", channelID)
	out = comp.Process(ctx, sm)

	// Drop the instance once it stops waiting for input.
	if !sm.IsAwaitingInput() {
		a.evict(cacheKey)
	}
	return out
}

func (a *Activator) evict(cacheKey string) {
	a.mu.Lock()
	delete(a.cache, cacheKey)
	a.mu.Unlock()
}

// EvictChannel drops all cached instances for a channel. Called when a
// conversation is forcibly reset.
func (a *Activator) EvictChannel(channelID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for key := range a.cache {
		if len(key) > len(channelID) && key[:len(channelID)] == channelID && key[len(channelID)] == ':' {
			delete(a.cache, key)
		}
	}
}
