// Package channel defines the thin boundary between the orchestrator core
// and an inbound/outbound message surface (CLI stdin/stdout, eventually a
// chat platform adapter), plus a registry for running several at once.
//
// Grounded on internal/channels/channel.go's Adapter/Registry split,
// narrowed from its five-interface capability matrix
// (Adapter/LifecycleAdapter/OutboundAdapter/InboundAdapter/HealthAdapter)
// down to the single Channel interface this core actually needs: receive
// one user message, send one assistant reply, run until the context ends.
package channel

import "context"

// Channel is one inbound/outbound message surface driving the
// orchestrator's turn loop.
type Channel interface {
	// Name identifies the channel ("cli", "slack", ...).
	Name() string

	// Receive blocks for the next inbound user message. It returns
	// (false, nil) when the channel has no more input (EOF, disconnect).
	Receive(ctx context.Context) (text string, ok bool, err error)

	// Send delivers an assistant reply back to the user.
	Send(ctx context.Context, text string) error

	// Close releases any resources the channel holds.
	Close() error
}

// Registry tracks running channels so a process can host more than one
// (e.g. a CLI channel plus a future chat adapter) under one lifecycle.
type Registry struct {
	channels map[string]Channel
}

// NewRegistry creates an empty channel registry.
func NewRegistry() *Registry {
	return &Registry{channels: make(map[string]Channel)}
}

// Register adds a channel, replacing any previous channel with the same
// name.
func (r *Registry) Register(ch Channel) {
	r.channels[ch.Name()] = ch
}

// Get returns a registered channel by name.
func (r *Registry) Get(name string) (Channel, bool) {
	ch, ok := r.channels[name]
	return ch, ok
}

// All returns every registered channel.
func (r *Registry) All() []Channel {
	out := make([]Channel, 0, len(r.channels))
	for _, ch := range r.channels {
		out = append(out, ch)
	}
	return out
}

// CloseAll closes every registered channel, collecting the last error.
func (r *Registry) CloseAll() error {
	var lastErr error
	for _, ch := range r.channels {
		if err := ch.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
