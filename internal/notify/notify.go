// Package notify defines the notification/ticketing collaborator the
// foreman calls in create mode. The real integration lives outside this
// repository; what matters here is the boundary.
package notify

import (
	"context"
	"sync"

	"github.com/lucasnoah/repocrew/internal/logging"
)

// Notifier delivers an opaque ticket payload to the outside world.
type Notifier interface {
	Notify(ctx context.Context, payload map[string]any) error
}

// LogNotifier is the default stand-in integration: it records the ticket
// to the structured log and reports success.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, payload map[string]any) error {
	logging.New("notify").InfoContext(ctx, "ticket opened", "payload", payload)
	return nil
}

// Recorder captures every payload it receives. Tests use it to prove mode
// containment: outside create mode it must never be called.
type Recorder struct {
	mu       sync.Mutex
	payloads []map[string]any
}

func (r *Recorder) Notify(ctx context.Context, payload map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, payload)
	return nil
}

// Payloads returns a copy of everything recorded so far.
func (r *Recorder) Payloads() []map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]map[string]any, len(r.payloads))
	copy(out, r.payloads)
	return out
}
