package contract

import "context"

// Effects is the externally-visible side-effect surface available to a
// worker during one invocation. The foreman supplies the implementation
// and enforces the run mode at this boundary: outside create mode every
// call returns a SideEffectBlockedError before anything executes.
type Effects interface {
	// ApplyRewrite replaces the content of a file inside the target tree.
	ApplyRewrite(path string, content []byte) error
	// OpenTicket hands an opaque payload to the notification/ticketing
	// collaborator.
	OpenTicket(payload map[string]any) error
}

type effectsKey struct{}

// WithEffects attaches the per-invocation effects surface to a context.
func WithEffects(ctx context.Context, e Effects) context.Context {
	return context.WithValue(ctx, effectsKey{}, e)
}

// EffectsFromContext returns the effects surface for this invocation, or
// nil when the caller provided none (workers must then take no external
// action).
func EffectsFromContext(ctx context.Context) Effects {
	e, _ := ctx.Value(effectsKey{}).(Effects)
	return e
}
