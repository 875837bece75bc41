package foreman

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/lucasnoah/repocrew/internal/contract"
	"github.com/lucasnoah/repocrew/internal/notify"
	"github.com/lucasnoah/repocrew/internal/run"
)

// effectsGate is the foreman's side of the mode contract. Workers receive
// it as their only route to externally visible actions; outside create
// mode every call is rejected here, before anything executes. Enforcement
// lives at this boundary rather than being trusted to the worker.
type effectsGate struct {
	mode     run.Mode
	notifier notify.Notifier
	logger   *slog.Logger
}

func newEffectsGate(mode run.Mode, notifier notify.Notifier, logger *slog.Logger) *effectsGate {
	return &effectsGate{mode: mode, notifier: notifier, logger: logger}
}

func (g *effectsGate) ApplyRewrite(path string, content []byte) error {
	if g.mode != run.ModeCreate {
		return &contract.SideEffectBlockedError{Action: "apply_rewrite", Mode: string(g.mode)}
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("rewrite target %s: %w", path, err)
	}
	if err := os.WriteFile(path, content, info.Mode().Perm()); err != nil {
		return fmt.Errorf("rewrite %s: %w", path, err)
	}
	g.logger.Info("applied rewrite", "path", path, "bytes", len(content))
	return nil
}

func (g *effectsGate) OpenTicket(payload map[string]any) error {
	if g.mode != run.ModeCreate {
		return &contract.SideEffectBlockedError{Action: "open_ticket", Mode: string(g.mode)}
	}
	if err := g.notifier.Notify(context.Background(), payload); err != nil {
		return fmt.Errorf("open ticket: %w", err)
	}
	return nil
}
