// Package registry holds the department's capability lookup: which worker
// serves which skill, and under what contract.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/lucasnoah/repocrew/internal/contract"
)

// Handler executes one skill invocation. Handlers are stateless; anything
// the skill needs arrives in the envelope payload.
type Handler func(ctx context.Context, env contract.TaskEnvelope) (map[string]any, error)

// SkillSpec declares one skill an agent offers, with its contract.
type SkillSpec struct {
	Name         string          `json:"name"`
	InputSchema  contract.Schema `json:"input_schema"`
	OutputSchema contract.Schema `json:"output_schema"`
}

// AgentDescriptor is one worker's identity and capability surface.
// Immutable after registration.
type AgentDescriptor struct {
	ID      string      `json:"id"`
	Version int         `json:"version"`
	Skills  []SkillSpec `json:"skills"`
}

// Registration pairs a resolved descriptor with the handler for one skill.
type Registration struct {
	Descriptor AgentDescriptor
	Skill      SkillSpec
	Handler    Handler
}

type identity struct {
	id      string
	version int
}

// Registry maps skill names to registered workers. Lookup is read-mostly
// and safe from concurrent pool workers; registration is expected at
// process start.
type Registry struct {
	mu     sync.RWMutex
	agents map[identity]AgentDescriptor
	// skills maps a skill name to the identities offering it.
	skills map[string][]identity
	// handlers maps (identity, skill) to the executable handler.
	handlers map[identity]map[string]Handler
}

// New returns an empty registry. Tests and processes construct their own;
// there is no package-level instance.
func New() *Registry {
	return &Registry{
		agents:   make(map[identity]AgentDescriptor),
		skills:   make(map[string][]identity),
		handlers: make(map[identity]map[string]Handler),
	}
}

// Register adds an agent and its skill handlers. Idempotent by (id,
// version): re-registering the same identity overwrites silently; a new
// version coexists with older ones. Unknown skill names are rejected here
// rather than at call time.
func (r *Registry) Register(desc AgentDescriptor, handlers map[string]Handler) error {
	if desc.ID == "" {
		return fmt.Errorf("agent descriptor has empty id")
	}
	if desc.Version <= 0 {
		return fmt.Errorf("agent %s: version must be positive, got %d", desc.ID, desc.Version)
	}
	if len(desc.Skills) == 0 {
		return fmt.Errorf("agent %s: descriptor declares no skills", desc.ID)
	}

	declared := make(map[string]bool, len(desc.Skills))
	for i := range desc.Skills {
		s := &desc.Skills[i]
		in, out, ok := contract.SchemasFor(s.Name)
		if !ok {
			return fmt.Errorf("agent %s: unknown skill %q", desc.ID, s.Name)
		}
		// Descriptors may omit schemas; the contract package is authoritative.
		if s.InputSchema == nil {
			s.InputSchema = in
		}
		if s.OutputSchema == nil {
			s.OutputSchema = out
		}
		declared[s.Name] = true
	}
	for name := range handlers {
		if !declared[name] {
			return fmt.Errorf("agent %s: handler for undeclared skill %q", desc.ID, name)
		}
	}
	for name := range declared {
		if handlers[name] == nil {
			return fmt.Errorf("agent %s: declared skill %q has no handler", desc.ID, name)
		}
	}

	key := identity{id: desc.ID, version: desc.Version}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[key]; exists {
		// Overwrite: drop the old skill index entries first.
		for name, ids := range r.skills {
			r.skills[name] = removeIdentity(ids, key)
		}
	}

	r.agents[key] = desc
	r.handlers[key] = make(map[string]Handler, len(handlers))
	for name, h := range handlers {
		r.handlers[key][name] = h
		r.skills[name] = append(r.skills[name], key)
	}
	return nil
}

// Resolve finds a worker for a skill. A miss is a WorkerUnavailableError;
// the caller decides the blast radius (for the foreman: one target, never
// the portfolio). When multiple versions of the same agent offer a skill,
// the highest version wins.
func (r *Registry) Resolve(skill string) (*Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.skills[skill]
	if len(ids) == 0 {
		return nil, &contract.WorkerUnavailableError{Skill: skill, Reason: "no agent registered"}
	}

	best := ids[0]
	for _, id := range ids[1:] {
		if id.id == best.id && id.version > best.version {
			best = id
		}
	}

	desc := r.agents[best]
	var spec SkillSpec
	for _, s := range desc.Skills {
		if s.Name == skill {
			spec = s
			break
		}
	}

	return &Registration{
		Descriptor: desc,
		Skill:      spec,
		Handler:    r.handlers[best][skill],
	}, nil
}

// Agents returns all registered descriptors, ordered by id then version.
func (r *Registry) Agents() []AgentDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]AgentDescriptor, 0, len(r.agents))
	for _, d := range r.agents {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ID != out[j].ID {
			return out[i].ID < out[j].ID
		}
		return out[i].Version < out[j].Version
	})
	return out
}

// MissingSkills reports which of the given skills have no registered
// worker. The runner uses this as a could-not-start check before any
// target is admitted.
func (r *Registry) MissingSkills(skills []string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var missing []string
	for _, name := range skills {
		if len(r.skills[name]) == 0 {
			missing = append(missing, name)
		}
	}
	return missing
}

func removeIdentity(ids []identity, key identity) []identity {
	out := ids[:0]
	for _, id := range ids {
		if id != key {
			out = append(out, id)
		}
	}
	return out
}
