package agent

import (
	"fmt"

	"github.com/lucasnoah/repocrew/internal/contract"
	"github.com/lucasnoah/repocrew/internal/registry"
)

// DefaultRegistry builds a registry with the whole built-in department
// registered. Callers own the registry; nothing here is process-global.
func DefaultRegistry() (*registry.Registry, error) {
	reg := registry.New()

	agents := []struct {
		id       string
		skills   []string
		handlers map[string]registry.Handler
	}{
		{
			id:       "sentinel",
			skills:   []string{contract.SkillDetectIssues},
			handlers: map[string]registry.Handler{contract.SkillDetectIssues: DetectIssues},
		},
		{
			id:       "planner",
			skills:   []string{contract.SkillPlanFix},
			handlers: map[string]registry.Handler{contract.SkillPlanFix: PlanFix},
		},
		{
			id:       "mechanic",
			skills:   []string{contract.SkillApplyFix},
			handlers: map[string]registry.Handler{contract.SkillApplyFix: ApplyFix},
		},
		{
			id:       "inspector",
			skills:   []string{contract.SkillVerifyFix},
			handlers: map[string]registry.Handler{contract.SkillVerifyFix: VerifyFix},
		},
		{
			id:     "archivist",
			skills: []string{contract.SkillWriteDocs, contract.SkillCleanupWorkspace, contract.SkillIndexTarget},
			handlers: map[string]registry.Handler{
				contract.SkillWriteDocs:        WriteDocs,
				contract.SkillCleanupWorkspace: CleanupWorkspace,
				contract.SkillIndexTarget:      IndexTarget,
			},
		},
	}

	for _, a := range agents {
		desc := registry.AgentDescriptor{ID: a.id, Version: 1}
		for _, name := range a.skills {
			desc.Skills = append(desc.Skills, registry.SkillSpec{Name: name})
		}
		if err := reg.Register(desc, a.handlers); err != nil {
			return nil, fmt.Errorf("register %s: %w", a.id, err)
		}
	}

	return reg, nil
}
