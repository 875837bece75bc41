package contract

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// Schema is a JSON Schema document for one side of a skill contract.
type Schema map[string]any

func str() map[string]any  { return map[string]any{"type": "string"} }
func strN() map[string]any { return map[string]any{"type": "string", "minLength": 1} }

// issueSchema describes one IssueSpec on the wire.
var issueSchema = map[string]any{
	"type":     "object",
	"required": []string{"id", "kind", "severity", "file", "description"},
	"properties": map[string]any{
		"id":          strN(),
		"kind":        strN(),
		"severity":    map[string]any{"type": "string", "enum": []string{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}},
		"file":        str(),
		"line":        map[string]any{"type": "integer"},
		"description": str(),
	},
	"additionalProperties": false,
}

var planSchema = map[string]any{
	"type":     "object",
	"required": []string{"id", "issue_id", "steps", "estimated_risk"},
	"properties": map[string]any{
		"id":       strN(),
		"issue_id": strN(),
		"steps": map[string]any{
			"type":     "array",
			"minItems": 1,
			"items": map[string]any{
				"type":     "object",
				"required": []string{"order", "action"},
				"properties": map[string]any{
					"order":  map[string]any{"type": "integer", "minimum": 1},
					"action": strN(),
					"detail": str(),
				},
				"additionalProperties": false,
			},
		},
		"estimated_risk": map[string]any{"type": "string", "enum": []string{"low", "medium", "high"}},
	},
	"additionalProperties": false,
}

var artifactSchema = map[string]any{
	"type":     "object",
	"required": []string{"plan_id", "name", "content"},
	"properties": map[string]any{
		"plan_id": strN(),
		"name":    strN(),
		"content": str(),
	},
	"additionalProperties": false,
}

var verdictSchema = map[string]any{
	"type":     "object",
	"required": []string{"fix_plan_id", "passed"},
	"properties": map[string]any{
		"fix_plan_id": strN(),
		"passed":      map[string]any{"type": "boolean"},
		"findings":    map[string]any{"type": "array", "items": str()},
	},
	"additionalProperties": false,
}

var targetSchema = map[string]any{
	"type":     "object",
	"required": []string{"id", "location"},
	"properties": map[string]any{
		"id":       strN(),
		"location": strN(),
		"tags":     map[string]any{"type": "array", "items": str()},
	},
	"additionalProperties": false,
}

var summarySchema = map[string]any{
	"type":     "object",
	"required": []string{"summary"},
	"properties": map[string]any{
		"summary": str(),
		"path":    str(),
	},
	"additionalProperties": false,
}

// skillSchemas maps each skill to its input and output schema. The registry
// stamps these into AgentDescriptors at registration.
var skillSchemas = map[string]struct{ Input, Output Schema }{
	SkillDetectIssues: {
		Input: Schema{
			"type":                 "object",
			"required":             []string{"target"},
			"properties":           map[string]any{"target": targetSchema},
			"additionalProperties": false,
		},
		Output: Schema{
			"type":                 "object",
			"required":             []string{"issues"},
			"properties":           map[string]any{"issues": map[string]any{"type": "array", "items": issueSchema}},
			"additionalProperties": false,
		},
	},
	SkillPlanFix: {
		Input: Schema{
			"type":                 "object",
			"required":             []string{"issue"},
			"properties":           map[string]any{"issue": issueSchema},
			"additionalProperties": false,
		},
		Output: Schema{
			"type":                 "object",
			"required":             []string{"plan"},
			"properties":           map[string]any{"plan": planSchema},
			"additionalProperties": false,
		},
	},
	SkillApplyFix: {
		Input: Schema{
			"type":     "object",
			"required": []string{"target", "issue", "plan"},
			"properties": map[string]any{
				"target": targetSchema,
				"issue":  issueSchema,
				"plan":   planSchema,
			},
			"additionalProperties": false,
		},
		Output: Schema{
			"type":     "object",
			"required": []string{"artifacts", "applied"},
			"properties": map[string]any{
				"artifacts":          map[string]any{"type": "array", "minItems": 1, "items": artifactSchema},
				"applied":            map[string]any{"type": "boolean"},
				"suppressed_actions": map[string]any{"type": "array", "items": str()},
			},
			"additionalProperties": false,
		},
	},
	SkillVerifyFix: {
		Input: Schema{
			"type":     "object",
			"required": []string{"plan", "artifacts"},
			"properties": map[string]any{
				"plan":      planSchema,
				"artifacts": map[string]any{"type": "array", "items": artifactSchema},
			},
			"additionalProperties": false,
		},
		Output: Schema{
			"type":                 "object",
			"required":             []string{"verdict"},
			"properties":           map[string]any{"verdict": verdictSchema},
			"additionalProperties": false,
		},
	},
	SkillWriteDocs: {
		Input: Schema{
			"type":     "object",
			"required": []string{"target", "run_id"},
			"properties": map[string]any{
				"target":       targetSchema,
				"run_id":       strN(),
				"mode":         str(),
				"issues_found": map[string]any{"type": "integer"},
				"issues_fixed": map[string]any{"type": "integer"},
				"workspace":    str(),
			},
			"additionalProperties": false,
		},
		Output: summarySchema,
	},
	SkillCleanupWorkspace: {
		Input: Schema{
			"type":     "object",
			"required": []string{"workspace"},
			"properties": map[string]any{
				"workspace": strN(),
			},
			"additionalProperties": false,
		},
		Output: summarySchema,
	},
	SkillIndexTarget: {
		Input: Schema{
			"type":     "object",
			"required": []string{"target", "run_id"},
			"properties": map[string]any{
				"target":    targetSchema,
				"run_id":    strN(),
				"workspace": str(),
			},
			"additionalProperties": false,
		},
		Output: summarySchema,
	},
}

// SchemasFor returns the input and output schema for a skill name.
func SchemasFor(skill string) (input, output Schema, ok bool) {
	s, ok := skillSchemas[skill]
	return s.Input, s.Output, ok
}

// ValidateAgainst validates a payload map structurally against a schema.
// A failure is reported as a ContractValidationError carrying the JSON
// field path of the first offending field.
func ValidateAgainst(skill string, schema Schema, payload map[string]any) error {
	schemaBytes, err := json.Marshal(map[string]any(schema))
	if err != nil {
		return fmt.Errorf("serialize schema for %s: %w", skill, err)
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("serialize payload for %s: %w", skill, err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaBytes),
		gojsonschema.NewBytesLoader(payloadBytes),
	)
	if err != nil {
		return fmt.Errorf("schema validation for %s: %w", skill, err)
	}
	if result.Valid() {
		return nil
	}

	first := result.Errors()[0]
	return &ContractValidationError{
		Skill:     skill,
		FieldPath: first.Field(),
		Message:   first.Description(),
	}
}
