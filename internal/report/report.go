// Package report renders portfolio results. Both renderings are pure
// projections of the same PortfolioRun structure; the markdown form loses
// nothing a reader needs to reconstruct the JSON.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"text/template"

	"github.com/lucasnoah/repocrew/internal/run"
)

// Formats accepted by Render.
const (
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

// Render serializes a portfolio run in the requested format.
func Render(pf *run.PortfolioRun, format string) ([]byte, error) {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(pf, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal portfolio run: %w", err)
		}
		return append(data, '\n'), nil
	case FormatMarkdown:
		return renderMarkdown(pf)
	default:
		return nil, fmt.Errorf("unknown output format %q (want json or markdown)", format)
	}
}

const markdownTmpl = `# Portfolio run {{.Run.PortfolioRunID}}

- mode: {{.Run.Mode}}
- targets analyzed: {{.Run.Totals.TargetsAnalyzed}}
- issues found: {{.Run.Totals.IssuesFound}}
- issues fixed: {{.Run.Totals.IssuesFixed}}
- fix rate: {{printf "%.1f" .FixRatePct}}%
- started: {{.Run.StartedAt.Format "2006-01-02T15:04:05Z07:00"}}
- finished: {{.Run.FinishedAt.Format "2006-01-02T15:04:05Z07:00"}}

## Issues by severity

{{if .Severities}}| Severity | Count |
|---|---|
{{range .Severities}}| {{.Key}} | {{.Count}} |
{{end}}{{else}}None.
{{end}}
## Targets

| Target | Status | Found | Fixed | Error |
|---|---|---|---|---|
{{range .Run.Runs}}| {{.TargetID}} | {{.Status}} | {{.IssuesFound}} | {{.IssuesFixed}} | {{.Error}} |
{{end}}`

type kv struct {
	Key   string
	Count int
}

func renderMarkdown(pf *run.PortfolioRun) ([]byte, error) {
	tmpl, err := template.New("portfolio").Option("missingkey=error").Parse(markdownTmpl)
	if err != nil {
		return nil, fmt.Errorf("parse report template: %w", err)
	}

	var severities []kv
	for k, v := range pf.Totals.BySeverity {
		severities = append(severities, kv{Key: k, Count: v})
	}
	sort.Slice(severities, func(i, j int) bool { return severities[i].Key < severities[j].Key })

	data := struct {
		Run        *run.PortfolioRun
		FixRatePct float64
		Severities []kv
	}{
		Run:        pf,
		FixRatePct: pf.Totals.FixRate * 100,
		Severities: severities,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("execute report template: %w", err)
	}
	return buf.Bytes(), nil
}
